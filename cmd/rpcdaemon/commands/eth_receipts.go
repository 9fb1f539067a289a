// Copyright 2024 The Erigon Authors
// This file is part of Erigon.
//
// Erigon is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Erigon is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Erigon. If not, see <http://www.gnu.org/licenses/>.

package commands

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/erigontech/erigon-middleware/rpc"
	"github.com/erigontech/erigon-middleware/turbo/adapter/ethapi"
)

// GetTransactionReceipt implements eth_getTransactionReceipt. Returns the receipt of a transaction given the transaction's hash.
func (api *APIImpl) GetTransactionReceipt(ctx context.Context, txnHash common.Hash) (map[string]interface{}, error) {
	tx, err := api.db.BeginRo(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	receipt, err := api.receiptsGen.GetReceipt(ctx, tx, txnHash)
	if err != nil || receipt == nil {
		return nil, err
	}
	return ethapi.RPCMarshalReceipt(receipt), nil
}

// GetBlockReceipts implements eth_getBlockReceipts. Returns every receipt of a block.
func (api *APIImpl) GetBlockReceipts(ctx context.Context, blockNrOrHash rpc.BlockNumberOrHash) ([]map[string]interface{}, error) {
	tx, err := api.db.BeginRo(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	block, _, err := api.BlockByNumberOrHash(tx, blockNrOrHash)
	if err != nil || block == nil {
		return nil, err
	}
	receipts, err := api.receiptsGen.GetReceipts(ctx, tx, block.NumberU64(), block.Hash())
	if err != nil {
		return nil, err
	}
	result := make([]map[string]interface{}, 0, len(receipts))
	for _, receipt := range receipts {
		result = append(result, ethapi.RPCMarshalReceipt(receipt))
	}
	return result, nil
}
