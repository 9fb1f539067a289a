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
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/erigontech/erigon-middleware/db/kv"
	"github.com/erigontech/erigon-middleware/db/rawdb"
	"github.com/erigontech/erigon-middleware/rpc"
	"github.com/erigontech/erigon-middleware/turbo/adapter/ethapi"
	"github.com/erigontech/erigon-middleware/turbo/rpchelper"
)

// GetTransactionByHash implements eth_getTransactionByHash. Returns information about a transaction given the transaction's hash.
func (api *APIImpl) GetTransactionByHash(ctx context.Context, txnHash common.Hash) (*ethapi.RPCTransaction, error) {
	tx, err := api.db.BeginRo(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	txn, blockHash, blockNum, txnIndex, err := rpchelper.ReadTransactionByHash(tx, txnHash)
	if err != nil {
		return nil, fmt.Errorf("txn %x: %w", txnHash, err)
	}
	if txn == nil {
		return nil, nil
	}
	sender, err := senderAt(tx, blockHash, blockNum, txnIndex)
	if err != nil {
		return nil, err
	}
	return ethapi.NewRPCTransaction(txn, sender, blockHash, blockNum, txnIndex), nil
}

func senderAt(tx kv.Getter, blockHash common.Hash, blockNum uint64, txnIndex uint64) (common.Address, error) {
	senders, err := rawdb.ReadSenders(tx, blockHash, blockNum)
	if err != nil {
		return common.Address{}, err
	}
	if txnIndex >= uint64(len(senders)) {
		return common.Address{}, fmt.Errorf("%w: no sender for txn %d of block %d(%x)", rpchelper.ErrInconsistency, txnIndex, blockNum, blockHash)
	}
	return senders[txnIndex], nil
}

// GetTransactionByBlockHashAndIndex implements eth_getTransactionByBlockHashAndIndex. Returns information about a transaction given the block's hash and a transaction index.
func (api *APIImpl) GetTransactionByBlockHashAndIndex(ctx context.Context, blockHash common.Hash, txIndex hexutil.Uint64) (*ethapi.RPCTransaction, error) {
	return api.transactionByBlockAndIndex(ctx, rpc.BlockNumberOrHashWithHash(blockHash, true), uint64(txIndex))
}

// GetTransactionByBlockNumberAndIndex implements eth_getTransactionByBlockNumberAndIndex. Returns information about a transaction given a block number and transaction index.
func (api *APIImpl) GetTransactionByBlockNumberAndIndex(ctx context.Context, blockNr rpc.BlockNumber, txIndex hexutil.Uint) (*ethapi.RPCTransaction, error) {
	return api.transactionByBlockAndIndex(ctx, rpc.BlockNumberOrHashWithNumber(blockNr), uint64(txIndex))
}

func (api *APIImpl) transactionByBlockAndIndex(ctx context.Context, blockNrOrHash rpc.BlockNumberOrHash, txIndex uint64) (*ethapi.RPCTransaction, error) {
	tx, err := api.db.BeginRo(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	block, senders, err := api.BlockByNumberOrHash(tx, blockNrOrHash)
	if err != nil || block == nil {
		return nil, err
	}
	txs := block.Transactions()
	if txIndex >= uint64(len(txs)) {
		return nil, nil // not error
	}
	return ethapi.NewRPCTransaction(txs[txIndex], senders[txIndex], block.Hash(), block.NumberU64(), txIndex), nil
}
