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
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/erigontech/erigon-middleware/db/rawdb"
	"github.com/erigontech/erigon-middleware/execution/types"
	"github.com/erigontech/erigon-middleware/rpc"
	"github.com/erigontech/erigon-middleware/turbo/adapter/ethapi"
	"github.com/erigontech/erigon-middleware/turbo/rpchelper"
)

// GetUncleByBlockNumberAndIndex implements eth_getUncleByBlockNumberAndIndex. Returns information about an uncle given a block's number and the index of the uncle.
func (api *APIImpl) GetUncleByBlockNumberAndIndex(ctx context.Context, number rpc.BlockNumber, index hexutil.Uint) (map[string]interface{}, error) {
	return api.uncleByIndex(ctx, rpc.BlockNumberOrHashWithNumber(number), index)
}

// GetUncleByBlockHashAndIndex implements eth_getUncleByBlockHashAndIndex. Returns information about an uncle given a block's hash and the index of the uncle.
func (api *APIImpl) GetUncleByBlockHashAndIndex(ctx context.Context, hash common.Hash, index hexutil.Uint) (map[string]interface{}, error) {
	return api.uncleByIndex(ctx, rpc.BlockNumberOrHashWithHash(hash, true), index)
}

func (api *APIImpl) uncleByIndex(ctx context.Context, blockNrOrHash rpc.BlockNumberOrHash, index hexutil.Uint) (map[string]interface{}, error) {
	tx, err := api.db.BeginRo(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	block, _, err := api.BlockByNumberOrHash(tx, blockNrOrHash)
	if err != nil || block == nil {
		return nil, err
	}
	uncles := block.Uncles()
	if index >= hexutil.Uint(len(uncles)) {
		api.logger.Trace("Requested uncle not found", "number", block.NumberU64(), "hash", block.Hash(), "index", index)
		return nil, nil
	}
	uncle := types.NewBlockFromStorage(uncles[index], nil, nil)
	return ethapi.RPCMarshalBlock(uncle, false, false, nil, nil)
}

// GetUncleCountByBlockNumber implements eth_getUncleCountByBlockNumber. Returns the number of uncles in the block, if any.
func (api *APIImpl) GetUncleCountByBlockNumber(ctx context.Context, number rpc.BlockNumber) (*hexutil.Uint, error) {
	return api.uncleCount(ctx, rpc.BlockNumberOrHashWithNumber(number))
}

// GetUncleCountByBlockHash implements eth_getUncleCountByBlockHash. Returns the number of uncles in the block, if any.
func (api *APIImpl) GetUncleCountByBlockHash(ctx context.Context, hash common.Hash) (*hexutil.Uint, error) {
	return api.uncleCount(ctx, rpc.BlockNumberOrHashWithHash(hash, true))
}

// uncleCount is zero for a known block whose body is not stored.
func (api *APIImpl) uncleCount(ctx context.Context, blockNrOrHash rpc.BlockNumberOrHash) (*hexutil.Uint, error) {
	tx, err := api.db.BeginRo(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	blockNum, hash, err := rpchelper.GetBlockNumber(blockNrOrHash, tx)
	if err != nil {
		if rpchelper.IsBlockNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	var n hexutil.Uint
	if body, _, _ := rawdb.ReadBody(tx, hash, blockNum); body != nil {
		n = hexutil.Uint(len(body.Uncles))
	}
	return &n, nil
}
