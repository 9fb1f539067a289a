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

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/erigontech/erigon-middleware/rpc"
	"github.com/erigontech/erigon-middleware/turbo/adapter/ethapi"
	"github.com/erigontech/erigon-middleware/turbo/transactions"
)

func latestIfNil(blockNrOrHash *rpc.BlockNumberOrHash) rpc.BlockNumberOrHash {
	if blockNrOrHash == nil {
		return rpc.BlockNumberOrHashWithNumber(rpc.LatestBlockNumber)
	}
	return *blockNrOrHash
}

// Call implements eth_call. Executes a new message call immediately without creating a transaction on the block chain.
func (api *APIImpl) Call(ctx context.Context, args ethapi.CallArgs, blockNrOrHash *rpc.BlockNumberOrHash, overrides *ethapi.StateOverrides) (hexutil.Bytes, error) {
	tx, err := api.db.BeginRo(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	result, err := transactions.DoCall(ctx, tx, api.Executor(tx), args, latestIfNil(blockNrOrHash), overrides, api.GasCap, api.evmCallTimeout, api.codeCache)
	if err != nil {
		return nil, err
	}

	// If the result contains a revert reason, try to unpack and return it.
	if len(result.Revert()) > 0 {
		return nil, ethapi.NewRevertError(result.Revert())
	}
	return result.Return(), result.Err
}

// EstimateGas implements eth_estimateGas. Returns an estimate of how much gas is necessary to allow the transaction to complete.
// The message runs once with the block gas limit; the gas it used is the estimate, even when it failed.
func (api *APIImpl) EstimateGas(ctx context.Context, args ethapi.CallArgs, blockNrOrHash *rpc.BlockNumberOrHash) (hexutil.Uint64, error) {
	tx, err := api.db.BeginRo(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	return transactions.DoEstimateGas(ctx, tx, api.Executor(tx), args, latestIfNil(blockNrOrHash), api.evmCallTimeout, api.codeCache)
}
