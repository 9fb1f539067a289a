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

package transactions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/ethereum/go-ethereum/params"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/erigontech/erigon-middleware/core"
	"github.com/erigontech/erigon-middleware/core/state"
	"github.com/erigontech/erigon-middleware/db/kv"
	"github.com/erigontech/erigon-middleware/db/rawdb"
	"github.com/erigontech/erigon-middleware/execution/types"
	"github.com/erigontech/erigon-middleware/rpc"
	"github.com/erigontech/erigon-middleware/turbo/adapter/ethapi"
	"github.com/erigontech/erigon-middleware/turbo/rpchelper"
)

const (
	// DefaultGasCap is the gas of calls that do not specify one, and the most any call may use.
	DefaultGasCap = 100_000_000
	// DefaultCallTimeout bounds a single EVM run.
	DefaultCallTimeout = 5 * time.Minute
)

// CallState is everything a synthetic message runs against: the resolved block, its chain
// rules and an overlay over the state at the end of that block.
type CallState struct {
	BlockNumber uint64
	BlockHash   common.Hash
	Header      *types.Header
	ChainConfig *params.ChainConfig
	State       *state.IntraBlockState
}

// NewCallState resolves blockNrOrHash. The returned state never writes to tx.
func NewCallState(tx kv.Tx, blockNrOrHash rpc.BlockNumberOrHash, codeCache *lru.Cache[common.Hash, []byte]) (*CallState, error) {
	blockNumber, hash, err := rpchelper.GetBlockNumber(blockNrOrHash, tx)
	if err != nil {
		return nil, err
	}
	chainConfig, err := rawdb.ReadChainConfig(tx)
	if err != nil {
		return nil, fmt.Errorf("read chain config: %w", err)
	}
	if chainConfig == nil {
		return nil, rpchelper.ErrChainSpecMissing
	}
	header := rawdb.ReadHeader(tx, hash, blockNumber)
	if header == nil {
		return nil, fmt.Errorf("%w: header %d(%x) missing for canonical block", rpchelper.ErrInconsistency, blockNumber, hash)
	}
	reader := state.NewHistoryReader(tx, blockNumber)
	if codeCache != nil {
		reader.SetCodeCache(codeCache)
	}
	return &CallState{
		BlockNumber: blockNumber,
		BlockHash:   hash,
		Header:      header,
		ChainConfig: chainConfig,
		State:       state.New(reader),
	}, nil
}

func (cs *CallState) run(ctx context.Context, executor core.Executor, args ethapi.CallArgs, overrides *ethapi.StateOverrides,
	gasCap uint64, callTimeout time.Duration) (*core.ExecutionResult, error) {
	if err := overrides.Override(cs.State); err != nil {
		return nil, err
	}

	// Setup context so it may be cancelled the call has completed
	// or, in case of unmetered gas, setup a context with a timeout.
	var cancel context.CancelFunc
	if callTimeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, callTimeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}
	// Make sure the context is cancelled when the call has completed
	// this makes sure resources are cleaned up.
	defer cancel()

	msg, err := args.ToMessage(gasCap, cs.Header.BaseFee)
	if err != nil {
		return nil, err
	}
	if args.Nonce == nil {
		msg.Nonce = cs.State.GetNonce(msg.From)
	}

	result, err := executor.Execute(ctx, cs.State, cs.Header, cs.ChainConfig, msg, vm.Config{NoBaseFee: true})
	if err != nil {
		// If the timer caused an abort, return an appropriate error message
		if errors.Is(err, core.ErrExecutionAborted) && callTimeout > 0 && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("execution aborted (timeout = %v)", callTimeout)
		}
		if errors.Is(err, core.ErrExecutionAborted) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: block %d: %w (supplied gas %d)", rpchelper.ErrExecution, cs.BlockNumber, err, msg.GasLimit)
	}
	return result, nil
}

// DoCall executes args on top of the state at the end of the resolved block. Reverts and
// out-of-gas are reported in the result, not as errors.
func DoCall(ctx context.Context, tx kv.Tx, executor core.Executor, args ethapi.CallArgs, blockNrOrHash rpc.BlockNumberOrHash,
	overrides *ethapi.StateOverrides, gasCap uint64, callTimeout time.Duration, codeCache *lru.Cache[common.Hash, []byte]) (*core.ExecutionResult, error) {
	cs, err := NewCallState(tx, blockNrOrHash, codeCache)
	if err != nil {
		return nil, err
	}
	return cs.run(ctx, executor, args, overrides, gasCap, callTimeout)
}

// DoEstimateGas runs args once with the gas limit of the resolved block (unless the caller
// supplies one) and reports the gas it consumed. There is no search for the lowest
// sufficient limit.
func DoEstimateGas(ctx context.Context, tx kv.Tx, executor core.Executor, args ethapi.CallArgs, blockNrOrHash rpc.BlockNumberOrHash,
	callTimeout time.Duration, codeCache *lru.Cache[common.Hash, []byte]) (hexutil.Uint64, error) {
	cs, err := NewCallState(tx, blockNrOrHash, codeCache)
	if err != nil {
		return 0, err
	}
	if args.Gas == nil {
		gas := hexutil.Uint64(cs.Header.GasLimit)
		args.Gas = &gas
	}
	limit := uint64(*args.Gas)
	result, err := cs.run(ctx, executor, args, nil, limit, callTimeout)
	if err != nil {
		return 0, err
	}
	return hexutil.Uint64(limit - result.GasLeft), nil
}
