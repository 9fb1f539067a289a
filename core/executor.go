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

package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	gethcore "github.com/ethereum/go-ethereum/core"
	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/ethereum/go-ethereum/params"

	"github.com/erigontech/erigon-middleware/core/state"
	"github.com/erigontech/erigon-middleware/execution/types"
)

// ErrExecutionAborted is returned when the context is done before the EVM finishes.
var ErrExecutionAborted = errors.New("execution aborted")

// ExecutionResult includes all output after executing given evm
// message no matter the execution itself is successful or not.
type ExecutionResult struct {
	UsedGas    uint64     // Total used gas, refunds included
	GasLeft    uint64     // Message gas limit minus UsedGas
	Err        error      // Any error encountered during the execution (listed in core/vm/errors.go)
	ReturnData []byte     // Returned data from evm(function result or data supplied with revert opcode)
	Logs       types.Logs // Logs emitted by the message, indexed from 0
}

// Failed returns the indicator whether the execution is successful or not
func (result *ExecutionResult) Failed() bool { return result.Err != nil }

// Return is a helper function to help caller distinguish between revert reason
// and function return. Return returns the data after execution if no error occurs.
func (result *ExecutionResult) Return() []byte {
	if result.Err != nil {
		return nil
	}
	return common.CopyBytes(result.ReturnData)
}

// Revert returns the concrete revert reason if the execution is aborted by `REVERT`
// opcode. Note the reason can be nil if no data supplied with revert opcode.
func (result *ExecutionResult) Revert() []byte {
	if !errors.Is(result.Err, vm.ErrExecutionReverted) {
		return nil
	}
	return common.CopyBytes(result.ReturnData)
}

// Executor runs messages and transactions on top of an IntraBlockState.
type Executor interface {
	// Execute runs a single message. EVM level failures (revert, out of gas) are
	// reported in ExecutionResult.Err; the error return is for messages that
	// could not be applied at all.
	Execute(ctx context.Context, ibs *state.IntraBlockState, header *types.Header, chainConfig *params.ChainConfig,
		msg *gethcore.Message, vmConfig vm.Config) (*ExecutionResult, error)

	// ExecuteBlockUpTo replays txs in order, stopping after the first index for which stop returns true.
	// Returned receipts carry Type, Status, CumulativeGasUsed, Logs, Bloom and TxHash.
	ExecuteBlockUpTo(ctx context.Context, ibs *state.IntraBlockState, header *types.Header, chainConfig *params.ChainConfig,
		txs types.Transactions, senders []common.Address, stop func(i int) bool) (types.Receipts, error)
}

var _ Executor = (*EVMExecutor)(nil)

// EVMExecutor is the go-ethereum EVM.
type EVMExecutor struct {
	getHash func(n uint64) common.Hash
}

func NewEVMExecutor(getHash func(n uint64) common.Hash) *EVMExecutor {
	return &EVMExecutor{getHash: getHash}
}

func chainRules(chainConfig *params.ChainConfig, blockCtx vm.BlockContext) params.Rules {
	return chainConfig.Rules(blockCtx.BlockNumber, blockCtx.Random != nil, blockCtx.Time)
}

// cancelOnDone cancels the evm once ctx is done. The returned func releases the watcher.
func cancelOnDone(ctx context.Context, evm *vm.EVM) func() {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			evm.Cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}

func (e *EVMExecutor) Execute(ctx context.Context, ibs *state.IntraBlockState, header *types.Header, chainConfig *params.ChainConfig,
	msg *gethcore.Message, vmConfig vm.Config) (*ExecutionResult, error) {
	blockCtx := NewEVMBlockContext(header, e.getHash, chainConfig)
	evm := vm.NewEVM(blockCtx, ibs, chainConfig, vmConfig)
	release := cancelOnDone(ctx, evm)
	defer release()

	txHash := common.Hash{}
	ibs.SetTxContext(txHash, 0)
	gp := new(gethcore.GasPool).AddGas(msg.GasLimit)
	result, err := gethcore.ApplyMessage(evm, msg, gp)
	if err != nil {
		return nil, err
	}
	if evm.Cancelled() {
		return nil, ErrExecutionAborted
	}
	if err := ibs.Error(); err != nil {
		return nil, fmt.Errorf("state read: %w", err)
	}
	return &ExecutionResult{
		UsedGas:    result.UsedGas,
		GasLeft:    msg.GasLimit - result.UsedGas,
		Err:        result.Err,
		ReturnData: result.ReturnData,
		Logs:       ibs.GetLogs(txHash),
	}, nil
}

func (e *EVMExecutor) ExecuteBlockUpTo(ctx context.Context, ibs *state.IntraBlockState, header *types.Header, chainConfig *params.ChainConfig,
	txs types.Transactions, senders []common.Address, stop func(i int) bool) (types.Receipts, error) {
	if len(senders) != len(txs) {
		return nil, fmt.Errorf("block %d: %d senders for %d transactions", header.Number, len(senders), len(txs))
	}
	blockCtx := NewEVMBlockContext(header, e.getHash, chainConfig)
	rules := chainRules(chainConfig, blockCtx)
	evm := vm.NewEVM(blockCtx, ibs, chainConfig, vm.Config{})
	release := cancelOnDone(ctx, evm)
	defer release()

	gp := new(gethcore.GasPool).AddGas(header.GasLimit)
	receipts := make(types.Receipts, 0, len(txs))
	var cumulativeGasUsed uint64
	for i, txn := range txs {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrExecutionAborted, err)
		}
		msg, err := TransactionToMessage(txn, senders[i], header.BaseFee)
		if err != nil {
			return nil, fmt.Errorf("could not convert tx %d [%x]: %w", i, txn.Hash(), err)
		}
		ibs.SetTxContext(txn.Hash(), i)
		result, err := gethcore.ApplyMessage(evm, msg, gp)
		if err != nil {
			return nil, fmt.Errorf("could not apply tx %d [%x]: %w", i, txn.Hash(), err)
		}
		if evm.Cancelled() {
			return nil, ErrExecutionAborted
		}
		if err := ibs.Error(); err != nil {
			return nil, fmt.Errorf("state read in tx %d [%x]: %w", i, txn.Hash(), err)
		}
		ibs.Finalise(rules.IsEIP158)

		cumulativeGasUsed += result.UsedGas
		receipt := &types.Receipt{
			Type:              txn.Type(),
			CumulativeGasUsed: cumulativeGasUsed,
			TxHash:            txn.Hash(),
			Logs:              ibs.GetLogs(txn.Hash()),
		}
		if result.Failed() {
			receipt.Status = types.ReceiptStatusFailed
		} else {
			receipt.Status = types.ReceiptStatusSuccessful
		}
		receipt.Bloom = types.LogsBloom(receipt.Logs)
		receipts = append(receipts, receipt)
		if stop != nil && stop(i) {
			break
		}
	}
	return receipts, nil
}
