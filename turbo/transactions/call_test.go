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

package transactions_test

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	gethcore "github.com/ethereum/go-ethereum/core"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/params"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/erigontech/erigon-middleware/core"
	"github.com/erigontech/erigon-middleware/core/state"
	"github.com/erigontech/erigon-middleware/db/kv/memdb"
	"github.com/erigontech/erigon-middleware/db/rawdb"
	"github.com/erigontech/erigon-middleware/eth/stagedsync/stages"
	"github.com/erigontech/erigon-middleware/execution/types"
	"github.com/erigontech/erigon-middleware/rpc"
	"github.com/erigontech/erigon-middleware/turbo/adapter/ethapi"
	"github.com/erigontech/erigon-middleware/turbo/rpchelper"
	"github.com/erigontech/erigon-middleware/turbo/stages/mock"
	"github.com/erigontech/erigon-middleware/turbo/transactions"
)

// fakeExecutor consumes a fixed amount of gas and records the messages it ran.
type fakeExecutor struct {
	gasUsed uint64
	err     error
	msgs    []*gethcore.Message
}

func (f *fakeExecutor) Execute(_ context.Context, _ *state.IntraBlockState, _ *types.Header, _ *params.ChainConfig,
	msg *gethcore.Message, _ vm.Config) (*core.ExecutionResult, error) {
	f.msgs = append(f.msgs, msg)
	if f.err != nil {
		return nil, f.err
	}
	return &core.ExecutionResult{UsedGas: f.gasUsed, GasLeft: msg.GasLimit - f.gasUsed}, nil
}

func (f *fakeExecutor) ExecuteBlockUpTo(context.Context, *state.IntraBlockState, *types.Header, *params.ChainConfig,
	types.Transactions, []common.Address, func(int) bool) (types.Receipts, error) {
	return nil, errors.New("not implemented")
}

var (
	// PUSH1 0 SLOAD PUSH1 0 MSTORE PUSH1 32 PUSH1 0 RETURN
	sloadCode = hexutil.MustDecode("0x60005460005260206000f3")
	// JUMPDEST PUSH1 0 JUMP
	loopCode = hexutil.MustDecode("0x5b600056")
	// PUSH1 42 PUSH1 0 MSTORE PUSH1 32 PUSH1 0 RETURN
	constantCode = hexutil.MustDecode("0x602a60005260206000f3")

	sloadAddr = common.HexToAddress("0x5100")
	loopAddr  = common.HexToAddress("0x1000")
)

func newChain(t *testing.T) *mock.MockChain {
	key, _ := crypto.HexToECDSA("b71c71a67e1177ad4e901695e1b4b9ee17ae16c6668d313eac2f96dbcda3f291")
	gspec := &gethcore.Genesis{
		Config:   params.AllEthashProtocolChanges,
		GasLimit: 8_000_000,
		Alloc: gethtypes.GenesisAlloc{
			crypto.PubkeyToAddress(key.PublicKey): {Balance: big.NewInt(params.Ether), Nonce: 5},
			sloadAddr: {Code: sloadCode, Balance: new(big.Int), Storage: map[common.Hash]common.Hash{{}: common.BigToHash(big.NewInt(1))}},
			loopAddr:  {Code: loopCode, Balance: new(big.Int)},
		},
	}
	m := mock.MockWithGenesis(t, gspec, key)
	m.AppendBlock(mock.BlockGen{GasLimit: 9_000_000, StateChanges: func(w *state.PlainStateWriter) error {
		return w.WriteAccountStorage(sloadAddr, common.Hash{}, uint256.NewInt(1), uint256.NewInt(2))
	}})
	return m
}

func at(n int64) rpc.BlockNumberOrHash { return rpc.BlockNumberOrHashWithNumber(rpc.BlockNumber(n)) }

func TestDoCallSnapshotIsolation(t *testing.T) {
	t.Parallel()
	m := newChain(t)
	tx, err := m.DB.BeginRo(context.Background())
	require.NoError(t, err)
	defer tx.Rollback()

	args := ethapi.CallArgs{To: &sloadAddr}
	for height, want := range []int64{1, 2} {
		res, err := transactions.DoCall(context.Background(), tx, core.NewEVMExecutor(core.CanonicalHashFn(tx)), args, at(int64(height)),
			nil, transactions.DefaultGasCap, transactions.DefaultCallTimeout, nil)
		require.NoError(t, err)
		require.Equal(t, common.BigToHash(big.NewInt(want)).Bytes(), res.Return(), "height %d", height)
	}

	res, err := transactions.DoCall(context.Background(), tx, core.NewEVMExecutor(core.CanonicalHashFn(tx)), args,
		rpc.BlockNumberOrHashWithNumber(rpc.LatestBlockNumber), nil, transactions.DefaultGasCap, transactions.DefaultCallTimeout, nil)
	require.NoError(t, err)
	require.Equal(t, common.BigToHash(big.NewInt(2)).Bytes(), res.Return())
}

func TestDoCallOverrides(t *testing.T) {
	t.Parallel()
	m := newChain(t)
	tx, err := m.DB.BeginRo(context.Background())
	require.NoError(t, err)
	defer tx.Rollback()

	target := common.HexToAddress("0x4242")
	code := hexutil.Bytes(constantCode)
	overrides := ethapi.StateOverrides{target: {Code: &code}}
	res, err := transactions.DoCall(context.Background(), tx, core.NewEVMExecutor(core.CanonicalHashFn(tx)), ethapi.CallArgs{To: &target}, at(1),
		&overrides, transactions.DefaultGasCap, transactions.DefaultCallTimeout, nil)
	require.NoError(t, err)
	require.Equal(t, common.BigToHash(big.NewInt(42)).Bytes(), res.Return())

	slot := map[common.Hash]common.Hash{{}: common.BigToHash(big.NewInt(9))}
	overrides = ethapi.StateOverrides{sloadAddr: {StateDiff: &slot}}
	res, err = transactions.DoCall(context.Background(), tx, core.NewEVMExecutor(core.CanonicalHashFn(tx)), ethapi.CallArgs{To: &sloadAddr}, at(1),
		&overrides, transactions.DefaultGasCap, transactions.DefaultCallTimeout, nil)
	require.NoError(t, err)
	require.Equal(t, common.BigToHash(big.NewInt(9)).Bytes(), res.Return())

	overrides = ethapi.StateOverrides{sloadAddr: {StateDiff: &slot, State: &slot}}
	_, err = transactions.DoCall(context.Background(), tx, core.NewEVMExecutor(core.CanonicalHashFn(tx)), ethapi.CallArgs{To: &sloadAddr}, at(1),
		&overrides, transactions.DefaultGasCap, transactions.DefaultCallTimeout, nil)
	require.ErrorIs(t, err, rpchelper.ErrConversion)
}

func TestDoCallTimeout(t *testing.T) {
	t.Parallel()
	m := newChain(t)
	tx, err := m.DB.BeginRo(context.Background())
	require.NoError(t, err)
	defer tx.Rollback()

	gas := hexutil.Uint64(transactions.DefaultGasCap)
	_, err = transactions.DoCall(context.Background(), tx, core.NewEVMExecutor(core.CanonicalHashFn(tx)), ethapi.CallArgs{To: &loopAddr, Gas: &gas}, at(1),
		nil, transactions.DefaultGasCap, time.Millisecond, nil)
	require.ErrorContains(t, err, "execution aborted (timeout = 1ms)")
}

func TestDoCallMessage(t *testing.T) {
	t.Parallel()
	m := newChain(t)
	tx, err := m.DB.BeginRo(context.Background())
	require.NoError(t, err)
	defer tx.Rollback()

	to := common.HexToAddress("0x02")
	gas := hexutil.Uint64(transactions.DefaultGasCap * 2)
	fake := &fakeExecutor{gasUsed: 21000}
	res, err := transactions.DoCall(context.Background(), tx, fake, ethapi.CallArgs{From: &m.Address, To: &to, Gas: &gas}, at(1),
		nil, transactions.DefaultGasCap, transactions.DefaultCallTimeout, nil)
	require.NoError(t, err)
	require.Equal(t, uint64(21000), res.UsedGas)
	require.Len(t, fake.msgs, 1)
	require.Equal(t, uint64(transactions.DefaultGasCap), fake.msgs[0].GasLimit, "gas is capped")
	require.Equal(t, uint64(5), fake.msgs[0].Nonce, "nonce comes from the state")

	_, err = transactions.DoCall(context.Background(), tx, fake, ethapi.CallArgs{}, at(1),
		nil, transactions.DefaultGasCap, transactions.DefaultCallTimeout, nil)
	require.ErrorIs(t, err, rpchelper.ErrConversion)

	_, err = transactions.DoCall(context.Background(), tx, fake, ethapi.CallArgs{To: &to}, at(7),
		nil, transactions.DefaultGasCap, transactions.DefaultCallTimeout, nil)
	require.ErrorIs(t, err, rpchelper.ErrNotFound)

	failing := &fakeExecutor{err: gethcore.ErrInsufficientFunds}
	_, err = transactions.DoCall(context.Background(), tx, failing, ethapi.CallArgs{To: &to}, at(1),
		nil, transactions.DefaultGasCap, transactions.DefaultCallTimeout, nil)
	require.ErrorIs(t, err, rpchelper.ErrExecution)
	require.ErrorIs(t, err, gethcore.ErrInsufficientFunds)
}

func TestDoEstimateGas(t *testing.T) {
	t.Parallel()
	m := newChain(t)
	tx, err := m.DB.BeginRo(context.Background())
	require.NoError(t, err)
	defer tx.Rollback()

	to := common.HexToAddress("0xb0b")
	fake := &fakeExecutor{gasUsed: 30000}
	gas, err := transactions.DoEstimateGas(context.Background(), tx, fake, ethapi.CallArgs{To: &to}, at(1), transactions.DefaultCallTimeout, nil)
	require.NoError(t, err)
	require.Equal(t, hexutil.Uint64(30000), gas)
	require.Equal(t, uint64(9_000_000), fake.msgs[0].GasLimit, "block gas limit of the resolved block")

	gas, err = transactions.DoEstimateGas(context.Background(), tx, fake, ethapi.CallArgs{To: &to}, at(0), transactions.DefaultCallTimeout, nil)
	require.NoError(t, err)
	require.Equal(t, hexutil.Uint64(30000), gas)
	require.Equal(t, uint64(8_000_000), fake.msgs[1].GasLimit)

	// real EVM: a plain transfer costs exactly the intrinsic gas
	gas, err = transactions.DoEstimateGas(context.Background(), tx, core.NewEVMExecutor(core.CanonicalHashFn(tx)),
		ethapi.CallArgs{From: &m.Address, To: &to, Value: (*hexutil.Big)(big.NewInt(1))}, at(1), transactions.DefaultCallTimeout, nil)
	require.NoError(t, err)
	require.Equal(t, hexutil.Uint64(params.TxGas), gas)

	_, err = transactions.DoEstimateGas(context.Background(), tx, fake, ethapi.CallArgs{}, at(1), transactions.DefaultCallTimeout, nil)
	require.ErrorIs(t, err, rpchelper.ErrConversion)
}

func TestChainSpecMissing(t *testing.T) {
	t.Parallel()
	_, rwTx := memdb.NewTestTx(t)
	header := &types.Header{Number: 0, Difficulty: uint256.NewInt(1), GasLimit: 1_000_000}
	block := types.NewBlockFromStorage(header, nil, nil)
	require.NoError(t, rawdb.WriteBlock(rwTx, block, nil))
	require.NoError(t, rawdb.WriteCanonicalHash(rwTx, block.Hash(), 0))
	require.NoError(t, stages.SaveStageProgress(rwTx, stages.Finish, 0))

	to := common.HexToAddress("0x02")
	_, err := transactions.DoCall(context.Background(), rwTx, &fakeExecutor{}, ethapi.CallArgs{To: &to},
		rpc.BlockNumberOrHashWithNumber(rpc.LatestBlockNumber), nil, transactions.DefaultGasCap, transactions.DefaultCallTimeout, nil)
	require.ErrorIs(t, err, rpchelper.ErrChainSpecMissing)
	require.ErrorIs(t, err, rpchelper.ErrNotFound)
}
