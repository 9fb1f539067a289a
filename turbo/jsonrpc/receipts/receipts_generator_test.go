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

package receipts_test

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	gethcore "github.com/ethereum/go-ethereum/core"
	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/params"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/erigontech/erigon-middleware/core"
	"github.com/erigontech/erigon-middleware/core/state"
	"github.com/erigontech/erigon-middleware/db/kv"
	"github.com/erigontech/erigon-middleware/db/rawdb"
	"github.com/erigontech/erigon-middleware/execution/types"
	"github.com/erigontech/erigon-middleware/turbo/jsonrpc/receipts"
	"github.com/erigontech/erigon-middleware/turbo/rpchelper"
	"github.com/erigontech/erigon-middleware/turbo/stages/mock"
)

// fakeExecutor charges a fixed amount of gas per transaction and emits logsPerTx logs for each.
type fakeExecutor struct {
	gas       []uint64
	logsPerTx int
	calls     int
}

func (f *fakeExecutor) Execute(context.Context, *state.IntraBlockState, *types.Header, *params.ChainConfig,
	*gethcore.Message, vm.Config) (*core.ExecutionResult, error) {
	panic("not used")
}

func (f *fakeExecutor) ExecuteBlockUpTo(_ context.Context, _ *state.IntraBlockState, _ *types.Header, _ *params.ChainConfig,
	txs types.Transactions, _ []common.Address, stop func(i int) bool) (types.Receipts, error) {
	f.calls++
	var (
		out        types.Receipts
		cumulative uint64
	)
	for i, txn := range txs {
		cumulative += f.gas[i]
		r := &types.Receipt{Type: txn.Type(), Status: types.ReceiptStatusSuccessful, CumulativeGasUsed: cumulative, TxHash: txn.Hash()}
		for j := 0; j < f.logsPerTx; j++ {
			// block-wide numbering, the generator must make it local
			r.Logs = append(r.Logs, &types.Log{Address: common.HexToAddress("0xabcd"), Index: uint(i*f.logsPerTx + j)})
		}
		out = append(out, r)
		if stop(i) {
			break
		}
	}
	return out, nil
}

func newGenerator(t *testing.T, newExecutor receipts.ExecutorFactory) *receipts.Generator {
	cache, err := lru.New[common.Hash, types.Receipts](16)
	require.NoError(t, err)
	return receipts.NewGenerator(cache, nil, newExecutor)
}

func threeTransfers(m *mock.MockChain) *types.Block {
	to := common.HexToAddress("0x1234")
	return m.AppendBlock(mock.BlockGen{Txs: []types.Transaction{
		m.Transfer(0, to, 1), m.Transfer(1, to, 2), m.Transfer(2, to, 3),
	}})
}

func TestGetReceiptGasUsed(t *testing.T) {
	t.Parallel()
	m := mock.Mock(t)
	block := threeTransfers(m)
	fake := &fakeExecutor{gas: []uint64{21000, 50000, 30000}, logsPerTx: 2}
	g := newGenerator(t, func(kv.Getter) core.Executor { return fake })

	tx, err := m.DB.BeginRo(context.Background())
	require.NoError(t, err)
	defer tx.Rollback()

	txn := block.Transactions()[1]
	receipt, err := g.GetReceipt(context.Background(), tx, txn.Hash())
	require.NoError(t, err)
	require.NotNil(t, receipt)
	require.Equal(t, uint64(71000), receipt.CumulativeGasUsed)
	require.Equal(t, uint64(50000), receipt.GasUsed)
	require.Equal(t, txn.Hash(), receipt.TxHash)
	require.Equal(t, block.Hash(), receipt.BlockHash)
	require.Equal(t, uint64(1), receipt.BlockNumber)
	require.Equal(t, uint(1), receipt.TransactionIndex)
	require.Equal(t, m.Address, receipt.From)
	require.Equal(t, common.HexToAddress("0x1234"), *receipt.To)
	require.Equal(t, common.Address{}, receipt.ContractAddress)
	require.Equal(t, uint256.NewInt(1), receipt.EffectiveGasPrice)
	require.Len(t, receipt.Logs, 2)
	for i, l := range receipt.Logs {
		require.Equal(t, uint(i), l.Index, "log index is local to the receipt")
		require.Equal(t, txn.Hash(), l.TxHash)
		require.Equal(t, uint(1), l.TxIndex)
	}
	require.Equal(t, types.LogsBloom(receipt.Logs), receipt.Bloom)

	all, err := g.GetReceipts(context.Background(), tx, 1, block.Hash())
	require.NoError(t, err)
	require.Len(t, all, 3)
	var sum uint64
	for i, r := range all {
		sum += r.GasUsed
		if i > 0 {
			require.GreaterOrEqual(t, r.CumulativeGasUsed, all[i-1].CumulativeGasUsed)
		}
	}
	require.Equal(t, all[2].CumulativeGasUsed, sum)

	calls := fake.calls
	receipt, err = g.GetReceipt(context.Background(), tx, block.Transactions()[0].Hash())
	require.NoError(t, err)
	require.Equal(t, uint64(21000), receipt.GasUsed)
	require.Equal(t, calls, fake.calls, "full block receipts are cached")
}

func TestGetReceiptAbsent(t *testing.T) {
	t.Parallel()
	m := mock.Mock(t)
	threeTransfers(m)
	side := m.AppendSideBlock(m.Genesis, mock.BlockGen{Txs: []types.Transaction{m.Transfer(7, common.Address{}, 1)}})
	require.NotEqual(t, m.CanonicalBlock(1).Hash(), side.Hash())
	ahead := m.Transfer(8, common.Address{}, 1)
	require.NoError(t, m.DB.Update(context.Background(), func(rw kv.RwTx) error {
		// indexed at height 1, but the canonical block 1 is a different one
		if err := rawdb.WriteTxLookupEntries(rw, side); err != nil {
			return err
		}
		// indexed at a height without canonical block
		return rw.Put(kv.TxLookup, ahead.Hash().Bytes(), []byte{9})
	}))
	g := newGenerator(t, nil)

	tx, err := m.DB.BeginRo(context.Background())
	require.NoError(t, err)
	defer tx.Rollback()

	receipt, err := g.GetReceipt(context.Background(), tx, common.HexToHash("0xdead"))
	require.NoError(t, err)
	require.Nil(t, receipt)

	_, err = g.GetReceipt(context.Background(), tx, side.Transactions()[0].Hash())
	require.ErrorIs(t, err, rpchelper.ErrInconsistency)
	_, err = g.GetReceipt(context.Background(), tx, ahead.Hash())
	require.ErrorIs(t, err, rpchelper.ErrInconsistency)

	all, err := g.GetReceipts(context.Background(), tx, 5, common.HexToHash("0xbeef"))
	require.NoError(t, err)
	require.Nil(t, all)

	all, err = g.GetReceipts(context.Background(), tx, 0, m.Genesis.Hash())
	require.NoError(t, err)
	require.Empty(t, all)
}

func TestGetReceiptMissingChainConfig(t *testing.T) {
	t.Parallel()
	m := mock.Mock(t)
	block := threeTransfers(m)
	require.NoError(t, m.DB.Update(context.Background(), func(rw kv.RwTx) error {
		return rw.Delete(kv.ConfigTable, m.Genesis.Hash().Bytes())
	}))
	g := newGenerator(t, nil)

	tx, err := m.DB.BeginRo(context.Background())
	require.NoError(t, err)
	defer tx.Rollback()
	_, err = g.GetReceipt(context.Background(), tx, block.Transactions()[0].Hash())
	require.ErrorIs(t, err, rpchelper.ErrChainSpecMissing)
	require.ErrorIs(t, err, rpchelper.ErrNotFound)
}

func TestGetReceiptEVM(t *testing.T) {
	t.Parallel()
	m := mock.Mock(t)
	to := common.HexToAddress("0x1234")
	// PUSH1 42 PUSH1 0 MSTORE PUSH1 32 PUSH1 0 RETURN
	initCode := hexutil.MustDecode("0x602a60005260206000f3")
	block := m.AppendBlock(mock.BlockGen{Txs: []types.Transaction{
		m.Transfer(0, to, 100),
		m.Create(1, 200_000, initCode),
	}})
	g := newGenerator(t, nil)

	tx, err := m.DB.BeginRo(context.Background())
	require.NoError(t, err)
	defer tx.Rollback()

	transfer, err := g.GetReceipt(context.Background(), tx, block.Transactions()[0].Hash())
	require.NoError(t, err)
	require.Equal(t, types.ReceiptStatusSuccessful, transfer.Status)
	require.Equal(t, params.TxGas, transfer.GasUsed)
	require.Equal(t, params.TxGas, transfer.CumulativeGasUsed)

	create, err := g.GetReceipt(context.Background(), tx, block.Transactions()[1].Hash())
	require.NoError(t, err)
	require.Equal(t, types.ReceiptStatusSuccessful, create.Status)
	require.Nil(t, create.To)
	require.Equal(t, crypto.CreateAddress(m.Address, 1), create.ContractAddress)
	require.Equal(t, create.CumulativeGasUsed-params.TxGas, create.GasUsed)
	require.Greater(t, create.GasUsed, params.TxGasContractCreation)
}
