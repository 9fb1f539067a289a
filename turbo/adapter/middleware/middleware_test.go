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

package middleware_test

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	gethcore "github.com/ethereum/go-ethereum/core"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/params"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/erigontech/erigon-middleware/cmd/rpcdaemon/commands"
	"github.com/erigontech/erigon-middleware/core/state"
	"github.com/erigontech/erigon-middleware/db/kv"
	"github.com/erigontech/erigon-middleware/db/rawdb"
	"github.com/erigontech/erigon-middleware/execution/types"
	"github.com/erigontech/erigon-middleware/turbo/adapter/middleware"
	"github.com/erigontech/erigon-middleware/turbo/rpchelper"
	"github.com/erigontech/erigon-middleware/turbo/stages/mock"
	"github.com/erigontech/erigon-middleware/turbo/transactions"
)

var (
	// PUSH1 0 SLOAD PUSH1 0 MSTORE PUSH1 32 PUSH1 0 RETURN
	sloadCode = hexutil.MustDecode("0x60005460005260206000f3")
	// PUSH1 42 PUSH1 0 MSTORE PUSH1 32 PUSH1 0 REVERT
	revertCode = hexutil.MustDecode("0x602a60005260206000fd")

	sloadAddr  = common.HexToAddress("0x5100")
	revertAddr = common.HexToAddress("0xfd00")
	bob        = common.HexToAddress("0xb0b")
)

func newMiddleware(t *testing.T) (*middleware.Middleware, *mock.MockChain, []types.Transaction, *types.Header) {
	key, _ := crypto.HexToECDSA("b71c71a67e1177ad4e901695e1b4b9ee17ae16c6668d313eac2f96dbcda3f291")
	gspec := &gethcore.Genesis{
		Config:   params.AllEthashProtocolChanges,
		GasLimit: 30_000_000,
		Alloc: gethtypes.GenesisAlloc{
			crypto.PubkeyToAddress(key.PublicKey): {Balance: big.NewInt(params.Ether)},
			sloadAddr:  {Code: sloadCode, Balance: new(big.Int), Storage: map[common.Hash]common.Hash{{}: common.BigToHash(big.NewInt(1))}},
			revertAddr: {Code: revertCode, Balance: new(big.Int)},
		},
	}
	m := mock.MockWithGenesis(t, gspec, key)
	txs := []types.Transaction{m.Transfer(0, bob, 1), m.Transfer(1, bob, 2), m.Create(2, 100_000, sloadCode)}
	m.AppendBlock(mock.BlockGen{Txs: txs})
	uncle := &types.Header{ParentHash: m.Genesis.Hash(), Number: 1, Difficulty: uint256.NewInt(1), GasLimit: 30_000_000, Extra: []byte("uncle")}
	m.AppendBlock(mock.BlockGen{Uncles: []*types.Header{uncle}, StateChanges: func(w *state.PlainStateWriter) error {
		return w.WriteAccountStorage(sloadAddr, common.Hash{}, uint256.NewInt(1), uint256.NewInt(2))
	}})

	base := commands.NewBaseApi(m.DB, 16, transactions.DefaultCallTimeout, nil)
	return middleware.New(m.DB, base, 0, m.Log), m, txs, uncle
}

func TestChainState(t *testing.T) {
	t.Parallel()
	mw, m, _, _ := newMiddleware(t)
	ctx := context.Background()

	n, err := mw.BlockNumber(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(2), n)

	id, err := mw.ChainID(ctx)
	require.NoError(t, err)
	require.Equal(t, params.AllEthashProtocolChanges.ChainID, id)

	balance, err := mw.BalanceAt(ctx, m.Address, nil)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(params.Ether), balance)

	balance, err = mw.BalanceAt(ctx, m.Address, big.NewInt(10))
	require.NoError(t, err)
	require.Nil(t, balance)

	for n, want := range map[int64]int64{1: 1, 2: 2} {
		value, err := mw.StorageAt(ctx, sloadAddr, common.Hash{}, big.NewInt(n))
		require.NoError(t, err)
		require.Equal(t, common.BigToHash(big.NewInt(want)).Bytes(), value)
	}

	code, err := mw.CodeAt(ctx, sloadAddr, big.NewInt(-5))
	require.NoError(t, err)
	require.Equal(t, sloadCode, code)

	nonce, err := mw.NonceAt(ctx, m.Address, nil)
	require.NoError(t, err)
	require.Equal(t, uint64(0), nonce)

	_, err = mw.NonceAt(ctx, m.Address, big.NewInt(10))
	require.ErrorIs(t, err, rpchelper.ErrNotFound)

	_, err = mw.BalanceAt(ctx, m.Address, big.NewInt(-6))
	require.ErrorIs(t, err, rpchelper.ErrConversion)
}

func TestCallContract(t *testing.T) {
	t.Parallel()
	mw, m, _, _ := newMiddleware(t)
	ctx := context.Background()

	out, err := mw.CallContract(ctx, ethereum.CallMsg{To: &sloadAddr}, big.NewInt(1))
	require.NoError(t, err)
	require.Equal(t, common.BigToHash(big.NewInt(1)).Bytes(), out)

	_, err = mw.CallContract(ctx, ethereum.CallMsg{To: &revertAddr}, nil)
	require.True(t, middleware.IsRevert(err))

	_, err = mw.CallContract(ctx, ethereum.CallMsg{}, nil)
	require.ErrorIs(t, err, rpchelper.ErrConversion)

	gas, err := mw.EstimateGas(ctx, ethereum.CallMsg{From: m.Address, To: &bob, Value: big.NewInt(1)})
	require.NoError(t, err)
	require.Equal(t, params.TxGas, gas)
}

func TestTransactionsAndReceipts(t *testing.T) {
	t.Parallel()
	mw, m, txs, _ := newMiddleware(t)
	ctx := context.Background()

	txn, pending, err := mw.TransactionByHash(ctx, txs[1].Hash())
	require.NoError(t, err)
	require.False(t, pending)
	require.Equal(t, txs[1].Hash(), txn.Hash())
	require.Equal(t, uint64(1), txn.Nonce())

	txn, _, err = mw.TransactionByHash(ctx, common.HexToHash("0xdead"))
	require.NoError(t, err)
	require.Nil(t, txn)

	receipt, err := mw.TransactionReceipt(ctx, txs[1].Hash())
	require.NoError(t, err)
	require.Equal(t, gethtypes.ReceiptStatusSuccessful, receipt.Status)
	require.Equal(t, uint64(42000), receipt.CumulativeGasUsed)
	require.Equal(t, uint64(21000), receipt.GasUsed)
	require.Equal(t, m.CanonicalBlock(1).Hash(), receipt.BlockHash)

	receipt, err = mw.TransactionReceipt(ctx, txs[2].Hash())
	require.NoError(t, err)
	require.Equal(t, crypto.CreateAddress(m.Address, 2), receipt.ContractAddress)

	receipt, err = mw.TransactionReceipt(ctx, common.HexToHash("0xdead"))
	require.NoError(t, err)
	require.Nil(t, receipt)
}

func TestBlocksAndUncles(t *testing.T) {
	t.Parallel()
	mw, m, txs, uncle := newMiddleware(t)
	ctx := context.Background()

	block, err := mw.BlockByNumber(ctx, big.NewInt(1))
	require.NoError(t, err)
	require.Equal(t, m.CanonicalBlock(1).Hash(), block.Hash())
	require.Len(t, block.Transactions(), len(txs))
	require.Equal(t, txs[0].Hash(), block.Transactions()[0].Hash())

	block, err = mw.BlockByHash(ctx, m.Head().Hash())
	require.NoError(t, err)
	require.Equal(t, uint64(2), block.NumberU64())

	block, err = mw.BlockByNumber(ctx, big.NewInt(10))
	require.NoError(t, err)
	require.Nil(t, block)

	header, err := mw.HeaderByNumber(ctx, nil)
	require.NoError(t, err)
	require.Equal(t, m.Head().Hash(), header.Hash())

	header, err = mw.HeaderByHash(ctx, common.HexToHash("0x01"))
	require.NoError(t, err)
	require.Nil(t, header)

	count, err := mw.UncleCountAt(ctx, big.NewInt(2))
	require.NoError(t, err)
	require.Equal(t, uint64(1), count)

	u, err := mw.UncleAt(ctx, big.NewInt(2), 0)
	require.NoError(t, err)
	require.Equal(t, uncle.Hash(), u.Hash())

	u, err = mw.UncleAt(ctx, big.NewInt(2), 1)
	require.NoError(t, err)
	require.Nil(t, u)
}

func TestTransactionByHashBrokenLookupIndex(t *testing.T) {
	t.Parallel()
	mw, m, _, _ := newMiddleware(t)
	ctx := context.Background()

	side := m.AppendSideBlock(m.Genesis, mock.BlockGen{Extra: []byte("side"), Txs: []types.Transaction{m.Transfer(9, bob, 9)}})
	require.NoError(t, m.DB.Update(ctx, func(tx kv.RwTx) error {
		return rawdb.WriteTxLookupEntries(tx, side)
	}))

	txn, pending, err := mw.TransactionByHash(ctx, side.Transactions()[0].Hash())
	require.ErrorIs(t, err, rpchelper.ErrInconsistency)
	require.Nil(t, txn)
	require.False(t, pending)

	receipt, err := mw.TransactionReceipt(ctx, side.Transactions()[0].Hash())
	require.ErrorIs(t, err, rpchelper.ErrInconsistency)
	require.Nil(t, receipt)
}
