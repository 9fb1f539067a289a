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

package state

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/tracing"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/erigontech/erigon-middleware/db/kv"
	"github.com/erigontech/erigon-middleware/db/kv/memdb"
	"github.com/erigontech/erigon-middleware/execution/types/accounts"
)

var (
	addrA = common.HexToAddress("0xaaaa")
	addrB = common.HexToAddress("0xbbbb")
	slot1 = common.HexToHash("0x01")
)

func account(nonce, balance uint64) *accounts.Account {
	a := accounts.NewAccount()
	a.Nonce = nonce
	a.Balance.SetUint64(balance)
	return &a
}

// writeBlocks seeds: block 1 creates A (nonce 1, balance 100) with slot1=7,
// block 3 bumps A to nonce 2 / balance 50 and clears slot1, block 4 creates B.
func writeBlocks(t *testing.T, tx kv.RwTx) {
	t.Helper()
	w := NewPlainStateWriter(tx, 1)
	require.NoError(t, w.UpdateAccountData(addrA, nil, account(1, 100)))
	require.NoError(t, w.WriteAccountStorage(addrA, slot1, nil, uint256.NewInt(7)))

	w = NewPlainStateWriter(tx, 3)
	require.NoError(t, w.UpdateAccountData(addrA, nil, account(2, 60)))
	// second write in the same block must not overwrite the "before" value
	require.NoError(t, w.UpdateAccountData(addrA, nil, account(2, 50)))
	require.NoError(t, w.WriteAccountStorage(addrA, slot1, nil, uint256.NewInt(0)))

	w = NewPlainStateWriter(tx, 4)
	require.NoError(t, w.UpdateAccountData(addrB, nil, account(0, 1)))
}

func TestHistoryReader(t *testing.T) {
	t.Parallel()
	_, tx := memdb.NewTestTx(t)
	writeBlocks(t, tx)

	tests := []struct {
		block   uint64
		exists  bool
		nonce   uint64
		balance uint64
		slot    []byte
		bExists bool
	}{
		{block: 0},
		{block: 1, exists: true, nonce: 1, balance: 100, slot: []byte{7}},
		{block: 2, exists: true, nonce: 1, balance: 100, slot: []byte{7}},
		{block: 3, exists: true, nonce: 2, balance: 50},
		{block: 4, exists: true, nonce: 2, balance: 50, bExists: true},
		{block: 100, exists: true, nonce: 2, balance: 50, bExists: true},
	}
	for _, tt := range tests {
		r := NewHistoryReader(tx, tt.block)
		a, err := r.ReadAccountData(addrA)
		require.NoError(t, err)
		if !tt.exists {
			require.Nil(t, a, "block %d", tt.block)
		} else {
			require.NotNil(t, a, "block %d", tt.block)
			require.Equal(t, tt.nonce, a.Nonce, "block %d", tt.block)
			require.Equal(t, tt.balance, a.Balance.Uint64(), "block %d", tt.block)
		}
		v, err := r.ReadAccountStorage(addrA, slot1)
		require.NoError(t, err)
		require.Equal(t, tt.slot, v, "block %d", tt.block)

		b, err := r.ReadAccountData(addrB)
		require.NoError(t, err)
		require.Equal(t, tt.bExists, b != nil, "block %d", tt.block)
	}
}

func TestHistoryReaderCode(t *testing.T) {
	t.Parallel()
	_, tx := memdb.NewTestTx(t)
	code := []byte{0x60, 0x01}
	codeHash := crypto.Keccak256Hash(code)
	w := NewPlainStateWriter(tx, 1)
	require.NoError(t, w.UpdateAccountCode(addrA, codeHash, code))

	cache, err := lru.New[common.Hash, []byte](16)
	require.NoError(t, err)
	r := NewHistoryReader(tx, 1)
	r.SetCodeCache(cache)

	got, err := r.ReadAccountCode(addrA, codeHash)
	require.NoError(t, err)
	require.Equal(t, code, got)
	require.True(t, cache.Contains(codeHash))
	size, err := r.ReadAccountCodeSize(addrA, codeHash)
	require.NoError(t, err)
	require.Equal(t, 2, size)

	missing, err := r.ReadAccountCode(addrA, common.HexToHash("0x1234"))
	require.NoError(t, err)
	require.Nil(t, missing)
}

func newTestState(t *testing.T, block uint64) *IntraBlockState {
	t.Helper()
	_, tx := memdb.NewTestTx(t)
	writeBlocks(t, tx)
	return New(NewHistoryReader(tx, block))
}

func TestIntraBlockStateReadsSnapshot(t *testing.T) {
	t.Parallel()
	ibs := newTestState(t, 2)
	require.True(t, ibs.Exist(addrA))
	require.False(t, ibs.Exist(addrB))
	require.Equal(t, uint64(1), ibs.GetNonce(addrA))
	require.Equal(t, uint64(100), ibs.GetBalance(addrA).Uint64())
	require.Equal(t, common.HexToHash("0x07"), ibs.GetState(addrA, slot1))
	require.NoError(t, ibs.Error())
}

func TestIntraBlockStateRevert(t *testing.T) {
	t.Parallel()
	ibs := newTestState(t, 2)

	snap := ibs.Snapshot()
	ibs.AddBalance(addrA, uint256.NewInt(5), tracing.BalanceChangeUnspecified)
	ibs.SetNonce(addrA, 9, tracing.NonceChangeUnspecified)
	prev := ibs.SetState(addrA, slot1, common.HexToHash("0x08"))
	require.Equal(t, common.HexToHash("0x07"), prev)
	ibs.SetCode(addrB, []byte{0x00})
	ibs.SetTransientState(addrA, slot1, common.HexToHash("0x02"))
	ibs.AddRefund(10)
	require.True(t, ibs.Exist(addrB))

	cur, committed := ibs.GetStateAndCommittedState(addrA, slot1)
	require.Equal(t, common.HexToHash("0x08"), cur)
	require.Equal(t, common.HexToHash("0x07"), committed)

	ibs.RevertToSnapshot(snap)
	require.Equal(t, uint64(100), ibs.GetBalance(addrA).Uint64())
	require.Equal(t, uint64(1), ibs.GetNonce(addrA))
	require.Equal(t, common.HexToHash("0x07"), ibs.GetState(addrA, slot1))
	require.Equal(t, common.Hash{}, ibs.GetTransientState(addrA, slot1))
	require.Zero(t, ibs.GetRefund())
	require.False(t, ibs.Exist(addrB))
	require.Panics(t, func() { ibs.RevertToSnapshot(snap) })
}

func TestIntraBlockStateFinalise(t *testing.T) {
	t.Parallel()
	ibs := newTestState(t, 2)

	// touched empty account is removed under EIP-158 rules
	ibs.AddBalance(addrB, new(uint256.Int), tracing.BalanceChangeUnspecified)
	ibs.SetState(addrA, slot1, common.HexToHash("0x09"))
	ibs.Finalise(true)
	require.False(t, ibs.Exist(addrB))

	_, committed := ibs.GetStateAndCommittedState(addrA, slot1)
	require.Equal(t, common.HexToHash("0x09"), committed)

	// self-destructed accounts disappear, re-created ones start with empty storage
	ibs.SelfDestruct(addrA)
	require.True(t, ibs.HasSelfDestructed(addrA))
	require.True(t, ibs.Exist(addrA))
	ibs.Finalise(true)
	require.False(t, ibs.Exist(addrA))

	ibs.CreateAccount(addrA)
	require.Equal(t, common.Hash{}, ibs.GetState(addrA, slot1))
	require.Zero(t, ibs.GetBalance(addrA).Uint64())
}

func TestSelfDestruct6780(t *testing.T) {
	t.Parallel()
	ibs := newTestState(t, 2)

	bal, destructed := ibs.SelfDestruct6780(addrA)
	require.False(t, destructed)
	require.Equal(t, uint64(100), bal.Uint64())

	ibs.CreateAccount(addrB)
	ibs.CreateContract(addrB)
	ibs.AddBalance(addrB, uint256.NewInt(3), tracing.BalanceChangeUnspecified)
	bal, destructed = ibs.SelfDestruct6780(addrB)
	require.True(t, destructed)
	require.Equal(t, uint64(3), bal.Uint64())
	require.Zero(t, ibs.GetBalance(addrB).Uint64())
}

func TestAccessListJournal(t *testing.T) {
	t.Parallel()
	ibs := newTestState(t, 2)

	snap := ibs.Snapshot()
	ibs.AddSlotToAccessList(addrA, slot1)
	require.True(t, ibs.AddressInAccessList(addrA))
	addrOk, slotOk := ibs.SlotInAccessList(addrA, slot1)
	require.True(t, addrOk)
	require.True(t, slotOk)

	ibs.RevertToSnapshot(snap)
	require.False(t, ibs.AddressInAccessList(addrA))
}

func TestLogsAreLocalToTransaction(t *testing.T) {
	t.Parallel()
	ibs := newTestState(t, 2)
	tx1, tx2 := common.HexToHash("0x01"), common.HexToHash("0x02")

	newLog := func() *gethtypes.Log {
		return &gethtypes.Log{Address: addrA, Topics: []common.Hash{slot1}, Data: []byte{1}}
	}

	ibs.SetTxContext(tx1, 0)
	ibs.AddLog(newLog())
	ibs.SetTxContext(tx2, 1)
	ibs.AddLog(newLog())
	ibs.AddLog(newLog())

	logs := ibs.GetLogs(tx2)
	require.Len(t, logs, 2)
	require.Equal(t, uint(0), logs[0].Index)
	require.Equal(t, uint(1), logs[1].Index)
	require.Equal(t, uint(1), logs[1].TxIndex)
	require.Len(t, ibs.GetLogs(tx1), 1)
}
