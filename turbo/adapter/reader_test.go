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

package adapter_test

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/erigontech/erigon-middleware/core/state"
	"github.com/erigontech/erigon-middleware/db/kv"
	"github.com/erigontech/erigon-middleware/execution/types/accounts"
	"github.com/erigontech/erigon-middleware/turbo/adapter"
	"github.com/erigontech/erigon-middleware/turbo/rpchelper"
	"github.com/erigontech/erigon-middleware/turbo/stages/mock"
)

func TestStateReader(t *testing.T) {
	t.Parallel()
	m := mock.Mock(t)
	contract := common.HexToAddress("0xc0de")
	broken := common.HexToAddress("0xbad")
	code := []byte{0x60, 0x00}
	slot := common.HexToHash("0x01")

	m.AppendBlock(mock.BlockGen{StateChanges: func(w *state.PlainStateWriter) error {
		acc := accounts.NewAccount()
		acc.Nonce = 1
		acc.CodeHash = crypto.Keccak256Hash(code)
		if err := w.UpdateAccountCode(contract, acc.CodeHash, code); err != nil {
			return err
		}
		if err := w.UpdateAccountData(contract, nil, &acc); err != nil {
			return err
		}
		if err := w.WriteAccountStorage(contract, slot, nil, uint256.NewInt(0xff)); err != nil {
			return err
		}
		missing := accounts.NewAccount()
		missing.CodeHash = common.HexToHash("0x1234")
		return w.UpdateAccountData(broken, nil, &missing)
	}})

	tx, err := m.DB.BeginRo(context.Background())
	require.NoError(t, err)
	defer tx.Rollback()

	before := adapter.NewStateReader(tx, 0)
	balance, err := before.GetBalance(m.Address)
	require.NoError(t, err)
	require.Equal(t, "1000000000000000000", balance.Dec())
	nonce, err := before.GetNonce(contract)
	require.NoError(t, err)
	require.Zero(t, nonce)
	c, err := before.GetCode(contract)
	require.NoError(t, err)
	require.Empty(t, c)
	v, err := before.GetStorageAt(contract, slot)
	require.NoError(t, err)
	require.Equal(t, common.Hash{}, v)

	after := adapter.NewStateReader(tx, 1)
	nonce, err = after.GetNonce(contract)
	require.NoError(t, err)
	require.Equal(t, uint64(1), nonce)
	c, err = after.GetCode(contract)
	require.NoError(t, err)
	require.Equal(t, code, c)
	v, err = after.GetStorageAt(contract, slot)
	require.NoError(t, err)
	require.Equal(t, common.BigToHash(uint256.NewInt(0xff).ToBig()), v)
	balance, err = after.GetBalance(common.HexToAddress("0x0404"))
	require.NoError(t, err)
	require.True(t, balance.IsZero())

	_, err = after.GetCode(broken)
	require.ErrorIs(t, err, rpchelper.ErrInconsistency)
}

func TestStateReaderEmptyDB(t *testing.T) {
	t.Parallel()
	m := mock.Mock(t)
	require.NoError(t, m.DB.View(context.Background(), func(tx kv.Tx) error {
		r := adapter.NewStateReader(tx, 100)
		code, err := r.GetCode(common.HexToAddress("0x01"))
		require.Nil(t, code)
		return err
	}))
}
