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

package mock_test

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/erigontech/erigon-middleware/db/kv"
	"github.com/erigontech/erigon-middleware/db/rawdb"
	"github.com/erigontech/erigon-middleware/execution/types"
	"github.com/erigontech/erigon-middleware/turbo/stages/mock"
)

func TestSideBlockKeepsCanonicalBody(t *testing.T) {
	t.Parallel()
	m := mock.Mock(t)
	bob := common.HexToAddress("0xb0b")

	canonical := m.AppendBlock(mock.BlockGen{Txs: []types.Transaction{m.Transfer(0, bob, 1)}})
	side := m.AppendSideBlock(m.Genesis, mock.BlockGen{Txs: []types.Transaction{m.Transfer(0, bob, 2)}})
	require.NotEqual(t, canonical.Hash(), side.Hash())
	require.NotEqual(t, canonical.HeaderNoCopy().TxHash, side.HeaderNoCopy().TxHash)

	require.NoError(t, m.DB.View(m.Ctx, func(tx kv.Tx) error {
		hash, err := rawdb.ReadCanonicalHash(tx, 1)
		require.NoError(t, err)
		require.Equal(t, canonical.Hash(), hash)

		body, err := rawdb.ReadBodyWithTransactions(tx, canonical.Hash(), 1)
		require.NoError(t, err)
		require.Len(t, body.Transactions, 1)
		require.Equal(t, canonical.Transactions()[0].Hash(), body.Transactions[0].Hash())

		body, err = rawdb.ReadBodyWithTransactions(tx, side.Hash(), 1)
		require.NoError(t, err)
		require.Len(t, body.Transactions, 1)
		require.Equal(t, side.Transactions()[0].Hash(), body.Transactions[0].Hash())
		return nil
	}))
}
