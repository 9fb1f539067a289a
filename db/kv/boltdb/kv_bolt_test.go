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

package boltdb

import (
	"context"
	"testing"

	"github.com/c2h5oh/datasize"
	"github.com/ledgerwatch/log/v3"
	"github.com/stretchr/testify/require"

	"github.com/erigontech/erigon-middleware/db/kv"
)

func newTestDB(t *testing.T) kv.RwDB {
	t.Helper()
	db := New(log.New()).Path(t.TempDir()).MapSize(16 * datasize.MB).NoSync().MustOpen()
	t.Cleanup(db.Close)
	return db
}

func TestBoltPutGetSequence(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	require.NoError(t, db.Update(ctx, func(tx kv.RwTx) error {
		if err := tx.Put(kv.HeaderCanonical, []byte{0, 0, 0, 0, 0, 0, 0, 2}, []byte("two")); err != nil {
			return err
		}
		if err := tx.Put(kv.HeaderCanonical, []byte{0, 0, 0, 0, 0, 0, 0, 1}, []byte("one")); err != nil {
			return err
		}
		base, err := tx.IncrementSequence(kv.EthTx, 4)
		require.Equal(t, uint64(0), base)
		return err
	}))

	require.NoError(t, db.View(ctx, func(tx kv.Tx) error {
		seq, err := tx.ReadSequence(kv.EthTx)
		require.NoError(t, err)
		require.Equal(t, uint64(4), seq)

		c, err := tx.Cursor(kv.HeaderCanonical)
		require.NoError(t, err)
		defer c.Close()
		k, v, err := c.First()
		require.NoError(t, err)
		require.Equal(t, []byte{0, 0, 0, 0, 0, 0, 0, 1}, k)
		require.Equal(t, []byte("one"), v)
		k, _, err = c.SeekExact([]byte{0, 0, 0, 0, 0, 0, 0, 3})
		require.NoError(t, err)
		require.Nil(t, k)
		return nil
	}))
}

func TestBoltReadOnlyRejectsWrites(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	db := New(log.New()).Path(dir).NoSync().MustOpen()
	require.NoError(t, db.Update(ctx, func(tx kv.RwTx) error {
		return tx.Put(kv.Code, []byte("h"), []byte{0x60, 0x00})
	}))
	db.Close()

	ro := New(log.New()).Path(dir).Readonly().MustOpen()
	defer ro.Close()
	require.True(t, ro.ReadOnly())
	_, err := ro.BeginRw(ctx)
	require.Error(t, err)
	require.NoError(t, ro.View(ctx, func(tx kv.Tx) error {
		v, err := tx.GetOne(kv.Code, []byte("h"))
		require.Equal(t, []byte{0x60, 0x00}, v)
		return err
	}))
}

func TestBoltCanceledContext(t *testing.T) {
	db := newTestDB(t)
	ctx, cancel := context.WithCancel(context.Background())
	tx, err := db.BeginRo(ctx)
	require.NoError(t, err)
	defer tx.Rollback()
	cancel()
	_, err = tx.GetOne(kv.Code, []byte("h"))
	require.ErrorIs(t, err, context.Canceled)
}
