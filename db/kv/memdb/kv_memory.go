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

package memdb

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ledgerwatch/log/v3"
	"github.com/tidwall/btree"

	"github.com/erigontech/erigon-middleware/db/kv"
)

const degree = 32

type table = btree.Map[string, []byte]

// MemoryKV is an in-memory kv.RwDB. Every transaction works on copy-on-write
// clones of the tables, so readers keep their snapshot while a writer commits.
type MemoryKV struct {
	mu     sync.Mutex // guards tables and viewID
	tables map[string]*table
	viewID uint64

	writer sync.Mutex // single writer
	closed atomic.Bool
	log    log.Logger
}

func NewMemoryKV(logger log.Logger) *MemoryKV {
	db := &MemoryKV{tables: make(map[string]*table, len(kv.ChaindataTables)), log: logger}
	for _, name := range kv.ChaindataTables {
		db.tables[name] = btree.NewMap[string, []byte](degree)
	}
	return db
}

func (db *MemoryKV) ReadOnly() bool { return false }

func (db *MemoryKV) Close() {
	if db.closed.CompareAndSwap(false, true) {
		db.log.Trace("in-memory database closed")
	}
}

// snapshot clones all tables. Copy mutates the source's isolation id, so it runs under the lock.
func (db *MemoryKV) snapshot() (map[string]*table, uint64) {
	db.mu.Lock()
	defer db.mu.Unlock()
	tables := make(map[string]*table, len(db.tables))
	for name, t := range db.tables {
		tables[name] = t.Copy()
	}
	return tables, db.viewID
}

func (db *MemoryKV) BeginRo(ctx context.Context) (kv.Tx, error) {
	if db.closed.Load() {
		return nil, kv.ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tables, id := db.snapshot()
	return &memTx{ctx: ctx, db: db, tables: tables, id: id}, nil
}

func (db *MemoryKV) BeginRw(ctx context.Context) (kv.RwTx, error) {
	if db.closed.Load() {
		return nil, kv.ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	db.writer.Lock()
	tables, id := db.snapshot()
	return &memTx{ctx: ctx, db: db, tables: tables, id: id + 1, rw: true}, nil
}

func (db *MemoryKV) View(ctx context.Context, f func(tx kv.Tx) error) error {
	tx, err := db.BeginRo(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	return f(tx)
}

func (db *MemoryKV) Update(ctx context.Context, f func(tx kv.RwTx) error) error {
	tx, err := db.BeginRw(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err = f(tx); err != nil {
		return err
	}
	return tx.Commit()
}

type memTx struct {
	ctx    context.Context
	db     *MemoryKV
	tables map[string]*table
	id     uint64
	rw     bool
	done   bool
}

func (tx *memTx) ViewID() uint64 { return tx.id }

func (tx *memTx) table(name string) (*table, error) {
	if tx.done {
		return nil, errors.New("transaction already committed or rolled back")
	}
	if err := tx.ctx.Err(); err != nil {
		return nil, err
	}
	t, ok := tx.tables[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", kv.ErrUnknownTable, name)
	}
	return t, nil
}

func (tx *memTx) Has(table string, key []byte) (bool, error) {
	t, err := tx.table(table)
	if err != nil {
		return false, err
	}
	_, ok := t.Get(string(key))
	return ok, nil
}

func (tx *memTx) GetOne(table string, key []byte) ([]byte, error) {
	t, err := tx.table(table)
	if err != nil {
		return nil, err
	}
	v, ok := t.Get(string(key))
	if !ok {
		return nil, nil
	}
	return v, nil
}

func (tx *memTx) ReadSequence(table string) (uint64, error) {
	v, err := tx.GetOne(kv.Sequence, []byte(table))
	if err != nil {
		return 0, err
	}
	if len(v) == 0 {
		return 0, nil
	}
	return binary.BigEndian.Uint64(v), nil
}

func (tx *memTx) ForEach(table string, fromPrefix []byte, walker func(k, v []byte) error) error {
	t, err := tx.table(table)
	if err != nil {
		return err
	}
	if tx.rw {
		// walker may write into the same table
		t = t.Copy()
	}
	var walkErr error
	t.Ascend(string(fromPrefix), func(k string, v []byte) bool {
		walkErr = walker([]byte(k), v)
		return walkErr == nil
	})
	if errors.Is(walkErr, kv.ErrStopIteration) {
		return nil
	}
	return walkErr
}

func (tx *memTx) Cursor(table string) (kv.Cursor, error) {
	t, err := tx.table(table)
	if err != nil {
		return nil, err
	}
	if tx.rw {
		t = t.Copy()
	}
	return &memCursor{it: t.Iter()}, nil
}

func (tx *memTx) Put(table string, k, v []byte) error {
	if !tx.rw {
		return errors.New("put in read-only transaction")
	}
	t, err := tx.table(table)
	if err != nil {
		return err
	}
	t.Set(string(k), append([]byte{}, v...))
	return nil
}

func (tx *memTx) Delete(table string, k []byte) error {
	if !tx.rw {
		return errors.New("delete in read-only transaction")
	}
	t, err := tx.table(table)
	if err != nil {
		return err
	}
	t.Delete(string(k))
	return nil
}

func (tx *memTx) IncrementSequence(table string, amount uint64) (uint64, error) {
	current, err := tx.ReadSequence(table)
	if err != nil {
		return 0, err
	}
	next := make([]byte, 8)
	binary.BigEndian.PutUint64(next, current+amount)
	if err = tx.Put(kv.Sequence, []byte(table), next); err != nil {
		return 0, err
	}
	return current, nil
}

func (tx *memTx) Commit() error {
	if !tx.rw {
		return errors.New("commit of read-only transaction")
	}
	if tx.done {
		return errors.New("transaction already committed or rolled back")
	}
	tx.db.mu.Lock()
	tx.db.tables = tx.tables
	tx.db.viewID = tx.id
	tx.db.mu.Unlock()
	tx.release()
	return nil
}

func (tx *memTx) Rollback() {
	if tx.done {
		return
	}
	tx.release()
}

func (tx *memTx) release() {
	tx.done = true
	tx.tables = nil
	if tx.rw {
		tx.db.writer.Unlock()
	}
}

type memCursor struct {
	it    btree.MapIter[string, []byte]
	valid bool
}

func (c *memCursor) current() ([]byte, []byte, error) {
	if !c.valid {
		return nil, nil, nil
	}
	return []byte(c.it.Key()), c.it.Value(), nil
}

func (c *memCursor) First() ([]byte, []byte, error) {
	c.valid = c.it.First()
	return c.current()
}

func (c *memCursor) Last() ([]byte, []byte, error) {
	c.valid = c.it.Last()
	return c.current()
}

func (c *memCursor) Seek(seek []byte) ([]byte, []byte, error) {
	c.valid = c.it.Seek(string(seek))
	return c.current()
}

func (c *memCursor) SeekExact(key []byte) ([]byte, []byte, error) {
	c.valid = c.it.Seek(string(key))
	if c.valid && c.it.Key() != string(key) {
		return nil, nil, nil
	}
	return c.current()
}

func (c *memCursor) Next() ([]byte, []byte, error) {
	if !c.valid {
		return nil, nil, nil
	}
	c.valid = c.it.Next()
	return c.current()
}

func (c *memCursor) Prev() ([]byte, []byte, error) {
	if !c.valid {
		return nil, nil, nil
	}
	c.valid = c.it.Prev()
	return c.current()
}

func (c *memCursor) Current() ([]byte, []byte, error) { return c.current() }

func (c *memCursor) Close() { c.valid = false }
