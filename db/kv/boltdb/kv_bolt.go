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
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/ledgerwatch/log/v3"
	bolt "go.etcd.io/bbolt"
	"golang.org/x/sync/semaphore"

	"github.com/erigontech/erigon-middleware/db/kv"
)

const FileName = "chaindata.db"

type BoltOpts struct {
	path      string
	readOnly  bool
	mapSize   datasize.ByteSize
	timeout   time.Duration
	roTxLimit int64
	noSync    bool
	log       log.Logger
}

func New(logger log.Logger) BoltOpts {
	return BoltOpts{
		timeout:   time.Second,
		roTxLimit: int64(runtime.GOMAXPROCS(-1)) * 16,
		log:       logger,
	}
}

func (opts BoltOpts) Path(path string) BoltOpts {
	opts.path = path
	return opts
}

func (opts BoltOpts) Readonly() BoltOpts {
	opts.readOnly = true
	return opts
}

// MapSize is the initial mmap size. Readers opened while the file grows past it block the writer's remap.
func (opts BoltOpts) MapSize(sz datasize.ByteSize) BoltOpts {
	opts.mapSize = sz
	return opts
}

func (opts BoltOpts) RoTxsLimiter(limit int64) BoltOpts {
	opts.roTxLimit = limit
	return opts
}

func (opts BoltOpts) Timeout(d time.Duration) BoltOpts {
	opts.timeout = d
	return opts
}

// NoSync skips fsync on commit. Only for tests.
func (opts BoltOpts) NoSync() BoltOpts {
	opts.noSync = true
	return opts
}

func (opts BoltOpts) Open() (kv.RwDB, error) {
	if opts.path == "" {
		return nil, errors.New("boltdb: path is not set")
	}
	if opts.log == nil {
		opts.log = log.New()
	}
	opts.log = opts.log.New("db", filepath.Base(opts.path))
	if opts.mapSize == 0 {
		opts.mapSize = 256 * datasize.MB
	}
	if opts.roTxLimit <= 0 {
		opts.roTxLimit = 1
	}

	file := opts.path
	if fi, err := os.Stat(opts.path); err == nil && fi.IsDir() {
		file = filepath.Join(opts.path, FileName)
	} else if errors.Is(err, os.ErrNotExist) && !opts.readOnly {
		if err = os.MkdirAll(opts.path, 0755); err != nil {
			return nil, err
		}
		file = filepath.Join(opts.path, FileName)
	}

	env, err := bolt.Open(file, 0644, &bolt.Options{
		Timeout:         opts.timeout,
		ReadOnly:        opts.readOnly,
		InitialMmapSize: int(opts.mapSize.Bytes()),
		NoSync:          opts.noSync,
		FreelistType:    bolt.FreelistMapType,
	})
	if err != nil {
		return nil, fmt.Errorf("boltdb: open %s: %w", file, err)
	}

	db := &BoltKV{
		env:         env,
		log:         opts.log,
		opts:        opts,
		roTxsLimier: semaphore.NewWeighted(opts.roTxLimit),
	}
	if !opts.readOnly {
		if err = env.Update(func(tx *bolt.Tx) error {
			for _, name := range kv.ChaindataTables {
				if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
					return fmt.Errorf("create table %s: %w", name, err)
				}
			}
			return nil
		}); err != nil {
			env.Close()
			return nil, err
		}
	}
	db.log.Debug("database opened", "path", file, "readonly", opts.readOnly, "mmap", opts.mapSize)
	return db, nil
}

func (opts BoltOpts) MustOpen() kv.RwDB {
	db, err := opts.Open()
	if err != nil {
		panic(fmt.Errorf("fail to open boltdb: %w", err))
	}
	return db
}

type BoltKV struct {
	env         *bolt.DB
	log         log.Logger
	opts        BoltOpts
	wg          sync.WaitGroup
	closeOnce   sync.Once
	roTxsLimier *semaphore.Weighted
}

func (db *BoltKV) ReadOnly() bool { return db.opts.readOnly }

// Close closes db
// All transactions must be closed before closing the database.
func (db *BoltKV) Close() {
	db.closeOnce.Do(func() {
		db.wg.Wait()
		if err := db.env.Close(); err != nil {
			db.log.Warn("failed to close database", "err", err)
			return
		}
		db.log.Info("database closed (bolt)")
	})
}

func (db *BoltKV) BeginRo(ctx context.Context) (txn kv.Tx, err error) {
	if err := db.roTxsLimier.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("boltdb: read transactions limit: %w", err)
	}
	tx, err := db.env.Begin(false)
	if err != nil {
		db.roTxsLimier.Release(1)
		return nil, err
	}
	db.wg.Add(1)
	return &BoltTx{ctx: ctx, db: db, tx: tx, readOnly: true}, nil
}

func (db *BoltKV) BeginRw(ctx context.Context) (txn kv.RwTx, err error) {
	if db.opts.readOnly {
		return nil, errors.New("boltdb: database opened read-only")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tx, err := db.env.Begin(true)
	if err != nil {
		return nil, err
	}
	db.wg.Add(1)
	return &BoltTx{ctx: ctx, db: db, tx: tx}, nil
}

func (db *BoltKV) View(ctx context.Context, f func(tx kv.Tx) error) error {
	tx, err := db.BeginRo(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	return f(tx)
}

func (db *BoltKV) Update(ctx context.Context, f func(tx kv.RwTx) error) error {
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

type BoltTx struct {
	ctx      context.Context
	db       *BoltKV
	tx       *bolt.Tx
	readOnly bool
	closed   bool
}

func (tx *BoltTx) ViewID() uint64 { return uint64(tx.tx.ID()) }

// bucket returns nil for tables absent from a read-only opened file.
func (tx *BoltTx) bucket(table string) (*bolt.Bucket, error) {
	if tx.closed {
		return nil, errors.New("transaction already committed or rolled back")
	}
	if err := tx.ctx.Err(); err != nil {
		return nil, err
	}
	if !kv.IsKnownTable(table) {
		return nil, fmt.Errorf("%w: %s", kv.ErrUnknownTable, table)
	}
	return tx.tx.Bucket([]byte(table)), nil
}

func (tx *BoltTx) Has(table string, key []byte) (bool, error) {
	v, err := tx.GetOne(table, key)
	if err != nil {
		return false, err
	}
	return v != nil, nil
}

func (tx *BoltTx) GetOne(table string, key []byte) ([]byte, error) {
	b, err := tx.bucket(table)
	if err != nil || b == nil {
		return nil, err
	}
	return b.Get(key), nil
}

func (tx *BoltTx) ReadSequence(table string) (uint64, error) {
	b, err := tx.bucket(table)
	if err != nil || b == nil {
		return 0, err
	}
	return b.Sequence(), nil
}

func (tx *BoltTx) ForEach(table string, fromPrefix []byte, walker func(k, v []byte) error) error {
	c, err := tx.Cursor(table)
	if err != nil {
		return err
	}
	defer c.Close()
	for k, v, err := c.Seek(fromPrefix); k != nil; k, v, err = c.Next() {
		if err != nil {
			return err
		}
		if err := walker(k, v); err != nil {
			if errors.Is(err, kv.ErrStopIteration) {
				return nil
			}
			return err
		}
	}
	return nil
}

func (tx *BoltTx) Cursor(table string) (kv.Cursor, error) {
	b, err := tx.bucket(table)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return emptyCursor{}, nil
	}
	return &BoltCursor{tx: tx, c: b.Cursor()}, nil
}

func (tx *BoltTx) rwBucket(table string) (*bolt.Bucket, error) {
	if tx.readOnly {
		return nil, errors.New("write in read-only transaction")
	}
	b, err := tx.bucket(table)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, fmt.Errorf("%w: %s", kv.ErrUnknownTable, table)
	}
	return b, nil
}

func (tx *BoltTx) Put(table string, k, v []byte) error {
	b, err := tx.rwBucket(table)
	if err != nil {
		return err
	}
	if v == nil {
		v = []byte{}
	}
	return b.Put(k, v)
}

func (tx *BoltTx) Delete(table string, k []byte) error {
	b, err := tx.rwBucket(table)
	if err != nil {
		return err
	}
	return b.Delete(k)
}

func (tx *BoltTx) IncrementSequence(table string, amount uint64) (uint64, error) {
	b, err := tx.rwBucket(table)
	if err != nil {
		return 0, err
	}
	current := b.Sequence()
	if err := b.SetSequence(current + amount); err != nil {
		return 0, err
	}
	return current, nil
}

func (tx *BoltTx) Commit() error {
	if tx.closed {
		return errors.New("transaction already committed or rolled back")
	}
	if tx.readOnly {
		return errors.New("commit of read-only transaction")
	}
	tx.closed = true
	defer tx.db.wg.Done()
	return tx.tx.Commit()
}

func (tx *BoltTx) Rollback() {
	if tx.closed {
		return
	}
	tx.closed = true
	defer tx.db.wg.Done()
	if tx.readOnly {
		defer tx.db.roTxsLimier.Release(1)
	}
	if err := tx.tx.Rollback(); err != nil {
		tx.db.log.Warn("failed to rollback", "err", err)
	}
}

type BoltCursor struct {
	tx   *BoltTx
	c    *bolt.Cursor
	k, v []byte
}

func (c *BoltCursor) set(k, v []byte) ([]byte, []byte, error) {
	c.k, c.v = k, v
	if err := c.tx.ctx.Err(); err != nil {
		return []byte{}, nil, err
	}
	return k, v, nil
}

func (c *BoltCursor) First() ([]byte, []byte, error) { return c.set(c.c.First()) }
func (c *BoltCursor) Last() ([]byte, []byte, error)  { return c.set(c.c.Last()) }
func (c *BoltCursor) Next() ([]byte, []byte, error)  { return c.set(c.c.Next()) }
func (c *BoltCursor) Prev() ([]byte, []byte, error)  { return c.set(c.c.Prev()) }

func (c *BoltCursor) Seek(seek []byte) ([]byte, []byte, error) {
	return c.set(c.c.Seek(seek))
}

func (c *BoltCursor) SeekExact(key []byte) ([]byte, []byte, error) {
	k, v, err := c.set(c.c.Seek(key))
	if err != nil {
		return k, v, err
	}
	if string(k) != string(key) {
		return nil, nil, nil
	}
	return k, v, nil
}

func (c *BoltCursor) Current() ([]byte, []byte, error) { return c.k, c.v, nil }

func (c *BoltCursor) Close() {}

type emptyCursor struct{}

func (emptyCursor) First() ([]byte, []byte, error)          { return nil, nil, nil }
func (emptyCursor) Seek([]byte) ([]byte, []byte, error)      { return nil, nil, nil }
func (emptyCursor) SeekExact([]byte) ([]byte, []byte, error) { return nil, nil, nil }
func (emptyCursor) Next() ([]byte, []byte, error)           { return nil, nil, nil }
func (emptyCursor) Prev() ([]byte, []byte, error)           { return nil, nil, nil }
func (emptyCursor) Last() ([]byte, []byte, error)           { return nil, nil, nil }
func (emptyCursor) Current() ([]byte, []byte, error)        { return nil, nil, nil }
func (emptyCursor) Close()                                  {}
