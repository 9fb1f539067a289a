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

package kv

import (
	"context"
	"errors"
)

/*
Naming:
 tx - Database Transaction
 txn - Ethereum Transaction
 blockNum - Ethereum block number - same across all nodes
 txID - auto-increment ID of a stored Ethereum transaction (key of EthTx table)
 RoTx - Read-Only Database Transaction. RwTx - read-write
 k, v - key, value
 Table - collection of key-value pairs. Keys are sorted and unique
 Cursor - low-level api to navigate over Table

Methods Naming:
 Get: exact match of criteria
 ForEach: walk [from, EndOfTable) until walker returns an error
 Prefix: `ForEach(Table, prefix, ...)` stopped at kv.NextSubtree(prefix)
*/

var (
	ErrClosed       = errors.New("db closed")
	ErrUnknownTable = errors.New("unknown table")
)

type Closer interface {
	Close()
}

/*
RoDB low-level interface - main target is - to provide common abstraction over on-disk and in-memory engines.
Warning: can't move `tx` between goroutines.
Lifetime: read data valid until end of transaction.
Example:

	tx, err := db.BeginRo(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback() // it's safe to Rollback after `tx.Commit()`

	... application logic using `tx`
*/
type RoDB interface {
	Closer
	ReadOnly() bool
	BeginRo(ctx context.Context) (Tx, error)

	// View like BeginRo but for short-living transactions. Example:
	//	 if err := db.View(ctx, func(tx kv.Tx) error {
	//	    ... code which uses database in transaction
	//	 }); err != nil {
	//			return err
	//	}
	View(ctx context.Context, f func(tx Tx) error) error
}

type RwDB interface {
	RoDB

	Update(ctx context.Context, f func(tx RwTx) error) error
	// BeginRw - creates transaction. Only one RwTx is alive at a time: BeginRw blocks until the previous
	// writer commits or rolls back. Readers are never blocked by the writer.
	BeginRw(ctx context.Context) (RwTx, error)
}

// Tx
// WARNING:
//   - Tx is not threadsafe and may only be used in the goroutine that created it
//   - Tx observes the state of the database at the moment it was opened
type Tx interface {
	Getter

	// Cursor - creates cursor object on top of given table.
	Cursor(table string) (Cursor, error)

	// ViewID returns the identifier of the snapshot being read.
	ViewID() uint64
}

// RwTx
//
// WARNING:
//   - RwTx is not threadsafe and may only be used in the goroutine that created it.
type RwTx interface {
	Tx
	Putter

	Commit() error // Commit all the operations of a transaction into the database.
}

/*
Cursor - low-level api to navigate through a db table
If methods (like First/Next/Seek) return error, then returned key SHOULD not be nil (can be []byte{} for example).
Exmaple iterate table:

	c := db.Cursor(tableName)
	defer c.Close()
	for k, v, err := c.First(); k != nil; k, v, err = c.Next() {
	   if err != nil {
		   return err
	   }
	   ... logic using `k` and `v` (key and value)
	}
*/
type Cursor interface {
	First() ([]byte, []byte, error)               // First - position at first key/data item
	Seek(seek []byte) ([]byte, []byte, error)     // Seek - position at first key greater than or equal to specified key
	SeekExact(key []byte) ([]byte, []byte, error) // SeekExact - position at exact matching key if exists
	Next() ([]byte, []byte, error)                // Next - position at next key/value
	Prev() ([]byte, []byte, error)                // Prev - position at previous key
	Last() ([]byte, []byte, error)                // Last - position at last key and last possible value
	Current() ([]byte, []byte, error)             // Current - return key/data at current cursor position

	Close()
}

type StatelessRwTx interface {
	Getter
	Putter
}

type Getter interface {
	// Has indicates whether a key exists in the database.
	Has(table string, key []byte) (bool, error)

	// GetOne references a readonly section of memory that must not be accessed after txn has terminated
	GetOne(table string, key []byte) (val []byte, err error)

	Rollback() // Rollback - abandon all the operations of the transaction instead of saving them.

	// ReadSequence - allows to create a linear sequence of unique positive integers for each table (AutoIncrement).
	// Sequence changes become visible outside the current write transaction after it is committed, and discarded on abort.
	// Starts from 0.
	ReadSequence(table string) (uint64, error)

	// ForEach iterates over entries with keys greater or equal to fromPrefix.
	// walker is called for each eligible entry.
	// If walker returns an error, iteration stops and the error is returned (ErrStopIteration is swallowed).
	ForEach(table string, fromPrefix []byte, walker func(k, v []byte) error) error
}

// Putter wraps the database write operations.
type Putter interface {
	// Put inserts or updates a single entry.
	Put(table string, k, v []byte) error

	// Delete removes a single entry.
	Delete(table string, k []byte) error

	/*
		IncrementSequence - AutoIncrement generator.
		Example reserving N ID's:

		baseId, err := tx.IncrementSequence(table, N)
		if err != nil {
		   return err
		}
		for i := 0; i < N; i++ {    // if N == 0, it will work as expected
			id := baseId + i
			// use id
		}
	*/
	IncrementSequence(table string, amount uint64) (uint64, error)
}
