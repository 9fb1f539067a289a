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
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/erigontech/erigon-middleware/common/dbutils"
	"github.com/erigontech/erigon-middleware/db/kv"
	"github.com/erigontech/erigon-middleware/execution/types/accounts"
)

var _ StateWriter = (*PlainStateWriter)(nil)

// PlainStateWriter applies the changes of block blockNum to PlainState and records,
// once per key and block, the value the key had before the block.
type PlainStateWriter struct {
	db       kv.StatelessRwTx
	blockNum uint64
	trace    bool
}

func NewPlainStateWriter(db kv.StatelessRwTx, blockNum uint64) *PlainStateWriter {
	return &PlainStateWriter{db: db, blockNum: blockNum}
}

func (w *PlainStateWriter) SetTrace(trace bool) { w.trace = trace }

func (w *PlainStateWriter) writeHistory(table string, plainKey []byte) error {
	historyKey := dbutils.HistoryKey(plainKey, w.blockNum)
	if ok, err := w.db.Has(table, historyKey); err != nil || ok {
		return err
	}
	prev, err := w.db.GetOne(kv.PlainState, plainKey)
	if err != nil {
		return err
	}
	return w.db.Put(table, historyKey, common.CopyBytes(prev))
}

func (w *PlainStateWriter) UpdateAccountData(address common.Address, original, account *accounts.Account) error {
	if w.trace {
		println("account", address.Hex(), account.Nonce, account.Balance.String(), account.CodeHash.Hex())
	}
	if err := w.writeHistory(kv.AccountHistory, address[:]); err != nil {
		return err
	}
	return w.db.Put(kv.PlainState, address[:], accounts.SerialiseV3(account))
}

func (w *PlainStateWriter) UpdateAccountCode(address common.Address, codeHash common.Hash, code []byte) error {
	if w.trace {
		println("code", address.Hex(), codeHash.Hex(), len(code))
	}
	return w.db.Put(kv.Code, codeHash[:], code)
}

func (w *PlainStateWriter) DeleteAccount(address common.Address, original *accounts.Account) error {
	if w.trace {
		println("delete", address.Hex())
	}
	if err := w.writeHistory(kv.AccountHistory, address[:]); err != nil {
		return err
	}
	return w.db.Delete(kv.PlainState, address[:])
}

// WriteAccountStorage stores value with leading zeroes trimmed; a zero value removes the slot.
func (w *PlainStateWriter) WriteAccountStorage(address common.Address, key common.Hash, original, value *uint256.Int) error {
	compositeKey := dbutils.PlainStorageKey(address, key)
	if w.trace {
		println("storage", address.Hex(), key.Hex(), value.Hex())
	}
	if err := w.writeHistory(kv.StorageHistory, compositeKey); err != nil {
		return err
	}
	if value.IsZero() {
		return w.db.Delete(kv.PlainState, compositeKey)
	}
	return w.db.Put(kv.PlainState, compositeKey, value.Bytes())
}
