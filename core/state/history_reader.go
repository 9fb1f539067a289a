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
	"bytes"
	"fmt"
	"math"

	"github.com/ethereum/go-ethereum/common"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/erigontech/erigon-middleware/common/dbutils"
	"github.com/erigontech/erigon-middleware/db/kv"
	"github.com/erigontech/erigon-middleware/execution/types"
	"github.com/erigontech/erigon-middleware/execution/types/accounts"
)

var _ StateReader = (*HistoryReader)(nil)

// HistoryReader reads the state as it was at the end of block blockNum.
// For each key the first history record written by a later block holds the value
// we are looking for; if there is none the key was not modified after blockNum
// and PlainState is the answer.
type HistoryReader struct {
	tx        kv.Tx
	blockNum  uint64
	codeCache *lru.Cache[common.Hash, []byte]
	trace     bool
}

func NewHistoryReader(tx kv.Tx, blockNum uint64) *HistoryReader {
	return &HistoryReader{tx: tx, blockNum: blockNum}
}

// SetCodeCache shares a content-addressed code cache between readers. Code is immutable for a given hash.
func (r *HistoryReader) SetCodeCache(c *lru.Cache[common.Hash, []byte]) { r.codeCache = c }
func (r *HistoryReader) SetTrace(trace bool)                            { r.trace = trace }
func (r *HistoryReader) BlockNumber() uint64                            { return r.blockNum }

// seekHistory returns (value, true) if plainKey was modified by a block after r.blockNum.
func (r *HistoryReader) seekHistory(table string, plainKey []byte) ([]byte, bool, error) {
	if r.blockNum == math.MaxUint64 {
		return nil, false, nil
	}
	c, err := r.tx.Cursor(table)
	if err != nil {
		return nil, false, err
	}
	defer c.Close()
	k, v, err := c.Seek(dbutils.HistoryKey(plainKey, r.blockNum+1))
	if err != nil {
		return nil, false, err
	}
	if k == nil || len(k) != len(plainKey)+dbutils.NumberLength || !bytes.HasPrefix(k, plainKey) {
		return nil, false, nil
	}
	return common.CopyBytes(v), true, nil
}

func (r *HistoryReader) read(historyTable string, plainKey []byte) ([]byte, error) {
	v, ok, err := r.seekHistory(historyTable, plainKey)
	if err != nil {
		return nil, fmt.Errorf("%s seek %x at %d: %w", historyTable, plainKey, r.blockNum, err)
	}
	if ok {
		return v, nil
	}
	v, err = r.tx.GetOne(kv.PlainState, plainKey)
	if err != nil {
		return nil, err
	}
	return common.CopyBytes(v), nil
}

func (r *HistoryReader) ReadAccountData(address common.Address) (*accounts.Account, error) {
	enc, err := r.read(kv.AccountHistory, address[:])
	if err != nil {
		return nil, err
	}
	if len(enc) == 0 {
		if r.trace {
			fmt.Printf("ReadAccountData [%x] => []\n", address)
		}
		return nil, nil
	}
	var a accounts.Account
	if err := accounts.DeserialiseV3(&a, enc); err != nil {
		return nil, fmt.Errorf("account %x at %d: %w", address, r.blockNum, err)
	}
	if r.trace {
		fmt.Printf("ReadAccountData [%x] => [nonce: %d, balance: %d, codeHash: %x]\n", address, a.Nonce, &a.Balance, a.CodeHash)
	}
	return &a, nil
}

func (r *HistoryReader) ReadAccountStorage(address common.Address, key common.Hash) ([]byte, error) {
	enc, err := r.read(kv.StorageHistory, dbutils.PlainStorageKey(address, key))
	if err != nil {
		return nil, err
	}
	if r.trace {
		fmt.Printf("ReadAccountStorage [%x] [%x] => [%x]\n", address, key, enc)
	}
	if len(enc) == 0 {
		return nil, nil
	}
	return enc, nil
}

func (r *HistoryReader) ReadAccountCode(address common.Address, codeHash common.Hash) ([]byte, error) {
	if codeHash == types.EmptyCodeHash || codeHash == (common.Hash{}) {
		return nil, nil
	}
	if r.codeCache != nil {
		if code, ok := r.codeCache.Get(codeHash); ok {
			return code, nil
		}
	}
	code, err := r.tx.GetOne(kv.Code, codeHash[:])
	if err != nil {
		return nil, err
	}
	code = common.CopyBytes(code)
	if r.codeCache != nil && len(code) > 0 {
		r.codeCache.Add(codeHash, code)
	}
	if r.trace {
		fmt.Printf("ReadAccountCode [%x %x] => [%x]\n", address, codeHash, code)
	}
	return code, nil
}

func (r *HistoryReader) ReadAccountCodeSize(address common.Address, codeHash common.Hash) (int, error) {
	code, err := r.ReadAccountCode(address, codeHash)
	return len(code), err
}
