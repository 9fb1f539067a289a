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

package adapter

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/holiman/uint256"

	"github.com/erigontech/erigon-middleware/core/state"
	"github.com/erigontech/erigon-middleware/db/kv"
	"github.com/erigontech/erigon-middleware/execution/types/accounts"
	"github.com/erigontech/erigon-middleware/turbo/rpchelper"
)

// StateReader answers typed account queries against the state at the end of blockNr.
type StateReader struct {
	blockNr uint64
	reader  *state.HistoryReader
}

func NewStateReader(tx kv.Tx, blockNr uint64) *StateReader {
	return &StateReader{
		blockNr: blockNr,
		reader:  state.NewHistoryReader(tx, blockNr),
	}
}

func (r *StateReader) SetCodeCache(c *lru.Cache[common.Hash, []byte]) { r.reader.SetCodeCache(c) }

func (r *StateReader) BlockNumber() uint64 { return r.blockNr }

// Account returns nil if the account did not exist at the reader's height.
func (r *StateReader) Account(address common.Address) (*accounts.Account, error) {
	acc, err := r.reader.ReadAccountData(address)
	if err != nil {
		return nil, fmt.Errorf("read account %x at block %d: %w", address, r.blockNr, err)
	}
	return acc, nil
}

func (r *StateReader) GetBalance(address common.Address) (*uint256.Int, error) {
	acc, err := r.Account(address)
	if err != nil {
		return nil, err
	}
	if acc == nil {
		return new(uint256.Int), nil
	}
	return acc.Balance.Clone(), nil
}

func (r *StateReader) GetNonce(address common.Address) (uint64, error) {
	acc, err := r.Account(address)
	if err != nil || acc == nil {
		return 0, err
	}
	return acc.Nonce, nil
}

// GetCode is empty for absent accounts and accounts without code. An account whose code
// hash has no code stored is reported as an inconsistency.
func (r *StateReader) GetCode(address common.Address) ([]byte, error) {
	acc, err := r.Account(address)
	if err != nil || acc == nil || acc.IsEmptyCodeHash() {
		return nil, err
	}
	code, err := r.reader.ReadAccountCode(address, acc.CodeHash)
	if err != nil {
		return nil, fmt.Errorf("read code %x of %x: %w", acc.CodeHash, address, err)
	}
	if len(code) == 0 {
		return nil, fmt.Errorf("%w: code %x of account %x is missing at block %d", rpchelper.ErrInconsistency, acc.CodeHash, address, r.blockNr)
	}
	return code, nil
}

// GetStorageAt returns the slot value as a 32 byte big endian word, zero if unset.
func (r *StateReader) GetStorageAt(address common.Address, key common.Hash) (common.Hash, error) {
	enc, err := r.reader.ReadAccountStorage(address, key)
	if err != nil {
		return common.Hash{}, fmt.Errorf("read storage %x of %x at block %d: %w", key, address, r.blockNr, err)
	}
	return common.BytesToHash(enc), nil
}
