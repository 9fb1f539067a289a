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
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"

	"github.com/erigontech/erigon-middleware/execution/types"
	"github.com/erigontech/erigon-middleware/execution/types/accounts"
)

// stateObject represents an Ethereum account which is being modified.
//
// The usage pattern is as follows:
// First you need to obtain a state object.
// Account values can be accessed and modified through the object.
type stateObject struct {
	address common.Address
	data    accounts.Account
	db      *IntraBlockState

	code []byte // contract bytecode, which gets set when code is loaded

	// originStorage holds the values at the start of the current transaction.
	originStorage Storage
	// dirtyStorage holds the values written by the current transaction.
	dirtyStorage Storage

	// fresh objects were (re)created during this block: their storage is not backed by the reader.
	fresh bool
	// createdContract is set by CreateContract and cleared at the end of the transaction (EIP-6780).
	createdContract bool
	selfdestructed  bool
	deleted         bool
	codeLoaded      bool
}

// empty returns whether the account is considered empty.
func (so *stateObject) empty() bool {
	return so.data.IsEmpty()
}

func newObject(db *IntraBlockState, address common.Address, data *accounts.Account) *stateObject {
	so := &stateObject{
		db:            db,
		address:       address,
		originStorage: make(Storage),
		dirtyStorage:  make(Storage),
	}
	so.data.Copy(data)
	if so.data.IsEmptyCodeHash() {
		so.data.CodeHash = types.EmptyCodeHash
	}
	return so
}

func (so *stateObject) touch() {
	so.db.journal.append(touchChange{account: so.address})
}

// GetState returns a value from account storage.
func (so *stateObject) GetState(key common.Hash) common.Hash {
	if value, dirty := so.dirtyStorage[key]; dirty {
		return value
	}
	return so.GetCommittedState(key)
}

// GetCommittedState retrieves a value from the committed account storage.
func (so *stateObject) GetCommittedState(key common.Hash) common.Hash {
	if value, cached := so.originStorage[key]; cached {
		return value
	}
	if so.fresh {
		return common.Hash{}
	}
	enc, err := so.db.stateReader.ReadAccountStorage(so.address, key)
	if err != nil {
		so.db.setErrorUnsafe(err)
		return common.Hash{}
	}
	var value common.Hash
	if len(enc) > 0 {
		value.SetBytes(enc)
	}
	so.originStorage[key] = value
	return value
}

// SetState updates a value in account storage.
func (so *stateObject) SetState(key, value common.Hash) common.Hash {
	prev, wasDirty := so.dirtyStorage[key]
	if !wasDirty {
		prev = so.GetCommittedState(key)
	}
	if prev == value {
		return prev
	}
	so.db.journal.append(storageChange{
		account:  so.address,
		key:      key,
		prevalue: prev,
		wasDirty: wasDirty,
	})
	so.dirtyStorage[key] = value
	return prev
}

// finalise moves all dirty storage slots into the pending area, making them
// the committed values of the next transaction.
func (so *stateObject) finalise() {
	for key, value := range so.dirtyStorage {
		so.originStorage[key] = value
	}
	if len(so.dirtyStorage) > 0 {
		so.dirtyStorage = make(Storage)
	}
	so.createdContract = false
}

func (so *stateObject) AddBalance(amount *uint256.Int) uint256.Int {
	// EIP161: We must check emptiness for the objects such that the account
	// clearing (0,0,0 objects) can take effect.
	if amount.IsZero() {
		if so.empty() {
			so.touch()
		}
		return so.data.Balance
	}
	return so.SetBalance(new(uint256.Int).Add(&so.data.Balance, amount))
}

func (so *stateObject) SubBalance(amount *uint256.Int) uint256.Int {
	if amount.IsZero() {
		return so.data.Balance
	}
	return so.SetBalance(new(uint256.Int).Sub(&so.data.Balance, amount))
}

// SetBalance returns the previous balance.
func (so *stateObject) SetBalance(amount *uint256.Int) uint256.Int {
	prev := so.data.Balance
	so.db.journal.append(balanceChange{
		account: so.address,
		prev:    prev,
	})
	so.data.Balance.Set(amount)
	return prev
}

// Code returns the contract code associated with this object, if any.
func (so *stateObject) Code() []byte {
	if so.codeLoaded || so.data.CodeHash == types.EmptyCodeHash {
		return so.code
	}
	code, err := so.db.stateReader.ReadAccountCode(so.address, so.data.CodeHash)
	if err != nil {
		so.db.setErrorUnsafe(err)
		return nil
	}
	so.code = code
	so.codeLoaded = true
	return code
}

func (so *stateObject) SetCode(code []byte) (prev []byte) {
	prev = so.Code()
	so.db.journal.append(codeChange{
		account:  so.address,
		prevhash: so.data.CodeHash,
		prevcode: prev,
	})
	so.code = code
	so.codeLoaded = true
	if len(code) == 0 {
		so.data.CodeHash = types.EmptyCodeHash
	} else {
		so.data.CodeHash = crypto.Keccak256Hash(code)
	}
	return prev
}

func (so *stateObject) SetNonce(nonce uint64) {
	so.db.journal.append(nonceChange{
		account: so.address,
		prev:    so.data.Nonce,
	})
	so.data.Nonce = nonce
}
