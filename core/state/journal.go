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
)

// journalEntry is a modification entry in the state change journal that can be
// reverted on demand.
type journalEntry interface {
	// revert undoes the changes introduced by this journal entry.
	revert(*IntraBlockState)

	// dirtied returns the address modified by this journal entry.
	dirtied() *common.Address
}

// journal contains the list of state modifications applied since the last state
// commit. These are tracked to be able to be reverted in case of an execution
// exception or revertal request.
type journal struct {
	entries []journalEntry         // Current changes tracked by the journal
	dirties map[common.Address]int // Dirty accounts and the number of changes
}

func newJournal() *journal {
	return &journal{
		dirties: make(map[common.Address]int),
	}
}

func (j *journal) reset() {
	j.entries = j.entries[:0]
	clear(j.dirties)
}

// append inserts a new modification entry to the end of the change journal.
func (j *journal) append(entry journalEntry) {
	j.entries = append(j.entries, entry)
	if addr := entry.dirtied(); addr != nil {
		j.dirties[*addr]++
	}
}

// revert undoes a batch of journalled modifications along with any reverted
// dirty handling too.
func (j *journal) revert(ibs *IntraBlockState, snapshot int) {
	for i := len(j.entries) - 1; i >= snapshot; i-- {
		// Undo the changes made by the operation
		j.entries[i].revert(ibs)

		// Drop any dirty tracking induced by the change
		if addr := j.entries[i].dirtied(); addr != nil {
			if j.dirties[*addr]--; j.dirties[*addr] == 0 {
				delete(j.dirties, *addr)
			}
		}
	}
	j.entries = j.entries[:snapshot]
}

// length returns the current number of entries in the journal.
func (j *journal) length() int {
	return len(j.entries)
}

type (
	// Changes to the account trie.
	createObjectChange struct {
		account common.Address
		prev    *stateObject
	}
	createContractChange struct {
		account common.Address
	}
	selfdestructChange struct {
		account     common.Address
		prev        bool // whether account had already selfdestructed
		prevbalance uint256.Int
	}

	// Changes to individual accounts.
	balanceChange struct {
		account common.Address
		prev    uint256.Int
	}
	nonceChange struct {
		account common.Address
		prev    uint64
	}
	storageChange struct {
		account  common.Address
		key      common.Hash
		prevalue common.Hash
		wasDirty bool
	}
	codeChange struct {
		account  common.Address
		prevcode []byte
		prevhash common.Hash
	}
	touchChange struct {
		account common.Address
	}

	// Changes to other state values.
	refundChange struct {
		prev uint64
	}
	addLogChange struct {
		txhash common.Hash
	}

	// Changes to the access list
	accessListAddAccountChange struct {
		address common.Address
	}
	accessListAddSlotChange struct {
		address common.Address
		slot    common.Hash
	}

	transientStorageChange struct {
		account  common.Address
		key      common.Hash
		prevalue common.Hash
	}
)

func (ch createObjectChange) revert(s *IntraBlockState) {
	if ch.prev == nil {
		delete(s.stateObjects, ch.account)
		return
	}
	s.stateObjects[ch.account] = ch.prev
}

func (ch createObjectChange) dirtied() *common.Address {
	return &ch.account
}

func (ch createContractChange) revert(s *IntraBlockState) {
	s.stateObjects[ch.account].createdContract = false
}

func (ch createContractChange) dirtied() *common.Address {
	return nil
}

func (ch selfdestructChange) revert(s *IntraBlockState) {
	obj := s.stateObjects[ch.account]
	obj.selfdestructed = ch.prev
	obj.data.Balance.Set(&ch.prevbalance)
}

func (ch selfdestructChange) dirtied() *common.Address {
	return &ch.account
}

func (ch touchChange) revert(s *IntraBlockState) {
}

func (ch touchChange) dirtied() *common.Address {
	return &ch.account
}

func (ch balanceChange) revert(s *IntraBlockState) {
	s.stateObjects[ch.account].data.Balance.Set(&ch.prev)
}

func (ch balanceChange) dirtied() *common.Address {
	return &ch.account
}

func (ch nonceChange) revert(s *IntraBlockState) {
	s.stateObjects[ch.account].data.Nonce = ch.prev
}

func (ch nonceChange) dirtied() *common.Address {
	return &ch.account
}

func (ch codeChange) revert(s *IntraBlockState) {
	obj := s.stateObjects[ch.account]
	obj.code = ch.prevcode
	obj.data.CodeHash = ch.prevhash
}

func (ch codeChange) dirtied() *common.Address {
	return &ch.account
}

func (ch storageChange) revert(s *IntraBlockState) {
	obj := s.stateObjects[ch.account]
	if ch.wasDirty {
		obj.dirtyStorage[ch.key] = ch.prevalue
		return
	}
	delete(obj.dirtyStorage, ch.key)
}

func (ch storageChange) dirtied() *common.Address {
	return &ch.account
}

func (ch transientStorageChange) revert(s *IntraBlockState) {
	s.transientStorage.Set(ch.account, ch.key, ch.prevalue)
}

func (ch transientStorageChange) dirtied() *common.Address {
	return nil
}

func (ch refundChange) revert(s *IntraBlockState) {
	s.refund = ch.prev
}

func (ch refundChange) dirtied() *common.Address {
	return nil
}

func (ch addLogChange) revert(s *IntraBlockState) {
	txnLogs := s.logs[ch.txhash]
	if len(txnLogs) == 1 {
		delete(s.logs, ch.txhash)
	} else {
		s.logs[ch.txhash] = txnLogs[:len(txnLogs)-1]
	}
	s.logSize--
}

func (ch addLogChange) dirtied() *common.Address {
	return nil
}

func (ch accessListAddAccountChange) revert(s *IntraBlockState) {
	/*
		One important invariant here, is that whenever a (addr, slot) is added, if the
		addr is not already present, the add causes two journal entries:
		- one for the address,
		- one for the (address,slot)
		Therefore, when unrolling the change, we can always blindly delete the
		(addr) at this point, since no storage adds can remain when come upon
		a single (addr) change.
	*/
	s.accessList.DeleteAddress(ch.address)
}

func (ch accessListAddAccountChange) dirtied() *common.Address {
	return nil
}

func (ch accessListAddSlotChange) revert(s *IntraBlockState) {
	s.accessList.DeleteSlot(ch.address, ch.slot)
}

func (ch accessListAddSlotChange) dirtied() *common.Address {
	return nil
}
