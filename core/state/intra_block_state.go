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
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	gethstate "github.com/ethereum/go-ethereum/core/state"
	"github.com/ethereum/go-ethereum/core/stateless"
	"github.com/ethereum/go-ethereum/core/tracing"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/ethereum/go-ethereum/params"
	"github.com/ethereum/go-ethereum/trie/utils"
	"github.com/holiman/uint256"

	"github.com/erigontech/erigon-middleware/execution/types"
	"github.com/erigontech/erigon-middleware/execution/types/accounts"
)

var _ vm.StateDB = (*IntraBlockState)(nil)

type revision struct {
	id           int
	journalIndex int
}

// IntraBlockState is responsible for caching and managing state changes
// that occur during block's execution.
// NOT THREAD SAFE!
//
// It is an ephemeral overlay: reads go to the StateReader, writes never leave memory.
type IntraBlockState struct {
	stateReader StateReader

	// This map holds 'live' objects, which will get modified while processing a state transition.
	stateObjects map[common.Address]*stateObject
	nilAccounts  map[common.Address]struct{} // Remember non-existent account to avoid reading them again

	// DB error.
	// State objects are used by the consensus core and VM which are
	// unable to deal with database-level errors. Any error that occurs
	// during a database read is memoized here and will eventually be returned
	// by IntraBlockState.Error.
	savedErr error

	// The refund counter, also used by state transitioning.
	refund uint64

	thash   common.Hash
	txIndex int
	logs    map[common.Hash][]*gethtypes.Log
	logSize uint

	// Per-transaction access list
	accessList *accessList

	// Transient storage
	transientStorage transientStorage

	// Journal of state modifications. This is the backbone of
	// Snapshot and RevertToSnapshot.
	journal        *journal
	validRevisions []revision
	nextRevisionID int
}

// New creates a new state from a given state reader
func New(stateReader StateReader) *IntraBlockState {
	return &IntraBlockState{
		stateReader:      stateReader,
		stateObjects:     map[common.Address]*stateObject{},
		nilAccounts:      map[common.Address]struct{}{},
		logs:             map[common.Hash][]*gethtypes.Log{},
		journal:          newJournal(),
		accessList:       newAccessList(),
		transientStorage: newTransientStorage(),
	}
}

// setErrorUnsafe sets error but should be called in medhods that already have locks
func (sdb *IntraBlockState) setErrorUnsafe(err error) {
	if sdb.savedErr == nil {
		sdb.savedErr = err
	}
}

func (sdb *IntraBlockState) Error() error {
	return sdb.savedErr
}

// Reset clears out all ephemeral state objects from the state db, but keeps
// the underlying state trie to avoid reloading data for the next operations.
func (sdb *IntraBlockState) Reset() {
	clear(sdb.stateObjects)
	clear(sdb.nilAccounts)
	clear(sdb.logs)
	sdb.thash = common.Hash{}
	sdb.txIndex = 0
	sdb.logSize = 0
	sdb.savedErr = nil
	sdb.clearJournalAndRefund()
	sdb.accessList = newAccessList()
	sdb.transientStorage = newTransientStorage()
}

func (sdb *IntraBlockState) AddLog(log *gethtypes.Log) {
	sdb.journal.append(addLogChange{txhash: sdb.thash})
	log.TxHash = sdb.thash
	log.TxIndex = uint(sdb.txIndex)
	log.Index = sdb.logSize
	sdb.logs[sdb.thash] = append(sdb.logs[sdb.thash], log)
	sdb.logSize++
}

// GetLogs returns the logs emitted by the transaction, with indices local to the transaction.
func (sdb *IntraBlockState) GetLogs(hash common.Hash) types.Logs {
	txLogs := sdb.logs[hash]
	logs := make(types.Logs, len(txLogs))
	for i, l := range txLogs {
		logs[i] = &types.Log{
			Address: l.Address,
			Topics:  l.Topics,
			Data:    l.Data,
			TxHash:  l.TxHash,
			TxIndex: l.TxIndex,
			Index:   uint(i),
		}
	}
	return logs
}

// AddPreimage records a SHA3 preimage seen by the VM. Preimages are not kept.
func (sdb *IntraBlockState) AddPreimage(hash common.Hash, preimage []byte) {}

// AddRefund adds gas to the refund counter
func (sdb *IntraBlockState) AddRefund(gas uint64) {
	sdb.journal.append(refundChange{prev: sdb.refund})
	sdb.refund += gas
}

// SubRefund removes gas from the refund counter.
// This method will panic if the refund counter goes below zero
func (sdb *IntraBlockState) SubRefund(gas uint64) {
	sdb.journal.append(refundChange{prev: sdb.refund})
	if gas > sdb.refund {
		panic(fmt.Sprintf("Refund counter below zero (gas: %d > refund: %d)", gas, sdb.refund))
	}
	sdb.refund -= gas
}

// GetRefund returns the current value of the refund counter.
func (sdb *IntraBlockState) GetRefund() uint64 {
	return sdb.refund
}

// Exist reports whether the given account address exists in the state.
// Notably this also returns true for self-destructed accounts.
func (sdb *IntraBlockState) Exist(addr common.Address) bool {
	return sdb.getStateObject(addr) != nil
}

// Empty returns whether the state object is either non-existent
// or empty according to the EIP161 specification (balance = nonce = code = 0)
func (sdb *IntraBlockState) Empty(addr common.Address) bool {
	so := sdb.getStateObject(addr)
	return so == nil || so.empty()
}

// GetBalance retrieves the balance from the given address or 0 if object not found
func (sdb *IntraBlockState) GetBalance(addr common.Address) *uint256.Int {
	stateObject := sdb.getStateObject(addr)
	if stateObject != nil {
		return new(uint256.Int).Set(&stateObject.data.Balance)
	}
	return new(uint256.Int)
}

func (sdb *IntraBlockState) GetNonce(addr common.Address) uint64 {
	stateObject := sdb.getStateObject(addr)
	if stateObject != nil {
		return stateObject.data.Nonce
	}
	return 0
}

func (sdb *IntraBlockState) GetCode(addr common.Address) []byte {
	stateObject := sdb.getStateObject(addr)
	if stateObject != nil {
		return stateObject.Code()
	}
	return nil
}

func (sdb *IntraBlockState) GetCodeSize(addr common.Address) int {
	return len(sdb.GetCode(addr))
}

func (sdb *IntraBlockState) GetCodeHash(addr common.Address) common.Hash {
	stateObject := sdb.getStateObject(addr)
	if stateObject == nil {
		return common.Hash{}
	}
	return stateObject.data.CodeHash
}

// GetState retrieves a value from the given account's storage trie.
func (sdb *IntraBlockState) GetState(addr common.Address, key common.Hash) common.Hash {
	stateObject := sdb.getStateObject(addr)
	if stateObject != nil {
		return stateObject.GetState(key)
	}
	return common.Hash{}
}

// GetStateAndCommittedState returns the current value and the value at the start of the transaction.
func (sdb *IntraBlockState) GetStateAndCommittedState(addr common.Address, key common.Hash) (common.Hash, common.Hash) {
	stateObject := sdb.getStateObject(addr)
	if stateObject != nil {
		return stateObject.GetState(key), stateObject.GetCommittedState(key)
	}
	return common.Hash{}, common.Hash{}
}

// GetStorageRoot has no trie to consult: existing accounts report the empty root.
func (sdb *IntraBlockState) GetStorageRoot(addr common.Address) common.Hash {
	if sdb.getStateObject(addr) == nil {
		return common.Hash{}
	}
	return types.EmptyRootHash
}

func (sdb *IntraBlockState) HasSelfDestructed(addr common.Address) bool {
	stateObject := sdb.getStateObject(addr)
	if stateObject == nil {
		return false
	}
	return stateObject.selfdestructed
}

/*
 * SETTERS
 */

// AddBalance adds amount to the account associated with addr.
func (sdb *IntraBlockState) AddBalance(addr common.Address, amount *uint256.Int, reason tracing.BalanceChangeReason) uint256.Int {
	stateObject := sdb.getOrNewStateObject(addr)
	return stateObject.AddBalance(amount)
}

// SubBalance subtracts amount from the account associated with addr.
func (sdb *IntraBlockState) SubBalance(addr common.Address, amount *uint256.Int, reason tracing.BalanceChangeReason) uint256.Int {
	stateObject := sdb.getOrNewStateObject(addr)
	return stateObject.SubBalance(amount)
}

func (sdb *IntraBlockState) SetBalance(addr common.Address, amount *uint256.Int) {
	stateObject := sdb.getOrNewStateObject(addr)
	stateObject.SetBalance(amount)
}

func (sdb *IntraBlockState) SetNonce(addr common.Address, nonce uint64, reason tracing.NonceChangeReason) {
	stateObject := sdb.getOrNewStateObject(addr)
	stateObject.SetNonce(nonce)
}

// SetCode returns the previous code of the account.
func (sdb *IntraBlockState) SetCode(addr common.Address, code []byte) []byte {
	stateObject := sdb.getOrNewStateObject(addr)
	return stateObject.SetCode(code)
}

func (sdb *IntraBlockState) SetState(addr common.Address, key, value common.Hash) common.Hash {
	stateObject := sdb.getOrNewStateObject(addr)
	return stateObject.SetState(key, value)
}

// SetStorage replaces the entire storage of the account; used for state overrides.
func (sdb *IntraBlockState) SetStorage(addr common.Address, storage Storage) {
	stateObject := sdb.getOrNewStateObject(addr)
	stateObject.fresh = true
	clear(stateObject.originStorage)
	for key, value := range storage {
		stateObject.SetState(key, value)
	}
}

// SelfDestruct marks the given account as selfdestructed.
// This clears the account balance.
//
// The account's state object is still available until the state is committed,
// getStateObject will return a non-nil account after SelfDestruct.
func (sdb *IntraBlockState) SelfDestruct(addr common.Address) uint256.Int {
	stateObject := sdb.getStateObject(addr)
	if stateObject == nil {
		return uint256.Int{}
	}
	prevBalance := stateObject.data.Balance
	sdb.journal.append(selfdestructChange{
		account:     addr,
		prev:        stateObject.selfdestructed,
		prevbalance: prevBalance,
	})
	stateObject.selfdestructed = true
	stateObject.data.Balance.Clear()
	return prevBalance
}

// SelfDestruct6780 only destructs contracts created in the same transaction.
func (sdb *IntraBlockState) SelfDestruct6780(addr common.Address) (uint256.Int, bool) {
	stateObject := sdb.getStateObject(addr)
	if stateObject == nil {
		return uint256.Int{}, false
	}
	if stateObject.createdContract {
		return sdb.SelfDestruct(addr), true
	}
	return stateObject.data.Balance, false
}

// SetTransientState sets transient storage for a given account. It
// adds the change to the journal so that it can be rolled back
// to its previous value if there is a revert.
func (sdb *IntraBlockState) SetTransientState(addr common.Address, key, value common.Hash) {
	prev := sdb.GetTransientState(addr, key)
	if prev == value {
		return
	}
	sdb.journal.append(transientStorageChange{
		account:  addr,
		key:      key,
		prevalue: prev,
	})
	sdb.transientStorage.Set(addr, key, value)
}

// GetTransientState gets transient storage for a given account.
func (sdb *IntraBlockState) GetTransientState(addr common.Address, key common.Hash) common.Hash {
	return sdb.transientStorage.Get(addr, key)
}

// Retrieve a state object given by the address. Returns nil if not found.
func (sdb *IntraBlockState) getStateObject(addr common.Address) *stateObject {
	// Prefer 'live' objects.
	if obj := sdb.stateObjects[addr]; obj != nil {
		if obj.deleted {
			return nil
		}
		return obj
	}
	// Load the object from the database.
	if _, ok := sdb.nilAccounts[addr]; ok {
		return nil
	}
	account, err := sdb.stateReader.ReadAccountData(addr)
	if err != nil {
		sdb.setErrorUnsafe(err)
		return nil
	}
	if account == nil {
		sdb.nilAccounts[addr] = struct{}{}
		return nil
	}
	obj := newObject(sdb, addr, account)
	sdb.stateObjects[addr] = obj
	return obj
}

// Retrieve a state object or create a new state object if nil.
func (sdb *IntraBlockState) getOrNewStateObject(addr common.Address) *stateObject {
	stateObject := sdb.getStateObject(addr)
	if stateObject == nil {
		stateObject = sdb.createObject(addr)
	}
	return stateObject
}

// createObject creates a new state object. The assumption is held there is no
// existing account with the given address, otherwise it will be silently overwritten.
func (sdb *IntraBlockState) createObject(addr common.Address) *stateObject {
	prev := sdb.stateObjects[addr]
	account := accounts.NewAccount()
	newobj := newObject(sdb, addr, &account)
	newobj.fresh = true
	sdb.journal.append(createObjectChange{account: addr, prev: prev})
	sdb.stateObjects[addr] = newobj
	return newobj
}

// CreateAccount explicitly creates a new state object, assuming that the
// account did not previously exist in the state. If the state object already
// exists, this function will silently overwrite it which might lead to a
// consensus bug eventually.
func (sdb *IntraBlockState) CreateAccount(addr common.Address) {
	sdb.createObject(addr)
}

// CreateContract is used whenever a contract is created. This may be preceded
// by CreateAccount, but that is not required if it already existed in the
// state due to funds sent beforehand.
func (sdb *IntraBlockState) CreateContract(addr common.Address) {
	obj := sdb.getStateObject(addr)
	if obj != nil && !obj.createdContract {
		obj.createdContract = true
		sdb.journal.append(createContractChange{account: addr})
	}
}

// Snapshot returns an identifier for the current revision of the state.
func (sdb *IntraBlockState) Snapshot() int {
	id := sdb.nextRevisionID
	sdb.nextRevisionID++
	sdb.validRevisions = append(sdb.validRevisions, revision{id, sdb.journal.length()})
	return id
}

// RevertToSnapshot reverts all state changes made since the given revision.
func (sdb *IntraBlockState) RevertToSnapshot(revid int) {
	// Find the snapshot in the stack of valid snapshots.
	idx := sort.Search(len(sdb.validRevisions), func(i int) bool {
		return sdb.validRevisions[i].id >= revid
	})
	if idx == len(sdb.validRevisions) || sdb.validRevisions[idx].id != revid {
		panic(fmt.Errorf("revision id %v cannot be reverted", revid))
	}
	snapshot := sdb.validRevisions[idx].journalIndex

	// Replay the journal to undo changes and remove invalidated snapshots
	sdb.journal.revert(sdb, snapshot)
	sdb.validRevisions = sdb.validRevisions[:idx]
}

// Finalise ends a transaction: self-destructed (and, with deleteEmptyObjects, EIP-161 empty)
// accounts are removed and written storage becomes the committed storage of the next transaction.
func (sdb *IntraBlockState) Finalise(deleteEmptyObjects bool) {
	for addr := range sdb.journal.dirties {
		so, exist := sdb.stateObjects[addr]
		if !exist {
			continue
		}
		if so.selfdestructed || (deleteEmptyObjects && so.empty()) {
			so.deleted = true
			continue
		}
		so.finalise()
	}
	sdb.clearJournalAndRefund()
}

func (sdb *IntraBlockState) clearJournalAndRefund() {
	sdb.journal.reset()
	sdb.validRevisions = sdb.validRevisions[:0]
	sdb.refund = 0
}

// SetTxContext sets the current transaction hash and index which are
// used when the EVM emits new state logs.
func (sdb *IntraBlockState) SetTxContext(thash common.Hash, ti int) {
	sdb.thash = thash
	sdb.txIndex = ti
}

func (sdb *IntraBlockState) TxIndex() int {
	return sdb.txIndex
}

// Prepare handles the preparatory steps for executing a state transition.
// This method must be invoked before state transition.
//
// Berlin fork:
// - Add sender to access list (EIP-2929)
// - Add destination to access list (EIP-2929)
// - Add precompiles to access list (EIP-2929)
// - Add the contents of the optional tx access list (EIP-2930)
//
// Potential EIPs:
// - Reset access list (Berlin)
// - Add coinbase to access list (EIP-3651)
// - Reset transient storage (EIP-1153)
func (sdb *IntraBlockState) Prepare(rules params.Rules, sender, coinbase common.Address, dst *common.Address,
	precompiles []common.Address, list gethtypes.AccessList) {
	if rules.IsBerlin {
		// Clear out any leftover from previous executions
		al := newAccessList()
		sdb.accessList = al

		al.AddAddress(sender)
		if dst != nil {
			al.AddAddress(*dst)
			// If it's a create-tx, the destination will be added inside evm.create
		}
		for _, addr := range precompiles {
			al.AddAddress(addr)
		}
		for _, el := range list {
			al.AddAddress(el.Address)
			for _, key := range el.StorageKeys {
				al.AddSlot(el.Address, key)
			}
		}
		if rules.IsShanghai { // EIP-3651: warm coinbase
			al.AddAddress(coinbase)
		}
	}
	// Reset transient storage at the beginning of transaction execution
	sdb.transientStorage = newTransientStorage()
}

// AddAddressToAccessList adds the given address to the access list
func (sdb *IntraBlockState) AddAddressToAccessList(addr common.Address) {
	if sdb.accessList.AddAddress(addr) {
		sdb.journal.append(accessListAddAccountChange{addr})
	}
}

// AddSlotToAccessList adds the given (address, slot)-tuple to the access list
func (sdb *IntraBlockState) AddSlotToAccessList(addr common.Address, slot common.Hash) {
	addrMod, slotMod := sdb.accessList.AddSlot(addr, slot)
	if addrMod {
		// In practice, this should not happen, since there is no way to enter the
		// scope of 'address' without having the 'address' become already added
		// to the access list (via call-variant, create, etc).
		// Better safe than sorry, though
		sdb.journal.append(accessListAddAccountChange{addr})
	}
	if slotMod {
		sdb.journal.append(accessListAddSlotChange{
			address: addr,
			slot:    slot,
		})
	}
}

// AddressInAccessList returns true if the given address is in the access list.
func (sdb *IntraBlockState) AddressInAccessList(addr common.Address) bool {
	return sdb.accessList.ContainsAddress(addr)
}

// SlotInAccessList returns true if the given (address, slot)-tuple is in the access list.
func (sdb *IntraBlockState) SlotInAccessList(addr common.Address, slot common.Hash) (addressPresent bool, slotPresent bool) {
	return sdb.accessList.Contains(addr, slot)
}

// PointCache is only needed by verkle rules, which are never active here.
func (sdb *IntraBlockState) PointCache() *utils.PointCache { return nil }

func (sdb *IntraBlockState) Witness() *stateless.Witness { return nil }

func (sdb *IntraBlockState) AccessEvents() *gethstate.AccessEvents { return nil }
