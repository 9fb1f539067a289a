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

import "slices"

const (
	// key - contract code hash
	// value - contract code
	Code = "Code"

	// PlainState
	// Contains Accounts:
	//   key - address (unhashed)
	//   value - account encoded for storage (accounts.SerialiseV3)
	// Contains Storage:
	//   key - address (unhashed) + storage key (unhashed)
	//   value - storage value (leading zeroes trimmed)
	PlainState = "PlainState"

	// AccountHistory
	//   key - address + block_num_u64
	//   value - account encoded for storage as it was BEFORE block_num (empty value: account did not exist)
	AccountHistory = "AccountHistory"

	// StorageHistory
	//   key - address + storage key + block_num_u64
	//   value - storage value as it was BEFORE block_num (empty value: slot was zero)
	StorageHistory = "StorageHistory"
)

const (
	HeaderNumber    = "HeaderNumber"    // header_hash -> header_num_u64
	HeaderCanonical = "CanonicalHeader" // block_num_u64 -> header hash
	Headers         = "Header"          // block_num_u64 + hash -> header (RLP)

	BlockBody = "BlockBody" // block_num_u64 + hash -> block body (RLP of BodyForStorage)

	// EthTx - stores transactions of all blocks, keyed by auto-increment TxnID
	EthTx = "BlockTransaction" // tx_id_u64 -> txn (binary envelope)

	Senders = "TxSender" // block_num_u64 + block_hash -> sender addresses concatenated

	// TxLookup - transaction hash -> block number (big endian, leading zeroes trimmed)
	TxLookup = "BlockTransactionLookup"

	ConfigTable = "Config" // genesis_hash -> chain config (JSON)

	// SyncStageProgress - progress of sync stages: stage_name -> block_num_u64
	SyncStageProgress = "SyncStage"

	// Sequence - auto-increment counters: table_name -> value_u64
	Sequence = "Sequence"
)

// ChaindataTables - list of all tables of the chain database.
var ChaindataTables = []string{
	Code,
	PlainState,
	AccountHistory,
	StorageHistory,
	HeaderNumber,
	HeaderCanonical,
	Headers,
	BlockBody,
	EthTx,
	Senders,
	TxLookup,
	ConfigTable,
	SyncStageProgress,
	Sequence,
}

func init() {
	slices.Sort(ChaindataTables)
}

// IsKnownTable reports whether name is one of ChaindataTables.
func IsKnownTable(name string) bool {
	_, ok := slices.BinarySearch(ChaindataTables, name)
	return ok
}
