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

package dbutils

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

const (
	NumberLength = 8
	AddrLength   = common.AddressLength
	HashLength   = common.HashLength
)

// EncodeBlockNumber encodes a block number as big endian uint64
func EncodeBlockNumber(number uint64) []byte {
	enc := make([]byte, NumberLength)
	binary.BigEndian.PutUint64(enc, number)
	return enc
}

var ErrInvalidSize = errors.New("bit endian number has an invalid size")

func DecodeBlockNumber(number []byte) (uint64, error) {
	if len(number) != NumberLength {
		return 0, fmt.Errorf("%w: %d", ErrInvalidSize, len(number))
	}
	return binary.BigEndian.Uint64(number), nil
}

// HeaderKey = num (uint64 big endian) + hash
func HeaderKey(number uint64, hash common.Hash) []byte {
	k := make([]byte, NumberLength+HashLength)
	binary.BigEndian.PutUint64(k, number)
	copy(k[NumberLength:], hash[:])
	return k
}

// BlockBodyKey = num (uint64 big endian) + hash
func BlockBodyKey(number uint64, hash common.Hash) []byte {
	return HeaderKey(number, hash)
}

// PlainStorageKey = address + slot
func PlainStorageKey(address common.Address, slot common.Hash) []byte {
	k := make([]byte, AddrLength+HashLength)
	copy(k, address[:])
	copy(k[AddrLength:], slot[:])
	return k
}

func ParsePlainStorageKey(k []byte) (common.Address, common.Hash, error) {
	if len(k) != AddrLength+HashLength {
		return common.Address{}, common.Hash{}, fmt.Errorf("%w: storage key %d", ErrInvalidSize, len(k))
	}
	return common.BytesToAddress(k[:AddrLength]), common.BytesToHash(k[AddrLength:]), nil
}

// HistoryKey = plain key + block number (uint64 big endian).
// Works for both account (address) and storage (address + slot) plain keys.
func HistoryKey(plainKey []byte, blockNumber uint64) []byte {
	k := make([]byte, len(plainKey)+NumberLength)
	copy(k, plainKey)
	binary.BigEndian.PutUint64(k[len(plainKey):], blockNumber)
	return k
}

// ParseHistoryKey splits a history key into the plain key and the block number.
func ParseHistoryKey(k []byte) ([]byte, uint64, error) {
	if len(k) < NumberLength {
		return nil, 0, fmt.Errorf("%w: history key %d", ErrInvalidSize, len(k))
	}
	plainLen := len(k) - NumberLength
	return k[:plainLen], binary.BigEndian.Uint64(k[plainLen:]), nil
}
