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

package accounts

import (
	"errors"
	"fmt"
	"math/bits"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/erigontech/erigon-middleware/execution/types"
)

// Account is the Ethereum consensus representation of accounts.
// These objects are stored in the PlainState and AccountHistory tables.
type Account struct {
	Initialised bool
	Nonce       uint64
	Balance     uint256.Int
	CodeHash    common.Hash // hash of the bytecode
}

var ErrDecode = errors.New("malformed account encoding")

// NewAccount creates a new account w/o code nor storage.
func NewAccount() Account {
	return Account{
		Initialised: true,
		CodeHash:    types.EmptyCodeHash,
	}
}

func (a *Account) IsEmptyCodeHash() bool {
	return a.CodeHash == types.EmptyCodeHash || a.CodeHash == (common.Hash{})
}

// IsEmpty is the EIP-161 emptiness: zero nonce, zero balance and no code.
func (a *Account) IsEmpty() bool {
	return a.Nonce == 0 && a.Balance.IsZero() && a.IsEmptyCodeHash()
}

func (a *Account) Copy(image *Account) {
	a.Initialised = image.Initialised
	a.Nonce = image.Nonce
	a.Balance.Set(&image.Balance)
	a.CodeHash = image.CodeHash
}

func (a *Account) Equals(acc *Account) bool {
	return a.Nonce == acc.Nonce &&
		a.CodeHash == acc.CodeHash &&
		a.Balance.Cmp(&acc.Balance) == 0
}

func bitLenToByteLen(bitLen int) int {
	return (bitLen + 7) / 8
}

// SerialiseV3 writes each field as a length byte followed by the big endian value,
// with leading zeroes trimmed: nonce, balance, code hash (0 bytes when empty).
func SerialiseV3(a *Account) []byte {
	var l int
	l++
	if a.Nonce > 0 {
		l += bitLenToByteLen(bits.Len64(a.Nonce))
	}
	l++
	if !a.Balance.IsZero() {
		l += a.Balance.ByteLen()
	}
	l++
	if !a.IsEmptyCodeHash() {
		l += 32
	}
	value := make([]byte, l)
	pos := 0
	if a.Nonce == 0 {
		value[pos] = 0
		pos++
	} else {
		nonceBytes := bitLenToByteLen(bits.Len64(a.Nonce))
		value[pos] = byte(nonceBytes)
		var nonce = a.Nonce
		for i := nonceBytes; i > 0; i-- {
			value[pos+i] = byte(nonce)
			nonce >>= 8
		}
		pos += nonceBytes + 1
	}
	if a.Balance.IsZero() {
		value[pos] = 0
		pos++
	} else {
		balanceBytes := a.Balance.ByteLen()
		value[pos] = byte(balanceBytes)
		pos++
		a.Balance.WriteToSlice(value[pos : pos+balanceBytes])
		pos += balanceBytes
	}
	if a.IsEmptyCodeHash() {
		value[pos] = 0
	} else {
		value[pos] = 32
		pos++
		copy(value[pos:pos+32], a.CodeHash[:])
	}
	return value
}

// DeserialiseV3 is the inverse of SerialiseV3. An empty enc leaves a uninitialised.
func DeserialiseV3(a *Account, enc []byte) error {
	a.Reset()
	if len(enc) == 0 {
		return nil
	}
	pos := 0
	nonceBytes := int(enc[pos])
	pos++
	if nonceBytes > 8 || pos+nonceBytes > len(enc) {
		return fmt.Errorf("%w: nonce length %d", ErrDecode, nonceBytes)
	}
	if nonceBytes > 0 {
		for _, b := range enc[pos : pos+nonceBytes] {
			a.Nonce = a.Nonce<<8 | uint64(b)
		}
		pos += nonceBytes
	}
	if pos >= len(enc) {
		return fmt.Errorf("%w: truncated before balance", ErrDecode)
	}
	balanceBytes := int(enc[pos])
	pos++
	if balanceBytes > 32 || pos+balanceBytes > len(enc) {
		return fmt.Errorf("%w: balance length %d", ErrDecode, balanceBytes)
	}
	if balanceBytes > 0 {
		a.Balance.SetBytes(enc[pos : pos+balanceBytes])
		pos += balanceBytes
	}
	if pos >= len(enc) {
		return fmt.Errorf("%w: truncated before code hash", ErrDecode)
	}
	codeHashBytes := int(enc[pos])
	pos++
	switch codeHashBytes {
	case 0:
		a.CodeHash = types.EmptyCodeHash
	case 32:
		if pos+32 > len(enc) {
			return fmt.Errorf("%w: truncated code hash", ErrDecode)
		}
		copy(a.CodeHash[:], enc[pos:pos+32])
	default:
		return fmt.Errorf("%w: code hash length %d", ErrDecode, codeHashBytes)
	}
	a.Initialised = true
	return nil
}

func (a *Account) Reset() {
	a.Initialised = false
	a.Nonce = 0
	a.Balance.Clear()
	a.CodeHash = common.Hash{}
}
