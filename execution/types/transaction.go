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

package types

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"
)

var (
	ErrTxTypeNotSupported = errors.New("transaction type not supported")
	errShortTypedTx       = errors.New("typed transaction too short")
)

// Transaction types.
const (
	LegacyTxType = iota
	AccessListTxType
	DynamicFeeTxType
)

// Transaction is implemented by *LegacyTx, *AccessListTx and *DynamicFeeTransaction.
type Transaction interface {
	Type() byte
	GetChainID() *uint256.Int
	GetNonce() uint64
	// GetPrice is the gas price for legacy and access list transactions and the fee cap for fee market ones.
	GetPrice() *uint256.Int
	GetTipCap() *uint256.Int
	GetFeeCap() *uint256.Int
	GetEffectiveGasTip(baseFee *uint256.Int) *uint256.Int
	GetGasLimit() uint64
	GetTo() *common.Address
	GetValue() *uint256.Int
	GetData() []byte
	GetAccessList() AccessList
	RawSignatureValues() (*uint256.Int, *uint256.Int, *uint256.Int)
	Protected() bool
	Hash() common.Hash
	// MarshalBinary writes the canonical encoding: the RLP list for legacy
	// transactions, type byte followed by the RLP payload otherwise.
	MarshalBinary(w io.Writer) error
}

// CommonTx is the part of the transaction shared by all types.
type CommonTx struct {
	Nonce    uint64          // nonce of sender account
	GasLimit uint64          // gas limit
	To       *common.Address `rlp:"nil"` // nil means contract creation
	Value    *uint256.Int    // wei amount
	Data     []byte          // contract invocation input data
	V, R, S  uint256.Int     // signature values
}

func (ct *CommonTx) GetNonce() uint64 { return ct.Nonce }

func (ct *CommonTx) GetGasLimit() uint64 { return ct.GasLimit }

func (ct *CommonTx) GetTo() *common.Address { return ct.To }

func (ct *CommonTx) GetValue() *uint256.Int {
	if ct.Value == nil {
		return new(uint256.Int)
	}
	return ct.Value
}

func (ct *CommonTx) GetData() []byte { return ct.Data }

func (ct *CommonTx) RawSignatureValues() (*uint256.Int, *uint256.Int, *uint256.Int) {
	return &ct.V, &ct.R, &ct.S
}

// Transactions implements DerivableList for transactions.
type Transactions []Transaction

// Len returns the length of s.
func (s Transactions) Len() int { return len(s) }

// EncodeIndex encodes the i'th transaction to w.
func (s Transactions) EncodeIndex(i int, w *bytes.Buffer) {
	if err := s[i].MarshalBinary(w); err != nil {
		panic(err)
	}
}

// TxIndex returns the position of the transaction with the given hash, or -1.
func (s Transactions) TxIndex(hash common.Hash) int {
	for i, txn := range s {
		if txn.Hash() == hash {
			return i
		}
	}
	return -1
}

// MarshalTransactionsBinary encodes every transaction with MarshalBinary.
func MarshalTransactionsBinary(txs Transactions) ([][]byte, error) {
	result := make([][]byte, len(txs))
	var buf bytes.Buffer
	for i := range txs {
		buf.Reset()
		if err := txs[i].MarshalBinary(&buf); err != nil {
			return nil, err
		}
		result[i] = common.CopyBytes(buf.Bytes())
	}
	return result, nil
}

// DecodeTransaction decodes the canonical encoding produced by MarshalBinary.
func DecodeTransaction(data []byte) (Transaction, error) {
	if len(data) == 0 {
		return nil, io.EOF
	}
	if data[0] >= 0xc0 {
		var enc legacyTxRLP
		if err := rlp.DecodeBytes(data, &enc); err != nil {
			return nil, fmt.Errorf("decode legacy transaction: %w", err)
		}
		return enc.toTx(), nil
	}
	if len(data) <= 1 {
		return nil, errShortTypedTx
	}
	switch data[0] {
	case AccessListTxType:
		var enc accessListTxRLP
		if err := rlp.DecodeBytes(data[1:], &enc); err != nil {
			return nil, fmt.Errorf("decode access list transaction: %w", err)
		}
		return enc.toTx(), nil
	case DynamicFeeTxType:
		var enc dynamicFeeTxRLP
		if err := rlp.DecodeBytes(data[1:], &enc); err != nil {
			return nil, fmt.Errorf("decode dynamic fee transaction: %w", err)
		}
		return enc.toTx(), nil
	default:
		return nil, fmt.Errorf("%w: type %d", ErrTxTypeNotSupported, data[0])
	}
}

// DecodeTransactions decodes a list of canonical transaction encodings.
func DecodeTransactions(txs [][]byte) ([]Transaction, error) {
	result := make([]Transaction, len(txs))
	var err error
	for i := range txs {
		result[i], err = DecodeTransaction(txs[i])
		if err != nil {
			return nil, err
		}
	}
	return result, nil
}

func typedTxHash(typ byte, payload any) common.Hash {
	var buf bytes.Buffer
	buf.WriteByte(typ)
	if err := rlp.Encode(&buf, payload); err != nil {
		panic(err)
	}
	return keccak(buf.Bytes())
}

func marshalTyped(w io.Writer, typ byte, payload any) error {
	if _, err := w.Write([]byte{typ}); err != nil {
		return err
	}
	return rlp.Encode(w, payload)
}

func u256OrZero(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return v
}

// effectiveTip is min(tipCap, feeCap - baseFee), or tipCap when there is no base fee.
func effectiveTip(tipCap, feeCap, baseFee *uint256.Int) *uint256.Int {
	tip := new(uint256.Int).Set(u256OrZero(tipCap))
	if baseFee == nil {
		return tip
	}
	fc := u256OrZero(feeCap)
	if fc.Lt(baseFee) {
		return new(uint256.Int)
	}
	gap := new(uint256.Int).Sub(fc, baseFee)
	if gap.Lt(tip) {
		return gap
	}
	return tip
}

// EffectiveGasPrice is the price per gas actually paid: baseFee + effective tip.
func EffectiveGasPrice(txn Transaction, baseFee *uint256.Int) *uint256.Int {
	if baseFee == nil {
		return new(uint256.Int).Set(u256OrZero(txn.GetPrice()))
	}
	return new(uint256.Int).Add(baseFee, txn.GetEffectiveGasTip(baseFee))
}
