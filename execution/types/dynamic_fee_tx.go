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
	"io"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// DynamicFeeTransaction is the data of EIP-1559 transactions.
type DynamicFeeTransaction struct {
	CommonTx
	ChainID    *uint256.Int
	TipCap     *uint256.Int // a.k.a. maxPriorityFeePerGas
	FeeCap     *uint256.Int // a.k.a. maxFeePerGas
	AccessList AccessList
}

type dynamicFeeTxRLP struct {
	ChainID    *uint256.Int
	Nonce      uint64
	TipCap     *uint256.Int
	FeeCap     *uint256.Int
	Gas        uint64
	To         *common.Address `rlp:"nil"`
	Value      *uint256.Int
	Data       []byte
	AccessList AccessList
	V, R, S    *uint256.Int
}

func (enc *dynamicFeeTxRLP) toTx() *DynamicFeeTransaction {
	tx := &DynamicFeeTransaction{
		CommonTx: CommonTx{
			Nonce:    enc.Nonce,
			GasLimit: enc.Gas,
			To:       enc.To,
			Value:    u256OrZero(enc.Value),
			Data:     enc.Data,
		},
		ChainID:    u256OrZero(enc.ChainID),
		TipCap:     u256OrZero(enc.TipCap),
		FeeCap:     u256OrZero(enc.FeeCap),
		AccessList: enc.AccessList,
	}
	tx.V.Set(u256OrZero(enc.V))
	tx.R.Set(u256OrZero(enc.R))
	tx.S.Set(u256OrZero(enc.S))
	return tx
}

func (tx *DynamicFeeTransaction) rlpPayload() *dynamicFeeTxRLP {
	al := tx.AccessList
	if al == nil {
		al = AccessList{}
	}
	return &dynamicFeeTxRLP{
		ChainID:    u256OrZero(tx.ChainID),
		Nonce:      tx.Nonce,
		TipCap:     u256OrZero(tx.TipCap),
		FeeCap:     u256OrZero(tx.FeeCap),
		Gas:        tx.GasLimit,
		To:         tx.To,
		Value:      u256OrZero(tx.Value),
		Data:       tx.Data,
		AccessList: al,
		V:          &tx.V,
		R:          &tx.R,
		S:          &tx.S,
	}
}

func (tx *DynamicFeeTransaction) Type() byte { return DynamicFeeTxType }

func (tx *DynamicFeeTransaction) GetChainID() *uint256.Int { return tx.ChainID }

func (tx *DynamicFeeTransaction) Protected() bool { return true }

func (tx *DynamicFeeTransaction) GetPrice() *uint256.Int  { return u256OrZero(tx.FeeCap) }
func (tx *DynamicFeeTransaction) GetTipCap() *uint256.Int { return u256OrZero(tx.TipCap) }
func (tx *DynamicFeeTransaction) GetFeeCap() *uint256.Int { return u256OrZero(tx.FeeCap) }

func (tx *DynamicFeeTransaction) GetEffectiveGasTip(baseFee *uint256.Int) *uint256.Int {
	return effectiveTip(tx.TipCap, tx.FeeCap, baseFee)
}

func (tx *DynamicFeeTransaction) GetAccessList() AccessList { return tx.AccessList }

func (tx *DynamicFeeTransaction) Hash() common.Hash {
	return typedTxHash(DynamicFeeTxType, tx.rlpPayload())
}

func (tx *DynamicFeeTransaction) MarshalBinary(w io.Writer) error {
	return marshalTyped(w, DynamicFeeTxType, tx.rlpPayload())
}
