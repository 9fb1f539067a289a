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

// AccessTuple is the element type of an access list.
type AccessTuple struct {
	Address     common.Address `json:"address"`
	StorageKeys []common.Hash  `json:"storageKeys"`
}

// AccessList is an EIP-2930 access list.
type AccessList []AccessTuple

// StorageKeys returns the total number of storage keys in the access list.
func (al AccessList) StorageKeys() int {
	sum := 0
	for _, tuple := range al {
		sum += len(tuple.StorageKeys)
	}
	return sum
}

// AccessListTx is the data of EIP-2930 access list transactions.
type AccessListTx struct {
	LegacyTx
	ChainID    *uint256.Int
	AccessList AccessList // EIP-2930 access list
}

type accessListTxRLP struct {
	ChainID    *uint256.Int
	Nonce      uint64
	GasPrice   *uint256.Int
	Gas        uint64
	To         *common.Address `rlp:"nil"`
	Value      *uint256.Int
	Data       []byte
	AccessList AccessList
	V, R, S    *uint256.Int
}

func (enc *accessListTxRLP) toTx() *AccessListTx {
	tx := &AccessListTx{
		LegacyTx: LegacyTx{
			CommonTx: CommonTx{
				Nonce:    enc.Nonce,
				GasLimit: enc.Gas,
				To:       enc.To,
				Value:    u256OrZero(enc.Value),
				Data:     enc.Data,
			},
			GasPrice: u256OrZero(enc.GasPrice),
		},
		ChainID:    u256OrZero(enc.ChainID),
		AccessList: enc.AccessList,
	}
	tx.V.Set(u256OrZero(enc.V))
	tx.R.Set(u256OrZero(enc.R))
	tx.S.Set(u256OrZero(enc.S))
	return tx
}

func (tx *AccessListTx) rlpPayload() *accessListTxRLP {
	al := tx.AccessList
	if al == nil {
		al = AccessList{}
	}
	return &accessListTxRLP{
		ChainID:    u256OrZero(tx.ChainID),
		Nonce:      tx.Nonce,
		GasPrice:   u256OrZero(tx.GasPrice),
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

func (tx *AccessListTx) Type() byte { return AccessListTxType }

func (tx *AccessListTx) GetChainID() *uint256.Int { return tx.ChainID }

func (tx *AccessListTx) Protected() bool { return true }

func (tx *AccessListTx) GetAccessList() AccessList { return tx.AccessList }

func (tx *AccessListTx) Hash() common.Hash {
	return typedTxHash(AccessListTxType, tx.rlpPayload())
}

func (tx *AccessListTx) MarshalBinary(w io.Writer) error {
	return marshalTyped(w, AccessListTxType, tx.rlpPayload())
}
