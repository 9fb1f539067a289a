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
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"
)

// LegacyTx is the transaction data of regular Ethereum transactions.
type LegacyTx struct {
	CommonTx
	GasPrice *uint256.Int // wei per gas
}

type legacyTxRLP struct {
	Nonce    uint64
	GasPrice *uint256.Int
	Gas      uint64
	To       *common.Address `rlp:"nil"`
	Value    *uint256.Int
	Data     []byte
	V, R, S  *uint256.Int
}

func (enc *legacyTxRLP) toTx() *LegacyTx {
	tx := &LegacyTx{
		CommonTx: CommonTx{
			Nonce:    enc.Nonce,
			GasLimit: enc.Gas,
			To:       enc.To,
			Value:    u256OrZero(enc.Value),
			Data:     enc.Data,
		},
		GasPrice: u256OrZero(enc.GasPrice),
	}
	tx.V.Set(u256OrZero(enc.V))
	tx.R.Set(u256OrZero(enc.R))
	tx.S.Set(u256OrZero(enc.S))
	return tx
}

func (tx *LegacyTx) rlpPayload() *legacyTxRLP {
	return &legacyTxRLP{
		Nonce:    tx.Nonce,
		GasPrice: u256OrZero(tx.GasPrice),
		Gas:      tx.GasLimit,
		To:       tx.To,
		Value:    u256OrZero(tx.Value),
		Data:     tx.Data,
		V:        &tx.V,
		R:        &tx.R,
		S:        &tx.S,
	}
}

func (tx *LegacyTx) Type() byte { return LegacyTxType }

// GetChainID derives the chain id from V for EIP-155 signatures, nil otherwise.
func (tx *LegacyTx) GetChainID() *uint256.Int {
	if !tx.Protected() {
		return nil
	}
	id := new(uint256.Int).Sub(&tx.V, uint256.NewInt(35))
	return id.Rsh(id, 1)
}

func (tx *LegacyTx) Protected() bool {
	return tx.V.IsUint64() && tx.V.Uint64() != 27 && tx.V.Uint64() != 28 && !tx.V.IsZero()
}

func (tx *LegacyTx) GetPrice() *uint256.Int  { return u256OrZero(tx.GasPrice) }
func (tx *LegacyTx) GetTipCap() *uint256.Int { return u256OrZero(tx.GasPrice) }
func (tx *LegacyTx) GetFeeCap() *uint256.Int { return u256OrZero(tx.GasPrice) }

func (tx *LegacyTx) GetEffectiveGasTip(baseFee *uint256.Int) *uint256.Int {
	return effectiveTip(tx.GasPrice, tx.GasPrice, baseFee)
}

func (tx *LegacyTx) GetAccessList() AccessList { return nil }

func (tx *LegacyTx) Hash() common.Hash {
	return rlpHash(tx.rlpPayload())
}

func (tx *LegacyTx) MarshalBinary(w io.Writer) error {
	return rlp.Encode(w, tx.rlpPayload())
}
