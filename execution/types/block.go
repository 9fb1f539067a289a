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
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"
)

// A BlockNonce is a 64-bit hash which proves (combined with the
// mix-hash) that a sufficient amount of computation has been carried
// out on a block.
type BlockNonce [8]byte

// EncodeNonce converts the given integer to a block nonce.
func EncodeNonce(i uint64) BlockNonce {
	var n BlockNonce
	binary.BigEndian.PutUint64(n[:], i)
	return n
}

// Uint64 returns the integer value of a block nonce.
func (n BlockNonce) Uint64() uint64 {
	return binary.BigEndian.Uint64(n[:])
}

// Header represents a block header in the Ethereum blockchain.
// Field order is the consensus encoding order.
type Header struct {
	ParentHash  common.Hash
	UncleHash   common.Hash
	Coinbase    common.Address
	Root        common.Hash
	TxHash      common.Hash
	ReceiptHash common.Hash
	Bloom       Bloom
	Difficulty  *uint256.Int
	Number      uint64
	GasLimit    uint64
	GasUsed     uint64
	Time        uint64
	Extra       []byte
	MixDigest   common.Hash
	Nonce       BlockNonce

	BaseFee *uint256.Int `rlp:"optional"` // EIP-1559

	WithdrawalsHash *common.Hash `rlp:"optional"` // EIP-4895

	BlobGasUsed           *uint64      `rlp:"optional"` // EIP-4844
	ExcessBlobGas         *uint64      `rlp:"optional"` // EIP-4844
	ParentBeaconBlockRoot *common.Hash `rlp:"optional"` // EIP-4788
}

// Hash returns the block hash of the header, which is simply the keccak256 hash of its
// RLP encoding.
func (h *Header) Hash() common.Hash {
	return rlpHash(h)
}

func (h *Header) NumberBig() *big.Int {
	return new(big.Int).SetUint64(h.Number)
}

// Copy creates a deep copy of a block header.
func CopyHeader(h *Header) *Header {
	cpy := *h
	if h.Difficulty != nil {
		cpy.Difficulty = new(uint256.Int).Set(h.Difficulty)
	}
	if h.BaseFee != nil {
		cpy.BaseFee = new(uint256.Int).Set(h.BaseFee)
	}
	if len(h.Extra) > 0 {
		cpy.Extra = common.CopyBytes(h.Extra)
	}
	if h.WithdrawalsHash != nil {
		v := *h.WithdrawalsHash
		cpy.WithdrawalsHash = &v
	}
	if h.BlobGasUsed != nil {
		v := *h.BlobGasUsed
		cpy.BlobGasUsed = &v
	}
	if h.ExcessBlobGas != nil {
		v := *h.ExcessBlobGas
		cpy.ExcessBlobGas = &v
	}
	if h.ParentBeaconBlockRoot != nil {
		v := *h.ParentBeaconBlockRoot
		cpy.ParentBeaconBlockRoot = &v
	}
	return &cpy
}

// Body is a simple (mutable, non-safe) data container for storing and moving
// a block's data contents (transactions and uncles) together.
type Body struct {
	Transactions []Transaction
	Uncles       []*Header
}

// BodyForStorage is what the BlockBody table holds: transactions live in EthTx
// under the ids [BaseTxId, BaseTxId+TxAmount).
type BodyForStorage struct {
	BaseTxId uint64
	TxAmount uint32
	Uncles   []*Header
}

// Block represents an entire block in the Ethereum blockchain.
type Block struct {
	header       *Header
	uncles       []*Header
	transactions Transactions
}

// NewBlockFromStorage is like NewBlock but it does not recalculate transaction or uncle roots.
func NewBlockFromStorage(header *Header, txs []Transaction, uncles []*Header) *Block {
	b := &Block{header: CopyHeader(header)}
	b.transactions = make(Transactions, len(txs))
	copy(b.transactions, txs)
	b.uncles = make([]*Header, len(uncles))
	for i := range uncles {
		b.uncles[i] = CopyHeader(uncles[i])
	}
	return b
}

func (b *Block) Header() *Header             { return CopyHeader(b.header) }
func (b *Block) HeaderNoCopy() *Header       { return b.header }
func (b *Block) Uncles() []*Header           { return b.uncles }
func (b *Block) Transactions() Transactions  { return b.transactions }
func (b *Block) NumberU64() uint64           { return b.header.Number }
func (b *Block) GasLimit() uint64            { return b.header.GasLimit }
func (b *Block) GasUsed() uint64             { return b.header.GasUsed }
func (b *Block) Time() uint64                { return b.header.Time }
func (b *Block) ParentHash() common.Hash     { return b.header.ParentHash }
func (b *Block) Coinbase() common.Address    { return b.header.Coinbase }
func (b *Block) BaseFee() *uint256.Int       { return b.header.BaseFee }
func (b *Block) Hash() common.Hash           { return b.header.Hash() }
func (b *Block) Body() *Body                 { return &Body{Transactions: b.transactions, Uncles: b.uncles} }
func (b *Block) Transaction(i int) Transaction {
	if i < 0 || i >= len(b.transactions) {
		return nil
	}
	return b.transactions[i]
}

// Size returns the RLP encoded size of the block: header, transactions and uncles.
func (b *Block) Size() (uint64, error) {
	txs, err := MarshalTransactionsBinary(b.transactions)
	if err != nil {
		return 0, err
	}
	enc, err := rlp.EncodeToBytes([]any{b.header, txs, b.uncles})
	if err != nil {
		return 0, fmt.Errorf("encode block %d: %w", b.NumberU64(), err)
	}
	return uint64(len(enc)), nil
}

// CalcUncleHash is the hash of the RLP list of uncle headers.
func CalcUncleHash(uncles []*Header) common.Hash {
	if len(uncles) == 0 {
		return EmptyUncleHash
	}
	return rlpHash(uncles)
}
