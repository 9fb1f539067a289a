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
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/trie"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

func TestHeaderHashMatchesConsensusEncoding(t *testing.T) {
	t.Parallel()
	h := &Header{
		ParentHash:  common.HexToHash("0x01"),
		UncleHash:   EmptyUncleHash,
		Coinbase:    common.HexToAddress("0x8888f1f195afa192cfee860698584c030f4c9db1"),
		Root:        common.HexToHash("0xef1552a40b7165c3cd773806b9e0c165b75356e0314bf0706f279c729f51e017"),
		TxHash:      EmptyRootHash,
		ReceiptHash: EmptyRootHash,
		Difficulty:  uint256.NewInt(131072),
		Number:      42,
		GasLimit:    3141592,
		GasUsed:     21000,
		Time:        1426516743,
		Extra:       []byte("extra"),
		MixDigest:   common.HexToHash("0xbd4472abb6659ebe3ee06ee4d7b72a00a9f4d001caca51342001075469aff498"),
		Nonce:       EncodeNonce(0xa13a5a8c8f2bb1c4),
	}
	ref := &gethtypes.Header{
		ParentHash:  h.ParentHash,
		UncleHash:   h.UncleHash,
		Coinbase:    h.Coinbase,
		Root:        h.Root,
		TxHash:      h.TxHash,
		ReceiptHash: h.ReceiptHash,
		Difficulty:  big.NewInt(131072),
		Number:      big.NewInt(42),
		GasLimit:    h.GasLimit,
		GasUsed:     h.GasUsed,
		Time:        h.Time,
		Extra:       h.Extra,
		MixDigest:   h.MixDigest,
		Nonce:       gethtypes.EncodeNonce(0xa13a5a8c8f2bb1c4),
	}
	require.Equal(t, ref.Hash(), h.Hash())

	h.BaseFee = uint256.NewInt(7)
	ref.BaseFee = big.NewInt(7)
	require.Equal(t, ref.Hash(), h.Hash())
	require.Equal(t, gethtypes.EmptyUncleHash, EmptyUncleHash)
	require.Equal(t, gethtypes.EmptyCodeHash, EmptyCodeHash)
}

func TestBlockAccessors(t *testing.T) {
	t.Parallel()
	h := &Header{Number: 3, GasLimit: 100, Difficulty: uint256.NewInt(1)}
	uncle := &Header{Number: 2, Difficulty: uint256.NewInt(1)}
	txn := &LegacyTx{CommonTx: CommonTx{Nonce: 1}, GasPrice: uint256.NewInt(1)}
	b := NewBlockFromStorage(h, []Transaction{txn}, []*Header{uncle})

	require.Equal(t, uint64(3), b.NumberU64())
	require.Equal(t, h.Hash(), b.Hash())
	require.Len(t, b.Uncles(), 1)
	require.Equal(t, txn, b.Transaction(0))
	require.Nil(t, b.Transaction(1))
	require.Equal(t, 0, b.Transactions().TxIndex(txn.Hash()))
	require.Equal(t, -1, b.Transactions().TxIndex(common.Hash{}))

	h.Number = 99
	require.Equal(t, uint64(3), b.NumberU64(), "block keeps its own header copy")
}

func TestBloom(t *testing.T) {
	t.Parallel()
	addr := common.HexToAddress("0x22341ae42d6dd7384bc8584e50419ea3ac75b83f")
	topic := common.HexToHash("0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef")
	bloom := LogsBloom([]*Log{{Address: addr, Topics: []common.Hash{topic}}})
	require.True(t, bloom.Test(addr.Bytes()))
	require.True(t, bloom.Test(topic[:]))

	var ref gethtypes.Bloom
	ref.Add(addr.Bytes())
	ref.Add(topic[:])
	require.Equal(t, ref.Bytes(), bloom.Bytes())
}

func TestDeriveShaMatchesTxRoot(t *testing.T) {
	t.Parallel()
	require.Equal(t, EmptyRootHash, DeriveSha(Transactions{}))

	txs := make(Transactions, 0, 3)
	refs := make(gethtypes.Transactions, 0, 3)
	for nonce := uint64(0); nonce < 3; nonce++ {
		tx := &LegacyTx{
			CommonTx: CommonTx{Nonce: nonce, GasLimit: 21000, To: &testTo, Value: uint256.NewInt(1)},
			GasPrice: uint256.NewInt(1),
		}
		tx.V.SetUint64(27)
		tx.R.SetUint64(nonce + 1)
		tx.S.SetUint64(1)
		txs = append(txs, tx)
		refs = append(refs, gethtypes.NewTx(&gethtypes.LegacyTx{
			Nonce: nonce, GasPrice: big.NewInt(1), Gas: 21000, To: &testTo, Value: big.NewInt(1),
			V: big.NewInt(27), R: new(big.Int).SetUint64(nonce + 1), S: big.NewInt(1),
		}))
	}
	require.Equal(t, gethtypes.DeriveSha(refs, trie.NewStackTrie(nil)), DeriveSha(txs))
	require.NotEqual(t, DeriveSha(txs[:2]), DeriveSha(txs))
}
