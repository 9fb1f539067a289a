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
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/google/go-cmp/cmp"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

var (
	testTo   = common.HexToAddress("0x095e7baea6a6c7c4c2dfeb977efac326af552d87")
	testData = common.FromHex("5544")
	testAL   = AccessList{{
		Address:     common.HexToAddress("0x0000000000000000000000000000000000000001"),
		StorageKeys: []common.Hash{common.HexToHash("0x01"), common.HexToHash("0x02")},
	}}
)

func testSig() (v, r, s uint256.Int) {
	v.SetUint64(1)
	r.SetFromHex("0xc9519f4f2b30335884581971573fadf60c6204f59a911df35ee8a540456b2660")
	s.SetFromHex("0x32f1e361c1d2e4a71e4ee8ba9cd0d5d8e1aad9bd1ebb6b40d5b1e9b58ebd7b1a")
	return
}

func toGethAL(al AccessList) gethtypes.AccessList {
	out := make(gethtypes.AccessList, len(al))
	for i, t := range al {
		out[i] = gethtypes.AccessTuple{Address: t.Address, StorageKeys: t.StorageKeys}
	}
	return out
}

func TestLegacyTxHashMatchesConsensusEncoding(t *testing.T) {
	t.Parallel()
	tx := &LegacyTx{
		CommonTx: CommonTx{Nonce: 3, GasLimit: 25000, To: &testTo, Value: uint256.NewInt(10), Data: testData},
		GasPrice: uint256.NewInt(1),
	}
	tx.V.SetUint64(37)
	tx.R.SetUint64(11)
	tx.S.SetUint64(12)

	ref := gethtypes.NewTx(&gethtypes.LegacyTx{
		Nonce: 3, GasPrice: big.NewInt(1), Gas: 25000, To: &testTo, Value: big.NewInt(10), Data: testData,
		V: big.NewInt(37), R: big.NewInt(11), S: big.NewInt(12),
	})
	require.Equal(t, ref.Hash(), tx.Hash())
	require.Equal(t, uint64(1), tx.GetChainID().Uint64())
	require.Nil(t, tx.GetAccessList())
}

func TestTypedTxHashMatchesConsensusEncoding(t *testing.T) {
	t.Parallel()
	v, r, s := testSig()

	al := &AccessListTx{
		LegacyTx: LegacyTx{
			CommonTx: CommonTx{Nonce: 1, GasLimit: 30000, To: &testTo, Value: uint256.NewInt(7), Data: testData, V: v, R: r, S: s},
			GasPrice: uint256.NewInt(5),
		},
		ChainID:    uint256.NewInt(1),
		AccessList: testAL,
	}
	alRef := gethtypes.NewTx(&gethtypes.AccessListTx{
		ChainID: big.NewInt(1), Nonce: 1, GasPrice: big.NewInt(5), Gas: 30000, To: &testTo, Value: big.NewInt(7),
		Data: testData, AccessList: toGethAL(testAL), V: v.ToBig(), R: r.ToBig(), S: s.ToBig(),
	})
	require.Equal(t, alRef.Hash(), al.Hash())

	df := &DynamicFeeTransaction{
		CommonTx:   CommonTx{Nonce: 9, GasLimit: 21000, Value: uint256.NewInt(0), V: v, R: r, S: s},
		ChainID:    uint256.NewInt(5),
		TipCap:     uint256.NewInt(2),
		FeeCap:     uint256.NewInt(100),
		AccessList: nil,
	}
	dfRef := gethtypes.NewTx(&gethtypes.DynamicFeeTx{
		ChainID: big.NewInt(5), Nonce: 9, GasTipCap: big.NewInt(2), GasFeeCap: big.NewInt(100), Gas: 21000,
		Value: big.NewInt(0), V: v.ToBig(), R: r.ToBig(), S: s.ToBig(),
	})
	require.Equal(t, dfRef.Hash(), df.Hash())
}

func TestTransactionBinaryRoundTrip(t *testing.T) {
	t.Parallel()
	v, r, s := testSig()
	txs := []Transaction{
		&LegacyTx{CommonTx: CommonTx{Nonce: 1, GasLimit: 21000, Value: uint256.NewInt(1), V: v, R: r, S: s}, GasPrice: uint256.NewInt(3)},
		&AccessListTx{
			LegacyTx:   LegacyTx{CommonTx: CommonTx{Nonce: 2, GasLimit: 50000, To: &testTo, Value: uint256.NewInt(0), Data: testData, V: v, R: r, S: s}, GasPrice: uint256.NewInt(4)},
			ChainID:    uint256.NewInt(1),
			AccessList: testAL,
		},
		&DynamicFeeTransaction{
			CommonTx:   CommonTx{Nonce: 3, GasLimit: 60000, To: &testTo, Value: uint256.NewInt(2), V: v, R: r, S: s},
			ChainID:    uint256.NewInt(1),
			TipCap:     uint256.NewInt(1),
			FeeCap:     uint256.NewInt(50),
			AccessList: testAL,
		},
	}
	for _, txn := range txs {
		var buf bytes.Buffer
		require.NoError(t, txn.MarshalBinary(&buf))
		decoded, err := DecodeTransaction(buf.Bytes())
		require.NoError(t, err)
		require.Equal(t, txn.Type(), decoded.Type())
		require.Equal(t, txn.Hash(), decoded.Hash())
		if diff := cmp.Diff(txn.GetAccessList(), decoded.GetAccessList()); diff != "" {
			t.Fatalf("access list mismatch (-want +got):\n%s", diff)
		}
	}

	_, err := DecodeTransaction([]byte{0x05, 0xc0})
	require.ErrorIs(t, err, ErrTxTypeNotSupported)
}

func TestEffectiveGasPrice(t *testing.T) {
	t.Parallel()
	baseFee := uint256.NewInt(10)
	df := &DynamicFeeTransaction{TipCap: uint256.NewInt(5), FeeCap: uint256.NewInt(12)}
	require.Equal(t, uint64(12), EffectiveGasPrice(df, baseFee).Uint64())

	df.FeeCap = uint256.NewInt(100)
	require.Equal(t, uint64(15), EffectiveGasPrice(df, baseFee).Uint64())

	legacy := &LegacyTx{GasPrice: uint256.NewInt(30)}
	require.Equal(t, uint64(30), EffectiveGasPrice(legacy, baseFee).Uint64())
	require.Equal(t, uint64(30), EffectiveGasPrice(legacy, nil).Uint64())
}
