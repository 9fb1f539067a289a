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

package rpc

import (
	"encoding/json"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func TestBlockNumberJSONUnmarshal(t *testing.T) {
	t.Parallel()
	tests := []struct {
		input    string
		mustFail bool
		expected BlockNumber
	}{
		{`"0x"`, true, BlockNumber(0)},
		{`"0x0"`, false, BlockNumber(0)},
		{`"0X1"`, false, BlockNumber(1)},
		{`"0x00"`, true, BlockNumber(0)},
		{`"0x01"`, true, BlockNumber(0)},
		{`"ff"`, true, BlockNumber(0)},
		{`"0x12"`, false, BlockNumber(18)},
		{`"0x7fffffffffffffff"`, false, BlockNumber(0x7fffffffffffffff)},
		{`"0x8000000000000000"`, true, BlockNumber(0)},
		{`"12"`, false, BlockNumber(12)},
		{"0", false, BlockNumber(0)},
		{`"pending"`, false, PendingBlockNumber},
		{`"latest"`, false, LatestBlockNumber},
		{`"earliest"`, false, EarliestBlockNumber},
		{`"safe"`, false, SafeBlockNumber},
		{`"finalized"`, false, FinalizedBlockNumber},
		{`someString`, true, BlockNumber(0)},
		{`""`, false, LatestBlockNumber},
	}
	for i, tt := range tests {
		var num BlockNumber
		err := json.Unmarshal([]byte(tt.input), &num)
		if tt.mustFail {
			require.Error(t, err, "test %d: %s", i, tt.input)
			continue
		}
		require.NoError(t, err, "test %d: %s", i, tt.input)
		require.Equal(t, tt.expected, num, "test %d: %s", i, tt.input)
	}
}

func TestBlockNumberOrHashUnmarshal(t *testing.T) {
	t.Parallel()
	hash := common.HexToHash("0x02")
	tests := []struct {
		input    string
		mustFail bool
		expected BlockNumberOrHash
	}{
		{`"latest"`, false, BlockNumberOrHashWithNumber(LatestBlockNumber)},
		{`"0x12"`, false, BlockNumberOrHashWithNumber(18)},
		{`"` + hash.Hex() + `"`, false, BlockNumberOrHashWithHash(hash, false)},
		{`{"blockNumber":"0x1"}`, false, BlockNumberOrHashWithNumber(1)},
		{`{"blockHash":"` + hash.Hex() + `","requireCanonical":true}`, false, BlockNumberOrHashWithHash(hash, true)},
		{`{"blockNumber":"0x1","blockHash":"` + hash.Hex() + `"}`, true, BlockNumberOrHash{}},
		{`{}`, true, BlockNumberOrHash{}},
		{`"0xzz"`, true, BlockNumberOrHash{}},
	}
	for i, tt := range tests {
		var bnh BlockNumberOrHash
		err := json.Unmarshal([]byte(tt.input), &bnh)
		if tt.mustFail {
			require.Error(t, err, "test %d: %s", i, tt.input)
			continue
		}
		require.NoError(t, err, "test %d: %s", i, tt.input)
		require.Equal(t, tt.expected, bnh, "test %d: %s", i, tt.input)
	}
}

func TestBlockNumberMarshalText(t *testing.T) {
	t.Parallel()
	for _, bn := range []BlockNumber{LatestBlockNumber, PendingBlockNumber, EarliestBlockNumber, SafeBlockNumber, FinalizedBlockNumber, 255} {
		text, err := bn.MarshalText()
		require.NoError(t, err)
		var back BlockNumber
		require.NoError(t, back.UnmarshalJSON(text))
		require.Equal(t, bn, back)
	}
}
