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

package commands

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/require"

	"github.com/erigontech/erigon-middleware/rpc"
	"github.com/erigontech/erigon-middleware/turbo/adapter/ethapi"
	"github.com/erigontech/erigon-middleware/turbo/rpchelper"
)

func callTo(to common.Address) ethapi.CallArgs {
	return ethapi.CallArgs{To: &to}
}

func TestEthCall(t *testing.T) {
	t.Parallel()
	c := newTestChain(t)
	api := newTestAPI(t, c)
	ctx := context.Background()

	out, err := api.Call(ctx, callTo(constantAddr), nil, nil)
	require.NoError(t, err)
	require.Equal(t, common.BigToHash(big.NewInt(42)).Bytes(), []byte(out))

	for n, want := range map[int64]int64{0: 1, 1: 1, 2: 2} {
		bn := at(n)
		out, err := api.Call(ctx, callTo(sloadAddr), &bn, nil)
		require.NoError(t, err)
		require.Equal(t, common.BigToHash(big.NewInt(want)).Bytes(), []byte(out), "block %d", n)
	}

	unknown := at(10)
	_, err = api.Call(ctx, callTo(constantAddr), &unknown, nil)
	require.ErrorIs(t, err, rpchelper.ErrNotFound)

	_, err = api.Call(ctx, ethapi.CallArgs{}, nil, nil)
	require.ErrorIs(t, err, rpchelper.ErrConversion)
}

func TestEthCallRevert(t *testing.T) {
	t.Parallel()
	api := newTestAPI(t, newTestChain(t))

	_, err := api.Call(context.Background(), callTo(revertAddr), nil, nil)
	var revertErr *ethapi.RevertError
	require.ErrorAs(t, err, &revertErr)
	require.Equal(t, 3, revertErr.ErrorCode())
	require.Equal(t, hexutil.Encode(common.BigToHash(big.NewInt(42)).Bytes()), revertErr.ErrorData())
}

func TestEthCallOverrides(t *testing.T) {
	t.Parallel()
	api := newTestAPI(t, newTestChain(t))
	target := common.HexToAddress("0x7777")
	code := hexutil.Bytes(constantCode)
	overrides := ethapi.StateOverrides{target: {Code: &code}}

	out, err := api.Call(context.Background(), callTo(target), nil, &overrides)
	require.NoError(t, err)
	require.Equal(t, common.BigToHash(big.NewInt(42)).Bytes(), []byte(out))

	// overrides live only for that call
	out, err = api.Call(context.Background(), callTo(target), nil, nil)
	require.NoError(t, err)
	require.Empty(t, out)
}

func TestEstimateGas(t *testing.T) {
	t.Parallel()
	c := newTestChain(t)
	api := newTestAPI(t, c)
	value := (*hexutil.Big)(big.NewInt(1))

	gas, err := api.EstimateGas(context.Background(), ethapi.CallArgs{From: &c.Address, To: &bob, Value: value}, nil)
	require.NoError(t, err)
	require.Equal(t, hexutil.Uint64(21000), gas)

	earliest := rpc.BlockNumberOrHashWithNumber(rpc.EarliestBlockNumber)
	gas, err = api.EstimateGas(context.Background(), ethapi.CallArgs{From: &c.Address, To: &constantAddr}, &earliest)
	require.NoError(t, err)
	require.Greater(t, uint64(gas), uint64(21000))
}
