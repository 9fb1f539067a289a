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

package conv

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common/hexutil"
	gethtypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/erigontech/erigon-middleware/rpc"
	"github.com/erigontech/erigon-middleware/turbo/adapter/ethapi"
	"github.com/erigontech/erigon-middleware/turbo/rpchelper"
)

// CallMsgToArgs rejects contract creation and blob calls: neither can be answered from history.
func CallMsgToArgs(msg ethereum.CallMsg) (ethapi.CallArgs, error) {
	if msg.To == nil {
		return ethapi.CallArgs{}, fmt.Errorf("%w: call message without recipient", rpchelper.ErrConversion)
	}
	if len(msg.BlobHashes) > 0 || msg.BlobGasFeeCap != nil {
		return ethapi.CallArgs{}, fmt.Errorf("%w: blob calls are not supported", rpchelper.ErrConversion)
	}
	from, to := msg.From, *msg.To
	args := ethapi.CallArgs{
		From:                 &from,
		To:                   &to,
		GasPrice:             (*hexutil.Big)(msg.GasPrice),
		MaxFeePerGas:         (*hexutil.Big)(msg.GasFeeCap),
		MaxPriorityFeePerGas: (*hexutil.Big)(msg.GasTipCap),
		Value:                (*hexutil.Big)(msg.Value),
	}
	if msg.Gas != 0 {
		gas := hexutil.Uint64(msg.Gas)
		args.Gas = &gas
	}
	if msg.Data != nil {
		data := hexutil.Bytes(msg.Data)
		args.Input = &data
	}
	if msg.AccessList != nil {
		al := append(gethtypes.AccessList(nil), msg.AccessList...)
		args.AccessList = &al
	}
	return args, nil
}

// BlockNumberOrHashFromClient maps the client library's block number argument, where nil means
// latest and negative numbers are the go-ethereum rpc tags.
func BlockNumberOrHashFromClient(number *big.Int) (rpc.BlockNumberOrHash, error) {
	if number == nil {
		return rpc.BlockNumberOrHashWithNumber(rpc.LatestBlockNumber), nil
	}
	if !number.IsInt64() {
		return rpc.BlockNumberOrHash{}, fmt.Errorf("%w: block number %s out of range", rpchelper.ErrConversion, number)
	}
	switch n := number.Int64(); {
	case n >= 0:
		return rpc.BlockNumberOrHashWithNumber(rpc.BlockNumber(n)), nil
	case n == -1:
		return rpc.BlockNumberOrHashWithNumber(rpc.PendingBlockNumber), nil
	case n == -2:
		return rpc.BlockNumberOrHashWithNumber(rpc.LatestBlockNumber), nil
	case n == -3:
		return rpc.BlockNumberOrHashWithNumber(rpc.FinalizedBlockNumber), nil
	case n == -4:
		return rpc.BlockNumberOrHashWithNumber(rpc.SafeBlockNumber), nil
	case n == -5:
		return rpc.BlockNumberOrHashWithNumber(rpc.EarliestBlockNumber), nil
	default:
		return rpc.BlockNumberOrHash{}, fmt.Errorf("%w: unknown block tag %d", rpchelper.ErrConversion, n)
	}
}
