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

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/erigontech/erigon-middleware/execution/types"
	"github.com/erigontech/erigon-middleware/turbo/rpchelper"
)

func HeaderToClient(h *types.Header) *gethtypes.Header {
	return &gethtypes.Header{
		ParentHash:       h.ParentHash,
		UncleHash:        h.UncleHash,
		Coinbase:         h.Coinbase,
		Root:             h.Root,
		TxHash:           h.TxHash,
		ReceiptHash:      h.ReceiptHash,
		Bloom:            gethtypes.Bloom(h.Bloom),
		Difficulty:       U256ToBig(h.Difficulty),
		Number:           new(big.Int).SetUint64(h.Number),
		GasLimit:         h.GasLimit,
		GasUsed:          h.GasUsed,
		Time:             h.Time,
		Extra:            common.CopyBytes(h.Extra),
		MixDigest:        h.MixDigest,
		Nonce:            gethtypes.BlockNonce(h.Nonce),
		BaseFee:          U256ToBig(h.BaseFee),
		WithdrawalsHash:  h.WithdrawalsHash,
		BlobGasUsed:      h.BlobGasUsed,
		ExcessBlobGas:    h.ExcessBlobGas,
		ParentBeaconRoot: h.ParentBeaconBlockRoot,
	}
}

// HeaderFromClient fails for headers carrying fields newer than the node stores.
func HeaderFromClient(h *gethtypes.Header) (*types.Header, error) {
	if h.RequestsHash != nil {
		return nil, fmt.Errorf("%w: header %d carries a requests hash", rpchelper.ErrConversion, h.Number)
	}
	if h.Number == nil || !h.Number.IsUint64() {
		return nil, fmt.Errorf("%w: header number %v", rpchelper.ErrConversion, h.Number)
	}
	difficulty, err := BigToU256(h.Difficulty)
	if err != nil {
		return nil, err
	}
	baseFee, err := BigToU256(h.BaseFee)
	if err != nil {
		return nil, err
	}
	return &types.Header{
		ParentHash:            h.ParentHash,
		UncleHash:             h.UncleHash,
		Coinbase:              h.Coinbase,
		Root:                  h.Root,
		TxHash:                h.TxHash,
		ReceiptHash:           h.ReceiptHash,
		Bloom:                 types.Bloom(h.Bloom),
		Difficulty:            difficulty,
		Number:                h.Number.Uint64(),
		GasLimit:              h.GasLimit,
		GasUsed:               h.GasUsed,
		Time:                  h.Time,
		Extra:                 common.CopyBytes(h.Extra),
		MixDigest:             h.MixDigest,
		Nonce:                 types.BlockNonce(h.Nonce),
		BaseFee:               baseFee,
		WithdrawalsHash:       h.WithdrawalsHash,
		BlobGasUsed:           h.BlobGasUsed,
		ExcessBlobGas:         h.ExcessBlobGas,
		ParentBeaconBlockRoot: h.ParentBeaconRoot,
	}, nil
}

func BlockToClient(b *types.Block) (*gethtypes.Block, error) {
	txs := make([]*gethtypes.Transaction, len(b.Transactions()))
	for i, txn := range b.Transactions() {
		t, err := TxToClient(txn)
		if err != nil {
			return nil, fmt.Errorf("block %d tx %d: %w", b.NumberU64(), i, err)
		}
		txs[i] = t
	}
	uncles := make([]*gethtypes.Header, len(b.Uncles()))
	for i, u := range b.Uncles() {
		uncles[i] = HeaderToClient(u)
	}
	return gethtypes.NewBlockWithHeader(HeaderToClient(b.HeaderNoCopy())).WithBody(gethtypes.Body{Transactions: txs, Uncles: uncles}), nil
}

func LogToClient(l *types.Log) *gethtypes.Log {
	return &gethtypes.Log{
		Address:     l.Address,
		Topics:      copyHashes(l.Topics),
		Data:        common.CopyBytes(l.Data),
		BlockNumber: l.BlockNumber,
		TxHash:      l.TxHash,
		TxIndex:     l.TxIndex,
		BlockHash:   l.BlockHash,
		Index:       l.Index,
		Removed:     l.Removed,
	}
}

// ReceiptToClient drops From and To, which the client receipt does not carry.
func ReceiptToClient(r *types.Receipt) *gethtypes.Receipt {
	logs := make([]*gethtypes.Log, len(r.Logs))
	for i, l := range r.Logs {
		logs[i] = LogToClient(l)
	}
	return &gethtypes.Receipt{
		Type:              r.Type,
		Status:            r.Status,
		CumulativeGasUsed: r.CumulativeGasUsed,
		Bloom:             gethtypes.Bloom(r.Bloom),
		Logs:              logs,
		TxHash:            r.TxHash,
		ContractAddress:   r.ContractAddress,
		GasUsed:           r.GasUsed,
		EffectiveGasPrice: U256ToBig(r.EffectiveGasPrice),
		BlockHash:         r.BlockHash,
		BlockNumber:       new(big.Int).SetUint64(r.BlockNumber),
		TransactionIndex:  r.TransactionIndex,
	}
}
