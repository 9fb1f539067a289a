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
	"github.com/holiman/uint256"

	"github.com/erigontech/erigon-middleware/execution/types"
	"github.com/erigontech/erigon-middleware/turbo/rpchelper"
)

func copyHashes(in []common.Hash) []common.Hash {
	if in == nil {
		return nil
	}
	out := make([]common.Hash, len(in))
	copy(out, in)
	return out
}

// AccessListToClient keeps a nil list nil.
func AccessListToClient(al types.AccessList) gethtypes.AccessList {
	if al == nil {
		return nil
	}
	res := make(gethtypes.AccessList, len(al))
	for i, tuple := range al {
		res[i] = gethtypes.AccessTuple{Address: tuple.Address, StorageKeys: copyHashes(tuple.StorageKeys)}
	}
	return res
}

func AccessListFromClient(al gethtypes.AccessList) types.AccessList {
	if al == nil {
		return nil
	}
	res := make(types.AccessList, len(al))
	for i, tuple := range al {
		res[i] = types.AccessTuple{Address: tuple.Address, StorageKeys: copyHashes(tuple.StorageKeys)}
	}
	return res
}

func TxToClient(txn types.Transaction) (*gethtypes.Transaction, error) {
	v, r, s := txn.RawSignatureValues()
	switch t := txn.(type) {
	case *types.LegacyTx:
		return gethtypes.NewTx(&gethtypes.LegacyTx{
			Nonce:    t.Nonce,
			GasPrice: t.GetPrice().ToBig(),
			Gas:      t.GasLimit,
			To:       t.To,
			Value:    t.GetValue().ToBig(),
			Data:     common.CopyBytes(t.Data),
			V:        v.ToBig(),
			R:        r.ToBig(),
			S:        s.ToBig(),
		}), nil
	case *types.AccessListTx:
		return gethtypes.NewTx(&gethtypes.AccessListTx{
			ChainID:    U256ToBig(t.ChainID),
			Nonce:      t.Nonce,
			GasPrice:   t.GetPrice().ToBig(),
			Gas:        t.GasLimit,
			To:         t.To,
			Value:      t.GetValue().ToBig(),
			Data:       common.CopyBytes(t.Data),
			AccessList: AccessListToClient(t.AccessList),
			V:          v.ToBig(),
			R:          r.ToBig(),
			S:          s.ToBig(),
		}), nil
	case *types.DynamicFeeTransaction:
		return gethtypes.NewTx(&gethtypes.DynamicFeeTx{
			ChainID:    U256ToBig(t.ChainID),
			Nonce:      t.Nonce,
			GasTipCap:  t.GetTipCap().ToBig(),
			GasFeeCap:  t.GetFeeCap().ToBig(),
			Gas:        t.GasLimit,
			To:         t.To,
			Value:      t.GetValue().ToBig(),
			Data:       common.CopyBytes(t.Data),
			AccessList: AccessListToClient(t.AccessList),
			V:          v.ToBig(),
			R:          r.ToBig(),
			S:          s.ToBig(),
		}), nil
	default:
		return nil, fmt.Errorf("%w: unknown transaction type %T", rpchelper.ErrConversion, txn)
	}
}

func setSignatureValue(dst *uint256.Int, src *big.Int) error {
	v, err := BigToU256(src)
	if err != nil {
		return err
	}
	if v != nil {
		dst.Set(v)
	}
	return nil
}

func TxFromClient(txn *gethtypes.Transaction) (types.Transaction, error) {
	ct := types.CommonTx{
		Nonce:    txn.Nonce(),
		GasLimit: txn.Gas(),
		To:       txn.To(),
		Data:     txn.Data(),
	}
	var err error
	if ct.Value, err = BigToU256(txn.Value()); err != nil {
		return nil, err
	}
	v, r, s := txn.RawSignatureValues()
	if err = setSignatureValue(&ct.V, v); err != nil {
		return nil, err
	}
	if err = setSignatureValue(&ct.R, r); err != nil {
		return nil, err
	}
	if err = setSignatureValue(&ct.S, s); err != nil {
		return nil, err
	}

	switch txn.Type() {
	case gethtypes.LegacyTxType:
		gasPrice, err := BigToU256(txn.GasPrice())
		if err != nil {
			return nil, err
		}
		return &types.LegacyTx{CommonTx: ct, GasPrice: gasPrice}, nil
	case gethtypes.AccessListTxType:
		chainID, err := BigToU256(txn.ChainId())
		if err != nil {
			return nil, err
		}
		gasPrice, err := BigToU256(txn.GasPrice())
		if err != nil {
			return nil, err
		}
		return &types.AccessListTx{
			LegacyTx:   types.LegacyTx{CommonTx: ct, GasPrice: gasPrice},
			ChainID:    chainID,
			AccessList: AccessListFromClient(txn.AccessList()),
		}, nil
	case gethtypes.DynamicFeeTxType:
		chainID, err := BigToU256(txn.ChainId())
		if err != nil {
			return nil, err
		}
		tipCap, err := BigToU256(txn.GasTipCap())
		if err != nil {
			return nil, err
		}
		feeCap, err := BigToU256(txn.GasFeeCap())
		if err != nil {
			return nil, err
		}
		return &types.DynamicFeeTransaction{
			CommonTx:   ct,
			ChainID:    chainID,
			TipCap:     tipCap,
			FeeCap:     feeCap,
			AccessList: AccessListFromClient(txn.AccessList()),
		}, nil
	default:
		return nil, fmt.Errorf("%w: unsupported transaction type %d", rpchelper.ErrConversion, txn.Type())
	}
}
