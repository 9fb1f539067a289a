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

package core

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	gethcore "github.com/ethereum/go-ethereum/core"
	"github.com/holiman/uint256"

	"github.com/erigontech/erigon-middleware/execution/types"
	"github.com/erigontech/erigon-middleware/turbo/adapter/conv"
)

// TransactionToMessage converts a stored transaction into a message for the EVM.
func TransactionToMessage(txn types.Transaction, sender common.Address, baseFee *uint256.Int) (*gethcore.Message, error) {
	msg := &gethcore.Message{
		To:         txn.GetTo(),
		From:       sender,
		Nonce:      txn.GetNonce(),
		Value:      txn.GetValue().ToBig(),
		GasLimit:   txn.GetGasLimit(),
		Data:       txn.GetData(),
		AccessList: conv.AccessListToClient(txn.GetAccessList()),
	}
	switch t := txn.(type) {
	case *types.LegacyTx, *types.AccessListTx:
		price := t.GetPrice().ToBig()
		msg.GasPrice = price
		msg.GasFeeCap = price
		msg.GasTipCap = price
	case *types.DynamicFeeTransaction:
		msg.GasFeeCap = t.GetFeeCap().ToBig()
		msg.GasTipCap = t.GetTipCap().ToBig()
		msg.GasPrice = types.EffectiveGasPrice(t, baseFee).ToBig()
	default:
		return nil, fmt.Errorf("%w: %T", types.ErrTxTypeNotSupported, txn)
	}
	return msg, nil
}
