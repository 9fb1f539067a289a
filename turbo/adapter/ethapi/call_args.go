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

package ethapi

import (
	"errors"
	"fmt"
	"math"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	gethcore "github.com/ethereum/go-ethereum/core"
	"github.com/ethereum/go-ethereum/core/tracing"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"
	"github.com/ledgerwatch/log/v3"

	"github.com/erigontech/erigon-middleware/core/state"
	"github.com/erigontech/erigon-middleware/turbo/rpchelper"
)

// CallArgs represents the arguments for a call.
type CallArgs struct {
	From                 *common.Address       `json:"from"`
	To                   *common.Address       `json:"to"`
	Gas                  *hexutil.Uint64       `json:"gas"`
	GasPrice             *hexutil.Big          `json:"gasPrice"`
	MaxPriorityFeePerGas *hexutil.Big          `json:"maxPriorityFeePerGas"`
	MaxFeePerGas         *hexutil.Big          `json:"maxFeePerGas"`
	Value                *hexutil.Big          `json:"value"`
	Nonce                *hexutil.Uint64       `json:"nonce"`
	Data                 *hexutil.Bytes        `json:"data"`
	Input                *hexutil.Bytes        `json:"input"`
	AccessList           *gethtypes.AccessList `json:"accessList"`
	ChainID              *hexutil.Big          `json:"chainId,omitempty"`
}

// data retrieves the transaction calldata. Input field is preferred.
func (args *CallArgs) data() []byte {
	if args.Input != nil {
		return *args.Input
	}
	if args.Data != nil {
		return *args.Data
	}
	return nil
}

// ToMessage converts CallArgs to the Message type used by the core evm. A nil baseFee means
// the block predates London.
func (args *CallArgs) ToMessage(globalGasCap uint64, baseFee *uint256.Int) (*gethcore.Message, error) {
	if args.To == nil {
		return nil, fmt.Errorf("%w: call without a recipient", rpchelper.ErrConversion)
	}
	if args.GasPrice != nil && (args.MaxFeePerGas != nil || args.MaxPriorityFeePerGas != nil) {
		return nil, fmt.Errorf("%w: both gasPrice and (maxFeePerGas or maxPriorityFeePerGas) specified", rpchelper.ErrConversion)
	}
	// Set sender address or use zero address if none specified.
	var addr common.Address
	if args.From != nil {
		addr = *args.From
	}

	// Set default gas & gas price if none were set
	gas := globalGasCap
	if gas == 0 {
		gas = uint64(math.MaxUint64 / 2)
	}
	if args.Gas != nil {
		gas = uint64(*args.Gas)
	}
	if globalGasCap != 0 && globalGasCap < gas {
		log.Warn("Caller gas above allowance, capping", "requested", gas, "cap", globalGasCap)
		gas = globalGasCap
	}

	var gasPrice, gasFeeCap, gasTipCap *big.Int
	if baseFee == nil {
		// If there's no basefee, then it must be a non-1559 execution
		gasPrice = new(big.Int)
		if args.GasPrice != nil {
			gasPrice = args.GasPrice.ToInt()
		}
		gasFeeCap, gasTipCap = gasPrice, gasPrice
	} else if args.GasPrice != nil {
		// User specified the legacy gas field, convert to 1559 gas typing
		gasPrice = args.GasPrice.ToInt()
		gasFeeCap, gasTipCap = gasPrice, gasPrice
	} else {
		// User specified 1559 gas fields (or none), use those
		gasFeeCap = new(big.Int)
		if args.MaxFeePerGas != nil {
			gasFeeCap = args.MaxFeePerGas.ToInt()
		}
		gasTipCap = new(big.Int)
		if args.MaxPriorityFeePerGas != nil {
			gasTipCap = args.MaxPriorityFeePerGas.ToInt()
		}
		// Backfill the legacy gasPrice for EVM execution, unless we're all zeroes
		gasPrice = new(big.Int)
		if gasFeeCap.BitLen() > 0 || gasTipCap.BitLen() > 0 {
			gasPrice.Add(gasTipCap, baseFee.ToBig())
			if gasPrice.Cmp(gasFeeCap) > 0 {
				gasPrice.Set(gasFeeCap)
			}
		}
	}
	value := new(big.Int)
	if args.Value != nil {
		value = args.Value.ToInt()
	}
	var nonce uint64
	if args.Nonce != nil {
		nonce = uint64(*args.Nonce)
	}
	var accessList gethtypes.AccessList
	if args.AccessList != nil {
		accessList = *args.AccessList
	}

	return &gethcore.Message{
		From:            addr,
		To:              args.To,
		Nonce:           nonce,
		Value:           value,
		GasLimit:        gas,
		GasPrice:        gasPrice,
		GasFeeCap:       gasFeeCap,
		GasTipCap:       gasTipCap,
		Data:            args.data(),
		AccessList:      accessList,
		SkipNonceChecks: true,
	}, nil
}

// NewRevertError builds the error of a call that ended in REVERT with the given data.
func NewRevertError(revert []byte) *RevertError {
	reason, errUnpack := abi.UnpackRevert(revert)
	err := errors.New("execution reverted")
	if errUnpack == nil {
		err = fmt.Errorf("execution reverted: %v", reason)
	}
	return &RevertError{
		error:  err,
		reason: hexutil.Encode(revert),
	}
}

// RevertError is an API error that encompassas an EVM revertal with JSON error
// code and a binary data blob.
type RevertError struct {
	error
	reason string // revert reason hex encoded
}

// ErrorCode returns the JSON error code for a revertal.
// See: https://github.com/ethereum/wiki/wiki/JSON-RPC-Error-Codes-Improvement-Proposal
func (e *RevertError) ErrorCode() int {
	return 3
}

// ErrorData returns the hex encoded revert reason.
func (e *RevertError) ErrorData() interface{} {
	return e.reason
}

// Account indicates the overriding fields of account during the execution of
// a message call.
// Note, state and stateDiff can't be specified at the same time. If state is
// set, message execution will only use the data in the given state. Otherwise
// if statDiff is set, all diff will be applied first and then execute the call
// message.
type Account struct {
	Nonce     *hexutil.Uint64              `json:"nonce"`
	Code      *hexutil.Bytes               `json:"code"`
	Balance   **hexutil.Big                `json:"balance"`
	State     *map[common.Hash]common.Hash `json:"state"`
	StateDiff *map[common.Hash]common.Hash `json:"stateDiff"`
}

// StateOverrides is the collection of overridden accounts.
type StateOverrides map[common.Address]Account

// Override applies the overrides on top of ibs.
func (overrides *StateOverrides) Override(ibs *state.IntraBlockState) error {
	if overrides == nil {
		return nil
	}
	for addr, account := range *overrides {
		// Override account nonce.
		if account.Nonce != nil {
			ibs.SetNonce(addr, uint64(*account.Nonce), tracing.NonceChangeUnspecified)
		}
		// Override account(contract) code.
		if account.Code != nil {
			ibs.SetCode(addr, *account.Code)
		}
		// Override account balance.
		if account.Balance != nil {
			balance, overflow := uint256.FromBig((*big.Int)(*account.Balance))
			if overflow {
				return fmt.Errorf("%w: account.Balance higher than 2^256-1", rpchelper.ErrConversion)
			}
			ibs.SetBalance(addr, balance)
		}
		if account.State != nil && account.StateDiff != nil {
			return fmt.Errorf("%w: account %s has both 'state' and 'stateDiff'", rpchelper.ErrConversion, addr.Hex())
		}
		// Replace entire state if caller requires.
		if account.State != nil {
			ibs.SetStorage(addr, *account.State)
		}
		// Apply state diff into specified accounts.
		if account.StateDiff != nil {
			for key, value := range *account.StateDiff {
				ibs.SetState(addr, key, value)
			}
		}
	}
	return nil
}
