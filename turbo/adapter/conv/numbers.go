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

// Package conv translates between node types (execution/types, uint256) and the
// go-ethereum client library types (core/types, ethereum.CallMsg, big.Int).
package conv

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/erigontech/erigon-middleware/turbo/rpchelper"
)

// U256ToBig returns nil for nil.
func U256ToBig(v *uint256.Int) *big.Int {
	if v == nil {
		return nil
	}
	return v.ToBig()
}

// BigToU256 returns nil for nil and fails for negative values and values wider than 256 bits.
func BigToU256(v *big.Int) (*uint256.Int, error) {
	if v == nil {
		return nil, nil
	}
	if v.Sign() < 0 {
		return nil, fmt.Errorf("%w: negative value %s", rpchelper.ErrConversion, v)
	}
	res, overflow := uint256.FromBig(v)
	if overflow {
		return nil, fmt.Errorf("%w: value %s overflows 256 bits", rpchelper.ErrConversion, v)
	}
	return res, nil
}

func U256ToBytes32BE(v *uint256.Int) common.Hash {
	return common.Hash(v.Bytes32())
}

func Bytes32BEToU256(h common.Hash) *uint256.Int {
	return new(uint256.Int).SetBytes32(h[:])
}
