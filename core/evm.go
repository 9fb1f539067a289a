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
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	gethcore "github.com/ethereum/go-ethereum/core"
	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/ethereum/go-ethereum/params"

	"github.com/erigontech/erigon-middleware/db/kv"
	"github.com/erigontech/erigon-middleware/db/rawdb"
	"github.com/erigontech/erigon-middleware/execution/types"
)

// Blob base fee update fractions (EIP-4844, EIP-7691).
const (
	blobBaseFeeUpdateFractionCancun = 3338477
	blobBaseFeeUpdateFractionPrague = 5007716
	minBlobBaseFee                  = 1
)

// NewEVMBlockContext creates a new context for use in the EVM.
func NewEVMBlockContext(header *types.Header, blockHashFunc func(n uint64) common.Hash, chainConfig *params.ChainConfig) vm.BlockContext {
	number := header.NumberBig()
	var baseFee *big.Int
	if header.BaseFee != nil {
		baseFee = header.BaseFee.ToBig()
	} else if chainConfig.IsLondon(number) {
		baseFee = new(big.Int)
	}
	difficulty := new(big.Int)
	if header.Difficulty != nil {
		difficulty = header.Difficulty.ToBig()
	}
	var prevRandDao *common.Hash
	if difficulty.Sign() == 0 {
		// Post-merge blocks carry the beacon randomness in the mix digest
		mix := header.MixDigest
		prevRandDao = &mix
	}
	var blobBaseFee *big.Int
	if chainConfig.IsCancun(number, header.Time) {
		var excess uint64
		if header.ExcessBlobGas != nil {
			excess = *header.ExcessBlobGas
		}
		fraction := uint64(blobBaseFeeUpdateFractionCancun)
		if chainConfig.IsPrague(number, header.Time) {
			fraction = blobBaseFeeUpdateFractionPrague
		}
		blobBaseFee = fakeExponential(big.NewInt(minBlobBaseFee), new(big.Int).SetUint64(excess), new(big.Int).SetUint64(fraction))
	}
	return vm.BlockContext{
		CanTransfer: gethcore.CanTransfer,
		Transfer:    gethcore.Transfer,
		GetHash:     blockHashFunc,
		Coinbase:    header.Coinbase,
		BlockNumber: number,
		Time:        header.Time,
		Difficulty:  difficulty,
		BaseFee:     baseFee,
		BlobBaseFee: blobBaseFee,
		GasLimit:    header.GasLimit,
		Random:      prevRandDao,
	}
}

// fakeExponential approximates factor * e ** (numerator / denominator) using
// Taylor expansion.
func fakeExponential(factor, numerator, denominator *big.Int) *big.Int {
	var (
		output = new(big.Int)
		accum  = new(big.Int).Mul(factor, denominator)
	)
	for i := 1; accum.Sign() > 0; i++ {
		output.Add(output, accum)

		accum.Mul(accum, numerator)
		accum.Div(accum, denominator)
		accum.Div(accum, big.NewInt(int64(i)))
	}
	return output.Div(output, denominator)
}

// GetHashFn returns a GetHashFunc which retrieves header hashes by number
func GetHashFn(ref *types.Header, getHeader func(hash common.Hash, number uint64) *types.Header) func(n uint64) common.Hash {
	// Cache will initially contain [refHash.parent],
	// Then fill up with [refHash.p, refHash.pp, refHash.ppp, ...]
	var cache []common.Hash

	return func(n uint64) common.Hash {
		if ref.Number <= n {
			return common.Hash{}
		}
		// If there's no hash cache yet, make one
		if len(cache) == 0 {
			cache = append(cache, ref.ParentHash)
		}
		if idx := ref.Number - n - 1; idx < uint64(len(cache)) {
			return cache[idx]
		}
		// No luck in the cache, but we can start iterating from the last element we already know
		lastKnownHash := cache[len(cache)-1]
		lastKnownNumber := ref.Number - uint64(len(cache))

		for {
			header := getHeader(lastKnownHash, lastKnownNumber)
			if header == nil || header.Number == 0 {
				break
			}
			cache = append(cache, header.ParentHash)
			lastKnownHash = header.ParentHash
			lastKnownNumber = header.Number - 1
			if n == lastKnownNumber {
				return lastKnownHash
			}
		}
		return common.Hash{}
	}
}

// CanonicalHashFn resolves BLOCKHASH through the canonical chain index of tx.
func CanonicalHashFn(tx kv.Getter) func(n uint64) common.Hash {
	return func(n uint64) common.Hash {
		hash, err := rawdb.ReadCanonicalHash(tx, n)
		if err != nil {
			return common.Hash{}
		}
		return hash
	}
}
