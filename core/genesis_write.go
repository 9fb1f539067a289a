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
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	gethcore "github.com/ethereum/go-ethereum/core"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/params"
	"github.com/holiman/uint256"
	"github.com/ledgerwatch/log/v3"

	"github.com/erigontech/erigon-middleware/core/state"
	"github.com/erigontech/erigon-middleware/db/kv"
	"github.com/erigontech/erigon-middleware/db/rawdb"
	"github.com/erigontech/erigon-middleware/eth/stagedsync/stages"
	"github.com/erigontech/erigon-middleware/execution/types"
	"github.com/erigontech/erigon-middleware/execution/types/accounts"
)

var ErrGenesisNoConfig = errors.New("genesis has no chain configuration")

// GenesisMismatchError is raised when trying to overwrite an existing
// genesis block with an incompatible one.
type GenesisMismatchError struct {
	Stored, New common.Hash
}

func (e *GenesisMismatchError) Error() string {
	return fmt.Sprintf("database contains incompatible genesis (have %x, new %x)", e.Stored, e.New)
}

// GenesisToBlock builds the genesis header. The state root is taken as given: the flat
// state layout keeps no trie to compute it from.
func GenesisToBlock(g *gethcore.Genesis) (*types.Block, error) {
	if g.Config == nil {
		return nil, ErrGenesisNoConfig
	}
	head := &types.Header{
		Number:      g.Number,
		Nonce:       types.EncodeNonce(g.Nonce),
		Time:        g.Timestamp,
		ParentHash:  g.ParentHash,
		Extra:       g.ExtraData,
		GasLimit:    g.GasLimit,
		GasUsed:     g.GasUsed,
		MixDigest:   g.Mixhash,
		Coinbase:    g.Coinbase,
		UncleHash:   types.EmptyUncleHash,
		TxHash:      types.EmptyRootHash,
		ReceiptHash: types.EmptyRootHash,
		Difficulty:  new(uint256.Int),
	}
	if g.GasLimit == 0 {
		head.GasLimit = params.GenesisGasLimit
	}
	if g.Difficulty != nil {
		difficulty, overflow := uint256.FromBig(g.Difficulty)
		if overflow {
			return nil, fmt.Errorf("genesis difficulty overflows 256 bits: %s", g.Difficulty)
		}
		head.Difficulty = difficulty
	}
	number := head.NumberBig()
	if g.Config.IsLondon(number) {
		head.BaseFee = uint256.NewInt(params.InitialBaseFee)
		if g.BaseFee != nil {
			baseFee, overflow := uint256.FromBig(g.BaseFee)
			if overflow {
				return nil, fmt.Errorf("genesis base fee overflows 256 bits: %s", g.BaseFee)
			}
			head.BaseFee = baseFee
		}
	}
	if g.Config.IsShanghai(number, g.Timestamp) {
		withdrawalsHash := types.EmptyRootHash
		head.WithdrawalsHash = &withdrawalsHash
	}
	if g.Config.IsCancun(number, g.Timestamp) {
		var excessBlobGas, blobGasUsed uint64
		if g.ExcessBlobGas != nil {
			excessBlobGas = *g.ExcessBlobGas
		}
		if g.BlobGasUsed != nil {
			blobGasUsed = *g.BlobGasUsed
		}
		head.ExcessBlobGas = &excessBlobGas
		head.BlobGasUsed = &blobGasUsed
		head.ParentBeaconBlockRoot = &common.Hash{}
	}
	return types.NewBlockFromStorage(head, nil, nil), nil
}

// WriteGenesisState writes the allocation as the changes of the genesis block.
func WriteGenesisState(tx kv.RwTx, g *gethcore.Genesis, blockNum uint64) error {
	w := state.NewPlainStateWriter(tx, blockNum)
	for addr, alloc := range g.Alloc {
		acc := accounts.NewAccount()
		acc.Nonce = alloc.Nonce
		if alloc.Balance != nil {
			if overflow := acc.Balance.SetFromBig(alloc.Balance); overflow {
				return fmt.Errorf("genesis balance of %x overflows 256 bits", addr)
			}
		}
		if len(alloc.Code) > 0 {
			acc.CodeHash = crypto.Keccak256Hash(alloc.Code)
			if err := w.UpdateAccountCode(addr, acc.CodeHash, alloc.Code); err != nil {
				return err
			}
		}
		if err := w.UpdateAccountData(addr, nil, &acc); err != nil {
			return err
		}
		for key, value := range alloc.Storage {
			v := new(uint256.Int).SetBytes(value.Bytes())
			if err := w.WriteAccountStorage(addr, key, nil, v); err != nil {
				return err
			}
		}
	}
	return nil
}

// CommitGenesisBlock writes the genesis block, its allocation and the chain config, and makes
// it the canonical head. An existing identical genesis is left untouched.
func CommitGenesisBlock(ctx context.Context, db kv.RwDB, g *gethcore.Genesis, logger log.Logger) (*params.ChainConfig, *types.Block, error) {
	block, err := GenesisToBlock(g)
	if err != nil {
		return nil, nil, err
	}
	if err := db.Update(ctx, func(tx kv.RwTx) error {
		stored, err := rawdb.ReadCanonicalHash(tx, block.NumberU64())
		if err != nil {
			return err
		}
		if stored != (common.Hash{}) {
			if stored != block.Hash() {
				return &GenesisMismatchError{Stored: stored, New: block.Hash()}
			}
			logger.Info("Genesis already written", "hash", stored)
			return nil
		}
		return WriteGenesisBlock(tx, g, block)
	}); err != nil {
		return nil, nil, err
	}
	logger.Info("Writing genesis block", "number", block.NumberU64(), "hash", block.Hash(), "alloc", len(g.Alloc))
	return g.Config, block, nil
}

// WriteGenesisBlock writes an already built genesis block without checking what is stored.
func WriteGenesisBlock(tx kv.RwTx, g *gethcore.Genesis, block *types.Block) error {
	if err := WriteGenesisState(tx, g, block.NumberU64()); err != nil {
		return fmt.Errorf("genesis state: %w", err)
	}
	if err := rawdb.WriteBlock(tx, block, nil); err != nil {
		return err
	}
	if err := rawdb.WriteCanonicalHash(tx, block.Hash(), block.NumberU64()); err != nil {
		return err
	}
	if err := rawdb.WriteChainConfig(tx, block.Hash(), g.Config); err != nil {
		return err
	}
	for _, stage := range stages.AllStages {
		if err := stages.SaveStageProgress(tx, stage, block.NumberU64()); err != nil {
			return err
		}
	}
	return nil
}
