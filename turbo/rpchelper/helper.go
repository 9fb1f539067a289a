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

package rpchelper

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/erigontech/erigon-middleware/db/kv"
	"github.com/erigontech/erigon-middleware/db/rawdb"
	"github.com/erigontech/erigon-middleware/eth/stagedsync/stages"
	"github.com/erigontech/erigon-middleware/execution/types"
	"github.com/erigontech/erigon-middleware/rpc"
)

// GetLatestBlockNumber is the progress of the Finish stage: every block up to it is fully queryable.
func GetLatestBlockNumber(tx kv.Getter) (uint64, error) {
	blockNum, err := stages.GetStageProgress(tx, stages.Finish)
	if err != nil {
		return 0, fmt.Errorf("getting latest block number: %w", err)
	}
	return blockNum, nil
}

// GetBlockNumber resolves a block identifier to a canonical (number, hash) pair.
// Pending, safe and finalized are served as latest. Blocks off the canonical chain are
// reported as BlockNotFoundErr even when their header is stored.
func GetBlockNumber(blockNrOrHash rpc.BlockNumberOrHash, tx kv.Getter) (uint64, common.Hash, error) {
	var blockNumber uint64
	var err error
	hash, ok := blockNrOrHash.Hash()
	if !ok {
		number, ok := blockNrOrHash.Number()
		if !ok {
			return 0, common.Hash{}, fmt.Errorf("%w: empty block identifier", ErrConversion)
		}
		switch number {
		case rpc.LatestBlockNumber, rpc.PendingBlockNumber, rpc.SafeBlockNumber, rpc.FinalizedBlockNumber:
			if blockNumber, err = GetLatestBlockNumber(tx); err != nil {
				return 0, common.Hash{}, err
			}
		case rpc.EarliestBlockNumber:
			blockNumber = 0
		default:
			if number < 0 {
				return 0, common.Hash{}, fmt.Errorf("%w: invalid block number %d", ErrConversion, number)
			}
			blockNumber = number.Uint64()
		}
		hash, err = rawdb.ReadCanonicalHash(tx, blockNumber)
		if err != nil {
			return 0, common.Hash{}, err
		}
		if hash == (common.Hash{}) {
			return 0, common.Hash{}, blockNumberNotFound(blockNumber)
		}
		return blockNumber, hash, nil
	}

	number := rawdb.ReadHeaderNumber(tx, hash)
	if number == nil {
		return 0, common.Hash{}, blockHashNotFound(hash)
	}
	blockNumber = *number

	ch, err := rawdb.ReadCanonicalHash(tx, blockNumber)
	if err != nil {
		return 0, common.Hash{}, err
	}
	if ch != hash {
		return 0, common.Hash{}, fmt.Errorf("hash %q is not currently canonical: %w", hash.String(), blockHashNotFound(hash))
	}
	return blockNumber, hash, nil
}

// ReadTransactionByHash is rawdb.ReadTransactionByHash with a lookup entry that does not match
// the canonical chain reported as ErrInconsistency.
func ReadTransactionByHash(tx kv.Getter, txnHash common.Hash) (types.Transaction, common.Hash, uint64, uint64, error) {
	txn, blockHash, blockNum, txnIndex, err := rawdb.ReadTransactionByHash(tx, txnHash)
	if errors.Is(err, rawdb.ErrInvalidTxLookup) {
		return nil, common.Hash{}, 0, 0, fmt.Errorf("%w: %w", ErrInconsistency, err)
	}
	return txn, blockHash, blockNum, txnIndex, err
}
