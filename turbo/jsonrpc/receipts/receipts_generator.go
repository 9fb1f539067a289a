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

package receipts

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/params"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/erigontech/erigon-middleware/core"
	"github.com/erigontech/erigon-middleware/core/state"
	"github.com/erigontech/erigon-middleware/db/kv"
	"github.com/erigontech/erigon-middleware/db/rawdb"
	"github.com/erigontech/erigon-middleware/execution/types"
	"github.com/erigontech/erigon-middleware/metrics"
	"github.com/erigontech/erigon-middleware/turbo/rpchelper"
)

var (
	receiptsCacheHit  = metrics.GetOrCreateCounter(`rpc_receipts_cache{result="hit"}`)
	receiptsCacheMiss = metrics.GetOrCreateCounter(`rpc_receipts_cache{result="miss"}`)
	replayedTxs       = metrics.GetOrCreateCounter("rpc_receipts_replayed_txs")
)

// ExecutorFactory builds the executor used to replay blocks read through tx.
type ExecutorFactory func(tx kv.Getter) core.Executor

func DefaultExecutorFactory(tx kv.Getter) core.Executor {
	return core.NewEVMExecutor(core.CanonicalHashFn(tx))
}

// Generator rebuilds receipts by re-executing block transactions on top of the
// state at the end of the parent block. Full block results are cached by block hash.
type Generator struct {
	receiptsCache *lru.Cache[common.Hash, types.Receipts]
	codeCache     *lru.Cache[common.Hash, []byte]
	newExecutor   ExecutorFactory
}

func NewGenerator(receiptsCache *lru.Cache[common.Hash, types.Receipts], codeCache *lru.Cache[common.Hash, []byte],
	newExecutor ExecutorFactory) *Generator {
	if newExecutor == nil {
		newExecutor = DefaultExecutorFactory
	}
	return &Generator{
		receiptsCache: receiptsCache,
		codeCache:     codeCache,
		newExecutor:   newExecutor,
	}
}

// GetReceipt returns nil, nil for a transaction the lookup index does not know. An index entry
// that does not lead to the transaction in a canonical block is ErrInconsistency.
func (g *Generator) GetReceipt(ctx context.Context, tx kv.Tx, txnHash common.Hash) (*types.Receipt, error) {
	blockNum, err := rawdb.ReadTxLookupEntry(tx, txnHash)
	if err != nil {
		return nil, err
	}
	if blockNum == nil {
		return nil, nil
	}
	blockHash, err := rawdb.ReadCanonicalHash(tx, *blockNum)
	if err != nil {
		return nil, err
	}
	if blockHash == (common.Hash{}) {
		return nil, fmt.Errorf("%w: txn %x indexed at block %d which has no canonical header",
			rpchelper.ErrInconsistency, txnHash, *blockNum)
	}
	block, senders, err := g.readBlock(tx, blockHash, *blockNum)
	if err != nil {
		return nil, fmt.Errorf("txn %x: %w", txnHash, err)
	}
	txnIndex := block.Transactions().TxIndex(txnHash)
	if txnIndex < 0 {
		return nil, fmt.Errorf("%w: txn %x indexed at block %d(%x) but missing from its body",
			rpchelper.ErrInconsistency, txnHash, *blockNum, blockHash)
	}

	if receipts, ok := g.cached(blockHash); ok {
		return receipts[txnIndex], nil
	}
	receipts, err := g.replay(ctx, tx, block, senders, txnIndex)
	if err != nil {
		return nil, err
	}
	if txnIndex == len(block.Transactions())-1 {
		g.store(blockHash, receipts)
	}
	return receipts[txnIndex], nil
}

// GetReceipts returns nil, nil when no block with that number and hash is stored.
func (g *Generator) GetReceipts(ctx context.Context, tx kv.Tx, blockNum uint64, blockHash common.Hash) (types.Receipts, error) {
	if receipts, ok := g.cached(blockHash); ok {
		return receipts, nil
	}
	if rawdb.ReadHeader(tx, blockHash, blockNum) == nil {
		return nil, nil
	}
	block, senders, err := g.readBlock(tx, blockHash, blockNum)
	if err != nil {
		return nil, err
	}
	if len(block.Transactions()) == 0 {
		return types.Receipts{}, nil
	}
	receipts, err := g.replay(ctx, tx, block, senders, len(block.Transactions())-1)
	if err != nil {
		return nil, err
	}
	g.store(blockHash, receipts)
	return receipts, nil
}

func (g *Generator) cached(blockHash common.Hash) (types.Receipts, bool) {
	if g.receiptsCache == nil {
		return nil, false
	}
	receipts, ok := g.receiptsCache.Get(blockHash)
	if ok {
		receiptsCacheHit.Inc()
	} else {
		receiptsCacheMiss.Inc()
	}
	return receipts, ok
}

func (g *Generator) store(blockHash common.Hash, receipts types.Receipts) {
	if g.receiptsCache != nil {
		g.receiptsCache.Add(blockHash, receipts)
	}
}

func (g *Generator) readBlock(tx kv.Tx, blockHash common.Hash, blockNum uint64) (*types.Block, []common.Address, error) {
	block, senders, err := rawdb.ReadBlockWithSenders(tx, blockHash, blockNum)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: block %d(%x): %w", rpchelper.ErrInconsistency, blockNum, blockHash, err)
	}
	if block == nil {
		return nil, nil, fmt.Errorf("%w: header or body of canonical block %d(%x) missing",
			rpchelper.ErrInconsistency, blockNum, blockHash)
	}
	return block, senders, nil
}

// replay executes the block up to and including txn number upTo.
func (g *Generator) replay(ctx context.Context, tx kv.Tx, block *types.Block, senders []common.Address, upTo int) (types.Receipts, error) {
	timer := metrics.NewHistTimer("rpc_receipts_replay_seconds")
	defer timer.PutSince()

	chainConfig, err := readChainConfig(tx)
	if err != nil {
		return nil, err
	}
	if block.NumberU64() == 0 {
		return nil, fmt.Errorf("%w: genesis block carries transactions", rpchelper.ErrInconsistency)
	}
	reader := state.NewHistoryReader(tx, block.NumberU64()-1)
	if g.codeCache != nil {
		reader.SetCodeCache(g.codeCache)
	}
	ibs := state.New(reader)
	header := block.HeaderNoCopy()
	txs := block.Transactions()

	receipts, err := g.newExecutor(tx).ExecuteBlockUpTo(ctx, ibs, header, chainConfig, txs, senders,
		func(i int) bool { return i >= upTo })
	if err != nil {
		return nil, fmt.Errorf("%w: replay block %d(%x): %w", rpchelper.ErrExecution, block.NumberU64(), block.Hash(), err)
	}
	if len(receipts) != upTo+1 {
		return nil, fmt.Errorf("%w: replay of block %d(%x) produced %d receipts, want %d",
			rpchelper.ErrInconsistency, block.NumberU64(), block.Hash(), len(receipts), upTo+1)
	}
	replayedTxs.AddInt(len(receipts))

	var prevCumulative uint64
	for i, receipt := range receipts {
		txn := txs[i]
		receipt.GasUsed = receipt.CumulativeGasUsed - prevCumulative
		prevCumulative = receipt.CumulativeGasUsed
		receipt.TxHash = txn.Hash()
		receipt.BlockHash = block.Hash()
		receipt.BlockNumber = block.NumberU64()
		receipt.TransactionIndex = uint(i)
		receipt.From = senders[i]
		receipt.To = txn.GetTo()
		receipt.EffectiveGasPrice = types.EffectiveGasPrice(txn, header.BaseFee)
		if receipt.To == nil {
			receipt.ContractAddress = crypto.CreateAddress(senders[i], txn.GetNonce())
		}
		for logIndex, l := range receipt.Logs {
			l.BlockNumber = receipt.BlockNumber
			l.BlockHash = receipt.BlockHash
			l.TxHash = receipt.TxHash
			l.TxIndex = receipt.TransactionIndex
			l.Index = uint(logIndex)
		}
		receipt.Bloom = types.LogsBloom(receipt.Logs)
	}
	return receipts, nil
}

func readChainConfig(tx kv.Getter) (*params.ChainConfig, error) {
	chainConfig, err := rawdb.ReadChainConfig(tx)
	if err != nil {
		return nil, fmt.Errorf("read chain config: %w", err)
	}
	if chainConfig == nil {
		return nil, rpchelper.ErrChainSpecMissing
	}
	return chainConfig, nil
}
