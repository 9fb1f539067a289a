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

package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/params"
	gethrpc "github.com/ethereum/go-ethereum/rpc"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/ledgerwatch/log/v3"

	"github.com/erigontech/erigon-middleware/cmd/rpcdaemon/cli/httpcfg"
	"github.com/erigontech/erigon-middleware/core"
	"github.com/erigontech/erigon-middleware/db/kv"
	"github.com/erigontech/erigon-middleware/db/rawdb"
	"github.com/erigontech/erigon-middleware/execution/types"
	"github.com/erigontech/erigon-middleware/rpc"
	"github.com/erigontech/erigon-middleware/turbo/adapter/ethapi"
	"github.com/erigontech/erigon-middleware/turbo/jsonrpc/receipts"
	"github.com/erigontech/erigon-middleware/turbo/rpchelper"
	"github.com/erigontech/erigon-middleware/turbo/transactions"
)

// EthAPI is the read-only subset of the eth namespace served from the chain database.
type EthAPI interface {
	// Block related (see ./eth_block.go)
	BlockNumber(ctx context.Context) (hexutil.Uint64, error)
	ChainId(ctx context.Context) (hexutil.Uint64, error)
	GetBlockByNumber(ctx context.Context, number rpc.BlockNumber, fullTx bool) (map[string]interface{}, error)
	GetBlockByHash(ctx context.Context, hash common.Hash, fullTx bool) (map[string]interface{}, error)
	GetBlockTransactionCountByNumber(ctx context.Context, blockNr rpc.BlockNumber) (*hexutil.Uint, error)
	GetBlockTransactionCountByHash(ctx context.Context, blockHash common.Hash) (*hexutil.Uint, error)

	// Transaction related (see ./eth_txs.go)
	GetTransactionByHash(ctx context.Context, hash common.Hash) (*ethapi.RPCTransaction, error)
	GetTransactionByBlockHashAndIndex(ctx context.Context, blockHash common.Hash, txIndex hexutil.Uint64) (*ethapi.RPCTransaction, error)
	GetTransactionByBlockNumberAndIndex(ctx context.Context, blockNr rpc.BlockNumber, txIndex hexutil.Uint) (*ethapi.RPCTransaction, error)

	// Receipt related (see ./eth_receipts.go)
	GetTransactionReceipt(ctx context.Context, hash common.Hash) (map[string]interface{}, error)
	GetBlockReceipts(ctx context.Context, blockNrOrHash rpc.BlockNumberOrHash) ([]map[string]interface{}, error)

	// Uncle related (see ./eth_uncles.go)
	GetUncleByBlockNumberAndIndex(ctx context.Context, blockNr rpc.BlockNumber, index hexutil.Uint) (map[string]interface{}, error)
	GetUncleByBlockHashAndIndex(ctx context.Context, hash common.Hash, index hexutil.Uint) (map[string]interface{}, error)
	GetUncleCountByBlockNumber(ctx context.Context, number rpc.BlockNumber) (*hexutil.Uint, error)
	GetUncleCountByBlockHash(ctx context.Context, hash common.Hash) (*hexutil.Uint, error)

	// Account related (see ./eth_accounts.go)
	GetBalance(ctx context.Context, address common.Address, blockNrOrHash rpc.BlockNumberOrHash) (*hexutil.Big, error)
	GetTransactionCount(ctx context.Context, address common.Address, blockNrOrHash rpc.BlockNumberOrHash) (*hexutil.Uint64, error)
	GetStorageAt(ctx context.Context, address common.Address, index string, blockNrOrHash rpc.BlockNumberOrHash) (hexutil.Bytes, error)
	GetCode(ctx context.Context, address common.Address, blockNrOrHash rpc.BlockNumberOrHash) (hexutil.Bytes, error)

	// Sending related (see ./eth_call.go)
	Call(ctx context.Context, args ethapi.CallArgs, blockNrOrHash *rpc.BlockNumberOrHash, overrides *ethapi.StateOverrides) (hexutil.Bytes, error)
	EstimateGas(ctx context.Context, args ethapi.CallArgs, blockNrOrHash *rpc.BlockNumberOrHash) (hexutil.Uint64, error)
}

type blockWithSenders struct {
	block   *types.Block
	senders []common.Address
}

// BaseAPI holds what every namespace needs: the database, caches and the executor factory.
type BaseAPI struct {
	db             kv.RoDB
	newExecutor    receipts.ExecutorFactory
	receiptsGen    *receipts.Generator
	codeCache      *lru.Cache[common.Hash, []byte]
	blocksLRU      *lru.Cache[common.Hash, blockWithSenders]
	evmCallTimeout time.Duration
}

// NewBaseApi builds caches of cacheSize entries each; zero disables them. A nil executor factory runs the go-ethereum EVM.
func NewBaseApi(db kv.RoDB, cacheSize int, evmCallTimeout time.Duration, newExecutor receipts.ExecutorFactory) *BaseAPI {
	if newExecutor == nil {
		newExecutor = receipts.DefaultExecutorFactory
	}
	var (
		codeCache     *lru.Cache[common.Hash, []byte]
		blocksLRU     *lru.Cache[common.Hash, blockWithSenders]
		receiptsCache *lru.Cache[common.Hash, types.Receipts]
		err           error
	)
	if cacheSize > 0 {
		if codeCache, err = lru.New[common.Hash, []byte](cacheSize); err != nil {
			panic(err)
		}
		if blocksLRU, err = lru.New[common.Hash, blockWithSenders](cacheSize); err != nil {
			panic(err)
		}
		if receiptsCache, err = lru.New[common.Hash, types.Receipts](cacheSize); err != nil {
			panic(err)
		}
	}
	return &BaseAPI{
		db:             db,
		newExecutor:    newExecutor,
		receiptsGen:    receipts.NewGenerator(receiptsCache, codeCache, newExecutor),
		codeCache:      codeCache,
		blocksLRU:      blocksLRU,
		evmCallTimeout: evmCallTimeout,
	}
}

// ReceiptsGenerator is shared with other front ends over the same database.
func (api *BaseAPI) ReceiptsGenerator() *receipts.Generator { return api.receiptsGen }

func (api *BaseAPI) CodeCache() *lru.Cache[common.Hash, []byte] { return api.codeCache }

func (api *BaseAPI) Executor(tx kv.Getter) core.Executor { return api.newExecutor(tx) }

func (api *BaseAPI) EvmCallTimeout() time.Duration { return api.evmCallTimeout }

func (api *BaseAPI) chainConfig(tx kv.Getter) (*params.ChainConfig, error) {
	cc, err := rawdb.ReadChainConfig(tx)
	if err != nil {
		return nil, fmt.Errorf("read chain config: %w", err)
	}
	if cc == nil {
		return nil, rpchelper.ErrChainSpecMissing
	}
	return cc, nil
}

// BlockWithSenders returns the block by number and hash. A block whose header is stored
// without a body is an inconsistency; an unknown one is nil.
func (api *BaseAPI) BlockWithSenders(tx kv.Getter, hash common.Hash, number uint64) (*types.Block, []common.Address, error) {
	if api.blocksLRU != nil {
		if it, ok := api.blocksLRU.Get(hash); ok && it.block.NumberU64() == number {
			return it.block, it.senders, nil
		}
	}
	block, senders, err := rawdb.ReadBlockWithSenders(tx, hash, number)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: block %d(%x): %w", rpchelper.ErrInconsistency, number, hash, err)
	}
	if block == nil {
		if rawdb.ReadHeader(tx, hash, number) != nil {
			return nil, nil, fmt.Errorf("%w: body of block %d(%x) missing", rpchelper.ErrInconsistency, number, hash)
		}
		return nil, nil, nil
	}
	if api.blocksLRU != nil {
		api.blocksLRU.Add(hash, blockWithSenders{block: block, senders: senders})
	}
	return block, senders, nil
}

// BlockByNumberOrHash resolves the identifier and reads the block. Identifiers that do not
// resolve to a canonical block give nil without error.
func (api *BaseAPI) BlockByNumberOrHash(tx kv.Getter, blockNrOrHash rpc.BlockNumberOrHash) (*types.Block, []common.Address, error) {
	blockNum, hash, err := rpchelper.GetBlockNumber(blockNrOrHash, tx)
	if err != nil {
		if rpchelper.IsBlockNotFound(err) {
			return nil, nil, nil
		}
		return nil, nil, err
	}
	return api.BlockWithSenders(tx, hash, blockNum)
}

// APIImpl is implementation of the EthAPI interface based on remote Db access
type APIImpl struct {
	*BaseAPI
	GasCap uint64
	logger log.Logger
}

var _ EthAPI = (*APIImpl)(nil)

// NewEthAPI returns APIImpl instance
func NewEthAPI(base *BaseAPI, gascap uint64, logger log.Logger) *APIImpl {
	if gascap == 0 {
		gascap = transactions.DefaultGasCap
	}
	return &APIImpl{
		BaseAPI: base,
		GasCap:  gascap,
		logger:  logger,
	}
}

// APIList describes the list of available RPC apis
func APIList(db kv.RoDB, cfg *httpcfg.HttpCfg, logger log.Logger) []gethrpc.API {
	base := NewBaseApi(db, cfg.StateCache, cfg.EvmCallTimeout, nil)
	eth := NewEthAPI(base, cfg.Gascap, logger)
	var list []gethrpc.API
	for _, enabled := range cfg.API {
		switch enabled {
		case "eth":
			list = append(list, gethrpc.API{Namespace: "eth", Service: EthAPI(eth)})
		default:
			logger.Warn("Unknown API namespace, skipping", "namespace", enabled)
		}
	}
	return list
}
