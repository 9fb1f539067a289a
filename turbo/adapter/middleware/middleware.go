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

// Package middleware serves go-ethereum client interfaces straight from the chain database,
// so code written against ethclient can run on top of a local node without a JSON-RPC hop.
package middleware

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ledgerwatch/log/v3"

	"github.com/erigontech/erigon-middleware/cmd/rpcdaemon/commands"
	"github.com/erigontech/erigon-middleware/db/kv"
	"github.com/erigontech/erigon-middleware/db/rawdb"
	"github.com/erigontech/erigon-middleware/execution/types"
	"github.com/erigontech/erigon-middleware/rpc"
	"github.com/erigontech/erigon-middleware/turbo/adapter"
	"github.com/erigontech/erigon-middleware/turbo/adapter/conv"
	"github.com/erigontech/erigon-middleware/turbo/adapter/ethapi"
	"github.com/erigontech/erigon-middleware/turbo/rpchelper"
	"github.com/erigontech/erigon-middleware/turbo/transactions"
)

var (
	_ ethereum.BlockNumberReader = (*Middleware)(nil)
	_ ethereum.ChainStateReader  = (*Middleware)(nil)
	_ ethereum.ContractCaller    = (*Middleware)(nil)
	_ ethereum.GasEstimator      = (*Middleware)(nil)
	_ ethereum.TransactionReader = (*Middleware)(nil)
)

// Middleware answers in go-ethereum client types. Unknown blocks and transactions give a nil
// result and a nil error where the result is a pointer; value results report the lookup error.
type Middleware struct {
	db     kv.RoDB
	base   *commands.BaseAPI
	gasCap uint64
	logger log.Logger
}

func New(db kv.RoDB, base *commands.BaseAPI, gasCap uint64, logger log.Logger) *Middleware {
	if gasCap == 0 {
		gasCap = transactions.DefaultGasCap
	}
	return &Middleware{db: db, base: base, gasCap: gasCap, logger: logger}
}

func (m *Middleware) BlockNumber(ctx context.Context) (uint64, error) {
	var blockNum uint64
	err := m.db.View(ctx, func(tx kv.Tx) (err error) {
		blockNum, err = rpchelper.GetLatestBlockNumber(tx)
		return err
	})
	return blockNum, err
}

func (m *Middleware) ChainID(ctx context.Context) (*big.Int, error) {
	var id *big.Int
	err := m.db.View(ctx, func(tx kv.Tx) error {
		cc, err := rawdb.ReadChainConfig(tx)
		if err != nil {
			return err
		}
		if cc == nil {
			return rpchelper.ErrChainSpecMissing
		}
		id = new(big.Int).Set(cc.ChainID)
		return nil
	})
	return id, err
}

// withState runs f on the state at the end of the block; f is skipped for unknown blocks
// and found reports whether it ran.
func (m *Middleware) withState(ctx context.Context, blockNumber *big.Int, f func(sr *adapter.StateReader) error) (found bool, err error) {
	blockNrOrHash, err := conv.BlockNumberOrHashFromClient(blockNumber)
	if err != nil {
		return false, err
	}
	err = m.db.View(ctx, func(tx kv.Tx) error {
		reader, err := m.base.StateReader(tx, blockNrOrHash)
		if err != nil || reader == nil {
			return err
		}
		found = true
		return f(reader)
	})
	return found, err
}

func (m *Middleware) BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error) {
	var balance *big.Int
	_, err := m.withState(ctx, blockNumber, func(sr *adapter.StateReader) error {
		b, err := sr.GetBalance(account)
		if err != nil {
			return err
		}
		balance = conv.U256ToBig(b)
		return nil
	})
	return balance, err
}

// StorageAt returns the slot as a 32 byte big endian word.
func (m *Middleware) StorageAt(ctx context.Context, account common.Address, key common.Hash, blockNumber *big.Int) ([]byte, error) {
	var value []byte
	_, err := m.withState(ctx, blockNumber, func(sr *adapter.StateReader) error {
		v, err := sr.GetStorageAt(account, key)
		if err != nil {
			return err
		}
		value = v.Bytes()
		return nil
	})
	return value, err
}

// CodeAt is empty, not nil, for accounts without code.
func (m *Middleware) CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error) {
	var code []byte
	_, err := m.withState(ctx, blockNumber, func(sr *adapter.StateReader) error {
		c, err := sr.GetCode(account)
		if err != nil {
			return err
		}
		code = append([]byte{}, c...)
		return nil
	})
	return code, err
}

func (m *Middleware) NonceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (uint64, error) {
	var nonce uint64
	found, err := m.withState(ctx, blockNumber, func(sr *adapter.StateReader) (err error) {
		nonce, err = sr.GetNonce(account)
		return err
	})
	if err == nil && !found {
		return 0, fmt.Errorf("nonce of %x: %w", account, rpchelper.BlockNotFoundErr{})
	}
	return nonce, err
}

// CallContract executes the message against the state at the end of the block. A revert is
// returned as *ethapi.RevertError; any other EVM failure wraps ErrExecution.
func (m *Middleware) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	args, err := conv.CallMsgToArgs(call)
	if err != nil {
		return nil, err
	}
	blockNrOrHash, err := conv.BlockNumberOrHashFromClient(blockNumber)
	if err != nil {
		return nil, err
	}
	tx, err := m.db.BeginRo(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	result, err := transactions.DoCall(ctx, tx, m.base.Executor(tx), args, blockNrOrHash, nil, m.gasCap, m.base.EvmCallTimeout(), m.base.CodeCache())
	if err != nil {
		return nil, err
	}
	if revert := result.Revert(); len(revert) > 0 {
		return nil, ethapi.NewRevertError(revert)
	}
	if result.Failed() {
		return nil, fmt.Errorf("%w: %w", rpchelper.ErrExecution, result.Err)
	}
	return result.Return(), nil
}

// EstimateGas runs the message once on the latest state with the block gas limit.
func (m *Middleware) EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error) {
	args, err := conv.CallMsgToArgs(call)
	if err != nil {
		return 0, err
	}
	tx, err := m.db.BeginRo(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	gas, err := transactions.DoEstimateGas(ctx, tx, m.base.Executor(tx), args, rpc.BlockNumberOrHashWithNumber(rpc.LatestBlockNumber),
		m.base.EvmCallTimeout(), m.base.CodeCache())
	return uint64(gas), err
}

// TransactionByHash never reports a pending transaction: only mined ones are stored.
func (m *Middleware) TransactionByHash(ctx context.Context, txHash common.Hash) (*gethtypes.Transaction, bool, error) {
	var txn types.Transaction
	if err := m.db.View(ctx, func(tx kv.Tx) (err error) {
		txn, _, _, _, err = rpchelper.ReadTransactionByHash(tx, txHash)
		return err
	}); err != nil || txn == nil {
		return nil, false, err
	}
	clientTxn, err := conv.TxToClient(txn)
	if err != nil {
		return nil, false, fmt.Errorf("txn %x: %w", txHash, err)
	}
	return clientTxn, false, nil
}

func (m *Middleware) TransactionReceipt(ctx context.Context, txHash common.Hash) (*gethtypes.Receipt, error) {
	var receipt *types.Receipt
	if err := m.db.View(ctx, func(tx kv.Tx) (err error) {
		receipt, err = m.base.ReceiptsGenerator().GetReceipt(ctx, tx, txHash)
		return err
	}); err != nil || receipt == nil {
		return nil, err
	}
	return conv.ReceiptToClient(receipt), nil
}

func (m *Middleware) readBlock(ctx context.Context, blockNrOrHash rpc.BlockNumberOrHash) (*types.Block, error) {
	var block *types.Block
	err := m.db.View(ctx, func(tx kv.Tx) (err error) {
		block, _, err = m.base.BlockByNumberOrHash(tx, blockNrOrHash)
		return err
	})
	return block, err
}

func (m *Middleware) blockToClient(block *types.Block, err error) (*gethtypes.Block, error) {
	if err != nil || block == nil {
		return nil, err
	}
	return conv.BlockToClient(block)
}

func (m *Middleware) BlockByHash(ctx context.Context, hash common.Hash) (*gethtypes.Block, error) {
	return m.blockToClient(m.readBlock(ctx, rpc.BlockNumberOrHashWithHash(hash, true)))
}

func (m *Middleware) BlockByNumber(ctx context.Context, number *big.Int) (*gethtypes.Block, error) {
	blockNrOrHash, err := conv.BlockNumberOrHashFromClient(number)
	if err != nil {
		return nil, err
	}
	return m.blockToClient(m.readBlock(ctx, blockNrOrHash))
}

func (m *Middleware) readHeader(ctx context.Context, blockNrOrHash rpc.BlockNumberOrHash) (*gethtypes.Header, error) {
	var header *types.Header
	err := m.db.View(ctx, func(tx kv.Tx) error {
		blockNum, hash, err := rpchelper.GetBlockNumber(blockNrOrHash, tx)
		if err != nil {
			if rpchelper.IsBlockNotFound(err) {
				return nil
			}
			return err
		}
		header = rawdb.ReadHeader(tx, hash, blockNum)
		return nil
	})
	if err != nil || header == nil {
		return nil, err
	}
	return conv.HeaderToClient(header), nil
}

func (m *Middleware) HeaderByHash(ctx context.Context, hash common.Hash) (*gethtypes.Header, error) {
	return m.readHeader(ctx, rpc.BlockNumberOrHashWithHash(hash, true))
}

func (m *Middleware) HeaderByNumber(ctx context.Context, number *big.Int) (*gethtypes.Header, error) {
	blockNrOrHash, err := conv.BlockNumberOrHashFromClient(number)
	if err != nil {
		return nil, err
	}
	return m.readHeader(ctx, blockNrOrHash)
}

// UncleCountAt is zero for a block whose body is not stored.
func (m *Middleware) UncleCountAt(ctx context.Context, number *big.Int) (uint64, error) {
	blockNrOrHash, err := conv.BlockNumberOrHashFromClient(number)
	if err != nil {
		return 0, err
	}
	var count uint64
	err = m.db.View(ctx, func(tx kv.Tx) error {
		blockNum, hash, err := rpchelper.GetBlockNumber(blockNrOrHash, tx)
		if err != nil {
			return err
		}
		if body, _, _ := rawdb.ReadBody(tx, hash, blockNum); body != nil {
			count = uint64(len(body.Uncles))
		}
		return nil
	})
	return count, err
}

func (m *Middleware) UncleAt(ctx context.Context, number *big.Int, index uint) (*gethtypes.Header, error) {
	blockNrOrHash, err := conv.BlockNumberOrHashFromClient(number)
	if err != nil {
		return nil, err
	}
	block, err := m.readBlock(ctx, blockNrOrHash)
	if err != nil || block == nil {
		return nil, err
	}
	uncles := block.Uncles()
	if index >= uint(len(uncles)) {
		m.logger.Trace("Requested uncle not found", "number", block.NumberU64(), "index", index)
		return nil, nil
	}
	return conv.HeaderToClient(uncles[index]), nil
}

// IsRevert reports whether err is an EVM revert surfaced by CallContract.
func IsRevert(err error) bool {
	var revertErr *ethapi.RevertError
	return errors.As(err, &revertErr)
}
