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
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/erigontech/erigon-middleware/db/kv"
	"github.com/erigontech/erigon-middleware/rpc"
	"github.com/erigontech/erigon-middleware/turbo/adapter"
	"github.com/erigontech/erigon-middleware/turbo/rpchelper"
)

// StateReader opens a reader over the state at the end of the resolved block. It is nil
// when the identifier does not name a canonical block.
func (api *BaseAPI) StateReader(tx kv.Tx, blockNrOrHash rpc.BlockNumberOrHash) (*adapter.StateReader, error) {
	blockNumber, _, err := rpchelper.GetBlockNumber(blockNrOrHash, tx)
	if err != nil {
		if rpchelper.IsBlockNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	reader := adapter.NewStateReader(tx, blockNumber)
	if api.codeCache != nil {
		reader.SetCodeCache(api.codeCache)
	}
	return reader, nil
}

// GetBalance implements eth_getBalance. Returns the balance of an account for a given address.
func (api *APIImpl) GetBalance(ctx context.Context, address common.Address, blockNrOrHash rpc.BlockNumberOrHash) (*hexutil.Big, error) {
	tx, err := api.db.BeginRo(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	reader, err := api.StateReader(tx, blockNrOrHash)
	if err != nil || reader == nil {
		return nil, err
	}
	balance, err := reader.GetBalance(address)
	if err != nil {
		return nil, err
	}
	return (*hexutil.Big)(balance.ToBig()), nil
}

// GetTransactionCount implements eth_getTransactionCount. Returns the number of transactions sent from an address (the nonce).
func (api *APIImpl) GetTransactionCount(ctx context.Context, address common.Address, blockNrOrHash rpc.BlockNumberOrHash) (*hexutil.Uint64, error) {
	tx, err := api.db.BeginRo(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	reader, err := api.StateReader(tx, blockNrOrHash)
	if err != nil || reader == nil {
		return nil, err
	}
	nonce, err := reader.GetNonce(address)
	if err != nil {
		return nil, err
	}
	return (*hexutil.Uint64)(&nonce), nil
}

// GetCode implements eth_getCode. Returns the byte code at a given address (if it's a smart contract).
func (api *APIImpl) GetCode(ctx context.Context, address common.Address, blockNrOrHash rpc.BlockNumberOrHash) (hexutil.Bytes, error) {
	tx, err := api.db.BeginRo(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	reader, err := api.StateReader(tx, blockNrOrHash)
	if err != nil || reader == nil {
		return nil, err
	}
	code, err := reader.GetCode(address)
	if err != nil {
		return nil, err
	}
	if code == nil {
		return hexutil.Bytes(""), nil
	}
	return code, nil
}

// GetStorageAt implements eth_getStorageAt. Returns the value from a storage position at a given address.
func (api *APIImpl) GetStorageAt(ctx context.Context, address common.Address, index string, blockNrOrHash rpc.BlockNumberOrHash) (hexutil.Bytes, error) {
	location, err := parseStorageKey(index)
	if err != nil {
		return nil, err
	}
	tx, err := api.db.BeginRo(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	reader, err := api.StateReader(tx, blockNrOrHash)
	if err != nil || reader == nil {
		return nil, err
	}
	value, err := reader.GetStorageAt(address, location)
	if err != nil {
		return nil, err
	}
	return value[:], nil
}

// parseStorageKey accepts any hex quantity of up to 32 bytes, with or without leading zeros.
func parseStorageKey(index string) (common.Hash, error) {
	raw := strings.TrimPrefix(strings.TrimPrefix(index, "0x"), "0X")
	if len(raw) == 0 || len(raw) > 2*common.HashLength {
		return common.Hash{}, fmt.Errorf("%w: storage key %q", rpchelper.ErrConversion, index)
	}
	for _, c := range raw {
		if !strings.ContainsRune("0123456789abcdefABCDEF", c) {
			return common.Hash{}, fmt.Errorf("%w: storage key %q", rpchelper.ErrConversion, index)
		}
	}
	return common.HexToHash(raw), nil
}
