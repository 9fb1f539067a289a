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

package rawdb

import (
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/params"

	"github.com/erigontech/erigon-middleware/db/kv"
)

// ReadGenesisHash is the canonical hash at height 0.
func ReadGenesisHash(db kv.Getter) (common.Hash, error) {
	return ReadCanonicalHash(db, 0)
}

// ReadChainConfig retrieves the consensus settings stored under the genesis hash.
// Returns nil config when either the genesis or the config entry is absent.
func ReadChainConfig(db kv.Getter) (*params.ChainConfig, error) {
	genesis, err := ReadGenesisHash(db)
	if err != nil {
		return nil, err
	}
	if genesis == (common.Hash{}) {
		return nil, nil
	}
	return ReadChainConfigByGenesis(db, genesis)
}

func ReadChainConfigByGenesis(db kv.Getter, hash common.Hash) (*params.ChainConfig, error) {
	data, err := db.GetOne(kv.ConfigTable, hash[:])
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}
	var config params.ChainConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("invalid chain config JSON: %x, %w", hash, err)
	}
	return &config, nil
}

// WriteChainConfig writes the chain config settings to the database.
func WriteChainConfig(db kv.Putter, hash common.Hash, cfg *params.ChainConfig) error {
	if cfg == nil {
		return nil
	}
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to JSON encode chain config: %w", err)
	}
	if err := db.Put(kv.ConfigTable, hash[:], data); err != nil {
		return fmt.Errorf("failed to store chain config: %w", err)
	}
	return nil
}
