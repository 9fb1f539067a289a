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

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	gethcore "github.com/ethereum/go-ethereum/core"
	"github.com/ledgerwatch/log/v3"
	"github.com/spf13/cobra"

	"github.com/erigontech/erigon-middleware/cmd/rpcdaemon/cli"
	"github.com/erigontech/erigon-middleware/cmd/rpcdaemon/cli/httpcfg"
	"github.com/erigontech/erigon-middleware/cmd/rpcdaemon/commands"
	"github.com/erigontech/erigon-middleware/core"
	"github.com/erigontech/erigon-middleware/db/kv/boltdb"
	"github.com/erigontech/erigon-middleware/turbo/logging"
)

func main() {
	cmd, _ := rootCommand()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := cmd.ExecuteContext(ctx); err != nil {
		log.Error(err.Error())
		stop()
		os.Exit(1)
	}
}

func rootCommand() (*cobra.Command, *httpcfg.HttpCfg) {
	cmd, cfg := cli.RootCommand()
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		logger := logging.SetupLoggerCmd("rpcdaemon", cmd)
		db, err := cli.OpenDB(cfg, logger)
		if err != nil {
			logger.Error("Could not connect to DB", "err", err)
			return err
		}
		defer db.Close()

		apiList := commands.APIList(db, cfg, logger)
		if err := cli.StartRpcServer(cmd.Context(), cfg, apiList, logger); err != nil {
			logger.Error(err.Error())
			return err
		}
		return nil
	}
	cmd.AddCommand(initCommand(cfg))
	return cmd, cfg
}

func initCommand(cfg *httpcfg.HttpCfg) *cobra.Command {
	return &cobra.Command{
		Use:   "init <genesis.json>",
		Short: "Writes the genesis block, its allocation and the chain config into the database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := logging.SetupLoggerCmd("rpcdaemon", cmd)
			genesis, err := readGenesis(args[0])
			if err != nil {
				return err
			}
			db, err := boltdb.New(logger).Path(cfg.Chaindata).MapSize(cfg.DBMapSize).Open()
			if err != nil {
				return err
			}
			defer db.Close()
			_, block, err := core.CommitGenesisBlock(cmd.Context(), db, genesis, logger)
			if err != nil {
				return err
			}
			logger.Info("Successfully wrote genesis state", "hash", block.Hash(), "chaindata", cfg.Chaindata)
			return nil
		},
	}
}

func readGenesis(path string) (*gethcore.Genesis, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read genesis file: %w", err)
	}
	defer f.Close()
	genesis := new(gethcore.Genesis)
	if err := json.NewDecoder(f).Decode(genesis); err != nil {
		return nil, fmt.Errorf("invalid genesis file %s: %w", path, err)
	}
	if genesis.Config == nil {
		return nil, fmt.Errorf("invalid genesis file %s: missing chain config", path)
	}
	return genesis, nil
}
