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

package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ledgerwatch/log/v3"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

func TestTryGetLogLevel(t *testing.T) {
	lvl, err := tryGetLogLevel("debug")
	require.NoError(t, err)
	require.Equal(t, log.LvlDebug, lvl)

	lvl, err = tryGetLogLevel("4")
	require.NoError(t, err)
	require.Equal(t, log.LvlDebug, lvl)

	_, err = tryGetLogLevel("loud")
	require.Error(t, err)
}

func TestSetupLoggerCmdWritesToDir(t *testing.T) {
	datadir := t.TempDir()
	cmd := &cobra.Command{Use: "test", Run: func(*cobra.Command, []string) {}}
	RegisterFlags(cmd)
	cmd.PersistentFlags().String("datadir", "", "")
	cmd.SetArgs([]string{"--datadir", datadir, "--log.dir.json", "--log.console.verbosity", "crit"})
	require.NoError(t, cmd.Execute())
	defer log.Root().SetHandler(log.DiscardHandler())

	logger := SetupLoggerCmd("rpcdaemon", cmd)
	logger.Info("hello from test", "k", "v")

	data, err := os.ReadFile(filepath.Join(datadir, "logs", "rpcdaemon.log"))
	require.NoError(t, err)
	require.True(t, strings.Contains(string(data), `"msg":"hello from test"`), string(data))
}
