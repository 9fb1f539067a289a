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

package cli

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/ethereum/go-ethereum/common/hexutil"
	gethrpc "github.com/ethereum/go-ethereum/rpc"
	"github.com/ledgerwatch/log/v3"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/erigontech/erigon-middleware/cmd/rpcdaemon/cli/httpcfg"
	"github.com/erigontech/erigon-middleware/rpc"
	"github.com/erigontech/erigon-middleware/turbo/transactions"
)

func runRoot(t *testing.T, args ...string) *httpcfg.HttpCfg {
	t.Helper()
	cmd, cfg := RootCommand()
	cmd.RunE = func(*cobra.Command, []string) error { return nil }
	cmd.SetArgs(args)
	require.NoError(t, cmd.Execute())
	return cfg
}

func TestRootCommandDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg := runRoot(t, "--datadir", dir, "--db.mapsize", "1GB")
	require.Equal(t, filepath.Join(dir, "chaindata"), cfg.Chaindata)
	require.Equal(t, uint64(transactions.DefaultGasCap), cfg.Gascap)
	require.Equal(t, transactions.DefaultCallTimeout, cfg.EvmCallTimeout)
	require.Equal(t, []string{"eth"}, cfg.API)
	require.Equal(t, httpcfg.DefaultHTTPPort, cfg.HttpPort)
	require.Equal(t, datasize.GB, cfg.DBMapSize)

	cmd, _ := RootCommand()
	cmd.RunE = func(*cobra.Command, []string) error { return nil }
	cmd.SetArgs(nil)
	require.Error(t, cmd.Execute())
}

func TestConfigFile(t *testing.T) {
	dir := t.TempDir()

	tomlPath := filepath.Join(dir, "rpc.toml")
	require.NoError(t, os.WriteFile(tomlPath, []byte(`
"http.port" = 9545
"http.corsdomain" = ["https://a.example", "https://b.example"]
"rpc.gascap" = 5000
"rpc.evmtimeout" = "30s"
`), 0600))
	cfg := runRoot(t, "--datadir", dir, "--config", tomlPath, "--rpc.gascap", "7000")
	require.Equal(t, 9545, cfg.HttpPort)
	require.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.HttpCORSDomain)
	require.Equal(t, uint64(7000), cfg.Gascap, "command line wins")
	require.Equal(t, 30*time.Second, cfg.EvmCallTimeout)

	yamlPath := filepath.Join(dir, "rpc.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("ws: true\ndb.mapsize: 2GB\nhttp.api: [eth]\n"), 0600))
	cfg = runRoot(t, "--datadir", dir, "--config", yamlPath)
	require.True(t, cfg.WebsocketEnabled)
	require.Equal(t, 2*datasize.GB, cfg.DBMapSize)

	badPath := filepath.Join(dir, "rpc.yaml")
	require.NoError(t, os.WriteFile(badPath, []byte("no.such.flag: 1\n"), 0600))
	cmd, _ := RootCommand()
	cmd.RunE = func(*cobra.Command, []string) error { return nil }
	cmd.SetArgs([]string{"--datadir", dir, "--config", badPath})
	require.ErrorContains(t, cmd.Execute(), "unknown flag")

	jsonPath := filepath.Join(dir, "rpc.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte("{}"), 0600))
	cmd, _ = RootCommand()
	cmd.RunE = func(*cobra.Command, []string) error { return nil }
	cmd.SetArgs([]string{"--datadir", dir, "--config", jsonPath})
	require.Error(t, cmd.Execute())
}

type testService struct{}

func (testService) BlockNumber(context.Context) (hexutil.Uint64, error) { return 7, nil }

func (testService) GetBlockByNumber(context.Context, rpc.BlockNumber, bool) (map[string]interface{}, error) {
	return map[string]interface{}{"timestamp": hexutil.Uint64(time.Now().Unix())}, nil
}

func TestCreateHandler(t *testing.T) {
	srv := gethrpc.NewServer()
	defer srv.Stop()
	require.NoError(t, srv.RegisterName("eth", testService{}))
	cfg := &httpcfg.HttpCfg{HttpCORSDomain: []string{"https://app.example"}}
	handler := createHandler(cfg, srv, nil, testService{})

	body := `{"jsonrpc":"2.0","id":1,"method":"eth_blockNumber","params":[]}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Origin", "https://app.example")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"result":"0x7"`)
	require.Equal(t, "https://app.example", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "HEALTHY")
}

func TestStartRpcServerStopsOnCancel(t *testing.T) {
	cfg := &httpcfg.HttpCfg{HttpListenAddress: "127.0.0.1", HttpPort: 0, MetricsEnabled: true, MetricsAddr: "127.0.0.1", MetricsPort: 0}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- StartRpcServer(ctx, cfg, []gethrpc.API{{Namespace: "eth", Service: testService{}}}, log.New())
	}()
	time.Sleep(100 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not stop")
	}
}
