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
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"strings"
	"time"

	"github.com/c2h5oh/datasize"
	gethrpc "github.com/ethereum/go-ethereum/rpc"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/ledgerwatch/log/v3"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/erigontech/erigon-middleware/cmd/rpcdaemon/cli/httpcfg"
	"github.com/erigontech/erigon-middleware/cmd/rpcdaemon/health"
	"github.com/erigontech/erigon-middleware/db/kv"
	"github.com/erigontech/erigon-middleware/db/kv/boltdb"
	"github.com/erigontech/erigon-middleware/metrics"
	"github.com/erigontech/erigon-middleware/turbo/logging"
	"github.com/erigontech/erigon-middleware/turbo/transactions"
)

const (
	ConfigFlag     = "config"
	metricsPath    = "/debug/metrics/prometheus"
	shutdownPeriod = 5 * time.Second
)

func RootCommand() (*cobra.Command, *httpcfg.HttpCfg) {
	rootCmd := &cobra.Command{
		Use:           "rpcdaemon",
		Short:         "rpcdaemon is JSON RPC server that serves historical chain state straight from the chain database",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cfg := &httpcfg.HttpCfg{DBMapSize: 256 * datasize.MB}
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfg.DataDir, "datadir", "", "path to working directory")
	flags.StringVar(&cfg.Chaindata, "chaindata", "", "path to the database")
	flags.StringVar(&cfg.HttpListenAddress, "http.addr", httpcfg.DefaultHTTPHost, "HTTP-RPC server listening interface")
	flags.IntVar(&cfg.HttpPort, "http.port", httpcfg.DefaultHTTPPort, "HTTP-RPC server listening port")
	flags.StringSliceVar(&cfg.HttpCORSDomain, "http.corsdomain", []string{}, "Comma separated list of domains from which to accept cross origin requests (browser enforced)")
	flags.StringSliceVar(&cfg.API, "http.api", []string{"eth"}, "API's offered over the HTTP-RPC interface")
	flags.BoolVar(&cfg.WebsocketEnabled, "ws", false, "Enable Websockets")
	flags.Uint64Var(&cfg.Gascap, "rpc.gascap", transactions.DefaultGasCap, "Sets a cap on gas that can be used in eth_call/estimateGas")
	flags.DurationVar(&cfg.EvmCallTimeout, "rpc.evmtimeout", transactions.DefaultCallTimeout, "Maximum amount of time to wait for the answer from EVM call.")
	flags.IntVar(&cfg.DBReadConcurrency, "db.read.concurrency", runtime.GOMAXPROCS(-1)*16, "Does limit amount of parallel db reads")
	flags.Var(&datasizeValue{&cfg.DBMapSize}, "db.mapsize", "Initial mmap size of the database, e.g. 512MB or 2GB")
	flags.IntVar(&cfg.StateCache, "state.cache", 1024, "Amount of entries in each of the code, block and receipt caches. Set 0 to disable caching.")
	flags.BoolVar(&cfg.MetricsEnabled, "metrics", false, "Enable metrics collection and reporting")
	flags.StringVar(&cfg.MetricsAddr, "metrics.addr", httpcfg.DefaultMetricsHost, "Enable stand-alone metrics HTTP server listening interface")
	flags.IntVar(&cfg.MetricsPort, "metrics.port", httpcfg.DefaultMetricsPort, "Metrics HTTP server listening port")
	flags.StringVar(&cfg.ConfigFile, ConfigFlag, "", "Sets flags from a .toml or .yaml file; flags given on the command line take precedence")
	logging.RegisterFlags(rootCmd)

	if err := rootCmd.MarkPersistentFlagDirname("datadir"); err != nil {
		panic(err)
	}
	if err := rootCmd.MarkPersistentFlagDirname("chaindata"); err != nil {
		panic(err)
	}

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if cfg.ConfigFile != "" {
			if err := SetFlagsFromConfigFile(cmd.Flags(), cfg.ConfigFile); err != nil {
				return fmt.Errorf("config file %s: %w", cfg.ConfigFile, err)
			}
		}
		if cfg.Chaindata == "" {
			if cfg.DataDir == "" {
				return errors.New("either --datadir or --chaindata must be specified")
			}
			cfg.Chaindata = filepath.Join(cfg.DataDir, "chaindata")
		}
		return nil
	}

	return rootCmd, cfg
}

// SetFlagsFromConfigFile applies keys of a .toml or .yaml file to the flags of the same name
// that were not set on the command line. Lists become comma separated values.
func SetFlagsFromConfigFile(flags *pflag.FlagSet, filePath string) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	fileConfig := make(map[string]interface{})
	switch filepath.Ext(filePath) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &fileConfig)
	case ".toml":
		err = toml.Unmarshal(data, &fileConfig)
	default:
		return errors.New("config files only accepted are .yaml and .toml")
	}
	if err != nil {
		return err
	}

	for key, value := range fileConfig {
		f := flags.Lookup(key)
		if f == nil {
			return fmt.Errorf("unknown flag %q", key)
		}
		if f.Changed {
			continue
		}
		if reflect.ValueOf(value).Kind() == reflect.Slice {
			sliceInterface := value.([]interface{})
			s := make([]string, len(sliceInterface))
			for i, v := range sliceInterface {
				s[i] = fmt.Sprintf("%v", v)
			}
			if err := flags.Set(key, strings.Join(s, ",")); err != nil {
				return fmt.Errorf("failed setting %s flag with values=%s error=%w", key, s, err)
			}
			continue
		}
		if err := flags.Set(key, fmt.Sprintf("%v", value)); err != nil {
			return fmt.Errorf("failed setting %s flag with value=%v error=%w", key, value, err)
		}
	}
	return nil
}

// OpenDB opens the chain database read-only.
func OpenDB(cfg *httpcfg.HttpCfg, logger log.Logger) (kv.RoDB, error) {
	logger.Trace("Creating chain db", "path", cfg.Chaindata)
	db, err := boltdb.New(logger).
		Path(cfg.Chaindata).
		Readonly().
		MapSize(cfg.DBMapSize).
		RoTxsLimiter(int64(cfg.DBReadConcurrency)).
		Open()
	if err != nil {
		return nil, err
	}
	return db, nil
}

// StartRpcServer serves rpcAPI until ctx is cancelled, then shuts the listeners down.
func StartRpcServer(ctx context.Context, cfg *httpcfg.HttpCfg, rpcAPI []gethrpc.API, logger log.Logger) error {
	srv := gethrpc.NewServer()
	defer srv.Stop()
	var ethAPI health.EthAPI
	for _, api := range rpcAPI {
		if err := srv.RegisterName(api.Namespace, api.Service); err != nil {
			return fmt.Errorf("could not register RPC api %s: %w", api.Namespace, err)
		}
		if e, ok := api.Service.(health.EthAPI); ok && api.Namespace == "eth" {
			ethAPI = e
		}
	}

	var wsHandler http.Handler
	if cfg.WebsocketEnabled {
		wsHandler = srv.WebsocketHandler([]string{"*"})
	}
	httpEndpoint := net.JoinHostPort(cfg.HttpListenAddress, fmt.Sprintf("%d", cfg.HttpPort))
	listener, err := net.Listen("tcp", httpEndpoint)
	if err != nil {
		return fmt.Errorf("could not start RPC api: %w", err)
	}
	servers := []*http.Server{{Handler: createHandler(cfg, srv, wsHandler, ethAPI), ReadHeaderTimeout: 30 * time.Second}}
	listeners := []net.Listener{listener}
	logger.Info("HTTP endpoint opened", "url", listener.Addr().String(), "ws", cfg.WebsocketEnabled, "apis", cfg.API)

	if cfg.MetricsEnabled {
		metricsEndpoint := net.JoinHostPort(cfg.MetricsAddr, fmt.Sprintf("%d", cfg.MetricsPort))
		metricsListener, err := net.Listen("tcp", metricsEndpoint)
		if err != nil {
			listener.Close()
			return fmt.Errorf("could not start metrics server: %w", err)
		}
		mux := chi.NewRouter()
		mux.Handle(metricsPath, metrics.Handler())
		servers = append(servers, &http.Server{Handler: mux, ReadHeaderTimeout: 30 * time.Second})
		listeners = append(listeners, metricsListener)
		logger.Info("Starting metrics server", "addr", fmt.Sprintf("http://%s%s", metricsListener.Addr(), metricsPath))
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := range servers {
		server, l := servers[i], listeners[i]
		g.Go(func() error {
			if err := server.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Exiting...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownPeriod)
		defer cancel()
		for _, server := range servers {
			_ = server.Shutdown(shutdownCtx)
		}
		logger.Info("HTTP endpoint closed", "url", httpEndpoint)
		return nil
	})
	return g.Wait()
}

func createHandler(cfg *httpcfg.HttpCfg, httpHandler http.Handler, wsHandler http.Handler, ethAPI health.EthAPI) http.Handler {
	r := chi.NewRouter()
	if len(cfg.HttpCORSDomain) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.HttpCORSDomain,
			AllowedMethods: []string{http.MethodPost, http.MethodGet},
			AllowedHeaders: []string{"*"},
			MaxAge:         600,
		}))
	}
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		health.ProcessHealthcheckIfNeeded(w, r, ethAPI)
	})
	r.HandleFunc("/*", func(w http.ResponseWriter, r *http.Request) {
		if wsHandler != nil && r.Method == http.MethodGet {
			wsHandler.ServeHTTP(w, r)
			return
		}
		httpHandler.ServeHTTP(w, r)
	})
	return r
}

// datasizeValue adapts datasize.ByteSize to pflag.Value.
type datasizeValue struct{ p *datasize.ByteSize }

func (d *datasizeValue) String() string {
	if d.p == nil {
		return ""
	}
	return d.p.String()
}

func (d *datasizeValue) Set(s string) error { return d.p.UnmarshalText([]byte(s)) }
func (d *datasizeValue) Type() string       { return "datasize" }
