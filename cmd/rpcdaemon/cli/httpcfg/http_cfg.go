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

package httpcfg

import (
	"time"

	"github.com/c2h5oh/datasize"
)

const (
	DefaultHTTPHost    = "localhost"
	DefaultHTTPPort    = 8545
	DefaultMetricsHost = "127.0.0.1"
	DefaultMetricsPort = 6061
)

type HttpCfg struct {
	DataDir   string
	Chaindata string // defaults to <DataDir>/chaindata

	HttpListenAddress string
	HttpPort          int
	HttpCORSDomain    []string
	API               []string
	WebsocketEnabled  bool

	Gascap         uint64
	EvmCallTimeout time.Duration

	DBReadConcurrency int
	DBMapSize         datasize.ByteSize
	StateCache        int // entries of each of the code, block and receipt LRUs

	MetricsEnabled bool
	MetricsAddr    string
	MetricsPort    int

	ConfigFile string
}
