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

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type Counter interface {
	prometheus.Counter
	AddInt(v int)
	AddUint64(v uint64)
	GetValueUint64() uint64
}

type counter struct {
	prometheus.Counter
}

func (c *counter) GetValueUint64() uint64 {
	return uint64(testutil.ToFloat64(c.Counter))
}

func (c *counter) AddInt(v int) {
	c.Add(float64(v))
}

func (c *counter) AddUint64(v uint64) {
	c.Add(float64(v))
}
