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
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func GetOrCreateCounter(name string, help ...string) Counter {
	c, err := defaultSet.GetOrCreateCounter(name, help...)
	if err != nil {
		panic(fmt.Errorf("could not get or create new counter: %w", err))
	}

	return &counter{c}
}

func GetOrCreateGauge(name string, help ...string) prometheus.Gauge {
	g, err := defaultSet.GetOrCreateGauge(name, help...)
	if err != nil {
		panic(fmt.Errorf("could not get or create new gauge: %w", err))
	}

	return g
}

func GetOrCreateSummary(name string, help ...string) prometheus.Summary {
	s, err := defaultSet.GetOrCreateSummary(name, help...)
	if err != nil {
		panic(fmt.Errorf("could not get or create new summary: %w", err))
	}

	return s
}

func GetOrCreateHistogram(name string, help ...string) prometheus.Histogram {
	h, err := defaultSet.GetOrCreateHistogram(name, help...)
	if err != nil {
		panic(fmt.Errorf("could not get or create new histogram: %w", err))
	}

	return h
}

// Handler serves every metric registered through this package plus the Go runtime collectors.
func Handler() http.Handler {
	return promhttp.HandlerFor(prometheus.Gatherers{defaultSet.registry, prometheus.DefaultGatherer}, promhttp.HandlerOpts{})
}
