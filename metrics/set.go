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
	"sort"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Set is a group of named metrics backed by a single prometheus registry.
// Names may carry constant labels in the `name{key="value"}` form.
type Set struct {
	mu       sync.Mutex
	registry *prometheus.Registry
	metrics  map[string]prometheus.Collector
}

var defaultSet = NewSet()

func NewSet() *Set {
	return &Set{
		registry: prometheus.NewRegistry(),
		metrics:  map[string]prometheus.Collector{},
	}
}

func (s *Set) Registry() *prometheus.Registry { return s.registry }

func (s *Set) GetOrCreateCounter(name string, help ...string) (prometheus.Counter, error) {
	c, err := s.getOrCreate(name, func(opts prometheus.Opts) prometheus.Collector {
		return prometheus.NewCounter(prometheus.CounterOpts(opts))
	}, help)
	if err != nil {
		return nil, err
	}
	counter, ok := c.(prometheus.Counter)
	if !ok {
		return nil, fmt.Errorf("metric %q is not a counter", name)
	}
	return counter, nil
}

func (s *Set) GetOrCreateGauge(name string, help ...string) (prometheus.Gauge, error) {
	g, err := s.getOrCreate(name, func(opts prometheus.Opts) prometheus.Collector {
		return prometheus.NewGauge(prometheus.GaugeOpts(opts))
	}, help)
	if err != nil {
		return nil, err
	}
	gauge, ok := g.(prometheus.Gauge)
	if !ok {
		return nil, fmt.Errorf("metric %q is not a gauge", name)
	}
	return gauge, nil
}

func (s *Set) GetOrCreateSummary(name string, help ...string) (prometheus.Summary, error) {
	sm, err := s.getOrCreate(name, func(opts prometheus.Opts) prometheus.Collector {
		return prometheus.NewSummary(prometheus.SummaryOpts{
			Name:        opts.Name,
			Help:        opts.Help,
			ConstLabels: opts.ConstLabels,
			Objectives:  map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.97: 0.003, 0.99: 0.001},
		})
	}, help)
	if err != nil {
		return nil, err
	}
	summary, ok := sm.(prometheus.Summary)
	if !ok {
		return nil, fmt.Errorf("metric %q is not a summary", name)
	}
	return summary, nil
}

func (s *Set) GetOrCreateHistogram(name string, help ...string) (prometheus.Histogram, error) {
	h, err := s.getOrCreate(name, func(opts prometheus.Opts) prometheus.Collector {
		return prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:        opts.Name,
			Help:        opts.Help,
			ConstLabels: opts.ConstLabels,
			Buckets:     prometheus.DefBuckets,
		})
	}, help)
	if err != nil {
		return nil, err
	}
	histogram, ok := h.(prometheus.Histogram)
	if !ok {
		return nil, fmt.Errorf("metric %q is not a histogram", name)
	}
	return histogram, nil
}

func (s *Set) getOrCreate(name string, newMetric func(prometheus.Opts) prometheus.Collector, help []string) (prometheus.Collector, error) {
	key, err := canonicalName(name)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.metrics[key]; ok {
		return m, nil
	}

	metricName, labels, err := parseMetric(name)
	if err != nil {
		return nil, err
	}
	m := newMetric(prometheus.Opts{
		Name:        metricName,
		Help:        strings.Join(help, " "),
		ConstLabels: labels,
	})
	if err := s.registry.Register(m); err != nil {
		return nil, err
	}
	s.metrics[key] = m
	return m, nil
}

// parseMetric splits `name{k1="v1",k2="v2"}` into the bare name and its labels.
func parseMetric(s string) (string, prometheus.Labels, error) {
	ident, rest, ok := strings.Cut(s, "{")
	if !ok {
		if ident == "" {
			return "", nil, fmt.Errorf("empty metric name")
		}
		return ident, nil, nil
	}
	if ident == "" {
		return "", nil, fmt.Errorf("missing metric name in %q", s)
	}
	if !strings.HasSuffix(rest, "}") {
		return "", nil, fmt.Errorf("missing closing curly brace at the end of %q", s)
	}
	rest = strings.TrimSuffix(rest, "}")
	if rest == "" {
		return ident, nil, nil
	}

	labels := prometheus.Labels{}
	for _, pair := range strings.Split(rest, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || k == "" {
			return "", nil, fmt.Errorf("malformed label %q in %q", pair, s)
		}
		if len(v) < 2 || v[0] != '"' || v[len(v)-1] != '"' {
			return "", nil, fmt.Errorf("label %q must be quoted in %q", k, s)
		}
		labels[k] = v[1 : len(v)-1]
	}
	return ident, labels, nil
}

func canonicalName(s string) (string, error) {
	name, labels, err := parseMetric(s)
	if err != nil {
		return "", err
	}
	if len(labels) == 0 {
		return name, nil
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString(name)
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%s=%q", k, labels[k])
	}
	b.WriteByte('}')
	return b.String(), nil
}
