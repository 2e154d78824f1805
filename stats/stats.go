// Package stats exports squall runtime counters and histograms to Prometheus
// and persists histogram snapshots to disk.
/*
 * Copyright (c) 2024-2026, Squall Authors. All rights reserved.
 */
package stats

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/squall-rpc/squall/rpc"
)

const promPrefix = "squall_"

// Collector aggregates the server's shard-local counters at export time.
type Collector struct {
	stats *rpc.Stats
	descs map[string]*prometheus.Desc
}

var counterHelp = map[string]string{
	"active_connections": "Currently active connections",
	"total_connections":  "Counts total connections",
	"in_bytes":           "Total bytes received on healthy connections",
	"out_bytes":          "Total bytes sent to clients",
	"bad_requests":       "Requests that latched a connection error",
	"no_route_requests":  "Requests with a correct header but no handler",
	"completed_requests": "Correct round-trip returned responses",
	"too_large_requests": "Requests larger than the configured max payload",
}

func NewCollector(stats *rpc.Stats) *Collector {
	c := &Collector{stats: stats, descs: make(map[string]*prometheus.Desc, len(counterHelp))}
	for name, help := range counterHelp {
		c.descs[name] = prometheus.NewDesc(promPrefix+name, help, nil, nil)
	}
	return c
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range c.descs {
		ch <- d
	}
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	send := func(name string, kind prometheus.ValueType, v int64) {
		ch <- prometheus.MustNewConstMetric(c.descs[name], kind, float64(v))
	}
	send("active_connections", prometheus.GaugeValue, c.stats.ActiveConnections.Load())
	send("total_connections", prometheus.CounterValue, c.stats.TotalConnections.Load())
	send("in_bytes", prometheus.CounterValue, c.stats.InBytes.Load())
	send("out_bytes", prometheus.CounterValue, c.stats.OutBytes.Load())
	send("bad_requests", prometheus.CounterValue, c.stats.BadRequests.Load())
	send("no_route_requests", prometheus.CounterValue, c.stats.NoRouteRequests.Load())
	send("completed_requests", prometheus.CounterValue, c.stats.CompletedRequests.Load())
	send("too_large_requests", prometheus.CounterValue, c.stats.TooLargeRequests.Load())
}

// Histogram is the borrowed duration recorder handed to the rpc engines.
type Histogram struct {
	h prometheus.Histogram
}

// interface guard
var _ rpc.Recorder = (*Histogram)(nil)

func NewHistogram(reg prometheus.Registerer, name, help string) *Histogram {
	h := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    promPrefix + name,
		Help:    help,
		Buckets: prometheus.ExponentialBuckets(1e-6, 2, 24), // 1us .. ~8s
	})
	reg.MustRegister(h)
	return &Histogram{h: h}
}

func (h *Histogram) Record(d time.Duration) { h.h.Observe(d.Seconds()) }
