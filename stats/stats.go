// Package stats exposes server runtime metrics and the slowlog/latency
// history backing SLOWLOG and LATENCY.
/*
 * Copyright (c) 2024-2026, SpinelDB Authors. All rights reserved.
 */
package stats

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Runtime holds the prometheus instruments. Registered once at startup
// against a dedicated registry so tests can construct independent instances.
type Runtime struct {
	reg *prometheus.Registry

	Commands      *prometheus.CounterVec
	KeyspaceHits  prometheus.Counter
	KeyspaceMiss  prometheus.Counter
	ExpiredKeys   prometheus.Counter
	Connections   prometheus.Gauge
	UsedMemory    prometheus.GaugeFunc
	DirtyCounter  prometheus.Counter
	BlockedConns  prometheus.Gauge
}

// NewRuntime builds the instrument set; usedMemory is sampled lock-free from
// the shard counters.
func NewRuntime(usedMemory func() float64) *Runtime {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	r := &Runtime{
		reg: reg,
		Commands: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "spineldb", Name: "commands_total",
			Help: "Processed commands by name and status.",
		}, []string{"cmd", "status"}),
		KeyspaceHits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "spineldb", Name: "keyspace_hits_total",
			Help: "Key lookups that found a live entry.",
		}),
		KeyspaceMiss: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "spineldb", Name: "keyspace_misses_total",
			Help: "Key lookups that found nothing.",
		}),
		ExpiredKeys: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "spineldb", Name: "expired_keys_total",
			Help: "Entries reclaimed by passive or active expiration.",
		}),
		Connections: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "spineldb", Name: "connected_clients",
			Help: "Open client connections.",
		}),
		DirtyCounter: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "spineldb", Name: "dirty_keys_total",
			Help: "Keys modified since startup, fed by WriteOutcome.",
		}),
		BlockedConns: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "spineldb", Name: "blocked_clients",
			Help: "Clients suspended in a blocking command.",
		}),
	}
	r.UsedMemory = factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "spineldb", Name: "used_memory_bytes",
		Help: "Sum of the per-shard memory counters.",
	}, usedMemory)
	return r
}

// Handler serves the metrics endpoint.
func (r *Runtime) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}
