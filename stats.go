/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package httpd

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// ReadResult enumerates RequestParser.ReadRequest's outcomes (§4.1,
// §6). Each has a corresponding counter in Stats.
type ReadResult int

const (
	ResultError ReadResult = iota
	ResultException
	ResultOversizedPayload
	ResultRejected
	ResultTimeout
	ResultHeaderReceived
	ResultBodyReceived
	ResultOwned
	numResults
)

func (r ReadResult) String() string {
	switch r {
	case ResultError:
		return "error"
	case ResultException:
		return "exception"
	case ResultOversizedPayload:
		return "oversized_payload"
	case ResultRejected:
		return "rejected"
	case ResultTimeout:
		return "timeout"
	case ResultHeaderReceived:
		return "header_received"
	case ResultBodyReceived:
		return "body_received"
	case ResultOwned:
		return "owned"
	default:
		return "unknown"
	}
}

// Stats is a read-only snapshot of the server's operational counters
// (§6, §9 supplemented feature): current active connections, total
// connections since start, and one counter per ReadRequest outcome.
type Stats struct {
	ActiveConnections int64
	TotalConnections  int64
	Results           [numResults]int64
}

// statsState holds the live atomic counters a Server mutates from many
// goroutines concurrently (§5: "Server-global counters ... use atomic
// increments only"), plus an optional Prometheus mirror.
type statsState struct {
	active  int64
	total   int64
	results [numResults]int64

	promActive  prometheus.Gauge
	promTotal   prometheus.Counter
	promResults [numResults]prometheus.Counter
}

// newStatsState builds a statsState. If reg is non-nil, counters are
// registered against it as a read-only mirror of the atomics below;
// Prometheus never gates or slows request handling, so a nil registry
// (the default) is a complete no-op difference.
func newStatsState(reg prometheus.Registerer, serverName string) *statsState {
	s := &statsState{}
	if reg == nil {
		return s
	}
	s.promActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name:        "httpd_active_connections",
		Help:        "Current number of accepted, not-yet-closed connections.",
		ConstLabels: prometheus.Labels{"server": serverName},
	})
	s.promTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "httpd_total_connections",
		Help:        "Total connections accepted since start.",
		ConstLabels: prometheus.Labels{"server": serverName},
	})
	_ = reg.Register(s.promActive)
	_ = reg.Register(s.promTotal)
	for i := ReadResult(0); i < numResults; i++ {
		c := prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "httpd_read_result_total",
			Help:        "ReadRequest outcomes by result.",
			ConstLabels: prometheus.Labels{"server": serverName, "result": i.String()},
		})
		_ = reg.Register(c)
		s.promResults[i] = c
	}
	return s
}

func (s *statsState) onConnect() {
	atomic.AddInt64(&s.active, 1)
	atomic.AddInt64(&s.total, 1)
	if s.promActive != nil {
		s.promActive.Inc()
		s.promTotal.Inc()
	}
}

func (s *statsState) onDisconnect() {
	atomic.AddInt64(&s.active, -1)
	if s.promActive != nil {
		s.promActive.Dec()
	}
}

func (s *statsState) record(r ReadResult) {
	atomic.AddInt64(&s.results[r], 1)
	if s.promResults[r] != nil {
		s.promResults[r].Inc()
	}
}

func (s *statsState) snapshot() Stats {
	var out Stats
	out.ActiveConnections = atomic.LoadInt64(&s.active)
	out.TotalConnections = atomic.LoadInt64(&s.total)
	for i := range s.results {
		out.Results[i] = atomic.LoadInt64(&s.results[i])
	}
	return out
}
