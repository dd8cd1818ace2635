package raleighsl

import (
	"sync/atomic"
	"time"
)

// LatencyBuckets defines the request-latency histogram buckets in
// nanoseconds, covering 1us to 10s with logarithmic spacing, the same shape
// the teacher's device metrics use.
var LatencyBuckets = []uint64{
	1_000,
	10_000,
	100_000,
	1_000_000,
	10_000_000,
	100_000_000,
	1_000_000_000,
	10_000_000_000,
}

const numLatencyBuckets = 8

// Metrics tracks server-wide operational counters: request/error counts,
// object lifecycle and transaction outcomes, and a request-latency histogram.
type Metrics struct {
	RequestsTotal atomic.Uint64
	RequestErrors atomic.Uint64

	ObjectsCreated  atomic.Uint64
	ObjectsClosed   atomic.Uint64
	ObjectsUnlinked atomic.Uint64

	TxnsBegun      atomic.Uint64
	TxnsCommitted  atomic.Uint64
	TxnsRolledBack atomic.Uint64

	TotalLatencyNs atomic.Uint64
	OpCount        atomic.Uint64

	LatencyBuckets [numLatencyBuckets]atomic.Uint64

	StartTime atomic.Int64
}

// NewMetrics returns a fresh Metrics with StartTime set to now.
func NewMetrics() *Metrics {
	m := &Metrics{}
	m.StartTime.Store(time.Now().UnixNano())
	return m
}

// RecordRequest records one completed request's latency and outcome.
func (m *Metrics) RecordRequest(latencyNs uint64, success bool) {
	m.RequestsTotal.Add(1)
	if !success {
		m.RequestErrors.Add(1)
	}
	m.recordLatency(latencyNs)
}

func (m *Metrics) recordLatency(latencyNs uint64) {
	m.TotalLatencyNs.Add(latencyNs)
	m.OpCount.Add(1)
	for i, bound := range LatencyBuckets {
		if latencyNs <= bound {
			m.LatencyBuckets[i].Add(1)
			return
		}
	}
	m.LatencyBuckets[numLatencyBuckets-1].Add(1)
}

// AverageLatencyNs returns the mean recorded latency, or 0 if nothing has
// been recorded yet.
func (m *Metrics) AverageLatencyNs() uint64 {
	count := m.OpCount.Load()
	if count == 0 {
		return 0
	}
	return m.TotalLatencyNs.Load() / count
}

// Uptime returns how long the server has been running.
func (m *Metrics) Uptime() time.Duration {
	return time.Since(time.Unix(0, m.StartTime.Load()))
}
