package wire

import "github.com/raleighsl/raleighsl/internal/latency"

// SizeBucketsBytes are log-spaced from 16B to 64MiB, used for the
// fwd/body/data size histograms below; internal/latency.Histogram's bucket
// shape is generic over the unit, so this reuses the same implementation
// the engine uses for nanosecond latencies.
var SizeBucketsBytes = []uint64{
	16, 64, 256, 1 << 10, 4 << 10, 16 << 10, 64 << 10,
	256 << 10, 1 << 20, 4 << 20, 16 << 20, 64 << 20,
}

// Stats is one connection's ipc-msg statistics: a read-to-publish latency
// histogram and per-section size histograms, mirroring the supplemented
// "ipc-msg stats" feature — the original protocol never exposed histograms,
// but the teacher's poll engine instruments every stage with a latency
// histogram (internal/ioengine), and per-connection wire traffic is an
// equally natural place to carry the same instrumentation.
type Stats struct {
	FrameLatency *latency.Histogram
	FwdSize      *latency.Histogram
	BodySize     *latency.Histogram
	DataSize     *latency.Histogram
}

// NewStats returns a zeroed Stats with the standard time/size bucket
// shapes.
func NewStats() *Stats {
	return &Stats{
		FrameLatency: latency.New(latency.DefaultBucketsNs),
		FwdSize:      latency.New(SizeBucketsBytes),
		BodySize:     latency.New(SizeBucketsBytes),
		DataSize:     latency.New(SizeBucketsBytes),
	}
}

// Observe records one fully-published frame's section sizes and its
// head-to-publish latency in nanoseconds.
func (s *Stats) Observe(h Header, latencyNs uint64) {
	s.FrameLatency.Observe(latencyNs)
	s.FwdSize.Observe(uint64(h.FwdLength))
	s.BodySize.Observe(uint64(h.BodyLength))
	s.DataSize.Observe(uint64(h.DataLength))
}

// observingProtocol wraps a Protocol, recording per-frame stats before
// delegating Alloc/Publish, so a connection handler can opt into stats
// without reimplementing the Reader glue.
type observingProtocol struct {
	inner   Protocol
	stats   *Stats
	nowFn   func() uint64 // nanoseconds, monotonic; injected for testability
	started uint64
}

// WithStats wraps proto so every frame's Alloc-to-Publish span is recorded
// into stats, using nowNs (typically time.Now().UnixNano, injected so the
// wire package has no direct time dependency) to measure elapsed time.
func WithStats(proto Protocol, stats *Stats, nowNs func() uint64) Protocol {
	return &observingProtocol{inner: proto, stats: stats, nowFn: nowNs}
}

func (o *observingProtocol) Alloc(h Header) {
	o.started = o.nowFn()
	o.inner.Alloc(h)
}

func (o *observingProtocol) Publish(h Header, fwd, body, data []byte) error {
	elapsed := o.nowFn() - o.started
	o.stats.Observe(h, elapsed)
	return o.inner.Publish(h, fwd, body, data)
}
