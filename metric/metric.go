// Package metric exposes scheduling counters of host adapters as
// prometheus metrics.
package metric

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dudk/split/signal"
)

const adapterLabel = "adapter"

// Metrics holds collectors for all adapters of the process.
type Metrics struct {
	blocks    *prometheus.CounterVec
	frames    *prometheus.CounterVec
	subBlocks *prometheus.CounterVec
	events    *prometheus.CounterVec
	rejected  *prometheus.CounterVec
	dropped   *prometheus.CounterVec
	errors    *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	load      *prometheus.GaugeVec
}

// New creates collectors and registers them. Collectors that are already
// registered are reused.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		blocks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "split_blocks_total",
			Help: "Total number of scheduled blocks",
		}, []string{adapterLabel}),
		frames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "split_frames_total",
			Help: "Total number of scheduled frames",
		}, []string{adapterLabel}),
		subBlocks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "split_sub_blocks_total",
			Help: "Total number of processor calls",
		}, []string{adapterLabel}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "split_events_total",
			Help: "Total number of delivered events",
		}, []string{adapterLabel}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "split_rejected_events_total",
			Help: "Total number of events rejected before scheduling",
		}, []string{adapterLabel}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "split_dropped_events_total",
			Help: "Total number of events dropped because of queue overflow",
		}, []string{adapterLabel}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "split_processing_errors_total",
			Help: "Total number of failed blocks",
		}, []string{adapterLabel}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "split_block_duration_seconds",
			Help:    "Time taken to schedule a block",
			Buckets: prometheus.ExponentialBuckets(0.00001, 2, 14),
		}, []string{adapterLabel}),
		load: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "split_load_ratio",
			Help: "Processing time of the last block relative to its duration",
		}, []string{adapterLabel}),
	}
	var err error
	if m.blocks, err = register(reg, m.blocks); err != nil {
		return nil, err
	}
	if m.frames, err = register(reg, m.frames); err != nil {
		return nil, err
	}
	if m.subBlocks, err = register(reg, m.subBlocks); err != nil {
		return nil, err
	}
	if m.events, err = register(reg, m.events); err != nil {
		return nil, err
	}
	if m.rejected, err = register(reg, m.rejected); err != nil {
		return nil, err
	}
	if m.dropped, err = register(reg, m.dropped); err != nil {
		return nil, err
	}
	if m.errors, err = register(reg, m.errors); err != nil {
		return nil, err
	}
	if m.duration, err = register(reg, m.duration); err != nil {
		return nil, err
	}
	if m.load, err = register(reg, m.load); err != nil {
		return nil, err
	}
	return m, nil
}

// register registers the collector or returns the one that is already
// registered.
func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	err := reg.Register(c)
	if err == nil {
		return c, nil
	}
	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(T); ok {
			return existing, nil
		}
	}
	return c, err
}

// Meter returns a meter with counters resolved for the adapter.
func (m *Metrics) Meter(adapter string, sampleRate int) *Meter {
	return &Meter{
		sampleRate: sampleRate,
		blocks:     m.blocks.WithLabelValues(adapter),
		frames:     m.frames.WithLabelValues(adapter),
		subBlocks:  m.subBlocks.WithLabelValues(adapter),
		events:     m.events.WithLabelValues(adapter),
		rejected:   m.rejected.WithLabelValues(adapter),
		dropped:    m.dropped.WithLabelValues(adapter),
		errors:     m.errors.WithLabelValues(adapter),
		duration:   m.duration.WithLabelValues(adapter),
		load:       m.load.WithLabelValues(adapter),
	}
}

// Meter captures metrics of a single adapter. All methods are safe to
// call on the audio goroutine and on nil meter.
type Meter struct {
	sampleRate int
	blocks     prometheus.Counter
	frames     prometheus.Counter
	subBlocks  prometheus.Counter
	events     prometheus.Counter
	rejected   prometheus.Counter
	dropped    prometheus.Counter
	errors     prometheus.Counter
	duration   prometheus.Observer
	load       prometheus.Gauge

	// blockSize and blockDuration cache the last block duration.
	blockSize     int
	blockDuration time.Duration
}

// Scheduled counts a successfully scheduled block.
func (m *Meter) Scheduled(subBlocks, events int) {
	if m == nil {
		return
	}
	m.subBlocks.Add(float64(subBlocks))
	m.events.Add(float64(events))
}

// Failed counts a failed block.
func (m *Meter) Failed() {
	if m == nil {
		return
	}
	m.errors.Inc()
}

// Rejected counts events rejected before scheduling.
func (m *Meter) Rejected(n int) {
	if m == nil || n == 0 {
		return
	}
	m.rejected.Add(float64(n))
}

// Dropped counts events dropped by the queue.
func (m *Meter) Dropped(n uint64) {
	if m == nil || n == 0 {
		return
	}
	m.dropped.Add(float64(n))
}

// Block captures block size and processing time.
func (m *Meter) Block(frames int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.blocks.Inc()
	m.frames.Add(float64(frames))
	m.duration.Observe(elapsed.Seconds())
	// recalculate block duration only when block size has changed.
	if m.blockSize != frames {
		m.blockSize = frames
		m.blockDuration = signal.DurationOf(m.sampleRate, int64(frames))
	}
	if m.blockDuration > 0 {
		m.load.Set(float64(elapsed) / float64(m.blockDuration))
	}
}
