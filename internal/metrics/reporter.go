// Package metrics provides the periodic hit/miss reporter for the
// write-through tier.
package metrics

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/DataDog/datadog-go/v5/statsd"

	"github.com/cachette-io/cachette/internal/events"
)

// Counters is a point-in-time view of the reporter's counts.
type Counters struct {
	LocalHits    int64
	RemoteHits   int64
	DoubleMisses int64
}

// Reporter accumulates per-read outcome counts and emits a readable summary
// through the events emitter once per period, resetting after each emission.
// When a statsd client is attached the same counts are published as count
// metrics.
type Reporter struct {
	emitter *events.Emitter
	logger  *slog.Logger
	statsd  statsd.ClientInterface
	period  time.Duration

	localHits    atomic.Int64
	remoteHits   atomic.Int64
	doubleMisses atomic.Int64

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewReporter creates a reporter emitting every period. The statsd client
// may be nil.
func NewReporter(period time.Duration, emitter *events.Emitter, sd statsd.ClientInterface, logger *slog.Logger) *Reporter {
	if logger == nil {
		logger = slog.Default()
	}
	if emitter == nil {
		emitter = events.NewEmitter()
	}
	return &Reporter{
		emitter: emitter,
		logger:  logger.With("component", "metrics-reporter"),
		statsd:  sd,
		period:  period,
		stopCh:  make(chan struct{}),
	}
}

// Start begins the reporting loop. It is a no-op when the period is zero.
func (r *Reporter) Start() {
	if r.period <= 0 {
		return
	}
	r.wg.Add(1)
	go r.run()
	r.logger.Info("metrics reporter started", "period", r.period)
}

func (r *Reporter) run() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.period)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			r.report()
			return
		case <-ticker.C:
			r.report()
		}
	}
}

// RecordLocalHit counts a read served by the local tier.
func (r *Reporter) RecordLocalHit() {
	r.localHits.Add(1)
}

// RecordRemoteHit counts a read that missed locally but hit the remote tier.
func (r *Reporter) RecordRemoteHit() {
	r.remoteHits.Add(1)
}

// RecordDoubleMiss counts a read absent from both tiers.
func (r *Reporter) RecordDoubleMiss() {
	r.doubleMisses.Add(1)
}

// Snapshot reads the counters without resetting them.
func (r *Reporter) Snapshot() Counters {
	return Counters{
		LocalHits:    r.localHits.Load(),
		RemoteHits:   r.remoteHits.Load(),
		DoubleMisses: r.doubleMisses.Load(),
	}
}

// Reset zeroes the counters and returns their prior values.
func (r *Reporter) Reset() Counters {
	return Counters{
		LocalHits:    r.localHits.Swap(0),
		RemoteHits:   r.remoteHits.Swap(0),
		DoubleMisses: r.doubleMisses.Swap(0),
	}
}

func (r *Reporter) report() {
	c := r.Reset()

	summary := fmt.Sprintf("cache reads over the last %s: %d local hits, %d remote hits, %d double misses",
		r.period, c.LocalHits, c.RemoteHits, c.DoubleMisses)
	r.emitter.Emit(events.EventInfo, summary)

	if r.statsd == nil {
		return
	}
	if err := r.statsd.Count("local_hits", c.LocalHits, nil, 1); err != nil {
		r.logger.Debug("statsd publish failed", "metric", "local_hits", "error", err)
	}
	if err := r.statsd.Count("remote_hits", c.RemoteHits, nil, 1); err != nil {
		r.logger.Debug("statsd publish failed", "metric", "remote_hits", "error", err)
	}
	if err := r.statsd.Count("double_misses", c.DoubleMisses, nil, 1); err != nil {
		r.logger.Debug("statsd publish failed", "metric", "double_misses", "error", err)
	}
}

// Stop ends the loop after a final emission and flushes the statsd client.
func (r *Reporter) Stop() {
	r.stopOnce.Do(func() { close(r.stopCh) })
	r.wg.Wait()
	if r.statsd != nil {
		if err := r.statsd.Close(); err != nil {
			r.logger.Debug("statsd close failed", "error", err)
		}
	}
	r.logger.Info("metrics reporter stopped")
}
