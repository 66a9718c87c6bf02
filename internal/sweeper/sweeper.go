// Package sweeper is the periodic reconciliation job: it garbage-collects
// presence rows that have been offline past their TTL and downgrades the
// activity flag of rooms that no longer have anyone online. It runs
// independently of live traffic and only ever races it through timestamp
// comparison, which is tolerated.
package sweeper

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const (
	// DefaultInterval is how often a sweep runs.
	DefaultInterval = 5 * time.Minute

	// DefaultTTL is how long an offline membership survives before purge.
	DefaultTTL = time.Hour
)

// Store is the slice of the store adapter the sweeper writes through.
type Store interface {
	PurgeStaleMemberships(ctx context.Context, cutoff time.Time) (int64, error)
	DeactivateIdleRooms(ctx context.Context) (int64, error)
}

// Sweeper runs the reconciliation loop.
type Sweeper struct {
	store    Store
	interval time.Duration
	ttl      time.Duration

	sweepCounter  metric.Int64Counter
	purgedCounter metric.Int64Counter
	errorCounter  metric.Int64Counter
}

// New builds a sweeper. Non-positive interval or ttl fall back to the
// defaults.
func New(st Store, interval, ttl time.Duration) *Sweeper {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	meter := otel.Meter("reconciliation-sweeper")
	sweepCounter, _ := meter.Int64Counter("sweep_cycles_total",
		metric.WithDescription("Total sweep cycles completed"))
	purgedCounter, _ := meter.Int64Counter("sweep_memberships_purged_total",
		metric.WithDescription("Total stale memberships deleted"))
	errorCounter, _ := meter.Int64Counter("sweep_errors_total",
		metric.WithDescription("Total failed sweep cycles"))

	return &Sweeper{
		store:         st,
		interval:      interval,
		ttl:           ttl,
		sweepCounter:  sweepCounter,
		purgedCounter: purgedCounter,
		errorCounter:  errorCounter,
	}
}

// Run ticks until ctx is canceled. Each cycle has its own error boundary: a
// failed sweep is logged and the next interval tries again; it never takes
// the process down.
func (s *Sweeper) Run(ctx context.Context) {
	slog.Info("Sweeper running", "interval", s.interval, "ttl", s.ttl)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Sweeper stopped")
			return
		case <-ticker.C:
			if err := s.Sweep(ctx); err != nil {
				s.errorCounter.Add(ctx, 1)
				slog.Error("Sweep cycle failed", "error", err)
			}
		}
	}
}

// Sweep executes one reconciliation pass: membership GC, then room activity
// recompute. Rooms are only ever flagged inactive here; nothing flips the
// flag back on, so it stays a best-effort hint.
func (s *Sweeper) Sweep(ctx context.Context) error {
	cutoff := time.Now().Add(-s.ttl)

	purged, err := s.store.PurgeStaleMemberships(ctx, cutoff)
	if err != nil {
		return err
	}

	deactivated, err := s.store.DeactivateIdleRooms(ctx)
	if err != nil {
		return err
	}

	s.sweepCounter.Add(ctx, 1)
	s.purgedCounter.Add(ctx, purged)
	if purged > 0 || deactivated > 0 {
		slog.Info("Sweep completed", "purged", purged, "rooms_deactivated", deactivated)
	}
	return nil
}
