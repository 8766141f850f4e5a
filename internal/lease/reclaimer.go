// Package lease releases claims whose annotators stopped sending heartbeats.
//
// Leases are optional. With a zero timeout Run returns immediately and a
// claim is only released by its annotator. Several server processes may
// share one data directory; they elect a single active reclaimer with an
// advisory file lock and the others stand by, retrying the lock each
// interval.
package lease

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofrs/flock"

	"medannotate/internal/directory"
	"medannotate/internal/logging"
	"medannotate/internal/metrics"
)

// Store is the subset of the directory the reclaimer needs.
type Store interface {
	ReclaimExpired(ctx context.Context, cutoff time.Time) ([]directory.ReclaimedClaim, error)
}

// Reclaimer periodically releases expired claims.
type Reclaimer struct {
	store    Store
	logger   *slog.Logger
	metrics  *metrics.Collector
	timeout  time.Duration
	interval time.Duration
	lockPath string
	lock     *flock.Flock
	now      func() time.Time
}

// New constructs a reclaimer. lockPath names the file used to elect one
// reclaimer per data directory.
func New(store Store, logger *slog.Logger, collector *metrics.Collector, timeout, interval time.Duration, lockPath string) *Reclaimer {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Reclaimer{
		store:    store,
		logger:   logging.NewComponentLogger(logger, "lease-reclaimer"),
		metrics:  collector,
		timeout:  timeout,
		interval: interval,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
		now:      time.Now,
	}
}

// Enabled reports whether leases expire at all.
func (r *Reclaimer) Enabled() bool {
	return r != nil && r.timeout > 0
}

// RunOnce releases every claim idle for longer than the timeout.
func (r *Reclaimer) RunOnce(ctx context.Context) ([]directory.ReclaimedClaim, error) {
	if !r.Enabled() {
		return nil, nil
	}
	cutoff := r.now().Add(-r.timeout)
	reclaimed, err := r.store.ReclaimExpired(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("reclaim expired claims: %w", err)
	}
	r.metrics.RecordReclaimed(len(reclaimed))
	for _, claim := range reclaimed {
		r.logger.Info("lease expired, claim released",
			logging.Int64(logging.FieldItemID, claim.ItemID),
			logging.String(logging.FieldTrack, string(claim.Track)),
			logging.String(logging.FieldAnnotatorID, claim.LockedBy),
		)
	}
	return reclaimed, nil
}

// Run reclaims expired leases every interval until ctx is cancelled. Only
// the process holding the reclaim lock does work; the rest wait for it.
func (r *Reclaimer) Run(ctx context.Context) error {
	if !r.Enabled() {
		r.logger.Debug("lease expiry disabled")
		return nil
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	leader := false
	defer func() {
		if leader {
			if err := r.lock.Unlock(); err != nil {
				r.logger.Warn("failed to release reclaim lock", logging.Error(err))
			}
		}
	}()

	for {
		if !leader {
			ok, err := r.lock.TryLock()
			if err != nil {
				return fmt.Errorf("acquire reclaim lock: %w", err)
			}
			if ok {
				leader = true
				r.logger.Info("lease reclaimer active",
					logging.String("lock", r.lockPath),
					logging.Duration("timeout", r.timeout),
				)
			}
		}
		if leader {
			if _, err := r.RunOnce(ctx); err != nil {
				if errors.Is(err, context.Canceled) {
					return nil
				}
				r.logger.Warn("lease reclaim failed", logging.Error(err))
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
