package assignment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"medannotate/internal/logging"
	"medannotate/internal/metrics"
	"medannotate/internal/services"
	"medannotate/internal/workitem"
)

// Manager schedules work items across annotators.
type Manager struct {
	repo    Repository
	logger  *slog.Logger
	metrics *metrics.Collector
	now     func() time.Time
}

// Option configures optional Manager behavior.
type Option func(*Manager)

// WithMetrics records assignment outcomes on c.
func WithMetrics(c *metrics.Collector) Option {
	return func(m *Manager) {
		m.metrics = c
	}
}

// NewManager constructs a manager over repo.
func NewManager(repo Repository, logger *slog.Logger, opts ...Option) *Manager {
	m := &Manager{
		repo:   repo,
		logger: logging.NewComponentLogger(logger, "assignment"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// RequestWork returns the annotator's existing claim when there is one and
// otherwise claims the lowest-id eligible item. A nil item with a nil error
// means no work is available; a lost claim race is reported the same way.
// The counter is "{completed}/{total}" for the annotator's track.
func (m *Manager) RequestWork(ctx context.Context, annotator workitem.Annotator) (*workitem.WorkItem, string, error) {
	if err := annotator.Validate(); err != nil {
		return nil, "", err
	}
	track := annotator.Track
	ctx = services.WithTrack(services.WithAnnotatorID(ctx, annotator.ID), string(track))
	logger := logging.WithContext(ctx, m.logger)

	started := m.now()
	defer func() { m.metrics.ObserveRequest(track, m.now().Sub(started)) }()

	completed, total, err := m.counts(ctx, track)
	if err != nil {
		return nil, "", err
	}
	counter := formatCounter(completed, total)

	active, err := m.repo.FindActiveClaim(ctx, track, annotator.ID)
	if err != nil {
		return nil, "", fmt.Errorf("find active claim: %w", err)
	}
	if active != nil {
		m.metrics.RecordResumption(track)
		logger.Debug("resuming active claim", logging.Int64(logging.FieldItemID, active.ID))
		return active, counter, nil
	}

	if completed >= total {
		m.metrics.RecordNoWork(track)
		logger.Debug("track exhausted", logging.String("counter", counter))
		return nil, counter, nil
	}

	item, err := m.repo.ClaimNext(ctx, track, annotator.Specialty, annotator.AllowedRegions, annotator.AllowedModalities, annotator.ID)
	if errors.Is(err, workitem.ErrClaimConflict) {
		m.metrics.RecordConflict(track)
		logger.Warn("claim lost to concurrent annotators", logging.Error(err))
		return nil, counter, nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("claim next: %w", err)
	}
	if item == nil {
		m.metrics.RecordNoWork(track)
		logger.Info("no eligible work item",
			logging.String("specialty", annotator.Specialty),
			logging.Int("region_filters", len(annotator.AllowedRegions)),
			logging.Int("modality_filters", len(annotator.AllowedModalities)),
		)
		return nil, counter, nil
	}

	m.metrics.RecordClaim(track)
	logger.Info("claimed work item", logging.Int64(logging.FieldItemID, item.ID))
	return item, counter, nil
}

// Heartbeat extends the annotator's lease on the track.
func (m *Manager) Heartbeat(ctx context.Context, itemID int64, track workitem.Track, annotatorID string) error {
	if !track.Valid() {
		return fmt.Errorf("%w: unknown track %q", workitem.ErrInvalidInput, track)
	}
	return m.repo.Heartbeat(ctx, itemID, track, annotatorID)
}

func (m *Manager) itemLogger(ctx context.Context, itemID int64, track workitem.Track) *slog.Logger {
	ctx = services.WithTrack(services.WithItemID(ctx, itemID), string(track))
	return logging.WithContext(ctx, m.logger)
}

// loadItem fetches itemID, mapping a missing item to workitem.ErrNotFound.
func (m *Manager) loadItem(ctx context.Context, itemID int64) (*workitem.WorkItem, error) {
	item, err := m.repo.GetByID(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("load item %d: %w", itemID, err)
	}
	if item == nil {
		return nil, fmt.Errorf("item %d: %w", itemID, workitem.ErrNotFound)
	}
	return item, nil
}
