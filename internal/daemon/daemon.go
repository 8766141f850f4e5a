package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"medannotate/internal/assignment"
	"medannotate/internal/config"
	"medannotate/internal/directory"
	"medannotate/internal/lease"
	"medannotate/internal/logging"
	"medannotate/internal/metrics"
)

// Daemon owns the server's background services and API listener.
type Daemon struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     *directory.Store
	manager   *assignment.Manager
	reclaimer *lease.Reclaimer
	metrics   *metrics.Collector
	api       *apiServer

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Status represents daemon runtime information.
type Status struct {
	Running         bool
	DatabasePath    string
	ReclaimLockPath string
	LeaseEnabled    bool
	APIAddress      string
	Progress        []assignment.TrackProgress
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *directory.Store, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil || logger == nil {
		return nil, errors.New("daemon requires config, store, and logger")
	}
	collector := metrics.NewCollector()
	manager := assignment.NewManager(store, logger, assignment.WithMetrics(collector))
	d := &Daemon{
		cfg:     cfg,
		logger:  logging.NewComponentLogger(logger, "daemon"),
		store:   store,
		manager: manager,
		metrics: collector,
		reclaimer: lease.New(
			store,
			logger,
			collector,
			cfg.LeaseTimeout(),
			cfg.ReclaimInterval(),
			cfg.ReclaimLockPath(),
		),
	}
	d.api = newAPIServer(cfg.Paths.APIBind, cfg.Paths.APIToken, store, manager, collector, logger)
	return d, nil
}

// Manager returns the assignment manager served by the daemon.
func (d *Daemon) Manager() *assignment.Manager {
	return d.manager
}

// Start opens the API listener and launches the lease reclaimer.
func (d *Daemon) Start(ctx context.Context) error {
	if !d.running.CompareAndSwap(false, true) {
		return errors.New("daemon already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.api.start(runCtx); err != nil {
		cancel()
		d.running.Store(false)
		return fmt.Errorf("start api: %w", err)
	}
	d.cancel = cancel

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := d.reclaimer.Run(runCtx); err != nil {
			d.logger.Error("lease reclaimer stopped", logging.Error(err))
		}
	}()

	d.logger.Info("medannotate daemon started",
		logging.String("api", d.api.address()),
		logging.String("database", d.store.Path()),
		logging.Bool("lease_enabled", d.reclaimer.Enabled()),
	)
	return nil
}

// Stop stops background processing and closes the listener.
func (d *Daemon) Stop() {
	if !d.running.CompareAndSwap(true, false) {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.api.stop()
	d.wg.Wait()
	d.logger.Info("medannotate daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Status reports runtime information including live progress counters.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:         d.running.Load(),
		DatabasePath:    d.store.Path(),
		ReclaimLockPath: d.cfg.ReclaimLockPath(),
		LeaseEnabled:    d.reclaimer.Enabled(),
		APIAddress:      d.api.address(),
	}
	if progress, err := d.manager.Summary(ctx); err == nil {
		status.Progress = progress
	} else {
		d.logger.Warn("progress summary failed", logging.Error(err))
	}
	return status
}
