package trash

import (
	"context"
	"fmt"
	"time"

	"github.com/skyvault/skyvault/internal/logger"
)

// Collector runs the periodic retention purge in the background.
//
// Thread Safety: Safe for concurrent use.
type Collector struct {
	service *Service
	config  CollectorConfig
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// CollectorConfig contains configuration for the trash collector.
type CollectorConfig struct {
	// Enabled controls whether the purge runs at all (default: true)
	Enabled bool

	// Interval is how often to scan for expired trash (default: 24h)
	Interval time.Duration

	// RunTimeout bounds a single purge run (default: 10m)
	RunTimeout time.Duration
}

// NewCollector creates a trash collector over the given service.
//
// The collector is initialized but not started. Call Start() to begin
// background purging.
func NewCollector(service *Service, config CollectorConfig) *Collector {
	if config.Interval == 0 {
		config.Interval = 24 * time.Hour
	}
	if config.RunTimeout == 0 {
		config.RunTimeout = 10 * time.Minute
	}

	return &Collector{
		service: service,
		config:  config,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
}

// Start begins the background purge loop. Safe to call once.
func (c *Collector) Start() {
	if !c.config.Enabled {
		logger.Info("Trash collection disabled")
		return
	}

	logger.Info("Starting trash collector: interval=%s retention=%s",
		c.config.Interval, c.service.Retention())

	go c.worker()
}

// Stop stops the collector and waits for it to finish any in-progress
// purge. Returns the context's error if it expires first.
func (c *Collector) Stop(ctx context.Context) error {
	if !c.config.Enabled {
		return nil
	}

	logger.Info("Stopping trash collector...")

	close(c.stopCh)

	select {
	case <-c.doneCh:
		logger.Info("Trash collector stopped successfully")
		return nil
	case <-ctx.Done():
		logger.Warn("Trash collector shutdown timeout")
		return ctx.Err()
	}
}

// RunNow triggers an immediate purge run. Useful for tests, admin
// triggers and initial cleanup on startup. Blocks until the run completes
// or the context is cancelled.
func (c *Collector) RunNow(ctx context.Context) (*Stats, error) {
	logger.Info("Running trash purge (manual trigger)...")
	return c.collect(ctx)
}

// worker is the background goroutine driving periodic purges.
func (c *Collector) worker() {
	defer close(c.doneCh)

	ticker := time.NewTicker(c.config.Interval)
	defer ticker.Stop()

	logger.Info("Trash collector worker started")

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), c.config.RunTimeout)
			stats, err := c.collect(ctx)
			cancel()

			if err != nil {
				logger.Error("Trash purge failed: %v", err)
			} else {
				logger.Info("Trash purge completed: %s", stats.Summary())
			}

		case <-c.stopCh:
			logger.Info("Trash collector worker stopping...")
			return
		}
	}
}

// collect performs a single purge run.
func (c *Collector) collect(ctx context.Context) (*Stats, error) {
	stats := &Stats{StartTime: time.Now()}

	purged, failed, err := c.service.PurgeExpired(ctx)
	stats.PurgedCount = purged
	stats.FailedCount = failed
	stats.EndTime = time.Now()

	if err != nil {
		return stats, err
	}
	return stats, nil
}

// Stats contains statistics from a purge run.
type Stats struct {
	StartTime   time.Time
	EndTime     time.Time
	PurgedCount int
	FailedCount int
}

// Duration returns the total run duration.
func (s *Stats) Duration() time.Duration {
	if s.EndTime.IsZero() {
		return time.Since(s.StartTime)
	}
	return s.EndTime.Sub(s.StartTime)
}

// Summary returns a human-readable summary of the run.
func (s *Stats) Summary() string {
	return fmt.Sprintf("purged=%d failed=%d duration=%s",
		s.PurgedCount, s.FailedCount, s.Duration())
}
