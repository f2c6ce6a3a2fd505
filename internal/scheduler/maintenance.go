package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

type tokenPurger interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type metricPurger interface {
	PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Purgers are the tables swept on every run.
type Purgers struct {
	VerificationTokens tokenPurger
	Sessions           tokenPurger
	Metrics            metricPurger
}

// MaintenanceConfig configures the sweep.
type MaintenanceConfig struct {
	Schedule        string
	MetricRetention time.Duration
	RunTimeout      time.Duration
}

// RunReport summarises one sweep.
type RunReport struct {
	VerificationTokens int64
	Sessions           int64
	Metrics            int64
	StartedAt          time.Time
	Duration           time.Duration
}

// MaintenanceScheduler periodically removes expired verification tokens and
// sessions and metric samples older than the retention window.
type MaintenanceScheduler struct {
	purgers Purgers
	cfg     MaintenanceConfig
	logger  *zap.Logger
	now     func() time.Time

	cron      *cron.Cron
	entryID   cron.EntryID
	mu        sync.RWMutex
	isRunning bool
	last      *RunReport
}

// NewMaintenanceScheduler creates a scheduler using a five-field cron parser
// that also accepts descriptors such as @hourly.
func NewMaintenanceScheduler(purgers Purgers, cfg MaintenanceConfig, logger *zap.Logger) *MaintenanceScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = time.Minute
	}
	return &MaintenanceScheduler{
		purgers: purgers,
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
		cron:    cron.New(cron.WithParser(cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor))),
	}
}

// ValidateSchedule reports whether expr is a valid five-field cron expression.
func ValidateSchedule(expr string) error {
	_, err := cron.ParseStandard(expr)
	return err
}

// Start registers the sweep and starts the cron loop. Cancelling ctx stops it.
func (s *MaintenanceScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return nil
	}
	if err := ValidateSchedule(s.cfg.Schedule); err != nil {
		return fmt.Errorf("invalid cron schedule '%s': %w", s.cfg.Schedule, err)
	}

	entryID, err := s.cron.AddFunc(s.cfg.Schedule, func() {
		if _, err := s.RunOnce(ctx); err != nil {
			s.logger.Warn("maintenance sweep failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule maintenance job: %w", err)
	}
	s.entryID = entryID
	s.cron.Start()
	s.isRunning = true
	s.logger.Info("maintenance scheduler started", zap.String("schedule", s.cfg.Schedule))

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

// Stop waits for a running sweep and stops the cron loop.
func (s *MaintenanceScheduler) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	entryID := s.entryID
	s.mu.Unlock()

	// a running sweep takes mu when it finishes
	<-s.cron.Stop().Done()
	s.cron.Remove(entryID)
	s.logger.Info("maintenance scheduler stopped")
}

// IsRunning returns whether the scheduler is active.
func (s *MaintenanceScheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// NextRun returns when the next sweep will occur.
func (s *MaintenanceScheduler) NextRun() *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.isRunning {
		return nil
	}
	entry := s.cron.Entry(s.entryID)
	if !entry.Valid() {
		return nil
	}
	next := entry.Next
	return &next
}

// LastRun returns the report of the latest completed sweep.
func (s *MaintenanceScheduler) LastRun() *RunReport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}

// RunOnce performs one sweep. Each table is swept even when another fails;
// the first error is returned.
func (s *MaintenanceScheduler) RunOnce(ctx context.Context) (RunReport, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.RunTimeout)
	defer cancel()

	now := s.now().UTC()
	report := RunReport{StartedAt: now}
	var firstErr error
	keep := func(what string, err error) {
		if err == nil {
			return
		}
		s.logger.Warn("maintenance purge failed", zap.String("table", what), zap.Error(err))
		if firstErr == nil {
			firstErr = fmt.Errorf("purge %s: %w", what, err)
		}
	}

	if s.purgers.VerificationTokens != nil {
		n, err := s.purgers.VerificationTokens.DeleteExpired(ctx, now)
		report.VerificationTokens = n
		keep("verification_token", err)
	}
	if s.purgers.Sessions != nil {
		n, err := s.purgers.Sessions.DeleteExpired(ctx, now)
		report.Sessions = n
		keep("sessions", err)
	}
	if s.purgers.Metrics != nil && s.cfg.MetricRetention > 0 {
		n, err := s.purgers.Metrics.PurgeBefore(ctx, now.Add(-s.cfg.MetricRetention))
		report.Metrics = n
		keep("database_metric", err)
	}

	report.Duration = s.now().UTC().Sub(now)
	s.logger.Info("maintenance sweep finished",
		zap.Int64("verification_tokens", report.VerificationTokens),
		zap.Int64("sessions", report.Sessions),
		zap.Int64("metrics", report.Metrics),
		zap.Duration("duration", report.Duration))

	s.mu.Lock()
	s.last = &report
	s.mu.Unlock()
	return report, firstErr
}
