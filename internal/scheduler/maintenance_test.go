package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubTokens struct {
	removed  int64
	err      error
	calledAt time.Time
}

func (s *stubTokens) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	s.calledAt = now
	return s.removed, s.err
}

type stubMetrics struct {
	cutoff time.Time
}

func (s *stubMetrics) PurgeBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.cutoff = cutoff
	return 9, nil
}

func TestRunOncePurgesEveryTable(t *testing.T) {
	now := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	tokens := &stubTokens{removed: 2}
	sessions := &stubTokens{removed: 3}
	metrics := &stubMetrics{}

	s := NewMaintenanceScheduler(Purgers{VerificationTokens: tokens, Sessions: sessions, Metrics: metrics},
		MaintenanceConfig{Schedule: "*/15 * * * *", MetricRetention: 24 * time.Hour}, nil)
	s.now = func() time.Time { return now }

	report, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), report.VerificationTokens)
	assert.Equal(t, int64(3), report.Sessions)
	assert.Equal(t, int64(9), report.Metrics)
	assert.Equal(t, now, tokens.calledAt)
	assert.Equal(t, now.Add(-24*time.Hour), metrics.cutoff)
	require.NotNil(t, s.LastRun())
	assert.Equal(t, now, s.LastRun().StartedAt)
}

func TestRunOnceContinuesAfterFailure(t *testing.T) {
	boom := errors.New("boom")
	tokens := &stubTokens{err: boom}
	sessions := &stubTokens{removed: 1}

	s := NewMaintenanceScheduler(Purgers{VerificationTokens: tokens, Sessions: sessions},
		MaintenanceConfig{Schedule: "@hourly"}, nil)

	report, err := s.RunOnce(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int64(1), report.Sessions)
}

func TestStartRejectsInvalidSchedule(t *testing.T) {
	s := NewMaintenanceScheduler(Purgers{}, MaintenanceConfig{Schedule: "every minute"}, nil)
	require.Error(t, s.Start(context.Background()))
	assert.False(t, s.IsRunning())
}

func TestStartAndStop(t *testing.T) {
	s := NewMaintenanceScheduler(Purgers{}, MaintenanceConfig{Schedule: "0 3 * * *"}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, s.Start(ctx))
	assert.True(t, s.IsRunning())
	next := s.NextRun()
	require.NotNil(t, next)
	assert.Equal(t, 3, next.Hour())

	s.Stop()
	assert.False(t, s.IsRunning())
	assert.Nil(t, s.NextRun())
}
