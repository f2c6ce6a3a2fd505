package service

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-presence-api/internal/repository"
	"github.com/noah-isme/sma-presence-api/pkg/jobs"
)

const jobTypeQuerySample = "query_sample"

type metricWriter interface {
	Record(ctx context.Context, queryTime time.Duration, rows int) error
}

// QuerySample is one sampled statement.
type QuerySample struct {
	Model     string
	Operation string
	Duration  time.Duration
	Rows      int
}

// TelemetryConfig tunes sampling and the persistence workers.
type TelemetryConfig struct {
	SampleRate float64
	Workers    int
	BufferSize int
	MaxRetries int
}

// TelemetryService samples successful statements and persists them as
// database_metric rows on a background queue. Statements on database_metric
// itself are never sampled.
type TelemetryService struct {
	cfg    TelemetryConfig
	logger *zap.Logger
	queue  *jobs.Queue

	mu      sync.Mutex
	rng     *rand.Rand
	writer  metricWriter
	dropped uint64
}

// NewTelemetryService builds the sampler. Nothing is recorded until Start.
func NewTelemetryService(cfg TelemetryConfig, logger *zap.Logger) *TelemetryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &TelemetryService{
		cfg:    cfg,
		logger: logger,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	s.queue = jobs.NewQueue("telemetry", s.persist, jobs.QueueConfig{
		Workers:    cfg.Workers,
		BufferSize: cfg.BufferSize,
		MaxRetries: cfg.MaxRetries,
		Logger:     logger,
	})
	return s
}

// Start binds the writer and launches the workers.
func (s *TelemetryService) Start(ctx context.Context, writer metricWriter) {
	s.mu.Lock()
	s.writer = writer
	s.mu.Unlock()
	s.queue.Start(ctx)
}

// Stop halts the workers. Queued samples are discarded.
func (s *TelemetryService) Stop() {
	s.queue.Stop()
}

// ObserveQuery implements repository.QueryObserver.
func (s *TelemetryService) ObserveQuery(model, operation string, duration time.Duration, rows int, err error) {
	if err != nil || model == repository.ModelDatabaseMetric || !s.sampled() {
		return
	}
	job := jobs.Job{
		ID:      uuid.NewString(),
		Type:    jobTypeQuerySample,
		Payload: QuerySample{Model: model, Operation: operation, Duration: duration, Rows: rows},
	}
	if err := s.queue.TryEnqueue(job); err != nil {
		s.mu.Lock()
		s.dropped++
		s.mu.Unlock()
		s.logger.Debug("telemetry sample dropped", zap.Error(err))
	}
}

// Dropped reports how many samples could not be queued.
func (s *TelemetryService) Dropped() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

func (s *TelemetryService) sampled() bool {
	switch {
	case s.cfg.SampleRate <= 0:
		return false
	case s.cfg.SampleRate >= 1:
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64() < s.cfg.SampleRate
}

func (s *TelemetryService) persist(ctx context.Context, job jobs.Job) error {
	sample, ok := job.Payload.(QuerySample)
	if !ok {
		return fmt.Errorf("unexpected telemetry payload %T", job.Payload)
	}
	s.mu.Lock()
	writer := s.writer
	s.mu.Unlock()
	if writer == nil {
		return fmt.Errorf("telemetry writer not bound")
	}
	return writer.Record(ctx, sample.Duration, sample.Rows)
}
