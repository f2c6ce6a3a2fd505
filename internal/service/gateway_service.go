package service

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-presence-api/internal/repository"
	"github.com/noah-isme/sma-presence-api/pkg/database"
	appErrors "github.com/noah-isme/sma-presence-api/pkg/errors"
	"github.com/noah-isme/sma-presence-api/pkg/logger"
)

// maxBatchOperations bounds a single $transaction request.
const maxBatchOperations = 100

// BatchStep is one operation of a $transaction request.
type BatchStep struct {
	Model     string                 `json:"model" validate:"required"`
	Operation string                 `json:"operation" validate:"required"`
	Args      map[string]interface{} `json:"args"`
}

// BatchRequest is the body of POST {prefix}/$transaction.
type BatchRequest struct {
	Operations     []BatchStep `json:"operations" validate:"required,min=1,dive"`
	IsolationLevel string      `json:"isolationLevel" validate:"omitempty,oneof=ReadUncommitted ReadCommitted RepeatableRead Serializable"`
	MaxWait        int         `json:"maxWait" validate:"gte=0"`
	Timeout        int         `json:"timeout" validate:"gte=0"`
}

// TxOptions converts the millisecond knobs of the request.
func (r BatchRequest) TxOptions() database.TxOptions {
	return database.TxOptions{
		MaxWait:        time.Duration(r.MaxWait) * time.Millisecond,
		Timeout:        time.Duration(r.Timeout) * time.Millisecond,
		IsolationLevel: database.IsolationLevel(r.IsolationLevel),
	}
}

type modelClient interface {
	Model(name string) (*repository.DynamicTable, error)
	Transaction(ctx context.Context, fn func(tx *repository.Client) error, opts ...database.TxOptions) error
}

// GatewayService dispatches name-addressed operations to the repositories.
type GatewayService struct {
	client    modelClient
	validator *validator.Validate
	logger    *zap.Logger
}

// NewGatewayService constructs a GatewayService.
func NewGatewayService(client modelClient, validate *validator.Validate, logger *zap.Logger) *GatewayService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &GatewayService{client: client, validator: validate, logger: logger}
}

// Table resolves a model for callers that need the table itself.
func (s *GatewayService) Table(model string) (*repository.DynamicTable, error) {
	return s.client.Model(model)
}

// Execute runs one operation on one model.
func (s *GatewayService) Execute(ctx context.Context, model, operation string, args map[string]interface{}) (interface{}, error) {
	table, err := s.client.Model(model)
	if err != nil {
		return nil, err
	}
	return table.Execute(ctx, operation, args)
}

// Batch runs every step in one transaction and returns the results in order.
func (s *GatewayService) Batch(ctx context.Context, req BatchRequest) ([]interface{}, error) {
	if err := s.validator.StructCtx(ctx, req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid transaction request")
	}
	if len(req.Operations) > maxBatchOperations {
		return nil, appErrors.Validation("a transaction accepts at most %d operations", maxBatchOperations)
	}

	results := make([]interface{}, 0, len(req.Operations))
	err := s.client.Transaction(ctx, func(tx *repository.Client) error {
		for i, step := range req.Operations {
			table, err := tx.Model(step.Model)
			if err != nil {
				return err
			}
			res, err := table.Execute(ctx, step.Operation, step.Args)
			if err != nil {
				logger.WithContext(ctx, s.logger).Debug("transaction step failed",
					zap.Int("step", i), zap.String("model", step.Model), zap.String("operation", step.Operation), zap.Error(err))
				return err
			}
			results = append(results, res)
		}
		return nil
	}, req.TxOptions())
	if err != nil {
		return nil, err
	}
	return results, nil
}
