package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-presence-api/internal/middleware"
	"github.com/noah-isme/sma-presence-api/internal/repository"
	"github.com/noah-isme/sma-presence-api/internal/service"
	appErrors "github.com/noah-isme/sma-presence-api/pkg/errors"
	"github.com/noah-isme/sma-presence-api/pkg/query"
	"github.com/noah-isme/sma-presence-api/pkg/response"
)

type gatewayService interface {
	Table(model string) (*repository.DynamicTable, error)
	Execute(ctx context.Context, model, operation string, args map[string]interface{}) (interface{}, error)
	Batch(ctx context.Context, req service.BatchRequest) ([]interface{}, error)
}

type exportService interface {
	Export(ctx context.Context, source service.RecordSource, args map[string]interface{}, format service.ExportFormat) (*service.ExportFile, error)
}

// GatewayHandler exposes the model operations over HTTP.
type GatewayHandler struct {
	gateway gatewayService
	export  exportService
}

// NewGatewayHandler creates a new handler.
func NewGatewayHandler(gateway gatewayService, export exportService) *GatewayHandler {
	return &GatewayHandler{gateway: gateway, export: export}
}

// Execute godoc
// @Summary Run a model operation
// @Description Runs findUnique, findMany, create, update, upsert, delete, count, aggregate, groupBy and the other operations on one model. The body carries the operation arguments.
// @Tags Gateway
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param model path string true "Model name"
// @Param operation path string true "Operation name"
// @Param payload body object false "Operation arguments"
// @Success 200 {object} response.Envelope
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /{model}/{operation} [post]
func (h *GatewayHandler) Execute(c *gin.Context) {
	args, err := readArgs(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	model, operation := c.Param("model"), c.Param("operation")
	res, err := h.gateway.Execute(c.Request.Context(), model, operation, args)
	if err != nil {
		response.Error(c, err)
		return
	}

	status := http.StatusOK
	if operation == "create" || operation == "createMany" || operation == "createManyAndReturn" {
		status = http.StatusCreated
	}
	response.JSON(c, status, res, middleware.ResponseMeta(c, map[string]interface{}{"model": model, "operation": operation}))
}

// Transaction godoc
// @Summary Run operations atomically
// @Description Runs every operation in one transaction and returns the results in order. The first failure rolls back the batch.
// @Tags Gateway
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.BatchRequest true "Operations"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 504 {object} response.Envelope
// @Router /$transaction [post]
func (h *GatewayHandler) Transaction(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "unable to read request body"))
		return
	}
	var req service.BatchRequest
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid transaction payload"))
		return
	}

	results, err := h.gateway.Batch(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, results, middleware.ResponseMeta(c, map[string]interface{}{"operations": len(results)}))
}

// Export godoc
// @Summary Export a model as CSV or PDF
// @Description Runs findMany with the body as arguments and renders the scalar columns.
// @Tags Gateway
// @Accept json
// @Produce text/csv
// @Produce application/pdf
// @Security BearerAuth
// @Param model path string true "Model name"
// @Param format query string false "csv or pdf"
// @Param payload body object false "findMany arguments"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /$export/{model} [post]
func (h *GatewayHandler) Export(c *gin.Context) {
	format, err := service.ParseExportFormat(c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	args, err := readArgs(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	table, err := h.gateway.Table(c.Param("model"))
	if err != nil {
		response.Error(c, err)
		return
	}

	file, err := h.export.Export(c.Request.Context(), table, args, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.File(c, file.ContentType, file.Filename, file.Body)
}

// Models lists the addressable models and operations.
// @Summary List models
// @Tags Gateway
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /$models [get]
func (h *GatewayHandler) Models(c *gin.Context) {
	models := repository.Schema.Models()
	names := make([]string, len(models))
	for i, m := range models {
		names[i] = m.Name
	}
	response.OK(c, gin.H{"models": names, "operations": repository.Operations})
}

func readArgs(c *gin.Context) (map[string]interface{}, error) {
	body, err := c.GetRawData()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "unable to read request body")
	}
	return query.DecodeJSON(body)
}
