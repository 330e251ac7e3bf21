package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"sqlforge/internal/models"
	"sqlforge/internal/repositories"
	"sqlforge/internal/responses"
	"sqlforge/internal/services"
)

// SQLGenerator synthesizes a SQL statement from a schema and a
// business-logic description.
type SQLGenerator interface {
	GenerateSQL(ctx context.Context, schemaDDL, businessLogic string) (string, error)
}

// SQLExecutor runs a SQL statement on the shared pool.
type SQLExecutor interface {
	Execute(ctx context.Context, query string) (*services.QueryResult, error)
	GetQueryHistory(ctx context.Context, limit int) ([]models.QueryHistory, error)
}

type QueryHandler struct {
	schemaService SchemaStore
	generator     SQLGenerator
	executor      SQLExecutor
}

func NewQueryHandler(schemaService SchemaStore, generator SQLGenerator, executor SQLExecutor) *QueryHandler {
	return &QueryHandler{
		schemaService: schemaService,
		generator:     generator,
		executor:      executor,
	}
}

type GenerateSQLRequest struct {
	BusinessLogic string `json:"business_logic"`
}

type ExecuteSQLRequest struct {
	SQLQuery string `json:"sql_query"`
}

// GenerateSQL handles POST /generate-sql/.
func (h *QueryHandler) GenerateSQL(c *gin.Context) {
	sqlQuery, ok := h.generateFromRequest(c)
	if !ok {
		return
	}
	responses.Success(c, http.StatusOK, gin.H{"sql_query": sqlQuery}, "SQL query generated successfully")
}

// ExecuteSQL handles POST /execute-sql/. The statement is executed as
// supplied, without a generation step.
func (h *QueryHandler) ExecuteSQL(c *gin.Context) {
	var req ExecuteSQLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		responses.Fail(c, http.StatusBadRequest, err, "Invalid request body: sql_query is required")
		return
	}
	if strings.TrimSpace(req.SQLQuery) == "" {
		responses.Fail(c, http.StatusBadRequest, nil, "sql_query must not be empty")
		return
	}

	result, err := h.executor.Execute(c.Request.Context(), req.SQLQuery)
	if err != nil {
		h.failForExecuteError(c, err, nil)
		return
	}

	responses.Success(c, http.StatusOK, result, "Query executed successfully")
}

// GenerateAndExecute handles POST /generate-and-execute/: generation
// followed by execution in one call. When execution fails, the
// response still carries the generated SQL so the caller can debug it.
func (h *QueryHandler) GenerateAndExecute(c *gin.Context) {
	sqlQuery, ok := h.generateFromRequest(c)
	if !ok {
		return
	}

	result, err := h.executor.Execute(c.Request.Context(), sqlQuery)
	if err != nil {
		h.failForExecuteError(c, err, gin.H{"sql_query": sqlQuery})
		return
	}

	responses.Success(c, http.StatusOK, gin.H{
		"sql_query": sqlQuery,
		"result":    result,
	}, "Query generated and executed successfully")
}

// GetQueryHistory handles GET /query-history/.
func (h *QueryHandler) GetQueryHistory(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 {
		responses.Fail(c, http.StatusBadRequest, nil, "limit must be a positive integer")
		return
	}

	history, err := h.executor.GetQueryHistory(c.Request.Context(), limit)
	if err != nil {
		if errors.Is(err, services.ErrPoolUnavailable) {
			responses.Fail(c, http.StatusServiceUnavailable, err, "Database is not available")
			return
		}
		responses.Fail(c, http.StatusInternalServerError, err, "Failed to load query history")
		return
	}

	responses.Success(c, http.StatusOK, history, "Query history loaded successfully")
}

// generateFromRequest binds the generation request, loads the stored
// schema and calls the synthesizer. On failure it writes the error
// response and returns ok=false.
func (h *QueryHandler) generateFromRequest(c *gin.Context) (string, bool) {
	var req GenerateSQLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		responses.Fail(c, http.StatusBadRequest, err, "Invalid request body: business_logic is required")
		return "", false
	}
	if strings.TrimSpace(req.BusinessLogic) == "" {
		responses.Fail(c, http.StatusBadRequest, nil, "business_logic must not be empty")
		return "", false
	}

	schemaDDL, err := h.schemaService.LoadSchema()
	if err != nil {
		if errors.Is(err, repositories.ErrSchemaNotFound) {
			responses.Fail(c, http.StatusBadRequest, err, "No schema file found. Please upload your dump.sql file to the /upload-schema/ endpoint first")
			return "", false
		}
		responses.Fail(c, http.StatusInternalServerError, err, "Failed to read the stored schema")
		return "", false
	}

	sqlQuery, err := h.generator.GenerateSQL(c.Request.Context(), schemaDDL, req.BusinessLogic)
	if err != nil {
		h.failForGenerateError(c, err)
		return "", false
	}
	return sqlQuery, true
}

func (h *QueryHandler) failForGenerateError(c *gin.Context, err error) {
	var statusErr *services.UpstreamStatusError
	switch {
	case errors.Is(err, services.ErrAPIKeyMissing):
		responses.Fail(c, http.StatusInternalServerError, err, "Generation API credential is not configured")
	case errors.Is(err, services.ErrUpstreamUnavailable):
		responses.Fail(c, http.StatusServiceUnavailable, err, "Service Unavailable: Could not connect to the AI model")
	case errors.Is(err, services.ErrUnexpectedResponse):
		responses.Fail(c, http.StatusInternalServerError, err, "Could not parse the response from the AI model")
	case errors.As(err, &statusErr):
		responses.Fail(c, http.StatusBadGateway, err, "The AI model returned an error")
	default:
		responses.Fail(c, http.StatusInternalServerError, err, "Failed to generate SQL query")
	}
}

func (h *QueryHandler) failForExecuteError(c *gin.Context, err error, data gin.H) {
	var queryErr *services.QueryError
	switch {
	case errors.Is(err, services.ErrPoolUnavailable):
		responses.Fail(c, http.StatusServiceUnavailable, err, "Database is not available")
	case errors.As(err, &queryErr):
		if data != nil {
			responses.FailWithData(c, http.StatusBadRequest, err, data, "Query execution failed")
			return
		}
		responses.Fail(c, http.StatusBadRequest, err, "Query execution failed")
	default:
		responses.Fail(c, http.StatusInternalServerError, err, "Failed to execute query")
	}
}
