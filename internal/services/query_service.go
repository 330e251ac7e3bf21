package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"sqlforge/internal/models"
	"sqlforge/internal/repositories"
)

// ErrPoolUnavailable means the startup database connection failed and
// no pool exists to execute against.
var ErrPoolUnavailable = errors.New("database connection pool is not available")

// QueryError carries the offending SQL together with the database's
// error message so the caller can debug the statement.
type QueryError struct {
	Query string
	Err   error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query execution failed: %v (query: %s)", e.Err, e.Query)
}

func (e *QueryError) Unwrap() error { return e.Err }

type QueryResult struct {
	Columns       []string                 `json:"columns,omitempty"`
	Rows          []map[string]interface{} `json:"rows"`
	RowCount      int                      `json:"row_count"`
	RowsAffected  int64                    `json:"rows_affected,omitempty"`
	ExecutionTime int64                    `json:"execution_time_ms"`
}

// QueryService runs caller- or model-supplied SQL on the shared pool.
// Each call borrows one connection for the duration of a single
// statement; pgx returns it on every exit path.
type QueryService struct {
	pool        *pgxpool.Pool
	historyRepo *repositories.QueryHistoryRepository
	readOnly    bool
}

func NewQueryService(pool *pgxpool.Pool, historyRepo *repositories.QueryHistoryRepository, readOnly bool) *QueryService {
	return &QueryService{
		pool:        pool,
		historyRepo: historyRepo,
		readOnly:    readOnly,
	}
}

var sqlCommentPattern = regexp.MustCompile(`--.*|/\*[\s\S]*?\*/`)

var readOnlyPrefixes = []string{"SELECT", "WITH", "EXPLAIN", "SHOW"}

// validateReadOnly rejects anything but read statements. Only active
// when the service runs with EXECUTE_READ_ONLY=true.
func validateReadOnly(query string) error {
	normalized := strings.ToUpper(strings.TrimSpace(query))
	normalized = sqlCommentPattern.ReplaceAllString(normalized, "")
	normalized = strings.TrimSpace(normalized)

	if normalized == "" {
		return errors.New("query cannot be empty")
	}

	for _, prefix := range readOnlyPrefixes {
		if strings.HasPrefix(normalized, prefix) {
			return nil
		}
	}
	return errors.New("only read-only statements (SELECT, WITH, EXPLAIN, SHOW) are allowed")
}

// Execute runs one SQL statement and materializes the outcome. The
// statement is passed through unmodified; there is no timeout, row cap
// or transaction around it.
func (s *QueryService) Execute(ctx context.Context, query string) (*QueryResult, error) {
	if s.pool == nil {
		return nil, ErrPoolUnavailable
	}

	if s.readOnly {
		if err := validateReadOnly(query); err != nil {
			return nil, &QueryError{Query: query, Err: err}
		}
	}

	startTime := time.Now()
	result, err := s.run(ctx, query)
	execTime := time.Since(startTime).Milliseconds()

	s.recordHistory(ctx, query, err == nil, execTime)

	if err != nil {
		return nil, &QueryError{Query: query, Err: err}
	}

	result.ExecutionTime = execTime
	return result, nil
}

func (s *QueryService) run(ctx context.Context, query string) (*QueryResult, error) {
	normalized := strings.ToUpper(strings.TrimSpace(query))
	for _, prefix := range readOnlyPrefixes {
		if strings.HasPrefix(normalized, prefix) {
			return s.runSelect(ctx, query)
		}
	}

	// Non-SELECT statements (INSERT, UPDATE, DDL, ...) only report the
	// affected row count.
	tag, err := s.pool.Exec(ctx, query)
	if err != nil {
		return nil, err
	}
	return &QueryResult{RowsAffected: tag.RowsAffected()}, nil
}

func (s *QueryService) runSelect(ctx context.Context, query string) (*QueryResult, error) {
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	columns := make([]string, len(fields))
	for i, field := range fields {
		columns[i] = field.Name
	}

	var resultRows []map[string]interface{}
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}

		rowMap := make(map[string]interface{}, len(columns))
		for i, col := range columns {
			rowMap[col] = convertValue(values[i])
		}
		resultRows = append(resultRows, rowMap)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &QueryResult{
		Columns:  columns,
		Rows:     resultRows,
		RowCount: len(resultRows),
	}, nil
}

func convertValue(val interface{}) interface{} {
	switch v := val.(type) {
	case []byte:
		return string(v)
	case time.Time:
		return v.Format(time.RFC3339)
	default:
		return v
	}
}

// recordHistory is best effort; a history insert failure never fails
// the request it describes.
func (s *QueryService) recordHistory(ctx context.Context, query string, success bool, execTimeMs int64) {
	if s.historyRepo == nil {
		return
	}
	execTimeInt := int(execTimeMs)
	entry := &models.QueryHistory{
		QueryText:       query,
		ExecutedAt:      time.Now(),
		Success:         &success,
		ExecutionTimeMs: &execTimeInt,
	}
	if err := s.historyRepo.Create(ctx, entry); err != nil {
		log.Printf("failed to record query history: %v", err)
	}
}

// GetQueryHistory returns the most recent executions, newest first.
func (s *QueryService) GetQueryHistory(ctx context.Context, limit int) ([]models.QueryHistory, error) {
	if s.pool == nil || s.historyRepo == nil {
		return nil, ErrPoolUnavailable
	}
	return s.historyRepo.ListRecent(ctx, limit)
}
