package repositories

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"sqlforge/internal/models"
)

type QueryHistoryRepository struct {
	pool *pgxpool.Pool
}

func NewQueryHistoryRepository(pool *pgxpool.Pool) *QueryHistoryRepository {
	return &QueryHistoryRepository{pool: pool}
}

func (r *QueryHistoryRepository) Create(ctx context.Context, queryHistory *models.QueryHistory) error {
	queryHistory.Prepare()

	query := `
		INSERT INTO query_history (id, query_text, executed_at, success, execution_time_ms)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.pool.Exec(ctx, query,
		queryHistory.ID,
		queryHistory.QueryText,
		queryHistory.ExecutedAt,
		queryHistory.Success,
		queryHistory.ExecutionTimeMs,
	)

	return err
}

func (r *QueryHistoryRepository) ListRecent(ctx context.Context, limit int) ([]models.QueryHistory, error) {
	if limit <= 0 {
		limit = 100 // Default limit
	}

	query := `
		SELECT id, query_text, executed_at, success, execution_time_ms
		FROM query_history
		ORDER BY executed_at DESC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var queries []models.QueryHistory
	for rows.Next() {
		var qh models.QueryHistory
		err := rows.Scan(
			&qh.ID,
			&qh.QueryText,
			&qh.ExecutedAt,
			&qh.Success,
			&qh.ExecutionTimeMs,
		)
		if err != nil {
			return nil, err
		}
		queries = append(queries, qh)
	}

	return queries, rows.Err()
}
