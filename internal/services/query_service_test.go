package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestExecuteWithoutPool(t *testing.T) {
	svc := NewQueryService(nil, nil, false)
	_, err := svc.Execute(context.Background(), "SELECT 1")
	require.ErrorIs(t, err, ErrPoolUnavailable)
}

func TestGetQueryHistoryWithoutPool(t *testing.T) {
	svc := NewQueryService(nil, nil, false)
	_, err := svc.GetQueryHistory(context.Background(), 10)
	require.ErrorIs(t, err, ErrPoolUnavailable)
}

func TestQueryErrorCarriesStatement(t *testing.T) {
	inner := &QueryError{
		Query: "SELEKT 1",
		Err:   context.DeadlineExceeded,
	}
	require.Contains(t, inner.Error(), "SELEKT 1")
	require.ErrorIs(t, inner, context.DeadlineExceeded)
}

func TestValidateReadOnly(t *testing.T) {
	allowed := []string{
		"SELECT * FROM users",
		"  select id from users  ",
		"WITH cte AS (SELECT 1) SELECT * FROM cte",
		"EXPLAIN SELECT 1",
		"SHOW server_version",
		"-- leading comment\nSELECT 1",
		"/* block */ SELECT 1",
	}
	for _, query := range allowed {
		require.NoError(t, validateReadOnly(query), "query: %s", query)
	}

	rejected := []string{
		"",
		"   ",
		"-- only a comment",
		"INSERT INTO users (id) VALUES (1)",
		"UPDATE users SET active = false",
		"DELETE FROM users",
		"DROP TABLE users",
		"TRUNCATE users",
		"CREATE TABLE t (id INT)",
	}
	for _, query := range rejected {
		require.Error(t, validateReadOnly(query), "query: %s", query)
	}
}

func TestConvertValue(t *testing.T) {
	require.Equal(t, "hello", convertValue([]byte("hello")))

	ts := time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)
	require.Equal(t, "2024-05-01T12:30:00Z", convertValue(ts))

	require.Equal(t, int64(7), convertValue(int64(7)))
	require.Nil(t, convertValue(nil))
}
