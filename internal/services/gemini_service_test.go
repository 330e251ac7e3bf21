package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"sqlforge/internal/config"
)

func geminiBody(text string) string {
	body := map[string]any{
		"candidates": []map[string]any{
			{"content": map[string]any{"parts": []map[string]any{{"text": text}}}},
		},
	}
	encoded, _ := json.Marshal(body)
	return string(encoded)
}

func newTestGeminiService(baseURL string) *GeminiService {
	return NewGeminiService(config.GeminiConfig{
		APIKey:        "test-key",
		Model:         "gemini-test",
		BaseURL:       baseURL,
		Timeout:       5 * time.Second,
		RetryInterval: 10 * time.Millisecond,
	})
}

func TestGenerateSQLStripsFencesAndNewlines(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Contains(t, r.URL.Path, ":generateContent")
		require.Equal(t, "test-key", r.URL.Query().Get("key"))

		var req geminiRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Contents, 1)
		require.Equal(t, "user", req.Contents[0].Role)
		require.Contains(t, req.Contents[0].Parts[0].Text, "CREATE TABLE users")
		require.Contains(t, req.Contents[0].Parts[0].Text, "all active users")

		w.Write([]byte(geminiBody("```sql\nSELECT *\nFROM users\nWHERE active = true;\n```")))
	}))
	defer upstream.Close()

	svc := newTestGeminiService(upstream.URL)
	sql, err := svc.GenerateSQL(context.Background(), "CREATE TABLE users (id INT, active BOOL);", "all active users")
	require.NoError(t, err)
	require.Equal(t, "SELECT * FROM users WHERE active = true;", sql)
	require.NotContains(t, sql, "```")
	require.NotContains(t, sql, "\n")
}

func TestGenerateSQLMissingAPIKey(t *testing.T) {
	svc := NewGeminiService(config.GeminiConfig{BaseURL: "http://localhost:0"})
	_, err := svc.GenerateSQL(context.Background(), "CREATE TABLE t (id INT);", "anything")
	require.ErrorIs(t, err, ErrAPIKeyMissing)
}

func TestGenerateSQLRetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(geminiBody("SELECT 1;")))
	}))
	defer upstream.Close()

	svc := newTestGeminiService(upstream.URL)
	start := time.Now()
	sql, err := svc.GenerateSQL(context.Background(), "CREATE TABLE t (id INT);", "one")
	require.NoError(t, err)
	require.Equal(t, "SELECT 1;", sql)
	require.EqualValues(t, 3, calls.Load())
	// Backoff pauses of interval then 2*interval must have elapsed.
	require.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestGenerateSQLGivesUpAfterThreeAttempts(t *testing.T) {
	var calls atomic.Int32
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"boom"}`))
	}))
	defer upstream.Close()

	svc := newTestGeminiService(upstream.URL)
	_, err := svc.GenerateSQL(context.Background(), "CREATE TABLE t (id INT);", "one")
	require.Error(t, err)
	require.EqualValues(t, 3, calls.Load())

	var statusErr *UpstreamStatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusInternalServerError, statusErr.Status)
	require.Contains(t, statusErr.Body, "boom")
}

func TestGenerateSQLUnreachableUpstream(t *testing.T) {
	svc := NewGeminiService(config.GeminiConfig{
		APIKey:        "test-key",
		Model:         "gemini-test",
		BaseURL:       "http://127.0.0.1:1",
		Timeout:       time.Second,
		RetryInterval: time.Millisecond,
	})
	_, err := svc.GenerateSQL(context.Background(), "CREATE TABLE t (id INT);", "one")
	require.ErrorIs(t, err, ErrUpstreamUnavailable)
}

func TestGenerateSQLUnexpectedResponseShape(t *testing.T) {
	cases := map[string]string{
		"no candidates":    `{"candidates":[]}`,
		"no parts":         `{"candidates":[{"content":{"parts":[]}}]}`,
		"different object": `{"result":"SELECT 1"}`,
		"empty text":       geminiBody("   "),
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(body))
			}))
			defer upstream.Close()

			svc := newTestGeminiService(upstream.URL)
			_, err := svc.GenerateSQL(context.Background(), "CREATE TABLE t (id INT);", "one")
			require.ErrorIs(t, err, ErrUnexpectedResponse)
		})
	}
}

func TestGenerateSQLHonorsContextCancellation(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer upstream.Close()

	svc := newTestGeminiService(upstream.URL)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := svc.GenerateSQL(ctx, "CREATE TABLE t (id INT);", "one")
	require.Error(t, err)
}

func TestSanitizeSQL(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "SELECT 1;", "SELECT 1;"},
		{"whitespace", "  SELECT 1;  ", "SELECT 1;"},
		{"fenced", "```sql\nSELECT 1;\n```", "SELECT 1;"},
		{"bare fence", "```\nSELECT 1;\n```", "SELECT 1;"},
		{"multiline", "SELECT id,\n  name\nFROM users;", "SELECT id,   name FROM users;"},
		{"crlf", "SELECT 1\r\nFROM t;", "SELECT 1 FROM t;"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := sanitizeSQL(tc.in)
			require.Equal(t, tc.want, got)
			require.False(t, strings.Contains(got, "\n"))
		})
	}
}

func TestUpstreamStatusErrorMessage(t *testing.T) {
	err := &UpstreamStatusError{Status: 429, Body: "quota exhausted"}
	require.Contains(t, err.Error(), "429")
	require.Contains(t, err.Error(), "quota exhausted")
	require.False(t, errors.Is(err, ErrUpstreamUnavailable))
}
