package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"sqlforge/internal/config"
)

var (
	// ErrAPIKeyMissing means GEMINI_API_KEY was never configured.
	ErrAPIKeyMissing = errors.New("GEMINI_API_KEY environment variable not set")
	// ErrUpstreamUnavailable wraps transport-level failures reaching
	// the generation API.
	ErrUpstreamUnavailable = errors.New("could not connect to the AI model")
	// ErrUnexpectedResponse means the response body did not carry the
	// expected candidates[0].content.parts[0].text path.
	ErrUnexpectedResponse = errors.New("could not parse the response from the AI model")
)

// UpstreamStatusError is the final non-2xx answer after retries.
type UpstreamStatusError struct {
	Status int
	Body   string
}

func (e *UpstreamStatusError) Error() string {
	return fmt.Sprintf("generation API returned status %d: %s", e.Status, e.Body)
}

const maxGenerateAttempts = 3

const sqlPromptTemplate = `You are an expert PostgreSQL developer. Your task is to translate a user's business logic into a precise and executable PostgreSQL query based on the provided database schema.

Instructions:
1. Analyze the database schema below to understand the table structures, columns, and relationships.
2. Read the user's business logic carefully.
3. Generate a single, clean, and correct PostgreSQL query that fulfills the user's request on one line.
4. Do not include any explanations, comments, or markdown formatting in your response. Only output the raw SQL query.

Database Schema (DDL):
` + "```sql\n%s\n```" + `

User's Business Logic:
"%s"

Generated PostgreSQL Query:`

// GeminiService translates business logic plus a DDL schema into a
// single SQL statement via the Gemini generateContent endpoint.
type GeminiService struct {
	apiKey        string
	model         string
	baseURL       string
	client        *http.Client
	retryInterval time.Duration
}

func NewGeminiService(cfg config.GeminiConfig) *GeminiService {
	retryInterval := cfg.RetryInterval
	if retryInterval <= 0 {
		retryInterval = time.Second
	}
	return &GeminiService{
		apiKey:        cfg.APIKey,
		model:         cfg.Model,
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		client:        &http.Client{Timeout: cfg.Timeout},
		retryInterval: retryInterval,
	}
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// GenerateSQL sends one prompt per attempt and retries non-success
// answers with exponential backoff before giving up. The caller is
// responsible for ensuring businessLogic is non-empty.
func (s *GeminiService) GenerateSQL(ctx context.Context, schemaDDL, businessLogic string) (string, error) {
	if s.apiKey == "" {
		return "", ErrAPIKeyMissing
	}

	prompt := fmt.Sprintf(sqlPromptTemplate, schemaDDL, businessLogic)
	payload := geminiRequest{
		Contents: []geminiContent{
			{Role: "user", Parts: []geminiPart{{Text: prompt}}},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal generation request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		s.baseURL, s.model, url.QueryEscape(s.apiKey))

	var raw []byte
	attempt := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to build generation request: %w", err))
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := s.client.Do(req)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return &UpstreamStatusError{Status: resp.StatusCode, Body: truncateBody(data)}
		}
		raw = data
		return nil
	}

	if err := backoff.Retry(attempt, backoff.WithContext(s.retryPolicy(), ctx)); err != nil {
		return "", err
	}

	var parsed geminiResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnexpectedResponse, err)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", ErrUnexpectedResponse
	}

	generated := sanitizeSQL(parsed.Candidates[0].Content.Parts[0].Text)
	if generated == "" {
		return "", ErrUnexpectedResponse
	}
	return generated, nil
}

// retryPolicy yields pauses of interval, 2*interval, ... capped at
// maxGenerateAttempts total attempts. Randomization is disabled so the
// backoff schedule stays predictable.
func (s *GeminiService) retryPolicy() backoff.BackOff {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = s.retryInterval
	policy.RandomizationFactor = 0
	policy.Multiplier = 2
	return backoff.WithMaxRetries(policy, maxGenerateAttempts-1)
}

// sanitizeSQL strips markdown fencing and flattens the statement onto
// one line.
func sanitizeSQL(text string) string {
	cleaned := strings.TrimSpace(text)
	cleaned = strings.ReplaceAll(cleaned, "```sql", "")
	cleaned = strings.ReplaceAll(cleaned, "```", "")
	cleaned = strings.ReplaceAll(cleaned, "\r\n", "\n")
	cleaned = strings.ReplaceAll(cleaned, "\n", " ")
	return strings.TrimSpace(cleaned)
}

func truncateBody(data []byte) string {
	const limit = 512
	if len(data) > limit {
		return string(data[:limit]) + "..."
	}
	return string(data)
}
