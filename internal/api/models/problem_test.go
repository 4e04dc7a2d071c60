package models_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skycache/skycache/internal/api/models"
)

func TestProblem_Write(t *testing.T) {
	p := models.NewBadRequest("req_test123", "invalid input", []models.FieldError{
		{Field: "unit", Message: "must be C or F"},
	})
	p.Instance = "/v1/weather/subscriptions/sub_1/unit"

	w := httptest.NewRecorder()
	p.Write(w)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))
	assert.Equal(t, "req_test123", w.Header().Get("X-Request-Id"))
	assert.Empty(t, w.Header().Get("Retry-After"))

	var result models.Problem
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))

	assert.Equal(t, models.ProblemTypeValidation, result.Type)
	assert.Equal(t, "Validation error", result.Title)
	assert.Equal(t, http.StatusBadRequest, result.Status)
	assert.Equal(t, "invalid input", result.Detail)
	assert.Equal(t, "/v1/weather/subscriptions/sub_1/unit", result.Instance)
	assert.Equal(t, "req_test123", result.TraceID)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "unit", result.Errors[0].Field)
}

func TestProblem_WriteWithoutTraceID(t *testing.T) {
	w := httptest.NewRecorder()
	models.NewInternalError("", "boom").Write(w)

	assert.Empty(t, w.Header().Get("X-Request-Id"))
	assert.Contains(t, w.Body.String(), `"traceId":""`)
}

func TestProblem_RetryAfter(t *testing.T) {
	tests := []struct {
		name  string
		after time.Duration
		want  string
	}{
		{"whole seconds", 30 * time.Second, "30"},
		{"rounds up", 1500 * time.Millisecond, "2"},
		{"sub-second", 10 * time.Millisecond, "1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := models.NewTooManyRequests("req_1", "slow down")
			p.RetryAfter = tt.after

			w := httptest.NewRecorder()
			p.Write(w)

			assert.Equal(t, tt.want, w.Header().Get("Retry-After"))
			assert.NotContains(t, w.Body.String(), "RetryAfter")
		})
	}
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		name    string
		problem *models.Problem
		typ     string
		title   string
		status  int
		detail  string
	}{
		{
			name:    "bad request",
			problem: models.NewBadRequest("req_123", "invalid data", nil),
			typ:     models.ProblemTypeValidation,
			title:   "Validation error",
			status:  http.StatusBadRequest,
			detail:  "invalid data",
		},
		{
			name:    "not found",
			problem: models.NewNotFound("req_123", "unknown subscription"),
			typ:     models.ProblemTypeNotFound,
			title:   "Not found",
			status:  http.StatusNotFound,
			detail:  "unknown subscription",
		},
		{
			name:    "method not allowed",
			problem: models.NewMethodNotAllowed("req_123", "DELETE is not supported on /v1/weather"),
			typ:     models.ProblemTypeMethodNotAllowed,
			title:   "Method not allowed",
			status:  http.StatusMethodNotAllowed,
			detail:  "DELETE is not supported on /v1/weather",
		},
		{
			name:    "unsupported media type",
			problem: models.NewUnsupportedMediaType("req_123", "Content-Type must be application/json"),
			typ:     models.ProblemTypeUnsupportedMedia,
			title:   "Unsupported media type",
			status:  http.StatusUnsupportedMediaType,
			detail:  "Content-Type must be application/json",
		},
		{
			name:    "too many requests",
			problem: models.NewTooManyRequests("req_123", "rate limit exceeded"),
			typ:     models.ProblemTypeTooManyRequests,
			title:   "Too many requests",
			status:  http.StatusTooManyRequests,
			detail:  "rate limit exceeded",
		},
		{
			name:    "tls required",
			problem: models.NewTLSRequired("req_123"),
			typ:     models.ProblemTypeTLSRequired,
			title:   "TLS required",
			status:  http.StatusForbidden,
			detail:  "This endpoint requires HTTPS",
		},
		{
			name:    "internal error",
			problem: models.NewInternalError("req_123", "unexpected error"),
			typ:     models.ProblemTypeInternal,
			title:   "Internal server error",
			status:  http.StatusInternalServerError,
			detail:  "unexpected error",
		},
		{
			name:    "provider unavailable",
			problem: models.NewProviderUnavailable("req_123", "fetch observation: timeout"),
			typ:     models.ProblemTypeProviderUnavailable,
			title:   "Weather provider unavailable",
			status:  http.StatusServiceUnavailable,
			detail:  "fetch observation: timeout",
		},
		{
			name:    "service unavailable",
			problem: models.NewServiceUnavailable("req_123", "refresh timed out"),
			typ:     models.ProblemTypeUnavailable,
			title:   "Service unavailable",
			status:  http.StatusServiceUnavailable,
			detail:  "refresh timed out",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.typ, tt.problem.Type)
			assert.Equal(t, tt.title, tt.problem.Title)
			assert.Equal(t, tt.status, tt.problem.Status)
			assert.Equal(t, tt.detail, tt.problem.Detail)
			assert.Equal(t, "req_123", tt.problem.TraceID)
			assert.Empty(t, tt.problem.Instance)
		})
	}
}

func TestTimestamp_JSON(t *testing.T) {
	at := time.Date(2026, 3, 14, 9, 26, 53, 589_000_000, time.FixedZone("CET", 3600))

	b, err := json.Marshal(models.Timestamp(at))
	require.NoError(t, err)
	assert.Equal(t, `"2026-03-14T08:26:53Z"`, string(b))

	var decoded models.Timestamp
	require.NoError(t, json.Unmarshal(b, &decoded))
	assert.True(t, time.Time(decoded).Equal(at.Truncate(time.Second)))

	assert.Error(t, json.Unmarshal([]byte(`"yesterday"`), &decoded))
	assert.Error(t, json.Unmarshal([]byte(`1700000000`), &decoded))
}

func TestNewTimestamp_ZeroIsNil(t *testing.T) {
	assert.Nil(t, models.NewTimestamp(time.Time{}))
	assert.NotNil(t, models.NewTimestamp(time.Now()))
}
