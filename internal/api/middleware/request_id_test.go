package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/skycache/skycache/internal/api/middleware"
)

func serveRequestID(t *testing.T, header string) (contextID, responseID string) {
	t.Helper()

	handler := middleware.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contextID = middleware.GetRequestID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/weather", http.NoBody)
	if header != "" {
		req.Header.Set(middleware.RequestIDHeader, header)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	return contextID, rec.Header().Get(middleware.RequestIDHeader)
}

func TestRequestID_GeneratesNewID(t *testing.T) {
	contextID, responseID := serveRequestID(t, "")

	assert.True(t, strings.HasPrefix(contextID, "req_"))
	assert.Len(t, contextID, 36)
	assert.Equal(t, contextID, responseID)
}

func TestRequestID_ClientSuppliedIDs(t *testing.T) {
	tests := []struct {
		name   string
		header string
		kept   bool
	}{
		{"simple id", "existing_request_id", true},
		{"uuid", "4f9c1b6e-2f1d-4d8a-9b7e-0c2a5d3e1f60", true},
		{"dotted", "edge.7f3a.01", true},
		{"contains space", "bad id", false},
		{"header injection", "id\r\nX-Evil: 1", false},
		{"too long", strings.Repeat("a", 65), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			contextID, responseID := serveRequestID(t, tt.header)

			if tt.kept {
				assert.Equal(t, tt.header, contextID)
			} else {
				assert.NotEqual(t, tt.header, contextID)
				assert.True(t, strings.HasPrefix(contextID, "req_"))
			}
			assert.Equal(t, contextID, responseID)
		})
	}
}

func TestGetRequestID_ReturnsEmptyStringForMissingContext(t *testing.T) {
	assert.Empty(t, middleware.GetRequestID(context.Background()))
}

func TestWithRequestID(t *testing.T) {
	ctx := middleware.WithRequestID(context.Background(), "req_test")
	assert.Equal(t, "req_test", middleware.GetRequestID(ctx))
}

func TestNewRequestID_Unique(t *testing.T) {
	ids := make(map[string]bool)

	for i := 0; i < 100; i++ {
		id := middleware.NewRequestID()
		assert.False(t, ids[id], "duplicate request ID generated: %s", id)
		ids[id] = true
	}
}
