package models

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"
)

// Problem is an RFC 7807 error body, served as application/problem+json.
type Problem struct {
	Type     string       `json:"type"`
	Title    string       `json:"title"`
	Status   int          `json:"status"`
	Detail   string       `json:"detail,omitempty"`
	Instance string       `json:"instance,omitempty"`
	TraceID  string       `json:"traceId"` // request ID, echoed as X-Request-Id
	Errors   []FieldError `json:"errors,omitempty"`

	// RetryAfter, when positive, is sent as the Retry-After header in
	// whole seconds, rounded up.
	RetryAfter time.Duration `json:"-"`
}

// FieldError represents a validation error on a specific field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Problem type URIs.
const (
	ProblemTypeValidation          = "https://skycache.dev/problems/validation-error"
	ProblemTypeNotFound            = "https://skycache.dev/problems/not-found"
	ProblemTypeMethodNotAllowed    = "https://skycache.dev/problems/method-not-allowed"
	ProblemTypeUnsupportedMedia    = "https://skycache.dev/problems/unsupported-media-type"
	ProblemTypeTooManyRequests     = "https://skycache.dev/problems/too-many-requests"
	ProblemTypeTLSRequired         = "https://skycache.dev/problems/tls-required"
	ProblemTypeInternal            = "https://skycache.dev/problems/internal-error"
	ProblemTypeUnavailable         = "https://skycache.dev/problems/service-unavailable"
	ProblemTypeProviderUnavailable = "https://skycache.dev/problems/provider-unavailable"
)

func newDetailed(problemType, title string, status int, requestID, detail string) *Problem {
	return &Problem{
		Type:    problemType,
		Title:   title,
		Status:  status,
		Detail:  detail,
		TraceID: requestID,
	}
}

// Write sends the Problem with its status code.
func (p *Problem) Write(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Content-Type", "application/problem+json")
	if p.TraceID != "" {
		h.Set("X-Request-Id", p.TraceID)
	}
	if p.RetryAfter > 0 {
		h.Set("Retry-After", strconv.Itoa(int((p.RetryAfter+time.Second-1)/time.Second)))
	}
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}

// NewBadRequest creates a 400 problem carrying field errors.
func NewBadRequest(requestID, detail string, errors []FieldError) *Problem {
	p := newDetailed(ProblemTypeValidation, "Validation error", http.StatusBadRequest, requestID, detail)
	p.Errors = errors
	return p
}

// NewNotFound creates a 404 problem.
func NewNotFound(requestID, detail string) *Problem {
	return newDetailed(ProblemTypeNotFound, "Not found", http.StatusNotFound, requestID, detail)
}

// NewMethodNotAllowed creates a 405 problem.
func NewMethodNotAllowed(requestID, detail string) *Problem {
	return newDetailed(ProblemTypeMethodNotAllowed, "Method not allowed", http.StatusMethodNotAllowed, requestID, detail)
}

// NewUnsupportedMediaType creates a 415 problem.
func NewUnsupportedMediaType(requestID, detail string) *Problem {
	return newDetailed(ProblemTypeUnsupportedMedia, "Unsupported media type", http.StatusUnsupportedMediaType, requestID, detail)
}

// NewTooManyRequests creates a 429 problem.
func NewTooManyRequests(requestID, detail string) *Problem {
	return newDetailed(ProblemTypeTooManyRequests, "Too many requests", http.StatusTooManyRequests, requestID, detail)
}

// NewTLSRequired creates a 403 problem for plain-HTTP requests.
func NewTLSRequired(requestID string) *Problem {
	return newDetailed(ProblemTypeTLSRequired, "TLS required", http.StatusForbidden, requestID, "This endpoint requires HTTPS")
}

// NewInternalError creates a 500 problem.
func NewInternalError(requestID, detail string) *Problem {
	return newDetailed(ProblemTypeInternal, "Internal server error", http.StatusInternalServerError, requestID, detail)
}

// NewProviderUnavailable creates a 503 problem for a failed upstream weather
// fetch. The previously cached snapshot, if any, is still being served.
func NewProviderUnavailable(requestID, detail string) *Problem {
	return newDetailed(ProblemTypeProviderUnavailable, "Weather provider unavailable", http.StatusServiceUnavailable, requestID, detail)
}

// NewServiceUnavailable creates a 503 problem.
func NewServiceUnavailable(requestID, detail string) *Problem {
	return newDetailed(ProblemTypeUnavailable, "Service unavailable", http.StatusServiceUnavailable, requestID, detail)
}
