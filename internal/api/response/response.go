// Package response writes JSON and problem responses for the API handlers.
package response

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/skycache/skycache/internal/api/middleware"
	"github.com/skycache/skycache/internal/api/models"
	"github.com/skycache/skycache/internal/provider/resilience"
	"github.com/skycache/skycache/internal/weather"
)

// circuitRetryAfter matches the default open-circuit timeout.
const circuitRetryAfter = 30 * time.Second

func setRequestID(w http.ResponseWriter, r *http.Request) string {
	requestID := middleware.GetRequestID(r.Context())
	if requestID != "" {
		w.Header().Set(middleware.RequestIDHeader, requestID)
	}
	return requestID
}

// JSON writes data as JSON with the given status. A nil data writes no body.
func JSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	setRequestID(w, r)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// NoContent writes a 204.
func NoContent(w http.ResponseWriter, r *http.Request) {
	setRequestID(w, r)
	w.WriteHeader(http.StatusNoContent)
}

// Error writes problem with the request path as its instance.
func Error(w http.ResponseWriter, r *http.Request, problem *models.Problem) {
	problem.Instance = r.URL.Path
	problem.Write(w)
}

// BadRequest writes a 400 problem.
func BadRequest(w http.ResponseWriter, r *http.Request, detail string, errors []models.FieldError) {
	Error(w, r, models.NewBadRequest(middleware.GetRequestID(r.Context()), detail, errors))
}

// NotFound writes a 404 problem.
func NotFound(w http.ResponseWriter, r *http.Request, detail string) {
	Error(w, r, models.NewNotFound(middleware.GetRequestID(r.Context()), detail))
}

// InternalError writes a 500 problem.
func InternalError(w http.ResponseWriter, r *http.Request, detail string) {
	Error(w, r, models.NewInternalError(middleware.GetRequestID(r.Context()), detail))
}

// ServiceUnavailable writes a 503 problem.
func ServiceUnavailable(w http.ResponseWriter, r *http.Request, detail string) {
	Error(w, r, models.NewServiceUnavailable(middleware.GetRequestID(r.Context()), detail))
}

// RouteNotFound is the router's 404 handler.
func RouteNotFound(w http.ResponseWriter, r *http.Request) {
	NotFound(w, r, "no route for "+r.URL.Path)
}

// MethodNotAllowed is the router's 405 handler.
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	Error(w, r, models.NewMethodNotAllowed(middleware.GetRequestID(r.Context()), r.Method+" is not supported on "+r.URL.Path))
}

// FromError maps a service error to its problem response. Details of
// unexpected errors are not exposed.
func FromError(w http.ResponseWriter, r *http.Request, err error) {
	requestID := middleware.GetRequestID(r.Context())

	var verr *weather.ValidationError
	switch {
	case errors.As(err, &verr):
		BadRequest(w, r, verr.Err.Error(), []models.FieldError{
			{Field: verr.Field, Message: verr.Error(), Code: validationCode(verr.Err)},
		})
	case errors.Is(err, weather.ErrUnknownSubscription):
		NotFound(w, r, err.Error())
	case errors.Is(err, weather.ErrProviderUnavailable):
		problem := models.NewProviderUnavailable(requestID, err.Error())
		if errors.Is(err, resilience.ErrCircuitOpen) {
			problem.RetryAfter = circuitRetryAfter
		}
		Error(w, r, problem)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		ServiceUnavailable(w, r, "weather refresh did not complete in time")
	default:
		InternalError(w, r, "an unexpected error occurred")
	}
}

func validationCode(err error) string {
	switch {
	case errors.Is(err, weather.ErrInvalidCoordinates):
		return "OUT_OF_RANGE"
	case errors.Is(err, weather.ErrInvalidUnit):
		return "INVALID_UNIT"
	default:
		return "INVALID"
	}
}
