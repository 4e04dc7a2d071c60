package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/skycache/skycache/internal/api/middleware"
	"github.com/skycache/skycache/internal/api/models"
	"github.com/skycache/skycache/internal/api/response"
	"github.com/skycache/skycache/internal/weather"
)

var validate = validator.New()

// streamHeartbeatInterval is how often an idle stream gets a comment line.
const streamHeartbeatInterval = 25 * time.Second

// WeatherHandler handles weather endpoints.
type WeatherHandler struct {
	service     *weather.Service
	defaultUnit weather.Unit
	logger      zerolog.Logger
}

// NewWeatherHandler creates a new WeatherHandler. An invalid defaultUnit
// falls back to Fahrenheit.
func NewWeatherHandler(service *weather.Service, defaultUnit weather.Unit, logger zerolog.Logger) *WeatherHandler {
	if !defaultUnit.Valid() {
		defaultUnit = weather.UnitFahrenheit
	}
	return &WeatherHandler{
		service:     service,
		defaultUnit: defaultUnit,
		logger:      logger,
	}
}

// GetWeather handles GET /v1/weather - current view from the cache.
func (h *WeatherHandler) GetWeather(w http.ResponseWriter, r *http.Request) {
	unit, ok := h.queryUnit(w, r)
	if !ok {
		return
	}

	response.JSON(w, r, http.StatusOK, toWeatherView(h.service.View(unit)))
}

// RefreshWeather handles POST /v1/weather:refresh - fetch a new snapshot.
func (h *WeatherHandler) RefreshWeather(w http.ResponseWriter, r *http.Request) {
	// An empty body refreshes the default coordinate.
	var req models.RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	if fieldErrors := validateRefreshRequest(&req); len(fieldErrors) > 0 {
		response.BadRequest(w, r, "validation failed", fieldErrors)
		return
	}

	unit := h.defaultUnit
	if req.Unit != "" {
		parsed, err := weather.ParseUnit(req.Unit)
		if err != nil {
			response.FromError(w, r, err)
			return
		}
		unit = parsed
	}

	coord := h.service.DefaultCoordinate()
	if req.Lat != nil {
		coord = weather.Coordinate{Lat: *req.Lat, Lon: *req.Lon}
	}

	snap, err := h.service.Refresh(r.Context(), coord)
	if err != nil {
		h.logger.Warn().
			Err(err).
			Str("request_id", middleware.GetRequestID(r.Context())).
			Str("coordinate", coord.Key()).
			Msg("weather refresh failed")
		response.FromError(w, r, err)
		return
	}

	response.JSON(w, r, http.StatusOK, toWeatherView(weather.Project(snap, unit)))
}

// StreamWeather handles GET /v1/weather/stream - Server-Sent Events
// subscription. The first event carries the subscription id and the current
// view; every accepted snapshot follows as a "weather" event.
func (h *WeatherHandler) StreamWeather(w http.ResponseWriter, r *http.Request) {
	unit, ok := h.queryUnit(w, r)
	if !ok {
		return
	}

	sub, initial := h.service.Subscribe(unit)
	defer func() {
		if err := sub.Close(); err != nil && !errors.Is(err, weather.ErrUnknownSubscription) {
			h.logger.Warn().Err(err).Str("subscription_id", sub.ID()).Msg("unsubscribe failed")
		}
	}()

	rc := http.NewResponseController(w)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	if requestID := middleware.GetRequestID(r.Context()); requestID != "" {
		w.Header().Set(middleware.RequestIDHeader, requestID)
	}
	w.WriteHeader(http.StatusOK)

	subscribed := models.Subscription{
		ID:      sub.ID(),
		Unit:    string(sub.Unit()),
		Current: toWeatherView(initial),
	}
	if err := writeEvent(w, rc, "subscribed", subscribed); err != nil {
		return
	}

	h.logger.Debug().
		Str("subscription_id", sub.ID()).
		Str("unit", string(unit)).
		Msg("weather stream opened")

	ticker := time.NewTicker(streamHeartbeatInterval)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			h.logger.Debug().Str("subscription_id", sub.ID()).Msg("weather stream closed by client")
			return
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		case view, ok := <-sub.Updates():
			if !ok {
				// Unsubscribed elsewhere or the service is shutting down.
				return
			}
			if err := writeEvent(w, rc, "weather", toWeatherView(view)); err != nil {
				return
			}
		}
	}
}

// GetSubscription handles GET /v1/weather/subscriptions/{subscriptionId}.
func (h *WeatherHandler) GetSubscription(w http.ResponseWriter, r *http.Request) {
	sub, err := h.service.Subscription(chi.URLParam(r, "subscriptionId"))
	if err != nil {
		response.FromError(w, r, err)
		return
	}

	response.JSON(w, r, http.StatusOK, toSubscription(sub))
}

// SetSubscriptionUnit handles PUT /v1/weather/subscriptions/{subscriptionId}/unit.
func (h *WeatherHandler) SetSubscriptionUnit(w http.ResponseWriter, r *http.Request) {
	var req models.UnitPreference
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	if err := validate.Struct(req); err != nil {
		response.BadRequest(w, r, "validation failed", fieldErrors(err))
		return
	}

	unit, err := weather.ParseUnit(req.Unit)
	if err != nil {
		response.FromError(w, r, err)
		return
	}

	id := chi.URLParam(r, "subscriptionId")
	if err := h.service.SetUnitPreference(id, unit); err != nil {
		response.FromError(w, r, err)
		return
	}

	sub, err := h.service.Subscription(id)
	if err != nil {
		response.FromError(w, r, err)
		return
	}

	response.JSON(w, r, http.StatusOK, toSubscription(sub))
}

// DeleteSubscription handles DELETE /v1/weather/subscriptions/{subscriptionId}.
func (h *WeatherHandler) DeleteSubscription(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Unsubscribe(chi.URLParam(r, "subscriptionId")); err != nil {
		response.FromError(w, r, err)
		return
	}

	response.NoContent(w, r)
}

// queryUnit reads the optional unit query parameter. It writes a 400 and
// returns false when the value is not a known unit.
func (h *WeatherHandler) queryUnit(w http.ResponseWriter, r *http.Request) (weather.Unit, bool) {
	raw := r.URL.Query().Get("unit")
	if raw == "" {
		return h.defaultUnit, true
	}

	unit, err := weather.ParseUnit(raw)
	if err != nil {
		response.FromError(w, r, err)
		return "", false
	}
	return unit, true
}

func validateRefreshRequest(req *models.RefreshRequest) []models.FieldError {
	var errs []models.FieldError

	if err := validate.Struct(req); err != nil {
		errs = append(errs, fieldErrors(err)...)
	}

	if (req.Lat == nil) != (req.Lon == nil) {
		errs = append(errs, models.FieldError{
			Field:   "lat",
			Code:    "REQUIRED_TOGETHER",
			Message: "lat and lon must be provided together",
		})
	}

	return errs
}

// fieldErrors converts validator errors into API field errors.
func fieldErrors(err error) []models.FieldError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []models.FieldError{{Field: "body", Code: "INVALID", Message: err.Error()}}
	}

	out := make([]models.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, models.FieldError{
			Field:   jsonFieldName(fe.Field()),
			Code:    validationCode(fe.Tag()),
			Message: fmt.Sprintf("failed %q validation", fe.Tag()),
		})
	}
	return out
}

func validationCode(tag string) string {
	switch tag {
	case "required":
		return "REQUIRED"
	case "gte", "lte":
		return "OUT_OF_RANGE"
	case "max":
		return "TOO_LONG"
	default:
		return "INVALID"
	}
}

func jsonFieldName(field string) string {
	switch field {
	case "Lat":
		return "lat"
	case "Lon":
		return "lon"
	case "Unit":
		return "unit"
	default:
		return field
	}
}

func writeEvent(w http.ResponseWriter, rc *http.ResponseController, event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload); err != nil {
		return err
	}
	return rc.Flush()
}

func toSubscription(sub *weather.Subscription) models.Subscription {
	return models.Subscription{
		ID:      sub.ID(),
		Unit:    string(sub.Unit()),
		Current: toWeatherView(sub.Current()),
	}
}

func toWeatherView(v weather.ProjectedView) models.WeatherView {
	view := models.WeatherView{
		Available:        v.Available,
		Unit:             string(v.Unit),
		TemperatureLabel: v.TemperatureLabel(),
		ForecastLabel:    v.ForecastLabel(),
	}
	if !v.Available {
		return view
	}

	humidity := v.Humidity
	view.Temperature = &models.Temperature{Value: v.Temperature, Unit: string(v.Unit)}
	view.Humidity = &humidity
	view.ObservedAt = models.NewTimestamp(v.ObservedAt)
	view.Place = v.Place
	view.Sequence = v.Sequence

	if v.Forecast != nil {
		view.Forecast = &models.Forecast{
			Description: v.Forecast.Description,
			Icon:        v.Forecast.Icon,
			IconURL:     v.Forecast.IconURL,
			ForecastAt:  models.NewTimestamp(v.Forecast.ForecastAt),
		}
	}
	return view
}
