// Package handler provides HTTP handlers for the skycache API.
package handler

import (
	"net/http"

	"github.com/skycache/skycache/internal/api/models"
	"github.com/skycache/skycache/internal/api/response"
	"github.com/skycache/skycache/internal/provider/resilience"
	"github.com/skycache/skycache/internal/weather"
)

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version   string
	buildTime string
	service   *weather.Service
	registry  *resilience.Registry
}

// NewOpsHandler creates a new OpsHandler. registry may be nil.
func NewOpsHandler(version, buildTime string, service *weather.Service, registry *resilience.Registry) *OpsHandler {
	return &OpsHandler{
		version:   version,
		buildTime: buildTime,
		service:   service,
		registry:  registry,
	}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Now(),
		Details: map[string]interface{}{
			"version":   h.version,
			"buildTime": h.buildTime,
		},
	}
	response.JSON(w, r, http.StatusOK, health)
}

// ReadinessCheck handles GET /v1/ops/ready - ready once a snapshot is cached.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	status := h.service.Status()

	if !status.HasSnapshot {
		response.JSON(w, r, http.StatusServiceUnavailable, models.Health{
			Status: models.HealthStatusDegraded,
			Time:   models.Now(),
			Details: map[string]interface{}{
				"reason": "no weather snapshot cached yet",
				"state":  string(status.State),
			},
		})
		return
	}

	response.JSON(w, r, http.StatusOK, models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Now(),
		Details: map[string]interface{}{
			"sequence": status.CachedSequence,
		},
	})
}

// SystemStatus handles GET /v1/ops/status - refresh, cache and provider status.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	st := h.service.Status()

	refresh := models.RefreshStatus{
		State:          string(st.State),
		LastOutcome:    string(st.LastOutcome),
		LastSequence:   st.LastSequence,
		InFlight:       st.InFlight,
		CoalescedJoins: st.CoalescedJoins,
		Source:         st.Source,
	}
	if st.LastError != "" {
		lastError := st.LastError
		refresh.LastError = &lastError
	}
	if st.LastAttemptAt != nil {
		refresh.LastAttemptAt = models.NewTimestamp(*st.LastAttemptAt)
	}
	if st.LastSuccessAt != nil {
		refresh.LastSuccessAt = models.NewTimestamp(*st.LastSuccessAt)
	}

	var summary resilience.Summary
	if h.registry != nil {
		summary = h.registry.Summarize()
	}

	status := models.SystemStatus{
		Status:  overallStatus(st, summary),
		Time:    models.Now(),
		Refresh: refresh,
		Cache: models.CacheStatus{
			HasSnapshot: st.HasSnapshot,
			Sequence:    st.CachedSequence,
			Subscribers: st.Subscribers,
		},
		Providers: h.providerStatuses(),
	}
	response.JSON(w, r, http.StatusOK, status)
}

func (h *OpsHandler) providerStatuses() []models.ProviderStatus {
	providers := []models.ProviderStatus{}
	if h.registry == nil {
		return providers
	}

	for _, ph := range h.registry.GetAllHealth() {
		ps := models.ProviderStatus{
			Provider:            ph.Name,
			Status:              providerHealthStatus(ph),
			CircuitState:        ph.CircuitState.String(),
			ConsecutiveFailures: ph.Counts.ConsecutiveFailures,
		}
		if ph.StateChangedAt != nil {
			ps.CircuitChangedAt = models.NewTimestamp(*ph.StateChangedAt)
		}
		if ph.LastSuccessAt != nil {
			ps.LastSuccessAt = models.NewTimestamp(*ph.LastSuccessAt)
		}
		if ph.LastFailureAt != nil {
			ps.LastFailureAt = models.NewTimestamp(*ph.LastFailureAt)
		}
		if ph.LastError != "" {
			msg := ph.LastError
			ps.Message = &msg
		}
		providers = append(providers, ps)
	}
	return providers
}

func providerHealthStatus(ph *resilience.ProviderHealth) models.HealthStatus {
	switch {
	case ph.IsHealthy():
		return models.HealthStatusOK
	case ph.IsDegraded():
		return models.HealthStatusDegraded
	default:
		return models.HealthStatusFail
	}
}

// overallStatus is FAIL when nothing is cached and the last refresh failed.
// Stale data or a circuit that is not closed is DEGRADED.
func overallStatus(st weather.ServiceStatus, summary resilience.Summary) models.HealthStatus {
	if !st.HasSnapshot {
		if st.LastOutcome == weather.StateFailedStale {
			return models.HealthStatusFail
		}
		return models.HealthStatusDegraded
	}

	if st.LastOutcome == weather.StateFailedStale || !summary.AllHealthy() {
		return models.HealthStatusDegraded
	}
	return models.HealthStatusOK
}
