package models

// Health represents the health status of the service.
type Health struct {
	Status  HealthStatus           `json:"status"`
	Time    Timestamp              `json:"time"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// SystemStatus represents the overall system status.
type SystemStatus struct {
	Status    HealthStatus     `json:"status"`
	Time      Timestamp        `json:"time"`
	Refresh   RefreshStatus    `json:"refresh"`
	Cache     CacheStatus      `json:"cache"`
	Providers []ProviderStatus `json:"providers"`
}

// RefreshStatus describes the fetch coordinator.
type RefreshStatus struct {
	State          string     `json:"state"`
	LastOutcome    string     `json:"lastOutcome,omitempty"`
	LastSequence   uint64     `json:"lastSequence"`
	LastError      *string    `json:"lastError,omitempty"`
	LastAttemptAt  *Timestamp `json:"lastAttemptAt,omitempty"`
	LastSuccessAt  *Timestamp `json:"lastSuccessAt,omitempty"`
	InFlight       int        `json:"inFlight"`
	CoalescedJoins int64      `json:"coalescedJoins"`
	Source         string     `json:"source"`
}

// CacheStatus describes the snapshot cache and its subscribers.
type CacheStatus struct {
	HasSnapshot bool   `json:"hasSnapshot"`
	Sequence    uint64 `json:"sequence"`
	Subscribers int    `json:"subscribers"`
}

// ProviderStatus represents the status of an external provider.
type ProviderStatus struct {
	Provider      string       `json:"provider"`
	Status        HealthStatus `json:"status"`
	CircuitState  string       `json:"circuitState"`
	LastSuccessAt *Timestamp   `json:"lastSuccessAt,omitempty"`
	LastFailureAt *Timestamp   `json:"lastFailureAt,omitempty"`
	Message       *string      `json:"message,omitempty"`

	// CircuitChangedAt is when the circuit last changed state.
	CircuitChangedAt    *Timestamp `json:"circuitChangedAt,omitempty"`
	ConsecutiveFailures uint32     `json:"consecutiveFailures"`
}
