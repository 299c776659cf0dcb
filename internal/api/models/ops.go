package models

// Health is the liveness and readiness body.
type Health struct {
	Status  HealthStatus   `json:"status"`
	Time    Timestamp      `json:"time"`
	Details map[string]any `json:"details,omitempty"`
}

// SystemStatus is the detailed status of every upstream and model.
type SystemStatus struct {
	Status    HealthStatus     `json:"status"`
	Time      Timestamp        `json:"time"`
	Providers []ProviderStatus `json:"providers"`
	Models    []ModelStatus    `json:"models"`
	Cache     *CacheStatus     `json:"cache,omitempty"`
}

// ProviderStatus is the circuit state of an upstream.
type ProviderStatus struct {
	Provider      string       `json:"provider"`
	Status        HealthStatus `json:"status"`
	CircuitState  string       `json:"circuitState"`
	LastSuccessAt *Timestamp   `json:"lastSuccessAt,omitempty"`
	LastFailureAt *Timestamp   `json:"lastFailureAt,omitempty"`
	Message       *string      `json:"message,omitempty"`
}

// ModelStatus is the startup load result of a model.
type ModelStatus struct {
	Name      string       `json:"name"`
	Status    HealthStatus `json:"status"`
	CheckedAt Timestamp    `json:"checkedAt"`
	Message   *string      `json:"message,omitempty"`
}

// CacheStatus describes the weather cache.
type CacheStatus struct {
	Provider     string `json:"provider"`
	Entries      int    `json:"entries"`
	FreshEntries int    `json:"freshEntries"`
	Hits         uint64 `json:"hits"`
	Misses       uint64 `json:"misses"`
	StaleServed  uint64 `json:"staleServed"`
}
