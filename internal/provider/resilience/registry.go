package resilience

import (
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sony/gobreaker/v2"
)

// ProviderHealth is a point-in-time view of one upstream: the weather
// provider, a model server or the enrichment API.
type ProviderHealth struct {
	Name         string
	CircuitState gobreaker.State
	Counts       gobreaker.Counts

	LastSuccessAt *time.Time
	LastFailureAt *time.Time
	LastError     string

	// ConsecutiveFailures counts failed calls since the last success as seen
	// by callers, after retries.
	ConsecutiveFailures int
}

// IsHealthy reports a closed circuit.
func (h *ProviderHealth) IsHealthy() bool { return h.CircuitState == gobreaker.StateClosed }

// IsDegraded reports a half-open circuit that is probing the upstream.
func (h *ProviderHealth) IsDegraded() bool { return h.CircuitState == gobreaker.StateHalfOpen }

// IsUnhealthy reports an open circuit.
func (h *ProviderHealth) IsUnhealthy() bool { return h.CircuitState == gobreaker.StateOpen }

// Registry collects the resilient clients of a process so the ops endpoints
// can report on them.
type Registry struct {
	clock clockwork.Clock

	mu      sync.RWMutex
	entries map[string]*entry
}

type entry struct {
	client    *Client
	success   time.Time
	failure   time.Time
	lastError string
	streak    int
}

func NewRegistry() *Registry {
	return NewRegistryWithClock(clockwork.NewRealClock())
}

// NewRegistryWithClock timestamps outcomes with clock.
func NewRegistryWithClock(clock clockwork.Clock) *Registry {
	return &Registry{clock: clock, entries: map[string]*entry{}}
}

// Register adds client under name, replacing any previous client.
func (r *Registry) Register(name string, client *Client) {
	r.mu.Lock()
	r.entries[name] = &entry{client: client}
	r.mu.Unlock()
}

func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	delete(r.entries, name)
	r.mu.Unlock()
}

// RecordSuccess marks a successful call. Unknown names are ignored.
func (r *Registry) RecordSuccess(name string) {
	r.update(name, func(e *entry, now time.Time) {
		e.success = now
		e.streak = 0
	})
}

// RecordFailure marks a failed call. Unknown names are ignored.
func (r *Registry) RecordFailure(name string, err error) {
	r.update(name, func(e *entry, now time.Time) {
		e.failure = now
		e.streak++
		if err != nil {
			e.lastError = err.Error()
		}
	})
}

func (r *Registry) update(name string, fn func(*entry, time.Time)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[name]; ok {
		fn(e, r.clock.Now())
	}
}

// GetHealth returns nil for unknown names.
func (r *Registry) GetHealth(name string) *ProviderHealth {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	if !ok {
		return nil
	}
	return e.snapshot(name)
}

// GetAllHealth returns every upstream ordered by name.
func (r *Registry) GetAllHealth() []*ProviderHealth {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*ProviderHealth, 0, len(r.entries))
	for name, e := range r.entries {
		out = append(out, e.snapshot(name))
	}
	slices.SortFunc(out, func(a, b *ProviderHealth) int { return strings.Compare(a.Name, b.Name) })
	return out
}

// GetProviderNames returns the registered names in order.
func (r *Registry) GetProviderNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.entries))
}

func (r *Registry) ProviderCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

func (e *entry) snapshot(name string) *ProviderHealth {
	return &ProviderHealth{
		Name:                name,
		CircuitState:        e.client.CircuitBreakerState(),
		Counts:              e.client.CircuitBreakerCounts(),
		LastSuccessAt:       timePtr(e.success),
		LastFailureAt:       timePtr(e.failure),
		LastError:           e.lastError,
		ConsecutiveFailures: e.streak,
	}
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
