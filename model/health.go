package model

import (
	"sync"
	"time"
)

// Endpoint health tracking. Consecutive failures open a per-endpoint
// circuit; once the recovery timeout passes, probe requests are let through
// again and a success closes the circuit.

// HealthConfig tunes the circuit breaker.
type HealthConfig struct {
	// FailureThreshold is how many consecutive failures open the circuit.
	FailureThreshold int

	// RecoveryTimeout is how long an open circuit blocks requests.
	RecoveryTimeout time.Duration
}

// DefaultHealthConfig returns the breaker defaults.
func DefaultHealthConfig() HealthConfig {
	return HealthConfig{
		FailureThreshold: 3,
		RecoveryTimeout:  30 * time.Second,
	}
}

// EndpointHealth is a point-in-time view of one endpoint's breaker.
type EndpointHealth struct {
	Available    bool      `json:"available"`
	FailureCount int       `json:"failure_count"`
	CircuitOpen  bool      `json:"circuit_open"`
	LastSuccess  time.Time `json:"last_success,omitempty"`
	LastFailure  time.Time `json:"last_failure,omitempty"`
	OpenedAt     time.Time `json:"circuit_opened_at,omitempty"`
}

type endpointBreaker struct {
	failures    int
	open        bool
	openedAt    time.Time
	lastSuccess time.Time
	lastFailure time.Time
}

type healthState struct {
	mu       sync.Mutex
	config   HealthConfig
	breakers map[string]*endpointBreaker
}

func newHealthState(cfg HealthConfig) *healthState {
	return &healthState{
		config:   cfg,
		breakers: make(map[string]*endpointBreaker),
	}
}

func (h *healthState) breaker(name string) *endpointBreaker {
	b, ok := h.breakers[name]
	if !ok {
		b = &endpointBreaker{}
		h.breakers[name] = b
	}
	return b
}

// ensureHealth lazily initializes the breaker state.
func (r *Registry) ensureHealth() *healthState {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.health == nil {
		r.health = newHealthState(DefaultHealthConfig())
	}
	return r.health
}

// SetHealthConfig replaces the breaker tuning.
func (r *Registry) SetHealthConfig(cfg HealthConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.health == nil {
		r.health = newHealthState(cfg)
		return
	}
	r.health.mu.Lock()
	r.health.config = cfg
	r.health.mu.Unlock()
}

// MarkEndpointSuccess resets the endpoint's failure streak and closes its
// circuit.
func (r *Registry) MarkEndpointSuccess(name string) {
	h := r.ensureHealth()
	h.mu.Lock()
	defer h.mu.Unlock()

	b := h.breaker(name)
	b.failures = 0
	b.open = false
	b.lastSuccess = time.Now()
}

// MarkEndpointFailure extends the endpoint's failure streak, opening the
// circuit at the threshold.
func (r *Registry) MarkEndpointFailure(name string) {
	h := r.ensureHealth()
	h.mu.Lock()
	defer h.mu.Unlock()

	b := h.breaker(name)
	b.failures++
	b.lastFailure = time.Now()
	if b.failures >= h.config.FailureThreshold {
		b.open = true
		b.openedAt = b.lastFailure
	}
}

// IsEndpointAvailable reports whether requests may be sent to the endpoint.
// An open circuit blocks requests until the recovery timeout elapses; after
// that, requests are allowed through as recovery probes.
func (r *Registry) IsEndpointAvailable(name string) bool {
	r.mu.RLock()
	h := r.health
	r.mu.RUnlock()
	if h == nil {
		return true
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	b, ok := h.breakers[name]
	if !ok || !b.open {
		return true
	}
	return time.Since(b.openedAt) > h.config.RecoveryTimeout
}

// GetEndpointHealth returns a snapshot of the endpoint's breaker, or nil
// when the endpoint has never been marked.
func (r *Registry) GetEndpointHealth(name string) *EndpointHealth {
	r.mu.RLock()
	h := r.health
	r.mu.RUnlock()
	if h == nil {
		return nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	b, ok := h.breakers[name]
	if !ok {
		return nil
	}
	return &EndpointHealth{
		Available:    !b.open,
		FailureCount: b.failures,
		CircuitOpen:  b.open,
		LastSuccess:  b.lastSuccess,
		LastFailure:  b.lastFailure,
		OpenedAt:     b.openedAt,
	}
}

// ResetEndpointHealth forgets everything known about the endpoint.
func (r *Registry) ResetEndpointHealth(name string) {
	r.mu.RLock()
	h := r.health
	r.mu.RUnlock()
	if h == nil {
		return
	}

	h.mu.Lock()
	delete(h.breakers, name)
	h.mu.Unlock()
}

// GetAvailableFallbackChain filters the capability's chain to endpoints the
// breaker allows. When every endpoint is blocked the unfiltered chain comes
// back, so a fully tripped registry still makes an attempt.
func (r *Registry) GetAvailableFallbackChain(cap Capability) []string {
	chain := r.GetFallbackChain(cap)

	available := chain[:0:0]
	for _, name := range chain {
		if r.IsEndpointAvailable(name) {
			available = append(available, name)
		}
	}
	if len(available) == 0 {
		return chain
	}
	return available
}
