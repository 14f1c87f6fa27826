package circuitbreaker

import (
	"sync"
)

// Registry owns all breakers for a host process. Breakers are created
// lazily on first reference and live until Reset.
type Registry struct {
	mutex    sync.RWMutex
	breakers map[string]*CircuitBreaker
	defaults Settings
	named    map[string]Settings
}

// NewRegistry creates a registry with the given default settings. The
// named map carries per-dependency overrides applied when a breaker of
// that name is first created.
func NewRegistry(defaults Settings, named map[string]Settings) *Registry {
	return &Registry{
		breakers: make(map[string]*CircuitBreaker),
		defaults: defaults,
		named:    named,
	}
}

// GetBreaker returns the breaker for name, creating it on first
// reference. Idempotent per name for the life of the registry.
func (r *Registry) GetBreaker(name string) *CircuitBreaker {
	r.mutex.RLock()
	cb, exists := r.breakers[name]
	r.mutex.RUnlock()

	if exists {
		return cb
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	// Double-check: another goroutine may have created it
	if cb, exists = r.breakers[name]; exists {
		return cb
	}

	settings := r.settingsFor(name)
	cb = NewCircuitBreaker(name, settings.FailureThreshold, settings.ResetTimeout)
	r.breakers[name] = cb
	return cb
}

func (r *Registry) settingsFor(name string) Settings {
	settings := r.defaults
	override, ok := r.named[name]
	if !ok {
		return settings
	}

	if override.FailureThreshold > 0 {
		settings.FailureThreshold = override.FailureThreshold
	}
	if override.ResetTimeout > 0 {
		settings.ResetTimeout = override.ResetTimeout
	}
	return settings
}

func (r *Registry) Reset() {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.breakers = make(map[string]*CircuitBreaker)
}

// AllStatus returns a point-in-time snapshot of every breaker.
func (r *Registry) AllStatus() []Status {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	statuses := make([]Status, 0, len(r.breakers))
	for _, cb := range r.breakers {
		statuses = append(statuses, cb.Status())
	}
	return statuses
}

// Stats returns the state of every breaker keyed by name.
func (r *Registry) Stats() map[string]State {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	stats := make(map[string]State, len(r.breakers))
	for name, cb := range r.breakers {
		stats[name] = cb.State()
	}
	return stats
}
