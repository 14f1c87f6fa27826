// Package circuitbreaker implements the circuit breaker pattern for
// unreliable external dependencies.
//
// A circuit breaker fails fast against a persistently failing dependency
// instead of repeatedly incurring its failure cost. It has three states:
//
//   - CLOSED: Normal operation, calls pass through
//   - OPEN: Dependency failing, calls rejected immediately
//   - HALF_OPEN: Testing recovery with a single probe
//
// Usage:
//
//	registry := circuitbreaker.NewRegistry(
//	    circuitbreaker.Settings{FailureThreshold: 5, ResetTimeout: 60 * time.Second},
//	    nil,
//	)
//	cb := registry.GetBreaker("llm-bridge")
//	err := cb.Execute(callBridge, nil)
//	if errors.Is(err, circuitbreaker.ErrCircuitOpen) {
//	    // Dependency is isolated; serve a degraded response.
//	}
package circuitbreaker
