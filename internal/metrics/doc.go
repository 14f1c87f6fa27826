// Package metrics collects governance decision counters: admitted,
// rejected, throttled and halted calls, breaker trips, and the total
// fuel cost charged. Events are delivered over a buffered channel so
// recording never blocks the hot path, and a JSON snapshot handler
// serves the numbers for observability.
package metrics
