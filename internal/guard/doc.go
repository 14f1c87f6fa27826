// Package guard wires the three interlocks together: it refuses work
// while the shutdown latch is engaged, applies thermal admission
// control and cost surcharges, and routes the call through the named
// circuit breaker. Collaborator modules execute all protected
// operations through a Guard rather than touching the mechanisms
// directly.
package guard
