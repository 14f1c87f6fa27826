package guard

import (
	"errors"
	"log/slog"
	"time"

	"github.com/angeloszaimis/governor/internal/circuitbreaker"
	"github.com/angeloszaimis/governor/internal/latch"
	"github.com/angeloszaimis/governor/internal/metrics"
	"github.com/angeloszaimis/governor/internal/thermal"
)

var (
	// ErrHalted means the shutdown latch is engaged; no work runs.
	ErrHalted = errors.New("shutdown latch engaged")
	// ErrThrottled means thermal pressure is at the top tier; callers
	// should defer or refuse new work rather than pay more.
	ErrThrottled = errors.New("thermal throttle active")
)

// Guard executes protected operations under the full interlock chain:
// the shutdown latch must be disarmed, thermal admission must allow the
// call, and the named circuit breaker wraps the call itself.
type Guard struct {
	latch     *latch.Latch
	thermal   *thermal.Governor
	registry  *circuitbreaker.Registry
	collector *metrics.Collector
	logger    *slog.Logger
}

// Result describes a governed call for accounting.
type Result struct {
	Allowed      bool    `json:"allowed"`
	Cost         float64 `json:"cost"`
	Multiplier   float64 `json:"multiplier"`
	BreakerState string  `json:"breaker_state"`
	UsedFallback bool    `json:"used_fallback"`
}

type LatchStatus struct {
	Engaged bool              `json:"engaged"`
	Record  *latch.LockRecord `json:"record,omitempty"`
}

// Status aggregates the three mechanisms for the status surface.
type Status struct {
	Latch    LatchStatus             `json:"latch"`
	Thermal  thermal.Status          `json:"thermal"`
	Breakers []circuitbreaker.Status `json:"breakers"`
}

func New(
	l *latch.Latch,
	gov *thermal.Governor,
	registry *circuitbreaker.Registry,
	collector *metrics.Collector,
	logger *slog.Logger,
) *Guard {
	return &Guard{
		latch:     l,
		thermal:   gov,
		registry:  registry,
		collector: collector,
		logger:    logger,
	}
}

// Execute runs op behind the breaker named name, charging a thermally
// adjusted cost. The latch and the thermal record are consulted fresh
// on every call. Callers impose their own timeouts on op; the guard
// runs it to completion.
func (g *Guard) Execute(name string, baseCost float64, op, fallback func() error) (Result, error) {
	if g.latch.IsActive() {
		g.emit(metrics.MetricEvent{Type: metrics.EventHalted, Breaker: name})
		return Result{}, ErrHalted
	}

	ts := g.thermal.Status()
	if ts.Throttle {
		g.logger.Warn("Call refused by thermal throttle",
			slog.String("breaker", name),
			slog.Int("pressure_level", ts.Level))
		g.emit(metrics.MetricEvent{Type: metrics.EventThrottled, Breaker: name})
		return Result{Multiplier: ts.Multiplier}, ErrThrottled
	}

	cost := baseCost * ts.Multiplier
	if ts.Multiplier > 1.0 {
		g.logger.Info("Thermal surcharge applied",
			slog.String("breaker", name),
			slog.Int("pressure_level", ts.Level),
			slog.Float64("base_cost", baseCost),
			slog.Float64("adjusted_cost", cost))
	}

	cb := g.registry.GetBreaker(name)
	before := cb.State()

	var opErr error
	opRan := false
	fallbackRan := false

	wrappedOp := func() error {
		opRan = true
		opErr = op()
		return opErr
	}

	var wrappedFallback func() error
	if fallback != nil {
		wrappedFallback = func() error {
			fallbackRan = true
			return fallback()
		}
	}

	err := cb.Execute(wrappedOp, wrappedFallback)
	after := cb.State()

	if before != circuitbreaker.StateOpen && after == circuitbreaker.StateOpen {
		g.logger.Warn("Breaker tripped open", slog.String("breaker", name))
		g.emit(metrics.MetricEvent{Type: metrics.EventBreakerTripped, Breaker: name})
	}

	switch {
	case !opRan:
		g.emit(metrics.MetricEvent{Type: metrics.EventRejectedOpen, Breaker: name})
	case opErr != nil:
		g.emit(metrics.MetricEvent{Type: metrics.EventFailed, Breaker: name})
	default:
		g.emit(metrics.MetricEvent{Type: metrics.EventAllowed, Breaker: name, Cost: cost})
	}
	if fallbackRan {
		g.emit(metrics.MetricEvent{Type: metrics.EventFallback, Breaker: name})
	}

	result := Result{
		Allowed:      opRan,
		Multiplier:   ts.Multiplier,
		BreakerState: after.String(),
		UsedFallback: fallbackRan,
	}
	if opRan && opErr == nil {
		result.Cost = cost
	}
	return result, err
}

// Status is a point-in-time snapshot across latch, thermal and all
// breakers. Always queryable, engaged or not.
func (g *Guard) Status() Status {
	status := Status{
		Thermal:  g.thermal.Status(),
		Breakers: g.registry.AllStatus(),
	}

	if g.latch.IsActive() {
		status.Latch.Engaged = true
		if record, err := g.latch.Read(); err == nil {
			status.Latch.Record = &record
		}
	}
	return status
}

func (g *Guard) emit(event metrics.MetricEvent) {
	if g.collector == nil {
		return
	}
	event.Timestamp = time.Now()
	g.collector.Emit(event)
}
