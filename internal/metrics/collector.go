package metrics

import (
	"context"
	"log/slog"
	"time"
)

type EventType string

const (
	// EventAllowed counts calls admitted and executed.
	EventAllowed EventType = "allowed"
	// EventRejectedOpen counts calls refused by an open breaker.
	EventRejectedOpen EventType = "rejected_open"
	// EventThrottled counts calls refused by thermal admission control.
	EventThrottled EventType = "throttled"
	// EventHalted counts calls refused because the shutdown latch is engaged.
	EventHalted EventType = "halted"
	// EventFallback counts calls served by a fallback.
	EventFallback EventType = "fallback"
	// EventFailed counts admitted calls whose operation returned an error.
	EventFailed EventType = "failed"
	// EventBreakerTripped counts CLOSED→OPEN transitions.
	EventBreakerTripped EventType = "breaker_tripped"
)

type MetricEvent struct {
	Type      EventType
	Timestamp time.Time
	Breaker   string
	Cost      float64
}

type Collector struct {
	eventCh chan MetricEvent
	metrics *Metrics
	logger  *slog.Logger
}

func NewCollector(bufferSize int, logger *slog.Logger) *Collector {
	return &Collector{
		eventCh: make(chan MetricEvent, bufferSize),
		metrics: NewMetrics(),
		logger:  logger,
	}
}

func (c *Collector) EventChannel() chan<- MetricEvent {
	return c.eventCh
}

// Emit queues an event without blocking; a full buffer drops the event.
func (c *Collector) Emit(event MetricEvent) {
	select {
	case c.eventCh <- event:
	default:
		c.logger.Warn("Metrics buffer full, dropping event",
			slog.String("type", string(event.Type)))
	}
}

func (c *Collector) Start(ctx context.Context) {
	go c.run(ctx)
}

func (c *Collector) run(ctx context.Context) {
	c.logger.Info("Metrics collector started")
	defer c.logger.Info("Metrics collector stopped")

	for {
		select {
		case event := <-c.eventCh:
			c.processEvent(event)
		case <-ctx.Done():
			// Drain remaining events before shutdown
			c.drain()
			return
		}
	}
}

func (c *Collector) processEvent(event MetricEvent) {
	if event.Type == EventBreakerTripped {
		c.metrics.RecordTrip(event.Breaker)
		return
	}
	c.metrics.RecordDecision(event.Breaker, event.Type, event.Cost)
}

func (c *Collector) drain() {
	for {
		select {
		case event := <-c.eventCh:
			c.processEvent(event)
		default:
			return
		}
	}
}

func (c *Collector) Snapshot() Snapshot {
	return c.metrics.Snapshot()
}
