package metrics

import (
	"sync"
	"time"
)

type Metrics struct {
	mutex       sync.RWMutex
	decisions   map[EventType]int64
	perBreaker  map[string]map[EventType]int64
	trips       map[string]int64
	costCharged float64
	startTime   time.Time
}

type Snapshot struct {
	Uptime      time.Duration              `json:"uptime"`
	Decisions   map[EventType]int64        `json:"decisions"`
	Breakers    map[string]BreakerMetrics  `json:"breakers"`
	CostCharged float64                    `json:"cost_charged"`
}

type BreakerMetrics struct {
	Decisions map[EventType]int64 `json:"decisions"`
	Trips     int64               `json:"trips"`
}

func NewMetrics() *Metrics {
	return &Metrics{
		decisions:  make(map[EventType]int64),
		perBreaker: make(map[string]map[EventType]int64),
		trips:      make(map[string]int64),
		startTime:  time.Now(),
	}
}

func (m *Metrics) RecordDecision(breaker string, event EventType, cost float64) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.decisions[event]++
	m.costCharged += cost

	if breaker == "" {
		return
	}
	if m.perBreaker[breaker] == nil {
		m.perBreaker[breaker] = make(map[EventType]int64)
	}
	m.perBreaker[breaker][event]++
}

func (m *Metrics) RecordTrip(breaker string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.trips[breaker]++
}

func (m *Metrics) Snapshot() Snapshot {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	decisions := make(map[EventType]int64, len(m.decisions))
	for event, count := range m.decisions {
		decisions[event] = count
	}

	breakers := make(map[string]BreakerMetrics, len(m.perBreaker))
	for name, counts := range m.perBreaker {
		perEvent := make(map[EventType]int64, len(counts))
		for event, count := range counts {
			perEvent[event] = count
		}
		breakers[name] = BreakerMetrics{
			Decisions: perEvent,
			Trips:     m.trips[name],
		}
	}
	for name, trips := range m.trips {
		if _, ok := breakers[name]; !ok {
			breakers[name] = BreakerMetrics{Trips: trips}
		}
	}

	return Snapshot{
		Uptime:      time.Since(m.startTime),
		Decisions:   decisions,
		Breakers:    breakers,
		CostCharged: m.costCharged,
	}
}
