package thermal

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"
)

// State is the shared sensor record produced by the external thermal
// feed. Only thermal.level or a temperature field matters for
// governance; everything else passes through for observability.
type State struct {
	Timestamp string         `json:"timestamp,omitempty"`
	Thermal   *Reading       `json:"thermal,omitempty"`
	CPU       map[string]any `json:"cpu,omitempty"`
	Memory    map[string]any `json:"memory,omitempty"`
	TempC     *float64       `json:"temp_c,omitempty"`
	HostTempC *float64       `json:"host_temp_c,omitempty"`
}

type Reading struct {
	Level  int    `json:"level"`
	State  string `json:"state"`
	Action string `json:"action"`
}

// TempThreshold maps a temperature floor to a pressure level.
type TempThreshold struct {
	TempC float64
	Level int
}

// Options configure a Governor. Zero-value fields take the package
// defaults.
type Options struct {
	StateFile string
	// MaxAge treats older sensor records as absent; 0 disables the check.
	MaxAge time.Duration
	// Tiers maps pressure level (index) to cost multiplier. Must be
	// monotonically non-decreasing; the last index is the throttle tier.
	Tiers []float64
	// TempThresholds derive a level from a raw temperature when the
	// record carries no explicit level. Ordered ascending by TempC.
	TempThresholds []TempThreshold
	// HostProbe falls back to local sensors via gopsutil when the
	// state file is unreadable.
	HostProbe bool
}

// DefaultTiers price pressure levels 0..3.
func DefaultTiers() []float64 {
	return []float64{1.0, 1.5, 2.0, 5.0}
}

func DefaultTempThresholds() []TempThreshold {
	return []TempThreshold{{70, 1}, {80, 2}, {90, 3}}
}

var tierNames = []string{"NORMAL", "WARM", "HOT", "CRITICAL"}

// Governor translates thermal pressure into a cost multiplier and a
// hard admission decision. It holds no cached sensor data: every
// decision re-reads the shared record.
type Governor struct {
	opts   Options
	logger *slog.Logger
}

type Status struct {
	Level        int      `json:"pressure_level"`
	Tier         string   `json:"tier"`
	Multiplier   float64  `json:"multiplier"`
	TemperatureC *float64 `json:"temperature_c,omitempty"`
	Throttle     bool     `json:"throttle"`
	Raw          State    `json:"raw"`
}

func NewGovernor(opts Options, logger *slog.Logger) *Governor {
	if len(opts.Tiers) == 0 {
		opts.Tiers = DefaultTiers()
	}
	if len(opts.TempThresholds) == 0 {
		opts.TempThresholds = DefaultTempThresholds()
	}

	return &Governor{opts: opts, logger: logger}
}

// MaxLevel is the top pressure tier, at which admission is cut off.
func (g *Governor) MaxLevel() int {
	return len(g.opts.Tiers) - 1
}

// ReadState reads the shared sensor record. Any read or parse failure
// yields the fail-safe cool state rather than an error; a stale record
// is treated as absent.
func (g *Governor) ReadState() State {
	data, err := os.ReadFile(g.opts.StateFile)
	if err != nil {
		return g.fallbackState()
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		g.logger.Warn("Corrupt thermal record, assuming cool",
			slog.String("file", g.opts.StateFile),
			slog.Any("err", err))
		return State{}
	}

	if g.opts.MaxAge > 0 && state.Timestamp != "" {
		observed, err := time.Parse(time.RFC3339, state.Timestamp)
		if err == nil && time.Since(observed) > g.opts.MaxAge {
			g.logger.Warn("Stale thermal record, assuming cool",
				slog.String("observed", state.Timestamp))
			return State{}
		}
	}

	return state
}

func (g *Governor) fallbackState() State {
	if g.opts.HostProbe {
		return probeHost()
	}
	return State{}
}

// PressureLevel classifies the current record into a tier 0..MaxLevel.
// An explicit thermal.level wins; otherwise the highest temperature
// threshold met applies.
func (g *Governor) PressureLevel() int {
	return g.levelFor(g.ReadState())
}

func (g *Governor) levelFor(state State) int {
	if state.Thermal != nil {
		return clamp(state.Thermal.Level, 0, g.MaxLevel())
	}

	temp := state.TempC
	if temp == nil {
		temp = state.HostTempC
	}
	if temp == nil {
		return 0
	}

	level := 0
	for _, threshold := range g.opts.TempThresholds {
		if *temp >= threshold.TempC {
			level = threshold.Level
		}
	}
	return clamp(level, 0, g.MaxLevel())
}

// CostMultiplier returns the surcharge for the current pressure level.
func (g *Governor) CostMultiplier() float64 {
	return g.multiplierFor(g.PressureLevel())
}

func (g *Governor) multiplierFor(level int) float64 {
	if level < 0 || level >= len(g.opts.Tiers) {
		return 1.0
	}
	return g.opts.Tiers[level]
}

// AdjustedCost scales a base fuel cost by the current multiplier.
func (g *Governor) AdjustedCost(baseCost float64) float64 {
	return baseCost * g.CostMultiplier()
}

// ShouldThrottle reports whether new work should be refused outright.
// True only at the top pressure tier.
func (g *Governor) ShouldThrottle() bool {
	return g.PressureLevel() >= g.MaxLevel()
}

// Status is a single-read snapshot for observability. Unlike the
// decision methods it reads the sensor record once.
func (g *Governor) Status() Status {
	state := g.ReadState()
	level := g.levelFor(state)

	temp := state.TempC
	if temp == nil {
		temp = state.HostTempC
	}

	return Status{
		Level:        level,
		Tier:         tierName(level),
		Multiplier:   g.multiplierFor(level),
		TemperatureC: temp,
		Throttle:     level >= g.MaxLevel(),
		Raw:          state,
	}
}

func tierName(level int) string {
	if level >= 0 && level < len(tierNames) {
		return tierNames[level]
	}
	return fmt.Sprintf("TIER_%d", level)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
