package watchdog

import (
	"context"
	"log/slog"
	"time"

	"github.com/angeloszaimis/governor/internal/latch"
	"github.com/angeloszaimis/governor/internal/thermal"
)

// Monitor periodically samples the thermal governor and engages the
// shutdown latch after sustained critical pressure. A single cool
// sample resets the streak.
func Monitor(
	ctx context.Context,
	l *latch.Latch,
	gov *thermal.Governor,
	interval time.Duration,
	criticalSamples int,
	logger *slog.Logger,
) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	streak := 0

	for {
		select {
		case <-ctx.Done():
			logger.Info("Thermal watchdog stopped")
			return

		case <-ticker.C:
			if !gov.ShouldThrottle() {
				if streak > 0 {
					logger.Info("Thermal pressure receded",
						slog.Int("critical_samples", streak))
				}
				streak = 0
				continue
			}

			streak++
			logger.Warn("Critical thermal pressure",
				slog.Int("critical_samples", streak),
				slog.Int("samples_until_shutdown", criticalSamples-streak))

			if streak < criticalSamples {
				continue
			}

			if err := l.Activate("sustained critical thermal pressure", "thermal_watchdog"); err != nil {
				logger.Error("Failed to engage latch", slog.Any("err", err))
				continue
			}
			return
		}
	}
}
