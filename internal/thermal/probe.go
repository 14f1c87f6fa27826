package thermal

import (
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

// probeHost samples local sensors when the shared record is missing.
// Best effort only: any probe failure degrades to the cool state.
func probeHost() State {
	state := State{Timestamp: time.Now().Format(time.RFC3339)}

	if temps, err := host.SensorsTemperatures(); err == nil {
		var hottest float64
		for _, t := range temps {
			if t.Temperature > hottest {
				hottest = t.Temperature
			}
		}
		if hottest > 0 {
			state.HostTempC = &hottest
		}
	}

	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		state.CPU = map[string]any{"percent": percents[0]}
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		state.Memory = map[string]any{
			"percent":     vm.UsedPercent,
			"total_bytes": vm.Total,
		}
	}

	return state
}
