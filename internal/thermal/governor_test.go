package thermal_test

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/governor/internal/thermal"
)

func TestThermal(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Thermal Suite")
}

var _ = Describe("Governor", func() {
	var (
		dir       string
		stateFile string
		gov       *thermal.Governor
		log       *slog.Logger
	)

	writeRecord := func(record map[string]any) {
		data, err := json.Marshal(record)
		Expect(err).NotTo(HaveOccurred())
		Expect(os.WriteFile(stateFile, data, 0o644)).To(Succeed())
	}

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
		stateFile = filepath.Join(dir, "thermal.json")
		log = slog.New(slog.NewTextHandler(GinkgoWriter, nil))
		gov = thermal.NewGovernor(thermal.Options{StateFile: stateFile}, log)
	})

	Describe("Fail-safe reads", func() {
		It("should default to cool when the record is missing", func() {
			Expect(gov.PressureLevel()).To(Equal(0))
			Expect(gov.CostMultiplier()).To(Equal(1.0))
			Expect(gov.ShouldThrottle()).To(BeFalse())
		})

		It("should default to cool when the record is corrupt", func() {
			Expect(os.WriteFile(stateFile, []byte("{broken"), 0o644)).To(Succeed())
			Expect(gov.PressureLevel()).To(Equal(0))
			Expect(gov.CostMultiplier()).To(Equal(1.0))
		})

		It("should treat a stale record as absent", func() {
			gov = thermal.NewGovernor(thermal.Options{
				StateFile: stateFile,
				MaxAge:    time.Second,
			}, log)
			writeRecord(map[string]any{
				"timestamp": time.Now().Add(-time.Minute).Format(time.RFC3339),
				"thermal":   map[string]any{"level": 3},
			})

			Expect(gov.PressureLevel()).To(Equal(0))
		})

		It("should accept a fresh record under the max age", func() {
			gov = thermal.NewGovernor(thermal.Options{
				StateFile: stateFile,
				MaxAge:    time.Minute,
			}, log)
			writeRecord(map[string]any{
				"timestamp": time.Now().Format(time.RFC3339),
				"thermal":   map[string]any{"level": 2},
			})

			Expect(gov.PressureLevel()).To(Equal(2))
		})
	})

	Describe("PressureLevel", func() {
		It("should use the explicit level when present", func() {
			writeRecord(map[string]any{
				"thermal": map[string]any{"level": 2, "state": "heavy", "action": "throttle"},
			})
			Expect(gov.PressureLevel()).To(Equal(2))
		})

		It("should clamp out-of-range levels to the top tier", func() {
			// Sensor feeds report level 4 for "sleeping".
			writeRecord(map[string]any{"thermal": map[string]any{"level": 4}})
			Expect(gov.PressureLevel()).To(Equal(3))
		})

		It("should clamp negative sensor error markers to cool", func() {
			writeRecord(map[string]any{"thermal": map[string]any{"level": -1}})
			Expect(gov.PressureLevel()).To(Equal(0))
		})

		It("should derive the level from a temperature", func() {
			writeRecord(map[string]any{"temp_c": 75.0})
			Expect(gov.PressureLevel()).To(Equal(1))

			writeRecord(map[string]any{"temp_c": 85.0})
			Expect(gov.PressureLevel()).To(Equal(2))

			writeRecord(map[string]any{"host_temp_c": 95.0})
			Expect(gov.PressureLevel()).To(Equal(3))
		})

		It("should take the highest threshold met", func() {
			writeRecord(map[string]any{"temp_c": 120.0})
			Expect(gov.PressureLevel()).To(Equal(3))
		})

		It("should report cool below the lowest threshold", func() {
			writeRecord(map[string]any{"temp_c": 50.0})
			Expect(gov.PressureLevel()).To(Equal(0))
		})
	})

	Describe("CostMultiplier", func() {
		It("should be monotonically non-decreasing across levels", func() {
			previous := 0.0
			for level := 0; level <= gov.MaxLevel(); level++ {
				writeRecord(map[string]any{"thermal": map[string]any{"level": level}})
				multiplier := gov.CostMultiplier()
				Expect(multiplier).To(BeNumerically(">=", previous))
				previous = multiplier
			}
		})

		It("should follow the default tier table", func() {
			writeRecord(map[string]any{"thermal": map[string]any{"level": 1}})
			Expect(gov.CostMultiplier()).To(Equal(1.5))

			writeRecord(map[string]any{"thermal": map[string]any{"level": 3}})
			Expect(gov.CostMultiplier()).To(Equal(5.0))
		})

		It("should honor configured tiers", func() {
			gov = thermal.NewGovernor(thermal.Options{
				StateFile: stateFile,
				Tiers:     []float64{1.0, 2.0, 10.0},
			}, log)
			writeRecord(map[string]any{"thermal": map[string]any{"level": 2}})
			Expect(gov.CostMultiplier()).To(Equal(10.0))
		})
	})

	Describe("AdjustedCost", func() {
		It("should scale the base cost by the tier multiplier", func() {
			writeRecord(map[string]any{"thermal": map[string]any{"level": 3}})
			Expect(gov.AdjustedCost(10.0)).To(Equal(50.0))
		})

		It("should leave the base cost unchanged when cool", func() {
			Expect(gov.AdjustedCost(10.0)).To(Equal(10.0))
		})
	})

	Describe("ShouldThrottle", func() {
		It("should throttle only at the top tier", func() {
			for level := 0; level < gov.MaxLevel(); level++ {
				writeRecord(map[string]any{"thermal": map[string]any{"level": level}})
				Expect(gov.ShouldThrottle()).To(BeFalse())
			}

			writeRecord(map[string]any{"thermal": map[string]any{"level": gov.MaxLevel()}})
			Expect(gov.ShouldThrottle()).To(BeTrue())
		})
	})

	Describe("Status", func() {
		It("should snapshot level, tier, multiplier and throttle flag", func() {
			writeRecord(map[string]any{
				"thermal":     map[string]any{"level": 2, "state": "heavy"},
				"host_temp_c": 85.0,
				"cpu":         map[string]any{"percent": 93.5},
			})

			status := gov.Status()
			Expect(status.Level).To(Equal(2))
			Expect(status.Tier).To(Equal("HOT"))
			Expect(status.Multiplier).To(Equal(2.0))
			Expect(status.Throttle).To(BeFalse())
			Expect(*status.TemperatureC).To(Equal(85.0))
			Expect(status.Raw.CPU).To(HaveKey("percent"))
		})

		It("should report NORMAL when the record is absent", func() {
			status := gov.Status()
			Expect(status.Level).To(Equal(0))
			Expect(status.Tier).To(Equal("NORMAL"))
			Expect(status.Throttle).To(BeFalse())
		})
	})
})
