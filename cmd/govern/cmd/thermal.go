package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/angeloszaimis/governor/internal/thermal"
)

// thermalCmd represents the thermal command
var thermalCmd = &cobra.Command{
	Use:   "thermal",
	Short: "Query the thermal cost governor",
	Long:  `Commands for reading the shared thermal state and computing pressure-adjusted operation costs.`,
}

var thermalStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show current thermal pressure and cost multiplier",
	RunE:  runThermalStatus,
}

var thermalCostCmd = &cobra.Command{
	Use:   "cost <base>",
	Short: "Compute the pressure-adjusted cost for a base cost",
	Args:  cobra.ExactArgs(1),
	RunE:  runThermalCost,
}

func init() {
	rootCmd.AddCommand(thermalCmd)
	thermalCmd.AddCommand(thermalStatusCmd)
	thermalCmd.AddCommand(thermalCostCmd)
}

func openGovernor() (*thermal.Governor, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	opts := thermal.Options{
		StateFile: cfg.Thermal.StateFile,
		HostProbe: cfg.Thermal.HostProbe,
		Tiers:     cfg.Thermal.Tiers,
	}
	if cfg.Thermal.MaxAge != "" {
		maxAge, err := time.ParseDuration(cfg.Thermal.MaxAge)
		if err != nil {
			return nil, fmt.Errorf("invalid thermal.max_age: %w", err)
		}
		opts.MaxAge = maxAge
	}
	for _, threshold := range cfg.Thermal.TempThresholds {
		opts.TempThresholds = append(opts.TempThresholds, thermal.TempThreshold{
			TempC: threshold.TempC,
			Level: threshold.Level,
		})
	}

	return thermal.NewGovernor(opts, cliLogger()), nil
}

func runThermalStatus(cmd *cobra.Command, args []string) error {
	governor, err := openGovernor()
	if err != nil {
		return err
	}

	status := governor.Status()

	if IsJSONOutput() {
		output, err := json.MarshalIndent(status, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		fmt.Println(string(output))
		return nil
	}

	temp := "n/a"
	if status.TemperatureC != nil {
		temp = fmt.Sprintf("%.1f", *status.TemperatureC)
	}
	throttle := "no"
	if status.Throttle {
		throttle = "yes"
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Level", "Tier", "Multiplier", "Temp C", "Throttle")
	table.Append(
		fmt.Sprintf("%d", status.Level),
		status.Tier,
		fmt.Sprintf("%.2fx", status.Multiplier),
		temp,
		throttle,
	)
	table.Render()
	return nil
}

func runThermalCost(cmd *cobra.Command, args []string) error {
	base, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return fmt.Errorf("invalid base cost %q: %w", args[0], err)
	}
	if base < 0 {
		return fmt.Errorf("base cost must not be negative")
	}

	governor, err := openGovernor()
	if err != nil {
		return err
	}

	adjusted := governor.AdjustedCost(base)

	if IsJSONOutput() {
		output, err := json.MarshalIndent(map[string]any{
			"base":       base,
			"multiplier": governor.CostMultiplier(),
			"adjusted":   adjusted,
		}, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		fmt.Println(string(output))
		return nil
	}

	fmt.Printf("%.2f x %.2f = %.2f\n", base, governor.CostMultiplier(), adjusted)
	return nil
}
