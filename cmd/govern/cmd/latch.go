package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/angeloszaimis/governor/internal/latch"
)

var latchResetConfirm bool

// latchCmd represents the latch command
var latchCmd = &cobra.Command{
	Use:   "latch",
	Short: "Operate the emergency shutdown latch",
	Long: `Commands for inspecting, engaging, and clearing the durable emergency
shutdown latch. The latch survives restarts: while it is engaged, the
governor daemon refuses to start and exits with code 137.`,
}

var latchStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether the latch is engaged",
	RunE:  runLatchStatus,
}

var latchActivateCmd = &cobra.Command{
	Use:   "activate <reason>",
	Short: "Engage the latch and terminate tracked services",
	Long: `Engage the emergency shutdown latch with the given reason. Registered
service PIDs are terminated and configured service names are swept as a
backstop. Activation is idempotent: if the latch is already engaged the
original record is kept.`,
	Args: cobra.ExactArgs(1),
	RunE: runLatchActivate,
}

var latchResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear the latch so the host may restart",
	RunE:  runLatchReset,
}

func init() {
	rootCmd.AddCommand(latchCmd)
	latchCmd.AddCommand(latchStatusCmd)
	latchCmd.AddCommand(latchActivateCmd)
	latchCmd.AddCommand(latchResetCmd)

	latchResetCmd.Flags().BoolVar(&latchResetConfirm, "confirm", false, "confirm clearing the latch")
}

func openLatch() (*latch.Latch, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return latch.New(cfg.Latch.DataDir, cfg.Latch.Services, nil, cliLogger()), nil
}

func runLatchStatus(cmd *cobra.Command, args []string) error {
	interlock, err := openLatch()
	if err != nil {
		return err
	}

	engaged := interlock.IsActive()

	if IsJSONOutput() {
		doc := map[string]any{"engaged": engaged}
		if engaged {
			if record, err := interlock.Read(); err == nil {
				doc["record"] = record
			}
		}
		output, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		fmt.Println(string(output))
		return nil
	}

	if !engaged {
		fmt.Println("Latch disengaged, host may run")
		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Engaged", "Since", "Reason", "Triggered By")

	record, err := interlock.Read()
	if err != nil {
		table.Append("yes", "unknown", "lock record unreadable", "unknown")
	} else {
		table.Append("yes", record.Timestamp, record.Reason, record.TriggeredBy)
	}

	table.Render()
	return nil
}

func runLatchActivate(cmd *cobra.Command, args []string) error {
	interlock, err := openLatch()
	if err != nil {
		return err
	}

	if err := interlock.Activate(args[0], "operator"); err != nil {
		return fmt.Errorf("failed to engage latch: %w", err)
	}

	record, err := interlock.Read()
	if err != nil {
		fmt.Println("Latch engaged")
		return nil
	}

	fmt.Printf("Latch engaged at %s: %s (triggered by %s)\n",
		record.Timestamp, record.Reason, record.TriggeredBy)
	return nil
}

func runLatchReset(cmd *cobra.Command, args []string) error {
	interlock, err := openLatch()
	if err != nil {
		return err
	}

	if !latchResetConfirm {
		return fmt.Errorf("refusing to clear the latch without --confirm")
	}

	cleared, err := interlock.Reset(latchResetConfirm)
	if err != nil {
		return fmt.Errorf("failed to reset latch: %w", err)
	}

	if cleared {
		fmt.Println("Latch cleared, host may restart")
	} else {
		fmt.Println("Latch was not engaged, nothing to clear")
	}
	return nil
}
