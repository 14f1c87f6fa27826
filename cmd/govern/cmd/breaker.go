package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/angeloszaimis/governor/internal/circuitbreaker"
)

// breakerCmd represents the breaker command
var breakerCmd = &cobra.Command{
	Use:   "breaker",
	Short: "Inspect and exercise circuit breakers",
	Long:  `Commands for inspecting the circuit breakers of a running governor and exercising the breaker state machine locally.`,
}

var breakerStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "List breaker states on the running governor",
	Long:  `Retrieve and display every registered circuit breaker from the governor daemon.`,
	RunE:  runBreakerStatus,
}

var breakerTripTestCmd = &cobra.Command{
	Use:   "trip-test",
	Short: "Run a local scripted breaker scenario",
	Long: `Run a scripted scenario against an in-process breaker, walking it through
every state transition: failures up to the threshold, rejection while open,
the recovery probe, and a failed probe re-opening the circuit.`,
	RunE: runBreakerTripTest,
}

func init() {
	rootCmd.AddCommand(breakerCmd)
	breakerCmd.AddCommand(breakerStatusCmd)
	breakerCmd.AddCommand(breakerTripTestCmd)
}

type statusResponse struct {
	Breakers []circuitbreaker.Status `json:"breakers"`
}

func runBreakerStatus(cmd *cobra.Command, args []string) error {
	url := fmt.Sprintf("%s/status", GetDaemonURL())

	resp, err := http.Get(url)
	if err != nil {
		return fmt.Errorf("failed to connect to governor daemon: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("daemon error (status %d): %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	var result statusResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if IsJSONOutput() {
		output, err := json.MarshalIndent(result.Breakers, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		fmt.Println(string(output))
		return nil
	}

	if len(result.Breakers) == 0 {
		fmt.Println("No breakers registered")
		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Name", "State", "Failures", "Successes", "In State")

	for _, b := range result.Breakers {
		table.Append(
			b.Name,
			b.State,
			fmt.Sprintf("%d", b.FailureCount),
			fmt.Sprintf("%d", b.SuccessCount),
			b.TimeInState.Round(time.Second).String(),
		)
	}

	table.Render()
	fmt.Printf("\nTotal breakers: %d\n", len(result.Breakers))
	return nil
}

func runBreakerTripTest(cmd *cobra.Command, args []string) error {
	const (
		threshold    = 3
		resetTimeout = 200 * time.Millisecond
	)

	cb := circuitbreaker.NewCircuitBreaker("trip-test", threshold, resetTimeout)
	failing := errors.New("scripted failure")

	fmt.Printf("Scenario: threshold=%d reset_timeout=%s\n\n", threshold, resetTimeout)
	report := func(step string) {
		fmt.Printf("%-42s state=%s\n", step, cb.State())
	}

	report("initial")

	for i := 1; i <= threshold; i++ {
		_ = cb.Execute(func() error { return failing }, nil)
		report(fmt.Sprintf("failure %d/%d recorded", i, threshold))
	}

	err := cb.Execute(func() error { return nil }, nil)
	report(fmt.Sprintf("call while open rejected (err=%v)", err))

	time.Sleep(resetTimeout + 50*time.Millisecond)
	_ = cb.Execute(func() error { return failing }, nil)
	report("recovery probe failed, circuit re-opened")

	time.Sleep(resetTimeout + 50*time.Millisecond)
	_ = cb.Execute(func() error { return nil }, nil)
	report("recovery probe succeeded, circuit closed")

	if cb.State() != circuitbreaker.StateClosed {
		return fmt.Errorf("scenario ended in unexpected state %s", cb.State())
	}

	fmt.Println("\nAll transitions exercised")
	return nil
}
