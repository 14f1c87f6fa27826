package cmd

import (
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/angeloszaimis/governor/config"
	"github.com/angeloszaimis/governor/pkg/logger"
)

var (
	cfgFile      string
	daemonURL    string
	outputFormat string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "govern",
	Short: "CLI for the resilience governor",
	Long: `govern is a command line interface for inspecting circuit breakers,
operating the emergency shutdown latch, and querying the thermal cost governor.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&daemonURL, "daemon", "", "governor daemon URL (default from GOVERNOR_URL or http://localhost:8090)")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "output", "table", "output format: table or json")
}

// initConfig points viper at an explicit config file when one is given
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}
}

// GetDaemonURL returns the daemon base URL with trailing slashes removed
func GetDaemonURL() string {
	url := daemonURL
	if url == "" {
		url = os.Getenv("GOVERNOR_URL")
	}
	if url == "" {
		url = "http://localhost:8090"
	}
	return strings.TrimRight(url, "/")
}

// IsJSONOutput returns true if JSON output is requested
func IsJSONOutput() bool {
	return outputFormat == "json"
}

func loadConfig() (*config.Config, error) {
	return config.Load()
}

// cliLogger keeps component logging off stdout so table and JSON output
// stay machine-readable.
func cliLogger() *slog.Logger {
	return logger.NewWithWriter(os.Stderr, config.LogLevelWarn, false, config.EnvDev)
}
