package config

import (
	"log/slog"
	"net"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/spf13/viper"
)

const (
	EnvDev     = "dev"
	EnvStaging = "staging"
	EnvProd    = "prod"
)

const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

type ServerConfig struct {
	Address     string `mapstructure:"address"`
	Environment string `mapstructure:"environment"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

// BreakerOverride tightens one named breaker beyond the defaults.
// Zero fields inherit the default.
type BreakerOverride struct {
	FailureThreshold int    `mapstructure:"failure_threshold"`
	ResetTimeout     string `mapstructure:"reset_timeout"`
}

type BreakersConfig struct {
	FailureThreshold int                        `mapstructure:"failure_threshold"`
	ResetTimeout     string                     `mapstructure:"reset_timeout"`
	Named            map[string]BreakerOverride `mapstructure:"named"`
}

type LatchConfig struct {
	DataDir string `mapstructure:"data_dir"`
	// Services are swept by name as a backstop after the PID kills.
	Services []string `mapstructure:"services"`
}

type TempThresholdConfig struct {
	TempC float64 `mapstructure:"temp_c"`
	Level int     `mapstructure:"level"`
}

type ThermalConfig struct {
	StateFile string `mapstructure:"state_file"`
	MaxAge    string `mapstructure:"max_age"`
	HostProbe bool   `mapstructure:"host_probe"`
	// Tiers maps pressure level (index) to cost multiplier.
	Tiers          []float64             `mapstructure:"tiers"`
	TempThresholds []TempThresholdConfig `mapstructure:"temp_thresholds"`
}

type WatchdogConfig struct {
	Interval        string `mapstructure:"interval"`
	CriticalSamples int    `mapstructure:"critical_samples"`
}

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Breakers BreakersConfig `mapstructure:"breakers"`
	Latch    LatchConfig    `mapstructure:"latch"`
	Thermal  ThermalConfig  `mapstructure:"thermal"`
	Watchdog WatchdogConfig `mapstructure:"watchdog"`
}

func Load() (*Config, error) {
	viper.SetDefault("server.environment", EnvDev)
	viper.SetDefault("server.address", ":8090")
	viper.SetDefault("logging.level", LogLevelInfo)

	viper.SetDefault("breakers.failure_threshold", 5)
	viper.SetDefault("breakers.reset_timeout", "60s")
	// Tighter settings for the especially fragile dependencies.
	viper.SetDefault("breakers.named.llm-bridge.failure_threshold", 3)
	viper.SetDefault("breakers.named.llm-bridge.reset_timeout", "30s")
	viper.SetDefault("breakers.named.core-db.failure_threshold", 5)
	viper.SetDefault("breakers.named.core-db.reset_timeout", "10s")

	viper.SetDefault("latch.data_dir", "data")
	viper.SetDefault("latch.services", []string{})

	viper.SetDefault("thermal.state_file", "data/thermal.json")
	viper.SetDefault("thermal.max_age", "30s")
	viper.SetDefault("thermal.host_probe", false)
	viper.SetDefault("thermal.tiers", []float64{1.0, 1.5, 2.0, 5.0})
	viper.SetDefault("thermal.temp_thresholds", []map[string]any{
		{"temp_c": 70.0, "level": 1},
		{"temp_c": 80.0, "level": 2},
		{"temp_c": 90.0, "level": 3},
	})

	viper.SetDefault("watchdog.interval", "5s")
	viper.SetDefault("watchdog.critical_samples", 6)

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./config")
	viper.AddConfigPath(".")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Error("failed to read config file", slog.String("error", err.Error()))
			return nil, err
		}
		slog.Info("config file not found, using defaults and environment variables")
	} else {
		slog.Info("loaded config file", slog.String("file", viper.ConfigFileUsed()))
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		slog.Error("failed to unmarshal config", slog.String("error", err.Error()))
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Server,
			validation.Required,
			validation.By(func(value interface{}) error {
				sc, ok := value.(ServerConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a ServerConfig")
				}
				return validation.ValidateStruct(&sc,
					validation.Field(&sc.Environment,
						validation.Required,
						validation.In(EnvDev, EnvStaging, EnvProd),
					),
					validation.Field(&sc.Address,
						validation.Required,
						validation.By(validateHostPort),
					),
				)
			}),
		),
		validation.Field(&c.Logging,
			validation.Required,
			validation.By(func(value interface{}) error {
				lc, ok := value.(LoggingConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a LoggingConfig")
				}
				return validation.ValidateStruct(&lc,
					validation.Field(&lc.Level,
						validation.Required,
						validation.In(LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError),
					),
				)
			}),
		),
		validation.Field(&c.Breakers,
			validation.Required,
			validation.By(validateBreakers),
		),
		validation.Field(&c.Latch,
			validation.Required,
			validation.By(func(value interface{}) error {
				lc, ok := value.(LatchConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a LatchConfig")
				}
				return validation.ValidateStruct(&lc,
					validation.Field(&lc.DataDir, validation.Required),
				)
			}),
		),
		validation.Field(&c.Thermal,
			validation.Required,
			validation.By(validateThermal),
		),
		validation.Field(&c.Watchdog,
			validation.Required,
			validation.By(func(value interface{}) error {
				wc, ok := value.(WatchdogConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a WatchdogConfig")
				}
				return validation.ValidateStruct(&wc,
					validation.Field(&wc.Interval,
						validation.Required,
						validation.By(validateDuration),
					),
					validation.Field(&wc.CriticalSamples,
						validation.Required,
						validation.Min(1),
					),
				)
			}),
		),
	)
}

func validateBreakers(value interface{}) error {
	bc, ok := value.(BreakersConfig)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a BreakersConfig")
	}

	if err := validation.ValidateStruct(&bc,
		validation.Field(&bc.FailureThreshold,
			validation.Required,
			validation.Min(1),
		),
		validation.Field(&bc.ResetTimeout,
			validation.Required,
			validation.By(validateDuration),
		),
	); err != nil {
		return err
	}

	for name, override := range bc.Named {
		if name == "" {
			return validation.NewError("validation_empty_name", "breaker name cannot be empty")
		}
		if override.FailureThreshold < 0 {
			return validation.NewError("validation_invalid_threshold", "failure threshold cannot be negative")
		}
		if override.ResetTimeout != "" {
			if err := validateDuration(override.ResetTimeout); err != nil {
				return err
			}
		}
	}
	return nil
}

func validateThermal(value interface{}) error {
	tc, ok := value.(ThermalConfig)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a ThermalConfig")
	}

	if tc.StateFile == "" {
		return validation.NewError("validation_empty_state_file", "thermal state file cannot be empty")
	}

	if tc.MaxAge != "" {
		if err := validateDuration(tc.MaxAge); err != nil {
			return err
		}
	}

	if len(tc.Tiers) < 2 {
		return validation.NewError("validation_invalid_tiers", "at least two pricing tiers are required")
	}
	for i := 1; i < len(tc.Tiers); i++ {
		if tc.Tiers[i] < tc.Tiers[i-1] {
			return validation.NewError("validation_invalid_tiers", "tier multipliers must be non-decreasing")
		}
	}

	maxLevel := len(tc.Tiers) - 1
	var lastTemp float64
	for i, threshold := range tc.TempThresholds {
		if i > 0 && threshold.TempC <= lastTemp {
			return validation.NewError("validation_invalid_thresholds", "temperature thresholds must be ascending")
		}
		lastTemp = threshold.TempC

		if threshold.Level < 1 || threshold.Level > maxLevel {
			return validation.NewError("validation_invalid_thresholds", "threshold level out of tier range")
		}
	}
	return nil
}

func validateHostPort(value interface{}) error {
	addr, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return validation.NewError("validation_invalid_hostport", "must be in host:port format")
	}

	if port == "" {
		return validation.NewError("validation_invalid_port", "port cannot be empty")
	}

	if host != "" {
		if err := is.Host.Validate(host); err != nil {
			return validation.NewError("validation_invalid_host", "invalid host")
		}
	}

	return nil
}

func validateDuration(value interface{}) error {
	durationStr, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	if _, err := time.ParseDuration(durationStr); err != nil {
		return validation.NewError("validation_invalid_duration", "must be a valid duration (e.g., 2s, 5m, 1h)")
	}

	return nil
}
