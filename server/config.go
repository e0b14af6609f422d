package server

import (
	"errors"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the HTTP API settings. Values are resolved in order:
// built-in defaults, then spfaudit.yaml if present, then SPFAUDIT_*
// environment variables.
type Config struct {
	// Addr is the listen address, host:port.
	Addr string `mapstructure:"addr"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `mapstructure:"log_level"`

	// ReadTimeout and WriteTimeout bound each HTTP exchange.
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`

	// RateLimit is the number of requests admitted per client address
	// within RateWindow. Zero disables rate limiting.
	RateLimit  int           `mapstructure:"rate_limit"`
	RateWindow time.Duration `mapstructure:"rate_window"`

	// AnalysisDeadline bounds a single SPF chain expansion.
	AnalysisDeadline time.Duration `mapstructure:"analysis_deadline"`

	// Nameservers overrides the system resolvers, host:port each.
	Nameservers []string `mapstructure:"nameservers"`

	// DNSSEC requests validation from the upstream resolver.
	DNSSEC bool `mapstructure:"dnssec"`
}

// LoadConfig reads configuration from the environment and an optional
// spfaudit.yaml in the working directory. A .env file is loaded first
// when present.
func LoadConfig() (*Config, error) {
	// Missing .env is the common case and not an error.
	_ = godotenv.Load()

	v := viper.New()
	v.SetDefault("addr", ":8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("read_timeout", 10*time.Second)
	v.SetDefault("write_timeout", 10*time.Second)
	v.SetDefault("rate_limit", 10)
	v.SetDefault("rate_window", 60*time.Second)
	v.SetDefault("analysis_deadline", 5*time.Second)
	v.SetDefault("dnssec", false)

	v.SetConfigName("spfaudit")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	v.SetEnvPrefix("SPFAUDIT")
	v.AutomaticEnv()
	for _, key := range []string{
		"addr", "log_level", "read_timeout", "write_timeout",
		"rate_limit", "rate_window", "analysis_deadline",
		"nameservers", "dnssec",
	} {
		// AutomaticEnv does not register keys that only exist in the
		// environment, so bind them explicitly.
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if cfg.RateLimit < 0 {
		return nil, fmt.Errorf("rate_limit must not be negative, got %d", cfg.RateLimit)
	}
	return cfg, nil
}
