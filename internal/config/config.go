package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config is constructed once at startup and passed by reference into every
// component constructor. There is no ambient global configuration state.
type Config struct {
	Port               int      `mapstructure:"port"`
	DatabasePath       string   `mapstructure:"database_path"`
	LogLevel           string   `mapstructure:"log_level"`
	AllowedOrigins     []string `mapstructure:"allowed_origins"`
	RequestTimeoutSec  int      `mapstructure:"request_timeout_sec"`  // HTTP read/write; 0 = server default
	ShutdownTimeoutSec int      `mapstructure:"shutdown_timeout_sec"` // Graceful shutdown wait

	// Auth
	AuthJWTSecret string `mapstructure:"auth_jwt_secret"`
	// Operator emails granted premium tooling regardless of tier. The legacy
	// implementation hardcoded one address; this must now be configured
	// explicitly and defaults to empty.
	PremiumOperatorEmails []string `mapstructure:"premium_operator_emails"`

	// External tool API keys. A missing key downgrades the tool to a
	// "skipped" finding rather than an error.
	NumVerifyAPIKey    string `mapstructure:"numverify_api_key"`
	HIBPAPIKey         string `mapstructure:"hibp_api_key"`
	VirusTotalAPIKey   string `mapstructure:"virustotal_api_key"`
	PhoneInfogaURL     string `mapstructure:"phoneinfoga_url"`
	ToolTimeoutSec     int    `mapstructure:"tool_timeout_sec"`       // Per-adapter call timeout
	ToolsConcurrent    bool   `mapstructure:"tools_concurrent"`       // Run an entity's adapters in parallel
	RunRateLimitPerMin int    `mapstructure:"run_rate_limit_per_min"` // Per-IP limit on run/analyze endpoints

	// Inference backend (Ollama-compatible HTTP API)
	OllamaBaseURL     string  `mapstructure:"ollama_base_url"`
	OllamaModel       string  `mapstructure:"ollama_model"`
	OllamaTimeoutSec  int     `mapstructure:"ollama_timeout_sec"` // Long: the generate call can take minutes
	OllamaTemperature float64 `mapstructure:"ollama_temperature"`
	OllamaMaxTokens   int     `mapstructure:"ollama_max_tokens"`

	// Tracing
	OTLPEndpoint string `mapstructure:"otlp_endpoint"` // empty = tracing disabled
}

// IsOperatorEmail reports whether the email is configured for operator
// premium access.
func (c *Config) IsOperatorEmail(email string) bool {
	for _, e := range c.PremiumOperatorEmails {
		if e == email {
			return true
		}
	}
	return false
}

// Load reads configuration from config.yaml and VALKYRIE_* environment
// variables, falling back to defaults.
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("/etc/valkyrie/")
	viper.AddConfigPath("$HOME/.valkyrie")
	viper.AddConfigPath(".")

	// Defaults
	viper.SetDefault("port", 8400)
	viper.SetDefault("database_path", "./valkyrie.db")
	viper.SetDefault("log_level", "info")
	viper.SetDefault("allowed_origins", []string{"*"})
	viper.SetDefault("request_timeout_sec", 30)
	viper.SetDefault("shutdown_timeout_sec", 15)
	viper.SetDefault("auth_jwt_secret", "")
	viper.SetDefault("premium_operator_emails", []string{})
	viper.SetDefault("phoneinfoga_url", "http://phoneinfoga:8080")
	viper.SetDefault("tool_timeout_sec", 30)
	viper.SetDefault("tools_concurrent", true)
	viper.SetDefault("run_rate_limit_per_min", 10)
	viper.SetDefault("ollama_base_url", "http://localhost:11434")
	viper.SetDefault("ollama_model", "mistral")
	viper.SetDefault("ollama_timeout_sec", 600)
	viper.SetDefault("ollama_temperature", 0.3)
	viper.SetDefault("ollama_max_tokens", 1024)
	viper.SetDefault("otlp_endpoint", "")

	// Environment variables
	viper.SetEnvPrefix("VALKYRIE")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found; using defaults and env vars
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}
