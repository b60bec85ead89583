// Package config handles TOML configuration for bucketlens.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	apperrors "github.com/yairfalse/bucketlens/internal/errors"
)

// Agent modes.
const (
	ModeClassifier = "classifier"
	ModeTools      = "tools"
)

// LLM providers.
const (
	ProviderAnthropic = "anthropic"
	ProviderBedrock   = "bedrock"
	ProviderOpenAI    = "openai"
	ProviderNone      = "none"
)

// Config is the root configuration structure.
type Config struct {
	AWS      AWSConfig      `toml:"aws"`
	LLM      LLMConfig      `toml:"llm"`
	Agent    AgentConfig    `toml:"agent"`
	Provider ProviderConfig `toml:"provider"`
	Cache    CacheConfig    `toml:"cache"`
	Filter   FilterConfig   `toml:"filter"`
	OTEL     OTELConfig     `toml:"otel"`
	Server   ServerConfig   `toml:"server"`
	Log      LogConfig      `toml:"log"`
}

// AWSConfig holds the storage credentials and region.
type AWSConfig struct {
	Region                   string `toml:"region"`
	Profile                  string `toml:"profile"`
	AccessKeyID              string `toml:"access_key_id"`
	SecretAccessKey          string `toml:"secret_access_key"`
	SessionToken             string `toml:"session_token"`
	RequireStaticCredentials bool   `toml:"require_static_credentials"`
	Endpoint                 string `toml:"endpoint"`
}

// LLMConfig selects and tunes the model provider.
type LLMConfig struct {
	Provider string `toml:"provider"`
	Model    string `toml:"model"`
	APIKey   string `toml:"api_key"`
	BaseURL  string `toml:"base_url"`
}

// AgentConfig tunes the conversation layer.
type AgentConfig struct {
	Mode          string `toml:"mode"`
	MaxIterations int    `toml:"max_iterations"`
	Concurrency   int    `toml:"concurrency"`
	Surface       string `toml:"surface"`

	MaxTokens             int     `toml:"max_tokens"`
	Temperature           float64 `toml:"temperature"`
	ClassifierMaxTokens   int     `toml:"classifier_max_tokens"`
	ClassifierTemperature float64 `toml:"classifier_temperature"`
}

// ProviderConfig bounds every storage and LLM call.
type ProviderConfig struct {
	CallTimeoutStr  string `toml:"call_timeout"`
	CallTimeout     time.Duration
	MaxAttempts     int    `toml:"max_attempts"`
	InitialDelayStr string `toml:"initial_delay"`
	InitialDelay    time.Duration
}

// CacheConfig holds the optional persistent report store.
type CacheConfig struct {
	Path string `toml:"path"`
}

// FilterConfig restricts which bucket names are visible.
type FilterConfig struct {
	Include []string `toml:"include"`
	Exclude []string `toml:"exclude"`
}

// OTELConfig holds OpenTelemetry settings.
type OTELConfig struct {
	Endpoint    string        `toml:"endpoint"`
	Insecure    bool          `toml:"insecure"`
	ServiceName string        `toml:"service_name"`
	Traces      TracesConfig  `toml:"traces"`
	Metrics     MetricsConfig `toml:"metrics"`
}

// TracesConfig holds tracing settings.
type TracesConfig struct {
	Enabled    bool    `toml:"enabled"`
	SampleRate float64 `toml:"sample_rate"`
}

// MetricsConfig holds metrics settings.
type MetricsConfig struct {
	Enabled bool `toml:"enabled"`
}

// ServerConfig holds listener addresses.
type ServerConfig struct {
	Addr        string `toml:"addr"`
	MetricsAddr string `toml:"metrics_addr"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `toml:"level"`
}

// Load reads and parses a TOML config file, then applies defaults and env overrides.
// An empty path yields a config built from defaults and the environment only.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(cfg)
	applyDefaults(cfg)

	if err := parseDurations(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadDotEnv loads KEY=value pairs from files into the process environment.
// Missing files are ignored; existing variables are not overwritten.
func LoadDotEnv(files ...string) error {
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("load env file %s: %w", f, err)
		}
	}
	return nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.AWS.Region, "AWS_REGION")
	setString(&cfg.AWS.Profile, "AWS_PROFILE")
	setString(&cfg.AWS.AccessKeyID, "AWS_ACCESS_KEY_ID")
	setString(&cfg.AWS.SecretAccessKey, "AWS_SECRET_ACCESS_KEY")
	setString(&cfg.AWS.SessionToken, "AWS_SESSION_TOKEN")
	setString(&cfg.LLM.Provider, "BUCKETLENS_LLM_PROVIDER")
	setString(&cfg.LLM.Model, "BUCKETLENS_LLM_MODEL")
	setString(&cfg.Agent.Mode, "BUCKETLENS_AGENT_MODE")

	if cfg.LLM.APIKey == "" {
		switch cfg.LLM.Provider {
		case ProviderAnthropic:
			cfg.LLM.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		case ProviderOpenAI:
			cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
		}
	}

	if v := os.Getenv("BUCKETLENS_MAX_ITERATIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Agent.MaxIterations = n
		}
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.AWS.Region == "" {
		cfg.AWS.Region = "us-east-1"
	}
	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = ProviderBedrock
	}
	if cfg.Agent.Mode == "" {
		cfg.Agent.Mode = ModeTools
	}
	if cfg.Agent.MaxIterations == 0 {
		cfg.Agent.MaxIterations = 8
	}
	if cfg.Agent.Concurrency == 0 {
		cfg.Agent.Concurrency = 4
	}
	if cfg.Agent.Surface == "" {
		cfg.Agent.Surface = "html"
	}
	if cfg.Agent.MaxTokens == 0 {
		cfg.Agent.MaxTokens = 1024
	}
	if cfg.Agent.Temperature == 0 {
		cfg.Agent.Temperature = 0.1
	}
	if cfg.Agent.ClassifierMaxTokens == 0 {
		cfg.Agent.ClassifierMaxTokens = 512
	}
	if cfg.Agent.ClassifierTemperature == 0 {
		cfg.Agent.ClassifierTemperature = 0.3
	}
	if cfg.Provider.CallTimeoutStr == "" {
		cfg.Provider.CallTimeoutStr = "30s"
	}
	if cfg.Provider.InitialDelayStr == "" {
		cfg.Provider.InitialDelayStr = "200ms"
	}
	if cfg.Provider.MaxAttempts == 0 {
		cfg.Provider.MaxAttempts = 3
	}
	if cfg.OTEL.ServiceName == "" {
		cfg.OTEL.ServiceName = "bucketlens"
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8000"
	}
	if cfg.Server.MetricsAddr == "" {
		cfg.Server.MetricsAddr = ":9090"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

func parseDurations(cfg *Config) error {
	d, err := time.ParseDuration(cfg.Provider.CallTimeoutStr)
	if err != nil {
		return fmt.Errorf("parse call_timeout %q: %w", cfg.Provider.CallTimeoutStr, err)
	}
	cfg.Provider.CallTimeout = d

	d, err = time.ParseDuration(cfg.Provider.InitialDelayStr)
	if err != nil {
		return fmt.Errorf("parse initial_delay %q: %w", cfg.Provider.InitialDelayStr, err)
	}
	cfg.Provider.InitialDelay = d
	return nil
}

// Validate checks the configuration is valid. Failures are configuration errors.
func (c *Config) Validate() error {
	switch c.Agent.Mode {
	case ModeClassifier, ModeTools:
	default:
		return apperrors.Configurationf("config", "agent: unknown mode %q", c.Agent.Mode)
	}

	switch c.LLM.Provider {
	case ProviderAnthropic, ProviderOpenAI:
		if c.LLM.APIKey == "" {
			return apperrors.Configurationf("config", "llm: api_key required for provider %q", c.LLM.Provider)
		}
		fallthrough
	case ProviderBedrock:
		if c.LLM.Model == "" {
			return apperrors.Configurationf("config", "llm: model required for provider %q", c.LLM.Provider)
		}
	case ProviderNone:
	default:
		return apperrors.Configurationf("config", "llm: unknown provider %q", c.LLM.Provider)
	}

	if c.AWS.RequireStaticCredentials && (c.AWS.AccessKeyID == "" || c.AWS.SecretAccessKey == "") {
		return apperrors.Configurationf("config", "aws: access_key_id and secret_access_key required")
	}
	if c.Agent.MaxIterations < 1 {
		return apperrors.Configurationf("config", "agent: max_iterations must be positive (got %d)", c.Agent.MaxIterations)
	}
	if c.Agent.Concurrency < 1 {
		return apperrors.Configurationf("config", "agent: concurrency must be positive (got %d)", c.Agent.Concurrency)
	}
	if c.Provider.CallTimeout <= 0 {
		return apperrors.Configurationf("config", "provider: call_timeout must be positive")
	}
	if c.OTEL.Traces.SampleRate < 0.0 || c.OTEL.Traces.SampleRate > 1.0 {
		return apperrors.Configurationf("config", "otel: traces.sample_rate must be between 0.0 and 1.0 (got %v)", c.OTEL.Traces.SampleRate)
	}
	return nil
}
