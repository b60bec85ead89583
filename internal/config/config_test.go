package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/yairfalse/bucketlens/internal/errors"
)

func TestLoad_ValidConfig(t *testing.T) {
	clearEnv(t)
	content := `
[aws]
region = "eu-west-1"
profile = "readonly"
access_key_id = "AKIAEXAMPLE"
secret_access_key = "secret"

[llm]
provider = "anthropic"
model = "claude-3-5-haiku-latest"
api_key = "sk-test"

[agent]
mode = "classifier"
max_iterations = 5
concurrency = 8
surface = "text"

[provider]
call_timeout = "10s"
max_attempts = 4
initial_delay = "50ms"

[cache]
path = "/var/lib/bucketlens/reports.db"

[filter]
include = ["prod-*"]
exclude = ["*-tmp"]

[otel]
endpoint = "localhost:4317"
insecure = true
service_name = "bucketlens"

[otel.traces]
enabled = true
sample_rate = 1.0

[log]
level = "debug"
`
	path := writeTempConfig(t, content)
	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, "eu-west-1", cfg.AWS.Region)
	assert.Equal(t, "readonly", cfg.AWS.Profile)
	assert.Equal(t, "AKIAEXAMPLE", cfg.AWS.AccessKeyID)
	assert.Equal(t, ProviderAnthropic, cfg.LLM.Provider)
	assert.Equal(t, "claude-3-5-haiku-latest", cfg.LLM.Model)
	assert.Equal(t, ModeClassifier, cfg.Agent.Mode)
	assert.Equal(t, 5, cfg.Agent.MaxIterations)
	assert.Equal(t, 8, cfg.Agent.Concurrency)
	assert.Equal(t, "text", cfg.Agent.Surface)
	assert.Equal(t, 10*time.Second, cfg.Provider.CallTimeout)
	assert.Equal(t, 4, cfg.Provider.MaxAttempts)
	assert.Equal(t, 50*time.Millisecond, cfg.Provider.InitialDelay)
	assert.Equal(t, "/var/lib/bucketlens/reports.db", cfg.Cache.Path)
	assert.Equal(t, []string{"prod-*"}, cfg.Filter.Include)
	assert.Equal(t, []string{"*-tmp"}, cfg.Filter.Exclude)
	assert.True(t, cfg.OTEL.Traces.Enabled)
	assert.Equal(t, "debug", cfg.Log.Level)
	require.NoError(t, cfg.Validate())
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	content := `
[llm]
model = "anthropic.claude-3-haiku-20240307-v1:0"
`
	path := writeTempConfig(t, content)
	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, "us-east-1", cfg.AWS.Region)
	assert.Equal(t, ProviderBedrock, cfg.LLM.Provider)
	assert.Equal(t, ModeTools, cfg.Agent.Mode)
	assert.Equal(t, 8, cfg.Agent.MaxIterations)
	assert.Equal(t, 4, cfg.Agent.Concurrency)
	assert.Equal(t, "html", cfg.Agent.Surface)
	assert.Equal(t, 1024, cfg.Agent.MaxTokens)
	assert.InDelta(t, 0.1, cfg.Agent.Temperature, 1e-9)
	assert.Equal(t, 512, cfg.Agent.ClassifierMaxTokens)
	assert.InDelta(t, 0.3, cfg.Agent.ClassifierTemperature, 1e-9)
	assert.Equal(t, 30*time.Second, cfg.Provider.CallTimeout)
	assert.Equal(t, 3, cfg.Provider.MaxAttempts)
	assert.Equal(t, "bucketlens", cfg.OTEL.ServiceName)
	assert.Equal(t, ":8000", cfg.Server.Addr)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_EmptyPathUsesEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("AWS_REGION", "ap-south-1")
	t.Setenv("AWS_ACCESS_KEY_ID", "AKIAENV")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "envsecret")
	t.Setenv("BUCKETLENS_LLM_PROVIDER", "openai")
	t.Setenv("OPENAI_API_KEY", "sk-env")
	t.Setenv("BUCKETLENS_MAX_ITERATIONS", "3")

	cfg, err := Load("")

	require.NoError(t, err)
	assert.Equal(t, "ap-south-1", cfg.AWS.Region)
	assert.Equal(t, "AKIAENV", cfg.AWS.AccessKeyID)
	assert.Equal(t, ProviderOpenAI, cfg.LLM.Provider)
	assert.Equal(t, "sk-env", cfg.LLM.APIKey)
	assert.Equal(t, 3, cfg.Agent.MaxIterations)
}

func TestLoadDotEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envPath, []byte("AWS_REGION=sa-east-1\n"), 0o644))

	// godotenv never overrides a variable that is already set, even to "".
	require.NoError(t, os.Unsetenv("AWS_REGION"))
	require.NoError(t, LoadDotEnv(envPath, filepath.Join(dir, "missing.env")))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "sa-east-1", cfg.AWS.Region)
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/config.toml")
	require.Error(t, err)
}

func TestLoad_InvalidTOML(t *testing.T) {
	content := `
[aws
region =
`
	path := writeTempConfig(t, content)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoad_InvalidDuration(t *testing.T) {
	clearEnv(t)
	content := `
[provider]
call_timeout = "not-a-duration"
`
	path := writeTempConfig(t, content)
	_, err := Load(path)
	require.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			LLM:      LLMConfig{Provider: ProviderBedrock, Model: "anthropic.claude-3-haiku"},
			Agent:    AgentConfig{Mode: ModeTools, MaxIterations: 8, Concurrency: 4},
			Provider: ProviderConfig{CallTimeout: time.Second},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "missing model", mutate: func(c *Config) { c.LLM.Model = "" }, wantErr: "model required"},
		{name: "missing api key", mutate: func(c *Config) { c.LLM.Provider = ProviderOpenAI }, wantErr: "api_key required"},
		{name: "unknown provider", mutate: func(c *Config) { c.LLM.Provider = "cohere" }, wantErr: "unknown provider"},
		{name: "no llm", mutate: func(c *Config) { c.LLM = LLMConfig{Provider: ProviderNone} }},
		{name: "unknown mode", mutate: func(c *Config) { c.Agent.Mode = "hybrid" }, wantErr: "unknown mode"},
		{name: "zero iterations", mutate: func(c *Config) { c.Agent.MaxIterations = 0 }, wantErr: "max_iterations"},
		{name: "static credentials required", mutate: func(c *Config) { c.AWS.RequireStaticCredentials = true }, wantErr: "access_key_id"},
		{name: "bad sample rate", mutate: func(c *Config) { c.OTEL.Traces.SampleRate = 1.5 }, wantErr: "sample_rate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.True(t, apperrors.IsConfiguration(err))
		})
	}
}

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	err := os.WriteFile(path, []byte(content), 0644)
	require.NoError(t, err)
	return path
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"AWS_REGION", "AWS_PROFILE", "AWS_ACCESS_KEY_ID", "AWS_SECRET_ACCESS_KEY", "AWS_SESSION_TOKEN",
		"BUCKETLENS_LLM_PROVIDER", "BUCKETLENS_LLM_MODEL", "BUCKETLENS_AGENT_MODE", "BUCKETLENS_MAX_ITERATIONS",
		"ANTHROPIC_API_KEY", "OPENAI_API_KEY",
	} {
		t.Setenv(key, "")
	}
}
