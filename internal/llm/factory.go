package llm

import (
	"github.com/aws/aws-sdk-go-v2/aws"

	"github.com/yairfalse/bucketlens/internal/config"
	apperrors "github.com/yairfalse/bucketlens/internal/errors"
)

// NewFromConfig creates a Provider for cfg.Provider. The "none" provider
// yields a nil Provider and no error; callers fall back to local answers.
func NewFromConfig(cfg config.LLMConfig, awsCfg aws.Config) (Provider, error) {
	switch cfg.Provider {
	case config.ProviderAnthropic:
		if cfg.APIKey == "" {
			return nil, apperrors.Configurationf("llm", "Anthropic API key is required")
		}
		return NewAnthropicClient(cfg.APIKey, cfg.Model, cfg.BaseURL, nil), nil

	case config.ProviderBedrock:
		if cfg.Model == "" {
			return nil, apperrors.Configurationf("llm", "Bedrock model ID is required")
		}
		return NewBedrockClient(awsCfg, cfg.Model), nil

	case config.ProviderOpenAI:
		if cfg.APIKey == "" {
			return nil, apperrors.Configurationf("llm", "OpenAI API key is required")
		}
		return NewOpenAIClient(cfg.APIKey, cfg.Model, cfg.BaseURL, nil), nil

	case config.ProviderNone, "":
		return nil, nil

	default:
		return nil, apperrors.Configurationf("llm", "unknown provider: %s", cfg.Provider)
	}
}
