package llm

import (
	"fmt"

	"planpilot/internal/config"
	"planpilot/internal/models"
)

// Known provider endpoints. All of them are OpenAI wire-compatible.
var defaultBaseURLs = map[string]string{
	"openai": "https://api.openai.com/v1",
	"kimi":   "https://api.moonshot.cn/v1",
	"doubao": "https://ark.cn-beijing.volces.com/api/v3",
}

// FromConfig builds the default provider from environment configuration.
// Returns nil (no error) when no API key is configured, so callers can fall
// back to a canned reply instead of failing startup.
func FromConfig(cfg *config.Config) (Provider, error) {
	if cfg.LLMAPIKey == "" {
		return nil, nil
	}

	baseURL := cfg.LLMBaseURL
	if baseURL == "" {
		var ok bool
		baseURL, ok = defaultBaseURLs[cfg.LLMProvider]
		if !ok {
			return nil, fmt.Errorf("unknown LLM provider %q and no LLM_BASE_URL set", cfg.LLMProvider)
		}
	}

	return NewOpenAICompatible(cfg.LLMProvider, baseURL, cfg.LLMAPIKey, cfg.LLMModel), nil
}

// FromProviderConfig builds a provider from a providers.json entry.
func FromProviderConfig(pc models.ProviderConfig) Provider {
	baseURL := pc.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURLs[pc.Name]
	}
	return NewOpenAICompatible(pc.Name, baseURL, pc.APIKey, pc.Model)
}

// Default picks the default provider out of a providers config, preferring
// the named default, then the first enabled entry.
func Default(pcfg *models.ProvidersConfig) Provider {
	if pcfg == nil {
		return nil
	}
	for _, pc := range pcfg.Providers {
		if pc.Enabled && pc.Name == pcfg.Default {
			return FromProviderConfig(pc)
		}
	}
	for _, pc := range pcfg.Providers {
		if pc.Enabled {
			return FromProviderConfig(pc)
		}
	}
	return nil
}
