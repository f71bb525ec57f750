package models

// ProviderConfig describes one OpenAI-compatible LLM endpoint.
// OpenAI, Kimi and Doubao all speak the same /chat/completions wire format,
// so a single config shape covers every provider we talk to.
type ProviderConfig struct {
	Name    string `json:"name"`
	BaseURL string `json:"base_url"`
	APIKey  string `json:"api_key,omitempty"`
	Model   string `json:"model"`
	Enabled bool   `json:"enabled"`
}

// ProvidersConfig is the on-disk providers.json shape.
type ProvidersConfig struct {
	Default   string           `json:"default"`
	Providers []ProviderConfig `json:"providers"`
}
