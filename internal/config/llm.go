package config

// LLMConfig configures the LLM provider chain: a local Ollama instance
// first, with Anthropic and OpenAI as cloud fallbacks when the local
// instance is unreachable.
type LLMConfig struct {
	Ollama    OllamaConfig    `yaml:"ollama"`
	Anthropic AnthropicConfig `yaml:"anthropic"`
	OpenAI    OpenAIConfig    `yaml:"openai"`
}

// OllamaConfig points at the local Ollama instance.
type OllamaConfig struct {
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

// AnthropicConfig configures the first cloud fallback. Empty APIKey
// disables the provider.
type AnthropicConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

// OpenAIConfig configures the second cloud fallback. Empty APIKey
// disables the provider.
type OpenAIConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

func defaultLLMConfig() LLMConfig {
	return LLMConfig{
		Ollama: OllamaConfig{
			BaseURL: "http://localhost:11434",
			Model:   "qwen2.5-coder:7b",
		},
		Anthropic: AnthropicConfig{
			Model: "claude-haiku-4-5-20251001",
		},
		OpenAI: OpenAIConfig{
			Model: "gpt-4o-mini",
		},
	}
}

func (c *Config) applyLLMEnv() {
	envString("OLLAMA_BASE_URL", &c.LLM.Ollama.BaseURL)
	envString("OLLAMA_MODEL", &c.LLM.Ollama.Model)
	envString("ANTHROPIC_API_KEY", &c.LLM.Anthropic.APIKey)
	envString("ANTHROPIC_MODEL", &c.LLM.Anthropic.Model)
	envString("OPENAI_API_KEY", &c.LLM.OpenAI.APIKey)
	envString("OPENAI_MODEL", &c.LLM.OpenAI.Model)
}
