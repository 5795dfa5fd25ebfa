package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/niseko-gazet/haystack/internal/config"
)

const healthTimeout = 10 * time.Second

// ProviderHealth describes one provider's availability.
type ProviderHealth struct {
	Status         string `json:"status"`
	Model          string `json:"model"`
	ModelAvailable bool   `json:"model_available,omitempty"`
	Error          string `json:"error,omitempty"`
}

// Health is the result of a provider availability check.
type Health struct {
	Providers map[string]ProviderHealth `json:"providers"`
}

// CheckHealth probes each configured provider. The local instance is
// queried for its installed models; cloud providers only report
// whether a key is configured, since a cheap liveness probe against
// them is not worth a billable request.
func CheckHealth(ctx context.Context, cfg config.LLMConfig) Health {
	h := Health{Providers: make(map[string]ProviderHealth)}
	h.Providers["ollama"] = checkOllama(ctx, cfg.Ollama)

	anthropicStatus := "not_configured"
	if cfg.Anthropic.APIKey != "" {
		anthropicStatus = "available"
	}
	h.Providers["anthropic"] = ProviderHealth{Status: anthropicStatus, Model: cfg.Anthropic.Model}

	openaiStatus := "not_configured"
	if cfg.OpenAI.APIKey != "" {
		openaiStatus = "available"
	}
	h.Providers["openai"] = ProviderHealth{Status: openaiStatus, Model: cfg.OpenAI.Model}

	return h
}

func checkOllama(ctx context.Context, cfg config.OllamaConfig) ProviderHealth {
	ph := ProviderHealth{Status: "disconnected", Model: cfg.Model}

	httpc := &http.Client{Timeout: healthTimeout}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.BaseURL+"/api/tags", nil)
	if err != nil {
		ph.Error = err.Error()
		return ph
	}

	resp, err := httpc.Do(req)
	if err != nil {
		ph.Error = "cannot connect to Ollama"
		return ph
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		ph.Status = "error"
		ph.Error = fmt.Sprintf("status %d", resp.StatusCode)
		return ph
	}

	var tags struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	body, err := io.ReadAll(resp.Body)
	if err == nil {
		err = json.Unmarshal(body, &tags)
	}
	if err != nil {
		ph.Status = "error"
		ph.Error = err.Error()
		return ph
	}

	ph.Status = "connected"
	for _, m := range tags.Models {
		if strings.Contains(m.Name, cfg.Model) {
			ph.ModelAvailable = true
			break
		}
	}
	return ph
}
