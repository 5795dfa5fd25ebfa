package llm

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/niseko-gazet/haystack/internal/config"
	"github.com/niseko-gazet/haystack/internal/logging"
	"github.com/niseko-gazet/haystack/internal/types"
)

type fakeProvider struct {
	name  string
	out   string
	err   error
	calls int
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Generate(ctx context.Context, req Request) (string, error) {
	f.calls++
	return f.out, f.err
}

func connRefused() error {
	return &url.Error{Op: "Post", URL: "http://localhost:11434/api/generate",
		Err: errors.New("connect: connection refused")}
}

func TestChain_LocalSuccess(t *testing.T) {
	local := &fakeProvider{name: "ollama", out: "local response"}
	cloud := &fakeProvider{name: "anthropic", out: "cloud response"}
	chain := NewChain(local, []Provider{cloud}, logging.Nop())

	out, err := chain.Generate(context.Background(), Request{Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "local response", out)
	assert.Equal(t, 1, local.calls)
	assert.Equal(t, 0, cloud.calls)
}

func TestChain_FallsBackWhenLocalUnreachable(t *testing.T) {
	local := &fakeProvider{name: "ollama", err: connRefused()}
	cloudA := &fakeProvider{name: "anthropic", out: "anthropic response"}
	cloudB := &fakeProvider{name: "openai", out: "openai response"}
	chain := NewChain(local, []Provider{cloudA, cloudB}, logging.Nop())

	out, err := chain.Generate(context.Background(), Request{Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "anthropic response", out)
	assert.Equal(t, 1, local.calls)
	assert.Equal(t, 1, cloudA.calls)
	assert.Equal(t, 0, cloudB.calls)
}

func TestChain_NoFallbackOnHTTPStatusError(t *testing.T) {
	// A reachable local instance returning 500 means the request
	// itself is bad or the model is broken. Retrying it on a paid
	// provider would just burn credits.
	local := &fakeProvider{name: "ollama",
		err: &StatusError{Provider: "ollama", Code: 500, Body: "model crashed"}}
	cloud := &fakeProvider{name: "anthropic", out: "cloud response"}
	chain := NewChain(local, []Provider{cloud}, logging.Nop())

	_, err := chain.Generate(context.Background(), Request{Prompt: "hi"})
	require.Error(t, err)
	assert.Equal(t, 0, cloud.calls)
}

func TestChain_SecondFallbackOnFirstCloudFailure(t *testing.T) {
	local := &fakeProvider{name: "ollama", err: connRefused()}
	cloudA := &fakeProvider{name: "anthropic", err: errors.New("overloaded")}
	cloudB := &fakeProvider{name: "openai", out: "openai response"}
	chain := NewChain(local, []Provider{cloudA, cloudB}, logging.Nop())

	out, err := chain.Generate(context.Background(), Request{Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "openai response", out)
}

func TestChain_AllUnavailable(t *testing.T) {
	local := &fakeProvider{name: "ollama", err: connRefused()}
	cloud := &fakeProvider{name: "anthropic", err: errors.New("bad key")}
	chain := NewChain(local, []Provider{cloud}, logging.Nop())

	_, err := chain.Generate(context.Background(), Request{Prompt: "hi"})
	assert.ErrorIs(t, err, ErrNoProviders)
}

func TestChain_NilLocal(t *testing.T) {
	cloud := &fakeProvider{name: "anthropic", out: "cloud response"}
	chain := NewChain(nil, []Provider{cloud}, logging.Nop())

	out, err := chain.Generate(context.Background(), Request{Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "cloud response", out)
}

func TestStripFences(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"```\n{\"a\": 1}\n```", `{"a": 1}`},
		{`{"a": 1}`, `{"a": 1}`},
		{"  ```json\n[1, 2]\n```  ", `[1, 2]`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StripFences(tt.in))
	}
}

func TestGenerateJSON(t *testing.T) {
	local := &fakeProvider{name: "ollama",
		out: "```json\n{\"relevance_score\": 0.8, \"topics\": [\"snow_conditions\"]}\n```"}
	chain := NewChain(local, nil, logging.Nop())

	var out struct {
		RelevanceScore float64  `json:"relevance_score"`
		Topics         []string `json:"topics"`
	}
	require.NoError(t, chain.GenerateJSON(context.Background(), Request{Prompt: "x"}, &out))
	assert.Equal(t, 0.8, out.RelevanceScore)
	assert.Equal(t, []string{"snow_conditions"}, out.Topics)
}

func TestGenerateJSON_BadOutputDoesNotFallBack(t *testing.T) {
	local := &fakeProvider{name: "ollama", out: "I cannot answer that."}
	cloud := &fakeProvider{name: "anthropic", out: `{"ok": true}`}
	chain := NewChain(local, []Provider{cloud}, logging.Nop())

	var out map[string]any
	err := chain.GenerateJSON(context.Background(), Request{Prompt: "x"}, &out)
	require.Error(t, err)
	assert.Equal(t, 0, cloud.calls)
}

func TestTranslateArticle_FallsBackToOriginals(t *testing.T) {
	local := &fakeProvider{name: "ollama", out: "not json"}
	chain := NewChain(local, nil, logging.Nop())

	tr := chain.TranslateArticle(context.Background(), "雪のニュース", "大雪が降りました")
	assert.Equal(t, "雪のニュース", tr.TitleEN)
	assert.Equal(t, "大雪が降りました", tr.BodyEN)
}

func TestOllama_Generate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		_, _ = w.Write([]byte(`{"response": "generated text"}`))
	}))
	defer srv.Close()

	o := NewOllama(config.OllamaConfig{BaseURL: srv.URL, Model: "qwen2.5-coder:7b"})
	out, err := o.Generate(context.Background(), Request{System: "sys", Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "generated text", out)
}

func TestOllama_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	o := NewOllama(config.OllamaConfig{BaseURL: srv.URL, Model: "missing"})
	_, err := o.Generate(context.Background(), Request{Prompt: "hi"})

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusNotFound, statusErr.Code)
	assert.False(t, isUnavailable(err))
}

func TestCheckHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tags", r.URL.Path)
		_, _ = w.Write([]byte(`{"models": [{"name": "qwen2.5-coder:7b-instruct"}]}`))
	}))
	defer srv.Close()

	cfg := config.LLMConfig{
		Ollama:    config.OllamaConfig{BaseURL: srv.URL, Model: "qwen2.5-coder:7b"},
		Anthropic: config.AnthropicConfig{APIKey: "sk-test", Model: "claude-haiku-4-5-20251001"},
		OpenAI:    config.OpenAIConfig{Model: "gpt-4o-mini"},
	}
	h := CheckHealth(context.Background(), cfg)

	assert.Equal(t, "connected", h.Providers["ollama"].Status)
	assert.True(t, h.Providers["ollama"].ModelAvailable)
	assert.Equal(t, "available", h.Providers["anthropic"].Status)
	assert.Equal(t, "not_configured", h.Providers["openai"].Status)
}

func TestCheckHealth_OllamaDown(t *testing.T) {
	cfg := config.LLMConfig{
		Ollama: config.OllamaConfig{BaseURL: "http://127.0.0.1:1", Model: "qwen2.5-coder:7b"},
	}
	h := CheckHealth(context.Background(), cfg)
	assert.Equal(t, "disconnected", h.Providers["ollama"].Status)
}

func TestClassifyBatchRequest_NumbersArticles(t *testing.T) {
	articles := []types.RawArticle{
		{Title: "Snow Report", SourceName: "Powder Blog", SourceKind: types.KindRSS, Language: "en", Body: "20cm"},
		{Title: "バス路線", SourceName: "Kutchan Town", SourceKind: types.KindScrape, Language: "ja", Body: "新路線"},
	}
	req := ClassifyBatchRequest(articles)
	assert.Contains(t, req.Prompt, "these 2 articles")
	assert.Contains(t, req.Prompt, "ARTICLE 1")
	assert.Contains(t, req.Prompt, "ARTICLE 2")
	assert.Contains(t, req.Prompt, "Snow Report")
	assert.Contains(t, req.Prompt, "バス路線")
}
