package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Schedule.MainIntervalMinutes != 15 {
		t.Errorf("expected MainIntervalMinutes=15, got %d", cfg.Schedule.MainIntervalMinutes)
	}
	if cfg.Thresholds.MinRelevance != 0.3 {
		t.Errorf("expected MinRelevance=0.3, got %f", cfg.Thresholds.MinRelevance)
	}
	if cfg.Thresholds.MinConfidence != 30 {
		t.Errorf("expected MinConfidence=30, got %d", cfg.Thresholds.MinConfidence)
	}
	if cfg.LLM.Ollama.BaseURL != "http://localhost:11434" {
		t.Errorf("unexpected ollama base URL: %s", cfg.LLM.Ollama.BaseURL)
	}
}

func TestConfig_SaveLoad(t *testing.T) {
	t.Setenv("STORE_URL", "")
	t.Setenv("MIN_RELEVANCE_SCORE", "")

	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg := DefaultConfig()
	cfg.Store.BaseURL = "https://db.example.com"
	cfg.Thresholds.MinRelevance = 0.4
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://db.example.com", loaded.Store.BaseURL)
	assert.Equal(t, 0.4, loaded.Thresholds.MinRelevance)
}

func TestConfig_LoadMissingFileUsesDefaults(t *testing.T) {
	loaded, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 60, loaded.Schedule.WeatherIntervalMinutes)
}

func TestEnvOverrides(t *testing.T) {
	t.Run("thresholds", func(t *testing.T) {
		t.Setenv("MIN_RELEVANCE_SCORE", "0.5")
		t.Setenv("MIN_CONFIDENCE_SCORE", "45")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, 0.5, cfg.Thresholds.MinRelevance)
		assert.Equal(t, 45, cfg.Thresholds.MinConfidence)
	})

	t.Run("cadences", func(t *testing.T) {
		t.Setenv("MAIN_POLL_INTERVAL_MINUTES", "5")
		t.Setenv("TIP_POLL_INTERVAL_MINUTES", "1")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, 5, cfg.Schedule.MainIntervalMinutes)
		assert.Equal(t, 1, cfg.Schedule.TipIntervalMinutes)
	})

	t.Run("llm keys", func(t *testing.T) {
		t.Setenv("ANTHROPIC_API_KEY", "ant-key")
		t.Setenv("OPENAI_API_KEY", "oa-key")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, "ant-key", cfg.LLM.Anthropic.APIKey)
		assert.Equal(t, "oa-key", cfg.LLM.OpenAI.APIKey)
	})

	t.Run("aggregation flag", func(t *testing.T) {
		t.Setenv("CONTENT_AGGREGATION_ENABLED", "true")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.True(t, cfg.Collect.AggregationEnabled)
	})

	t.Run("invalid numbers ignored", func(t *testing.T) {
		t.Setenv("MIN_RELEVANCE_SCORE", "not-a-number")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, 0.3, cfg.Thresholds.MinRelevance)
	})
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	assert.Error(t, cfg.Validate(), "missing store URL should fail")

	cfg.Store.BaseURL = "https://db.example.com"
	assert.NoError(t, cfg.Validate())
}
