package collect

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/niseko-gazet/haystack/internal/config"
	"github.com/niseko-gazet/haystack/internal/logging"
	"github.com/niseko-gazet/haystack/internal/types"
)

func apiSource(apiType string) types.Source {
	return types.Source{
		ID:     "s3",
		Name:   "Weather API",
		Kind:   types.KindAPI,
		Active: true,
		Config: map[string]any{"api_type": apiType},
	}
}

func TestAPICollector_Weather(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "42.8614", r.URL.Query().Get("lat"))
		assert.Equal(t, "metric", r.URL.Query().Get("units"))
		_, _ = w.Write([]byte(`{
			"id": 2128295,
			"weather": [{"description": "heavy snow"}],
			"main": {"temp": -8.2, "feels_like": -14.0, "humidity": 92},
			"wind": {"speed": 6.5},
			"snow": {"1h": 4.0, "3h": 11.0}
		}`))
	}))
	defer srv.Close()

	c := NewAPICollector(config.CollectConfig{OpenWeatherKey: "ow-key"}, logging.Nop())
	c.openWeatherURL = srv.URL

	articles, errs := c.Collect(context.Background(), []types.Source{apiSource("openweather")})
	require.Empty(t, errs)
	require.Len(t, articles, 1)

	a := articles[0]
	assert.Contains(t, a.Title, "Heavy Snow")
	assert.Contains(t, a.Title, "-8.2")
	assert.Contains(t, a.Body, "Snowfall: 4.0mm (1h), 11.0mm (3h).")
	assert.Equal(t, types.LangEnglish, a.Language)
	assert.Equal(t, "openweather", a.Metadata["api_type"])
}

func TestAPICollector_WeatherNoSnowLine(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
			"id": 1,
			"weather": [{"description": "clear sky"}],
			"main": {"temp": 18.0, "feels_like": 17.5, "humidity": 40},
			"wind": {"speed": 2.0},
			"snow": {}
		}`))
	}))
	defer srv.Close()

	c := NewAPICollector(config.CollectConfig{OpenWeatherKey: "ow-key"}, logging.Nop())
	c.openWeatherURL = srv.URL

	articles, _ := c.Collect(context.Background(), []types.Source{apiSource("openweather")})
	require.Len(t, articles, 1)
	assert.NotContains(t, articles[0].Body, "Snowfall")
}

func TestAPICollector_WeatherNoKey(t *testing.T) {
	c := NewAPICollector(config.CollectConfig{}, logging.Nop())
	articles, errs := c.Collect(context.Background(), []types.Source{apiSource("openweather")})
	assert.Empty(t, articles)
	assert.Empty(t, errs)
}

func TestAPICollector_NewsAPI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Niseko OR Hokkaido", r.URL.Query().Get("q"))
		_, _ = w.Write([]byte(`{"articles": [
			{"title": "Niseko sees record visitors", "description": "Resort town reports a record season.", "url": "https://news.example/a", "publishedAt": "2026-01-08T00:00:00Z", "author": "Wire", "source": {"name": "Example Wire"}},
			{"title": "[Removed]", "description": "", "url": ""},
			{"title": "", "description": "no title", "url": ""}
		]}`))
	}))
	defer srv.Close()

	c := NewAPICollector(config.CollectConfig{NewsAPIKey: "na-key"}, logging.Nop())
	c.newsAPIURL = srv.URL

	articles, errs := c.Collect(context.Background(), []types.Source{apiSource("newsapi")})
	require.Empty(t, errs)
	require.Len(t, articles, 1)
	assert.Equal(t, "Niseko sees record visitors", articles[0].Title)
	assert.Equal(t, "Example Wire", articles[0].Metadata["source_name"])
}

func TestAPICollector_SearchVendorsGatedByFlag(t *testing.T) {
	// Tavily/Brave/Currents/GNews stay silent without the
	// aggregation flag, even with keys present.
	c := NewAPICollector(config.CollectConfig{
		AggregationEnabled: false,
		TavilyKey:          "k", BraveSearchKey: "k", CurrentsKey: "k", GNewsKey: "k",
	}, logging.Nop())

	for _, kind := range []string{"tavily", "brave", "currents", "gnews"} {
		articles, errs := c.Collect(context.Background(), []types.Source{apiSource(kind)})
		assert.Empty(t, articles, kind)
		assert.Empty(t, errs, kind)
	}
}

func TestAPICollector_GNews(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"articles": [
			{"title": "Hokkaido ski season opens", "description": "Resorts across Hokkaido opened this weekend.", "url": "https://gnews.example/a", "publishedAt": "2026-01-05T00:00:00Z", "source": {"name": "GN"}}
		]}`))
	}))
	defer srv.Close()

	c := NewAPICollector(config.CollectConfig{AggregationEnabled: true, GNewsKey: "g-key"}, logging.Nop())
	c.gnewsURL = srv.URL

	articles, errs := c.Collect(context.Background(), []types.Source{apiSource("gnews")})
	require.Empty(t, errs)
	require.Len(t, articles, 1)
	assert.Equal(t, "Hokkaido ski season opens", articles[0].Title)
}

func TestAPICollector_Generic(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data": {"items": [
			{"headline": "Open data release", "summary": "The town published new datasets.", "link": "https://town.example/d", "date": "2026-01-01"},
			{"headline": "", "summary": "skipped"}
		]}}`))
	}))
	defer srv.Close()

	source := apiSource("generic")
	source.URL = srv.URL
	source.Config = map[string]any{
		"api_type":   "generic",
		"items_path": "data.items",
		"title_key":  "headline",
		"body_key":   "summary",
		"url_key":    "link",
		"date_key":   "date",
	}

	c := NewAPICollector(config.CollectConfig{}, logging.Nop())
	articles, errs := c.Collect(context.Background(), []types.Source{source})
	require.Empty(t, errs)
	require.Len(t, articles, 1)
	assert.Equal(t, "Open data release", articles[0].Title)
	assert.Equal(t, "https://town.example/d", articles[0].SourceURL)
	assert.Equal(t, "2026-01-01", articles[0].PublishedAt)
}

func TestAPICollector_VendorErrorReported(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewAPICollector(config.CollectConfig{NewsAPIKey: "na-key"}, logging.Nop())
	c.newsAPIURL = srv.URL

	articles, errs := c.Collect(context.Background(), []types.Source{apiSource("newsapi")})
	assert.Empty(t, articles)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Message, "429")
}
