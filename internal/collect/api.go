package collect

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/niseko-gazet/haystack/internal/config"
	"github.com/niseko-gazet/haystack/internal/textutil"
	"github.com/niseko-gazet/haystack/internal/types"
)

// Niseko village center, used when a weather source configures no
// coordinates.
const (
	defaultLat = 42.8614
	defaultLon = 140.6882
)

const defaultAPIEntries = 10

// APICollector fetches from structured vendor endpoints: weather,
// news aggregators and generic JSON APIs. Each source names its
// vendor in config under api_type.
type APICollector struct {
	cfg   config.CollectConfig
	httpc *http.Client
	log   *zap.Logger

	// Endpoint bases, overridable in tests.
	openWeatherURL string
	newsAPIURL     string
	tavilyURL      string
	braveURL       string
	currentsURL    string
	gnewsURL       string
}

// NewAPICollector builds the API collector.
func NewAPICollector(cfg config.CollectConfig, log *zap.Logger) *APICollector {
	return &APICollector{
		cfg:   cfg,
		httpc: &http.Client{Timeout: 30 * time.Second},
		log:   log.Named("api"),

		openWeatherURL: "https://api.openweathermap.org/data/2.5/weather",
		newsAPIURL:     "https://newsapi.org/v2/everything",
		tavilyURL:      "https://api.tavily.com/search",
		braveURL:       "https://api.search.brave.com/res/v1/web/search",
		currentsURL:    "https://api.currentsapi.services/v1/search",
		gnewsURL:       "https://gnews.io/api/v4/search",
	}
}

func (c *APICollector) Kind() string { return types.KindAPI }

func (c *APICollector) Collect(ctx context.Context, sources []types.Source) ([]types.RawArticle, []types.CollectError) {
	var articles []types.RawArticle
	var errs []types.CollectError

	for _, source := range sources {
		var fetched []types.RawArticle
		var err error

		switch cfgString(source, "api_type", "generic") {
		case "openweather":
			fetched, err = c.fetchWeather(ctx, source)
		case "newsapi":
			fetched, err = c.fetchNewsAPI(ctx, source)
		case "tavily":
			fetched, err = c.fetchTavily(ctx, source)
		case "brave":
			fetched, err = c.fetchBrave(ctx, source)
		case "currents":
			fetched, err = c.fetchCurrents(ctx, source)
		case "gnews":
			fetched, err = c.fetchGNews(ctx, source)
		default:
			fetched, err = c.fetchGeneric(ctx, source)
		}

		if err != nil {
			c.log.Error("api fetch failed",
				zap.String("source", source.Name), zap.Error(err))
			errs = append(errs, makeError(source, c.Kind(), err))
			continue
		}
		articles = append(articles, fetched...)
		c.log.Info("api collected",
			zap.String("source", source.Name), zap.Int("count", len(fetched)))
	}
	return articles, errs
}

func (c *APICollector) getJSON(ctx context.Context, rawURL string, params url.Values, headers map[string]string, out any) error {
	u := rawURL
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return c.doJSON(req, out)
}

func (c *APICollector) postJSON(ctx context.Context, rawURL string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.doJSON(req, out)
}

func (c *APICollector) doJSON(req *http.Request, out any) error {
	return doJSONRequest(c.httpc, req, out)
}

func (c *APICollector) fetchWeather(ctx context.Context, source types.Source) ([]types.RawArticle, error) {
	if c.cfg.OpenWeatherKey == "" {
		c.log.Warn("no OpenWeather API key configured")
		return nil, nil
	}

	lat := cfgString(source, "lat", fmt.Sprint(defaultLat))
	lon := cfgString(source, "lon", fmt.Sprint(defaultLon))
	if v, ok := source.Config["lat"].(float64); ok {
		lat = fmt.Sprint(v)
	}
	if v, ok := source.Config["lon"].(float64); ok {
		lon = fmt.Sprint(v)
	}

	params := url.Values{}
	params.Set("lat", lat)
	params.Set("lon", lon)
	params.Set("appid", c.cfg.OpenWeatherKey)
	params.Set("units", "metric")

	var data struct {
		ID      int `json:"id"`
		Weather []struct {
			Description string `json:"description"`
		} `json:"weather"`
		Main struct {
			Temp      float64 `json:"temp"`
			FeelsLike float64 `json:"feels_like"`
			Humidity  int     `json:"humidity"`
		} `json:"main"`
		Wind struct {
			Speed float64 `json:"speed"`
		} `json:"wind"`
		Snow struct {
			OneH   float64 `json:"1h"`
			ThreeH float64 `json:"3h"`
		} `json:"snow"`
	}
	if err := c.getJSON(ctx, c.openWeatherURL, params, nil, &data); err != nil {
		return nil, err
	}

	var desc string
	if len(data.Weather) > 0 {
		desc = data.Weather[0].Description
	}

	title := fmt.Sprintf("Niseko Weather: %s, %.1f°C", titleCase(desc), data.Main.Temp)
	parts := []string{
		fmt.Sprintf("Current conditions in Niseko: %s.", desc),
		fmt.Sprintf("Temperature: %.1f°C (feels like %.1f°C).", data.Main.Temp, data.Main.FeelsLike),
		fmt.Sprintf("Humidity: %d%%.", data.Main.Humidity),
		fmt.Sprintf("Wind: %.1f m/s.", data.Wind.Speed),
	}
	if data.Snow.OneH > 0 || data.Snow.ThreeH > 0 {
		parts = append(parts, fmt.Sprintf("Snowfall: %.1fmm (1h), %.1fmm (3h).", data.Snow.OneH, data.Snow.ThreeH))
	}

	return []types.RawArticle{
		makeArticle(source, title, strings.Join(parts, " "),
			fmt.Sprintf("https://openweathermap.org/city/%d", data.ID),
			time.Now().UTC().Format(time.RFC3339), "", types.LangEnglish,
			map[string]any{
				"api_type": "openweather",
				"snow_1h":  data.Snow.OneH,
				"snow_3h":  data.Snow.ThreeH,
			}),
	}, nil
}

func (c *APICollector) fetchNewsAPI(ctx context.Context, source types.Source) ([]types.RawArticle, error) {
	if c.cfg.NewsAPIKey == "" {
		c.log.Warn("no NewsAPI key configured")
		return nil, nil
	}

	params := url.Values{}
	params.Set("q", cfgString(source, "query", "Niseko OR Hokkaido"))
	params.Set("apiKey", c.cfg.NewsAPIKey)
	params.Set("pageSize", fmt.Sprint(cfgInt(source, "max_entries", defaultAPIEntries)))
	params.Set("sortBy", "publishedAt")
	params.Set("language", "en")

	var data struct {
		Articles []struct {
			Title       string `json:"title"`
			Description string `json:"description"`
			Content     string `json:"content"`
			URL         string `json:"url"`
			PublishedAt string `json:"publishedAt"`
			Author      string `json:"author"`
			Source      struct {
				Name string `json:"name"`
			} `json:"source"`
		} `json:"articles"`
	}
	if err := c.getJSON(ctx, c.newsAPIURL, params, nil, &data); err != nil {
		return nil, err
	}

	var articles []types.RawArticle
	for _, item := range data.Articles {
		title := strings.TrimSpace(item.Title)
		if title == "" || title == "[Removed]" {
			continue
		}
		body := item.Description
		if body == "" {
			body = item.Content
		}
		if body == "" {
			body = title
		}
		articles = append(articles, makeArticle(source, title, body, item.URL,
			item.PublishedAt, item.Author, textutil.DetectLanguage(body),
			map[string]any{
				"api_type":    "newsapi",
				"source_name": item.Source.Name,
			}))
	}
	return articles, nil
}

func (c *APICollector) fetchTavily(ctx context.Context, source types.Source) ([]types.RawArticle, error) {
	if !c.cfg.AggregationEnabled || c.cfg.TavilyKey == "" {
		return nil, nil
	}

	body := map[string]any{
		"api_key":        c.cfg.TavilyKey,
		"query":          cfgString(source, "query", "Niseko OR Kutchan OR Hokkaido ski"),
		"max_results":    cfgInt(source, "max_entries", defaultAPIEntries),
		"search_depth":   "basic",
		"include_answer": false,
	}

	var data struct {
		Results []struct {
			Title         string  `json:"title"`
			Content       string  `json:"content"`
			URL           string  `json:"url"`
			PublishedDate string  `json:"published_date"`
			Score         float64 `json:"score"`
		} `json:"results"`
	}
	if err := c.postJSON(ctx, c.tavilyURL, body, &data); err != nil {
		return nil, err
	}

	var articles []types.RawArticle
	for _, item := range data.Results {
		title := strings.TrimSpace(item.Title)
		if title == "" {
			continue
		}
		text := item.Content
		if text == "" {
			text = title
		}
		articles = append(articles, makeArticle(source, title, text, item.URL,
			item.PublishedDate, "", textutil.DetectLanguage(text),
			map[string]any{"api_type": "tavily", "score": item.Score}))
	}
	return articles, nil
}

func (c *APICollector) fetchBrave(ctx context.Context, source types.Source) ([]types.RawArticle, error) {
	if !c.cfg.AggregationEnabled || c.cfg.BraveSearchKey == "" {
		return nil, nil
	}

	params := url.Values{}
	params.Set("q", cfgString(source, "query", "Niseko OR Kutchan OR Hokkaido ski"))
	params.Set("count", fmt.Sprint(cfgInt(source, "max_entries", defaultAPIEntries)))

	headers := map[string]string{
		"X-Subscription-Token": c.cfg.BraveSearchKey,
		"Accept":               "application/json",
	}

	var data struct {
		Web struct {
			Results []struct {
				Title       string `json:"title"`
				Description string `json:"description"`
				URL         string `json:"url"`
				PageAge     string `json:"page_age"`
			} `json:"results"`
		} `json:"web"`
	}
	if err := c.getJSON(ctx, c.braveURL, params, headers, &data); err != nil {
		return nil, err
	}

	var articles []types.RawArticle
	for _, item := range data.Web.Results {
		title := strings.TrimSpace(item.Title)
		if title == "" {
			continue
		}
		body := item.Description
		if body == "" {
			body = title
		}
		articles = append(articles, makeArticle(source, title, body, item.URL,
			item.PageAge, "", textutil.DetectLanguage(body),
			map[string]any{"api_type": "brave"}))
	}
	return articles, nil
}

func (c *APICollector) fetchCurrents(ctx context.Context, source types.Source) ([]types.RawArticle, error) {
	if !c.cfg.AggregationEnabled || c.cfg.CurrentsKey == "" {
		return nil, nil
	}

	params := url.Values{}
	params.Set("apiKey", c.cfg.CurrentsKey)
	params.Set("keywords", cfgString(source, "query", "Niseko OR Kutchan OR Hokkaido"))
	params.Set("language", "en")

	var data struct {
		News []struct {
			Title       string `json:"title"`
			Description string `json:"description"`
			URL         string `json:"url"`
			Published   string `json:"published"`
			Author      string `json:"author"`
			Category    any    `json:"category"`
		} `json:"news"`
	}
	if err := c.getJSON(ctx, c.currentsURL, params, nil, &data); err != nil {
		return nil, err
	}

	var articles []types.RawArticle
	for _, item := range data.News {
		title := strings.TrimSpace(item.Title)
		if title == "" {
			continue
		}
		body := item.Description
		if body == "" {
			body = title
		}
		articles = append(articles, makeArticle(source, title, body, item.URL,
			item.Published, item.Author, textutil.DetectLanguage(body),
			map[string]any{"api_type": "currents", "category": item.Category}))
	}
	return articles, nil
}

func (c *APICollector) fetchGNews(ctx context.Context, source types.Source) ([]types.RawArticle, error) {
	if !c.cfg.AggregationEnabled || c.cfg.GNewsKey == "" {
		return nil, nil
	}

	params := url.Values{}
	params.Set("token", c.cfg.GNewsKey)
	params.Set("q", cfgString(source, "query", "Niseko OR Kutchan OR Hokkaido"))
	params.Set("max", fmt.Sprint(cfgInt(source, "max_entries", defaultAPIEntries)))
	params.Set("lang", "en")

	var data struct {
		Articles []struct {
			Title       string `json:"title"`
			Description string `json:"description"`
			Content     string `json:"content"`
			URL         string `json:"url"`
			PublishedAt string `json:"publishedAt"`
			Source      struct {
				Name string `json:"name"`
			} `json:"source"`
		} `json:"articles"`
	}
	if err := c.getJSON(ctx, c.gnewsURL, params, nil, &data); err != nil {
		return nil, err
	}

	var articles []types.RawArticle
	for _, item := range data.Articles {
		title := strings.TrimSpace(item.Title)
		if title == "" {
			continue
		}
		body := item.Description
		if body == "" {
			body = item.Content
		}
		if body == "" {
			body = title
		}
		articles = append(articles, makeArticle(source, title, body, item.URL,
			item.PublishedAt, item.Source.Name, textutil.DetectLanguage(body),
			map[string]any{"api_type": "gnews", "source_name": item.Source.Name}))
	}
	return articles, nil
}

// fetchGeneric pulls from an arbitrary JSON endpoint, walking the
// configured items_path and key names.
func (c *APICollector) fetchGeneric(ctx context.Context, source types.Source) ([]types.RawArticle, error) {
	var data any
	if err := c.getJSON(ctx, source.URL, nil, nil, &data); err != nil {
		return nil, err
	}

	items := data
	for _, key := range strings.Split(cfgString(source, "items_path", ""), ".") {
		if key == "" {
			continue
		}
		m, ok := items.(map[string]any)
		if !ok {
			break
		}
		items = m[key]
	}

	list, ok := items.([]any)
	if !ok {
		list = []any{items}
	}

	titleKey := cfgString(source, "title_key", "title")
	bodyKey := cfgString(source, "body_key", "description")
	urlKey := cfgString(source, "url_key", "url")
	dateKey := cfgString(source, "date_key", "published_at")
	maxEntries := cfgInt(source, "max_entries", defaultAPIEntries)

	var articles []types.RawArticle
	for _, raw := range list {
		if len(articles) >= maxEntries {
			break
		}
		item, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		title := strings.TrimSpace(stringValue(item[titleKey]))
		if title == "" {
			continue
		}
		body := stringValue(item[bodyKey])
		if body == "" {
			body = title
		}
		itemURL := stringValue(item[urlKey])
		if itemURL == "" {
			itemURL = source.URL
		}
		articles = append(articles, makeArticle(source, title, body, itemURL,
			stringValue(item[dateKey]), "", textutil.DetectLanguage(body),
			map[string]any{"api_type": "generic"}))
	}
	return articles, nil
}

func stringValue(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
