package config

// UserAgent identifies the crawler on all outbound source HTTP
// requests, with a public contact URL per crawler etiquette.
const UserAgent = "NisekoGazetBot/1.0 (+https://niseko-gazet.vercel.app)"

// CollectConfig holds collector feature flags and vendor API keys.
type CollectConfig struct {
	// AggregationEnabled gates the social collector and the
	// web-search API variants.
	AggregationEnabled bool `yaml:"aggregation_enabled"`

	OpenWeatherKey string `yaml:"openweather_key"`
	NewsAPIKey     string `yaml:"newsapi_key"`
	TavilyKey      string `yaml:"tavily_key"`
	BraveSearchKey string `yaml:"brave_search_key"`
	CurrentsKey    string `yaml:"currents_key"`
	GNewsKey       string `yaml:"gnews_key"`
}

func defaultCollectConfig() CollectConfig {
	return CollectConfig{}
}

func (c *Config) applyCollectEnv() {
	envBool("CONTENT_AGGREGATION_ENABLED", &c.Collect.AggregationEnabled)
	envString("OPENWEATHER_API_KEY", &c.Collect.OpenWeatherKey)
	envString("NEWSAPI_KEY", &c.Collect.NewsAPIKey)
	envString("TAVILY_API_KEY", &c.Collect.TavilyKey)
	envString("BRAVE_SEARCH_API_KEY", &c.Collect.BraveSearchKey)
	envString("CURRENTS_API_KEY", &c.Collect.CurrentsKey)
	envString("GNEWS_API_KEY", &c.Collect.GNewsKey)
}
