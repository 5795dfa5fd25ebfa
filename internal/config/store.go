package config

// StoreConfig points at the REST surface of the pipeline database
// (source feeds, crawl history, runs, moderation queue, field notes).
type StoreConfig struct {
	BaseURL    string `yaml:"base_url"`
	ServiceKey string `yaml:"service_key"`
}

// EditorialConfig configures the downstream editorial API and the bot
// identity Haystack acts as.
type EditorialConfig struct {
	BaseURL     string `yaml:"base_url"`
	BotEmail    string `yaml:"bot_email"`
	BotPassword string `yaml:"bot_password"`
}

func defaultStoreConfig() StoreConfig {
	return StoreConfig{}
}

func defaultEditorialConfig() EditorialConfig {
	return EditorialConfig{
		BaseURL:  "http://localhost:3000",
		BotEmail: "haystack-bot@niseko-gazet.local",
	}
}

func (c *Config) applyStoreEnv() {
	envString("STORE_URL", &c.Store.BaseURL)
	envString("STORE_SERVICE_KEY", &c.Store.ServiceKey)
	envString("EDITORIAL_API_URL", &c.Editorial.BaseURL)
	envString("HAYSTACK_BOT_EMAIL", &c.Editorial.BotEmail)
	envString("HAYSTACK_BOT_PASSWORD", &c.Editorial.BotPassword)
}
