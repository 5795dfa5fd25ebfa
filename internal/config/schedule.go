package config

// ScheduleConfig holds per-cycle poll cadences in minutes. The deep
// scrape cycle is fixed at six hours and not configurable.
type ScheduleConfig struct {
	MainIntervalMinutes    int `yaml:"main_interval_minutes"`
	WeatherIntervalMinutes int `yaml:"weather_interval_minutes"`
	TipIntervalMinutes     int `yaml:"tip_interval_minutes"`
	SocialIntervalMinutes  int `yaml:"social_interval_minutes"`
}

// DeepScrapeIntervalHours is the fixed cadence of the heavy-source
// scrape cycle.
const DeepScrapeIntervalHours = 6

func defaultScheduleConfig() ScheduleConfig {
	return ScheduleConfig{
		MainIntervalMinutes:    15,
		WeatherIntervalMinutes: 60,
		TipIntervalMinutes:     5,
		SocialIntervalMinutes:  30,
	}
}

func (c *Config) applyScheduleEnv() {
	envInt("MAIN_POLL_INTERVAL_MINUTES", &c.Schedule.MainIntervalMinutes)
	envInt("WEATHER_POLL_INTERVAL_MINUTES", &c.Schedule.WeatherIntervalMinutes)
	envInt("TIP_POLL_INTERVAL_MINUTES", &c.Schedule.TipIntervalMinutes)
	envInt("SOCIAL_POLL_INTERVAL_MINUTES", &c.Schedule.SocialIntervalMinutes)
}
