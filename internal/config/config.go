package config

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

func LoadConfig() {
	viper.SetConfigName("config")        // name of config file (without extension)
	viper.SetConfigType("yaml")          // REQUIRED if the config file does not have the extension in the name
	viper.AddConfigPath("/etc/geogrid/") // path to look for the config file in
	viper.AddConfigPath(".")             // optionally look for config in the working directory
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Warn().Msg("Config file not found, relying on environment and defaults")
		} else {
			log.Panic().Err(err).Msg("Fatal error reading config file")
		}
	}
	SetDefaultConfig()
}

// SetDefaultConfig installs defaults for every setting the scan execution
// subsystem reads, matching the environment surface in spec.md §6.
func SetDefaultConfig() {
	// Logging
	viper.SetDefault("logging.console.level", "info")
	viper.SetDefault("logging.console.format", "pretty")
	viper.SetDefault("logging.file.enabled", true)
	viper.SetDefault("logging.file.path", "geogrid.log")
	viper.SetDefault("logging.file.level", "info")

	// Database
	viper.SetDefault("database.type", "sqlite")
	viper.SetDefault("database.url", "")
	viper.SetDefault("database.sqlite_path", "geogrid.db")

	// Grid
	viper.SetDefault("grid.default_size", 7)

	// Engines / API keys
	viper.SetDefault("engines.bing_search_api_key", "")
	viper.SetDefault("engines.google_places_api_key", "")
	viper.SetDefault("engines.enabled", []string{"bing_api", "google_search", "google_maps", "google_local_finder"})

	// Throttle defaults (spec.md §4.2), overridable per engine in code.
	viper.SetDefault("throttle.min_delay_ms", 2000)
	viper.SetDefault("throttle.max_delay_ms", 6000)
	viper.SetDefault("throttle.jitter_ms", 800)
	viper.SetDefault("throttle.max_per_hour", 60)
	viper.SetDefault("throttle.max_per_day", 400)
	viper.SetDefault("throttle.pause_on_captcha_hours", 24)

	// Stealth / proxy
	viper.SetDefault("proxy.list", "")
	viper.SetDefault("proxy.file", "")
	viper.SetDefault("proxy.cooldown_minutes", 30)

	// Queue
	viper.SetDefault("queue.google_group_daily_cap", 200)
	viper.SetDefault("queue.retry_delay_seconds", 60)

	// Monitors
	viper.SetDefault("monitor.single_scan_poll_seconds", 5)
	viper.SetDefault("monitor.single_scan_timeout_minutes", 30)
	viper.SetDefault("monitor.batch_poll_seconds", 15)
	viper.SetDefault("monitor.batch_timeout_hours", 6)

	// Application boundary
	viper.SetDefault("cors.origin", "*")
}
