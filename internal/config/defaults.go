package config

const (
	defaultConfigPath     = "~/.config/embednotify/config.toml"
	defaultStateDir       = "~/.local/share/embednotify"
	defaultRequestTimeout = 30
	defaultLogFormat      = "console"
	defaultLogLevel       = "info"
	defaultHistoryKeep    = 30
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Webapp: Webapp{
			RequestTimeout: defaultRequestTimeout,
		},
		Paths: Paths{
			StateDir: defaultStateDir,
		},
		History: History{
			Enabled:       true,
			RetentionDays: defaultHistoryKeep,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
