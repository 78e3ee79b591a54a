package config

const (
	defaultDataDir       = "~/.local/share/rollq"
	defaultLogDir        = "~/.local/share/rollq/logs"
	defaultLogFormat     = "console"
	defaultLogLevel      = "info"
	defaultQueuePriority = "medium"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Queue: Queue{
			DefaultPriority: defaultQueuePriority,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
