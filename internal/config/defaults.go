package config

const (
	defaultDataDir                = "~/.local/share/medannotate"
	defaultAPIBind                = "127.0.0.1:7590"
	defaultLogFormat              = "console"
	defaultLogLevel               = "info"
	defaultLeaseTimeoutSeconds    = 0
	defaultReclaimIntervalSeconds = 60
	defaultClaimAttempts          = 5
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			APIBind: defaultAPIBind,
		},
		Assignment: Assignment{
			LeaseTimeoutSeconds:    defaultLeaseTimeoutSeconds,
			ReclaimIntervalSeconds: defaultReclaimIntervalSeconds,
			ClaimAttempts:          defaultClaimAttempts,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
