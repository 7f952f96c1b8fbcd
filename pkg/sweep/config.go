package sweep

import "time"

// Config holds sweep scheduling.
type Config struct {
	Interval   time.Duration `env:"SWEEP_INTERVAL" envDefault:"15m"`
	RunTimeout time.Duration `env:"SWEEP_RUN_TIMEOUT" envDefault:"5m"`
	RunOnStart bool          `env:"SWEEP_RUN_ON_START" envDefault:"true"`
}

// DefaultConfig returns the same values as the env defaults.
func DefaultConfig() Config {
	return Config{
		Interval:   15 * time.Minute,
		RunTimeout: 5 * time.Minute,
		RunOnStart: true,
	}
}
