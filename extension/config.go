package extension

import "time"

// Config holds the Credits extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.credits" or "credits" keys).
type Config struct {
	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// DisableDeduction turns off credit reservation at admission time.
	// Spending limits are still enforced unless DisableLimits is also set.
	DisableDeduction bool `json:"disable_deduction" mapstructure:"disable_deduction" yaml:"disable_deduction"`

	// DisableLimits turns off spending-limit checks at admission time.
	DisableLimits bool `json:"disable_limits" mapstructure:"disable_limits" yaml:"disable_limits"`

	// MaxRetries bounds the compare-and-swap retry loop (default: 3).
	MaxRetries int `json:"max_retries" mapstructure:"max_retries" yaml:"max_retries"`

	// ReservationTTL is how long a reservation stays claimable before the
	// sweeper reclaims it (default: 15m).
	ReservationTTL time.Duration `json:"reservation_ttl" mapstructure:"reservation_ttl" yaml:"reservation_ttl"`

	// SweepInterval is how often the expiry sweeper runs (default: 1m).
	SweepInterval time.Duration `json:"sweep_interval" mapstructure:"sweep_interval" yaml:"sweep_interval"`

	// SweepBatchSize caps reservations reclaimed per sweep (default: 100).
	SweepBatchSize int `json:"sweep_batch_size" mapstructure:"sweep_batch_size" yaml:"sweep_batch_size"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxRetries:     3,
		ReservationTTL: 15 * time.Minute,
		SweepInterval:  time.Minute,
		SweepBatchSize: 100,
	}
}
