package extension

import (
	"time"

	credits "github.com/xraph/credits"
	"github.com/xraph/credits/plugin"
	"github.com/xraph/credits/store"
)

// Option configures the Credits Forge extension.
type Option func(*Extension)

// WithStore sets the store for the credits engine.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithCreditsOption passes a credits.Option through to the underlying engine.
func WithCreditsOption(opt credits.Option) Option {
	return func(e *Extension) {
		e.creditsOpts = append(e.creditsOpts, opt)
	}
}

// WithPlugin registers a credits plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.creditsOpts = append(e.creditsOpts, credits.WithPlugin(p))
	}
}

// WithConfig sets the Forge extension configuration.
func WithConfig(cfg Config) Option {
	return func(e *Extension) { e.config = cfg }
}

// WithDisableMigrate prevents auto-migration on start.
func WithDisableMigrate() Option {
	return func(e *Extension) { e.config.DisableMigrate = true }
}

// WithDisableDeduction turns off credit reservation at admission time.
func WithDisableDeduction() Option {
	return func(e *Extension) { e.config.DisableDeduction = true }
}

// WithDisableLimits turns off spending-limit checks at admission time.
func WithDisableLimits() Option {
	return func(e *Extension) { e.config.DisableLimits = true }
}

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}

// WithMaxRetries bounds the compare-and-swap retry loop.
func WithMaxRetries(n int) Option {
	return func(e *Extension) { e.config.MaxRetries = n }
}

// WithReservationTTL sets how long reservations stay claimable.
func WithReservationTTL(d time.Duration) Option {
	return func(e *Extension) { e.config.ReservationTTL = d }
}

// WithSweepInterval sets how often the expiry sweeper runs.
func WithSweepInterval(d time.Duration) Option {
	return func(e *Extension) { e.config.SweepInterval = d }
}

// WithSweepBatchSize caps reservations reclaimed per sweep.
func WithSweepBatchSize(n int) Option {
	return func(e *Extension) { e.config.SweepBatchSize = n }
}
