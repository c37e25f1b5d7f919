// Package extension provides the Forge extension adapter for Credits.
//
// It implements the forge.Extension interface to integrate Credits
// into a Forge application with automatic dependency discovery,
// DI registration, and lifecycle management.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.credits" or "credits" keys.
package extension

import (
	"context"
	"errors"

	"github.com/xraph/forge"
	"github.com/xraph/vessel"

	credits "github.com/xraph/credits"
	"github.com/xraph/credits/store"
	"github.com/xraph/credits/store/memory"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "credits"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Prepaid credit reservation and ledger engine"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts Credits as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config      Config
	engine      *credits.Credits
	store       store.Store
	creditsOpts []credits.Option
}

// New creates a new Credits Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Engine returns the underlying Credits instance.
// This is nil until Register is called.
func (e *Extension) Engine() *credits.Credits { return e.engine }

// Register implements [forge.Extension]. It loads configuration,
// initializes the credits engine, and registers it in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	// Use memory store if no store was provided programmatically.
	if e.store == nil {
		e.store = memory.New()
	}

	eng := credits.New(e.store, e.buildCreditsOpts()...)
	e.engine = eng

	return vessel.Provide(fapp.Container(), func() (*credits.Credits, error) {
		return e.engine, nil
	})
}

// Start implements [forge.Extension].
func (e *Extension) Start(ctx context.Context) error {
	if e.engine == nil {
		return errors.New("credits: extension not initialized")
	}

	if !e.config.DisableMigrate {
		if err := e.engine.Start(ctx); err != nil {
			return err
		}
	}

	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension].
func (e *Extension) Stop(_ context.Context) error {
	if e.engine != nil {
		if err := e.engine.Stop(); err != nil {
			e.MarkStopped()
			return err
		}
	}
	e.MarkStopped()
	return nil
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.store == nil {
		return errors.New("credits: store not initialized")
	}
	return e.store.Ping(ctx)
}

// buildCreditsOpts constructs credits.Option values from the resolved config.
func (e *Extension) buildCreditsOpts() []credits.Option {
	opts := make([]credits.Option, 0, len(e.creditsOpts)+4)

	if e.config.MaxRetries > 0 {
		opts = append(opts, credits.WithMaxRetries(e.config.MaxRetries))
	}
	if e.config.ReservationTTL > 0 {
		opts = append(opts, credits.WithReservationTTL(e.config.ReservationTTL))
	}
	if e.config.SweepInterval > 0 && e.config.SweepBatchSize > 0 {
		opts = append(opts, credits.WithSweepConfig(e.config.SweepInterval, e.config.SweepBatchSize))
	}
	if e.config.DisableDeduction {
		opts = append(opts, credits.WithDeductCredits(false))
	}
	if e.config.DisableLimits {
		opts = append(opts, credits.WithEnforceLimits(false))
	}

	// Append any pass-through credits options.
	opts = append(opts, e.creditsOpts...)

	return opts
}

// --- Config Loading (mirrors grove/shield extension pattern) ---

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	// Try loading from config file.
	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("credits: configuration is required but not found in config files; " +
				"ensure 'extensions.credits' or 'credits' key exists in your config")
		}

		// Use programmatic config merged with defaults.
		e.config = e.mergeWithDefaults(programmaticConfig)
	} else {
		// Config loaded from YAML -- merge with programmatic options.
		e.config = e.mergeConfigurations(fileConfig, programmaticConfig)
	}

	e.Logger().Debug("credits: configuration loaded",
		forge.F("disable_migrate", e.config.DisableMigrate),
		forge.F("disable_deduction", e.config.DisableDeduction),
		forge.F("disable_limits", e.config.DisableLimits),
		forge.F("max_retries", e.config.MaxRetries),
		forge.F("reservation_ttl", e.config.ReservationTTL),
		forge.F("sweep_interval", e.config.SweepInterval),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()
	var cfg Config

	// Try "extensions.credits" first (namespaced pattern).
	if cm.IsSet("extensions.credits") {
		if err := cm.Bind("extensions.credits", &cfg); err == nil {
			e.Logger().Debug("credits: loaded config from file",
				forge.F("key", "extensions.credits"),
			)
			return cfg, true
		}
		e.Logger().Warn("credits: failed to bind extensions.credits config",
			forge.F("error", "bind failed"),
		)
	}

	// Try legacy "credits" key.
	if cm.IsSet("credits") {
		if err := cm.Bind("credits", &cfg); err == nil {
			e.Logger().Debug("credits: loaded config from file",
				forge.F("key", "credits"),
			)
			return cfg, true
		}
		e.Logger().Warn("credits: failed to bind credits config",
			forge.F("error", "bind failed"),
		)
	}

	return Config{}, false
}

// mergeWithDefaults fills zero-valued fields with defaults.
func (e *Extension) mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = defaults.MaxRetries
	}
	if cfg.ReservationTTL == 0 {
		cfg.ReservationTTL = defaults.ReservationTTL
	}
	if cfg.SweepInterval == 0 {
		cfg.SweepInterval = defaults.SweepInterval
	}
	if cfg.SweepBatchSize == 0 {
		cfg.SweepBatchSize = defaults.SweepBatchSize
	}
	return cfg
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML config takes precedence for most fields; programmatic bool flags fill gaps.
func (e *Extension) mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	// Programmatic bool flags override when true.
	if programmaticConfig.DisableMigrate {
		yamlConfig.DisableMigrate = true
	}
	if programmaticConfig.DisableDeduction {
		yamlConfig.DisableDeduction = true
	}
	if programmaticConfig.DisableLimits {
		yamlConfig.DisableLimits = true
	}

	// Duration/int fields: YAML takes precedence, programmatic fills gaps.
	if yamlConfig.MaxRetries == 0 && programmaticConfig.MaxRetries != 0 {
		yamlConfig.MaxRetries = programmaticConfig.MaxRetries
	}
	if yamlConfig.ReservationTTL == 0 && programmaticConfig.ReservationTTL != 0 {
		yamlConfig.ReservationTTL = programmaticConfig.ReservationTTL
	}
	if yamlConfig.SweepInterval == 0 && programmaticConfig.SweepInterval != 0 {
		yamlConfig.SweepInterval = programmaticConfig.SweepInterval
	}
	if yamlConfig.SweepBatchSize == 0 && programmaticConfig.SweepBatchSize != 0 {
		yamlConfig.SweepBatchSize = programmaticConfig.SweepBatchSize
	}

	// Fill remaining zeros with defaults.
	return e.mergeWithDefaults(yamlConfig)
}
