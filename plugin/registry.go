package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"
)

// Registry manages all registered plugins and provides efficient dispatch.
// It uses type-cached discovery for O(1) dispatch performance.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger

	// Type-cached plugin lists for efficient dispatch
	onInit                  []OnInit
	onShutdown              []OnShutdown
	onReservationCreated    []OnReservationCreated
	onReservationAdjusted   []OnReservationAdjusted
	onReservationRefunded   []OnReservationRefunded
	onReservationExpired    []OnReservationExpired
	onInsufficientCredits   []OnInsufficientCredits
	onSpendingLimitExceeded []OnSpendingLimitExceeded
	onBufferCommitted       []OnBufferCommitted
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger: slog.Default(),
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Check for duplicate
	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	// Type-switch to cache interfaces
	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
	}
	if v, ok := p.(OnReservationCreated); ok {
		r.onReservationCreated = append(r.onReservationCreated, v)
	}
	if v, ok := p.(OnReservationAdjusted); ok {
		r.onReservationAdjusted = append(r.onReservationAdjusted, v)
	}
	if v, ok := p.(OnReservationRefunded); ok {
		r.onReservationRefunded = append(r.onReservationRefunded, v)
	}
	if v, ok := p.(OnReservationExpired); ok {
		r.onReservationExpired = append(r.onReservationExpired, v)
	}
	if v, ok := p.(OnInsufficientCredits); ok {
		r.onInsufficientCredits = append(r.onInsufficientCredits, v)
	}
	if v, ok := p.(OnSpendingLimitExceeded); ok {
		r.onSpendingLimitExceeded = append(r.onSpendingLimitExceeded, v)
	}
	if v, ok := p.(OnBufferCommitted); ok {
		r.onBufferCommitted = append(r.onBufferCommitted, v)
	}

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"interfaces", r.getImplementedInterfaces(p),
	)

	return nil
}

// getImplementedInterfaces returns a list of interfaces implemented by the plugin.
func (r *Registry) getImplementedInterfaces(p Plugin) []string {
	var interfaces []string
	v := reflect.TypeOf(p)

	// Check each interface
	checkInterface := func(iface reflect.Type, name string) {
		if v.Implements(iface) {
			interfaces = append(interfaces, name)
		}
	}

	// List all interfaces to check
	checkInterface(reflect.TypeOf((*OnInit)(nil)).Elem(), "OnInit")
	checkInterface(reflect.TypeOf((*OnShutdown)(nil)).Elem(), "OnShutdown")
	checkInterface(reflect.TypeOf((*OnReservationCreated)(nil)).Elem(), "OnReservationCreated")
	checkInterface(reflect.TypeOf((*OnReservationAdjusted)(nil)).Elem(), "OnReservationAdjusted")
	checkInterface(reflect.TypeOf((*OnReservationRefunded)(nil)).Elem(), "OnReservationRefunded")
	checkInterface(reflect.TypeOf((*OnReservationExpired)(nil)).Elem(), "OnReservationExpired")
	checkInterface(reflect.TypeOf((*OnInsufficientCredits)(nil)).Elem(), "OnInsufficientCredits")
	checkInterface(reflect.TypeOf((*OnSpendingLimitExceeded)(nil)).Elem(), "OnSpendingLimitExceeded")
	checkInterface(reflect.TypeOf((*OnBufferCommitted)(nil)).Elem(), "OnBufferCommitted")

	return interfaces
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, engine interface{}) {
	r.mu.RLock()
	plugins := r.onInit
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnInit(ctx, engine)
		}); err != nil {
			r.logger.Warn("plugin OnInit failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	r.mu.RLock()
	plugins := r.onShutdown
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnShutdown(ctx)
		}); err != nil {
			r.logger.Warn("plugin OnShutdown failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitReservationCreated emits a reservation created event.
func (r *Registry) EmitReservationCreated(ctx context.Context, res interface{}) {
	r.mu.RLock()
	plugins := r.onReservationCreated
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnReservationCreated(ctx, res)
		}); err != nil {
			r.logger.Warn("plugin OnReservationCreated failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitReservationAdjusted emits a reservation adjusted event.
func (r *Registry) EmitReservationAdjusted(ctx context.Context, res interface{}, actualMicros int64) {
	r.mu.RLock()
	plugins := r.onReservationAdjusted
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnReservationAdjusted(ctx, res, actualMicros)
		}); err != nil {
			r.logger.Warn("plugin OnReservationAdjusted failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitReservationRefunded emits a reservation refunded event.
func (r *Registry) EmitReservationRefunded(ctx context.Context, res interface{}) {
	r.mu.RLock()
	plugins := r.onReservationRefunded
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnReservationRefunded(ctx, res)
		}); err != nil {
			r.logger.Warn("plugin OnReservationRefunded failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitReservationExpired emits a reservation expired event.
func (r *Registry) EmitReservationExpired(ctx context.Context, res interface{}) {
	r.mu.RLock()
	plugins := r.onReservationExpired
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnReservationExpired(ctx, res)
		}); err != nil {
			r.logger.Warn("plugin OnReservationExpired failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitInsufficientCredits emits an insufficient credits event.
func (r *Registry) EmitInsufficientCredits(ctx context.Context, workspaceID string, requiredMicros, availableMicros int64) {
	r.mu.RLock()
	plugins := r.onInsufficientCredits
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnInsufficientCredits(ctx, workspaceID, requiredMicros, availableMicros)
		}); err != nil {
			r.logger.Warn("plugin OnInsufficientCredits failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitSpendingLimitExceeded emits a spending limit exceeded event.
func (r *Registry) EmitSpendingLimitExceeded(ctx context.Context, workspaceID string, violations interface{}) {
	r.mu.RLock()
	plugins := r.onSpendingLimitExceeded
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnSpendingLimitExceeded(ctx, workspaceID, violations)
		}); err != nil {
			r.logger.Warn("plugin OnSpendingLimitExceeded failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitBufferCommitted emits a buffer committed event.
func (r *Registry) EmitBufferCommitted(ctx context.Context, workspaceID string, count int, deltaMicros int64) {
	r.mu.RLock()
	plugins := r.onBufferCommitted
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnBufferCommitted(ctx, workspaceID, count, deltaMicros)
		}); err != nil {
			r.logger.Warn("plugin OnBufferCommitted failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// callWithTimeout calls a plugin function with a timeout.
// Plugins should never block the admission or settlement path.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
