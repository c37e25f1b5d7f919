// Package plugin provides an extensible plugin system for Credits.
// Plugins can hook into various lifecycle events to extend functionality.
package plugin

import (
	"context"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the plugin is initialized.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, l interface{}) error
}

// OnShutdown is called when the plugin is shutting down.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Reservation lifecycle hooks
// ──────────────────────────────────────────────────

// OnReservationCreated is called when credits are reserved.
type OnReservationCreated interface {
	Plugin
	OnReservationCreated(ctx context.Context, res interface{}) error
}

// OnReservationAdjusted is called when a reservation is reconciled
// against actual cost.
type OnReservationAdjusted interface {
	Plugin
	OnReservationAdjusted(ctx context.Context, res interface{}, actualMicros int64) error
}

// OnReservationRefunded is called when a reservation is refunded in full.
type OnReservationRefunded interface {
	Plugin
	OnReservationRefunded(ctx context.Context, res interface{}) error
}

// OnReservationExpired is called when the sweeper reclaims an expired
// reservation.
type OnReservationExpired interface {
	Plugin
	OnReservationExpired(ctx context.Context, res interface{}) error
}

// ──────────────────────────────────────────────────
// Admission hooks
// ──────────────────────────────────────────────────

// OnInsufficientCredits is called when a reservation is denied for lack
// of balance.
type OnInsufficientCredits interface {
	Plugin
	OnInsufficientCredits(ctx context.Context, workspaceID string, requiredMicros, availableMicros int64) error
}

// OnSpendingLimitExceeded is called when admission is denied by a
// spending limit.
type OnSpendingLimitExceeded interface {
	Plugin
	OnSpendingLimitExceeded(ctx context.Context, workspaceID string, violations interface{}) error
}

// ──────────────────────────────────────────────────
// Ledger hooks
// ──────────────────────────────────────────────────

// OnBufferCommitted is called when a unit of work's transaction buffer is
// committed to the ledger.
type OnBufferCommitted interface {
	Plugin
	OnBufferCommitted(ctx context.Context, workspaceID string, count int, deltaMicros int64) error
}
