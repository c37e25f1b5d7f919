// Package observability provides a metrics extension for Credits that records
// lifecycle event counts via go-utils MetricFactory.
package observability

import (
	"context"

	"github.com/xraph/credits/plugin"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin                  = (*MetricsExtension)(nil)
	_ plugin.OnInit                  = (*MetricsExtension)(nil)
	_ plugin.OnReservationCreated    = (*MetricsExtension)(nil)
	_ plugin.OnReservationAdjusted   = (*MetricsExtension)(nil)
	_ plugin.OnReservationRefunded   = (*MetricsExtension)(nil)
	_ plugin.OnReservationExpired    = (*MetricsExtension)(nil)
	_ plugin.OnInsufficientCredits   = (*MetricsExtension)(nil)
	_ plugin.OnSpendingLimitExceeded = (*MetricsExtension)(nil)
	_ plugin.OnBufferCommitted       = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records system-wide lifecycle metrics.
// Register it as a Credits plugin to automatically track credit metrics.
type MetricsExtension struct {
	factory MetricFactory

	// Reservation metrics
	ReservationCreated  Counter
	ReservationAdjusted Counter
	ReservationRefunded Counter
	ReservationExpired  Counter
	ReservedAmount      Histogram
	AdjustmentDelta     Histogram

	// Admission metrics
	InsufficientCredits   Counter
	SpendingLimitExceeded Counter

	// Ledger metrics
	BufferCommits   Counter
	BufferBatchSize Histogram
	CommitDelta     Histogram

	// Error metrics
	StoreErrors  Counter
	PluginErrors Counter
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
// Use app.Metrics() in forge extensions.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		factory: factory,

		// Reservation metrics
		ReservationCreated:  factory.Counter("credits.reservation.created"),
		ReservationAdjusted: factory.Counter("credits.reservation.adjusted"),
		ReservationRefunded: factory.Counter("credits.reservation.refunded"),
		ReservationExpired:  factory.Counter("credits.reservation.expired"),
		ReservedAmount:      factory.Histogram("credits.reservation.amount_micros"),
		AdjustmentDelta:     factory.Histogram("credits.reservation.adjustment_micros"),

		// Admission metrics
		InsufficientCredits:   factory.Counter("credits.admission.insufficient"),
		SpendingLimitExceeded: factory.Counter("credits.admission.limit_exceeded"),

		// Ledger metrics
		BufferCommits:   factory.Counter("credits.buffer.commits"),
		BufferBatchSize: factory.Histogram("credits.buffer.batch.size"),
		CommitDelta:     factory.Histogram("credits.buffer.delta_micros"),

		// Error metrics
		StoreErrors:  factory.Counter("credits.store.errors"),
		PluginErrors: factory.Counter("credits.plugin.errors"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ interface{}) error {
	// No initialization needed
	return nil
}

// ──────────────────────────────────────────────────
// Reservation lifecycle hooks
// ──────────────────────────────────────────────────

// OnReservationCreated implements plugin.OnReservationCreated.
func (m *MetricsExtension) OnReservationCreated(_ context.Context, _ interface{}) error {
	m.ReservationCreated.Inc()
	return nil
}

// OnReservationAdjusted implements plugin.OnReservationAdjusted.
func (m *MetricsExtension) OnReservationAdjusted(_ context.Context, _ interface{}, actualMicros int64) error {
	m.ReservationAdjusted.Inc()
	m.AdjustmentDelta.Observe(float64(actualMicros))
	return nil
}

// OnReservationRefunded implements plugin.OnReservationRefunded.
func (m *MetricsExtension) OnReservationRefunded(_ context.Context, _ interface{}) error {
	m.ReservationRefunded.Inc()
	return nil
}

// OnReservationExpired implements plugin.OnReservationExpired.
func (m *MetricsExtension) OnReservationExpired(_ context.Context, _ interface{}) error {
	m.ReservationExpired.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Admission hooks
// ──────────────────────────────────────────────────

// OnInsufficientCredits implements plugin.OnInsufficientCredits.
func (m *MetricsExtension) OnInsufficientCredits(_ context.Context, _ string, requiredMicros, _ int64) error {
	m.InsufficientCredits.Inc()
	m.ReservedAmount.Observe(float64(requiredMicros))
	return nil
}

// OnSpendingLimitExceeded implements plugin.OnSpendingLimitExceeded.
func (m *MetricsExtension) OnSpendingLimitExceeded(_ context.Context, _ string, _ interface{}) error {
	m.SpendingLimitExceeded.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Ledger hooks
// ──────────────────────────────────────────────────

// OnBufferCommitted implements plugin.OnBufferCommitted.
func (m *MetricsExtension) OnBufferCommitted(_ context.Context, _ string, count int, deltaMicros int64) error {
	m.BufferCommits.Inc()
	m.BufferBatchSize.Observe(float64(count))
	m.CommitDelta.Observe(float64(deltaMicros))
	return nil
}
