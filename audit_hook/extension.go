// Package audithook bridges Credits lifecycle events to an audit trail backend.
//
// It defines a local Recorder interface so the package does not import
// Chronicle directly. Callers inject a RecorderFunc adapter that bridges
// to Chronicle at wiring time.
package audithook

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xraph/credits/plugin"
	"github.com/xraph/credits/reservation"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin                  = (*Extension)(nil)
	_ plugin.OnReservationCreated    = (*Extension)(nil)
	_ plugin.OnReservationAdjusted   = (*Extension)(nil)
	_ plugin.OnReservationRefunded   = (*Extension)(nil)
	_ plugin.OnReservationExpired    = (*Extension)(nil)
	_ plugin.OnInsufficientCredits   = (*Extension)(nil)
	_ plugin.OnSpendingLimitExceeded = (*Extension)(nil)
	_ plugin.OnBufferCommitted       = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
// This matches chronicle.Emitter but is defined locally so that the
// audit_hook package does not import Chronicle directly — callers inject
// the concrete *chronicle.Chronicle at wiring time.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a local representation of an audit event.
// It mirrors chronicle/audit.Event but avoids a module dependency.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges Credits lifecycle events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Reservation lifecycle hooks
// ──────────────────────────────────────────────────

// OnReservationCreated implements plugin.OnReservationCreated.
func (e *Extension) OnReservationCreated(ctx context.Context, res interface{}) error {
	id, ws := reservationIdentity(res)
	return e.record(ctx, ActionReservationCreated, SeverityInfo, OutcomeSuccess,
		ResourceReservation, id, CategoryCredits, nil,
		"workspace_id", ws,
	)
}

// OnReservationAdjusted implements plugin.OnReservationAdjusted.
func (e *Extension) OnReservationAdjusted(ctx context.Context, res interface{}, actualMicros int64) error {
	id, ws := reservationIdentity(res)
	return e.record(ctx, ActionReservationAdjusted, SeverityInfo, OutcomeSuccess,
		ResourceReservation, id, CategoryCredits, nil,
		"workspace_id", ws,
		"actual_micros", actualMicros,
	)
}

// OnReservationRefunded implements plugin.OnReservationRefunded.
func (e *Extension) OnReservationRefunded(ctx context.Context, res interface{}) error {
	id, ws := reservationIdentity(res)
	return e.record(ctx, ActionReservationRefunded, SeverityInfo, OutcomeSuccess,
		ResourceReservation, id, CategoryCredits, nil,
		"workspace_id", ws,
	)
}

// OnReservationExpired implements plugin.OnReservationExpired.
func (e *Extension) OnReservationExpired(ctx context.Context, res interface{}) error {
	id, ws := reservationIdentity(res)
	return e.record(ctx, ActionReservationExpired, SeverityWarning, OutcomeSuccess,
		ResourceReservation, id, CategoryCredits, nil,
		"workspace_id", ws,
	)
}

// ──────────────────────────────────────────────────
// Admission hooks
// ──────────────────────────────────────────────────

// OnInsufficientCredits implements plugin.OnInsufficientCredits.
func (e *Extension) OnInsufficientCredits(ctx context.Context, workspaceID string, requiredMicros, availableMicros int64) error {
	return e.record(ctx, ActionInsufficientCredits, SeverityWarning, OutcomeFailure,
		ResourceWorkspace, workspaceID, CategoryAdmission, nil,
		"required_micros", requiredMicros,
		"available_micros", availableMicros,
	)
}

// OnSpendingLimitExceeded implements plugin.OnSpendingLimitExceeded.
func (e *Extension) OnSpendingLimitExceeded(ctx context.Context, workspaceID string, _ interface{}) error {
	return e.record(ctx, ActionSpendingLimitExceeded, SeverityWarning, OutcomeFailure,
		ResourceWorkspace, workspaceID, CategoryAdmission, nil,
		"workspace_id", workspaceID,
	)
}

// ──────────────────────────────────────────────────
// Ledger hooks
// ──────────────────────────────────────────────────

// OnBufferCommitted implements plugin.OnBufferCommitted.
func (e *Extension) OnBufferCommitted(ctx context.Context, workspaceID string, count int, deltaMicros int64) error {
	return e.record(ctx, ActionBufferCommitted, SeverityInfo, OutcomeSuccess,
		ResourceLedger, workspaceID, CategoryLedger, nil,
		"transaction_count", count,
		"delta_micros", deltaMicros,
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

// reservationIdentity extracts reservation and workspace IDs when the hook
// payload is a *reservation.Reservation.
func reservationIdentity(res interface{}) (resID, workspaceID string) {
	if r, ok := res.(*reservation.Reservation); ok && r != nil {
		return r.ID.String(), r.WorkspaceID.String()
	}
	return "", ""
}

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
