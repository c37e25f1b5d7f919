package credits

import (
	"context"
	"errors"
	"fmt"

	"github.com/xraph/credits/id"
	"github.com/xraph/credits/reservation"
	"github.com/xraph/credits/transaction"
	"github.com/xraph/credits/types"
	"github.com/xraph/credits/workspace"
)

// ──────────────────────────────────────────────────
// Reservation lifecycle
// ──────────────────────────────────────────────────

// ReserveOption configures a single Reserve call.
type ReserveOption func(*reserveConfig)

type reserveConfig struct {
	ownCredentials bool
}

// WithOwnCredentials marks the call as billed to the caller's own provider
// account. No balance is held; the returned reservation carries the
// sentinel ID so downstream settlement code keeps a uniform handle.
func WithOwnCredentials() ReserveOption {
	return func(cfg *reserveConfig) { cfg.ownCredentials = true }
}

// Reserve holds estimated cost against a workspace balance. The deduction
// happens immediately; the reservation records the hold so it can later be
// reconciled, refunded, or reclaimed by the sweeper.
//
// Insufficient balance fails fast: retrying would not change the outcome.
func (c *Credits) Reserve(ctx context.Context, workspaceID id.WorkspaceID, estimated types.Money, opts ...ReserveOption) (*reservation.Reservation, error) {
	if estimated.IsNegative() {
		return nil, fmt.Errorf("%w: negative reservation amount %s", ErrInvalidInput, estimated)
	}

	var cfg reserveConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.ownCredentials {
		return &reservation.Reservation{
			ID:             reservation.SentinelID,
			WorkspaceID:    workspaceID,
			ReservedAmount: types.Zero(estimated.Currency),
			EstimatedCost:  estimated,
		}, nil
	}

	if _, err := c.applyDelta(ctx, workspaceID, -estimated.Amount, false); err != nil {
		return nil, err
	}

	res := reservation.New(workspaceID, estimated, estimated, c.reservationTTL)
	if err := c.store.CreateReservation(ctx, res); err != nil {
		// Give the hold back; the deduction already happened.
		if _, rbErr := c.applyDelta(ctx, workspaceID, estimated.Amount, true); rbErr != nil {
			c.logger.Error("failed to roll back reservation deduction",
				"workspace_id", workspaceID.String(),
				"amount", estimated.String(),
				"error", rbErr,
			)
		}
		return nil, err
	}

	txn := transaction.New(workspaceID, transaction.SourceReservation, estimated.Negate())
	txn.Description = "credit reservation"
	if err := c.recordTransaction(ctx, txn); err != nil {
		return nil, err
	}

	c.plugins.EmitReservationCreated(ctx, res)
	c.logger.Debug("credits reserved",
		"workspace_id", workspaceID.String(),
		"reservation_id", res.ID.String(),
		"amount", estimated.String(),
	)

	return res, nil
}

// Adjust reconciles a reservation against the actual cost of the work it
// covered. The difference between the hold and the actual cost is settled
// on the balance: money back when the estimate was high, a further debit
// when it was low. Returns the workspace after settlement.
//
// The sentinel reservation (own credentials, no hold was taken) is a
// no-op. A nil or missing reservation means no hold exists to net against:
// the balance is left alone, but the actual cost is still recorded as a
// debit entry so usage is never silently lost.
func (c *Credits) Adjust(ctx context.Context, workspaceID id.WorkspaceID, reservationID id.ReservationID, actual types.Money) (*workspace.Workspace, error) {
	if reservationID.Equal(reservation.SentinelID) {
		return c.store.GetWorkspace(ctx, workspaceID)
	}

	if reservationID.IsNil() {
		return c.settleWithoutReservation(ctx, workspaceID, actual)
	}

	res, err := c.store.GetReservation(ctx, reservationID)
	if err != nil {
		if errors.Is(err, ErrReservationNotFound) {
			c.logger.Debug("adjust on missing reservation, recording direct debit",
				"workspace_id", workspaceID.String(),
				"reservation_id", reservationID.String(),
			)
			return c.settleWithoutReservation(ctx, workspaceID, actual)
		}
		return nil, err
	}
	if actual.Currency != res.ReservedAmount.Currency {
		return nil, fmt.Errorf("%w: actual cost currency %s does not match reservation %s",
			ErrInvalidInput, actual.Currency, res.ReservedAmount.Currency)
	}

	// Claim the reservation before touching the balance so concurrent
	// settlement (including the sweeper) resolves to exactly one winner.
	if err := c.store.DeleteReservation(ctx, reservationID); err != nil {
		if errors.Is(err, ErrReservationNotFound) {
			// Lost the claim race; the winner settled the hold.
			return c.store.GetWorkspace(ctx, res.WorkspaceID)
		}
		return nil, err
	}

	delta := res.ReservedAmount.Amount - actual.Amount
	w, err := c.applyDelta(ctx, res.WorkspaceID, delta, true)
	if err != nil {
		// The hold was already claimed; nothing will retry it. Leave an
		// operator trail with the orphaned amount.
		c.logger.Error("reservation claimed but settlement failed, hold orphaned",
			"workspace_id", res.WorkspaceID.String(),
			"reservation_id", reservationID.String(),
			"reserved", res.ReservedAmount.String(),
			"actual", actual.String(),
			"error", err,
		)
		return nil, err
	}

	txn := transaction.New(res.WorkspaceID, transaction.SourceReconciliation, types.Micros(delta, res.ReservedAmount.Currency))
	txn.Description = "reservation reconciliation"
	if err := c.recordTransaction(ctx, txn); err != nil {
		return nil, err
	}

	c.plugins.EmitReservationAdjusted(ctx, res, actual.Amount)
	c.logger.Debug("reservation adjusted",
		"workspace_id", res.WorkspaceID.String(),
		"reservation_id", reservationID.String(),
		"reserved", res.ReservedAmount.String(),
		"actual", actual.String(),
	)

	return w, nil
}

// settleWithoutReservation records actual cost for a call that holds no
// reservation (deduction disabled, or the hold was already settled). The
// balance is not touched; the ledger entry keeps the usage visible.
func (c *Credits) settleWithoutReservation(ctx context.Context, workspaceID id.WorkspaceID, actual types.Money) (*workspace.Workspace, error) {
	w, err := c.store.GetWorkspace(ctx, workspaceID)
	if err != nil {
		return nil, err
	}

	if !actual.IsZero() {
		txn := transaction.New(workspaceID, transaction.SourceReconciliation, actual.Negate())
		txn.Description = "usage settled without reservation"
		if err := c.recordTransaction(ctx, txn); err != nil {
			return nil, err
		}
	}

	return w, nil
}

// Refund returns a reservation's full hold to the workspace balance. Used
// when the covered work never ran. Missing reservations are benign, same
// as Adjust.
func (c *Credits) Refund(ctx context.Context, reservationID id.ReservationID) error {
	if reservationID.IsNil() || reservationID.Equal(reservation.SentinelID) {
		return nil
	}

	res, err := c.store.GetReservation(ctx, reservationID)
	if err != nil {
		if errors.Is(err, ErrReservationNotFound) {
			c.logger.Debug("refund on missing reservation, already settled",
				"reservation_id", reservationID.String(),
			)
			return nil
		}
		return err
	}

	if err := c.store.DeleteReservation(ctx, reservationID); err != nil {
		if errors.Is(err, ErrReservationNotFound) {
			return nil
		}
		return err
	}

	if _, err := c.applyDelta(ctx, res.WorkspaceID, res.ReservedAmount.Amount, true); err != nil {
		c.logger.Error("reservation claimed but refund failed, hold orphaned",
			"workspace_id", res.WorkspaceID.String(),
			"reservation_id", reservationID.String(),
			"reserved", res.ReservedAmount.String(),
			"error", err,
		)
		return err
	}

	txn := transaction.New(res.WorkspaceID, transaction.SourceRefund, res.ReservedAmount)
	txn.Description = "reservation refund"
	if err := c.recordTransaction(ctx, txn); err != nil {
		return err
	}

	c.plugins.EmitReservationRefunded(ctx, res)
	c.logger.Debug("reservation refunded",
		"workspace_id", res.WorkspaceID.String(),
		"reservation_id", reservationID.String(),
		"amount", res.ReservedAmount.String(),
	)

	return nil
}

// ──────────────────────────────────────────────────
// Balance plumbing
// ──────────────────────────────────────────────────

// applyDelta moves a workspace balance by delta micros through the store's
// compare-and-swap primitive, retrying version conflicts up to maxRetries.
// When allowNegative is false a resulting negative balance is rejected as
// insufficient credits before any write happens; that failure is never
// retried.
func (c *Credits) applyDelta(ctx context.Context, workspaceID id.WorkspaceID, delta int64, allowNegative bool) (*workspace.Workspace, error) {
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		w, err := c.store.GetWorkspace(ctx, workspaceID)
		if err != nil {
			return nil, err
		}

		newBalance := w.Balance.Amount + delta
		if newBalance < 0 && !allowNegative {
			required := types.Micros(-delta, w.Balance.Currency)
			c.plugins.EmitInsufficientCredits(ctx, workspaceID.String(), required.Amount, w.Balance.Amount)
			return nil, &InsufficientCreditsError{
				WorkspaceID: workspaceID,
				Required:    required,
				Available:   w.Balance,
			}
		}

		updated, err := c.store.CompareAndSwapBalance(ctx, workspaceID, w.Version, newBalance)
		if err == nil {
			return updated, nil
		}
		if !errors.Is(err, ErrVersionConflict) {
			return nil, err
		}
		lastErr = err

		c.logger.Debug("balance write lost version race, retrying",
			"workspace_id", workspaceID.String(),
			"attempt", attempt+1,
		)
	}

	return nil, &CreditDeductionError{
		WorkspaceID: workspaceID,
		Attempts:    c.maxRetries + 1,
		Err:         lastErr,
	}
}

// recordTransaction appends a ledger entry, buffering it when the context
// carries a unit-of-work buffer and writing through otherwise.
func (c *Credits) recordTransaction(ctx context.Context, txn *transaction.CreditTransaction) error {
	if buf := transaction.FromContext(ctx); buf != nil {
		buf.Append(txn)
		return nil
	}
	return c.store.AppendTransactions(ctx, []*transaction.CreditTransaction{txn})
}

// Transactions lists ledger entries for a workspace.
func (c *Credits) Transactions(ctx context.Context, workspaceID id.WorkspaceID, opts transaction.ListOpts) ([]*transaction.CreditTransaction, error) {
	return c.store.ListTransactions(ctx, workspaceID, opts)
}
