package credits

import (
	"context"
	"errors"
	"time"

	"github.com/xraph/credits/transaction"
)

// sweepWorker reclaims expired reservations on a fixed interval.
func (c *Credits) sweepWorker(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopChan:
			return
		case <-ticker.C:
			if n, err := c.SweepExpired(ctx); err != nil {
				c.logger.Error("expiry sweep failed", "error", err)
			} else if n > 0 {
				c.logger.Info("expired reservations reclaimed", "count", n)
			}
		}
	}
}

// SweepExpired refunds every reservation whose TTL has passed, up to the
// configured batch size, and returns how many were reclaimed. It is safe
// to call concurrently with reconciliation: whoever deletes the
// reservation first settles it.
func (c *Credits) SweepExpired(ctx context.Context) (int, error) {
	expired, err := c.store.ListExpiredReservations(ctx, time.Now().UTC(), c.sweepBatchSize)
	if err != nil {
		return 0, err
	}

	reclaimed := 0
	for _, res := range expired {
		if err := c.store.DeleteReservation(ctx, res.ID); err != nil {
			if errors.Is(err, ErrReservationNotFound) {
				continue // settled by someone else between list and claim
			}
			return reclaimed, err
		}

		if _, err := c.applyDelta(ctx, res.WorkspaceID, res.ReservedAmount.Amount, true); err != nil {
			c.logger.Error("reservation claimed but reclaim failed, hold orphaned",
				"workspace_id", res.WorkspaceID.String(),
				"reservation_id", res.ID.String(),
				"reserved", res.ReservedAmount.String(),
				"error", err,
			)
			return reclaimed, err
		}

		txn := transaction.New(res.WorkspaceID, transaction.SourceExpiry, res.ReservedAmount)
		txn.Description = "expired reservation reclaimed"
		if err := c.store.AppendTransactions(ctx, []*transaction.CreditTransaction{txn}); err != nil {
			return reclaimed, err
		}

		c.plugins.EmitReservationExpired(ctx, res)
		reclaimed++
	}

	return reclaimed, nil
}
