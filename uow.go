package credits

import (
	"context"
	"fmt"

	"github.com/xraph/credits/transaction"
)

// RunUnitOfWork executes fn with a transaction buffer on the context.
// Ledger entries recorded during fn accumulate in the buffer and are
// committed only if fn returns nil; on error the buffer is discarded and
// nothing is written.
//
// Metered charges (search, rerank) settle their balance effect at commit,
// as a single compare-and-swap per workspace. Reservation-lifecycle
// entries settled their balances when they were emitted, so the commit
// only appends them to the ledger.
func (c *Credits) RunUnitOfWork(ctx context.Context, fn func(ctx context.Context) error) error {
	buf := transaction.NewBuffer()
	ctx = transaction.WithBuffer(ctx, buf)

	if err := fn(ctx); err != nil {
		discarded := buf.Len()
		buf.Discard()
		c.logger.Debug("unit of work failed, buffer discarded",
			"discarded", discarded,
			"error", err,
		)
		return err
	}

	return c.commitBuffer(ctx, buf)
}

// commitBuffer drains the buffer and persists it workspace by workspace:
// one summed balance delta for the deferred-settlement entries, then the
// full transaction batch.
func (c *Credits) commitBuffer(ctx context.Context, buf *transaction.Buffer) error {
	groups := buf.Drain()

	for _, txns := range groups {
		if len(txns) == 0 {
			continue
		}
		workspaceID := txns[0].WorkspaceID

		var delta int64
		for _, txn := range txns {
			if txn.Source.DeferredSettlement() {
				delta += txn.Amount.Amount
			}
		}

		if delta != 0 {
			if _, err := c.applyDelta(ctx, workspaceID, delta, true); err != nil {
				return fmt.Errorf("commit buffer for workspace %s: %w", workspaceID, err)
			}
		}

		if err := c.store.AppendTransactions(ctx, txns); err != nil {
			return fmt.Errorf("commit buffer for workspace %s: %w", workspaceID, err)
		}

		c.plugins.EmitBufferCommitted(ctx, workspaceID.String(), len(txns), delta)
		c.logger.Debug("transaction buffer committed",
			"workspace_id", workspaceID.String(),
			"transactions", len(txns),
			"delta_micros", delta,
		)
	}

	return nil
}
