package credits_test

import (
	"context"
	"testing"
	"time"

	credits "github.com/xraph/credits"
	"github.com/xraph/credits/transaction"
	"github.com/xraph/credits/types"
)

func TestSweepExpired(t *testing.T) {
	ctx := context.Background()

	t.Run("ReclaimsExpiredHolds", func(t *testing.T) {
		// A negative TTL makes every reservation born expired.
		c, ws := newEngine(t, types.USD(100_000_000), credits.WithReservationTTL(-time.Minute))

		res, err := c.Reserve(ctx, ws.ID, types.USD(10_000_000))
		if err != nil {
			t.Fatal(err)
		}
		if got := mustBalance(t, c, ws.ID).Amount; got != 90_000_000 {
			t.Fatalf("balance = %d, want 90000000", got)
		}

		n, err := c.SweepExpired(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if n != 1 {
			t.Errorf("reclaimed = %d, want 1", n)
		}
		if got := mustBalance(t, c, ws.ID).Amount; got != 100_000_000 {
			t.Errorf("balance = %d, want 100000000", got)
		}

		txns, err := c.Transactions(ctx, ws.ID, transaction.ListOpts{Source: transaction.SourceExpiry})
		if err != nil {
			t.Fatal(err)
		}
		if len(txns) != 1 || txns[0].Amount.Amount != 10_000_000 {
			t.Errorf("expected one +10000000 expiry entry, got %v", txns)
		}

		// The reservation is gone; late reconciliation must not move the
		// balance again, only record the usage.
		if _, err := c.Adjust(ctx, ws.ID, res.ID, types.USD(8_000_000)); err != nil {
			t.Fatal(err)
		}
		if got := mustBalance(t, c, ws.ID).Amount; got != 100_000_000 {
			t.Errorf("balance after late adjust = %d, want 100000000", got)
		}
	})

	t.Run("LiveHoldsUntouched", func(t *testing.T) {
		c, ws := newEngine(t, types.USD(100_000_000))

		if _, err := c.Reserve(ctx, ws.ID, types.USD(10_000_000)); err != nil {
			t.Fatal(err)
		}

		n, err := c.SweepExpired(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if n != 0 {
			t.Errorf("reclaimed = %d, want 0", n)
		}
		if got := mustBalance(t, c, ws.ID).Amount; got != 90_000_000 {
			t.Errorf("balance = %d, want 90000000", got)
		}
	})

	t.Run("BatchSizeBounds", func(t *testing.T) {
		c, ws := newEngine(t, types.USD(100_000_000),
			credits.WithReservationTTL(-time.Minute),
			credits.WithSweepConfig(time.Minute, 2),
		)

		for i := 0; i < 3; i++ {
			if _, err := c.Reserve(ctx, ws.ID, types.USD(1_000_000)); err != nil {
				t.Fatal(err)
			}
		}

		n, err := c.SweepExpired(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if n != 2 {
			t.Errorf("reclaimed = %d, want 2", n)
		}

		// The next sweep picks up the remainder.
		n, err = c.SweepExpired(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if n != 1 {
			t.Errorf("second sweep reclaimed = %d, want 1", n)
		}
		if got := mustBalance(t, c, ws.ID).Amount; got != 100_000_000 {
			t.Errorf("balance = %d, want 100000000", got)
		}
	})
}
