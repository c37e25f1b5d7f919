package credits_test

import (
	"context"
	"errors"
	"testing"

	credits "github.com/xraph/credits"
	"github.com/xraph/credits/metered"
	"github.com/xraph/credits/pricing"
	"github.com/xraph/credits/transaction"
	"github.com/xraph/credits/types"
)

func TestRunUnitOfWork(t *testing.T) {
	ctx := context.Background()
	searchStrategy := pricing.NewPerUnit("search", 10_000, 0, "usd")

	t.Run("CommitsOnSuccess", func(t *testing.T) {
		c, ws := newEngine(t, types.USD(100_000_000))
		search := metered.New(searchStrategy)

		err := c.RunUnitOfWork(ctx, func(ctx context.Context) error {
			// 100 units at 10_000 micros each: 1_000_000.
			cost, err := search.Charge(ctx, ws.ID, 100)
			if err != nil {
				return err
			}
			if cost.Amount != 1_000_000 {
				t.Errorf("cost = %d, want 1000000", cost.Amount)
			}
			return nil
		})
		if err != nil {
			t.Fatal(err)
		}

		if got := mustBalance(t, c, ws.ID).Amount; got != 99_000_000 {
			t.Errorf("balance = %d, want 99000000", got)
		}

		txns, err := c.Transactions(ctx, ws.ID, transaction.ListOpts{})
		if err != nil {
			t.Fatal(err)
		}
		if len(txns) != 1 {
			t.Fatalf("transactions = %d, want 1", len(txns))
		}
		if txns[0].Source != transaction.Source("search") {
			t.Errorf("source = %s, want search", txns[0].Source)
		}
	})

	t.Run("DiscardsOnError", func(t *testing.T) {
		c, ws := newEngine(t, types.USD(100_000_000))
		search := metered.New(searchStrategy)
		boom := errors.New("upstream failed")

		err := c.RunUnitOfWork(ctx, func(ctx context.Context) error {
			if _, err := search.Charge(ctx, ws.ID, 100); err != nil {
				return err
			}
			return boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("expected the unit-of-work error, got %v", err)
		}

		// Nothing settled, nothing written.
		if got := mustBalance(t, c, ws.ID).Amount; got != 100_000_000 {
			t.Errorf("balance = %d, want 100000000", got)
		}
		txns, err := c.Transactions(ctx, ws.ID, transaction.ListOpts{})
		if err != nil {
			t.Fatal(err)
		}
		if len(txns) != 0 {
			t.Errorf("transactions = %d, want 0", len(txns))
		}
	})

	t.Run("MeteredChargeOutsideUnitOfWork", func(t *testing.T) {
		_, ws := newEngine(t, types.USD(100_000_000))
		search := metered.New(searchStrategy)

		if _, err := search.Charge(ctx, ws.ID, 100); !errors.Is(err, credits.ErrNoBuffer) {
			t.Fatalf("expected ErrNoBuffer, got %v", err)
		}
	})

	t.Run("ReservationSettlesOnceNotTwice", func(t *testing.T) {
		c, ws := newEngine(t, types.USD(100_000_000))

		err := c.RunUnitOfWork(ctx, func(ctx context.Context) error {
			// The reservation deducts the balance immediately even inside a
			// unit of work; the commit must not apply its delta again.
			res, err := c.Reserve(ctx, ws.ID, types.USD(10_000_000))
			if err != nil {
				return err
			}
			_, err = c.Adjust(ctx, ws.ID, res.ID, types.USD(8_000_000))
			return err
		})
		if err != nil {
			t.Fatal(err)
		}

		if got := mustBalance(t, c, ws.ID).Amount; got != 92_000_000 {
			t.Errorf("balance = %d, want 92000000", got)
		}

		// Both lifecycle entries landed in the ledger at commit.
		txns, err := c.Transactions(ctx, ws.ID, transaction.ListOpts{})
		if err != nil {
			t.Fatal(err)
		}
		if len(txns) != 2 {
			t.Errorf("transactions = %d, want 2", len(txns))
		}
	})

	t.Run("MixedChargesSettleTogether", func(t *testing.T) {
		c, ws := newEngine(t, types.USD(100_000_000))
		search := metered.New(searchStrategy)
		rerank := metered.New(pricing.NewPerUnit("rerank", 50_000, 0, "usd"))

		err := c.RunUnitOfWork(ctx, func(ctx context.Context) error {
			if _, err := search.Charge(ctx, ws.ID, 100); err != nil { // 1_000_000
				return err
			}
			if _, err := rerank.Charge(ctx, ws.ID, 20); err != nil { // 1_000_000
				return err
			}
			return nil
		})
		if err != nil {
			t.Fatal(err)
		}

		if got := mustBalance(t, c, ws.ID).Amount; got != 98_000_000 {
			t.Errorf("balance = %d, want 98000000", got)
		}
	})
}
