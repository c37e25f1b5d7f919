package credits_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"

	credits "github.com/xraph/credits"
	"github.com/xraph/credits/id"
	"github.com/xraph/credits/reservation"
	"github.com/xraph/credits/store"
	"github.com/xraph/credits/store/memory"
	"github.com/xraph/credits/transaction"
	"github.com/xraph/credits/types"
	"github.com/xraph/credits/workspace"
)

// newEngine creates an engine over a memory store with one funded workspace.
func newEngine(t *testing.T, opening types.Money, opts ...credits.Option) (*credits.Credits, *workspace.Workspace) {
	t.Helper()

	c := credits.New(memory.New(), opts...)
	ws := workspace.New("acme", opening)
	if err := c.CreateWorkspace(context.Background(), ws); err != nil {
		t.Fatal(err)
	}
	return c, ws
}

func mustBalance(t *testing.T, c *credits.Credits, workspaceID id.WorkspaceID) types.Money {
	t.Helper()

	b, err := c.Balance(context.Background(), workspaceID)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestReserve(t *testing.T) {
	ctx := context.Background()

	t.Run("DeductsImmediately", func(t *testing.T) {
		c, ws := newEngine(t, types.USD(100_000_000))

		res, err := c.Reserve(ctx, ws.ID, types.USD(10_000_000))
		if err != nil {
			t.Fatal(err)
		}
		if res == nil {
			t.Fatal("expected a reservation")
		}
		if got := mustBalance(t, c, ws.ID).Amount; got != 90_000_000 {
			t.Errorf("balance = %d, want 90000000", got)
		}
		if res.ReservedAmount.Amount != 10_000_000 {
			t.Errorf("reserved = %d, want 10000000", res.ReservedAmount.Amount)
		}
	})

	t.Run("InsufficientBalance", func(t *testing.T) {
		c, ws := newEngine(t, types.USD(100_000_000))

		_, err := c.Reserve(ctx, ws.ID, types.USD(150_000_000))
		if !credits.IsInsufficientCredits(err) {
			t.Fatalf("expected insufficient credits, got %v", err)
		}

		var ice *credits.InsufficientCreditsError
		if !errors.As(err, &ice) {
			t.Fatalf("expected *InsufficientCreditsError, got %T", err)
		}
		if ice.Required.Amount != 150_000_000 {
			t.Errorf("required = %d, want 150000000", ice.Required.Amount)
		}
		if ice.Available.Amount != 100_000_000 {
			t.Errorf("available = %d, want 100000000", ice.Available.Amount)
		}

		// The denial must not move the balance.
		if got := mustBalance(t, c, ws.ID).Amount; got != 100_000_000 {
			t.Errorf("balance = %d, want 100000000", got)
		}
	})

	t.Run("NegativeAmountRejected", func(t *testing.T) {
		c, ws := newEngine(t, types.USD(100_000_000))

		_, err := c.Reserve(ctx, ws.ID, types.USD(-1))
		if !errors.Is(err, credits.ErrInvalidInput) {
			t.Fatalf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("MissingWorkspace", func(t *testing.T) {
		c, _ := newEngine(t, types.USD(100_000_000))

		_, err := c.Reserve(ctx, id.NewWorkspaceID(), types.USD(1))
		if !credits.IsNotFound(err) {
			t.Fatalf("expected not found, got %v", err)
		}
	})

	t.Run("LedgerRecordsDebit", func(t *testing.T) {
		c, ws := newEngine(t, types.USD(100_000_000))

		if _, err := c.Reserve(ctx, ws.ID, types.USD(10_000_000)); err != nil {
			t.Fatal(err)
		}

		txns, err := c.Transactions(ctx, ws.ID, transaction.ListOpts{Source: transaction.SourceReservation})
		if err != nil {
			t.Fatal(err)
		}
		if len(txns) != 1 {
			t.Fatalf("transactions = %d, want 1", len(txns))
		}
		if txns[0].Amount.Amount != -10_000_000 {
			t.Errorf("amount = %d, want -10000000", txns[0].Amount.Amount)
		}
		if !txns[0].IsDebit() {
			t.Error("reservation entry should be a debit")
		}
	})
}

func TestAdjust(t *testing.T) {
	ctx := context.Background()

	t.Run("ActualAboveEstimate", func(t *testing.T) {
		c, ws := newEngine(t, types.USD(100_000_000))

		res, err := c.Reserve(ctx, ws.ID, types.USD(10_000_000))
		if err != nil {
			t.Fatal(err)
		}
		w, err := c.Adjust(ctx, ws.ID, res.ID, types.USD(12_000_000))
		if err != nil {
			t.Fatal(err)
		}
		if w.Balance.Amount != 88_000_000 {
			t.Errorf("balance = %d, want 88000000", w.Balance.Amount)
		}
	})

	t.Run("ActualBelowEstimate", func(t *testing.T) {
		c, ws := newEngine(t, types.USD(100_000_000))

		res, err := c.Reserve(ctx, ws.ID, types.USD(10_000_000))
		if err != nil {
			t.Fatal(err)
		}
		w, err := c.Adjust(ctx, ws.ID, res.ID, types.USD(8_000_000))
		if err != nil {
			t.Fatal(err)
		}
		if w.Balance.Amount != 92_000_000 {
			t.Errorf("balance = %d, want 92000000", w.Balance.Amount)
		}
	})

	t.Run("ExactEstimate", func(t *testing.T) {
		c, ws := newEngine(t, types.USD(100_000_000))

		res, err := c.Reserve(ctx, ws.ID, types.USD(10_000_000))
		if err != nil {
			t.Fatal(err)
		}
		if _, err := c.Adjust(ctx, ws.ID, res.ID, types.USD(10_000_000)); err != nil {
			t.Fatal(err)
		}
		if got := mustBalance(t, c, ws.ID).Amount; got != 90_000_000 {
			t.Errorf("balance = %d, want 90000000", got)
		}
	})

	t.Run("SecondAdjustLeavesBalanceAlone", func(t *testing.T) {
		c, ws := newEngine(t, types.USD(100_000_000))

		res, err := c.Reserve(ctx, ws.ID, types.USD(10_000_000))
		if err != nil {
			t.Fatal(err)
		}
		if _, err := c.Adjust(ctx, ws.ID, res.ID, types.USD(8_000_000)); err != nil {
			t.Fatal(err)
		}
		// The hold is gone; a second reconciliation must not net a delta
		// against it again.
		if _, err := c.Adjust(ctx, ws.ID, res.ID, types.USD(8_000_000)); err != nil {
			t.Fatal(err)
		}
		if got := mustBalance(t, c, ws.ID).Amount; got != 92_000_000 {
			t.Errorf("balance = %d, want 92000000", got)
		}
	})

	t.Run("MissingReservationRecordsUsage", func(t *testing.T) {
		c, ws := newEngine(t, types.USD(100_000_000))

		w, err := c.Adjust(ctx, ws.ID, id.NewReservationID(), types.USD(3_000_000))
		if err != nil {
			t.Fatalf("missing reservation should settle without error, got %v", err)
		}
		if w.Balance.Amount != 100_000_000 {
			t.Errorf("balance = %d, want 100000000 (no hold to net against)", w.Balance.Amount)
		}

		// The usage still lands in the ledger as a direct debit.
		txns, err := c.Transactions(ctx, ws.ID, transaction.ListOpts{Source: transaction.SourceReconciliation})
		if err != nil {
			t.Fatal(err)
		}
		if len(txns) != 1 || txns[0].Amount.Amount != -3_000_000 {
			t.Errorf("expected one -3000000 entry, got %v", txns)
		}
	})

	t.Run("SentinelNoOp", func(t *testing.T) {
		c, ws := newEngine(t, types.USD(100_000_000))

		res, err := c.Reserve(ctx, ws.ID, types.USD(10_000_000), credits.WithOwnCredentials())
		if err != nil {
			t.Fatal(err)
		}
		if !res.ID.Equal(reservation.SentinelID) {
			t.Fatalf("expected the sentinel reservation, got %v", res.ID)
		}
		if got := mustBalance(t, c, ws.ID).Amount; got != 100_000_000 {
			t.Errorf("balance after sentinel reserve = %d, want 100000000", got)
		}

		w, err := c.Adjust(ctx, ws.ID, res.ID, types.USD(12_000_000))
		if err != nil {
			t.Fatal(err)
		}
		if w.Balance.Amount != 100_000_000 {
			t.Errorf("balance after sentinel adjust = %d, want 100000000", w.Balance.Amount)
		}
	})

	t.Run("CurrencyMismatch", func(t *testing.T) {
		c, ws := newEngine(t, types.USD(100_000_000))

		res, err := c.Reserve(ctx, ws.ID, types.USD(10_000_000))
		if err != nil {
			t.Fatal(err)
		}
		if _, err := c.Adjust(ctx, ws.ID, res.ID, types.EUR(8_000_000)); !errors.Is(err, credits.ErrInvalidInput) {
			t.Fatalf("expected ErrInvalidInput, got %v", err)
		}
	})
}

func TestRefund(t *testing.T) {
	ctx := context.Background()

	t.Run("RestoresFullHold", func(t *testing.T) {
		c, ws := newEngine(t, types.USD(100_000_000))

		res, err := c.Reserve(ctx, ws.ID, types.USD(10_000_000))
		if err != nil {
			t.Fatal(err)
		}
		if err := c.Refund(ctx, res.ID); err != nil {
			t.Fatal(err)
		}
		if got := mustBalance(t, c, ws.ID).Amount; got != 100_000_000 {
			t.Errorf("balance = %d, want 100000000", got)
		}

		// Reservation and refund entries must cancel in the ledger.
		txns, err := c.Transactions(ctx, ws.ID, transaction.ListOpts{})
		if err != nil {
			t.Fatal(err)
		}
		var sum int64
		for _, txn := range txns {
			sum += txn.Amount.Amount
		}
		if sum != 0 {
			t.Errorf("ledger sum = %d, want 0", sum)
		}
	})

	t.Run("MissingReservationBenign", func(t *testing.T) {
		c, _ := newEngine(t, types.USD(100_000_000))

		if err := c.Refund(ctx, id.NewReservationID()); err != nil {
			t.Fatalf("missing reservation should be benign, got %v", err)
		}
	})
}

// TestLedgerConservation verifies that the ledger entries for a full
// reserve/adjust cycle sum to the observed balance movement.
func TestLedgerConservation(t *testing.T) {
	ctx := context.Background()
	c, ws := newEngine(t, types.USD(100_000_000))

	res, err := c.Reserve(ctx, ws.ID, types.USD(10_000_000))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.Adjust(ctx, ws.ID, res.ID, types.USD(12_000_000)); err != nil {
		t.Fatal(err)
	}

	txns, err := c.Transactions(ctx, ws.ID, transaction.ListOpts{})
	if err != nil {
		t.Fatal(err)
	}
	var sum int64
	for _, txn := range txns {
		sum += txn.Amount.Amount
	}

	balance := mustBalance(t, c, ws.ID).Amount
	if 100_000_000+sum != balance {
		t.Errorf("opening + ledger sum = %d, balance = %d", 100_000_000+sum, balance)
	}
}

// conflictStore wraps a Store and fails the next n balance CAS attempts
// with a version conflict.
type conflictStore struct {
	store.Store
	remaining int
}

func (s *conflictStore) CompareAndSwapBalance(ctx context.Context, workspaceID id.WorkspaceID, expectedVersion, newBalance int64) (*workspace.Workspace, error) {
	if s.remaining > 0 {
		s.remaining--
		return nil, credits.ErrVersionConflict
	}
	return s.Store.CompareAndSwapBalance(ctx, workspaceID, expectedVersion, newBalance)
}

func TestReserveRetry(t *testing.T) {
	ctx := context.Background()

	t.Run("RecoversWithinBudget", func(t *testing.T) {
		cs := &conflictStore{Store: memory.New(), remaining: 2}
		c := credits.New(cs)
		ws := workspace.New("acme", types.USD(100_000_000))
		if err := c.CreateWorkspace(ctx, ws); err != nil {
			t.Fatal(err)
		}

		if _, err := c.Reserve(ctx, ws.ID, types.USD(10_000_000)); err != nil {
			t.Fatalf("retries within budget should succeed, got %v", err)
		}
		if got := mustBalance(t, c, ws.ID).Amount; got != 90_000_000 {
			t.Errorf("balance = %d, want 90000000", got)
		}
	})

	t.Run("ExhaustsBudget", func(t *testing.T) {
		// Default budget is 3 retries: 4 attempts total.
		cs := &conflictStore{Store: memory.New(), remaining: 4}
		c := credits.New(cs)
		ws := workspace.New("acme", types.USD(100_000_000))
		if err := c.CreateWorkspace(ctx, ws); err != nil {
			t.Fatal(err)
		}

		_, err := c.Reserve(ctx, ws.ID, types.USD(10_000_000))
		if !errors.Is(err, credits.ErrCreditDeduction) {
			t.Fatalf("expected ErrCreditDeduction, got %v", err)
		}

		var cde *credits.CreditDeductionError
		if !errors.As(err, &cde) {
			t.Fatalf("expected *CreditDeductionError, got %T", err)
		}
		if cde.Attempts != 4 {
			t.Errorf("attempts = %d, want 4", cde.Attempts)
		}
		if !credits.IsConflict(cde.Err) {
			t.Errorf("wrapped error should be a version conflict, got %v", cde.Err)
		}

		// The balance is untouched after a failed deduction.
		if got := mustBalance(t, c, ws.ID).Amount; got != 100_000_000 {
			t.Errorf("balance = %d, want 100000000", got)
		}
	})

	t.Run("SettlementFailureLogsOrphanedHold", func(t *testing.T) {
		cs := &conflictStore{Store: memory.New()}
		var logs bytes.Buffer
		c := credits.New(cs, credits.WithLogger(slog.New(slog.NewTextHandler(&logs, nil))))
		ws := workspace.New("acme", types.USD(100_000_000))
		if err := c.CreateWorkspace(ctx, ws); err != nil {
			t.Fatal(err)
		}

		res, err := c.Reserve(ctx, ws.ID, types.USD(10_000_000))
		if err != nil {
			t.Fatal(err)
		}

		// Every CAS from here on conflicts: the claim succeeds, settlement
		// cannot.
		cs.remaining = 100
		if _, err := c.Adjust(ctx, ws.ID, res.ID, types.USD(8_000_000)); !errors.Is(err, credits.ErrCreditDeduction) {
			t.Fatalf("expected ErrCreditDeduction, got %v", err)
		}

		// The hold is gone from the store and only the log records it.
		if _, err := c.Store().GetReservation(ctx, res.ID); !credits.IsNotFound(err) {
			t.Fatalf("expected the claimed reservation to be gone, got %v", err)
		}
		if !strings.Contains(logs.String(), "hold orphaned") {
			t.Error("expected an orphaned-hold log entry")
		}
	})

	t.Run("InsufficientNeverRetried", func(t *testing.T) {
		// Conflicts queued up, but the shortfall is detected before any CAS.
		cs := &conflictStore{Store: memory.New(), remaining: 10}
		c := credits.New(cs)
		ws := workspace.New("acme", types.USD(100_000_000))
		if err := c.CreateWorkspace(ctx, ws); err != nil {
			t.Fatal(err)
		}

		_, err := c.Reserve(ctx, ws.ID, types.USD(150_000_000))
		if !credits.IsInsufficientCredits(err) {
			t.Fatalf("expected insufficient credits, got %v", err)
		}
		if cs.remaining != 10 {
			t.Errorf("CAS attempted %d times, want 0", 10-cs.remaining)
		}
	})
}

// TestReserveConcurrent races two holds whose sum exceeds the balance.
// Exactly one may win; the loser's retry re-reads the drained balance and
// fails as insufficient, never as over-commitment.
func TestReserveConcurrent(t *testing.T) {
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		c, ws := newEngine(t, types.USD(100_000_000))

		var wg sync.WaitGroup
		errs := make([]error, 2)
		for j := range errs {
			wg.Add(1)
			go func(j int) {
				defer wg.Done()
				_, errs[j] = c.Reserve(ctx, ws.ID, types.USD(60_000_000))
			}(j)
		}
		wg.Wait()

		var won, denied int
		for _, err := range errs {
			switch {
			case err == nil:
				won++
			case credits.IsInsufficientCredits(err):
				denied++
			default:
				t.Fatalf("unexpected error: %v", err)
			}
		}
		if won != 1 || denied != 1 {
			t.Fatalf("won = %d, denied = %d, want exactly one of each", won, denied)
		}
		if got := mustBalance(t, c, ws.ID).Amount; got != 40_000_000 {
			t.Fatalf("balance = %d, want 40000000", got)
		}
	}
}
