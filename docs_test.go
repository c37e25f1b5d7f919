package credits_test

import (
	"context"
	"log"
	"log/slog"
	"testing"
	"time"

	credits "github.com/xraph/credits"
	"github.com/xraph/credits/metered"
	"github.com/xraph/credits/pricing"
	"github.com/xraph/credits/store/memory"
	"github.com/xraph/credits/types"
	"github.com/xraph/credits/workspace"
)

// TestDocumentationExamples verifies that all examples in the documentation compile
func TestDocumentationExamples(t *testing.T) {
	// Test Quick Start example from README
	t.Run("QuickStartExample", func(t *testing.T) {
		// Create store (memory for demo, use PostgreSQL in production)
		store := memory.New()

		// Initialize the engine
		c := credits.New(store,
			credits.WithLogger(slog.Default()),
			credits.WithReservationTTL(15*time.Minute),
			credits.WithSweepConfig(time.Minute, 100),
		)

		// Start the engine
		ctx := context.Background()
		if err := c.Start(ctx); err != nil {
			t.Fatal(err)
		}
		defer c.Stop()

		// Create a funded workspace
		ws := workspace.New("acme", credits.USD(100_000_000)) // $100.00
		if err := c.CreateWorkspace(ctx, ws); err != nil {
			t.Fatal(err)
		}

		// Admit a model call: estimate, check limits, reserve
		res, err := c.ValidateAndReserve(ctx, credits.AdmissionRequest{
			WorkspaceID: ws.ID,
			Provider:    "acme",
			Model:       "large",
			Messages: []pricing.Message{
				{Role: "user", Content: "Summarize the quarterly report."},
			},
		})
		if err != nil {
			t.Fatal(err)
		}

		// ... run the model call, then reconcile against actual cost
		if res != nil {
			if _, err := c.Adjust(ctx, ws.ID, res.ID, credits.USD(8_000)); err != nil {
				t.Fatal(err)
			}
		}

		// Metered operations charge through a unit of work
		search := metered.New(pricing.NewPerUnit("search", 10_000, 0, "usd"))
		err = c.RunUnitOfWork(ctx, func(ctx context.Context) error {
			_, err := search.Charge(ctx, ws.ID, 10)
			return err
		})
		if err != nil {
			t.Fatal(err)
		}

		balance, err := c.Balance(ctx, ws.ID)
		if err != nil {
			t.Fatal(err)
		}
		log.Printf("Remaining balance: %s\n", balance.String())
	})

	// Test Money type examples
	t.Run("MoneyExamples", func(t *testing.T) {
		// Constructors
		_ = types.USD(1_000_000)  // $1.00
		_ = types.EUR(99_000_000) // €99.00
		_ = types.Zero("usd")     // $0.00

		// Arithmetic
		m1 := types.USD(1_000_000)
		m2 := types.USD(2_000_000)
		_ = m1.Add(m2)     // $3.00
		_ = m1.Multiply(3) // $3.00
		_ = m1.Divide(2)   // $0.50

		// Comparison
		if m1.LessThan(m2) {
			// m1 is less than m2
		}

		// Formatting
		_ = m1.String()      // "$1.00"
		_ = m1.FormatMajor() // "1.00"
	})
}
