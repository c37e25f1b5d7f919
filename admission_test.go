package credits_test

import (
	"context"
	"errors"
	"testing"

	credits "github.com/xraph/credits"
	"github.com/xraph/credits/id"
	"github.com/xraph/credits/limits"
	"github.com/xraph/credits/pricing"
	"github.com/xraph/credits/store/memory"
	"github.com/xraph/credits/transaction"
	"github.com/xraph/credits/types"
	"github.com/xraph/credits/workspace"
)

// fixedEstimator prices every request at the same cost.
type fixedEstimator struct {
	cost types.Money
}

func (f fixedEstimator) EstimateCost(pricing.EstimateRequest) (types.Money, error) {
	return f.cost, nil
}

func (f fixedEstimator) ActualCost(_, _ string, _ pricing.Usage, _ string) (types.Money, error) {
	return f.cost, nil
}

func workspaceLimit(frame limits.TimeFrame, limit types.Money) limits.SpendingLimit {
	return limits.SpendingLimit{
		ID:        id.NewLimitID(),
		Scope:     limits.ScopeWorkspace,
		TimeFrame: frame,
		Limit:     limit,
	}
}

func TestValidateAndReserve(t *testing.T) {
	ctx := context.Background()
	est := credits.WithEstimator(fixedEstimator{cost: types.USD(10_000_000)})

	t.Run("ReservesEstimatedCost", func(t *testing.T) {
		c, ws := newEngine(t, types.USD(100_000_000), est)

		res, err := c.ValidateAndReserve(ctx, credits.AdmissionRequest{WorkspaceID: ws.ID})
		if err != nil {
			t.Fatal(err)
		}
		if res == nil {
			t.Fatal("expected a reservation")
		}
		if res.ReservedAmount.Amount != 10_000_000 {
			t.Errorf("reserved = %d, want 10000000", res.ReservedAmount.Amount)
		}
		if got := mustBalance(t, c, ws.ID).Amount; got != 90_000_000 {
			t.Errorf("balance = %d, want 90000000", got)
		}
	})

	t.Run("BothStagesDisabled", func(t *testing.T) {
		c, ws := newEngine(t, types.USD(100_000_000), est,
			credits.WithDeductCredits(false),
			credits.WithEnforceLimits(false),
		)

		res, err := c.ValidateAndReserve(ctx, credits.AdmissionRequest{WorkspaceID: ws.ID})
		if err != nil {
			t.Fatal(err)
		}
		if res != nil {
			t.Errorf("expected no reservation, got %v", res.ID)
		}
	})

	t.Run("DeductionDisabled", func(t *testing.T) {
		c, ws := newEngine(t, types.USD(100_000_000), est, credits.WithDeductCredits(false))

		res, err := c.ValidateAndReserve(ctx, credits.AdmissionRequest{WorkspaceID: ws.ID})
		if err != nil {
			t.Fatal(err)
		}
		if res != nil {
			t.Error("expected admission without a hold")
		}
		if got := mustBalance(t, c, ws.ID).Amount; got != 100_000_000 {
			t.Errorf("balance = %d, want 100000000", got)
		}
	})

	t.Run("MissingWorkspaceFatal", func(t *testing.T) {
		c, _ := newEngine(t, types.USD(100_000_000), est)

		_, err := c.ValidateAndReserve(ctx, credits.AdmissionRequest{WorkspaceID: id.NewWorkspaceID()})
		if !credits.IsNotFound(err) {
			t.Fatalf("expected not found, got %v", err)
		}
	})

	t.Run("OwnCredentialsSkipsHold", func(t *testing.T) {
		c, ws := newEngine(t, types.USD(100_000_000), est)

		res, err := c.ValidateAndReserve(ctx, credits.AdmissionRequest{
			WorkspaceID:    ws.ID,
			OwnCredentials: true,
		})
		if err != nil {
			t.Fatal(err)
		}
		if res != nil {
			t.Error("own-credentials calls must not hold credits")
		}
		if got := mustBalance(t, c, ws.ID).Amount; got != 100_000_000 {
			t.Errorf("balance = %d, want 100000000", got)
		}
	})

	t.Run("OwnCredentialsStillGoverned", func(t *testing.T) {
		c := credits.New(memory.New(), est)
		ws := workspace.New("acme", types.USD(100_000_000))
		ws.SpendingLimits = []limits.SpendingLimit{
			workspaceLimit(limits.FrameDaily, types.USD(5_000_000)),
		}
		if err := c.CreateWorkspace(ctx, ws); err != nil {
			t.Fatal(err)
		}

		_, err := c.ValidateAndReserve(ctx, credits.AdmissionRequest{
			WorkspaceID:    ws.ID,
			OwnCredentials: true,
		})
		if !credits.IsLimitExceeded(err) {
			t.Fatalf("expected limit exceeded, got %v", err)
		}
	})

	t.Run("CompleteViolationList", func(t *testing.T) {
		c := credits.New(memory.New(), est)
		ws := workspace.New("acme", types.USD(100_000_000))
		ws.SpendingLimits = []limits.SpendingLimit{
			workspaceLimit(limits.FrameDaily, types.USD(5_000_000)),
			workspaceLimit(limits.FrameMonthly, types.USD(8_000_000)),
		}
		if err := c.CreateWorkspace(ctx, ws); err != nil {
			t.Fatal(err)
		}

		_, err := c.ValidateAndReserve(ctx, credits.AdmissionRequest{WorkspaceID: ws.ID})
		var sle *credits.SpendingLimitExceededError
		if !errors.As(err, &sle) {
			t.Fatalf("expected *SpendingLimitExceededError, got %v", err)
		}
		if len(sle.Violations) != 2 {
			t.Errorf("violations = %d, want 2", len(sle.Violations))
		}
	})

	t.Run("AccumulatedSpendCounts", func(t *testing.T) {
		c := credits.New(memory.New(), credits.WithEstimator(fixedEstimator{cost: types.USD(2_000_000)}))
		ws := workspace.New("acme", types.USD(100_000_000))
		ws.SpendingLimits = []limits.SpendingLimit{
			workspaceLimit(limits.FrameDaily, types.USD(5_000_000)),
		}
		if err := c.CreateWorkspace(ctx, ws); err != nil {
			t.Fatal(err)
		}

		// 4_000_000 already spent today; 2_000_000 more breaches the 5_000_000 cap.
		prior := transaction.New(ws.ID, transaction.SourceReservation, types.USD(-4_000_000))
		if err := c.Store().AppendTransactions(ctx, []*transaction.CreditTransaction{prior}); err != nil {
			t.Fatal(err)
		}

		_, err := c.ValidateAndReserve(ctx, credits.AdmissionRequest{WorkspaceID: ws.ID})
		if !credits.IsLimitExceeded(err) {
			t.Fatalf("expected limit exceeded, got %v", err)
		}
	})

	t.Run("LimitsDisabled", func(t *testing.T) {
		c := credits.New(memory.New(), est, credits.WithEnforceLimits(false))
		ws := workspace.New("acme", types.USD(100_000_000))
		ws.SpendingLimits = []limits.SpendingLimit{
			workspaceLimit(limits.FrameDaily, types.USD(5_000_000)),
		}
		if err := c.CreateWorkspace(ctx, ws); err != nil {
			t.Fatal(err)
		}

		res, err := c.ValidateAndReserve(ctx, credits.AdmissionRequest{WorkspaceID: ws.ID})
		if err != nil {
			t.Fatal(err)
		}
		if res == nil {
			t.Fatal("expected a reservation when limits are disabled")
		}
	})

	t.Run("MissingAgentFatal", func(t *testing.T) {
		c, ws := newEngine(t, types.USD(100_000_000), est)

		_, err := c.ValidateAndReserve(ctx, credits.AdmissionRequest{
			WorkspaceID: ws.ID,
			AgentID:     id.NewAgentID(),
		})
		if !credits.IsNotFound(err) {
			t.Fatalf("expected not found, got %v", err)
		}
	})

	t.Run("MissingAgentFatalWithLimitsDisabled", func(t *testing.T) {
		c, ws := newEngine(t, types.USD(100_000_000), est, credits.WithEnforceLimits(false))

		_, err := c.ValidateAndReserve(ctx, credits.AdmissionRequest{
			WorkspaceID: ws.ID,
			AgentID:     id.NewAgentID(),
		})
		if !credits.IsNotFound(err) {
			t.Fatalf("expected not found, got %v", err)
		}
		// The rejected request must not leave a hold behind.
		if got := mustBalance(t, c, ws.ID).Amount; got != 100_000_000 {
			t.Errorf("balance = %d, want 100000000", got)
		}
	})

	t.Run("AgentLimitsApply", func(t *testing.T) {
		c, ws := newEngine(t, types.USD(100_000_000), est)

		agent := workspace.NewAgent(ws.ID, "researcher")
		agent.SpendingLimits = []limits.SpendingLimit{{
			ID:        id.NewLimitID(),
			Scope:     limits.ScopeAgent,
			TimeFrame: limits.FrameDaily,
			Limit:     types.USD(5_000_000),
		}}
		if err := c.CreateAgent(ctx, agent); err != nil {
			t.Fatal(err)
		}

		_, err := c.ValidateAndReserve(ctx, credits.AdmissionRequest{
			WorkspaceID: ws.ID,
			AgentID:     agent.ID,
		})
		if !credits.IsLimitExceeded(err) {
			t.Fatalf("expected limit exceeded, got %v", err)
		}
	})
}
