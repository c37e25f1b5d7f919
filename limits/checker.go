package limits

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/credits/id"
	"github.com/xraph/credits/types"
)

// Checker evaluates whether a candidate cost fits within every configured
// spending limit. Implementations must return the complete violation list,
// not just the first failure.
type Checker interface {
	Check(ctx context.Context, req CheckRequest) (*Result, error)
}

// CheckRequest carries everything a Checker needs for one evaluation.
type CheckRequest struct {
	WorkspaceID     id.WorkspaceID
	WorkspaceLimits []SpendingLimit
	AgentID         id.AgentID // Nil when no agent is involved
	AgentLimits     []SpendingLimit
	Candidate       types.Money
}

// SpendFilter selects the debit transactions to aggregate for one limit.
// AgentID narrows to agent scope when non-nil.
type SpendFilter struct {
	WorkspaceID id.WorkspaceID
	AgentID     id.AgentID
	Since       time.Time
}

// SpendAggregator is the consumer-side store interface for the checker.
// SumSpend returns total debit spend (positive micros) matching the filter.
type SpendAggregator interface {
	SumSpend(ctx context.Context, f SpendFilter) (int64, error)
}

// StoreChecker evaluates limits against spend aggregated from the
// transaction ledger.
type StoreChecker struct {
	agg    SpendAggregator
	logger *slog.Logger
	now    func() time.Time
}

// NewStoreChecker creates a Checker backed by the given spend aggregator.
func NewStoreChecker(agg SpendAggregator, opts ...CheckerOption) *StoreChecker {
	c := &StoreChecker{
		agg:    agg,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CheckerOption configures a StoreChecker.
type CheckerOption func(*StoreChecker)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) CheckerOption {
	return func(c *StoreChecker) { c.logger = logger }
}

// WithClock overrides the time source. Used in tests.
func WithClock(now func() time.Time) CheckerOption {
	return func(c *StoreChecker) { c.now = now }
}

// Check evaluates every workspace- and agent-scoped limit across all
// configured time frames. Evaluation continues past the first breach so
// callers receive the full violation list.
func (c *StoreChecker) Check(ctx context.Context, req CheckRequest) (*Result, error) {
	result := &Result{Passed: true}
	now := c.now()

	for _, lim := range req.WorkspaceLimits {
		v, err := c.evaluate(ctx, lim, SpendFilter{
			WorkspaceID: req.WorkspaceID,
			Since:       FrameStart(now, lim.TimeFrame),
		}, req.Candidate)
		if err != nil {
			return nil, err
		}
		if v != nil {
			result.Violations = append(result.Violations, *v)
		}
	}

	if !req.AgentID.IsNil() {
		for _, lim := range req.AgentLimits {
			v, err := c.evaluate(ctx, lim, SpendFilter{
				WorkspaceID: req.WorkspaceID,
				AgentID:     req.AgentID,
				Since:       FrameStart(now, lim.TimeFrame),
			}, req.Candidate)
			if err != nil {
				return nil, err
			}
			if v != nil {
				result.Violations = append(result.Violations, *v)
			}
		}
	}

	result.Passed = len(result.Violations) == 0
	if !result.Passed {
		c.logger.Debug("spending limit check failed",
			"workspace_id", req.WorkspaceID.String(),
			"violations", len(result.Violations),
			"candidate", req.Candidate.String(),
		)
	}

	return result, nil
}

// evaluate returns a Violation if spending candidate on top of the frame's
// accumulated spend would breach the limit, nil otherwise.
func (c *StoreChecker) evaluate(ctx context.Context, lim SpendingLimit, f SpendFilter, candidate types.Money) (*Violation, error) {
	spent, err := c.agg.SumSpend(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("limits: aggregate spend for %s/%s: %w", lim.Scope, lim.TimeFrame, err)
	}

	current := types.Micros(spent, lim.Limit.Currency)
	if current.Add(candidate).GreaterThan(lim.Limit) {
		return &Violation{Limit: lim, Current: current, Candidate: candidate}, nil
	}
	return nil, nil
}
