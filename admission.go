package credits

import (
	"context"

	"github.com/xraph/credits/id"
	"github.com/xraph/credits/limits"
	"github.com/xraph/credits/pricing"
	"github.com/xraph/credits/reservation"
	"github.com/xraph/credits/workspace"
)

// AdmissionRequest describes a prospective call arriving at the gate.
type AdmissionRequest struct {
	WorkspaceID    id.WorkspaceID
	AgentID        id.AgentID        // Nil when no agent is involved
	ConversationID id.ConversationID // Nil when no conversation context

	Provider     string
	Model        string
	Messages     []pricing.Message
	SystemPrompt string
	Tools        []string

	// OwnCredentials marks a call billed to the caller's own provider
	// account. Spending limits still apply; no credits are held.
	OwnCredentials bool
}

// ValidateAndReserve is the admission gate: it estimates the cost of the
// request, checks spending limits, and reserves credits, in that order.
//
// The two enforcement stages run behind independent flags. A nil
// reservation with a nil error means the call is admitted without a hold:
// either deduction is disabled or the caller brings their own credentials.
func (c *Credits) ValidateAndReserve(ctx context.Context, req AdmissionRequest) (*reservation.Reservation, error) {
	if !c.enforceLimits && !c.deductCredits {
		return nil, nil
	}

	// The workspace and any named agent must exist before any enforcement
	// decision. A missing identity is fatal, never a soft denial.
	w, err := c.store.GetWorkspace(ctx, req.WorkspaceID)
	if err != nil {
		return nil, err
	}
	var agent *workspace.Agent
	if !req.AgentID.IsNil() {
		if agent, err = c.store.GetAgent(ctx, req.AgentID); err != nil {
			return nil, err
		}
	}

	estimated, err := c.estimator.EstimateCost(pricing.EstimateRequest{
		Provider:     req.Provider,
		Model:        req.Model,
		Messages:     req.Messages,
		SystemPrompt: req.SystemPrompt,
		Tools:        req.Tools,
	})
	if err != nil {
		return nil, err
	}

	if c.enforceLimits {
		checkReq := limits.CheckRequest{
			WorkspaceID:     req.WorkspaceID,
			WorkspaceLimits: w.SpendingLimits,
			AgentID:         req.AgentID,
			Candidate:       estimated,
		}
		if agent != nil {
			checkReq.AgentLimits = agent.SpendingLimits
		}

		result, err := c.checker.Check(ctx, checkReq)
		if err != nil {
			return nil, err
		}
		if !result.Passed {
			c.plugins.EmitSpendingLimitExceeded(ctx, req.WorkspaceID.String(), result.Violations)
			return nil, &SpendingLimitExceededError{
				WorkspaceID: req.WorkspaceID,
				Violations:  result.Violations,
			}
		}
	}

	// Own-credentials calls passed governance; they never hold credits.
	if req.OwnCredentials {
		return nil, nil
	}

	if !c.deductCredits {
		return nil, nil
	}

	return c.Reserve(ctx, req.WorkspaceID, estimated)
}
