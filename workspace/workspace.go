// Package workspace defines the workspace and agent models.
//
// A workspace is the unit of prepaid credit ownership: it carries a balance
// in micro-units and a version counter used for optimistic-concurrency
// balance updates. Agents belong to a workspace and may carry their own
// spending limits.
package workspace

import (
	"github.com/xraph/credits/id"
	"github.com/xraph/credits/limits"
	"github.com/xraph/credits/types"
)

// Workspace owns a prepaid credit balance.
//
// Version increments on every successful balance write. All balance
// mutations go through the store's compare-and-swap primitive; Balance is
// never written directly.
type Workspace struct {
	types.Entity

	ID      id.WorkspaceID `json:"id"`
	Name    string         `json:"name"`
	Balance types.Money    `json:"balance"`
	Version int64          `json:"version"`

	// SpendingLimits are workspace-scoped caps evaluated at admission time.
	SpendingLimits []limits.SpendingLimit `json:"spending_limits,omitempty"`
}

// New creates a workspace with a fresh ID, the given opening balance, and
// version zero.
func New(name string, balance types.Money) *Workspace {
	return &Workspace{
		Entity:  types.NewEntity(),
		ID:      id.NewWorkspaceID(),
		Name:    name,
		Balance: balance,
		Version: 0,
	}
}

// CanCover reports whether the balance covers the given amount.
func (w *Workspace) CanCover(amount types.Money) bool {
	return !w.Balance.LessThan(amount)
}

// Agent is an actor that spends credits on behalf of a workspace.
type Agent struct {
	types.Entity

	ID          id.AgentID     `json:"id"`
	WorkspaceID id.WorkspaceID `json:"workspace_id"`
	Name        string         `json:"name"`

	// SpendingLimits are agent-scoped caps evaluated at admission time.
	SpendingLimits []limits.SpendingLimit `json:"spending_limits,omitempty"`
}

// NewAgent creates an agent bound to a workspace.
func NewAgent(workspaceID id.WorkspaceID, name string) *Agent {
	return &Agent{
		Entity:      types.NewEntity(),
		ID:          id.NewAgentID(),
		WorkspaceID: workspaceID,
		Name:        name,
	}
}
