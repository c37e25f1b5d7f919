// Package transaction defines the credit transaction ledger entry and the
// deferred commit buffer.
//
// Transactions are the immutable audit trail of every balance movement.
// Amounts are signed: debits negative, credits positive. During a unit of
// work, transactions accumulate in a context-carried Buffer and are only
// persisted if the whole unit succeeds.
package transaction

import (
	"time"

	"github.com/xraph/credits/id"
	"github.com/xraph/credits/types"
)

// Source identifies what produced a transaction.
type Source string

// Source constants.
const (
	SourceReservation    Source = "reservation"
	SourceReconciliation Source = "reconciliation"
	SourceRefund         Source = "refund"
	SourceExpiry         Source = "expiry"
	SourceSearch         Source = "search"
	SourceRerank         Source = "rerank"
)

// CreditTransaction is one signed entry in the credit ledger.
type CreditTransaction struct {
	types.Entity

	ID          id.TransactionID `json:"id"`
	WorkspaceID id.WorkspaceID   `json:"workspace_id"`

	// AgentID and ConversationID attribute the spend. Nil when unknown.
	AgentID        id.AgentID        `json:"agent_id,omitempty"`
	ConversationID id.ConversationID `json:"conversation_id,omitempty"`

	Source      Source `json:"source"`
	Supplier    string `json:"supplier,omitempty"`  // e.g. provider name
	ToolCall    string `json:"tool_call,omitempty"` // e.g. "web_search"
	Description string `json:"description,omitempty"`

	// Amount is signed: negative for debits, positive for credits.
	Amount types.Money `json:"amount"`
}

// New creates a transaction with a fresh ID.
func New(workspaceID id.WorkspaceID, source Source, amount types.Money) *CreditTransaction {
	return &CreditTransaction{
		Entity:      types.NewEntity(),
		ID:          id.NewTransactionID(),
		WorkspaceID: workspaceID,
		Source:      source,
		Amount:      amount,
	}
}

// IsDebit reports whether the transaction reduces the balance.
func (t *CreditTransaction) IsDebit() bool { return t.Amount.IsNegative() }

// DeferredSettlement reports whether the transaction's balance effect is
// applied at buffer commit. Reservation-lifecycle sources settle the
// balance when they are emitted; everything else (metered usage) settles
// when the unit of work commits.
func (s Source) DeferredSettlement() bool {
	switch s {
	case SourceReservation, SourceReconciliation, SourceRefund, SourceExpiry:
		return false
	default:
		return true
	}
}

// ListOpts filters and paginates transaction listings.
type ListOpts struct {
	Source Source    `json:"source,omitempty"`
	Since  time.Time `json:"since,omitempty"`
	Until  time.Time `json:"until,omitempty"`
	Limit  int       `json:"limit,omitempty"`
	Offset int       `json:"offset,omitempty"`
}
