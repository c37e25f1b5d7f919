// Package metered charges non-model operations, such as search and rerank
// calls, against a workspace through the unit-of-work transaction buffer.
//
// A Meter never touches the balance directly: it prices the operation with
// its strategy and appends a debit to the ambient buffer, which settles
// when the unit of work commits.
package metered

import (
	"context"
	"log/slog"

	credits "github.com/xraph/credits"
	"github.com/xraph/credits/id"
	"github.com/xraph/credits/pricing"
	"github.com/xraph/credits/transaction"
	"github.com/xraph/credits/types"
)

// Meter prices and records charges for one kind of metered operation.
type Meter struct {
	strategy pricing.Strategy
	source   transaction.Source
	supplier string
	logger   *slog.Logger
}

// Option configures a Meter.
type Option func(*Meter)

// WithSupplier records which upstream service fulfilled the operation.
func WithSupplier(supplier string) Option {
	return func(m *Meter) { m.supplier = supplier }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Meter) { m.logger = logger }
}

// New creates a Meter. The strategy's name doubles as the ledger source
// for the charges it produces.
func New(strategy pricing.Strategy, opts ...Option) *Meter {
	m := &Meter{
		strategy: strategy,
		source:   transaction.Source(strategy.Name()),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ChargeOption attributes a single charge.
type ChargeOption func(*transaction.CreditTransaction)

// ForAgent attributes the charge to an agent.
func ForAgent(agentID id.AgentID) ChargeOption {
	return func(t *transaction.CreditTransaction) { t.AgentID = agentID }
}

// ForConversation attributes the charge to a conversation.
func ForConversation(conversationID id.ConversationID) ChargeOption {
	return func(t *transaction.CreditTransaction) { t.ConversationID = conversationID }
}

// WithToolCall records the tool call that triggered the charge.
func WithToolCall(toolCall string) ChargeOption {
	return func(t *transaction.CreditTransaction) { t.ToolCall = toolCall }
}

// WithDescription sets a free-form description.
func WithDescription(desc string) ChargeOption {
	return func(t *transaction.CreditTransaction) { t.Description = desc }
}

// Charge prices units with the meter's strategy and appends the debit to
// the context's transaction buffer. It returns ErrNoBuffer when called
// outside a unit of work: metered charges must never settle individually.
func (m *Meter) Charge(ctx context.Context, workspaceID id.WorkspaceID, units int64, opts ...ChargeOption) (types.Money, error) {
	buf := transaction.FromContext(ctx)
	if buf == nil {
		return types.Money{}, credits.ErrNoBuffer
	}

	cost := m.strategy.Price(units)

	txn := transaction.New(workspaceID, m.source, cost.Negate())
	txn.Supplier = m.supplier
	for _, opt := range opts {
		opt(txn)
	}
	buf.Append(txn)

	m.logger.Debug("metered charge buffered",
		"workspace_id", workspaceID.String(),
		"source", string(m.source),
		"units", units,
		"cost", cost.String(),
	)

	return cost, nil
}
