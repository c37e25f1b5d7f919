package postgres

import (
	"encoding/json"
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/credits/id"
	"github.com/xraph/credits/limits"
	"github.com/xraph/credits/reservation"
	"github.com/xraph/credits/transaction"
	"github.com/xraph/credits/types"
	"github.com/xraph/credits/workspace"
)

// ==================== Workspace models ====================

type workspaceModel struct {
	grove.BaseModel `grove:"table:credits_workspaces"`

	ID             string          `grove:"id,pk"`
	Name           string          `grove:"name"`
	BalanceMicros  int64           `grove:"balance_micros"`
	Currency       string          `grove:"currency"`
	Version        int64           `grove:"version"`
	SpendingLimits json.RawMessage `grove:"spending_limits,type:jsonb"`
	CreatedAt      time.Time       `grove:"created_at"`
	UpdatedAt      time.Time       `grove:"updated_at"`
}

func toWorkspaceModel(w *workspace.Workspace) *workspaceModel {
	lims, _ := json.Marshal(w.SpendingLimits) //nolint:errcheck // best-effort

	return &workspaceModel{
		ID:             w.ID.String(),
		Name:           w.Name,
		BalanceMicros:  w.Balance.Amount,
		Currency:       w.Balance.Currency,
		Version:        w.Version,
		SpendingLimits: lims,
		CreatedAt:      w.CreatedAt,
		UpdatedAt:      w.UpdatedAt,
	}
}

func fromWorkspaceModel(m *workspaceModel) (*workspace.Workspace, error) {
	workspaceID, err := id.ParseWorkspaceID(m.ID)
	if err != nil {
		return nil, err
	}

	var lims []limits.SpendingLimit
	if len(m.SpendingLimits) > 0 && string(m.SpendingLimits) != "null" {
		_ = json.Unmarshal(m.SpendingLimits, &lims) //nolint:errcheck // best-effort
	}

	return &workspace.Workspace{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:             workspaceID,
		Name:           m.Name,
		Balance:        types.Micros(m.BalanceMicros, m.Currency),
		Version:        m.Version,
		SpendingLimits: lims,
	}, nil
}

// ==================== Agent models ====================

type agentModel struct {
	grove.BaseModel `grove:"table:credits_agents"`

	ID             string          `grove:"id,pk"`
	WorkspaceID    string          `grove:"workspace_id"`
	Name           string          `grove:"name"`
	SpendingLimits json.RawMessage `grove:"spending_limits,type:jsonb"`
	CreatedAt      time.Time       `grove:"created_at"`
	UpdatedAt      time.Time       `grove:"updated_at"`
}

func toAgentModel(a *workspace.Agent) *agentModel {
	lims, _ := json.Marshal(a.SpendingLimits) //nolint:errcheck // best-effort

	return &agentModel{
		ID:             a.ID.String(),
		WorkspaceID:    a.WorkspaceID.String(),
		Name:           a.Name,
		SpendingLimits: lims,
		CreatedAt:      a.CreatedAt,
		UpdatedAt:      a.UpdatedAt,
	}
}

func fromAgentModel(m *agentModel) (*workspace.Agent, error) {
	agentID, err := id.ParseAgentID(m.ID)
	if err != nil {
		return nil, err
	}
	workspaceID, err := id.ParseWorkspaceID(m.WorkspaceID)
	if err != nil {
		return nil, err
	}

	var lims []limits.SpendingLimit
	if len(m.SpendingLimits) > 0 && string(m.SpendingLimits) != "null" {
		_ = json.Unmarshal(m.SpendingLimits, &lims) //nolint:errcheck // best-effort
	}

	return &workspace.Agent{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:             agentID,
		WorkspaceID:    workspaceID,
		Name:           m.Name,
		SpendingLimits: lims,
	}, nil
}

// ==================== Reservation models ====================

type reservationModel struct {
	grove.BaseModel `grove:"table:credits_reservations"`

	ID              string    `grove:"id,pk"`
	WorkspaceID     string    `grove:"workspace_id"`
	ReservedMicros  int64     `grove:"reserved_micros"`
	EstimatedMicros int64     `grove:"estimated_micros"`
	Currency        string    `grove:"currency"`
	ExpiresAt       time.Time `grove:"expires_at"`
	HourBucket      string    `grove:"hour_bucket"`
	CreatedAt       time.Time `grove:"created_at"`
	UpdatedAt       time.Time `grove:"updated_at"`
}

func toReservationModel(r *reservation.Reservation) *reservationModel {
	return &reservationModel{
		ID:              r.ID.String(),
		WorkspaceID:     r.WorkspaceID.String(),
		ReservedMicros:  r.ReservedAmount.Amount,
		EstimatedMicros: r.EstimatedCost.Amount,
		Currency:        r.ReservedAmount.Currency,
		ExpiresAt:       r.ExpiresAt,
		HourBucket:      r.HourBucket,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

func fromReservationModel(m *reservationModel) (*reservation.Reservation, error) {
	reservationID, err := id.ParseReservationID(m.ID)
	if err != nil {
		return nil, err
	}
	workspaceID, err := id.ParseWorkspaceID(m.WorkspaceID)
	if err != nil {
		return nil, err
	}

	return &reservation.Reservation{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:             reservationID,
		WorkspaceID:    workspaceID,
		ReservedAmount: types.Micros(m.ReservedMicros, m.Currency),
		EstimatedCost:  types.Micros(m.EstimatedMicros, m.Currency),
		ExpiresAt:      m.ExpiresAt,
		HourBucket:     m.HourBucket,
	}, nil
}

// ==================== Transaction models ====================

type transactionModel struct {
	grove.BaseModel `grove:"table:credits_transactions"`

	ID             string    `grove:"id,pk"`
	WorkspaceID    string    `grove:"workspace_id"`
	AgentID        string    `grove:"agent_id"`
	ConversationID string    `grove:"conversation_id"`
	Source         string    `grove:"source"`
	Supplier       string    `grove:"supplier"`
	ToolCall       string    `grove:"tool_call"`
	Description    string    `grove:"description"`
	AmountMicros   int64     `grove:"amount_micros"`
	Currency       string    `grove:"currency"`
	CreatedAt      time.Time `grove:"created_at"`
	UpdatedAt      time.Time `grove:"updated_at"`
}

func toTransactionModel(t *transaction.CreditTransaction) *transactionModel {
	m := &transactionModel{
		ID:           t.ID.String(),
		WorkspaceID:  t.WorkspaceID.String(),
		Source:       string(t.Source),
		Supplier:     t.Supplier,
		ToolCall:     t.ToolCall,
		Description:  t.Description,
		AmountMicros: t.Amount.Amount,
		Currency:     t.Amount.Currency,
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    t.UpdatedAt,
	}
	if !t.AgentID.IsNil() {
		m.AgentID = t.AgentID.String()
	}
	if !t.ConversationID.IsNil() {
		m.ConversationID = t.ConversationID.String()
	}
	return m
}

func fromTransactionModel(m *transactionModel) (*transaction.CreditTransaction, error) {
	transactionID, err := id.ParseTransactionID(m.ID)
	if err != nil {
		return nil, err
	}
	workspaceID, err := id.ParseWorkspaceID(m.WorkspaceID)
	if err != nil {
		return nil, err
	}

	txn := &transaction.CreditTransaction{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:          transactionID,
		WorkspaceID: workspaceID,
		Source:      transaction.Source(m.Source),
		Supplier:    m.Supplier,
		ToolCall:    m.ToolCall,
		Description: m.Description,
		Amount:      types.Micros(m.AmountMicros, m.Currency),
	}
	if m.AgentID != "" {
		agentID, err := id.ParseAgentID(m.AgentID)
		if err != nil {
			return nil, err
		}
		txn.AgentID = agentID
	}
	if m.ConversationID != "" {
		conversationID, err := id.ParseConversationID(m.ConversationID)
		if err != nil {
			return nil, err
		}
		txn.ConversationID = conversationID
	}
	return txn, nil
}
