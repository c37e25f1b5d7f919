package mongo

import (
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

	ID             string               `grove:"id,pk"           bson:"_id"`
	Name           string               `grove:"name"            bson:"name"`
	BalanceMicros  int64                `grove:"balance_micros"  bson:"balance_micros"`
	Currency       string               `grove:"currency"        bson:"currency"`
	Version        int64                `grove:"version"         bson:"version"`
	SpendingLimits []spendingLimitModel `grove:"spending_limits" bson:"spending_limits,omitempty"`
	CreatedAt      time.Time            `grove:"created_at"      bson:"created_at"`
	UpdatedAt      time.Time            `grove:"updated_at"      bson:"updated_at"`
}

type spendingLimitModel struct {
	ID          string `bson:"id"`
	Scope       string `bson:"scope"`
	TimeFrame   string `bson:"time_frame"`
	LimitMicros int64  `bson:"limit_micros"`
	Currency    string `bson:"currency"`
}

func toSpendingLimitModels(lims []limits.SpendingLimit) []spendingLimitModel {
	if len(lims) == 0 {
		return nil
	}
	models := make([]spendingLimitModel, len(lims))
	for i, lim := range lims {
		models[i] = spendingLimitModel{
			ID:          lim.ID.String(),
			Scope:       string(lim.Scope),
			TimeFrame:   string(lim.TimeFrame),
			LimitMicros: lim.Limit.Amount,
			Currency:    lim.Limit.Currency,
		}
	}
	return models
}

func fromSpendingLimitModels(models []spendingLimitModel) ([]limits.SpendingLimit, error) {
	if len(models) == 0 {
		return nil, nil
	}
	lims := make([]limits.SpendingLimit, len(models))
	for i, m := range models {
		limitID, err := id.ParseLimitID(m.ID)
		if err != nil {
			return nil, err
		}
		lims[i] = limits.SpendingLimit{
			ID:        limitID,
			Scope:     limits.Scope(m.Scope),
			TimeFrame: limits.TimeFrame(m.TimeFrame),
			Limit:     types.Micros(m.LimitMicros, m.Currency),
		}
	}
	return lims, nil
}

func toWorkspaceModel(w *workspace.Workspace) *workspaceModel {
	return &workspaceModel{
		ID:             w.ID.String(),
		Name:           w.Name,
		BalanceMicros:  w.Balance.Amount,
		Currency:       w.Balance.Currency,
		Version:        w.Version,
		SpendingLimits: toSpendingLimitModels(w.SpendingLimits),
		CreatedAt:      w.CreatedAt,
		UpdatedAt:      w.UpdatedAt,
	}
}

func fromWorkspaceModel(m *workspaceModel) (*workspace.Workspace, error) {
	workspaceID, err := id.ParseWorkspaceID(m.ID)
	if err != nil {
		return nil, err
	}
	lims, err := fromSpendingLimitModels(m.SpendingLimits)
	if err != nil {
		return nil, err
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

	ID             string               `grove:"id,pk"           bson:"_id"`
	WorkspaceID    string               `grove:"workspace_id"    bson:"workspace_id"`
	Name           string               `grove:"name"            bson:"name"`
	SpendingLimits []spendingLimitModel `grove:"spending_limits" bson:"spending_limits,omitempty"`
	CreatedAt      time.Time            `grove:"created_at"      bson:"created_at"`
	UpdatedAt      time.Time            `grove:"updated_at"      bson:"updated_at"`
}

func toAgentModel(a *workspace.Agent) *agentModel {
	return &agentModel{
		ID:             a.ID.String(),
		WorkspaceID:    a.WorkspaceID.String(),
		Name:           a.Name,
		SpendingLimits: toSpendingLimitModels(a.SpendingLimits),
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
	lims, err := fromSpendingLimitModels(m.SpendingLimits)
	if err != nil {
		return nil, err
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

	ID              string    `grove:"id,pk"            bson:"_id"`
	WorkspaceID     string    `grove:"workspace_id"     bson:"workspace_id"`
	ReservedMicros  int64     `grove:"reserved_micros"  bson:"reserved_micros"`
	EstimatedMicros int64     `grove:"estimated_micros" bson:"estimated_micros"`
	Currency        string    `grove:"currency"         bson:"currency"`
	ExpiresAt       time.Time `grove:"expires_at"       bson:"expires_at"`
	HourBucket      string    `grove:"hour_bucket"      bson:"hour_bucket"`
	CreatedAt       time.Time `grove:"created_at"       bson:"created_at"`
	UpdatedAt       time.Time `grove:"updated_at"       bson:"updated_at"`
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

	ID             string    `grove:"id,pk"           bson:"_id"`
	WorkspaceID    string    `grove:"workspace_id"    bson:"workspace_id"`
	AgentID        string    `grove:"agent_id"        bson:"agent_id,omitempty"`
	ConversationID string    `grove:"conversation_id" bson:"conversation_id,omitempty"`
	Source         string    `grove:"source"          bson:"source"`
	Supplier       string    `grove:"supplier"        bson:"supplier,omitempty"`
	ToolCall       string    `grove:"tool_call"       bson:"tool_call,omitempty"`
	Description    string    `grove:"description"     bson:"description,omitempty"`
	AmountMicros   int64     `grove:"amount_micros"   bson:"amount_micros"`
	Currency       string    `grove:"currency"        bson:"currency"`
	CreatedAt      time.Time `grove:"created_at"      bson:"created_at"`
	UpdatedAt      time.Time `grove:"updated_at"      bson:"updated_at"`
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
