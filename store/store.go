package store

import (
	"context"
	"time"

	"github.com/xraph/credits/id"
	"github.com/xraph/credits/limits"
	"github.com/xraph/credits/reservation"
	"github.com/xraph/credits/transaction"
	"github.com/xraph/credits/workspace"
)

// Store is the unified storage interface for all Credits entities.
// Instead of embedding the sub-interfaces, we explicitly declare all methods
// to avoid naming conflicts.
type Store interface {
	// Workspace methods
	CreateWorkspace(ctx context.Context, w *workspace.Workspace) error
	GetWorkspace(ctx context.Context, workspaceID id.WorkspaceID) (*workspace.Workspace, error)
	UpdateWorkspace(ctx context.Context, w *workspace.Workspace) error

	// CompareAndSwapBalance writes newBalance to the workspace only if its
	// stored version equals expectedVersion, incrementing the version on
	// success. Returns the updated workspace, or ErrVersionConflict when a
	// concurrent writer got there first.
	CompareAndSwapBalance(ctx context.Context, workspaceID id.WorkspaceID, expectedVersion int64, newBalance int64) (*workspace.Workspace, error)

	// Agent methods
	CreateAgent(ctx context.Context, a *workspace.Agent) error
	GetAgent(ctx context.Context, agentID id.AgentID) (*workspace.Agent, error)

	// Reservation methods
	CreateReservation(ctx context.Context, r *reservation.Reservation) error
	GetReservation(ctx context.Context, reservationID id.ReservationID) (*reservation.Reservation, error)
	DeleteReservation(ctx context.Context, reservationID id.ReservationID) error
	ListExpiredReservations(ctx context.Context, before time.Time, limit int) ([]*reservation.Reservation, error)

	// Transaction methods
	AppendTransactions(ctx context.Context, txns []*transaction.CreditTransaction) error
	ListTransactions(ctx context.Context, workspaceID id.WorkspaceID, opts transaction.ListOpts) ([]*transaction.CreditTransaction, error)
	SumSpend(ctx context.Context, f limits.SpendFilter) (int64, error)

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
