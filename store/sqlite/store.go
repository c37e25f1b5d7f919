package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/sqlitedriver"
	"github.com/xraph/grove/migrate"

	credits "github.com/xraph/credits"
	"github.com/xraph/credits/id"
	"github.com/xraph/credits/limits"
	"github.com/xraph/credits/reservation"
	creditsstore "github.com/xraph/credits/store"
	"github.com/xraph/credits/transaction"
	"github.com/xraph/credits/workspace"
)

// compile-time interface check
var _ creditsstore.Store = (*Store)(nil)

// Store implements store.Store using SQLite via Grove ORM.
type Store struct {
	db  *grove.DB
	sdb *sqlitedriver.SqliteDB
}

// New creates a new SQLite store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		sdb: sqlitedriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.sdb)
	if err != nil {
		return fmt.Errorf("credits/sqlite: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("credits/sqlite: migration failed: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Workspace Store ====================

func (s *Store) CreateWorkspace(ctx context.Context, w *workspace.Workspace) error {
	m := toWorkspaceModel(w)
	_, err := s.sdb.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) GetWorkspace(ctx context.Context, workspaceID id.WorkspaceID) (*workspace.Workspace, error) {
	m := new(workspaceModel)
	err := s.sdb.NewSelect(m).
		Where("id = ?", workspaceID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, credits.ErrWorkspaceNotFound
		}
		return nil, err
	}
	return fromWorkspaceModel(m)
}

func (s *Store) UpdateWorkspace(ctx context.Context, w *workspace.Workspace) error {
	m := toWorkspaceModel(w)
	m.UpdatedAt = now()
	res, err := s.sdb.NewUpdate(m).WherePK().Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return credits.ErrWorkspaceNotFound
	}
	return nil
}

// CompareAndSwapBalance performs the optimistic write as a single
// conditional UPDATE keyed on the expected version. A zero row count is
// disambiguated with a follow-up read.
func (s *Store) CompareAndSwapBalance(ctx context.Context, workspaceID id.WorkspaceID, expectedVersion int64, newBalance int64) (*workspace.Workspace, error) {
	t := now()
	res, err := s.sdb.NewUpdate((*workspaceModel)(nil)).
		Set("balance_micros = ?", newBalance).
		Set("version = version + 1").
		Set("updated_at = ?", t).
		Where("id = ?", workspaceID.String()).
		Where("version = ?", expectedVersion).
		Exec(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		if _, err := s.GetWorkspace(ctx, workspaceID); err != nil {
			return nil, err
		}
		return nil, credits.ErrVersionConflict
	}
	return s.GetWorkspace(ctx, workspaceID)
}

// ==================== Agent Store ====================

func (s *Store) CreateAgent(ctx context.Context, a *workspace.Agent) error {
	m := toAgentModel(a)
	_, err := s.sdb.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) GetAgent(ctx context.Context, agentID id.AgentID) (*workspace.Agent, error) {
	m := new(agentModel)
	err := s.sdb.NewSelect(m).
		Where("id = ?", agentID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, credits.ErrAgentNotFound
		}
		return nil, err
	}
	return fromAgentModel(m)
}

// ==================== Reservation Store ====================

func (s *Store) CreateReservation(ctx context.Context, r *reservation.Reservation) error {
	m := toReservationModel(r)
	_, err := s.sdb.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) GetReservation(ctx context.Context, reservationID id.ReservationID) (*reservation.Reservation, error) {
	m := new(reservationModel)
	err := s.sdb.NewSelect(m).
		Where("id = ?", reservationID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, credits.ErrReservationNotFound
		}
		return nil, err
	}
	return fromReservationModel(m)
}

func (s *Store) DeleteReservation(ctx context.Context, reservationID id.ReservationID) error {
	res, err := s.sdb.NewDelete((*reservationModel)(nil)).
		Where("id = ?", reservationID.String()).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return credits.ErrReservationNotFound
	}
	return nil
}

func (s *Store) ListExpiredReservations(ctx context.Context, before time.Time, limit int) ([]*reservation.Reservation, error) {
	var models []reservationModel
	q := s.sdb.NewSelect(&models).
		Where("hour_bucket <= ?", reservation.HourBucket(before)).
		Where("expires_at < ?", before).
		OrderExpr("expires_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*reservation.Reservation, len(models))
	for i := range models {
		r, err := fromReservationModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = r
	}
	return result, nil
}

// ==================== Transaction Store ====================

func (s *Store) AppendTransactions(ctx context.Context, txns []*transaction.CreditTransaction) error {
	if len(txns) == 0 {
		return nil
	}
	models := make([]transactionModel, len(txns))
	for i, txn := range txns {
		models[i] = *toTransactionModel(txn)
	}
	_, err := s.sdb.NewInsert(&models).Exec(ctx)
	return err
}

func (s *Store) ListTransactions(ctx context.Context, workspaceID id.WorkspaceID, opts transaction.ListOpts) ([]*transaction.CreditTransaction, error) {
	var models []transactionModel
	q := s.sdb.NewSelect(&models).
		Where("workspace_id = ?", workspaceID.String())

	if opts.Source != "" {
		q = q.Where("source = ?", string(opts.Source))
	}
	if !opts.Since.IsZero() {
		q = q.Where("created_at >= ?", opts.Since)
	}
	if !opts.Until.IsZero() {
		q = q.Where("created_at <= ?", opts.Until)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("created_at ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*transaction.CreditTransaction, len(models))
	for i := range models {
		txn, err := fromTransactionModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = txn
	}
	return result, nil
}

func (s *Store) SumSpend(ctx context.Context, f limits.SpendFilter) (int64, error) {
	var total int64
	var err error
	if f.AgentID.IsNil() {
		err = s.sdb.NewRaw(`
			SELECT COALESCE(SUM(-amount_micros), 0) FROM credits_transactions
			WHERE workspace_id = ? AND amount_micros < 0 AND created_at >= ?
		`, f.WorkspaceID.String(), f.Since).Scan(ctx, &total)
	} else {
		err = s.sdb.NewRaw(`
			SELECT COALESCE(SUM(-amount_micros), 0) FROM credits_transactions
			WHERE workspace_id = ? AND agent_id = ? AND amount_micros < 0 AND created_at >= ?
		`, f.WorkspaceID.String(), f.AgentID.String(), f.Since).Scan(ctx, &total)
	}
	if err != nil {
		return 0, err
	}
	return total, nil
}

// ==================== Helpers ====================

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
