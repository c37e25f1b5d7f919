package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	credits "github.com/xraph/credits"
	"github.com/xraph/credits/id"
	"github.com/xraph/credits/limits"
	"github.com/xraph/credits/reservation"
	creditsstore "github.com/xraph/credits/store"
	"github.com/xraph/credits/transaction"
	"github.com/xraph/credits/workspace"
)

// Collection name constants.
const (
	colWorkspaces   = "credits_workspaces"
	colAgents       = "credits_agents"
	colReservations = "credits_reservations"
	colTransactions = "credits_transactions"
)

// compile-time interface check
var _ creditsstore.Store = (*Store)(nil)

// Store implements store.Store using MongoDB via Grove ORM.
type Store struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		mdb: mongodriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates indexes for all credits collections.
func (s *Store) Migrate(ctx context.Context) error {
	indexes := migrationIndexes()

	for col, models := range indexes {
		if len(models) == 0 {
			continue
		}
		_, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("credits/mongo: migrate %s indexes: %w", col, err)
		}
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
	_, err := s.mdb.NewInsert(m).Exec(ctx)
	if err != nil {
		return fmt.Errorf("credits/mongo: create workspace: %w", err)
	}
	return nil
}

func (s *Store) GetWorkspace(ctx context.Context, workspaceID id.WorkspaceID) (*workspace.Workspace, error) {
	var m workspaceModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": workspaceID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, credits.ErrWorkspaceNotFound
		}
		return nil, fmt.Errorf("credits/mongo: get workspace: %w", err)
	}
	return fromWorkspaceModel(&m)
}

func (s *Store) UpdateWorkspace(ctx context.Context, w *workspace.Workspace) error {
	m := toWorkspaceModel(w)
	m.UpdatedAt = now()

	res, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"_id": m.ID}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("credits/mongo: update workspace: %w", err)
	}
	if res.MatchedCount() == 0 {
		return credits.ErrWorkspaceNotFound
	}
	return nil
}

// CompareAndSwapBalance filters on both _id and the expected version, so the
// swap is atomic at the document level. A zero match count is disambiguated
// with a follow-up read.
func (s *Store) CompareAndSwapBalance(ctx context.Context, workspaceID id.WorkspaceID, expectedVersion int64, newBalance int64) (*workspace.Workspace, error) {
	t := now()
	res, err := s.mdb.NewUpdate((*workspaceModel)(nil)).
		Filter(bson.M{"_id": workspaceID.String(), "version": expectedVersion}).
		Set("balance_micros", newBalance).
		Set("version", expectedVersion+1).
		Set("updated_at", t).
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("credits/mongo: compare-and-swap balance: %w", err)
	}
	if res.MatchedCount() == 0 {
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
	_, err := s.mdb.NewInsert(m).Exec(ctx)
	if err != nil {
		return fmt.Errorf("credits/mongo: create agent: %w", err)
	}
	return nil
}

func (s *Store) GetAgent(ctx context.Context, agentID id.AgentID) (*workspace.Agent, error) {
	var m agentModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": agentID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, credits.ErrAgentNotFound
		}
		return nil, fmt.Errorf("credits/mongo: get agent: %w", err)
	}
	return fromAgentModel(&m)
}

// ==================== Reservation Store ====================

func (s *Store) CreateReservation(ctx context.Context, r *reservation.Reservation) error {
	m := toReservationModel(r)
	_, err := s.mdb.NewInsert(m).Exec(ctx)
	if err != nil {
		return fmt.Errorf("credits/mongo: create reservation: %w", err)
	}
	return nil
}

func (s *Store) GetReservation(ctx context.Context, reservationID id.ReservationID) (*reservation.Reservation, error) {
	var m reservationModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": reservationID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, credits.ErrReservationNotFound
		}
		return nil, fmt.Errorf("credits/mongo: get reservation: %w", err)
	}
	return fromReservationModel(&m)
}

func (s *Store) DeleteReservation(ctx context.Context, reservationID id.ReservationID) error {
	res, err := s.mdb.NewDelete((*reservationModel)(nil)).
		Filter(bson.M{"_id": reservationID.String()}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("credits/mongo: delete reservation: %w", err)
	}
	if res.DeletedCount() == 0 {
		return credits.ErrReservationNotFound
	}
	return nil
}

func (s *Store) ListExpiredReservations(ctx context.Context, before time.Time, limit int) ([]*reservation.Reservation, error) {
	var models []reservationModel

	q := s.mdb.NewFind(&models).
		Filter(bson.M{
			"hour_bucket": bson.M{"$lte": reservation.HourBucket(before)},
			"expires_at":  bson.M{"$lt": before},
		}).
		Sort(bson.D{{Key: "expires_at", Value: 1}})
	if limit > 0 {
		q = q.Limit(int64(limit))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("credits/mongo: list expired reservations: %w", err)
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
	_, err := s.mdb.NewInsert(&models).Exec(ctx)
	if err != nil {
		return fmt.Errorf("credits/mongo: append transactions: %w", err)
	}
	return nil
}

func (s *Store) ListTransactions(ctx context.Context, workspaceID id.WorkspaceID, opts transaction.ListOpts) ([]*transaction.CreditTransaction, error) {
	var models []transactionModel

	filter := bson.M{"workspace_id": workspaceID.String()}
	if opts.Source != "" {
		filter["source"] = string(opts.Source)
	}
	timeFilter := bson.M{}
	if !opts.Since.IsZero() {
		timeFilter["$gte"] = opts.Since
	}
	if !opts.Until.IsZero() {
		timeFilter["$lte"] = opts.Until
	}
	if len(timeFilter) > 0 {
		filter["created_at"] = timeFilter
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "created_at", Value: 1}})
	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("credits/mongo: list transactions: %w", err)
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
	match := bson.M{
		"workspace_id":  f.WorkspaceID.String(),
		"amount_micros": bson.M{"$lt": 0},
		"created_at":    bson.M{"$gte": f.Since},
	}
	if !f.AgentID.IsNil() {
		match["agent_id"] = f.AgentID.String()
	}

	pipeline := bson.A{
		bson.M{"$match": match},
		bson.M{
			"$group": bson.M{
				"_id":   nil,
				"total": bson.M{"$sum": bson.M{"$subtract": bson.A{0, "$amount_micros"}}},
			},
		},
	}

	cursor, err := s.mdb.Collection(colTransactions).Aggregate(ctx, pipeline)
	if err != nil {
		return 0, fmt.Errorf("credits/mongo: sum spend: %w", err)
	}
	defer cursor.Close(ctx)

	var results []struct {
		Total int64 `bson:"total"`
	}
	if err := cursor.All(ctx, &results); err != nil {
		return 0, fmt.Errorf("credits/mongo: sum spend decode: %w", err)
	}
	if len(results) == 0 {
		return 0, nil
	}
	return results[0].Total, nil
}

// ==================== Helpers ====================

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

// isNoDocuments checks for the driver's no-documents sentinel.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for all credits collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colWorkspaces: {},
		colAgents: {
			{Keys: bson.D{{Key: "workspace_id", Value: 1}}},
		},
		colReservations: {
			{Keys: bson.D{{Key: "workspace_id", Value: 1}}},
			{Keys: bson.D{{Key: "expires_at", Value: 1}}},
			{Keys: bson.D{{Key: "hour_bucket", Value: 1}}},
		},
		colTransactions: {
			{Keys: bson.D{{Key: "workspace_id", Value: 1}, {Key: "created_at", Value: 1}}},
			{Keys: bson.D{{Key: "workspace_id", Value: 1}, {Key: "agent_id", Value: 1}, {Key: "created_at", Value: 1}}},
			{Keys: bson.D{{Key: "workspace_id", Value: 1}, {Key: "source", Value: 1}}},
		},
	}
}
