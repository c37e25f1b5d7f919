// Package memory provides an in-memory Store implementation.
// It is intended for tests and local development; nothing survives a
// process restart.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/xraph/credits"
	"github.com/xraph/credits/id"
	"github.com/xraph/credits/limits"
	"github.com/xraph/credits/reservation"
	"github.com/xraph/credits/transaction"
	"github.com/xraph/credits/types"
	"github.com/xraph/credits/workspace"
)

type Store struct {
	mu sync.RWMutex

	// Workspace and agent storage
	workspaces map[string]*workspace.Workspace
	agents     map[string]*workspace.Agent

	// Reservation storage
	reservations map[string]*reservation.Reservation

	// Transaction ledger, append-only
	transactions []*transaction.CreditTransaction

	closed bool
}

func New() *Store {
	return &Store{
		workspaces:   make(map[string]*workspace.Workspace),
		agents:       make(map[string]*workspace.Agent),
		reservations: make(map[string]*reservation.Reservation),
		transactions: make([]*transaction.CreditTransaction, 0),
	}
}

// Workspace Store implementation

func (s *Store) CreateWorkspace(_ context.Context, w *workspace.Workspace) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return credits.ErrStoreClosed
	}
	if _, exists := s.workspaces[w.ID.String()]; exists {
		return credits.ErrAlreadyExists
	}
	cp := *w
	s.workspaces[w.ID.String()] = &cp
	return nil
}

func (s *Store) GetWorkspace(_ context.Context, workspaceID id.WorkspaceID) (*workspace.Workspace, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, credits.ErrStoreClosed
	}
	if w, ok := s.workspaces[workspaceID.String()]; ok {
		cp := *w
		return &cp, nil
	}
	return nil, credits.ErrWorkspaceNotFound
}

func (s *Store) UpdateWorkspace(_ context.Context, w *workspace.Workspace) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return credits.ErrStoreClosed
	}
	if _, exists := s.workspaces[w.ID.String()]; !exists {
		return credits.ErrWorkspaceNotFound
	}
	w.Touch()
	cp := *w
	s.workspaces[w.ID.String()] = &cp
	return nil
}

func (s *Store) CompareAndSwapBalance(_ context.Context, workspaceID id.WorkspaceID, expectedVersion int64, newBalance int64) (*workspace.Workspace, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, credits.ErrStoreClosed
	}
	w, ok := s.workspaces[workspaceID.String()]
	if !ok {
		return nil, credits.ErrWorkspaceNotFound
	}
	if w.Version != expectedVersion {
		return nil, credits.ErrVersionConflict
	}

	w.Balance = types.Micros(newBalance, w.Balance.Currency)
	w.Version++
	w.Touch()

	cp := *w
	return &cp, nil
}

// Agent Store implementation

func (s *Store) CreateAgent(_ context.Context, a *workspace.Agent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return credits.ErrStoreClosed
	}
	if _, exists := s.agents[a.ID.String()]; exists {
		return credits.ErrAlreadyExists
	}
	if _, exists := s.workspaces[a.WorkspaceID.String()]; !exists {
		return credits.ErrWorkspaceNotFound
	}
	cp := *a
	s.agents[a.ID.String()] = &cp
	return nil
}

func (s *Store) GetAgent(_ context.Context, agentID id.AgentID) (*workspace.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, credits.ErrStoreClosed
	}
	if a, ok := s.agents[agentID.String()]; ok {
		cp := *a
		return &cp, nil
	}
	return nil, credits.ErrAgentNotFound
}

// Reservation Store implementation

func (s *Store) CreateReservation(_ context.Context, r *reservation.Reservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return credits.ErrStoreClosed
	}
	if _, exists := s.reservations[r.ID.String()]; exists {
		return credits.ErrAlreadyExists
	}
	cp := *r
	s.reservations[r.ID.String()] = &cp
	return nil
}

func (s *Store) GetReservation(_ context.Context, reservationID id.ReservationID) (*reservation.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, credits.ErrStoreClosed
	}
	if r, ok := s.reservations[reservationID.String()]; ok {
		cp := *r
		return &cp, nil
	}
	return nil, credits.ErrReservationNotFound
}

func (s *Store) DeleteReservation(_ context.Context, reservationID id.ReservationID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return credits.ErrStoreClosed
	}
	if _, exists := s.reservations[reservationID.String()]; !exists {
		return credits.ErrReservationNotFound
	}
	delete(s.reservations, reservationID.String())
	return nil
}

func (s *Store) ListExpiredReservations(_ context.Context, before time.Time, limit int) ([]*reservation.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, credits.ErrStoreClosed
	}
	result := make([]*reservation.Reservation, 0)
	for _, r := range s.reservations {
		if r.ExpiresAt.Before(before) {
			cp := *r
			result = append(result, &cp)
		}
	}
	// Oldest first so repeated sweeps make progress under a limit.
	sort.Slice(result, func(i, j int) bool {
		return result[i].ExpiresAt.Before(result[j].ExpiresAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// Transaction Store implementation

func (s *Store) AppendTransactions(_ context.Context, txns []*transaction.CreditTransaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return credits.ErrStoreClosed
	}
	for _, txn := range txns {
		cp := *txn
		s.transactions = append(s.transactions, &cp)
	}
	return nil
}

func (s *Store) ListTransactions(_ context.Context, workspaceID id.WorkspaceID, opts transaction.ListOpts) ([]*transaction.CreditTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, credits.ErrStoreClosed
	}
	result := make([]*transaction.CreditTransaction, 0)
	for _, txn := range s.transactions {
		if !txn.WorkspaceID.Equal(workspaceID) {
			continue
		}
		if opts.Source != "" && txn.Source != opts.Source {
			continue
		}
		if !opts.Since.IsZero() && txn.CreatedAt.Before(opts.Since) {
			continue
		}
		if !opts.Until.IsZero() && txn.CreatedAt.After(opts.Until) {
			continue
		}
		cp := *txn
		result = append(result, &cp)
	}

	// Apply limit/offset
	start := opts.Offset
	if start > len(result) {
		start = len(result)
	}
	end := start + opts.Limit
	if opts.Limit == 0 || end > len(result) {
		end = len(result)
	}

	return result[start:end], nil
}

func (s *Store) SumSpend(_ context.Context, f limits.SpendFilter) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, credits.ErrStoreClosed
	}
	var total int64
	for _, txn := range s.transactions {
		if !txn.WorkspaceID.Equal(f.WorkspaceID) {
			continue
		}
		if !f.AgentID.IsNil() && !txn.AgentID.Equal(f.AgentID) {
			continue
		}
		if !f.Since.IsZero() && txn.CreatedAt.Before(f.Since) {
			continue
		}
		if txn.Amount.IsNegative() {
			total += -txn.Amount.Amount
		}
	}
	return total, nil
}

// Core Store implementation

func (s *Store) Migrate(_ context.Context) error { return nil }

func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return credits.ErrStoreClosed
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	return nil
}
