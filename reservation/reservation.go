// Package reservation defines the credit reservation model.
//
// A reservation is an upfront hold of estimated cost against a workspace
// balance. The hold is settled later by reconciliation against actual cost,
// refunded, or reclaimed by the expiry sweeper once its TTL passes.
package reservation

import (
	"time"

	"github.com/xraph/credits/id"
	"github.com/xraph/credits/types"
)

// DefaultTTL is how long a reservation stays claimable before the expiry
// sweeper reclaims it.
const DefaultTTL = 15 * time.Minute

// SentinelID marks an admission that passed the gate without holding
// credits: the caller used its own provider credentials, so no balance was
// reserved. Reconciliation and refund treat it as a no-op.
var SentinelID = id.MustParseWithPrefix("rsv_00000000000000000000000000", id.PrefixReservation)

// Reservation is a hold of estimated cost against a workspace balance.
type Reservation struct {
	types.Entity

	ID          id.ReservationID `json:"id"`
	WorkspaceID id.WorkspaceID   `json:"workspace_id"`

	// ReservedAmount is what was actually deducted from the balance.
	ReservedAmount types.Money `json:"reserved_amount"`

	// EstimatedCost is the estimate the hold was sized from. Kept separately
	// so reconciliation can report estimate accuracy.
	EstimatedCost types.Money `json:"estimated_cost"`

	// ExpiresAt is when the sweeper may reclaim the hold.
	ExpiresAt time.Time `json:"expires_at"`

	// HourBucket groups reservations by the UTC hour they expire in,
	// formatted as "2006-01-02-15". Backends index it so batch-expiry
	// scans stay cheap.
	HourBucket string `json:"hour_bucket"`
}

// New creates a reservation with a fresh ID and an expiry of now+ttl.
func New(workspaceID id.WorkspaceID, reserved, estimated types.Money, ttl time.Duration) *Reservation {
	expiresAt := time.Now().UTC().Add(ttl)
	return &Reservation{
		Entity:         types.NewEntity(),
		ID:             id.NewReservationID(),
		WorkspaceID:    workspaceID,
		ReservedAmount: reserved,
		EstimatedCost:  estimated,
		ExpiresAt:      expiresAt,
		HourBucket:     HourBucket(expiresAt),
	}
}

// Expired reports whether the reservation's TTL has passed at t.
func (r *Reservation) Expired(t time.Time) bool {
	return t.After(r.ExpiresAt)
}

// HourBucket formats t as the UTC hour bucket key.
func HourBucket(t time.Time) string {
	return t.UTC().Format("2006-01-02-15")
}
