// Package id defines TypeID-based identity types for all Credits entities.
//
// Every entity uses a single ID struct with a prefix that identifies the
// entity type. IDs are K-sortable (UUIDv7-based), globally unique, and
// URL-safe in the format "prefix_suffix".
package id

import (
	"database/sql/driver"
	"fmt"

	"go.jetify.com/typeid/v2"
)

// Prefix identifies the entity type encoded in a TypeID.
type Prefix string

// Prefix constants for all Credits entity types.
const (
	PrefixWorkspace    Prefix = "ws"   // Tenant workspace
	PrefixAgent        Prefix = "agt"  // Agent within a workspace
	PrefixReservation  Prefix = "rsv"  // Credit reservation
	PrefixTransaction  Prefix = "txn"  // Ledger transaction
	PrefixConversation Prefix = "conv" // Conversation attribution
	PrefixLimit        Prefix = "lim"  // Spending limit
)

// ID is the primary identifier type for all Credits entities.
// It wraps a TypeID providing a prefix-qualified, globally unique,
// sortable, URL-safe identifier in the format "prefix_suffix".
//
//nolint:recvcheck // Value receivers for read-only methods, pointer receivers for UnmarshalText/Scan.
type ID struct {
	inner typeid.TypeID
	valid bool
}

// Nil is the zero-value ID.
var Nil ID

// New generates a new globally unique ID with the given prefix.
// It panics if prefix is not a valid TypeID prefix (programming error).
func New(prefix Prefix) ID {
	tid, err := typeid.Generate(string(prefix))
	if err != nil {
		panic(fmt.Sprintf("id: invalid prefix %q: %v", prefix, err))
	}

	return ID{inner: tid, valid: true}
}

// Parse parses a TypeID string (e.g., "ws_01h2xcejqtf2nbrexx3vqjhp41")
// into an ID. Returns an error if the string is not valid.
func Parse(s string) (ID, error) {
	if s == "" {
		return Nil, fmt.Errorf("id: parse %q: empty string", s)
	}

	tid, err := typeid.Parse(s)
	if err != nil {
		return Nil, fmt.Errorf("id: parse %q: %w", s, err)
	}

	return ID{inner: tid, valid: true}, nil
}

// ParseWithPrefix parses a TypeID string and validates that its prefix
// matches the expected value.
func ParseWithPrefix(s string, expected Prefix) (ID, error) {
	parsed, err := Parse(s)
	if err != nil {
		return Nil, err
	}

	if parsed.Prefix() != expected {
		return Nil, fmt.Errorf("id: expected prefix %q, got %q", expected, parsed.Prefix())
	}

	return parsed, nil
}

// MustParse is like Parse but panics on error. Use for hardcoded ID values.
func MustParse(s string) ID {
	parsed, err := Parse(s)
	if err != nil {
		panic(fmt.Sprintf("id: must parse %q: %v", s, err))
	}

	return parsed
}

// MustParseWithPrefix is like ParseWithPrefix but panics on error.
func MustParseWithPrefix(s string, expected Prefix) ID {
	parsed, err := ParseWithPrefix(s, expected)
	if err != nil {
		panic(fmt.Sprintf("id: must parse with prefix %q: %v", expected, err))
	}

	return parsed
}

// ──────────────────────────────────────────────────
// Type aliases per entity
// ──────────────────────────────────────────────────

// WorkspaceID is a type-safe identifier for workspaces (prefix: "ws").
type WorkspaceID = ID

// AgentID is a type-safe identifier for agents (prefix: "agt").
type AgentID = ID

// ReservationID is a type-safe identifier for reservations (prefix: "rsv").
type ReservationID = ID

// TransactionID is a type-safe identifier for ledger transactions (prefix: "txn").
type TransactionID = ID

// ConversationID is a type-safe identifier for conversations (prefix: "conv").
type ConversationID = ID

// LimitID is a type-safe identifier for spending limits (prefix: "lim").
type LimitID = ID

// ──────────────────────────────────────────────────
// Convenience constructors
// ──────────────────────────────────────────────────

// NewWorkspaceID generates a new unique workspace ID.
func NewWorkspaceID() ID { return New(PrefixWorkspace) }

// NewAgentID generates a new unique agent ID.
func NewAgentID() ID { return New(PrefixAgent) }

// NewReservationID generates a new unique reservation ID.
func NewReservationID() ID { return New(PrefixReservation) }

// NewTransactionID generates a new unique transaction ID.
func NewTransactionID() ID { return New(PrefixTransaction) }

// NewConversationID generates a new unique conversation ID.
func NewConversationID() ID { return New(PrefixConversation) }

// NewLimitID generates a new unique spending limit ID.
func NewLimitID() ID { return New(PrefixLimit) }

// ──────────────────────────────────────────────────
// Convenience parsers
// ──────────────────────────────────────────────────

// ParseWorkspaceID parses a string and validates the "ws" prefix.
func ParseWorkspaceID(s string) (ID, error) { return ParseWithPrefix(s, PrefixWorkspace) }

// ParseAgentID parses a string and validates the "agt" prefix.
func ParseAgentID(s string) (ID, error) { return ParseWithPrefix(s, PrefixAgent) }

// ParseReservationID parses a string and validates the "rsv" prefix.
func ParseReservationID(s string) (ID, error) { return ParseWithPrefix(s, PrefixReservation) }

// ParseTransactionID parses a string and validates the "txn" prefix.
func ParseTransactionID(s string) (ID, error) { return ParseWithPrefix(s, PrefixTransaction) }

// ParseConversationID parses a string and validates the "conv" prefix.
func ParseConversationID(s string) (ID, error) { return ParseWithPrefix(s, PrefixConversation) }

// ParseLimitID parses a string and validates the "lim" prefix.
func ParseLimitID(s string) (ID, error) { return ParseWithPrefix(s, PrefixLimit) }

// ParseAny parses a string into an ID without type checking the prefix.
func ParseAny(s string) (ID, error) { return Parse(s) }

// ──────────────────────────────────────────────────
// ID methods
// ──────────────────────────────────────────────────

// String returns the full TypeID string representation (prefix_suffix).
// Returns an empty string for the Nil ID.
func (i ID) String() string {
	if !i.valid {
		return ""
	}

	return i.inner.String()
}

// Prefix returns the prefix component of this ID.
func (i ID) Prefix() Prefix {
	if !i.valid {
		return ""
	}

	return Prefix(i.inner.Prefix())
}

// IsNil reports whether this ID is the zero value.
func (i ID) IsNil() bool {
	return !i.valid
}

// Equal reports whether two IDs identify the same entity.
func (i ID) Equal(other ID) bool {
	if !i.valid || !other.valid {
		return i.valid == other.valid
	}

	return i.inner.String() == other.inner.String()
}

// MarshalText implements encoding.TextMarshaler.
func (i ID) MarshalText() ([]byte, error) {
	if !i.valid {
		return []byte{}, nil
	}

	return []byte(i.inner.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (i *ID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*i = Nil

		return nil
	}

	parsed, err := Parse(string(data))
	if err != nil {
		return err
	}

	*i = parsed

	return nil
}

// Value implements driver.Valuer for database storage.
// Returns nil for the Nil ID so that optional foreign key columns store NULL.
func (i ID) Value() (driver.Value, error) {
	if !i.valid {
		return nil, nil //nolint:nilnil // nil is the canonical NULL for driver.Valuer
	}

	return i.inner.String(), nil
}

// Scan implements sql.Scanner for database retrieval.
func (i *ID) Scan(src any) error {
	if src == nil {
		*i = Nil

		return nil
	}

	switch v := src.(type) {
	case string:
		if v == "" {
			*i = Nil

			return nil
		}

		return i.UnmarshalText([]byte(v))
	case []byte:
		if len(v) == 0 {
			*i = Nil

			return nil
		}

		return i.UnmarshalText(v)
	default:
		return fmt.Errorf("id: cannot scan %T into ID", src)
	}
}
