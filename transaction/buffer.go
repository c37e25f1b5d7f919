package transaction

import (
	"context"
	"sync"
)

// Buffer accumulates transactions during a unit of work for a deferred
// all-or-nothing commit. Entries are grouped by workspace and preserve
// append order within each workspace.
//
// A Buffer is safe for concurrent use: nested operations inside one unit of
// work may append from multiple goroutines.
type Buffer struct {
	mu      sync.Mutex
	entries map[string][]*CreditTransaction // keyed by workspace ID string
	order   []string                        // workspace insertion order
}

// NewBuffer creates an empty buffer.
func NewBuffer() *Buffer {
	return &Buffer{entries: make(map[string][]*CreditTransaction)}
}

// Append records a transaction for later commit.
func (b *Buffer) Append(txn *CreditTransaction) {
	b.mu.Lock()
	defer b.mu.Unlock()

	key := txn.WorkspaceID.String()
	if _, ok := b.entries[key]; !ok {
		b.order = append(b.order, key)
	}
	b.entries[key] = append(b.entries[key], txn)
}

// Len returns the total number of buffered transactions.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := 0
	for _, txns := range b.entries {
		n += len(txns)
	}
	return n
}

// Drain removes and returns all buffered transactions grouped by workspace,
// in workspace insertion order. The buffer is empty afterwards.
func (b *Buffer) Drain() [][]*CreditTransaction {
	b.mu.Lock()
	defer b.mu.Unlock()

	groups := make([][]*CreditTransaction, 0, len(b.order))
	for _, key := range b.order {
		groups = append(groups, b.entries[key])
	}
	b.entries = make(map[string][]*CreditTransaction)
	b.order = nil
	return groups
}

// Discard drops all buffered transactions without committing them.
func (b *Buffer) Discard() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.entries = make(map[string][]*CreditTransaction)
	b.order = nil
}

type ctxKey struct{}

// WithBuffer returns a context carrying the buffer. Metered operations
// running under the returned context append to it instead of writing to
// the ledger directly.
func WithBuffer(ctx context.Context, b *Buffer) context.Context {
	return context.WithValue(ctx, ctxKey{}, b)
}

// FromContext returns the buffer carried by ctx, or nil if none.
func FromContext(ctx context.Context) *Buffer {
	b, _ := ctx.Value(ctxKey{}).(*Buffer)
	return b
}
