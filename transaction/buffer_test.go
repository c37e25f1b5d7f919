package transaction_test

import (
	"context"
	"testing"

	"github.com/xraph/credits/id"
	"github.com/xraph/credits/transaction"
	"github.com/xraph/credits/types"
)

func TestBuffer(t *testing.T) {
	t.Run("GroupsByWorkspaceInOrder", func(t *testing.T) {
		buf := transaction.NewBuffer()
		wsA := id.NewWorkspaceID()
		wsB := id.NewWorkspaceID()

		buf.Append(transaction.New(wsA, transaction.SourceSearch, types.USD(-100)))
		buf.Append(transaction.New(wsB, transaction.SourceRerank, types.USD(-200)))
		buf.Append(transaction.New(wsA, transaction.SourceSearch, types.USD(-300)))

		if buf.Len() != 3 {
			t.Fatalf("Len() = %d, want 3", buf.Len())
		}

		groups := buf.Drain()
		if len(groups) != 2 {
			t.Fatalf("groups = %d, want 2", len(groups))
		}
		// First workspace seen comes first; append order preserved within it.
		if !groups[0][0].WorkspaceID.Equal(wsA) {
			t.Error("first group should belong to the first workspace appended")
		}
		if len(groups[0]) != 2 || groups[0][1].Amount.Amount != -300 {
			t.Errorf("workspace A group = %v, want two entries ending at -300", groups[0])
		}
		if len(groups[1]) != 1 || !groups[1][0].WorkspaceID.Equal(wsB) {
			t.Errorf("workspace B group = %v, want one entry", groups[1])
		}
	})

	t.Run("DrainEmpties", func(t *testing.T) {
		buf := transaction.NewBuffer()
		buf.Append(transaction.New(id.NewWorkspaceID(), transaction.SourceSearch, types.USD(-1)))

		buf.Drain()
		if buf.Len() != 0 {
			t.Errorf("Len() after Drain = %d, want 0", buf.Len())
		}
		if groups := buf.Drain(); len(groups) != 0 {
			t.Errorf("second Drain returned %d groups, want 0", len(groups))
		}
	})

	t.Run("DiscardDropsEverything", func(t *testing.T) {
		buf := transaction.NewBuffer()
		buf.Append(transaction.New(id.NewWorkspaceID(), transaction.SourceSearch, types.USD(-1)))
		buf.Append(transaction.New(id.NewWorkspaceID(), transaction.SourceRerank, types.USD(-2)))

		buf.Discard()
		if buf.Len() != 0 {
			t.Errorf("Len() after Discard = %d, want 0", buf.Len())
		}
		if groups := buf.Drain(); len(groups) != 0 {
			t.Errorf("Drain after Discard returned %d groups, want 0", len(groups))
		}
	})
}

func TestBufferContext(t *testing.T) {
	if got := transaction.FromContext(context.Background()); got != nil {
		t.Errorf("FromContext on bare context = %v, want nil", got)
	}

	buf := transaction.NewBuffer()
	ctx := transaction.WithBuffer(context.Background(), buf)
	if got := transaction.FromContext(ctx); got != buf {
		t.Error("FromContext should return the attached buffer")
	}
}

func TestDeferredSettlement(t *testing.T) {
	tests := []struct {
		source transaction.Source
		want   bool
	}{
		{transaction.SourceReservation, false},
		{transaction.SourceReconciliation, false},
		{transaction.SourceRefund, false},
		{transaction.SourceExpiry, false},
		{transaction.SourceSearch, true},
		{transaction.SourceRerank, true},
		{transaction.Source("embedding"), true},
	}

	for _, tt := range tests {
		t.Run(string(tt.source), func(t *testing.T) {
			if got := tt.source.DeferredSettlement(); got != tt.want {
				t.Errorf("DeferredSettlement() = %v, want %v", got, tt.want)
			}
		})
	}
}
