package domain

import (
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestLedgerStatus_Predicates(t *testing.T) {
	cases := []struct {
		status      LedgerStatus
		open        bool
		collectible bool
		terminal    bool
	}{
		{LedgerPending, true, true, false},
		{LedgerBilled, true, true, false},
		{LedgerSettled, false, false, true},
		{LedgerFailed, false, true, true},
		{LedgerWaived, false, false, true},
	}

	for _, tc := range cases {
		t.Run(string(tc.status), func(t *testing.T) {
			if got := tc.status.Open(); got != tc.open {
				t.Fatalf("Open() = %v, want %v", got, tc.open)
			}
			if got := tc.status.Collectible(); got != tc.collectible {
				t.Fatalf("Collectible() = %v, want %v", got, tc.collectible)
			}
			if got := tc.status.Terminal(); got != tc.terminal {
				t.Fatalf("Terminal() = %v, want %v", got, tc.terminal)
			}
		})
	}
}

func TestLedgerStatus_FailedStaysCollectible(t *testing.T) {
	// A declined charge must be retryable through a new payment over the
	// same entry, so failed cannot drop out of the collectible set.
	if !LedgerFailed.Collectible() {
		t.Fatal("expected a failed entry to remain collectible for retry")
	}
	if LedgerFailed.Open() {
		t.Fatal("expected a failed entry to be closed to waivers")
	}
}

func TestInitialStatus(t *testing.T) {
	if got := InitialStatus(BillingRealtime); got != LedgerBilled {
		t.Fatalf("expected realtime entries to start billed, got %s", got)
	}
	if got := InitialStatus(BillingDeferred); got != LedgerPending {
		t.Fatalf("expected deferred entries to start pending, got %s", got)
	}
}

func TestInvalidStateError_NamesOffendingEntries(t *testing.T) {
	id := uuid.New()
	err := &InvalidStateError{Requested: LedgerWaived, EntryIDs: []uuid.UUID{id}}
	if !strings.Contains(err.Error(), id.String()) {
		t.Fatalf("expected error to name the entry, got %q", err.Error())
	}
}
