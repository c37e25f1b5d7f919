// Package credits provides a prepaid credit reservation and ledger engine
// for Go applications.
//
// Credits is designed as a library, not a service. Import it directly into
// your Go application. It provides:
//
//   - Per-workspace prepaid balances in integer micro-units
//   - Optimistic compare-and-swap balance updates with bounded retry
//   - TTL'd reservations with reconciliation, refund, and expiry sweeping
//   - An admission gate combining cost estimation, spending limits, and
//     credit reservation
//   - A transaction buffer for all-or-nothing ledger commits
//   - Metered charges for non-model operations (search, rerank)
//
// # Quick Start
//
// Create a credits instance with your preferred store:
//
//	import (
//	    "github.com/xraph/credits"
//	    "github.com/xraph/credits/store/postgres"
//	)
//
//	// Initialize store
//	store, err := postgres.New(databaseURL)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Create engine
//	c := credits.New(store)
//
//	// Start the engine (migrates the store, begins the expiry sweeper)
//	if err := c.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer c.Stop()
//
// # Core Concepts
//
// Workspaces hold prepaid balances:
//
//	ws := workspace.New("acme", credits.USD(100_000_000))
//	err := c.CreateWorkspace(ctx, ws)
//
// Reservations hold estimated cost aside before work begins:
//
//	res, err := c.Reserve(ctx, ws.ID, credits.USD(10_000_000))
//
// Reconciliation settles the reservation against actual cost, returning
// the unused portion (or deducting the overrun):
//
//	_, err = c.Adjust(ctx, ws.ID, res.ID, credits.USD(8_000_000))
//
// The admission gate runs estimation, spending limits, and reservation in
// one call:
//
//	res, err := c.ValidateAndReserve(ctx, credits.AdmissionRequest{
//	    WorkspaceID: ws.ID,
//	    Provider:    "anthropic",
//	    Model:       "large",
//	    Messages:    msgs,
//	})
//
// Units of work buffer ledger writes until the whole operation succeeds:
//
//	err := c.RunUnitOfWork(ctx, func(ctx context.Context) error {
//	    // metered charges and reservation settlements accumulate here
//	    return doWork(ctx)
//	})
//
// # Money
//
// All monetary calculations use integer arithmetic to avoid floating-point
// precision issues. The Money type represents amounts in micro-units of the
// currency: 1_000_000 micros is one major unit (one dollar for USD).
//
// # TypeID
//
// All entities use TypeID for globally unique, type-safe identifiers:
//
//	ws_01h2xcejqtf2nbrexx3vqjhp41   // Workspace ID
//	rsv_01h2xcejqtf2nbrexx3vqjhp41  // Reservation ID
//	txn_01h455vb4pex5vsknk084sn02q  // Transaction ID
//
// TypeIDs are K-sortable, making them ideal for database indexes and
// providing natural time-ordering of entities.
package credits
