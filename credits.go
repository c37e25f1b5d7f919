package credits

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/credits/id"
	"github.com/xraph/credits/limits"
	"github.com/xraph/credits/plugin"
	"github.com/xraph/credits/pricing"
	"github.com/xraph/credits/store"
	"github.com/xraph/credits/types"
	"github.com/xraph/credits/workspace"
)

// Default engine configuration.
const (
	// DefaultMaxRetries bounds the compare-and-swap retry loop. Version
	// conflicts beyond this count surface as a CreditDeductionError.
	DefaultMaxRetries = 3

	// DefaultSweepInterval is how often the expiry sweeper runs.
	DefaultSweepInterval = time.Minute

	// DefaultSweepBatchSize caps reservations reclaimed per sweep.
	DefaultSweepBatchSize = 100
)

// Credits is the credit reservation and ledger engine.
type Credits struct {
	store   store.Store
	plugins *plugin.Registry
	logger  *slog.Logger

	estimator pricing.Estimator
	checker   limits.Checker

	// Background sweeper
	stopChan chan struct{}
	wg       sync.WaitGroup

	// Configuration
	maxRetries     int
	reservationTTL time.Duration
	sweepInterval  time.Duration
	sweepBatchSize int
	deductCredits  bool
	enforceLimits  bool
}

// New creates a new Credits engine.
func New(s store.Store, opts ...Option) *Credits {
	c := &Credits{
		store:          s,
		plugins:        plugin.NewRegistry(),
		logger:         slog.Default(),
		stopChan:       make(chan struct{}),
		maxRetries:     DefaultMaxRetries,
		reservationTTL: 15 * time.Minute,
		sweepInterval:  DefaultSweepInterval,
		sweepBatchSize: DefaultSweepBatchSize,
		deductCredits:  true,
		enforceLimits:  true,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.estimator == nil {
		c.estimator = pricing.NewTable(pricing.Rate{
			InputMicrosPerMtok:  3_000_000,
			OutputMicrosPerMtok: 15_000_000,
			Currency:            "usd",
		})
	}
	if c.checker == nil {
		c.checker = limits.NewStoreChecker(s, limits.WithLogger(c.logger))
	}

	return c
}

// Option configures a Credits engine.
type Option func(*Credits)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Credits) {
		c.logger = logger
		c.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(c *Credits) {
		_ = c.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithEstimator sets the cost estimator used by the admission gate.
func WithEstimator(e pricing.Estimator) Option {
	return func(c *Credits) { c.estimator = e }
}

// WithChecker sets the spending-limit checker.
func WithChecker(ch limits.Checker) Option {
	return func(c *Credits) { c.checker = ch }
}

// WithMaxRetries bounds the compare-and-swap retry loop.
func WithMaxRetries(n int) Option {
	return func(c *Credits) { c.maxRetries = n }
}

// WithReservationTTL sets how long reservations stay claimable.
func WithReservationTTL(ttl time.Duration) Option {
	return func(c *Credits) { c.reservationTTL = ttl }
}

// WithSweepConfig configures the expiry sweeper.
func WithSweepConfig(interval time.Duration, batchSize int) Option {
	return func(c *Credits) {
		c.sweepInterval = interval
		c.sweepBatchSize = batchSize
	}
}

// WithDeductCredits toggles balance reservation at admission time.
func WithDeductCredits(enabled bool) Option {
	return func(c *Credits) { c.deductCredits = enabled }
}

// WithEnforceLimits toggles spending-limit checks at admission time.
func WithEnforceLimits(enabled bool) Option {
	return func(c *Credits) { c.enforceLimits = enabled }
}

// Start migrates the store, initializes plugins, and begins the expiry
// sweeper.
func (c *Credits) Start(ctx context.Context) error {
	if err := c.store.Migrate(ctx); err != nil {
		return err
	}

	c.plugins.EmitInit(ctx, c)

	c.wg.Add(1)
	go c.sweepWorker(ctx)

	c.logger.Info("credits engine started",
		"max_retries", c.maxRetries,
		"reservation_ttl", c.reservationTTL,
		"sweep_interval", c.sweepInterval,
		"deduct_credits", c.deductCredits,
		"enforce_limits", c.enforceLimits,
	)

	return nil
}

// Stop shuts down the engine.
func (c *Credits) Stop() error {
	close(c.stopChan)
	c.wg.Wait()

	ctx := context.Background()
	c.plugins.EmitShutdown(ctx)

	return c.store.Close()
}

// Store returns the underlying store.
func (c *Credits) Store() store.Store { return c.store }

// Plugins returns the plugin registry.
func (c *Credits) Plugins() *plugin.Registry { return c.plugins }

// ──────────────────────────────────────────────────
// Workspace Management
// ──────────────────────────────────────────────────

// CreateWorkspace creates a new workspace.
func (c *Credits) CreateWorkspace(ctx context.Context, w *workspace.Workspace) error {
	if w.ID.IsNil() {
		w.ID = id.NewWorkspaceID()
	}
	if w.CreatedAt.IsZero() {
		w.Entity = types.NewEntity()
	}
	return c.store.CreateWorkspace(ctx, w)
}

// GetWorkspace retrieves a workspace by ID.
func (c *Credits) GetWorkspace(ctx context.Context, workspaceID id.WorkspaceID) (*workspace.Workspace, error) {
	return c.store.GetWorkspace(ctx, workspaceID)
}

// Balance returns a workspace's current balance.
func (c *Credits) Balance(ctx context.Context, workspaceID id.WorkspaceID) (types.Money, error) {
	w, err := c.store.GetWorkspace(ctx, workspaceID)
	if err != nil {
		return types.Money{}, err
	}
	return w.Balance, nil
}

// CreateAgent creates a new agent in a workspace.
func (c *Credits) CreateAgent(ctx context.Context, a *workspace.Agent) error {
	if a.ID.IsNil() {
		a.ID = id.NewAgentID()
	}
	if a.CreatedAt.IsZero() {
		a.Entity = types.NewEntity()
	}
	return c.store.CreateAgent(ctx, a)
}

// GetAgent retrieves an agent by ID.
func (c *Credits) GetAgent(ctx context.Context, agentID id.AgentID) (*workspace.Agent, error) {
	return c.store.GetAgent(ctx, agentID)
}
