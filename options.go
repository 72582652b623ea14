package depadvise

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Option configures advisory behavior.
type Option func(*advisorConfig) error

// advisorConfig holds all advisory configuration.
type advisorConfig struct {
	strategy        StrategyKind
	maxCombinations int
	concurrency     int
	testTimeout     time.Duration
	skipTests       bool
	priorityMode    PriorityMode
	impactThreshold float64
	catalog         Catalog
	catalogTTL      time.Duration
	rules           []CompatibilityRule
	verifier        LayerVerifier
	history         *HistoryStore
	seed            int64

	// logger is the structured logger for debug/info output.
	// Nil disables logging.
	logger *slog.Logger
}

// defaultAdvisorConfig returns the configuration used when no option
// overrides it.
func defaultAdvisorConfig() *advisorConfig {
	return &advisorConfig{
		strategy:        StrategyBalanced,
		maxCombinations: 10,
		concurrency:     4,
		testTimeout:     30 * time.Second,
		priorityMode:    PriorityHybrid,
		impactThreshold: 0.5,
		catalogTTL:      6 * time.Hour,
	}
}

// WithStrategy selects the update strategy. Default is StrategyBalanced.
func WithStrategy(kind StrategyKind) Option {
	return func(c *advisorConfig) error {
		c.strategy = kind
		return nil
	}
}

// WithMaxCombinations bounds how many candidate configurations are
// generated and kept after prefiltering. Default is 10.
func WithMaxCombinations(n int) Option {
	return func(c *advisorConfig) error {
		c.maxCombinations = n
		return nil
	}
}

// WithConcurrency sets the parallel tester's worker count. Default is 4.
func WithConcurrency(n int) Option {
	return func(c *advisorConfig) error {
		c.concurrency = n
		return nil
	}
}

// WithTestTimeout sets the per-configuration test time budget.
// Default is 30 seconds.
func WithTestTimeout(d time.Duration) Option {
	return func(c *advisorConfig) error {
		c.testTimeout = d
		return nil
	}
}

// WithSkipTests disables configuration testing. Candidates are then
// ranked on compatibility and scores alone.
func WithSkipTests() Option {
	return func(c *advisorConfig) error {
		c.skipTests = true
		return nil
	}
}

// WithPriorityMode selects how the prefilter scores candidates.
// Default is PriorityHybrid.
func WithPriorityMode(mode PriorityMode) Option {
	return func(c *advisorConfig) error {
		c.priorityMode = mode
		return nil
	}
}

// WithImpactThreshold caps the per-change impact accepted by the
// incremental updater, in [0, 1]. Default is 0.5.
func WithImpactThreshold(t float64) Option {
	return func(c *advisorConfig) error {
		c.impactThreshold = t
		return nil
	}
}

// WithCatalog sets the version catalog to consult. Without it the
// advisor can only work from a supplied current configuration.
func WithCatalog(cat Catalog) Option {
	return func(c *advisorConfig) error {
		c.catalog = cat
		return nil
	}
}

// WithCatalogTTL sets how long fetched version metadata stays fresh
// before a lookup triggers a refetch. Default is 6 hours.
func WithCatalogTTL(d time.Duration) Option {
	return func(c *advisorConfig) error {
		c.catalogTTL = d
		return nil
	}
}

// WithRules replaces the built-in compatibility rule set.
func WithRules(rules ...CompatibilityRule) Option {
	return func(c *advisorConfig) error {
		c.rules = append(c.rules, rules...)
		return nil
	}
}

// WithVerifier sets the layer verifier used when testing
// configurations. Default is a simulated verifier.
func WithVerifier(v LayerVerifier) Option {
	return func(c *advisorConfig) error {
		c.verifier = v
		return nil
	}
}

// WithHistory attaches a persistent store for configurations and test
// results. Without it history stays in memory for the process lifetime.
func WithHistory(store *HistoryStore) Option {
	return func(c *advisorConfig) error {
		c.history = store
		return nil
	}
}

// WithSeed fixes the random seed of the simulated verifier so runs
// reproduce. Zero derives the seed from the clock.
func WithSeed(seed int64) Option {
	return func(c *advisorConfig) error {
		c.seed = seed
		return nil
	}
}

// WithLogger sets a structured logger for advisory diagnostics.
// If not set, logging is disabled (silent mode).
//
// The library uses log/slog which supports any backend via handlers.
//
// Example:
//
//	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil)).With("component", "depadvise")
//	m, err := NewManager(WithLogger(logger))
func WithLogger(l *slog.Logger) Option {
	return func(c *advisorConfig) error {
		c.logger = l
		return nil
	}
}

// validate checks the configuration for logical consistency.
func (c *advisorConfig) validate() error {
	if c.maxCombinations < 1 {
		return errors.New("maxCombinations must be at least 1")
	}
	if c.concurrency < 1 {
		return errors.New("concurrency must be at least 1")
	}
	if c.testTimeout < 0 {
		return errors.New("testTimeout must be positive")
	}
	if c.impactThreshold < 0 || c.impactThreshold > 1 {
		return errors.New("impactThreshold must be in [0, 1]")
	}
	if _, err := ParseStrategyKind(string(c.strategy)); err != nil {
		return err
	}
	if _, err := ParsePriorityMode(string(c.priorityMode)); err != nil {
		return err
	}
	return nil
}

// log returns the configured logger, or a no-op logger if none was set,
// so internal code never nil-checks.
func (c *advisorConfig) log() *slog.Logger {
	if c.logger != nil {
		return c.logger
	}
	return slog.New(discardHandler{})
}

// discardHandler is a slog.Handler that discards all log records.
// Used when no logger is configured to avoid nil checks throughout.
type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }

// newAdvisorConfig builds an advisor configuration by applying the
// given options on top of the defaults and validating the result.
func newAdvisorConfig(opts ...Option) (*advisorConfig, error) {
	c := defaultAdvisorConfig()
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}
