package depadvise

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Manager wires the advisory components into one pipeline: resolve
// versions, generate candidates, prefilter, check compatibility, test,
// select, and learn from the outcomes. Construct with NewManager and
// reuse across runs so the prefilter and predictor accumulate history.
type Manager struct {
	strategyKind    StrategyKind
	strategy        Strategy
	maxCombinations int
	skipTests       bool
	impactThreshold float64

	catalog   Catalog
	matrix    *CompatibilityMatrix
	tester    *ConfigTester
	parallel  *ParallelTester
	prefilter *SmartPrefilter
	predictor *SuccessPredictor
	updater   *IncrementalUpdater
	history   *HistoryStore
	logger    *slog.Logger

	mu       sync.Mutex
	outcomes []TestResult
}

// NewManager builds a manager from options. Without WithCatalog the
// manager works purely from supplied current configurations; without
// WithVerifier testing runs against the simulated verifier.
func NewManager(opts ...Option) (*Manager, error) {
	cfg, err := newAdvisorConfig(opts...)
	if err != nil {
		return nil, err
	}
	logger := cfg.log()

	verifier := cfg.verifier
	if verifier == nil {
		verifier = NewSimulatedVerifier(cfg.seed)
	}
	rules := cfg.rules
	if len(rules) == 0 {
		rules = DefaultRules()
	}

	matrix := NewCompatibilityMatrix(rules...)
	tester := NewConfigTester(matrix, verifier, logger)
	predictor := NewSuccessPredictor(cfg.seed)

	m := &Manager{
		strategyKind:    cfg.strategy,
		maxCombinations: cfg.maxCombinations,
		skipTests:       cfg.skipTests,
		impactThreshold: cfg.impactThreshold,
		matrix:          matrix,
		tester:          tester,
		parallel:        NewParallelTester(tester, cfg.concurrency, cfg.testTimeout, logger),
		prefilter:       NewSmartPrefilter(cfg.maxCombinations, cfg.priorityMode, predictor),
		predictor:       predictor,
		updater:         NewIncrementalUpdater(tester, cfg.history, logger),
		history:         cfg.history,
		logger:          logger,
	}

	if cfg.strategy != StrategyAutomatic {
		strat, err := NewStrategy(cfg.strategy)
		if err != nil {
			return nil, err
		}
		m.strategy = strat
	}
	if cfg.catalog != nil {
		m.catalog = NewCachedCatalog(cfg.catalog, cfg.catalogTTL, logger)
	}
	if cfg.history != nil {
		m.seedFromHistory()
	}
	return m, nil
}

// seedFromHistory replays persisted outcomes into the prefilter and the
// predictor so a fresh process starts where the last one stopped.
func (m *Manager) seedFromHistory() {
	var seeded []TestResult
	m.history.Replay(func(_ ConfigurationSet, res TestResult) {
		m.prefilter.AddResult(res)
		seeded = append(seeded, res)
	})
	if len(seeded) == 0 {
		return
	}
	m.outcomes = append(m.outcomes, seeded...)
	m.predictor.Train(m.outcomes)
	m.logger.Info("seeded learners from history", "results", len(seeded))
}

// GenerateOptimalConfiguration runs the full advisory pipeline for the
// named packages. When a current configuration is supplied it anchors
// the automatic strategy, fills catalog gaps, and receives an
// incremental update plan. The returned result always carries a
// recommendation; only exhausting every candidate fallback fails with
// ErrNoCandidates.
func (m *Manager) GenerateOptimalConfiguration(ctx context.Context, packages []string, current *ConfigurationSet) (*ConfigurationResult, error) {
	started := time.Now()
	metrics := make(map[string]int)

	versions, warnings, err := m.resolveVersions(ctx, packages, current)
	if err != nil {
		return nil, err
	}
	metrics["versions"] = len(versions)

	strat := m.strategyFor(current)
	candidates := strat.GenerateConfigurations(versions, m.maxCombinations)
	metrics["generated"] = len(candidates)
	if len(candidates) == 0 {
		switch {
		case current != nil && current.Complexity() > 0:
			candidates = []ConfigurationSet{current.Clone()}
			warnings = append(warnings, "generation produced no candidates; kept the current configuration")
		case len(versions) > 0:
			candidates = []ConfigurationSet{synthesizeDefault(m.strategyKind, versions)}
			warnings = append(warnings, "generation produced no candidates; synthesized a default from the catalog")
		default:
			return nil, ErrNoCandidates
		}
	}

	shortlisted := m.prefilter.Prefilter(candidates)
	metrics["prefiltered"] = len(shortlisted)

	compatible := make([]ConfigurationSet, 0, len(shortlisted))
	for _, cfg := range shortlisted {
		if m.matrix.IsCompatible(cfg) {
			compatible = append(compatible, cfg)
		}
	}
	if len(compatible) == 0 {
		compatible = shortlisted
		warnings = append(warnings, "no candidate passed compatibility checks; ranking the shortlist as-is")
	}
	metrics["compatible"] = len(compatible)

	pool := compatible
	var results []TestResult
	if !m.skipTests {
		results = m.parallel.TestAll(ctx, compatible)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		metrics["tested"] = len(results)

		var passed []ConfigurationSet
		for _, r := range results {
			if r.Success {
				passed = append(passed, r.Configuration)
			}
		}
		metrics["passed"] = len(passed)
		if len(passed) > 0 {
			pool = passed
		} else {
			warnings = append(warnings, "no tested candidate succeeded; ranking all tested candidates")
		}
	}
	if len(pool) == 0 {
		return nil, ErrNoCandidates
	}

	best := m.selectBest(strat, pool)
	result := &ConfigurationResult{
		Recommended: &best,
		Candidates:  compatible,
		TestResults: results,
		Metrics:     metrics,
		Warnings:    warnings,
	}

	if current != nil {
		plan, err := m.updater.PerformIncrementalUpdate(ctx, *current, versions, m.impactThreshold, false)
		if err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("incremental planning failed: %v", err))
		} else {
			result.Incremental = &plan
		}
	}

	m.learn(results)
	result.Elapsed = time.Since(started)
	m.logger.Info("advisory pipeline complete",
		"recommended", best.Name, "candidates", len(compatible), "elapsed", result.Elapsed)
	return result, nil
}

// TestConfiguration verifies a single configuration and feeds the
// outcome into the learners.
func (m *Manager) TestConfiguration(ctx context.Context, cfg ConfigurationSet) (TestResult, error) {
	result, err := m.tester.Test(ctx, cfg)
	if err != nil {
		return TestResult{}, err
	}
	m.learn([]TestResult{result})
	return result, nil
}

// UpdateSuggestions plans changes from the current configuration toward
// the latest catalog versions, bounded by the configured impact
// threshold.
func (m *Manager) UpdateSuggestions(ctx context.Context, current ConfigurationSet) ([]DependencyChange, error) {
	versions, _, err := m.resolveVersions(ctx, current.PackageNames(), &current)
	if err != nil {
		return nil, err
	}
	return m.updater.GetUpdateSuggestions(current, versions, m.impactThreshold), nil
}

// PlanIncrementalUpdate plans an update of the current configuration and
// optionally verifies the result.
func (m *Manager) PlanIncrementalUpdate(ctx context.Context, current ConfigurationSet, testChanges bool) (IncrementalUpdateResult, error) {
	versions, _, err := m.resolveVersions(ctx, current.PackageNames(), &current)
	if err != nil {
		return IncrementalUpdateResult{}, err
	}
	result, err := m.updater.PerformIncrementalUpdate(ctx, current, versions, m.impactThreshold, testChanges)
	if err != nil {
		return IncrementalUpdateResult{}, err
	}
	if result.TestResult != nil {
		m.learn([]TestResult{*result.TestResult})
	}
	return result, nil
}

// resolveVersions assembles the version pool for a run. Catalog lookups
// win; packages the catalog does not know keep their current version.
// Total catalog failure degrades to the current configuration when one
// exists.
func (m *Manager) resolveVersions(ctx context.Context, packages []string, current *ConfigurationSet) (map[string]VersionInfo, []string, error) {
	var warnings []string
	versions := make(map[string]VersionInfo)

	switch {
	case m.catalog != nil:
		fetched, err := m.catalog.GetLatestVersions(ctx, packages)
		switch {
		case err == nil:
			versions = fetched
		case current != nil:
			warnings = append(warnings, fmt.Sprintf("catalog unavailable, working from the current configuration: %v", err))
		default:
			return nil, nil, fmt.Errorf("resolving versions: %w", err)
		}
	case current == nil:
		return nil, nil, fmt.Errorf("%w: no catalog configured and no current configuration supplied", ErrCatalogUnavailable)
	}

	if current != nil {
		for name, v := range current.AllDependencies() {
			if _, ok := versions[name]; !ok {
				versions[name] = v
			}
		}
	}
	return versions, warnings, nil
}

// strategyFor returns the strategy for a run. Automatic strategies are
// rebuilt per run because they anchor on the current configuration.
func (m *Manager) strategyFor(current *ConfigurationSet) Strategy {
	if m.strategyKind == StrategyAutomatic {
		return NewAutomaticStrategy(current, m.predictor)
	}
	return m.strategy
}

// selectBest picks the recommendation from a non-empty pool using the
// strategy's tie-break. Equal scores settle on the smaller content hash
// so repeated runs agree.
func (m *Manager) selectBest(strat Strategy, pool []ConfigurationSet) ConfigurationSet {
	best := pool[0]
	bestScore := selectionScore(strat, best)
	for _, cfg := range pool[1:] {
		score := selectionScore(strat, cfg)
		if score > bestScore || (score == bestScore && cfg.ContentHash() < best.ContentHash()) {
			best, bestScore = cfg, score
		}
	}
	return best
}

// selectionScore ranks finished candidates per strategy preference.
func selectionScore(strat Strategy, cfg ConfigurationSet) float64 {
	switch strat.Kind() {
	case StrategyConservative:
		return cfg.StabilityScore()
	case StrategyAggressive:
		return cfg.FreshnessScore()
	case StrategyAutomatic:
		return strat.CalculatePriority(cfg)
	default:
		return (cfg.StabilityScore() + cfg.FreshnessScore()) / 2
	}
}

// synthesizeDefault builds a single candidate holding every catalog
// version at its classified layer. Used when strategy generation
// filters everything out and no current configuration exists.
func synthesizeDefault(kind StrategyKind, versions map[string]VersionInfo) ConfigurationSet {
	layered := emptyLayers()
	for _, v := range versions {
		layered[classifyPackageLayer(v.PackageName)][v.PackageName] = v
	}
	return newCandidate(kind, "default", layered)
}

// learn feeds a batch of outcomes into the prefilter, the predictor,
// and the history store.
func (m *Manager) learn(results []TestResult) {
	if len(results) == 0 {
		return
	}

	for _, r := range results {
		m.prefilter.AddResult(r)
		if m.history == nil {
			continue
		}
		if err := m.history.SaveConfiguration(r.Configuration); err != nil {
			m.logger.Warn("saving configuration to history failed", "error", err)
		}
		if err := m.history.RecordResult(r); err != nil {
			m.logger.Warn("recording test result to history failed", "error", err)
		}
	}

	m.mu.Lock()
	m.outcomes = append(m.outcomes, results...)
	training := make([]TestResult, len(m.outcomes))
	copy(training, m.outcomes)
	m.mu.Unlock()
	m.predictor.Train(training)
}
