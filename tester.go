package depadvise

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ConfigTester verifies configurations layer by layer and remembers
// verdicts by content. Testing the same dependency content twice never
// repeats the work: the second run gets the recorded verdict under a
// fresh test identity.
type ConfigTester struct {
	matrix   *CompatibilityMatrix
	verifier LayerVerifier
	logger   *slog.Logger

	mu    sync.RWMutex
	cache map[string]TestResult
}

// NewConfigTester builds a tester. A nil logger disables diagnostics.
func NewConfigTester(matrix *CompatibilityMatrix, verifier LayerVerifier, logger *slog.Logger) *ConfigTester {
	if logger == nil {
		logger = slog.New(discardHandler{})
	}
	return &ConfigTester{
		matrix:   matrix,
		verifier: verifier,
		logger:   logger,
		cache:    make(map[string]TestResult),
	}
}

// CacheSize returns how many distinct configurations have verdicts.
func (t *ConfigTester) CacheSize() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.cache)
}

// Test verifies one configuration. The verdict covers compatibility
// first, then each layer in order. A configuration passes when it is
// compatible and both the core and essential layers verify; optional
// and dev layers are recorded but cannot fail the run.
//
// The only error conditions are context cancellation and verifier
// infrastructure failures. A failing configuration is a normal result.
func (t *ConfigTester) Test(ctx context.Context, cfg ConfigurationSet) (TestResult, error) {
	hash := cfg.ContentHash()

	t.mu.RLock()
	cached, hit := t.cache[hash]
	t.mu.RUnlock()
	if hit {
		return t.replayVerdict(cfg, cached), nil
	}

	started := time.Now()
	result := TestResult{
		TestID:        uuid.NewString(),
		Configuration: cfg,
		LayerResults:  make(map[Layer]bool, len(Layers())),
		StartedAt:     started,
		Metrics:       make(map[string]float64),
	}

	issues := t.matrix.Issues(cfg)
	compatible := len(issues) == 0
	result.Metrics["compatibility_issues"] = float64(len(issues))
	for _, issue := range issues {
		result.Logs = append(result.Logs, "compatibility: "+issue)
	}

	var firstFailure FailureKind
	if !compatible {
		firstFailure = FailureDependencyConflict
	}

	for _, layer := range Layers() {
		if err := ctx.Err(); err != nil {
			return TestResult{}, err
		}

		verification, err := t.verifyLayer(ctx, cfg, layer)
		if err != nil {
			if ctx.Err() != nil {
				return TestResult{}, ctx.Err()
			}
			return TestResult{}, fmt.Errorf("verifying layer %s: %w", layer, err)
		}

		result.LayerResults[layer] = verification.Passed
		if verification.Log != "" {
			result.Logs = append(result.Logs, verification.Log)
		}
		if !verification.Passed && firstFailure == FailureNone && layerGatesSuccess(layer) {
			firstFailure = verification.Kind
		}
	}

	result.Success = compatible && result.LayerResults[LayerCore] && result.LayerResults[LayerEssential]
	if !result.Success {
		result.Failure = firstFailure
		if result.Failure == FailureNone {
			result.Failure = FailureRuntime
		}
	}
	result.CompletedAt = time.Now()
	result.Metrics["duration_ms"] = float64(result.Duration().Milliseconds())

	t.logger.Debug("configuration tested",
		"config", cfg.Name, "success", result.Success, "failure", string(result.Failure))

	t.mu.Lock()
	t.cache[hash] = result
	t.mu.Unlock()

	return result, nil
}

// verifyLayer consults the verifier, short-circuiting empty layers.
func (t *ConfigTester) verifyLayer(ctx context.Context, cfg ConfigurationSet, layer Layer) (LayerVerification, error) {
	if len(cfg.Layers[layer]) == 0 {
		return LayerVerification{Passed: true, Log: fmt.Sprintf("layer %s: empty", layer)}, nil
	}
	return t.verifier.VerifyLayer(ctx, cfg, layer)
}

// replayVerdict reissues a cached verdict under a new test identity.
// The configuration under test replaces the recorded one; the two share
// content, which is why the verdict transfers.
func (t *ConfigTester) replayVerdict(cfg ConfigurationSet, cached TestResult) TestResult {
	now := time.Now()
	result := cached
	result.TestID = uuid.NewString()
	result.Configuration = cfg
	result.StartedAt = now
	result.CompletedAt = now

	result.LayerResults = make(map[Layer]bool, len(cached.LayerResults))
	for layer, ok := range cached.LayerResults {
		result.LayerResults[layer] = ok
	}
	result.Logs = append(append([]string(nil), cached.Logs...), "verdict served from cache")
	result.Metrics = make(map[string]float64, len(cached.Metrics))
	for k, v := range cached.Metrics {
		result.Metrics[k] = v
	}

	t.logger.Debug("configuration verdict cached", "config", cfg.Name, "success", result.Success)
	return result
}

// layerGatesSuccess reports whether a layer failure fails the whole
// configuration.
func layerGatesSuccess(layer Layer) bool {
	return layer == LayerCore || layer == LayerEssential
}
