package depadvise

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Parallel testing defaults.
const (
	DefaultConcurrency = 4
	DefaultTestTimeout = 30 * time.Second
)

// ParallelTester runs configuration tests over a bounded worker pool.
// Every submitted configuration produces exactly one result: tests that
// exceed the per-task budget come back as timeout failures instead of
// holding up the batch.
type ParallelTester struct {
	tester      *ConfigTester
	concurrency int
	timeout     time.Duration
	logger      *slog.Logger
}

// NewParallelTester builds a pool around a tester. Non-positive
// concurrency or timeout values fall back to the defaults. A nil logger
// disables diagnostics.
func NewParallelTester(tester *ConfigTester, concurrency int, timeout time.Duration, logger *slog.Logger) *ParallelTester {
	if concurrency < 1 {
		concurrency = DefaultConcurrency
	}
	if timeout <= 0 {
		timeout = DefaultTestTimeout
	}
	if logger == nil {
		logger = slog.New(discardHandler{})
	}
	return &ParallelTester{
		tester:      tester,
		concurrency: concurrency,
		timeout:     timeout,
		logger:      logger,
	}
}

// TestAll tests every configuration and returns one result per input,
// in input order. The call returns only after every task settled.
func (p *ParallelTester) TestAll(ctx context.Context, configs []ConfigurationSet) []TestResult {
	if len(configs) == 0 {
		return nil
	}

	results := make([]TestResult, len(configs))
	tasks := make(chan int, p.concurrency)

	var workersWG sync.WaitGroup
	for w := 0; w < p.concurrency; w++ {
		workersWG.Add(1)
		go func() {
			defer workersWG.Done()
			for idx := range tasks {
				results[idx] = p.runOne(ctx, configs[idx])
			}
		}()
	}

	for idx := range configs {
		tasks <- idx
	}
	close(tasks)
	workersWG.Wait()

	p.logger.Debug("parallel testing finished",
		"configs", len(configs), "workers", p.concurrency)
	return results
}

// runOne tests a single configuration under the per-task time budget.
// Each task works on its own copy of the configuration.
func (p *ParallelTester) runOne(ctx context.Context, cfg ConfigurationSet) TestResult {
	owned := cfg.Clone()
	started := time.Now()

	taskCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	result, err := p.tester.Test(taskCtx, owned)
	if err == nil {
		return result
	}

	kind := FailureRuntime
	reason := "verification aborted: " + err.Error()
	if errors.Is(err, context.DeadlineExceeded) {
		kind = FailureTimeout
		reason = "verification exceeded the time budget of " + p.timeout.String()
		p.logger.Warn("configuration test timed out", "config", owned.Name, "timeout", p.timeout)
	}

	return TestResult{
		TestID:        uuid.NewString(),
		Configuration: owned,
		Success:       false,
		LayerResults:  map[Layer]bool{},
		StartedAt:     started,
		CompletedAt:   time.Now(),
		Logs:          []string{reason},
		Failure:       kind,
	}
}
