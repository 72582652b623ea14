package depadvise

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"
)

// LayerVerification is one layer's verification outcome.
type LayerVerification struct {
	// Passed reports whether the layer verified.
	Passed bool

	// Kind classifies the failure, empty when Passed.
	Kind FailureKind

	// Log is a human-readable account of the verification.
	Log string
}

// LayerVerifier checks that one layer of a configuration works.
// Implementations decide what "works" means: the in-repo verifier
// simulates outcomes, production deployments plug in one that installs
// and exercises real packages.
type LayerVerifier interface {
	VerifyLayer(ctx context.Context, cfg ConfigurationSet, layer Layer) (LayerVerification, error)
}

// Per-layer base success rates for the simulated verifier. Deeper
// layers tolerate more breakage, dev tooling almost always installs.
var simulatedBaseRates = map[Layer]float64{
	LayerCore:      0.92,
	LayerEssential: 0.90,
	LayerOptional:  0.85,
	LayerDev:       0.95,
}

// Failure classification per layer when the simulation fails one.
var simulatedFailureKinds = map[Layer]FailureKind{
	LayerCore:      FailureCompilation,
	LayerEssential: FailureVersionIncompatible,
	LayerOptional:  FailureRuntime,
	LayerDev:       FailureRuntime,
}

// SimulatedVerifier rolls verification outcomes from a seeded source.
// Success probability starts at the layer's base rate and moves with
// the configuration's stability and conflict risk, so shaky sets fail
// more often, just like they would against a real package manager.
type SimulatedVerifier struct {
	mu  sync.Mutex
	rng *rand.Rand
}

var _ LayerVerifier = (*SimulatedVerifier)(nil)

// NewSimulatedVerifier creates a verifier. Seed zero derives the seed
// from the clock; any other value makes runs reproducible.
func NewSimulatedVerifier(seed int64) *SimulatedVerifier {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &SimulatedVerifier{rng: rand.New(rand.NewSource(seed))}
}

// VerifyLayer simulates verifying one layer.
func (s *SimulatedVerifier) VerifyLayer(ctx context.Context, cfg ConfigurationSet, layer Layer) (LayerVerification, error) {
	if err := ctx.Err(); err != nil {
		return LayerVerification{}, err
	}

	p := simulatedBaseRates[layer]
	p += (cfg.StabilityScore() - 0.5) * 0.15
	p -= conflictRisk(cfg.AllDependencies()) * 0.3
	if p < 0.05 {
		p = 0.05
	}
	if p > 0.995 {
		p = 0.995
	}

	s.mu.Lock()
	roll := s.rng.Float64()
	s.mu.Unlock()

	deps := len(cfg.Layers[layer])
	if roll < p {
		return LayerVerification{
			Passed: true,
			Log:    fmt.Sprintf("layer %s: %d packages verified", layer, deps),
		}, nil
	}
	return LayerVerification{
		Passed: false,
		Kind:   simulatedFailureKinds[layer],
		Log:    fmt.Sprintf("layer %s: verification failed (%d packages)", layer, deps),
	}, nil
}
