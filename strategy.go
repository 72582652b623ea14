package depadvise

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// StrategyKind selects an update strategy.
type StrategyKind string

const (
	// StrategyConservative favors mature, stable versions.
	StrategyConservative StrategyKind = "conservative"

	// StrategyBalanced trades stability against freshness evenly.
	StrategyBalanced StrategyKind = "balanced"

	// StrategyAggressive favors the newest versions available.
	StrategyAggressive StrategyKind = "aggressive"

	// StrategyAutomatic keeps or advances each package on its own
	// stability evidence and ranks candidates with the learned
	// predictor when one is trained.
	StrategyAutomatic StrategyKind = "automatic"
)

// ParseStrategyKind converts a string into a StrategyKind.
func ParseStrategyKind(s string) (StrategyKind, error) {
	switch StrategyKind(strings.ToLower(strings.TrimSpace(s))) {
	case StrategyConservative:
		return StrategyConservative, nil
	case StrategyBalanced:
		return StrategyBalanced, nil
	case StrategyAggressive:
		return StrategyAggressive, nil
	case StrategyAutomatic:
		return StrategyAutomatic, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStrategy, s)
}

// Strategy decides which versions are worth considering, enumerates
// candidate configurations from them, and scores finished candidates.
type Strategy interface {
	// Kind identifies the strategy.
	Kind() StrategyKind

	// ShouldIncludeVersion reports whether a version is eligible for
	// candidate generation under this strategy.
	ShouldIncludeVersion(v VersionInfo) bool

	// GenerateConfigurations enumerates candidate configurations from
	// the eligible versions. The result is sorted by descending
	// priority and never exceeds maxCombinations entries.
	GenerateConfigurations(versions map[string]VersionInfo, maxCombinations int) []ConfigurationSet

	// CalculatePriority scores a configuration in [0, 1] under this
	// strategy's preferences.
	CalculatePriority(cfg ConfigurationSet) float64
}

// NewStrategy builds the strategy for a kind. Automatic strategies
// built this way carry no current configuration and no predictor; use
// NewAutomaticStrategy to supply them.
func NewStrategy(kind StrategyKind) (Strategy, error) {
	switch kind {
	case StrategyConservative:
		return conservativeStrategy{}, nil
	case StrategyBalanced:
		return balancedStrategy{}, nil
	case StrategyAggressive:
		return aggressiveStrategy{}, nil
	case StrategyAutomatic:
		return &AutomaticStrategy{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, kind)
}

var (
	_ Strategy = conservativeStrategy{}
	_ Strategy = balancedStrategy{}
	_ Strategy = aggressiveStrategy{}
	_ Strategy = (*AutomaticStrategy)(nil)
)

// conservativeStrategy only considers versions that have proven
// themselves: stable releases at least a month old.
type conservativeStrategy struct{}

func (conservativeStrategy) Kind() StrategyKind { return StrategyConservative }

func (conservativeStrategy) ShouldIncludeVersion(v VersionInfo) bool {
	return v.IsStable && !v.IsPrerelease && v.DaysSincePublished() >= 30
}

func (s conservativeStrategy) GenerateConfigurations(versions map[string]VersionInfo, maxCombinations int) []ConfigurationSet {
	return generateCandidates(s, versions, maxCombinations)
}

func (conservativeStrategy) CalculatePriority(cfg ConfigurationSet) float64 {
	return clamp01(0.8*cfg.StabilityScore() + 0.2*cfg.FreshnessScore())
}

// balancedStrategy weighs stability and freshness evenly. Prereleases
// are admitted once they had a week to soak.
type balancedStrategy struct{}

func (balancedStrategy) Kind() StrategyKind { return StrategyBalanced }

func (balancedStrategy) ShouldIncludeVersion(v VersionInfo) bool {
	return !v.IsPrerelease || v.DaysSincePublished() >= 7
}

func (s balancedStrategy) GenerateConfigurations(versions map[string]VersionInfo, maxCombinations int) []ConfigurationSet {
	return generateCandidates(s, versions, maxCombinations)
}

func (balancedStrategy) CalculatePriority(cfg ConfigurationSet) float64 {
	return clamp01((cfg.StabilityScore() + cfg.FreshnessScore()) / 2)
}

// aggressiveStrategy considers everything the catalog offers and ranks
// by freshness.
type aggressiveStrategy struct{}

func (aggressiveStrategy) Kind() StrategyKind { return StrategyAggressive }

func (aggressiveStrategy) ShouldIncludeVersion(VersionInfo) bool { return true }

func (s aggressiveStrategy) GenerateConfigurations(versions map[string]VersionInfo, maxCombinations int) []ConfigurationSet {
	return generateCandidates(s, versions, maxCombinations)
}

func (aggressiveStrategy) CalculatePriority(cfg ConfigurationSet) float64 {
	return clamp01(0.8*cfg.FreshnessScore() + 0.2*cfg.StabilityScore())
}

// AutomaticStrategy decides per package whether to stay on the current
// version or advance to the catalog's, comparing stability scores
// alone. Freshness is deliberately ignored here: an automated decision
// should never trade stability for recency. Candidate ranking uses the
// learned predictor once it has training data.
type AutomaticStrategy struct {
	current   *ConfigurationSet
	predictor *SuccessPredictor
}

// NewAutomaticStrategy builds an automatic strategy around the current
// configuration and a predictor. Both may be nil.
func NewAutomaticStrategy(current *ConfigurationSet, predictor *SuccessPredictor) *AutomaticStrategy {
	return &AutomaticStrategy{current: current, predictor: predictor}
}

func (*AutomaticStrategy) Kind() StrategyKind { return StrategyAutomatic }

func (*AutomaticStrategy) ShouldIncludeVersion(v VersionInfo) bool {
	return !v.IsPrerelease
}

func (s *AutomaticStrategy) GenerateConfigurations(versions map[string]VersionInfo, maxCombinations int) []ConfigurationSet {
	return generateCandidates(s, s.chooseVersions(versions), maxCombinations)
}

// chooseVersions merges the current configuration with the catalog,
// keeping whichever version of each package scores higher on stability.
func (s *AutomaticStrategy) chooseVersions(versions map[string]VersionInfo) map[string]VersionInfo {
	if s.current == nil {
		return versions
	}

	pool := make(map[string]VersionInfo, len(versions))
	held := s.current.AllDependencies()

	for name, latest := range versions {
		if cur, ok := held[name]; ok && latest.StabilityScore() < cur.StabilityScore() {
			pool[name] = cur
			continue
		}
		pool[name] = latest
	}
	// Packages in use but absent from the catalog stay as they are.
	for name, cur := range held {
		if _, ok := pool[name]; !ok {
			pool[name] = cur
		}
	}
	return pool
}

func (s *AutomaticStrategy) CalculatePriority(cfg ConfigurationSet) float64 {
	if s.predictor != nil && s.predictor.Trained() {
		return s.predictor.PredictSuccessRate(cfg)
	}
	return clamp01((cfg.StabilityScore() + cfg.FreshnessScore()) / 2)
}

// generateCandidates enumerates layered candidate configurations from
// the versions a strategy accepts. The shape of the enumeration is the
// same for every strategy: the full eligible set, prefixes of the layer
// order, and leave-one-out variants over the optional and dev layers.
// Duplicate shapes collapse via content hash.
func generateCandidates(s Strategy, versions map[string]VersionInfo, maxCombinations int) []ConfigurationSet {
	if maxCombinations < 1 {
		return nil
	}

	layered := emptyLayers()
	eligible := 0
	for _, v := range versions {
		if !s.ShouldIncludeVersion(v) {
			continue
		}
		layered[classifyPackageLayer(v.PackageName)][v.PackageName] = v
		eligible++
	}
	if eligible == 0 {
		return nil
	}

	var candidates []ConfigurationSet
	seen := make(map[string]struct{})
	add := func(name string, layers map[Layer]map[string]VersionInfo) {
		cfg := newCandidate(s.Kind(), name, layers)
		if cfg.Complexity() == 0 {
			return
		}
		hash := cfg.ContentHash()
		if _, dup := seen[hash]; dup {
			return
		}
		seen[hash] = struct{}{}
		cfg.Priority = s.CalculatePriority(cfg)
		candidates = append(candidates, cfg)
	}

	add("full", layered)
	for i := 1; i < len(Layers()); i++ {
		add(strings.Join(layerNames(Layers()[:i]), "-"), layerPrefix(layered, Layers()[:i]))
	}
	for _, layer := range []Layer{LayerOptional, LayerDev} {
		for _, name := range sortedKeys(layered[layer]) {
			add("no-"+name, layersWithout(layered, layer, name))
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Priority != candidates[j].Priority {
			return candidates[i].Priority > candidates[j].Priority
		}
		return candidates[i].Name < candidates[j].Name
	})

	if len(candidates) > maxCombinations {
		candidates = candidates[:maxCombinations]
	}
	return candidates
}

func newCandidate(kind StrategyKind, label string, layers map[Layer]map[string]VersionInfo) ConfigurationSet {
	copied := emptyLayers()
	for layer, deps := range layers {
		for name, v := range deps {
			copied[layer][name] = v
		}
	}
	return ConfigurationSet{
		ID:        uuid.NewString(),
		Name:      fmt.Sprintf("%s-%s", kind, label),
		Layers:    copied,
		CreatedAt: time.Now(),
		Tags:      []string{string(kind), "generated"},
	}
}

func layerPrefix(layered map[Layer]map[string]VersionInfo, keep []Layer) map[Layer]map[string]VersionInfo {
	out := emptyLayers()
	for _, layer := range keep {
		for name, v := range layered[layer] {
			out[layer][name] = v
		}
	}
	return out
}

func layersWithout(layered map[Layer]map[string]VersionInfo, skip Layer, skipName string) map[Layer]map[string]VersionInfo {
	out := emptyLayers()
	for layer, deps := range layered {
		for name, v := range deps {
			if layer == skip && name == skipName {
				continue
			}
			out[layer][name] = v
		}
	}
	return out
}

func layerNames(layers []Layer) []string {
	names := make([]string, len(layers))
	for i, l := range layers {
		names[i] = string(l)
	}
	return names
}

// Known framework packages that anchor an application.
var corePackages = map[string]struct{}{
	"flutter":            {},
	"http":               {},
	"dio":                {},
	"provider":           {},
	"riverpod":           {},
	"flutter_riverpod":   {},
	"bloc":               {},
	"flutter_bloc":       {},
	"get_it":             {},
	"go_router":          {},
	"sqflite":            {},
	"drift":              {},
	"shared_preferences": {},
	"path_provider":      {},
	"firebase_core":      {},
}

// Utility packages most applications lean on.
var essentialPackages = map[string]struct{}{
	"json_annotation": {},
	"intl":            {},
	"collection":      {},
	"meta":            {},
	"path":            {},
	"logging":         {},
	"equatable":       {},
	"uuid":            {},
	"crypto":          {},
	"args":            {},
	"http_parser":     {},
}

// classifyPackageLayer assigns a package to a layer by name. Tooling
// patterns are checked first so generators land in dev even when they
// also look framework-shaped.
func classifyPackageLayer(name string) Layer {
	switch {
	case name == "test" || strings.HasSuffix(name, "_test"),
		strings.Contains(name, "lint"),
		strings.HasPrefix(name, "build_"),
		strings.HasSuffix(name, "_generator"),
		name == "json_serializable",
		name == "mockito" || name == "mocktail",
		name == "coverage" || name == "benchmark_harness":
		return LayerDev
	}
	if _, ok := corePackages[name]; ok {
		return LayerCore
	}
	if _, ok := essentialPackages[name]; ok {
		return LayerEssential
	}
	return LayerOptional
}
