package depadvise

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/Masterminds/semver/v3"
)

// CompatibilityMatrix evaluates configurations against a static rule
// set plus the pairwise relations the versions themselves declare.
// Incompatibility is an answer, not an error: every operation returns
// normally for any input.
type CompatibilityMatrix struct {
	rules []CompatibilityRule
}

// NewCompatibilityMatrix builds a matrix over the given rules. Rules
// are evaluated in descending priority order.
func NewCompatibilityMatrix(rules ...CompatibilityRule) *CompatibilityMatrix {
	sorted := append([]CompatibilityRule(nil), rules...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority > sorted[j].Priority
	})
	return &CompatibilityMatrix{rules: sorted}
}

// Rules returns the matrix's rules in evaluation order.
func (m *CompatibilityMatrix) Rules() []CompatibilityRule {
	return m.rules
}

// IsCompatible reports whether the configuration violates no rule and
// contains no incompatible package pair.
func (m *CompatibilityMatrix) IsCompatible(cfg ConfigurationSet) bool {
	return len(m.Issues(cfg)) == 0
}

// Issues returns one human-readable finding per violated rule clause
// and per incompatible package pair. A compatible configuration yields
// an empty slice. Every finding names each package involved.
func (m *CompatibilityMatrix) Issues(cfg ConfigurationSet) []string {
	merged := cfg.AllDependencies()
	var issues []string

	for _, rule := range m.rules {
		subject, ok := merged[rule.PackageName]
		if !ok || !rule.Matches(subject) {
			continue
		}
		issues = append(issues, m.ruleIssues(rule, subject, merged)...)
	}

	issues = append(issues, pairwiseIssues(merged)...)
	return issues
}

func (m *CompatibilityMatrix) ruleIssues(rule CompatibilityRule, subject VersionInfo, merged map[string]VersionInfo) []string {
	var issues []string

	requiredNames := sortedKeys(rule.Requires)
	for _, name := range requiredNames {
		constraint := rule.Requires[name]
		companion, present := merged[name]
		switch {
		case !present:
			issues = append(issues, fmt.Sprintf(
				"%s requires %s %s but %s is not in the configuration",
				subject, name, describeConstraint(constraint), name))
		case !constraintMatches(constraint, companion.Version):
			issues = append(issues, fmt.Sprintf(
				"%s requires %s %s but found %s",
				subject, name, describeConstraint(constraint), companion))
		}
	}

	conflictNames := sortedKeys(rule.Conflicts)
	for _, name := range conflictNames {
		constraint := rule.Conflicts[name]
		companion, present := merged[name]
		if !present || !constraintMatches(constraint, companion.Version) {
			continue
		}
		issue := fmt.Sprintf("%s conflicts with %s", subject, companion)
		if rule.Description != "" {
			issue += " (" + rule.Description + ")"
		}
		issues = append(issues, issue)
	}

	return issues
}

// pairwiseIssues checks every unordered package pair for declared
// incompatibility. Pairs are visited in sorted name order so findings
// are deterministic.
func pairwiseIssues(merged map[string]VersionInfo) []string {
	names := sortedKeys(merged)
	var issues []string
	for i := 0; i < len(names); i++ {
		for j := i + 1; j < len(names); j++ {
			a, b := merged[names[i]], merged[names[j]]
			if !a.IsCompatibleWith(b) {
				issues = append(issues, fmt.Sprintf("%s is incompatible with %s", a, b))
			}
		}
	}
	return issues
}

// RecommendConfiguration builds a maximal compatible configuration from
// the catalog. Versions the strategy rejects are skipped, the rest are
// added greedily in deterministic order and any addition that would
// break compatibility is left out.
func (m *CompatibilityMatrix) RecommendConfiguration(versions map[string]VersionInfo, strategy Strategy) ConfigurationSet {
	eligible := make([]VersionInfo, 0, len(versions))
	for _, v := range versions {
		if strategy.ShouldIncludeVersion(v) {
			eligible = append(eligible, v)
		}
	}

	// Stable, popular packages get first claim on a slot.
	sort.SliceStable(eligible, func(i, j int) bool {
		si, sj := eligible[i].StabilityScore(), eligible[j].StabilityScore()
		if si != sj {
			return si > sj
		}
		if eligible[i].DownloadCount != eligible[j].DownloadCount {
			return eligible[i].DownloadCount > eligible[j].DownloadCount
		}
		return eligible[i].PackageName < eligible[j].PackageName
	})

	cfg := ConfigurationSet{
		ID:          uuid.NewString(),
		Name:        fmt.Sprintf("recommended-%s", strategy.Kind()),
		Description: "maximal compatible configuration",
		Layers:      emptyLayers(),
		CreatedAt:   time.Now(),
		Tags:        []string{"recommended", string(strategy.Kind())},
	}

	for _, v := range eligible {
		layer := classifyPackageLayer(v.PackageName)
		cfg.Layers[layer][v.PackageName] = v
		if !m.IsCompatible(cfg) {
			delete(cfg.Layers[layer], v.PackageName)
		}
	}

	cfg.Priority = strategy.CalculatePriority(cfg)
	return cfg
}

func emptyLayers() map[Layer]map[string]VersionInfo {
	layers := make(map[Layer]map[string]VersionInfo, len(Layers()))
	for _, l := range Layers() {
		layers[l] = make(map[string]VersionInfo)
	}
	return layers
}

// constraintMatches reports whether a version satisfies a constraint.
// Empty or unparseable constraints match any version.
func constraintMatches(constraint, version string) bool {
	if constraint == "" {
		return true
	}
	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return true
	}
	v, err := semver.NewVersion(version)
	if err != nil {
		return true
	}
	return c.Check(v)
}

func describeConstraint(constraint string) string {
	if constraint == "" {
		return "(any version)"
	}
	return constraint
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
