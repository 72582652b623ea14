package depadvise

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
)

// Layer identifies the dependency layer a package belongs to.
// Layers are verified in a fixed order and carry different weight
// when deciding whether a configuration succeeded.
type Layer string

const (
	// LayerCore holds the packages the application cannot run without.
	LayerCore Layer = "core"

	// LayerEssential holds packages required for the main feature set.
	LayerEssential Layer = "essential"

	// LayerOptional holds nice-to-have packages that may fail without
	// failing the whole configuration.
	LayerOptional Layer = "optional"

	// LayerDev holds tooling used only during development and testing.
	LayerDev Layer = "dev"
)

// Layers returns all layers in verification order.
func Layers() []Layer {
	return []Layer{LayerCore, LayerEssential, LayerOptional, LayerDev}
}

// ParseLayer converts a string into a Layer.
func ParseLayer(s string) (Layer, error) {
	switch Layer(strings.ToLower(strings.TrimSpace(s))) {
	case LayerCore:
		return LayerCore, nil
	case LayerEssential:
		return LayerEssential, nil
	case LayerOptional:
		return LayerOptional, nil
	case LayerDev:
		return LayerDev, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownLayer, s)
}

// VersionInfo describes a single published version of a package.
// Instances are immutable snapshots of registry metadata. Derived
// scores are computed on demand and never stored.
type VersionInfo struct {
	// PackageName is the registry name of the package.
	PackageName string `json:"package_name"`

	// Version is the published version in semantic version form.
	Version string `json:"version"`

	// PublishedAt is the registry publication timestamp.
	PublishedAt time.Time `json:"published_at"`

	// IsPrerelease marks versions published as previews (dev, beta, rc).
	IsPrerelease bool `json:"is_prerelease"`

	// IsStable marks versions the publisher considers production ready.
	IsStable bool `json:"is_stable"`

	// Description is the package's short registry description.
	Description string `json:"description,omitempty"`

	// License is the declared license identifier.
	License string `json:"license,omitempty"`

	// DownloadCount is the registry download counter, zero when unknown.
	DownloadCount int64 `json:"download_count,omitempty"`

	// Dependencies maps required package names to version constraints
	// declared by this version.
	Dependencies map[string]string `json:"dependencies,omitempty"`

	// DevDependencies maps development-only package names to version
	// constraints declared by this version.
	DevDependencies map[string]string `json:"dev_dependencies,omitempty"`

	// ConflictsWith lists package names this version is known to be
	// incompatible with. The relation is symmetric: a conflict declared
	// on either side applies to both.
	ConflictsWith []string `json:"conflicts_with,omitempty"`
}

// String returns the package in name@version form.
func (v VersionInfo) String() string {
	return v.PackageName + "@" + v.Version
}

// DaysSincePublished returns the whole days elapsed since publication.
// Unset publication timestamps count as zero days old.
func (v VersionInfo) DaysSincePublished() int {
	if v.PublishedAt.IsZero() {
		return 0
	}
	days := int(time.Since(v.PublishedAt).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

// StabilityScore rates how battle-tested this version is, in [0, 1].
// Age saturates after six months. Stable releases and download volume
// raise the score while prereleases lower it.
func (v VersionInfo) StabilityScore() float64 {
	score := 0.15
	score += math.Min(float64(v.DaysSincePublished())/180.0, 1.0) * 0.35
	if v.IsStable {
		score += 0.25
	}
	if v.IsPrerelease {
		score -= 0.35
	}
	if v.DownloadCount > 0 {
		score += math.Min(math.Log10(float64(v.DownloadCount)+1)/7.0, 1.0) * 0.25
	}
	return clamp01(score)
}

// FreshnessScore rates how recent this version is, in [0, 1].
// Scores decay linearly to zero over a year.
func (v VersionInfo) FreshnessScore() float64 {
	return clamp01(1.0 - float64(v.DaysSincePublished())/365.0)
}

// IsCompatibleWith reports whether this version can coexist with
// another package's version. The check is symmetric: declared conflicts
// and declared dependency constraints on both sides are consulted.
func (v VersionInfo) IsCompatibleWith(other VersionInfo) bool {
	if v.conflictsWith(other.PackageName) || other.conflictsWith(v.PackageName) {
		return false
	}
	return v.satisfiesDeclaredConstraint(other) && other.satisfiesDeclaredConstraint(v)
}

func (v VersionInfo) conflictsWith(name string) bool {
	for _, c := range v.ConflictsWith {
		if c == name {
			return true
		}
	}
	return false
}

// satisfiesDeclaredConstraint checks other against any constraint this
// version declares on other's package name. Packages with no declared
// constraint are compatible by default.
func (v VersionInfo) satisfiesDeclaredConstraint(other VersionInfo) bool {
	constraint, ok := v.Dependencies[other.PackageName]
	if !ok {
		constraint, ok = v.DevDependencies[other.PackageName]
	}
	if !ok || constraint == "" {
		return true
	}
	c, err := semver.NewConstraint(constraint)
	if err != nil {
		// Unparseable constraints never veto a pairing.
		return true
	}
	ver, err := semver.NewVersion(other.Version)
	if err != nil {
		return true
	}
	return c.Check(ver)
}

// ConfigurationSet is a complete layered selection of package versions.
// Sets are value types: mutation always happens by building a new set,
// never by editing one in place.
type ConfigurationSet struct {
	// ID uniquely identifies this set.
	ID string `json:"id"`

	// Name is a short human-readable label.
	Name string `json:"name"`

	// Description explains how the set was produced.
	Description string `json:"description,omitempty"`

	// Layers holds the selected versions per layer, keyed by package
	// name. A package name is unique within a layer.
	Layers map[Layer]map[string]VersionInfo `json:"layers"`

	// CreatedAt records when the set was generated.
	CreatedAt time.Time `json:"created_at"`

	// Priority is the generating strategy's score for this set, in [0, 1].
	Priority float64 `json:"priority"`

	// Tags carries free-form labels such as the generating strategy.
	Tags []string `json:"tags,omitempty"`
}

// Complexity returns the total number of dependencies across all layers.
func (c ConfigurationSet) Complexity() int {
	n := 0
	for _, deps := range c.Layers {
		n += len(deps)
	}
	return n
}

// Layer returns the dependencies of one layer. The returned map is the
// set's own; callers must not modify it.
func (c ConfigurationSet) Layer(l Layer) map[string]VersionInfo {
	return c.Layers[l]
}

// AllDependencies merges every layer into a single map keyed by package
// name. When a name appears in more than one layer the earlier layer
// wins (core over essential over optional over dev).
func (c ConfigurationSet) AllDependencies() map[string]VersionInfo {
	merged := make(map[string]VersionInfo)
	layers := Layers()
	for i := len(layers) - 1; i >= 0; i-- {
		for name, v := range c.Layers[layers[i]] {
			merged[name] = v
		}
	}
	return merged
}

// PackageNames returns the sorted names of every dependency in the set.
func (c ConfigurationSet) PackageNames() []string {
	merged := c.AllDependencies()
	names := make([]string, 0, len(merged))
	for name := range merged {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// StabilityScore is the mean stability of all dependencies, in [0, 1].
// Empty sets score zero.
func (c ConfigurationSet) StabilityScore() float64 {
	return c.meanScore(VersionInfo.StabilityScore)
}

// FreshnessScore is the mean freshness of all dependencies, in [0, 1].
// Empty sets score zero.
func (c ConfigurationSet) FreshnessScore() float64 {
	return c.meanScore(VersionInfo.FreshnessScore)
}

func (c ConfigurationSet) meanScore(score func(VersionInfo) float64) float64 {
	merged := c.AllDependencies()
	if len(merged) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range merged {
		sum += score(v)
	}
	return sum / float64(len(merged))
}

// ContentHash returns a stable hex digest of the layered package
// versions. Two sets holding the same packages at the same versions in
// the same layers share a hash regardless of ID, name, timestamps,
// priority, or tags.
func (c ConfigurationSet) ContentHash() string {
	h := sha256.New()
	for _, layer := range Layers() {
		deps := c.Layers[layer]
		names := make([]string, 0, len(deps))
		for name := range deps {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			h.Write([]byte(layer))
			h.Write([]byte{0})
			h.Write([]byte(name))
			h.Write([]byte{0})
			h.Write([]byte(deps[name].Version))
			h.Write([]byte{'\n'})
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Clone returns a deep copy of the set with the same identity.
func (c ConfigurationSet) Clone() ConfigurationSet {
	out := c
	out.Layers = make(map[Layer]map[string]VersionInfo, len(c.Layers))
	for layer, deps := range c.Layers {
		copied := make(map[string]VersionInfo, len(deps))
		for name, v := range deps {
			copied[name] = v
		}
		out.Layers[layer] = copied
	}
	out.Tags = append([]string(nil), c.Tags...)
	return out
}

// CompatibilityRule declares required and conflicting companions for
// versions of one package. Rules are static configuration evaluated by
// the compatibility matrix.
type CompatibilityRule struct {
	// PackageName is the package the rule applies to.
	PackageName string `json:"package_name"`

	// VersionConstraint selects which versions of the package the rule
	// covers, in semantic version constraint form such as "^1.0.0".
	VersionConstraint string `json:"version_constraint"`

	// Requires maps package names to constraints that must be present
	// and satisfied whenever the rule matches.
	Requires map[string]string `json:"requires,omitempty"`

	// Conflicts maps package names to constraints that must not be
	// present and satisfied whenever the rule matches.
	Conflicts map[string]string `json:"conflicts,omitempty"`

	// Description explains the rule for diagnostics.
	Description string `json:"description,omitempty"`

	// Priority orders rule evaluation. Higher priority rules are
	// evaluated first.
	Priority int `json:"priority"`
}

// Matches reports whether the rule covers the given version.
func (r CompatibilityRule) Matches(v VersionInfo) bool {
	if r.PackageName != v.PackageName {
		return false
	}
	if r.VersionConstraint == "" {
		return true
	}
	c, err := semver.NewConstraint(r.VersionConstraint)
	if err != nil {
		return false
	}
	ver, err := semver.NewVersion(v.Version)
	if err != nil {
		return false
	}
	return c.Check(ver)
}

// FailureKind classifies a failed configuration test.
type FailureKind string

const (
	// FailureNone marks a successful test.
	FailureNone FailureKind = ""

	// FailureDependencyConflict marks failures caused by incompatible
	// package pairings or violated rules.
	FailureDependencyConflict FailureKind = "dependency_conflict"

	// FailureCompilation marks failures surfaced while building the
	// configuration.
	FailureCompilation FailureKind = "compilation_error"

	// FailureVersionIncompatible marks failures caused by a selected
	// version not matching a declared constraint.
	FailureVersionIncompatible FailureKind = "version_incompatible"

	// FailureRuntime marks failures surfaced while exercising the
	// configuration.
	FailureRuntime FailureKind = "runtime_error"

	// FailureTimeout marks tests that exceeded their time budget.
	FailureTimeout FailureKind = "test_timeout"
)

// TestResult records the outcome of verifying one configuration.
type TestResult struct {
	// TestID uniquely identifies the test run.
	TestID string `json:"test_id"`

	// Configuration is the set that was tested.
	Configuration ConfigurationSet `json:"configuration"`

	// Success reports whether the configuration passed. A configuration
	// passes when it is compatible and its core and essential layers
	// verify.
	Success bool `json:"success"`

	// LayerResults records the verification verdict per layer.
	LayerResults map[Layer]bool `json:"layer_results"`

	// StartedAt is when verification began.
	StartedAt time.Time `json:"started_at"`

	// CompletedAt is when verification finished.
	CompletedAt time.Time `json:"completed_at"`

	// Logs carries human-readable verification output.
	Logs []string `json:"logs,omitempty"`

	// Metrics carries numeric observations such as per-layer timings.
	Metrics map[string]float64 `json:"metrics,omitempty"`

	// Failure classifies the failure, empty on success.
	Failure FailureKind `json:"failure,omitempty"`
}

// Duration returns how long the test ran.
func (r TestResult) Duration() time.Duration {
	return r.CompletedAt.Sub(r.StartedAt)
}

// ChangeKind classifies a dependency change.
type ChangeKind string

const (
	// ChangeAdded introduces a package that was absent.
	ChangeAdded ChangeKind = "added"

	// ChangeRemoved drops a package that was present.
	ChangeRemoved ChangeKind = "removed"

	// ChangeUpdated moves a package to a higher version.
	ChangeUpdated ChangeKind = "updated"

	// ChangeDowngraded moves a package to a lower version.
	ChangeDowngraded ChangeKind = "downgraded"
)

// DependencyChange describes one difference between two configurations.
type DependencyChange struct {
	// PackageName is the affected package.
	PackageName string `json:"package_name"`

	// Kind classifies the change.
	Kind ChangeKind `json:"kind"`

	// OldVersion is the version before the change, nil for additions.
	OldVersion *VersionInfo `json:"old_version,omitempty"`

	// NewVersion is the version after the change, nil for removals.
	NewVersion *VersionInfo `json:"new_version,omitempty"`

	// Layer is the layer the change applies to.
	Layer Layer `json:"layer"`

	// Reason explains why the change is proposed.
	Reason string `json:"reason,omitempty"`
}

// String renders the change in a compact single-line form.
func (d DependencyChange) String() string {
	switch d.Kind {
	case ChangeAdded:
		return fmt.Sprintf("add %s@%s to %s", d.PackageName, d.newVersionString(), d.Layer)
	case ChangeRemoved:
		return fmt.Sprintf("remove %s@%s from %s", d.PackageName, d.oldVersionString(), d.Layer)
	case ChangeDowngraded:
		return fmt.Sprintf("downgrade %s %s -> %s", d.PackageName, d.oldVersionString(), d.newVersionString())
	default:
		return fmt.Sprintf("update %s %s -> %s", d.PackageName, d.oldVersionString(), d.newVersionString())
	}
}

func (d DependencyChange) oldVersionString() string {
	if d.OldVersion == nil {
		return "?"
	}
	return d.OldVersion.Version
}

func (d DependencyChange) newVersionString() string {
	if d.NewVersion == nil {
		return "?"
	}
	return d.NewVersion.Version
}

// ImpactScore rates how disruptive the change is, in (0, 1]. Removals
// and major version jumps score highest, patch bumps lowest. Changes in
// deeper layers are discounted because they carry less blast radius.
func (d DependencyChange) ImpactScore() float64 {
	base := 0.3
	switch d.Kind {
	case ChangeRemoved:
		base = 0.9
	case ChangeDowngraded:
		base = 0.7
	case ChangeAdded:
		base = 0.3
	case ChangeUpdated:
		base = updateImpact(d.OldVersion, d.NewVersion)
	}
	factor := 1.0
	switch d.Layer {
	case LayerEssential:
		factor = 0.9
	case LayerOptional:
		factor = 0.75
	case LayerDev:
		factor = 0.6
	}
	score := base * factor
	if score > 1 {
		return 1
	}
	if score <= 0 {
		return 0.05
	}
	return score
}

func updateImpact(oldV, newV *VersionInfo) float64 {
	if oldV == nil || newV == nil {
		return 0.4
	}
	from, err1 := semver.NewVersion(oldV.Version)
	to, err2 := semver.NewVersion(newV.Version)
	if err1 != nil || err2 != nil {
		return 0.4
	}
	switch {
	case to.Major() != from.Major():
		jump := to.Major() - from.Major()
		if jump < 0 {
			jump = -jump
		}
		return math.Min(0.8+0.05*float64(jump-1), 1.0)
	case to.Minor() != from.Minor():
		return 0.4
	default:
		return 0.1
	}
}

// IncrementalUpdateResult is the outcome of planning a low-risk update
// from an existing configuration.
type IncrementalUpdateResult struct {
	// Original is the configuration the plan started from.
	Original ConfigurationSet `json:"original"`

	// Updated is the configuration after applying all changes. It is a
	// new set; Original is never modified.
	Updated ConfigurationSet `json:"updated"`

	// Changes lists the applied changes ordered by ascending impact.
	Changes []DependencyChange `json:"changes"`

	// TestResult holds the verification of Updated when testing was
	// requested, nil otherwise.
	TestResult *TestResult `json:"test_result,omitempty"`

	// Timestamp records when the plan was produced.
	Timestamp time.Time `json:"timestamp"`

	// ConfidenceScore estimates how likely the update is to succeed,
	// in [0, 1].
	ConfidenceScore float64 `json:"confidence_score"`
}

// TotalImpact is the mean impact of all changes. Plans with no changes
// have zero impact.
func (r IncrementalUpdateResult) TotalImpact() float64 {
	if len(r.Changes) == 0 {
		return 0
	}
	sum := 0.0
	for _, c := range r.Changes {
		sum += c.ImpactScore()
	}
	return sum / float64(len(r.Changes))
}

// IsSafeUpdate reports whether the plan is safe to apply without human
// review. A plan qualifies when its impact stays low, confidence is
// high, and the updated configuration passed verification. Plans that
// were never tested do not qualify.
func (r IncrementalUpdateResult) IsSafeUpdate() bool {
	if r.TestResult == nil || !r.TestResult.Success {
		return false
	}
	return r.TotalImpact() < 0.5 && r.ConfidenceScore > 0.7
}

// ConfigurationResult is the outcome of a full advisory pipeline run.
type ConfigurationResult struct {
	// Recommended is the selected best configuration, nil only when the
	// pipeline failed before selecting.
	Recommended *ConfigurationSet `json:"recommended,omitempty"`

	// Candidates lists the configurations that survived filtering, in
	// the order they were considered.
	Candidates []ConfigurationSet `json:"candidates"`

	// TestResults holds one entry per tested candidate. Empty when
	// testing was skipped.
	TestResults []TestResult `json:"test_results,omitempty"`

	// Incremental holds the update plan against the current
	// configuration when one was supplied.
	Incremental *IncrementalUpdateResult `json:"incremental,omitempty"`

	// Elapsed is the wall-clock duration of the pipeline run.
	Elapsed time.Duration `json:"elapsed"`

	// Metrics counts candidates per pipeline stage.
	Metrics map[string]int `json:"metrics"`

	// Warnings lists non-fatal degradations such as fallbacks taken.
	Warnings []string `json:"warnings,omitempty"`
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
