package depadvise

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/Masterminds/semver/v3"
)

// Soak thresholds for proposing version bumps. Patch releases are
// always worthwhile; larger bumps must age first.
const (
	minorSoakDays = 7
	majorSoakDays = 30
)

// recommendedDevTooling lists development packages worth adding when a
// configuration lacks them and the catalog offers them.
var recommendedDevTooling = []string{"lints", "test", "build_runner"}

// IncrementalUpdater plans low-risk moves from an existing
// configuration toward the catalog instead of regenerating from
// scratch. Every proposed change stays under the caller's impact
// threshold.
type IncrementalUpdater struct {
	tester  *ConfigTester
	history *HistoryStore
	logger  *slog.Logger
}

// NewIncrementalUpdater builds an updater. The tester is only needed
// when update plans are verified; the history store only to ground
// confidence in recorded outcomes. Either may be nil. A nil logger
// disables diagnostics.
func NewIncrementalUpdater(tester *ConfigTester, history *HistoryStore, logger *slog.Logger) *IncrementalUpdater {
	if logger == nil {
		logger = slog.New(discardHandler{})
	}
	return &IncrementalUpdater{tester: tester, history: history, logger: logger}
}

// GetUpdateSuggestions proposes changes from the current configuration
// toward the catalog. A change is proposed only when the versions
// differ, the move is worthwhile, and its impact stays within
// maxImpact. Suggestions come back ordered by ascending impact so
// callers can apply the safest first.
func (u *IncrementalUpdater) GetUpdateSuggestions(current ConfigurationSet, versions map[string]VersionInfo, maxImpact float64) []DependencyChange {
	var changes []DependencyChange
	seen := make(map[string]struct{})

	for _, layer := range Layers() {
		for _, name := range sortedKeys(current.Layers[layer]) {
			if _, dup := seen[name]; dup {
				continue
			}
			seen[name] = struct{}{}

			cur := current.Layers[layer][name]
			latest, known := versions[name]
			if !known || latest.Version == cur.Version {
				continue
			}

			change, ok := u.proposeVersionMove(cur, latest, layer)
			if !ok {
				continue
			}
			if change.ImpactScore() > maxImpact {
				u.logger.Debug("change exceeds impact threshold, dropped",
					"package", name, "impact", change.ImpactScore(), "threshold", maxImpact)
				continue
			}
			changes = append(changes, change)
		}
	}

	changes = append(changes, u.devToolingAdditions(current, versions, maxImpact, seen)...)

	sort.SliceStable(changes, func(i, j int) bool {
		ii, ij := changes[i].ImpactScore(), changes[j].ImpactScore()
		if ii != ij {
			return ii < ij
		}
		return changes[i].PackageName < changes[j].PackageName
	})
	return changes
}

// proposeVersionMove decides whether moving one package between two
// differing versions is worthwhile.
func (u *IncrementalUpdater) proposeVersionMove(cur, latest VersionInfo, layer Layer) (DependencyChange, bool) {
	vCur, err := semver.NewVersion(cur.Version)
	if err != nil {
		u.logger.Debug("current version unparseable, skipping", "package", cur.PackageName, "version", cur.Version)
		return DependencyChange{}, false
	}
	vNew, err := semver.NewVersion(latest.Version)
	if err != nil {
		u.logger.Debug("catalog version unparseable, skipping", "package", latest.PackageName, "version", latest.Version)
		return DependencyChange{}, false
	}

	oldCopy, newCopy := cur, latest
	change := DependencyChange{
		PackageName: cur.PackageName,
		OldVersion:  &oldCopy,
		NewVersion:  &newCopy,
		Layer:       layer,
	}

	if vNew.LessThan(vCur) {
		// Downgrades replace instability, never chase lower numbers.
		if (cur.IsPrerelease || !cur.IsStable) && latest.IsStable && !latest.IsPrerelease {
			change.Kind = ChangeDowngraded
			change.Reason = fmt.Sprintf("replaces unstable %s with stable %s", cur.Version, latest.Version)
			return change, true
		}
		return DependencyChange{}, false
	}

	change.Kind = ChangeUpdated
	switch {
	case vNew.Major() != vCur.Major():
		if latest.DaysSincePublished() < majorSoakDays || !latest.IsStable || latest.IsPrerelease {
			return DependencyChange{}, false
		}
		change.Reason = fmt.Sprintf("major release %s is stable and %d days old", latest.Version, latest.DaysSincePublished())
	case vNew.Minor() != vCur.Minor():
		if latest.DaysSincePublished() < minorSoakDays {
			return DependencyChange{}, false
		}
		change.Reason = fmt.Sprintf("minor release %s has soaked %d days", latest.Version, latest.DaysSincePublished())
	default:
		change.Reason = fmt.Sprintf("patch release %s", latest.Version)
	}
	return change, true
}

// devToolingAdditions suggests missing development tooling from the
// allowlist when the catalog offers it within the impact budget.
func (u *IncrementalUpdater) devToolingAdditions(current ConfigurationSet, versions map[string]VersionInfo, maxImpact float64, present map[string]struct{}) []DependencyChange {
	var changes []DependencyChange
	for _, name := range recommendedDevTooling {
		if _, has := present[name]; has {
			continue
		}
		latest, known := versions[name]
		if !known {
			continue
		}
		newCopy := latest
		change := DependencyChange{
			PackageName: name,
			Kind:        ChangeAdded,
			NewVersion:  &newCopy,
			Layer:       LayerDev,
			Reason:      "recommended development tooling",
		}
		if change.ImpactScore() <= maxImpact {
			changes = append(changes, change)
		}
	}
	return changes
}

// PerformIncrementalUpdate plans the update, applies it onto a new
// configuration, and optionally verifies the outcome. The original
// configuration is never modified.
func (u *IncrementalUpdater) PerformIncrementalUpdate(ctx context.Context, current ConfigurationSet, versions map[string]VersionInfo, maxImpact float64, testChanges bool) (IncrementalUpdateResult, error) {
	changes := u.GetUpdateSuggestions(current, versions, maxImpact)
	updated := applyChanges(current, changes)

	result := IncrementalUpdateResult{
		Original:  current,
		Updated:   updated,
		Changes:   changes,
		Timestamp: time.Now(),
	}
	result.ConfidenceScore = u.confidence(changes, current)

	if testChanges && u.tester != nil {
		testResult, err := u.tester.Test(ctx, updated)
		if err != nil {
			return IncrementalUpdateResult{}, fmt.Errorf("testing updated configuration: %w", err)
		}
		result.TestResult = &testResult
	}

	u.logger.Info("incremental update planned",
		"changes", len(changes), "impact", result.TotalImpact(), "confidence", result.ConfidenceScore)
	return result, nil
}

// applyChanges builds the updated configuration. The result is a new
// set with its own identity and timestamp.
func applyChanges(current ConfigurationSet, changes []DependencyChange) ConfigurationSet {
	updated := current.Clone()
	updated.ID = uuid.NewString()
	updated.Name = current.Name + "-updated"
	updated.Description = fmt.Sprintf("incremental update of %s (%d changes)", current.Name, len(changes))
	updated.CreatedAt = time.Now()
	updated.Tags = append(updated.Tags, "incremental")

	for _, change := range changes {
		layer := updated.Layers[change.Layer]
		if layer == nil {
			layer = make(map[string]VersionInfo)
			updated.Layers[change.Layer] = layer
		}
		switch change.Kind {
		case ChangeRemoved:
			delete(layer, change.PackageName)
		default:
			if change.NewVersion != nil {
				layer[change.PackageName] = *change.NewVersion
			}
		}
	}
	return updated
}

// confidence blends three penalties into one score: many changes, high
// impact, and poor recorded outcomes all pull it down.
func (u *IncrementalUpdater) confidence(changes []DependencyChange, original ConfigurationSet) float64 {
	countFactor := 1 - minFloat(1, 0.05*float64(len(changes)))

	meanImpact := 0.0
	if len(changes) > 0 {
		for _, c := range changes {
			meanImpact += c.ImpactScore()
		}
		meanImpact /= float64(len(changes))
	}
	impactFactor := 1 - 0.2*meanImpact

	return clamp01((countFactor + impactFactor + u.historicalRate(original)) / 3)
}

// historicalRate looks up the original configuration's recorded success
// rate, neutral when nothing is on record.
func (u *IncrementalUpdater) historicalRate(original ConfigurationSet) float64 {
	if u.history == nil {
		return 0.5
	}
	rate, ok := u.history.SuccessRate(original.ID)
	if !ok {
		return 0.5
	}
	return rate
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
