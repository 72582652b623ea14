package depadvise

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

const separatorWidth = 60 // Width of separator lines in text output

// FormatResult renders an advisory result as human-readable text.
// Output is deterministic for identical results.
func FormatResult(result *ConfigurationResult) string {
	var buf bytes.Buffer

	buf.WriteString("Configuration Advice\n")
	buf.WriteString(strings.Repeat("=", separatorWidth) + "\n\n")

	if result.Recommended != nil {
		rec := *result.Recommended
		buf.WriteString(fmt.Sprintf("Recommended: %s (id %s)\n", rec.Name, rec.ID))
		buf.WriteString(fmt.Sprintf("  Packages: %d\n", rec.Complexity()))
		buf.WriteString(fmt.Sprintf("  Stability: %.2f  Freshness: %.2f\n\n", rec.StabilityScore(), rec.FreshnessScore()))
		writeLayers(&buf, rec)
	} else {
		buf.WriteString("No recommendation.\n\n")
	}

	buf.WriteString("Pipeline:\n")
	for _, stage := range sortedKeys(result.Metrics) {
		buf.WriteString(fmt.Sprintf("  %s: %d\n", stage, result.Metrics[stage]))
	}
	buf.WriteString(fmt.Sprintf("  elapsed: %s\n", result.Elapsed))

	if len(result.TestResults) > 0 {
		passed := 0
		for _, r := range result.TestResults {
			if r.Success {
				passed++
			}
		}
		buf.WriteString(fmt.Sprintf("\nTests: %d passed, %d failed\n", passed, len(result.TestResults)-passed))
		for _, r := range result.TestResults {
			if r.Success {
				continue
			}
			buf.WriteString(fmt.Sprintf("  %s failed: %s\n", r.Configuration.Name, r.Failure))
		}
	}

	if result.Incremental != nil {
		buf.WriteString("\n")
		buf.WriteString(FormatPlan(*result.Incremental))
	}

	writeWarnings(&buf, result.Warnings)
	return buf.String()
}

// FormatPlan renders an incremental update plan as human-readable text.
func FormatPlan(plan IncrementalUpdateResult) string {
	var buf bytes.Buffer

	buf.WriteString("Incremental Update Plan\n")
	buf.WriteString(strings.Repeat("=", separatorWidth) + "\n\n")
	buf.WriteString(fmt.Sprintf("From: %s (id %s)\n", plan.Original.Name, plan.Original.ID))
	buf.WriteString(fmt.Sprintf("To:   %s (id %s)\n\n", plan.Updated.Name, plan.Updated.ID))

	if len(plan.Changes) == 0 {
		buf.WriteString("No changes suggested.\n")
	} else {
		buf.WriteString(fmt.Sprintf("Changes (%d, lowest impact first):\n", len(plan.Changes)))
		for _, change := range plan.Changes {
			buf.WriteString("  " + formatChange(change) + "\n")
		}
	}

	buf.WriteString(fmt.Sprintf("\nTotal impact: %.2f\n", plan.TotalImpact()))
	buf.WriteString(fmt.Sprintf("Confidence:   %.2f\n", plan.ConfidenceScore))

	if plan.TestResult != nil {
		verdict := "failed"
		if plan.TestResult.Success {
			verdict = "passed"
		}
		buf.WriteString(fmt.Sprintf("Verification: %s\n", verdict))
	}
	if plan.IsSafeUpdate() {
		buf.WriteString("Safe to apply without review.\n")
	}
	return buf.String()
}

// ResultJSON serializes an advisory result with indentation, for
// machine consumption or persistence.
func ResultJSON(result *ConfigurationResult) ([]byte, error) {
	return json.MarshalIndent(result, "", "  ")
}

// PlanJSON serializes an incremental update plan with indentation.
func PlanJSON(plan IncrementalUpdateResult) ([]byte, error) {
	return json.MarshalIndent(plan, "", "  ")
}

// formatChange renders one change as a single line.
func formatChange(change DependencyChange) string {
	var versions string
	switch change.Kind {
	case ChangeAdded:
		versions = "+ " + versionOf(change.NewVersion)
	case ChangeRemoved:
		versions = "- " + versionOf(change.OldVersion)
	default:
		versions = versionOf(change.OldVersion) + " -> " + versionOf(change.NewVersion)
	}
	line := fmt.Sprintf("%s %s [%s, impact %.2f]", change.PackageName, versions, change.Kind, change.ImpactScore())
	if change.Reason != "" {
		line += ": " + change.Reason
	}
	return line
}

func versionOf(v *VersionInfo) string {
	if v == nil {
		return "?"
	}
	return v.Version
}

// writeLayers renders the layered dependency map in verification order
// with sorted package names.
func writeLayers(buf *bytes.Buffer, cfg ConfigurationSet) {
	for _, layer := range Layers() {
		deps := cfg.Layers[layer]
		if len(deps) == 0 {
			continue
		}
		buf.WriteString(fmt.Sprintf("  %s:\n", layer))
		for _, name := range sortedKeys(deps) {
			buf.WriteString(fmt.Sprintf("    %s %s\n", name, deps[name].Version))
		}
	}
	buf.WriteString("\n")
}

func writeWarnings(buf *bytes.Buffer, warnings []string) {
	if len(warnings) == 0 {
		return
	}
	buf.WriteString("\nWarnings:\n")
	for _, w := range warnings {
		buf.WriteString("  " + w + "\n")
	}
}
