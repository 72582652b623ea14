// Package depadvise recommends dependency configurations for versioned
// package sets. It resolves latest versions from a catalog, generates
// candidate configurations under an update strategy, filters them for
// compatibility, verifies them layer by layer, and learns from every
// outcome to rank future candidates better.
//
// # Overview
//
// The package provides three main components:
//
//   - Catalog: Fetches latest version metadata, with caching and a
//     last-good fallback
//   - Strategy: Enumerates and scores candidate configurations
//     (conservative, balanced, aggressive, automatic)
//   - Manager: Orchestrates the full pipeline and accumulates test
//     history across runs
//
// # Quick Start
//
// The simplest way to get a recommendation:
//
//	// Zero-config: simulated verification, balanced strategy
//	result, err := depadvise.Advise(ctx, []string{"http", "json_annotation"})
//
//	// From a manifest file
//	result, err := depadvise.AdviseFile(ctx, "project.yaml")
//
//	// With a remote catalog and a conservative strategy
//	result, err := depadvise.Advise(ctx, packages,
//	    depadvise.WithCatalog(cat),
//	    depadvise.WithStrategy(depadvise.StrategyConservative),
//	)
//
// # Incremental Updates
//
// When a project already has a working configuration, plan the smallest
// worthwhile set of changes instead of regenerating:
//
//	plan, err := depadvise.Plan(ctx, current, depadvise.WithImpactThreshold(0.3))
//	for _, change := range plan.Changes {
//	    fmt.Println(change.PackageName, change.Kind, change.Reason)
//	}
//
// # Thread Safety
//
// A Manager is safe for concurrent use. Configuration and result values
// are snapshots; tests receive their own clones.
package depadvise

import (
	"context"
	"fmt"
)

// Advise runs the advisory pipeline for the named packages and returns
// a ranked recommendation.
//
// This is the recommended entry point for one-shot use. Reuse a Manager
// instead when several runs should share learned history.
func Advise(ctx context.Context, packages []string, opts ...Option) (*ConfigurationResult, error) {
	m, err := NewManager(opts...)
	if err != nil {
		return nil, err
	}
	return m.GenerateOptimalConfiguration(ctx, packages, nil)
}

// AdviseFile runs the advisory pipeline for the packages declared in a
// manifest file, using the manifest as the current configuration.
func AdviseFile(ctx context.Context, manifestPath string, opts ...Option) (*ConfigurationResult, error) {
	manifest, err := LoadManifest(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("load manifest: %w", err)
	}

	m, err := NewManager(opts...)
	if err != nil {
		return nil, err
	}
	current := manifest.ToConfigurationSet()
	return m.GenerateOptimalConfiguration(ctx, manifest.PackageNames(), &current)
}

// Plan computes an incremental update plan for an existing
// configuration without running the full pipeline.
func Plan(ctx context.Context, current ConfigurationSet, opts ...Option) (IncrementalUpdateResult, error) {
	m, err := NewManager(opts...)
	if err != nil {
		return IncrementalUpdateResult{}, err
	}
	return m.PlanIncrementalUpdate(ctx, current, false)
}

// PlanFile computes an incremental update plan for the configuration
// declared in a manifest file.
func PlanFile(ctx context.Context, manifestPath string, opts ...Option) (IncrementalUpdateResult, error) {
	manifest, err := LoadManifest(manifestPath)
	if err != nil {
		return IncrementalUpdateResult{}, fmt.Errorf("load manifest: %w", err)
	}
	return Plan(ctx, manifest.ToConfigurationSet(), opts...)
}
