package depadvise

import (
	"errors"
	"fmt"
)

// Sentinel errors for advisory pipeline failures.
var (
	// ErrNoCandidates indicates no candidate configuration survived
	// generation and every fallback was exhausted.
	ErrNoCandidates = errors.New("no candidate configurations")

	// ErrPackageNotFound indicates the catalog has no version for the
	// requested package name.
	ErrPackageNotFound = errors.New("package not found")

	// ErrCatalogUnavailable indicates the version catalog could not be
	// reached and no cached snapshot exists.
	ErrCatalogUnavailable = errors.New("catalog unavailable")

	// ErrMissingConfigID indicates a configuration without an identity
	// was handed to the history store.
	ErrMissingConfigID = errors.New("configuration has no id")

	// ErrUnknownLayer indicates a layer name outside the known set.
	ErrUnknownLayer = errors.New("unknown layer")

	// ErrUnknownStrategy indicates a strategy kind outside the known set.
	ErrUnknownStrategy = errors.New("unknown strategy")

	// ErrUnknownPriorityMode indicates a prefilter scoring mode outside
	// the known set.
	ErrUnknownPriorityMode = errors.New("unknown priority mode")
)

// CatalogError describes a failed catalog lookup with enough context to
// decide between falling back to cached data and giving up.
type CatalogError struct {
	// Package is the package name the lookup was for, empty for batch
	// failures.
	Package string

	// StatusCode is the HTTP status when the failure came from a remote
	// registry, zero otherwise.
	StatusCode int

	// Err is the underlying cause.
	Err error
}

func (e *CatalogError) Error() string {
	switch {
	case e.Package != "" && e.StatusCode != 0:
		return fmt.Sprintf("catalog lookup for %s failed with status %d: %v", e.Package, e.StatusCode, e.Err)
	case e.Package != "":
		return fmt.Sprintf("catalog lookup for %s failed: %v", e.Package, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("catalog request failed with status %d: %v", e.StatusCode, e.Err)
	default:
		return fmt.Sprintf("catalog request failed: %v", e.Err)
	}
}

func (e *CatalogError) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether the failure was a missing package rather
// than an unreachable catalog.
func (e *CatalogError) IsNotFound() bool {
	return e.StatusCode == 404 || errors.Is(e.Err, ErrPackageNotFound)
}
