package catalog

import (
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
)

// Package is the registry document describing a package and its
// published releases.
type Package struct {
	// Name is the registry package name.
	Name string `json:"name"`

	// Latest is the newest release the registry advertises.
	Latest Release `json:"latest"`

	// Versions lists all published releases, oldest first.
	Versions []Release `json:"versions,omitempty"`
}

// HasVersion reports whether the package has a release with the exact
// version string.
func (p *Package) HasVersion(version string) bool {
	if p.Latest.Version == version {
		return true
	}
	for _, r := range p.Versions {
		if r.Version == version {
			return true
		}
	}
	return false
}

// Release is one published version of a package.
type Release struct {
	// Version is the release's semantic version.
	Version string `json:"version"`

	// PublishedAt is the registry publication timestamp.
	PublishedAt time.Time `json:"published"`

	// Retracted marks releases withdrawn by the publisher.
	Retracted bool `json:"retracted,omitempty"`

	// Description is the short package description at this release.
	Description string `json:"description,omitempty"`

	// License is the declared license identifier.
	License string `json:"license,omitempty"`

	// Dependencies maps required package names to constraints.
	Dependencies map[string]string `json:"dependencies,omitempty"`

	// DevDependencies maps development-only package names to constraints.
	DevDependencies map[string]string `json:"dev_dependencies,omitempty"`
}

// Prerelease reports whether the release version carries a prerelease
// marker. Versions that do not parse as semver fall back to a scan for
// marker characters.
func (r Release) Prerelease() bool {
	v, err := semver.NewVersion(r.Version)
	if err != nil {
		return strings.ContainsAny(r.Version, "-+")
	}
	return v.Prerelease() != ""
}

// Score is the registry's popularity document for a package.
type Score struct {
	// GrantedPoints is the registry's quality score.
	GrantedPoints int `json:"granted_points"`

	// MaxPoints is the highest achievable quality score.
	MaxPoints int `json:"max_points"`

	// LikeCount is the number of users who liked the package.
	LikeCount int `json:"like_count"`

	// DownloadCount30Days is the download counter over the last month.
	DownloadCount30Days int64 `json:"download_count_30_days"`
}
