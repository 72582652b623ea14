package depadvise

import (
	"context"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// FileCatalog serves version metadata from a YAML snapshot on disk.
// It enables airgap and offline workflows where registry metadata is
// exported ahead of time, and doubles as the fallback source behind a
// ChainCatalog when the network registry is down.
//
// Snapshot layout:
//
//	packages:
//	  http:
//	    version: 1.2.0
//	    published_at: 2025-06-01T00:00:00Z
//	    stable: true
//	    downloads: 50000
//	    dependencies:
//	      meta: ^1.9.0
//	    conflicts: [dio]
type FileCatalog struct {
	path     string
	versions map[string]VersionInfo
}

var _ Catalog = (*FileCatalog)(nil)

type fileCatalogDoc struct {
	Packages map[string]fileCatalogEntry `yaml:"packages"`
}

type fileCatalogEntry struct {
	Version         string            `yaml:"version"`
	PublishedAt     time.Time         `yaml:"published_at"`
	Prerelease      bool              `yaml:"prerelease"`
	Stable          *bool             `yaml:"stable"`
	Description     string            `yaml:"description"`
	License         string            `yaml:"license"`
	Downloads       int64             `yaml:"downloads"`
	Dependencies    map[string]string `yaml:"dependencies"`
	DevDependencies map[string]string `yaml:"dev_dependencies"`
	Conflicts       []string          `yaml:"conflicts"`
}

// NewFileCatalog loads a snapshot file. The whole document is read at
// construction, so a returned catalog never fails at lookup time.
func NewFileCatalog(path string) (*FileCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog snapshot %s: %w", path, err)
	}

	var doc fileCatalogDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse catalog snapshot %s: %w", path, err)
	}
	if len(doc.Packages) == 0 {
		return nil, fmt.Errorf("catalog snapshot %s declares no packages", path)
	}

	versions := make(map[string]VersionInfo, len(doc.Packages))
	for name, entry := range doc.Packages {
		if entry.Version == "" {
			return nil, fmt.Errorf("catalog snapshot %s: package %s has no version", path, name)
		}
		stable := !entry.Prerelease
		if entry.Stable != nil {
			stable = *entry.Stable
		}
		versions[name] = VersionInfo{
			PackageName:     name,
			Version:         entry.Version,
			PublishedAt:     entry.PublishedAt,
			IsPrerelease:    entry.Prerelease,
			IsStable:        stable,
			Description:     entry.Description,
			License:         entry.License,
			DownloadCount:   entry.Downloads,
			Dependencies:    entry.Dependencies,
			DevDependencies: entry.DevDependencies,
			ConflictsWith:   entry.Conflicts,
		}
	}
	return &FileCatalog{path: path, versions: versions}, nil
}

// Path returns the snapshot file the catalog was loaded from.
func (f *FileCatalog) Path() string {
	return f.path
}

// Len returns the number of packages in the snapshot.
func (f *FileCatalog) Len() int {
	return len(f.versions)
}

// GetLatestVersions returns the known subset of the requested names.
func (f *FileCatalog) GetLatestVersions(_ context.Context, names []string) (map[string]VersionInfo, error) {
	out := make(map[string]VersionInfo, len(names))
	for _, name := range names {
		if info, ok := f.versions[name]; ok {
			out[name] = info
		}
	}
	return out, nil
}
