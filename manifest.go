package depadvise

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/Masterminds/semver/v3"
)

// Manifest is a project's declared dependency file. The four blocks map
// onto the advisor's layers; projects without explicit essential or
// optional blocks keep everything in core and dev.
type Manifest struct {
	// Name is the project name.
	Name string `yaml:"name"`

	// Description is the project description.
	Description string `yaml:"description,omitempty"`

	// Dependencies maps core package names to version constraints.
	Dependencies map[string]string `yaml:"dependencies,omitempty"`

	// EssentialDependencies maps essential package names to constraints.
	EssentialDependencies map[string]string `yaml:"essential_dependencies,omitempty"`

	// OptionalDependencies maps optional package names to constraints.
	OptionalDependencies map[string]string `yaml:"optional_dependencies,omitempty"`

	// DevDependencies maps development tooling names to constraints.
	DevDependencies map[string]string `yaml:"dev_dependencies,omitempty"`
}

// LoadManifest reads and parses a manifest file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest %s: %w", path, err)
	}
	return ParseManifest(data)
}

// ParseManifest parses manifest YAML.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	if m.Name == "" {
		return nil, fmt.Errorf("manifest has no name")
	}
	return &m, nil
}

// PackageNames returns every declared package name across all blocks.
func (m *Manifest) PackageNames() []string {
	seen := make(map[string]struct{})
	var names []string
	for _, block := range []map[string]string{
		m.Dependencies, m.EssentialDependencies, m.OptionalDependencies, m.DevDependencies,
	} {
		for name := range block {
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			names = append(names, name)
		}
	}
	return names
}

// ToConfigurationSet converts the manifest into a configuration set.
// Constraint strings are pinned to their lower bound since a manifest
// declares ranges while a configuration holds exact versions.
func (m *Manifest) ToConfigurationSet() ConfigurationSet {
	layers := map[Layer]map[string]VersionInfo{
		LayerCore:      manifestBlockToLayer(m.Dependencies),
		LayerEssential: manifestBlockToLayer(m.EssentialDependencies),
		LayerOptional:  manifestBlockToLayer(m.OptionalDependencies),
		LayerDev:       manifestBlockToLayer(m.DevDependencies),
	}
	return ConfigurationSet{
		ID:          uuid.NewString(),
		Name:        m.Name,
		Description: m.Description,
		Layers:      layers,
		CreatedAt:   time.Now(),
		Tags:        []string{"manifest"},
	}
}

func manifestBlockToLayer(block map[string]string) map[string]VersionInfo {
	deps := make(map[string]VersionInfo, len(block))
	for name, constraint := range block {
		version := pinConstraint(constraint)
		prerelease := false
		if v, err := semver.NewVersion(version); err == nil {
			prerelease = v.Prerelease() != ""
		}
		deps[name] = VersionInfo{
			PackageName:  name,
			Version:      version,
			IsPrerelease: prerelease,
			IsStable:     !prerelease,
		}
	}
	return deps
}

// pinConstraint reduces a constraint string to its lower-bound version.
// "^1.2.0" and ">=1.2.0 <2.0.0" both pin to "1.2.0". Unbounded
// constraints pin to "0.0.0".
func pinConstraint(constraint string) string {
	s := strings.TrimSpace(constraint)
	if s == "" || strings.EqualFold(s, "any") {
		return "0.0.0"
	}
	// Only the first clause carries the lower bound.
	if i := strings.IndexAny(s, " ,"); i > 0 {
		s = s[:i]
	}
	s = strings.TrimLeft(s, "^~=>")
	s = strings.TrimSpace(s)
	if s == "" {
		return "0.0.0"
	}
	return s
}
