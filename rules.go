package depadvise

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Masterminds/semver/v3"
)

// DefaultRules returns the built-in compatibility rule set. The rules
// encode companion requirements and known-bad pairings common in the
// package ecosystem.
func DefaultRules() []CompatibilityRule {
	return []CompatibilityRule{
		{
			PackageName:       "flutter_bloc",
			VersionConstraint: "^8.0.0",
			Requires:          map[string]string{"bloc": "^8.0.0"},
			Description:       "flutter_bloc 8.x wraps bloc 8.x",
			Priority:          10,
		},
		{
			PackageName:       "json_serializable",
			VersionConstraint: "^6.0.0",
			Requires:          map[string]string{"json_annotation": "^4.8.0"},
			Description:       "generated code reads json_annotation 4.8+ metadata",
			Priority:          10,
		},
		{
			PackageName:       "drift",
			VersionConstraint: "^2.0.0",
			Conflicts:         map[string]string{"moor": ""},
			Description:       "moor was renamed to drift, the two cannot coexist",
			Priority:          9,
		},
		{
			PackageName:       "riverpod_generator",
			VersionConstraint: "",
			Requires:          map[string]string{"riverpod_annotation": ""},
			Description:       "generator output imports riverpod_annotation",
			Priority:          8,
		},
		{
			PackageName:       "mockito",
			VersionConstraint: "^5.0.0",
			Requires:          map[string]string{"build_runner": "^2.0.0"},
			Description:       "mockito 5.x generates mocks through build_runner",
			Priority:          5,
		},
	}
}

// ruleFile is the YAML document shape for rule files.
type ruleFile struct {
	Rules []ruleEntry `yaml:"rules"`
}

type ruleEntry struct {
	Package     string            `yaml:"package"`
	Constraint  string            `yaml:"constraint,omitempty"`
	Requires    map[string]string `yaml:"requires,omitempty"`
	Conflicts   map[string]string `yaml:"conflicts,omitempty"`
	Description string            `yaml:"description,omitempty"`
	Priority    int               `yaml:"priority,omitempty"`
}

// LoadRulesFile reads compatibility rules from a YAML file. Every
// constraint in the file must parse; rule files are static
// configuration and a malformed constraint is a configuration bug, not
// a runtime condition.
func LoadRulesFile(path string) ([]CompatibilityRule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules %s: %w", path, err)
	}
	return ParseRules(data)
}

// ParseRules parses rule YAML and validates every constraint.
func ParseRules(data []byte) ([]CompatibilityRule, error) {
	var file ruleFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse rules: %w", err)
	}

	rules := make([]CompatibilityRule, 0, len(file.Rules))
	for i, entry := range file.Rules {
		if entry.Package == "" {
			return nil, fmt.Errorf("rule %d has no package", i)
		}
		if err := validateRuleConstraints(entry); err != nil {
			return nil, fmt.Errorf("rule %d (%s): %w", i, entry.Package, err)
		}
		rules = append(rules, CompatibilityRule{
			PackageName:       entry.Package,
			VersionConstraint: entry.Constraint,
			Requires:          entry.Requires,
			Conflicts:         entry.Conflicts,
			Description:       entry.Description,
			Priority:          entry.Priority,
		})
	}
	return rules, nil
}

func validateRuleConstraints(entry ruleEntry) error {
	check := func(label, constraint string) error {
		if constraint == "" {
			return nil
		}
		if _, err := semver.NewConstraint(constraint); err != nil {
			return fmt.Errorf("invalid %s constraint %q: %w", label, constraint, err)
		}
		return nil
	}

	if err := check("version", entry.Constraint); err != nil {
		return err
	}
	for name, constraint := range entry.Requires {
		if err := check("requires "+name, constraint); err != nil {
			return err
		}
	}
	for name, constraint := range entry.Conflicts {
		if err := check("conflicts "+name, constraint); err != nil {
			return err
		}
	}
	return nil
}
