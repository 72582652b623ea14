package depadvise

import (
	"errors"
	"strings"
	"testing"
)

func TestParseStrategyKind(t *testing.T) {
	tests := []struct {
		input   string
		want    StrategyKind
		wantErr bool
	}{
		{"conservative", StrategyConservative, false},
		{"balanced", StrategyBalanced, false},
		{"aggressive", StrategyAggressive, false},
		{"automatic", StrategyAutomatic, false},
		{" Balanced ", StrategyBalanced, false},
		{"yolo", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseStrategyKind(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseStrategyKind(%q) succeeded, want error", tt.input)
				}
				if !errors.Is(err, ErrUnknownStrategy) {
					t.Errorf("error = %v, want ErrUnknownStrategy", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseStrategyKind(%q) failed: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseStrategyKind(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNewStrategy_UnknownKind(t *testing.T) {
	if _, err := NewStrategy(StrategyKind("experimental")); !errors.Is(err, ErrUnknownStrategy) {
		t.Errorf("NewStrategy() error = %v, want ErrUnknownStrategy", err)
	}
}

func TestStrategy_ShouldIncludeVersion(t *testing.T) {
	matureStable := testVersion("pkg", "1.0.0", 60, true, false)
	freshStable := testVersion("pkg", "1.1.0", 3, true, false)
	agedPrerelease := testVersion("pkg", "2.0.0-rc.1", 10, false, true)
	freshPrerelease := testVersion("pkg", "2.0.0-beta.2", 1, false, true)
	unflagged := testVersion("pkg", "0.9.0", 90, false, false)

	tests := []struct {
		name    string
		kind    StrategyKind
		version VersionInfo
		want    bool
	}{
		{"conservative takes mature stable", StrategyConservative, matureStable, true},
		{"conservative rejects fresh stable", StrategyConservative, freshStable, false},
		{"conservative rejects aged prerelease", StrategyConservative, agedPrerelease, false},
		{"conservative rejects unflagged", StrategyConservative, unflagged, false},
		{"balanced takes fresh stable", StrategyBalanced, freshStable, true},
		{"balanced takes soaked prerelease", StrategyBalanced, agedPrerelease, true},
		{"balanced rejects fresh prerelease", StrategyBalanced, freshPrerelease, false},
		{"aggressive takes everything", StrategyAggressive, freshPrerelease, true},
		{"automatic rejects prereleases", StrategyAutomatic, agedPrerelease, false},
		{"automatic takes unflagged", StrategyAutomatic, unflagged, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewStrategy(tt.kind)
			if err != nil {
				t.Fatalf("NewStrategy(%q) failed: %v", tt.kind, err)
			}
			if got := s.ShouldIncludeVersion(tt.version); got != tt.want {
				t.Errorf("ShouldIncludeVersion() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStrategy_CalculatePriority_Preferences(t *testing.T) {
	mature := testSet("mature", map[Layer]map[string]VersionInfo{
		LayerCore: {"http": StaticVersion("http", "1.0.0", 400)},
	})
	fresh := testSet("fresh", map[Layer]map[string]VersionInfo{
		LayerCore: {"http": testVersion("http", "2.0.0", 0, false, false)},
	})

	conservative, _ := NewStrategy(StrategyConservative)
	if conservative.CalculatePriority(mature) <= conservative.CalculatePriority(fresh) {
		t.Error("conservative strategy does not prefer the mature configuration")
	}

	aggressive, _ := NewStrategy(StrategyAggressive)
	if aggressive.CalculatePriority(fresh) <= aggressive.CalculatePriority(mature) {
		t.Error("aggressive strategy does not prefer the fresh configuration")
	}
}

// fourLayerVersions spans every layer of the classification heuristic:
// http lands in core, json_annotation in essential, cached in optional
// and lints in dev.
func fourLayerVersions() map[string]VersionInfo {
	return map[string]VersionInfo{
		"http":            StaticVersion("http", "1.2.0", 200),
		"json_annotation": StaticVersion("json_annotation", "4.9.0", 150),
		"cached":          StaticVersion("cached", "0.3.0", 90),
		"lints":           StaticVersion("lints", "4.0.0", 60),
	}
}

func TestGenerateConfigurations_Shapes(t *testing.T) {
	s, err := NewStrategy(StrategyBalanced)
	if err != nil {
		t.Fatalf("NewStrategy() failed: %v", err)
	}

	candidates := s.GenerateConfigurations(fourLayerVersions(), 10)

	// full, core, core-essential, core-essential-optional and no-cached;
	// no-lints collapses into core-essential-optional by content.
	if len(candidates) != 5 {
		names := make([]string, len(candidates))
		for i, c := range candidates {
			names[i] = c.Name
		}
		t.Fatalf("generated %d candidates (%v), want 5", len(candidates), names)
	}

	seen := make(map[string]struct{}, len(candidates))
	for i, c := range candidates {
		if c.Complexity() == 0 {
			t.Errorf("candidate %q is empty", c.Name)
		}
		if !strings.HasPrefix(c.Name, string(StrategyBalanced)) {
			t.Errorf("candidate name %q does not carry the strategy kind", c.Name)
		}
		hash := c.ContentHash()
		if _, dup := seen[hash]; dup {
			t.Errorf("candidate %q duplicates an earlier shape", c.Name)
		}
		seen[hash] = struct{}{}
		if i > 0 && candidates[i-1].Priority < c.Priority {
			t.Errorf("candidates out of priority order at %d: %v < %v", i, candidates[i-1].Priority, c.Priority)
		}
	}

	var full *ConfigurationSet
	for i := range candidates {
		if strings.HasSuffix(candidates[i].Name, "-full") {
			full = &candidates[i]
			break
		}
	}
	if full == nil {
		t.Fatal("no full candidate generated")
	}
	if got := full.Complexity(); got != 4 {
		t.Errorf("full candidate holds %d packages, want 4", got)
	}
}

func TestGenerateConfigurations_Truncates(t *testing.T) {
	s, err := NewStrategy(StrategyBalanced)
	if err != nil {
		t.Fatalf("NewStrategy() failed: %v", err)
	}

	all := s.GenerateConfigurations(fourLayerVersions(), 10)
	top := s.GenerateConfigurations(fourLayerVersions(), 2)

	if len(top) != 2 {
		t.Fatalf("generated %d candidates, want 2", len(top))
	}
	for i := range top {
		if top[i].ContentHash() != all[i].ContentHash() {
			t.Errorf("truncated candidate %d is not the %d-th ranked candidate", i, i)
		}
	}
}

func TestGenerateConfigurations_Empty(t *testing.T) {
	s, err := NewStrategy(StrategyConservative)
	if err != nil {
		t.Fatalf("NewStrategy() failed: %v", err)
	}

	if got := s.GenerateConfigurations(nil, 10); got != nil {
		t.Errorf("GenerateConfigurations(nil) = %v, want nil", got)
	}
	if got := s.GenerateConfigurations(fourLayerVersions(), 0); got != nil {
		t.Errorf("GenerateConfigurations(_, 0) = %v, want nil", got)
	}

	// Everything the catalog offers is too fresh for the conservative
	// strategy, so nothing is eligible.
	fresh := map[string]VersionInfo{
		"http": testVersion("http", "1.3.0", 2, true, false),
	}
	if got := s.GenerateConfigurations(fresh, 10); got != nil {
		t.Errorf("GenerateConfigurations(fresh-only) = %v, want nil", got)
	}
}

func TestAutomaticStrategy_ChooseVersions(t *testing.T) {
	heldHTTP := StaticVersion("http", "1.0.0", 400)
	heldOnly := StaticVersion("internal_thing", "0.2.0", 200)
	current := testSet("current", map[Layer]map[string]VersionInfo{
		LayerCore:     {"http": heldHTTP},
		LayerOptional: {"internal_thing": heldOnly},
	})

	tests := []struct {
		name    string
		catalog map[string]VersionInfo
		pkg     string
		want    string
	}{
		{
			name: "keeps the current version when it is more stable",
			catalog: map[string]VersionInfo{
				"http": testVersion("http", "2.0.0", 1, false, false),
			},
			pkg:  "http",
			want: "1.0.0",
		},
		{
			name: "advances when the catalog version is at least as stable",
			catalog: map[string]VersionInfo{
				"http": StaticVersion("http", "1.1.0", 400),
			},
			pkg:  "http",
			want: "1.1.0",
		},
		{
			name: "packages missing from the catalog stay as held",
			catalog: map[string]VersionInfo{
				"http": StaticVersion("http", "1.1.0", 400),
			},
			pkg:  "internal_thing",
			want: "0.2.0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewAutomaticStrategy(&current, nil)
			pool := s.chooseVersions(tt.catalog)
			got, ok := pool[tt.pkg]
			if !ok {
				t.Fatalf("chooseVersions() dropped %q entirely", tt.pkg)
			}
			if got.Version != tt.want {
				t.Errorf("chooseVersions()[%s].Version = %q, want %q", tt.pkg, got.Version, tt.want)
			}
		})
	}

	t.Run("no current configuration passes the catalog through", func(t *testing.T) {
		s := NewAutomaticStrategy(nil, nil)
		catalog := map[string]VersionInfo{"http": StaticVersion("http", "1.2.0", 100)}
		pool := s.chooseVersions(catalog)
		if len(pool) != 1 || pool["http"].Version != "1.2.0" {
			t.Errorf("chooseVersions() = %v, want the catalog unchanged", pool)
		}
	})
}

func TestClassifyPackageLayer(t *testing.T) {
	tests := []struct {
		pkg  string
		want Layer
	}{
		{"http", LayerCore},
		{"flutter_bloc", LayerCore},
		{"json_annotation", LayerEssential},
		{"intl", LayerEssential},
		{"cached", LayerOptional},
		{"some_random_pkg", LayerOptional},
		{"lints", LayerDev},
		{"flutter_lints", LayerDev},
		{"build_runner", LayerDev},
		{"riverpod_generator", LayerDev},
		{"json_serializable", LayerDev},
		{"mockito", LayerDev},
		{"test", LayerDev},
	}

	for _, tt := range tests {
		t.Run(tt.pkg, func(t *testing.T) {
			if got := classifyPackageLayer(tt.pkg); got != tt.want {
				t.Errorf("classifyPackageLayer(%q) = %q, want %q", tt.pkg, got, tt.want)
			}
		})
	}
}
