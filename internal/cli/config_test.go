package cli

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"

	"github.com/depadvise/depadvise"
)

// isolate points the config search paths at empty directories so a
// developer's own depadvise.yaml cannot leak into a test.
func isolate(t *testing.T) {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getting working directory failed: %v", err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatalf("changing directory failed: %v", err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(wd); err != nil {
			t.Errorf("restoring working directory failed: %v", err)
		}
	})
	t.Setenv("HOME", t.TempDir())
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "depadvise.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config file failed: %v", err)
	}
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := LoadConfig("", nil)
	if err != nil {
		t.Fatalf("LoadConfig() failed: %v", err)
	}

	if cfg.Strategy != string(depadvise.StrategyBalanced) {
		t.Errorf("Strategy = %q, want %q", cfg.Strategy, depadvise.StrategyBalanced)
	}
	if cfg.MaxCombinations != 10 {
		t.Errorf("MaxCombinations = %d, want 10", cfg.MaxCombinations)
	}
	if cfg.Concurrency != 4 {
		t.Errorf("Concurrency = %d, want 4", cfg.Concurrency)
	}
	if cfg.TestTimeout != 30*time.Second {
		t.Errorf("TestTimeout = %v, want 30s", cfg.TestTimeout)
	}
	if cfg.PriorityMode != string(depadvise.PriorityHybrid) {
		t.Errorf("PriorityMode = %q, want %q", cfg.PriorityMode, depadvise.PriorityHybrid)
	}
	if cfg.ImpactThreshold != 0.5 {
		t.Errorf("ImpactThreshold = %v, want 0.5", cfg.ImpactThreshold)
	}
	if cfg.SkipTests || cfg.Verbose || cfg.CatalogURL != "" || cfg.HistoryDir != "" || cfg.Seed != 0 {
		t.Errorf("unset fields should stay zero, got %+v", cfg)
	}
}

func TestLoadConfig_File(t *testing.T) {
	path := writeConfigFile(t, strings.Join([]string{
		"strategy: aggressive",
		"max-combinations: 25",
		"test-timeout: 45s",
		"skip-tests: true",
		"impact-threshold: 0.3",
		"catalog-url: https://registry.example.com",
		"seed: 42",
	}, "\n"))

	cfg, err := LoadConfig(path, nil)
	if err != nil {
		t.Fatalf("LoadConfig() failed: %v", err)
	}

	if cfg.Strategy != "aggressive" {
		t.Errorf("Strategy = %q, want %q", cfg.Strategy, "aggressive")
	}
	if cfg.MaxCombinations != 25 {
		t.Errorf("MaxCombinations = %d, want 25", cfg.MaxCombinations)
	}
	if cfg.TestTimeout != 45*time.Second {
		t.Errorf("TestTimeout = %v, want 45s", cfg.TestTimeout)
	}
	if !cfg.SkipTests {
		t.Error("SkipTests not read from file")
	}
	if cfg.ImpactThreshold != 0.3 {
		t.Errorf("ImpactThreshold = %v, want 0.3", cfg.ImpactThreshold)
	}
	if cfg.CatalogURL != "https://registry.example.com" {
		t.Errorf("CatalogURL = %q", cfg.CatalogURL)
	}
	if cfg.Seed != 42 {
		t.Errorf("Seed = %d, want 42", cfg.Seed)
	}
	// Keys absent from the file keep their defaults.
	if cfg.Concurrency != 4 {
		t.Errorf("Concurrency = %d, want the default 4", cfg.Concurrency)
	}
}

func TestLoadConfig_FlagsBeatFile(t *testing.T) {
	path := writeConfigFile(t, "strategy: aggressive\nconcurrency: 2\n")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("strategy", string(depadvise.StrategyBalanced), "")
	flags.Int("concurrency", 4, "")
	if err := flags.Set("concurrency", "9"); err != nil {
		t.Fatalf("setting flag failed: %v", err)
	}

	cfg, err := LoadConfig(path, flags)
	if err != nil {
		t.Fatalf("LoadConfig() failed: %v", err)
	}

	// An explicitly set flag wins over the file; an untouched flag
	// default loses to it.
	if cfg.Concurrency != 9 {
		t.Errorf("Concurrency = %d, want the flag value 9", cfg.Concurrency)
	}
	if cfg.Strategy != "aggressive" {
		t.Errorf("Strategy = %q, want the file value %q", cfg.Strategy, "aggressive")
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"), nil); err == nil || !strings.Contains(err.Error(), "load config") {
		t.Errorf("missing explicit file error = %v", err)
	}

	path := writeConfigFile(t, "strategy: [unclosed")
	if _, err := LoadConfig(path, nil); err == nil || !strings.Contains(err.Error(), "load config") {
		t.Errorf("malformed file error = %v", err)
	}
}

func TestConfigOptions(t *testing.T) {
	cfg := Config{
		Strategy:        "conservative",
		MaxCombinations: 5,
		Concurrency:     2,
		TestTimeout:     time.Second,
		SkipTests:       true,
		PriorityMode:    "heuristic",
		ImpactThreshold: 0.4,
		HistoryDir:      t.TempDir(),
		Seed:            7,
	}

	opts, err := cfg.Options(nil)
	if err != nil {
		t.Fatalf("Options() failed: %v", err)
	}
	if len(opts) == 0 {
		t.Fatal("Options() returned nothing")
	}
	if _, err := depadvise.NewManager(opts...); err != nil {
		t.Fatalf("NewManager rejected the options: %v", err)
	}
}

func TestConfigOptions_Errors(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatalf("writing blocker file failed: %v", err)
	}

	tests := []struct {
		name    string
		cfg     Config
		wantErr error
		wantIn  string
	}{
		{
			name:    "unknown strategy",
			cfg:     Config{Strategy: "warp", PriorityMode: "hybrid"},
			wantErr: depadvise.ErrUnknownStrategy,
		},
		{
			name:    "unknown priority mode",
			cfg:     Config{Strategy: "balanced", PriorityMode: "psychic"},
			wantErr: depadvise.ErrUnknownPriorityMode,
		},
		{
			name: "unreadable catalog snapshot",
			cfg: Config{
				Strategy:     "balanced",
				PriorityMode: "hybrid",
				CatalogFile:  filepath.Join(t.TempDir(), "absent.yaml"),
			},
			wantIn: "load catalog snapshot",
		},
		{
			name: "unusable history directory",
			cfg: Config{
				Strategy:     "balanced",
				PriorityMode: "hybrid",
				HistoryDir:   filepath.Join(blocker, "history"),
			},
			wantIn: "open history store",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.cfg.Options(nil)
			if err == nil {
				t.Fatal("Options() accepted a bad configuration")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantIn != "" && !strings.Contains(err.Error(), tt.wantIn) {
				t.Errorf("error = %v, want mention of %q", err, tt.wantIn)
			}
		})
	}
}

func TestConfigBuildCatalog(t *testing.T) {
	snapshot := filepath.Join(t.TempDir(), "snapshot.yaml")
	content := "packages:\n  http:\n    version: 1.2.1\n    published_at: 2026-05-01T00:00:00Z\n"
	if err := os.WriteFile(snapshot, []byte(content), 0o644); err != nil {
		t.Fatalf("writing snapshot failed: %v", err)
	}

	none, err := Config{}.buildCatalog(nil)
	if err != nil {
		t.Fatalf("buildCatalog() with nothing configured failed: %v", err)
	}
	if none != nil {
		t.Errorf("buildCatalog() = %T, want nil", none)
	}

	fileOnly, err := Config{CatalogFile: snapshot}.buildCatalog(nil)
	if err != nil {
		t.Fatalf("buildCatalog() with a snapshot failed: %v", err)
	}
	if _, ok := fileOnly.(*depadvise.FileCatalog); !ok {
		t.Errorf("buildCatalog() = %T, want *depadvise.FileCatalog", fileOnly)
	}

	urlOnly, err := Config{CatalogURL: "https://registry.example.com"}.buildCatalog(nil)
	if err != nil {
		t.Fatalf("buildCatalog() with a URL failed: %v", err)
	}
	if _, ok := urlOnly.(*depadvise.RegistryCatalog); !ok {
		t.Errorf("buildCatalog() = %T, want *depadvise.RegistryCatalog", urlOnly)
	}

	both, err := Config{CatalogURL: "https://registry.example.com", CatalogFile: snapshot}.buildCatalog(nil)
	if err != nil {
		t.Fatalf("buildCatalog() with both sources failed: %v", err)
	}
	if _, ok := both.(*depadvise.ChainCatalog); !ok {
		t.Errorf("buildCatalog() = %T, want *depadvise.ChainCatalog", both)
	}
}
