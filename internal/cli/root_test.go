package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// runCommand executes the CLI end to end with fresh search paths and
// returns everything it printed.
func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	isolate(t)
	root := NewRootCmd("test")
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetErr(&buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

// writeAdvisoryFixtures lays down a catalog snapshot and a manifest
// pinned one patch release behind it.
func writeAdvisoryFixtures(t *testing.T) (snapshot, manifest string) {
	t.Helper()
	dir := t.TempDir()
	snapshot = filepath.Join(dir, "snapshot.yaml")
	manifest = filepath.Join(dir, "pubspec.yaml")

	snapshotDoc := `packages:
  http:
    version: 1.2.1
    published_at: 2026-01-01T00:00:00Z
    downloads: 250000
  intl:
    version: 0.19.0
    published_at: 2025-11-01T00:00:00Z
    downloads: 120000
  lints:
    version: 4.0.0
    published_at: 2025-10-01T00:00:00Z
    downloads: 90000
`
	manifestDoc := `name: storefront
dependencies:
  http: ^1.2.0
  intl: ^0.19.0
dev_dependencies:
  lints: ^4.0.0
`
	if err := os.WriteFile(snapshot, []byte(snapshotDoc), 0o644); err != nil {
		t.Fatalf("writing snapshot failed: %v", err)
	}
	if err := os.WriteFile(manifest, []byte(manifestDoc), 0o644); err != nil {
		t.Fatalf("writing manifest failed: %v", err)
	}
	return snapshot, manifest
}

func TestRootCmd_Version(t *testing.T) {
	out, err := runCommand(t, "--version")
	if err != nil {
		t.Fatalf("--version failed: %v", err)
	}
	if !strings.Contains(out, "test") {
		t.Errorf("version output = %q", out)
	}
}

func TestAdviseCmd(t *testing.T) {
	snapshot, _ := writeAdvisoryFixtures(t)

	out, err := runCommand(t, "advise", "http", "intl", "--catalog-file", snapshot, "--skip-tests")
	if err != nil {
		t.Fatalf("advise failed: %v\n%s", err, out)
	}
	for _, want := range []string{"Configuration Advice", "Recommended:"} {
		if !strings.Contains(out, want) {
			t.Errorf("advise output lacks %q:\n%s", want, out)
		}
	}
}

func TestAdviseCmd_JSON(t *testing.T) {
	snapshot, _ := writeAdvisoryFixtures(t)

	out, err := runCommand(t, "advise", "http", "--catalog-file", snapshot, "--skip-tests", "--json")
	if err != nil {
		t.Fatalf("advise --json failed: %v\n%s", err, out)
	}

	var decoded map[string]any
	if err := json.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatalf("advise --json emitted invalid JSON: %v\n%s", err, out)
	}
	if decoded["recommended"] == nil {
		t.Errorf("JSON output has no recommendation:\n%s", out)
	}
}

func TestAdviseCmd_RequiresInput(t *testing.T) {
	_, err := runCommand(t, "advise")
	if err == nil || !strings.Contains(err.Error(), "name packages") {
		t.Errorf("advise without input returned %v", err)
	}
}

func TestPlanCmd(t *testing.T) {
	snapshot, manifest := writeAdvisoryFixtures(t)

	out, err := runCommand(t, "plan", "--manifest", manifest, "--catalog-file", snapshot)
	if err != nil {
		t.Fatalf("plan failed: %v\n%s", err, out)
	}
	for _, want := range []string{"Incremental Update Plan", "Changes (1,", "http 1.2.0 -> 1.2.1"} {
		if !strings.Contains(out, want) {
			t.Errorf("plan output lacks %q:\n%s", want, out)
		}
	}
}

func TestPlanCmd_RequiresManifest(t *testing.T) {
	_, err := runCommand(t, "plan")
	if err == nil || !strings.Contains(err.Error(), "manifest") {
		t.Errorf("plan without a manifest returned %v", err)
	}
}

func TestTestCmd(t *testing.T) {
	_, manifest := writeAdvisoryFixtures(t)

	out, err := runCommand(t, "test", "--manifest", manifest, "--seed", "5")
	if err != nil {
		t.Fatalf("test failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "storefront") {
		t.Errorf("verdict does not name the configuration:\n%s", out)
	}
}
