package depadvise

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestAdvise(t *testing.T) {
	res, err := Advise(context.Background(), advisoryPackages(),
		WithCatalog(advisoryCatalog()),
		WithVerifier(NewPassingVerifier()),
	)
	if err != nil {
		t.Fatalf("Advise() failed: %v", err)
	}
	if res.Recommended == nil {
		t.Fatal("no recommendation")
	}
	if res.Recommended.Complexity() == 0 {
		t.Error("recommended configuration is empty")
	}
}

func TestAdvise_InvalidOptions(t *testing.T) {
	if _, err := Advise(context.Background(), advisoryPackages(), WithMaxCombinations(0)); err == nil {
		t.Error("Advise() accepted an invalid configuration")
	}
}

func writeProjectManifest(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "project.yaml")
	doc := `
name: storefront
dependencies:
  http: ^1.2.0
essential_dependencies:
  intl: ^0.19.0
dev_dependencies:
  lints: ^4.0.0
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("writing manifest failed: %v", err)
	}
	return path
}

func TestAdviseFile(t *testing.T) {
	path := writeProjectManifest(t)

	res, err := AdviseFile(context.Background(), path,
		WithCatalog(advisoryCatalog()),
		WithVerifier(NewPassingVerifier()),
	)
	if err != nil {
		t.Fatalf("AdviseFile() failed: %v", err)
	}
	if res.Recommended == nil {
		t.Fatal("no recommendation")
	}
	if res.Incremental == nil {
		t.Error("manifest runs should plan incremental updates")
	}
}

func TestAdviseFile_MissingManifest(t *testing.T) {
	_, err := AdviseFile(context.Background(), filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil || !strings.Contains(err.Error(), "load manifest") {
		t.Errorf("AdviseFile() error = %v, want a manifest load failure", err)
	}
}

func TestPlan(t *testing.T) {
	current := coreOnlySet("running-app", StaticVersion("http", "1.2.0", 300))

	plan, err := Plan(context.Background(), current, WithCatalog(advisoryCatalog()))
	if err != nil {
		t.Fatalf("Plan() failed: %v", err)
	}
	if plan.TestResult != nil {
		t.Error("Plan() verified without being asked")
	}

	found := false
	for _, change := range plan.Changes {
		if change.PackageName == "http" && change.Kind == ChangeUpdated {
			found = true
		}
	}
	if !found {
		t.Errorf("Changes = %+v, want the http patch", plan.Changes)
	}
}

func TestPlanFile(t *testing.T) {
	path := writeProjectManifest(t)

	plan, err := PlanFile(context.Background(), path, WithCatalog(advisoryCatalog()))
	if err != nil {
		t.Fatalf("PlanFile() failed: %v", err)
	}
	if plan.Original.Name != "storefront" {
		t.Errorf("Original.Name = %q, want storefront", plan.Original.Name)
	}

	found := false
	for _, change := range plan.Changes {
		if change.PackageName == "http" && change.NewVersion != nil && change.NewVersion.Version == "1.2.1" {
			found = true
		}
	}
	if !found {
		t.Errorf("Changes = %+v, want http moved to 1.2.1", plan.Changes)
	}
}
