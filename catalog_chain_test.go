package depadvise

import (
	"context"
	"errors"
	"testing"
)

func TestChainCatalog_ProbesInOrder(t *testing.T) {
	primary := &countingCatalog{inner: NewStaticCatalog(
		StaticVersion("http", "1.2.1", 100),
	)}
	mirror := &countingCatalog{inner: NewStaticCatalog(
		StaticVersion("http", "0.9.0", 900),
		StaticVersion("exotic", "0.2.0", 20),
	)}
	chain := NewChainCatalog([]Catalog{primary, mirror}, nil)

	got, err := chain.GetLatestVersions(context.Background(), []string{"http", "exotic", "ghost"})
	if err != nil {
		t.Fatalf("GetLatestVersions() failed: %v", err)
	}

	// The first catalog wins for names it knows, later catalogs fill in
	// the rest, and unknown names are omitted.
	if got["http"].Version != "1.2.1" {
		t.Errorf("http from chain = %q, want the primary's 1.2.1", got["http"].Version)
	}
	if got["exotic"].Version != "0.2.0" {
		t.Errorf("exotic from chain = %q, want the mirror's 0.2.0", got["exotic"].Version)
	}
	if _, ok := got["ghost"]; ok {
		t.Error("unknown package resolved from thin air")
	}

	if got := chain.PinnedCatalog("http"); got != 0 {
		t.Errorf("PinnedCatalog(http) = %d, want 0", got)
	}
	if got := chain.PinnedCatalog("exotic"); got != 1 {
		t.Errorf("PinnedCatalog(exotic) = %d, want 1", got)
	}
	if got := chain.PinnedCatalog("ghost"); got != -1 {
		t.Errorf("PinnedCatalog(ghost) = %d, want -1", got)
	}
}

func TestChainCatalog_PinningSticks(t *testing.T) {
	primary := &countingCatalog{inner: NewStaticCatalog(StaticVersion("http", "1.2.1", 100))}
	mirror := &countingCatalog{inner: NewStaticCatalog(StaticVersion("http", "0.9.0", 900))}
	chain := NewChainCatalog([]Catalog{primary, mirror}, nil)
	ctx := context.Background()

	if _, err := chain.GetLatestVersions(ctx, []string{"http"}); err != nil {
		t.Fatalf("first GetLatestVersions() failed: %v", err)
	}
	mirrorBefore := mirror.callCount()

	got, err := chain.GetLatestVersions(ctx, []string{"http"})
	if err != nil {
		t.Fatalf("second GetLatestVersions() failed: %v", err)
	}
	if got["http"].Version != "1.2.1" {
		t.Errorf("pinned lookup = %q, want 1.2.1", got["http"].Version)
	}
	if mirror.callCount() != mirrorBefore {
		t.Error("pinned lookup still probed the mirror")
	}
}

func TestChainCatalog_PinnedCatalogOutage(t *testing.T) {
	primary := &countingCatalog{inner: NewStaticCatalog(StaticVersion("http", "1.2.1", 100))}
	mirror := &countingCatalog{inner: NewStaticCatalog(StaticVersion("http", "0.9.0", 900))}
	chain := NewChainCatalog([]Catalog{primary, mirror}, nil)
	ctx := context.Background()

	if _, err := chain.GetLatestVersions(ctx, []string{"http"}); err != nil {
		t.Fatalf("first GetLatestVersions() failed: %v", err)
	}

	// The pinned catalog going down leaves its packages unresolved for
	// the round instead of silently migrating to the mirror.
	primary.setDown(true)
	got, err := chain.GetLatestVersions(ctx, []string{"http"})
	if err != nil {
		t.Fatalf("GetLatestVersions() during outage failed: %v", err)
	}
	if _, ok := got["http"]; ok {
		t.Errorf("pinned package resolved to %q during its catalog's outage", got["http"].Version)
	}
	if got := chain.PinnedCatalog("http"); got != 0 {
		t.Errorf("outage moved the pin to %d", got)
	}
}

func TestChainCatalog_FallsThroughOnError(t *testing.T) {
	dead := &countingCatalog{inner: NewStaticCatalog(), down: true}
	mirror := &countingCatalog{inner: NewStaticCatalog(StaticVersion("http", "1.2.0", 100))}
	chain := NewChainCatalog([]Catalog{dead, mirror}, nil)

	got, err := chain.GetLatestVersions(context.Background(), []string{"http"})
	if err != nil {
		t.Fatalf("GetLatestVersions() failed despite a live mirror: %v", err)
	}
	if got["http"].Version != "1.2.0" {
		t.Errorf("http = %q, want the mirror's 1.2.0", got["http"].Version)
	}
	if got := chain.PinnedCatalog("http"); got != 1 {
		t.Errorf("PinnedCatalog(http) = %d, want the mirror", got)
	}
}

func TestChainCatalog_AllCatalogsFailed(t *testing.T) {
	chain := NewChainCatalog([]Catalog{
		FailingCatalog{Err: errors.New("primary down")},
		FailingCatalog{Err: errors.New("mirror down")},
	}, nil)

	_, err := chain.GetLatestVersions(context.Background(), []string{"http"})
	if !errors.Is(err, ErrCatalogUnavailable) {
		t.Errorf("GetLatestVersions() error = %v, want ErrCatalogUnavailable", err)
	}
}

func TestChainCatalog_EmptyChain(t *testing.T) {
	chain := NewChainCatalog(nil, nil)
	if _, err := chain.GetLatestVersions(context.Background(), []string{"http"}); !errors.Is(err, ErrCatalogUnavailable) {
		t.Errorf("GetLatestVersions() error = %v, want ErrCatalogUnavailable", err)
	}
}

func TestChainCatalog_PartialFailureIsNotAnError(t *testing.T) {
	dead := FailingCatalog{Err: errors.New("primary down")}
	mirror := NewStaticCatalog(StaticVersion("http", "1.2.0", 100))
	chain := NewChainCatalog([]Catalog{dead, mirror}, nil)

	got, err := chain.GetLatestVersions(context.Background(), []string{"http", "ghost"})
	if err != nil {
		t.Fatalf("GetLatestVersions() failed: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("resolved %d packages, want 1", len(got))
	}
}
