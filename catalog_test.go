package depadvise

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/depadvise/depadvise/catalog"
)

// countingCatalog wraps an inner catalog, counting calls and failing on
// demand.
type countingCatalog struct {
	inner Catalog
	mu    sync.Mutex
	calls int
	down  bool
}

func (c *countingCatalog) GetLatestVersions(ctx context.Context, names []string) (map[string]VersionInfo, error) {
	c.mu.Lock()
	c.calls++
	down := c.down
	c.mu.Unlock()
	if down {
		return nil, errors.New("registry offline")
	}
	return c.inner.GetLatestVersions(ctx, names)
}

func (c *countingCatalog) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func (c *countingCatalog) setDown(down bool) {
	c.mu.Lock()
	c.down = down
	c.mu.Unlock()
}

func TestStaticCatalog_SubsetLookup(t *testing.T) {
	cat := NewStaticCatalog(
		StaticVersion("http", "1.2.1", 100),
		StaticVersion("dio", "5.4.0", 50),
	)

	got, err := cat.GetLatestVersions(context.Background(), []string{"http", "ghost"})
	if err != nil {
		t.Fatalf("GetLatestVersions() failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("GetLatestVersions() returned %d entries, want 1", len(got))
	}
	if got["http"].Version != "1.2.1" {
		t.Errorf("http version = %q, want 1.2.1", got["http"].Version)
	}
}

func TestStaticVersion_Fixture(t *testing.T) {
	info := StaticVersion("http", "1.2.1", 90)
	if !info.IsStable || info.IsPrerelease {
		t.Errorf("fixture stability = stable %v prerelease %v", info.IsStable, info.IsPrerelease)
	}
	if info.DownloadCount != 50000 {
		t.Errorf("DownloadCount = %d, want 50000", info.DownloadCount)
	}
	if got := info.DaysSincePublished(); got < 89 || got > 90 {
		t.Errorf("DaysSincePublished() = %d, want about 90", got)
	}
}

func TestCachedCatalog_ServesFresh(t *testing.T) {
	inner := &countingCatalog{inner: NewStaticCatalog(StaticVersion("http", "1.2.1", 100))}
	cached := NewCachedCatalog(inner, time.Hour, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		got, err := cached.GetLatestVersions(ctx, []string{"http"})
		if err != nil {
			t.Fatalf("GetLatestVersions() failed: %v", err)
		}
		if got["http"].Version != "1.2.1" {
			t.Errorf("http version = %q, want 1.2.1", got["http"].Version)
		}
	}

	if got := inner.callCount(); got != 1 {
		t.Errorf("inner catalog called %d times, want 1", got)
	}
	if got := cached.Len(); got != 1 {
		t.Errorf("Len() = %d, want 1", got)
	}
}

func TestCachedCatalog_RefetchAfterExpiry(t *testing.T) {
	inner := &countingCatalog{inner: NewStaticCatalog(StaticVersion("http", "1.2.1", 100))}
	cached := NewCachedCatalog(inner, time.Nanosecond, nil)
	ctx := context.Background()

	if _, err := cached.GetLatestVersions(ctx, []string{"http"}); err != nil {
		t.Fatalf("GetLatestVersions() failed: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	if _, err := cached.GetLatestVersions(ctx, []string{"http"}); err != nil {
		t.Fatalf("GetLatestVersions() failed: %v", err)
	}

	if got := inner.callCount(); got != 2 {
		t.Errorf("inner catalog called %d times, want 2 after expiry", got)
	}
}

func TestCachedCatalog_ServesStaleDuringOutage(t *testing.T) {
	inner := &countingCatalog{inner: NewStaticCatalog(StaticVersion("http", "1.2.1", 100))}
	cached := NewCachedCatalog(inner, time.Nanosecond, nil)
	ctx := context.Background()

	if _, err := cached.GetLatestVersions(ctx, []string{"http"}); err != nil {
		t.Fatalf("GetLatestVersions() failed: %v", err)
	}

	time.Sleep(5 * time.Millisecond)
	inner.setDown(true)

	got, err := cached.GetLatestVersions(ctx, []string{"http"})
	if err != nil {
		t.Fatalf("GetLatestVersions() failed during outage: %v", err)
	}
	if got["http"].Version != "1.2.1" {
		t.Errorf("stale http version = %q, want 1.2.1", got["http"].Version)
	}
}

func TestCachedCatalog_FailsWithNothingCached(t *testing.T) {
	cached := NewCachedCatalog(FailingCatalog{}, time.Hour, nil)

	_, err := cached.GetLatestVersions(context.Background(), []string{"http"})
	if !errors.Is(err, ErrCatalogUnavailable) {
		t.Errorf("GetLatestVersions() error = %v, want ErrCatalogUnavailable", err)
	}
}

func TestFailingCatalog(t *testing.T) {
	if _, err := (FailingCatalog{}).GetLatestVersions(context.Background(), nil); !errors.Is(err, ErrCatalogUnavailable) {
		t.Errorf("default error = %v, want ErrCatalogUnavailable", err)
	}
	custom := errors.New("quota exceeded")
	if _, err := (FailingCatalog{Err: custom}).GetLatestVersions(context.Background(), nil); !errors.Is(err, custom) {
		t.Errorf("custom error = %v, want the configured one", err)
	}
}

func testRegistry(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/packages/http", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{
			"name": "http",
			"latest": {
				"version": "1.2.1",
				"published": "2026-05-01T00:00:00Z",
				"description": "composable HTTP client",
				"license": "BSD-3-Clause",
				"dependencies": {"meta": "^1.9.0"}
			}
		}`))
	})
	mux.HandleFunc("/api/packages/http/score", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"granted_points":140,"max_points":140,"like_count":5000,"download_count_30_days":250000}`))
	})
	mux.HandleFunc("/api/packages/broken", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestRegistryCatalog_GetLatestVersions(t *testing.T) {
	srv := testRegistry(t)
	client := catalog.NewClient(srv.URL, catalog.WithRateLimit(0))
	cat := NewRegistryCatalog(client, nil)

	got, err := cat.GetLatestVersions(context.Background(), []string{"http", "ghost"})
	if err != nil {
		t.Fatalf("GetLatestVersions() failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("GetLatestVersions() returned %d entries, want the unknown package skipped", len(got))
	}

	info := got["http"]
	if info.Version != "1.2.1" {
		t.Errorf("Version = %q, want 1.2.1", info.Version)
	}
	if info.DownloadCount != 250000 {
		t.Errorf("DownloadCount = %d, want 250000", info.DownloadCount)
	}
	if !info.IsStable || info.IsPrerelease {
		t.Errorf("stability = stable %v prerelease %v, want stable", info.IsStable, info.IsPrerelease)
	}
	if info.Dependencies["meta"] != "^1.9.0" {
		t.Errorf("Dependencies = %v, want meta constraint carried over", info.Dependencies)
	}
	if info.License != "BSD-3-Clause" {
		t.Errorf("License = %q", info.License)
	}
}

func TestRegistryCatalog_ServerError(t *testing.T) {
	srv := testRegistry(t)
	client := catalog.NewClient(srv.URL, catalog.WithRateLimit(0))
	cat := NewRegistryCatalog(client, nil)

	_, err := cat.GetLatestVersions(context.Background(), []string{"broken"})
	if err == nil {
		t.Fatal("GetLatestVersions() ignored a server error")
	}

	var catErr *CatalogError
	if !errors.As(err, &catErr) {
		t.Fatalf("error type = %T, want *CatalogError", err)
	}
	if catErr.Package != "broken" {
		t.Errorf("Package = %q, want broken", catErr.Package)
	}
	if catErr.StatusCode != http.StatusInternalServerError {
		t.Errorf("StatusCode = %d, want 500", catErr.StatusCode)
	}
	if catErr.IsNotFound() {
		t.Error("IsNotFound() = true for a 500")
	}
}
