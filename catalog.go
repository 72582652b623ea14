package depadvise

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/depadvise/depadvise/catalog"
)

// registryFetchLimit bounds the concurrent per-package lookups a single
// catalog call fans out.
const registryFetchLimit = 8

// Catalog supplies the latest known version metadata per package name.
// Implementations must be safe for concurrent use.
//
// Names the catalog does not know are omitted from the result rather
// than reported as errors. A non-nil error means the catalog itself was
// unreachable.
type Catalog interface {
	GetLatestVersions(ctx context.Context, names []string) (map[string]VersionInfo, error)
}

// RegistryCatalog adapts a registry client into a Catalog. Per-package
// lookups run concurrently and unknown packages are skipped.
type RegistryCatalog struct {
	client *catalog.Client
	logger *slog.Logger
}

var _ Catalog = (*RegistryCatalog)(nil)

// NewRegistryCatalog wraps a registry client. A nil logger disables
// diagnostics.
func NewRegistryCatalog(client *catalog.Client, logger *slog.Logger) *RegistryCatalog {
	if logger == nil {
		logger = slog.New(discardHandler{})
	}
	return &RegistryCatalog{client: client, logger: logger}
}

// GetLatestVersions fetches each package's latest release concurrently.
// Missing packages are omitted. Any other registry failure aborts the
// whole batch.
func (r *RegistryCatalog) GetLatestVersions(ctx context.Context, names []string) (map[string]VersionInfo, error) {
	results := make(map[string]VersionInfo, len(names))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(registryFetchLimit)

	for _, name := range names {
		name := name
		g.Go(func() error {
			info, err := r.fetchOne(ctx, name)
			if err != nil {
				var status *catalog.StatusError
				if errors.As(err, &status) && status.NotFound() {
					r.logger.Debug("package not in catalog, skipping", "package", name)
					return nil
				}
				return &CatalogError{Package: name, StatusCode: statusCodeOf(err), Err: err}
			}
			mu.Lock()
			results[name] = info
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (r *RegistryCatalog) fetchOne(ctx context.Context, name string) (VersionInfo, error) {
	pkg, err := r.client.GetPackage(ctx, name)
	if err != nil {
		return VersionInfo{}, err
	}

	// Score endpoints are optional; missing scores degrade to zero.
	score, err := r.client.GetScore(ctx, name)
	if err != nil {
		r.logger.Debug("score lookup failed, continuing without popularity", "package", name, "error", err)
		score = &catalog.Score{}
	}

	return releaseToVersionInfo(name, pkg.Latest, score), nil
}

// releaseToVersionInfo converts a registry release document into the
// advisor's version model.
func releaseToVersionInfo(name string, rel catalog.Release, score *catalog.Score) VersionInfo {
	info := VersionInfo{
		PackageName:     name,
		Version:         rel.Version,
		PublishedAt:     rel.PublishedAt,
		IsPrerelease:    rel.Prerelease(),
		IsStable:        !rel.Prerelease() && !rel.Retracted,
		Description:     rel.Description,
		License:         rel.License,
		Dependencies:    rel.Dependencies,
		DevDependencies: rel.DevDependencies,
	}
	if score != nil {
		info.DownloadCount = score.DownloadCount30Days
	}
	return info
}

func statusCodeOf(err error) int {
	var status *catalog.StatusError
	if errors.As(err, &status) {
		return status.StatusCode
	}
	return 0
}

// CachedCatalog wraps another catalog with a time-to-live cache and a
// last-known-good fallback. A lookup after an entry expires refetches
// it. When the inner catalog fails, previously seen metadata is served
// even if expired, so transient registry outages degrade instead of
// failing the pipeline.
type CachedCatalog struct {
	inner  Catalog
	ttl    time.Duration
	logger *slog.Logger

	mu      sync.RWMutex
	entries map[string]cachedVersion
}

type cachedVersion struct {
	info      VersionInfo
	fetchedAt time.Time
}

var _ Catalog = (*CachedCatalog)(nil)

// NewCachedCatalog wraps inner with a TTL cache. A nil logger disables
// diagnostics.
func NewCachedCatalog(inner Catalog, ttl time.Duration, logger *slog.Logger) *CachedCatalog {
	if logger == nil {
		logger = slog.New(discardHandler{})
	}
	return &CachedCatalog{
		inner:   inner,
		ttl:     ttl,
		logger:  logger,
		entries: make(map[string]cachedVersion),
	}
}

// GetLatestVersions serves fresh cache entries and refetches the rest.
// On inner failure every requested name that was ever fetched is served
// from cache; the batch fails only when nothing cached can answer it.
func (c *CachedCatalog) GetLatestVersions(ctx context.Context, names []string) (map[string]VersionInfo, error) {
	results := make(map[string]VersionInfo, len(names))
	var missing []string

	now := time.Now()
	c.mu.RLock()
	for _, name := range names {
		if entry, ok := c.entries[name]; ok && now.Sub(entry.fetchedAt) < c.ttl {
			results[name] = entry.info
		} else {
			missing = append(missing, name)
		}
	}
	c.mu.RUnlock()

	if len(missing) == 0 {
		return results, nil
	}

	fetched, err := c.inner.GetLatestVersions(ctx, missing)
	if err != nil {
		stale := c.snapshot(missing)
		if len(stale) == 0 && len(results) == 0 {
			return nil, fmt.Errorf("%w: %w", ErrCatalogUnavailable, err)
		}
		c.logger.Warn("catalog fetch failed, serving cached metadata",
			"missing", len(missing), "cached", len(stale), "error", err)
		for name, info := range stale {
			results[name] = info
		}
		return results, nil
	}

	c.mu.Lock()
	for name, info := range fetched {
		c.entries[name] = cachedVersion{info: info, fetchedAt: now}
		results[name] = info
	}
	c.mu.Unlock()

	return results, nil
}

// snapshot returns whatever the cache holds for the given names,
// expired entries included.
func (c *CachedCatalog) snapshot(names []string) map[string]VersionInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]VersionInfo)
	for _, name := range names {
		if entry, ok := c.entries[name]; ok {
			out[name] = entry.info
		}
	}
	return out
}

// Len returns the number of cached packages.
func (c *CachedCatalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// StaticCatalog serves version metadata from a fixed in-memory map.
// It backs offline runs, examples, and tests.
type StaticCatalog struct {
	versions map[string]VersionInfo
}

var _ Catalog = (*StaticCatalog)(nil)

// NewStaticCatalog builds a catalog over the given versions, keyed by
// their package names.
func NewStaticCatalog(versions ...VersionInfo) *StaticCatalog {
	keyed := make(map[string]VersionInfo, len(versions))
	for _, v := range versions {
		keyed[v.PackageName] = v
	}
	return &StaticCatalog{versions: keyed}
}

// StaticVersion builds a stable release fixture aged the given number
// of days, for static catalogs in examples and tests.
func StaticVersion(name, version string, ageDays int) VersionInfo {
	return VersionInfo{
		PackageName:   name,
		Version:       version,
		PublishedAt:   time.Now().AddDate(0, 0, -ageDays),
		IsStable:      true,
		DownloadCount: 50000,
	}
}

// GetLatestVersions returns the known subset of the requested names.
func (s *StaticCatalog) GetLatestVersions(_ context.Context, names []string) (map[string]VersionInfo, error) {
	out := make(map[string]VersionInfo, len(names))
	for _, name := range names {
		if info, ok := s.versions[name]; ok {
			out[name] = info
		}
	}
	return out, nil
}

// FailingCatalog always fails with the given error. It exists for
// exercising fallback paths in tests.
type FailingCatalog struct {
	// Err is returned by every call. Defaults to ErrCatalogUnavailable
	// when nil.
	Err error
}

var _ Catalog = FailingCatalog{}

// GetLatestVersions always fails.
func (f FailingCatalog) GetLatestVersions(context.Context, []string) (map[string]VersionInfo, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	return nil, ErrCatalogUnavailable
}
