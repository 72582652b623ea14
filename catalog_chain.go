package depadvise

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// ChainCatalog looks packages up across multiple catalogs with fallback
// behavior. Catalogs are tried in order and the chain remembers which
// catalog serves each package.
//
// Key behaviors:
//  1. Packages are looked up in catalog order (first to last)
//  2. The first catalog that knows a package serves ALL later lookups
//     of that package
//  3. A package unknown everywhere is simply omitted from the result
//
// The chain falls through to the next catalog on ANY error, so a dead
// primary registry degrades into its mirrors instead of failing the
// whole fetch. An error is returned only when every catalog failed and
// nothing could be resolved.
type ChainCatalog struct {
	catalogs []Catalog
	logger   *slog.Logger

	// pinned tracks which catalog serves each package (by name). Once a
	// package is found in a catalog, all later lookups use that catalog.
	mu     sync.RWMutex
	pinned map[string]int
}

var _ Catalog = (*ChainCatalog)(nil)

// NewChainCatalog builds a chain over the given catalogs. A nil logger
// disables diagnostics.
func NewChainCatalog(catalogs []Catalog, logger *slog.Logger) *ChainCatalog {
	if logger == nil {
		logger = slog.New(discardHandler{})
	}
	return &ChainCatalog{
		catalogs: catalogs,
		logger:   logger,
		pinned:   make(map[string]int),
	}
}

// GetLatestVersions resolves the names across the chain. Names pinned
// to a catalog are asked only there; unpinned names probe the chain in
// order and pin to the first catalog that knows them.
func (c *ChainCatalog) GetLatestVersions(ctx context.Context, names []string) (map[string]VersionInfo, error) {
	if len(c.catalogs) == 0 {
		return nil, fmt.Errorf("%w: empty catalog chain", ErrCatalogUnavailable)
	}

	out := make(map[string]VersionInfo, len(names))
	byCatalog, probe := c.split(names)

	var errs []error
	for idx, group := range byCatalog {
		got, err := c.catalogs[idx].GetLatestVersions(ctx, group)
		if err != nil {
			// The pinned catalog is down; its packages stay unresolved
			// this round rather than migrating to another source.
			c.logger.Warn("pinned catalog failed", "catalog", idx, "error", err)
			errs = append(errs, err)
			continue
		}
		for _, name := range group {
			if info, ok := got[name]; ok {
				out[name] = info
			}
		}
	}

	remaining := probe
	failures := 0
	for idx, cat := range c.catalogs {
		if len(remaining) == 0 {
			break
		}
		got, err := cat.GetLatestVersions(ctx, remaining)
		if err != nil {
			c.logger.Warn("catalog failed, trying next", "catalog", idx, "error", err)
			errs = append(errs, err)
			failures++
			continue
		}
		var next []string
		for _, name := range remaining {
			info, ok := got[name]
			if !ok {
				next = append(next, name)
				continue
			}
			out[name] = info
			c.pin(name, idx)
		}
		remaining = next
	}

	if len(out) == 0 && failures == len(c.catalogs) && len(probe) > 0 {
		return nil, fmt.Errorf("%w: all catalogs failed: %w", ErrCatalogUnavailable, errors.Join(errs...))
	}
	return out, nil
}

// PinnedCatalog returns the index of the catalog serving the named
// package, or -1 when the package has not been resolved yet.
func (c *ChainCatalog) PinnedCatalog(name string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if idx, ok := c.pinned[name]; ok {
		return idx
	}
	return -1
}

// split partitions names into pinned groups per catalog index and the
// not-yet-pinned probe list, preserving input order within each group.
func (c *ChainCatalog) split(names []string) (map[int][]string, []string) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	byCatalog := make(map[int][]string)
	var probe []string
	for _, name := range names {
		if idx, ok := c.pinned[name]; ok {
			byCatalog[idx] = append(byCatalog[idx], name)
			continue
		}
		probe = append(probe, name)
	}
	return byCatalog, probe
}

func (c *ChainCatalog) pin(name string, idx int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.pinned[name]; !exists {
		c.pinned[name] = idx
		c.logger.Debug("package pinned to catalog", "package", name, "catalog", idx)
	}
}
