package catalog

import (
	"cmp"
	"slices"
	"strings"
	"sync"
)

// SkeletonEntry is one metered operation flattened out of the catalog,
// keyed by its fully qualified dotted code (app.module.operation).
type SkeletonEntry struct {
	OperationCode string
	OperationName string
}

// SkeletonCache memoizes the per-application flattening of the catalog.
// The catalog is load-time constant, so entries are built once per
// application code and kept for the life of the cache. The cache is an
// explicit object owned by whoever orchestrates bootstrap calls; it is not
// a package-level singleton, so tests get a fresh instance each time.
type SkeletonCache struct {
	catalog *Catalog

	mu     sync.Mutex
	byApp  map[string][]SkeletonEntry
	builds map[string]int
}

func NewSkeletonCache(c *Catalog) *SkeletonCache {
	return &SkeletonCache{
		catalog: c,
		byApp:   make(map[string][]SkeletonEntry),
		builds:  make(map[string]int),
	}
}

// Skeleton returns the sorted (operationCode, operationName) pairs for an
// application. Unknown application codes yield an empty skeleton, not an
// error. The returned slice is a copy; callers may not mutate the cache.
func (s *SkeletonCache) Skeleton(appCode string) []SkeletonEntry {
	appCode = strings.ToLower(strings.TrimSpace(appCode))

	s.mu.Lock()
	defer s.mu.Unlock()

	entries, ok := s.byApp[appCode]
	if !ok {
		entries = buildSkeleton(s.catalog, appCode)
		s.byApp[appCode] = entries
		s.builds[appCode]++
	}
	return slices.Clone(entries)
}

// BuildCount reports how many times the catalog was traversed for appCode.
// Test probe for the build-once property.
func (s *SkeletonCache) BuildCount(appCode string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.builds[strings.ToLower(strings.TrimSpace(appCode))]
}

func buildSkeleton(c *Catalog, appCode string) []SkeletonEntry {
	app, ok := c.Application(appCode)
	if !ok {
		return []SkeletonEntry{}
	}

	var entries []SkeletonEntry
	for _, module := range app.Modules {
		moduleCode := strings.TrimSpace(module.Code)
		if moduleCode == "" {
			continue
		}
		for _, op := range module.Operations {
			opCode := strings.TrimSpace(op.Code)
			if opCode == "" {
				continue
			}
			entries = append(entries, SkeletonEntry{
				OperationCode: app.Code + "." + moduleCode + "." + opCode,
				OperationName: op.Name,
			})
		}
	}
	if entries == nil {
		entries = []SkeletonEntry{}
	}

	slices.SortFunc(entries, func(a, b SkeletonEntry) int {
		return cmp.Compare(a.OperationCode, b.OperationCode)
	})
	return entries
}
