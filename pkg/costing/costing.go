// Package costing resolves the three-tier cost cascade for metered
// operations: platform default < global override < tenant override.
package costing

import "github.com/veyralabs/suitecore/internal/catalog"

type Scope string

const (
	ScopeDefault        Scope = "default"
	ScopeGlobalOverride Scope = "global-override"
	ScopeTenantOverride Scope = "tenant-override"
)

const DefaultUnit = "credits"

// CostConfig is one override row as stored: a global override or a tenant
// override binding an operation to a cost. Defaults are never stored; they
// are synthesized during resolution.
type CostConfig struct {
	OperationCode string
	Cost          int64
	Unit          string
	Scope         Scope
}

type ResolvedCost struct {
	OperationCode string `json:"operationCode"`
	OperationName string `json:"operationName"`
	Cost          int64  `json:"cost"`
	Unit          string `json:"unit"`
	Scope         Scope  `json:"scope"`
}

// Resolve merges override rows onto the catalog skeleton. Two passes: global
// rows seed the map (first row wins on duplicates), tenant rows then
// overwrite unconditionally (so duplicates within the tenant pass resolve
// last-write-wins). Skeleton entries with no override synthesize a zero-cost
// default. Output preserves skeleton order and yields exactly one entry per
// skeleton operation.
//
// The second return value lists operation codes that appeared more than once
// within a single pass. Duplicates are a data-quality concern for upstream
// cleanup, never a processing failure.
func Resolve(skeleton []catalog.SkeletonEntry, rows []CostConfig) ([]ResolvedCost, []string) {
	merged := make(map[string]CostConfig, len(rows))
	var duplicates []string

	seenGlobal := make(map[string]bool)
	for _, row := range rows {
		if row.Scope != ScopeGlobalOverride {
			continue
		}
		if seenGlobal[row.OperationCode] {
			duplicates = append(duplicates, row.OperationCode)
			continue
		}
		seenGlobal[row.OperationCode] = true
		merged[row.OperationCode] = row
	}

	seenTenant := make(map[string]bool)
	for _, row := range rows {
		if row.Scope != ScopeTenantOverride {
			continue
		}
		if seenTenant[row.OperationCode] {
			duplicates = append(duplicates, row.OperationCode)
		}
		seenTenant[row.OperationCode] = true
		merged[row.OperationCode] = row
	}

	out := make([]ResolvedCost, 0, len(skeleton))
	for _, entry := range skeleton {
		resolved := ResolvedCost{
			OperationCode: entry.OperationCode,
			OperationName: entry.OperationName,
			Cost:          0,
			Unit:          DefaultUnit,
			Scope:         ScopeDefault,
		}
		if row, ok := merged[entry.OperationCode]; ok {
			resolved.Cost = row.Cost
			resolved.Scope = row.Scope
			if row.Unit != "" {
				resolved.Unit = row.Unit
			}
		}
		out = append(out, resolved)
	}
	return out, duplicates
}
