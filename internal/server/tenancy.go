package server

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
)

// DirectoryEntry is what the tenant directory knows about a tenant: enough
// to turn a caller-supplied reference into a canonical ID.
type DirectoryEntry struct {
	ID             string
	Name           string
	ExternalOrgRef string
}

// TenantDirectory resolves a tenant reference — canonical ID or external
// organization alias — to a directory entry. Only active tenants resolve.
type TenantDirectory interface {
	ResolveTenant(ctx context.Context, ref string) (DirectoryEntry, bool, error)
}

type staticTenantDirectory struct {
	byID    map[string]DirectoryEntry
	byAlias map[string]DirectoryEntry
}

func newStaticTenantDirectory(entries []DirectoryEntry) TenantDirectory {
	d := &staticTenantDirectory{
		byID:    make(map[string]DirectoryEntry, len(entries)),
		byAlias: make(map[string]DirectoryEntry, len(entries)),
	}
	for _, e := range entries {
		d.byID[strings.ToLower(strings.TrimSpace(e.ID))] = e
		if alias := strings.ToLower(strings.TrimSpace(e.ExternalOrgRef)); alias != "" {
			d.byAlias[alias] = e
		}
	}
	return d
}

func (d *staticTenantDirectory) ResolveTenant(_ context.Context, ref string) (DirectoryEntry, bool, error) {
	ref = strings.ToLower(strings.TrimSpace(ref))
	if ref == "" {
		return DirectoryEntry{}, false, nil
	}
	if e, ok := d.byID[ref]; ok {
		return e, true, nil
	}
	if e, ok := d.byAlias[ref]; ok {
		return e, true, nil
	}
	return DirectoryEntry{}, false, nil
}

type pgTenantDirectory struct {
	q queryRower
}

type queryRower interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func newPGTenantDirectory(q queryRower) TenantDirectory {
	return &pgTenantDirectory{q: q}
}

func (d *pgTenantDirectory) ResolveTenant(ctx context.Context, ref string) (DirectoryEntry, bool, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return DirectoryEntry{}, false, nil
	}

	var e DirectoryEntry
	err := d.q.QueryRow(ctx, `
SELECT tenant_id::text, name, COALESCE(external_org_ref, '')
FROM core.tenants
WHERE (tenant_id::text = $1 OR external_org_ref = $1)
  AND is_active = true
LIMIT 1
`, ref).Scan(&e.ID, &e.Name, &e.ExternalOrgRef)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return DirectoryEntry{}, false, nil
		}
		return DirectoryEntry{}, false, err
	}
	return e, true, nil
}
