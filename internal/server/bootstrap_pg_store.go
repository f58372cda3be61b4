package server

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/veyralabs/suitecore/pkg/costing"
)

type pgTxBeginner interface {
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

type snapshotPGSource struct {
	pool pgTxBeginner
}

func newSnapshotPGSource(pool pgTxBeginner) SnapshotSource {
	return &snapshotPGSource{pool: pool}
}

// WithSnapshot runs fn against one repeatable-read, read-only transaction.
// Every fetcher invoked through the reader sees the snapshot taken at the
// first statement, so the eight collections are mutually consistent without
// any locking. fn returning an error rolls the transaction back.
func (s *snapshotPGSource) WithSnapshot(ctx context.Context, tenantID string, fn func(SnapshotReader) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.RepeatableRead,
		AccessMode: pgx.ReadOnly,
	})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	if _, err := tx.Exec(ctx, `SELECT set_config('app.current_tenant', $1, true);`, tenantID); err != nil {
		return err
	}

	if err := fn(&pgSnapshotReader{tx: tx, tenantID: tenantID}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

type pgSnapshotReader struct {
	tx       pgx.Tx
	tenantID string
}

func (r *pgSnapshotReader) Tenant(ctx context.Context) (TenantRecord, error) {
	var t TenantRecord
	err := r.tx.QueryRow(ctx, `
SELECT tenant_id::text, name, COALESCE(external_org_ref, ''), is_active
FROM core.tenants
WHERE tenant_id = $1::uuid
`, r.tenantID).Scan(&t.ID, &t.Name, &t.ExternalOrgRef, &t.IsActive)
	if err != nil {
		return TenantRecord{}, err
	}
	return t, nil
}

func (r *pgSnapshotReader) OrgUnits(ctx context.Context) ([]OrgUnit, error) {
	rows, err := r.tx.Query(ctx, `
SELECT org_unit_id::text, name, COALESCE(parent_id::text, ''), level, is_active
FROM org.org_units
WHERE tenant_id = $1::uuid
ORDER BY level ASC, org_unit_id ASC
`, r.tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OrgUnit
	for rows.Next() {
		var o OrgUnit
		if err := rows.Scan(&o.ID, &o.Name, &o.ParentID, &o.Level, &o.IsActive); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (r *pgSnapshotReader) Users(ctx context.Context) ([]UserAccount, error) {
	rows, err := r.tx.Query(ctx, `
SELECT user_id::text, email, display_name, is_active, is_admin
FROM iam.user_accounts
WHERE tenant_id = $1::uuid
ORDER BY user_id ASC
`, r.tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []UserAccount
	for rows.Next() {
		var u UserAccount
		if err := rows.Scan(&u.ID, &u.Email, &u.DisplayName, &u.IsActive, &u.IsAdmin); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (r *pgSnapshotReader) Roles(ctx context.Context) ([]RoleRecord, error) {
	rows, err := r.tx.Query(ctx, `
SELECT role_id::text, name, priority, is_system_role, COALESCE(permissions, '{}'::jsonb)
FROM iam.role_definitions
WHERE tenant_id = $1::uuid
ORDER BY priority DESC, role_id ASC
`, r.tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RoleRecord
	for rows.Next() {
		var role RoleRecord
		if err := rows.Scan(&role.ID, &role.Name, &role.Priority, &role.IsSystemRole, &role.Permissions); err != nil {
			return nil, err
		}
		out = append(out, role)
	}
	return out, rows.Err()
}

func (r *pgSnapshotReader) Memberships(ctx context.Context) ([]MembershipAssignment, error) {
	rows, err := r.tx.Query(ctx, `
SELECT membership_id::text, user_id::text, org_unit_id::text, membership_kind, is_primary
FROM org.membership_assignments
WHERE tenant_id = $1::uuid
ORDER BY membership_id ASC
`, r.tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []MembershipAssignment
	for rows.Next() {
		var m MembershipAssignment
		if err := rows.Scan(&m.ID, &m.UserID, &m.OrgUnitID, &m.MembershipKind, &m.IsPrimary); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *pgSnapshotReader) RoleAssignments(ctx context.Context) ([]RoleAssignment, error) {
	rows, err := r.tx.Query(ctx, `
SELECT assignment_id::text, user_id::text, role_id::text, COALESCE(org_unit_id::text, ''), is_active
FROM iam.role_assignments
WHERE tenant_id = $1::uuid
ORDER BY assignment_id ASC
`, r.tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RoleAssignment
	for rows.Next() {
		var a RoleAssignment
		if err := rows.Scan(&a.ID, &a.UserID, &a.RoleID, &a.OrgUnitID, &a.IsActive); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *pgSnapshotReader) CostConfigs(ctx context.Context, appCode string) ([]costing.CostConfig, error) {
	rows, err := r.tx.Query(ctx, `
SELECT operation_code, cost::bigint, COALESCE(unit, ''), scope
FROM billing.cost_configs
WHERE (scope = 'global' OR (scope = 'tenant' AND tenant_id = $1::uuid))
  AND operation_code LIKE $2::text
ORDER BY config_id ASC
`, r.tenantID, appCode+".%")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []costing.CostConfig
	for rows.Next() {
		var cc costing.CostConfig
		var scope string
		if err := rows.Scan(&cc.OperationCode, &cc.Cost, &cc.Unit, &scope); err != nil {
			return nil, err
		}
		switch scope {
		case "global":
			cc.Scope = costing.ScopeGlobalOverride
		case "tenant":
			cc.Scope = costing.ScopeTenantOverride
		default:
			// Unknown scope rows are upstream noise; skip them.
			continue
		}
		out = append(out, cc)
	}
	return out, rows.Err()
}

// EntityCredits aggregates ledger and usage sums for all entities in two
// grouped set-membership queries, never one round-trip per entity. Output
// carries one row per requested entity in input order; entities without
// ledger activity report zero balances.
func (r *pgSnapshotReader) EntityCredits(ctx context.Context, entityIDs []string) ([]EntityCredit, error) {
	if len(entityIDs) == 0 {
		return []EntityCredit{}, nil
	}

	allocated, err := r.sumByEntity(ctx, `
SELECT entity_id::text, COALESCE(SUM(amount), 0)::bigint
FROM billing.credit_ledger
WHERE tenant_id = $1::uuid AND entity_id = ANY($2::uuid[])
GROUP BY entity_id
`, entityIDs)
	if err != nil {
		return nil, err
	}

	used, err := r.sumByEntity(ctx, `
SELECT entity_id::text, COALESCE(SUM(amount), 0)::bigint
FROM billing.credit_usage
WHERE tenant_id = $1::uuid AND entity_id = ANY($2::uuid[]) AND status = 'succeeded'
GROUP BY entity_id
`, entityIDs)
	if err != nil {
		return nil, err
	}

	out := make([]EntityCredit, 0, len(entityIDs))
	for _, id := range entityIDs {
		ec := EntityCredit{
			EntityID:  id,
			Allocated: allocated[id],
			Used:      used[id],
		}
		ec.Available = ec.Allocated - ec.Used
		out = append(out, ec)
	}
	return out, nil
}

func (r *pgSnapshotReader) sumByEntity(ctx context.Context, sql string, entityIDs []string) (map[string]int64, error) {
	rows, err := r.tx.Query(ctx, sql, r.tenantID, entityIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sums := make(map[string]int64, len(entityIDs))
	for rows.Next() {
		var id string
		var sum int64
		if err := rows.Scan(&id, &sum); err != nil {
			return nil, err
		}
		sums[id] = sum
	}
	return sums, rows.Err()
}
