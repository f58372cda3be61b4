package server

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/veyralabs/suitecore/pkg/costing"
)

// memorySnapshotSource is the in-memory store: indexed maps keyed by tenant
// ID, plus per-collection fault injection. It backs development mode and the
// deterministic tests of the orchestrator; the "snapshot" is trivially
// consistent because nothing mutates during a read.
type memorySnapshotSource struct {
	tenants         map[string]TenantRecord
	orgUnits        map[string][]OrgUnit
	users           map[string][]UserAccount
	roles           map[string][]RoleRecord
	memberships     map[string][]MembershipAssignment
	roleAssignments map[string][]RoleAssignment

	// cost override rows; global rows live under the empty tenant key
	costConfigs map[string][]costing.CostConfig

	ledger map[string]map[string]int64
	usage  map[string]map[string]int64

	// collection name -> forced fetch error
	failures map[string]error
	beginErr error
}

func newMemorySnapshotSource() *memorySnapshotSource {
	return &memorySnapshotSource{
		tenants:         make(map[string]TenantRecord),
		orgUnits:        make(map[string][]OrgUnit),
		users:           make(map[string][]UserAccount),
		roles:           make(map[string][]RoleRecord),
		memberships:     make(map[string][]MembershipAssignment),
		roleAssignments: make(map[string][]RoleAssignment),
		costConfigs:     make(map[string][]costing.CostConfig),
		ledger:          make(map[string]map[string]int64),
		usage:           make(map[string]map[string]int64),
		failures:        make(map[string]error),
	}
}

func (s *memorySnapshotSource) WithSnapshot(_ context.Context, tenantID string, fn func(SnapshotReader) error) error {
	if s.beginErr != nil {
		return s.beginErr
	}
	return fn(&memorySnapshotReader{src: s, tenantID: tenantID})
}

func (s *memorySnapshotSource) addLedger(tenantID, entityID string, amount int64) {
	if s.ledger[tenantID] == nil {
		s.ledger[tenantID] = make(map[string]int64)
	}
	s.ledger[tenantID][entityID] += amount
}

func (s *memorySnapshotSource) addUsage(tenantID, entityID string, amount int64) {
	if s.usage[tenantID] == nil {
		s.usage[tenantID] = make(map[string]int64)
	}
	s.usage[tenantID][entityID] += amount
}

type memorySnapshotReader struct {
	src      *memorySnapshotSource
	tenantID string
}

func (r *memorySnapshotReader) Tenant(_ context.Context) (TenantRecord, error) {
	if err := r.src.failures[collectionTenant]; err != nil {
		return TenantRecord{}, err
	}
	t, ok := r.src.tenants[r.tenantID]
	if !ok {
		return TenantRecord{}, pgx.ErrNoRows
	}
	return t, nil
}

func (r *memorySnapshotReader) OrgUnits(_ context.Context) ([]OrgUnit, error) {
	if err := r.src.failures[collectionOrganizations]; err != nil {
		return nil, err
	}
	return append([]OrgUnit(nil), r.src.orgUnits[r.tenantID]...), nil
}

func (r *memorySnapshotReader) Users(_ context.Context) ([]UserAccount, error) {
	if err := r.src.failures[collectionUsers]; err != nil {
		return nil, err
	}
	return append([]UserAccount(nil), r.src.users[r.tenantID]...), nil
}

func (r *memorySnapshotReader) Roles(_ context.Context) ([]RoleRecord, error) {
	if err := r.src.failures[collectionRoles]; err != nil {
		return nil, err
	}
	return append([]RoleRecord(nil), r.src.roles[r.tenantID]...), nil
}

func (r *memorySnapshotReader) Memberships(_ context.Context) ([]MembershipAssignment, error) {
	if err := r.src.failures[collectionEmployeeAssignments]; err != nil {
		return nil, err
	}
	return append([]MembershipAssignment(nil), r.src.memberships[r.tenantID]...), nil
}

func (r *memorySnapshotReader) RoleAssignments(_ context.Context) ([]RoleAssignment, error) {
	if err := r.src.failures[collectionRoleAssignments]; err != nil {
		return nil, err
	}
	return append([]RoleAssignment(nil), r.src.roleAssignments[r.tenantID]...), nil
}

func (r *memorySnapshotReader) CostConfigs(_ context.Context, appCode string) ([]costing.CostConfig, error) {
	if err := r.src.failures[collectionCreditConfigs]; err != nil {
		return nil, err
	}
	prefix := appCode + "."
	var out []costing.CostConfig
	for _, row := range r.src.costConfigs[""] {
		if strings.HasPrefix(row.OperationCode, prefix) {
			out = append(out, row)
		}
	}
	for _, row := range r.src.costConfigs[r.tenantID] {
		if strings.HasPrefix(row.OperationCode, prefix) {
			out = append(out, row)
		}
	}
	return out, nil
}

func (r *memorySnapshotReader) EntityCredits(_ context.Context, entityIDs []string) ([]EntityCredit, error) {
	if err := r.src.failures[collectionEntityCredits]; err != nil {
		return nil, err
	}
	out := make([]EntityCredit, 0, len(entityIDs))
	for _, id := range entityIDs {
		ec := EntityCredit{
			EntityID:  id,
			Allocated: r.src.ledger[r.tenantID][id],
			Used:      r.src.usage[r.tenantID][id],
		}
		ec.Available = ec.Allocated - ec.Used
		out = append(out, ec)
	}
	return out, nil
}
