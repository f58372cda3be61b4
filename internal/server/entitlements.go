package server

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/cel-go/cel"
	"github.com/jackc/pgx/v5"
)

// EntitlementGrant is a tenant's grant of access to one application. An
// empty ConditionExpr means unconditional; otherwise the expression must
// evaluate to true against the grant context for access to hold.
type EntitlementGrant struct {
	TenantID      string
	AppCode       string
	Tier          string
	IsActive      bool
	ExpiresAt     *time.Time
	ConditionExpr string
}

type EntitlementStore interface {
	FindGrant(ctx context.Context, tenantID string, appCode string) (EntitlementGrant, bool, error)
}

type EntitlementState string

const (
	EntitlementAllowed EntitlementState = "allowed"
	EntitlementDenied  EntitlementState = "denied"
	EntitlementExpired EntitlementState = "expired"
)

type EntitlementDecision struct {
	State     EntitlementState
	Reason    string
	ExpiredAt time.Time
	Tier      string
}

// CheckEntitlement is the bootstrap precondition gate. It runs outside any
// snapshot transaction. Grant conditions that fail to parse or evaluate deny
// access (fail-closed) rather than erroring the call.
func CheckEntitlement(ctx context.Context, store EntitlementStore, tenantID string, appCode string, now time.Time) (EntitlementDecision, error) {
	grant, ok, err := store.FindGrant(ctx, tenantID, appCode)
	if err != nil {
		return EntitlementDecision{}, err
	}
	if !ok || !grant.IsActive {
		return EntitlementDecision{State: EntitlementDenied, Reason: "no active grant"}, nil
	}
	if grant.ExpiresAt != nil && grant.ExpiresAt.Before(now) {
		return EntitlementDecision{State: EntitlementExpired, ExpiredAt: grant.ExpiresAt.UTC()}, nil
	}
	if expr := strings.TrimSpace(grant.ConditionExpr); expr != "" {
		allowed, err := evalGrantCondition(expr, map[string]string{
			"tenant_id": tenantID,
			"app_code":  appCode,
			"tier":      grant.Tier,
		})
		if err != nil || !allowed {
			return EntitlementDecision{State: EntitlementDenied, Reason: "grant condition not met"}, nil
		}
	}
	return EntitlementDecision{State: EntitlementAllowed, Tier: grant.Tier}, nil
}

var newGrantConditionCELEnv = func() (*cel.Env, error) {
	return cel.NewEnv(cel.Variable("ctx", cel.MapType(cel.StringType, cel.StringType)))
}

var grantConditionProgramCache sync.Map

func evalGrantCondition(expr string, ctxMap map[string]string) (bool, error) {
	program, err := loadOrCompileGrantCondition(expr)
	if err != nil {
		return false, err
	}
	out, _, err := program.Eval(map[string]any{"ctx": ctxMap})
	if err != nil {
		return false, err
	}
	v, ok := out.Value().(bool)
	if !ok {
		return false, errors.New("entitlements: condition did not yield bool")
	}
	return v, nil
}

func loadOrCompileGrantCondition(expr string) (cel.Program, error) {
	if cached, ok := grantConditionProgramCache.Load(expr); ok {
		return cached.(cel.Program), nil
	}
	env, err := newGrantConditionCELEnv()
	if err != nil {
		return nil, err
	}
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	if ast.OutputType() != cel.BoolType {
		return nil, errors.New("entitlements: condition output type mismatch")
	}
	program, err := env.Program(ast)
	if err != nil {
		return nil, err
	}
	grantConditionProgramCache.Store(expr, program)
	return program, nil
}

type entitlementPGStore struct {
	q queryRower
}

func newEntitlementPGStore(q queryRower) EntitlementStore {
	return &entitlementPGStore{q: q}
}

func (s *entitlementPGStore) FindGrant(ctx context.Context, tenantID string, appCode string) (EntitlementGrant, bool, error) {
	var g EntitlementGrant
	var expiresAt *time.Time
	err := s.q.QueryRow(ctx, `
SELECT tenant_id::text, app_code, COALESCE(tier, ''), is_active, expires_at, COALESCE(condition_expr, '')
FROM core.app_entitlements
WHERE tenant_id = $1::uuid AND app_code = $2
LIMIT 1
`, tenantID, appCode).Scan(&g.TenantID, &g.AppCode, &g.Tier, &g.IsActive, &expiresAt, &g.ConditionExpr)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return EntitlementGrant{}, false, nil
		}
		return EntitlementGrant{}, false, err
	}
	g.ExpiresAt = expiresAt
	return g, true, nil
}

type entitlementMemoryStore struct {
	grants map[string]EntitlementGrant
	err    error
}

func newEntitlementMemoryStore() *entitlementMemoryStore {
	return &entitlementMemoryStore{grants: make(map[string]EntitlementGrant)}
}

func (s *entitlementMemoryStore) put(g EntitlementGrant) {
	s.grants[g.TenantID+"/"+g.AppCode] = g
}

func (s *entitlementMemoryStore) FindGrant(_ context.Context, tenantID string, appCode string) (EntitlementGrant, bool, error) {
	if s.err != nil {
		return EntitlementGrant{}, false, s.err
	}
	g, ok := s.grants[tenantID+"/"+appCode]
	return g, ok, nil
}
