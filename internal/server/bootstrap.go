package server

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/veyralabs/suitecore/internal/catalog"
	"github.com/veyralabs/suitecore/pkg/costing"
	"github.com/veyralabs/suitecore/pkg/permissions"
	"github.com/veyralabs/suitecore/pkg/uuidv7"
)

type TenantRecord struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	ExternalOrgRef string `json:"externalOrgRef,omitempty"`
	IsActive       bool   `json:"isActive"`
}

type OrgUnit struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	ParentID string `json:"parentId,omitempty"`
	Level    int    `json:"level"`
	IsActive bool   `json:"isActive"`
}

type UserAccount struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	IsActive    bool   `json:"isActive"`
	IsAdmin     bool   `json:"isAdmin"`
}

// RoleRecord is a role definition as stored: the permission payload is still
// the raw nested document and may be malformed.
type RoleRecord struct {
	ID           string
	Name         string
	Priority     int
	IsSystemRole bool
	Permissions  []byte
}

// RoleView is a role scoped to one application: permissions flattened to
// dotted operation strings, retained only when non-empty or system role.
type RoleView struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Priority     int      `json:"priority"`
	IsSystemRole bool     `json:"isSystemRole"`
	Permissions  []string `json:"permissions"`
}

type MembershipAssignment struct {
	ID             string `json:"id"`
	UserID         string `json:"userId"`
	OrgUnitID      string `json:"orgUnitId"`
	MembershipKind string `json:"membershipKind"`
	IsPrimary      bool   `json:"isPrimary"`
}

type RoleAssignment struct {
	ID        string `json:"id"`
	UserID    string `json:"userId"`
	RoleID    string `json:"roleId"`
	OrgUnitID string `json:"orgUnitId,omitempty"`
	IsActive  bool   `json:"isActive"`
}

// EntityCredit is the derived balance for one credit-bearing entity.
// Available is always recomputed as allocated minus used, never stored.
type EntityCredit struct {
	EntityID  string `json:"entityId"`
	Allocated int64  `json:"allocated"`
	Used      int64  `json:"used"`
	Available int64  `json:"available"`
}

type CollectionWarning struct {
	Collection string `json:"collection"`
	Error      string `json:"error"`
}

type BootstrapData struct {
	Tenant              TenantRecord           `json:"tenant"`
	Organizations       []OrgUnit              `json:"organizations"`
	Users               []UserAccount          `json:"users"`
	Roles               []RoleView             `json:"roles"`
	EmployeeAssignments []MembershipAssignment `json:"employeeAssignments"`
	RoleAssignments     []RoleAssignment       `json:"roleAssignments"`
	CreditConfigs       []costing.ResolvedCost `json:"creditConfigs"`
	EntityCredits       []EntityCredit         `json:"entityCredits"`
}

type BootstrapResult struct {
	Success          bool                `json:"success"`
	SnapshotID       string              `json:"snapshotId"`
	AppCode          string              `json:"appCode"`
	TenantID         string              `json:"tenantId"`
	SnapshotAt       time.Time           `json:"snapshotAt"`
	SubscriptionTier string              `json:"subscriptionTier"`
	EnabledModules   []string            `json:"enabledModules"`
	Data             BootstrapData       `json:"data"`
	RecordCounts     map[string]int      `json:"recordCounts"`
	Warnings         []CollectionWarning `json:"warnings"`
}

const (
	collectionTenant              = "tenant"
	collectionOrganizations       = "organizations"
	collectionUsers               = "users"
	collectionRoles               = "roles"
	collectionEmployeeAssignments = "employeeAssignments"
	collectionRoleAssignments     = "roleAssignments"
	collectionCreditConfigs       = "creditConfigs"
	collectionEntityCredits       = "entityCredits"
)

// SnapshotReader exposes the eight collection fetchers. Every method of one
// reader observes the same store snapshot, so cross-collection reads are
// mutually consistent even though they are separate round-trips.
type SnapshotReader interface {
	Tenant(ctx context.Context) (TenantRecord, error)
	OrgUnits(ctx context.Context) ([]OrgUnit, error)
	Users(ctx context.Context) ([]UserAccount, error)
	Roles(ctx context.Context) ([]RoleRecord, error)
	Memberships(ctx context.Context) ([]MembershipAssignment, error)
	RoleAssignments(ctx context.Context) ([]RoleAssignment, error)
	CostConfigs(ctx context.Context, appCode string) ([]costing.CostConfig, error)
	EntityCredits(ctx context.Context, entityIDs []string) ([]EntityCredit, error)
}

// SnapshotSource opens one read-consistent view per call. fn returning an
// error discards the snapshot; nothing is ever written through it.
type SnapshotSource interface {
	WithSnapshot(ctx context.Context, tenantID string, fn func(SnapshotReader) error) error
}

var ErrTenantNotFound = errors.New("bootstrap: tenant not found")
var ErrUnknownApplication = errors.New("bootstrap: unknown or inactive application")

type EntitlementDeniedError struct {
	Reason string
}

func (e *EntitlementDeniedError) Error() string {
	return "bootstrap: entitlement denied: " + e.Reason
}

type EntitlementExpiredError struct {
	At time.Time
}

func (e *EntitlementExpiredError) Error() string {
	return "bootstrap: entitlement expired at " + e.At.UTC().Format(time.RFC3339)
}

// CriticalFetchError names the fetcher whose failure discarded the snapshot.
type CriticalFetchError struct {
	Collection string
	Err        error
}

func (e *CriticalFetchError) Error() string {
	return "bootstrap: critical fetch " + e.Collection + " failed: " + e.Err.Error()
}

func (e *CriticalFetchError) Unwrap() error { return e.Err }

type BootstrapService struct {
	directory    TenantDirectory
	entitlements EntitlementStore
	source       SnapshotSource
	catalog      *catalog.Catalog
	skeletons    *catalog.SkeletonCache
	now          func() time.Time
}

func NewBootstrapService(directory TenantDirectory, entitlements EntitlementStore, source SnapshotSource, cat *catalog.Catalog) *BootstrapService {
	return &BootstrapService{
		directory:    directory,
		entitlements: entitlements,
		source:       source,
		catalog:      cat,
		skeletons:    catalog.NewSkeletonCache(cat),
		now:          time.Now,
	}
}

// AssembleBootstrap is the primary operation: one consistent read of the
// identity, authorization, and credit state a dependent application needs on
// first contact with a tenant.
//
// Preconditions (no transaction opened yet): the application code must name
// an active catalog entry, the tenant reference (canonical ID or external
// org alias) must resolve, and the tenant must hold a live entitlement for
// the application. The entitlement check deliberately runs outside the
// snapshot; grants change rarely and a brief staleness window is fine.
func (s *BootstrapService) AssembleBootstrap(ctx context.Context, tenantRef string, appCode string) (BootstrapResult, error) {
	app, ok := s.catalog.ActiveApplication(appCode)
	if !ok {
		return BootstrapResult{}, ErrUnknownApplication
	}

	entry, ok, err := s.directory.ResolveTenant(ctx, tenantRef)
	if err != nil {
		return BootstrapResult{}, err
	}
	if !ok {
		return BootstrapResult{}, ErrTenantNotFound
	}
	tenantID := entry.ID

	decision, err := CheckEntitlement(ctx, s.entitlements, tenantID, app.Code, s.now())
	if err != nil {
		return BootstrapResult{}, err
	}
	switch decision.State {
	case EntitlementDenied:
		return BootstrapResult{}, &EntitlementDeniedError{Reason: decision.Reason}
	case EntitlementExpired:
		return BootstrapResult{}, &EntitlementExpiredError{At: decision.ExpiredAt}
	}

	skeleton := s.skeletons.Skeleton(app.Code)

	result := BootstrapResult{
		Success:          true,
		AppCode:          app.Code,
		TenantID:         tenantID,
		SubscriptionTier: decision.Tier,
		EnabledModules:   s.catalog.ModuleCodes(app.Code),
		Warnings:         []CollectionWarning{},
	}

	err = s.source.WithSnapshot(ctx, tenantID, func(r SnapshotReader) error {
		tenant, err := r.Tenant(ctx)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrTenantNotFound
			}
			return &CriticalFetchError{Collection: collectionTenant, Err: err}
		}
		result.Data.Tenant = tenant

		orgs, err := fetchCritical(collectionOrganizations, func() ([]OrgUnit, error) {
			return r.OrgUnits(ctx)
		})
		if err != nil {
			return err
		}
		result.Data.Organizations = orgs

		users, err := fetchCritical(collectionUsers, func() ([]UserAccount, error) {
			return r.Users(ctx)
		})
		if err != nil {
			return err
		}
		result.Data.Users = users

		roleRecords, err := fetchCritical(collectionRoles, func() ([]RoleRecord, error) {
			return r.Roles(ctx)
		})
		if err != nil {
			return err
		}
		result.Data.Roles = roleViewsFor(app.Code, roleRecords)

		result.Data.EmployeeAssignments = fetchOptional(collectionEmployeeAssignments, &result.Warnings, func() ([]MembershipAssignment, error) {
			return r.Memberships(ctx)
		})
		result.Data.RoleAssignments = fetchOptional(collectionRoleAssignments, &result.Warnings, func() ([]RoleAssignment, error) {
			return r.RoleAssignments(ctx)
		})
		result.Data.CreditConfigs = fetchOptional(collectionCreditConfigs, &result.Warnings, func() ([]costing.ResolvedCost, error) {
			rows, err := r.CostConfigs(ctx, app.Code)
			if err != nil {
				return nil, err
			}
			resolved, _ := costing.Resolve(skeleton, rows)
			return resolved, nil
		})
		result.Data.EntityCredits = fetchOptional(collectionEntityCredits, &result.Warnings, func() ([]EntityCredit, error) {
			entityIDs := make([]string, 0, len(orgs))
			for _, org := range orgs {
				entityIDs = append(entityIDs, org.ID)
			}
			return r.EntityCredits(ctx, entityIDs)
		})
		return nil
	})
	if err != nil {
		return BootstrapResult{}, err
	}

	result.SnapshotAt = s.now().UTC()
	if id, err := uuidv7.NewString(); err == nil {
		result.SnapshotID = id
	}
	result.RecordCounts = map[string]int{
		collectionTenant:              1,
		collectionOrganizations:       len(result.Data.Organizations),
		collectionUsers:               len(result.Data.Users),
		collectionRoles:               len(result.Data.Roles),
		collectionEmployeeAssignments: len(result.Data.EmployeeAssignments),
		collectionRoleAssignments:     len(result.Data.RoleAssignments),
		collectionCreditConfigs:       len(result.Data.CreditConfigs),
		collectionEntityCredits:       len(result.Data.EntityCredits),
	}
	return result, nil
}

// ResolveCostsFor serves the per-collection inspection view with the exact
// algorithm the aggregated bootstrap uses. The second return value lists
// duplicate override rows (data-quality, never fatal).
func (s *BootstrapService) ResolveCostsFor(ctx context.Context, tenantRef string, appCode string) ([]costing.ResolvedCost, []string, error) {
	app, ok := s.catalog.ActiveApplication(appCode)
	if !ok {
		return nil, nil, ErrUnknownApplication
	}
	entry, ok, err := s.directory.ResolveTenant(ctx, tenantRef)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, ErrTenantNotFound
	}

	skeleton := s.skeletons.Skeleton(app.Code)
	var resolved []costing.ResolvedCost
	var duplicates []string
	err = s.source.WithSnapshot(ctx, entry.ID, func(r SnapshotReader) error {
		rows, err := r.CostConfigs(ctx, app.Code)
		if err != nil {
			return err
		}
		resolved, duplicates = costing.Resolve(skeleton, rows)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return resolved, duplicates, nil
}

// RolesFor serves the application-scoped role inspection view.
func (s *BootstrapService) RolesFor(ctx context.Context, tenantRef string, appCode string) ([]RoleView, error) {
	app, ok := s.catalog.ActiveApplication(appCode)
	if !ok {
		return nil, ErrUnknownApplication
	}
	entry, ok, err := s.directory.ResolveTenant(ctx, tenantRef)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrTenantNotFound
	}

	var views []RoleView
	err = s.source.WithSnapshot(ctx, entry.ID, func(r SnapshotReader) error {
		records, err := r.Roles(ctx)
		if err != nil {
			return err
		}
		views = roleViewsFor(app.Code, records)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return views, nil
}

// Skeleton lists the catalog skeleton for an active application.
func (s *BootstrapService) Skeleton(appCode string) ([]catalog.SkeletonEntry, error) {
	app, ok := s.catalog.ActiveApplication(appCode)
	if !ok {
		return nil, ErrUnknownApplication
	}
	return s.skeletons.Skeleton(app.Code), nil
}

// roleViewsFor flattens each role's permission payload for appCode and keeps
// the role only if it grants at least one operation there, or is a system
// role (system roles are exempt from the non-empty filter).
func roleViewsFor(appCode string, records []RoleRecord) []RoleView {
	views := []RoleView{}
	for _, record := range records {
		flat := permissions.FlattenRaw(record.Permissions, appCode)
		if len(flat) == 0 && !record.IsSystemRole {
			continue
		}
		views = append(views, RoleView{
			ID:           record.ID,
			Name:         record.Name,
			Priority:     record.Priority,
			IsSystemRole: record.IsSystemRole,
			Permissions:  flat,
		})
	}
	return views
}

func fetchCritical[T any](collection string, fn func() ([]T, error)) ([]T, error) {
	out, err := fn()
	if err != nil {
		return nil, &CriticalFetchError{Collection: collection, Err: err}
	}
	if out == nil {
		out = []T{}
	}
	return out, nil
}

// fetchOptional converts a non-critical fetcher failure into an empty
// collection plus a warning; the bootstrap still succeeds overall.
func fetchOptional[T any](collection string, warnings *[]CollectionWarning, fn func() ([]T, error)) []T {
	out, err := fn()
	if err != nil {
		*warnings = append(*warnings, CollectionWarning{Collection: collection, Error: err.Error()})
		return []T{}
	}
	if out == nil {
		out = []T{}
	}
	return out
}
