package server

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestCheckEntitlement(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	future := now.Add(24 * time.Hour)
	past := now.Add(-24 * time.Hour)

	t.Run("allowed", func(t *testing.T) {
		store := newEntitlementMemoryStore()
		store.put(EntitlementGrant{TenantID: "t1", AppCode: "crm", Tier: "pro", IsActive: true})

		d, err := CheckEntitlement(context.Background(), store, "t1", "crm", now)
		if err != nil {
			t.Fatalf("err=%v", err)
		}
		if d.State != EntitlementAllowed || d.Tier != "pro" {
			t.Fatalf("decision=%+v", d)
		}
	})

	t.Run("allowed with future expiry", func(t *testing.T) {
		store := newEntitlementMemoryStore()
		store.put(EntitlementGrant{TenantID: "t1", AppCode: "crm", IsActive: true, ExpiresAt: &future})

		d, err := CheckEntitlement(context.Background(), store, "t1", "crm", now)
		if err != nil {
			t.Fatalf("err=%v", err)
		}
		if d.State != EntitlementAllowed {
			t.Fatalf("decision=%+v", d)
		}
	})

	t.Run("no grant", func(t *testing.T) {
		store := newEntitlementMemoryStore()

		d, err := CheckEntitlement(context.Background(), store, "t1", "crm", now)
		if err != nil {
			t.Fatalf("err=%v", err)
		}
		if d.State != EntitlementDenied || d.Reason != "no active grant" {
			t.Fatalf("decision=%+v", d)
		}
	})

	t.Run("inactive grant", func(t *testing.T) {
		store := newEntitlementMemoryStore()
		store.put(EntitlementGrant{TenantID: "t1", AppCode: "crm", IsActive: false})

		d, err := CheckEntitlement(context.Background(), store, "t1", "crm", now)
		if err != nil {
			t.Fatalf("err=%v", err)
		}
		if d.State != EntitlementDenied {
			t.Fatalf("decision=%+v", d)
		}
	})

	t.Run("expired grant", func(t *testing.T) {
		store := newEntitlementMemoryStore()
		store.put(EntitlementGrant{TenantID: "t1", AppCode: "crm", IsActive: true, ExpiresAt: &past})

		d, err := CheckEntitlement(context.Background(), store, "t1", "crm", now)
		if err != nil {
			t.Fatalf("err=%v", err)
		}
		if d.State != EntitlementExpired || !d.ExpiredAt.Equal(past) {
			t.Fatalf("decision=%+v", d)
		}
	})

	t.Run("store error propagates", func(t *testing.T) {
		store := newEntitlementMemoryStore()
		store.err = errors.New("boom")

		if _, err := CheckEntitlement(context.Background(), store, "t1", "crm", now); err == nil {
			t.Fatal("expected error")
		}
	})
}

func TestCheckEntitlement_Conditions(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	grantWith := func(expr string) *entitlementMemoryStore {
		store := newEntitlementMemoryStore()
		store.put(EntitlementGrant{
			TenantID: "t1", AppCode: "crm", Tier: "pro", IsActive: true, ConditionExpr: expr,
		})
		return store
	}

	t.Run("condition true", func(t *testing.T) {
		d, err := CheckEntitlement(context.Background(), grantWith(`ctx["tier"] == "pro"`), "t1", "crm", now)
		if err != nil {
			t.Fatalf("err=%v", err)
		}
		if d.State != EntitlementAllowed {
			t.Fatalf("decision=%+v", d)
		}
	})

	t.Run("condition false denies", func(t *testing.T) {
		d, err := CheckEntitlement(context.Background(), grantWith(`ctx["tier"] == "enterprise"`), "t1", "crm", now)
		if err != nil {
			t.Fatalf("err=%v", err)
		}
		if d.State != EntitlementDenied || d.Reason != "grant condition not met" {
			t.Fatalf("decision=%+v", d)
		}
	})

	t.Run("malformed condition fails closed", func(t *testing.T) {
		d, err := CheckEntitlement(context.Background(), grantWith(`ctx[`), "t1", "crm", now)
		if err != nil {
			t.Fatalf("err=%v", err)
		}
		if d.State != EntitlementDenied {
			t.Fatalf("decision=%+v", d)
		}
	})

	t.Run("non-bool condition fails closed", func(t *testing.T) {
		d, err := CheckEntitlement(context.Background(), grantWith(`ctx["tier"]`), "t1", "crm", now)
		if err != nil {
			t.Fatalf("err=%v", err)
		}
		if d.State != EntitlementDenied {
			t.Fatalf("decision=%+v", d)
		}
	})

	t.Run("condition sees tenant and app", func(t *testing.T) {
		d, err := CheckEntitlement(context.Background(),
			grantWith(`ctx["tenant_id"] == "t1" && ctx["app_code"] == "crm"`), "t1", "crm", now)
		if err != nil {
			t.Fatalf("err=%v", err)
		}
		if d.State != EntitlementAllowed {
			t.Fatalf("decision=%+v", d)
		}
	})
}
