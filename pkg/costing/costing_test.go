package costing

import (
	"testing"

	"github.com/veyralabs/suitecore/internal/catalog"
)

func skeleton(codes ...string) []catalog.SkeletonEntry {
	out := make([]catalog.SkeletonEntry, 0, len(codes))
	for _, c := range codes {
		out = append(out, catalog.SkeletonEntry{OperationCode: c, OperationName: "op " + c})
	}
	return out
}

func TestResolve_DefaultsWhenNoOverrides(t *testing.T) {
	got, dups := Resolve(skeleton("crm.leads.read", "crm.leads.export"), nil)
	if len(dups) != 0 {
		t.Fatalf("dups=%v", dups)
	}
	if len(got) != 2 {
		t.Fatalf("len=%d", len(got))
	}
	for _, rc := range got {
		if rc.Cost != 0 || rc.Scope != ScopeDefault || rc.Unit != DefaultUnit {
			t.Fatalf("got=%+v", rc)
		}
	}
}

func TestResolve_Dominance(t *testing.T) {
	sk := skeleton("crm.leads.read", "crm.leads.create", "crm.leads.export")
	rows := []CostConfig{
		{OperationCode: "crm.leads.read", Cost: 2, Scope: ScopeGlobalOverride},
		{OperationCode: "crm.leads.export", Cost: 10, Scope: ScopeGlobalOverride},
		{OperationCode: "crm.leads.export", Cost: 0, Scope: ScopeTenantOverride},
	}

	got, dups := Resolve(sk, rows)
	if len(dups) != 0 {
		t.Fatalf("dups=%v", dups)
	}

	byCode := make(map[string]ResolvedCost, len(got))
	for _, rc := range got {
		byCode[rc.OperationCode] = rc
	}

	if rc := byCode["crm.leads.read"]; rc.Cost != 2 || rc.Scope != ScopeGlobalOverride {
		t.Fatalf("read=%+v", rc)
	}
	if rc := byCode["crm.leads.create"]; rc.Cost != 0 || rc.Scope != ScopeDefault {
		t.Fatalf("create=%+v", rc)
	}
	// tenant override dominates the global row, even at cost zero
	if rc := byCode["crm.leads.export"]; rc.Cost != 0 || rc.Scope != ScopeTenantOverride {
		t.Fatalf("export=%+v", rc)
	}
}

func TestResolve_PreservesSkeletonOrder(t *testing.T) {
	sk := skeleton("b.x.one", "a.y.two", "c.z.three")
	rows := []CostConfig{
		{OperationCode: "c.z.three", Cost: 5, Scope: ScopeTenantOverride},
	}
	got, _ := Resolve(sk, rows)
	if len(got) != 3 {
		t.Fatalf("len=%d", len(got))
	}
	for i, entry := range sk {
		if got[i].OperationCode != entry.OperationCode {
			t.Fatalf("out[%d]=%q want %q", i, got[i].OperationCode, entry.OperationCode)
		}
	}
}

func TestResolve_Duplicates(t *testing.T) {
	sk := skeleton("crm.leads.read")

	t.Run("global first wins", func(t *testing.T) {
		rows := []CostConfig{
			{OperationCode: "crm.leads.read", Cost: 3, Scope: ScopeGlobalOverride},
			{OperationCode: "crm.leads.read", Cost: 7, Scope: ScopeGlobalOverride},
		}
		got, dups := Resolve(sk, rows)
		if got[0].Cost != 3 {
			t.Fatalf("cost=%d", got[0].Cost)
		}
		if len(dups) != 1 || dups[0] != "crm.leads.read" {
			t.Fatalf("dups=%v", dups)
		}
	})

	t.Run("tenant last wins", func(t *testing.T) {
		rows := []CostConfig{
			{OperationCode: "crm.leads.read", Cost: 3, Scope: ScopeTenantOverride},
			{OperationCode: "crm.leads.read", Cost: 7, Scope: ScopeTenantOverride},
		}
		got, dups := Resolve(sk, rows)
		if got[0].Cost != 7 {
			t.Fatalf("cost=%d", got[0].Cost)
		}
		if len(dups) != 1 {
			t.Fatalf("dups=%v", dups)
		}
	})
}

func TestResolve_RowsOutsideSkeletonIgnored(t *testing.T) {
	sk := skeleton("crm.leads.read")
	rows := []CostConfig{
		{OperationCode: "crm.gone.away", Cost: 99, Scope: ScopeTenantOverride},
	}
	got, dups := Resolve(sk, rows)
	if len(got) != 1 || got[0].OperationCode != "crm.leads.read" {
		t.Fatalf("got=%+v", got)
	}
	if len(dups) != 0 {
		t.Fatalf("dups=%v", dups)
	}
}

func TestResolve_UnitFallback(t *testing.T) {
	sk := skeleton("crm.leads.read")
	rows := []CostConfig{
		{OperationCode: "crm.leads.read", Cost: 4, Unit: "tokens", Scope: ScopeGlobalOverride},
	}
	got, _ := Resolve(sk, rows)
	if got[0].Unit != "tokens" {
		t.Fatalf("unit=%q", got[0].Unit)
	}

	rows[0].Unit = ""
	got, _ = Resolve(sk, rows)
	if got[0].Unit != DefaultUnit {
		t.Fatalf("unit=%q", got[0].Unit)
	}
}
