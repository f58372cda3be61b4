package server

import (
	"context"
	"testing"
)

func TestStaticTenantDirectory(t *testing.T) {
	d := newStaticTenantDirectory([]DirectoryEntry{
		{ID: "T-1", Name: "Acme", ExternalOrgRef: "Acme-Org"},
		{ID: "t-2", Name: "Globex"},
	})

	t.Run("by id", func(t *testing.T) {
		e, ok, err := d.ResolveTenant(context.Background(), "t-1")
		if err != nil || !ok {
			t.Fatalf("ok=%v err=%v", ok, err)
		}
		if e.Name != "Acme" {
			t.Fatalf("entry=%+v", e)
		}
	})

	t.Run("by alias case-insensitive", func(t *testing.T) {
		e, ok, err := d.ResolveTenant(context.Background(), "  ACME-ORG ")
		if err != nil || !ok {
			t.Fatalf("ok=%v err=%v", ok, err)
		}
		if e.ID != "T-1" {
			t.Fatalf("entry=%+v", e)
		}
	})

	t.Run("unknown", func(t *testing.T) {
		_, ok, err := d.ResolveTenant(context.Background(), "ghost")
		if err != nil || ok {
			t.Fatalf("ok=%v err=%v", ok, err)
		}
	})

	t.Run("empty ref", func(t *testing.T) {
		_, ok, err := d.ResolveTenant(context.Background(), "   ")
		if err != nil || ok {
			t.Fatalf("ok=%v err=%v", ok, err)
		}
	})
}
