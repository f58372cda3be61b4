package catalog

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleCatalogYAML = `
version: 1
applications:
  - code: CRM
    name: Customer Relations
    active: true
    modules:
      - code: leads
        name: Leads
        operations:
          - code: read
            name: Read leads
          - code: export
            name: Export leads
      - code: accounts
        name: Accounts
        operations:
          - code: read
            name: Read accounts
  - code: billing
    name: Billing
    active: false
    modules:
      - code: invoices
        name: Invoices
        operations:
          - code: read
            name: Read invoices
`

func TestParse(t *testing.T) {
	c, err := Parse([]byte(sampleCatalogYAML))
	if err != nil {
		t.Fatalf("err=%v", err)
	}

	app, ok := c.Application("crm")
	if !ok {
		t.Fatal("expected crm")
	}
	if app.Code != "crm" {
		t.Fatalf("code=%q", app.Code)
	}

	// app codes are case-insensitive on lookup
	if _, ok := c.Application("  CRM "); !ok {
		t.Fatal("expected trimmed/case-insensitive lookup")
	}

	if _, ok := c.ActiveApplication("billing"); ok {
		t.Fatal("inactive application must not resolve")
	}
	if _, ok := c.ActiveApplication("crm"); !ok {
		t.Fatal("expected active crm")
	}

	mods := c.ModuleCodes("crm")
	if len(mods) != 2 || mods[0] != "leads" || mods[1] != "accounts" {
		t.Fatalf("modules=%v", mods)
	}
	if c.ModuleCodes("nope") != nil {
		t.Fatal("unknown app must yield nil modules")
	}
}

func TestParse_Errors(t *testing.T) {
	cases := map[string]string{
		"bad version":    "version: 2\napplications:\n  - code: crm\n",
		"empty":          "version: 1\napplications: []\n",
		"missing code":   "version: 1\napplications:\n  - name: x\n",
		"duplicate code": "version: 1\napplications:\n  - code: crm\n  - code: CRM\n",
		"not yaml":       "{{{{",
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse([]byte(raw)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestLoadFromEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")
	if err := os.WriteFile(path, []byte(sampleCatalogYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CATALOG_PATH", path)

	c, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if _, ok := c.Application("crm"); !ok {
		t.Fatal("expected crm")
	}
}
