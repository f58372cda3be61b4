package routing

import "testing"

const sampleAllowlistYAML = `
version: 1
entrypoints:
  server:
    routes:
      - path: /health
        route_class: ops
      - path: /platform/api/bootstrap
        route_class: internal_api
      - path: /platform/api/tenants/{id}
        route_class: internal_api
`

func TestParseAllowlistYAML(t *testing.T) {
	a, err := ParseAllowlistYAML([]byte(sampleAllowlistYAML))
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if len(a.Entrypoints["server"].Routes) != 3 {
		t.Fatalf("routes=%+v", a.Entrypoints["server"].Routes)
	}

	if _, err := ParseAllowlistYAML([]byte("version: 2\nentrypoints: {}\n")); err == nil {
		t.Fatal("expected version error")
	}
	if _, err := ParseAllowlistYAML([]byte("version: 1\n")); err == nil {
		t.Fatal("expected missing entrypoints error")
	}
}

func TestNewClassifier(t *testing.T) {
	a, err := ParseAllowlistYAML([]byte(sampleAllowlistYAML))
	if err != nil {
		t.Fatalf("err=%v", err)
	}

	if _, err := NewClassifier(a, "missing"); err == nil {
		t.Fatal("expected missing entrypoint error")
	}

	c, err := NewClassifier(a, "server")
	if err != nil {
		t.Fatalf("err=%v", err)
	}

	cases := []struct {
		path string
		want RouteClass
	}{
		{"/health", RouteClassOps},
		{"/healthz", RouteClassOps},
		{"/platform/api/bootstrap", RouteClassInternalAPI},
		{"/platform/api/tenants/t-123", RouteClassInternalAPI},
		{"/anything/else", RouteClassInternalAPI},
	}
	for _, tc := range cases {
		if got := c.Classify(tc.path); got != tc.want {
			t.Fatalf("Classify(%q)=%q want %q", tc.path, got, tc.want)
		}
	}
}
