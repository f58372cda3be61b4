package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/veyralabs/suitecore/internal/catalog"
	"github.com/veyralabs/suitecore/internal/routing"
)

// HandlerOptions lets tests and embedders swap in their own stores. Zero
// values fall back to the environment-driven defaults.
type HandlerOptions struct {
	Directory    TenantDirectory
	Entitlements EntitlementStore
	Snapshots    SnapshotSource
	Catalog      *catalog.Catalog
	Authorizer   authorizer
}

func NewHandler() (http.Handler, error) {
	return NewHandlerWithOptions(HandlerOptions{})
}

func NewHandlerWithOptions(opts HandlerOptions) (http.Handler, error) {
	cat := opts.Catalog
	if cat == nil {
		c, err := catalog.LoadFromEnv()
		if err != nil {
			return nil, err
		}
		cat = c
	}

	directory := opts.Directory
	entitlements := opts.Entitlements
	snapshots := opts.Snapshots
	if directory == nil || entitlements == nil || snapshots == nil {
		pool, err := pgxpool.New(context.Background(), dbDSNFromEnv())
		if err != nil {
			return nil, err
		}
		if directory == nil {
			directory, err = pgOrFileTenantDirectory(pool)
			if err != nil {
				return nil, err
			}
		}
		if entitlements == nil {
			entitlements = newEntitlementPGStore(pool)
		}
		if snapshots == nil {
			snapshots = newSnapshotPGSource(pool)
		}
	}

	svc := NewBootstrapService(directory, entitlements, snapshots, cat)

	allowlist, err := loadServerAllowlist()
	if err != nil {
		return nil, err
	}
	classifier, err := routing.NewClassifier(allowlist, "server")
	if err != nil {
		return nil, err
	}

	authorizer := opts.Authorizer
	if authorizer == nil {
		a, err := loadAuthorizer()
		if err != nil {
			return nil, err
		}
		authorizer = a
	}

	router := routing.NewRouter(classifier)

	router.Handle(routing.RouteClassOps, http.MethodGet, "/health", http.HandlerFunc(handleHealth))
	router.Handle(routing.RouteClassOps, http.MethodGet, "/healthz", http.HandlerFunc(handleHealth))

	router.Handle(routing.RouteClassInternalAPI, http.MethodGet, "/platform/api/bootstrap", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleBootstrapAPI(w, r, svc)
	}))
	router.Handle(routing.RouteClassInternalAPI, http.MethodGet, "/platform/api/cost-configs", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleCostConfigsAPI(w, r, svc)
	}))
	router.Handle(routing.RouteClassInternalAPI, http.MethodGet, "/platform/api/roles", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleRolesAPI(w, r, svc)
	}))
	router.Handle(routing.RouteClassInternalAPI, http.MethodGet, "/platform/api/catalog", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleCatalogAPI(w, r, svc)
	}))

	return withAuthz(classifier, authorizer, router), nil
}

func MustNewHandler() http.Handler {
	h, err := NewHandler()
	if err != nil {
		panic(err)
	}
	return h
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// pgOrFileTenantDirectory prefers the database directory; a tenants file is
// only consulted when TENANTS_PATH is set explicitly.
func pgOrFileTenantDirectory(pool *pgxpool.Pool) (TenantDirectory, error) {
	if os.Getenv("TENANTS_PATH") != "" {
		return loadTenantDirectory()
	}
	return newPGTenantDirectory(pool), nil
}

func loadServerAllowlist() (routing.Allowlist, error) {
	path := os.Getenv("ROUTING_ALLOWLIST_PATH")
	if path == "" {
		p, err := defaultAllowlistPath()
		if err != nil {
			return routing.Allowlist{}, err
		}
		path = p
	}
	return routing.LoadAllowlist(path)
}

func defaultAllowlistPath() (string, error) {
	path := "config/routing/allowlist.yaml"
	for range 8 {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
		path = filepath.Join("..", path)
	}
	return "", errors.New("server: routing allowlist not found")
}
