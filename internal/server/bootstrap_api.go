package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/veyralabs/suitecore/internal/routing"
	"github.com/veyralabs/suitecore/pkg/costing"
	"github.com/veyralabs/suitecore/pkg/httperr"
)

func writeAPIError(w http.ResponseWriter, r *http.Request, status int, code string, msg string) {
	routing.WriteError(w, r, routing.RouteClassInternalAPI, status, code, msg)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(v)
}

func tenantAndAppParams(r *http.Request) (tenantRef string, appCode string, err error) {
	tenantRef = strings.TrimSpace(r.URL.Query().Get("tenant"))
	appCode = strings.TrimSpace(r.URL.Query().Get("app"))
	if tenantRef == "" || appCode == "" {
		return "", "", httperr.NewBadRequest("tenant and app are required")
	}
	return tenantRef, appCode, nil
}

// writeBootstrapError maps the service error taxonomy onto the wire.
// Precondition failures carry their own codes; a critical fetch failure is
// one descriptive error naming the fetcher, with no partial payload.
func writeBootstrapError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case httperr.IsBadRequest(err):
		writeAPIError(w, r, http.StatusBadRequest, "invalid_request", err.Error())
	case httperr.IsNotFound(err):
		writeAPIError(w, r, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, ErrUnknownApplication):
		writeAPIError(w, r, http.StatusNotFound, "unknown_application", "unknown or inactive application code")
	case errors.Is(err, ErrTenantNotFound):
		writeAPIError(w, r, http.StatusNotFound, "tenant_not_found", "tenant not found")
	default:
		if denied, ok := errors.AsType[*EntitlementDeniedError](err); ok {
			writeAPIError(w, r, http.StatusForbidden, "entitlement_denied", denied.Reason)
			return
		}
		if expired, ok := errors.AsType[*EntitlementExpiredError](err); ok {
			writeAPIError(w, r, http.StatusForbidden, "entitlement_expired", "entitlement expired at "+expired.At.UTC().Format(time.RFC3339))
			return
		}
		if critical, ok := errors.AsType[*CriticalFetchError](err); ok {
			writeAPIError(w, r, http.StatusInternalServerError, "snapshot_failed", "critical fetch "+critical.Collection+" failed")
			return
		}
		if isPgInvalidInput(err) {
			writeAPIError(w, r, http.StatusBadRequest, "invalid_request", pgErrorMessage(err))
			return
		}
		writeAPIError(w, r, http.StatusInternalServerError, "internal_error", "internal error")
	}
}

func handleBootstrapAPI(w http.ResponseWriter, r *http.Request, svc *BootstrapService) {
	if r.Method != http.MethodGet {
		writeAPIError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	tenantRef, appCode, err := tenantAndAppParams(r)
	if err != nil {
		writeBootstrapError(w, r, err)
		return
	}

	result, err := svc.AssembleBootstrap(r.Context(), tenantRef, appCode)
	if err != nil {
		writeBootstrapError(w, r, err)
		return
	}
	writeJSON(w, result)
}

type costConfigsResponse struct {
	AppCode    string                 `json:"appCode"`
	TenantID   string                 `json:"tenantId"`
	Items      []costing.ResolvedCost `json:"items"`
	Duplicates []string               `json:"duplicates,omitempty"`
}

func handleCostConfigsAPI(w http.ResponseWriter, r *http.Request, svc *BootstrapService) {
	if r.Method != http.MethodGet {
		writeAPIError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	tenantRef, appCode, err := tenantAndAppParams(r)
	if err != nil {
		writeBootstrapError(w, r, err)
		return
	}

	items, duplicates, err := svc.ResolveCostsFor(r.Context(), tenantRef, appCode)
	if err != nil {
		writeBootstrapError(w, r, err)
		return
	}
	writeJSON(w, costConfigsResponse{
		AppCode:    strings.ToLower(appCode),
		TenantID:   tenantRef,
		Items:      items,
		Duplicates: duplicates,
	})
}

type rolesResponse struct {
	AppCode string     `json:"appCode"`
	Items   []RoleView `json:"items"`
}

func handleRolesAPI(w http.ResponseWriter, r *http.Request, svc *BootstrapService) {
	if r.Method != http.MethodGet {
		writeAPIError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	tenantRef, appCode, err := tenantAndAppParams(r)
	if err != nil {
		writeBootstrapError(w, r, err)
		return
	}

	items, err := svc.RolesFor(r.Context(), tenantRef, appCode)
	if err != nil {
		writeBootstrapError(w, r, err)
		return
	}
	writeJSON(w, rolesResponse{AppCode: strings.ToLower(appCode), Items: items})
}

type catalogResponse struct {
	AppCode string                 `json:"appCode"`
	Items   []catalogOperationItem `json:"items"`
}

type catalogOperationItem struct {
	OperationCode string `json:"operationCode"`
	OperationName string `json:"operationName"`
}

func handleCatalogAPI(w http.ResponseWriter, r *http.Request, svc *BootstrapService) {
	if r.Method != http.MethodGet {
		writeAPIError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	appCode := strings.TrimSpace(r.URL.Query().Get("app"))
	if appCode == "" {
		writeAPIError(w, r, http.StatusBadRequest, "invalid_request", "app is required")
		return
	}

	skeleton, err := svc.Skeleton(appCode)
	if err != nil {
		writeBootstrapError(w, r, err)
		return
	}
	items := make([]catalogOperationItem, 0, len(skeleton))
	for _, entry := range skeleton {
		items = append(items, catalogOperationItem(entry))
	}
	writeJSON(w, catalogResponse{AppCode: strings.ToLower(appCode), Items: items})
}
