package server

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"

	"github.com/asoforge/asoforge/internal/routing"
	"github.com/asoforge/asoforge/pkg/authz"
)

func loadAuthorizer() (*authz.Authorizer, error) {
	modelPath := os.Getenv("AUTHZ_MODEL_PATH")
	if modelPath == "" {
		p, err := defaultAuthzModelPath()
		if err != nil {
			return nil, err
		}
		modelPath = p
	}

	policyPath := os.Getenv("AUTHZ_POLICY_PATH")
	if policyPath == "" {
		p, err := defaultAuthzPolicyPath()
		if err != nil {
			return nil, err
		}
		policyPath = p
	}

	mode, err := authz.ModeFromEnv()
	if err != nil {
		return nil, err
	}

	return authz.NewAuthorizer(modelPath, policyPath, mode)
}

func defaultAuthzModelPath() (string, error) {
	path := "config/access/model.conf"
	for i := 0; i < 8; i++ {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
		path = filepath.Join("..", path)
	}
	return "", errors.New("server: authz model not found")
}

func defaultAuthzPolicyPath() (string, error) {
	path := "config/access/policy.csv"
	for i := 0; i < 8; i++ {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
		path = filepath.Join("..", path)
	}
	return "", errors.New("server: authz policy not found")
}

type authorizer interface {
	Authorize(subject string, domain string, object string, action string) (allowed bool, enforced bool, err error)
}

func withAuthz(a authorizer, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		if routing.Classify(path) == routing.RouteClassOps {
			next.ServeHTTP(w, r)
			return
		}

		object, action, shouldCheck := authzRequirementForRoute(r.Method, path)
		if !shouldCheck {
			next.ServeHTTP(w, r)
			return
		}

		roleSlug := authz.RoleAnonymous
		if p, ok := currentPrincipal(r.Context()); ok {
			roleSlug = p.RoleSlug
		}
		subject := authz.SubjectFromRoleSlug(roleSlug)

		domain := authz.DomainGlobal
		if org, ok := currentOrganization(r.Context()); ok {
			domain = authz.DomainFromOrganizationID(org.ID)
		}

		allowed, enforced, err := a.Authorize(subject, domain, object, action)
		if err != nil {
			routing.WriteError(w, r, http.StatusInternalServerError, "authz_error", "authz error")
			return
		}
		if enforced && !allowed {
			routing.WriteError(w, r, http.StatusForbidden, "forbidden", "forbidden")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func authzRequirementForRoute(method string, path string) (object string, action string, shouldCheck bool) {
	switch path {
	case "/api/v1/overrides":
		if method == http.MethodGet {
			return authz.ObjectOverrideRecords, authz.ActionRead, true
		}
		return authz.ObjectOverrideRecords, authz.ActionWrite, true
	case "/api/v1/overrides/disable":
		return authz.ObjectOverrideRecords, authz.ActionWrite, true
	case "/api/v1/cache/invalidate", "/api/v1/cache/stats":
		return authz.ObjectCacheAdmin, authz.ActionAdmin, true
	case "/api/v1/audit/score":
		return authz.ObjectAuditRun, authz.ActionRead, true
	case "/api/v1/catalog":
		return authz.ObjectOverrideRecords, authz.ActionRead, true
	default:
		return "", "", false
	}
}

func withOrganizationContext(orgs OrganizationResolver, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if p, ok := principalFromHeaders(r); ok {
			r = r.WithContext(withPrincipal(r.Context(), p))
		}

		orgID := r.Header.Get("X-Org-ID")
		if orgID == "" {
			next.ServeHTTP(w, r)
			return
		}

		org, ok, err := orgs.ResolveOrganization(r.Context(), orgID)
		if err != nil {
			routing.WriteError(w, r, http.StatusInternalServerError, "org_resolve_error", "organization resolve error")
			return
		}
		if !ok {
			routing.WriteError(w, r, http.StatusNotFound, "org_not_found", "organization not found")
			return
		}
		next.ServeHTTP(w, r.WithContext(withOrganization(r.Context(), org)))
	})
}
