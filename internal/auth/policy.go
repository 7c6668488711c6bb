package auth

import (
	"net/http"
	"strings"
)

// Policy maps requests to the role they require.
type Policy struct {
	ExemptPaths map[string]struct{}
}

// NewDefaultPolicy builds a policy that skips auth for exemptPaths.
func NewDefaultPolicy(exemptPaths ...string) Policy {
	set := make(map[string]struct{}, len(exemptPaths))
	for _, path := range exemptPaths {
		set[path] = struct{}{}
	}
	return Policy{ExemptPaths: set}
}

// IsExempt reports whether a request skips auth.
func (p Policy) IsExempt(r *http.Request) bool {
	if r == nil {
		return true
	}
	_, ok := p.ExemptPaths[r.URL.Path]
	return ok
}

// RequiredRole resolves the role needed for the request.
func (p Policy) RequiredRole(r *http.Request) (Role, bool) {
	if r == nil {
		return "", false
	}
	path := r.URL.Path
	switch {
	case path == "/api/v1/runs/scheduled":
		return RoleAdmin, true
	case path == "/api/v1/runs":
		if r.Method == http.MethodPost {
			return RoleOperator, true
		}
		return RoleViewer, true
	case strings.HasPrefix(path, "/api/"):
		return RoleViewer, true
	}
	return "", false
}
