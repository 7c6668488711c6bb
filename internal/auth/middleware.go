package auth

import (
	"log"
	"net/http"
	"strings"
)

// Middleware validates bearer tokens and enforces roles. A middleware with
// an empty secret passes every request through.
type Middleware struct {
	secret []byte
	policy Policy
	logger *log.Logger
}

// NewMiddleware constructs an auth middleware.
func NewMiddleware(secret []byte, policy Policy, logger *log.Logger) *Middleware {
	return &Middleware{secret: secret, policy: policy, logger: logger}
}

// Enabled reports whether tokens are enforced.
func (m *Middleware) Enabled() bool {
	return m != nil && len(m.secret) > 0
}

// Wrap applies auth to next.
func (m *Middleware) Wrap(next http.Handler) http.Handler {
	if !m.Enabled() {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.policy.IsExempt(r) {
			next.ServeHTTP(w, r)
			return
		}
		required, ok := m.policy.RequiredRole(r)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		claims, err := ParseJWT(extractBearer(r), m.secret)
		if err != nil {
			m.logf("auth rejected %s %s: %v", r.Method, r.URL.Path, err)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		role, _ := NormalizeRole(claims.Role)
		if !RoleAtLeast(role, required) {
			m.logf("auth forbidden %s %s: role=%s required=%s", r.Method, r.URL.Path, role, required)
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), role, claims.Subject)))
	})
}

func (m *Middleware) logf(format string, args ...any) {
	if m.logger != nil {
		m.logger.Printf(format, args...)
	}
}

func extractBearer(r *http.Request) string {
	parts := strings.Fields(r.Header.Get("Authorization"))
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}
