package middleware

import (
	"context"
	"net/http"

	"boutique-backend/pkg/errors"
)

// Roles recognized from the identity provider's token claims
const (
	RoleAdmin    = "admin"
	RoleCustomer = "customer"
)

// SecurityAuditor records security-relevant events (failed admin access,
// webhook signature failures).
type SecurityAuditor interface {
	RecordSecurityEvent(ctx context.Context, kind string, fields map[string]string)
}

// RoleGuard enforces role-based access and reports denied attempts
type RoleGuard struct {
	auditor SecurityAuditor
}

// NewRoleGuard creates a role guard. auditor may be nil.
func NewRoleGuard(auditor SecurityAuditor) *RoleGuard {
	return &RoleGuard{auditor: auditor}
}

// Require checks that the authenticated user has one of the allowed roles
func (g *RoleGuard) Require(allowedRoles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Role is set by the JWT middleware
			userRole, ok := GetRoleFromContext(r.Context())
			if !ok || userRole == "" {
				HandleError(w, r, errors.NewUnauthorizedError("User role not found"))
				return
			}

			for _, allowed := range allowedRoles {
				if userRole == allowed {
					next.ServeHTTP(w, r)
					return
				}
			}

			if g.auditor != nil {
				userID, _ := GetUserIDFromContext(r.Context())
				g.auditor.RecordSecurityEvent(r.Context(), "admin_access_denied", map[string]string{
					"user_id": userID,
					"role":    userRole,
					"path":    r.URL.Path,
				})
			}
			HandleError(w, r, errors.NewForbiddenError("Insufficient permissions"))
		})
	}
}

// RequireAdmin middleware that requires the admin role
func (g *RoleGuard) RequireAdmin(next http.Handler) http.Handler {
	return g.Require(RoleAdmin)(next)
}
