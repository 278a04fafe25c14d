package auth

import (
	"context"

	"github.com/nexhr/sales-api/internal/domain"
)

// UserContext holds authenticated user information
type UserContext struct {
	Username    string
	DisplayName string
	Email       string
	Role        domain.UserRole
	Position    string
	Department  string
}

type contextKey string

const userContextKey contextKey = "userContext"

// WithUserContext adds user context to the context
func WithUserContext(ctx context.Context, user *UserContext) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// FromContext extracts user context from the context
func FromContext(ctx context.Context) (*UserContext, bool) {
	user, ok := ctx.Value(userContextKey).(*UserContext)
	return user, ok
}

// MustFromContext extracts user context or panics
func MustFromContext(ctx context.Context) *UserContext {
	user, ok := FromContext(ctx)
	if !ok {
		panic("user context not found in context")
	}
	return user
}

// HasAnyRole checks if user has any of the specified roles
func (u *UserContext) HasAnyRole(roles ...domain.UserRole) bool {
	for _, role := range roles {
		if u.Role == role {
			return true
		}
	}
	return false
}

// IsSalesManager checks if the user manages the sales pipeline, either by
// role or by holding the sales_manager position in any department
func (u *UserContext) IsSalesManager() bool {
	if u.HasAnyRole(domain.RoleAdmin, domain.RoleDirector, domain.RoleManager, domain.RoleSalesManager) {
		return true
	}
	return u.Position == "sales_manager"
}

// CanManageLead checks if the user may update the given lead. Managers can
// update any lead, everyone else only leads they own (assigned to them or
// created by them).
func (u *UserContext) CanManageLead(lead *domain.Lead) bool {
	if u.IsSalesManager() {
		return true
	}
	return u.OwnsLead(lead)
}

// OwnsLead checks if the lead is assigned to or was created by the user
func (u *UserContext) OwnsLead(lead *domain.Lead) bool {
	return lead.AssignedTo == u.Username || lead.CreatedBy == u.Username
}
