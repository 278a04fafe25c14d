package auth_test

import (
	"context"
	"testing"

	"github.com/nexhr/sales-api/internal/auth"
	"github.com/nexhr/sales-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserContext_RoundTrip(t *testing.T) {
	user := &auth.UserContext{
		Username:    "anna",
		DisplayName: "Anna Berg",
		Email:       "anna@nexhr.io",
		Role:        domain.RoleEmployee,
	}

	ctx := auth.WithUserContext(context.Background(), user)

	got, ok := auth.FromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, user, got)

	_, ok = auth.FromContext(context.Background())
	assert.False(t, ok)
}

func TestUserContext_IsSalesManager(t *testing.T) {
	tests := []struct {
		name     string
		role     domain.UserRole
		position string
		expected bool
	}{
		{"admin role", domain.RoleAdmin, "", true},
		{"director role", domain.RoleDirector, "", true},
		{"manager role", domain.RoleManager, "", true},
		{"sales manager role", domain.RoleSalesManager, "", true},
		{"sales executive role", domain.RoleSalesExecutive, "", false},
		{"employee role", domain.RoleEmployee, "", false},
		{"employee with sales manager position", domain.RoleEmployee, "sales_manager", true},
		{"employee with other position", domain.RoleEmployee, "developer", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user := &auth.UserContext{
				Username: "test",
				Role:     tt.role,
				Position: tt.position,
			}
			assert.Equal(t, tt.expected, user.IsSalesManager())
		})
	}
}

func TestUserContext_CanManageLead(t *testing.T) {
	lead := &domain.Lead{
		AssignedTo: "anna",
		CreatedBy:  "bob",
	}

	tests := []struct {
		name     string
		user     *auth.UserContext
		expected bool
	}{
		{
			name:     "assignee can manage",
			user:     &auth.UserContext{Username: "anna", Role: domain.RoleEmployee},
			expected: true,
		},
		{
			name:     "creator can manage",
			user:     &auth.UserContext{Username: "bob", Role: domain.RoleEmployee},
			expected: true,
		},
		{
			name:     "unrelated employee cannot",
			user:     &auth.UserContext{Username: "carol", Role: domain.RoleEmployee},
			expected: false,
		},
		{
			name:     "manager can manage any lead",
			user:     &auth.UserContext{Username: "carol", Role: domain.RoleSalesManager},
			expected: true,
		},
		{
			name:     "unrelated user with sales manager position can manage",
			user:     &auth.UserContext{Username: "carol", Role: domain.RoleEmployee, Position: "sales_manager"},
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.user.CanManageLead(lead))
		})
	}
}

func TestUserContext_HasAnyRole(t *testing.T) {
	user := &auth.UserContext{Username: "anna", Role: domain.RoleSalesExecutive}

	assert.True(t, user.HasAnyRole(domain.RoleSalesExecutive))
	assert.True(t, user.HasAnyRole(domain.RoleAdmin, domain.RoleSalesExecutive))
	assert.False(t, user.HasAnyRole(domain.RoleAdmin, domain.RoleDirector))
	assert.False(t, user.HasAnyRole())
}
