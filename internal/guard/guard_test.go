// ABOUTME: Unit tests for the authentication and role guards
// ABOUTME: Covers redirect targets, intersection semantics, and snapshot reads

package guard

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/2389/idfront/internal/identity"
)

// fixedSession returns a constant identity snapshot.
type fixedSession struct {
	id *identity.Identity
}

func (s *fixedSession) Current() *identity.Identity { return s.id }

func TestAuthGuardAllowsAuthenticated(t *testing.T) {
	g := NewAuthGuard(&fixedSession{id: &identity.Identity{ID: "u1"}}, "/login")

	d := g.Check()
	assert.True(t, d.Allowed)
	assert.Empty(t, d.Redirect)
}

func TestAuthGuardDeniesToLogin(t *testing.T) {
	g := NewAuthGuard(&fixedSession{}, "/login")

	d := g.Check()
	assert.False(t, d.Allowed)
	assert.Equal(t, "/login", d.Redirect)
}

func TestRoleGuardIntersection(t *testing.T) {
	tests := []struct {
		name     string
		roles    []string
		required []string
		want     bool
	}{
		{"exact single role", []string{"admin"}, []string{"admin"}, true},
		{"intersection via manager", []string{"editor", "manager"}, []string{"admin", "manager"}, true},
		{"under-privileged", []string{"user"}, []string{"admin"}, false},
		{"no required roles declared", []string{"user"}, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewRoleGuard(&fixedSession{id: &identity.Identity{ID: "u1", Roles: tt.roles}}, "/dashboard")
			d := g.Check(tt.required)
			assert.Equal(t, tt.want, d.Allowed)
			if !tt.want {
				assert.Equal(t, "/dashboard", d.Redirect)
			}
		})
	}
}

func TestRoleGuardDeniesUnauthenticated(t *testing.T) {
	g := NewRoleGuard(&fixedSession{}, "/dashboard")

	d := g.Check([]string{"admin"})
	assert.False(t, d.Allowed)
	assert.Equal(t, "/dashboard", d.Redirect)
}

// The two guards must disagree on redirect targets so "authenticated but
// forbidden" is never masked as "not authenticated".
func TestGuardsDisagreeOnRedirectTargets(t *testing.T) {
	session := &fixedSession{id: &identity.Identity{ID: "u1", Roles: []string{"user"}}}

	auth := NewAuthGuard(session, "/login")
	role := NewRoleGuard(session, "/dashboard")

	assert.True(t, auth.Check().Allowed)

	d := role.Check([]string{"admin"})
	assert.False(t, d.Allowed)
	assert.Equal(t, "/dashboard", d.Redirect)
	assert.NotEqual(t, "/login", d.Redirect)
}
