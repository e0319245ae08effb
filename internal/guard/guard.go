// ABOUTME: Navigation-time access guards over the current session state
// ABOUTME: Authentication guard and role guard returning allow/deny-with-redirect

package guard

import "github.com/2389/idfront/internal/identity"

// SessionSource is the read-only view of session state that guards consult.
// Satisfied by the session engine; guards never write.
type SessionSource interface {
	Current() *identity.Identity
}

// Decision is the outcome of a guard evaluation. When Allowed is false,
// Redirect names the target the navigation layer should redirect to —
// performing the redirect is the caller's job.
type Decision struct {
	Allowed  bool
	Redirect string
}

// Allow is the decision that lets a navigation proceed.
var Allow = Decision{Allowed: true}

// deny builds a deny decision targeting the given redirect.
func deny(redirect string) Decision {
	return Decision{Redirect: redirect}
}

// AuthGuard gates routes that require any authenticated identity. Each Check
// evaluates a single snapshot of the current identity, so a decision cannot
// change mid-navigation.
type AuthGuard struct {
	sessions  SessionSource
	loginPath string
}

// NewAuthGuard creates an authentication guard redirecting to loginPath on
// denial.
func NewAuthGuard(sessions SessionSource, loginPath string) *AuthGuard {
	return &AuthGuard{sessions: sessions, loginPath: loginPath}
}

// Check allows when an identity is present; otherwise it denies with a
// redirect to the login entry point. No role check happens here.
func (g *AuthGuard) Check() Decision {
	if g.sessions.Current() != nil {
		return Allow
	}
	return deny(g.loginPath)
}

// RoleGuard gates routes declaring a set of acceptable role labels. A user
// holding any one of the acceptable roles passes (intersection, not exact
// match). Denials redirect to an authenticated default, never to login: an
// authenticated-but-forbidden user must not be mistaken for an
// unauthenticated one.
type RoleGuard struct {
	sessions    SessionSource
	defaultPath string
}

// NewRoleGuard creates a role guard redirecting to defaultPath on denial.
func NewRoleGuard(sessions SessionSource, defaultPath string) *RoleGuard {
	return &RoleGuard{sessions: sessions, defaultPath: defaultPath}
}

// Check allows when an identity exists and its role set intersects the
// required set non-emptily, evaluated against one snapshot of the current
// identity.
func (g *RoleGuard) Check(required []string) Decision {
	if g.sessions.Current().HasAnyRole(required...) {
		return Allow
	}
	return deny(g.defaultPath)
}
