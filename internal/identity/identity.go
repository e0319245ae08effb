// ABOUTME: Identity and credential descriptor types for the authenticated principal
// ABOUTME: Role and permission helpers used by the session engine and access guards

package identity

import (
	"slices"
	"time"
)

// Credential represents one registered passkey as the identity service
// reports it. The client never holds more than the list last fetched;
// descriptors are appended and removed server-side only.
type Credential struct {
	ID         string    `json:"credID"`
	Label      string    `json:"label,omitempty"`
	CreatedAt  time.Time `json:"createdAt,omitempty"`
	LastUsedAt time.Time `json:"lastUsedAt,omitempty"`
	Transports []string  `json:"transports,omitempty"`
}

// Identity is the authenticated principal as returned by the identity
// service. It is replaced wholesale whenever the server returns a fresher
// copy (login, token revalidation, post-ceremony refresh) — the client
// never mutates one in place.
type Identity struct {
	ID                  string         `json:"id"`
	Username            string         `json:"username"`
	Email               string         `json:"email"`
	Roles               []string       `json:"roles"`
	Permissions         []string       `json:"permissions"`
	Verified            bool           `json:"isVerified"`
	SecondFactorEnabled bool           `json:"twoFactorEnabled"`
	Credentials         []Credential   `json:"passkeys,omitempty"`
	Extra               map[string]any `json:"customFields,omitempty"`
}

// HasRole reports whether the identity carries the given role label.
func (id *Identity) HasRole(role string) bool {
	if id == nil {
		return false
	}
	return slices.Contains(id.Roles, role)
}

// HasAnyRole reports whether the identity's role set intersects the given
// set non-emptily. An empty required set never matches.
func (id *Identity) HasAnyRole(roles ...string) bool {
	if id == nil {
		return false
	}
	for _, r := range roles {
		if slices.Contains(id.Roles, r) {
			return true
		}
	}
	return false
}

// HasPermission reports whether the identity carries the given permission label.
func (id *Identity) HasPermission(perm string) bool {
	if id == nil {
		return false
	}
	return slices.Contains(id.Permissions, perm)
}

// Credential returns the registered credential with the given ID, or nil.
func (id *Identity) Credential(credID string) *Credential {
	if id == nil {
		return nil
	}
	for i := range id.Credentials {
		if id.Credentials[i].ID == credID {
			return &id.Credentials[i]
		}
	}
	return nil
}
