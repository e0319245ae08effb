// ABOUTME: User administration endpoints of the identity service
// ABOUTME: List/get/update/delete users and change passwords, all bearer-authenticated

package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/2389/idfront/internal/identity"
)

// PasswordChange is the payload for changing an account password. OldPassword
// may be empty when an administrator resets another user's password.
type PasswordChange struct {
	OldPassword string `json:"oldPassword,omitempty"`
	NewPassword string `json:"newPassword"`
}

// ListUsers returns all user accounts. Requires an administrative role
// server-side.
func (c *Client) ListUsers(ctx context.Context, token string) ([]identity.Identity, error) {
	var users []identity.Identity
	if err := c.callDecoding(ctx, http.MethodGet, "/users", token, nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// GetUser returns a single user account by id.
func (c *Client) GetUser(ctx context.Context, token, userID string) (*identity.Identity, error) {
	var user identity.Identity
	if err := c.callDecoding(ctx, http.MethodGet, "/users/"+url.PathEscape(userID), token, nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateUser replaces mutable fields of a user account and returns the
// updated copy.
func (c *Client) UpdateUser(ctx context.Context, token, userID string, fields map[string]any) (*identity.Identity, error) {
	var user identity.Identity
	if err := c.callDecoding(ctx, http.MethodPut, "/users/"+url.PathEscape(userID), token, fields, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// DeleteUser removes a user account.
func (c *Client) DeleteUser(ctx context.Context, token, userID string) error {
	_, err := c.call(ctx, http.MethodDelete, "/users/"+url.PathEscape(userID), token, nil)
	return err
}

// ChangePassword updates the password of the given account.
func (c *Client) ChangePassword(ctx context.Context, token, userID string, change PasswordChange) error {
	_, err := c.call(ctx, http.MethodPut, "/users/"+url.PathEscape(userID)+"/change-password", token, change)
	return err
}
