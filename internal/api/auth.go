// ABOUTME: Identity service endpoints for registration, login, and token verification
// ABOUTME: Also covers password recovery and second-factor enrollment round trips

package api

import (
	"context"
	"errors"
	"net/http"
	"net/url"
)

// RegistrationProfile is the payload for account registration.
type RegistrationProfile struct {
	Username string         `json:"username"`
	Email    string         `json:"email"`
	Password string         `json:"password"`
	Extra    map[string]any `json:"customFields,omitempty"`
}

// LoginRequest is the payload for password login. OTP is empty unless the
// caller is retrying after a second-factor challenge.
type LoginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
	OTP        string `json:"otp,omitempty"`
}

// SecondFactorSecret is the server-issued shared secret for OTP enrollment,
// with a scannable otpauth:// URI. The client never generates secrets.
type SecondFactorSecret struct {
	Secret     string `json:"secret"`
	OTPAuthURL string `json:"otpauthUrl"`
}

// Register creates a new account. No session is established — the typical
// deployment requires email verification before login succeeds.
func (c *Client) Register(ctx context.Context, profile RegistrationProfile) (*Envelope, error) {
	return c.call(ctx, http.MethodPost, "/auth/register", "", profile)
}

// Login exchanges an identifier/secret pair (plus optional OTP) for a token
// and identity.
func (c *Client) Login(ctx context.Context, req LoginRequest) (*Envelope, error) {
	env, err := c.call(ctx, http.MethodPost, "/auth/login", "", req)
	if err != nil {
		// Attach the identifier so callers can prompt for an OTP and retry.
		var sfr *SecondFactorRequiredError
		if errors.As(err, &sfr) {
			sfr.Identifier = req.Identifier
		}
		return nil, err
	}
	return env, nil
}

// VerifyToken confirms a stored token against the server and returns the
// authoritative identity.
func (c *Client) VerifyToken(ctx context.Context, token string) (*Envelope, error) {
	return c.call(ctx, http.MethodGet, "/auth/verify-token", token, nil)
}

// ForgotPassword requests a password reset email.
func (c *Client) ForgotPassword(ctx context.Context, email string) error {
	_, err := c.call(ctx, http.MethodPost, "/auth/forgot-password", "", map[string]string{"email": email})
	return err
}

// ResetPassword sets a new password using a reset token from email.
func (c *Client) ResetPassword(ctx context.Context, resetToken, newPassword string) error {
	_, err := c.call(ctx, http.MethodPost, "/auth/reset-password/"+url.PathEscape(resetToken), "",
		map[string]string{"newPassword": newPassword})
	return err
}

// GenerateSecondFactorSecret asks the server to issue an OTP shared secret
// for the authenticated account.
func (c *Client) GenerateSecondFactorSecret(ctx context.Context, token string) (*SecondFactorSecret, error) {
	var secret SecondFactorSecret
	if err := c.callDecoding(ctx, http.MethodPost, "/auth/2fa/generate-secret", token, struct{}{}, &secret); err != nil {
		return nil, err
	}
	return &secret, nil
}

// VerifyAndEnableSecondFactor validates a one-time code against the pending
// secret and enables the second factor on success.
func (c *Client) VerifyAndEnableSecondFactor(ctx context.Context, token, code string) error {
	_, err := c.call(ctx, http.MethodPost, "/auth/2fa/verify-and-enable", token, map[string]string{"otp": code})
	return asInvalidCode(err)
}

// DisableSecondFactor turns the second factor off for the authenticated account.
func (c *Client) DisableSecondFactor(ctx context.Context, token string) error {
	_, err := c.call(ctx, http.MethodPost, "/auth/2fa/disable", token, struct{}{})
	return err
}

// asInvalidCode translates code-rejection responses on OTP endpoints into
// ErrInvalidCode. Other failures pass through unchanged.
func asInvalidCode(err error) error {
	if err == nil {
		return nil
	}
	var ve *ValidationError
	if errors.Is(err, ErrInvalidCredentials) || errors.As(err, &ve) {
		return ErrInvalidCode
	}
	var se *ServiceError
	if errors.As(err, &se) && se.Status == http.StatusForbidden {
		return ErrInvalidCode
	}
	return err
}
