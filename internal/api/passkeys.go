// ABOUTME: Identity service endpoints for the two WebAuthn ceremonies
// ABOUTME: Start/finish round trips for passkey registration and login, plus deletion

package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/go-webauthn/webauthn/protocol"

	"github.com/2389/idfront/internal/ceremony"
)

// PasskeyRegisterStart requests registration ceremony options (challenge plus
// policy constraints) for the authenticated account. A 2xx response with no
// options is a server fault and reported as a ServiceError.
func (c *Client) PasskeyRegisterStart(ctx context.Context, token string) (*protocol.CredentialCreation, error) {
	var options protocol.CredentialCreation
	if err := c.callDecoding(ctx, http.MethodPost, "/auth/passkey/register/start", token, struct{}{}, &options); err != nil {
		return nil, err
	}
	if options.Response.Challenge == nil {
		return nil, &ServiceError{Status: http.StatusOK, Message: "no registration options returned"}
	}
	return &options, nil
}

// PasskeyRegisterFinish submits the normalized attestation response. Label is
// the optional user-assigned name for the new credential.
func (c *Client) PasskeyRegisterFinish(ctx context.Context, token string, payload *ceremony.AttestationPayload, label string) error {
	body := struct {
		AttestationResponse *ceremony.AttestationPayload `json:"attestationResponse"`
		Label               string                       `json:"label,omitempty"`
	}{payload, label}
	_, err := c.call(ctx, http.MethodPost, "/auth/passkey/register/finish", token, body)
	return err
}

// PasskeyLoginStart requests authentication ceremony options for the given
// identifier. Unlike registration, this call is unauthenticated.
func (c *Client) PasskeyLoginStart(ctx context.Context, identifier string) (*protocol.CredentialAssertion, error) {
	var options protocol.CredentialAssertion
	body := map[string]string{"identifier": identifier}
	if err := c.callDecoding(ctx, http.MethodPost, "/auth/passkey/login/start", "", body, &options); err != nil {
		return nil, err
	}
	if options.Response.Challenge == nil {
		return nil, &ServiceError{Status: http.StatusOK, Message: "no authentication options returned"}
	}
	return &options, nil
}

// PasskeyLoginFinish submits the normalized assertion response and returns
// the token and identity on success.
func (c *Client) PasskeyLoginFinish(ctx context.Context, payload *ceremony.AssertionPayload) (*Envelope, error) {
	body := struct {
		AssertionResponse *ceremony.AssertionPayload `json:"assertionResponse"`
	}{payload}
	return c.call(ctx, http.MethodPost, "/auth/passkey/login/finish", "", body)
}

// DeletePasskey removes a registered credential by its opaque identifier.
func (c *Client) DeletePasskey(ctx context.Context, token, credentialID string) error {
	_, err := c.call(ctx, http.MethodDelete, "/auth/passkey/"+url.PathEscape(credentialID), token, nil)
	return err
}
