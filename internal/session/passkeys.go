// ABOUTME: Passkey ceremony orchestration for the session engine
// ABOUTME: Registration, passwordless login, and credential deletion flows

package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/2389/idfront/internal/api"
	"github.com/2389/idfront/internal/ceremony"
	"github.com/2389/idfront/internal/identity"
)

// RegisterPasskey runs the full registration ceremony: fetch server-issued
// options, hand them to the authenticator (which suspends until the user
// completes or aborts the interaction), normalize the binary response fields,
// submit, and revalidate so the new credential descriptor appears in the
// identity. A user/browser abort surfaces ceremony.ErrCancelled and leaves no
// partial descriptor anywhere.
func (e *Engine) RegisterPasskey(ctx context.Context, label string) error {
	token, err := e.requireToken(ctx)
	if err != nil {
		return err
	}

	options, err := e.svc.PasskeyRegisterStart(ctx, token)
	if err != nil {
		return err
	}

	result, err := e.authn.Create(ctx, options)
	if err != nil {
		if errors.Is(err, ceremony.ErrCancelled) {
			e.logger.Info("passkey registration cancelled")
			return err
		}
		return fmt.Errorf("running registration ceremony: %w", err)
	}

	payload, err := ceremony.NormalizeAttestation(result)
	if err != nil {
		return fmt.Errorf("normalizing attestation response: %w", err)
	}

	if err := e.svc.PasskeyRegisterFinish(ctx, token, payload, label); err != nil {
		return err
	}

	e.logger.Info("passkey registered", "credential_id", payload.ID)
	return e.refresh(ctx, "passkey registration")
}

// LoginWithPasskey runs the authentication ceremony for the given identifier
// and establishes a session exactly as Login does. The start call is
// unauthenticated. When the PasskeySecondFactor policy is on and the account
// has a second factor enabled, the login is refused with
// SecondFactorRequiredError instead of treating the passkey as a complete
// proof.
func (e *Engine) LoginWithPasskey(ctx context.Context, identifier string) (*identity.Identity, error) {
	options, err := e.svc.PasskeyLoginStart(ctx, identifier)
	if err != nil {
		return nil, err
	}

	result, err := e.authn.Get(ctx, options)
	if err != nil {
		if errors.Is(err, ceremony.ErrCancelled) {
			e.logger.Info("passkey login cancelled", "identifier", identifier)
			return nil, err
		}
		return nil, fmt.Errorf("running authentication ceremony: %w", err)
	}

	payload, err := ceremony.NormalizeAssertion(result)
	if err != nil {
		return nil, fmt.Errorf("normalizing assertion response: %w", err)
	}

	env, err := e.svc.PasskeyLoginFinish(ctx, payload)
	if err != nil {
		return nil, err
	}

	if e.passkeySecondFactor && env.User != nil && env.User.SecondFactorEnabled {
		return nil, &api.SecondFactorRequiredError{
			Identifier: identifier,
			Message:    "account requires a second factor even for passkey login",
		}
	}

	if err := e.establish(ctx, env); err != nil {
		return nil, err
	}
	e.logger.Info("passkey login successful", "identifier", identifier)
	return env.User, nil
}

// DeletePasskey removes a registered credential server-side and revalidates
// so the identity's credential list reflects server truth.
func (e *Engine) DeletePasskey(ctx context.Context, credentialID string) error {
	token, err := e.requireToken(ctx)
	if err != nil {
		return err
	}
	if err := e.svc.DeletePasskey(ctx, token, credentialID); err != nil {
		return err
	}
	e.logger.Info("passkey deleted", "credential_id", credentialID)
	return e.refresh(ctx, "passkey deletion")
}
