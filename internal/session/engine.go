// ABOUTME: Session engine orchestrating login, ceremonies, and the token lifecycle
// ABOUTME: Sole writer of the token repository and session state store

package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-webauthn/webauthn/protocol"

	"github.com/2389/idfront/internal/api"
	"github.com/2389/idfront/internal/ceremony"
	"github.com/2389/idfront/internal/identity"
	"github.com/2389/idfront/internal/state"
	"github.com/2389/idfront/internal/tokens"
)

// ErrNotAuthenticated is returned by operations that require an active
// session when no token is stored.
var ErrNotAuthenticated = errors.New("not authenticated")

// Service is the consumed surface of the remote identity service. It is
// satisfied by *api.Client and faked in tests.
type Service interface {
	Register(ctx context.Context, profile api.RegistrationProfile) (*api.Envelope, error)
	Login(ctx context.Context, req api.LoginRequest) (*api.Envelope, error)
	VerifyToken(ctx context.Context, token string) (*api.Envelope, error)
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, resetToken, newPassword string) error
	GenerateSecondFactorSecret(ctx context.Context, token string) (*api.SecondFactorSecret, error)
	VerifyAndEnableSecondFactor(ctx context.Context, token, code string) error
	DisableSecondFactor(ctx context.Context, token string) error
	PasskeyRegisterStart(ctx context.Context, token string) (*protocol.CredentialCreation, error)
	PasskeyRegisterFinish(ctx context.Context, token string, payload *ceremony.AttestationPayload, label string) error
	PasskeyLoginStart(ctx context.Context, identifier string) (*protocol.CredentialAssertion, error)
	PasskeyLoginFinish(ctx context.Context, payload *ceremony.AssertionPayload) (*api.Envelope, error)
	DeletePasskey(ctx context.Context, token, credentialID string) error
}

// Options configures engine policy.
type Options struct {
	// PasskeySecondFactor makes passkey login honor the account's
	// second-factor flag instead of treating a passkey as a complete proof.
	// Off by default.
	PasskeySecondFactor bool
	Logger              *slog.Logger
}

// Engine coordinates the session lifecycle: it owns the bearer token and the
// session state cell, drives the WebAuthn ceremonies through the injected
// authenticator, and talks to the remote identity service. No other
// component writes the token repository or the state store.
type Engine struct {
	svc    Service
	tokens tokens.Repository
	state  *state.Store
	authn  ceremony.Authenticator

	passkeySecondFactor bool
	logger              *slog.Logger
}

// NewEngine constructs an engine. One engine instance serves the whole
// application; guards and call sites receive it by injection.
func NewEngine(svc Service, repo tokens.Repository, store *state.Store, authn ceremony.Authenticator, opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		svc:                 svc,
		tokens:              repo,
		state:               store,
		authn:               authn,
		passkeySecondFactor: opts.PasskeySecondFactor,
		logger:              logger.With("component", "session"),
	}
}

// Current returns the current identity, or nil when logged out.
func (e *Engine) Current() *identity.Identity {
	return e.state.Current()
}

// Start revalidates a stored token at process start. With no stored token it
// does nothing: no network round trip is made and the state stays nil.
func (e *Engine) Start(ctx context.Context) error {
	token, err := e.tokens.Load(ctx)
	if errors.Is(err, tokens.ErrNoToken) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("loading stored token: %w", err)
	}

	if claims, err := tokens.Inspect(token); err == nil {
		e.logger.Debug("revalidating stored token", "subject", claims.Subject, "expires_at", claims.ExpiresAt)
	}
	return e.Revalidate(ctx)
}

// Register forwards registration data to the identity service. It never
// establishes a session — the deployment typically requires email
// verification before login succeeds.
func (e *Engine) Register(ctx context.Context, profile api.RegistrationProfile) error {
	_, err := e.svc.Register(ctx, profile)
	if err != nil {
		return err
	}
	e.logger.Info("account registered", "username", profile.Username)
	return nil
}

// Login exchanges credentials for a session. On success the token is saved
// and the identity set in one step — guards never observe an intermediate
// state. On failure the session is left exactly as it was.
func (e *Engine) Login(ctx context.Context, identifier, secret, otp string) (*identity.Identity, error) {
	env, err := e.svc.Login(ctx, api.LoginRequest{Identifier: identifier, Password: secret, OTP: otp})
	if err != nil {
		return nil, err
	}
	if err := e.establish(ctx, env); err != nil {
		return nil, err
	}
	e.logger.Info("login successful", "identifier", identifier)
	return env.User, nil
}

// Revalidate confirms the stored token against the server and replaces the
// identity with the authoritative copy. Any failure (expired, revoked,
// malformed, or transport) clears the token and nulls the identity, so a
// restart resolves to exactly one of logged-in or logged-out within this
// single round trip.
//
// Concurrent revalidations are not fenced: the last response to arrive wins
// the state write, and every response is an equally authoritative read of
// server truth.
func (e *Engine) Revalidate(ctx context.Context) error {
	token, err := e.tokens.Load(ctx)
	if errors.Is(err, tokens.ErrNoToken) {
		e.state.Set(nil)
		return nil
	}
	if err != nil {
		return fmt.Errorf("loading stored token: %w", err)
	}

	env, err := e.svc.VerifyToken(ctx, token)
	if err != nil {
		e.logger.Warn("token revalidation failed", "error", err)
		e.invalidate(ctx)
		return err
	}
	if env.User == nil {
		e.logger.Warn("token revalidation returned no identity")
		e.invalidate(ctx)
		return &api.ServiceError{Message: "no identity returned on token verification"}
	}

	e.state.Set(env.User)
	return nil
}

// Logout clears the token and identity unconditionally. Idempotent, never
// fails.
func (e *Engine) Logout(ctx context.Context) {
	e.invalidate(ctx)
	e.logger.Info("logged out")
}

// GenerateSecondFactorSecret asks the server for an OTP shared secret and a
// scannable enrollment URI.
func (e *Engine) GenerateSecondFactorSecret(ctx context.Context) (*api.SecondFactorSecret, error) {
	token, err := e.requireToken(ctx)
	if err != nil {
		return nil, err
	}
	return e.svc.GenerateSecondFactorSecret(ctx, token)
}

// VerifyAndEnableSecondFactor validates a one-time code server-side and, on
// success, revalidates so the identity's second-factor flag reflects server
// truth.
func (e *Engine) VerifyAndEnableSecondFactor(ctx context.Context, code string) error {
	token, err := e.requireToken(ctx)
	if err != nil {
		return err
	}
	if err := e.svc.VerifyAndEnableSecondFactor(ctx, token, code); err != nil {
		return err
	}
	e.logger.Info("second factor enabled")
	return e.refresh(ctx, "second-factor enrollment")
}

// DisableSecondFactor turns the second factor off and revalidates.
func (e *Engine) DisableSecondFactor(ctx context.Context) error {
	token, err := e.requireToken(ctx)
	if err != nil {
		return err
	}
	if err := e.svc.DisableSecondFactor(ctx, token); err != nil {
		return err
	}
	e.logger.Info("second factor disabled")
	return e.refresh(ctx, "second-factor disable")
}

// ForgotPassword requests a password reset email. Stateless.
func (e *Engine) ForgotPassword(ctx context.Context, email string) error {
	return e.svc.ForgotPassword(ctx, email)
}

// ResetPassword completes a password reset using a token from email. Stateless.
func (e *Engine) ResetPassword(ctx context.Context, resetToken, newPassword string) error {
	return e.svc.ResetPassword(ctx, resetToken, newPassword)
}

// establish atomically adopts a (token, identity) pair returned by the
// server. The state write happens only after the token is durably saved, so
// a guard that sees an identity can rely on the token being present.
func (e *Engine) establish(ctx context.Context, env *api.Envelope) error {
	if env.Token == "" || env.User == nil {
		return &api.ServiceError{Message: "incomplete login response"}
	}
	if err := e.tokens.Save(ctx, env.Token); err != nil {
		return fmt.Errorf("saving session token: %w", err)
	}
	e.state.Set(env.User)
	return nil
}

// invalidate clears the token and nulls the identity. Clear failures are
// logged, not surfaced: the in-memory session is gone either way and a stale
// slot is re-cleared by the next failing revalidation.
func (e *Engine) invalidate(ctx context.Context) {
	if err := e.tokens.Clear(ctx); err != nil {
		e.logger.Error("failed to clear stored token", "error", err)
	}
	e.state.Set(nil)
}

// refresh revalidates after an operation that changed server-side identity
// facts, wrapping the failure with the operation for context.
func (e *Engine) refresh(ctx context.Context, after string) error {
	if err := e.Revalidate(ctx); err != nil {
		return fmt.Errorf("refreshing identity after %s: %w", after, err)
	}
	return nil
}

// requireToken loads the stored token or reports ErrNotAuthenticated.
func (e *Engine) requireToken(ctx context.Context) (string, error) {
	token, err := e.tokens.Load(ctx)
	if errors.Is(err, tokens.ErrNoToken) {
		return "", ErrNotAuthenticated
	}
	if err != nil {
		return "", fmt.Errorf("loading stored token: %w", err)
	}
	return token, nil
}
