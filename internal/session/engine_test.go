// ABOUTME: Unit tests for the session engine lifecycle and error propagation
// ABOUTME: Uses a fake identity service and in-memory token repository

package session

import (
	"context"
	"sync"
	"testing"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/idfront/internal/api"
	"github.com/2389/idfront/internal/ceremony"
	"github.com/2389/idfront/internal/guard"
	"github.com/2389/idfront/internal/identity"
	"github.com/2389/idfront/internal/state"
	"github.com/2389/idfront/internal/tokens"
)

// memRepo is an in-memory token repository for engine tests.
type memRepo struct {
	mu    sync.Mutex
	token string
	has   bool
}

func (r *memRepo) Save(_ context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.token, r.has = token, true
	return nil
}

func (r *memRepo) Load(_ context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.has {
		return "", tokens.ErrNoToken
	}
	return r.token, nil
}

func (r *memRepo) Clear(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.token, r.has = "", false
	return nil
}

// fakeService scripts the remote identity service.
type fakeService struct {
	loginFn         func(api.LoginRequest) (*api.Envelope, error)
	verifyFn        func(token string) (*api.Envelope, error)
	registerFn      func(api.RegistrationProfile) (*api.Envelope, error)
	verifyCalls     int
	registerStartFn func() (*protocol.CredentialCreation, error)
	finishedPayload *ceremony.AttestationPayload
	loginStartFn    func(identifier string) (*protocol.CredentialAssertion, error)
	loginFinishFn   func(*ceremony.AssertionPayload) (*api.Envelope, error)
	enable2FAFn     func(code string) error
	disable2FAFn    func() error
	deletedCredID   string
}

func (s *fakeService) Register(_ context.Context, p api.RegistrationProfile) (*api.Envelope, error) {
	if s.registerFn != nil {
		return s.registerFn(p)
	}
	return &api.Envelope{Message: "registered"}, nil
}

func (s *fakeService) Login(_ context.Context, req api.LoginRequest) (*api.Envelope, error) {
	return s.loginFn(req)
}

func (s *fakeService) VerifyToken(_ context.Context, token string) (*api.Envelope, error) {
	s.verifyCalls++
	return s.verifyFn(token)
}

func (s *fakeService) ForgotPassword(context.Context, string) error       { return nil }
func (s *fakeService) ResetPassword(context.Context, string, string) error { return nil }

func (s *fakeService) GenerateSecondFactorSecret(context.Context, string) (*api.SecondFactorSecret, error) {
	return &api.SecondFactorSecret{Secret: "JBSWY3DP", OTPAuthURL: "otpauth://totp/x"}, nil
}

func (s *fakeService) VerifyAndEnableSecondFactor(_ context.Context, _ string, code string) error {
	if s.enable2FAFn != nil {
		return s.enable2FAFn(code)
	}
	return nil
}

func (s *fakeService) DisableSecondFactor(context.Context, string) error {
	if s.disable2FAFn != nil {
		return s.disable2FAFn()
	}
	return nil
}

func (s *fakeService) PasskeyRegisterStart(context.Context, string) (*protocol.CredentialCreation, error) {
	return s.registerStartFn()
}

func (s *fakeService) PasskeyRegisterFinish(_ context.Context, _ string, payload *ceremony.AttestationPayload, _ string) error {
	s.finishedPayload = payload
	return nil
}

func (s *fakeService) PasskeyLoginStart(_ context.Context, identifier string) (*protocol.CredentialAssertion, error) {
	return s.loginStartFn(identifier)
}

func (s *fakeService) PasskeyLoginFinish(_ context.Context, payload *ceremony.AssertionPayload) (*api.Envelope, error) {
	return s.loginFinishFn(payload)
}

func (s *fakeService) DeletePasskey(_ context.Context, _ string, credentialID string) error {
	s.deletedCredID = credentialID
	return nil
}

// fakeAuthenticator scripts the platform ceremony operations.
type fakeAuthenticator struct {
	createFn func(*protocol.CredentialCreation) (*ceremony.AttestationResult, error)
	getFn    func(*protocol.CredentialAssertion) (*ceremony.AssertionResult, error)
}

func (a *fakeAuthenticator) Create(_ context.Context, options *protocol.CredentialCreation) (*ceremony.AttestationResult, error) {
	return a.createFn(options)
}

func (a *fakeAuthenticator) Get(_ context.Context, options *protocol.CredentialAssertion) (*ceremony.AssertionResult, error) {
	return a.getFn(options)
}

type fixture struct {
	engine *Engine
	svc    *fakeService
	repo   *memRepo
	store  *state.Store
	authn  *fakeAuthenticator
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	f := &fixture{
		svc:   &fakeService{},
		repo:  &memRepo{},
		store: state.New(nil),
		authn: &fakeAuthenticator{},
	}
	f.engine = NewEngine(f.svc, f.repo, f.store, f.authn, opts)
	return f
}

func alice() *identity.Identity {
	return &identity.Identity{ID: "u1", Username: "alice", Roles: []string{"user"}}
}

func creationOptions() *protocol.CredentialCreation {
	opts := &protocol.CredentialCreation{}
	opts.Response.Challenge = protocol.URLEncodedBase64("challenge")
	return opts
}

func assertionOptions() *protocol.CredentialAssertion {
	opts := &protocol.CredentialAssertion{}
	opts.Response.Challenge = protocol.URLEncodedBase64("challenge")
	return opts
}

func TestStartWithoutTokenDoesNotRevalidate(t *testing.T) {
	f := newFixture(t, Options{})
	f.svc.verifyFn = func(string) (*api.Envelope, error) {
		t.Fatal("VerifyToken must not be called without a stored token")
		return nil, nil
	}

	require.NoError(t, f.engine.Start(context.Background()))

	assert.Zero(t, f.svc.verifyCalls)
	assert.Nil(t, f.engine.Current())
}

func TestStartRevalidatesStoredToken(t *testing.T) {
	f := newFixture(t, Options{})
	require.NoError(t, f.repo.Save(context.Background(), "stored-token"))
	f.svc.verifyFn = func(token string) (*api.Envelope, error) {
		assert.Equal(t, "stored-token", token)
		return &api.Envelope{User: alice()}, nil
	}

	require.NoError(t, f.engine.Start(context.Background()))

	require.NotNil(t, f.engine.Current())
	assert.Equal(t, "alice", f.engine.Current().Username)
}

func TestFailedRevalidationClearsEverything(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	require.NoError(t, f.repo.Save(ctx, "expired-token"))
	f.svc.verifyFn = func(string) (*api.Envelope, error) {
		return nil, &api.ServiceError{Status: 401, Message: "expired"}
	}

	err := f.engine.Start(ctx)
	require.Error(t, err)

	// Token cleared, identity nulled, both guards deny.
	_, loadErr := f.repo.Load(ctx)
	assert.ErrorIs(t, loadErr, tokens.ErrNoToken)
	assert.Nil(t, f.engine.Current())

	authGuard := guard.NewAuthGuard(f.engine, "/login")
	roleGuard := guard.NewRoleGuard(f.engine, "/dashboard")
	assert.False(t, authGuard.Check().Allowed)
	assert.False(t, roleGuard.Check([]string{"admin"}).Allowed)
}

func TestLoginSuccessEstablishesSession(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	f.svc.loginFn = func(req api.LoginRequest) (*api.Envelope, error) {
		assert.Equal(t, "alice", req.Identifier)
		return &api.Envelope{Token: "tok-1", User: alice()}, nil
	}

	// Observe transitions: nil (replay) then alice, with no intermediate state.
	var transitions []*identity.Identity
	unsubscribe := f.store.Subscribe(func(id *identity.Identity) {
		transitions = append(transitions, id)
	})
	defer unsubscribe()

	user, err := f.engine.Login(ctx, "alice", "correct", "")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)

	stored, err := f.repo.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tok-1", stored)

	require.Len(t, transitions, 2)
	assert.Nil(t, transitions[0])
	assert.Equal(t, "alice", transitions[1].Username)
}

func TestLoginFailureLeavesSessionUnchanged(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	// Establish a session first.
	f.svc.loginFn = func(api.LoginRequest) (*api.Envelope, error) {
		return &api.Envelope{Token: "tok-1", User: alice()}, nil
	}
	_, err := f.engine.Login(ctx, "alice", "correct", "")
	require.NoError(t, err)

	f.svc.loginFn = func(api.LoginRequest) (*api.Envelope, error) {
		return nil, api.ErrInvalidCredentials
	}
	_, err = f.engine.Login(ctx, "alice", "wrongpass", "")
	assert.ErrorIs(t, err, api.ErrInvalidCredentials)

	// Session is still whatever it was before the call.
	require.NotNil(t, f.engine.Current())
	assert.Equal(t, "alice", f.engine.Current().Username)
	stored, err := f.repo.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tok-1", stored)
}

func TestLoginSecondFactorRequiredPropagates(t *testing.T) {
	f := newFixture(t, Options{})
	f.svc.loginFn = func(req api.LoginRequest) (*api.Envelope, error) {
		if req.OTP == "" {
			return nil, &api.SecondFactorRequiredError{Identifier: req.Identifier}
		}
		return &api.Envelope{Token: "tok-1", User: alice()}, nil
	}

	_, err := f.engine.Login(context.Background(), "alice", "correct", "")
	var sfr *api.SecondFactorRequiredError
	require.ErrorAs(t, err, &sfr)
	assert.Equal(t, "alice", sfr.Identifier)
	assert.Nil(t, f.engine.Current())

	// Retry with the OTP succeeds.
	_, err = f.engine.Login(context.Background(), "alice", "correct", "123456")
	require.NoError(t, err)
	assert.NotNil(t, f.engine.Current())
}

func TestLoginThenRoleGuardDeniesToAuthenticatedDefault(t *testing.T) {
	f := newFixture(t, Options{})
	f.svc.loginFn = func(api.LoginRequest) (*api.Envelope, error) {
		return &api.Envelope{Token: "tok-1", User: alice()}, nil
	}

	_, err := f.engine.Login(context.Background(), "alice", "correct", "")
	require.NoError(t, err)

	d := guard.NewRoleGuard(f.engine, "/dashboard").Check([]string{"admin"})
	assert.False(t, d.Allowed)
	assert.Equal(t, "/dashboard", d.Redirect, "under-privileged user must not be sent to login")
}

func TestLogoutIsIdempotent(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	f.svc.loginFn = func(api.LoginRequest) (*api.Envelope, error) {
		return &api.Envelope{Token: "tok-1", User: alice()}, nil
	}
	_, err := f.engine.Login(ctx, "alice", "correct", "")
	require.NoError(t, err)

	f.engine.Logout(ctx)
	assert.Nil(t, f.engine.Current())
	_, loadErr := f.repo.Load(ctx)
	assert.ErrorIs(t, loadErr, tokens.ErrNoToken)

	// Logging out again is harmless.
	f.engine.Logout(ctx)
	assert.Nil(t, f.engine.Current())
}

func TestRegisterDoesNotAutoLogin(t *testing.T) {
	f := newFixture(t, Options{})
	f.svc.registerFn = func(p api.RegistrationProfile) (*api.Envelope, error) {
		assert.Equal(t, "alice", p.Username)
		return &api.Envelope{Message: "verification email sent"}, nil
	}

	err := f.engine.Register(context.Background(), api.RegistrationProfile{Username: "alice"})
	require.NoError(t, err)
	assert.Nil(t, f.engine.Current())
	_, loadErr := f.repo.Load(context.Background())
	assert.ErrorIs(t, loadErr, tokens.ErrNoToken)
}

func TestSecondFactorEnableTriggersRevalidate(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	require.NoError(t, f.repo.Save(ctx, "tok-1"))

	enabled := alice()
	enabled.SecondFactorEnabled = true
	f.svc.verifyFn = func(string) (*api.Envelope, error) {
		return &api.Envelope{User: enabled}, nil
	}

	require.NoError(t, f.engine.VerifyAndEnableSecondFactor(ctx, "123456"))
	assert.Equal(t, 1, f.svc.verifyCalls)
	require.NotNil(t, f.engine.Current())
	assert.True(t, f.engine.Current().SecondFactorEnabled)
}

func TestSecondFactorInvalidCode(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	require.NoError(t, f.repo.Save(ctx, "tok-1"))
	f.svc.enable2FAFn = func(string) error { return api.ErrInvalidCode }

	err := f.engine.VerifyAndEnableSecondFactor(ctx, "000000")
	assert.ErrorIs(t, err, api.ErrInvalidCode)
	assert.Zero(t, f.svc.verifyCalls, "no revalidation after a failed verification")
}

func TestSecondFactorOpsRequireSession(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	_, err := f.engine.GenerateSecondFactorSecret(ctx)
	assert.ErrorIs(t, err, ErrNotAuthenticated)
	assert.ErrorIs(t, f.engine.VerifyAndEnableSecondFactor(ctx, "123456"), ErrNotAuthenticated)
	assert.ErrorIs(t, f.engine.DisableSecondFactor(ctx), ErrNotAuthenticated)
	assert.ErrorIs(t, f.engine.RegisterPasskey(ctx, "laptop"), ErrNotAuthenticated)
	assert.ErrorIs(t, f.engine.DeletePasskey(ctx, "cred-1"), ErrNotAuthenticated)
}

func TestConcurrentRevalidationLastWriterWins(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	require.NoError(t, f.repo.Save(ctx, "tok-1"))

	older := alice()
	newer := alice()
	newer.Verified = true

	// First in-flight response applies, then a later-arriving response from an
	// earlier-issued call overwrites it. Both are authoritative reads; the
	// final state must be a complete identity either way, never a corrupt mix.
	responses := []*api.Envelope{{User: newer}, {User: older}}
	f.svc.verifyFn = func(string) (*api.Envelope, error) {
		env := responses[0]
		responses = responses[1:]
		return env, nil
	}

	require.NoError(t, f.engine.Revalidate(ctx))
	require.NoError(t, f.engine.Revalidate(ctx))

	got := f.engine.Current()
	require.NotNil(t, got)
	assert.Equal(t, older, got, "last response to arrive wins the state write")
}
