// Package session owns the client-side authentication lifecycle.
//
// # Responsibilities
//
// The Engine is the single writer of session state. It coordinates four
// collaborators:
//
//   - api.Client: talks to the remote identity service
//   - tokens.Repository: durable bearer-token storage
//   - state.Store: in-memory identity with observer fan-out
//   - ceremony.Authenticator: platform WebAuthn surface
//
// All reads of "who is logged in" go through state.Store; all transitions
// (login, logout, revalidation, post-ceremony refresh) go through the Engine.
//
// # Lifecycle
//
// Start restores a prior session: it loads the stored token and revalidates
// it against the server. No stored token means a clean logged-out start with
// no network traffic. A failed revalidation clears both the stored token and
// the in-memory identity, so guards deny before any protected work runs.
//
// Login establishes a session atomically: the token is persisted before the
// identity becomes observable, so an observer reacting to a login always
// finds the token already stored.
//
// # Second factor
//
// When the server demands a one-time code, Login surfaces
// api.SecondFactorRequiredError carrying the identifier to retry with. The
// caller collects the code and calls Login again. Passkey login can be
// subjected to the same demand via Options.PasskeySecondFactor.
//
// # Concurrency
//
// Engine methods are safe for concurrent use. Concurrent revalidations
// resolve last-writer-wins; callers that need ordering should serialize
// their own calls.
package session
