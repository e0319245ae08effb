// ABOUTME: WebAuthn ceremony adapter wrapping platform create/get credential operations
// ABOUTME: Normalizes binary authenticator fields into URL-safe base64 text for the server

package ceremony

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/go-webauthn/webauthn/protocol"
)

// ErrCancelled is returned when the user or browser aborts a ceremony before
// it resolves. Timeouts surface as the same class. Never retried.
var ErrCancelled = errors.New("ceremony cancelled")

// ErrUnsupportedShape is returned by ToText for values that are neither
// text, raw binary, nor absent. Such input is a programming error.
var ErrUnsupportedShape = errors.New("unsupported value shape")

// Authenticator wraps the two platform WebAuthn operations. Both suspend
// until the user completes an out-of-band interaction with an authenticator
// (biometric, PIN, security key) or aborts it; aborts surface ErrCancelled.
// Options are server-issued and forwarded verbatim — the client never
// constructs or caches challenges.
type Authenticator interface {
	// Create runs the credential registration ceremony.
	Create(ctx context.Context, options *protocol.CredentialCreation) (*AttestationResult, error)
	// Get runs the credential assertion (login) ceremony.
	Get(ctx context.Context, options *protocol.CredentialAssertion) (*AssertionResult, error)
}

// AttestationResult is the raw outcome of a create-credential ceremony.
// Fields declared any may be text or raw binary depending on the platform;
// normalization resolves them to text.
type AttestationResult struct {
	ID                string
	RawID             any
	Type              string
	AttestationObject any
	ClientDataJSON    any
	Transports        []string
}

// AssertionResult is the raw outcome of a get-credential ceremony.
type AssertionResult struct {
	ID                string
	RawID             any
	Type              string
	AuthenticatorData any
	ClientDataJSON    any
	Signature         any
	UserHandle        any
}

// ToText normalizes an opaque authenticator field for transmission. Text
// passes through unchanged; raw binary is encoded as URL-safe base64 with
// padding stripped; absent values return ok=false. Any other shape is a
// programming error and is reported, not coerced.
func ToText(v any) (text string, ok bool, err error) {
	switch x := v.(type) {
	case nil:
		return "", false, nil
	case string:
		return x, true, nil
	case []byte:
		return base64.RawURLEncoding.EncodeToString(x), true, nil
	default:
		return "", false, fmt.Errorf("%w: %T", ErrUnsupportedShape, v)
	}
}
