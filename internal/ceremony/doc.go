// Package ceremony bridges platform WebAuthn ceremonies and the wire format
// the identity service expects.
//
// The Authenticator interface runs create (registration) and get (login)
// ceremonies with server-issued options. Raw ceremony output carries binary
// fields whose concrete shape depends on the platform surface; the
// normalizers in this package convert every binary field to unpadded
// base64url text before anything is sent to the server.
//
// User aborts and platform refusals surface as ErrCancelled so callers can
// distinguish "the user changed their mind" from a failing server.
package ceremony
