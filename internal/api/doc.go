// Package api is the HTTP client for the remote identity service.
//
// # Endpoints
//
// The client covers three surfaces under one base URL:
//
//   - /auth/...: registration, login, token revalidation, password reset,
//     one-time-code second factor, passkey ceremonies
//   - /users/...: account administration (list, fetch, update, delete,
//     password change)
//
// # Error taxonomy
//
// Remote failures map onto a small set of types callers can branch on:
//
//   - ErrInvalidCredentials: rejected login or token (HTTP 401)
//   - ErrInvalidCode: rejected one-time code on a 2FA endpoint
//   - ErrConflict: username or email already taken (HTTP 409)
//   - ValidationError: malformed input (HTTP 400)
//   - SecondFactorRequiredError: login needs a one-time code
//   - ServiceError: anything else, including transport failures (Status 0)
//
// Match with errors.Is for sentinels and errors.As for the typed errors.
package api
