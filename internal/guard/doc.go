// Package guard provides navigation access decisions: the authentication
// guard sends anonymous users to the login route, the role guard sends
// under-privileged users to the authenticated home route. Guards only read
// session state; they never trigger network calls or mutate the session.
package guard
