// Package identity resolves the caller of a request into an Identity: the
// quota key, the optional user id used for history attribution, and the
// admission tier.
//
// Authenticated callers present a signed token either in the auth_token
// cookie or as a Bearer Authorization header. Callers without a valid token
// are guests keyed by their network address. Issuing tokens (login,
// password handling) happens elsewhere; this package only verifies them.
package identity
