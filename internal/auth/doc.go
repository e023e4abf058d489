// Package auth provides credential issuance and verification for tollgate.
//
// # Credential Types
//
//   - API Keys: Opaque bearer tokens ("lt_" + 43 URL-safe characters) for
//     programmatic clients. Only the SHA-256 fingerprint is stored.
//
//   - Sessions: Server-side browser sessions. The raw token travels in an
//     HttpOnly cookie; the store holds its fingerprint. Expiry is fixed at
//     creation (24h, or 30d with remember-me) and is never extended.
//
//   - Passwords: argon2id PHC strings. Verify never distinguishes a wrong
//     password from a malformed hash.
//
//   - Verification tokens: short-lived HS256 JWTs that prove ownership of
//     an email address.
//
// # Failure Model
//
// Every "no identity" outcome is ErrInvalidCredential. Any other error
// returned by an authority is an infrastructure fault from the store and
// callers should treat it as such.
//
// # Construction
//
// Each authority is built with the store it reads from:
//
//	keys := auth.NewAPIKeyAuthority(st, "lt_")
//	sessions := auth.NewSessionAuthority(st)
//
// Authorities do not call one another. The gate package composes them.
package auth
