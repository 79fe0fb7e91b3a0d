// Package token mints and parses opaque single-purpose security tokens.
//
// A token is a JSON claims document sealed by an [envelope.Sealer], so its
// contents are confidential and tamper-evident. Parse never reveals why a
// token was rejected beyond expired versus invalid.
//
// Single-use enforcement is not done here; callers mark the claims ID as
// consumed in their own store.
package token
