// Package hashing implements the one-way, salted, deliberately slow hash used
// for secrets that must never be recovered: passwords and two-factor codes.
//
// # Output format
//
// Hashes are encoded as standard base64 of the salt followed by the Argon2id
// digest:
//
//	base64( salt | digest )
//
// Salt and digest lengths are fixed by [Config], so the envelope needs no
// delimiters. Two hashes of the same input never share a salt.
//
// # What this package must NOT do
//
//   - Use the reversible envelope cipher; tokens that must be read back live in
//     internal/envelope.
//   - Compare digests with anything other than a constant-time comparison.
//   - Log inputs or digests.
package hashing
