// Package device derives device fingerprints from request attributes and
// keeps the per-user registry of known devices.
//
// # Fingerprints
//
// A fingerprint is the lowercase hex SHA-256 of a canonical encoding of the
// request attributes: every field is written as a 4-byte big-endian length
// followed by its bytes, in the order user agent, accept language, IP, then
// client hints sorted by name. Length prefixes keep field boundaries
// unambiguous. The fingerprint is one-way and always 64 characters.
//
// # Registry
//
// Records live under "dev:<user>:<fingerprint>". The trusted flag is a
// separate marker under "devt:<user>:<fingerprint>" so a concurrent
// re-registration can never clear it.
//
// # What this package must NOT do
//
//   - Store raw request attributes.
//   - Reject a request because its device is unknown; callers decide.
package device
