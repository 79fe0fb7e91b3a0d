// Package denylist stores blocked client IPs and the per-user history of IPs
// seen on successful activity.
//
// Block entries are versioned binary records under "ipb:<ip>". A timed entry
// carries a store TTL that mirrors its ExpiresAt, and reads also treat an
// entry past ExpiresAt as absent and delete it. Location history lives under
// "loc:<user>:<ip>" with a retention TTL.
//
// IPs are canonicalised with net/netip before they become keys, so
// "::ffff:10.0.0.1" and "10.0.0.1" share one entry.
package denylist
