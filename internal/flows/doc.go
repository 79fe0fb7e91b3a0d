// Package flows contains the orchestrators behind the Engine's security
// flows: password reset, two-factor challenges, verification links and the
// login risk assessment.
//
// Each Run function accepts a typed dependency struct of funcs and returns
// results without side effects beyond those dependencies. The engine builds
// the structs with its stores, limiters and error mapping, so every error a
// flow returns is already an engine sentinel.
//
// # Ordering
//
// Every step runs the IP denylist check and its rate limits before any
// cryptographic work or user lookup.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import the root package (to avoid import cycles).
//   - Perform I/O directly. All I/O is mediated through the dependency funcs.
package flows
