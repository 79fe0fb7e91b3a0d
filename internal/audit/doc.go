// Package audit implements async event dispatching for security-relevant operations.
//
// # Components
//
//   - [Sink]: interface for event consumers (channel, JSON writer, zap logger, no-op).
//   - [Dispatcher]: buffered async relay with drop-if-full or block-if-full semantics.
//     It masks the client IP before an event is queued and reports drops through
//     the OnDrop hook, which the engine binds to its metrics.
//   - [Event]: structured audit record carrying a typed [Decision].
//
// # Architecture boundaries
//
// This package owns event buffering and sink delivery. It does NOT decide which events
// to emit; the Engine and flow functions do.
//
// # What this package must NOT do
//
//   - Filter or suppress events based on business logic.
//   - Import authguard or any sibling internal package.
//   - Perform network I/O beyond what a caller-supplied Sink does.
package audit
