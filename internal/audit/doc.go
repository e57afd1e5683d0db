// Package audit implements async event dispatching for token lifecycle outcomes.
//
// # Components
//
//   - [Sink] is the event consumer contract (channel, JSON writer, zap, no-op).
//   - [Dispatcher] is a buffered async relay with drop-if-full or block-if-full semantics.
//   - [Event] is the structured record: timestamp, type, principal, credential ID, request ID, IP, metadata.
//
// # Architecture boundaries
//
// This package owns event buffering and sink delivery. It does NOT decide which events
// to emit; the Engine does.
//
// # What this package must NOT do
//
//   - Carry raw credential strings or passwords.
//   - Import the root package or any sibling internal package.
//   - Perform network I/O beyond what a caller-supplied Sink does.
package audit
