// Package sessionjwt issues and rotates paired JWT credentials over a
// key-value store: a short-lived access credential that is verified by
// signature alone, and a long-lived renewal credential whose validity also
// requires a server-side revocation marker.
//
// Engine methods are safe to call from multiple goroutines after
// [Builder.Build].
//
// # Architecture boundaries
//
// sessionjwt is the public surface. It exposes [Engine], [Builder], [Config],
// the error taxonomy and value types. Flow orchestration, failed-login limiting
// and audit dispatch live under internal/. The credential codec is package
// jwt, marker bookkeeping is package revocation, the store contract is
// package kv.
//
// # What this package must NOT do
//
//   - Report a store fault as a credential rejection.
//   - Put credential strings or passwords into logs or audit events.
//   - Consult the store when validating an access credential.
//
// # Rotation
//
// Refresh verifies the presented renewal credential, checks and deletes its
// marker, mints a new pair and stores the new marker, in that order. The
// default check-then-delete lets two concurrent presentations both succeed;
// set RevocationConfig.ExactlyOnceRotation to make the delete itself the check.
package sessionjwt
