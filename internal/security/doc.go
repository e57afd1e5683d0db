// Package security derives a posture report from an engine configuration:
// signing setup, credential lifetimes, password hashing cost, store
// transport and limiter state, plus human-readable warnings.
//
// # What this package must NOT do
//
//   - Read secrets back out; the report only states whether they differ.
package security
