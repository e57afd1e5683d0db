// Package kv defines the key-value store contract shared by the revocation store,
// the login rate limiter, and the cookie session store, plus its two backends.
//
// # Backends
//
//   - [Redis] wraps a go-redis UniversalClient (standalone, sentinel or cluster).
//   - [Memory] wraps an in-process go-cache instance for single-node deployments
//     and tests.
//
// Wrap either backend with [WithTimeout] so every call carries a bounded deadline.
//
// # Error contract
//
// Missing keys surface as [ErrNotFound]. Every transport, timeout, or protocol
// fault surfaces as [ErrUnavailable] so callers can fail closed without
// inspecting backend-specific errors.
//
// # What this package must NOT do
//
//   - Interpret keys or values (key layout belongs to the callers).
//   - Retry failed calls; retry policy belongs to the caller.
package kv
