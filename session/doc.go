// Package session provides cookie-backed server sessions stored in a kv.Store.
//
// # Binary encoding
//
// Sessions are stored as a compact binary record: a schema version byte,
// length-prefixed strings and big-endian timestamps. Unknown versions are
// rejected as corrupt.
//
// # Cookies
//
// The browser holds "s:<id>.<mac>" under [DefaultCookieName]; [SignID] and
// [UnsignID] produce and check the MAC.
//
// # What this package must NOT do
//
//   - Import sessionjwt, jwt or revocation (no upward imports).
//   - Issue or verify bearer credentials.
//   - Store plaintext secrets in [Session] fields.
package session
