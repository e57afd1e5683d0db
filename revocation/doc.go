// Package revocation keeps one liveness marker per issued renewal credential.
//
// A marker lives at "<prefix>:<principal>:<credential id>" and its presence is
// what makes a renewal credential usable. Markers carry the credential's
// lifetime as TTL so abandoned credentials expire on their own.
//
// # Revoke-all strategies
//
// [ScanPrefix] enumerates the principal's keys with a keyspace scan and deletes
// them in batches. The scan is not a snapshot: a marker written while it runs
// may survive. [IndexedSet] additionally records every credential id in a
// per-principal set so revoke-all only touches the keys it names.
//
// # What this package must NOT do
//
//   - Parse or verify tokens.
//   - Retry failed store calls. Faults surface as kv.ErrUnavailable.
package revocation
