// Package middleware adapts engine authentication to net/http.
//
// # Guards
//
//   - [Guard] runs any [Authenticator] and stores the [sessionjwt.AuthResult].
//   - [RequireCredential] accepts a bearer header or accessToken cookie and
//     never touches the store.
//   - [RequireSession] accepts a signed session cookie backed by the store.
//
// [RequestID] and [AccessLog] carry a correlation ID and emit one structured
// log line per request.
//
// # What this package must NOT do
//
//   - Parse or create JWTs directly.
//   - Access the store except through Engine session calls.
package middleware
