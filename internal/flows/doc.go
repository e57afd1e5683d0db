// Package flows contains pure-function orchestrators for every Engine operation.
//
// Each flow function (RunLogin, RunRotate, RunLogout, RunValidate) accepts a
// typed dependency struct and returns a result value instead of an error: the
// result names the state the flow reached and, on failure, a failure kind the
// root package maps onto its public error taxonomy.
//
// # Architecture boundaries
//
// Flow functions coordinate calls to the token codec, revocation store, login
// limiter and user lookup. They do NOT own any of these resources; ownership
// stays with the Engine.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import sessionjwt (to avoid import cycles).
//   - Retry store calls. A store fault always ends the flow as a rejection.
package flows
