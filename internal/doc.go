// Package internal holds helpers private to the module, currently the
// credential identifier generator.
//
// # Sub-packages
//
//   - audit — async audit event dispatch (Dispatcher + Sink)
//   - config — layered configuration loading (defaults, YAML, .env, environment)
//   - flows — result-returning orchestrators for login, rotation and logout
//   - httpapi — chi router and JSON handlers for the auth routes
//   - logger — zap logger construction
//   - rate — login failed-attempt limiter
//   - security — posture report derived from the engine configuration
//
// # What this package must NOT do
//
//   - Export types that appear in the public sessionjwt API.
//   - Be imported by any package outside this module.
package internal
