// Package jwt signs and verifies the two credential classes: short-lived access
// credentials and renewal credentials that carry a credential id.
//
// Each class has its own HS256 secret and its own [Manager]; a token minted for
// one class never verifies as the other because the secrets differ and the
// "typ" claim is checked. [Codec] pairs the two managers.
//
// # What this package must NOT do
//
//   - Touch any store. Revocation state lives in package revocation.
//   - Read configuration from the environment.
package jwt
