// Package password hashes and verifies account secrets with Argon2id. It is
// the engine's default PasswordVerifier.
//
// Hashes use the PHC string format
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<key>
//
// with unpadded base64; padded input is accepted on verify. [Argon2.NeedsUpgrade]
// reports hashes produced with weaker parameters.
//
// # What this package must NOT do
//
//   - Store or look up secrets.
//   - Import any other package of this module.
//   - Log plaintext or hash material.
package password
