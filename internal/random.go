package internal

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
)

// CredentialID is the 128-bit random identifier embedded in every renewal
// credential and used as the second half of its revocation marker key.
type CredentialID [16]byte

// ErrInvalidCredentialID reports a malformed textual credential identifier.
var ErrInvalidCredentialID = errors.New("invalid credential id")

// NewCredentialID draws 128 bits from crypto/rand.
func NewCredentialID() (CredentialID, error) {
	var id CredentialID
	_, err := rand.Read(id[:])
	return id, err
}

func (c CredentialID) String() string {
	// base64url, no padding: never contains ':' so it is safe inside store keys.
	return base64.RawURLEncoding.EncodeToString(c[:])
}

// ParseCredentialID decodes the textual form produced by String. Only the
// canonical encoding is accepted.
func ParseCredentialID(s string) (CredentialID, error) {
	var id CredentialID

	raw, err := base64.RawURLEncoding.Strict().DecodeString(s)
	if err != nil {
		return id, ErrInvalidCredentialID
	}
	if len(raw) != len(id) {
		return id, ErrInvalidCredentialID
	}

	copy(id[:], raw)
	return id, nil
}
