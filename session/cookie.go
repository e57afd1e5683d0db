package session

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strings"
)

const signedPrefix = "s:"

// SignID produces the cookie value for a session id: "s:<id>.<mac>", where
// mac is the unpadded base64 HMAC-SHA256 of id under secret.
func SignID(id string, secret []byte) string {
	return signedPrefix + id + "." + mac(id, secret)
}

// UnsignID verifies a cookie value produced by SignID and returns the id.
func UnsignID(value string, secret []byte) (string, bool) {
	if !strings.HasPrefix(value, signedPrefix) {
		return "", false
	}
	value = value[len(signedPrefix):]

	dot := strings.LastIndexByte(value, '.')
	if dot <= 0 {
		return "", false
	}
	id, sig := value[:dot], value[dot+1:]

	if !hmac.Equal([]byte(sig), []byte(mac(id, secret))) {
		return "", false
	}
	return id, true
}

func mac(id string, secret []byte) string {
	h := hmac.New(sha256.New, secret)
	h.Write([]byte(id))
	return base64.RawStdEncoding.EncodeToString(h.Sum(nil))
}
