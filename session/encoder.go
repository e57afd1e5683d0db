package session

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const sessionFormatVersionCurrent = 1

const maxFieldLen = 255

// Encode serialises s. The session id is not part of the payload; it is the key.
func Encode(s *Session) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(64)

	buf.WriteByte(sessionFormatVersionCurrent)

	for _, field := range []struct {
		name  string
		value string
	}{
		{"userID", s.UserID},
		{"identifier", s.Identifier},
		{"displayName", s.DisplayName},
		{"role", s.Role},
	} {
		if len(field.value) > maxFieldLen {
			return nil, fmt.Errorf("%s too long", field.name)
		}
		buf.WriteByte(byte(len(field.value)))
		buf.WriteString(field.value)
	}

	if err := binary.Write(&buf, binary.BigEndian, s.CreatedAt); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, s.ExpiresAt); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Decode parses a payload produced by Encode.
func Decode(data []byte) (*Session, error) {
	if len(data) == 0 {
		return nil, ErrCorrupt
	}
	if data[0] != sessionFormatVersionCurrent {
		return nil, fmt.Errorf("%w: unsupported session schema version %d", ErrCorrupt, data[0])
	}

	r := bytes.NewReader(data[1:])
	s := &Session{SchemaVersion: data[0]}

	for _, dst := range []*string{&s.UserID, &s.Identifier, &s.DisplayName, &s.Role} {
		v, err := readString(r)
		if err != nil {
			return nil, err
		}
		*dst = v
	}

	if err := binary.Read(r, binary.BigEndian, &s.CreatedAt); err != nil {
		return nil, ErrCorrupt
	}
	if err := binary.Read(r, binary.BigEndian, &s.ExpiresAt); err != nil {
		return nil, ErrCorrupt
	}
	if r.Len() != 0 {
		return nil, ErrCorrupt
	}
	if s.UserID == "" {
		return nil, errors.Join(ErrCorrupt, errors.New("missing user id"))
	}

	return s, nil
}

func readString(r *bytes.Reader) (string, error) {
	n, err := r.ReadByte()
	if err != nil {
		return "", ErrCorrupt
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", ErrCorrupt
	}
	return string(b), nil
}
