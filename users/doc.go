// Package users provides [sessionjwt.UserProvider] implementations: an
// in-memory map seeded from YAML and, in pgstore, a PostgreSQL lookup.
//
// Both return [sessionjwt.ErrUserNotFound] for unknown identities so login
// can reject them exactly like a wrong password.
package users
