package pgstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	sessionjwt "github.com/rkhaya/express-session-jwt"
)

const (
	selectByEmail = `SELECT id, email, username, role, password FROM users WHERE lower(email) = lower($1)`
	selectByID    = `SELECT id, email, username, role, password FROM users WHERE id = $1`
)

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store looks users up in a PostgreSQL "users" table with columns id, email,
// username, role and password (an encoded hash).
type Store struct {
	db querier
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{db: pool}
}

// Open connects a pool to dsn and checks it with Ping.
func Open(ctx context.Context, dsn string) (*Store, *pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("pgstore: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("pgstore: ping: %w", err)
	}
	return New(pool), pool, nil
}

func (s *Store) GetUserByIdentifier(ctx context.Context, identifier string) (sessionjwt.UserRecord, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return sessionjwt.UserRecord{}, sessionjwt.ErrUserNotFound
	}
	return s.scan(s.db.QueryRow(ctx, selectByEmail, identifier))
}

func (s *Store) GetUserByID(ctx context.Context, userID string) (sessionjwt.UserRecord, error) {
	if userID == "" {
		return sessionjwt.UserRecord{}, sessionjwt.ErrUserNotFound
	}
	return s.scan(s.db.QueryRow(ctx, selectByID, userID))
}

func (s *Store) scan(row pgx.Row) (sessionjwt.UserRecord, error) {
	var (
		rec      sessionjwt.UserRecord
		username *string
		role     *string
	)
	err := row.Scan(&rec.UserID, &rec.Identifier, &username, &role, &rec.PasswordHash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return sessionjwt.UserRecord{}, sessionjwt.ErrUserNotFound
		}
		return sessionjwt.UserRecord{}, fmt.Errorf("pgstore: query user: %w", err)
	}
	if username != nil {
		rec.DisplayName = *username
	}
	if role != nil {
		rec.Role = *role
	}
	return rec, nil
}
