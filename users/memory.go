package users

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	sessionjwt "github.com/rkhaya/express-session-jwt"
)

// ErrDuplicate is returned by Add for an identifier or ID already present.
var ErrDuplicate = errors.New("users: duplicate identifier")

// Memory is an in-process [sessionjwt.UserProvider]. Identifiers are matched
// case-insensitively.
type Memory struct {
	mu           sync.RWMutex
	byIdentifier map[string]sessionjwt.UserRecord
	byID         map[string]sessionjwt.UserRecord
}

func NewMemory() *Memory {
	return &Memory{
		byIdentifier: make(map[string]sessionjwt.UserRecord),
		byID:         make(map[string]sessionjwt.UserRecord),
	}
}

func normalize(identifier string) string {
	return strings.ToLower(strings.TrimSpace(identifier))
}

// Add stores rec. UserID, Identifier and PasswordHash are required.
func (m *Memory) Add(rec sessionjwt.UserRecord) error {
	if rec.UserID == "" || strings.TrimSpace(rec.Identifier) == "" || rec.PasswordHash == "" {
		return fmt.Errorf("%w: user id, identifier and password hash are required", sessionjwt.ErrValidation)
	}
	key := normalize(rec.Identifier)

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byIdentifier[key]; ok {
		return ErrDuplicate
	}
	if _, ok := m.byID[rec.UserID]; ok {
		return ErrDuplicate
	}
	m.byIdentifier[key] = rec
	m.byID[rec.UserID] = rec
	return nil
}

func (m *Memory) GetUserByIdentifier(_ context.Context, identifier string) (sessionjwt.UserRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.byIdentifier[normalize(identifier)]
	if !ok {
		return sessionjwt.UserRecord{}, sessionjwt.ErrUserNotFound
	}
	return rec, nil
}

func (m *Memory) GetUserByID(_ context.Context, userID string) (sessionjwt.UserRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.byID[userID]
	if !ok {
		return sessionjwt.UserRecord{}, sessionjwt.ErrUserNotFound
	}
	return rec, nil
}

// Len reports the number of stored users.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byID)
}

type seedFile struct {
	Users []struct {
		ID           string `yaml:"id"`
		Email        string `yaml:"email"`
		Username     string `yaml:"username"`
		Role         string `yaml:"role"`
		PasswordHash string `yaml:"password_hash"`
	} `yaml:"users"`
}

// LoadYAML reads a seed file of the form
//
//	users:
//	  - id: u1
//	    email: alice@example.com
//	    username: alice
//	    role: member
//	    password_hash: $argon2id$v=19$...
func LoadYAML(path string) (*Memory, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read user seed: %w", err)
	}
	var f seedFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse user seed: %w", err)
	}

	m := NewMemory()
	for i, u := range f.Users {
		err := m.Add(sessionjwt.UserRecord{
			UserID:       u.ID,
			Identifier:   u.Email,
			DisplayName:  u.Username,
			Role:         u.Role,
			PasswordHash: u.PasswordHash,
		})
		if err != nil {
			return nil, fmt.Errorf("user seed entry %d: %w", i, err)
		}
	}
	return m, nil
}
