// Package auth issues and verifies the bearer tokens a teacher client
// presents on connect, backed by the durable users table and hashed with
// bcrypt the way the pack's chat-relay example hashes its own operator
// accounts.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/classrelay/relay/pkg/interfaces"
	"github.com/classrelay/relay/pkg/types"
)

type tokenRecord struct {
	teacherID string
	expiresAt time.Time
}

// Authenticator implements interfaces.TeacherAuthenticator, backed by an
// in-memory token table (cheap to check on every connect) on top of a
// durable username/password store.
type Authenticator struct {
	repo interfaces.SessionRepository
	ttl  time.Duration

	mu     sync.RWMutex
	tokens map[string]tokenRecord
}

func NewAuthenticator(repo interfaces.SessionRepository, ttl time.Duration) *Authenticator {
	return &Authenticator{
		repo:   repo,
		ttl:    ttl,
		tokens: make(map[string]tokenRecord),
	}
}

// Register creates a new teacher account with a bcrypt-hashed password.
func (a *Authenticator) Register(ctx context.Context, username, password string) error {
	if _, err := a.repo.GetUserByUsername(ctx, username); err == nil {
		return ErrUsernameTaken
	} else if !errors.Is(err, interfaces.ErrUserNotFound) {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	return a.repo.CreateUser(ctx, &types.User{
		ID:           uuid.New().String(),
		Username:     username,
		PasswordHash: string(hash),
	})
}

// Login checks username/password against the durable store and mints a
// bearer token valid for ttl.
func (a *Authenticator) Login(ctx context.Context, username, password string) (string, error) {
	user, err := a.repo.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, interfaces.ErrUserNotFound) {
			return "", ErrInvalidCredentials
		}
		return "", err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}

	token, err := randomToken()
	if err != nil {
		return "", err
	}

	a.mu.Lock()
	a.tokens[token] = tokenRecord{teacherID: user.ID, expiresAt: time.Now().Add(a.ttl)}
	a.mu.Unlock()

	return token, nil
}

// Verify implements interfaces.TeacherAuthenticator.
func (a *Authenticator) Verify(ctx context.Context, bearerToken string) (string, error) {
	a.mu.RLock()
	record, ok := a.tokens[bearerToken]
	a.mu.RUnlock()

	if !ok {
		return "", ErrInvalidToken
	}
	if time.Now().After(record.expiresAt) {
		a.mu.Lock()
		delete(a.tokens, bearerToken)
		a.mu.Unlock()
		return "", ErrInvalidToken
	}
	return record.teacherID, nil
}

// CleanupExpired purges expired tokens from memory.
func (a *Authenticator) CleanupExpired() int {
	now := time.Now()
	removed := 0

	a.mu.Lock()
	for token, record := range a.tokens {
		if now.After(record.expiresAt) {
			delete(a.tokens, token)
			removed++
		}
	}
	a.mu.Unlock()

	return removed
}

// RunCleanupLoop sweeps expired tokens every interval until ctx is done.
func (a *Authenticator) RunCleanupLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.CleanupExpired()
		case <-ctx.Done():
			return
		}
	}
}

func randomToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

var _ interfaces.TeacherAuthenticator = (*Authenticator)(nil)
