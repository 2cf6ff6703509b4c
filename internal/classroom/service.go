// Package classroom generates and resolves the short codes students use
// to join a teacher's session. The in-memory cache mirrors the
// map-plus-mutex-plus-periodic-cleanup shape the teacher uses for its
// request rate limiter, here keyed by code instead of by client.
package classroom

import (
	"context"
	"crypto/rand"
	"log"
	"sync"
	"time"

	"github.com/classrelay/relay/pkg/interfaces"
	"github.com/classrelay/relay/pkg/types"
)

const codeCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
const codeLength = 6
const maxGenerateAttempts = 10

// Service issues classroom codes backed by the durable store, caching
// resolved codes in memory so the hot path (a student joining) does not
// hit SQLite on every lookup.
type Service struct {
	repo interfaces.SessionRepository
	ttl  time.Duration

	mu    sync.RWMutex
	cache map[string]*types.ClassroomCode
}

func NewService(repo interfaces.SessionRepository, ttl time.Duration) *Service {
	return &Service{
		repo:  repo,
		ttl:   ttl,
		cache: make(map[string]*types.ClassroomCode),
	}
}

// Generate mints a fresh code for sessionID, retrying on the rare
// collision against a live code.
func (s *Service) Generate(ctx context.Context, sessionID string) (*types.ClassroomCode, error) {
	var lastErr error
	for attempt := 0; attempt < maxGenerateAttempts; attempt++ {
		code, err := randomCode()
		if err != nil {
			return nil, err
		}

		if _, err := s.repo.GetClassroomCode(ctx, code); err == nil {
			continue // collision, try again
		}

		now := time.Now()
		record := &types.ClassroomCode{
			Code:         code,
			SessionID:    sessionID,
			CreatedAt:    now,
			LastActivity: now,
			ExpiresAt:    now.Add(s.ttl),
		}

		if err := s.repo.SaveClassroomCode(ctx, record); err != nil {
			lastErr = err
			continue
		}

		s.mu.Lock()
		s.cache[code] = record
		s.mu.Unlock()

		return record, nil
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, ErrCodeExpired
}

// EnsureCodeForSession returns sessionID's existing live code, or mints a
// fresh one if none exists yet or the prior one has expired (a teacher
// reconnecting past the grace window starts a new session, and with it a
// new code).
func (s *Service) EnsureCodeForSession(ctx context.Context, sessionID string) (*types.ClassroomCode, error) {
	existing, err := s.repo.GetClassroomCodeBySession(ctx, sessionID)
	if err == nil && time.Now().Before(existing.ExpiresAt) {
		s.mu.Lock()
		s.cache[existing.Code] = existing
		s.mu.Unlock()
		return existing, nil
	}
	return s.Generate(ctx, sessionID)
}

// Resolve returns the live classroom code record, checking the in-memory
// cache before falling back to the store.
func (s *Service) Resolve(ctx context.Context, code string) (*types.ClassroomCode, error) {
	s.mu.RLock()
	cached, ok := s.cache[code]
	s.mu.RUnlock()

	if ok {
		if time.Now().After(cached.ExpiresAt) {
			return nil, ErrCodeExpired
		}
		return cached, nil
	}

	record, err := s.repo.GetClassroomCode(ctx, code)
	if err != nil {
		return nil, ErrCodeNotFound
	}
	if time.Now().After(record.ExpiresAt) {
		return nil, ErrCodeExpired
	}

	s.mu.Lock()
	s.cache[code] = record
	s.mu.Unlock()

	return record, nil
}

// Touch records student/teacher activity against code without extending
// its expiry (expiry is fixed at creation, spec.md §4.2).
func (s *Service) Touch(ctx context.Context, code string) error {
	if err := s.repo.TouchClassroomCode(ctx, code); err != nil {
		return err
	}
	s.mu.Lock()
	if cached, ok := s.cache[code]; ok {
		cached.LastActivity = time.Now()
	}
	s.mu.Unlock()
	return nil
}

func (s *Service) SetTeacherConnected(ctx context.Context, sessionID string, connected bool) error {
	if err := s.repo.SetTeacherConnected(ctx, sessionID, connected); err != nil {
		return err
	}
	s.mu.Lock()
	for _, c := range s.cache {
		if c.SessionID == sessionID {
			c.TeacherConnected = connected
		}
	}
	s.mu.Unlock()
	return nil
}

// CleanupExpired purges expired codes from the store and the cache.
func (s *Service) CleanupExpired(ctx context.Context) (int, error) {
	n, err := s.repo.DeleteExpiredClassroomCodes(ctx, time.Now().Unix())
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	for code, record := range s.cache {
		if time.Now().After(record.ExpiresAt) {
			delete(s.cache, code)
		}
	}
	s.mu.Unlock()

	return n, nil
}

// RunCleanupLoop sweeps expired codes every interval until ctx is done.
func (s *Service) RunCleanupLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			n, err := s.CleanupExpired(ctx)
			if err != nil {
				log.Printf("classroom: cleanup sweep failed: %v", err)
				continue
			}
			if n > 0 {
				log.Printf("classroom: purged %d expired codes", n)
			}
		case <-ctx.Done():
			return
		}
	}
}

func randomCode() (string, error) {
	buf := make([]byte, codeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	out := make([]byte, codeLength)
	for i, b := range buf {
		out[i] = codeCharset[int(b)%len(codeCharset)]
	}
	return string(out), nil
}
