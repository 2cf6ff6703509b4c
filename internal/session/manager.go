// Package session owns the durable lifecycle of a classroom session:
// creation, activity tracking, the post-disconnect drain grace window, and
// end-of-session quality classification. It caches active sessions the
// way the teacher's Manager caches them, falling back to the store on a
// cache miss.
package session

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/classrelay/relay/pkg/interfaces"
	"github.com/classrelay/relay/pkg/types"
)

// minRealDuration is the shortest session the quality classifier counts
// as a genuine class rather than a test connection (spec.md §4.11).
const minRealDuration = 30 * time.Second

// Service implements the session lifecycle described in spec.md §4.
type Service struct {
	repo       interfaces.SessionRepository
	drainGrace time.Duration

	mu     sync.RWMutex
	active map[string]*types.Session // sessionID -> cached session

	timersMu sync.Mutex
	timers   map[string]*time.Timer // sessionID -> pending drain timer
}

func NewService(repo interfaces.SessionRepository, drainGrace time.Duration) *Service {
	return &Service{
		repo:       repo,
		drainGrace: drainGrace,
		active:     make(map[string]*types.Session),
		timers:     make(map[string]*time.Timer),
	}
}

// CreateSession starts a new session for teacherID, persists it, and
// caches it as active.
func (s *Service) CreateSession(ctx context.Context, teacherID, teacherLanguage string) (*types.Session, error) {
	now := time.Now()
	sess := &types.Session{
		ID:              uuid.New().String(),
		TeacherID:       teacherID,
		TeacherLanguage: teacherLanguage,
		StartTime:       now,
		LastActivityAt:  now,
		IsActive:        true,
	}

	if err := s.repo.CreateSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	s.mu.Lock()
	s.active[sess.ID] = sess
	s.mu.Unlock()

	log.Printf("session: created id=%s teacher=%s", sess.ID, teacherID)
	return sess, nil
}

// Get retrieves a session, preferring the in-memory cache.
func (s *Service) Get(ctx context.Context, sessionID string) (*types.Session, error) {
	s.mu.RLock()
	if sess, ok := s.active[sessionID]; ok {
		s.mu.RUnlock()
		return sess, nil
	}
	s.mu.RUnlock()

	return s.repo.GetSession(ctx, sessionID)
}

// FindActiveByTeacher returns teacherID's current live session, used when
// a teacher reconnects before the drain grace window elapses (spec.md
// §4.9).
func (s *Service) FindActiveByTeacher(ctx context.Context, teacherID string) (*types.Session, error) {
	s.mu.RLock()
	for _, sess := range s.active {
		if sess.TeacherID == teacherID {
			s.mu.RUnlock()
			return sess, nil
		}
	}
	s.mu.RUnlock()

	sess, err := s.repo.GetSessionByTeacher(ctx, teacherID)
	if err != nil {
		return nil, ErrNoActiveSession
	}
	return sess, nil
}

// TouchActivity bumps last-activity-at, used on every inbound frame that
// counts as session activity (spec.md §4.11's no_activity classification
// depends on this being current).
func (s *Service) TouchActivity(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	if sess, ok := s.active[sessionID]; ok {
		sess.LastActivityAt = time.Now()
	}
	s.mu.Unlock()

	return s.repo.TouchLastActivity(ctx, sessionID)
}

// IncrementStudents and IncrementTranslations keep the cached counters in
// sync with the store so end-of-session quality classification can read
// them without an extra round trip.
func (s *Service) IncrementStudents(ctx context.Context, sessionID string, delta int) error {
	s.mu.Lock()
	if sess, ok := s.active[sessionID]; ok {
		sess.StudentsCount += delta
	}
	s.mu.Unlock()
	return s.repo.IncrementStudentsCount(ctx, sessionID, delta)
}

func (s *Service) IncrementTranslations(ctx context.Context, sessionID string, delta int) error {
	s.mu.Lock()
	if sess, ok := s.active[sessionID]; ok {
		sess.TotalTranslations += delta
	}
	s.mu.Unlock()
	return s.repo.IncrementTotalTranslations(ctx, sessionID, delta)
}

// BeginDrain starts the grace timer the connection handler arms when a
// session's last student leaves while a teacher is still connected
// (spec.md §4.9). onExpire runs once drainGrace elapses unless CancelDrain
// is called for sessionID first; a second BeginDrain replaces the timer.
func (s *Service) BeginDrain(sessionID string, onExpire func()) {
	s.timersMu.Lock()
	defer s.timersMu.Unlock()

	if existing, ok := s.timers[sessionID]; ok {
		existing.Stop()
	}
	s.timers[sessionID] = time.AfterFunc(s.drainGrace, func() {
		s.timersMu.Lock()
		delete(s.timers, sessionID)
		s.timersMu.Unlock()
		onExpire()
	})
}

// CancelDrain stops a pending grace timer, called when a student joins
// or the teacher registers again within the window.
func (s *Service) CancelDrain(sessionID string) {
	s.timersMu.Lock()
	defer s.timersMu.Unlock()
	if existing, ok := s.timers[sessionID]; ok {
		existing.Stop()
		delete(s.timers, sessionID)
	}
}

// EndSession marks sessionID inactive, classifies its quality, and
// persists the result. Idempotent: ending an already-ended session
// returns ErrSessionAlreadyEnded without modifying anything further.
func (s *Service) EndSession(ctx context.Context, sessionID string) (*types.Session, error) {
	sess, err := s.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !sess.IsActive {
		return sess, ErrSessionAlreadyEnded
	}

	now := time.Now()
	sess.EndTime = &now
	sess.IsActive = false
	sess.Quality, sess.QualityReason = ClassifyQuality(sess)

	if err := s.repo.UpdateSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to end session: %w", err)
	}

	s.mu.Lock()
	delete(s.active, sessionID)
	s.mu.Unlock()

	s.CancelDrain(sessionID)

	log.Printf("session: ended id=%s quality=%s reason=%s", sess.ID, sess.Quality, sess.QualityReason)
	return sess, nil
}

// ClassifyQuality resolves the open question of how to score a finished
// session (spec.md §9): duration and activity are checked synchronously
// at end-of-session rather than deferred to a background job, since the
// classification only ever needs the fields already on the Session
// record.
func ClassifyQuality(sess *types.Session) (quality, reason string) {
	if sess.EndTime == nil {
		return types.QualityReal, ""
	}

	duration := sess.EndTime.Sub(sess.StartTime)
	switch {
	case duration < minRealDuration:
		return types.QualityTooShort, fmt.Sprintf("session lasted %s, under the %s minimum", duration.Round(time.Second), minRealDuration)
	case sess.StudentsCount == 0:
		return types.QualityNoStudents, "no students ever joined"
	case sess.TotalTranslations == 0:
		return types.QualityNoActivity, "no translations were produced"
	case sess.StudentsCount > 0 && sess.TotalTranslations > 0:
		return types.QualityReal, ""
	default:
		return types.QualityDead, "session ended in an unclassified state"
	}
}
