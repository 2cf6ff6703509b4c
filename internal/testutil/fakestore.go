// Package testutil holds in-memory fakes shared across package tests,
// playing the role the teacher's tests/fixtures package does.
package testutil

import (
	"context"
	"sync"

	"github.com/classrelay/relay/pkg/interfaces"
	"github.com/classrelay/relay/pkg/types"
)

// FakeStore is an in-memory interfaces.SessionRepository for unit tests.
type FakeStore struct {
	mu sync.Mutex

	Sessions       map[string]*types.Session
	ClassroomCodes map[string]*types.ClassroomCode
	Users          map[string]*types.User
	Transcripts    []*types.Transcript
	Translations   []*types.Translation
}

func NewFakeStore() *FakeStore {
	return &FakeStore{
		Sessions:       make(map[string]*types.Session),
		ClassroomCodes: make(map[string]*types.ClassroomCode),
		Users:          make(map[string]*types.User),
	}
}

func (f *FakeStore) CreateSession(_ context.Context, s *types.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *s
	f.Sessions[s.ID] = &cp
	return nil
}

func (f *FakeStore) GetSession(_ context.Context, sessionID string) (*types.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.Sessions[sessionID]
	if !ok {
		return nil, interfaces.ErrSessionNotFound
	}
	cp := *s
	return &cp, nil
}

func (f *FakeStore) GetSessionByTeacher(_ context.Context, teacherID string) (*types.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.Sessions {
		if s.TeacherID == teacherID && s.IsActive {
			cp := *s
			return &cp, nil
		}
	}
	return nil, interfaces.ErrSessionNotFound
}

func (f *FakeStore) UpdateSession(_ context.Context, s *types.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.Sessions[s.ID]; !ok {
		return interfaces.ErrSessionNotFound
	}
	cp := *s
	f.Sessions[s.ID] = &cp
	return nil
}

func (f *FakeStore) IncrementStudentsCount(_ context.Context, sessionID string, delta int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.Sessions[sessionID]
	if !ok {
		return interfaces.ErrSessionNotFound
	}
	s.StudentsCount += delta
	return nil
}

func (f *FakeStore) IncrementTotalTranslations(_ context.Context, sessionID string, delta int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.Sessions[sessionID]
	if !ok {
		return interfaces.ErrSessionNotFound
	}
	s.TotalTranslations += delta
	return nil
}

func (f *FakeStore) TouchLastActivity(_ context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.Sessions[sessionID]
	if !ok {
		return interfaces.ErrSessionNotFound
	}
	_ = s
	return nil
}

func (f *FakeStore) SaveClassroomCode(_ context.Context, c *types.ClassroomCode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *c
	f.ClassroomCodes[c.Code] = &cp
	return nil
}

func (f *FakeStore) GetClassroomCode(_ context.Context, code string) (*types.ClassroomCode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.ClassroomCodes[code]
	if !ok {
		return nil, interfaces.ErrCodeNotFound
	}
	cp := *c
	return &cp, nil
}

func (f *FakeStore) GetClassroomCodeBySession(_ context.Context, sessionID string) (*types.ClassroomCode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.ClassroomCodes {
		if c.SessionID == sessionID {
			cp := *c
			return &cp, nil
		}
	}
	return nil, interfaces.ErrCodeNotFound
}

func (f *FakeStore) TouchClassroomCode(_ context.Context, code string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.ClassroomCodes[code]; !ok {
		return interfaces.ErrCodeNotFound
	}
	return nil
}

func (f *FakeStore) SetTeacherConnected(_ context.Context, sessionID string, connected bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.ClassroomCodes {
		if c.SessionID == sessionID {
			c.TeacherConnected = connected
		}
	}
	return nil
}

func (f *FakeStore) DeleteExpiredClassroomCodes(_ context.Context, now int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for code, c := range f.ClassroomCodes {
		if c.ExpiresAt.Unix() <= now {
			delete(f.ClassroomCodes, code)
			n++
		}
	}
	return n, nil
}

func (f *FakeStore) AppendTranscript(_ context.Context, t *types.Transcript) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Transcripts = append(f.Transcripts, t)
	return nil
}

func (f *FakeStore) AppendTranslation(_ context.Context, t *types.Translation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Translations = append(f.Translations, t)
	return nil
}

func (f *FakeStore) GetUserByUsername(_ context.Context, username string) (*types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.Users[username]
	if !ok {
		return nil, interfaces.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *FakeStore) CreateUser(_ context.Context, u *types.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *u
	f.Users[u.Username] = &cp
	return nil
}

func (f *FakeStore) CountActiveSessions(_ context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, s := range f.Sessions {
		if s.IsActive {
			n++
		}
	}
	return n, nil
}

func (f *FakeStore) Close() error { return nil }

var _ interfaces.SessionRepository = (*FakeStore)(nil)
