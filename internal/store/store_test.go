package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	dbconfig "github.com/classrelay/relay/pkg/database"
	"github.com/classrelay/relay/pkg/interfaces"
	"github.com/classrelay/relay/pkg/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	cfg := dbconfig.DefaultConfig()
	cfg.DatabasePath = filepath.Join(t.TempDir(), "relay.db")

	s, err := Open(cfg)
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_SessionLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sess := &types.Session{
		ID:              "sess-1",
		ClassCode:       "ABC123",
		TeacherID:       "teacher-1",
		TeacherLanguage: "en",
		StartTime:       time.Now(),
		LastActivityAt:  time.Now(),
		IsActive:        true,
	}
	if err := s.CreateSession(ctx, sess); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	got, err := s.GetSession(ctx, "sess-1")
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if got.TeacherID != "teacher-1" {
		t.Errorf("expected teacher-1, got %s", got.TeacherID)
	}

	if err := s.IncrementStudentsCount(ctx, "sess-1", 3); err != nil {
		t.Fatalf("IncrementStudentsCount failed: %v", err)
	}
	got, _ = s.GetSession(ctx, "sess-1")
	if got.StudentsCount != 3 {
		t.Errorf("expected students_count 3, got %d", got.StudentsCount)
	}

	byTeacher, err := s.GetSessionByTeacher(ctx, "teacher-1")
	if err != nil {
		t.Fatalf("GetSessionByTeacher failed: %v", err)
	}
	if byTeacher.ID != "sess-1" {
		t.Errorf("expected sess-1, got %s", byTeacher.ID)
	}

	now := time.Now()
	got.IsActive = false
	got.EndTime = &now
	got.Quality = types.QualityReal
	if err := s.UpdateSession(ctx, got); err != nil {
		t.Fatalf("UpdateSession failed: %v", err)
	}

	updated, _ := s.GetSession(ctx, "sess-1")
	if updated.IsActive {
		t.Error("expected session to be inactive after update")
	}
	if updated.Quality != types.QualityReal {
		t.Errorf("expected quality %q, got %q", types.QualityReal, updated.Quality)
	}
}

func TestStore_GetSession_NotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetSession(context.Background(), "nonexistent")
	if err != interfaces.ErrSessionNotFound {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestStore_ClassroomCodeLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sess := &types.Session{
		ID: "sess-2", ClassCode: "XYZ789", TeacherID: "teacher-2", TeacherLanguage: "es",
		StartTime: time.Now(), LastActivityAt: time.Now(), IsActive: true,
	}
	if err := s.CreateSession(ctx, sess); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	code := &types.ClassroomCode{
		Code: "XYZ789", SessionID: "sess-2", CreatedAt: time.Now(),
		LastActivity: time.Now(), ExpiresAt: time.Now().Add(2 * time.Hour),
	}
	if err := s.SaveClassroomCode(ctx, code); err != nil {
		t.Fatalf("SaveClassroomCode failed: %v", err)
	}

	got, err := s.GetClassroomCode(ctx, "XYZ789")
	if err != nil {
		t.Fatalf("GetClassroomCode failed: %v", err)
	}
	if got.SessionID != "sess-2" {
		t.Errorf("expected sess-2, got %s", got.SessionID)
	}

	if err := s.SetTeacherConnected(ctx, "sess-2", true); err != nil {
		t.Fatalf("SetTeacherConnected failed: %v", err)
	}
	got, _ = s.GetClassroomCode(ctx, "XYZ789")
	if !got.TeacherConnected {
		t.Error("expected teacher_connected to be true")
	}

	bySession, err := s.GetClassroomCodeBySession(ctx, "sess-2")
	if err != nil {
		t.Fatalf("GetClassroomCodeBySession failed: %v", err)
	}
	if bySession.Code != "XYZ789" {
		t.Errorf("expected XYZ789, got %s", bySession.Code)
	}
}

func TestStore_DeleteExpiredClassroomCodes(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sess := &types.Session{
		ID: "sess-3", ClassCode: "OLD111", TeacherID: "teacher-3", TeacherLanguage: "fr",
		StartTime: time.Now(), LastActivityAt: time.Now(), IsActive: true,
	}
	_ = s.CreateSession(ctx, sess)

	expired := &types.ClassroomCode{
		Code: "OLD111", SessionID: "sess-3", CreatedAt: time.Now().Add(-3 * time.Hour),
		LastActivity: time.Now().Add(-3 * time.Hour), ExpiresAt: time.Now().Add(-time.Hour),
	}
	if err := s.SaveClassroomCode(ctx, expired); err != nil {
		t.Fatalf("SaveClassroomCode failed: %v", err)
	}

	n, err := s.DeleteExpiredClassroomCodes(ctx, time.Now().Unix())
	if err != nil {
		t.Fatalf("DeleteExpiredClassroomCodes failed: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 deleted code, got %d", n)
	}

	if _, err := s.GetClassroomCode(ctx, "OLD111"); err != interfaces.ErrCodeNotFound {
		t.Errorf("expected ErrCodeNotFound, got %v", err)
	}
}

func TestStore_UserLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := &types.User{ID: "user-1", Username: "ms-rivera", PasswordHash: "hashed"}
	if err := s.CreateUser(ctx, u); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	got, err := s.GetUserByUsername(ctx, "ms-rivera")
	if err != nil {
		t.Fatalf("GetUserByUsername failed: %v", err)
	}
	if got.ID != "user-1" {
		t.Errorf("expected user-1, got %s", got.ID)
	}

	if _, err := s.GetUserByUsername(ctx, "nobody"); err != interfaces.ErrUserNotFound {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
}

func TestStore_CountActiveSessions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		sess := &types.Session{
			ID: "active-" + string(rune('a'+i)), ClassCode: "C", TeacherID: "t", TeacherLanguage: "en",
			StartTime: time.Now(), LastActivityAt: time.Now(), IsActive: true,
		}
		if err := s.CreateSession(ctx, sess); err != nil {
			t.Fatalf("CreateSession failed: %v", err)
		}
	}

	count, err := s.CountActiveSessions(ctx)
	if err != nil {
		t.Fatalf("CountActiveSessions failed: %v", err)
	}
	if count != 3 {
		t.Errorf("expected 3 active sessions, got %d", count)
	}
}
