package session

import (
	"context"
	"testing"
	"time"

	"github.com/classrelay/relay/internal/testutil"
	"github.com/classrelay/relay/pkg/types"
)

func TestService_CreateAndGet(t *testing.T) {
	repo := testutil.NewFakeStore()
	svc := NewService(repo, 2*time.Minute)
	ctx := context.Background()

	sess, err := svc.CreateSession(ctx, "teacher-1", "en")
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if !sess.IsActive {
		t.Error("expected new session to be active")
	}

	got, err := svc.Get(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.TeacherID != "teacher-1" {
		t.Errorf("expected teacher-1, got %s", got.TeacherID)
	}
}

func TestService_FindActiveByTeacher(t *testing.T) {
	repo := testutil.NewFakeStore()
	svc := NewService(repo, time.Minute)
	ctx := context.Background()

	created, _ := svc.CreateSession(ctx, "teacher-2", "fr")

	found, err := svc.FindActiveByTeacher(ctx, "teacher-2")
	if err != nil {
		t.Fatalf("FindActiveByTeacher failed: %v", err)
	}
	if found.ID != created.ID {
		t.Errorf("expected %s, got %s", created.ID, found.ID)
	}

	if _, err := svc.FindActiveByTeacher(ctx, "ghost"); err != ErrNoActiveSession {
		t.Errorf("expected ErrNoActiveSession, got %v", err)
	}
}

func TestService_EndSession_Idempotent(t *testing.T) {
	repo := testutil.NewFakeStore()
	svc := NewService(repo, time.Minute)
	ctx := context.Background()

	sess, _ := svc.CreateSession(ctx, "teacher-3", "de")
	_ = svc.IncrementStudents(ctx, sess.ID, 2)
	_ = svc.IncrementTranslations(ctx, sess.ID, 5)

	ended, err := svc.EndSession(ctx, sess.ID)
	if err != nil {
		t.Fatalf("EndSession failed: %v", err)
	}
	if ended.IsActive {
		t.Error("expected session to be inactive after EndSession")
	}

	if _, err := svc.EndSession(ctx, sess.ID); err != ErrSessionAlreadyEnded {
		t.Errorf("expected ErrSessionAlreadyEnded, got %v", err)
	}
}

func TestService_BeginDrainAndCancel(t *testing.T) {
	repo := testutil.NewFakeStore()
	svc := NewService(repo, 30*time.Millisecond)
	ctx := context.Background()
	sess, _ := svc.CreateSession(ctx, "teacher-4", "en")

	fired := make(chan struct{}, 1)
	svc.BeginDrain(sess.ID, func() { fired <- struct{}{} })
	svc.CancelDrain(sess.ID)

	select {
	case <-fired:
		t.Fatal("drain callback fired after cancellation")
	case <-time.After(80 * time.Millisecond):
	}
}

func TestService_BeginDrain_FiresOnExpiry(t *testing.T) {
	repo := testutil.NewFakeStore()
	svc := NewService(repo, 20*time.Millisecond)
	ctx := context.Background()
	sess, _ := svc.CreateSession(ctx, "teacher-5", "en")

	fired := make(chan struct{}, 1)
	svc.BeginDrain(sess.ID, func() { fired <- struct{}{} })

	select {
	case <-fired:
	case <-time.After(200 * time.Millisecond):
		t.Fatal("drain callback never fired")
	}
}

func TestClassifyQuality(t *testing.T) {
	start := time.Now()

	tests := []struct {
		name    string
		sess    *types.Session
		quality string
	}{
		{
			name: "too short",
			sess: &types.Session{
				StartTime: start,
				EndTime:   timePtr(start.Add(10 * time.Second)),
			},
			quality: types.QualityTooShort,
		},
		{
			name: "no students",
			sess: &types.Session{
				StartTime: start,
				EndTime:   timePtr(start.Add(5 * time.Minute)),
			},
			quality: types.QualityNoStudents,
		},
		{
			name: "no activity",
			sess: &types.Session{
				StartTime:     start,
				EndTime:       timePtr(start.Add(5 * time.Minute)),
				StudentsCount: 3,
			},
			quality: types.QualityNoActivity,
		},
		{
			name: "real",
			sess: &types.Session{
				StartTime:         start,
				EndTime:           timePtr(start.Add(10 * time.Minute)),
				StudentsCount:     3,
				TotalTranslations: 12,
				LastActivityAt:    start.Add(9 * time.Minute),
			},
			quality: types.QualityReal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			quality, _ := ClassifyQuality(tt.sess)
			if quality != tt.quality {
				t.Errorf("expected %s, got %s", tt.quality, quality)
			}
		})
	}
}

func timePtr(t time.Time) *time.Time { return &t }
