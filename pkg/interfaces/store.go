package interfaces

import (
	"context"

	"github.com/classrelay/relay/pkg/types"
)

// SessionRepository is the durable-store contract spec.md §1 and §3
// describe: sessions, classroom codes, transcripts, translations, and
// teacher user records. The core holds only IDs into this store, never a
// direct pointer into it (spec.md §3 ownership rule).
type SessionRepository interface {
	CreateSession(ctx context.Context, s *types.Session) error
	GetSession(ctx context.Context, sessionID string) (*types.Session, error)
	// GetSessionByTeacher returns the most recent session owned by
	// teacherID that is still active, or ErrSessionNotFound.
	GetSessionByTeacher(ctx context.Context, teacherID string) (*types.Session, error)
	UpdateSession(ctx context.Context, s *types.Session) error

	IncrementStudentsCount(ctx context.Context, sessionID string, delta int) error
	IncrementTotalTranslations(ctx context.Context, sessionID string, delta int) error
	TouchLastActivity(ctx context.Context, sessionID string) error

	SaveClassroomCode(ctx context.Context, c *types.ClassroomCode) error
	GetClassroomCode(ctx context.Context, code string) (*types.ClassroomCode, error)
	GetClassroomCodeBySession(ctx context.Context, sessionID string) (*types.ClassroomCode, error)
	TouchClassroomCode(ctx context.Context, code string) error
	SetTeacherConnected(ctx context.Context, sessionID string, connected bool) error
	DeleteExpiredClassroomCodes(ctx context.Context, now int64) (int, error)

	AppendTranscript(ctx context.Context, t *types.Transcript) error
	AppendTranslation(ctx context.Context, t *types.Translation) error

	GetUserByUsername(ctx context.Context, username string) (*types.User, error)
	CreateUser(ctx context.Context, u *types.User) error

	// CountActiveSessions reports durable active-session count, kept
	// separate from any in-memory live-peer count (spec.md §9 open
	// question on activeConnections vs activeSessions).
	CountActiveSessions(ctx context.Context) (int, error)

	Close() error
}
