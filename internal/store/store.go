// Package store is the durable SQLite-backed implementation of
// interfaces.SessionRepository. Writes funnel through a single goroutine
// (SQLite tolerates only one writer at a time); reads go straight to the
// connection pool since WAL mode lets them proceed concurrently with the
// writer.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	dbconfig "github.com/classrelay/relay/pkg/database"
	"github.com/classrelay/relay/pkg/interfaces"
	"github.com/classrelay/relay/pkg/types"
)

type writeOperation struct {
	run    func(*sql.DB) error
	result chan error
}

// Store implements interfaces.SessionRepository against SQLite.
type Store struct {
	db           *sql.DB
	writeChannel chan writeOperation
	shutdown     chan struct{}
	wg           sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// Open connects to SQLite, applies pragmas, runs the schema, and starts
// the writer goroutine.
func Open(cfg *dbconfig.Config) (*Store, error) {
	dsn := cfg.DatabasePath + "?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := dbconfig.ApplySQLiteOptimizations(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply sqlite optimizations: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	s := &Store{
		db:           db,
		writeChannel: make(chan writeOperation, 100),
		shutdown:     make(chan struct{}),
	}

	s.wg.Add(1)
	go s.writeLoop()

	return s, nil
}

func (s *Store) writeLoop() {
	defer s.wg.Done()
	for {
		select {
		case op := <-s.writeChannel:
			err := op.run(s.db)
			if err != nil {
				log.Printf("store: write failed, retrying in 5s: %v", err)
				time.Sleep(5 * time.Second)
				err = op.run(s.db)
				if err != nil {
					log.Printf("store: write failed after retry: %v", err)
				}
			}
			op.result <- err
		case <-s.shutdown:
			return
		}
	}
}

func (s *Store) executeWrite(run func(*sql.DB) error) error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return ErrStoreClosed
	}
	s.mu.RUnlock()

	result := make(chan error, 1)
	select {
	case s.writeChannel <- writeOperation{run: run, result: result}:
		return <-result
	case <-time.After(30 * time.Second):
		return ErrWriteTimeout
	case <-s.shutdown:
		return ErrStoreClosed
	}
}

func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	close(s.shutdown)
	s.wg.Wait()
	return s.db.Close()
}

func (s *Store) CreateSession(ctx context.Context, sess *types.Session) error {
	return s.executeWrite(func(db *sql.DB) error {
		_, err := db.ExecContext(ctx, `
			INSERT INTO sessions (id, class_code, teacher_id, teacher_language, students_count,
				total_translations, start_time, last_activity_at, end_time, is_active, quality, quality_reason)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			sess.ID, sess.ClassCode, sess.TeacherID, sess.TeacherLanguage, sess.StudentsCount,
			sess.TotalTranslations, sess.StartTime, sess.LastActivityAt, sess.EndTime, sess.IsActive,
			sess.Quality, sess.QualityReason,
		)
		if err != nil {
			return fmt.Errorf("failed to insert session: %w", err)
		}
		return nil
	})
}

func scanSession(row interface{ Scan(...interface{}) error }) (*types.Session, error) {
	var sess types.Session
	var endTime sql.NullTime
	err := row.Scan(
		&sess.ID, &sess.ClassCode, &sess.TeacherID, &sess.TeacherLanguage, &sess.StudentsCount,
		&sess.TotalTranslations, &sess.StartTime, &sess.LastActivityAt, &endTime, &sess.IsActive,
		&sess.Quality, &sess.QualityReason,
	)
	if err != nil {
		return nil, err
	}
	if endTime.Valid {
		sess.EndTime = &endTime.Time
	}
	return &sess, nil
}

const sessionColumns = `id, class_code, teacher_id, teacher_language, students_count,
	total_translations, start_time, last_activity_at, end_time, is_active, quality, quality_reason`

func (s *Store) GetSession(ctx context.Context, sessionID string) (*types.Session, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, sessionID)
	sess, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, interfaces.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query session: %w", err)
	}
	return sess, nil
}

func (s *Store) GetSessionByTeacher(ctx context.Context, teacherID string) (*types.Session, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions
		WHERE teacher_id = ? AND is_active = 1 ORDER BY start_time DESC LIMIT 1`, teacherID)
	sess, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, interfaces.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query session by teacher: %w", err)
	}
	return sess, nil
}

func (s *Store) UpdateSession(ctx context.Context, sess *types.Session) error {
	return s.executeWrite(func(db *sql.DB) error {
		_, err := db.ExecContext(ctx, `
			UPDATE sessions SET class_code = ?, teacher_language = ?, students_count = ?,
				total_translations = ?, last_activity_at = ?, end_time = ?, is_active = ?,
				quality = ?, quality_reason = ?
			WHERE id = ?`,
			sess.ClassCode, sess.TeacherLanguage, sess.StudentsCount, sess.TotalTranslations,
			sess.LastActivityAt, sess.EndTime, sess.IsActive, sess.Quality, sess.QualityReason, sess.ID,
		)
		if err != nil {
			return fmt.Errorf("failed to update session: %w", err)
		}
		return nil
	})
}

func (s *Store) IncrementStudentsCount(ctx context.Context, sessionID string, delta int) error {
	return s.executeWrite(func(db *sql.DB) error {
		_, err := db.ExecContext(ctx,
			`UPDATE sessions SET students_count = students_count + ? WHERE id = ?`, delta, sessionID)
		return err
	})
}

func (s *Store) IncrementTotalTranslations(ctx context.Context, sessionID string, delta int) error {
	return s.executeWrite(func(db *sql.DB) error {
		_, err := db.ExecContext(ctx,
			`UPDATE sessions SET total_translations = total_translations + ? WHERE id = ?`, delta, sessionID)
		return err
	})
}

func (s *Store) TouchLastActivity(ctx context.Context, sessionID string) error {
	return s.executeWrite(func(db *sql.DB) error {
		_, err := db.ExecContext(ctx,
			`UPDATE sessions SET last_activity_at = ? WHERE id = ?`, time.Now(), sessionID)
		return err
	})
}

func (s *Store) SaveClassroomCode(ctx context.Context, c *types.ClassroomCode) error {
	return s.executeWrite(func(db *sql.DB) error {
		_, err := db.ExecContext(ctx, `
			INSERT INTO classroom_codes (code, session_id, created_at, last_activity, teacher_connected, expires_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(code) DO UPDATE SET session_id=excluded.session_id, last_activity=excluded.last_activity,
				teacher_connected=excluded.teacher_connected, expires_at=excluded.expires_at`,
			c.Code, c.SessionID, c.CreatedAt, c.LastActivity, c.TeacherConnected, c.ExpiresAt,
		)
		return err
	})
}

func scanClassroomCode(row interface{ Scan(...interface{}) error }) (*types.ClassroomCode, error) {
	var c types.ClassroomCode
	err := row.Scan(&c.Code, &c.SessionID, &c.CreatedAt, &c.LastActivity, &c.TeacherConnected, &c.ExpiresAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) GetClassroomCode(ctx context.Context, code string) (*types.ClassroomCode, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT code, session_id, created_at, last_activity, teacher_connected, expires_at
		 FROM classroom_codes WHERE code = ?`, code)
	c, err := scanClassroomCode(row)
	if err == sql.ErrNoRows {
		return nil, interfaces.ErrCodeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query classroom code: %w", err)
	}
	return c, nil
}

func (s *Store) GetClassroomCodeBySession(ctx context.Context, sessionID string) (*types.ClassroomCode, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT code, session_id, created_at, last_activity, teacher_connected, expires_at
		 FROM classroom_codes WHERE session_id = ? ORDER BY created_at DESC LIMIT 1`, sessionID)
	c, err := scanClassroomCode(row)
	if err == sql.ErrNoRows {
		return nil, interfaces.ErrCodeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query classroom code by session: %w", err)
	}
	return c, nil
}

func (s *Store) TouchClassroomCode(ctx context.Context, code string) error {
	return s.executeWrite(func(db *sql.DB) error {
		_, err := db.ExecContext(ctx,
			`UPDATE classroom_codes SET last_activity = ? WHERE code = ?`, time.Now(), code)
		return err
	})
}

func (s *Store) SetTeacherConnected(ctx context.Context, sessionID string, connected bool) error {
	return s.executeWrite(func(db *sql.DB) error {
		_, err := db.ExecContext(ctx,
			`UPDATE classroom_codes SET teacher_connected = ? WHERE session_id = ?`, connected, sessionID)
		return err
	})
}

func (s *Store) DeleteExpiredClassroomCodes(ctx context.Context, now int64) (int, error) {
	var count int
	err := s.executeWrite(func(db *sql.DB) error {
		res, err := db.ExecContext(ctx,
			`DELETE FROM classroom_codes WHERE expires_at <= ?`, time.Unix(now, 0))
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		count = int(n)
		return err
	})
	return count, err
}

func (s *Store) AppendTranscript(ctx context.Context, t *types.Transcript) error {
	return s.executeWrite(func(db *sql.DB) error {
		_, err := db.ExecContext(ctx,
			`INSERT INTO transcripts (id, session_id, text, language, timestamp) VALUES (?, ?, ?, ?, ?)`,
			t.ID, t.SessionID, t.Text, t.Language, t.Timestamp)
		return err
	})
}

func (s *Store) AppendTranslation(ctx context.Context, t *types.Translation) error {
	return s.executeWrite(func(db *sql.DB) error {
		_, err := db.ExecContext(ctx,
			`INSERT INTO translations (id, session_id, source_language, target_language, original_text,
				translated_text, latency_millis, timestamp) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			t.ID, t.SessionID, t.SourceLanguage, t.TargetLanguage, t.OriginalText,
			t.TranslatedText, t.LatencyMillis, t.Timestamp)
		return err
	})
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*types.User, error) {
	var u types.User
	err := s.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash FROM users WHERE username = ?`, username,
	).Scan(&u.ID, &u.Username, &u.PasswordHash)
	if err == sql.ErrNoRows {
		return nil, interfaces.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return &u, nil
}

func (s *Store) CreateUser(ctx context.Context, u *types.User) error {
	return s.executeWrite(func(db *sql.DB) error {
		_, err := db.ExecContext(ctx,
			`INSERT INTO users (id, username, password_hash) VALUES (?, ?, ?)`,
			u.ID, u.Username, u.PasswordHash)
		return err
	})
}

func (s *Store) CountActiveSessions(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions WHERE is_active = 1`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count active sessions: %w", err)
	}
	return count, nil
}

var _ interfaces.SessionRepository = (*Store)(nil)
