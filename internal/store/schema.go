package store

// schema is executed once at startup. SQLite's single-file, zero-config
// nature keeps classroom deployments simple; WAL mode (applied by
// pkg/database.ApplySQLiteOptimizations) lets diagnostics reads proceed
// while the writer goroutine is mid-transaction.
const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id                 TEXT PRIMARY KEY,
	class_code         TEXT NOT NULL,
	teacher_id         TEXT NOT NULL,
	teacher_language   TEXT NOT NULL,
	students_count     INTEGER NOT NULL DEFAULT 0,
	total_translations INTEGER NOT NULL DEFAULT 0,
	start_time         DATETIME NOT NULL,
	last_activity_at   DATETIME NOT NULL,
	end_time           DATETIME,
	is_active          INTEGER NOT NULL DEFAULT 1,
	quality            TEXT NOT NULL DEFAULT '',
	quality_reason     TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_sessions_teacher ON sessions(teacher_id, is_active);

CREATE TABLE IF NOT EXISTS classroom_codes (
	code              TEXT PRIMARY KEY,
	session_id        TEXT NOT NULL,
	created_at        DATETIME NOT NULL,
	last_activity     DATETIME NOT NULL,
	teacher_connected INTEGER NOT NULL DEFAULT 0,
	expires_at        DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_classroom_codes_session ON classroom_codes(session_id);

CREATE TABLE IF NOT EXISTS transcripts (
	id         TEXT PRIMARY KEY,
	session_id TEXT NOT NULL,
	text       TEXT NOT NULL,
	language   TEXT NOT NULL,
	timestamp  DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_transcripts_session ON transcripts(session_id, timestamp);

CREATE TABLE IF NOT EXISTS translations (
	id              TEXT PRIMARY KEY,
	session_id      TEXT NOT NULL,
	source_language TEXT NOT NULL,
	target_language TEXT NOT NULL,
	original_text   TEXT NOT NULL,
	translated_text TEXT NOT NULL,
	latency_millis  INTEGER NOT NULL DEFAULT 0,
	timestamp       DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_translations_session ON translations(session_id, timestamp);

CREATE TABLE IF NOT EXISTS users (
	id            TEXT PRIMARY KEY,
	username      TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL
);
`
