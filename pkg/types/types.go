// Package types holds the wire-level vocabulary shared across the relay:
// peer roles, inbound/outbound frame discriminants, and the durable record
// shapes the store contract persists.
package types

import "time"

// Role identifies what a Peer has registered as.
type Role string

const (
	RoleUnset   Role = ""
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
)

// Inbound frame discriminants (the "type" field of a client message).
const (
	TypeRegister      = "register"
	TypeTranscription = "transcription"
	TypeAudio         = "audio"
	TypeTTSRequest    = "tts_request"
	TypeSettings      = "settings"
	TypePing          = "ping"
	TypePong          = "pong"
)

// Outbound frame discriminants.
const (
	TypeConnection     = "connection"
	TypeClassroomCode  = "classroom_code"
	TypeTranslation    = "translation"
	TypeTTSResponse    = "tts_response"
	TypeStudentJoined  = "student_joined"
	TypeSessionExpired = "session_expired"
	TypeError          = "error"
)

// ExemptTypes are processed even when the bound session has isActive=false
// (spec.md §4.3 step 2).
var ExemptTypes = map[string]bool{
	TypeRegister: true,
	TypePing:     true,
	TypePong:     true,
}

// InboundFrame is the minimal envelope every inbound message is parsed into
// before being re-decoded into its type-specific payload.
type InboundFrame struct {
	Type string `json:"type"`
}

// RegisterFrame is the payload of an inbound "register" message.
type RegisterFrame struct {
	Role          string                 `json:"role"`
	LanguageCode  string                 `json:"languageCode"`
	Name          string                 `json:"name,omitempty"`
	Settings      map[string]interface{} `json:"settings,omitempty"`
	ClassroomCode string                 `json:"classroomCode,omitempty"`
	TeacherID     string                 `json:"teacherId,omitempty"`
}

// TranscriptionFrame is the payload of an inbound "transcription" message.
type TranscriptionFrame struct {
	Text         string `json:"text"`
	LanguageCode string `json:"languageCode"`
	Timestamp    int64  `json:"timestamp,omitempty"`
}

// AudioFrame is the payload of an inbound "audio" message.
type AudioFrame struct {
	Data string `json:"data"`
}

// TTSRequestFrame is the payload of an inbound "tts_request" message.
type TTSRequestFrame struct {
	Text         string `json:"text"`
	LanguageCode string `json:"languageCode"`
	Voice        string `json:"voice,omitempty"`
}

// SettingsFrame is the payload of an inbound "settings" message.
type SettingsFrame struct {
	Settings       map[string]interface{} `json:"settings,omitempty"`
	TTSServiceType string                  `json:"ttsServiceType,omitempty"`
}

// PingFrame carries the client's echo timestamp.
type PingFrame struct {
	Timestamp int64 `json:"timestamp"`
}

// Session is the durable record described in spec.md §3.
type Session struct {
	ID                string
	ClassCode         string
	TeacherID         string
	TeacherLanguage   string
	StudentsCount     int
	TotalTranslations int
	StartTime         time.Time
	LastActivityAt    time.Time
	EndTime           *time.Time
	IsActive          bool
	Quality           string
	QualityReason     string
}

// ClassroomCode is the durable record described in spec.md §3.
type ClassroomCode struct {
	Code             string
	SessionID        string
	CreatedAt        time.Time
	LastActivity     time.Time
	TeacherConnected bool
	ExpiresAt        time.Time
}

// Transcript is an append-only teacher utterance record.
type Transcript struct {
	ID        string
	SessionID string
	Text      string
	Language  string
	Timestamp time.Time
}

// Translation is an append-only per-language fan-out leg record.
type Translation struct {
	ID             string
	SessionID      string
	SourceLanguage string
	TargetLanguage string
	OriginalText   string
	TranslatedText string
	LatencyMillis  int64
	Timestamp      time.Time
}

// User is a teacher account record.
type User struct {
	ID           string
	Username     string
	PasswordHash string
}

// Quality classification values (spec.md §4.11).
const (
	QualityReal       = "real"
	QualityTooShort   = "too_short"
	QualityNoStudents = "no_students"
	QualityNoActivity = "no_activity"
	QualityDead       = "dead"
)