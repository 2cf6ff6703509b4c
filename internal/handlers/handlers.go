// Package handlers implements one HandlerFunc per inbound frame type,
// registered with internal/router at startup (spec.md §4).
package handlers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/classrelay/relay/internal/classroom"
	"github.com/classrelay/relay/internal/fanout"
	"github.com/classrelay/relay/internal/response"
	"github.com/classrelay/relay/internal/session"
	"github.com/classrelay/relay/internal/websocket"
	"github.com/classrelay/relay/pkg/interfaces"
	"github.com/classrelay/relay/pkg/types"
)

// Deps bundles every collaborator a handler needs. A single Deps is
// shared by all handler functions registered with the router.
type Deps struct {
	Registry   *websocket.Registry
	Classroom  *classroom.Service
	Sessions   *session.Service
	Fanout     *fanout.Service
	Repo       interfaces.SessionRepository
	Speech     interfaces.SpeechPipeline
	Auth       interfaces.TeacherAuthenticator
	DrainGrace time.Duration
}

// connectionAck is the first frame sent on every successful upgrade
// (spec.md §6).
type connectionAck struct {
	Type          string `json:"type"`
	Status        string `json:"status"`
	SessionID     string `json:"sessionId"`
	ClassroomCode string `json:"classroomCode,omitempty"`
}

// registerAck is the reply to an inbound "register" frame, echoing back
// the role/language/settings the peer now holds (spec.md §4.4).
type registerAck struct {
	Type   string          `json:"type"`
	Status string          `json:"status"`
	Data   registerAckData `json:"data"`
}

type registerAckData struct {
	Role         string                 `json:"role"`
	LanguageCode string                 `json:"languageCode"`
	Settings     map[string]interface{} `json:"settings"`
}

// classroomCodeFrame is sent to a teacher once their classroom code is
// known (spec.md §4.4, §6).
type classroomCodeFrame struct {
	Type      string    `json:"type"`
	Code      string    `json:"code"`
	SessionID string    `json:"sessionId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Register handles the "register" frame: a teacher starting or resuming a
// session, or a student joining one via classroom code (spec.md §4.1,
// §4.2).
func (d *Deps) Register(ctx context.Context, peer interfaces.Peer, raw []byte) error {
	var frame types.RegisterFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return fmt.Errorf("register: %w", err)
	}
	w := response.New(peer)

	if !types.IsValidRole(frame.Role) {
		w.SendError("invalid_role", "role must be \"teacher\" or \"student\"")
		return nil
	}

	switch frame.Role {
	case string(types.RoleTeacher):
		return d.registerTeacher(ctx, peer, &frame, w)
	case string(types.RoleStudent):
		return d.registerStudent(ctx, peer, &frame, w)
	}
	return nil
}

func (d *Deps) registerTeacher(ctx context.Context, peer interfaces.Peer, frame *types.RegisterFrame, w *response.Writer) error {
	teacherID := frame.TeacherID
	if d.Auth != nil && teacherID == "" {
		w.SendError("unauthorized", "teacher registration requires a teacher id")
		return nil
	}

	sess, err := d.Sessions.FindActiveByTeacher(ctx, teacherID)
	if err == session.ErrNoActiveSession {
		if !types.IsValidLanguageCode(frame.LanguageCode) {
			w.SendError("invalid_language", "languageCode is required to start a session")
			return nil
		}
		sess, err = d.Sessions.CreateSession(ctx, teacherID, frame.LanguageCode)
		if err != nil {
			return err
		}
	} else if err != nil {
		return err
	} else {
		d.Sessions.CancelDrain(sess.ID)
	}

	code, err := d.Classroom.EnsureCodeForSession(ctx, sess.ID)
	if err != nil {
		return err
	}

	peer.SetRole(string(types.RoleTeacher))
	peer.SetSessionID(sess.ID)
	peer.SetLanguage(sess.TeacherLanguage)
	peer.SetName(frame.Name)
	d.Registry.Reindex(peer)

	if err := d.Classroom.SetTeacherConnected(ctx, sess.ID, true); err != nil {
		log.Printf("handlers: failed to mark teacher connected: %v", err)
	}

	w.Send(connectionAck{Type: types.TypeConnection, Status: "connected", SessionID: sess.ID})
	w.Send(registerAck{Type: types.TypeRegister, Status: "success", Data: registerAckData{
		Role:         frame.Role,
		LanguageCode: frame.LanguageCode,
		Settings:     peer.Settings(),
	}})
	w.Send(classroomCodeFrame{
		Type:      types.TypeClassroomCode,
		Code:      code.Code,
		SessionID: code.SessionID,
		ExpiresAt: code.ExpiresAt,
	})
	return nil
}

func (d *Deps) registerStudent(ctx context.Context, peer interfaces.Peer, frame *types.RegisterFrame, w *response.Writer) error {
	if !types.IsValidClassroomCode(frame.ClassroomCode) {
		w.SendError("invalid_code", "classroomCode is malformed")
		return nil
	}
	if !types.IsValidLanguageCode(frame.LanguageCode) {
		w.SendError("invalid_language", "languageCode is required to join a session")
		return nil
	}

	code, err := d.Classroom.Resolve(ctx, frame.ClassroomCode)
	if err != nil {
		w.SendErrorAndClose("INVALID_CLASSROOM", "Classroom session expired or invalid", 1008)
		return nil
	}

	sess, err := d.Sessions.Get(ctx, code.SessionID)
	if err != nil {
		w.SendError("session_not_found", "the session behind this code no longer exists")
		return nil
	}
	if !sess.IsActive {
		w.SendError("session_ended", "this session has ended")
		return nil
	}
	d.Sessions.CancelDrain(sess.ID)

	peer.SetRole(string(types.RoleStudent))
	peer.SetSessionID(sess.ID)
	peer.SetLanguage(frame.LanguageCode)
	peer.SetName(frame.Name)
	peer.SetCounted(true)
	d.Registry.Reindex(peer)

	if err := d.Sessions.IncrementStudents(ctx, sess.ID, 1); err != nil {
		log.Printf("handlers: failed to increment student count: %v", err)
	}
	if err := d.Classroom.Touch(ctx, code.Code); err != nil {
		log.Printf("handlers: failed to touch classroom code: %v", err)
	}

	w.Send(connectionAck{Type: types.TypeConnection, Status: "connected", SessionID: sess.ID, ClassroomCode: frame.ClassroomCode})
	w.Send(registerAck{Type: types.TypeRegister, Status: "success", Data: registerAckData{
		Role:         frame.Role,
		LanguageCode: frame.LanguageCode,
		Settings:     peer.Settings(),
	}})

	joined := struct {
		Type         string `json:"type"`
		Name         string `json:"name,omitempty"`
		LanguageCode string `json:"languageCode"`
	}{types.TypeStudentJoined, frame.Name, frame.LanguageCode}
	for _, teacher := range d.Registry.SessionTeachers(sess.ID) {
		if err := teacher.WriteJSON(joined); err != nil {
			log.Printf("handlers: failed to notify teacher of new student: %v", err)
		}
	}
	return nil
}

// Transcription handles a teacher's "transcription" frame: persist the
// utterance, then fan it out to every language students requested
// (spec.md §4.6).
func (d *Deps) Transcription(ctx context.Context, peer interfaces.Peer, raw []byte) error {
	if peer.Role() != string(types.RoleTeacher) {
		return ErrTeacherOnly
	}

	var frame types.TranscriptionFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return fmt.Errorf("transcription: %w", err)
	}

	sessionID := peer.SessionID()
	sourceLang := frame.LanguageCode
	if sourceLang == "" {
		sourceLang = peer.Language()
	}

	transcript := &types.Transcript{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		Text:      frame.Text,
		Language:  sourceLang,
		Timestamp: time.Now(),
	}
	if err := d.Repo.AppendTranscript(ctx, transcript); err != nil {
		log.Printf("handlers: failed to persist transcript: %v", err)
	}
	if err := d.Sessions.TouchActivity(ctx, sessionID); err != nil {
		log.Printf("handlers: failed to touch session activity: %v", err)
	}

	delivered := d.Fanout.Dispatch(ctx, sessionID, sourceLang, frame.Text, "")
	if delivered > 0 {
		if err := d.Sessions.IncrementTranslations(ctx, sessionID, delivered); err != nil {
			log.Printf("handlers: failed to increment translation count: %v", err)
		}
	}
	return nil
}

// Audio accepts a raw audio chunk. Speech-to-text happens client-side
// before the transcription frame is sent (spec.md §1 non-goal on
// server-side ASR); this handler only keeps the session's activity clock
// current so a student speaking into their mic still counts as activity.
func (d *Deps) Audio(ctx context.Context, peer interfaces.Peer, _ []byte) error {
	return d.Sessions.TouchActivity(ctx, peer.SessionID())
}

// TTSRequest handles a "tts_request" frame by synthesizing audio for
// arbitrary text independent of any translation leg (spec.md §4.7).
func (d *Deps) TTSRequest(ctx context.Context, peer interfaces.Peer, raw []byte) error {
	var frame types.TTSRequestFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return fmt.Errorf("tts_request: %w", err)
	}

	w := response.New(peer)
	result, err := d.Speech.Synthesize(ctx, frame.Text, frame.LanguageCode, frame.Voice)
	if err != nil {
		w.Send(ttsResponse{
			Type:   types.TypeTTSResponse,
			Status: "error",
			Error:  &ttsResponseError{Message: "speech synthesis is temporarily unavailable", Code: "tts_failed"},
		})
		return nil
	}

	resp := ttsResponse{Type: types.TypeTTSResponse, Status: "success"}
	switch {
	case result.Audio.ClientSpeech:
		resp.UseClientSpeech = true
		resp.SpeechParams = result.Audio.SpeechParams
	case len(result.Audio.Bytes) > 0:
		resp.AudioData = encodeAudio(result.Audio.Bytes)
	}
	w.Send(resp)
	return nil
}

// ttsResponse is the reply to a "tts_request" frame (spec.md §4.7, §6).
type ttsResponse struct {
	Type            string                 `json:"type"`
	Status          string                 `json:"status"`
	AudioData       string                 `json:"audioData,omitempty"`
	UseClientSpeech bool                   `json:"useClientSpeech,omitempty"`
	SpeechParams    map[string]interface{} `json:"speechParams,omitempty"`
	Error           *ttsResponseError      `json:"error,omitempty"`
}

type ttsResponseError struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Settings merges a partial settings update into the peer's state
// (spec.md §4.8).
func (d *Deps) Settings(_ context.Context, peer interfaces.Peer, raw []byte) error {
	var frame types.SettingsFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return fmt.Errorf("settings: %w", err)
	}
	if frame.Settings != nil {
		peer.MergeSettings(frame.Settings)
	}
	if frame.TTSServiceType != "" {
		peer.MergeSettings(map[string]interface{}{"ttsServiceType": frame.TTSServiceType})
	}

	response.New(peer).Send(struct {
		Type     string                 `json:"type"`
		Status   string                 `json:"status"`
		Settings map[string]interface{} `json:"settings"`
	}{types.TypeSettings, "success", peer.Settings()})
	return nil
}

// Ping echoes the client's timestamp back as a pong, independent of the
// transport-level WebSocket ping/pong used for liveness (spec.md §4.10).
func (d *Deps) Ping(_ context.Context, peer interfaces.Peer, raw []byte) error {
	var frame types.PingFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	peer.MarkAlive()
	response.New(peer).Send(struct {
		Type      string `json:"type"`
		Timestamp int64  `json:"timestamp"`
	}{types.TypePong, frame.Timestamp})
	return nil
}

// Pong marks the peer alive in response to an application-level pong
// the client sent unprompted.
func (d *Deps) Pong(_ context.Context, peer interfaces.Peer, _ []byte) error {
	peer.MarkAlive()
	return nil
}

func encodeAudio(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}
