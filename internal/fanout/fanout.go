// Package fanout turns one teacher transcription into a concurrent set of
// per-language translation legs, broadcasting each to the students
// waiting on that language. A failing leg degrades to untranslated text
// for its own students; it never aborts the other legs (spec.md §4.6).
package fanout

import (
	"context"
	"encoding/base64"
	"log"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/classrelay/relay/pkg/interfaces"
	"github.com/classrelay/relay/pkg/types"
)

func encodeAudio(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

// Registry is the subset of websocket.Registry the fan-out service needs:
// who is in the session, grouped by requested language.
type Registry interface {
	SessionLanguages(sessionID string) []string
	SessionStudents(sessionID, language string) []interfaces.Peer
}

// Service drives the per-language translation fan-out.
type Service struct {
	registry Registry
	pipeline interfaces.SpeechPipeline
	repo     interfaces.SessionRepository
}

func NewService(registry Registry, pipeline interfaces.SpeechPipeline, repo interfaces.SessionRepository) *Service {
	return &Service{registry: registry, pipeline: pipeline, repo: repo}
}

// Dispatch fans sourceText out to every language students in sessionID
// have requested. It returns the number of language legs run, counting
// legs that degraded to the source text after a pipeline failure; it
// never returns an error for a single leg's failure.
func (s *Service) Dispatch(ctx context.Context, sessionID, sourceLang, sourceText, serviceHint string) int {
	languages := s.registry.SessionLanguages(sessionID)
	if len(languages) == 0 {
		return 0
	}

	g, gctx := errgroup.WithContext(ctx)
	delivered := make([]bool, len(languages))

	for i, lang := range languages {
		i, lang := i, lang
		g.Go(func() error {
			// Each leg swallows its own error so one bad translation never
			// cancels gctx for the other legs (spec.md §4.6 isolation rule).
			s.runLeg(gctx, sessionID, sourceLang, lang, sourceText, serviceHint)
			delivered[i] = true
			return nil
		})
	}

	_ = g.Wait()

	count := 0
	for _, ok := range delivered {
		if ok {
			count++
		}
	}
	return count
}

// translationFrame is the outbound "translation" frame (spec.md §4.6, §6).
// ttsServiceType is echoed per-recipient from that student's own settings,
// since it only describes how the client should play the attached audio.
type translationFrame struct {
	Type            string                 `json:"type"`
	Text            string                 `json:"text"`
	OriginalText    string                 `json:"originalText"`
	SourceLanguage  string                 `json:"sourceLanguage"`
	TargetLanguage  string                 `json:"targetLanguage"`
	TTSServiceType  string                 `json:"ttsServiceType,omitempty"`
	AudioData       string                 `json:"audioData,omitempty"`
	UseClientSpeech *bool                  `json:"useClientSpeech,omitempty"`
	SpeechParams    map[string]interface{} `json:"speechParams,omitempty"`
	Latency         translationLatency     `json:"latency"`
}

type translationLatency struct {
	Total      int64                        `json:"total"`
	Components translationLatencyBreakdown `json:"components"`
}

type translationLatencyBreakdown struct {
	Translation int64 `json:"translation"`
	TTS         int64 `json:"tts"`
	Processing  int64 `json:"processing"`
	Network     int64 `json:"network"`
}

func (s *Service) runLeg(ctx context.Context, sessionID, sourceLang, targetLang, sourceText, serviceHint string) {
	students := s.registry.SessionStudents(sessionID, targetLang)
	if len(students) == 0 {
		return
	}

	start := time.Now()
	result, err := s.pipeline.Translate(ctx, sourceLang, targetLang, sourceText, serviceHint)
	latency := time.Since(start).Milliseconds()

	translatedText := sourceText
	audio := interfaces.AudioArtifact{}
	if err != nil {
		log.Printf("fanout: translation leg %s->%s degraded to source text: %v", sourceLang, targetLang, err)
	} else {
		translatedText = result.TranslatedText
		audio = result.Audio
		latency = result.LatencyMillis
	}

	frame := translationFrame{
		Type:           types.TypeTranslation,
		Text:           translatedText,
		OriginalText:   sourceText,
		SourceLanguage: sourceLang,
		TargetLanguage: targetLang,
		SpeechParams:   audio.SpeechParams,
		Latency: translationLatency{
			Total: latency,
			Components: translationLatencyBreakdown{
				Translation: latency,
			},
		},
	}
	switch {
	case audio.ClientSpeech:
		useClientSpeech := true
		frame.UseClientSpeech = &useClientSpeech
	case len(audio.Bytes) > 0:
		useClientSpeech := false
		frame.UseClientSpeech = &useClientSpeech
		frame.AudioData = encodeAudio(audio.Bytes)
	}

	for _, student := range students {
		studentFrame := frame
		if ttsType, ok := student.Settings()["ttsServiceType"].(string); ok {
			studentFrame.TTSServiceType = ttsType
		}
		if writeErr := student.WriteJSON(studentFrame); writeErr != nil {
			log.Printf("fanout: failed to deliver translation to %s: %v", student.Handle(), writeErr)
		}
	}

	if s.repo != nil {
		record := &types.Translation{
			ID:             uuid.New().String(),
			SessionID:      sessionID,
			SourceLanguage: sourceLang,
			TargetLanguage: targetLang,
			OriginalText:   sourceText,
			TranslatedText: translatedText,
			LatencyMillis:  latency,
			Timestamp:      time.Now(),
		}
		if err := s.repo.AppendTranslation(ctx, record); err != nil {
			log.Printf("fanout: failed to persist translation: %v", err)
		}
	}
}
