package fanout

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/classrelay/relay/internal/testutil"
	"github.com/classrelay/relay/pkg/interfaces"
	"github.com/classrelay/relay/pkg/types"
)

type fakeRegistry struct {
	languages map[string][]string
	students  map[string]map[string][]interfaces.Peer
}

func (f *fakeRegistry) SessionLanguages(sessionID string) []string {
	return f.languages[sessionID]
}

func (f *fakeRegistry) SessionStudents(sessionID, language string) []interfaces.Peer {
	return f.students[sessionID][language]
}

type fakePipeline struct {
	failLanguages map[string]bool
}

func (f *fakePipeline) Translate(_ context.Context, _, targetLang, text, _ string) (interfaces.TranslationResult, error) {
	if f.failLanguages[targetLang] {
		return interfaces.TranslationResult{}, errors.New("provider unavailable")
	}
	return interfaces.TranslationResult{TranslatedText: "[" + targetLang + "] " + text}, nil
}

func (f *fakePipeline) Synthesize(_ context.Context, text, _, _ string) (interfaces.SynthesisResult, error) {
	return interfaces.SynthesisResult{}, nil
}

func TestService_Dispatch_PartialFailureIsolated(t *testing.T) {
	esPeer := testutil.NewFakePeer("es-1")
	frPeer := testutil.NewFakePeer("fr-1")

	registry := &fakeRegistry{
		languages: map[string][]string{"sess-1": {"es", "fr"}},
		students: map[string]map[string][]interfaces.Peer{
			"sess-1": {
				"es": {esPeer},
				"fr": {frPeer},
			},
		},
	}
	pipeline := &fakePipeline{failLanguages: map[string]bool{"fr": true}}
	repo := testutil.NewFakeStore()

	svc := NewService(registry, pipeline, repo)
	delivered := svc.Dispatch(context.Background(), "sess-1", "en", "hello class", "")

	if delivered != 2 {
		t.Errorf("expected both legs to report delivered, got %d", delivered)
	}
	if len(esPeer.Sent) != 1 {
		t.Fatalf("expected es student to receive a translation, got %d messages", len(esPeer.Sent))
	}
	if len(frPeer.Sent) != 1 {
		t.Fatalf("expected fr student to receive a degraded translation, got %d messages", len(frPeer.Sent))
	}

	var esFrame struct {
		Type            string `json:"type"`
		Text            string `json:"text"`
		OriginalText    string `json:"originalText"`
		SourceLanguage  string `json:"sourceLanguage"`
		TargetLanguage  string `json:"targetLanguage"`
		UseClientSpeech *bool  `json:"useClientSpeech"`
		Latency         struct {
			Total      int64 `json:"total"`
			Components struct {
				Translation int64 `json:"translation"`
			} `json:"components"`
		} `json:"latency"`
	}
	decodeSent(t, esPeer.Sent[0], &esFrame)
	if esFrame.Type != types.TypeTranslation {
		t.Errorf("expected type %q, got %q", types.TypeTranslation, esFrame.Type)
	}
	if esFrame.OriginalText != "hello class" {
		t.Errorf("expected originalText %q, got %q", "hello class", esFrame.OriginalText)
	}
	if esFrame.SourceLanguage != "en" || esFrame.TargetLanguage != "es" {
		t.Errorf("expected sourceLanguage=en targetLanguage=es, got %+v", esFrame)
	}
	if esFrame.Text != "[es] hello class" {
		t.Errorf("expected translated text %q, got %q", "[es] hello class", esFrame.Text)
	}
	if esFrame.UseClientSpeech != nil {
		t.Errorf("expected no useClientSpeech for a text-only leg, got %v", *esFrame.UseClientSpeech)
	}

	var frFrame struct {
		Text         string `json:"text"`
		OriginalText string `json:"originalText"`
	}
	decodeSent(t, frPeer.Sent[0], &frFrame)
	if frFrame.Text != frFrame.OriginalText || frFrame.Text != "hello class" {
		t.Errorf("expected the failed leg to degrade text to the original, got %+v", frFrame)
	}

	if len(repo.Translations) != 2 {
		t.Errorf("expected 2 persisted translations, got %d", len(repo.Translations))
	}
}

func decodeSent(t *testing.T, v interface{}, out interface{}) {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("failed to marshal sent frame: %v", err)
	}
	if err := json.Unmarshal(b, out); err != nil {
		t.Fatalf("failed to decode sent frame: %v", err)
	}
}

func TestService_Dispatch_NoLanguages(t *testing.T) {
	registry := &fakeRegistry{languages: map[string][]string{}}
	svc := NewService(registry, &fakePipeline{}, testutil.NewFakeStore())

	delivered := svc.Dispatch(context.Background(), "empty-session", "en", "hello", "")
	if delivered != 0 {
		t.Errorf("expected 0 delivered legs for empty session, got %d", delivered)
	}
}
