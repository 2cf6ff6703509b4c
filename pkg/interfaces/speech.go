package interfaces

import "context"

// AudioArtifact is the result attached to a translation or tts_response
// frame (spec.md §4.6 step 3). Exactly one of the three shapes applies:
//   - ClientSpeech: true means the client should synthesize locally using
//     SpeechParams; Bytes/MIME are unset.
//   - len(Bytes) > 0 means raw synthesized audio is attached as base64.
//   - Both empty/false means text-only (no audio, used for failures and for
//     providers that return no audio at all).
type AudioArtifact struct {
	ClientSpeech bool
	SpeechParams map[string]interface{}
	Bytes        []byte
	MIME         string
	ServiceID    string
}

// TranslationResult is what SpeechPipeline.Translate returns for one target
// language.
type TranslationResult struct {
	TranslatedText string
	Audio          AudioArtifact
	LatencyMillis  int64
}

// SynthesisResult is what SpeechPipeline.Synthesize returns.
type SynthesisResult struct {
	Audio AudioArtifact
}

// SpeechPipeline is the single external collaborator the core consumes for
// speech-to-text/translation/text-to-speech (spec.md §1, §6). The core
// never inspects which concrete provider answers it; circuit-breaking and
// provider fallback live entirely behind this interface (spec.md §9).
type SpeechPipeline interface {
	// Translate produces translated text (and optionally audio) for one
	// target language. Implementations must honor ctx's deadline
	// (spec.md §5) and return an error — never panic — on failure; the
	// caller degrades to untranslated text per spec.md §4.6.
	Translate(ctx context.Context, sourceLang, targetLang, text string, serviceHint string) (TranslationResult, error)

	// Synthesize produces audio for arbitrary text in one language,
	// independent of any translation step (used by the tts_request
	// handler, spec.md §4.7).
	Synthesize(ctx context.Context, text, language string, serviceHint string) (SynthesisResult, error)
}
