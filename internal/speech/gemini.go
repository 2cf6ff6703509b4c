// Package speech adapts third-party model providers to
// interfaces.SpeechPipeline. GeminiPipeline and OpenAIPipeline are the two
// concrete adapters; internal/config.SpeechConfig.Provider picks which one
// cmd/relayd wires in.
package speech

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"google.golang.org/genai"

	"github.com/classrelay/relay/pkg/interfaces"
)

const geminiFallbackWindow = 30 * time.Second

// GeminiPipeline translates and synthesizes speech through the Gemini API,
// degrading to a cheaper fallback model on rate limiting and auto-recovering
// once the window lapses.
type GeminiPipeline struct {
	client        *genai.Client
	model         string
	fallbackModel string
	ttsModel      string
	voice         string

	degraded  atomic.Bool
	recoverAt atomic.Int64 // unix millis
}

// GeminiOption configures a GeminiPipeline.
type GeminiOption func(*GeminiPipeline)

func WithGeminiFallbackModel(model string) GeminiOption {
	return func(p *GeminiPipeline) { p.fallbackModel = model }
}

func WithGeminiTTSModel(model string) GeminiOption {
	return func(p *GeminiPipeline) { p.ttsModel = model }
}

func WithGeminiVoice(voice string) GeminiOption {
	return func(p *GeminiPipeline) { p.voice = voice }
}

func NewGeminiPipeline(ctx context.Context, apiKey, model string, opts ...GeminiOption) (*GeminiPipeline, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("speech: create gemini client: %w", err)
	}

	p := &GeminiPipeline{
		client:        client,
		model:         model,
		fallbackModel: "gemini-2.0-flash",
		ttsModel:      "gemini-2.5-flash-preview-tts",
		voice:         "Kore",
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Translate implements interfaces.SpeechPipeline.
func (p *GeminiPipeline) Translate(ctx context.Context, sourceLang, targetLang, text, serviceHint string) (interfaces.TranslationResult, error) {
	if strings.TrimSpace(text) == "" {
		return interfaces.TranslationResult{}, nil
	}

	prompt := fmt.Sprintf(
		"Translate the following %s text to %s. "+
			"Output ONLY the translation, nothing else. "+
			"Keep it natural and concise, suitable for a live classroom caption. "+
			"For proper nouns and person names, transliterate rather than translate them.\n\n%s",
		sourceLang, targetLang, text,
	)

	start := time.Now()
	model := p.activeModel()
	resp, err := p.client.Models.GenerateContent(ctx, model, genai.Text(prompt), nil)
	if err != nil {
		if !isRateLimited(err) {
			return interfaces.TranslationResult{}, fmt.Errorf("speech: gemini translate: %w", err)
		}
		p.degrade(model)
		resp, err = p.client.Models.GenerateContent(ctx, p.fallbackModel, genai.Text(prompt), nil)
		if err != nil {
			return interfaces.TranslationResult{}, fmt.Errorf("speech: gemini translate (fallback): %w", err)
		}
	}

	result := strings.TrimSpace(resp.Text())
	if model != p.fallbackModel && looksLikeSource(result, sourceLang, targetLang) {
		log.Printf("speech: gemini returned untranslated text for %s->%s, retrying with fallback", sourceLang, targetLang)
		if resp2, err2 := p.client.Models.GenerateContent(ctx, p.fallbackModel, genai.Text(prompt), nil); err2 == nil {
			if fallback := strings.TrimSpace(resp2.Text()); !looksLikeSource(fallback, sourceLang, targetLang) {
				result = fallback
			}
		}
	}

	return interfaces.TranslationResult{
		TranslatedText: result,
		LatencyMillis:  time.Since(start).Milliseconds(),
	}, nil
}

// Synthesize implements interfaces.SpeechPipeline, requesting inline audio
// from Gemini's text-to-speech model.
func (p *GeminiPipeline) Synthesize(ctx context.Context, text, language, serviceHint string) (interfaces.SynthesisResult, error) {
	if strings.TrimSpace(text) == "" {
		return interfaces.SynthesisResult{}, nil
	}

	cfg := &genai.GenerateContentConfig{
		ResponseModalities: []string{"AUDIO"},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: p.voice},
			},
		},
	}

	resp, err := p.client.Models.GenerateContent(ctx, p.ttsModel, genai.Text(text), cfg)
	if err != nil {
		if isRateLimited(err) {
			// No cheaper TTS fallback model exists; degrade to client-side
			// speech synthesis instead of failing the frame outright.
			return interfaces.SynthesisResult{Audio: interfaces.AudioArtifact{ClientSpeech: true}}, nil
		}
		return interfaces.SynthesisResult{}, fmt.Errorf("speech: gemini synthesize: %w", err)
	}

	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part.InlineData != nil && len(part.InlineData.Data) > 0 {
				return interfaces.SynthesisResult{Audio: interfaces.AudioArtifact{
					Bytes:     part.InlineData.Data,
					MIME:      part.InlineData.MIMEType,
					ServiceID: "gemini:" + p.ttsModel,
				}}, nil
			}
		}
	}

	return interfaces.SynthesisResult{Audio: interfaces.AudioArtifact{ClientSpeech: true}}, nil
}

func (p *GeminiPipeline) activeModel() string {
	if p.degraded.Load() {
		if time.Now().UnixMilli() >= p.recoverAt.Load() {
			p.degraded.Store(false)
			log.Printf("speech: gemini recovered, back to primary model %s", p.model)
			return p.model
		}
		return p.fallbackModel
	}
	return p.model
}

func (p *GeminiPipeline) degrade(from string) {
	if !p.degraded.Load() {
		log.Printf("speech: gemini rate limited, falling back from %s to %s for %s", from, p.fallbackModel, geminiFallbackWindow)
	}
	p.degraded.Store(true)
	p.recoverAt.Store(time.Now().Add(geminiFallbackWindow).UnixMilli())
}

func isRateLimited(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "429") || strings.Contains(msg, "503") ||
		strings.Contains(msg, "RESOURCE_EXHAUSTED") || strings.Contains(msg, "UNAVAILABLE")
}

// looksLikeSource flags translations that came back in the source
// language, usually because the model silently declined to translate.
func looksLikeSource(text, sourceLang, targetLang string) bool {
	if text == "" {
		return false
	}
	srcShort := strings.SplitN(strings.ToLower(sourceLang), "-", 2)[0]
	tgtShort := strings.SplitN(strings.ToLower(targetLang), "-", 2)[0]
	if srcShort == tgtShort {
		return false
	}

	var jaCount, latinCount, cjkCount, total int
	for _, r := range text {
		if r < 0x20 || r == ' ' {
			continue
		}
		total++
		switch {
		case r >= 0x3040 && r <= 0x30FF:
			jaCount++
		case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z':
			latinCount++
		case r >= 0x4E00 && r <= 0x9FFF:
			cjkCount++
		}
	}
	if total == 0 {
		return false
	}

	jaRatio := float64(jaCount) / float64(total)
	latinRatio := float64(latinCount) / float64(total)
	cjkRatio := float64(cjkCount) / float64(total)

	if srcShort == "ja" && tgtShort == "zh" && jaRatio > 0.3 {
		return true
	}
	if isCJK(tgtShort) && latinRatio > 0.5 {
		return true
	}
	if isLatinBased(tgtShort) && cjkRatio > 0.3 {
		return true
	}
	return false
}

func isCJK(lang string) bool {
	return lang == "zh" || lang == "ja" || lang == "ko"
}

func isLatinBased(lang string) bool {
	return lang == "en" || lang == "fr" || lang == "de" || lang == "es"
}

var _ interfaces.SpeechPipeline = (*GeminiPipeline)(nil)
