package speech

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/classrelay/relay/pkg/interfaces"
)

// OpenAIPipeline translates with a chat completion and synthesizes speech
// with OpenAI's text-to-speech endpoint.
type OpenAIPipeline struct {
	client   oai.Client
	model    string
	ttsModel string
	voice    string
}

type OpenAIOption func(*OpenAIPipeline)

func WithOpenAITTSModel(model string) OpenAIOption {
	return func(p *OpenAIPipeline) { p.ttsModel = model }
}

func WithOpenAIVoice(voice string) OpenAIOption {
	return func(p *OpenAIPipeline) { p.voice = voice }
}

func NewOpenAIPipeline(apiKey, model string, opts ...OpenAIOption) (*OpenAIPipeline, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("speech: openai api key must not be empty")
	}
	p := &OpenAIPipeline{
		client:   oai.NewClient(option.WithAPIKey(apiKey)),
		model:    model,
		ttsModel: "tts-1",
		voice:    "alloy",
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Translate implements interfaces.SpeechPipeline.
func (p *OpenAIPipeline) Translate(ctx context.Context, sourceLang, targetLang, text, serviceHint string) (interfaces.TranslationResult, error) {
	if strings.TrimSpace(text) == "" {
		return interfaces.TranslationResult{}, nil
	}

	prompt := fmt.Sprintf(
		"Translate the following %s text to %s. Output only the translation, "+
			"nothing else, suitable for a live classroom caption.\n\n%s",
		sourceLang, targetLang, text,
	)

	start := time.Now()
	resp, err := p.client.Chat.Completions.New(ctx, oai.ChatCompletionNewParams{
		Model:    shared.ChatModel(p.model),
		Messages: []oai.ChatCompletionMessageParamUnion{oai.UserMessage(prompt)},
	})
	if err != nil {
		return interfaces.TranslationResult{}, fmt.Errorf("speech: openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return interfaces.TranslationResult{}, fmt.Errorf("speech: openai returned no choices")
	}

	return interfaces.TranslationResult{
		TranslatedText: strings.TrimSpace(resp.Choices[0].Message.Content),
		LatencyMillis:  time.Since(start).Milliseconds(),
	}, nil
}

// Synthesize implements interfaces.SpeechPipeline.
func (p *OpenAIPipeline) Synthesize(ctx context.Context, text, language, serviceHint string) (interfaces.SynthesisResult, error) {
	if strings.TrimSpace(text) == "" {
		return interfaces.SynthesisResult{}, nil
	}

	resp, err := p.client.Audio.Speech.New(ctx, oai.AudioSpeechNewParams{
		Model:          oai.SpeechModel(p.ttsModel),
		Input:          text,
		Voice:          oai.AudioSpeechNewParamsVoice(p.voice),
		ResponseFormat: oai.AudioSpeechNewParamsResponseFormatMP3,
	})
	if err != nil {
		return interfaces.SynthesisResult{}, fmt.Errorf("speech: openai synthesize: %w", err)
	}
	defer resp.Body.Close()

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return interfaces.SynthesisResult{}, fmt.Errorf("speech: openai read audio: %w", err)
	}

	return interfaces.SynthesisResult{Audio: interfaces.AudioArtifact{
		Bytes:     audio,
		MIME:      "audio/mpeg",
		ServiceID: "openai:" + p.ttsModel,
	}}, nil
}

var _ interfaces.SpeechPipeline = (*OpenAIPipeline)(nil)
