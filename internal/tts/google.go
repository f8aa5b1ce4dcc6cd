package tts

import (
	"context"
	"fmt"
	"strings"

	texttospeech "cloud.google.com/go/texttospeech/apiv1"
	"cloud.google.com/go/texttospeech/apiv1/texttospeechpb"

	"github.com/mrlokans/autobooks/internal/sound"
)

// GoogleEngine uses Google Cloud Text-to-Speech. Credentials come from
// GOOGLE_APPLICATION_CREDENTIALS.
type GoogleEngine struct {
	client *texttospeech.Client
}

func NewGoogleEngine(ctx context.Context) (*GoogleEngine, error) {
	client, err := texttospeech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create TTS client: %w", err)
	}
	return &GoogleEngine{client: client}, nil
}

func (g *GoogleEngine) Name() string {
	return EngineTypeGoogle.String()
}

func (g *GoogleEngine) Synthesize(ctx context.Context, text string, opts Options) (Audio, error) {
	if err := checkText(text); err != nil {
		return Audio{}, err
	}

	resp, err := g.client.SynthesizeSpeech(ctx, synthesizeRequest(text, opts))
	if err != nil {
		return Audio{}, fmt.Errorf("google synthesis failed: %w", err)
	}
	return Audio{Data: resp.AudioContent, MediaType: sound.MediaTypeWAV}, nil
}

func synthesizeRequest(text string, opts Options) *texttospeechpb.SynthesizeSpeechRequest {
	language := opts.Language
	if language == "" {
		language = "en-US"
	}

	// LINEAR16 responses carry a WAV header
	audioCfg := &texttospeechpb.AudioConfig{
		AudioEncoding: texttospeechpb.AudioEncoding_LINEAR16,
	}
	// Chirp voices reject speakingRate
	if !strings.Contains(strings.ToLower(opts.Voice), "chirp") {
		audioCfg.SpeakingRate = speedOrDefault(opts.Speed)
	}

	return &texttospeechpb.SynthesizeSpeechRequest{
		Input: &texttospeechpb.SynthesisInput{
			InputSource: &texttospeechpb.SynthesisInput_Text{Text: text},
		},
		Voice: &texttospeechpb.VoiceSelectionParams{
			LanguageCode: language,
			Name:         opts.Voice,
		},
		AudioConfig: audioCfg,
	}
}

func (g *GoogleEngine) Voices(ctx context.Context, language string) ([]Voice, error) {
	resp, err := g.client.ListVoices(ctx, &texttospeechpb.ListVoicesRequest{LanguageCode: language})
	if err != nil {
		return nil, fmt.Errorf("failed to list voices: %w", err)
	}

	voices := make([]Voice, 0, len(resp.Voices))
	for _, v := range resp.Voices {
		voices = append(voices, Voice{
			Name:      v.Name,
			Languages: v.LanguageCodes,
			Gender:    strings.ToLower(v.SsmlGender.String()),
		})
	}
	return voices, nil
}

func (g *GoogleEngine) Close() error {
	return g.client.Close()
}
