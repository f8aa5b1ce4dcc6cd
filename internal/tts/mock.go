package tts

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/faiface/beep"

	"github.com/mrlokans/autobooks/internal/sound"
)

const (
	mockSampleRate = beep.SampleRate(8000)
	mockPerWord    = 250 * time.Millisecond
)

// MockEngine returns silent WAV clips whose length grows with the word count.
type MockEngine struct {
	mu    sync.Mutex
	calls []string

	// FailOn makes Synthesize return Err for the n-th call (1-based). Zero disables it.
	FailOn int
	Err    error
}

func NewMockEngine() *MockEngine {
	return &MockEngine{}
}

func (m *MockEngine) Name() string {
	return EngineTypeMock.String()
}

func (m *MockEngine) Synthesize(ctx context.Context, text string, opts Options) (Audio, error) {
	if err := ctx.Err(); err != nil {
		return Audio{}, err
	}
	if err := checkText(text); err != nil {
		return Audio{}, err
	}

	m.mu.Lock()
	m.calls = append(m.calls, text)
	n := len(m.calls)
	m.mu.Unlock()

	if m.FailOn > 0 && n == m.FailOn && m.Err != nil {
		return Audio{}, m.Err
	}

	words := len(strings.Fields(text))
	length := time.Duration(float64(time.Duration(words)*mockPerWord) / speedOrDefault(opts.Speed))
	data, err := sound.Silence(length, mockSampleRate)
	if err != nil {
		return Audio{}, err
	}
	return Audio{Data: data, MediaType: sound.MediaTypeWAV}, nil
}

func (m *MockEngine) Voices(_ context.Context, language string) ([]Voice, error) {
	if language == "" {
		language = "en-US"
	}
	return []Voice{{Name: "mock-" + strings.ToLower(language), Languages: []string{language}, Description: "Silent test voice"}}, nil
}

// Calls returns the texts synthesized so far.
func (m *MockEngine) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func (m *MockEngine) Close() error {
	return nil
}
