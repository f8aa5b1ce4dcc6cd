package tts

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/autobooks/internal/sound"
)

func TestMockEngine_Synthesize(t *testing.T) {
	engine := NewMockEngine()

	audio, err := engine.Synthesize(context.Background(), "four words right here", Options{})
	require.NoError(t, err)
	assert.Equal(t, sound.MediaTypeWAV, audio.MediaType)

	d, err := sound.Duration(audio.Data)
	require.NoError(t, err)
	assert.Equal(t, time.Second, d)

	fast, err := engine.Synthesize(context.Background(), "four words right here", Options{Speed: 2})
	require.NoError(t, err)
	d, err = sound.Duration(fast.Data)
	require.NoError(t, err)
	assert.Equal(t, 500*time.Millisecond, d)

	assert.Len(t, engine.Calls(), 2)
}

func TestMockEngine_EmptyText(t *testing.T) {
	_, err := NewMockEngine().Synthesize(context.Background(), "   ", Options{})
	assert.ErrorIs(t, err, ErrEmptyText)
}

func TestMockEngine_FailOn(t *testing.T) {
	engine := NewMockEngine()
	engine.FailOn = 2
	engine.Err = errors.New("quota exceeded")

	_, err := engine.Synthesize(context.Background(), "one", Options{})
	require.NoError(t, err)
	_, err = engine.Synthesize(context.Background(), "two", Options{})
	assert.EqualError(t, err, "quota exceeded")
}

func TestMockEngine_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewMockEngine().Synthesize(ctx, "hello", Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewEngine(t *testing.T) {
	engine, err := NewEngine(context.Background(), configWith("mock", ""))
	require.NoError(t, err)
	assert.Equal(t, "mock", engine.Name())

	_, err = NewEngine(context.Background(), configWith("festival", ""))
	assert.ErrorIs(t, err, ErrUnsupportedEngine)

	_, err = NewEngine(context.Background(), configWith("http", ""))
	assert.Error(t, err)

	engine, err = NewEngine(context.Background(), configWith("http", "http://localhost:9"))
	require.NoError(t, err)
	assert.Equal(t, "http", engine.Name())
}

func TestBestEngine(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")
	assert.Equal(t, EngineTypeGoogle, bestEngine(configWith("auto", "")))
}
