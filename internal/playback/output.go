package playback

import (
	"context"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/speaker"

	"github.com/mrlokans/autobooks/internal/sound"
)

// Output plays one clip at a time. done is called once when a clip ends on
// its own; it is not called for clips cut short by Stop or a newer Play.
type Output interface {
	Play(ctx context.Context, audio []byte, done func()) error
	Stop() error
}

// SpeakerOutput plays clips on the default audio device.
type SpeakerOutput struct {
	mu       sync.Mutex
	rate     beep.SampleRate
	buffer   time.Duration
	ready    bool
	streamer beep.StreamSeekCloser
}

// NewSpeakerOutput creates an output that initialises the speaker lazily at
// the sample rate of the first clip. Later clips are resampled to it.
func NewSpeakerOutput(buffer time.Duration) *SpeakerOutput {
	if buffer <= 0 {
		buffer = 100 * time.Millisecond
	}
	return &SpeakerOutput{buffer: buffer}
}

func (s *SpeakerOutput) Play(ctx context.Context, audio []byte, done func()) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	streamer, format, err := sound.Decode(audio)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.ready {
		if err := speaker.Init(format.SampleRate, format.SampleRate.N(s.buffer)); err != nil {
			streamer.Close()
			return err
		}
		s.rate = format.SampleRate
		s.ready = true
	}
	s.clear()

	var stream beep.Streamer = streamer
	if format.SampleRate != s.rate {
		stream = beep.Resample(4, format.SampleRate, s.rate, streamer)
	}
	s.streamer = streamer
	speaker.Play(beep.Seq(stream, beep.Callback(func() {
		// The speaker lock is held here; done may call back into Play.
		if done != nil {
			go done()
		}
	})))
	return nil
}

func (s *SpeakerOutput) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ready {
		return nil
	}
	s.clear()
	return nil
}

func (s *SpeakerOutput) clear() {
	speaker.Clear()
	if s.streamer != nil {
		s.streamer.Close()
		s.streamer = nil
	}
}
