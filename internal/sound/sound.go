// Package sound decodes and encodes the audio clips stored per line.
package sound

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/wav"
)

const (
	MediaTypeWAV = "audio/wav"
	MediaTypeMP3 = "audio/mpeg"
)

var ErrUnknownFormat = errors.New("unknown audio format")

// Sniff returns the media type of an audio clip by its magic bytes.
func Sniff(data []byte) (string, error) {
	switch {
	case len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE":
		return MediaTypeWAV, nil
	case len(data) >= 3 && string(data[0:3]) == "ID3":
		return MediaTypeMP3, nil
	case len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0:
		return MediaTypeMP3, nil
	}
	return "", ErrUnknownFormat
}

// Decode opens a WAV or MP3 clip held in memory.
func Decode(data []byte) (beep.StreamSeekCloser, beep.Format, error) {
	mediaType, err := Sniff(data)
	if err != nil {
		return nil, beep.Format{}, err
	}
	switch mediaType {
	case MediaTypeWAV:
		return wav.Decode(bytes.NewReader(data))
	default:
		return mp3.Decode(io.NopCloser(bytes.NewReader(data)))
	}
}

// Duration returns the playing time of a clip.
func Duration(data []byte) (time.Duration, error) {
	streamer, format, err := Decode(data)
	if err != nil {
		return 0, err
	}
	defer streamer.Close()
	return format.SampleRate.D(streamer.Len()), nil
}

// Silence encodes a mono 16-bit WAV of the given length. Negative lengths
// encode an empty clip.
func Silence(d time.Duration, sampleRate beep.SampleRate) ([]byte, error) {
	format := beep.Format{SampleRate: sampleRate, NumChannels: 1, Precision: 2}
	samples := sampleRate.N(d)
	if samples < 0 {
		samples = 0
	}
	ws := &memWriteSeeker{}
	// beep.Silence streams forever for a negative count.
	if err := wav.Encode(ws, beep.Silence(samples), format); err != nil {
		return nil, fmt.Errorf("failed to encode wav: %w", err)
	}
	return ws.buf, nil
}

// memWriteSeeker is an in-memory io.WriteSeeker for wav.Encode.
type memWriteSeeker struct {
	buf []byte
	pos int
}

func (m *memWriteSeeker) Write(p []byte) (int, error) {
	end := m.pos + len(p)
	if end > len(m.buf) {
		m.buf = append(m.buf, make([]byte, end-len(m.buf))...)
	}
	copy(m.buf[m.pos:end], p)
	m.pos = end
	return len(p), nil
}

func (m *memWriteSeeker) Seek(offset int64, whence int) (int64, error) {
	var next int64
	switch whence {
	case io.SeekStart:
		next = offset
	case io.SeekCurrent:
		next = int64(m.pos) + offset
	case io.SeekEnd:
		next = int64(len(m.buf)) + offset
	default:
		return 0, errors.New("invalid whence")
	}
	if next < 0 {
		return 0, errors.New("negative position")
	}
	m.pos = int(next)
	return next, nil
}
