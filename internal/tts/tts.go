// Package tts turns text lines into audio clips.
package tts

import (
	"context"
	"errors"
	"strings"
)

var (
	ErrEmptyText         = errors.New("text is empty")
	ErrUnsupportedEngine = errors.New("unsupported tts engine")
)

// Options controls one synthesis request. Zero values mean engine defaults.
type Options struct {
	Language string
	Voice    string
	Speed    float64
}

// Audio is a synthesized clip.
type Audio struct {
	Data      []byte
	MediaType string
}

// Voice describes a voice an engine can use.
type Voice struct {
	Name        string   `json:"name"`
	Languages   []string `json:"languages"`
	Gender      string   `json:"gender,omitempty"`
	Description string   `json:"description,omitempty"`
}

// Synthesizer converts text to audio.
//
// Implementations:
//   - ESpeakEngine (espeak.go) - local espeak-ng / espeak binary
//   - GoogleEngine (google.go) - Google Cloud Text-to-Speech
//   - HTTPEngine (http.go) - remote TTS service
//   - MockEngine (mock.go) - silent WAV clips for tests and demos
type Synthesizer interface {
	Name() string
	Synthesize(ctx context.Context, text string, opts Options) (Audio, error)
	Voices(ctx context.Context, language string) ([]Voice, error)
	Close() error
}

func checkText(text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyText
	}
	return nil
}

func speedOrDefault(speed float64) float64 {
	if speed <= 0 {
		return 1.0
	}
	return speed
}
