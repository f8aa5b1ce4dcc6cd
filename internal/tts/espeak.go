package tts

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/mrlokans/autobooks/internal/sound"
)

const (
	espeakBaseWPM = 175
	espeakMinWPM  = 80
	espeakMaxWPM  = 450
)

type commandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok && len(exitErr.Stderr) > 0 {
			return nil, fmt.Errorf("%w: %s", err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return nil, err
	}
	return out, nil
}

// ESpeakEngine synthesizes WAV through the espeak-ng (or espeak) binary.
type ESpeakEngine struct {
	path string
	run  commandRunner
}

// NewESpeakEngine uses the binary at path, or looks one up in PATH.
func NewESpeakEngine(path string) (*ESpeakEngine, error) {
	if path == "" {
		found, err := findESpeakExecutable()
		if err != nil {
			return nil, err
		}
		path = found
	}
	return &ESpeakEngine{path: path, run: runCommand}, nil
}

func findESpeakExecutable() (string, error) {
	for _, candidate := range []string{"espeak-ng", "espeak"} {
		if path, err := exec.LookPath(candidate); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("espeak executable not found in PATH")
}

func (e *ESpeakEngine) Name() string {
	return EngineTypeESpeak.String()
}

func (e *ESpeakEngine) Synthesize(ctx context.Context, text string, opts Options) (Audio, error) {
	if err := checkText(text); err != nil {
		return Audio{}, err
	}

	args := []string{"--stdout", "-s", strconv.Itoa(espeakWPM(opts.Speed))}
	if voice := espeakVoice(opts); voice != "" {
		args = append(args, "-v", voice)
	}
	// A leading dash would be read as an option
	if strings.HasPrefix(text, "-") {
		text = " " + text
	}
	args = append(args, text)

	out, err := e.run(ctx, e.path, args...)
	if err != nil {
		return Audio{}, fmt.Errorf("espeak failed: %w", err)
	}
	if _, err := sound.Sniff(out); err != nil {
		return Audio{}, fmt.Errorf("espeak produced no audio: %w", err)
	}
	return Audio{Data: out, MediaType: sound.MediaTypeWAV}, nil
}

func (e *ESpeakEngine) Voices(ctx context.Context, language string) ([]Voice, error) {
	arg := "--voices"
	if language != "" {
		arg += "=" + strings.ToLower(language)
	}
	out, err := e.run(ctx, e.path, arg)
	if err != nil {
		return nil, fmt.Errorf("espeak voices failed: %w", err)
	}
	return parseESpeakVoices(string(out)), nil
}

func (e *ESpeakEngine) Close() error {
	return nil
}

func espeakWPM(speed float64) int {
	wpm := int(espeakBaseWPM * speedOrDefault(speed))
	if wpm < espeakMinWPM {
		return espeakMinWPM
	}
	if wpm > espeakMaxWPM {
		return espeakMaxWPM
	}
	return wpm
}

func espeakVoice(opts Options) string {
	if opts.Voice != "" && opts.Voice != "default" {
		return opts.Voice
	}
	return strings.ToLower(opts.Language)
}

// parseESpeakVoices reads the table printed by --voices:
// Pty Language Age/Gender VoiceName File Other Languages
func parseESpeakVoices(output string) []Voice {
	lines := strings.Split(output, "\n")
	voices := make([]Voice, 0, len(lines))

	for i, line := range lines {
		if i == 0 || strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 4 {
			continue
		}
		voices = append(voices, Voice{
			Name:        fields[1],
			Languages:   []string{fields[1]},
			Gender:      espeakGender(fields[2]),
			Description: fields[3],
		})
	}
	return voices
}

func espeakGender(field string) string {
	switch {
	case strings.HasSuffix(field, "M"):
		return "male"
	case strings.HasSuffix(field, "F"):
		return "female"
	}
	return ""
}
