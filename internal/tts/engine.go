package tts

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/mrlokans/autobooks/internal/config"
)

type EngineType string

const (
	EngineTypeAuto   EngineType = "auto"
	EngineTypeESpeak EngineType = "espeak"
	EngineTypeGoogle EngineType = "google"
	EngineTypeHTTP   EngineType = "http"
	EngineTypeMock   EngineType = "mock"
)

func (e EngineType) String() string {
	return string(e)
}

// NewEngine creates the synthesizer selected by cfg.Engine.
func NewEngine(ctx context.Context, cfg config.TTS) (Synthesizer, error) {
	engineType := EngineType(cfg.Engine)
	if engineType == "" || engineType == EngineTypeAuto {
		engineType = bestEngine(cfg)
		logrus.WithField("engine", engineType).Info("Selected TTS engine")
	}

	switch engineType {
	case EngineTypeMock:
		return NewMockEngine(), nil
	case EngineTypeESpeak:
		return NewESpeakEngine(cfg.ESpeakPath)
	case EngineTypeGoogle:
		return NewGoogleEngine(ctx)
	case EngineTypeHTTP:
		if cfg.ServiceURL == "" {
			return nil, fmt.Errorf("http engine requires TTS_SERVICE_URL")
		}
		return NewHTTPEngine(cfg.ServiceURL, cfg.RequestTimeout, cfg.MaxRetries), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedEngine, cfg.Engine)
	}
}

// bestEngine prefers Google when credentials exist, then a configured
// remote service, then the local espeak binary.
func bestEngine(cfg config.TTS) EngineType {
	if hasGoogleCredentials() {
		return EngineTypeGoogle
	}
	if cfg.ServiceURL != "" {
		return EngineTypeHTTP
	}
	return EngineTypeESpeak
}

func hasGoogleCredentials() bool {
	_, ok := os.LookupEnv("GOOGLE_APPLICATION_CREDENTIALS")
	return ok
}
