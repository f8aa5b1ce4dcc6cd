package tts

import (
	"time"

	"github.com/mrlokans/autobooks/internal/config"
)

func configWith(engine, url string) config.TTS {
	return config.TTS{
		Engine:         engine,
		Language:       "en-US",
		Speed:          1.0,
		ServiceURL:     url,
		RequestTimeout: 5 * time.Second,
		MaxRetries:     0,
	}
}
