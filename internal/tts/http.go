package tts

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/mrlokans/autobooks/internal/logging"
)

const (
	apiGenerateSpeech = "/v1/generate/speech"
	apiVoices         = "/v1/voices"
	apiHealth         = "/health"
)

type speechRequest struct {
	Text     string  `json:"text"`
	Language string  `json:"language"`
	Voice    string  `json:"voice,omitempty"`
	Speed    float64 `json:"speed"`
}

type errorResponse struct {
	Detail    string `json:"detail"`
	ErrorCode string `json:"error_code,omitempty"`
}

type voicesResponse struct {
	Voices []Voice `json:"voices"`
}

// HTTPEngine talks to a standalone TTS service that returns audio/wav.
type HTTPEngine struct {
	client *resty.Client
}

func NewHTTPEngine(baseURL string, timeout time.Duration, retries int) *HTTPEngine {
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetLogger(logging.Component("tts-http")).
		SetRetryCount(retries).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= http.StatusInternalServerError
		})
	return &HTTPEngine{client: client}
}

func (h *HTTPEngine) Name() string {
	return EngineTypeHTTP.String()
}

func (h *HTTPEngine) Synthesize(ctx context.Context, text string, opts Options) (Audio, error) {
	if err := checkText(text); err != nil {
		return Audio{}, err
	}

	var apiErr errorResponse
	resp, err := h.client.R().
		SetContext(ctx).
		SetHeader("Accept", "audio/wav").
		SetBody(speechRequest{
			Text:     text,
			Language: opts.Language,
			Voice:    opts.Voice,
			Speed:    speedOrDefault(opts.Speed),
		}).
		SetError(&apiErr).
		Post(apiGenerateSpeech)
	if err != nil {
		return Audio{}, fmt.Errorf("tts request failed: %w", err)
	}
	if resp.IsError() {
		return Audio{}, fmt.Errorf("tts service returned %d: %s", resp.StatusCode(), apiErr.Detail)
	}

	contentType := resp.Header().Get("Content-Type")
	if !strings.HasPrefix(contentType, "audio/") {
		return Audio{}, fmt.Errorf("unexpected content type: expected audio/wav, got %s", contentType)
	}
	return Audio{Data: resp.Body(), MediaType: strings.TrimSpace(strings.Split(contentType, ";")[0])}, nil
}

func (h *HTTPEngine) Voices(ctx context.Context, language string) ([]Voice, error) {
	var result voicesResponse
	req := h.client.R().SetContext(ctx).SetResult(&result)
	if language != "" {
		req.SetQueryParam("language", language)
	}
	resp, err := req.Get(apiVoices)
	if err != nil {
		return nil, fmt.Errorf("voices request failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("tts service returned %d", resp.StatusCode())
	}
	return result.Voices, nil
}

// HealthCheck returns an error unless the service answers /health with 2xx.
func (h *HTTPEngine) HealthCheck(ctx context.Context) error {
	resp, err := h.client.R().SetContext(ctx).Get(apiHealth)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("health check returned %d", resp.StatusCode())
	}
	return nil
}

func (h *HTTPEngine) Close() error {
	return nil
}
