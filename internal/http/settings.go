package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/mrlokans/autobooks/internal/tts"
)

// VoiceLister lists the voices of the active speech engine.
type VoiceLister interface {
	Name() string
	Voices(ctx context.Context, language string) ([]tts.Voice, error)
}

type TTSSettingsController struct {
	settings TTSSettingsStore
	engine   VoiceLister
}

func NewTTSSettingsController(settings TTSSettingsStore, engine VoiceLister) *TTSSettingsController {
	return &TTSSettingsController{settings: settings, engine: engine}
}

// UpdateTTSSettingsRequest changes only the fields that are present.
type UpdateTTSSettingsRequest struct {
	Language *string  `json:"language"`
	Voice    *string  `json:"voice"`
	Speed    *float64 `json:"speed"`
}

func (tc *TTSSettingsController) engineName() string {
	if tc.engine == nil {
		return "unavailable"
	}
	return tc.engine.Name()
}

// GetSettings handles GET /api/settings/tts
func (tc *TTSSettingsController) GetSettings(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"engine":   tc.engineName(),
		"settings": tc.settings.GetTTSPreferencesInfo(),
	})
}

// UpdateSettings handles PUT /api/settings/tts
func (tc *TTSSettingsController) UpdateSettings(c *gin.Context) {
	var req UpdateTTSSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	prefs := tc.settings.GetTTSPreferences()
	if req.Language != nil {
		language := strings.TrimSpace(*req.Language)
		if language == "" {
			respondBadRequest(c, "language must not be empty")
			return
		}
		prefs.Language = language
	}
	if req.Voice != nil {
		prefs.Voice = strings.TrimSpace(*req.Voice)
	}
	if req.Speed != nil {
		prefs.Speed = *req.Speed
	}

	if err := tc.settings.SetTTSPreferences(prefs); err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	logrus.WithFields(logrus.Fields{
		"language": prefs.Language,
		"voice":    prefs.Voice,
		"speed":    prefs.Speed,
	}).Info("TTS settings updated")
	c.JSON(http.StatusOK, gin.H{
		"engine":   tc.engineName(),
		"settings": tc.settings.GetTTSPreferencesInfo(),
	})
}

// ResetSettings handles POST /api/settings/tts/reset
func (tc *TTSSettingsController) ResetSettings(c *gin.Context) {
	if err := tc.settings.ClearTTSSettings(); err != nil {
		respondInternalError(c, err, "reset tts settings")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"engine":   tc.engineName(),
		"settings": tc.settings.GetTTSPreferencesInfo(),
	})
}

// ListVoices handles GET /api/tts/voices?language=
func (tc *TTSSettingsController) ListVoices(c *gin.Context) {
	if tc.engine == nil {
		respondError(c, http.StatusServiceUnavailable, "speech engine unavailable")
		return
	}
	language := c.Query("language")
	if language == "" {
		language = tc.settings.GetTTSPreferences().Language
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 15*time.Second)
	defer cancel()

	voices, err := tc.engine.Voices(ctx, language)
	if err != nil {
		logrus.WithError(err).WithField("engine", tc.engine.Name()).Warn("Failed to list voices")
		respondError(c, http.StatusBadGateway, "failed to list voices: "+err.Error())
		return
	}
	if voices == nil {
		voices = []tts.Voice{}
	}
	c.JSON(http.StatusOK, gin.H{
		"engine":   tc.engine.Name(),
		"language": language,
		"voices":   voices,
	})
}
