package config

import (
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

type (
	Config struct {
		HTTP
		Global
		Database
		Log
		TTS
		Playback
		Backup
		Dropbox
		Google
		NATS
		Tasks
		OAuth2
	}

	HTTP struct {
		Port          int32
		Host          string
		MaxUploadSize int64 // Bytes accepted for EPUB uploads
	}
	Global struct {
		ShutdownTimeoutInSeconds int
	}
	Database struct {
		Path string
	}
	Log struct {
		Level  string
		Format string // "text" or "json"
	}
	TTS struct {
		Engine         string // auto, espeak, google, http, mock
		Language       string
		Voice          string
		Speed          float64
		ServiceURL     string // Base URL for the http engine
		RequestTimeout time.Duration
		MaxRetries     int
		ESpeakPath     string
	}
	Playback struct {
		BufferDuration time.Duration // Speaker buffer size
	}
	Backup struct {
		Enabled    bool
		Schedule   string // Cron format: "0 3 * * *" = daily at 03:00
		Provider   string // gdrive, dropbox, nats
		RemoteDir  string
		KeepLocal  bool // Keep the replaced database as <path>.bak after restore
		NATSBucket string
	}
	Dropbox struct {
		AppKey string
	}
	Google struct {
		ClientID     string
		ClientSecret string
	}
	NATS struct {
		URL string
	}
	Tasks struct {
		Enabled           bool
		Workers           int
		MaxRetries        int
		RetryDelay        time.Duration
		TaskTimeout       time.Duration
		ReleaseAfter      time.Duration
		CleanupInterval   time.Duration
		RetentionDuration time.Duration
	}
	OAuth2 struct {
		CallbackPort  int
		RefreshMargin time.Duration // Refresh tokens expiring within this duration
	}
)

func NewConfig() *Config {
	v := viper.New()
	v.AutomaticEnv()

	// Optional config file, merged under the environment
	if path := v.GetString("AUTOBOOKS_CONFIG"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			logrus.WithError(err).WithField("path", path).Warn("Failed to read config file")
		}
	}

	v.SetDefault("port", 8188)
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("max_upload_size", 64<<20)
	v.SetDefault("shutdown_timeout_in_seconds", 5)
	v.SetDefault("database_path", DefaultDatabasePath)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")

	// Speech synthesis defaults
	v.SetDefault("tts_engine", "auto")
	v.SetDefault("tts_language", DefaultTTSLanguage)
	v.SetDefault("tts_voice", "")
	v.SetDefault("tts_speed", 1.0)
	v.SetDefault("tts_service_url", "")
	v.SetDefault("tts_request_timeout", "60s")
	v.SetDefault("tts_max_retries", 3)
	v.SetDefault("tts_espeak_path", "")

	v.SetDefault("playback_buffer_duration", "100ms")

	// Backup defaults
	v.SetDefault("backup_enabled", false)
	v.SetDefault("backup_schedule", "0 3 * * *") // Daily at 03:00
	v.SetDefault("backup_provider", "gdrive")
	v.SetDefault("backup_remote_dir", "")
	v.SetDefault("backup_keep_local", true)
	v.SetDefault("backup_nats_bucket", "autobooks-backups")
	v.SetDefault("nats_url", "nats://127.0.0.1:4222")

	// OAuth2 defaults
	v.SetDefault("oauth2_callback_port", 8089)
	v.SetDefault("oauth2_refresh_margin", "5m")

	// Task queue defaults
	v.SetDefault("tasks_enabled", true)
	v.SetDefault("task_workers", 2)
	v.SetDefault("task_max_retries", 1)
	v.SetDefault("task_retry_delay", "1m")
	v.SetDefault("task_timeout", "30m")
	v.SetDefault("task_release_after", "45m")
	v.SetDefault("task_cleanup_interval", "1h")
	v.SetDefault("task_retention_duration", "24h")

	return &Config{
		HTTP: HTTP{
			Port:          v.GetInt32("PORT"),
			Host:          v.GetString("HOST"),
			MaxUploadSize: v.GetInt64("MAX_UPLOAD_SIZE"),
		},
		Global: Global{
			ShutdownTimeoutInSeconds: v.GetInt("SHUTDOWN_TIMEOUT_IN_SECONDS"),
		},
		Database: Database{
			Path: v.GetString("DATABASE_PATH"),
		},
		Log: Log{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
		},
		TTS: TTS{
			Engine:         v.GetString("TTS_ENGINE"),
			Language:       v.GetString("TTS_LANGUAGE"),
			Voice:          v.GetString("TTS_VOICE"),
			Speed:          v.GetFloat64("TTS_SPEED"),
			ServiceURL:     v.GetString("TTS_SERVICE_URL"),
			RequestTimeout: v.GetDuration("TTS_REQUEST_TIMEOUT"),
			MaxRetries:     v.GetInt("TTS_MAX_RETRIES"),
			ESpeakPath:     v.GetString("TTS_ESPEAK_PATH"),
		},
		Playback: Playback{
			BufferDuration: v.GetDuration("PLAYBACK_BUFFER_DURATION"),
		},
		Backup: Backup{
			Enabled:    v.GetBool("BACKUP_ENABLED"),
			Schedule:   v.GetString("BACKUP_SCHEDULE"),
			Provider:   v.GetString("BACKUP_PROVIDER"),
			RemoteDir:  v.GetString("BACKUP_REMOTE_DIR"),
			KeepLocal:  v.GetBool("BACKUP_KEEP_LOCAL"),
			NATSBucket: v.GetString("BACKUP_NATS_BUCKET"),
		},
		Dropbox: Dropbox{
			AppKey: v.GetString("DROPBOX_APP_KEY"),
		},
		Google: Google{
			ClientID:     v.GetString("GOOGLE_CLIENT_ID"),
			ClientSecret: v.GetString("GOOGLE_CLIENT_SECRET"),
		},
		NATS: NATS{
			URL: v.GetString("NATS_URL"),
		},
		Tasks: Tasks{
			Enabled:           v.GetBool("TASKS_ENABLED"),
			Workers:           v.GetInt("TASK_WORKERS"),
			MaxRetries:        v.GetInt("TASK_MAX_RETRIES"),
			RetryDelay:        v.GetDuration("TASK_RETRY_DELAY"),
			TaskTimeout:       v.GetDuration("TASK_TIMEOUT"),
			ReleaseAfter:      v.GetDuration("TASK_RELEASE_AFTER"),
			CleanupInterval:   v.GetDuration("TASK_CLEANUP_INTERVAL"),
			RetentionDuration: v.GetDuration("TASK_RETENTION_DURATION"),
		},
		OAuth2: OAuth2{
			CallbackPort:  v.GetInt("OAUTH2_CALLBACK_PORT"),
			RefreshMargin: v.GetDuration("OAUTH2_REFRESH_MARGIN"),
		},
	}
}
