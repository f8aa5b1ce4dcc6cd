package http

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// NewRouter creates and configures the HTTP router with all endpoints.
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(requestLogger())
	router.Use(gin.Recovery())

	var ttsPinger Pinger
	if cfg.TTSError != nil {
		ttsErr := cfg.TTSError
		ttsPinger = pingFunc(func(context.Context) error { return ttsErr })
	} else if checker, ok := cfg.TTSEngine.(healthChecker); ok {
		ttsPinger = pingFunc(checker.HealthCheck)
	}

	health := NewHealthController(cfg.Database, ttsPinger, cfg.Version)
	booksController := NewBooksController(cfg.Books)
	chaptersController := NewChaptersController(cfg.Books, cfg.Chapters)
	audioController := NewAudioController(cfg.Books, cfg.Chapters, cfg.Lines, cfg.Jobs, cfg.Generator, cfg.Tasks, cfg.Reporter)
	ttsController := NewTTSSettingsController(cfg.TTSSettings, cfg.TTSEngine)

	// Health endpoints
	router.GET("/health", health.Status)
	router.GET("/ping", health.Ping)

	// Books API endpoints
	router.GET("/api/books", booksController.GetAllBooks)
	router.GET("/api/books/:id", booksController.GetBook)
	router.DELETE("/api/books/:id", booksController.DeleteBook)
	router.POST("/api/books/:id/favourite", booksController.AddFavourite)
	router.DELETE("/api/books/:id/favourite", booksController.RemoveFavourite)
	router.GET("/api/books/:id/cover", booksController.GetCover)
	router.GET("/api/stats", booksController.GetStats)

	// Import endpoints
	if cfg.Importer != nil {
		importController := NewEPUBImportController(cfg.Importer, cfg.MaxUploadSize)
		router.POST("/api/import/epub", importController.Import)
	}

	// Chapter endpoints
	router.GET("/api/books/:id/chapters", chaptersController.ListChapters)
	router.GET("/api/books/:id/chapters/:num", chaptersController.GetChapter)
	router.POST("/api/books/:id/chapters/:num/read", chaptersController.MarkRead)
	router.POST("/api/books/:id/chapters/:num/favourite", chaptersController.AddFavourite)
	router.DELETE("/api/books/:id/chapters/:num/favourite", chaptersController.RemoveFavourite)
	router.GET("/api/chapters/favourites", chaptersController.ListFavourites)

	// Audio endpoints
	router.POST("/api/books/:id/audio", audioController.GenerateBook)
	router.POST("/api/books/:id/chapters/:num/audio", audioController.GenerateChapter)
	router.DELETE("/api/books/:id/chapters/:num/audio", audioController.DeleteChapterAudio)
	router.GET("/api/books/:id/chapters/:num/audio/status", audioController.GetStatus)
	router.GET("/api/books/:id/chapters/:num/lines/:line/audio", audioController.GetLineAudio)

	// Speech settings
	router.GET("/api/settings/tts", ttsController.GetSettings)
	router.PUT("/api/settings/tts", ttsController.UpdateSettings)
	router.POST("/api/settings/tts/reset", ttsController.ResetSettings)
	router.GET("/api/tts/voices", ttsController.ListVoices)

	// Backup endpoints
	if cfg.Backup != nil && cfg.BackupSettings != nil {
		backupController := NewBackupController(cfg.Backup, cfg.BackupSettings, cfg.BackupHistory, cfg.BackupScheduler, cfg.Tasks, cfg.DatabasePath)
		router.POST("/api/backup/upload", backupController.Upload)
		router.POST("/api/backup/download", backupController.Download)
		router.GET("/api/backup/status", backupController.GetStatus)
		router.GET("/api/settings/backup", backupController.GetSettings)
		router.PUT("/api/settings/backup", backupController.UpdateSettings)
		router.POST("/api/settings/backup/reset", backupController.ResetSettings)
	}

	// Task management endpoints
	if cfg.Tasks != nil {
		tasksController := NewTasksController(cfg.Tasks)
		router.GET("/api/tasks/:id", tasksController.GetTaskStatus)
	}

	return router
}

// requestLogger logs one line per request through logrus.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := logrus.WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
			"client":   c.ClientIP(),
		})
		switch {
		case c.Writer.Status() >= 500:
			entry.Error("Request failed")
		case c.Writer.Status() >= 400:
			entry.Warn("Request rejected")
		default:
			entry.Debug("Request handled")
		}
	}
}
