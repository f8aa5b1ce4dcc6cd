package entrypoint

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/mrlokans/autobooks/internal/config"
	"github.com/mrlokans/autobooks/internal/generator"
	http_controllers "github.com/mrlokans/autobooks/internal/http"
	"github.com/mrlokans/autobooks/internal/oauth2"
	"github.com/mrlokans/autobooks/internal/scheduler"
	"github.com/mrlokans/autobooks/internal/tasks"
)

// ShutdownFunc is called during graceful shutdown to clean up resources.
type ShutdownFunc func(ctx context.Context)

// Serve runs the HTTP server until SIGINT or SIGTERM, then shuts down
// gracefully within the configured timeout.
func Serve(router *gin.Engine, cfg *config.Config, onShutdown ShutdownFunc) error {
	timeout := time.Duration(cfg.Global.ShutdownTimeoutInSeconds) * time.Second

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler: router,
	}

	serveErr := make(chan error, 1)
	go func() {
		logrus.WithField("addr", srv.Addr).Info("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err, ok := <-serveErr:
		if ok {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-quit:
	}
	logrus.WithField("timeout", timeout).Info("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// Stop background work before the server so nothing writes after close
	if onShutdown != nil {
		onShutdown(ctx)
	}

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	logrus.Info("Server exiting")
	return nil
}

// speech holds the router's view of the speech engine. The interface fields
// stay nil when the engine could not be created.
type speech struct {
	generator *generator.Generator
	audio     http_controllers.AudioGenerator
	voices    http_controllers.VoiceLister
	err       error
}

// newSpeech creates the engine. Reading, import and backups work without
// speech, so a failure only disables generation and degrades health.
func newSpeech(ctx context.Context, app *App) speech {
	gen, err := app.Generator(ctx)
	if err != nil {
		logrus.WithError(err).Warn("Speech engine unavailable, audio generation disabled")
		return speech{err: err}
	}
	return speech{generator: gen, audio: gen, voices: gen.Synthesizer()}
}

// Run wires every component and serves the HTTP API.
func Run(cfg *config.Config, version string) error {
	logrus.WithField("version", version).Info("Starting AutoBooks")

	app, err := NewApp(cfg, version)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			logrus.WithError(err).Error("Error closing database")
		}
	}()

	app.RecoverInterruptedJobs()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	engine := newSpeech(ctx, app)
	gen := engine.generator
	reporter := generator.Fanout{generator.LogReporter{}, generator.NewJobReporter(app.Jobs)}

	// Initialize task queue if enabled
	var taskClient *tasks.Client
	var queue http_controllers.TaskQueue
	if cfg.Tasks.Enabled {
		taskClient, err = tasks.NewClient(cfg.Database.Path, tasks.FromConfig(cfg.Tasks))
		if err != nil {
			return fmt.Errorf("failed to initialize task queue: %w", err)
		}
		defer func() {
			if err := taskClient.Close(); err != nil {
				logrus.WithError(err).Error("Error closing task client")
			}
		}()

		taskClient.Register(tasks.NewBackupUploadQueue(app.Backup))
		if gen != nil {
			taskClient.Register(
				tasks.NewGenerateChapterAudioQueue(gen, reporter),
				tasks.NewGenerateBookAudioQueue(app.Chapters, taskClient),
			)
		}
		go taskClient.Start(ctx)
		queue = taskClient
	} else {
		logrus.Info("Task queue disabled, generation and backups run inline")
	}

	// Scheduled backups go through the queue when there is one
	runBackup := func(ctx context.Context, trigger string) error {
		if taskClient != nil {
			_, err := taskClient.Enqueue(ctx, tasks.BackupUploadTask{Trigger: trigger})
			return err
		}
		_, err := app.Backup.Upload(ctx, nil)
		return err
	}
	backupScheduler := scheduler.NewBackupScheduler(app.Settings, runBackup)
	if err := backupScheduler.Start(ctx); err != nil {
		logrus.WithError(err).Warn("Failed to start backup scheduler")
	}

	refreshCfg := oauth2.DefaultRefreshConfig()
	if cfg.OAuth2.RefreshMargin > 0 {
		refreshCfg.RefreshMargin = cfg.OAuth2.RefreshMargin
	}
	refresher := oauth2.NewRefreshScheduler(app.Tokens, app.Registry, refreshCfg)
	refresher.Start(ctx)

	router := http_controllers.NewRouter(http_controllers.RouterConfig{
		Database:        app.DB,
		Books:           app.Books,
		Chapters:        app.Chapters,
		Lines:           app.Audio,
		Jobs:            app.Jobs,
		Importer:        app.Importer,
		MaxUploadSize:   cfg.HTTP.MaxUploadSize,
		Generator:       engine.audio,
		Reporter:        reporter,
		TTSEngine:       engine.voices,
		TTSError:        engine.err,
		TTSSettings:     app.Settings,
		Backup:          app.Backup,
		BackupSettings:  app.Settings,
		BackupHistory:   app.Backups,
		BackupScheduler: backupScheduler,
		DatabasePath:    cfg.Database.Path,
		Tasks:           queue,
		Version:         version,
	})

	onShutdown := func(ctx context.Context) {
		backupScheduler.Stop()
		refresher.Stop()
		if taskClient != nil {
			taskClient.Stop(ctx)
		}
		cancel()
	}

	return Serve(router, cfg, onShutdown)
}
