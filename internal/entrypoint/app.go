package entrypoint

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/mrlokans/autobooks/internal/backup"
	"github.com/mrlokans/autobooks/internal/config"
	"github.com/mrlokans/autobooks/internal/database"
	"github.com/mrlokans/autobooks/internal/database/audio"
	"github.com/mrlokans/autobooks/internal/database/backups"
	"github.com/mrlokans/autobooks/internal/database/books"
	"github.com/mrlokans/autobooks/internal/database/chapters"
	"github.com/mrlokans/autobooks/internal/database/jobs"
	"github.com/mrlokans/autobooks/internal/database/settings"
	"github.com/mrlokans/autobooks/internal/entities"
	"github.com/mrlokans/autobooks/internal/generator"
	"github.com/mrlokans/autobooks/internal/importers"
	"github.com/mrlokans/autobooks/internal/oauth2"
	"github.com/mrlokans/autobooks/internal/oauth2/providers"
	"github.com/mrlokans/autobooks/internal/settingsstore"
	"github.com/mrlokans/autobooks/internal/tokenstore"
	"github.com/mrlokans/autobooks/internal/tts"
)

// App holds the components shared by the server and the CLI commands.
type App struct {
	Config  *config.Config
	Version string

	DB       *database.Database
	Books    *books.Repository
	Chapters *chapters.Repository
	Audio    *audio.Repository
	Jobs     *jobs.Repository
	Backups  *backups.Repository
	Settings *settingsstore.SettingsStore
	Importer *importers.EPUBImporter

	Tokens   *tokenstore.TokenStore
	Registry *oauth2.Registry
	Backup   *backup.Service

	engineOnce sync.Once
	engine     tts.Synthesizer
	engineErr  error
}

// NewApp applies a staged restore, opens the database and builds the
// repositories and services on top of it. The speech engine is created on
// first use since not every command needs one.
func NewApp(cfg *config.Config, version string) (*App, error) {
	restored, err := backup.ApplyPendingRestore(cfg.Database.Path, cfg.Backup.KeepLocal)
	if err != nil {
		logrus.WithError(err).Error("Failed to apply staged restore, keeping current database")
	} else if restored {
		logrus.WithField("path", cfg.Database.Path).Info("Restored database from downloaded backup")
	}

	db, err := database.NewDatabase(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	app := &App{
		Config:   cfg,
		Version:  version,
		DB:       db,
		Books:    books.NewRepository(db.DB),
		Chapters: chapters.NewRepository(db.DB),
		Audio:    audio.NewRepository(db.DB),
		Jobs:     jobs.NewRepository(db.DB),
		Backups:  backups.NewRepository(db.DB),
		Settings: settingsstore.New(settings.NewRepository(db.DB)),
		Registry: oauth2.NewRegistry(),
	}
	app.Importer = importers.NewEPUBImporter(app.Books)

	app.Tokens, err = tokenstore.New(db.DB, tokenstore.Config{Salts: app.Settings})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize token store: %w", err)
	}
	providers.Register(app.Registry, cfg.Dropbox.AppKey, cfg.Google.ClientID, cfg.Google.ClientSecret)

	clients := &backup.ProviderClients{
		Registry:      app.Registry,
		Tokens:        app.Tokens,
		RefreshMargin: cfg.OAuth2.RefreshMargin,
		NATSURL:       cfg.NATS.URL,
		NATSBucket:    cfg.Backup.NATSBucket,
	}
	app.Backup = backup.NewService(db, clients.Open, app.Backups, app.Settings, app.Books, backup.Config{
		RemoteDir:  cfg.Backup.RemoteDir,
		AppVersion: version,
	})

	return app, nil
}

// Engine returns the configured speech engine, creating it on first call.
func (a *App) Engine(ctx context.Context) (tts.Synthesizer, error) {
	a.engineOnce.Do(func() {
		a.engine, a.engineErr = tts.NewEngine(ctx, a.Config.TTS)
	})
	return a.engine, a.engineErr
}

// Generator returns an audio generator on top of the speech engine.
func (a *App) Generator(ctx context.Context) (*generator.Generator, error) {
	engine, err := a.Engine(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tts engine: %w", err)
	}
	return generator.New(a.Chapters, a.Audio, a.Settings, engine), nil
}

// Close releases the engine and the database.
func (a *App) Close() error {
	if a.engine != nil {
		if err := a.engine.Close(); err != nil {
			logrus.WithError(err).Warn("Failed to close tts engine")
		}
	}
	return a.DB.Close()
}

// RecoverInterruptedJobs fails chapter jobs a previous process left running
// and drops their partial audio so the flag and the rows agree again.
func (a *App) RecoverInterruptedJobs() {
	running, err := a.Jobs.ListRunning(entities.JobTypeChapterAudio)
	if err != nil {
		logrus.WithError(err).Warn("Failed to list interrupted jobs")
		return
	}
	for _, job := range running {
		log := logrus.WithField("job", job.JobKey)
		if bookID, number, ok := entities.ParseChapterJobKey(job.JobKey); ok {
			if err := a.Audio.DeleteChapter(bookID, number); err != nil {
				log.WithError(err).Warn("Failed to drop partial audio")
			}
		}
		if err := a.Jobs.Complete(job.JobType, job.JobKey, false, "interrupted by restart"); err != nil {
			log.WithError(err).Warn("Failed to close interrupted job")
			continue
		}
		log.Info("Marked interrupted generation as failed")
	}
}
