// Package cli implements the autobooks command line.
package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/mrlokans/autobooks/internal/config"
	"github.com/mrlokans/autobooks/internal/entrypoint"
	"github.com/mrlokans/autobooks/internal/logging"
)

// runner carries the configuration and the lazily opened app across a
// single command invocation.
type runner struct {
	version string
	dbPath  string
	cfg     *config.Config
	app     *entrypoint.App
}

// NewRootCommand builds the autobooks command tree.
func NewRootCommand(version string) *cobra.Command {
	r := &runner{version: version}

	root := &cobra.Command{
		Use:           "autobooks",
		Short:         "Listen to your EPUB books line by line",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			r.cfg = config.NewConfig()
			if r.dbPath != "" {
				r.cfg.Database.Path = r.dbPath
			}
			logging.Setup(r.cfg.Log)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return r.close()
		},
	}
	root.PersistentFlags().StringVar(&r.dbPath, "db", "", "Path to the library database (overrides DATABASE_PATH)")

	root.AddCommand(
		r.serveCommand(),
		r.importCommand(),
		r.booksCommand(),
		r.bookCommand(),
		r.favouriteCommand(),
		r.chaptersCommand(),
		r.readCommand(),
		r.statsCommand(),
		r.generateCommand(),
		r.deleteAudioCommand(),
		r.playCommand(),
		r.voicesCommand(),
		r.ttsSettingsCommand(),
		r.backupCommand(),
		r.dropboxAuthCommand(),
		r.googleAuthCommand(),
		r.signOutCommand(),
	)
	return root
}

func (r *runner) open() (*entrypoint.App, error) {
	if r.app != nil {
		return r.app, nil
	}
	app, err := entrypoint.NewApp(r.cfg, r.version)
	if err != nil {
		return nil, err
	}
	r.app = app
	return app, nil
}

func (r *runner) close() error {
	if r.app == nil {
		return nil
	}
	err := r.app.Close()
	r.app = nil
	return err
}

func parseBookID(arg string) (uint, error) {
	id, err := strconv.ParseUint(arg, 10, 32)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid book id %q", arg)
	}
	return uint(id), nil
}

func parseChapter(arg string) (int, error) {
	n, err := strconv.Atoi(arg)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid chapter number %q", arg)
	}
	return n, nil
}
