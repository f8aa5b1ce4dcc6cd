package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/mrlokans/autobooks/internal/backup"
	"github.com/mrlokans/autobooks/internal/cli/colours"
	"github.com/mrlokans/autobooks/internal/entities"
	"github.com/mrlokans/autobooks/internal/settingsstore"
	"github.com/mrlokans/autobooks/internal/storage"
)

func (r *runner) backupCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Upload, download and inspect cloud backups of the library",
	}
	cmd.AddCommand(r.backupUploadCommand(), r.backupDownloadCommand(), r.backupStatusCommand(), r.backupListCommand())
	return cmd
}

func (r *runner) backupUploadCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "upload",
		Short: "Upload a snapshot of the library to the configured provider",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := r.open()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colours.Info.Fprintf(out, "Uploading to %s\n", app.Settings.GetBackupProvider())
			result, err := app.Backup.Upload(cmd.Context(), transferProgress(out))
			fmt.Fprintln(out)
			if err != nil {
				return err
			}
			colours.Success.Fprintf(out, "✓ Uploaded %s (%d bytes) in %s\n", result.RemotePath, result.Size, result.Duration.Round(time.Millisecond))
			colours.Dim.Fprintf(out, "  sha256 %s\n", result.Checksum)
			return nil
		},
	}
}

func (r *runner) backupDownloadCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "download",
		Short: "Download the latest backup and replace the local library",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := r.open()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colours.Info.Fprintf(out, "Downloading from %s\n", app.Settings.GetBackupProvider())
			result, err := app.Backup.Download(cmd.Context(), transferProgress(out))
			fmt.Fprintln(out)
			if err != nil {
				return err
			}
			if result.Manifest != nil {
				colours.Dim.Fprintf(out, "  backup %s from %s, %d books\n",
					result.Manifest.ID, result.Manifest.CreatedAt.Format(time.RFC3339), result.Manifest.Books)
			}

			// The database has to be closed before its file is replaced.
			if err := r.close(); err != nil {
				return fmt.Errorf("close database: %w", err)
			}
			if err := backup.Restore(result.LocalPath, r.cfg.Database.Path, r.cfg.Backup.KeepLocal); err != nil {
				return err
			}
			colours.Success.Fprintf(out, "✓ Restored %d bytes into %s\n", result.Size, r.cfg.Database.Path)
			return nil
		},
	}
}

func (r *runner) backupStatusCommand() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show backup settings, the last outcome and recent history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := r.open()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			info := app.Settings.GetBackupConfigInfo()

			colours.Title.Fprintln(out, "Backup")
			fmt.Fprintf(out, "  Enabled:  %t ", info.Enabled)
			colours.Dim.Fprintf(out, "[%s]\n", info.EnabledSource)
			fmt.Fprintf(out, "  Provider: %s ", info.Provider)
			colours.Dim.Fprintf(out, "[%s]\n", info.ProviderSource)
			fmt.Fprintf(out, "  Schedule: %s (%s) ", info.Schedule, info.ScheduleDescription)
			colours.Dim.Fprintf(out, "[%s]\n", info.ScheduleSource)
			if info.Enabled {
				if next, err := settingsstore.NextRunTime(info.Schedule); err == nil && next != nil {
					fmt.Fprintf(out, "  Next run: %s\n", next.Local().Format(time.RFC1123))
				}
			}

			status := app.Backup.Status()
			if status.LastAt != nil {
				fmt.Fprintf(out, "  Last:     %s at %s\n", status.Status, status.LastAt.Local().Format(time.RFC1123))
				if status.Message != "" {
					colours.Dim.Fprintf(out, "            %s\n", status.Message)
				}
			}

			history, err := app.Backups.List(limit)
			if err != nil {
				return err
			}
			if len(history) == 0 {
				return nil
			}
			colours.Title.Fprintln(out, "\nHistory")
			for _, rec := range history {
				c := colours.Success
				if rec.Status != entities.JobStatusCompleted {
					c = colours.Error
				}
				c.Fprintf(out, "  %-9s", rec.Status)
				fmt.Fprintf(out, " %-8s %-8s %10d  %s\n", rec.Direction, rec.Provider, rec.Size, rec.CreatedAt.Local().Format("2006-01-02 15:04"))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "Number of history entries to show")
	return cmd
}

func (r *runner) backupListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List backup files stored with the configured provider",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := r.open()
			if err != nil {
				return err
			}
			remote, err := app.Backup.ListRemote(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colours.Title.Fprintf(out, "Backups on %s\n", remote.Provider)
			if len(remote.Files) == 0 {
				colours.Warning.Fprintln(out, "  No backup found")
				return nil
			}
			for _, f := range remote.Files {
				fmt.Fprintf(out, "  %-40s %10d", f.Path, f.Size)
				if !f.ModifiedAt.IsZero() {
					colours.Dim.Fprintf(out, "  %s", f.ModifiedAt.Local().Format("2006-01-02 15:04"))
				}
				fmt.Fprintln(out)
			}
			if remote.Database == nil {
				colours.Warning.Fprintln(out, "  The database snapshot is missing, download will fail")
			}
			return nil
		},
	}
}

func transferProgress(out io.Writer) storage.ProgressFunc {
	return func(done, total int64) {
		if total > 0 {
			fmt.Fprintf(out, "\r  %s %3d%%", progressBar(int(done*100/total), 100), done*100/total)
			return
		}
		fmt.Fprintf(out, "\r  %d bytes", done)
	}
}
