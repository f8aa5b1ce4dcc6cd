package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mrlokans/autobooks/internal/cli/colours"
	"github.com/mrlokans/autobooks/internal/generator"
	"github.com/mrlokans/autobooks/internal/settingsstore"
)

func (r *runner) generateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "generate <book> [chapter]",
		Short: "Generate line audio for a chapter, or every pending chapter of a book",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseBookID(args[0])
			if err != nil {
				return err
			}
			app, err := r.open()
			if err != nil {
				return err
			}
			gen, err := app.Generator(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			reporter := generator.Fanout{newProgressPrinter(out), generator.NewJobReporter(app.Jobs)}
			colours.Dim.Fprintf(out, "Using %s engine\n", gen.Synthesizer().Name())

			if len(args) == 2 {
				number, err := parseChapter(args[1])
				if err != nil {
					return err
				}
				result, err := gen.GenerateChapter(cmd.Context(), id, number, reporter)
				if err != nil {
					return err
				}
				if result.Skipped {
					colours.Warning.Fprintf(out, "Chapter %d already has audio\n", number)
				}
				return nil
			}

			result, err := gen.GenerateBook(cmd.Context(), id, reporter)
			if err != nil {
				return err
			}
			colours.Success.Fprintf(out, "Generated %d chapters, %d already had audio\n", result.Generated, result.Skipped)
			return nil
		},
	}
}

func (r *runner) deleteAudioCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete-audio <book> <chapter>",
		Short: "Delete the generated audio of a chapter",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseBookID(args[0])
			if err != nil {
				return err
			}
			number, err := parseChapter(args[1])
			if err != nil {
				return err
			}
			app, err := r.open()
			if err != nil {
				return err
			}
			if _, err := app.Chapters.Get(id, number); err != nil {
				return err
			}
			// Deleting needs no engine, so skip the generator.
			if err := app.Audio.DeleteChapter(id, number); err != nil {
				return err
			}
			colours.Success.Fprintf(cmd.OutOrStdout(), "Deleted audio of chapter %d\n", number)
			return nil
		},
	}
}

func (r *runner) voicesCommand() *cobra.Command {
	var language string
	cmd := &cobra.Command{
		Use:   "voices",
		Short: "List the voices of the configured speech engine",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := r.open()
			if err != nil {
				return err
			}
			engine, err := app.Engine(cmd.Context())
			if err != nil {
				return err
			}
			if language == "" {
				language = app.Settings.GetTTSLanguage()
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
			defer cancel()
			voices, err := engine.Voices(ctx, language)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			colours.Title.Fprintf(out, "%s voices for %s\n", engine.Name(), language)
			for _, v := range voices {
				colours.Info.Fprintf(out, "  %-24s", v.Name)
				fmt.Fprintf(out, " %s", strings.Join(v.Languages, ","))
				if v.Gender != "" {
					colours.Dim.Fprintf(out, " %s", v.Gender)
				}
				fmt.Fprintln(out)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&language, "language", "", "Language code, defaults to the saved preference")
	return cmd
}

func (r *runner) ttsSettingsCommand() *cobra.Command {
	var language, voice string
	var speed float64
	var reset bool
	cmd := &cobra.Command{
		Use:   "tts-settings",
		Short: "Show or change speech preferences",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := r.open()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			flags := cmd.Flags()
			if reset {
				if err := app.Settings.ClearTTSSettings(); err != nil {
					return err
				}
				colours.Success.Fprintln(out, "Preferences reset")
			}
			// Validate before writing so a bad flag leaves nothing half saved.
			if flags.Changed("speed") {
				if err := settingsstore.ValidateTTSSpeed(speed); err != nil {
					return err
				}
			}
			if flags.Changed("language") && strings.TrimSpace(language) == "" {
				return fmt.Errorf("language must not be empty")
			}

			changed := false
			if flags.Changed("language") {
				if err := app.Settings.SetTTSLanguage(strings.TrimSpace(language)); err != nil {
					return err
				}
				changed = true
			}
			if flags.Changed("voice") {
				if err := app.Settings.SetTTSVoice(strings.TrimSpace(voice)); err != nil {
					return err
				}
				changed = true
			}
			if flags.Changed("speed") {
				if err := app.Settings.SetTTSSpeed(speed); err != nil {
					return err
				}
				changed = true
			}
			if changed {
				colours.Success.Fprintln(out, "Preferences saved")
			}
			printTTSPreferences(cmd, app.Settings.GetTTSPreferencesInfo())
			return nil
		},
	}
	cmd.Flags().StringVar(&language, "language", "", "Synthesis language, e.g. en")
	cmd.Flags().StringVar(&voice, "voice", "", "Voice name, empty for the engine default")
	cmd.Flags().Float64Var(&speed, "speed", 1.0, fmt.Sprintf("Speaking rate between %.2f and %.1f", settingsstore.MinTTSSpeed, settingsstore.MaxTTSSpeed))
	cmd.Flags().BoolVar(&reset, "reset", false, "Drop saved preferences and fall back to the environment or defaults")
	return cmd
}

func printTTSPreferences(cmd *cobra.Command, info settingsstore.TTSPreferencesInfo) {
	out := cmd.OutOrStdout()
	voice := info.Voice
	if voice == "" {
		voice = "(engine default)"
	}
	fmt.Fprintf(out, "Language: %s ", info.Language)
	colours.Dim.Fprintf(out, "[%s]\n", info.LanguageSource)
	fmt.Fprintf(out, "Voice:    %s ", voice)
	colours.Dim.Fprintf(out, "[%s]\n", info.VoiceSource)
	fmt.Fprintf(out, "Speed:    %.2f ", info.Speed)
	colours.Dim.Fprintf(out, "[%s]\n", info.SpeedSource)
}
