package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mrlokans/autobooks/internal/cli/colours"
	"github.com/mrlokans/autobooks/internal/database/books"
	"github.com/mrlokans/autobooks/internal/entrypoint"
	"github.com/mrlokans/autobooks/internal/textlines"
)

func (r *runner) serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API with background generation and backups",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return entrypoint.Run(r.cfg, r.version)
		},
	}
}

func (r *runner) importCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.epub>...",
		Short: "Import EPUB books into the library",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := r.open()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			failed := 0
			for _, path := range args {
				result, err := app.Importer.ImportFile(cmd.Context(), path)
				if err != nil {
					colours.Error.Fprintf(out, "✗ %s: %v\n", path, err)
					failed++
					continue
				}
				colours.Success.Fprintf(out, "✓ Imported ")
				colours.Title.Fprintf(out, "%s", result.Title)
				fmt.Fprint(out, " by ")
				colours.Author.Fprintf(out, "%s", result.Author)
				fmt.Fprintf(out, " (id %d, %d chapters)\n", result.BookID, result.Chapters)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d files failed to import", failed, len(args))
			}
			return nil
		},
	}
}

func (r *runner) booksCommand() *cobra.Command {
	var favourites bool
	cmd := &cobra.Command{
		Use:   "books",
		Short: "List books in the library",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := r.open()
			if err != nil {
				return err
			}
			list, err := app.Books.List(books.Filter{FavouritesOnly: favourites})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(list) == 0 {
				colours.Warning.Fprintln(out, "No books found")
				return nil
			}
			for _, b := range list {
				star := " "
				if b.IsFavourite {
					star = "★"
				}
				colours.Info.Fprintf(out, "%4d ", b.ID)
				fmt.Fprintf(out, "%s ", star)
				colours.Title.Fprintf(out, "%s", b.Title)
				fmt.Fprint(out, " - ")
				colours.Author.Fprintf(out, "%s", b.Author)
				colours.Dim.Fprintf(out, "  %d/%d chapters read (%.0f%%)\n", b.ChaptersRead, b.NumChapters, b.ReadPercentage())
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&favourites, "favourites", false, "Only list favourite books")
	return cmd
}

func (r *runner) bookCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "book <id>",
		Short: "Show one book",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseBookID(args[0])
			if err != nil {
				return err
			}
			app, err := r.open()
			if err != nil {
				return err
			}
			book, err := app.Books.Get(id)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colours.Title.Fprintln(out, book.Title)
			colours.Author.Fprintln(out, book.Author)
			fmt.Fprintf(out, "Chapters:  %d (%d read, %.0f%%)\n", book.NumChapters, book.ChaptersRead, book.ReadPercentage())
			fmt.Fprintf(out, "Favourite: %t\n", book.IsFavourite)
			if book.CoverMediaType != "" {
				fmt.Fprintf(out, "Cover:     %s\n", book.CoverMediaType)
			}
			if book.SourceFile != "" {
				colours.Dim.Fprintf(out, "Imported from %s\n", book.SourceFile)
			}
			return nil
		},
	}
}

func (r *runner) favouriteCommand() *cobra.Command {
	var off bool
	var chapter int
	cmd := &cobra.Command{
		Use:   "favourite <book>",
		Short: "Mark a book or chapter as favourite",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseBookID(args[0])
			if err != nil {
				return err
			}
			app, err := r.open()
			if err != nil {
				return err
			}
			if chapter > 0 {
				err = app.Chapters.SetFavourite(id, chapter, !off)
			} else {
				err = app.Books.SetFavourite(id, !off)
			}
			if err != nil {
				return err
			}
			verb := "Added to"
			if off {
				verb = "Removed from"
			}
			colours.Success.Fprintf(cmd.OutOrStdout(), "%s favourites\n", verb)
			return nil
		},
	}
	cmd.Flags().BoolVar(&off, "off", false, "Remove from favourites instead")
	cmd.Flags().IntVar(&chapter, "chapter", 0, "Chapter number to mark instead of the whole book")
	return cmd
}

func (r *runner) chaptersCommand() *cobra.Command {
	var favourites bool
	cmd := &cobra.Command{
		Use:   "chapters [book]",
		Short: "List the chapters of a book, or favourite chapters across books",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && !favourites {
				return fmt.Errorf("a book id is required unless --favourites is set")
			}
			app, err := r.open()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if favourites {
				list, err := app.Chapters.ListFavourites()
				if err != nil {
					return err
				}
				if len(list) == 0 {
					colours.Warning.Fprintln(out, "No favourite chapters")
				}
				for _, ch := range list {
					colours.Info.Fprintf(out, "%4d/%-3d ", ch.BookID, ch.Number)
					colours.Title.Fprintln(out, ch.Title)
				}
				return nil
			}

			id, err := parseBookID(args[0])
			if err != nil {
				return err
			}
			if _, err := app.Books.Get(id); err != nil {
				return err
			}
			list, err := app.Chapters.ListByBook(id)
			if err != nil {
				return err
			}
			for _, ch := range list {
				flags := []byte("   ")
				if ch.IsRead {
					flags[0] = 'R'
				}
				if ch.AudioGenerated {
					flags[1] = 'A'
				}
				if ch.IsFavourite {
					flags[2] = '*'
				}
				colours.Info.Fprintf(out, "%3d ", ch.Number)
				colours.Dim.Fprintf(out, "%s ", flags)
				fmt.Fprintln(out, ch.Title)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&favourites, "favourites", false, "List favourite chapters across all books")
	return cmd
}

func (r *runner) readCommand() *cobra.Command {
	var noMark bool
	var line int
	cmd := &cobra.Command{
		Use:   "read <book> <chapter>",
		Short: "Print a chapter and mark it as read",
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
			ch, err := app.Chapters.Get(id, number)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			colours.Title.Fprintf(out, "%s\n\n", ch.Title)
			lines := ch.Lines()
			if line > 0 && line <= len(lines) {
				ranges := textlines.Ranges(ch.Text, lines)
				before, current, after := textlines.Highlight(ch.Text, ranges[line-1])
				fmt.Fprint(out, before)
				colours.Highlight.Fprint(out, current)
				fmt.Fprintln(out, after)
			} else {
				fmt.Fprintln(out, ch.Text)
			}

			if noMark {
				return nil
			}
			changed, err := app.Chapters.MarkRead(id, number)
			if err != nil {
				return err
			}
			if changed {
				colours.Success.Fprintln(out, "\nMarked as read")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&noMark, "no-mark", false, "Do not mark the chapter as read")
	cmd.Flags().IntVar(&line, "line", 0, "Highlight this line (1-based)")
	return cmd
}

func (r *runner) statsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show library counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := r.open()
			if err != nil {
				return err
			}
			stats, err := app.Books.Stats()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colours.Title.Fprintln(out, "Library")
			fmt.Fprintf(out, "  Books:     %d (%d favourite)\n", stats.Books, stats.Favourites)
			fmt.Fprintf(out, "  Chapters:  %d (%d read, %d with audio)\n", stats.Chapters, stats.ChaptersRead, stats.ChaptersVoiced)
			fmt.Fprintf(out, "  Audio:     %d lines, %.1f MiB\n", stats.AudioLines, float64(stats.AudioBytes)/(1<<20))
			return nil
		},
	}
}
