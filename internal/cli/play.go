package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mrlokans/autobooks/internal/cli/colours"
	"github.com/mrlokans/autobooks/internal/playback"
	"github.com/mrlokans/autobooks/internal/textlines"
)

// lineListener prints each line as it starts, highlighted in its
// paragraph, and signals when the chapter ends.
type lineListener struct {
	out  io.Writer
	mu   sync.Mutex
	text string
	done chan error
	once sync.Once
}

func newLineListener(out io.Writer) *lineListener {
	return &lineListener{out: out, done: make(chan error, 1)}
}

func (l *lineListener) setText(text string) {
	l.mu.Lock()
	l.text = text
	l.mu.Unlock()
}

func (l *lineListener) LineStarted(index int, r textlines.Range) {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, line, _ := textlines.Highlight(l.text, r)
	colours.Dim.Fprintf(l.out, "%4d ", index+1)
	colours.Highlight.Fprint(l.out, line)
	fmt.Fprintln(l.out)
}

func (l *lineListener) Progress(int) {}

func (l *lineListener) Finished() {
	l.finish(nil)
}

func (l *lineListener) Error(err error) {
	l.finish(err)
}

func (l *lineListener) finish(err error) {
	l.once.Do(func() { l.done <- err })
}

func (r *runner) playCommand() *cobra.Command {
	var from int
	cmd := &cobra.Command{
		Use:   "play <book> <chapter>",
		Short: "Play a chapter through the speakers, printing each line as it is read",
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

			out := cmd.OutOrStdout()
			listener := newLineListener(out)
			output := playback.NewSpeakerOutput(r.cfg.Playback.BufferDuration)
			controller := playback.NewController(app.Chapters, app.Audio, output, listener)

			ctx := cmd.Context()
			if err := controller.Open(ctx, id, number); err != nil {
				return err
			}
			text, _, _ := controller.Text()
			listener.setText(text)

			state := controller.State()
			colours.Title.Fprintf(out, "%s", state.Title)
			colours.Dim.Fprintf(out, " (%d lines)\n", state.Lines)
			if from > 1 {
				if err := controller.Seek(from - 1); err != nil {
					return err
				}
			}
			if err := controller.Play(ctx); err != nil {
				if errors.Is(err, playback.ErrAudioNotGenerated) {
					return fmt.Errorf("chapter %d has no audio yet, run generate first", number)
				}
				return err
			}

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(quit)

			select {
			case err := <-listener.done:
				if err != nil {
					return err
				}
				colours.Success.Fprintln(out, "Finished")
			case <-quit:
				if err := controller.Stop(); err != nil {
					return err
				}
				state := controller.State()
				colours.Warning.Fprintf(out, "\nStopped at line %d of %d\n", state.Line+1, state.Lines)
			case <-ctx.Done():
				return controller.Stop()
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&from, "from", 1, "Line to start from (1-based)")
	return cmd
}
