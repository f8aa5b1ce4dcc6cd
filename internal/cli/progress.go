package cli

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/mrlokans/autobooks/internal/cli/colours"
	"github.com/mrlokans/autobooks/internal/generator"
)

const progressBarWidth = 30

// progressPrinter renders generation progress as a single redrawn bar per
// chapter.
type progressPrinter struct {
	out io.Writer
	mu  sync.Mutex
}

func newProgressPrinter(out io.Writer) *progressPrinter {
	return &progressPrinter{out: out}
}

func (p *progressPrinter) Started(chapter generator.ChapterRef, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	colours.Info.Fprintf(p.out, "Chapter %d", chapter.Number)
	if chapter.Title != "" {
		fmt.Fprintf(p.out, " %s", chapter.Title)
	}
	colours.Dim.Fprintf(p.out, " (%d lines)\n", total)
}

func (p *progressPrinter) LineGenerated(chapter generator.ChapterRef, done, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, "\r  %s %3d%%", progressBar(done, total), percentOf(done, total))
}

func (p *progressPrinter) Completed(chapter generator.ChapterRef) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprint(p.out, "\r")
	colours.Success.Fprintf(p.out, "  ✓ chapter %d done%s\n", chapter.Number, strings.Repeat(" ", progressBarWidth))
}

func (p *progressPrinter) Failed(chapter generator.ChapterRef, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprint(p.out, "\r")
	colours.Error.Fprintf(p.out, "  ✗ chapter %d: %v\n", chapter.Number, err)
}

func percentOf(done, total int) int {
	if total <= 0 {
		return 100
	}
	return done * 100 / total
}

func progressBar(done, total int) string {
	filled := percentOf(done, total) * progressBarWidth / 100
	return "[" + strings.Repeat("#", filled) + strings.Repeat(".", progressBarWidth-filled) + "]"
}
