// Package playback replays a chapter's line audio in order and tracks the
// line being spoken.
package playback

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/mrlokans/autobooks/internal/entities"
	"github.com/mrlokans/autobooks/internal/textlines"
)

var (
	ErrNotOpen           = errors.New("no chapter open")
	ErrLineOutOfRange    = errors.New("line out of range")
	ErrAudioNotGenerated = entities.ErrAudioNotGenerated
)

// ChapterStore loads chapters and records reading.
type ChapterStore interface {
	Get(bookID uint, number int) (*entities.Chapter, error)
	MarkRead(bookID uint, number int) (bool, error)
}

// LineSource loads stored line audio.
type LineSource interface {
	GetLine(bookID uint, number, index int) (*entities.LineAudio, error)
}

// State is a snapshot of the controller.
type State struct {
	BookID  uint   `json:"book_id"`
	Chapter int    `json:"chapter"`
	Title   string `json:"title"`
	Line    int    `json:"line"`
	Lines   int    `json:"lines"`
	Playing bool   `json:"playing"`
	Percent int    `json:"percent"`
}

// Controller plays one opened chapter. Every Play, Stop, Next, Previous and
// Seek bumps a generation counter; a completion carrying an older
// generation is ignored.
type Controller struct {
	chapters ChapterStore
	audio    LineSource
	output   Output
	listener Listener

	mu         sync.Mutex
	opened     bool
	bookID     uint
	number     int
	title      string
	text       string
	lines      []string
	ranges     []textlines.Range
	hasAudio   bool
	position   int
	playing    bool
	generation uint64
	ctx        context.Context
}

func NewController(chapters ChapterStore, audio LineSource, output Output, listener Listener) *Controller {
	if listener == nil {
		listener = NopListener{}
	}
	return &Controller{
		chapters: chapters,
		audio:    audio,
		output:   output,
		listener: listener,
		ctx:      context.Background(),
	}
}

// Open loads a chapter, marks it read and rewinds to the first line.
func (c *Controller) Open(ctx context.Context, bookID uint, number int) error {
	chapter, err := c.chapters.Get(bookID, number)
	if err != nil {
		return fmt.Errorf("open chapter: %w", err)
	}
	if !chapter.IsRead {
		if _, err := c.chapters.MarkRead(bookID, number); err != nil {
			return fmt.Errorf("mark chapter read: %w", err)
		}
	}

	c.mu.Lock()
	c.halt()
	lines := textlines.Split(chapter.Text)
	c.opened = true
	c.bookID = bookID
	c.number = number
	c.title = chapter.Title
	c.text = chapter.Text
	c.lines = lines
	c.ranges = textlines.Ranges(chapter.Text, lines)
	c.hasAudio = chapter.AudioGenerated
	c.position = 0
	c.ctx = ctx
	c.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"book_id": bookID,
		"chapter": number,
		"lines":   len(lines),
	}).Debug("Chapter opened")
	return nil
}

// Play starts playing from the current line.
func (c *Controller) Play(ctx context.Context) error {
	c.mu.Lock()
	if !c.opened {
		c.mu.Unlock()
		return ErrNotOpen
	}
	if !c.hasAudio {
		c.mu.Unlock()
		return ErrAudioNotGenerated
	}
	c.ctx = ctx
	if len(c.lines) == 0 {
		c.mu.Unlock()
		c.listener.Finished()
		return nil
	}
	emit, err := c.playCurrent()
	c.mu.Unlock()
	emit()
	return err
}

// Stop halts playback and keeps the position.
func (c *Controller) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.halt()
}

func (c *Controller) halt() error {
	c.generation++
	if !c.playing {
		return nil
	}
	c.playing = false
	return c.output.Stop()
}

// Next moves one line forward, clamped to the last line.
func (c *Controller) Next() error {
	return c.move(func(pos int) int { return pos + 1 })
}

// Previous moves one line back, clamped to the first line.
func (c *Controller) Previous() error {
	return c.move(func(pos int) int { return pos - 1 })
}

// Seek jumps to a line. Playback restarts there if it was running.
func (c *Controller) Seek(index int) error {
	c.mu.Lock()
	n := len(c.lines)
	c.mu.Unlock()
	if index < 0 || index >= n {
		return fmt.Errorf("%w: %d of %d", ErrLineOutOfRange, index, n)
	}
	return c.move(func(int) int { return index })
}

func (c *Controller) move(step func(int) int) error {
	c.mu.Lock()
	if !c.opened {
		c.mu.Unlock()
		return ErrNotOpen
	}
	n := len(c.lines)
	if n == 0 {
		c.mu.Unlock()
		return nil
	}
	c.position = clamp(step(c.position), 0, n-1)
	c.generation++
	if !c.playing {
		c.mu.Unlock()
		return nil
	}
	emit, err := c.playCurrent()
	c.mu.Unlock()
	emit()
	return err
}

// playCurrent starts the line at the current position. c.mu must be held;
// the returned func delivers listener events and must be called after
// unlocking.
func (c *Controller) playCurrent() (func(), error) {
	c.generation++
	token := c.generation
	index := c.position

	line, err := c.audio.GetLine(c.bookID, c.number, index)
	if err == nil {
		err = c.output.Play(c.ctx, line.AudioData, func() { c.onLineFinished(token) })
	}
	if err != nil {
		// The previous clip must not keep sounding once state says stopped.
		if c.playing {
			if stopErr := c.output.Stop(); stopErr != nil {
				logrus.WithError(stopErr).Warn("Failed to stop audio output")
			}
		}
		c.playing = false
		err = fmt.Errorf("play line %d: %w", index, err)
		return func() { c.listener.Error(err) }, err
	}

	c.playing = true
	r := c.ranges[index]
	percent := c.percent()
	return func() {
		c.listener.LineStarted(index, r)
		c.listener.Progress(percent)
	}, nil
}

// onLineFinished advances to the next line, or finishes at the last one.
func (c *Controller) onLineFinished(token uint64) {
	c.mu.Lock()
	if token != c.generation || !c.playing {
		c.mu.Unlock()
		return
	}
	c.position++
	if c.position < len(c.lines) {
		emit, _ := c.playCurrent()
		c.mu.Unlock()
		emit()
		return
	}
	c.position = len(c.lines) - 1
	c.playing = false
	c.mu.Unlock()
	c.listener.Finished()
}

// State returns a snapshot of the current position.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State{
		BookID:  c.bookID,
		Chapter: c.number,
		Title:   c.title,
		Line:    c.position,
		Lines:   len(c.lines),
		Playing: c.playing,
		Percent: c.percent(),
	}
}

// Text returns the chapter text, its lines and their ranges.
func (c *Controller) Text() (string, []string, []textlines.Range) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.text, c.lines, c.ranges
}

func (c *Controller) percent() int {
	if len(c.lines) == 0 {
		return 0
	}
	return (c.position + 1) * 100 / len(c.lines)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
