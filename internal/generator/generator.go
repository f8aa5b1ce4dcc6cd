// Package generator synthesizes chapter audio line by line and stores it.
//
// A chapter's audio rows exist only when its audio_generated flag is set:
// rows written before a failure are deleted and the flag is set last.
package generator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mrlokans/autobooks/internal/entities"
	"github.com/mrlokans/autobooks/internal/settingsstore"
	"github.com/mrlokans/autobooks/internal/sound"
	"github.com/mrlokans/autobooks/internal/textlines"
	"github.com/mrlokans/autobooks/internal/tts"
)

var (
	ErrGenerationInProgress = errors.New("audio generation already in progress for this chapter")
	ErrIncompleteAudio      = errors.New("incomplete chapter audio")
)

// ChapterStore reads chapters.
type ChapterStore interface {
	Get(bookID uint, number int) (*entities.Chapter, error)
	ListByBook(bookID uint) ([]entities.Chapter, error)
}

// AudioStore persists line audio.
type AudioStore interface {
	UpsertLine(line *entities.LineAudio) error
	DeleteChapter(bookID uint, number int) error
	CompleteChapter(bookID uint, number, lineCount int) error
	ListLineIndexes(bookID uint, number int) ([]int, error)
}

// PreferencesProvider supplies the synthesis options.
type PreferencesProvider interface {
	GetTTSPreferences() settingsstore.TTSPreferences
}

// Result is the outcome of generating one chapter.
type Result struct {
	BookID   uint          `json:"book_id"`
	Chapter  int           `json:"chapter"`
	Lines    int           `json:"lines"`
	Skipped  bool          `json:"skipped"`
	Duration time.Duration `json:"duration"`
}

// BookResult is the outcome of generating every chapter of a book.
type BookResult struct {
	BookID    uint     `json:"book_id"`
	Generated int      `json:"generated"`
	Skipped   int      `json:"skipped"`
	Chapters  []Result `json:"chapters"`
}

type Generator struct {
	chapters     ChapterStore
	audio        AudioStore
	prefs        PreferencesProvider
	synth        tts.Synthesizer
	preprocessor *tts.Preprocessor

	mu     sync.Mutex
	active map[string]struct{}
}

func New(chapters ChapterStore, audio AudioStore, prefs PreferencesProvider, synth tts.Synthesizer) *Generator {
	return &Generator{
		chapters:     chapters,
		audio:        audio,
		prefs:        prefs,
		synth:        synth,
		preprocessor: tts.NewPreprocessor(),
		active:       make(map[string]struct{}),
	}
}

// Synthesizer returns the engine shared by all generations.
func (g *Generator) Synthesizer() tts.Synthesizer {
	return g.synth
}

func (g *Generator) lock(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.active[key]; busy {
		return false
	}
	g.active[key] = struct{}{}
	return true
}

func (g *Generator) unlock(key string) {
	g.mu.Lock()
	delete(g.active, key)
	g.mu.Unlock()
}

// IsGenerating reports whether a chapter is being generated right now.
func (g *Generator) IsGenerating(bookID uint, number int) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, busy := g.active[entities.ChapterJobKey(bookID, number)]
	return busy
}

// GenerateChapter synthesizes every line of a chapter. Already generated
// chapters are skipped. A failing line aborts the chapter and removes the
// rows written so far.
func (g *Generator) GenerateChapter(ctx context.Context, bookID uint, number int, reporter ProgressReporter) (*Result, error) {
	if reporter == nil {
		reporter = NopReporter{}
	}
	key := entities.ChapterJobKey(bookID, number)
	if !g.lock(key) {
		return nil, ErrGenerationInProgress
	}
	defer g.unlock(key)

	chapter, err := g.chapters.Get(bookID, number)
	if err != nil {
		return nil, fmt.Errorf("get chapter: %w", err)
	}

	result := &Result{BookID: bookID, Chapter: number}
	if chapter.AudioGenerated {
		result.Skipped = true
		result.Lines = chapter.LineCount
		return result, nil
	}

	ref := ChapterRef{BookID: bookID, Number: number, Title: chapter.Title}
	lines := textlines.Split(chapter.Text)
	reporter.Started(ref, len(lines))

	prefs := g.prefs.GetTTSPreferences()
	opts := tts.Options{Language: prefs.Language, Voice: prefs.Voice, Speed: prefs.Speed}
	if opts.Language == "" {
		opts.Language = "en-US"
	}

	log := logrus.WithFields(logrus.Fields{
		"book_id": bookID,
		"chapter": number,
		"lines":   len(lines),
		"engine":  g.synth.Name(),
	})
	log.Info("Generating chapter audio")
	started := time.Now()

	for i, line := range lines {
		duration, err := g.generateLine(ctx, bookID, number, i, line, opts)
		if err != nil {
			err = fmt.Errorf("line %d: %w", i, err)
			g.rollback(bookID, number)
			log.WithError(err).Error("Chapter audio generation failed")
			reporter.Failed(ref, err)
			return nil, err
		}
		result.Duration += duration
		reporter.LineGenerated(ref, i+1, len(lines))
	}

	if err := g.verifyLines(bookID, number, len(lines)); err != nil {
		g.rollback(bookID, number)
		reporter.Failed(ref, err)
		return nil, err
	}
	if err := g.audio.CompleteChapter(bookID, number, len(lines)); err != nil {
		g.rollback(bookID, number)
		err = fmt.Errorf("complete chapter: %w", err)
		reporter.Failed(ref, err)
		return nil, err
	}

	result.Lines = len(lines)
	log.WithField("elapsed", time.Since(started).Round(time.Millisecond)).Info("Chapter audio generated")
	reporter.Completed(ref)
	return result, nil
}

func (g *Generator) generateLine(ctx context.Context, bookID uint, number, index int, line string, opts tts.Options) (time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	audio, err := g.synth.Synthesize(ctx, g.preprocessor.Normalize(line), opts)
	if err != nil {
		return 0, fmt.Errorf("synthesize: %w", err)
	}

	duration, err := sound.Duration(audio.Data)
	if err != nil {
		logrus.WithError(err).WithField("line", index).Debug("Could not probe clip duration")
	}

	mediaType := audio.MediaType
	if mediaType == "" {
		mediaType = sound.MediaTypeWAV
	}
	row := &entities.LineAudio{
		BookID:        bookID,
		ChapterNumber: number,
		LineIndex:     index,
		AudioData:     audio.Data,
		MediaType:     mediaType,
		DurationMs:    duration.Milliseconds(),
		CreatedAt:     time.Now(),
	}
	if err := g.audio.UpsertLine(row); err != nil {
		return 0, fmt.Errorf("store audio: %w", err)
	}
	return duration, nil
}

// verifyLines checks that exactly one row per line index was stored before
// the chapter is flagged as generated.
func (g *Generator) verifyLines(bookID uint, number, total int) error {
	indexes, err := g.audio.ListLineIndexes(bookID, number)
	if err != nil {
		return fmt.Errorf("list stored lines: %w", err)
	}
	if len(indexes) != total {
		return fmt.Errorf("%w: stored %d of %d lines", ErrIncompleteAudio, len(indexes), total)
	}
	for i, idx := range indexes {
		if idx != i {
			return fmt.Errorf("%w: line %d missing", ErrIncompleteAudio, i)
		}
	}
	return nil
}

func (g *Generator) rollback(bookID uint, number int) {
	if err := g.audio.DeleteChapter(bookID, number); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"book_id": bookID,
			"chapter": number,
		}).Error("Failed to remove partial chapter audio")
	}
}

// GenerateBook generates every chapter in order and stops at the first failure.
func (g *Generator) GenerateBook(ctx context.Context, bookID uint, reporter ProgressReporter) (*BookResult, error) {
	chapters, err := g.chapters.ListByBook(bookID)
	if err != nil {
		return nil, fmt.Errorf("list chapters: %w", err)
	}

	result := &BookResult{BookID: bookID}
	for _, chapter := range chapters {
		res, err := g.GenerateChapter(ctx, bookID, chapter.Number, reporter)
		if err != nil {
			return result, fmt.Errorf("chapter %d: %w", chapter.Number, err)
		}
		if res.Skipped {
			result.Skipped++
		} else {
			result.Generated++
		}
		result.Chapters = append(result.Chapters, *res)
	}
	return result, nil
}

// DeleteChapterAudio removes a chapter's audio and clears its flag.
func (g *Generator) DeleteChapterAudio(bookID uint, number int) error {
	key := entities.ChapterJobKey(bookID, number)
	if !g.lock(key) {
		return ErrGenerationInProgress
	}
	defer g.unlock(key)

	if _, err := g.chapters.Get(bookID, number); err != nil {
		return err
	}
	return g.audio.DeleteChapter(bookID, number)
}
