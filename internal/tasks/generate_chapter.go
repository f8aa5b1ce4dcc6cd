package tasks

import (
	"context"
	"errors"
	"fmt"

	"github.com/mikestefanello/backlite"
	"github.com/sirupsen/logrus"

	"github.com/mrlokans/autobooks/internal/generator"
)

// GenerateChapterAudioTask synthesizes every line of one chapter.
type GenerateChapterAudioTask struct {
	BookID  uint `json:"book_id"`
	Chapter int  `json:"chapter"`
}

// Config returns the queue configuration for chapter audio tasks.
func (t GenerateChapterAudioTask) Config() backlite.QueueConfig {
	return queueConfig("generate_chapter_audio", 1+currentQueueDefaults().MaxRetries, 0)
}

// ChapterGenerator generates the audio of one chapter.
type ChapterGenerator interface {
	GenerateChapter(ctx context.Context, bookID uint, number int, reporter generator.ProgressReporter) (*generator.Result, error)
}

// GenerateChapterAudioProcessor creates a processor function for GenerateChapterAudioTask.
func GenerateChapterAudioProcessor(gen ChapterGenerator, reporter generator.ProgressReporter) backlite.QueueProcessor[GenerateChapterAudioTask] {
	return func(ctx context.Context, task GenerateChapterAudioTask) error {
		if gen == nil {
			return fmt.Errorf("generator not configured")
		}

		result, err := gen.GenerateChapter(ctx, task.BookID, task.Chapter, reporter)
		if errors.Is(err, generator.ErrGenerationInProgress) {
			logrus.WithFields(logrus.Fields{
				"book_id": task.BookID,
				"chapter": task.Chapter,
			}).Info("Chapter audio already being generated, dropping task")
			return nil
		}
		if err != nil {
			return fmt.Errorf("generate book %d chapter %d: %w", task.BookID, task.Chapter, err)
		}

		logrus.WithFields(logrus.Fields{
			"book_id":  task.BookID,
			"chapter":  task.Chapter,
			"lines":    result.Lines,
			"skipped":  result.Skipped,
			"duration": result.Duration,
		}).Info("Chapter audio task finished")
		return nil
	}
}

// NewGenerateChapterAudioQueue creates a backlite queue for chapter audio tasks.
func NewGenerateChapterAudioQueue(gen ChapterGenerator, reporter generator.ProgressReporter) backlite.Queue {
	return backlite.NewQueue(GenerateChapterAudioProcessor(gen, reporter))
}
