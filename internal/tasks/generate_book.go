package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/mikestefanello/backlite"
	"github.com/sirupsen/logrus"
)

// GenerateBookAudioTask fans out into one chapter task per chapter without audio.
type GenerateBookAudioTask struct {
	BookID uint `json:"book_id"`
}

// Config returns the queue configuration for book audio tasks.
func (t GenerateBookAudioTask) Config() backlite.QueueConfig {
	return queueConfig("generate_book_audio", 1, time.Minute)
}

// PendingChapters lists the chapters of a book that have no audio yet.
type PendingChapters interface {
	ListPendingAudio(bookID uint) ([]int, error)
}

// TaskAdder enqueues tasks. *Client implements it.
type TaskAdder interface {
	Add(tasks ...backlite.Task) *backlite.TaskAddOp
}

// GenerateBookAudioProcessor creates a processor function for GenerateBookAudioTask.
func GenerateBookAudioProcessor(chapters PendingChapters, adder TaskAdder) backlite.QueueProcessor[GenerateBookAudioTask] {
	return func(ctx context.Context, task GenerateBookAudioTask) error {
		pending, err := chapters.ListPendingAudio(task.BookID)
		if err != nil {
			return fmt.Errorf("list pending chapters of book %d: %w", task.BookID, err)
		}
		if len(pending) == 0 {
			logrus.WithField("book_id", task.BookID).Info("Book audio already generated")
			return nil
		}

		_, err = EnqueueChapters(ctx, adder, task.BookID, pending)
		return err
	}
}

// EnqueueChapters adds one chapter audio task per chapter number and
// returns the task IDs.
func EnqueueChapters(ctx context.Context, adder TaskAdder, bookID uint, numbers []int) ([]string, error) {
	if len(numbers) == 0 {
		return nil, nil
	}
	batch := make([]backlite.Task, 0, len(numbers))
	for _, n := range numbers {
		batch = append(batch, GenerateChapterAudioTask{BookID: bookID, Chapter: n})
	}
	ids, err := adder.Add(batch...).Ctx(ctx).Save()
	if err != nil {
		return nil, fmt.Errorf("enqueue chapters of book %d: %w", bookID, err)
	}

	logrus.WithFields(logrus.Fields{
		"book_id":  bookID,
		"chapters": len(ids),
	}).Info("Enqueued chapter audio tasks")
	return ids, nil
}

// NewGenerateBookAudioQueue creates a backlite queue for book audio tasks.
func NewGenerateBookAudioQueue(chapters PendingChapters, adder TaskAdder) backlite.Queue {
	return backlite.NewQueue(GenerateBookAudioProcessor(chapters, adder))
}
