package generator

import (
	"github.com/sirupsen/logrus"

	"github.com/mrlokans/autobooks/internal/entities"
)

// ChapterRef identifies the chapter a progress event belongs to.
type ChapterRef struct {
	BookID uint
	Number int
	Title  string
}

// ProgressReporter receives chapter generation progress.
type ProgressReporter interface {
	Started(chapter ChapterRef, total int)
	LineGenerated(chapter ChapterRef, done, total int)
	Completed(chapter ChapterRef)
	Failed(chapter ChapterRef, err error)
}

// NopReporter ignores all events.
type NopReporter struct{}

func (NopReporter) Started(ChapterRef, int)            {}
func (NopReporter) LineGenerated(ChapterRef, int, int) {}
func (NopReporter) Completed(ChapterRef)               {}
func (NopReporter) Failed(ChapterRef, error)           {}

// LogReporter logs start, completion and failure, and every Every-th line.
type LogReporter struct {
	Every int
}

func (r LogReporter) fields(chapter ChapterRef) *logrus.Entry {
	return logrus.WithFields(logrus.Fields{
		"book_id": chapter.BookID,
		"chapter": chapter.Number,
	})
}

func (r LogReporter) Started(chapter ChapterRef, total int) {
	r.fields(chapter).WithField("total", total).Debug("Chapter generation started")
}

func (r LogReporter) LineGenerated(chapter ChapterRef, done, total int) {
	if r.Every <= 0 || (done%r.Every != 0 && done != total) {
		return
	}
	r.fields(chapter).Infof("Generated %d/%d lines", done, total)
}

func (r LogReporter) Completed(chapter ChapterRef) {
	r.fields(chapter).Debug("Chapter generation completed")
}

func (r LogReporter) Failed(chapter ChapterRef, err error) {
	r.fields(chapter).WithError(err).Warn("Chapter generation failed")
}

// JobTracker is the subset of the jobs repository used for progress rows.
type JobTracker interface {
	Start(jobType entities.JobType, key string, total int) error
	Update(jobType entities.JobType, key string, processed int, currentItem string) error
	Complete(jobType entities.JobType, key string, succeeded bool, errorMsg string) error
}

// JobReporter mirrors progress into the job_progress table.
type JobReporter struct {
	jobs JobTracker
}

func NewJobReporter(jobs JobTracker) *JobReporter {
	return &JobReporter{jobs: jobs}
}

func (r *JobReporter) logFailure(err error, chapter ChapterRef) {
	if err != nil {
		logrus.WithError(err).WithField("job", entities.ChapterJobKey(chapter.BookID, chapter.Number)).
			Warn("Failed to update job progress")
	}
}

func (r *JobReporter) Started(chapter ChapterRef, total int) {
	r.logFailure(r.jobs.Start(entities.JobTypeChapterAudio, entities.ChapterJobKey(chapter.BookID, chapter.Number), total), chapter)
}

func (r *JobReporter) LineGenerated(chapter ChapterRef, done, total int) {
	r.logFailure(r.jobs.Update(entities.JobTypeChapterAudio, entities.ChapterJobKey(chapter.BookID, chapter.Number), done, chapter.Title), chapter)
}

func (r *JobReporter) Completed(chapter ChapterRef) {
	r.logFailure(r.jobs.Complete(entities.JobTypeChapterAudio, entities.ChapterJobKey(chapter.BookID, chapter.Number), true, ""), chapter)
}

func (r *JobReporter) Failed(chapter ChapterRef, err error) {
	r.logFailure(r.jobs.Complete(entities.JobTypeChapterAudio, entities.ChapterJobKey(chapter.BookID, chapter.Number), false, err.Error()), chapter)
}

// Fanout forwards every event to each reporter in order.
type Fanout []ProgressReporter

func (f Fanout) Started(chapter ChapterRef, total int) {
	for _, r := range f {
		r.Started(chapter, total)
	}
}

func (f Fanout) LineGenerated(chapter ChapterRef, done, total int) {
	for _, r := range f {
		r.LineGenerated(chapter, done, total)
	}
}

func (f Fanout) Completed(chapter ChapterRef) {
	for _, r := range f {
		r.Completed(chapter)
	}
}

func (f Fanout) Failed(chapter ChapterRef, err error) {
	for _, r := range f {
		r.Failed(chapter, err)
	}
}
