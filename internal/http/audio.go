package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/mrlokans/autobooks/internal/entities"
	"github.com/mrlokans/autobooks/internal/generator"
	"github.com/mrlokans/autobooks/internal/tasks"
)

// AudioController serves generated line audio and starts generation.
// Without a task queue generation runs inside the request.
type AudioController struct {
	books     BookStore
	chapters  ChapterStore
	lines     LineAudioStore
	jobs      JobStore
	generator AudioGenerator
	queue     TaskQueue
	reporter  generator.ProgressReporter
}

func NewAudioController(
	books BookStore,
	chapters ChapterStore,
	lines LineAudioStore,
	jobs JobStore,
	gen AudioGenerator,
	queue TaskQueue,
	reporter generator.ProgressReporter,
) *AudioController {
	if reporter == nil {
		reporter = generator.NopReporter{}
	}
	return &AudioController{
		books:     books,
		chapters:  chapters,
		lines:     lines,
		jobs:      jobs,
		generator: gen,
		queue:     queue,
		reporter:  reporter,
	}
}

// AudioStatus describes the audio of one chapter.
type AudioStatus struct {
	BookID         uint                  `json:"book_id"`
	Chapter        int                   `json:"chapter"`
	AudioGenerated bool                  `json:"audio_generated"`
	LineCount      int                   `json:"line_count"`
	StoredLines    int64                 `json:"stored_lines"`
	DurationMs     int64                 `json:"duration_ms"`
	Generating     bool                  `json:"generating"`
	Job            *entities.JobProgress `json:"job,omitempty"`
	Percent        int                   `json:"percent"`
}

// GenerateChapter handles POST /api/books/:id/chapters/:num/audio
func (ac *AudioController) GenerateChapter(c *gin.Context) {
	bookID, number, ok := parseChapterParams(c)
	if !ok {
		return
	}

	chapter, err := ac.chapters.Get(bookID, number)
	if err != nil {
		respondLookupError(c, err, "generate chapter audio")
		return
	}
	if chapter.AudioGenerated {
		c.JSON(http.StatusOK, generator.Result{BookID: bookID, Chapter: number, Lines: chapter.LineCount, Skipped: true})
		return
	}
	if !ac.requireGenerator(c) {
		return
	}
	if ac.generator.IsGenerating(bookID, number) {
		respondError(c, http.StatusConflict, generator.ErrGenerationInProgress.Error())
		return
	}

	if ac.queue != nil {
		taskID, err := ac.queue.Enqueue(c.Request.Context(), tasks.GenerateChapterAudioTask{BookID: bookID, Chapter: number})
		if err != nil {
			respondInternalError(c, err, "enqueue chapter audio")
			return
		}
		respondAccepted(c, "audio generation enqueued", gin.H{
			"task_id": taskID,
			"book_id": bookID,
			"chapter": number,
		})
		return
	}

	result, err := ac.generator.GenerateChapter(c.Request.Context(), bookID, number, ac.reporter)
	if err != nil {
		ac.respondGenerationError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GenerateBook handles POST /api/books/:id/audio
func (ac *AudioController) GenerateBook(c *gin.Context) {
	bookID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if _, err := ac.books.Get(bookID); err != nil {
		respondLookupError(c, err, "generate book audio")
		return
	}
	if !ac.requireGenerator(c) {
		return
	}

	if ac.queue != nil {
		taskID, err := ac.queue.Enqueue(c.Request.Context(), tasks.GenerateBookAudioTask{BookID: bookID})
		if err != nil {
			respondInternalError(c, err, "enqueue book audio")
			return
		}
		respondAccepted(c, "book audio generation enqueued", gin.H{
			"task_id": taskID,
			"book_id": bookID,
		})
		return
	}

	result, err := ac.generator.GenerateBook(c.Request.Context(), bookID, ac.reporter)
	if err != nil {
		logrus.WithError(err).WithField("book_id", bookID).Warn("Book audio generation stopped")
		ac.respondGenerationError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// requireGenerator answers 503 when no speech engine is available.
func (ac *AudioController) requireGenerator(c *gin.Context) bool {
	if ac.generator == nil {
		respondError(c, http.StatusServiceUnavailable, "speech engine unavailable")
		return false
	}
	return true
}

func (ac *AudioController) respondGenerationError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, generator.ErrGenerationInProgress):
		respondError(c, http.StatusConflict, err.Error())
	case errors.Is(err, entities.ErrBookNotFound), errors.Is(err, entities.ErrChapterNotFound):
		respondLookupError(c, err, "generate audio")
	default:
		logrus.WithError(err).Error("Audio generation failed")
		respondError(c, http.StatusBadGateway, "audio generation failed: "+err.Error())
	}
}

// DeleteChapterAudio handles DELETE /api/books/:id/chapters/:num/audio
func (ac *AudioController) DeleteChapterAudio(c *gin.Context) {
	bookID, number, ok := parseChapterParams(c)
	if !ok {
		return
	}

	// Deleting needs no engine; without one nothing can be generating either.
	deleteAudio := ac.lines.DeleteChapter
	if ac.generator != nil {
		deleteAudio = ac.generator.DeleteChapterAudio
	} else if _, err := ac.chapters.Get(bookID, number); err != nil {
		respondLookupError(c, err, "delete chapter audio")
		return
	}
	if err := deleteAudio(bookID, number); err != nil {
		if errors.Is(err, generator.ErrGenerationInProgress) {
			respondError(c, http.StatusConflict, err.Error())
			return
		}
		respondLookupError(c, err, "delete chapter audio")
		return
	}
	respondSuccess(c, "chapter audio deleted")
}

// GetStatus handles GET /api/books/:id/chapters/:num/audio/status
func (ac *AudioController) GetStatus(c *gin.Context) {
	bookID, number, ok := parseChapterParams(c)
	if !ok {
		return
	}

	chapter, err := ac.chapters.Get(bookID, number)
	if err != nil {
		respondLookupError(c, err, "audio status")
		return
	}

	status := AudioStatus{
		BookID:         bookID,
		Chapter:        number,
		AudioGenerated: chapter.AudioGenerated,
		LineCount:      chapter.LineCount,
	}
	if ac.generator != nil {
		status.Generating = ac.generator.IsGenerating(bookID, number)
	}
	if status.StoredLines, err = ac.lines.CountLines(bookID, number); err != nil {
		respondInternalError(c, err, "count line audio")
		return
	}
	if status.DurationMs, err = ac.lines.TotalDuration(bookID, number); err != nil {
		respondInternalError(c, err, "sum line audio duration")
		return
	}

	key := entities.ChapterJobKey(bookID, number)
	if !status.Generating {
		// A queued task may be generating in another worker.
		running, err := ac.jobs.IsRunning(entities.JobTypeChapterAudio, key)
		if err != nil {
			respondInternalError(c, err, "check audio job")
			return
		}
		status.Generating = running
	}

	job, err := ac.jobs.Get(entities.JobTypeChapterAudio, key)
	switch {
	case err == nil:
		status.Job = job
		status.Percent = job.Percent()
	case !errors.Is(err, gorm.ErrRecordNotFound):
		respondInternalError(c, err, "get audio job")
		return
	}
	if status.AudioGenerated {
		status.Percent = 100
	}

	c.JSON(http.StatusOK, status)
}

// GetLineAudio handles GET /api/books/:id/chapters/:num/lines/:line/audio
func (ac *AudioController) GetLineAudio(c *gin.Context) {
	bookID, number, ok := parseChapterParams(c)
	if !ok {
		return
	}
	index, ok := parseIntParam(c, "line", 0)
	if !ok {
		return
	}

	chapter, err := ac.chapters.Get(bookID, number)
	if err != nil {
		respondLookupError(c, err, "get line audio")
		return
	}
	if !chapter.AudioGenerated {
		respondError(c, http.StatusNotFound, entities.ErrAudioNotGenerated.Error())
		return
	}

	line, err := ac.lines.GetLine(bookID, number, index)
	if err != nil {
		respondLookupError(c, err, "get line audio")
		return
	}

	mediaType := line.MediaType
	if mediaType == "" {
		mediaType = entities.MediaTypeWAV
	}
	c.Data(http.StatusOK, mediaType, line.AudioData)
}
