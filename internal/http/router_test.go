package http

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mikestefanello/backlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/autobooks/internal/backup"
	"github.com/mrlokans/autobooks/internal/database"
	"github.com/mrlokans/autobooks/internal/database/audio"
	"github.com/mrlokans/autobooks/internal/database/backups"
	"github.com/mrlokans/autobooks/internal/database/books"
	"github.com/mrlokans/autobooks/internal/database/chapters"
	"github.com/mrlokans/autobooks/internal/database/jobs"
	"github.com/mrlokans/autobooks/internal/database/settings"
	"github.com/mrlokans/autobooks/internal/entities"
	"github.com/mrlokans/autobooks/internal/generator"
	"github.com/mrlokans/autobooks/internal/importers"
	"github.com/mrlokans/autobooks/internal/settingsstore"
	"github.com/mrlokans/autobooks/internal/storage"
	"github.com/mrlokans/autobooks/internal/tasks"
	"github.com/mrlokans/autobooks/internal/tts"
)

type fakeQueue struct {
	mu     sync.Mutex
	tasks  []backlite.Task
	status backlite.TaskStatus
}

func (q *fakeQueue) Enqueue(_ context.Context, task backlite.Task) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks = append(q.tasks, task)
	return fmt.Sprintf("task-%d", len(q.tasks)), nil
}

func (q *fakeQueue) Status(_ context.Context, taskID string) (backlite.TaskStatus, error) {
	if taskID == "missing" {
		return backlite.TaskStatusNotFound, nil
	}
	return q.status, nil
}

type fakeBackup struct {
	dir         string
	uploadErr   error
	downloadErr error
	uploads     int
}

func (f *fakeBackup) Upload(context.Context, storage.ProgressFunc) (*backup.Result, error) {
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	f.uploads++
	return &backup.Result{Provider: "nats", RemotePath: "/AutoBooksDB.db", Size: 4096}, nil
}

func (f *fakeBackup) Download(context.Context, storage.ProgressFunc) (*backup.Result, error) {
	if f.downloadErr != nil {
		return nil, f.downloadErr
	}
	path := filepath.Join(f.dir, ".download")
	if err := os.WriteFile(path, []byte("SQLite format 3\x00"), 0o644); err != nil {
		return nil, err
	}
	return &backup.Result{Provider: "nats", LocalPath: path, Size: 16}, nil
}

type fakeScheduler struct {
	reschedules int
	runs        int
}

func (s *fakeScheduler) Reschedule() error { s.reschedules++; return nil }
func (s *fakeScheduler) RunNow()           { s.runs++ }
func (s *fakeScheduler) IsRunning() bool   { return true }
func (s *fakeScheduler) NextRunTime() *time.Time {
	next := time.Date(2030, 1, 1, 3, 0, 0, 0, time.UTC)
	return &next
}

type testServer struct {
	router    *gin.Engine
	db        *database.Database
	books     *books.Repository
	settings  *settingsstore.SettingsStore
	engine    *tts.MockEngine
	queue     *fakeQueue
	backup    *fakeBackup
	scheduler *fakeScheduler
}

func setupTestServer(t *testing.T, queued bool) *testServer {
	t.Helper()
	return setupTestServerWith(t, queued, nil)
}

func setupTestServerWith(t *testing.T, queued bool, configure func(cfg *RouterConfig)) *testServer {
	t.Helper()
	for _, key := range []string{"TTS_LANGUAGE", "TTS_VOICE", "TTS_SPEED", "BACKUP_ENABLED", "BACKUP_SCHEDULE", "BACKUP_PROVIDER"} {
		t.Setenv(key, "")
	}

	dir := t.TempDir()
	db, err := database.NewQuietDatabase(filepath.Join(dir, "AutoBooksDB.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	s := &testServer{
		db:        db,
		books:     books.NewRepository(db.DB),
		settings:  settingsstore.New(settings.NewRepository(db.DB)),
		engine:    tts.NewMockEngine(),
		backup:    &fakeBackup{dir: dir},
		scheduler: &fakeScheduler{},
	}
	chapterRepo := chapters.NewRepository(db.DB)
	audioRepo := audio.NewRepository(db.DB)
	jobRepo := jobs.NewRepository(db.DB)

	cfg := RouterConfig{
		Database:        db,
		Books:           s.books,
		Chapters:        chapterRepo,
		Lines:           audioRepo,
		Jobs:            jobRepo,
		Importer:        importers.NewEPUBImporter(s.books),
		MaxUploadSize:   1 << 20,
		Generator:       generator.New(chapterRepo, audioRepo, s.settings, s.engine),
		Reporter:        generator.NewJobReporter(jobRepo),
		TTSEngine:       s.engine,
		TTSSettings:     s.settings,
		Backup:          s.backup,
		BackupSettings:  s.settings,
		BackupHistory:   backups.NewRepository(db.DB),
		BackupScheduler: s.scheduler,
		DatabasePath:    db.Path(),
		Version:         "test",
	}
	if queued {
		s.queue = &fakeQueue{status: backlite.TaskStatusRunning}
		cfg.Tasks = s.queue
	}
	if configure != nil {
		configure(&cfg)
	}
	s.router = NewRouter(cfg)
	return s
}

func (s *testServer) seedBook(t *testing.T, title string) *entities.Book {
	t.Helper()
	book := &entities.Book{
		Title:  title,
		Author: "Bram Stoker",
		Chapters: []entities.Chapter{
			{Number: 1, Title: "Jonathan Harker's Journal", Text: "3 May. Bistritz.\nLeft Munich at 8:35 P.M."},
			{Number: 2, Title: "Chapter 2", Text: "The castle was silent."},
		},
	}
	require.NoError(t, s.books.Create(book))
	return book
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var response map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response), w.Body.String())
	return response
}

func TestBooksAPI(t *testing.T) {
	s := setupTestServer(t, false)
	dracula := s.seedBook(t, "Dracula")
	s.seedBook(t, "Carmilla")

	t.Run("lists books", func(t *testing.T) {
		w := s.do(t, "GET", "/api/books", nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, float64(2), decode(t, w)["count"])
	})

	t.Run("favourites filter", func(t *testing.T) {
		w := s.do(t, "POST", fmt.Sprintf("/api/books/%d/favourite", dracula.ID), nil)
		require.Equal(t, http.StatusOK, w.Code)

		w = s.do(t, "GET", "/api/books?favourites=true", nil)
		response := decode(t, w)
		assert.Equal(t, float64(1), response["count"])
		first := response["books"].([]any)[0].(map[string]any)
		assert.Equal(t, "Dracula", first["title"])

		w = s.do(t, "DELETE", fmt.Sprintf("/api/books/%d/favourite", dracula.ID), nil)
		require.Equal(t, http.StatusOK, w.Code)
		w = s.do(t, "GET", "/api/books?favourites=true", nil)
		assert.Equal(t, float64(0), decode(t, w)["count"])
	})

	t.Run("gets book with chapters and percentage", func(t *testing.T) {
		w := s.do(t, "POST", fmt.Sprintf("/api/books/%d/chapters/1/read", dracula.ID), nil)
		require.Equal(t, http.StatusOK, w.Code)

		w = s.do(t, "GET", fmt.Sprintf("/api/books/%d", dracula.ID), nil)
		require.Equal(t, http.StatusOK, w.Code)
		response := decode(t, w)
		assert.Equal(t, float64(50), response["read_percentage"])
		assert.Len(t, response["chapters"], 2)
	})

	t.Run("unknown book", func(t *testing.T) {
		assert.Equal(t, http.StatusNotFound, s.do(t, "GET", "/api/books/999", nil).Code)
		assert.Equal(t, http.StatusNotFound, s.do(t, "POST", "/api/books/999/favourite", nil).Code)
		assert.Equal(t, http.StatusBadRequest, s.do(t, "GET", "/api/books/abc", nil).Code)
	})

	t.Run("cover", func(t *testing.T) {
		w := s.do(t, "GET", fmt.Sprintf("/api/books/%d/cover", dracula.ID), nil)
		assert.Equal(t, http.StatusNotFound, w.Code)

		require.NoError(t, s.db.DB.Model(&entities.Book{}).Where("id = ?", dracula.ID).
			Updates(map[string]any{"cover_image": []byte("PNGDATA"), "cover_media_type": "image/png"}).Error)
		w = s.do(t, "GET", fmt.Sprintf("/api/books/%d/cover", dracula.ID), nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
		assert.Equal(t, "PNGDATA", w.Body.String())
	})

	t.Run("stats", func(t *testing.T) {
		w := s.do(t, "GET", "/api/stats", nil)
		require.Equal(t, http.StatusOK, w.Code)
		response := decode(t, w)
		assert.Equal(t, float64(2), response["books"])
		assert.Equal(t, float64(4), response["chapters"])
		assert.Equal(t, float64(1), response["chapters_read"])
	})

	t.Run("delete", func(t *testing.T) {
		w := s.do(t, "DELETE", fmt.Sprintf("/api/books/%d", dracula.ID), nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, http.StatusNotFound, s.do(t, "GET", fmt.Sprintf("/api/books/%d", dracula.ID), nil).Code)
		assert.Equal(t, http.StatusNotFound, s.do(t, "DELETE", fmt.Sprintf("/api/books/%d", dracula.ID), nil).Code)
	})
}

func buildEPUB(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	files := map[string]string{
		"META-INF/container.xml": `<container><rootfiles><rootfile full-path="content.opf"/></rootfiles></container>`,
		"content.opf": `<package version="2.0">
  <metadata><title>The Invisible Man</title><creator>H. G. Wells</creator></metadata>
  <manifest>
    <item id="ncx" href="toc.ncx" media-type="application/x-dtbncx+xml"/>
    <item id="c1" href="c1.xhtml"/>
  </manifest>
  <spine toc="ncx"><itemref idref="c1"/></spine>
</package>`,
		"toc.ncx": `<ncx><navMap>
  <navPoint><navLabel><text>The Strange Man's Arrival</text></navLabel><content src="c1.xhtml"/></navPoint>
</navMap></ncx>`,
		"c1.xhtml": "<p>The stranger came early in February.</p><p>He was wrapped up from head to foot.</p>",
	}
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func uploadRequest(t *testing.T, filename string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if filename != "" {
		part, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest("POST", "/api/import/epub", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestImportEPUB(t *testing.T) {
	s := setupTestServer(t, false)

	tests := []struct {
		name     string
		filename string
		data     []byte
		status   int
	}{
		{"valid book", "invisible-man.epub", buildEPUB(t), http.StatusCreated},
		{"not a zip", "broken.epub", []byte("plain text"), http.StatusUnprocessableEntity},
		{"wrong extension", "notes.txt", []byte("plain text"), http.StatusBadRequest},
		{"missing file", "", nil, http.StatusBadRequest},
		{"too large", "huge.epub", bytes.Repeat([]byte("x"), 2<<20), http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			s.router.ServeHTTP(w, uploadRequest(t, tt.filename, tt.data))
			assert.Equal(t, tt.status, w.Code, w.Body.String())
		})
	}

	list, err := s.books.List(books.Filter{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "The Invisible Man", list[0].Title)
	assert.Equal(t, 1, list[0].NumChapters)
}

func TestChaptersAPI(t *testing.T) {
	s := setupTestServer(t, false)
	book := s.seedBook(t, "Dracula")
	base := fmt.Sprintf("/api/books/%d/chapters", book.ID)

	t.Run("lists chapters without text", func(t *testing.T) {
		w := s.do(t, "GET", base, nil)
		require.Equal(t, http.StatusOK, w.Code)
		response := decode(t, w)
		assert.Equal(t, float64(2), response["count"])
		first := response["chapters"].([]any)[0].(map[string]any)
		assert.NotContains(t, first, "text")
	})

	t.Run("chapter has lines and ranges", func(t *testing.T) {
		w := s.do(t, "GET", base+"/1", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var detail ChapterDetail
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &detail))
		assert.Equal(t, []string{"3 May. Bistritz.", "Left Munich at 8:35 P.M."}, detail.Lines)
		require.Len(t, detail.Ranges, 2)
		assert.Equal(t, 0, detail.Ranges[0].Start)
		assert.Equal(t, "Left Munich at 8:35 P.M.", detail.Text[detail.Ranges[1].Start:detail.Ranges[1].End+1])
	})

	t.Run("mark read only once", func(t *testing.T) {
		w := s.do(t, "POST", base+"/2/read", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, true, decode(t, w)["changed"])

		w = s.do(t, "POST", base+"/2/read", nil)
		assert.Equal(t, false, decode(t, w)["changed"])

		assert.Equal(t, http.StatusNotFound, s.do(t, "POST", base+"/9/read", nil).Code)
	})

	t.Run("favourites", func(t *testing.T) {
		require.Equal(t, http.StatusOK, s.do(t, "POST", base+"/2/favourite", nil).Code)

		w := s.do(t, "GET", "/api/chapters/favourites", nil)
		response := decode(t, w)
		assert.Equal(t, float64(1), response["count"])

		require.Equal(t, http.StatusOK, s.do(t, "DELETE", base+"/2/favourite", nil).Code)
		w = s.do(t, "GET", "/api/chapters/favourites", nil)
		assert.Equal(t, float64(0), decode(t, w)["count"])

		assert.Equal(t, http.StatusNotFound, s.do(t, "POST", base+"/9/favourite", nil).Code)
	})

	t.Run("unknown chapter", func(t *testing.T) {
		assert.Equal(t, http.StatusNotFound, s.do(t, "GET", base+"/9", nil).Code)
		assert.Equal(t, http.StatusBadRequest, s.do(t, "GET", base+"/0", nil).Code)
		assert.Equal(t, http.StatusNotFound, s.do(t, "GET", "/api/books/999/chapters", nil).Code)
	})
}

func TestAudioAPI_Inline(t *testing.T) {
	s := setupTestServer(t, false)
	book := s.seedBook(t, "Dracula")
	base := fmt.Sprintf("/api/books/%d/chapters/1", book.ID)

	w := s.do(t, "GET", base+"/lines/0/audio", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "audio not generated")

	w = s.do(t, "POST", base+"/audio", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, float64(2), decode(t, w)["lines"])
	assert.Len(t, s.engine.Calls(), 2)

	w = s.do(t, "POST", base+"/audio", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["skipped"])

	w = s.do(t, "GET", base+"/audio/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var status AudioStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.True(t, status.AudioGenerated)
	assert.Equal(t, 2, status.LineCount)
	assert.Equal(t, int64(2), status.StoredLines)
	assert.Equal(t, 100, status.Percent)
	require.NotNil(t, status.Job)
	assert.Equal(t, entities.JobStatusCompleted, status.Job.Status)

	w = s.do(t, "GET", base+"/lines/1/audio", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, entities.MediaTypeWAV, w.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("RIFF")))

	assert.Equal(t, http.StatusNotFound, s.do(t, "GET", base+"/lines/5/audio", nil).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, "GET", base+"/lines/-1/audio", nil).Code)

	w = s.do(t, "DELETE", base+"/audio", nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = s.do(t, "GET", base+"/audio/status", nil)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.False(t, status.AudioGenerated)
	assert.Equal(t, int64(0), status.StoredLines)

	w = s.do(t, "POST", fmt.Sprintf("/api/books/%d/audio", book.ID), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, float64(2), decode(t, w)["generated"])

	assert.Equal(t, http.StatusNotFound, s.do(t, "POST", "/api/books/999/audio", nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, "POST", fmt.Sprintf("/api/books/%d/chapters/7/audio", book.ID), nil).Code)
}

func TestAudioAPI_SynthesisFailure(t *testing.T) {
	s := setupTestServer(t, false)
	book := s.seedBook(t, "Dracula")
	s.engine.FailOn = 2
	s.engine.Err = fmt.Errorf("engine crashed")

	w := s.do(t, "POST", fmt.Sprintf("/api/books/%d/chapters/1/audio", book.ID), nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "engine crashed")

	w = s.do(t, "GET", fmt.Sprintf("/api/books/%d/chapters/1/audio/status", book.ID), nil)
	var status AudioStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.False(t, status.AudioGenerated)
	assert.Equal(t, int64(0), status.StoredLines)
	require.NotNil(t, status.Job)
	assert.Equal(t, entities.JobStatusFailed, status.Job.Status)
}

func TestAudioAPI_Queued(t *testing.T) {
	s := setupTestServer(t, true)
	book := s.seedBook(t, "Dracula")

	w := s.do(t, "POST", fmt.Sprintf("/api/books/%d/chapters/2/audio", book.ID), nil)
	require.Equal(t, http.StatusAccepted, w.Code)
	data := decode(t, w)["data"].(map[string]any)
	assert.Equal(t, "task-1", data["task_id"])

	w = s.do(t, "POST", fmt.Sprintf("/api/books/%d/audio", book.ID), nil)
	require.Equal(t, http.StatusAccepted, w.Code)

	require.Len(t, s.queue.tasks, 2)
	assert.Equal(t, tasks.GenerateChapterAudioTask{BookID: book.ID, Chapter: 2}, s.queue.tasks[0])
	assert.Equal(t, tasks.GenerateBookAudioTask{BookID: book.ID}, s.queue.tasks[1])
	assert.Empty(t, s.engine.Calls())

	w = s.do(t, "GET", "/api/tasks/task-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "running", decode(t, w)["status"])
	assert.Equal(t, http.StatusNotFound, s.do(t, "GET", "/api/tasks/missing", nil).Code)
}

func TestTasksRoute_OnlyWithQueue(t *testing.T) {
	s := setupTestServer(t, false)
	assert.Equal(t, http.StatusNotFound, s.do(t, "GET", "/api/tasks/task-1", nil).Code)
}

func TestTTSSettingsAPI(t *testing.T) {
	s := setupTestServer(t, false)

	w := s.do(t, "GET", "/api/settings/tts", nil)
	require.Equal(t, http.StatusOK, w.Code)
	response := decode(t, w)
	assert.Equal(t, "mock", response["engine"])
	current := response["settings"].(map[string]any)
	assert.Equal(t, "en-US", current["language"])
	assert.Equal(t, "default", current["language_source"])

	w = s.do(t, "PUT", "/api/settings/tts", gin.H{"language": "de-DE", "speed": 1.5})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	prefs := s.settings.GetTTSPreferences()
	assert.Equal(t, "de-DE", prefs.Language)
	assert.Equal(t, 1.5, prefs.Speed)
	assert.Equal(t, "", prefs.Voice)

	assert.Equal(t, http.StatusBadRequest, s.do(t, "PUT", "/api/settings/tts", gin.H{"speed": 10}).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, "PUT", "/api/settings/tts", gin.H{"language": " "}).Code)
	assert.Equal(t, 1.5, s.settings.GetTTSSpeed())

	w = s.do(t, "GET", "/api/tts/voices", nil)
	require.Equal(t, http.StatusOK, w.Code)
	response = decode(t, w)
	assert.Equal(t, "de-DE", response["language"])
	assert.Len(t, response["voices"], 1)

	w = s.do(t, "GET", "/api/tts/voices?language=fr-FR", nil)
	assert.Equal(t, "fr-FR", decode(t, w)["language"])

	w = s.do(t, "POST", "/api/settings/tts/reset", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "en-US", s.settings.GetTTSLanguage())
	assert.Equal(t, "default", s.settings.GetTTSLanguageSource())
}

func TestBackupAPI(t *testing.T) {
	s := setupTestServer(t, false)

	t.Run("inline upload", func(t *testing.T) {
		w := s.do(t, "POST", "/api/backup/upload", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "nats", decode(t, w)["provider"])
		assert.Equal(t, 1, s.backup.uploads)
	})

	t.Run("upload errors", func(t *testing.T) {
		s.backup.uploadErr = backup.ErrBackupInProgress
		assert.Equal(t, http.StatusConflict, s.do(t, "POST", "/api/backup/upload", nil).Code)
		s.backup.uploadErr = fmt.Errorf("unauthorized")
		assert.Equal(t, http.StatusBadGateway, s.do(t, "POST", "/api/backup/upload", nil).Code)
		s.backup.uploadErr = nil
	})

	t.Run("download stages restore", func(t *testing.T) {
		w := s.do(t, "POST", "/api/backup/download", nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		_, err := os.Stat(backup.PendingRestorePath(s.db.Path()))
		assert.NoError(t, err)
	})

	t.Run("download errors", func(t *testing.T) {
		s.backup.downloadErr = backup.ErrNoBackup
		assert.Equal(t, http.StatusNotFound, s.do(t, "POST", "/api/backup/download", nil).Code)
		s.backup.downloadErr = backup.ErrChecksumMismatch
		assert.Equal(t, http.StatusUnprocessableEntity, s.do(t, "POST", "/api/backup/download", nil).Code)
		s.backup.downloadErr = nil
	})

	t.Run("settings", func(t *testing.T) {
		w := s.do(t, "GET", "/api/settings/backup", nil)
		require.Equal(t, http.StatusOK, w.Code)
		current := decode(t, w)["settings"].(map[string]any)
		assert.Equal(t, "gdrive", current["provider"])

		w = s.do(t, "PUT", "/api/settings/backup", gin.H{"enabled": true, "schedule": "0 4 * * *", "provider": "dropbox"})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		cfg := s.settings.GetBackupConfig()
		assert.True(t, cfg.Enabled)
		assert.Equal(t, "0 4 * * *", cfg.Schedule)
		assert.Equal(t, "dropbox", cfg.Provider)
		assert.Equal(t, 1, s.scheduler.reschedules)

		assert.Equal(t, http.StatusBadRequest, s.do(t, "PUT", "/api/settings/backup", gin.H{"schedule": "whenever", "enabled": false}).Code)
		assert.Equal(t, http.StatusBadRequest, s.do(t, "PUT", "/api/settings/backup", gin.H{"provider": "ftp"}).Code)
		assert.True(t, s.settings.GetBackupEnabled())
		assert.Equal(t, 1, s.scheduler.reschedules)
	})

	t.Run("reset settings", func(t *testing.T) {
		require.NoError(t, s.settings.SetBackupProvider("dropbox"))
		w := s.do(t, "POST", "/api/settings/backup/reset", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "gdrive", s.settings.GetBackupProvider())
		assert.Equal(t, 2, s.scheduler.reschedules)
		require.NoError(t, s.settings.SetBackupEnabled(true))
	})

	t.Run("status", func(t *testing.T) {
		w := s.do(t, "GET", "/api/backup/status", nil)
		require.Equal(t, http.StatusOK, w.Code)
		response := decode(t, w)
		assert.Equal(t, true, response["scheduler_running"])
		assert.Contains(t, response, "next_run")
		assert.Contains(t, response, "history")
		assert.Contains(t, response, "last_upload")
	})

	t.Run("async upload through the scheduler", func(t *testing.T) {
		w := s.do(t, "POST", "/api/backup/upload?async=true", nil)
		assert.Equal(t, http.StatusAccepted, w.Code)
		assert.Equal(t, 1, s.scheduler.runs)
	})
}

func TestBackupAPI_QueuedUpload(t *testing.T) {
	s := setupTestServer(t, true)

	w := s.do(t, "POST", "/api/backup/upload", nil)
	require.Equal(t, http.StatusAccepted, w.Code)
	require.Len(t, s.queue.tasks, 1)
	assert.Equal(t, tasks.BackupUploadTask{Trigger: "api"}, s.queue.tasks[0])
	assert.Equal(t, 0, s.backup.uploads)
}

func TestRouter_WithoutSpeechEngine(t *testing.T) {
	engineErr := errors.New("espeak executable not found in PATH")
	s := setupTestServerWith(t, true, func(cfg *RouterConfig) {
		cfg.Generator = nil
		cfg.TTSEngine = nil
		cfg.TTSError = engineErr
	})
	book := s.seedBook(t, "Dracula")

	w := s.do(t, "GET", "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var health HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, "degraded", health.Status)
	assert.Contains(t, health.Checks["tts"], "espeak")

	chapterAudio := fmt.Sprintf("/api/books/%d/chapters/1/audio", book.ID)
	assert.Equal(t, http.StatusServiceUnavailable, s.do(t, "POST", chapterAudio, nil).Code)
	assert.Equal(t, http.StatusServiceUnavailable, s.do(t, "POST", fmt.Sprintf("/api/books/%d/audio", book.ID), nil).Code)
	assert.Empty(t, s.queue.tasks)
	assert.Equal(t, http.StatusServiceUnavailable, s.do(t, "GET", "/api/tts/voices", nil).Code)

	// Reading and settings keep working.
	assert.Equal(t, http.StatusOK, s.do(t, "GET", fmt.Sprintf("/api/books/%d/chapters/1", book.ID), nil).Code)
	assert.Equal(t, http.StatusOK, s.do(t, "GET", chapterAudio+"/status", nil).Code)
	w = s.do(t, "GET", "/api/settings/tts", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "unavailable", decode(t, w)["engine"])
	assert.Equal(t, http.StatusOK, s.do(t, "DELETE", chapterAudio, nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, "DELETE", fmt.Sprintf("/api/books/%d/chapters/9/audio", book.ID), nil).Code)
}
