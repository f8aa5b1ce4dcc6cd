package books

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mrlokans/autobooks/internal/entities"
)

func setupTestDB(t *testing.T) (*Repository, *gorm.DB, func()) {
	dbPath := filepath.Join(t.TempDir(), "books.db")

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	err = db.AutoMigrate(&entities.Book{}, &entities.Chapter{}, &entities.LineAudio{})
	require.NoError(t, err)

	cleanup := func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	}

	return NewRepository(db), db, cleanup
}

func newBook(title string, chapters int) *entities.Book {
	book := &entities.Book{Title: title, Author: "Author of " + title}
	for i := 1; i <= chapters; i++ {
		book.Chapters = append(book.Chapters, entities.Chapter{
			Number: i,
			Title:  entities.DefaultChapterTitle(i),
			Text:   "Line one\nLine two",
		})
	}
	return book
}

func TestRepository_Create_SetsCounters(t *testing.T) {
	repo, _, cleanup := setupTestDB(t)
	defer cleanup()

	book := newBook("Moby Dick", 3)
	book.ChaptersRead = 7
	require.NoError(t, repo.Create(book))

	got, err := repo.Get(book.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.NumChapters)
	assert.Equal(t, 0, got.ChaptersRead)
	require.Len(t, got.Chapters, 3)
	assert.Equal(t, 1, got.Chapters[0].Number)
	assert.Equal(t, 3, got.Chapters[2].Number)
}

func TestRepository_Create_Defaults(t *testing.T) {
	repo, _, cleanup := setupTestDB(t)
	defer cleanup()

	book := &entities.Book{}
	require.NoError(t, repo.Create(book))

	got, err := repo.Get(book.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.DefaultBookTitle, got.Title)
	assert.Equal(t, entities.DefaultBookAuthor, got.Author)
}

func TestRepository_List_Favourites(t *testing.T) {
	repo, _, cleanup := setupTestDB(t)
	defer cleanup()

	b1 := newBook("Walden", 1)
	b2 := newBook("Emma", 1)
	require.NoError(t, repo.Create(b1))
	require.NoError(t, repo.Create(b2))
	require.NoError(t, repo.SetFavourite(b1.ID, true))

	all, err := repo.List(Filter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Emma", all[0].Title)

	favs, err := repo.List(Filter{FavouritesOnly: true})
	require.NoError(t, err)
	require.Len(t, favs, 1)
	assert.Equal(t, "Walden", favs[0].Title)
}

func TestRepository_SetFavourite_NotFound(t *testing.T) {
	repo, _, cleanup := setupTestDB(t)
	defer cleanup()

	err := repo.SetFavourite(999, true)
	assert.ErrorIs(t, err, entities.ErrBookNotFound)
}

func TestRepository_Get_NotFound(t *testing.T) {
	repo, _, cleanup := setupTestDB(t)
	defer cleanup()

	_, err := repo.Get(42)
	assert.ErrorIs(t, err, entities.ErrBookNotFound)
}

func TestRepository_ReadPercentage(t *testing.T) {
	repo, db, cleanup := setupTestDB(t)
	defer cleanup()

	book := newBook("Ulysses", 4)
	require.NoError(t, repo.Create(book))

	pct, err := repo.ReadPercentage(book.ID)
	require.NoError(t, err)
	assert.Equal(t, 0.0, pct)

	require.NoError(t, db.Model(&entities.Book{}).Where("id = ?", book.ID).Update("chapters_read", 1).Error)
	pct, err = repo.ReadPercentage(book.ID)
	require.NoError(t, err)
	assert.InDelta(t, 25.0, pct, 0.001)
}

func TestRepository_ReadPercentage_NoChapters(t *testing.T) {
	repo, _, cleanup := setupTestDB(t)
	defer cleanup()

	book := &entities.Book{Title: "Empty"}
	require.NoError(t, repo.Create(book))

	pct, err := repo.ReadPercentage(book.ID)
	require.NoError(t, err)
	assert.Equal(t, 0.0, pct)
}

func TestRepository_Delete_RemovesAudio(t *testing.T) {
	repo, db, cleanup := setupTestDB(t)
	defer cleanup()

	book := newBook("Persuasion", 2)
	require.NoError(t, repo.Create(book))
	require.NoError(t, db.Create(&entities.LineAudio{BookID: book.ID, ChapterNumber: 1, LineIndex: 0, AudioData: []byte("RIFF")}).Error)

	require.NoError(t, repo.Delete(book.ID))

	var chapters, lines int64
	db.Model(&entities.Chapter{}).Where("book_id = ?", book.ID).Count(&chapters)
	db.Model(&entities.LineAudio{}).Where("book_id = ?", book.ID).Count(&lines)
	assert.Zero(t, chapters)
	assert.Zero(t, lines)

	assert.ErrorIs(t, repo.Delete(book.ID), entities.ErrBookNotFound)
}

func TestRepository_Stats(t *testing.T) {
	repo, db, cleanup := setupTestDB(t)
	defer cleanup()

	book := newBook("Middlemarch", 2)
	require.NoError(t, repo.Create(book))
	require.NoError(t, repo.SetFavourite(book.ID, true))
	require.NoError(t, db.Create(&entities.LineAudio{BookID: book.ID, ChapterNumber: 1, LineIndex: 0, AudioData: []byte("1234")}).Error)

	stats, err := repo.Stats()
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Books)
	assert.Equal(t, int64(1), stats.Favourites)
	assert.Equal(t, int64(2), stats.Chapters)
	assert.Equal(t, int64(1), stats.AudioLines)
	assert.Equal(t, int64(4), stats.AudioBytes)
}

func TestRepository_GetCover(t *testing.T) {
	repo, _, cleanup := setupTestDB(t)
	defer cleanup()

	book := newBook("Cover", 1)
	book.CoverImage = []byte{0xFF, 0xD8}
	book.CoverMediaType = "image/jpeg"
	require.NoError(t, repo.Create(book))

	data, mediaType, err := repo.GetCover(book.ID)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xFF, 0xD8}, data)
	assert.Equal(t, "image/jpeg", mediaType)
}
