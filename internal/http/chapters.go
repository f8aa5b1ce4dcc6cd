package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/autobooks/internal/entities"
	"github.com/mrlokans/autobooks/internal/textlines"
)

type ChaptersController struct {
	books    BookStore
	chapters ChapterStore
}

func NewChaptersController(books BookStore, chapters ChapterStore) *ChaptersController {
	return &ChaptersController{books: books, chapters: chapters}
}

// ChapterDetail carries the chapter text with its playable lines and where
// each line sits in the text.
type ChapterDetail struct {
	entities.Chapter
	Lines  []string          `json:"lines"`
	Ranges []textlines.Range `json:"ranges"`
}

// ListChapters handles GET /api/books/:id/chapters
func (cc *ChaptersController) ListChapters(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	book, err := cc.books.Get(id)
	if err != nil {
		respondLookupError(c, err, "list chapters")
		return
	}
	chapters := book.Chapters
	if chapters == nil {
		chapters = []entities.Chapter{}
	}
	c.JSON(http.StatusOK, gin.H{
		"book_id":  book.ID,
		"chapters": chapters,
		"count":    len(chapters),
	})
}

// GetChapter handles GET /api/books/:id/chapters/:num
func (cc *ChaptersController) GetChapter(c *gin.Context) {
	bookID, number, ok := parseChapterParams(c)
	if !ok {
		return
	}

	chapter, err := cc.chapters.Get(bookID, number)
	if err != nil {
		respondLookupError(c, err, "get chapter")
		return
	}

	lines := chapter.Lines()
	if lines == nil {
		lines = []string{}
	}
	c.JSON(http.StatusOK, ChapterDetail{
		Chapter: *chapter,
		Lines:   lines,
		Ranges:  textlines.Ranges(chapter.Text, lines),
	})
}

// MarkRead handles POST /api/books/:id/chapters/:num/read
func (cc *ChaptersController) MarkRead(c *gin.Context) {
	bookID, number, ok := parseChapterParams(c)
	if !ok {
		return
	}

	if _, err := cc.chapters.Get(bookID, number); err != nil {
		respondLookupError(c, err, "mark chapter read")
		return
	}
	changed, err := cc.chapters.MarkRead(bookID, number)
	if err != nil {
		respondInternalError(c, err, "mark chapter read")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"book_id": bookID,
		"chapter": number,
		"is_read": true,
		"changed": changed,
	})
}

// AddFavourite handles POST /api/books/:id/chapters/:num/favourite
func (cc *ChaptersController) AddFavourite(c *gin.Context) {
	cc.setFavourite(c, true)
}

// RemoveFavourite handles DELETE /api/books/:id/chapters/:num/favourite
func (cc *ChaptersController) RemoveFavourite(c *gin.Context) {
	cc.setFavourite(c, false)
}

func (cc *ChaptersController) setFavourite(c *gin.Context, favourite bool) {
	bookID, number, ok := parseChapterParams(c)
	if !ok {
		return
	}

	if err := cc.chapters.SetFavourite(bookID, number, favourite); err != nil {
		respondLookupError(c, err, "set chapter favourite")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"book_id":      bookID,
		"chapter":      number,
		"is_favourite": favourite,
	})
}

// ListFavourites handles GET /api/chapters/favourites
func (cc *ChaptersController) ListFavourites(c *gin.Context) {
	chapters, err := cc.chapters.ListFavourites()
	if err != nil {
		respondInternalError(c, err, "list favourite chapters")
		return
	}
	if chapters == nil {
		chapters = []entities.Chapter{}
	}
	c.JSON(http.StatusOK, gin.H{
		"chapters": chapters,
		"count":    len(chapters),
	})
}
