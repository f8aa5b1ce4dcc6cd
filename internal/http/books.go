package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/autobooks/internal/database/books"
	"github.com/mrlokans/autobooks/internal/entities"
)

type BooksController struct {
	books BookStore
}

func NewBooksController(store BookStore) *BooksController {
	return &BooksController{books: store}
}

// BookSummary is a list entry of the library.
type BookSummary struct {
	entities.Book
	ReadPercentage float64 `json:"read_percentage"`
	HasCover       bool    `json:"has_cover"`
}

func summarize(book entities.Book) BookSummary {
	return BookSummary{
		Book:           book,
		ReadPercentage: book.ReadPercentage(),
		HasCover:       book.CoverMediaType != "",
	}
}

// GetAllBooks handles GET /api/books?favourites=true
func (bc *BooksController) GetAllBooks(c *gin.Context) {
	favouritesOnly, _ := strconv.ParseBool(c.Query("favourites"))

	list, err := bc.books.List(books.Filter{FavouritesOnly: favouritesOnly})
	if err != nil {
		respondInternalError(c, err, "list books")
		return
	}

	summaries := make([]BookSummary, 0, len(list))
	for _, book := range list {
		summaries = append(summaries, summarize(book))
	}
	c.JSON(http.StatusOK, gin.H{
		"books": summaries,
		"count": len(summaries),
	})
}

// GetBook handles GET /api/books/:id
func (bc *BooksController) GetBook(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	book, err := bc.books.Get(id)
	if err != nil {
		respondLookupError(c, err, "get book")
		return
	}
	c.JSON(http.StatusOK, summarize(*book))
}

// DeleteBook handles DELETE /api/books/:id
func (bc *BooksController) DeleteBook(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := bc.books.Delete(id); err != nil {
		respondLookupError(c, err, "delete book")
		return
	}
	respondSuccess(c, "book deleted")
}

// AddFavourite handles POST /api/books/:id/favourite
func (bc *BooksController) AddFavourite(c *gin.Context) {
	bc.setFavourite(c, true)
}

// RemoveFavourite handles DELETE /api/books/:id/favourite
func (bc *BooksController) RemoveFavourite(c *gin.Context) {
	bc.setFavourite(c, false)
}

func (bc *BooksController) setFavourite(c *gin.Context, favourite bool) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := bc.books.SetFavourite(id, favourite); err != nil {
		respondLookupError(c, err, "set book favourite")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":           id,
		"is_favourite": favourite,
	})
}

// GetCover handles GET /api/books/:id/cover
func (bc *BooksController) GetCover(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	data, mediaType, err := bc.books.GetCover(id)
	if err != nil {
		respondLookupError(c, err, "get cover")
		return
	}
	if len(data) == 0 {
		respondNotFound(c, "cover")
		return
	}
	if mediaType == "" {
		mediaType = http.DetectContentType(data)
	}

	c.Header("Cache-Control", "public, max-age=86400")
	c.Data(http.StatusOK, mediaType, data)
}

// GetStats handles GET /api/stats
func (bc *BooksController) GetStats(c *gin.Context) {
	stats, err := bc.books.Stats()
	if err != nil {
		respondInternalError(c, err, "library stats")
		return
	}
	c.JSON(http.StatusOK, stats)
}
