package importers

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/mrlokans/autobooks/internal/entities"
	"github.com/mrlokans/autobooks/internal/epub"
)

// ErrNoChapters is returned for books whose table of contents yields nothing.
var ErrNoChapters = errors.New("book has no chapters")

// BookStore persists a book together with its chapters.
type BookStore interface {
	Create(book *entities.Book) error
}

type ImportResult struct {
	BookID   uint   `json:"book_id"`
	Title    string `json:"title"`
	Author   string `json:"author"`
	Chapters int    `json:"chapters"`
	HasCover bool   `json:"has_cover"`
}

// Pipeline maps parsed books onto entities and stores them.
type Pipeline struct {
	store BookStore
}

func NewPipeline(store BookStore) *Pipeline {
	return &Pipeline{store: store}
}

// Store saves a parsed book. sourceFile is kept for reference only.
func (p *Pipeline) Store(parsed *epub.Book, sourceFile string) (ImportResult, error) {
	if len(parsed.Chapters) == 0 {
		return ImportResult{}, ErrNoChapters
	}

	book := toEntity(parsed, sourceFile)
	if err := p.store.Create(book); err != nil {
		return ImportResult{}, fmt.Errorf("failed to store book: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"book_id":  book.ID,
		"title":    book.Title,
		"author":   book.Author,
		"chapters": book.NumChapters,
	}).Info("Imported book")

	return ImportResult{
		BookID:   book.ID,
		Title:    book.Title,
		Author:   book.Author,
		Chapters: book.NumChapters,
		HasCover: book.HasCover(),
	}, nil
}

func toEntity(parsed *epub.Book, sourceFile string) *entities.Book {
	book := &entities.Book{
		Title:        parsed.Title,
		Author:       parsed.Author,
		NumChapters:  len(parsed.Chapters),
		ChaptersRead: 0,
		SourceFile:   sourceFile,
		Chapters:     make([]entities.Chapter, 0, len(parsed.Chapters)),
	}
	if book.Title == "" {
		book.Title = entities.DefaultBookTitle
	}
	if book.Author == "" {
		book.Author = entities.DefaultBookAuthor
	}
	if parsed.Cover != nil {
		book.CoverImage = parsed.Cover.Data
		book.CoverMediaType = parsed.Cover.MediaType
	}

	for i, ch := range parsed.Chapters {
		number := i + 1
		title := ch.Title
		if title == "" {
			title = entities.DefaultChapterTitle(number)
		}
		book.Chapters = append(book.Chapters, entities.Chapter{
			Number:    number,
			Title:     title,
			Text:      ch.Text,
			LineCount: len(entities.Chapter{Text: ch.Text}.Lines()),
		})
	}
	return book
}
