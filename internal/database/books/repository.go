// Package books provides database operations for the book library.
//
// # Usage
//
//	repo := books.NewRepository(db)
//	book, err := repo.Get(123)
package books

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/mrlokans/autobooks/internal/entities"
)

// Filter narrows List results.
type Filter struct {
	FavouritesOnly bool
}

// Stats summarises the library.
type Stats struct {
	Books          int64 `json:"books"`
	Favourites     int64 `json:"favourites"`
	Chapters       int64 `json:"chapters"`
	ChaptersRead   int64 `json:"chapters_read"`
	ChaptersVoiced int64 `json:"chapters_voiced"`
	AudioLines     int64 `json:"audio_lines"`
	AudioBytes     int64 `json:"audio_bytes"`
}

// Repository handles all book database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new books repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts the book together with its chapters in one transaction.
func (r *Repository) Create(book *entities.Book) error {
	if book.Title == "" {
		book.Title = entities.DefaultBookTitle
	}
	if book.Author == "" {
		book.Author = entities.DefaultBookAuthor
	}
	book.NumChapters = len(book.Chapters)
	book.ChaptersRead = 0

	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(book).Error; err != nil {
			return fmt.Errorf("failed to create book: %w", err)
		}
		return nil
	})
}

// List returns books ordered by title. Chapter text is not loaded.
func (r *Repository) List(filter Filter) ([]entities.Book, error) {
	var books []entities.Book
	query := r.db.Omit("cover_image").Order("title ASC, id ASC")
	if filter.FavouritesOnly {
		query = query.Where("is_favourite = ?", true)
	}
	err := query.Find(&books).Error
	return books, err
}

// Get retrieves a book with its chapters ordered by number, without chapter text.
func (r *Repository) Get(id uint) (*entities.Book, error) {
	var book entities.Book
	err := r.db.Preload("Chapters", func(db *gorm.DB) *gorm.DB {
		return db.Omit("text").Order("number ASC")
	}).First(&book, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, entities.ErrBookNotFound
	}
	if err != nil {
		return nil, err
	}
	return &book, nil
}

// SetFavourite updates the favourite flag of a book.
func (r *Repository) SetFavourite(id uint, favourite bool) error {
	result := r.db.Model(&entities.Book{}).Where("id = ?", id).Update("is_favourite", favourite)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return entities.ErrBookNotFound
	}
	return nil
}

// ReadPercentage returns chapters_read / num_chapters * 100, or 0 without chapters.
func (r *Repository) ReadPercentage(id uint) (float64, error) {
	var book entities.Book
	err := r.db.Select("id", "num_chapters", "chapters_read").First(&book, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, entities.ErrBookNotFound
	}
	if err != nil {
		return 0, err
	}
	return book.ReadPercentage(), nil
}

// Delete removes the book, its chapters and all generated line audio.
func (r *Repository) Delete(id uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("book_id = ?", id).Delete(&entities.LineAudio{}).Error; err != nil {
			return fmt.Errorf("failed to delete line audio: %w", err)
		}
		if err := tx.Where("book_id = ?", id).Delete(&entities.Chapter{}).Error; err != nil {
			return fmt.Errorf("failed to delete chapters: %w", err)
		}
		result := tx.Delete(&entities.Book{}, id)
		if result.Error != nil {
			return fmt.Errorf("failed to delete book: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return entities.ErrBookNotFound
		}
		return nil
	})
}

// Count returns the number of books in the library.
func (r *Repository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&entities.Book{}).Count(&count).Error
	return count, err
}

// Stats aggregates library counters.
func (r *Repository) Stats() (*Stats, error) {
	var stats Stats
	if err := r.db.Model(&entities.Book{}).Count(&stats.Books).Error; err != nil {
		return nil, err
	}
	if err := r.db.Model(&entities.Book{}).Where("is_favourite = ?", true).Count(&stats.Favourites).Error; err != nil {
		return nil, err
	}
	if err := r.db.Model(&entities.Chapter{}).Count(&stats.Chapters).Error; err != nil {
		return nil, err
	}
	if err := r.db.Model(&entities.Chapter{}).Where("is_read = ?", true).Count(&stats.ChaptersRead).Error; err != nil {
		return nil, err
	}
	if err := r.db.Model(&entities.Chapter{}).Where("audio_generated = ?", true).Count(&stats.ChaptersVoiced).Error; err != nil {
		return nil, err
	}
	if err := r.db.Model(&entities.LineAudio{}).Count(&stats.AudioLines).Error; err != nil {
		return nil, err
	}
	if err := r.db.Model(&entities.LineAudio{}).Select("COALESCE(SUM(LENGTH(audio_data)), 0)").Scan(&stats.AudioBytes).Error; err != nil {
		return nil, err
	}
	return &stats, nil
}

// GetCover returns the cover bytes and media type of a book.
func (r *Repository) GetCover(id uint) ([]byte, string, error) {
	var book entities.Book
	err := r.db.Select("id", "cover_image", "cover_media_type").First(&book, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, "", entities.ErrBookNotFound
	}
	if err != nil {
		return nil, "", err
	}
	return book.CoverImage, book.CoverMediaType, nil
}
