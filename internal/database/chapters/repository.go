// Package chapters provides database operations for book chapters.
//
// # Usage
//
//	repo := chapters.NewRepository(db)
//	changed, err := repo.MarkRead(bookID, 3)
package chapters

import (
	"errors"

	"gorm.io/gorm"

	"github.com/mrlokans/autobooks/internal/entities"
)

// Repository handles all chapter database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new chapters repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// ListByBook returns the chapters of a book ordered by number, without text.
func (r *Repository) ListByBook(bookID uint) ([]entities.Chapter, error) {
	var chapters []entities.Chapter
	err := r.db.Omit("text").
		Where("book_id = ?", bookID).
		Order("number ASC").
		Find(&chapters).Error
	return chapters, err
}

// Get retrieves one chapter including its text.
func (r *Repository) Get(bookID uint, number int) (*entities.Chapter, error) {
	var chapter entities.Chapter
	err := r.db.Where("book_id = ? AND number = ?", bookID, number).First(&chapter).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, entities.ErrChapterNotFound
	}
	if err != nil {
		return nil, err
	}
	return &chapter, nil
}

// MarkRead flags a chapter as read and bumps the book's read counter.
// It reports false when the chapter was already read or does not exist.
// The counter only moves on a real unread to read transition and never
// exceeds the number of chapters.
func (r *Repository) MarkRead(bookID uint, number int) (bool, error) {
	changed := false
	err := r.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&entities.Chapter{}).
			Where("book_id = ? AND number = ? AND is_read = ?", bookID, number, false).
			Update("is_read", true)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}

		err := tx.Model(&entities.Book{}).
			Where("id = ? AND chapters_read < num_chapters", bookID).
			Update("chapters_read", gorm.Expr("chapters_read + 1")).Error
		if err != nil {
			return err
		}
		changed = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return changed, nil
}

// SetFavourite updates the favourite flag of a chapter.
func (r *Repository) SetFavourite(bookID uint, number int, favourite bool) error {
	return r.updateFlag(bookID, number, "is_favourite", favourite)
}

func (r *Repository) updateFlag(bookID uint, number int, column string, value bool) error {
	result := r.db.Model(&entities.Chapter{}).
		Where("book_id = ? AND number = ?", bookID, number).
		Update(column, value)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		// Same value written twice reports zero rows on some drivers
		var count int64
		if err := r.db.Model(&entities.Chapter{}).Where("book_id = ? AND number = ?", bookID, number).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return entities.ErrChapterNotFound
		}
	}
	return nil
}

// ListFavourites returns every favourite chapter across the library.
func (r *Repository) ListFavourites() ([]entities.Chapter, error) {
	var chapters []entities.Chapter
	err := r.db.Omit("text").
		Where("is_favourite = ?", true).
		Order("book_id ASC, number ASC").
		Find(&chapters).Error
	return chapters, err
}

// ListPendingAudio returns the numbers of chapters that have no audio yet.
func (r *Repository) ListPendingAudio(bookID uint) ([]int, error) {
	var numbers []int
	err := r.db.Model(&entities.Chapter{}).
		Where("book_id = ? AND audio_generated = ?", bookID, false).
		Order("number ASC").
		Pluck("number", &numbers).Error
	return numbers, err
}
