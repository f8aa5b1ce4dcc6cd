// Package audio provides database operations for synthesized line audio.
//
// Rows are keyed by (book_id, chapter_number, line_index). A chapter has rows
// only while its audio_generated flag is set; DeleteChapter and
// CompleteChapter keep the two in step.
package audio

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mrlokans/autobooks/internal/entities"
)

// Repository handles all line audio database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new audio repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// UpsertLine inserts the line audio or replaces an existing row for the same key.
func (r *Repository) UpsertLine(line *entities.LineAudio) error {
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "book_id"}, {Name: "chapter_number"}, {Name: "line_index"}},
		DoUpdates: clause.AssignmentColumns([]string{"audio_data", "media_type", "duration_ms", "created_at"}),
	}).Create(line).Error
}

// GetLine returns the audio of one line, or ErrLineAudioMissing.
func (r *Repository) GetLine(bookID uint, number, index int) (*entities.LineAudio, error) {
	var line entities.LineAudio
	err := r.db.Where("book_id = ? AND chapter_number = ? AND line_index = ?", bookID, number, index).
		First(&line).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("book %d chapter %d line %d: %w", bookID, number, index, entities.ErrLineAudioMissing)
	}
	if err != nil {
		return nil, err
	}
	return &line, nil
}

// CountLines returns how many audio rows a chapter has.
func (r *Repository) CountLines(bookID uint, number int) (int64, error) {
	var count int64
	err := r.db.Model(&entities.LineAudio{}).
		Where("book_id = ? AND chapter_number = ?", bookID, number).
		Count(&count).Error
	return count, err
}

// ListLineIndexes returns the stored line indexes of a chapter in order.
func (r *Repository) ListLineIndexes(bookID uint, number int) ([]int, error) {
	var indexes []int
	err := r.db.Model(&entities.LineAudio{}).
		Where("book_id = ? AND chapter_number = ?", bookID, number).
		Order("line_index ASC").
		Pluck("line_index", &indexes).Error
	return indexes, err
}

// TotalDuration sums the stored durations of a chapter's lines.
func (r *Repository) TotalDuration(bookID uint, number int) (int64, error) {
	var total int64
	err := r.db.Model(&entities.LineAudio{}).
		Where("book_id = ? AND chapter_number = ?", bookID, number).
		Select("COALESCE(SUM(duration_ms), 0)").
		Scan(&total).Error
	return total, err
}

// DeleteChapter removes all line audio of a chapter and clears its flag.
func (r *Repository) DeleteChapter(bookID uint, number int) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("book_id = ? AND chapter_number = ?", bookID, number).
			Delete(&entities.LineAudio{}).Error; err != nil {
			return fmt.Errorf("failed to delete line audio: %w", err)
		}
		return tx.Model(&entities.Chapter{}).
			Where("book_id = ? AND number = ?", bookID, number).
			Updates(map[string]any{"audio_generated": false, "line_count": 0}).Error
	})
}

// CompleteChapter sets the audio flag and line count once every line is stored.
func (r *Repository) CompleteChapter(bookID uint, number, lineCount int) error {
	result := r.db.Model(&entities.Chapter{}).
		Where("book_id = ? AND number = ?", bookID, number).
		Updates(map[string]any{"audio_generated": true, "line_count": lineCount})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return entities.ErrChapterNotFound
	}
	return nil
}
