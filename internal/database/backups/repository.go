// Package backups provides database operations for the backup history.
package backups

import (
	"errors"

	"gorm.io/gorm"

	"github.com/mrlokans/autobooks/internal/entities"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Record appends an entry to the history.
func (r *Repository) Record(record *entities.BackupRecord) error {
	return r.db.Create(record).Error
}

// Latest returns the most recent entry for a direction, or nil if there is none.
func (r *Repository) Latest(direction entities.BackupDirection) (*entities.BackupRecord, error) {
	var record entities.BackupRecord
	err := r.db.Where("direction = ?", direction).Order("created_at DESC, id DESC").First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// List returns the newest entries first. A limit of 0 returns everything.
func (r *Repository) List(limit int) ([]entities.BackupRecord, error) {
	var records []entities.BackupRecord
	query := r.db.Order("created_at DESC, id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&records).Error
	return records, err
}
