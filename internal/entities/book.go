package entities

import (
	"time"
)

const (
	DefaultBookTitle  = "Untitled"
	DefaultBookAuthor = "Unknown"
)

type Book struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	Title          string    `gorm:"index;size:512" json:"title"`
	Author         string    `gorm:"index;size:256" json:"author"`
	NumChapters    int       `gorm:"not null;default:0" json:"num_chapters"`
	ChaptersRead   int       `gorm:"not null;default:0" json:"chapters_read"`
	IsFavourite    bool      `gorm:"index;not null;default:false" json:"is_favourite"`
	CoverImage     []byte    `json:"-"`
	CoverMediaType string    `gorm:"size:100" json:"cover_media_type,omitempty"`
	SourceFile     string    `gorm:"size:1024" json:"source_file,omitempty"`
	Chapters       []Chapter `gorm:"foreignKey:BookID;constraint:OnDelete:CASCADE" json:"chapters,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// ReadPercentage returns the share of chapters marked read, 0..100.
func (b Book) ReadPercentage() float64 {
	if b.NumChapters <= 0 {
		return 0
	}
	return float64(b.ChaptersRead) / float64(b.NumChapters) * 100
}

// HasCover reports whether cover bytes were extracted at import time.
func (b Book) HasCover() bool {
	return len(b.CoverImage) > 0
}
