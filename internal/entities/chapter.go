package entities

import (
	"fmt"
	"time"

	"github.com/mrlokans/autobooks/internal/textlines"
)

type Chapter struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	BookID         uint      `gorm:"not null;uniqueIndex:idx_book_chapter" json:"book_id"`
	Number         int       `gorm:"not null;uniqueIndex:idx_book_chapter" json:"number"`
	Title          string    `gorm:"size:512" json:"title"`
	Text           string    `gorm:"type:text" json:"text,omitempty"`
	IsRead         bool      `gorm:"not null;default:false" json:"is_read"`
	AudioGenerated bool      `gorm:"not null;default:false" json:"audio_generated"`
	IsFavourite    bool      `gorm:"index;not null;default:false" json:"is_favourite"`
	LineCount      int       `gorm:"not null;default:0" json:"line_count"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// DefaultChapterTitle is used when the table of contents has no label.
func DefaultChapterTitle(number int) string {
	return fmt.Sprintf("Chapter %d", number)
}

// Lines returns the chapter text split the same way audio is generated.
func (c Chapter) Lines() []string {
	return textlines.Split(c.Text)
}
