package entities

import "time"

const MediaTypeWAV = "audio/wav"

// LineAudio holds the synthesized audio of one chapter line.
// Rows for a chapter exist only while Chapter.AudioGenerated is true.
type LineAudio struct {
	BookID        uint      `gorm:"primaryKey;autoIncrement:false" json:"book_id"`
	ChapterNumber int       `gorm:"primaryKey;autoIncrement:false" json:"chapter_number"`
	LineIndex     int       `gorm:"primaryKey;autoIncrement:false" json:"line_index"`
	AudioData     []byte    `gorm:"not null" json:"-"`
	MediaType     string    `gorm:"size:50" json:"media_type"`
	DurationMs    int64     `json:"duration_ms"`
	CreatedAt     time.Time `json:"created_at"`
}

func (LineAudio) TableName() string {
	return "chapter_text_lines"
}
