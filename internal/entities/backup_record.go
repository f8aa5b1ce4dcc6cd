package entities

import "time"

type BackupDirection string

const (
	BackupDirectionUpload   BackupDirection = "upload"
	BackupDirectionDownload BackupDirection = "download"
)

// BackupRecord is one entry of the backup history.
type BackupRecord struct {
	ID         uint            `gorm:"primaryKey" json:"id"`
	BackupID   string          `gorm:"size:36;index" json:"backup_id"`
	Direction  BackupDirection `gorm:"size:20;index" json:"direction"`
	Provider   string          `gorm:"size:50" json:"provider"`
	RemotePath string          `gorm:"size:1024" json:"remote_path"`
	Size       int64           `json:"size"`
	Checksum   string          `gorm:"size:64" json:"checksum,omitempty"`
	Status     JobStatus       `gorm:"size:20" json:"status"`
	Message    string          `gorm:"type:text" json:"message,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

func (BackupRecord) TableName() string {
	return "backup_records"
}
