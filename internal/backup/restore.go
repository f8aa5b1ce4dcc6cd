package backup

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
)

// Restore moves a downloaded database over dst. When keepOld is set the
// current file is kept as dst.bak. Callers must close the database at dst
// first.
func Restore(src, dst string, keepOld bool) error {
	if _, err := os.Stat(src); err != nil {
		return fmt.Errorf("downloaded database: %w", err)
	}

	backupPath := dst + ".bak"
	moved := false
	if keepOld {
		if err := os.Rename(dst, backupPath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to keep current database: %w", err)
		} else if err == nil {
			moved = true
		}
	}

	if err := os.Rename(src, dst); err != nil {
		if moved {
			if rerr := os.Rename(backupPath, dst); rerr != nil {
				logrus.WithError(rerr).WithField("path", backupPath).Error("Failed to put previous database back")
			}
		}
		return fmt.Errorf("failed to move database into place: %w", err)
	}

	fields := logrus.Fields{"path": dst}
	if moved {
		fields["previous"] = backupPath
	}
	logrus.WithFields(fields).Info("Database restored")
	return nil
}

// PendingRestorePath is where a downloaded database waits until the next
// start when the running process cannot swap its own file.
func PendingRestorePath(dbPath string) string {
	return dbPath + ".restore"
}

// StageRestore moves a downloaded database to PendingRestorePath.
func StageRestore(src, dbPath string) (string, error) {
	staged := PendingRestorePath(dbPath)
	if err := os.Rename(src, staged); err != nil {
		return "", fmt.Errorf("failed to stage restore: %w", err)
	}
	logrus.WithField("path", staged).Info("Restore staged for next start")
	return staged, nil
}

// ApplyPendingRestore restores a staged database, if there is one. It must
// run before the database at dbPath is opened.
func ApplyPendingRestore(dbPath string, keepOld bool) (bool, error) {
	staged := PendingRestorePath(dbPath)
	if _, err := os.Stat(staged); os.IsNotExist(err) {
		return false, nil
	}
	if _, _, err := inspectFile(staged); err != nil {
		return false, fmt.Errorf("staged restore %s: %w", staged, err)
	}
	if err := Restore(staged, dbPath, keepOld); err != nil {
		return false, err
	}
	return true, nil
}
