package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/mrlokans/autobooks/internal/backup"
	"github.com/mrlokans/autobooks/internal/entities"
	"github.com/mrlokans/autobooks/internal/settingsstore"
	"github.com/mrlokans/autobooks/internal/tasks"
)

const backupHistoryLimit = 10

// BackupController triggers backups and exposes their settings. A download
// cannot replace the open database, so it is staged and applied on the next
// start.
type BackupController struct {
	service   BackupService
	settings  BackupSettingsStore
	history   BackupHistory
	scheduler BackupScheduler
	queue     TaskQueue
	dbPath    string
}

func NewBackupController(
	service BackupService,
	settings BackupSettingsStore,
	history BackupHistory,
	scheduler BackupScheduler,
	queue TaskQueue,
	dbPath string,
) *BackupController {
	return &BackupController{
		service:   service,
		settings:  settings,
		history:   history,
		scheduler: scheduler,
		queue:     queue,
		dbPath:    dbPath,
	}
}

// UpdateBackupSettingsRequest changes only the fields that are present.
type UpdateBackupSettingsRequest struct {
	Enabled  *bool   `json:"enabled"`
	Schedule *string `json:"schedule"`
	Provider *string `json:"provider"`
}

// Upload handles POST /api/backup/upload. With ?async=true and no task
// queue the scheduler runs it in the background.
func (bc *BackupController) Upload(c *gin.Context) {
	if bc.queue != nil {
		taskID, err := bc.queue.Enqueue(c.Request.Context(), tasks.BackupUploadTask{Trigger: "api"})
		if err != nil {
			respondInternalError(c, err, "enqueue backup")
			return
		}
		respondAccepted(c, "backup enqueued", gin.H{"task_id": taskID})
		return
	}
	if async, _ := strconv.ParseBool(c.Query("async")); async && bc.scheduler != nil {
		bc.scheduler.RunNow()
		respondAccepted(c, "backup started", nil)
		return
	}

	result, err := bc.service.Upload(c.Request.Context(), nil)
	if err != nil {
		bc.respondBackupError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Download handles POST /api/backup/download
func (bc *BackupController) Download(c *gin.Context) {
	result, err := bc.service.Download(c.Request.Context(), nil)
	if err != nil {
		bc.respondBackupError(c, err)
		return
	}

	staged, err := backup.StageRestore(result.LocalPath, bc.dbPath)
	if err != nil {
		respondInternalError(c, err, "stage restore")
		return
	}
	result.LocalPath = staged

	c.JSON(http.StatusOK, SuccessResponse{
		Message: "backup downloaded, restart to restore it",
		Data:    result,
	})
}

func (bc *BackupController) respondBackupError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, backup.ErrBackupInProgress):
		respondError(c, http.StatusConflict, err.Error())
	case errors.Is(err, backup.ErrNoBackup):
		respondNotFound(c, "backup")
	case errors.Is(err, backup.ErrInvalidBackup):
		respondError(c, http.StatusUnprocessableEntity, err.Error())
	default:
		logrus.WithError(err).Error("Backup failed")
		respondError(c, http.StatusBadGateway, "backup failed: "+err.Error())
	}
}

// GetStatus handles GET /api/backup/status
func (bc *BackupController) GetStatus(c *gin.Context) {
	response := gin.H{
		"last":   bc.settings.GetBackupStatus(),
		"config": bc.settings.GetBackupConfigInfo(),
	}
	if bc.scheduler != nil {
		response["scheduler_running"] = bc.scheduler.IsRunning()
		response["next_run"] = bc.scheduler.NextRunTime()
	}
	if bc.history != nil {
		records, err := bc.history.List(backupHistoryLimit)
		if err != nil {
			respondInternalError(c, err, "list backup history")
			return
		}
		response["history"] = records

		for key, direction := range map[string]entities.BackupDirection{
			"last_upload":   entities.BackupDirectionUpload,
			"last_download": entities.BackupDirectionDownload,
		} {
			record, err := bc.history.Latest(direction)
			if err != nil {
				respondInternalError(c, err, "latest backup record")
				return
			}
			response[key] = record
		}
	}
	c.JSON(http.StatusOK, response)
}

// GetSettings handles GET /api/settings/backup
func (bc *BackupController) GetSettings(c *gin.Context) {
	bc.respondSettings(c)
}

// UpdateSettings handles PUT /api/settings/backup
func (bc *BackupController) UpdateSettings(c *gin.Context) {
	var req UpdateBackupSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	// Validate everything before writing anything
	if req.Schedule != nil {
		if err := settingsstore.ValidateCronSchedule(*req.Schedule); err != nil {
			respondBadRequest(c, "invalid cron schedule: "+err.Error())
			return
		}
	}
	if req.Provider != nil {
		if err := settingsstore.ValidateBackupProvider(*req.Provider); err != nil {
			respondBadRequest(c, err.Error())
			return
		}
	}

	if req.Schedule != nil {
		if err := bc.settings.SetBackupSchedule(*req.Schedule); err != nil {
			respondInternalError(c, err, "save backup schedule")
			return
		}
	}
	if req.Provider != nil {
		if err := bc.settings.SetBackupProvider(*req.Provider); err != nil {
			respondInternalError(c, err, "save backup provider")
			return
		}
	}
	if req.Enabled != nil {
		if err := bc.settings.SetBackupEnabled(*req.Enabled); err != nil {
			respondInternalError(c, err, "save backup enabled")
			return
		}
	}

	if bc.scheduler != nil {
		if err := bc.scheduler.Reschedule(); err != nil {
			logrus.WithError(err).Warn("Failed to reschedule backups")
		}
	}
	bc.respondSettings(c)
}

// ResetSettings handles POST /api/settings/backup/reset
func (bc *BackupController) ResetSettings(c *gin.Context) {
	if err := bc.settings.ClearBackupSettings(); err != nil {
		respondInternalError(c, err, "reset backup settings")
		return
	}
	if bc.scheduler != nil {
		if err := bc.scheduler.Reschedule(); err != nil {
			logrus.WithError(err).Warn("Failed to reschedule backups")
		}
	}
	bc.respondSettings(c)
}

func (bc *BackupController) respondSettings(c *gin.Context) {
	response := gin.H{
		"settings":  bc.settings.GetBackupConfigInfo(),
		"providers": settingsstore.BackupProviders,
	}
	if bc.scheduler != nil {
		response["next_run"] = bc.scheduler.NextRunTime()
	}
	c.JSON(http.StatusOK, response)
}
