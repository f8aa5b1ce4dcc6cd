package http

import (
	"errors"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/mrlokans/autobooks/internal/epub"
	"github.com/mrlokans/autobooks/internal/importers"
)

type EPUBImportController struct {
	importer      BookImporter
	maxUploadSize int64
}

func NewEPUBImportController(importer BookImporter, maxUploadSize int64) *EPUBImportController {
	return &EPUBImportController{importer: importer, maxUploadSize: maxUploadSize}
}

// Import handles POST /api/import/epub with the book in the multipart field "file".
func (ic *EPUBImportController) Import(c *gin.Context) {
	if ic.maxUploadSize > 0 {
		if c.Request.ContentLength > ic.maxUploadSize {
			respondError(c, http.StatusRequestEntityTooLarge, "file too large")
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, ic.maxUploadSize)
	}

	header, err := c.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			respondError(c, http.StatusRequestEntityTooLarge, "file too large")
			return
		}
		respondBadRequest(c, "file is required")
		return
	}
	if !strings.EqualFold(filepath.Ext(header.Filename), ".epub") {
		respondBadRequest(c, "only .epub files are supported")
		return
	}

	file, err := header.Open()
	if err != nil {
		respondInternalError(c, err, "open uploaded file")
		return
	}
	defer file.Close()

	result, err := ic.importer.Import(c.Request.Context(), file, header.Size, header.Filename)
	if err != nil {
		if errors.Is(err, epub.ErrInvalidEPUB) || errors.Is(err, importers.ErrNoChapters) {
			respondError(c, http.StatusUnprocessableEntity, err.Error())
			return
		}
		respondInternalError(c, err, "import epub")
		return
	}

	logrus.WithFields(logrus.Fields{
		"book_id":  result.BookID,
		"title":    result.Title,
		"chapters": result.Chapters,
	}).Info("EPUB imported")
	respondCreated(c, result)
}
