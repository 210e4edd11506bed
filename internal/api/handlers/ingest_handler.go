package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/andresuchdata/ingest-notifier/internal/api/middleware"
)

// IngestRequest is the body the notifier posts for each object.
type IngestRequest struct {
	IngestionID string   `json:"ingestion_id" binding:"required"`
	Files       []string `json:"files" binding:"required,min=1"`
}

// Recorder receives every accepted notification.
type Recorder interface {
	Record(req IngestRequest)
}

// IngestHandler acknowledges notifications without ingesting anything.
type IngestHandler struct {
	recorder Recorder
	logger   zerolog.Logger
}

func NewIngestHandler(recorder Recorder, logger zerolog.Logger) *IngestHandler {
	return &IngestHandler{recorder: recorder, logger: logger}
}

// Ingest handles POST /ingest
func (h *IngestHandler) Ingest(c *gin.Context) {
	var req IngestRequest
	err := c.ShouldBindJSON(&req)
	c.Set(middleware.IngestionIDKey, req.IngestionID)
	c.Set(middleware.FilesKey, req.Files)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	for _, file := range req.Files {
		if !validStorageURI(file) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid storage uri: " + file})
			return
		}
	}

	h.logger.Debug().Str("ingestion_id", req.IngestionID).Int("files", len(req.Files)).Msg("accepted")
	if h.recorder != nil {
		h.recorder.Record(req)
	}

	c.JSON(http.StatusOK, gin.H{"status": "OK"})
}

// validStorageURI accepts scheme://bucket/key. Keys are opaque and may hold
// characters such as '%' that are not valid URL escapes.
func validStorageURI(uri string) bool {
	scheme, rest, ok := strings.Cut(uri, "://")
	if !ok || scheme == "" {
		return false
	}
	bucket, key, ok := strings.Cut(rest, "/")
	return ok && bucket != "" && key != ""
}
