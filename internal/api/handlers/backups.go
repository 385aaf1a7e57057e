package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/pdv-manager/internal/backup"
	"github.com/yourusername/pdv-manager/internal/kvstore"
	"github.com/yourusername/pdv-manager/internal/models"
)

// maxArtifactSize bounds uploaded artifacts (64 MB)
const maxArtifactSize = 64 << 20

// BackupHandler handles backup and restore requests
type BackupHandler struct {
	engine *backup.Engine
	store  kvstore.Store
}

// NewBackupHandler creates a new backup handler
func NewBackupHandler(engine *backup.Engine, store kvstore.Store) *BackupHandler {
	return &BackupHandler{
		engine: engine,
		store:  store,
	}
}

// RegisterRoutes registers backup routes under the protected group
func (h *BackupHandler) RegisterRoutes(group *gin.RouterGroup) {
	backups := group.Group("/backups")
	{
		backups.POST("", h.CreateBackup)
		backups.GET("", h.ListBackups)
		backups.GET("/settings", h.GetAutoBackupSettings)
		backups.PUT("/settings", h.UpdateAutoBackupSettings)
		backups.POST("/restore/preview", h.PreviewRestore)
		backups.POST("/restore", h.RestoreBackup)
		backups.DELETE("", h.DeleteBackups)
		backups.DELETE("/history", h.ClearHistory)
		backups.GET("/:id", h.GetBackup)
		backups.GET("/:id/download", h.DownloadBackup)
	}
}

// CreateBackup runs a manual backup
func (h *BackupHandler) CreateBackup(c *gin.Context) {
	var req models.CreateBackupRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	record, err := h.engine.CreateBackup(c.Request.Context(), backup.TypeManual, req.Description)
	if err != nil {
		if errors.Is(err, backup.ErrBackupInProgress) {
			c.JSON(http.StatusConflict, gin.H{"error": "A backup or restore is already in progress"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create backup", "details": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Backup created successfully",
		"backup":  record,
	})
}

// ListBackups returns the backup history, optionally filtered
func (h *BackupHandler) ListBackups(c *gin.Context) {
	filter := backup.ListFilter{
		Type: c.Query("type"),
	}

	if from := c.Query("from"); from != "" {
		parsed, err := parseDate(from)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid from date"})
			return
		}
		filter.From = &parsed
	}
	if to := c.Query("to"); to != "" {
		parsed, err := parseDate(to)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid to date"})
			return
		}
		// An inclusive day bound when only a date was given
		if len(to) == len("2006-01-02") {
			parsed = parsed.Add(24*time.Hour - time.Nanosecond)
		}
		filter.To = &parsed
	}

	records, err := h.engine.Ledger().List(filter)
	if err != nil {
		log.Printf("[Backups] Failed to list history: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list backups"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"backups": records,
		"total":   len(records),
	})
}

// GetBackup returns a single history record
func (h *BackupHandler) GetBackup(c *gin.Context) {
	record, err := h.engine.Ledger().Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Backup not found"})
		return
	}

	c.JSON(http.StatusOK, record)
}

// DownloadBackup streams a stored artifact to the client
func (h *BackupHandler) DownloadBackup(c *gin.Context) {
	record, err := h.engine.Ledger().Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Backup not found"})
		return
	}
	if record.Filename == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "Backup produced no artifact"})
		return
	}

	c.Header("Content-Type", "application/json")
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, record.Filename))

	if err := h.engine.OpenArtifact(record.Filename, c.Writer); err != nil {
		log.Printf("[Backups] Failed to stream artifact %s: %v", record.Filename, err)
		c.Status(http.StatusInternalServerError)
	}
}

// DeleteBackups removes history records and their artifacts
func (h *BackupHandler) DeleteBackups(c *gin.Context) {
	var req models.DeleteBackupsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Collect artifact filenames before the rows disappear
	var filenames []string
	for _, id := range req.IDs {
		record, err := h.engine.Ledger().Get(id)
		if err != nil {
			continue
		}
		if record.Filename != "" {
			filenames = append(filenames, record.Filename)
		}
	}

	removed, err := h.engine.Ledger().Remove(req.IDs)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete backups"})
		return
	}

	for _, filename := range filenames {
		if err := h.engine.Local().Delete(filename); err != nil {
			log.Printf("[Backups] Failed to delete artifact %s: %v", filename, err)
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Backups deleted",
		"removed": removed,
	})
}

// ClearHistory wipes the entire backup history. Artifact files stay on
// disk; only the audit trail is cleared.
func (h *BackupHandler) ClearHistory(c *gin.Context) {
	if err := h.engine.Ledger().Clear(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to clear history"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Backup history cleared"})
}

// PreviewRestore validates an uploaded artifact and returns its metadata
// without applying anything
func (h *BackupHandler) PreviewRestore(c *gin.Context) {
	data, err := h.readArtifact(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	snapshot, result, err := h.engine.PreviewRestore(data)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":      "Artifact could not be parsed",
			"validation": result,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"metadata":   snapshot.Metadata,
		"validation": result,
	})
}

// RestoreBackup applies an uploaded artifact to the store
func (h *BackupHandler) RestoreBackup(c *gin.Context) {
	data, err := h.readArtifact(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	overrides := h.readOverrides(c)

	// Detached from the request lifetime: once slot writes begin a client
	// disconnect must not abort the remaining writes. Per-slot timeouts
	// still bound a stalled store.
	report, err := h.engine.Restore(context.WithoutCancel(c.Request.Context()), data, backup.RestoreOptions{
		AllowVersionMismatch:  overrides.AllowVersionMismatch,
		AllowChecksumMismatch: overrides.AllowChecksumMismatch,
	})

	if err != nil {
		var partial *backup.PartialRestoreError
		switch {
		case errors.Is(err, backup.ErrBackupInProgress):
			c.JSON(http.StatusConflict, gin.H{"error": "A backup or restore is already in progress"})
		case errors.Is(err, backup.ErrMalformedArtifact):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Artifact is malformed", "details": err.Error()})
		case errors.Is(err, backup.ErrVersionUnsupported):
			c.JSON(http.StatusConflict, gin.H{
				"error":             "Snapshot version is not supported",
				"details":           err.Error(),
				"override_required": "allow_version_mismatch",
			})
		case errors.Is(err, backup.ErrChecksumMismatch):
			c.JSON(http.StatusConflict, gin.H{
				"error":             "Snapshot failed integrity verification",
				"details":           err.Error(),
				"override_required": "allow_checksum_mismatch",
			})
		case errors.As(err, &partial):
			c.JSON(http.StatusOK, gin.H{
				"message": "Restore finished with failures",
				"report":  partial.Report,
			})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to restore backup", "details": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Restore completed successfully",
		"report":  report,
	})
}

// GetAutoBackupSettings returns the automatic backup configuration
func (h *BackupHandler) GetAutoBackupSettings(c *gin.Context) {
	settings, err := backup.LoadAutoBackupSettings(c.Request.Context(), h.store)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load settings"})
		return
	}

	c.JSON(http.StatusOK, settings)
}

// UpdateAutoBackupSettings saves the automatic backup configuration.
// The schedule runner picks the change up on its next poll.
func (h *BackupHandler) UpdateAutoBackupSettings(c *gin.Context) {
	var settings backup.AutoBackupSettings
	if err := c.ShouldBindJSON(&settings); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := backup.SaveAutoBackupSettings(c.Request.Context(), h.store, settings); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, settings)
}

// readArtifact accepts either a multipart "file" field or a raw JSON body
func (h *BackupHandler) readArtifact(c *gin.Context) ([]byte, error) {
	contentType := c.GetHeader("Content-Type")

	if strings.HasPrefix(contentType, "multipart/form-data") {
		file, header, err := c.Request.FormFile("file")
		if err != nil {
			return nil, fmt.Errorf("missing artifact file")
		}
		defer file.Close()

		if header.Size > maxArtifactSize {
			return nil, fmt.Errorf("artifact exceeds the %d MB limit", maxArtifactSize>>20)
		}

		data, err := io.ReadAll(io.LimitReader(file, maxArtifactSize+1))
		if err != nil {
			return nil, fmt.Errorf("failed to read artifact: %w", err)
		}
		return data, nil
	}

	data, err := io.ReadAll(io.LimitReader(c.Request.Body, maxArtifactSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read request body: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty artifact")
	}
	if len(data) > maxArtifactSize {
		return nil, fmt.Errorf("artifact exceeds the %d MB limit", maxArtifactSize>>20)
	}
	return data, nil
}

// readOverrides reads the operator's confirmation flags from the form or
// query string. They ride alongside the upload, so JSON binding is out.
func (h *BackupHandler) readOverrides(c *gin.Context) models.RestoreOverrides {
	overrides := models.RestoreOverrides{}

	if raw := c.PostForm("overrides"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &overrides); err != nil {
			log.Printf("[Backups] Ignoring unparseable overrides: %v", err)
		}
		return overrides
	}

	overrides.AllowVersionMismatch = c.Query("allow_version_mismatch") == "true" || c.PostForm("allow_version_mismatch") == "true"
	overrides.AllowChecksumMismatch = c.Query("allow_checksum_mismatch") == "true" || c.PostForm("allow_checksum_mismatch") == "true"
	return overrides
}

func parseDate(value string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date format: %s", value)
}
