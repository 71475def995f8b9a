package training

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"training-backend/internal/documents"
	"training-backend/internal/shared/server/middleware"
	"training-backend/internal/shared/server/respond"
	"training-backend/internal/shared/util"
)

// Handler exposes the training ingestion endpoints.
type Handler struct {
	Svc      *Service
	MaxFiles int
	MaxBytes int64
}

// NewHandler constructs a Handler with upload limits.
func NewHandler(svc *Service, maxFiles int, maxBytes int64) *Handler {
	return &Handler{Svc: svc, MaxFiles: maxFiles, MaxBytes: maxBytes}
}

// RegisterRoutes attaches training routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/train/resources", h.ingest)
	rg.DELETE("/train/:id", h.remove)
}

type jsonIngestRequest struct {
	URLs    []string `json:"urls"`
	IsMedia bool     `json:"isMedia"`
}

func (h *Handler) ingest(c *gin.Context) {
	ownerID := middleware.OwnerIDFromContext(c)
	accountID := middleware.AccountIDFromContext(c)

	input, err := h.parseRequest(c)
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		return
	}

	report, err := h.Svc.Ingest(c.Request.Context(), ownerID, accountID, input)
	if err != nil {
		switch {
		case errors.Is(err, ErrNoResources):
			respond.Error(c, http.StatusBadRequest, "validation_error", ErrNoResources.Error(), nil)
		case errors.Is(err, ErrMissingIdentity):
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "Missing identity", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to process training resources", nil)
		}
		return
	}

	respond.JSON(c, http.StatusAccepted, report)
}

func (h *Handler) remove(c *gin.Context) {
	documentID := c.Param("id")
	c.Set("documentId", documentID)
	if err := uuid.Validate(documentID); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "document id must be a uuid", nil)
		return
	}

	ownerID := middleware.OwnerIDFromContext(c)
	accountID := middleware.AccountIDFromContext(c)

	doc, err := h.Svc.Delete(c.Request.Context(), ownerID, accountID, documentID)
	if err != nil {
		switch {
		case errors.Is(err, documents.ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "document not found", nil)
		case errors.Is(err, ErrMissingIdentity):
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "Missing identity", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to delete training resource", nil)
		}
		return
	}

	respond.JSON(c, http.StatusOK, gin.H{
		"documentId": doc.ID,
		"deleted":    true,
	})
}

// parseRequest accepts either a multipart form with files, urls, and
// isMedia fields, or a plain JSON body for url-only requests.
func (h *Handler) parseRequest(c *gin.Context) (IngestInput, error) {
	contentType := c.ContentType()
	if contentType == "application/json" {
		var body jsonIngestRequest
		if err := c.ShouldBindJSON(&body); err != nil {
			return IngestInput{}, fmt.Errorf("invalid request body")
		}
		urls, err := validateURLs(body.URLs)
		if err != nil {
			return IngestInput{}, err
		}
		return IngestInput{URLs: urls, IsMedia: body.IsMedia}, nil
	}

	form, err := c.MultipartForm()
	if err != nil {
		return IngestInput{}, fmt.Errorf("expected multipart form or json body")
	}

	input := IngestInput{
		IsMedia: parseBool(firstValue(form.Value["isMedia"])),
	}

	urls, err := validateURLs(parseURLField(form.Value["urls"]))
	if err != nil {
		return IngestInput{}, err
	}
	input.URLs = urls

	headers := form.File["files"]
	if len(headers) > h.MaxFiles {
		return IngestInput{}, fmt.Errorf("at most %d files are allowed per request", h.MaxFiles)
	}
	for _, header := range headers {
		name, err := util.SanitizeFileName(header.Filename)
		if err != nil {
			return IngestInput{}, fmt.Errorf("invalid file name %q", header.Filename)
		}
		if err := ValidateFileName(name); err != nil {
			return IngestInput{}, err
		}
		if header.Size > h.MaxBytes {
			return IngestInput{}, fmt.Errorf("file %q exceeds the %d MiB limit", header.Filename, h.MaxBytes>>20)
		}
		file, err := header.Open()
		if err != nil {
			return IngestInput{}, fmt.Errorf("failed to read file %q", header.Filename)
		}
		data, err := io.ReadAll(io.LimitReader(file, h.MaxBytes+1))
		file.Close()
		if err != nil {
			return IngestInput{}, fmt.Errorf("failed to read file %q", header.Filename)
		}
		if int64(len(data)) > h.MaxBytes {
			return IngestInput{}, fmt.Errorf("file %q exceeds the %d MiB limit", header.Filename, h.MaxBytes>>20)
		}
		input.Files = append(input.Files, FileResource{
			OriginalName: name,
			ContentType:  header.Header.Get("Content-Type"),
			Data:         data,
		})
	}

	return input, nil
}

// parseURLField accepts either repeated form values or a single value
// holding a JSON array of urls.
func parseURLField(values []string) []string {
	if len(values) == 1 {
		trimmed := strings.TrimSpace(values[0])
		if strings.HasPrefix(trimmed, "[") {
			var urls []string
			if err := json.Unmarshal([]byte(trimmed), &urls); err == nil {
				return urls
			}
		}
	}
	return values
}

func validateURLs(urls []string) ([]string, error) {
	out := make([]string, 0, len(urls))
	for _, raw := range urls {
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" {
			continue
		}
		if err := ValidateURL(trimmed); err != nil {
			return nil, err
		}
		out = append(out, trimmed)
	}
	return out, nil
}

func firstValue(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

func parseBool(raw string) bool {
	val, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	return val
}
