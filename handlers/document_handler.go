package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"clausecheck-backend/models"
	"clausecheck-backend/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// DocumentService is the subset of service.DocumentService used over HTTP
type DocumentService interface {
	SubmitDocument(ctx context.Context, req service.SubmitDocumentRequest) (*service.SubmitDocumentResult, error)
	ProcessDocument(ctx context.Context, jobID uuid.UUID) error
	GetJobStatus(ctx context.Context, jobID uuid.UUID) (*models.AnalysisJob, error)
	GetDocument(ctx context.Context, id string) (*models.Document, error)
	ListDocuments(ctx context.Context, limit int) ([]models.Document, error)
	GetResults(ctx context.Context, documentID string) (*models.DocumentResults, error)
}

// DocumentHandler handles HTTP requests for documents and their analysis jobs
type DocumentHandler struct {
	docs             DocumentService
	logger           *slog.Logger
	maxFileSize      int64
	allowedMimeTypes map[string]bool
	// background runs processing off the request path; tests replace it to run inline
	background func(fn func())
}

// NewDocumentHandler creates a new document handler
func NewDocumentHandler(docs DocumentService, logger *slog.Logger) *DocumentHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &DocumentHandler{
		docs:        docs,
		logger:      logger.With(slog.String("component", "document_handler")),
		maxFileSize: 20 * 1024 * 1024, // 20MB
		allowedMimeTypes: map[string]bool{
			"application/pdf": true,
			"text/plain":      true,
		},
		background: func(fn func()) { go fn() },
	}
}

// Upload handles POST /api/documents
func (h *DocumentHandler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		respondError(c, http.StatusBadRequest, "MISSING_FILE", "File is required")
		return
	}

	if fileHeader.Size > h.maxFileSize {
		respondError(c, http.StatusBadRequest, "FILE_TOO_LARGE",
			fmt.Sprintf("File size exceeds maximum of %d bytes", h.maxFileSize))
		return
	}

	mimeType := fileHeader.Header.Get("Content-Type")
	if mimeType == "" || mimeType == "application/octet-stream" {
		switch {
		case strings.HasSuffix(strings.ToLower(fileHeader.Filename), ".pdf"):
			mimeType = "application/pdf"
		case strings.HasSuffix(strings.ToLower(fileHeader.Filename), ".txt"):
			mimeType = "text/plain"
		}
	}
	if !h.allowedMimeTypes[mimeType] && !strings.HasPrefix(mimeType, "text/") {
		respondError(c, http.StatusBadRequest, "INVALID_FILE_TYPE", "File type not allowed. Allowed types: PDF, TXT")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		respondError(c, http.StatusInternalServerError, "FILE_OPEN_ERROR", err.Error())
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "FILE_READ_ERROR", err.Error())
		return
	}

	result, err := h.docs.SubmitDocument(c.Request.Context(), service.SubmitDocumentRequest{
		Filename:    fileHeader.Filename,
		ContentType: mimeType,
		Content:     content,
		Language:    c.DefaultPostForm("lang", "en"),
	})
	if err != nil {
		var extractErr *service.ExtractionError
		switch {
		case errors.As(err, &extractErr):
			respondError(c, http.StatusBadRequest, "EXTRACTION_FAILED", extractErr.Error())
		case errors.Is(err, service.ErrEmptyUpload):
			respondError(c, http.StatusBadRequest, "EMPTY_FILE", err.Error())
		default:
			respondError(c, http.StatusInternalServerError, "UPLOAD_FAILED", err.Error())
		}
		return
	}

	if result.Duplicate {
		respondOK(c, http.StatusOK, gin.H{
			"document_id": result.DocumentID,
			"duplicate":   true,
			"message":     "Document was already processed. Fetch /api/documents/:id/results.",
		})
		return
	}

	// Use a background context so processing outlives the request
	jobID := result.JobID
	h.background(func() {
		if err := h.docs.ProcessDocument(context.Background(), jobID); err != nil {
			h.logger.Error("analysis job failed", slog.String("job_id", jobID.String()), slog.Any("error", err))
		}
	})

	respondOK(c, http.StatusAccepted, gin.H{
		"document_id": result.DocumentID,
		"job_id":      result.JobID,
		"status":      models.JobStatusPending,
		"message":     "Analysis job created. Poll /api/jobs/:id for updates.",
	})
}

// List handles GET /api/documents
func (h *DocumentHandler) List(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			respondError(c, http.StatusBadRequest, "INVALID_LIMIT", "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	docs, err := h.docs.ListDocuments(c.Request.Context(), limit)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "LIST_FAILED", err.Error())
		return
	}
	respondOK(c, http.StatusOK, docs)
}

// Get handles GET /api/documents/:id
func (h *DocumentHandler) Get(c *gin.Context) {
	doc, err := h.docs.GetDocument(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.documentError(c, err)
		return
	}
	respondOK(c, http.StatusOK, doc)
}

// Results handles GET /api/documents/:id/results
func (h *DocumentHandler) Results(c *gin.Context) {
	results, err := h.docs.GetResults(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.documentError(c, err)
		return
	}
	respondOK(c, http.StatusOK, results)
}

func (h *DocumentHandler) documentError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrDocumentNotFound):
		respondError(c, http.StatusNotFound, "NOT_FOUND", "Document not found")
	case errors.Is(err, service.ErrResultsNotReady):
		respondError(c, http.StatusConflict, "NOT_READY", "Document results are not ready")
	default:
		respondError(c, http.StatusInternalServerError, "RETRIEVAL_FAILED", err.Error())
	}
}

// GetJobStatus handles GET /api/jobs/:id
func (h *DocumentHandler) GetJobStatus(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_ID", "Invalid job ID format")
		return
	}

	job, err := h.docs.GetJobStatus(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrJobNotFound) {
			respondError(c, http.StatusNotFound, "NOT_FOUND", "Analysis job not found")
			return
		}
		respondError(c, http.StatusInternalServerError, "RETRIEVAL_FAILED", err.Error())
		return
	}
	respondOK(c, http.StatusOK, job)
}
