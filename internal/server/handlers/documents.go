package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/iudanet/estisync/internal/models"
	"github.com/iudanet/estisync/pkg/api"
)

// maxSaveBody предельный размер тела запроса записи
const maxSaveBody = 4 << 20

//go:generate moq -out documentservice_mock.go . DocumentService

// DocumentService определяет операции над документами
type DocumentService interface {
	Load(ctx context.Context, documentID string) (*models.Document, error)
	Save(ctx context.Context, documentID string, req models.SaveRequest) (*models.SaveResult, error)
}

// DocumentHandler handles document load and save requests
type DocumentHandler struct {
	logger  *slog.Logger
	service DocumentService
}

// NewDocumentHandler creates a new document handler
func NewDocumentHandler(logger *slog.Logger, service DocumentService) *DocumentHandler {
	return &DocumentHandler{
		logger:  logger,
		service: service,
	}
}

// Get обрабатывает GET /api/v1/documents/{id}
func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	documentID := r.PathValue("id")
	if documentID == "" {
		writeError(w, h.logger, http.StatusBadRequest, "document id is required")
		return
	}

	doc, err := h.service.Load(r.Context(), documentID)
	if err != nil {
		if errors.Is(err, models.ErrDocumentNotFound) {
			writeError(w, h.logger, http.StatusNotFound, "document not found")
			return
		}
		h.logger.Error("Failed to load document", "document_id", documentID, "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, h.logger, http.StatusOK, doc)
}

// Save обрабатывает POST /api/v1/documents/{id}/save.
// 200 - запись принята, 409 - конфликт ревизий, 422 - запрос не прошел проверку.
func (h *DocumentHandler) Save(w http.ResponseWriter, r *http.Request) {
	documentID := r.PathValue("id")
	if documentID == "" {
		writeError(w, h.logger, http.StatusBadRequest, "document id is required")
		return
	}

	var req models.SaveRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxSaveBody)).Decode(&req); err != nil {
		// пути разбираются при декодировании: неверный путь - это ошибка проверки, а не формата
		if errors.Is(err, models.ErrInvalidPath) || errors.Is(err, models.ErrInvalidValue) {
			writeJSON(w, h.logger, http.StatusUnprocessableEntity, api.ValidationErrorResponse{
				Error:    "validation failed",
				Findings: []models.Finding{{
					Rule:     "request",
					Severity: models.SeverityError,
					Message:  err.Error(),
				}},
			})
			return
		}
		h.logger.Warn("Failed to decode save request", "document_id", documentID, "error", err)
		writeError(w, h.logger, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = r.Header.Get(api.HeaderIdempotencyKey)
	}

	h.logger.Debug("Save request",
		"document_id", documentID,
		"expected_revision", req.ExpectedRevision,
		"changes", len(req.Changes),
		"token", req.IdempotencyKey)

	res, err := h.service.Save(r.Context(), documentID, req)
	if err != nil {
		var verr *models.ValidationError
		if errors.As(err, &verr) {
			writeJSON(w, h.logger, http.StatusUnprocessableEntity, api.ValidationErrorResponse{
				Error:    "validation failed",
				Findings: verr.Findings,
			})
			return
		}
		h.logger.Error("Failed to save document", "document_id", documentID, "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "internal server error")
		return
	}

	status := http.StatusOK
	if res.Status == models.SaveConflict {
		status = http.StatusConflict
	}
	writeJSON(w, h.logger, status, res)
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, logger *slog.Logger, status int, msg string) {
	writeJSON(w, logger, status, api.ErrorResponse{Error: msg})
}
