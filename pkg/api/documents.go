// Package api содержит типы HTTP API сервера документов.
// Тела запроса и ответа записи - это models.SaveRequest и models.SaveResult.
package api

import (
	"net/url"

	"github.com/iudanet/estisync/internal/models"
)

const (
	// PathHealth health check
	PathHealth = "/api/v1/health"
	// PathDocuments префикс маршрутов документа
	PathDocuments = "/api/v1/documents/"

	// HeaderIdempotencyKey дублирует SaveRequest.IdempotencyKey для прокси и логов
	HeaderIdempotencyKey = "Idempotency-Key"
)

// DocumentPath GET /api/v1/documents/{id}
func DocumentPath(documentID string) string {
	return PathDocuments + url.PathEscape(documentID)
}

// SavePath POST /api/v1/documents/{id}/save
func SavePath(documentID string) string {
	return DocumentPath(documentID) + "/save"
}

// EventsPath GET /api/v1/documents/{id}/events (WebSocket)
func EventsPath(documentID string) string {
	return DocumentPath(documentID) + "/events"
}

// ErrorResponse представляет ответ с ошибкой
type ErrorResponse struct {
	Error   string `json:"error"`             // описание ошибки
	Message string `json:"message,omitempty"` // дополнительное сообщение
}

// ValidationErrorResponse ответ 422: запрос записи не прошел проверку
type ValidationErrorResponse struct {
	Error    string           `json:"error"`
	Findings []models.Finding `json:"findings"`
}

// HealthResponse представляет ответ health check
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}
