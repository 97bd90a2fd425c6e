package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/iudanet/estisync/internal/models"
	"github.com/iudanet/estisync/pkg/api"
)

// DefaultTimeout таймаут HTTP клиента. Таймаут отдельной записи задает сессия через контекст.
const DefaultTimeout = 30 * time.Second

// Client представляет HTTP клиент сервера документов.
// Реализует session.Backend.
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	baseURL    string
}

// NewClient создает новый API клиент
func NewClient(baseURL string, logger *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
			// Настройка обработки редиректов
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				// Ограничиваем количество редиректов
				if len(via) >= 10 {
					return fmt.Errorf("stopped after 10 redirects")
				}
				if key := via[0].Header.Get(api.HeaderIdempotencyKey); key != "" {
					req.Header.Set(api.HeaderIdempotencyKey, key)
				}
				return nil
			},
		},
	}
}

// BaseURL адрес сервера
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Health проверяет доступность сервера
func (c *Client) Health(ctx context.Context) (*api.HealthResponse, error) {
	status, body, err := c.doRequest(ctx, http.MethodGet, api.PathHealth, nil, nil)
	if err != nil {
		return nil, &models.TransportError{Op: "health", Err: err}
	}
	if status != http.StatusOK {
		return nil, statusError("health", status, body)
	}

	var resp api.HealthResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &models.TransportError{Op: "health", Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	return &resp, nil
}

// Load получает текущий документ. Несуществующий документ - models.ErrDocumentNotFound.
func (c *Client) Load(ctx context.Context, documentID string) (*models.Document, error) {
	status, body, err := c.doRequest(ctx, http.MethodGet, api.DocumentPath(documentID), nil, nil)
	if err != nil {
		return nil, &models.TransportError{Op: "load", Err: err}
	}

	switch status {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", models.ErrDocumentNotFound, documentID)
	default:
		return nil, statusError("load", status, body)
	}

	var doc models.Document
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, &models.TransportError{Op: "load", Err: fmt.Errorf("failed to decode document: %w", err)}
	}
	if doc.Entities == nil {
		doc.Entities = make(map[models.EntityKind]map[string]models.Entity)
	}
	return &doc, nil
}

// Save отправляет изменения относительно ожидаемой ревизии.
// 409 возвращается как результат со статусом conflict, 422 - как *models.ValidationError.
func (c *Client) Save(ctx context.Context, documentID string, req models.SaveRequest) (*models.SaveResult, error) {
	headers := map[string]string{api.HeaderIdempotencyKey: req.IdempotencyKey}
	status, body, err := c.doRequest(ctx, http.MethodPost, api.SavePath(documentID), req, headers)
	if err != nil {
		return nil, &models.TransportError{Op: "save", Err: err}
	}

	switch status {
	case http.StatusOK, http.StatusConflict:
		var res models.SaveResult
		if err := json.Unmarshal(body, &res); err != nil {
			return nil, &models.TransportError{Op: "save", StatusCode: status, Err: fmt.Errorf("failed to decode response: %w", err)}
		}
		if status == http.StatusConflict {
			res.Status = models.SaveConflict
		} else if res.Status == "" {
			res.Status = models.SaveAccepted
		}
		c.logger.Debug("Save answered",
			"document_id", documentID,
			"status", res.Status,
			"revision", res.Revision)
		return &res, nil
	case http.StatusUnprocessableEntity:
		var vr api.ValidationErrorResponse
		if err := json.Unmarshal(body, &vr); err == nil && len(vr.Findings) > 0 {
			return nil, &models.ValidationError{Findings: vr.Findings}
		}
		return nil, statusError("save", status, body)
	default:
		return nil, statusError("save", status, body)
	}
}

func statusError(op string, status int, body []byte) error {
	var errResp api.ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
		msg := errResp.Error
		if errResp.Message != "" {
			msg += ": " + errResp.Message
		}
		return &models.TransportError{Op: op, StatusCode: status, Err: fmt.Errorf("server error: %s", msg)}
	}
	return &models.TransportError{Op: op, StatusCode: status, Err: fmt.Errorf("unexpected response: %s", strings.TrimSpace(string(body)))}
}

// doRequest выполняет HTTP запрос и возвращает код ответа и тело
func (c *Client) doRequest(ctx context.Context, method, path string, body any, headers map[string]string) (int, []byte, error) {
	url := c.baseURL + path

	var bodyReader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		if v != "" {
			req.Header.Set(k, v)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	// Читаем тело ответа
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return resp.StatusCode, respBody, nil
}
