package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/estisync/internal/models"
	"github.com/iudanet/estisync/pkg/api"
)

var price = models.NewPath(models.KindPricing, "p1", "price")

// serve пропускает запрос через маршруты документа, чтобы работал r.PathValue
func serve(h *DocumentHandler, req *http.Request) *httptest.ResponseRecorder {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/documents/{id}", h.Get)
	mux.HandleFunc("POST /api/v1/documents/{id}/save", h.Save)

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func TestDocumentHandler_Get(t *testing.T) {
	doc := models.NewDocument("est-1")
	doc.Revision = 4
	doc.Put(price, &models.Value{Data: json.RawMessage(`100`), Timestamp: 1, NodeID: "alice"})

	tests := []struct {
		loadErr  error
		name     string
		wantCode int
	}{
		{name: "found", wantCode: http.StatusOK},
		{name: "not found", loadErr: models.ErrDocumentNotFound, wantCode: http.StatusNotFound},
		{name: "storage failure", loadErr: errors.New("db down"), wantCode: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &DocumentServiceMock{
				LoadFunc: func(ctx context.Context, documentID string) (*models.Document, error) {
					if tt.loadErr != nil {
						return nil, tt.loadErr
					}
					return doc, nil
				},
			}

			w := serve(NewDocumentHandler(setupTestLogger(), svc), httptest.NewRequest(http.MethodGet, "/api/v1/documents/est-1", nil))
			assert.Equal(t, tt.wantCode, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

			calls := svc.LoadCalls()
			require.Len(t, calls, 1)
			assert.Equal(t, "est-1", calls[0].DocumentID)

			if tt.wantCode != http.StatusOK {
				assert.NotContains(t, w.Body.String(), "db down", "internal errors are not exposed")
				return
			}
			var got models.Document
			require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
			assert.Equal(t, int64(4), got.Revision)
			v, ok := got.Lookup(price)
			require.True(t, ok)
			assert.Equal(t, `100`, string(v.Data))
		})
	}
}

func TestDocumentHandler_Save(t *testing.T) {
	server := models.NewDocument("est-1")
	server.Revision = 5

	tests := []struct {
		result   *models.SaveResult
		saveErr  error
		name     string
		body     string
		wantBody string
		wantCode int
		wantCall bool
	}{
		{
			name:     "accepted",
			body:     `{"expected_revision":4,"actor_id":"alice","idempotency_key":"k1","changes":[{"path":"pricing/p1/price","value":{"data":120,"timestamp":5,"node_id":"alice"}}]}`,
			result:   &models.SaveResult{Status: models.SaveAccepted, Revision: 5},
			wantCode: http.StatusOK,
			wantBody: `"status":"accepted"`,
			wantCall: true,
		},
		{
			name: "conflict",
			body: `{"expected_revision":3,"actor_id":"alice","changes":[]}`,
			result: &models.SaveResult{
				Status: models.SaveConflict, Revision: 5, ServerSnapshot: server,
				ConflictingPaths: []models.Path{price},
			},
			wantCode: http.StatusConflict,
			wantBody: `"conflicting_paths":["pricing/p1/price"]`,
			wantCall: true,
		},
		{
			name:     "rejected by validation",
			body:     `{"expected_revision":4,"changes":[]}`,
			saveErr:  &models.ValidationError{Findings: []models.Finding{{Rule: "minimum", Severity: models.SeverityError, Path: price}}},
			wantCode: http.StatusUnprocessableEntity,
			wantBody: `"rule":"minimum"`,
			wantCall: true,
		},
		{
			name:     "invalid path in body",
			body:     `{"expected_revision":4,"changes":[{"path":"invoice/x","value":null}]}`,
			wantCode: http.StatusUnprocessableEntity,
			wantBody: `"severity":"error"`,
		},
		{
			name:     "malformed body",
			body:     `{"expected_revision":`,
			wantCode: http.StatusBadRequest,
			wantBody: "invalid request body",
		},
		{
			name:     "service failure",
			body:     `{"expected_revision":4,"changes":[]}`,
			saveErr:  errors.New("disk full"),
			wantCode: http.StatusInternalServerError,
			wantBody: "internal server error",
			wantCall: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &DocumentServiceMock{
				SaveFunc: func(ctx context.Context, documentID string, req models.SaveRequest) (*models.SaveResult, error) {
					return tt.result, tt.saveErr
				},
			}

			req := httptest.NewRequest(http.MethodPost, "/api/v1/documents/est-1/save", strings.NewReader(tt.body))
			w := serve(NewDocumentHandler(setupTestLogger(), svc), req)

			assert.Equal(t, tt.wantCode, w.Code)
			assert.Contains(t, w.Body.String(), tt.wantBody)
			if !tt.wantCall {
				assert.Empty(t, svc.SaveCalls())
				return
			}
			require.Len(t, svc.SaveCalls(), 1)
			assert.Equal(t, "est-1", svc.SaveCalls()[0].DocumentID)
		})
	}
}

func TestDocumentHandler_SaveIdempotencyHeader(t *testing.T) {
	svc := &DocumentServiceMock{
		SaveFunc: func(ctx context.Context, documentID string, req models.SaveRequest) (*models.SaveResult, error) {
			return &models.SaveResult{Status: models.SaveAccepted, Revision: 1}, nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents/est-1/save", strings.NewReader(`{"expected_revision":0,"changes":[]}`))
	req.Header.Set(api.HeaderIdempotencyKey, "from-header")
	w := serve(NewDocumentHandler(setupTestLogger(), svc), req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "from-header", svc.SaveCalls()[0].Req.IdempotencyKey)
}
