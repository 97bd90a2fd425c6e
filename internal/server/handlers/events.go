package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"nhooyr.io/websocket"

	"github.com/iudanet/estisync/internal/models"
	"github.com/iudanet/estisync/internal/transport/memory"
)

const (
	// maxEventSize предельный размер одного события
	maxEventSize = 1 << 20
	// eventWriteTimeout время на отправку события одному участнику
	eventWriteTimeout = 5 * time.Second
)

// EventsHandler relays document events between WebSocket peers
type EventsHandler struct {
	logger  *slog.Logger
	hub     *memory.Hub
	origins []string
}

// NewEventsHandler создает обработчик канала событий.
// origins - разрешенные шаблоны Origin для браузерных клиентов.
func NewEventsHandler(logger *slog.Logger, hub *memory.Hub, origins []string) *EventsHandler {
	return &EventsHandler{
		logger:  logger,
		hub:     hub,
		origins: origins,
	}
}

// Events обрабатывает GET /api/v1/documents/{id}/events?actor=...
// Каждое входящее сообщение рассылается остальным участникам документа.
func (h *EventsHandler) Events(w http.ResponseWriter, r *http.Request) {
	documentID := r.PathValue("id")
	actorID := r.URL.Query().Get("actor")
	if documentID == "" || actorID == "" {
		writeError(w, h.logger, http.StatusBadRequest, "document id and actor are required")
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.origins})
	if err != nil {
		// Accept уже записал ответ
		h.logger.Warn("WebSocket upgrade failed", "document_id", documentID, "error", err)
		return
	}
	defer func() { _ = conn.CloseNow() }()
	conn.SetReadLimit(maxEventSize)

	peer := h.hub.Join(documentID, actorID)
	h.logger.Info("Peer connected", "document_id", documentID, "actor_id", actorID)

	err = h.relay(r.Context(), conn, peer, documentID, actorID)

	// остальные участники сразу убирают присутствие отключившегося
	_, _ = h.hub.Publish(models.Event{
		ID:         uuid.New().String(),
		Kind:       models.EventPresenceLeave,
		DocumentID: documentID,
		ActorID:    actorID,
		At:         time.Now().UTC(),
	}, peer)
	_ = peer.Close()

	switch status := websocket.CloseStatus(err); {
	case status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway:
		h.logger.Info("Peer disconnected", "document_id", documentID, "actor_id", actorID)
		_ = conn.Close(websocket.StatusNormalClosure, "")
	case errors.Is(err, context.Canceled):
		_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
	default:
		h.logger.Warn("Peer connection failed", "document_id", documentID, "actor_id", actorID, "error", err)
		_ = conn.Close(websocket.StatusInternalError, "relay failed")
	}
}

func (h *EventsHandler) relay(ctx context.Context, conn *websocket.Conn, peer *memory.Endpoint, documentID, actorID string) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		for {
			typ, data, err := conn.Read(ctx)
			if err != nil {
				return err
			}
			if typ != websocket.MessageText {
				continue
			}
			var ev models.Event
			if err := json.Unmarshal(data, &ev); err != nil || ev.Kind == "" {
				h.logger.Warn("Dropping malformed event from peer", "document_id", documentID, "actor_id", actorID)
				continue
			}
			if ev.Kind.BackendOnly() {
				// изменения, подтверждения и откаты рассылает только сервер
				h.logger.Warn("Dropping backend-only event from peer",
					"document_id", documentID, "actor_id", actorID, "kind", ev.Kind)
				continue
			}
			ev.DocumentID = documentID
			ev.ActorID = actorID
			if err := peer.Send(ctx, ev); err != nil {
				return err
			}
		}
	})

	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case data, ok := <-peer.Inbound():
				if !ok {
					return nil
				}
				wctx, cancel := context.WithTimeout(ctx, eventWriteTimeout)
				err := conn.Write(wctx, websocket.MessageText, data)
				cancel()
				if err != nil {
					return err
				}
			}
		}
	})

	return g.Wait()
}
