// Package memory is an in-process event relay. Endpoints joined to the same
// document receive each other's events; the reference server uses a Hub to
// fan out WebSocket traffic and tests use it in place of a network transport.
package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/iudanet/estisync/internal/models"
)

// DefaultBuffer размер входящей очереди участника
const DefaultBuffer = 256

// ErrEndpointClosed участник уже отключен
var ErrEndpointClosed = errors.New("endpoint closed")

// Option настройка хаба
type Option func(*Hub)

// WithBuffer задает размер входящей очереди каждого участника
func WithBuffer(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.buffer = n
		}
	}
}

// Hub маршрутизирует события между участниками одного документа
type Hub struct {
	logger *slog.Logger
	peers  map[string]map[*Endpoint]struct{}
	buffer int
	mu     sync.RWMutex
}

// NewHub создает пустой хаб
func NewHub(logger *slog.Logger, opts ...Option) *Hub {
	h := &Hub{
		logger: logger,
		peers:  make(map[string]map[*Endpoint]struct{}),
		buffer: DefaultBuffer,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Join подключает участника actorID к документу documentID
func (h *Hub) Join(documentID, actorID string) *Endpoint {
	e := &Endpoint{
		hub:        h,
		documentID: documentID,
		actorID:    actorID,
		inbound:    make(chan []byte, h.buffer),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.peers[documentID] == nil {
		h.peers[documentID] = make(map[*Endpoint]struct{})
	}
	h.peers[documentID][e] = struct{}{}

	h.logger.Debug("Peer joined", "document_id", documentID, "actor_id", actorID, "peers", len(h.peers[documentID]))
	return e
}

// Peers количество подключенных участников документа
func (h *Hub) Peers(documentID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.peers[documentID])
}

// Publish доставляет событие всем участникам документа ev.DocumentID, кроме except.
// Участник с переполненной очередью событие теряет. Возвращает число получателей.
func (h *Hub) Publish(ev models.Event, except *Endpoint) (int, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal event: %w", err)
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for e := range h.peers[ev.DocumentID] {
		if e == except {
			continue
		}
		select {
		case e.inbound <- data:
			delivered++
		default:
			h.logger.Warn("Peer queue full, dropping event",
				"document_id", ev.DocumentID,
				"actor_id", e.actorID,
				"kind", ev.Kind)
		}
	}
	return delivered, nil
}

// Broadcast доставляет событие всем участникам документа
func (h *Hub) Broadcast(ev models.Event) error {
	_, err := h.Publish(ev, nil)
	return err
}

func (h *Hub) leave(e *Endpoint) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	peers, ok := h.peers[e.documentID]
	if !ok {
		return false
	}
	if _, ok := peers[e]; !ok {
		return false
	}
	delete(peers, e)
	if len(peers) == 0 {
		delete(h.peers, e.documentID)
	}
	// под блокировкой записи: Publish не может писать в закрываемый канал
	close(e.inbound)

	h.logger.Debug("Peer left", "document_id", e.documentID, "actor_id", e.actorID)
	return true
}

// Endpoint подключение одного участника. Реализует session.Transport.
type Endpoint struct {
	hub        *Hub
	inbound    chan []byte
	documentID string
	actorID    string
	closeOnce  sync.Once
	closed     bool
	mu         sync.Mutex
}

// ActorID участник, от имени которого подключение
func (e *Endpoint) ActorID() string {
	return e.actorID
}

// Send публикует событие остальным участникам документа.
// Пустые DocumentID и ActorID заполняются из подключения.
func (e *Endpoint) Send(ctx context.Context, ev models.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()
	if closed {
		return ErrEndpointClosed
	}

	if ev.DocumentID == "" {
		ev.DocumentID = e.documentID
	}
	if ev.DocumentID != e.documentID {
		return fmt.Errorf("event for document %q sent on %q", ev.DocumentID, e.documentID)
	}
	if ev.ActorID == "" {
		ev.ActorID = e.actorID
	}
	_, err := e.hub.Publish(ev, e)
	return err
}

// Inbound поток входящих событий; закрывается после Close
func (e *Endpoint) Inbound() <-chan []byte {
	return e.inbound
}

// Close отключает участника. Повторный вызов ничего не делает.
func (e *Endpoint) Close() error {
	e.closeOnce.Do(func() {
		e.mu.Lock()
		e.closed = true
		e.mu.Unlock()
		e.hub.leave(e)
	})
	return nil
}
