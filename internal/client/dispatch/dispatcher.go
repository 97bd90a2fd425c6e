// Package dispatch routes inbound transport events to registered handlers
// and is the single path from local state changes to the transport.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iudanet/estisync/internal/models"
)

// ErrUnroutedEvent для типа события не зарегистрирован обработчик
var ErrUnroutedEvent = errors.New("no route for event kind")

// Handler обработчик входящего события
type Handler func(ctx context.Context, ev models.Event) error

//go:generate moq -out sender_mock.go . Sender

// Sender отправляет события в транспорт
type Sender interface {
	Send(ctx context.Context, ev models.Event) error
}

// Dispatcher таблица маршрутизации событий одного документа
type Dispatcher struct {
	sender     Sender
	logger     *slog.Logger
	now        func() time.Time
	routes     map[models.EventKind]map[uint64]Handler
	documentID string
	actorID    string
	next       uint64
	mu         sync.RWMutex
}

// New создает диспетчер для документа documentID от имени участника actorID.
// sender может быть nil: тогда Emit ничего не отправляет.
func New(documentID, actorID string, sender Sender, now func() time.Time, logger *slog.Logger) *Dispatcher {
	if now == nil {
		now = time.Now
	}
	return &Dispatcher{
		sender:     sender,
		logger:     logger,
		now:        now,
		routes:     make(map[models.EventKind]map[uint64]Handler),
		documentID: documentID,
		actorID:    actorID,
	}
}

// Route регистрирует обработчик для типа событий и возвращает функцию отмены
func (d *Dispatcher) Route(kind models.EventKind, h Handler) (dispose func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.next++
	id := d.next
	if d.routes[kind] == nil {
		d.routes[kind] = make(map[uint64]Handler)
	}
	d.routes[kind][id] = h

	var once sync.Once
	return func() {
		once.Do(func() {
			d.mu.Lock()
			defer d.mu.Unlock()
			delete(d.routes[kind], id)
			if len(d.routes[kind]) == 0 {
				delete(d.routes, kind)
			}
		})
	}
}

// OnInbound декодирует сырое событие и передает его обработчикам.
// Ошибки уже залогированы; вызывающий код их только учитывает и не распространяет дальше.
func (d *Dispatcher) OnInbound(ctx context.Context, raw []byte) error {
	var ev models.Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		d.logger.Warn("Dropping malformed inbound event", "error", err, "bytes", len(raw))
		return fmt.Errorf("%w: %v", models.ErrMalformedInboundEvent, err)
	}
	if ev.Kind == "" {
		d.logger.Warn("Dropping inbound event without kind", "event_id", ev.ID)
		return fmt.Errorf("%w: missing kind", models.ErrMalformedInboundEvent)
	}
	if ev.DocumentID != d.documentID {
		d.logger.Debug("Dropping event for another document", "event_id", ev.ID, "document_id", ev.DocumentID)
		return nil
	}
	if ev.ActorID != "" && ev.ActorID == d.actorID {
		// собственное эхо
		return nil
	}
	return d.Deliver(ctx, ev)
}

// Deliver передает уже декодированное событие обработчикам его типа
func (d *Dispatcher) Deliver(ctx context.Context, ev models.Event) error {
	d.mu.RLock()
	handlers := make([]Handler, 0, len(d.routes[ev.Kind]))
	for _, h := range d.routes[ev.Kind] {
		handlers = append(handlers, h)
	}
	d.mu.RUnlock()

	if len(handlers) == 0 {
		d.logger.Warn("Dropping event of unknown kind", "kind", ev.Kind, "event_id", ev.ID)
		return fmt.Errorf("%w: %s", ErrUnroutedEvent, ev.Kind)
	}

	var errs []error
	for _, h := range handlers {
		if err := d.invoke(ctx, h, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (d *Dispatcher) invoke(ctx context.Context, h Handler, ev models.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("Panic in event handler recovered",
				"kind", ev.Kind,
				"event_id", ev.ID,
				"error", r,
				"stack", string(debug.Stack()))
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()

	if err := h(ctx, ev); err != nil {
		d.logger.Warn("Event handler failed", "kind", ev.Kind, "event_id", ev.ID, "error", err)
		return err
	}
	return nil
}

// Emit отправляет событие от имени локального участника
func (d *Dispatcher) Emit(ctx context.Context, kind models.EventKind, payload any) error {
	if d.sender == nil {
		return nil
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", kind, err)
	}

	ev := models.Event{
		ID:         uuid.New().String(),
		Kind:       kind,
		DocumentID: d.documentID,
		ActorID:    d.actorID,
		Payload:    data,
		At:         d.now(),
	}
	if err := d.sender.Send(ctx, ev); err != nil {
		d.logger.Warn("Failed to emit event", "kind", kind, "error", err)
		return &models.TransportError{Op: "emit " + string(kind), Err: err}
	}
	return nil
}

// Decode разбирает полезную нагрузку события
func Decode[T any](ev models.Event) (T, error) {
	var v T
	if err := json.Unmarshal(ev.Payload, &v); err != nil {
		return v, fmt.Errorf("%w: %s payload: %v", models.ErrMalformedInboundEvent, ev.Kind, err)
	}
	return v, nil
}
