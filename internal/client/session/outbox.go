package session

import (
	"context"
	"errors"
	"log/slog"

	"github.com/iudanet/estisync/internal/models"
)

var errOutboxFull = errors.New("outbound event queue is full")

// outbox очередь исходящих событий между диспетчером и транспортом.
// Отправка в сеть не выполняется в цикле событий.
type outbox struct {
	events chan models.Event
	done   <-chan struct{}
}

func newOutbox(done <-chan struct{}) *outbox {
	return &outbox{
		events: make(chan models.Event, outboxSize),
		done:   done,
	}
}

// Send реализует dispatch.Sender
func (o *outbox) Send(ctx context.Context, ev models.Event) error {
	select {
	case <-o.done:
		return models.ErrSessionClosed
	default:
	}

	select {
	case o.events <- ev:
		return nil
	default:
		return errOutboxFull
	}
}

func (o *outbox) drain(ctx context.Context, t Transport, logger *slog.Logger) {
	for {
		select {
		case ev := <-o.events:
			o.deliver(ctx, t, ev, logger)
		case <-o.done:
			return
		}
	}
}

// flush отправляет то, что уже в очереди, не дожидаясь новых событий
func (o *outbox) flush(ctx context.Context, t Transport, logger *slog.Logger) {
	for {
		select {
		case ev := <-o.events:
			o.deliver(ctx, t, ev, logger)
		default:
			return
		}
	}
}

func (o *outbox) deliver(ctx context.Context, t Transport, ev models.Event, logger *slog.Logger) {
	if err := t.Send(ctx, ev); err != nil {
		logger.Warn("Failed to send event", "kind", ev.Kind, "event_id", ev.ID, "error", err)
	}
}
