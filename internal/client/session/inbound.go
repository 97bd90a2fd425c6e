package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iudanet/estisync/internal/client/dispatch"
	"github.com/iudanet/estisync/internal/models"
)

// routes регистрирует обработчики входящих событий.
// Диспетчер вызывается из шага цикла, поэтому обработчики тоже работают в цикле.
func (s *Session) routes() {
	s.dispatcher.Route(models.EventDocumentUpdate, s.onDocumentUpdate)
	s.dispatcher.Route(models.EventDocumentMutation, s.onRemoteMutation)
	s.dispatcher.Route(models.EventOptimisticConfirm, s.onConfirm)
	s.dispatcher.Route(models.EventOptimisticRollback, s.onRollback)
	s.dispatcher.Route(models.EventPresenceCursor, s.onCursor)
	s.dispatcher.Route(models.EventPresenceFocus, s.onFocus)
	s.dispatcher.Route(models.EventPresenceTyping, s.onTyping)
	s.dispatcher.Route(models.EventPresenceLeave, s.onLeave)
}

// eventTime время отправителя. Оно упорядочивает события присутствия одного
// участника; свежесть трекер отсчитывает от момента получения.
func (s *Session) eventTime(ev models.Event) time.Time {
	if ev.At.IsZero() {
		return s.clock.Now()
	}
	return ev.At
}

// onDocumentUpdate применяет авторитетные изменения другого участника.
// Устаревшие и повторные обновления (ревизия не новее базы) отбрасываются.
// Поля, измененные локально, не трогаются: расхождение проявится при записи.
func (s *Session) onDocumentUpdate(_ context.Context, ev models.Event) error {
	p, err := dispatch.Decode[models.DocumentUpdatePayload](ev)
	if err != nil {
		return err
	}

	base := s.store.Revision()
	if p.Revision <= base {
		s.logger.Debug("Dropping stale document update", "revision", p.Revision, "base_revision", base)
		return nil
	}

	for _, ch := range p.Changes {
		if err := ch.Path.Validate(); err != nil {
			return fmt.Errorf("%w: %v", models.ErrMalformedInboundEvent, err)
		}
		if ch.Value != nil {
			s.lamport.Observe(ch.Value.Timestamp)
		}
	}

	// базовая ревизия продвигается только по непрерывной цепочке ревизий
	advance := p.PreviousRevision == base
	contested := s.store.ApplyRemote(p.Changes, p.Revision, advance)
	if len(contested) > 0 {
		s.logger.Info("Remote update touches locally modified fields",
			"revision", p.Revision,
			"actor_id", ev.ActorID,
			"contested", len(contested))
	}
	if ev.ActorID != "" {
		s.tracker.Touch(ev.ActorID)
	}

	s.settleIfClean()
	s.changed()
	return nil
}

// onRemoteMutation неподтвержденная правка другого участника: только признак активности
func (s *Session) onRemoteMutation(_ context.Context, ev models.Event) error {
	if ev.ActorID == "" {
		return fmt.Errorf("%w: mutation without actor", models.ErrMalformedInboundEvent)
	}
	s.tracker.Touch(ev.ActorID)
	return nil
}

// fromBackend сообщает, что событие создал сервер, а не участник.
// Серверные сигналы не несут actor_id; события участников ретранслятор всегда помечает.
func fromBackend(ev models.Event) bool {
	return ev.ActorID == ""
}

// onConfirm идемпотентен: повторное подтверждение ничего не делает
func (s *Session) onConfirm(_ context.Context, ev models.Event) error {
	if !fromBackend(ev) {
		s.logger.Warn("Ignoring confirmation sent by a collaborator", "actor_id", ev.ActorID)
		return nil
	}
	p, err := dispatch.Decode[models.OptimisticPayload](ev)
	if err != nil {
		return err
	}
	if !s.ledger.Confirm(p.UpdateID) {
		s.logger.Debug("Duplicate or unknown confirmation ignored", "update_id", p.UpdateID)
		return nil
	}
	s.changed()
	return nil
}

func (s *Session) onRollback(_ context.Context, ev models.Event) error {
	if !fromBackend(ev) {
		s.logger.Warn("Ignoring rollback sent by a collaborator", "actor_id", ev.ActorID)
		return nil
	}
	p, err := dispatch.Decode[models.OptimisticPayload](ev)
	if err != nil {
		return err
	}
	err = s.rollback(p.UpdateID)
	if errors.Is(err, models.ErrUpdateNotFound) {
		s.logger.Debug("Rollback for unknown update ignored", "update_id", p.UpdateID)
		return nil
	}
	return err
}

func (s *Session) onCursor(_ context.Context, ev models.Event) error {
	if ev.ActorID == "" {
		return fmt.Errorf("%w: presence without actor", models.ErrMalformedInboundEvent)
	}
	p, err := dispatch.Decode[models.CursorPayload](ev)
	if err != nil {
		return err
	}
	at := s.eventTime(ev)
	s.tracker.SetIdentity(ev.ActorID, p.Identity, at)
	s.tracker.UpdateCursor(ev.ActorID, p.Cursor, at)
	return nil
}

func (s *Session) decodeField(ev models.Event) (models.FieldPayload, error) {
	if ev.ActorID == "" {
		return models.FieldPayload{}, fmt.Errorf("%w: presence without actor", models.ErrMalformedInboundEvent)
	}
	p, err := dispatch.Decode[models.FieldPayload](ev)
	if err != nil {
		return p, err
	}
	if p.Path != nil {
		if err := p.Path.Validate(); err != nil {
			return p, fmt.Errorf("%w: %v", models.ErrMalformedInboundEvent, err)
		}
	}
	return p, nil
}

func (s *Session) onFocus(_ context.Context, ev models.Event) error {
	p, err := s.decodeField(ev)
	if err != nil {
		return err
	}
	at := s.eventTime(ev)
	s.tracker.SetIdentity(ev.ActorID, p.Identity, at)
	s.tracker.SetFocus(ev.ActorID, p.Path, at)
	return nil
}

func (s *Session) onTyping(_ context.Context, ev models.Event) error {
	p, err := s.decodeField(ev)
	if err != nil {
		return err
	}
	at := s.eventTime(ev)
	s.tracker.SetIdentity(ev.ActorID, p.Identity, at)
	s.tracker.SetTyping(ev.ActorID, p.Path, at)
	return nil
}

func (s *Session) onLeave(_ context.Context, ev models.Event) error {
	if ev.ActorID == "" {
		return fmt.Errorf("%w: presence without actor", models.ErrMalformedInboundEvent)
	}
	s.tracker.Leave(ev.ActorID)
	return nil
}
