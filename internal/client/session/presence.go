package session

import (
	"context"

	"github.com/iudanet/estisync/internal/models"
)

// Presence возвращает свежее присутствие других участников.
// Атрибуты старше окна свежести отсутствуют.
func (s *Session) Presence() []models.CollaboratorPresence {
	return s.tracker.Snapshot()
}

func (s *Session) identity() models.Identity {
	return models.Identity{DisplayName: s.cfg.DisplayName, Color: s.cfg.Color}
}

// SetCursor сообщает участникам позицию локального курсора
func (s *Session) SetCursor(ctx context.Context, c models.Cursor) error {
	return s.dispatcher.Emit(ctx, models.EventPresenceCursor, models.CursorPayload{
		Identity: s.identity(),
		Cursor:   c,
	})
}

// SetFocus сообщает поле в фокусе; nil снимает фокус
func (s *Session) SetFocus(ctx context.Context, p *models.Path) error {
	return s.emitField(ctx, models.EventPresenceFocus, p)
}

// SetTyping сообщает поле, в котором идет ввод; nil снимает индикатор
func (s *Session) SetTyping(ctx context.Context, p *models.Path) error {
	return s.emitField(ctx, models.EventPresenceTyping, p)
}

func (s *Session) emitField(ctx context.Context, kind models.EventKind, p *models.Path) error {
	if p != nil {
		if err := p.Validate(); err != nil {
			return err
		}
	}
	return s.dispatcher.Emit(ctx, kind, models.FieldPayload{Path: p, Identity: s.identity()})
}

// armPrune периодически удаляет давно молчащих участников
func (s *Session) armPrune() {
	s.pruneTimer = s.clock.AfterFunc(s.cfg.PresenceTTL, func() {
		s.post(func() {
			s.tracker.Prune()
			s.armPrune()
		})
	})
}
