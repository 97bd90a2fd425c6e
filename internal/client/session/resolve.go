package session

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/iudanet/estisync/internal/conflict"
	"github.com/iudanet/estisync/internal/models"
)

// OnConflict подписывает обработчик на конфликты, требующие решения пользователя.
// Обработчик вызывается вне цикла событий и может вызывать Resolve.
func (s *Session) OnConflict(fn func(*models.Conflict)) (dispose func()) {
	return s.conflicts.Subscribe(fn)
}

// Conflict возвращает неразрешенный конфликт, если он есть
func (s *Session) Conflict() (*models.Conflict, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.pendingConflict == nil {
		return nil, false
	}
	return s.pendingConflict.Clone(), true
}

// Resolve применяет стратегию к текущему конфликту. Конфликт, который уже
// разрешен или заменен новым, возвращает models.ErrStaleConflict.
// Если итог отличается от сервера, он сразу записывается.
func (s *Session) Resolve(ctx context.Context, strategy models.Strategy, c *models.Conflict) error {
	if c == nil {
		return errors.New("conflict is required")
	}
	if _, err := models.ParseStrategy(string(strategy)); err != nil {
		return err
	}

	var resolveErr error
	err := s.call(ctx, func() {
		if s.conflict == nil || s.conflict.ID != c.ID {
			resolveErr = fmt.Errorf("%w: %s", models.ErrStaleConflict, c.ID)
			return
		}
		resolveErr = s.resolveConflict(s.conflict, strategy, false)
	})
	if err != nil {
		return err
	}
	return resolveErr
}

func (s *Session) resolveConflict(c *models.Conflict, strategy models.Strategy, automatic bool) error {
	_, span := s.tracer.Start(s.ctx, "conflict.resolve", trace.WithAttributes(
		attribute.String("document.id", s.cfg.DocumentID),
		attribute.String("conflict.id", c.ID),
		attribute.String("conflict.strategy", string(strategy)),
		attribute.Bool("conflict.automatic", automatic),
		attribute.Int64("document.server_revision", c.ServerRevision),
	))
	defer span.End()

	base := s.store.Base()
	local := s.store.Snapshot()

	// локальные правки, сделанные после обнаружения, тоже участвуют в разрешении
	current := *c
	current.Fields = conflict.Detect(base, local, c.ServerSnapshot, c.Paths())

	res, err := s.resolver.Plan(&current, base, local, strategy, automatic)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	s.store.Install(res.Base, res.Document)
	consumed := s.ledger.Consume(res.Consume)
	dirty := s.store.IsDirty()
	if _, err := s.sched.Resolved(dirty); err != nil {
		span.RecordError(err)
		return err
	}
	s.conflict = nil
	if !dirty {
		s.ledger.ConfirmMany(s.ledger.PendingIDs())
	}
	s.recordAudit(res.Note)

	span.SetAttributes(
		attribute.Int("conflict.fields", len(current.Fields)),
		attribute.Bool("conflict.matches_server", !dirty),
	)
	s.logger.Info("Conflict resolved",
		"conflict_id", c.ID,
		"strategy", strategy,
		"automatic", automatic,
		"consumed_updates", len(consumed),
		"dirty", dirty)

	if dirty {
		s.startSave()
		return nil
	}
	s.settle(nil)
	s.changed()
	return nil
}

func (s *Session) recordAudit(note models.AuditNote) {
	s.mu.Lock()
	s.audit = append(s.audit, note)
	s.mu.Unlock()

	if s.cache == nil {
		return
	}
	if err := s.cache.AppendAudit(s.ctx, note); err != nil {
		s.logger.Warn("Failed to persist audit note", "conflict_id", note.ConflictID, "error", err)
	}
}
