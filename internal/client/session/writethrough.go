package session

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/iudanet/estisync/internal/client/autosave"
	"github.com/iudanet/estisync/internal/models"
)

// writeThrough записывает мутацию на сервер, не применяя ее локально заранее.
// Сначала сохраняются накопленные оптимистичные правки, затем мутация уходит
// отдельной записью; автосохранение на это время приостановлено. Документ
// меняется только после ответа accepted.
func (s *Session) writeThrough(ctx context.Context, m models.Mutation) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	var (
		req   models.SaveRequest
		ready bool
	)
	for !ready {
		if err := s.SaveNow(ctx); err != nil {
			return err
		}
		var prepErr error
		if err := s.call(ctx, func() { req, ready, prepErr = s.prepareWrite(m) }); err != nil {
			return err
		}
		if prepErr != nil {
			return prepErr
		}
	}
	if len(req.Changes) == 0 {
		return nil
	}

	saveCtx, cancel := context.WithTimeout(ctx, s.cfg.SaveTimeout)
	saveCtx, span := s.tracer.Start(saveCtx, "session.write_through", trace.WithAttributes(
		attribute.String("document.id", s.cfg.DocumentID),
		attribute.Int64("document.expected_revision", req.ExpectedRevision),
		attribute.Int("save.changes", len(req.Changes)),
	))
	res, saveErr := s.backend.Save(saveCtx, s.cfg.DocumentID, req)
	cancel()

	var result error
	// шаг выполняется и после отмены ctx, иначе автосохранение останется на паузе
	err := s.call(context.WithoutCancel(ctx), func() { result = s.finishWrite(req, res, saveErr) })
	if err == nil {
		err = result
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetAttributes(attribute.Int64("document.revision", res.Revision))
		span.SetStatus(codes.Ok, "")
	}
	span.End()
	return err
}

// prepareWrite строит запрос для неоптимистичной мутации.
// ready false означает, что успела начаться автосохраняющая запись и нужно подождать ее.
func (s *Session) prepareWrite(m models.Mutation) (models.SaveRequest, bool, error) {
	switch {
	case s.sched.State() == autosave.StateConflicted:
		return models.SaveRequest{}, false, s.conflictError()
	case s.inflight != nil:
		return models.SaveRequest{}, false, nil
	}
	if err := s.checkRules(m); err != nil {
		return models.SaveRequest{}, false, err
	}

	changes := models.Diff(s.store.Snapshot(), s.store.Preview(m))
	if len(changes) == 0 {
		return models.SaveRequest{}, true, nil
	}
	rev := s.store.Revision()
	s.writing = true
	s.logger.Debug("Write-through started", "path", m.Path.String(), "op", m.Op, "expected_revision", rev)
	return models.SaveRequest{
		IdempotencyKey:   models.IdempotencyKey(s.cfg.ActorID, rev, changes),
		ActorID:          s.cfg.ActorID,
		Changes:          changes,
		ExpectedRevision: rev,
	}, true, nil
}

// finishWrite применяет принятую запись к базе и к документу. Пути, которые
// успели измениться локально во время записи, остаются за локальной правкой.
func (s *Session) finishWrite(req models.SaveRequest, res *models.SaveResult, saveErr error) error {
	s.writing = false
	defer s.resumeAutosave()

	switch {
	case saveErr != nil:
		if !errors.Is(saveErr, models.ErrTransportFailure) && !errors.Is(saveErr, models.ErrValidationRejected) {
			saveErr = &models.TransportError{Op: "save", Err: saveErr}
		}
		s.logger.Warn("Write-through failed", "error", saveErr)
		return saveErr
	case res == nil:
		return &models.TransportError{Op: "save", Err: errors.New("empty response")}
	case res.Status == models.SaveConflict:
		s.logger.Info("Write-through rejected by newer revision",
			"expected_revision", req.ExpectedRevision,
			"server_revision", res.Revision)
		return fmt.Errorf("%w: revision %d was saved first, document left unchanged",
			models.ErrConflictUnresolved, res.Revision)
	case res.Status != models.SaveAccepted:
		return &models.TransportError{Op: "save", Err: fmt.Errorf("unexpected save status %q", res.Status)}
	}

	dirty := models.NewPathSet(models.ChangedPaths(s.store.DirtyChanges())...)
	s.store.Commit(req.Changes, res.Revision, s.clock.Now())
	for _, ch := range req.Changes {
		if dirty.Has(ch.Path) {
			continue
		}
		s.store.Restore(ch.Path, ch.Value)
	}

	s.logger.Info("Write-through accepted", "revision", res.Revision, "changes", len(req.Changes))
	return nil
}

// resumeAutosave возобновляет автосохранение после неоптимистичной записи
func (s *Session) resumeAutosave() {
	defer s.changed()
	if s.sched.State() != autosave.StateDirty {
		return
	}
	if !s.store.IsDirty() {
		s.settleIfClean()
		return
	}
	if len(s.waiters) > 0 && s.sched.CanSave() {
		s.startSave()
		return
	}
	s.armDebounce()
}
