package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/iudanet/estisync/internal/client/autosave"
	"github.com/iudanet/estisync/internal/client/clock"
	"github.com/iudanet/estisync/internal/conflict"
	"github.com/iudanet/estisync/internal/models"
)

// inflightSave запись, ожидающая ответа бэкенда
type inflightSave struct {
	span     trace.Span
	watchdog clock.Timer
	cancel   context.CancelFunc
	req      models.SaveRequest
	ticket   autosave.Ticket
}

// SaveNow сохраняет документ немедленно, минуя debounce. Если запись уже
// выполняется, дожидается ее и сохраняет снова, если остались изменения.
// В состоянии конфликта возвращает models.ErrConflictUnresolved.
func (s *Session) SaveNow(ctx context.Context) error {
	result := make(chan error, 1)
	var (
		immediate error
		wait      bool
	)

	err := s.call(ctx, func() {
		switch s.sched.State() {
		case autosave.StateClean:
			return
		case autosave.StateConflicted:
			immediate = s.conflictError()
			return
		}

		s.waiters = append(s.waiters, result)
		wait = true
		if s.sched.CanSave() {
			s.stopDebounce()
			s.startSave()
		}
	})
	if err != nil {
		return err
	}
	if !wait {
		return immediate
	}

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return models.ErrSessionClosed
	}
}

// settle завершает ожидание всех вызовов SaveNow.
// Статус и черновик обновляются до того, как ожидающие продолжат работу.
func (s *Session) settle(err error) {
	if len(s.waiters) == 0 {
		return
	}
	s.changed()
	for _, w := range s.waiters {
		w <- err
	}
	s.waiters = nil
}

func (s *Session) conflictError() error {
	if s.conflict == nil {
		return models.ErrConflictUnresolved
	}
	return fmt.Errorf("%w: conflict %s on %d fields", models.ErrConflictUnresolved, s.conflict.ID, len(s.conflict.Fields))
}

func (s *Session) armDebounce() {
	s.stopDebounce()
	s.debounceGen++
	gen := s.debounceGen
	s.debounce = s.clock.AfterFunc(s.cfg.Debounce, func() {
		s.post(func() { s.onDebounce(gen) })
	})
}

func (s *Session) stopDebounce() {
	if s.debounce != nil {
		s.debounce.Stop()
		s.debounce = nil
	}
}

// onDebounce срабатывает, только если за окно не было новых мутаций
func (s *Session) onDebounce(gen uint64) {
	if gen != s.debounceGen {
		return
	}
	s.debounce = nil
	if s.sched.CanSave() {
		s.startSave()
	}
}

func (s *Session) startSave() {
	if s.writing {
		// продолжит resumeAutosave
		return
	}
	changes := s.store.DirtyChanges()
	if len(changes) == 0 {
		s.settleIfClean()
		s.changed()
		return
	}

	ticket, err := s.sched.BeginSave(s.clock.Now(), s.ledger.PendingIDs())
	if err != nil {
		s.logger.Debug("Save not started", "reason", err)
		s.changed()
		return
	}

	base := s.store.Base()
	req := models.SaveRequest{
		IdempotencyKey:   models.IdempotencyKey(s.cfg.ActorID, base.Revision, changes),
		ActorID:          s.cfg.ActorID,
		Changes:          changes,
		ExpectedRevision: base.Revision,
	}

	ctx, cancel := context.WithCancel(s.ctx)
	ctx, span := s.tracer.Start(ctx, "autosave.save", trace.WithAttributes(
		attribute.String("document.id", s.cfg.DocumentID),
		attribute.Int64("document.expected_revision", base.Revision),
		attribute.Int("save.changes", len(changes)),
		attribute.String("save.token", ticket.Token),
	))

	token := ticket.Token
	watchdog := s.clock.AfterFunc(s.cfg.SaveTimeout, func() {
		cancel()
		s.post(func() { s.onSaveTimeout(token) })
	})

	s.inflight = &inflightSave{
		span:     span,
		watchdog: watchdog,
		cancel:   cancel,
		req:      req,
		ticket:   ticket,
	}

	s.logger.Debug("Save started",
		"token", token,
		"expected_revision", base.Revision,
		"changes", len(changes),
		"updates", len(ticket.UpdateIDs))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		res, err := s.backend.Save(ctx, s.cfg.DocumentID, req)
		s.post(func() { s.finishSave(token, res, err) })
	}()

	s.changed()
}

// takeInflight снимает запись с ожидания, если token текущий
func (s *Session) takeInflight(token string) (*inflightSave, bool) {
	if s.inflight == nil || s.inflight.ticket.Token != token {
		return nil, false
	}
	in := s.inflight
	s.inflight = nil
	in.watchdog.Stop()
	in.cancel()
	return in, true
}

func (s *Session) onSaveTimeout(token string) {
	in, ok := s.takeInflight(token)
	if !ok {
		return
	}
	s.failSave(in, &models.TransportError{Op: "save", Err: context.DeadlineExceeded})
}

func (s *Session) finishSave(token string, res *models.SaveResult, err error) {
	in, ok := s.takeInflight(token)
	if !ok {
		s.logger.Debug("Ignoring stale save result", "token", token)
		return
	}

	switch {
	case err != nil:
		s.failSave(in, err)
	case res == nil:
		s.failSave(in, &models.TransportError{Op: "save", Err: errors.New("empty response")})
	case res.Status == models.SaveAccepted:
		s.saveAccepted(in, res)
	case res.Status == models.SaveConflict && res.ServerSnapshot != nil:
		s.saveConflicted(in, res)
	default:
		s.failSave(in, &models.TransportError{Op: "save", Err: fmt.Errorf("unexpected save status %q", res.Status)})
	}
}

// failSave оставляет документ dirty и повторяет запись на следующем тике debounce
func (s *Session) failSave(in *inflightSave, err error) {
	if !errors.Is(err, models.ErrTransportFailure) && !errors.Is(err, models.ErrValidationRejected) {
		err = &models.TransportError{Op: "save", Err: err}
	}

	in.span.RecordError(err)
	in.span.SetStatus(codes.Error, err.Error())
	in.span.End()

	if _, serr := s.sched.Failed(in.ticket.Token, err); serr != nil {
		s.logger.Error("Scheduler rejected save failure", "token", in.ticket.Token, "error", serr)
	}
	st := s.sched.Status()
	s.logger.Warn("Save failed",
		"token", in.ticket.Token,
		"failures", st.Failures,
		"save_error", st.SaveError,
		"error", err)

	s.settle(err)
	s.armDebounce()
	s.changed()
}

func (s *Session) saveAccepted(in *inflightSave, res *models.SaveResult) {
	now := s.clock.Now()
	s.store.Commit(in.req.Changes, res.Revision, now)
	confirmed := s.ledger.ConfirmMany(in.ticket.UpdateIDs)
	state, err := s.sched.Succeeded(in.ticket.Token, now)
	if err != nil {
		s.logger.Error("Scheduler rejected save result", "token", in.ticket.Token, "error", err)
	}
	s.autoResolved = 0

	in.span.SetAttributes(attribute.Int64("document.revision", res.Revision))
	in.span.SetStatus(codes.Ok, "")
	in.span.End()

	s.logger.Info("Save accepted",
		"revision", res.Revision,
		"changes", len(in.req.Changes),
		"confirmed", confirmed,
		"state", state)

	s.continueAfterSave()
}

// continueAfterSave продолжает после завершенной записи: мутации, сделанные
// во время записи, сохраняются сразу при ожидающих SaveNow, иначе после debounce
func (s *Session) continueAfterSave() {
	switch s.sched.State() {
	case autosave.StateClean:
		s.ledger.ConfirmMany(s.ledger.PendingIDs())
		s.settle(nil)
	case autosave.StateDirty:
		if !s.store.IsDirty() {
			s.settleIfClean()
			break
		}
		if len(s.waiters) > 0 {
			s.startSave()
			return
		}
		s.armDebounce()
	}
	s.changed()
}

func (s *Session) saveConflicted(in *inflightSave, res *models.SaveResult) {
	server := res.ServerSnapshot
	base := s.store.Base()
	local := s.store.Snapshot()
	s.lamport.ObserveDocument(server)

	fields := conflict.Detect(base, local, server, res.ConflictingPaths)
	if len(fields) == 0 {
		// ревизия устарела, но поля не пересекаются: перебазируемся и пишем снова
		s.store.Install(server, conflict.Rebase(base, local, server))
		dirty := s.store.IsDirty()
		if _, err := s.sched.Rebased(in.ticket.Token, dirty); err != nil {
			s.logger.Error("Scheduler rejected rebase", "token", in.ticket.Token, "error", err)
		}

		in.span.AddEvent("rebased", trace.WithAttributes(attribute.Int64("document.revision", server.Revision)))
		in.span.End()
		s.logger.Info("Save rebased on newer server revision",
			"expected_revision", in.req.ExpectedRevision,
			"server_revision", server.Revision,
			"dirty", dirty)

		if dirty {
			s.startSave()
			return
		}
		s.continueAfterSave()
		return
	}

	c := &models.Conflict{
		ID:               uuid.New().String(),
		DocumentID:       s.cfg.DocumentID,
		DetectedAt:       s.clock.Now(),
		ServerSnapshot:   server,
		Fields:           s.resolver.Propose(fields),
		ExpectedRevision: in.req.ExpectedRevision,
		ServerRevision:   res.Revision,
	}
	if _, err := s.sched.Conflicted(in.ticket.Token, c.ID); err != nil {
		s.logger.Error("Scheduler rejected conflict", "token", in.ticket.Token, "error", err)
	}
	s.conflict = c

	in.span.SetAttributes(attribute.Int("conflict.fields", len(fields)))
	in.span.SetStatus(codes.Error, "conflict")
	in.span.End()

	paths := make([]string, 0, len(fields))
	for _, f := range fields {
		paths = append(paths, f.Path.String())
	}
	s.logger.Warn("Save conflicted",
		"conflict_id", c.ID,
		"expected_revision", in.req.ExpectedRevision,
		"server_revision", res.Revision,
		"paths", paths)

	if s.cfg.DefaultStrategy != "" && s.autoResolved < s.cfg.MaxConflictRetries {
		s.autoResolved++
		err := s.resolveConflict(c, s.cfg.DefaultStrategy, true)
		if err == nil {
			return
		}
		s.logger.Error("Automatic conflict resolution failed", "conflict_id", c.ID, "error", err)
	}

	s.settle(s.conflictError())
	s.changed()

	published := c.Clone()
	s.notify(func() { s.conflicts.Publish(published) })
}
