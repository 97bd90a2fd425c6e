package session

import (
	"context"
	"encoding/json"

	"github.com/iudanet/estisync/internal/client/autosave"
	"github.com/iudanet/estisync/internal/models"
	"github.com/iudanet/estisync/internal/validation"
)

// MutateOption настраивает одну мутацию
type MutateOption func(*mutateOptions)

type mutateOptions struct {
	optimistic bool
}

// Optimistic задает режим мутации. По умолчанию мутации оптимистичны.
// С false изменение сначала записывается на сервер и появляется в документе
// только после того, как сервер его принял.
func Optimistic(on bool) MutateOption {
	return func(o *mutateOptions) {
		o.optimistic = on
	}
}

// Mutate записывает значение поля. Оптимистичная мутация применяется локально
// сразу и попадает на сервер со следующей записью; возвращается ID
// оптимистичного обновления. Неоптимистичная мутация (Optimistic(false))
// возвращает пустой ID после того, как сервер ее принял.
// Нарушение правил возвращает *models.ValidationError, и документ не меняется.
func (s *Session) Mutate(ctx context.Context, p models.Path, raw json.RawMessage, opts ...MutateOption) (string, error) {
	if err := p.Validate(); err != nil {
		return "", err
	}
	v, err := s.lamport.Stamp(raw)
	if err != nil {
		return "", err
	}
	return s.apply(ctx, models.SetMutation(p, v), opts)
}

// Unset удаляет значение поля
func (s *Session) Unset(ctx context.Context, p models.Path, opts ...MutateOption) (string, error) {
	if err := p.Validate(); err != nil {
		return "", err
	}
	return s.apply(ctx, models.UnsetMutation(p), opts)
}

// DeleteEntity удаляет все поля сущности
func (s *Session) DeleteEntity(ctx context.Context, ref models.EntityRef, opts ...MutateOption) (string, error) {
	return s.apply(ctx, models.DeleteEntityMutation(ref), opts)
}

func (s *Session) apply(ctx context.Context, m models.Mutation, opts []MutateOption) (string, error) {
	if err := m.Validate(); err != nil {
		return "", err
	}
	o := mutateOptions{optimistic: true}
	for _, opt := range opts {
		opt(&o)
	}
	if !o.optimistic {
		return "", s.writeThrough(ctx, m)
	}

	var (
		id       string
		applyErr error
	)
	if err := s.call(ctx, func() { id, applyErr = s.applyMutation(m) }); err != nil {
		return "", err
	}
	return id, applyErr
}

// checkRules возвращает ошибку, если мутация добавляет нарушения правил
func (s *Session) checkRules(m models.Mutation) error {
	before := s.validator.Validate(s.store.Snapshot())
	after := s.validator.Validate(s.store.Preview(m))
	if introduced := validation.Introduced(before, after); models.HasErrors(introduced) {
		s.logger.Info("Mutation rejected by validation",
			"path", m.Path.String(),
			"op", m.Op,
			"findings", len(introduced))
		return &models.ValidationError{Findings: validation.Errors(introduced)}
	}
	return nil
}

func (s *Session) applyMutation(m models.Mutation) (string, error) {
	if err := s.checkRules(m); err != nil {
		return "", err
	}

	upd := s.ledger.Begin(m)
	s.sched.MarkDirty(s.clock.Now())
	s.settleIfClean()
	if s.sched.State() == autosave.StateDirty {
		s.armDebounce()
	}

	s.logger.Debug("Optimistic update applied",
		"update_id", upd.ID,
		"path", m.Path.String(),
		"op", m.Op,
		"state", s.sched.State())

	// ошибки транспорта уже залогированы; локальное состояние от них не зависит
	_ = s.dispatcher.Emit(s.ctx, models.EventDocumentMutation, models.MutationPayload{
		UpdateID: upd.ID,
		Mutation: m,
	})

	s.changed()
	return upd.ID, nil
}

// Rollback отменяет локальное обновление, еще не подтвержденное сервером.
// Для подтвержденного обновления возвращает models.ErrRollbackOfConfirmed
// и ничего не меняет.
func (s *Session) Rollback(ctx context.Context, updateID string) error {
	var rbErr error
	if err := s.call(ctx, func() { rbErr = s.rollback(updateID) }); err != nil {
		return err
	}
	return rbErr
}

func (s *Session) rollback(updateID string) error {
	if err := s.ledger.Rollback(updateID); err != nil {
		return err
	}
	// откат во время записи тоже изменение: итог записи не должен сделать документ clean
	s.sched.MarkDirty(s.clock.Now())
	s.settleIfClean()
	if s.sched.State() == autosave.StateDirty {
		s.armDebounce()
	}
	s.changed()
	return nil
}

// settleIfClean снимает признак dirty, когда локальное состояние совпало с базой.
// Ожидающие обновления просто забываются: сервер их не подтверждал, и
// откатывать в них уже нечего.
func (s *Session) settleIfClean() {
	if s.store.IsDirty() || s.sched.State() != autosave.StateDirty {
		return
	}
	s.sched.MarkClean()
	s.stopDebounce()
	s.ledger.Drop(s.ledger.PendingIDs())
	s.settle(nil)
}
