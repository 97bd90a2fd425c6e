package models

import (
	"errors"
	"fmt"
	"strings"
)

// Ошибки движка синхронизации
var (
	// ErrValidationRejected мутация отклонена движком правил (есть находки уровня error)
	ErrValidationRejected = errors.New("mutation rejected by validation")

	// ErrTransportFailure бэкенд недоступен, ответил ошибкой или вышел таймаут
	ErrTransportFailure = errors.New("transport failure")

	// ErrConflictUnresolved документ находится в состоянии конфликта, автосохранение заблокировано
	ErrConflictUnresolved = errors.New("conflict unresolved")

	// ErrRollbackOfConfirmed попытка откатить уже подтвержденное сервером обновление
	ErrRollbackOfConfirmed = errors.New("rollback of confirmed update")

	// ErrMalformedInboundEvent входящее событие не удалось декодировать
	ErrMalformedInboundEvent = errors.New("malformed inbound event")

	// ErrUpdateNotFound обновление с таким ID отсутствует в журнале
	ErrUpdateNotFound = errors.New("optimistic update not found")

	// ErrSessionClosed сессия уже закрыта
	ErrSessionClosed = errors.New("session closed")

	// ErrStaleConflict конфликт уже разрешен или заменен более новым
	ErrStaleConflict = errors.New("conflict is stale")

	// ErrDocumentNotFound документ не найден
	ErrDocumentNotFound = errors.New("document not found")

	// ErrInvalidPath путь поля не соответствует формату kind/entity/field
	ErrInvalidPath = errors.New("invalid field path")

	// ErrInvalidValue значение поля не является корректным JSON
	ErrInvalidValue = errors.New("invalid field value")

	// ErrUnknownStrategy неизвестная стратегия разрешения конфликта
	ErrUnknownStrategy = errors.New("unknown resolution strategy")
)

// ValidationError carries the findings that caused a mutation to be rejected.
type ValidationError struct {
	Findings []Finding
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Findings))
	for _, f := range e.Findings {
		if f.Severity == SeverityError {
			msgs = append(msgs, f.String())
		}
	}
	return fmt.Sprintf("%s: %s", ErrValidationRejected, strings.Join(msgs, "; "))
}

// Is позволяет сравнивать через errors.Is(err, ErrValidationRejected)
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidationRejected
}

// TransportError wraps a backend or transport failure.
type TransportError struct {
	Err        error
	Op         string
	StatusCode int
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %s failed with status %d: %v", ErrTransportFailure, e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", ErrTransportFailure, e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Is позволяет сравнивать через errors.Is(err, ErrTransportFailure)
func (e *TransportError) Is(target error) bool {
	return target == ErrTransportFailure
}
