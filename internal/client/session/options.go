package session

import (
	"go.opentelemetry.io/otel/trace"

	"github.com/iudanet/estisync/internal/client/clock"
	"github.com/iudanet/estisync/internal/conflict"
	"github.com/iudanet/estisync/internal/validation"
)

// Option настройка сессии
type Option func(*Session)

// WithClock подменяет часы (таймеры debounce, таймаут записи, свежесть присутствия)
func WithClock(c clock.Clock) Option {
	return func(s *Session) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithValidator задает движок правил, который проверяет каждую локальную мутацию
func WithValidator(v validation.Validator) Option {
	return func(s *Session) {
		if v != nil {
			s.validator = v
		}
	}
}

// WithCache включает локальный кэш черновиков и журнала аудита
func WithCache(c Cache) Option {
	return func(s *Session) {
		s.cache = c
	}
}

// WithTracer задает трассировщик для записи и разрешения конфликтов
func WithTracer(t trace.Tracer) Option {
	return func(s *Session) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithMergeFunc задает функцию слияния для стратегии merge.
// По умолчанию побеждает значение с более поздней меткой времени.
func WithMergeFunc(fn conflict.MergeFunc) Option {
	return func(s *Session) {
		s.merge = fn
	}
}
