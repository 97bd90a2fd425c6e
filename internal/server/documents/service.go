// Package documents is the reference backend: it loads estimates, accepts
// revision-checked saves, answers conflicts with the fields both sides touched
// and broadcasts accepted changes to the document's peers.
package documents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/iudanet/estisync/internal/conflict"
	"github.com/iudanet/estisync/internal/models"
	"github.com/iudanet/estisync/internal/server/storage"
	"github.com/iudanet/estisync/internal/tracing"
	"github.com/iudanet/estisync/internal/validation"
)

// commitAttempts сколько раз запись перечитывает документ после гонки коммитов
const commitAttempts = 3

//go:generate moq -out broadcaster_mock.go . Broadcaster

// Broadcaster рассылает события участникам документа
type Broadcaster interface {
	Broadcast(ev models.Event) error
}

// Option настройка сервиса
type Option func(*Service)

// WithValidator включает серверную проверку документа перед коммитом
func WithValidator(v validation.Validator) Option {
	return func(s *Service) {
		s.validator = v
	}
}

// WithBroadcaster задает рассылку document.update после принятой записи
func WithBroadcaster(b Broadcaster) Option {
	return func(s *Service) {
		s.broadcaster = b
	}
}

// WithTracer задает трассировщик записей
func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithNow подменяет источник времени
func WithNow(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// Service принимает и отдает документы
type Service struct {
	storage     storage.DocumentStorage
	validator   validation.Validator
	broadcaster Broadcaster
	tracer      trace.Tracer
	logger      *slog.Logger
	now         func() time.Time
}

// NewService создает сервис поверх хранилища ревизий
func NewService(st storage.DocumentStorage, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		storage: st,
		tracer:  noop.NewTracerProvider().Tracer(""),
		logger:  logger,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load возвращает последнюю ревизию документа.
// Возвращает models.ErrDocumentNotFound, если документ ни разу не сохранялся.
func (s *Service) Load(ctx context.Context, documentID string) (*models.Document, error) {
	doc, err := s.storage.GetDocument(ctx, documentID)
	if err != nil {
		if errors.Is(err, storage.ErrDocumentNotFound) {
			return nil, fmt.Errorf("%w: %s", models.ErrDocumentNotFound, documentID)
		}
		return nil, fmt.Errorf("failed to load document: %w", err)
	}
	return doc, nil
}

// Save применяет изменения, если ожидаемая ревизия совпадает с текущей.
// Иначе возвращает конфликт с серверным снимком и спорными путями.
// Некорректный запрос возвращается как *models.ValidationError.
func (s *Service) Save(ctx context.Context, documentID string, req models.SaveRequest) (res *models.SaveResult, err error) {
	ctx, span := s.tracer.Start(ctx, "documents.save",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(tracing.DocumentAttrs(documentID, req.ExpectedRevision)...),
		trace.WithAttributes(attribute.Int("save.changes", len(req.Changes))),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetAttributes(attribute.String("save.status", string(res.Status)))
		}
		span.End()
	}()

	changes, err := normalize(req)
	if err != nil {
		return nil, err
	}

	if req.IdempotencyKey != "" {
		prev, err := s.storage.FindByIdempotencyKey(ctx, documentID, req.IdempotencyKey)
		switch {
		case err == nil && prev.ActorID != req.ActorID:
			// ключ чужой записи не дает права на ее ответ
			s.logger.Warn("Idempotency key reused by another actor",
				"document_id", documentID,
				"actor_id", req.ActorID,
				"owner_id", prev.ActorID)
		case err == nil:
			s.logger.Info("Replaying accepted save",
				"document_id", documentID,
				"revision", prev.Revision,
				"token", req.IdempotencyKey)
			return &models.SaveResult{Status: models.SaveAccepted, Revision: prev.Revision}, nil
		case !errors.Is(err, storage.ErrRevisionNotFound):
			return nil, fmt.Errorf("failed to look up idempotency key: %w", err)
		}
	}

	for attempt := 1; ; attempt++ {
		current, err := s.current(ctx, documentID)
		if err != nil {
			return nil, err
		}

		if req.ExpectedRevision != current.Revision {
			return s.conflictResult(ctx, documentID, req.ExpectedRevision, changes, current)
		}

		next := current.Clone()
		next.ApplyChanges(changes)
		next.Revision = current.Revision + 1
		next.SyncedAt = s.now().UTC()

		if s.validator != nil {
			introduced := validation.Introduced(
				validation.Errors(s.validator.Validate(current)),
				validation.Errors(s.validator.Validate(next)),
			)
			if len(introduced) > 0 {
				return nil, &models.ValidationError{Findings: introduced}
			}
		}

		err = s.storage.CommitRevision(ctx, &storage.Revision{
			DocumentID:     documentID,
			Revision:       next.Revision,
			IdempotencyKey: req.IdempotencyKey,
			ActorID:        req.ActorID,
			Changes:        changes,
			Snapshot:       next,
			CreatedAt:      next.SyncedAt,
		})
		if errors.Is(err, storage.ErrRevisionConflict) && attempt < commitAttempts {
			// параллельная запись успела раньше: перечитываем и отвечаем конфликтом
			s.logger.Debug("Concurrent commit, retrying", "document_id", documentID, "attempt", attempt)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to commit revision: %w", err)
		}

		s.logger.Info("Save accepted",
			"document_id", documentID,
			"revision", next.Revision,
			"actor_id", req.ActorID,
			"changes", len(changes))

		s.broadcast(documentID, req.ActorID, models.DocumentUpdatePayload{
			Changes:          changes,
			Revision:         next.Revision,
			PreviousRevision: current.Revision,
		})
		return &models.SaveResult{Status: models.SaveAccepted, Revision: next.Revision}, nil
	}
}

func (s *Service) current(ctx context.Context, documentID string) (*models.Document, error) {
	doc, err := s.storage.GetDocument(ctx, documentID)
	if errors.Is(err, storage.ErrDocumentNotFound) {
		return models.NewDocument(documentID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load document: %w", err)
	}
	return doc, nil
}

// conflictResult сравнивает запись клиента с ревизией, от которой он начинал.
// Если эта ревизия неизвестна, спорными считаются все изменившиеся пути,
// на которых значения клиента и сервера различаются.
func (s *Service) conflictResult(
	ctx context.Context,
	documentID string,
	expected int64,
	changes []models.FieldChange,
	current *models.Document,
) (*models.SaveResult, error) {
	base, err := s.storage.GetRevision(ctx, documentID, expected)
	switch {
	case errors.Is(err, storage.ErrRevisionNotFound):
		base = nil
	case err != nil:
		return nil, fmt.Errorf("failed to load base revision: %w", err)
	}

	var local *models.Document
	if base != nil {
		local = base.Clone()
	} else {
		local = current.Clone()
	}
	local.ApplyChanges(changes)

	fields := conflict.Detect(base, local, current, models.ChangedPaths(changes))
	paths := make([]models.Path, 0, len(fields))
	for _, f := range fields {
		paths = append(paths, f.Path)
	}

	s.logger.Info("Save conflict",
		"document_id", documentID,
		"expected_revision", expected,
		"revision", current.Revision,
		"conflicting_paths", len(paths))

	return &models.SaveResult{
		Status:           models.SaveConflict,
		Revision:         current.Revision,
		ServerSnapshot:   current,
		ConflictingPaths: paths,
	}, nil
}

func (s *Service) broadcast(documentID, actorID string, payload models.DocumentUpdatePayload) {
	if s.broadcaster == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error("Failed to marshal document update", "document_id", documentID, "error", err)
		return
	}
	ev := models.Event{
		ID:         uuid.New().String(),
		Kind:       models.EventDocumentUpdate,
		DocumentID: documentID,
		ActorID:    actorID,
		Payload:    data,
		At:         s.now().UTC(),
	}
	if err := s.broadcaster.Broadcast(ev); err != nil {
		s.logger.Warn("Failed to broadcast document update", "document_id", documentID, "error", err)
	}
}

// normalize проверяет пути и компактирует JSON значений
func normalize(req models.SaveRequest) ([]models.FieldChange, error) {
	var findings []models.Finding
	if req.ExpectedRevision < 0 {
		findings = append(findings, models.Finding{
			Rule:     "revision",
			Severity: models.SeverityError,
			Message:  fmt.Sprintf("expected revision %d is negative", req.ExpectedRevision),
		})
	}

	out := make([]models.FieldChange, 0, len(req.Changes))
	for _, ch := range req.Changes {
		if err := ch.Path.Validate(); err != nil {
			findings = append(findings, models.Finding{
				Rule:     "path",
				Severity: models.SeverityError,
				Message:  err.Error(),
				Path:     ch.Path,
			})
			continue
		}
		if ch.Value == nil {
			out = append(out, models.FieldChange{Path: ch.Path})
			continue
		}
		v, err := models.NewValue(ch.Value.Data, ch.Value.Timestamp, ch.Value.NodeID)
		if err != nil {
			findings = append(findings, models.Finding{
				Rule:     "json",
				Severity: models.SeverityError,
				Message:  err.Error(),
				Path:     ch.Path,
			})
			continue
		}
		out = append(out, models.FieldChange{Path: ch.Path, Value: &v})
	}

	if len(findings) > 0 {
		return nil, &models.ValidationError{Findings: findings}
	}
	return out, nil
}
