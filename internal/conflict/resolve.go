package conflict

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/iudanet/estisync/internal/crdt"
	"github.com/iudanet/estisync/internal/models"
)

// MergeFunc выбирает итоговое значение конфликтующего поля (nil - поле отсутствует)
type MergeFunc func(fc models.FieldConflict) *models.Value

// Resolution план разрешения конфликта. Резолвер не меняет состояние:
// план применяет сессия.
type Resolution struct {
	// Base серверный снимок, который становится новой базой
	Base *models.Document
	// Document итоговое локальное состояние
	Document *models.Document
	Note     models.AuditNote
	Strategy models.Strategy
	// Consume пути, по которым ожидающие обновления должны быть удалены из журнала
	Consume []models.Path
	// Values итоговое значение каждого конфликтующего пути
	Values []models.FieldChange
	// MatchesServer итог совпадает с сервером, запись не нужна
	MatchesServer bool
}

// Resolver планирует разрешение конфликтов
type Resolver struct {
	merge  MergeFunc
	now    func() time.Time
	logger *slog.Logger
	actor  string
}

// NewResolver создает резолвер. Если merge == nil, используется crdt.LatestWins.
func NewResolver(actorID string, merge MergeFunc, now func() time.Time, logger *slog.Logger) *Resolver {
	if merge == nil {
		merge = crdt.LatestWins
	}
	if now == nil {
		now = time.Now
	}
	return &Resolver{merge: merge, now: now, logger: logger, actor: actorID}
}

// Plan строит итоговое состояние для стратегии.
//
// Итог = серверный снимок + локальные изменения на неконфликтующих путях
// + выбранные значения на конфликтующих путях. base - снимок, на котором
// основаны локальные изменения (nil трактуется как пустой документ).
func (r *Resolver) Plan(c *models.Conflict, base, local *models.Document, strategy models.Strategy, automatic bool) (*Resolution, error) {
	if c == nil || c.ServerSnapshot == nil {
		return nil, fmt.Errorf("conflict without server snapshot")
	}
	if _, err := models.ParseStrategy(string(strategy)); err != nil {
		return nil, err
	}

	server := c.ServerSnapshot.Clone()
	resolved := server.Clone()
	contested := models.NewPathSet(c.Paths()...)

	for _, ch := range models.Diff(base, local) {
		if contested.Has(ch.Path) {
			continue
		}
		resolved.Put(ch.Path, ch.Value)
	}

	var consume []models.Path
	values := make([]models.FieldChange, 0, len(c.Fields))
	for _, fc := range c.Fields {
		var chosen *models.Value
		switch strategy {
		case models.StrategyOverwriteServer:
			chosen = models.ClonePtr(fc.Local)
		case models.StrategyOverwriteLocal:
			chosen = models.ClonePtr(fc.Server)
			consume = append(consume, fc.Path)
		case models.StrategyMerge:
			chosen = r.merge(fc)
			if models.SameValue(chosen, fc.Server) {
				consume = append(consume, fc.Path)
			}
		}
		resolved.Put(fc.Path, chosen)
		values = append(values, models.FieldChange{Path: fc.Path, Value: chosen})
	}

	resolved.Revision = server.Revision
	resolved.SyncedAt = server.SyncedAt
	matches := len(models.Diff(server, resolved)) == 0

	note := models.AuditNote{
		ID:         uuid.New().String(),
		DocumentID: c.DocumentID,
		ConflictID: c.ID,
		ActorID:    r.actor,
		Strategy:   strategy,
		Paths:      c.Paths(),
		Automatic:  automatic,
		Revision:   c.ServerRevision,
		At:         r.now(),
	}
	note.Text = FormatNote(note)

	r.logger.Info("Conflict resolution planned",
		"document_id", c.DocumentID,
		"conflict_id", c.ID,
		"strategy", strategy,
		"paths", len(c.Fields),
		"automatic", automatic,
		"matches_server", matches)

	return &Resolution{
		Base:          server,
		Document:      resolved,
		Strategy:      strategy,
		Consume:       consume,
		Values:        values,
		MatchesServer: matches,
		Note:          note,
	}, nil
}

// Propose заполняет Merged каждого поля значением, которое выберет стратегия merge
func (r *Resolver) Propose(fields []models.FieldConflict) []models.FieldConflict {
	for i := range fields {
		fields[i].Merged = models.ClonePtr(r.merge(fields[i]))
	}
	return fields
}

// Rebase применяет локальные изменения поверх серверного снимка, когда ревизия
// не совпала, но ни одно поле не конфликтует.
func Rebase(base, local, server *models.Document) *models.Document {
	resolved := server.Clone()
	resolved.ApplyChanges(models.Diff(base, local))
	resolved.Revision = server.Revision
	resolved.SyncedAt = server.SyncedAt
	return resolved
}
