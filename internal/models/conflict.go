package models

import (
	"fmt"
	"time"
)

// Strategy стратегия разрешения конфликта
type Strategy string

const (
	// StrategyOverwriteServer локальная версия записывается поверх серверной
	StrategyOverwriteServer Strategy = "overwrite-server"
	// StrategyOverwriteLocal серверная версия заменяет локальную
	StrategyOverwriteLocal Strategy = "overwrite-local"
	// StrategyMerge пофайловое слияние функцией merge
	StrategyMerge Strategy = "merge"
)

// ParseStrategy разбирает имя стратегии
func ParseStrategy(s string) (Strategy, error) {
	switch st := Strategy(s); st {
	case StrategyOverwriteServer, StrategyOverwriteLocal, StrategyMerge:
		return st, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStrategy, s)
}

// FieldConflict three-way view of one contested path.
// A nil value means the field is absent in that version.
type FieldConflict struct {
	Base   *Value `json:"base"`
	Local  *Value `json:"local"`
	Server *Value `json:"server"`
	// Merged значение, которое предложит стратегия merge
	Merged *Value `json:"merged,omitempty"`
	Path   Path   `json:"path"`
}

// Conflict запись о конфликте записи. Живет только в памяти до разрешения.
type Conflict struct {
	DetectedAt       time.Time       `json:"detected_at"`
	ServerSnapshot   *Document       `json:"server_snapshot"`
	ID               string          `json:"id"`
	DocumentID       string          `json:"document_id"`
	Fields           []FieldConflict `json:"fields"`
	ExpectedRevision int64           `json:"expected_revision"`
	ServerRevision   int64           `json:"server_revision"`
}

// Paths возвращает конфликтующие пути
func (c *Conflict) Paths() []Path {
	paths := make([]Path, 0, len(c.Fields))
	for _, f := range c.Fields {
		paths = append(paths, f.Path)
	}
	return paths
}

// Clone создает глубокую копию конфликта
func (c *Conflict) Clone() *Conflict {
	if c == nil {
		return nil
	}
	out := *c
	if c.ServerSnapshot != nil {
		out.ServerSnapshot = c.ServerSnapshot.Clone()
	}
	out.Fields = make([]FieldConflict, len(c.Fields))
	for i, f := range c.Fields {
		out.Fields[i] = FieldConflict{
			Path:   f.Path,
			Base:   ClonePtr(f.Base),
			Local:  ClonePtr(f.Local),
			Server: ClonePtr(f.Server),
			Merged: ClonePtr(f.Merged),
		}
	}
	return &out
}

// AuditNote человекочитаемая запись о разрешении конфликта
type AuditNote struct {
	At         time.Time `json:"at"`
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id"`
	ConflictID string    `json:"conflict_id"`
	ActorID    string    `json:"actor_id"`
	Strategy   Strategy  `json:"strategy"`
	Text       string    `json:"text"`
	Paths      []Path    `json:"paths"`
	Revision   int64     `json:"revision"`
	Automatic  bool      `json:"automatic"`
}
