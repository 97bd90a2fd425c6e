package models

import (
	"encoding/json"
	"time"
)

// EventKind тип события транспортного канала
type EventKind string

const (
	EventDocumentUpdate     EventKind = "document.update"
	EventDocumentMutation   EventKind = "document.mutation"
	EventOptimisticConfirm  EventKind = "optimistic.confirm"
	EventOptimisticRollback EventKind = "optimistic.rollback"
	EventPresenceCursor     EventKind = "presence.cursor"
	EventPresenceFocus      EventKind = "presence.focus"
	EventPresenceTyping     EventKind = "presence.typing"
	EventPresenceLeave      EventKind = "presence.leave"
)

// BackendOnly сообщает, что события этого вида создает только сервер.
// Ретранслятор не пропускает их от участников.
func (k EventKind) BackendOnly() bool {
	switch k {
	case EventDocumentUpdate, EventOptimisticConfirm, EventOptimisticRollback:
		return true
	}
	return false
}

// Event конверт события транспортного канала.
// Доставка at-least-once, порядок не гарантируется.
type Event struct {
	At         time.Time       `json:"at"`
	ID         string          `json:"id"`
	Kind       EventKind       `json:"kind"`
	DocumentID string          `json:"document_id"`
	ActorID    string          `json:"actor_id,omitempty"`
	Subtype    string          `json:"subtype,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// DocumentUpdatePayload authoritative change broadcast after an accepted save.
type DocumentUpdatePayload struct {
	Changes          []FieldChange `json:"changes"`
	Revision         int64         `json:"revision"`
	PreviousRevision int64         `json:"previous_revision"`
}

// MutationPayload локальная мутация участника (неподтвержденная)
type MutationPayload struct {
	UpdateID string   `json:"update_id"`
	Mutation Mutation `json:"mutation"`
}

// OptimisticPayload подтверждение или откат обновления
type OptimisticPayload struct {
	UpdateID string `json:"update_id"`
}

// Identity отображаемые атрибуты участника
type Identity struct {
	DisplayName string `json:"display_name,omitempty"`
	Color       string `json:"color,omitempty"`
}

// CursorPayload presence.cursor
type CursorPayload struct {
	Identity
	Cursor
}

// FieldPayload presence.focus и presence.typing; nil Path снимает атрибут
type FieldPayload struct {
	Path *Path `json:"path"`
	Identity
}
