package models

import "time"

// Cursor позиция курсора участника
type Cursor struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// CollaboratorPresence ephemeral view of another participant. Attributes
// older than the staleness window are reported as nil.
type CollaboratorPresence struct {
	LastSeen     time.Time `json:"last_seen"`
	Cursor       *Cursor   `json:"cursor,omitempty"`
	FocusedField *Path     `json:"focused_field,omitempty"`
	TypingField  *Path     `json:"typing_field,omitempty"`
	ActorID      string    `json:"actor_id"`
	DisplayName  string    `json:"display_name,omitempty"`
	Color        string    `json:"color,omitempty"`
}
