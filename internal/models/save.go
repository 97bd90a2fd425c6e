package models

import (
	"encoding/binary"
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// SaveStatus результат записи на бэкенд
type SaveStatus string

const (
	SaveAccepted SaveStatus = "accepted"
	SaveConflict SaveStatus = "conflict"
)

// SaveRequest запрос на сохранение изменений документа.
// Changes содержит разницу между базовым снимком (ExpectedRevision) и локальным состоянием.
type SaveRequest struct {
	IdempotencyKey   string        `json:"idempotency_key"`
	ActorID          string        `json:"actor_id"`
	Changes          []FieldChange `json:"changes"`
	ExpectedRevision int64         `json:"expected_revision"`
}

// SaveResult ответ бэкенда на сохранение
type SaveResult struct {
	ServerSnapshot   *Document  `json:"server_snapshot,omitempty"`
	Status           SaveStatus `json:"status"`
	ConflictingPaths []Path     `json:"conflicting_paths,omitempty"`
	Revision         int64      `json:"revision"`
}

// IdempotencyKey вычисляет ключ идемпотентности как BLAKE2b-256
// от автора, ожидаемой ревизии и содержимого изменений вместе с их метками.
// Повтор одного и того же запроса дает тот же ключ, поэтому бэкенд может
// безопасно ответить повторно; одинаковые правки разных участников различаются.
func IdempotencyKey(actorID string, expectedRevision int64, changes []FieldChange) string {
	h, _ := blake2b.New256(nil)

	_, _ = h.Write([]byte(actorID))
	_, _ = h.Write([]byte{0})

	var num [8]byte
	binary.BigEndian.PutUint64(num[:], uint64(expectedRevision))
	_, _ = h.Write(num[:])

	for _, ch := range changes {
		_, _ = h.Write([]byte(ch.Path.String()))
		_, _ = h.Write([]byte{0})
		if ch.Value == nil {
			_, _ = h.Write([]byte{0})
			continue
		}
		_, _ = h.Write([]byte{1})
		_, _ = h.Write(ch.Value.Data)
		_, _ = h.Write([]byte{0})
		binary.BigEndian.PutUint64(num[:], uint64(ch.Value.Timestamp))
		_, _ = h.Write(num[:])
		_, _ = h.Write([]byte(ch.Value.NodeID))
		_, _ = h.Write([]byte{0})
	}

	return hex.EncodeToString(h.Sum(nil))
}
