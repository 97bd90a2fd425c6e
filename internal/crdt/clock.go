// Package crdt содержит примитивы упорядочивания для совместного редактирования:
// логические часы Лампорта, LWW-регистр и функцию слияния "последняя запись выигрывает".
package crdt

import (
	"sync"

	"github.com/iudanet/estisync/internal/models"
)

// LamportClock логические часы участника сессии.
// Метки используются для упорядочивания значений полей без синхронизации физического времени.
type LamportClock struct {
	nodeID  string     // идентификатор участника (actor id)
	counter int64      // монотонно возрастающий счетчик
	mu      sync.Mutex // мьютекс для потокобезопасности
}

// NewLamportClock создает часы для участника nodeID
func NewLamportClock(nodeID string) *LamportClock {
	return &LamportClock{nodeID: nodeID}
}

// Next увеличивает счетчик и возвращает новую метку для локального события
func (lc *LamportClock) Next() int64 {
	lc.mu.Lock()
	defer lc.mu.Unlock()

	lc.counter++
	return lc.counter
}

// Observe учитывает метку, пришедшую от другого участника:
// counter = max(local, remote) + 1
func (lc *LamportClock) Observe(remote int64) int64 {
	lc.mu.Lock()
	defer lc.mu.Unlock()

	if remote > lc.counter {
		lc.counter = remote
	}
	lc.counter++

	return lc.counter
}

// ObserveDocument продвигает часы до максимальной метки в документе.
// Используется после загрузки документа и после принятия серверного снимка.
func (lc *LamportClock) ObserveDocument(doc *models.Document) {
	var highest int64
	for _, byID := range doc.Entities {
		for _, e := range byID {
			for _, v := range e.Fields {
				if v.Timestamp > highest {
					highest = v.Timestamp
				}
			}
		}
	}

	lc.mu.Lock()
	defer lc.mu.Unlock()
	if highest > lc.counter {
		lc.counter = highest
	}
}

// Current возвращает текущее значение счетчика без изменения
func (lc *LamportClock) Current() int64 {
	lc.mu.Lock()
	defer lc.mu.Unlock()

	return lc.counter
}

// NodeID возвращает идентификатор участника
func (lc *LamportClock) NodeID() string {
	return lc.nodeID
}

// Stamp создает значение поля со свежей меткой этого участника
func (lc *LamportClock) Stamp(raw []byte) (models.Value, error) {
	return models.NewValue(raw, lc.Next(), lc.nodeID)
}
