// Package presence tracks ephemeral collaborator state: cursors, focused
// fields and typing indicators. Each attribute is a last-write-wins register
// ordered by the sender's clock and expires when nothing was received for it
// within a staleness window, without any explicit clear event.
package presence

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/iudanet/estisync/internal/crdt"
	"github.com/iudanet/estisync/internal/models"
)

// DefaultTTL окно свежести атрибутов присутствия
const DefaultTTL = 30 * time.Second

// attribute регистр атрибута и момент, когда его значение было получено.
// Порядок значений задает время отправителя, свежесть - время получения.
type attribute[T any] struct {
	received time.Time
	reg      crdt.Register[T]
}

func (a *attribute[T]) set(v T, stamp crdt.Stamp, now time.Time) bool {
	if !a.reg.Set(v, stamp) {
		return false
	}
	a.received = now
	return true
}

func (a *attribute[T]) fresh(now time.Time, ttl time.Duration) (T, bool) {
	v, _, ok := a.reg.Get()
	if !ok || now.Sub(a.received) > ttl {
		var zero T
		return zero, false
	}
	return v, true
}

type collaborator struct {
	lastSeen time.Time
	identity attribute[models.Identity]
	cursor   attribute[models.Cursor]
	focus    attribute[*models.Path]
	typing   attribute[*models.Path]
}

// Tracker хранит присутствие других участников документа
type Tracker struct {
	now    func() time.Time
	logger *slog.Logger
	peers  map[string]*collaborator
	ttl    time.Duration
	mu     sync.RWMutex
}

// NewTracker создает трекер с окном свежести ttl
func NewTracker(ttl time.Duration, now func() time.Time, logger *slog.Logger) *Tracker {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if now == nil {
		now = time.Now
	}
	return &Tracker{
		now:    now,
		logger: logger,
		peers:  make(map[string]*collaborator),
		ttl:    ttl,
	}
}

func stampOf(actorID string, sent time.Time) crdt.Stamp {
	return crdt.Stamp{Time: sent.UnixNano(), NodeID: actorID}
}

// peer возвращает участника и отмечает его активность моментом получения
func (t *Tracker) peer(actorID string, now time.Time) *collaborator {
	p, ok := t.peers[actorID]
	if !ok {
		p = &collaborator{}
		t.peers[actorID] = p
	}
	p.lastSeen = now
	return p
}

// UpdateCursor записывает позицию курсора. sent - время отправителя: событие,
// отправленное раньше текущего значения, игнорируется.
func (t *Tracker) UpdateCursor(actorID string, c models.Cursor, sent time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	return t.peer(actorID, now).cursor.set(c, stampOf(actorID, sent), now)
}

// SetFocus записывает поле в фокусе; nil снимает фокус
func (t *Tracker) SetFocus(actorID string, p *models.Path, sent time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	return t.peer(actorID, now).focus.set(clonePath(p), stampOf(actorID, sent), now)
}

// SetTyping записывает поле, в котором участник печатает; nil снимает индикатор
func (t *Tracker) SetTyping(actorID string, p *models.Path, sent time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	return t.peer(actorID, now).typing.set(clonePath(p), stampOf(actorID, sent), now)
}

// SetIdentity записывает отображаемое имя и цвет участника
func (t *Tracker) SetIdentity(actorID string, id models.Identity, sent time.Time) bool {
	if id.DisplayName == "" && id.Color == "" {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	return t.peer(actorID, now).identity.set(id, stampOf(actorID, sent), now)
}

// Touch отмечает активность участника без изменения атрибутов
func (t *Tracker) Touch(actorID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.peer(actorID, t.now())
}

// Leave удаляет участника
func (t *Tracker) Leave(actorID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.peers, actorID)
}

// Prune удаляет участников, не проявлявших активности дольше двух окон свежести.
// Возвращает количество удаленных.
func (t *Tracker) Prune() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	cutoff := t.now().Add(-2 * t.ttl)
	n := 0
	for id, p := range t.peers {
		if p.lastSeen.Before(cutoff) {
			delete(t.peers, id)
			n++
		}
	}
	if n > 0 {
		t.logger.Debug("Stale collaborators pruned", "count", n)
	}
	return n
}

// Snapshot возвращает присутствие участников, активных в пределах окна свежести.
// Устаревшие атрибуты отсутствуют в результате.
func (t *Tracker) Snapshot() []models.CollaboratorPresence {
	t.mu.RLock()
	defer t.mu.RUnlock()

	now := t.now()
	out := make([]models.CollaboratorPresence, 0, len(t.peers))
	for actorID, p := range t.peers {
		if now.Sub(p.lastSeen) > t.ttl {
			continue
		}
		cp := models.CollaboratorPresence{ActorID: actorID, LastSeen: p.lastSeen}
		if id, _, ok := p.identity.reg.Get(); ok {
			cp.DisplayName = id.DisplayName
			cp.Color = id.Color
		}
		if c, ok := p.cursor.fresh(now, t.ttl); ok {
			cursor := c
			cp.Cursor = &cursor
		}
		if f, ok := p.focus.fresh(now, t.ttl); ok {
			cp.FocusedField = clonePath(f)
		}
		if ty, ok := p.typing.fresh(now, t.ttl); ok {
			cp.TypingField = clonePath(ty)
		}
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ActorID < out[j].ActorID })
	return out
}

func clonePath(p *models.Path) *models.Path {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}
