// Package autosave implements the dirty-tracking state machine behind
// debounced persistence: clean -> dirty -> saving -> clean | dirty | conflicted.
//
// The scheduler holds no timers and performs no I/O; the session drives it
// and owns the debounce timer and the backend call.
package autosave

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// State состояние автосохранения документа
type State string

const (
	StateClean      State = "clean"
	StateDirty      State = "dirty"
	StateSaving     State = "saving"
	StateConflicted State = "conflicted"
)

// DefaultMaxFailures после стольких подряд неудачных записей поднимается постоянный индикатор ошибки
const DefaultMaxFailures = 3

var (
	// ErrNothingToSave документ не содержит несохраненных изменений
	ErrNothingToSave = errors.New("nothing to save")
	// ErrSaveInFlight запись уже выполняется
	ErrSaveInFlight = errors.New("save already in flight")
	// ErrBlockedByConflict автосохранение заблокировано до разрешения конфликта
	ErrBlockedByConflict = errors.New("save blocked by unresolved conflict")
	// ErrStaleResult результат относится к устаревшему запросу
	ErrStaleResult = errors.New("stale save result")
	// ErrNotConflicted документ не в состоянии конфликта
	ErrNotConflicted = errors.New("document is not conflicted")
)

// Ticket описывает запрос на запись, находящийся в полете
type Ticket struct {
	StartedAt time.Time
	Token     string
	UpdateIDs []string
	Seq       uint64
}

// Status user-visible view of the save state.
type Status struct {
	LastMutation time.Time `json:"last_mutation"`
	LastSaved    time.Time `json:"last_saved"`
	State        State     `json:"state"`
	LastError    string    `json:"last_error,omitempty"`
	ConflictID   string    `json:"conflict_id,omitempty"`
	Seq          uint64    `json:"seq"`
	Failures     int       `json:"failures"`
	SaveError    bool      `json:"save_error"`
}

// Unsaved сообщает, есть ли несохраненные изменения
func (s Status) Unsaved() bool {
	return s.State != StateClean
}

// Scheduler конечный автомат автосохранения.
// Не потокобезопасен: используется только из цикла событий сессии.
type Scheduler struct {
	lastMutation time.Time
	lastSaved    time.Time
	lastErr      error
	inflight     *Ticket
	state        State
	conflictID   string
	seq          uint64
	failures     int
	maxFailures  int
}

// New создает планировщик в состоянии clean
func New(maxFailures int) *Scheduler {
	if maxFailures <= 0 {
		maxFailures = DefaultMaxFailures
	}
	return &Scheduler{state: StateClean, maxFailures: maxFailures}
}

// State текущее состояние
func (s *Scheduler) State() State {
	return s.state
}

// MarkDirty регистрирует локальную мутацию и возвращает ее порядковый номер.
// Во время записи и конфликта состояние не меняется: номер мутации
// сравнивается с номером записи при ее завершении.
func (s *Scheduler) MarkDirty(at time.Time) uint64 {
	s.seq++
	s.lastMutation = at
	if s.state == StateClean {
		s.state = StateDirty
	}
	return s.seq
}

// MarkClean переводит dirty в clean, когда сохранять нечего
// (например, значения вернулись к базовым).
func (s *Scheduler) MarkClean() {
	if s.state == StateDirty {
		s.state = StateClean
		s.failures = 0
		s.lastErr = nil
	}
}

// CanSave сообщает, можно ли начать запись
func (s *Scheduler) CanSave() bool {
	return s.state == StateDirty
}

// BeginSave переводит dirty в saving и выдает билет с уникальным токеном
func (s *Scheduler) BeginSave(at time.Time, updateIDs []string) (Ticket, error) {
	switch s.state {
	case StateClean:
		return Ticket{}, ErrNothingToSave
	case StateSaving:
		return Ticket{}, ErrSaveInFlight
	case StateConflicted:
		return Ticket{}, ErrBlockedByConflict
	}

	ids := make([]string, len(updateIDs))
	copy(ids, updateIDs)
	t := Ticket{
		Token:     uuid.New().String(),
		Seq:       s.seq,
		UpdateIDs: ids,
		StartedAt: at,
	}
	s.inflight = &t
	s.state = StateSaving
	return t, nil
}

// Current сообщает, относится ли токен к записи в полете
func (s *Scheduler) Current(token string) bool {
	return s.inflight != nil && s.inflight.Token == token
}

// Inflight возвращает билет текущей записи
func (s *Scheduler) Inflight() (Ticket, bool) {
	if s.inflight == nil {
		return Ticket{}, false
	}
	return *s.inflight, true
}

// Succeeded завершает запись успешно. Документ становится clean, только если
// запись содержала последнюю мутацию; иначе остается dirty.
func (s *Scheduler) Succeeded(token string, at time.Time) (State, error) {
	t, err := s.finish(token)
	if err != nil {
		return s.state, err
	}
	s.failures = 0
	s.lastErr = nil
	s.lastSaved = at
	if t.Seq == s.seq {
		s.state = StateClean
	} else {
		s.state = StateDirty
	}
	return s.state, nil
}

// Failed завершает запись ошибкой: документ остается dirty, растет счетчик неудач
func (s *Scheduler) Failed(token string, cause error) (State, error) {
	if _, err := s.finish(token); err != nil {
		return s.state, err
	}
	s.failures++
	s.lastErr = cause
	s.state = StateDirty
	return s.state, nil
}

// Conflicted завершает запись конфликтом; автосохранение блокируется
func (s *Scheduler) Conflicted(token, conflictID string) (State, error) {
	if _, err := s.finish(token); err != nil {
		return s.state, err
	}
	s.state = StateConflicted
	s.conflictID = conflictID
	return s.state, nil
}

// Rebased завершает запись, отклоненную из-за ревизии без конфликтующих полей.
// Документ остается dirty (если есть что записать) для немедленной повторной записи.
func (s *Scheduler) Rebased(token string, dirty bool) (State, error) {
	if _, err := s.finish(token); err != nil {
		return s.state, err
	}
	if dirty {
		s.state = StateDirty
	} else {
		s.state = StateClean
	}
	return s.state, nil
}

// Resolved снимает блокировку конфликта: dirty, если итог отличается от сервера, иначе clean
func (s *Scheduler) Resolved(dirty bool) (State, error) {
	if s.state != StateConflicted {
		return s.state, ErrNotConflicted
	}
	s.conflictID = ""
	if dirty {
		s.state = StateDirty
	} else {
		s.state = StateClean
		s.failures = 0
		s.lastErr = nil
	}
	return s.state, nil
}

// Status снимок для отображения пользователю
func (s *Scheduler) Status() Status {
	st := Status{
		State:        s.state,
		Seq:          s.seq,
		LastMutation: s.lastMutation,
		LastSaved:    s.lastSaved,
		Failures:     s.failures,
		SaveError:    s.failures >= s.maxFailures,
		ConflictID:   s.conflictID,
	}
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
	}
	return st
}

func (s *Scheduler) finish(token string) (Ticket, error) {
	if !s.Current(token) {
		return Ticket{}, ErrStaleResult
	}
	t := *s.inflight
	s.inflight = nil
	return t, nil
}
