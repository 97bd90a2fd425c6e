// Package clock abstracts wall time and timers so the sync session can be
// driven deterministically in tests.
package clock

import (
	"sort"
	"sync"
	"time"
)

// Timer отменяемый отложенный вызов
type Timer interface {
	Stop() bool
}

// Clock источник времени и таймеров
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

// Real возвращает часы на основе пакета time
func Real() Clock {
	return realClock{}
}

func (realClock) Now() time.Time {
	return time.Now()
}

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Fake is a manually advanced clock. Timer callbacks run synchronously
// inside Advance, in deadline order, without the clock lock held.
type Fake struct {
	now    time.Time
	timers []*fakeTimer
	seq    int
	mu     sync.Mutex
}

// NewFake создает часы, стоящие в момент start
func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

type fakeTimer struct {
	deadline time.Time
	f        func()
	clock    *Fake
	seq      int
	stopped  bool
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()

	if t.stopped {
		return false
	}
	t.stopped = true
	return true
}

// Now возвращает текущее время часов
func (c *Fake) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// AfterFunc регистрирует таймер; он сработает при Advance
func (c *Fake) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq++
	t := &fakeTimer{deadline: c.now.Add(d), f: f, clock: c, seq: c.seq}
	c.timers = append(c.timers, t)
	return t
}

// Advance сдвигает время на d и вызывает все наступившие таймеры
func (c *Fake) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		t := c.nextDue(target)
		if t == nil {
			break
		}
		t.f()
	}

	c.mu.Lock()
	c.now = target
	c.mu.Unlock()
}

// Pending возвращает число активных таймеров
func (c *Fake) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, t := range c.timers {
		if !t.stopped {
			n++
		}
	}
	return n
}

func (c *Fake) nextDue(target time.Time) *fakeTimer {
	c.mu.Lock()
	defer c.mu.Unlock()

	active := c.timers[:0]
	for _, t := range c.timers {
		if !t.stopped {
			active = append(active, t)
		}
	}
	c.timers = active

	sort.SliceStable(c.timers, func(i, j int) bool {
		if c.timers[i].deadline.Equal(c.timers[j].deadline) {
			return c.timers[i].seq < c.timers[j].seq
		}
		return c.timers[i].deadline.Before(c.timers[j].deadline)
	})

	if len(c.timers) == 0 || c.timers[0].deadline.After(target) {
		return nil
	}
	t := c.timers[0]
	t.stopped = true
	if t.deadline.After(c.now) {
		c.now = t.deadline
	}
	return t
}
