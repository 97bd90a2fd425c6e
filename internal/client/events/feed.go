// Package events provides typed observer feeds.
package events

import "sync"

// Feed рассылает значения типа T подписчикам.
// Подписчики вызываются синхронно в порядке подписки, вне блокировки.
type Feed[T any] struct {
	subs  map[uint64]func(T)
	order []uint64
	next  uint64
	mu    sync.Mutex
}

// Subscribe регистрирует обработчик и возвращает функцию отписки.
// Отписка идемпотентна.
func (f *Feed[T]) Subscribe(fn func(T)) (dispose func()) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.subs == nil {
		f.subs = make(map[uint64]func(T))
	}
	f.next++
	id := f.next
	f.subs[id] = fn
	f.order = append(f.order, id)

	var once sync.Once
	return func() {
		once.Do(func() { f.unsubscribe(id) })
	}
}

// Publish доставляет значение всем текущим подписчикам
func (f *Feed[T]) Publish(v T) {
	f.mu.Lock()
	handlers := make([]func(T), 0, len(f.order))
	for _, id := range f.order {
		handlers = append(handlers, f.subs[id])
	}
	f.mu.Unlock()

	for _, h := range handlers {
		h(v)
	}
}

// Len количество подписчиков
func (f *Feed[T]) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.order)
}

func (f *Feed[T]) unsubscribe(id uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.subs, id)
	for i, v := range f.order {
		if v == id {
			f.order = append(f.order[:i], f.order[i+1:]...)
			return
		}
	}
}
