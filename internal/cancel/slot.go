package cancel

import (
	"context"
	"sync"
)

// Slot хранит единственный живой токен одного ресурса (заказы, отчёт).
//
// Renew отменяет предыдущий токен до того, как вернуть новый,
// поэтому новые запросы никогда не пересекаются с запросами старого цикла.
type Slot struct {
	mu      sync.Mutex
	current *Token
}

// Renew отменяет текущий токен и создаёт новый.
func (s *Slot) Renew(parent context.Context) *Token {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil {
		s.current.Signal()
	}
	s.current = New(parent)
	return s.current
}

// Current возвращает живой токен (может быть nil).
func (s *Slot) Current() *Token {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Release убирает токен из слота, если он всё ещё текущий.
func (s *Slot) Release(t *Token) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == t {
		s.current = nil
	}
}

// SignalAll отменяет текущий токен (при остановке сервиса).
func (s *Slot) SignalAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil {
		s.current.Signal()
		s.current = nil
	}
}
