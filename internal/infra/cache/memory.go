package cache

import (
	"context"
	"sync"
	"time"

	"homework-bot/internal/domain"
)

// Memory реализует domain.Cache в памяти процесса.
type Memory struct {
	mu   sync.Mutex
	now  func() time.Time
	keys map[string]time.Time
}

// NewMemory создаёт кэш в памяти.
func NewMemory() *Memory {
	return &Memory{now: time.Now, keys: make(map[string]time.Time)}
}

// Once выполняет функцию, если ключ ещё не задан или его TTL истёк.
// При ttl <= 0 ключ не запоминается и fn выполняется всегда.
func (m *Memory) Once(_ context.Context, key string, ttl time.Duration, fn func() error) error {
	if ttl <= 0 {
		return fn()
	}
	m.mu.Lock()
	now := m.now()
	if exp, ok := m.keys[key]; ok && now.Before(exp) {
		m.mu.Unlock()
		return domain.ErrDuplicate
	}
	m.sweep(now)
	m.keys[key] = now.Add(ttl)
	m.mu.Unlock()

	if err := fn(); err != nil {
		m.mu.Lock()
		delete(m.keys, key)
		m.mu.Unlock()
		return err
	}
	return nil
}

// Len возвращает число хранимых ключей.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.keys)
}

// sweep удаляет истёкшие ключи. Вызывается под m.mu.
func (m *Memory) sweep(now time.Time) {
	for key, exp := range m.keys {
		if !now.Before(exp) {
			delete(m.keys, key)
		}
	}
}
