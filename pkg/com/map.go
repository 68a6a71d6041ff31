package com

import (
	"errors"
	"sync"
)

// Map defines a concurrent-safe map structure.
// The zero value is ready to use.
type Map[K comparable, V any] struct {
	m  map[K]V
	mu sync.Mutex
}

var ErrNotFound = errors.New("not found")

func (m *Map[K, _]) Has(key K) bool { _, err := m.Find(key); return err == nil }
func (m *Map[_, _]) IsEmpty() bool  { return m.Len() == 0 }
func (m *Map[_, _]) Len() int       { m.mu.Lock(); defer m.mu.Unlock(); return len(m.m) }

func (m *Map[K, V]) Put(key K, v V) {
	m.mu.Lock()
	if m.m == nil {
		m.m = make(map[K]V, 10)
	}
	m.m[key] = v
	m.mu.Unlock()
}

// PutIfAbsent stores v when the key is free and returns the stored value.
func (m *Map[K, V]) PutIfAbsent(key K, v V) (V, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.m[key]; ok {
		return old, false
	}
	if m.m == nil {
		m.m = make(map[K]V, 10)
	}
	m.m[key] = v
	return v, true
}

func (m *Map[K, _]) Remove(key K) { m.mu.Lock(); delete(m.m, key); m.mu.Unlock() }

// Pop removes the key and returns its value.
func (m *Map[K, V]) Pop(key K) (V, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.m[key]
	if ok {
		delete(m.m, key)
	}
	return v, ok
}

// Find returns the value by the key, ErrNotFound otherwise.
func (m *Map[K, V]) Find(key K) (v V, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.m[key]; ok {
		return c, nil
	}
	return v, ErrNotFound
}

// FindBy searches the first value with the provided predicate function.
func (m *Map[K, V]) FindBy(fn func(v V) bool) (v V, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, w := range m.m {
		if fn(w) {
			return w, nil
		}
	}
	return v, ErrNotFound
}

// Values returns a snapshot of all values.
func (m *Map[_, V]) Values() []V {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]V, 0, len(m.m))
	for _, v := range m.m {
		out = append(out, v)
	}
	return out
}

// ForEach processes a snapshot of the values with the provided callback function,
// the callback may modify the map.
func (m *Map[_, V]) ForEach(fn func(v V)) {
	for _, v := range m.Values() {
		fn(v)
	}
}
