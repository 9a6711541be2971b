// Copyright 2026 The Atrium Authors
// SPDX-License-Identifier: Apache-2.0

package broker

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"
)

// subscriberBuffer is the per-subscriber channel depth in the memory
// backend. Publish never blocks; a subscriber that falls this far
// behind loses messages, matching the at-most-once contract.
const subscriberBuffer = 64

// MemoryBackend is an in-process Backend for tests and single-node
// development. It implements the same semantics as the Redis backend:
// lazy expiry, counter creation on first increment, at-most-once
// fan-out publish.
type MemoryBackend struct {
	mu     sync.Mutex
	values map[string][]byte
	hashes map[string]map[string][]byte
	expiry map[string]time.Time
	subs   map[string]map[int]chan []byte
	nextID int
	closed bool
}

// NewMemoryBackend returns an empty in-process backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		values: make(map[string][]byte),
		hashes: make(map[string]map[string][]byte),
		expiry: make(map[string]time.Time),
		subs:   make(map[string]map[int]chan []byte),
	}
}

// expireLocked removes key if its deadline has passed. Callers hold mu.
func (m *MemoryBackend) expireLocked(key string) {
	deadline, ok := m.expiry[key]
	if !ok || time.Now().Before(deadline) {
		return
	}
	delete(m.values, key)
	delete(m.hashes, key)
	delete(m.expiry, key)
}

// Get implements Backend.
func (m *MemoryBackend) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expireLocked(key)
	value, ok := m.values[key]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(value))
	copy(out, value)
	return out, nil
}

// Set implements Backend.
func (m *MemoryBackend) Set(ctx context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = append([]byte(nil), value...)
	delete(m.expiry, key)
	return nil
}

// SetTTL implements Backend.
func (m *MemoryBackend) SetTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = append([]byte(nil), value...)
	m.expiry[key] = time.Now().Add(ttl)
	return nil
}

// Incr implements Backend.
func (m *MemoryBackend) Incr(ctx context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expireLocked(key)
	var current int64
	if raw, ok := m.values[key]; ok {
		parsed, err := strconv.ParseInt(string(raw), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("broker: counter %q holds non-integer value %q", key, raw)
		}
		current = parsed
	}
	current++
	m.values[key] = []byte(strconv.FormatInt(current, 10))
	return current, nil
}

// Del implements Backend.
func (m *MemoryBackend) Del(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	delete(m.hashes, key)
	delete(m.expiry, key)
	return nil
}

// HGet implements Backend.
func (m *MemoryBackend) HGet(ctx context.Context, key, field string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expireLocked(key)
	hash, ok := m.hashes[key]
	if !ok {
		return nil, ErrNotFound
	}
	value, ok := hash[field]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(value))
	copy(out, value)
	return out, nil
}

// HSet implements Backend.
func (m *MemoryBackend) HSet(ctx context.Context, key string, fields map[string][]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expireLocked(key)
	hash, ok := m.hashes[key]
	if !ok {
		hash = make(map[string][]byte, len(fields))
		m.hashes[key] = hash
	}
	for field, value := range fields {
		hash[field] = append([]byte(nil), value...)
	}
	return nil
}

// HGetAll implements Backend.
func (m *MemoryBackend) HGetAll(ctx context.Context, key string) (map[string][]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expireLocked(key)
	out := make(map[string][]byte, len(m.hashes[key]))
	for field, value := range m.hashes[key] {
		out[field] = append([]byte(nil), value...)
	}
	return out, nil
}

// HDel implements Backend.
func (m *MemoryBackend) HDel(ctx context.Context, key string, fields ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	hash, ok := m.hashes[key]
	if !ok {
		return nil
	}
	for _, field := range fields {
		delete(hash, field)
	}
	if len(hash) == 0 {
		delete(m.hashes, key)
	}
	return nil
}

// Expire implements Backend.
func (m *MemoryBackend) Expire(ctx context.Context, key string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expireLocked(key)
	if _, ok := m.values[key]; !ok {
		if _, ok := m.hashes[key]; !ok {
			return ErrNotFound
		}
	}
	m.expiry[key] = time.Now().Add(ttl)
	return nil
}

// Publish implements Backend. The payload is copied once and fanned
// out to every current subscriber; a subscriber with a full buffer
// misses the message.
func (m *MemoryBackend) Publish(ctx context.Context, channel string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return fmt.Errorf("broker: publish on closed memory backend")
	}
	frame := append([]byte(nil), payload...)
	for _, subscriber := range m.subs[channel] {
		select {
		case subscriber <- frame:
		default:
		}
	}
	return nil
}

// Subscribe implements Backend.
func (m *MemoryBackend) Subscribe(ctx context.Context, channel string) (<-chan []byte, func(), error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, nil, fmt.Errorf("broker: subscribe on closed memory backend")
	}
	id := m.nextID
	m.nextID++
	messages := make(chan []byte, subscriberBuffer)
	if m.subs[channel] == nil {
		m.subs[channel] = make(map[int]chan []byte)
	}
	m.subs[channel][id] = messages
	m.mu.Unlock()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			m.mu.Lock()
			present := false
			if subscribers, ok := m.subs[channel]; ok {
				if _, present = subscribers[id]; present {
					delete(subscribers, id)
					if len(subscribers) == 0 {
						delete(m.subs, channel)
					}
				}
			}
			m.mu.Unlock()
			// Close only if Close() hasn't already torn the
			// subscriber down.
			if present {
				close(messages)
			}
		})
	}

	if ctx.Done() != nil {
		go func() {
			<-ctx.Done()
			stop()
		}()
	}

	return messages, stop, nil
}

// Close implements Backend. All live subscriptions are terminated.
func (m *MemoryBackend) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	channels := m.subs
	m.subs = make(map[string]map[int]chan []byte)
	m.mu.Unlock()

	for _, subscribers := range channels {
		for _, subscriber := range subscribers {
			close(subscriber)
		}
	}
	return nil
}
