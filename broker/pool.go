// Copyright 2026 The Atrium Authors
// SPDX-License-Identifier: Apache-2.0

package broker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

const (
	// MaxMessageSize is the hard ceiling on a single published payload.
	// The dialog codec rejects anything larger before it reaches the
	// wire; the limit mirrors the broker's hard output buffer limit.
	MaxMessageSize = 64 * 1024 * 1024

	// SoftMessageLimit is the advisory threshold above which publishers
	// should reconsider what they are sending (log a warning, prefer a
	// media cache key over an inline payload).
	SoftMessageLimit = 16 * 1024 * 1024
)

// subscribeQueueDepth bounds the handoff queue between a subscription's
// receive loop and its workers. When the queue is full the receive loop
// drops the message rather than block.
const subscribeQueueDepth = 256

// subscribeWorkers is the number of handler goroutines per subscription.
const subscribeWorkers = 4

// Pool is one logical broker pool. All operations validate that the
// supplied Key or Channel belongs to this pool before touching the
// backend. Pools are created by NewHub and shared by reference; they
// are safe for concurrent use.
type Pool struct {
	kind    PoolKind
	backend Backend
	logger  *slog.Logger

	closeOnce sync.Once
	closeErr  error
}

func newPool(kind PoolKind, backend Backend, logger *slog.Logger) *Pool {
	return &Pool{
		kind:    kind,
		backend: backend,
		logger:  logger.With("pool", kind.String()),
	}
}

// Kind returns which pool this is.
func (p *Pool) Kind() PoolKind { return p.kind }

func (p *Pool) checkKey(key Key) error {
	if key.pool != p.kind {
		return &PoolMismatchError{Name: key.name, Required: key.pool, Called: p.kind}
	}
	return nil
}

func (p *Pool) checkChannel(channel Channel) error {
	if channel.pool != p.kind {
		return &PoolMismatchError{Name: channel.name, Required: channel.pool, Called: p.kind}
	}
	return nil
}

// GetBytes returns the value stored at key.
func (p *Pool) GetBytes(ctx context.Context, key Key) ([]byte, error) {
	if err := p.checkKey(key); err != nil {
		return nil, err
	}
	return p.backend.Get(ctx, key.name)
}

// SetBytes stores value at key with no expiry.
func (p *Pool) SetBytes(ctx context.Context, key Key, value []byte) error {
	if err := p.checkKey(key); err != nil {
		return err
	}
	return p.backend.Set(ctx, key.name, value)
}

// SetBytesTTL stores value at key with the given expiry.
func (p *Pool) SetBytesTTL(ctx context.Context, key Key, value []byte, ttl time.Duration) error {
	if err := p.checkKey(key); err != nil {
		return err
	}
	return p.backend.SetTTL(ctx, key.name, value, ttl)
}

// GetString returns the value stored at key as a string.
func (p *Pool) GetString(ctx context.Context, key Key) (string, error) {
	data, err := p.GetBytes(ctx, key)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// SetString stores value at key with no expiry.
func (p *Pool) SetString(ctx context.Context, key Key, value string) error {
	return p.SetBytes(ctx, key, []byte(value))
}

// Increment atomically increments the counter at key and returns the
// new value. All of Atrium's ID minting (tickets, documents, candidate
// packages, participants, media entries, error records) goes through
// counters dedicated to each entity.
func (p *Pool) Increment(ctx context.Context, key Key) (int64, error) {
	if err := p.checkKey(key); err != nil {
		return 0, err
	}
	return p.backend.Incr(ctx, key.name)
}

// Delete removes key. Deleting an absent key is not an error.
func (p *Pool) Delete(ctx context.Context, key Key) error {
	if err := p.checkKey(key); err != nil {
		return err
	}
	return p.backend.Del(ctx, key.name)
}

// HashGet returns one field of the hash at key.
func (p *Pool) HashGet(ctx context.Context, key Key, field string) ([]byte, error) {
	if err := p.checkKey(key); err != nil {
		return nil, err
	}
	return p.backend.HGet(ctx, key.name, field)
}

// HashSet stores fields into the hash at key.
func (p *Pool) HashSet(ctx context.Context, key Key, fields map[string][]byte) error {
	if err := p.checkKey(key); err != nil {
		return err
	}
	return p.backend.HSet(ctx, key.name, fields)
}

// HashGetAll returns every field of the hash at key. A missing hash
// yields an empty map.
func (p *Pool) HashGetAll(ctx context.Context, key Key) (map[string][]byte, error) {
	if err := p.checkKey(key); err != nil {
		return nil, err
	}
	return p.backend.HGetAll(ctx, key.name)
}

// HashDelete removes fields from the hash at key.
func (p *Pool) HashDelete(ctx context.Context, key Key, fields ...string) error {
	if err := p.checkKey(key); err != nil {
		return err
	}
	return p.backend.HDel(ctx, key.name, fields...)
}

// Expire sets or replaces the expiry on key.
func (p *Pool) Expire(ctx context.Context, key Key, ttl time.Duration) error {
	if err := p.checkKey(key); err != nil {
		return err
	}
	return p.backend.Expire(ctx, key.name, ttl)
}

// Publish delivers a binary payload on a byte channel.
func (p *Pool) Publish(ctx context.Context, channel Channel, payload []byte) error {
	if err := p.checkChannel(channel); err != nil {
		return err
	}
	if channel.kind != ByteChannel {
		return fmt.Errorf("broker: channel %q is a text channel; use PublishText", channel.name)
	}
	if len(payload) > MaxMessageSize {
		return fmt.Errorf("broker: payload of %d bytes exceeds channel limit %d", len(payload), MaxMessageSize)
	}
	if len(payload) > SoftMessageLimit {
		p.logger.Warn("payload exceeds soft message limit",
			"channel", channel.name,
			"size", len(payload),
		)
	}
	return p.backend.Publish(ctx, channel.name, payload)
}

// PublishText delivers a text frame on a text channel.
func (p *Pool) PublishText(ctx context.Context, channel Channel, text string) error {
	if err := p.checkChannel(channel); err != nil {
		return err
	}
	if channel.kind != TextChannel {
		return fmt.Errorf("broker: channel %q is a byte channel; use Publish", channel.name)
	}
	return p.backend.Publish(ctx, channel.name, []byte(text))
}

// Subscribe starts a long-lived listener on channel. The receive loop
// blocks on its own goroutine; each message is handed to one of a
// small set of worker goroutines through a bounded queue, so a slow
// handler cannot stall the receive loop. When the queue is full the
// message is dropped and counted.
//
// The subscription ends when ctx is canceled or Close is called.
func (p *Pool) Subscribe(ctx context.Context, channel Channel, handler func([]byte)) (*Subscription, error) {
	if err := p.checkChannel(channel); err != nil {
		return nil, err
	}
	messages, stop, err := p.backend.Subscribe(ctx, channel.name)
	if err != nil {
		return nil, fmt.Errorf("broker: subscribing to %q: %w", channel.name, err)
	}

	sub := &Subscription{
		channel: channel,
		stop:    stop,
		queue:   make(chan []byte, subscribeQueueDepth),
		done:    make(chan struct{}),
		logger:  p.logger.With("channel", channel.name),
	}

	var workers sync.WaitGroup
	for range subscribeWorkers {
		workers.Add(1)
		go func() {
			defer workers.Done()
			for payload := range sub.queue {
				handler(payload)
			}
		}()
	}

	go func() {
		defer close(sub.done)
		defer workers.Wait()
		defer close(sub.queue)
		for payload := range messages {
			select {
			case sub.queue <- payload:
			default:
				sub.mu.Lock()
				sub.dropped++
				dropped := sub.dropped
				sub.mu.Unlock()
				sub.logger.Warn("subscription queue full, dropping message",
					"dropped_total", dropped,
				)
			}
		}
	}()

	return sub, nil
}

// Close releases the backend and then reports the disallowed
// operation. Pool teardown is owned by the Hub: a handler calling
// Close is a wiring bug, but the connection must not leak on that
// path, so release happens before the error.
func (p *Pool) Close() error {
	p.release()
	return ErrPoolCloseNotPermitted
}

func (p *Pool) release() error {
	p.closeOnce.Do(func() {
		p.closeErr = p.backend.Close()
	})
	return p.closeErr
}

// Subscription is a live channel listener created by Pool.Subscribe.
type Subscription struct {
	channel Channel
	stop    func()
	queue   chan []byte
	done    chan struct{}
	logger  *slog.Logger

	mu      sync.Mutex
	dropped int64
}

// Close stops the subscription and waits for in-flight handler calls
// to finish. Idempotent.
func (s *Subscription) Close() {
	s.stop()
	<-s.done
}

// Dropped returns how many messages were shed because the handoff
// queue was full.
func (s *Subscription) Dropped() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// Hub owns the Central and Local pools for one process. It is
// constructed once at startup and passed by reference to every
// component that needs transport access; there are no package-level
// singletons.
type Hub struct {
	central *Pool
	local   *Pool
	logger  *slog.Logger
}

// NewHub builds a Hub over the two backends. The Hub takes ownership
// of both: Close releases them and nothing else may.
func NewHub(central, local Backend, logger *slog.Logger) *Hub {
	return &Hub{
		central: newPool(PoolCentral, central, logger),
		local:   newPool(PoolLocal, local, logger),
		logger:  logger,
	}
}

// Central returns the shared cross-node pool.
func (h *Hub) Central() *Pool { return h.central }

// Local returns the node-private pool.
func (h *Hub) Local() *Pool { return h.local }

// Close releases both pools. This is the only sanctioned teardown
// path; it is called by the process supervisor during shutdown.
func (h *Hub) Close() error {
	centralErr := h.central.release()
	localErr := h.local.release()
	if centralErr != nil {
		return fmt.Errorf("broker: closing central pool: %w", centralErr)
	}
	if localErr != nil {
		return fmt.Errorf("broker: closing local pool: %w", localErr)
	}
	return nil
}
