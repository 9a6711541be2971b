// Copyright 2026 The Atrium Authors
// SPDX-License-Identifier: Apache-2.0

package room

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/atrium-foundation/atrium/broker"
	"github.com/atrium-foundation/atrium/document"
	"github.com/atrium-foundation/atrium/lib/ref"
)

// Bus fans every posted document out to every registered node and
// mints bus-wide document IDs from the Central document counter.
//
// Fan-out enqueues onto each node's bounded queue and never blocks; a
// node whose queue is full misses the document and logs it. Delivery
// is at-most-once.
type Bus struct {
	counter *broker.Counter
	logger  *slog.Logger

	mu    sync.RWMutex
	nodes map[ref.RoomID]*Node
	order []*Node
}

// NewBus builds a bus minting document IDs on the Central pool.
func NewBus(central *broker.Pool, logger *slog.Logger) *Bus {
	return &Bus{
		counter: broker.NewCounter(central, broker.DocumentCounterKey()),
		logger:  logger.With("component", "bus"),
		nodes:   make(map[ref.RoomID]*Node),
	}
}

func (b *Bus) register(n *Node) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.nodes[n.identity]; exists {
		return fmt.Errorf("room: duplicate room identity %s on bus", n.identity)
	}
	b.nodes[n.identity] = n
	b.order = append(b.order, n)
	return nil
}

// Size returns the number of registered rooms.
func (b *Bus) Size() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.order)
}

// Rooms returns the registered room identities in registration order.
func (b *Bus) Rooms() []ref.RoomID {
	b.mu.RLock()
	defer b.mu.RUnlock()
	rooms := make([]ref.RoomID, len(b.order))
	for i, n := range b.order {
		rooms[i] = n.identity
	}
	return rooms
}

// NextDocumentID mints a bus-wide document ID.
func (b *Bus) NextDocumentID(ctx context.Context) (int64, error) {
	return b.counter.Next(ctx)
}

// Post validates the document and fans it out to every node,
// including the poster's own.
func (b *Bus) Post(doc document.Document) error {
	if err := doc.Valid(); err != nil {
		return fmt.Errorf("room: posting invalid document: %w", err)
	}

	b.mu.RLock()
	nodes := b.order
	b.mu.RUnlock()

	b.logger.Debug("posting document", "document", fmt.Sprintf("%s", doc))
	for _, n := range nodes {
		n.enqueue(doc)
	}
	return nil
}
