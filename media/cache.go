// Copyright 2026 The Atrium Authors
// SPDX-License-Identifier: Apache-2.0

package media

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/zeebo/blake3"

	"github.com/atrium-foundation/atrium/broker"
)

// TTL is how long a cache entry lives. Clients are told the key in a
// dialog response and are expected to fetch immediately.
const TTL = time.Hour

// Entry is one cached media object.
type Entry struct {
	// Format is the producer-declared media format ("audio/wav",
	// "image/png").
	Format string

	// Data is the uncompressed media bytes.
	Data []byte
}

// Hash field names on the broker.
const (
	fieldFormat = "format"
	fieldBytes  = "bytes"
	fieldDigest = "digest"
)

// Cache stores media entries on the Central pool under counter-minted
// keys. Safe for concurrent use.
type Cache struct {
	central *broker.Pool
	counter *broker.Counter
	logger  *slog.Logger

	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// NewCache builds a cache over the Central pool.
func NewCache(central *broker.Pool, logger *slog.Logger) (*Cache, error) {
	encoder, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("media: creating zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("media: creating zstd decoder: %w", err)
	}
	return &Cache{
		central: central,
		counter: broker.NewCounter(central, broker.MediaCacheCounterKey()),
		logger:  logger.With("component", "media-cache"),
		encoder: encoder,
		decoder: decoder,
	}, nil
}

// Put stores an entry and returns its key.
func (c *Cache) Put(ctx context.Context, format string, data []byte) (int64, error) {
	if format == "" {
		return 0, fmt.Errorf("media: entry has no format")
	}
	if len(data) == 0 {
		return 0, fmt.Errorf("media: entry has no data")
	}

	id, err := c.counter.Next(ctx)
	if err != nil {
		return 0, fmt.Errorf("media: minting cache key: %w", err)
	}

	digest := blake3.Sum256(data)
	compressed := c.encoder.EncodeAll(data, nil)

	key := broker.MediaCacheHashKey(id)
	fields := map[string][]byte{
		fieldFormat: []byte(format),
		fieldBytes:  compressed,
		fieldDigest: []byte(hex.EncodeToString(digest[:])),
	}
	if err := c.central.HashSet(ctx, key, fields); err != nil {
		return 0, fmt.Errorf("media: storing entry %d: %w", id, err)
	}
	if err := c.central.Expire(ctx, key, TTL); err != nil {
		return 0, fmt.Errorf("media: setting TTL on entry %d: %w", id, err)
	}

	c.logger.Debug("media entry cached",
		"key", id,
		"format", format,
		"size", len(data),
		"compressed_size", len(compressed))
	return id, nil
}

// Get fetches and verifies an entry. The second return is false when
// the entry never existed or has expired.
func (c *Cache) Get(ctx context.Context, id int64) (*Entry, bool, error) {
	fields, err := c.central.HashGetAll(ctx, broker.MediaCacheHashKey(id))
	if err != nil {
		return nil, false, fmt.Errorf("media: loading entry %d: %w", id, err)
	}
	if len(fields) == 0 {
		return nil, false, nil
	}

	data, err := c.decoder.DecodeAll(fields[fieldBytes], nil)
	if err != nil {
		return nil, false, fmt.Errorf("media: decompressing entry %d: %w", id, err)
	}

	digest := blake3.Sum256(data)
	if hex.EncodeToString(digest[:]) != string(fields[fieldDigest]) {
		return nil, false, fmt.Errorf("media: entry %d failed digest verification", id)
	}

	return &Entry{Format: string(fields[fieldFormat]), Data: data}, true, nil
}

// Key formats a cache key the way clients see it in URLs and logs.
func Key(id int64) string {
	return "media/" + strconv.FormatInt(id, 10)
}
