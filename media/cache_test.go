// Copyright 2026 The Atrium Authors
// SPDX-License-Identifier: Apache-2.0

package media

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/atrium-foundation/atrium/broker"
)

func newTestCache(t *testing.T) (*Cache, *broker.Pool) {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)
	hub := broker.NewHub(broker.NewMemoryBackend(), broker.NewMemoryBackend(), logger)
	t.Cleanup(func() { hub.Close() })
	cache, err := NewCache(hub.Central(), logger)
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}
	return cache, hub.Central()
}

func TestPutGetRoundTrip(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()
	data := bytes.Repeat([]byte("pcm audio frames "), 1024)

	id, err := cache.Put(ctx, "audio/wav", data)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if id == 0 {
		t.Fatal("Put returned key 0")
	}

	entry, found, err := cache.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !found {
		t.Fatal("cached entry not found")
	}
	if entry.Format != "audio/wav" {
		t.Errorf("format: got %q", entry.Format)
	}
	if !bytes.Equal(entry.Data, data) {
		t.Error("data did not survive the round trip")
	}
}

func TestKeysAreUnique(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	first, err := cache.Put(ctx, "image/png", []byte{1})
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	second, err := cache.Put(ctx, "image/png", []byte{1})
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if first == second {
		t.Errorf("two puts shared key %d", first)
	}
}

func TestGetMissingEntry(t *testing.T) {
	cache, _ := newTestCache(t)
	_, found, err := cache.Get(context.Background(), 42)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if found {
		t.Error("missing entry reported found")
	}
}

func TestPutRejectsEmptyEntries(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	if _, err := cache.Put(ctx, "", []byte{1}); err == nil {
		t.Error("entry without format accepted")
	}
	if _, err := cache.Put(ctx, "audio/wav", nil); err == nil {
		t.Error("entry without data accepted")
	}
}

func TestGetDetectsCorruption(t *testing.T) {
	cache, central := newTestCache(t)
	ctx := context.Background()

	id, err := cache.Put(ctx, "audio/wav", bytes.Repeat([]byte("abc"), 100))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}

	// Swap in different bytes behind the digest's back.
	other, err := NewCache(central, slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}
	tampered := other.encoder.EncodeAll([]byte("not the original"), nil)
	key := broker.MediaCacheHashKey(id)
	if err := central.HashSet(ctx, key, map[string][]byte{fieldBytes: tampered}); err != nil {
		t.Fatalf("HashSet: %v", err)
	}

	if _, _, err := cache.Get(ctx, id); err == nil {
		t.Error("tampered entry passed digest verification")
	}
}

func TestKeyFormat(t *testing.T) {
	if got := Key(17); got != "media/17" {
		t.Errorf("Key(17) = %q", got)
	}
}
