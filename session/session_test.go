// Copyright 2026 The Atrium Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/atrium-foundation/atrium/broker"
	"github.com/atrium-foundation/atrium/lib/ref"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)
	hub := broker.NewHub(broker.NewMemoryBackend(), broker.NewMemoryBackend(), logger)
	t.Cleanup(func() { hub.Close() })
	return NewManager(hub.Central())
}

func TestLookupUnknownParticipant(t *testing.T) {
	m := newTestManager(t)
	_, ok, err := m.Lookup(context.Background(), ref.MustParseParticipantID("stranger"))
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if ok {
		t.Error("unknown participant reported as present")
	}
}

func TestStoreLookupRoundTrip(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	console := ref.MustParseParticipantID("console-1")
	station := uuid.New()

	s := New(console, station, Serialized)
	if s.LoggedIn() {
		t.Error("fresh session reports logged in")
	}
	if s.Language != ref.DefaultLanguage {
		t.Errorf("fresh session language: got %v, want default", s.Language)
	}
	if err := m.Store(ctx, s); err != nil {
		t.Fatalf("Store: %v", err)
	}

	got, ok, err := m.Lookup(ctx, console)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if !ok {
		t.Fatal("stored session not found")
	}
	if got.Participant != console || got.Station != station || got.Kind != Serialized {
		t.Errorf("session mismatch: %+v", got)
	}
	if got.Person != uuid.Nil {
		t.Errorf("anonymous session round-tripped with person %v", got.Person)
	}
	if !got.Timestamp.Equal(s.Timestamp) {
		t.Errorf("timestamp: got %v, want %v", got.Timestamp, s.Timestamp)
	}
}

func TestStoreReplacesWholeSession(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	console := ref.MustParseParticipantID("console-1")

	first := New(console, uuid.New(), Text)
	if err := m.Store(ctx, first); err != nil {
		t.Fatalf("Store: %v", err)
	}

	second := New(console, uuid.New(), Serialized)
	second.Language = ref.German
	second.Quiet = true
	if err := m.Store(ctx, second); err != nil {
		t.Fatalf("Store: %v", err)
	}

	got, _, err := m.Lookup(ctx, console)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if got.Kind != Serialized || got.Language != ref.German || !got.Quiet {
		t.Errorf("replacement not complete: %+v", got)
	}
	if got.Station != second.Station {
		t.Errorf("station: got %v, want %v", got.Station, second.Station)
	}
}

func TestLoginLogout(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	console := ref.MustParseParticipantID("console-1")
	person := uuid.New()

	// Login against a participant that never made contact fails.
	if err := m.Login(ctx, console, person); err == nil {
		t.Error("login for unknown participant succeeded")
	}

	if err := m.Store(ctx, New(console, uuid.New(), Serialized)); err != nil {
		t.Fatalf("Store: %v", err)
	}
	if err := m.Login(ctx, console, person); err != nil {
		t.Fatalf("Login: %v", err)
	}

	got, _, err := m.Lookup(ctx, console)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if !got.LoggedIn() || got.Person != person {
		t.Errorf("after login: %+v", got)
	}

	if err := m.Logout(ctx, console); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	got, ok, err := m.Lookup(ctx, console)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if !ok {
		t.Fatal("logout deleted the session")
	}
	if got.LoggedIn() {
		t.Errorf("after logout still logged in: %+v", got)
	}

	// Logout of an unknown participant is a no-op.
	if err := m.Logout(ctx, ref.MustParseParticipantID("stranger")); err != nil {
		t.Errorf("Logout of unknown participant: %v", err)
	}
}

func TestParseKind(t *testing.T) {
	for _, raw := range []string{"serialized", "text"} {
		if _, err := ParseKind(raw); err != nil {
			t.Errorf("ParseKind(%q): %v", raw, err)
		}
	}
	if _, err := ParseKind("binary"); err == nil {
		t.Error("ParseKind accepted an unknown kind")
	}
}

func TestTouchAdvancesTimestamp(t *testing.T) {
	s := New(ref.MustParseParticipantID("console-1"), uuid.New(), Text)
	before := s.Timestamp
	time.Sleep(time.Millisecond)
	s.Touch()
	if !s.Timestamp.After(before) {
		t.Error("Touch did not advance the timestamp")
	}
}
