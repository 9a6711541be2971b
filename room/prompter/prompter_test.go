// Copyright 2026 The Atrium Authors
// SPDX-License-Identifier: Apache-2.0

package prompter

import (
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/atrium-foundation/atrium/broker"
	"github.com/atrium-foundation/atrium/document"
	"github.com/atrium-foundation/atrium/lib/ref"
	"github.com/atrium-foundation/atrium/session"
	"github.com/atrium-foundation/atrium/ticket"
)

const testWait = 2 * time.Second

var (
	centralID = ref.MustParseParticipantID("central-1")
	consoleID = ref.MustParseParticipantID("console-9")
)

func newTestPrompter(t *testing.T, interval time.Duration) (*Service, *broker.Hub) {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)
	hub := broker.NewHub(broker.NewMemoryBackend(), broker.NewMemoryBackend(), logger)
	t.Cleanup(func() { hub.Close() })

	s, err := New(Config{
		Central:  hub.Central(),
		Self:     centralID,
		Interval: interval,
		Logger:   logger,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.Startup(context.Background()); err != nil {
		t.Fatalf("Startup: %v", err)
	}
	t.Cleanup(func() { s.Shutdown(context.Background()) })
	return s, hub
}

func loginTextSession(t *testing.T, hub *broker.Hub) *session.Session {
	t.Helper()
	sessions := session.NewManager(hub.Central())
	sess := session.New(consoleID, uuid.New(), session.Text)
	if err := sessions.Store(context.Background(), sess); err != nil {
		t.Fatalf("Store: %v", err)
	}
	if err := sessions.Login(context.Background(), consoleID, uuid.New()); err != nil {
		t.Fatalf("Login: %v", err)
	}
	updated, _, err := sessions.Lookup(context.Background(), consoleID)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	return updated
}

func TestLoginSchedulesPrompt(t *testing.T) {
	s, hub := newTestPrompter(t, 50*time.Millisecond)
	loginTextSession(t, hub)

	frames := make(chan string, 16)
	sub, err := hub.Central().Subscribe(context.Background(), broker.TextToChannel(), func(data []byte) {
		frames <- string(data)
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	t.Cleanup(sub.Close)

	s.HandleAnnouncement(context.Background(), &document.Announcement{
		ID:          1,
		From:        ref.MustParseRoomID("station"),
		Kind:        document.SessionLogin,
		Participant: consoleID,
	})

	select {
	case frame := <-frames:
		if !strings.HasPrefix(frame, "console-9::") {
			t.Errorf("prompt frame: %q", frame)
		}
	case <-time.After(testWait):
		t.Fatal("no prompt arrived after login")
	}
}

func TestLogoutRemovesPrompt(t *testing.T) {
	s, hub := newTestPrompter(t, 30*time.Millisecond)
	loginTextSession(t, hub)
	ctx := context.Background()

	s.HandleAnnouncement(ctx, &document.Announcement{
		ID: 1, From: ref.MustParseRoomID("station"),
		Kind: document.SessionLogin, Participant: consoleID,
	})
	s.HandleAnnouncement(ctx, &document.Announcement{
		ID: 2, From: ref.MustParseRoomID("station"),
		Kind: document.SessionLogout, Participant: consoleID,
	})

	s.mu.Lock()
	_, scheduled := s.entries[consoleID]
	s.mu.Unlock()
	if scheduled {
		t.Error("prompt entry survived logout")
	}
}

func TestQuietSessionIsNotPrompted(t *testing.T) {
	s, hub := newTestPrompter(t, 30*time.Millisecond)
	sess := loginTextSession(t, hub)
	ctx := context.Background()

	sess.Quiet = true
	sessions := session.NewManager(hub.Central())
	if err := sessions.Store(ctx, sess); err != nil {
		t.Fatalf("Store: %v", err)
	}

	frames := make(chan string, 16)
	sub, err := hub.Central().Subscribe(ctx, broker.TextToChannel(), func(data []byte) {
		frames <- string(data)
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	t.Cleanup(sub.Close)

	s.HandleAnnouncement(ctx, &document.Announcement{
		ID: 1, From: ref.MustParseRoomID("station"),
		Kind: document.SessionLogin, Participant: consoleID,
	})

	select {
	case frame := <-frames:
		t.Errorf("quiet session was prompted: %q", frame)
	case <-time.After(150 * time.Millisecond):
	}
}

func TestQuietCapabilityTogglesFlag(t *testing.T) {
	s, hub := newTestPrompter(t, time.Minute)
	loginTextSession(t, hub)
	ctx := context.Background()

	counter := broker.NewCounter(hub.Central(), broker.TicketCounterKey())
	tkt, err := ticket.Open(ctx, counter, consoleID)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	pkg := ticket.NewCapabilityPackage(1, capQuiet)
	req := &document.Request{ID: 7, Ticket: tkt, Candidates: []*ticket.CapabilityPackage{pkg}}

	action, err := s.HandleRequest(ctx, pkg, req)
	if err != nil {
		t.Fatalf("HandleRequest: %v", err)
	}
	if action.Message != "quiet mode on" {
		t.Errorf("first toggle: %q", action.Message)
	}

	action, err = s.HandleRequest(ctx, pkg, req)
	if err != nil {
		t.Fatalf("HandleRequest: %v", err)
	}
	if action.Message != "quiet mode off" {
		t.Errorf("second toggle: %q", action.Message)
	}

	sessions := session.NewManager(hub.Central())
	sess, _, err := sessions.Lookup(ctx, consoleID)
	if err != nil || sess == nil {
		t.Fatalf("Lookup: %v", err)
	}
	if sess.Quiet {
		t.Error("quiet flag still set after double toggle")
	}
}
