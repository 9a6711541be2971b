// Copyright 2026 The Atrium Authors
// SPDX-License-Identifier: Apache-2.0

package room

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/atrium-foundation/atrium/broker"
	"github.com/atrium-foundation/atrium/document"
	"github.com/atrium-foundation/atrium/lib/ref"
	"github.com/atrium-foundation/atrium/ticket"
)

const testWait = 2 * time.Second

type responseSet struct {
	request   *document.Request
	responses []*document.Response
}

// fakeService is a scriptable Service for exercising node dispatch.
type fakeService struct {
	id           ref.RoomID
	capabilities []ref.CapabilityID
	startupErr   error

	handle func(ctx context.Context, pkg *ticket.CapabilityPackage, req *document.Request) (*ticket.ActionPackage, error)

	invoked       chan ref.CapabilityID
	collected     chan responseSet
	announcements chan *document.Announcement
}

func newFakeService(id string, capabilities ...string) *fakeService {
	s := &fakeService{
		id:            ref.MustParseRoomID(id),
		invoked:       make(chan ref.CapabilityID, 16),
		collected:     make(chan responseSet, 16),
		announcements: make(chan *document.Announcement, 16),
	}
	for _, capability := range capabilities {
		s.capabilities = append(s.capabilities, ref.MustParseCapabilityID(capability))
	}
	return s
}

func (s *fakeService) Identity() ref.RoomID                       { return s.id }
func (s *fakeService) AdvertisedCapabilities() []ref.CapabilityID { return s.capabilities }
func (s *fakeService) Startup(context.Context) error              { return s.startupErr }
func (s *fakeService) Shutdown(context.Context) error             { return nil }

func (s *fakeService) HandleRequest(ctx context.Context, pkg *ticket.CapabilityPackage, req *document.Request) (*ticket.ActionPackage, error) {
	s.invoked <- pkg.Capability
	if s.handle != nil {
		return s.handle(ctx, pkg, req)
	}
	action := ticket.NewActionPackage(pkg, s.id)
	action.Message = "handled " + pkg.Capability.String()
	return action, nil
}

func (s *fakeService) HandleResponses(ctx context.Context, req *document.Request, responses []*document.Response) {
	s.collected <- responseSet{request: req, responses: responses}
}

func (s *fakeService) HandleAnnouncement(ctx context.Context, announcement *document.Announcement) {
	s.announcements <- announcement
}

func newTestBus(t *testing.T) (*Bus, *broker.Hub) {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)
	hub := broker.NewHub(broker.NewMemoryBackend(), broker.NewMemoryBackend(), logger)
	t.Cleanup(func() { hub.Close() })
	return NewBus(hub.Central(), logger), hub
}

func startNode(t *testing.T, bus *Bus, service Service) *Node {
	t.Helper()
	node, err := NewNode(service, bus, slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("NewNode: %v", err)
	}
	if err := node.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() {
		if node.State() == Running {
			ctx, cancel := context.WithTimeout(context.Background(), testWait)
			defer cancel()
			if err := node.Stop(ctx); err != nil {
				t.Errorf("Stop: %v", err)
			}
		}
	})
	return node
}

func openTestTicket(t *testing.T, hub *broker.Hub) *ticket.Ticket {
	t.Helper()
	counter := broker.NewCounter(hub.Central(), broker.TicketCounterKey())
	tkt, err := ticket.Open(context.Background(), counter, ref.MustParseParticipantID("console-1"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return tkt
}

func waitResponses(t *testing.T, s *fakeService) responseSet {
	t.Helper()
	select {
	case set := <-s.collected:
		return set
	case <-time.After(testWait):
		t.Fatal("timed out waiting for collected responses")
		return responseSet{}
	}
}

func TestNodeLifecycle(t *testing.T) {
	bus, _ := newTestBus(t)
	service := newFakeService("echo", "echo")

	node, err := NewNode(service, bus, slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("NewNode: %v", err)
	}
	if node.State() != Created {
		t.Errorf("fresh node state: %v", node.State())
	}

	ctx := context.Background()
	if err := node.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if node.State() != Running {
		t.Errorf("started node state: %v", node.State())
	}
	if err := node.Start(ctx); err == nil {
		t.Error("second Start succeeded")
	}

	if err := node.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if node.State() != Stopped {
		t.Errorf("stopped node state: %v", node.State())
	}
	if err := node.Stop(ctx); err == nil {
		t.Error("second Stop succeeded")
	}
}

func TestNodeStartupFailureIsReported(t *testing.T) {
	bus, _ := newTestBus(t)
	service := newFakeService("broken", "echo")
	service.startupErr = fmt.Errorf("model file missing")

	node, err := NewNode(service, bus, slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("NewNode: %v", err)
	}
	if err := node.Start(context.Background()); err == nil {
		t.Fatal("Start succeeded despite service startup failure")
	}
	if node.State() != Stopped {
		t.Errorf("failed node state: %v", node.State())
	}
}

func TestAdvertisedSnapshotDeduplicates(t *testing.T) {
	bus, _ := newTestBus(t)
	service := newFakeService("echo", "echo", "echo", "spell_word")
	node := startNode(t, bus, service)

	advertised := node.Advertised()
	if len(advertised) != 2 {
		t.Errorf("advertised: %v", advertised)
	}
}

func TestDuplicateRoomIdentityRejected(t *testing.T) {
	bus, _ := newTestBus(t)
	logger := slog.New(slog.DiscardHandler)

	if _, err := NewNode(newFakeService("echo", "echo"), bus, logger); err != nil {
		t.Fatalf("NewNode: %v", err)
	}
	if _, err := NewNode(newFakeService("echo", "other"), bus, logger); err == nil {
		t.Error("duplicate identity accepted")
	}
}

func TestRequestDispatchAndCollection(t *testing.T) {
	bus, hub := newTestBus(t)
	asker := newFakeService("controller")
	echo := newFakeService("echo", "echo")
	askerNode := startNode(t, bus, asker)
	startNode(t, bus, echo)

	tkt := openTestTicket(t, hub)
	pkg := ticket.NewCapabilityPackage(1, ref.MustParseCapabilityID("echo"))
	req := &document.Request{
		Ticket:     tkt,
		Candidates: []*ticket.CapabilityPackage{pkg},
	}
	if err := askerNode.PostRequest(context.Background(), req); err != nil {
		t.Fatalf("PostRequest: %v", err)
	}

	set := waitResponses(t, asker)
	if set.request != req {
		t.Error("collected responses for the wrong request")
	}
	if len(set.responses) != 1 {
		t.Fatalf("got %d responses, want 1", len(set.responses))
	}
	resp := set.responses[0]
	if resp.From != echo.id || resp.NoResponse {
		t.Errorf("response: %+v", resp)
	}
	if len(resp.Actions) != 1 || resp.Actions[0].Message != "handled echo" {
		t.Errorf("actions: %v", resp.Actions)
	}

	select {
	case capability := <-echo.invoked:
		if capability.String() != "echo" {
			t.Errorf("invoked for %v", capability)
		}
	default:
		t.Error("echo service was never invoked")
	}
}

func TestUnadvertisedBroadcastCandidateDeclined(t *testing.T) {
	bus, hub := newTestBus(t)
	asker := newFakeService("controller")
	echo := newFakeService("echo", "echo")
	askerNode := startNode(t, bus, asker)
	startNode(t, bus, echo)

	tkt := openTestTicket(t, hub)
	req := &document.Request{
		Ticket:     tkt,
		Candidates: []*ticket.CapabilityPackage{ticket.NewCapabilityPackage(1, ref.MustParseCapabilityID("levitate"))},
	}
	if err := askerNode.PostRequest(context.Background(), req); err != nil {
		t.Fatalf("PostRequest: %v", err)
	}

	set := waitResponses(t, asker)
	if len(set.responses) != 1 || !set.responses[0].NoResponse {
		t.Errorf("expected a single explicit no-response, got %+v", set.responses)
	}
	select {
	case capability := <-echo.invoked:
		t.Errorf("service invoked for unadvertised broadcast capability %v", capability)
	default:
	}
}

func TestTargetedUnadvertisedCapabilityAborts(t *testing.T) {
	bus, hub := newTestBus(t)
	asker := newFakeService("controller")
	echo := newFakeService("echo", "echo")
	askerNode := startNode(t, bus, asker)
	startNode(t, bus, echo)

	tkt := openTestTicket(t, hub)
	req := &document.Request{
		Ticket:     tkt,
		To:         []ref.RoomID{echo.id},
		Candidates: []*ticket.CapabilityPackage{ticket.NewCapabilityPackage(1, ref.MustParseCapabilityID("levitate"))},
	}
	if err := askerNode.PostRequest(context.Background(), req); err != nil {
		t.Fatalf("PostRequest: %v", err)
	}

	set := waitResponses(t, asker)
	if len(set.responses) != 1 {
		t.Fatalf("got %d responses, want 1", len(set.responses))
	}
	actions := set.responses[0].Actions
	if len(actions) != 1 {
		t.Fatalf("got %d actions, want 1", len(actions))
	}
	if !strings.HasPrefix(actions[0].Message, "internal error") {
		t.Errorf("abort action not labeled: %q", actions[0].Message)
	}
}

func TestWhatCapabilitiesAnsweredMechanically(t *testing.T) {
	bus, hub := newTestBus(t)
	asker := newFakeService("controller")
	echo := newFakeService("echo", "echo", "spell_word")
	askerNode := startNode(t, bus, asker)
	startNode(t, bus, echo)

	tkt := openTestTicket(t, hub)
	req := &document.Request{
		Ticket:     tkt,
		Candidates: []*ticket.CapabilityPackage{ticket.NewCapabilityPackage(1, document.WhatCapabilities)},
	}
	if err := askerNode.PostRequest(context.Background(), req); err != nil {
		t.Fatalf("PostRequest: %v", err)
	}

	set := waitResponses(t, asker)
	if len(set.responses) != 1 {
		t.Fatalf("got %d responses, want 1", len(set.responses))
	}
	actions := set.responses[0].Actions
	if len(actions) != 1 {
		t.Fatalf("got %d actions, want 1", len(actions))
	}
	advertised, ok := actions[0].Result.([]ref.CapabilityID)
	if !ok {
		t.Fatalf("result is %T", actions[0].Result)
	}
	if len(advertised) != 2 {
		t.Errorf("advertised: %v", advertised)
	}

	select {
	case <-echo.invoked:
		t.Error("what-capabilities reached the service handler")
	default:
	}
}

func TestHandlerPanicFailsOnlyThatCandidate(t *testing.T) {
	bus, hub := newTestBus(t)
	asker := newFakeService("controller")
	flaky := newFakeService("flaky", "echo")
	flaky.handle = func(context.Context, *ticket.CapabilityPackage, *document.Request) (*ticket.ActionPackage, error) {
		panic("corrupted state")
	}
	askerNode := startNode(t, bus, asker)
	startNode(t, bus, flaky)

	tkt := openTestTicket(t, hub)
	req := &document.Request{
		Ticket:     tkt,
		Candidates: []*ticket.CapabilityPackage{ticket.NewCapabilityPackage(1, ref.MustParseCapabilityID("echo"))},
	}
	if err := askerNode.PostRequest(context.Background(), req); err != nil {
		t.Fatalf("PostRequest: %v", err)
	}

	set := waitResponses(t, asker)
	if len(set.responses) != 1 || !set.responses[0].NoResponse {
		t.Errorf("expected explicit no-response after panic, got %+v", set.responses)
	}

	// The node survives and handles the next request.
	flaky.handle = nil
	second := &document.Request{
		Ticket:     tkt,
		Candidates: []*ticket.CapabilityPackage{ticket.NewCapabilityPackage(2, ref.MustParseCapabilityID("echo"))},
	}
	if err := askerNode.PostRequest(context.Background(), second); err != nil {
		t.Fatalf("PostRequest: %v", err)
	}
	set = waitResponses(t, asker)
	if set.responses[0].NoResponse {
		t.Error("node did not recover after handler panic")
	}
}

func TestAnnouncementFansOutToEveryRoom(t *testing.T) {
	bus, _ := newTestBus(t)
	first := newFakeService("echo", "echo")
	second := newFakeService("spell", "spell_word")
	firstNode := startNode(t, bus, first)
	startNode(t, bus, second)

	err := firstNode.PostAnnouncement(context.Background(), document.SessionLogin, ref.MustParseParticipantID("console-1"))
	if err != nil {
		t.Fatalf("PostAnnouncement: %v", err)
	}

	for _, service := range []*fakeService{first, second} {
		select {
		case a := <-service.announcements:
			if a.Kind != document.SessionLogin {
				t.Errorf("%s got kind %v", service.id, a.Kind)
			}
		case <-time.After(testWait):
			t.Fatalf("%s never saw the announcement", service.id)
		}
	}
}

func TestPostRequestAloneOnBus(t *testing.T) {
	bus, hub := newTestBus(t)
	only := newFakeService("controller")
	node := startNode(t, bus, only)

	tkt := openTestTicket(t, hub)
	req := &document.Request{
		Ticket:  tkt,
		Message: "anyone there?",
	}
	if err := node.PostRequest(context.Background(), req); err != nil {
		t.Fatalf("PostRequest: %v", err)
	}

	set := waitResponses(t, only)
	if len(set.responses) != 0 {
		t.Errorf("expected empty response set, got %d", len(set.responses))
	}
}
