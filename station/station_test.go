// Copyright 2026 The Atrium Authors
// SPDX-License-Identifier: Apache-2.0

package station

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/atrium-foundation/atrium/broker"
	"github.com/atrium-foundation/atrium/catalog"
	"github.com/atrium-foundation/atrium/dialog"
	"github.com/atrium-foundation/atrium/document"
	"github.com/atrium-foundation/atrium/lib/config"
	"github.com/atrium-foundation/atrium/lib/ref"
	"github.com/atrium-foundation/atrium/media"
	"github.com/atrium-foundation/atrium/room"
	"github.com/atrium-foundation/atrium/router"
	"github.com/atrium-foundation/atrium/session"
	"github.com/atrium-foundation/atrium/ticket"
)

const testWait = 2 * time.Second

var (
	centralID = ref.MustParseParticipantID("central-1")
	consoleID = ref.MustParseParticipantID("console-9")
)

// echoService answers the echo capability with the request message.
type echoService struct {
	id ref.RoomID
}

func (s *echoService) Identity() ref.RoomID { return s.id }
func (s *echoService) AdvertisedCapabilities() []ref.CapabilityID {
	return []ref.CapabilityID{ref.MustParseCapabilityID("echo")}
}
func (s *echoService) Startup(context.Context) error  { return nil }
func (s *echoService) Shutdown(context.Context) error { return nil }

func (s *echoService) HandleRequest(ctx context.Context, pkg *ticket.CapabilityPackage, req *document.Request) (*ticket.ActionPackage, error) {
	action := ticket.NewActionPackage(pkg, s.id)
	action.Message = "echo: " + req.Message
	return action, nil
}

func (s *echoService) HandleResponses(context.Context, *document.Request, []*document.Response) {}
func (s *echoService) HandleAnnouncement(context.Context, *document.Announcement)              {}

// chimeAudio stands in for synthesized sound bytes.
var chimeAudio = []byte("RIFF....WAVEfmt chime")

// chimeService answers the chime capability with raw media bytes.
type chimeService struct{}

func (s *chimeService) Identity() ref.RoomID { return ref.MustParseRoomID("chime") }
func (s *chimeService) AdvertisedCapabilities() []ref.CapabilityID {
	return []ref.CapabilityID{ref.MustParseCapabilityID("chime")}
}
func (s *chimeService) Startup(context.Context) error  { return nil }
func (s *chimeService) Shutdown(context.Context) error { return nil }

func (s *chimeService) HandleRequest(ctx context.Context, pkg *ticket.CapabilityPackage, req *document.Request) (*ticket.ActionPackage, error) {
	action := ticket.NewActionPackage(pkg, s.Identity())
	action.Message = "ding"
	action.Result = &media.Entry{Format: "audio/wav", Data: chimeAudio}
	return action, nil
}

func (s *chimeService) HandleResponses(context.Context, *document.Request, []*document.Response) {}
func (s *chimeService) HandleAnnouncement(context.Context, *document.Announcement)              {}

type stack struct {
	hub     *broker.Hub
	catalog *catalog.Catalog
	router  *router.Router
	station *Station
}

func newTestStack(t *testing.T) *stack {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)
	hub := broker.NewHub(broker.NewMemoryBackend(), broker.NewMemoryBackend(), logger)
	t.Cleanup(func() { hub.Close() })

	cat, err := catalog.Open(catalog.Config{
		Path:   filepath.Join(t.TempDir(), "catalog.db"),
		Logger: logger,
		Seed: []catalog.Capability{
			{ID: ref.MustParseCapabilityID("echo"), Description: "repeat the message"},
			{ID: ref.MustParseCapabilityID("chime"), Description: "play a chime"},
		},
	})
	if err != nil {
		t.Fatalf("catalog.Open: %v", err)
	}
	t.Cleanup(func() { cat.Close() })

	rtr, err := router.New(router.Config{
		Bus:     room.NewBus(hub.Central(), logger),
		Central: hub.Central(),
		Catalog: cat,
		Self:    centralID,
		Timeouts: config.Timeouts{
			Startup:  testWait,
			Shutdown: testWait,
			Collect:  testWait,
		},
		Logger: logger,
	})
	if err != nil {
		t.Fatalf("router.New: %v", err)
	}
	if _, err := rtr.Register(&echoService{id: ref.MustParseRoomID("echo")}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := rtr.Register(&chimeService{}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	st, err := New(Config{
		Hub:     hub,
		Router:  rtr,
		Catalog: cat,
		Self:    centralID,
		Station: uuid.New(),
		Logger:  logger,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := rtr.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), testWait)
		defer cancel()
		if err := rtr.Shutdown(ctx); err != nil {
			t.Errorf("Shutdown: %v", err)
		}
	})

	return &stack{hub: hub, catalog: cat, router: rtr, station: st}
}

// wireClient is a serialized participant on the byte channels.
type wireClient struct {
	t         *testing.T
	codec     *dialog.Codec
	central   *broker.Pool
	responses chan dialog.Dialog
}

func newWireClient(t *testing.T, hub *broker.Hub) *wireClient {
	t.Helper()
	c := &wireClient{
		t:         t,
		codec:     dialog.NewCodec(slog.New(slog.DiscardHandler)),
		central:   hub.Central(),
		responses: make(chan dialog.Dialog, 16),
	}
	sub, err := c.central.Subscribe(context.Background(), broker.ToChannel(), func(data []byte) {
		d, err := c.codec.Decode(consoleID, data)
		if err != nil || d == nil {
			return
		}
		c.responses <- d
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	t.Cleanup(sub.Close)
	return c
}

func (c *wireClient) send(req *dialog.Request) {
	c.t.Helper()
	data, err := c.codec.Encode(dialog.Header{To: centralID}, req)
	if err != nil {
		c.t.Fatalf("Encode: %v", err)
	}
	if err := c.central.Publish(context.Background(), broker.FromChannel(), data); err != nil {
		c.t.Fatalf("Publish: %v", err)
	}
}

func (c *wireClient) wait() *dialog.Response {
	c.t.Helper()
	select {
	case d := <-c.responses:
		resp, ok := d.(*dialog.Response)
		if !ok {
			c.t.Fatalf("got %T on the response channel", d)
		}
		return resp
	case <-time.After(testWait):
		c.t.Fatal("timed out waiting for a dialog response")
		return nil
	}
}

func TestSerializedRequestRoundTrip(t *testing.T) {
	s := newTestStack(t)
	client := newWireClient(t, s.hub)

	client.send(&dialog.Request{
		From:         consoleID,
		To:           centralID,
		Language:     ref.DefaultLanguage,
		Capabilities: []ref.CapabilityID{ref.MustParseCapabilityID("echo")},
		Message:      "hello there",
	})

	resp := client.wait()
	if resp.Message != "echo: hello there" {
		t.Errorf("response message: %q", resp.Message)
	}
	if resp.Capability.String() != "echo" {
		t.Errorf("response capability: %v", resp.Capability)
	}
	if resp.From != centralID || resp.To != consoleID {
		t.Errorf("response addressing: %s -> %s", resp.From, resp.To)
	}
}

func TestFirstContactCreatesSession(t *testing.T) {
	s := newTestStack(t)
	client := newWireClient(t, s.hub)

	client.send(&dialog.Request{
		From:         consoleID,
		To:           centralID,
		Language:     ref.German,
		Capabilities: []ref.CapabilityID{ref.MustParseCapabilityID("echo")},
		Message:      "guten tag",
	})
	client.wait()

	sessions := session.NewManager(s.hub.Central())
	sess, found, err := sessions.Lookup(context.Background(), consoleID)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if !found {
		t.Fatal("no session after first contact")
	}
	if sess.Language != ref.German {
		t.Errorf("session language: %v", sess.Language)
	}
	if sess.Kind != session.Serialized {
		t.Errorf("session kind: %v", sess.Kind)
	}
	if sess.LoggedIn() {
		t.Error("fresh session is logged in")
	}
}

func TestLoginAttachesPersonAndLogoutDetaches(t *testing.T) {
	s := newTestStack(t)
	client := newWireClient(t, s.hub)
	ctx := context.Background()

	person := &catalog.Person{
		UserName: "mturing",
		FullName: "Mary Turing",
		Secret:   "hunter2",
	}
	if err := s.catalog.AddPerson(ctx, person); err != nil {
		t.Fatalf("AddPerson: %v", err)
	}

	client.send(&dialog.Request{
		From:         consoleID,
		To:           centralID,
		Language:     ref.DefaultLanguage,
		Capabilities: []ref.CapabilityID{},
		Payload:      &dialog.LoginPayload{UserName: "mturing", Password: "hunter2"},
	})

	resp := client.wait()
	login, ok := resp.Payload.(*dialog.LoginResponsePayload)
	if !ok {
		t.Fatalf("login response payload is %T", resp.Payload)
	}
	if !login.LoggedIn() || login.Person != person.ID {
		t.Errorf("login payload: %+v", login)
	}

	sessions := session.NewManager(s.hub.Central())
	sess, _, err := sessions.Lookup(ctx, consoleID)
	if err != nil || sess == nil {
		t.Fatalf("Lookup after login: %v", err)
	}
	if sess.Person != person.ID {
		t.Errorf("session person: %v", sess.Person)
	}

	// An empty login payload is a logout.
	client.send(&dialog.Request{
		From:         consoleID,
		To:           centralID,
		Language:     ref.DefaultLanguage,
		Capabilities: []ref.CapabilityID{},
		Payload:      &dialog.LoginPayload{},
	})
	resp = client.wait()
	if resp.Message != "logged out" {
		t.Errorf("logout message: %q", resp.Message)
	}

	sess, _, err = sessions.Lookup(ctx, consoleID)
	if err != nil || sess == nil {
		t.Fatalf("Lookup after logout: %v", err)
	}
	if sess.LoggedIn() {
		t.Error("session still logged in after logout")
	}
}

func TestWrongPasswordRejected(t *testing.T) {
	s := newTestStack(t)
	client := newWireClient(t, s.hub)
	ctx := context.Background()

	if err := s.catalog.AddPerson(ctx, &catalog.Person{
		UserName: "mturing",
		FullName: "Mary Turing",
		Secret:   "hunter2",
	}); err != nil {
		t.Fatalf("AddPerson: %v", err)
	}

	client.send(&dialog.Request{
		From:         consoleID,
		To:           centralID,
		Language:     ref.DefaultLanguage,
		Capabilities: []ref.CapabilityID{},
		Payload:      &dialog.LoginPayload{UserName: "mturing", Password: "wrong"},
	})

	resp := client.wait()
	if resp.Message != "login failed" {
		t.Errorf("response message: %q", resp.Message)
	}
	login, ok := resp.Payload.(*dialog.LoginResponsePayload)
	if !ok || login.LoggedIn() {
		t.Errorf("login payload: %+v", resp.Payload)
	}
}

func TestTextConsoleRoundTrip(t *testing.T) {
	s := newTestStack(t)
	ctx := context.Background()

	frames := make(chan string, 16)
	sub, err := s.hub.Central().Subscribe(ctx, broker.TextToChannel(), func(data []byte) {
		frames <- string(data)
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	t.Cleanup(sub.Close)

	// Free text that fuzzy-matches the echo capability.
	err = s.hub.Central().PublishText(ctx, broker.TextFromChannel(), "console-9::echo")
	if err != nil {
		t.Fatalf("PublishText: %v", err)
	}

	select {
	case frame := <-frames:
		if !strings.HasPrefix(frame, "console-9::") {
			t.Errorf("frame not addressed to the console: %q", frame)
		}
		if !strings.Contains(frame, "echo") {
			t.Errorf("frame: %q", frame)
		}
	case <-time.After(testWait):
		t.Fatal("no text response arrived")
	}
}

func TestUnroutableExplicitCapabilityAnswered(t *testing.T) {
	s := newTestStack(t)
	client := newWireClient(t, s.hub)

	client.send(&dialog.Request{
		From:         consoleID,
		To:           centralID,
		Language:     ref.DefaultLanguage,
		Capabilities: []ref.CapabilityID{ref.MustParseCapabilityID("levitate")},
	})

	resp := client.wait()
	if resp.Message != "no handler available" {
		t.Errorf("response message: %q", resp.Message)
	}
}

func TestMalformedFrameIsRecorded(t *testing.T) {
	s := newTestStack(t)
	ctx := context.Background()

	err := s.hub.Central().Publish(ctx, broker.FromChannel(), []byte{0xff, 0x00, 0x13})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}

	deadline := time.Now().Add(testWait)
	for {
		source, _, found, err := s.station.Errors().Lookup(ctx, 1)
		if err != nil {
			t.Fatalf("Lookup: %v", err)
		}
		if found {
			if source != "dialog" {
				t.Errorf("error source: %q", source)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("malformed frame never recorded")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestMediaResultDeliveredThroughCache(t *testing.T) {
	s := newTestStack(t)
	client := newWireClient(t, s.hub)
	ctx := context.Background()

	client.send(&dialog.Request{
		From:         consoleID,
		To:           centralID,
		Language:     ref.DefaultLanguage,
		Capabilities: []ref.CapabilityID{ref.MustParseCapabilityID("chime")},
		Message:      "ring the bell",
	})

	resp := client.wait()
	if resp.Message != "ding" {
		t.Errorf("response message: %q", resp.Message)
	}
	payload, ok := resp.Payload.(*dialog.MediaPayload)
	if !ok {
		t.Fatalf("response payload is %T", resp.Payload)
	}
	if payload.Format != "audio/wav" {
		t.Errorf("payload format: %q", payload.Format)
	}

	// The key resolves against the shared media cache.
	cache, err := media.NewCache(s.hub.Central(), slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}
	entry, found, err := cache.Get(ctx, payload.Key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !found {
		t.Fatal("media entry missing from the cache")
	}
	if string(entry.Data) != string(chimeAudio) {
		t.Errorf("cached bytes do not match the room's result")
	}
}

func TestFrameForAnotherParticipantIgnored(t *testing.T) {
	s := newTestStack(t)
	client := newWireClient(t, s.hub)
	ctx := context.Background()

	// Addressed to some other station, not this one.
	other := ref.MustParseParticipantID("central-2")
	codec := dialog.NewCodec(slog.New(slog.DiscardHandler))
	data, err := codec.Encode(dialog.Header{To: other}, &dialog.Request{
		From:         consoleID,
		To:           other,
		Language:     ref.DefaultLanguage,
		Capabilities: []ref.CapabilityID{ref.MustParseCapabilityID("echo")},
		Message:      "not for you",
	})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if err := s.hub.Central().Publish(ctx, broker.FromChannel(), data); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	// A frame for this station still works afterward.
	client.send(&dialog.Request{
		From:         consoleID,
		To:           centralID,
		Language:     ref.DefaultLanguage,
		Capabilities: []ref.CapabilityID{ref.MustParseCapabilityID("echo")},
		Message:      "for you",
	})
	resp := client.wait()
	if resp.Message != "echo: for you" {
		t.Errorf("response message: %q", resp.Message)
	}
}
