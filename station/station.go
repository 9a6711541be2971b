// Copyright 2026 The Atrium Authors
// SPDX-License-Identifier: Apache-2.0

package station

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/atrium-foundation/atrium/broker"
	"github.com/atrium-foundation/atrium/catalog"
	"github.com/atrium-foundation/atrium/dialog"
	"github.com/atrium-foundation/atrium/document"
	"github.com/atrium-foundation/atrium/lib/fuzzy"
	"github.com/atrium-foundation/atrium/lib/ref"
	"github.com/atrium-foundation/atrium/media"
	"github.com/atrium-foundation/atrium/room"
	"github.com/atrium-foundation/atrium/router"
	"github.com/atrium-foundation/atrium/session"
	"github.com/atrium-foundation/atrium/ticket"
)

// Room is the station's identity on the document bus.
var Room = ref.MustParseRoomID("station")

// maxProposals caps how many fuzzy-matched candidates one free-text
// request fans out.
const maxProposals = 3

// Config holds the station's collaborators.
type Config struct {
	// Hub provides the Central and Local broker pools.
	Hub *broker.Hub

	// Router owns tickets, candidates, and the capability directory.
	Router *router.Router

	// Catalog resolves persons at login.
	Catalog *catalog.Catalog

	// Self is Central's own participant identity on the wire. Inbound
	// frames addressed to anyone else are discarded unread.
	Self ref.ParticipantID

	// Station identifies this node. A nil UUID gets a fresh one.
	Station uuid.UUID

	// Debug enables frame diagnostics on foreign traffic.
	Debug bool

	Logger *slog.Logger
}

// Station is the Central-side bridge between the dialog wire and the
// document bus. It is a room: registering it on the router gives it
// the node through which it posts requests.
type Station struct {
	central  *broker.Pool
	local    *broker.Pool
	router   *router.Router
	catalog  *catalog.Catalog
	sessions *session.Manager
	codec    *dialog.Codec
	errors   *ErrorLog
	media    *media.Cache
	self     ref.ParticipantID
	station  uuid.UUID
	logger   *slog.Logger

	node *room.Node

	runCtx context.Context
	cancel context.CancelFunc
	subs   []*broker.Subscription
}

// New builds the station and registers it with the router. Call
// before Router.Start, like any other room.
func New(cfg Config) (*Station, error) {
	if cfg.Hub == nil || cfg.Router == nil || cfg.Catalog == nil {
		return nil, fmt.Errorf("station: hub, router, and catalog are all required")
	}
	if cfg.Self.IsZero() {
		return nil, fmt.Errorf("station: self participant identity is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	station := cfg.Station
	if station == uuid.Nil {
		station = uuid.New()
	}

	codec := dialog.NewCodec(logger)
	codec.Debug = cfg.Debug

	cache, err := media.NewCache(cfg.Hub.Central(), logger)
	if err != nil {
		return nil, err
	}

	s := &Station{
		central:  cfg.Hub.Central(),
		local:    cfg.Hub.Local(),
		router:   cfg.Router,
		catalog:  cfg.Catalog,
		sessions: session.NewManager(cfg.Hub.Central()),
		codec:    codec,
		errors:   NewErrorLog(cfg.Hub.Central(), logger),
		media:    cache,
		self:     cfg.Self,
		station:  station,
		logger:   logger.With("component", "station"),
	}

	node, err := cfg.Router.Register(s)
	if err != nil {
		return nil, err
	}
	s.node = node
	return s, nil
}

// Errors exposes the error log, shared with other components that
// record failures.
func (s *Station) Errors() *ErrorLog { return s.errors }

func (s *Station) Identity() ref.RoomID                       { return Room }
func (s *Station) AdvertisedCapabilities() []ref.CapabilityID { return nil }

// Startup persists the station identity and opens the wire
// subscriptions.
func (s *Station) Startup(ctx context.Context) error {
	s.runCtx, s.cancel = context.WithCancel(context.Background())

	err := s.local.HashSet(ctx, broker.StationHashKey(), map[string][]byte{
		"uuid":        []byte(s.station.String()),
		"participant": []byte(s.self.String()),
	})
	if err != nil {
		return fmt.Errorf("station: persisting station identity: %w", err)
	}

	byteSub, err := s.central.Subscribe(s.runCtx, broker.FromChannel(), s.handleFrame)
	if err != nil {
		return err
	}
	textSub, err := s.central.Subscribe(s.runCtx, broker.TextFromChannel(), s.handleText)
	if err != nil {
		byteSub.Close()
		return err
	}
	s.subs = []*broker.Subscription{byteSub, textSub}

	s.logger.Info("station listening",
		"participant", s.self.String(),
		"station", s.station.String())
	return nil
}

func (s *Station) Shutdown(ctx context.Context) error {
	s.cancel()
	for _, sub := range s.subs {
		sub.Close()
	}
	return nil
}

func (s *Station) HandleRequest(context.Context, *ticket.CapabilityPackage, *document.Request) (*ticket.ActionPackage, error) {
	return nil, fmt.Errorf("station advertises no capabilities")
}

func (s *Station) HandleAnnouncement(ctx context.Context, announcement *document.Announcement) {
	if announcement.Kind == document.ServerShutdown {
		s.logger.Info("shutdown announced, wire traffic will stop")
	}
}

// HandleResponses is the outbound half of the bridge: collected room
// responses become dialog responses on the wire, and the ticket
// closes.
func (s *Station) HandleResponses(ctx context.Context, req *document.Request, responses []*document.Response) {
	tkt := req.Ticket
	participant := tkt.From()

	language := ref.DefaultLanguage
	kind := session.Serialized
	if sess, found, err := s.sessions.Lookup(ctx, participant); err == nil && found {
		language = sess.Language
		kind = sess.Kind
	}

	sent := 0
	for _, response := range responses {
		if response.NoResponse {
			continue
		}
		for _, action := range response.Actions {
			if err := tkt.Journal().AddAction(action); err != nil {
				s.logger.Warn("recording action in journal",
					"ticket", tkt.ID().String(), "error", err)
			}
			out := &dialog.Response{
				From:        s.self,
				To:          participant,
				Language:    language,
				Message:     action.Message,
				Explanation: action.Explanation,
				Capability:  action.Capability,
			}
			switch result := action.Result.(type) {
			case dialog.Payload:
				out.Payload = result
			case *media.Entry:
				// Raw media bytes never ride the dialog wire; the
				// client gets a short-lived cache key instead.
				key, err := s.media.Put(ctx, result.Format, result.Data)
				if err != nil {
					s.errors.Record(ctx, "media", err)
					s.logger.Error("caching media result", "error", err)
					break
				}
				out.Payload = &dialog.MediaPayload{Format: result.Format, Key: key}
			}
			if out.Message == "" && out.Payload == nil {
				continue
			}
			s.send(ctx, participant, kind, out)
			sent++
		}
	}

	if sent == 0 {
		s.send(ctx, participant, kind, &dialog.Response{
			From:     s.self,
			To:       participant,
			Language: language,
			Message:  "I have no answer for that.",
		})
	}

	if err := tkt.Close(); err != nil {
		s.logger.Warn("closing ticket", "ticket", tkt.ID().String(), "error", err)
	}
}

// handleFrame serves one inbound byte-channel frame.
func (s *Station) handleFrame(data []byte) {
	ctx := s.runCtx
	d, err := s.codec.Decode(s.self, data)
	if err != nil {
		s.errors.Record(ctx, "dialog", err)
		s.logger.Warn("discarding malformed dialog frame", "error", err)
		return
	}
	if d == nil {
		// Addressed to another participant.
		return
	}
	req, ok := d.(*dialog.Request)
	if !ok {
		s.logger.Warn("dialog response arrived on the inbound channel",
			"from", d.Sender().String())
		return
	}
	s.serveRequest(ctx, req, session.Serialized)
}

// handleText serves one "<participant>::<text>" console frame.
func (s *Station) handleText(payload []byte) {
	ctx := s.runCtx
	head, text, ok := strings.Cut(string(payload), "::")
	if !ok {
		s.logger.Warn("text frame missing separator")
		return
	}
	participant, err := ref.ParseParticipantID(head)
	if err != nil {
		s.logger.Warn("text frame with bad participant", "error", err)
		return
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	s.serveRequest(ctx, &dialog.Request{
		From:         participant,
		To:           s.self,
		Language:     ref.DefaultLanguage,
		Capabilities: []ref.CapabilityID{},
		Message:      text,
	}, session.Text)
}

func (s *Station) serveRequest(ctx context.Context, req *dialog.Request, kind session.Kind) {
	sess, err := s.ensureSession(ctx, req.From, kind, req.Language)
	if err != nil {
		s.errors.Record(ctx, "session", err)
		s.logger.Error("session unavailable", "participant", req.From.String(), "error", err)
		return
	}

	if login, ok := req.Payload.(*dialog.LoginPayload); ok {
		s.serveLogin(ctx, sess, login)
		return
	}

	tkt, err := s.router.OpenTicket(ctx, req.From)
	if err != nil {
		s.errors.Record(ctx, "ticket", err)
		s.logger.Error("opening ticket", "participant", req.From.String(), "error", err)
		return
	}
	if sess.LoggedIn() {
		if err := tkt.SetPerson(sess.Person); err != nil {
			s.logger.Warn("attaching person to ticket", "error", err)
		}
	}
	if req.Message != "" {
		if err := tkt.Journal().AddSentence(req.Message); err != nil {
			s.logger.Warn("recording sentence", "error", err)
		}
	}

	candidates, err := s.propose(ctx, tkt, req)
	if err != nil {
		s.errors.Record(ctx, "routing", err)
		s.logger.Error("proposing candidates", "error", err)
		tkt.Close()
		return
	}
	if len(candidates) == 0 && req.Message == "" {
		tkt.Close()
		s.send(ctx, sess.Participant, sess.Kind, &dialog.Response{
			From:     s.self,
			To:       sess.Participant,
			Language: sess.Language,
			Message:  "no handler available",
		})
		return
	}

	// Broadcast; rooms act only on candidates they advertise. The
	// ticket stays open until HandleResponses collects the answers.
	err = s.node.PostRequest(ctx, &document.Request{
		Ticket:     tkt,
		Candidates: candidates,
		Message:    req.Message,
	})
	if err != nil {
		s.errors.Record(ctx, "bus", err)
		s.logger.Error("posting request", "error", err)
		tkt.Close()
	}
}

// propose turns a dialog request into capability packages. Explicit
// capabilities are taken at face value; free text is fuzzy-ranked
// against the directory's capability names.
func (s *Station) propose(ctx context.Context, tkt *ticket.Ticket, req *dialog.Request) ([]*ticket.CapabilityPackage, error) {
	var candidates []*ticket.CapabilityPackage

	for _, capability := range req.Capabilities {
		pkg, err := s.router.NewCandidate(ctx, capability)
		if err != nil {
			return nil, err
		}
		rooms, err := s.router.RouteRequest(tkt, pkg)
		if err != nil {
			return nil, err
		}
		if len(rooms) == 0 {
			s.logger.Info("no handler for explicit capability",
				"capability", capability.String())
			continue
		}
		candidates = append(candidates, pkg)
	}

	if len(req.Capabilities) == 0 && req.Message != "" {
		advertised := s.router.Capabilities()
		names := make([]string, len(advertised))
		byName := make(map[string]ref.CapabilityID, len(advertised))
		for i, capability := range advertised {
			names[i] = capability.String()
			byName[capability.String()] = capability
		}

		for i, match := range fuzzy.Rank(req.Message, names) {
			if i == maxProposals {
				break
			}
			pkg, err := s.router.NewCandidate(ctx, byName[match.Candidate])
			if err != nil {
				return nil, err
			}
			pkg.Confidence = min(match.Score, 100)
			pkg.SentenceFragment = req.Message
			if _, err := s.router.RouteRequest(tkt, pkg); err != nil {
				return nil, err
			}
			candidates = append(candidates, pkg)
		}
	}

	return candidates, nil
}

func (s *Station) serveLogin(ctx context.Context, sess *session.Session, login *dialog.LoginPayload) {
	out := &dialog.Response{
		From:     s.self,
		To:       sess.Participant,
		Language: sess.Language,
	}

	switch {
	case login.IsLogout():
		if err := s.sessions.Logout(ctx, sess.Participant); err != nil {
			s.errors.Record(ctx, "session", err)
			out.Message = "logout failed"
			break
		}
		if err := s.node.PostAnnouncement(ctx, document.SessionLogout, sess.Participant); err != nil {
			s.logger.Warn("announcing logout", "error", err)
		}
		out.Message = "logged out"
		out.Payload = &dialog.LoginResponsePayload{Message: out.Message}

	default:
		person, found, err := s.catalog.LookupPerson(ctx, login.UserName)
		if err != nil {
			s.errors.Record(ctx, "catalog", err)
			out.Message = "login unavailable"
			break
		}
		if !found || person.Secret != login.Password {
			out.Message = "login failed"
			out.Payload = &dialog.LoginResponsePayload{
				UserName: login.UserName,
				Message:  out.Message,
			}
			break
		}
		if err := s.sessions.Login(ctx, sess.Participant, person.ID); err != nil {
			s.errors.Record(ctx, "session", err)
			out.Message = "login unavailable"
			break
		}
		if err := s.node.PostAnnouncement(ctx, document.SessionLogin, sess.Participant); err != nil {
			s.logger.Warn("announcing login", "error", err)
		}
		out.Message = "hello, " + person.FullName
		out.Payload = &dialog.LoginResponsePayload{
			Person:   person.ID,
			UserName: person.UserName,
			Message:  out.Message,
		}
		s.logger.Info("participant logged in",
			"participant", sess.Participant.String(),
			"username", person.UserName)
	}

	s.send(ctx, sess.Participant, sess.Kind, out)
}

// ensureSession looks the participant's session up, creating one on
// first contact, and touches it.
func (s *Station) ensureSession(ctx context.Context, participant ref.ParticipantID, kind session.Kind, language ref.Language) (*session.Session, error) {
	sess, found, err := s.sessions.Lookup(ctx, participant)
	if err != nil {
		return nil, err
	}
	if !found {
		sess = session.New(participant, s.station, kind)
		s.logger.Info("new session",
			"participant", participant.String(),
			"kind", string(kind))
	}
	sess.Kind = kind
	if !language.IsZero() {
		sess.Language = language
	}
	sess.Touch()
	if err := s.sessions.Store(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// send serializes one dialog response onto the wire appropriate for
// the session kind.
func (s *Station) send(ctx context.Context, participant ref.ParticipantID, kind session.Kind, out *dialog.Response) {
	if kind == session.Text {
		if out.Payload != nil {
			s.logger.Warn("dropping payload on text session",
				"participant", participant.String())
		}
		frame := participant.String() + "::" + out.Message
		if err := s.central.PublishText(ctx, broker.TextToChannel(), frame); err != nil {
			s.errors.Record(ctx, "wire", err)
			s.logger.Error("publishing text response", "error", err)
		}
		return
	}

	data, err := s.codec.Encode(dialog.Header{To: participant}, out)
	if err != nil {
		s.errors.Record(ctx, "dialog", err)
		s.logger.Error("encoding dialog response", "error", err)
		return
	}
	if err := s.central.Publish(ctx, broker.ToChannel(), data); err != nil {
		s.errors.Record(ctx, "wire", err)
		s.logger.Error("publishing dialog response", "error", err)
	}
}
