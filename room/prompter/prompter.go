// Copyright 2026 The Atrium Authors
// SPDX-License-Identifier: Apache-2.0

// Package prompter nags idle participants. On login it schedules a
// recurring prompt for the participant; on logout the schedule is
// removed. A session marked quiet is never prompted, and the quiet
// capability toggles that flag.
package prompter

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/atrium-foundation/atrium/broker"
	"github.com/atrium-foundation/atrium/dialog"
	"github.com/atrium-foundation/atrium/document"
	"github.com/atrium-foundation/atrium/lib/ref"
	"github.com/atrium-foundation/atrium/room"
	"github.com/atrium-foundation/atrium/session"
	"github.com/atrium-foundation/atrium/ticket"
)

var (
	// Room is the prompter's bus identity.
	Room = ref.MustParseRoomID("prompter")

	capQuiet = ref.MustParseCapabilityID("quiet")
)

// DefaultInterval is how often a logged-in participant is prompted.
const DefaultInterval = 10 * time.Minute

// Config holds the prompter's collaborators.
type Config struct {
	// Central is the broker pool carrying sessions and the wire
	// channels.
	Central *broker.Pool

	// Self is Central's participant identity, the sender of every
	// prompt.
	Self ref.ParticipantID

	// Interval overrides DefaultInterval when positive.
	Interval time.Duration

	Logger *slog.Logger
}

// Service is the prompter room.
type Service struct {
	central   *broker.Pool
	sessions  *session.Manager
	codec     *dialog.Codec
	scheduler *room.Scheduler
	self      ref.ParticipantID
	interval  time.Duration
	logger    *slog.Logger

	mu      sync.Mutex
	entries map[ref.ParticipantID]cron.EntryID
}

func New(cfg Config) (*Service, error) {
	if cfg.Central == nil {
		return nil, fmt.Errorf("prompter: central pool is required")
	}
	if cfg.Self.IsZero() {
		return nil, fmt.Errorf("prompter: self participant identity is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Service{
		central:   cfg.Central,
		sessions:  session.NewManager(cfg.Central),
		codec:     dialog.NewCodec(logger),
		scheduler: room.NewScheduler(logger),
		self:      cfg.Self,
		interval:  interval,
		logger:    logger.With("component", "prompter"),
		entries:   make(map[ref.ParticipantID]cron.EntryID),
	}, nil
}

func (s *Service) Identity() ref.RoomID { return Room }

func (s *Service) AdvertisedCapabilities() []ref.CapabilityID {
	return []ref.CapabilityID{capQuiet}
}

func (s *Service) Startup(context.Context) error {
	s.scheduler.Start()
	return nil
}

func (s *Service) Shutdown(context.Context) error {
	s.scheduler.Stop()
	return nil
}

// HandleRequest serves the quiet capability: toggle the requesting
// participant's quiet flag.
func (s *Service) HandleRequest(ctx context.Context, pkg *ticket.CapabilityPackage, req *document.Request) (*ticket.ActionPackage, error) {
	participant := req.Ticket.From()
	sess, found, err := s.sessions.Lookup(ctx, participant)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("prompter: no session for %s", participant)
	}

	sess.Quiet = !sess.Quiet
	if err := s.sessions.Store(ctx, sess); err != nil {
		return nil, err
	}

	action := ticket.NewActionPackage(pkg, Room)
	if sess.Quiet {
		action.Message = "quiet mode on"
	} else {
		action.Message = "quiet mode off"
	}
	return action, nil
}

func (s *Service) HandleResponses(context.Context, *document.Request, []*document.Response) {}

// HandleAnnouncement tracks session logins and logouts, keeping one
// scheduled prompt per logged-in participant.
func (s *Service) HandleAnnouncement(ctx context.Context, announcement *document.Announcement) {
	switch announcement.Kind {
	case document.SessionLogin:
		s.schedule(announcement.Participant)
	case document.SessionLogout:
		s.unschedule(announcement.Participant)
	}
}

func (s *Service) schedule(participant ref.ParticipantID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.entries[participant]; exists {
		return
	}
	spec := fmt.Sprintf("@every %s", s.interval)
	id, err := s.scheduler.Schedule(spec, "prompt "+participant.String(), func() {
		s.prompt(participant)
	})
	if err != nil {
		s.logger.Error("scheduling prompt", "participant", participant.String(), "error", err)
		return
	}
	s.entries[participant] = id
}

func (s *Service) unschedule(participant ref.ParticipantID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, exists := s.entries[participant]; exists {
		s.scheduler.Remove(id)
		delete(s.entries, participant)
	}
}

// prompt runs on the scheduler pool, never on the dispatch goroutine.
func (s *Service) prompt(participant ref.ParticipantID) {
	ctx := context.Background()
	sess, found, err := s.sessions.Lookup(ctx, participant)
	if err != nil {
		s.logger.Error("looking up session for prompt", "error", err)
		return
	}
	if !found || !sess.LoggedIn() || sess.Quiet {
		return
	}

	message := "is there anything you need?"
	if sess.Kind == session.Text {
		frame := participant.String() + "::" + message
		if err := s.central.PublishText(ctx, broker.TextToChannel(), frame); err != nil {
			s.logger.Error("publishing text prompt", "error", err)
		}
		return
	}

	out := &dialog.Response{
		From:     s.self,
		To:       participant,
		Language: sess.Language,
		Message:  message,
	}
	data, err := s.codec.Encode(dialog.Header{To: participant}, out)
	if err != nil {
		s.logger.Error("encoding prompt", "error", err)
		return
	}
	if err := s.central.Publish(ctx, broker.ToChannel(), data); err != nil {
		s.logger.Error("publishing prompt", "error", err)
	}
}
