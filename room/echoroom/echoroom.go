// Copyright 2026 The Atrium Authors
// SPDX-License-Identifier: Apache-2.0

// Package echoroom is the smallest useful room: it repeats messages
// back and spells words out. It doubles as the end-to-end smoke test
// target for the console path.
package echoroom

import (
	"context"
	"log/slog"
	"strings"

	"github.com/atrium-foundation/atrium/document"
	"github.com/atrium-foundation/atrium/lib/ref"
	"github.com/atrium-foundation/atrium/ticket"
)

var (
	// Room is the echo room's bus identity.
	Room = ref.MustParseRoomID("echo")

	capEcho  = ref.MustParseCapabilityID("echo")
	capSpell = ref.MustParseCapabilityID("spell_word")
)

// Service answers the echo and spell_word capabilities.
type Service struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Service {
	return &Service{logger: logger.With("component", "echoroom")}
}

func (s *Service) Identity() ref.RoomID { return Room }

func (s *Service) AdvertisedCapabilities() []ref.CapabilityID {
	return []ref.CapabilityID{capEcho, capSpell}
}

func (s *Service) Startup(context.Context) error  { return nil }
func (s *Service) Shutdown(context.Context) error { return nil }

func (s *Service) HandleRequest(ctx context.Context, pkg *ticket.CapabilityPackage, req *document.Request) (*ticket.ActionPackage, error) {
	text := pkg.SentenceFragment
	if text == "" {
		text = req.Message
	}

	action := ticket.NewActionPackage(pkg, Room)
	switch pkg.Capability {
	case capEcho:
		if text == "" {
			text = "echo"
		}
		action.Message = text
	case capSpell:
		word := firstWord(text)
		if word == "" {
			action.Message = "give me a word to spell"
			break
		}
		action.Message = spell(word)
		action.Explanation = "spelling of " + word
	}
	return action, nil
}

func (s *Service) HandleResponses(context.Context, *document.Request, []*document.Response) {}
func (s *Service) HandleAnnouncement(context.Context, *document.Announcement)              {}

func firstWord(text string) string {
	for _, field := range strings.Fields(text) {
		// Skip the capability-ish leading words a console user types,
		// so "spell cat" spells "cat" rather than "spell".
		if strings.EqualFold(field, "spell") {
			continue
		}
		return field
	}
	return ""
}

func spell(word string) string {
	letters := strings.Split(strings.ToUpper(word), "")
	return strings.Join(letters, " ")
}
