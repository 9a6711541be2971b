// Copyright 2026 The Atrium Authors
// SPDX-License-Identifier: Apache-2.0

package router

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/atrium-foundation/atrium/broker"
	"github.com/atrium-foundation/atrium/catalog"
	"github.com/atrium-foundation/atrium/document"
	"github.com/atrium-foundation/atrium/lib/config"
	"github.com/atrium-foundation/atrium/lib/ref"
	"github.com/atrium-foundation/atrium/room"
	"github.com/atrium-foundation/atrium/ticket"
)

// ControllerRoom is the router's own identity on the bus.
var ControllerRoom = ref.MustParseRoomID("controller")

// Config holds the router's collaborators.
type Config struct {
	// Bus is the document bus shared with every room.
	Bus *room.Bus

	// Central is the shared broker pool, for ticket and candidate
	// counters.
	Central *broker.Pool

	// Catalog is the global capability catalog.
	Catalog *catalog.Catalog

	// Self is the participant identity used for internally opened
	// tickets.
	Self ref.ParticipantID

	// Timeouts bounds startup, collection, and shutdown.
	Timeouts config.Timeouts

	// Logger receives operational messages.
	Logger *slog.Logger
}

// Router supervises the rooms and owns the capability directory.
type Router struct {
	bus      *room.Bus
	catalog  *catalog.Catalog
	logger   *slog.Logger
	self     ref.ParticipantID
	timeouts config.Timeouts

	ticketCounter    *broker.Counter
	candidateCounter *broker.Counter

	controller     *controllerService
	controllerNode *room.Node
	nodes          []*room.Node

	directory *directory

	mu        sync.Mutex
	started   bool
	integrity []*IntegrityError
}

// New builds a router and registers its controller room on the bus.
func New(cfg Config) (*Router, error) {
	if cfg.Bus == nil || cfg.Central == nil || cfg.Catalog == nil {
		return nil, fmt.Errorf("router: bus, central pool, and catalog are all required")
	}
	if cfg.Self.IsZero() {
		return nil, fmt.Errorf("router: self participant identity is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	r := &Router{
		bus:              cfg.Bus,
		catalog:          cfg.Catalog,
		logger:           logger.With("component", "router"),
		self:             cfg.Self,
		timeouts:         cfg.Timeouts,
		ticketCounter:    broker.NewCounter(cfg.Central, broker.TicketCounterKey()),
		candidateCounter: broker.NewCounter(cfg.Central, broker.CandidateCounterKey()),
		directory:        newDirectory(),
	}
	r.controller = &controllerService{
		logger:    r.logger,
		collected: make(chan []*document.Response, 4),
	}
	node, err := room.NewNode(r.controller, cfg.Bus, logger)
	if err != nil {
		return nil, err
	}
	r.controllerNode = node
	return r, nil
}

// Register wraps the service in a node on the bus and returns the
// node, through which the service posts its own requests and
// announcements. All registration happens before Start; the room set
// is fixed for the life of the process.
func (r *Router) Register(service room.Service) (*room.Node, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return nil, fmt.Errorf("router: registering %s after start", service.Identity())
	}
	node, err := room.NewNode(service, r.bus, r.logger)
	if err != nil {
		return nil, err
	}
	r.nodes = append(r.nodes, node)
	return node, nil
}

// Start brings every room up, builds the capability directory, checks
// it against the catalog, and announces the node open for work. Any
// single room failing to start fails the whole call; the caller
// aborts the process.
func (r *Router) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return fmt.Errorf("router: already started")
	}
	r.started = true
	nodes := append([]*room.Node{r.controllerNode}, r.nodes...)
	r.mu.Unlock()

	startCtx, cancel := context.WithTimeout(ctx, r.timeouts.Startup)
	defer cancel()

	group, groupCtx := errgroup.WithContext(startCtx)
	for _, node := range nodes {
		group.Go(func() error {
			return node.Start(groupCtx)
		})
	}
	if err := group.Wait(); err != nil {
		return fmt.Errorf("router: startup: %w", err)
	}

	if err := r.collect(ctx); err != nil {
		return err
	}
	r.checkIntegrity(ctx)

	if err := r.controllerNode.PostAnnouncement(ctx, document.ServerStartup, ref.ParticipantID{}); err != nil {
		return err
	}
	r.logger.Info("router running",
		"rooms", len(nodes),
		"capabilities", len(r.directory.capabilities()),
		"integrity_errors", len(r.IntegrityReport()))
	return nil
}

// collect broadcasts the what-capabilities request and builds the
// directory from the answers.
func (r *Router) collect(ctx context.Context) error {
	tkt, err := ticket.Open(ctx, r.ticketCounter, r.self)
	if err != nil {
		return fmt.Errorf("router: opening collection ticket: %w", err)
	}
	defer tkt.Close()

	pkg, err := r.NewCandidate(ctx, document.WhatCapabilities)
	if err != nil {
		return err
	}
	if err := tkt.Journal().AddCandidate(pkg); err != nil {
		return err
	}

	request := &document.Request{
		Ticket:     tkt,
		Candidates: []*ticket.CapabilityPackage{pkg},
	}
	if err := r.controllerNode.PostRequest(ctx, request); err != nil {
		return fmt.Errorf("router: posting what-capabilities: %w", err)
	}

	select {
	case responses := <-r.controller.collected:
		entries := make(map[ref.CapabilityID][]ref.RoomID)
		for _, response := range responses {
			action := ticket.FindAction(document.WhatCapabilities, response.Actions)
			if action == nil {
				continue
			}
			if err := tkt.Journal().AddAction(action); err != nil {
				return fmt.Errorf("router: recording advertisement from %s: %w", response.From, err)
			}
			advertised, ok := action.Result.([]ref.CapabilityID)
			if !ok {
				r.logger.Error("malformed capability advertisement",
					"room", response.From.String())
				continue
			}
			for _, capability := range advertised {
				entries[capability] = append(entries[capability], response.From)
			}
		}
		r.directory.replace(entries)
		return nil

	case <-time.After(r.timeouts.Collect):
		return fmt.Errorf("router: capability collection timed out after %s", r.timeouts.Collect)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// checkIntegrity compares directory and catalog both ways. Violations
// are reported, never fatal; the node runs degraded.
func (r *Router) checkIntegrity(ctx context.Context) {
	catalogCapabilities, err := r.catalog.Capabilities(ctx)
	if err != nil {
		r.logger.Error("catalog unavailable, skipping integrity checks", "error", err)
		return
	}
	known := make(map[ref.CapabilityID]bool, len(catalogCapabilities))
	for _, capability := range catalogCapabilities {
		known[capability] = true
	}

	var violations []*IntegrityError
	for _, capability := range r.directory.capabilities() {
		if !known[capability] {
			violations = append(violations, &IntegrityError{
				Type:       TypeIUnknownCapability,
				Capability: capability,
				Rooms:      r.directory.lookup(capability),
			})
		}
	}
	for _, capability := range catalogCapabilities {
		// The control capability is answered mechanically by every
		// room and never advertised, so it is never "unclaimed".
		if capability == document.WhatCapabilities {
			continue
		}
		if len(r.directory.lookup(capability)) == 0 {
			violations = append(violations, &IntegrityError{
				Type:       TypeIIUnclaimedCapability,
				Capability: capability,
			})
		}
	}

	for _, violation := range violations {
		r.logger.Error("directory integrity violation",
			"type", violation.Type.String(),
			"capability", violation.Capability.String())
	}

	r.mu.Lock()
	r.integrity = violations
	r.mu.Unlock()
}

// IntegrityReport returns the violations found at the last
// collection.
func (r *Router) IntegrityReport() []*IntegrityError {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*IntegrityError(nil), r.integrity...)
}

// OpenTicket opens a ticket for work arriving from the given
// participant.
func (r *Router) OpenTicket(ctx context.Context, from ref.ParticipantID) (*ticket.Ticket, error) {
	return ticket.Open(ctx, r.ticketCounter, from)
}

// NewCandidate mints a capability package with a deployment-unique ID.
func (r *Router) NewCandidate(ctx context.Context, capability ref.CapabilityID) (*ticket.CapabilityPackage, error) {
	id, err := r.candidateCounter.Next(ctx)
	if err != nil {
		return nil, fmt.Errorf("router: minting candidate ID: %w", err)
	}
	return ticket.NewCapabilityPackage(id, capability), nil
}

// RouteRequest records the candidate in the ticket's journal and
// returns the rooms advertising its capability. An empty result means
// no handler is available, which is not an error; some capabilities
// are best-effort.
func (r *Router) RouteRequest(tkt *ticket.Ticket, pkg *ticket.CapabilityPackage) ([]ref.RoomID, error) {
	if err := tkt.Journal().AddCandidate(pkg); err != nil {
		return nil, err
	}
	return r.directory.lookup(pkg.Capability), nil
}

// Lookup returns the rooms advertising a capability without touching
// any ticket.
func (r *Router) Lookup(capability ref.CapabilityID) []ref.RoomID {
	return r.directory.lookup(capability)
}

// Capabilities returns every capability in the directory, sorted.
func (r *Router) Capabilities() []ref.CapabilityID {
	return r.directory.capabilities()
}

// Shutdown announces the stop, then halts every room within the
// shutdown timeout. Rooms still running at the deadline are cancelled
// forcibly.
func (r *Router) Shutdown(ctx context.Context) error {
	if err := r.controllerNode.PostAnnouncement(ctx, document.ServerShutdown, ref.ParticipantID{}); err != nil {
		r.logger.Warn("posting shutdown announcement", "error", err)
	}

	stopCtx, cancel := context.WithTimeout(ctx, r.timeouts.Shutdown)
	defer cancel()

	r.mu.Lock()
	nodes := append([]*room.Node{}, r.nodes...)
	nodes = append(nodes, r.controllerNode)
	r.mu.Unlock()

	var group errgroup.Group
	for _, node := range nodes {
		group.Go(func() error {
			return node.Stop(stopCtx)
		})
	}
	err := group.Wait()
	r.logger.Info("router stopped", "rooms", len(nodes))
	return err
}

// controllerService is the router's presence on the bus. It
// advertises nothing and exists to post the collection broadcast and
// receive its responses.
type controllerService struct {
	logger    *slog.Logger
	collected chan []*document.Response
}

func (c *controllerService) Identity() ref.RoomID                       { return ControllerRoom }
func (c *controllerService) AdvertisedCapabilities() []ref.CapabilityID { return nil }
func (c *controllerService) Startup(context.Context) error              { return nil }
func (c *controllerService) Shutdown(context.Context) error             { return nil }

func (c *controllerService) HandleRequest(context.Context, *ticket.CapabilityPackage, *document.Request) (*ticket.ActionPackage, error) {
	return nil, fmt.Errorf("controller advertises no capabilities")
}

func (c *controllerService) HandleResponses(ctx context.Context, request *document.Request, responses []*document.Response) {
	select {
	case c.collected <- responses:
	default:
		c.logger.Error("collection channel full, dropping response set",
			"request", request.ID)
	}
}

func (c *controllerService) HandleAnnouncement(ctx context.Context, announcement *document.Announcement) {
}
