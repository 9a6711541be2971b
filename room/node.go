// Copyright 2026 The Atrium Authors
// SPDX-License-Identifier: Apache-2.0

package room

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/atrium-foundation/atrium/document"
	"github.com/atrium-foundation/atrium/lib/ref"
	"github.com/atrium-foundation/atrium/ticket"
)

// dispatchQueueDepth bounds each node's inbound queue. A room that
// falls this far behind starts missing documents rather than stalling
// the bus.
const dispatchQueueDepth = 256

// pendingRequest is one posted request awaiting its full response set.
type pendingRequest struct {
	request   *document.Request
	expected  int
	responses []*document.Response
}

// Node wraps one Service with its dispatch goroutine, bounded queue,
// and response cabinet, and connects it to the bus.
type Node struct {
	service  Service
	bus      *Bus
	logger   *slog.Logger
	identity ref.RoomID

	advertised     map[ref.CapabilityID]bool
	advertisedList []ref.CapabilityID

	state atomic.Int32

	queue  chan document.Document
	done   chan struct{}
	runCtx context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	pending map[int64]*pendingRequest
}

// NewNode wraps the service and registers it on the bus. The node is
// Created; nothing is dispatched until Start.
func NewNode(service Service, bus *Bus, logger *slog.Logger) (*Node, error) {
	identity := service.Identity()
	if identity.IsZero() {
		return nil, fmt.Errorf("room: service has zero identity")
	}
	n := &Node{
		service:  service,
		bus:      bus,
		identity: identity,
		logger:   logger.With("room", identity.String()),
		queue:    make(chan document.Document, dispatchQueueDepth),
		done:     make(chan struct{}),
		pending:  make(map[int64]*pendingRequest),
	}
	if err := bus.register(n); err != nil {
		return nil, err
	}
	return n, nil
}

// Identity returns the wrapped service's room identity.
func (n *Node) Identity() ref.RoomID {
	return n.identity
}

// State returns the node's lifecycle position.
func (n *Node) State() State {
	return State(n.state.Load())
}

// Advertised returns the capability set snapshotted at startup.
func (n *Node) Advertised() []ref.CapabilityID {
	return append([]ref.CapabilityID(nil), n.advertisedList...)
}

func (n *Node) transition(from, to State) bool {
	return n.state.CompareAndSwap(int32(from), int32(to))
}

// Start snapshots the advertised capabilities, starts the service,
// and begins dispatching. A startup error leaves the node Stopped and
// is fatal to the process; the supervisor aborts the run.
func (n *Node) Start(ctx context.Context) error {
	if !n.transition(Created, Starting) {
		return fmt.Errorf("room %s: starting from state %s", n.identity, n.State())
	}

	n.advertised = make(map[ref.CapabilityID]bool)
	for _, capability := range n.service.AdvertisedCapabilities() {
		if n.advertised[capability] {
			continue
		}
		n.advertised[capability] = true
		n.advertisedList = append(n.advertisedList, capability)
	}

	if err := n.service.Startup(ctx); err != nil {
		n.state.Store(int32(Stopped))
		return fmt.Errorf("room %s: startup: %w", n.identity, err)
	}

	n.runCtx, n.cancel = context.WithCancel(context.Background())
	go n.dispatchLoop()
	n.state.Store(int32(Running))
	n.logger.Info("room running", "capabilities", len(n.advertisedList))
	return nil
}

// Stop ends dispatch and shuts the service down. The ctx bounds how
// long to wait for the dispatch goroutine; on expiry the shutdown
// proceeds anyway and the goroutine is cancelled behind it.
func (n *Node) Stop(ctx context.Context) error {
	if !n.transition(Running, Stopping) {
		return fmt.Errorf("room %s: stopping from state %s", n.identity, n.State())
	}

	n.cancel()
	select {
	case <-n.done:
	case <-ctx.Done():
		n.logger.Warn("dispatch goroutine did not drain before deadline")
	}

	err := n.service.Shutdown(ctx)
	n.state.Store(int32(Stopped))
	n.logger.Info("room stopped")
	if err != nil {
		return fmt.Errorf("room %s: shutdown: %w", n.identity, err)
	}
	return nil
}

// PostRequest assigns the request this room's identity and a fresh
// document ID, then posts it. Once every addressed room has answered,
// the full response set is delivered to the service's
// HandleResponses. Targeted requests expect one response per target;
// untargeted ones expect a response from every other room on the bus.
func (n *Node) PostRequest(ctx context.Context, req *document.Request) error {
	if n.State() != Running {
		return fmt.Errorf("room %s: posting request while %s", n.identity, n.State())
	}

	id, err := n.bus.NextDocumentID(ctx)
	if err != nil {
		return fmt.Errorf("room %s: minting request document ID: %w", n.identity, err)
	}
	req.ID = id
	req.From = n.identity

	expected := n.bus.Size() - 1
	if len(req.To) > 0 {
		expected = len(req.To)
	}

	if expected > 0 {
		n.mu.Lock()
		n.pending[id] = &pendingRequest{request: req, expected: expected}
		n.mu.Unlock()
	}

	if err := n.bus.Post(req); err != nil {
		n.mu.Lock()
		delete(n.pending, id)
		n.mu.Unlock()
		return err
	}

	// Alone on the bus: the response set is complete and empty.
	if expected == 0 {
		n.service.HandleResponses(ctx, req, nil)
	}
	return nil
}

// PostAnnouncement posts ticketless control traffic from this room.
func (n *Node) PostAnnouncement(ctx context.Context, kind document.AnnouncementKind, participant ref.ParticipantID) error {
	id, err := n.bus.NextDocumentID(ctx)
	if err != nil {
		return fmt.Errorf("room %s: minting announcement document ID: %w", n.identity, err)
	}
	return n.bus.Post(&document.Announcement{
		ID:          id,
		From:        n.identity,
		Kind:        kind,
		Participant: participant,
	})
}

func (n *Node) enqueue(doc document.Document) {
	select {
	case n.queue <- doc:
	default:
		n.logger.Error("dispatch queue full, dropping document",
			"document", doc.DocumentID())
	}
}

func (n *Node) dispatchLoop() {
	defer close(n.done)
	for {
		select {
		case <-n.runCtx.Done():
			// Drain what was already queued, so a shutdown
			// announcement posted just before Stop still reaches the
			// service.
			for {
				select {
				case doc := <-n.queue:
					n.dispatch(doc)
				default:
					return
				}
			}
		case doc := <-n.queue:
			n.dispatch(doc)
		}
	}
}

func (n *Node) dispatch(doc document.Document) {
	switch doc := doc.(type) {
	case *document.Request:
		n.dispatchRequest(doc)
	case *document.Response:
		n.collectResponse(doc)
	case *document.Announcement:
		n.service.HandleAnnouncement(n.runCtx, doc)
	}
}

func (n *Node) dispatchRequest(req *document.Request) {
	if req.From == n.identity {
		// Our own request echoed back by the bus.
		return
	}
	if !req.Targeted(n.identity) {
		return
	}
	targeted := len(req.To) > 0

	var actions []*ticket.ActionPackage
	for _, pkg := range req.Candidates {
		switch {
		case pkg.Capability == document.WhatCapabilities:
			// Answered mechanically; the service never sees it.
			action := ticket.NewActionPackage(pkg, n.identity)
			action.Result = n.Advertised()
			actions = append(actions, action)

		case n.advertised[pkg.Capability]:
			if action := n.invoke(pkg, req); action != nil {
				actions = append(actions, action)
			}

		case targeted:
			// The directory pointed the router here for a capability
			// this room never advertised. Abort the candidate with a
			// labeled internal error; silence would hide the bug.
			err := &UnknownCapabilityError{Room: n.identity, Capability: pkg.Capability}
			n.logger.Error("unadvertised capability dispatched",
				"capability", pkg.Capability.String(),
				"ticket", req.Ticket.ID().String(),
				"error", err)
			action := ticket.NewActionPackage(pkg, n.identity)
			action.Message = "internal error: " + err.Error()
			actions = append(actions, action)
		}
	}

	n.respond(req, actions)
}

// invoke runs the service's request handler for one candidate. A
// handler error or panic costs this candidate its action and nothing
// else; the ticket it belongs to fails alone.
func (n *Node) invoke(pkg *ticket.CapabilityPackage, req *document.Request) (action *ticket.ActionPackage) {
	defer func() {
		if r := recover(); r != nil {
			n.logger.Error("request handler panicked",
				"capability", pkg.Capability.String(),
				"ticket", req.Ticket.ID().String(),
				"panic", r)
			action = nil
		}
	}()

	handled, err := n.service.HandleRequest(n.runCtx, pkg, req)
	if err != nil {
		n.logger.Warn("request handler failed",
			"capability", pkg.Capability.String(),
			"ticket", req.Ticket.ID().String(),
			"error", err)
		return nil
	}
	return handled
}

func (n *Node) respond(req *document.Request, actions []*ticket.ActionPackage) {
	id, err := n.bus.NextDocumentID(n.runCtx)
	if err != nil {
		n.logger.Error("minting response document ID", "error", err)
		return
	}
	response := &document.Response{
		ID:         id,
		Ticket:     req.Ticket,
		From:       n.identity,
		RespondTo:  req.From,
		ResponseTo: req.ID,
		Actions:    actions,
		NoResponse: len(actions) == 0,
	}
	if err := n.bus.Post(response); err != nil {
		n.logger.Error("posting response", "error", err)
	}
}

func (n *Node) collectResponse(resp *document.Response) {
	if resp.RespondTo != n.identity {
		return
	}

	n.mu.Lock()
	p, ok := n.pending[resp.ResponseTo]
	if !ok {
		n.mu.Unlock()
		n.logger.Warn("response to unknown request",
			"request", resp.ResponseTo,
			"from", resp.From.String())
		return
	}
	p.responses = append(p.responses, resp)
	complete := len(p.responses) >= p.expected
	if complete {
		delete(n.pending, resp.ResponseTo)
	}
	n.mu.Unlock()

	if complete {
		n.service.HandleResponses(n.runCtx, p.request, p.responses)
	}
}
