// Copyright 2026 The Atrium Authors
// SPDX-License-Identifier: Apache-2.0

package remote

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/atrium-foundation/atrium/broker"
	"github.com/atrium-foundation/atrium/dialog"
	"github.com/atrium-foundation/atrium/lib/ref"
	"github.com/atrium-foundation/atrium/media"
)

// DefaultTimeout bounds how long Ask waits for the first response.
const DefaultTimeout = 30 * time.Second

// Config holds the client's identity and policy.
type Config struct {
	// Central is the broker pool shared with Atrium Central.
	Central *broker.Pool

	// Self is this client's participant identity. Leave zero to mint
	// a fresh one from the participant counter.
	Self ref.ParticipantID

	// Server is Central's participant identity on the wire.
	Server ref.ParticipantID

	// Timeout bounds Ask. Zero means DefaultTimeout.
	Timeout time.Duration

	// Notify, when set, receives responses that arrive while no Ask
	// is waiting (scheduled prompts, late answers).
	Notify func(*dialog.Response)

	Logger *slog.Logger
}

// Client is one remote participant on the dialog wire.
type Client struct {
	central *broker.Pool
	codec   *dialog.Codec
	self    ref.ParticipantID
	server  ref.ParticipantID
	timeout time.Duration
	notify  func(*dialog.Response)
	logger  *slog.Logger

	media *media.Cache

	sub       *broker.Subscription
	responses chan *dialog.Response
	asking    chan struct{}
}

// MintParticipant draws a fresh participant identity from the Central
// participant counter, "<prefix>-<n>".
func MintParticipant(ctx context.Context, central *broker.Pool, prefix string) (ref.ParticipantID, error) {
	counter := broker.NewCounter(central, broker.ParticipantCounterKey())
	n, err := counter.Next(ctx)
	if err != nil {
		return ref.ParticipantID{}, fmt.Errorf("remote: minting participant ID: %w", err)
	}
	return ref.ParseParticipantID(fmt.Sprintf("%s-%d", prefix, n))
}

// Dial builds a client and opens its response subscription.
func Dial(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.Central == nil {
		return nil, fmt.Errorf("remote: central pool is required")
	}
	if cfg.Server.IsZero() {
		return nil, fmt.Errorf("remote: server participant identity is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	self := cfg.Self
	if self.IsZero() {
		var err error
		self, err = MintParticipant(ctx, cfg.Central, "console")
		if err != nil {
			return nil, err
		}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	cache, err := media.NewCache(cfg.Central, logger)
	if err != nil {
		return nil, err
	}

	c := &Client{
		central:   cfg.Central,
		media:     cache,
		codec:     dialog.NewCodec(logger),
		self:      self,
		server:    cfg.Server,
		timeout:   timeout,
		notify:    cfg.Notify,
		logger:    logger.With("component", "remote", "participant", self.String()),
		responses: make(chan *dialog.Response, 16),
		asking:    make(chan struct{}, 1),
	}

	sub, err := cfg.Central.Subscribe(ctx, broker.ToChannel(), c.receive)
	if err != nil {
		return nil, err
	}
	c.sub = sub
	return c, nil
}

// Self returns the client's participant identity.
func (c *Client) Self() ref.ParticipantID { return c.self }

// Close stops the response subscription.
func (c *Client) Close() {
	c.sub.Close()
}

func (c *Client) receive(data []byte) {
	d, err := c.codec.Decode(c.self, data)
	if err != nil {
		c.logger.Warn("discarding malformed frame", "error", err)
		return
	}
	if d == nil {
		return
	}
	resp, ok := d.(*dialog.Response)
	if !ok {
		c.logger.Warn("request arrived on the outbound channel",
			"from", d.Sender().String())
		return
	}

	select {
	case <-c.asking:
		// An Ask is waiting; hand the response over.
		c.responses <- resp
	default:
		if c.notify != nil {
			c.notify(resp)
			return
		}
		c.logger.Info("unsolicited response", "message", resp.Message)
	}
}

// Send publishes one request without waiting for an answer. From, To,
// and Language are filled in when unset; Capabilities is normalized
// to a present set.
func (c *Client) Send(ctx context.Context, req *dialog.Request) error {
	if req.From.IsZero() {
		req.From = c.self
	}
	if req.To.IsZero() {
		req.To = c.server
	}
	if req.Language.IsZero() {
		req.Language = ref.DefaultLanguage
	}
	if req.Capabilities == nil {
		req.Capabilities = []ref.CapabilityID{}
	}

	data, err := c.codec.Encode(dialog.Header{To: req.To}, req)
	if err != nil {
		return err
	}
	return c.central.Publish(ctx, broker.FromChannel(), data)
}

// Ask sends a request and waits for the first response, up to the
// client's timeout. One Ask at a time; a Client is one conversation.
func (c *Client) Ask(ctx context.Context, req *dialog.Request) (*dialog.Response, error) {
	select {
	case c.asking <- struct{}{}:
	default:
		return nil, fmt.Errorf("remote: an Ask is already in flight")
	}

	// Drop any stale answer left behind by a timed-out exchange.
	for len(c.responses) > 0 {
		<-c.responses
	}

	if err := c.Send(ctx, req); err != nil {
		<-c.asking
		return nil, err
	}

	select {
	case resp := <-c.responses:
		return resp, nil
	case <-time.After(c.timeout):
		select {
		case <-c.asking:
		default:
		}
		return nil, fmt.Errorf("remote: no response within %s", c.timeout)
	case <-ctx.Done():
		select {
		case <-c.asking:
		default:
		}
		return nil, ctx.Err()
	}
}

// AskText is Ask for plain free text.
func (c *Client) AskText(ctx context.Context, message string) (*dialog.Response, error) {
	return c.Ask(ctx, &dialog.Request{Message: message})
}

// Login authenticates this client's session.
func (c *Client) Login(ctx context.Context, username, password string) (*dialog.LoginResponsePayload, error) {
	resp, err := c.Ask(ctx, &dialog.Request{
		Payload: &dialog.LoginPayload{UserName: username, Password: password},
	})
	if err != nil {
		return nil, err
	}
	result, ok := resp.Payload.(*dialog.LoginResponsePayload)
	if !ok {
		return nil, fmt.Errorf("remote: login answered with %q", resp.Message)
	}
	if !result.LoggedIn() {
		return nil, fmt.Errorf("remote: %s", result.Message)
	}
	return result, nil
}

// Media fetches the cache entry a response's media payload points at.
// Entries expire; fetch as soon as the payload arrives.
func (c *Client) Media(ctx context.Context, payload *dialog.MediaPayload) (*media.Entry, error) {
	entry, found, err := c.media.Get(ctx, payload.Key)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("remote: media entry %s has expired", media.Key(payload.Key))
	}
	return entry, nil
}

// Logout detaches the person from this client's session.
func (c *Client) Logout(ctx context.Context) error {
	resp, err := c.Ask(ctx, &dialog.Request{Payload: &dialog.LoginPayload{}})
	if err != nil {
		return err
	}
	if resp.Message != "logged out" {
		return fmt.Errorf("remote: logout answered with %q", resp.Message)
	}
	return nil
}
