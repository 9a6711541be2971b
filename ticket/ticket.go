// Copyright 2026 The Atrium Authors
// SPDX-License-Identifier: Apache-2.0

package ticket

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/atrium-foundation/atrium/broker"
	"github.com/atrium-foundation/atrium/lib/ref"
)

// ErrTicketClosed is returned by any mutation attempted after Close.
var ErrTicketClosed = errors.New("ticket: ticket is closed")

// DanglingReferenceError reports an action package recorded against a
// candidate that is not in the journal. This is fatal to the ticket it
// occurs on — the router closes the ticket without an answer — but
// never propagates to other tickets.
type DanglingReferenceError struct {
	// Ticket is the ticket the action was aimed at.
	Ticket ID
	// CandidateID is the missing candidate reference.
	CandidateID int64
}

func (e *DanglingReferenceError) Error() string {
	return fmt.Sprintf("ticket %s: action references candidate %d which is not in the journal",
		e.Ticket, e.CandidateID)
}

// IsDanglingReference reports whether err is a *DanglingReferenceError.
func IsDanglingReference(err error) bool {
	var dangling *DanglingReferenceError
	return errors.As(err, &dangling)
}

// ID is a ticket identifier ("TKT<n>", n from the Central ticket
// counter). The zero value is not valid.
type ID struct {
	id string
}

// String returns the ticket ID string.
func (i ID) String() string { return i.id }

// IsZero reports whether the ID is the zero value.
func (i ID) IsZero() bool { return i.id == "" }

// Ticket correlates one unit of client work from arrival to final
// response. A ticket is never shared across two independent units of
// work; its journal is created with it and dies with it.
//
// The ticket's mutex guards both its own fields and the journal, so
// rooms on different goroutines can append concurrently while the
// arrival order of entries stays well defined.
type Ticket struct {
	mu     sync.Mutex
	id     ID
	from   ref.ParticipantID
	person uuid.UUID
	closed bool

	journal *Journal
}

// Open creates a ticket for work originating from the given
// participant, minting its ID from the ticket counter.
func Open(ctx context.Context, counter *broker.Counter, from ref.ParticipantID) (*Ticket, error) {
	if from.IsZero() {
		return nil, fmt.Errorf("ticket: opening ticket with zero participant")
	}
	n, err := counter.Next(ctx)
	if err != nil {
		return nil, fmt.Errorf("ticket: minting ticket ID: %w", err)
	}
	t := &Ticket{
		id:   ID{id: fmt.Sprintf("TKT%d", n)},
		from: from,
	}
	t.journal = &Journal{ticket: t}
	return t, nil
}

// ID returns the ticket identifier.
func (t *Ticket) ID() ID {
	return t.id
}

// From returns the participant whose work this ticket tracks.
func (t *Ticket) From() ref.ParticipantID {
	return t.from
}

// Journal returns the ticket's journal. The journal is owned by the
// ticket; callers must not retain it past Close.
func (t *Ticket) Journal() *Journal {
	return t.journal
}

// Person returns the person attached to this ticket's session, or
// uuid.Nil when the participant is not logged in.
func (t *Ticket) Person() uuid.UUID {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.person
}

// SetPerson attaches a logged-in person to the ticket.
func (t *Ticket) SetPerson(person uuid.UUID) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrTicketClosed
	}
	t.person = person
	return nil
}

// Close marks the ticket terminal. Only the component that owns
// completion calls Close; a second Close (or any later mutation)
// fails with ErrTicketClosed.
func (t *Ticket) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrTicketClosed
	}
	t.closed = true
	return nil
}

// Closed reports whether the ticket has been closed.
func (t *Ticket) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

func (t *Ticket) String() string {
	return t.id.String()
}

// Journal is the ordered, ticket-owned record of intermediate
// artifacts. All entries are final once appended; there is no update
// or reorder operation by design.
type Journal struct {
	ticket *Ticket

	context    []string
	sentences  []string
	candidates []*CapabilityPackage
	actions    []*ActionPackage
}

// AddContext appends a conversational context line.
func (j *Journal) AddContext(line string) error {
	j.ticket.mu.Lock()
	defer j.ticket.mu.Unlock()
	if j.ticket.closed {
		return ErrTicketClosed
	}
	j.context = append(j.context, line)
	return nil
}

// AddSentence appends a parsed sentence fragment.
func (j *Journal) AddSentence(fragment string) error {
	j.ticket.mu.Lock()
	defer j.ticket.mu.Unlock()
	if j.ticket.closed {
		return ErrTicketClosed
	}
	j.sentences = append(j.sentences, fragment)
	return nil
}

// AddCandidate appends a candidate capability package.
func (j *Journal) AddCandidate(pkg *CapabilityPackage) error {
	j.ticket.mu.Lock()
	defer j.ticket.mu.Unlock()
	if j.ticket.closed {
		return ErrTicketClosed
	}
	j.candidates = append(j.candidates, pkg)
	return nil
}

// AddAction appends an action package answering an existing
// candidate. Fails with *DanglingReferenceError if the candidate
// referenced by pkg.CandidateID has not been added to this journal.
func (j *Journal) AddAction(pkg *ActionPackage) error {
	j.ticket.mu.Lock()
	defer j.ticket.mu.Unlock()
	if j.ticket.closed {
		return ErrTicketClosed
	}
	found := false
	for _, candidate := range j.candidates {
		if candidate.ID == pkg.CandidateID {
			found = true
			break
		}
	}
	if !found {
		return &DanglingReferenceError{Ticket: j.ticket.id, CandidateID: pkg.CandidateID}
	}
	j.actions = append(j.actions, pkg)
	return nil
}

// Context returns a copy of the context lines in arrival order.
func (j *Journal) Context() []string {
	j.ticket.mu.Lock()
	defer j.ticket.mu.Unlock()
	return append([]string(nil), j.context...)
}

// Sentences returns a copy of the sentence fragments in arrival order.
func (j *Journal) Sentences() []string {
	j.ticket.mu.Lock()
	defer j.ticket.mu.Unlock()
	return append([]string(nil), j.sentences...)
}

// Candidates returns a copy of the candidate packages in arrival order.
func (j *Journal) Candidates() []*CapabilityPackage {
	j.ticket.mu.Lock()
	defer j.ticket.mu.Unlock()
	return append([]*CapabilityPackage(nil), j.candidates...)
}

// Actions returns a copy of the action packages in arrival order.
func (j *Journal) Actions() []*ActionPackage {
	j.ticket.mu.Lock()
	defer j.ticket.mu.Unlock()
	return append([]*ActionPackage(nil), j.actions...)
}
