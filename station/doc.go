// Copyright 2026 The Atrium Authors
// SPDX-License-Identifier: Apache-2.0

// Package station bridges the dialog wire to the document bus.
//
// The station subscribes to the Central "from" channels, decodes each
// inbound dialog request, and maintains the sender's session: created
// on first contact, touched on every contact, attached to a person on
// login and detached on logout. Requests that need capability work are
// turned into a ticket and a bus request; once the rooms' responses
// are collected the station serializes dialog responses back out on
// the "to" channels and closes the ticket.
//
// Two wire surfaces exist. Serialized participants exchange CBOR
// dialog frames on the byte channels. Plain-text consoles use the
// text channels, one "<participant>::<text>" frame per line; the
// station answers them in the same shape.
//
// Free-text requests with no explicit capabilities are interpreted by
// fuzzy-ranking the directory's capability names against the message.
//
// A room whose action result is raw media bytes never puts them on the
// wire; the station caches the bytes and the outbound response carries
// only the short-lived cache key.
//
// Failures on the wire path are recorded in the error log, a set of
// counter-keyed broker hashes with a thirty day retention.
package station
