// Copyright 2026 The Atrium Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides Atrium's standard CBOR encoding configuration.
//
// Every binary payload in Atrium — dialog frames on the broker byte
// channels, cached media records, journal snapshots — goes through this
// package rather than importing fxamacker/cbor directly. Centralizing
// the encoder and decoder modes guarantees that all components agree on
// one encoding dialect and that a type marshaled by one process decodes
// identically in another.
//
// Encoding uses Core Deterministic Encoding (RFC 8949 §4.2): sorted map
// keys, smallest integer encoding, no indefinite-length items. The same
// logical value always produces identical bytes, which keeps content
// digests over encoded payloads stable.
//
// Types implementing encoding.TextMarshaler (ref.ParticipantID,
// ref.RoomID, ref.CapabilityID, ref.Language) serialize as CBOR text
// strings; without that setting their unexported fields would encode as
// empty maps and the identity would be lost on the wire. Unknown fields
// are ignored on decode for forward compatibility between mixed-version
// stations and Central.
package codec
