// Copyright 2026 The Atrium Authors
// SPDX-License-Identifier: Apache-2.0

package broker

import (
	"fmt"

	"github.com/atrium-foundation/atrium/lib/ref"
)

// This file is the key registry: the single place where broker key and
// channel names are spelled out. One function per logical entity, each
// returning a Key or Channel tagged with its required pool. Nothing
// outside this file constructs a key by hand.

// TicketCounterKey is the Central counter that mints ticket IDs.
func TicketCounterKey() Key {
	return Key{name: "atrium:ticket:next", pool: PoolCentral}
}

// DocumentCounterKey is the Central counter that mints internal
// document IDs.
func DocumentCounterKey() Key {
	return Key{name: "atrium:document:next", pool: PoolCentral}
}

// CandidateCounterKey is the Central counter that mints capability
// package IDs.
func CandidateCounterKey() Key {
	return Key{name: "atrium:candidate:next", pool: PoolCentral}
}

// ParticipantCounterKey is the Central counter from which Central
// mints participant IDs for newly seen remotes.
func ParticipantCounterKey() Key {
	return Key{name: "atrium:participant:next", pool: PoolCentral}
}

// SessionHashKey is the Central hash holding one participant's session
// fields (person, station, language, kind, quiet, timestamp).
func SessionHashKey(participant ref.ParticipantID) Key {
	return Key{name: "atrium:session:" + participant.String(), pool: PoolCentral}
}

// MediaCacheCounterKey is the Central counter that mints media cache
// entry IDs.
func MediaCacheCounterKey() Key {
	return Key{name: "atrium:mediacache:next", pool: PoolCentral}
}

// MediaCacheHashKey is the Central hash holding one short-lived media
// cache entry ({format, bytes, digest}).
func MediaCacheHashKey(id int64) Key {
	return Key{name: fmt.Sprintf("atrium:mediacache:%d", id), pool: PoolCentral}
}

// ErrorCounterKey is the Central counter that mints error record IDs.
func ErrorCounterKey() Key {
	return Key{name: "atrium:error:next", pool: PoolCentral}
}

// ErrorHashKey is the Central hash holding one recorded error
// ({source, message, timestamp}).
func ErrorHashKey(id int64) Key {
	return Key{name: fmt.Sprintf("atrium:error:%d", id), pool: PoolCentral}
}

// WeatherCacheKey is the Local cache slot for one city's weather
// payload. The weather room owns the TTL policy.
func WeatherCacheKey(cityID string) Key {
	return Key{name: "atrium:weather:" + cityID, pool: PoolLocal}
}

// TreebankTagKey is the Local hash describing one Penn Treebank tag,
// consumed by the NLP collaborators.
func TreebankTagKey(tag string) Key {
	return Key{name: "atrium:treebank:" + tag, pool: PoolLocal}
}

// StationHashKey is the Local hash holding this node's station
// identity and configuration.
func StationHashKey() Key {
	return Key{name: "atrium:station", pool: PoolLocal}
}

// FromChannel is the Central byte channel carrying dialog frames from
// remote participants to Atrium Central.
func FromChannel() Channel {
	return Channel{name: "atrium:channel:from", pool: PoolCentral, kind: ByteChannel}
}

// ToChannel is the Central byte channel carrying dialog frames from
// Atrium Central to remote participants. Every station subscribes;
// the frame header says who should decode.
func ToChannel() Channel {
	return Channel{name: "atrium:channel:to", pool: PoolCentral, kind: ByteChannel}
}

// TextFromChannel is the Central text channel carrying
// "<participant>::<text>" frames from plain-text consoles to Central.
func TextFromChannel() Channel {
	return Channel{name: "atrium:channel:text:from", pool: PoolCentral, kind: TextChannel}
}

// TextToChannel is the Central text channel carrying
// "<participant>::<text>" frames from Central to plain-text consoles.
func TextToChannel() Channel {
	return Channel{name: "atrium:channel:text:to", pool: PoolCentral, kind: TextChannel}
}
