// Copyright 2026 The Atrium Authors
// SPDX-License-Identifier: Apache-2.0

// Package media is the short-lived media cache on the Central broker.
//
// Producers (TTS, image generation) put an entry and hand the numeric
// key to the client inside a dialog payload; the client fetches it
// promptly or loses it, entries expire after an hour. Bytes are
// zstd-compressed on the broker and integrity-checked with a BLAKE3
// digest on the way back out.
package media
