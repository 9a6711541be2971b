// Copyright 2026 The Atrium Authors
// SPDX-License-Identifier: Apache-2.0

// Package fuzzy wraps fzf's FuzzyMatchV2 for capability lookup.
//
// The interpreter proposes capability candidates for free text by
// ranking the catalog against words of the input. Scores come straight
// from fzf's algorithm; this package only fixes the configuration
// (case-insensitive, normalized, forward) and the result shape.
package fuzzy
