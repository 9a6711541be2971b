// Copyright 2026 The Atrium Authors
// SPDX-License-Identifier: Apache-2.0

package fuzzy

import (
	"sort"
	"strings"

	"github.com/junegunn/fzf/src/algo"
	"github.com/junegunn/fzf/src/util"
)

func init() {
	// Selects fzf's default bonus scheme. Must run before any match.
	algo.Init("default")
}

// Result is one match: fzf's score and the matched rune positions in
// the text. A zero score means no match.
type Result struct {
	Score     int
	Positions []int
}

// Match scores pattern against text. The slab is fzf's scratch
// allocation; pass nil for one-off calls or share one slab across a
// ranking loop. Matching is case-insensitive.
func Match(text string, pattern []rune, slab *util.Slab) Result {
	if len(pattern) == 0 {
		return Result{}
	}

	lowered := make([]rune, len(pattern))
	for i, r := range pattern {
		lowered[i] = toLower(r)
	}

	chars := util.ToChars([]byte(strings.ToLower(text)))
	match, positions := algo.FuzzyMatchV2(false, true, true, &chars, lowered, true, slab)
	if match.Score <= 0 {
		return Result{}
	}

	result := Result{Score: match.Score}
	if positions != nil {
		result.Positions = *positions
		sort.Ints(result.Positions)
	}
	return result
}

func toLower(r rune) rune {
	if r >= 'A' && r <= 'Z' {
		return r + ('a' - 'A')
	}
	return r
}

// Ranked is one candidate with its best score against a query.
type Ranked struct {
	Candidate string
	Score     int
}

// Rank scores every candidate against the query and returns the
// matches best-first. Candidates that do not match are dropped.
// Underscores in candidates are treated as word separators, so the
// query "weather" finds "weather_forecast".
func Rank(query string, candidates []string) []Ranked {
	pattern := []rune(strings.TrimSpace(query))
	if len(pattern) == 0 {
		return nil
	}

	slab := util.MakeSlab(slabSize16, slabSize32)
	var ranked []Ranked
	for _, candidate := range candidates {
		text := strings.ReplaceAll(candidate, "_", " ")
		result := Match(text, pattern, slab)
		if result.Score <= 0 {
			continue
		}
		ranked = append(ranked, Ranked{Candidate: candidate, Score: result.Score})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return ranked
}

// fzf's own default slab sizing.
const (
	slabSize16 = 100 * 1024
	slabSize32 = 2048
)
