/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"math/rand/v2"
)

// randSource is the subset of math/rand/v2 the engine needs. Tests
// inject a seeded source to make shuffles and picks deterministic.
type randSource interface {
	IntN(n int) int
}

func defaultRand() randSource {
	return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
}

// shuffleChoices returns a fresh Fisher-Yates permutation of choices
// and the new position of the choice originally at correctIndex. The
// input slice is never mutated; the caller shuffles once per
// presentation and caches the result, so the correct answer cannot be
// spotted by re-rendering.
func shuffleChoices(choices []string, correctIndex int, rng randSource) ([]string, int) {
	shuffled := make([]string, len(choices))
	copy(shuffled, choices)

	// Track the correct choice by position rather than by value, in
	// case of duplicate choice text.
	positions := make([]int, len(choices))
	for i := range positions {
		positions[i] = i
	}

	for i := len(shuffled) - 1; i > 0; i-- {
		j := rng.IntN(i + 1)
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		positions[i], positions[j] = positions[j], positions[i]
	}

	newIndex := correctIndex
	for i, orig := range positions {
		if orig == correctIndex {
			newIndex = i
			break
		}
	}

	return shuffled, newIndex
}

// pickRandomQuestion draws uniformly from the active questions in a
// category, avoiding ids in excludeIds. When every candidate has
// already been asked, the draw falls back to the full category pool:
// repetition is allowed once a category is exhausted, by design.
// Returns false only when the category has no active questions at all.
func pickRandomQuestion(questions []Question, category Category, excludeIds []string, rng randSource) (Question, bool) {
	byCategory := make([]Question, 0, len(questions))
	for _, q := range questions {
		if q.Category == category && q.Active {
			byCategory = append(byCategory, q)
		}
	}
	if len(byCategory) == 0 {
		return Question{}, false
	}

	excluded := make(map[string]bool, len(excludeIds))
	for _, id := range excludeIds {
		excluded[id] = true
	}

	available := make([]Question, 0, len(byCategory))
	for _, q := range byCategory {
		if !excluded[q.ID] {
			available = append(available, q)
		}
	}

	pool := available
	if len(pool) == 0 {
		pool = byCategory
	}

	return pool[rng.IntN(len(pool))], true
}
