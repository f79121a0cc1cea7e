/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"fmt"
	"strings"
)

// Question is a single multiple-choice question from the bank.
type Question struct {
	ID          string   `json:"id"`
	Category    Category `json:"category"`
	Prompt      string   `json:"prompt"`
	Choices     []string `json:"choices"`
	AnswerIndex int      `json:"answerIndex"`
	Active      bool     `json:"isActive"`
	Difficulty  string   `json:"difficulty,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// QuestionData is the writable portion of a Question, as accepted
// by the store on create.
type QuestionData struct {
	Category    Category `json:"category"`
	Prompt      string   `json:"prompt"`
	Choices     []string `json:"choices"`
	AnswerIndex int      `json:"answerIndex"`
	Active      *bool    `json:"isActive,omitempty"`
	Difficulty  string   `json:"difficulty,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// QuestionPatch carries a partial update; nil fields are left untouched.
type QuestionPatch struct {
	Category    *Category `json:"category,omitempty"`
	Prompt      *string   `json:"prompt,omitempty"`
	Choices     []string  `json:"choices,omitempty"`
	AnswerIndex *int      `json:"answerIndex,omitempty"`
	Active      *bool     `json:"isActive,omitempty"`
	Difficulty  *string   `json:"difficulty,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
}

var errBadShape = errors.New("question must have 3 or 4 non-empty choices and an answer index in range")

// Validate enforces the question shape invariant. A question that
// fails validation must never be shown to a player; read paths
// quarantine such records instead of trusting the store.
func (d QuestionData) Validate() error {
	if !d.Category.Valid() {
		return fmt.Errorf("unknown category %q", string(d.Category))
	}
	if strings.TrimSpace(d.Prompt) == "" {
		return errors.New("prompt must not be blank")
	}
	if len(d.Choices) < 3 || len(d.Choices) > 4 {
		return errBadShape
	}
	for _, choice := range d.Choices {
		if strings.TrimSpace(choice) == "" {
			return errBadShape
		}
	}
	if d.AnswerIndex < 0 || d.AnswerIndex >= len(d.Choices) {
		return errBadShape
	}
	return nil
}

func (q Question) data() QuestionData {
	active := q.Active
	return QuestionData{
		Category:    q.Category,
		Prompt:      q.Prompt,
		Choices:     q.Choices,
		AnswerIndex: q.AnswerIndex,
		Active:      &active,
		Difficulty:  q.Difficulty,
		Tags:        q.Tags,
	}
}

// wellFormed reports whether a stored record satisfies the shape
// invariant, ignoring the active flag.
func (q Question) wellFormed() bool {
	d := q.data()
	return d.Validate() == nil
}
