/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

// rejectingStore fails creation of any prompt carrying a marker,
// passing everything else through to the wrapped store.
type rejectingStore struct {
	QuestionStore
}

func (s *rejectingStore) Create(ctx context.Context, data QuestionData) (string, error) {
	if strings.Contains(data.Prompt, "reject") {
		return "", errors.New("rejected: " + data.Prompt)
	}
	return s.QuestionStore.Create(ctx, data)
}

func importRows(count int) []ImportRow {
	rows := make([]ImportRow, count)
	for i := range rows {
		rows[i] = ImportRow{
			Category:    CategoryClub,
			Prompt:      fmt.Sprintf("question %d", i),
			Choices:     []string{"a", "b", "c"},
			AnswerIndex: 0,
		}
	}
	return rows
}

func TestBulkCreateSpansChunks(t *testing.T) {
	store := NewMemoryStore()

	// More rows than one chunk holds.
	count := bulkBatchSize*2 + 10
	report := bulkCreate(context.Background(), store, importRows(count))

	if report.Created != count || report.Failed != 0 {
		t.Fatalf("expected %d created, got %+v", count, report)
	}

	all, err := store.FetchAll(context.Background(), "")
	if err != nil {
		t.Fatalf("fetch all: %v", err)
	}
	if len(all) != count {
		t.Fatalf("expected %d stored questions, got %d", count, len(all))
	}
}

func TestBulkCreateFailuresDoNotAbort(t *testing.T) {
	store := &rejectingStore{QuestionStore: NewMemoryStore()}

	rows := importRows(10)
	rows[2].Prompt = "reject one"
	rows[7].Prompt = "reject two"

	report := bulkCreate(context.Background(), store, rows)

	if report.Created != 8 {
		t.Fatalf("expected 8 created, got %+v", report)
	}
	if report.Failed != 2 {
		t.Fatalf("expected 2 failed, got %+v", report)
	}
	if len(report.Errors) != 2 {
		t.Fatalf("expected 2 error messages, got %v", report.Errors)
	}
}

func TestBulkCreateCapsReportedErrors(t *testing.T) {
	store := &rejectingStore{QuestionStore: NewMemoryStore()}

	rows := importRows(30)
	for i := range rows {
		rows[i].Prompt = fmt.Sprintf("reject %d", i)
	}

	report := bulkCreate(context.Background(), store, rows)

	if report.Failed != 30 {
		t.Fatalf("expected 30 failed, got %+v", report)
	}
	if len(report.Errors) != 10 {
		t.Fatalf("expected the error list capped at 10, got %d", len(report.Errors))
	}
}

func TestBulkCreateEmptyInput(t *testing.T) {
	report := bulkCreate(context.Background(), NewMemoryStore(), nil)

	if report.Created != 0 || report.Failed != 0 || len(report.Errors) != 0 {
		t.Fatalf("expected an empty report, got %+v", report)
	}
}
