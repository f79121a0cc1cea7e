/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"sync"
)

// bulkBatchSize is how many creates are issued concurrently per chunk.
const bulkBatchSize = 25

// BulkReport tallies a bulk creation run. Items fail independently;
// there is no rollback and no retry.
type BulkReport struct {
	Created int      `json:"created"`
	Failed  int      `json:"failed"`
	Errors  []string `json:"errors,omitempty"`
}

// bulkCreate feeds rows to the store in small concurrent batches and
// returns the per-item tally. A failed item never aborts the others.
func bulkCreate(ctx context.Context, store QuestionStore, rows []ImportRow) BulkReport {
	var report BulkReport

	const maxReportedErrors = 10

	for start := 0; start < len(rows); start += bulkBatchSize {
		end := min(start+bulkBatchSize, len(rows))
		chunk := rows[start:end]

		results := make([]error, len(chunk))

		var wg sync.WaitGroup
		for i, row := range chunk {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := store.Create(ctx, row.questionData())
				results[i] = err
			}()
		}
		wg.Wait()

		for _, err := range results {
			if err != nil {
				report.Failed++
				if len(report.Errors) < maxReportedErrors {
					report.Errors = append(report.Errors, err.Error())
				}
				continue
			}
			report.Created++
		}
	}

	return report
}
