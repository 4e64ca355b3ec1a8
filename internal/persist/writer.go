// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package persist commits normalized batch results to the document store
// and flips source-record statuses. The status flip is always the last
// step for a unit: a unit whose canonical records did not all land keeps
// its Scheduled status so the next run reprocesses it.
package persist

import (
	"context"
	"log/slog"

	"github.com/rhea-ops/fps/internal/models"
	"github.com/rhea-ops/fps/internal/normalize"
)

// ResultStore is the slice of the document store the writer needs.
// Implemented by *store.Client; tests substitute an in-memory fake.
type ResultStore interface {
	SaveEmailSummary(ctx context.Context, s *models.EmailSummary) error
	SaveFileResults(ctx context.Context, results []models.FileResult) error
	SaveCalendarEvents(ctx context.Context, events []models.CalendarEvent) error
	SaveFinanceEvents(ctx context.Context, events []models.FinanceEvent) error
	UpdateEmailStatus(ctx context.Context, emailID, status string) error
	UpdateFileStatus(ctx context.Context, emailID, fileID, status string) error
}

// Outcome is the per-email result of a commit pass.
type Outcome struct {
	EmailID   string
	Persisted bool // canonical records written
	Extracted bool // status flipped to Extracted
	Failed    bool // status flipped to Failed
	Reason    string
}

// Writer commits normalized results.
type Writer struct {
	store ResultStore
}

// NewWriter creates a writer over the given store.
func NewWriter(store ResultStore) *Writer {
	return &Writer{store: store}
}

// Commit persists a normalized batch. Per email: canonical records first
// (legacy summary, file results, finance events), then the status flip.
// Emails that failed validation are marked Failed without persistence;
// emails whose writes failed keep their status untouched for retry.
// Calendar events are batch-scoped and their failure never fails an email
// unit.
func (w *Writer) Commit(ctx context.Context, batch *normalize.BatchResult) []Outcome {
	outcomes := make([]Outcome, 0, len(batch.Emails))
	for i := range batch.Emails {
		outcomes = append(outcomes, w.commitEmail(ctx, &batch.Emails[i]))
	}

	if len(batch.CalendarEvents) > 0 {
		if err := w.store.SaveCalendarEvents(ctx, batch.CalendarEvents); err != nil {
			slog.Error("failed to save calendar events",
				"count", len(batch.CalendarEvents), "error", err)
		} else {
			slog.Info("saved calendar events", "count", len(batch.CalendarEvents))
		}
	}

	return outcomes
}

func (w *Writer) commitEmail(ctx context.Context, oc *normalize.EmailOutcome) Outcome {
	out := Outcome{EmailID: oc.EmailID}

	if !oc.Valid() {
		out.Reason = oc.Err.Error()
		out.Failed = w.markFailed(ctx, oc.EmailID)
		return out
	}

	if err := w.store.SaveEmailSummary(ctx, oc.Summary); err != nil {
		slog.Error("failed to save extraction result",
			"email_id", oc.EmailID, "error", err)
		out.Reason = err.Error()
		return out
	}
	if err := w.store.SaveFileResults(ctx, oc.FileResults); err != nil {
		slog.Error("failed to save file results",
			"email_id", oc.EmailID, "error", err)
		out.Reason = err.Error()
		return out
	}
	if err := w.store.SaveFinanceEvents(ctx, oc.FinanceEvents); err != nil {
		slog.Error("failed to save finance events",
			"email_id", oc.EmailID, "error", err)
		out.Reason = err.Error()
		return out
	}
	out.Persisted = true

	// File status flips are best-effort: a miss is logged, not fatal.
	for i := range oc.FileResults {
		fr := &oc.FileResults[i]
		if err := w.store.UpdateFileStatus(ctx, fr.EmailID, fr.FileID, models.StatusExtracted); err != nil {
			slog.Warn("failed to update file status",
				"email_id", fr.EmailID, "file_id", fr.FileID, "error", err)
		}
	}
	for _, fileID := range oc.InvalidFiles {
		if err := w.store.UpdateFileStatus(ctx, oc.EmailID, fileID, models.StatusFailed); err != nil {
			slog.Warn("failed to update file status",
				"email_id", oc.EmailID, "file_id", fileID, "error", err)
		}
	}

	if !oc.Clean() {
		// Valid records landed, but at least one file result was
		// rejected: mark the email Failed so the batch retries it.
		// Deterministic document IDs make the rerun an overwrite.
		out.Reason = "one or more file results failed validation"
		out.Failed = w.markFailed(ctx, oc.EmailID)
		return out
	}

	if err := w.store.UpdateEmailStatus(ctx, oc.EmailID, models.StatusExtracted); err != nil {
		slog.Error("failed to update email status",
			"email_id", oc.EmailID, "error", err)
		out.Reason = err.Error()
		return out
	}
	out.Extracted = true

	slog.Info("extraction persisted",
		"email_id", oc.EmailID,
		"file_results", len(oc.FileResults),
		"finance_events", len(oc.FinanceEvents),
	)
	return out
}

// MarkAllFailed flips every given email to Failed. Used when the adapter
// reports a structured error for the whole batch call.
func (w *Writer) MarkAllFailed(ctx context.Context, emailIDs []string) {
	for _, id := range emailIDs {
		w.markFailed(ctx, id)
	}
}

func (w *Writer) markFailed(ctx context.Context, emailID string) bool {
	if err := w.store.UpdateEmailStatus(ctx, emailID, models.StatusFailed); err != nil {
		slog.Error("failed to mark email failed", "email_id", emailID, "error", err)
		return false
	}
	return true
}
