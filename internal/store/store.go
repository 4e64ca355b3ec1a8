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

// Package store provides the Firestore document-store handle for the
// extraction pipeline: pending-email reads, per-unit status transitions,
// and deterministic-ID writes into the four canonical collections.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/rhea-ops/fps/internal/models"
)

// Collection names. The two *_results collections are a deliberate dual
// write: extraction_results keeps the legacy embedded shape for existing
// consumers, file_extraction_results carries the flattened queryable form.
const (
	EmailsCollection         = "emails"
	FilesSubcollection       = "files"
	ResultsCollection        = "extraction_results"
	FileResultsCollection    = "file_extraction_results"
	CalendarEventsCollection = "calendar_events"
	FinanceEventsCollection  = "finance_events"
)

// Client wraps a Firestore client with the pipeline's document operations.
// It is constructed once at process start and owned by the caller; a batch
// job has no teardown beyond Close.
type Client struct {
	fs *firestore.Client
}

// Open connects to Firestore for the given project.
func Open(ctx context.Context, projectID string) (*Client, error) {
	fs, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("create firestore client: %w", err)
	}
	return &Client{fs: fs}, nil
}

// NewClient wraps an existing Firestore client. Used by the query facade
// and by tests that point at the emulator.
func NewClient(fs *firestore.Client) *Client {
	return &Client{fs: fs}
}

// Firestore exposes the underlying client for read-only facades.
func (c *Client) Firestore() *firestore.Client { return c.fs }

// Close releases the underlying connection.
func (c *Client) Close() error { return c.fs.Close() }

// PendingEmails returns up to limit emails whose status is
// "Scheduled for Extraction", each with its files subcollection loaded.
func (c *Client) PendingEmails(ctx context.Context, limit int) ([]models.Email, error) {
	iter := c.fs.Collection(EmailsCollection).
		Where("status", "==", models.StatusScheduled).
		Limit(limit).
		Documents(ctx)
	defer iter.Stop()

	var emails []models.Email
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("stream pending emails: %w", err)
		}

		var e models.Email
		if err := doc.DataTo(&e); err != nil {
			slog.Warn("skipping malformed email document", "doc", doc.Ref.ID, "error", err)
			continue
		}
		e.ID = doc.Ref.ID

		files, err := c.emailFiles(ctx, e.ID)
		if err != nil {
			return nil, fmt.Errorf("load files for email %s: %w", e.ID, err)
		}
		e.Files = files
		emails = append(emails, e)
	}
	return emails, nil
}

// emailFiles loads the files subcollection of an email.
func (c *Client) emailFiles(ctx context.Context, emailID string) ([]models.EmailFile, error) {
	iter := c.fs.Collection(EmailsCollection).Doc(emailID).
		Collection(FilesSubcollection).
		Documents(ctx)
	defer iter.Stop()

	var files []models.EmailFile
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		var f models.EmailFile
		if err := doc.DataTo(&f); err != nil {
			slog.Warn("skipping malformed file document",
				"email_id", emailID, "doc", doc.Ref.ID, "error", err)
			continue
		}
		f.ID = doc.Ref.ID
		files = append(files, f)
	}
	return files, nil
}

// UpdateEmailStatus flips the lifecycle status of a source email.
func (c *Client) UpdateEmailStatus(ctx context.Context, emailID, newStatus string) error {
	_, err := c.fs.Collection(EmailsCollection).Doc(emailID).Update(ctx, []firestore.Update{
		{Path: "status", Value: newStatus},
		{Path: "updated_at", Value: firestore.ServerTimestamp},
	})
	if err != nil {
		return fmt.Errorf("update email %s status: %w", emailID, err)
	}
	return nil
}

// UpdateFileStatus flips the extraction status of an attachment record.
func (c *Client) UpdateFileStatus(ctx context.Context, emailID, fileID, newStatus string) error {
	_, err := c.fs.Collection(EmailsCollection).Doc(emailID).
		Collection(FilesSubcollection).Doc(fileID).
		Update(ctx, []firestore.Update{
			{Path: "extraction_status", Value: newStatus},
			{Path: "updated_at", Value: firestore.ServerTimestamp},
		})
	if err != nil {
		return fmt.Errorf("update file %s/%s status: %w", emailID, fileID, err)
	}
	return nil
}

// UpdateFileLocator records the blob locator on an attachment after a
// successful upload.
func (c *Client) UpdateFileLocator(ctx context.Context, emailID, fileID, locator string) error {
	_, err := c.fs.Collection(EmailsCollection).Doc(emailID).
		Collection(FilesSubcollection).Doc(fileID).
		Update(ctx, []firestore.Update{
			{Path: "cloud_storage_url", Value: locator},
			{Path: "updated_at", Value: firestore.ServerTimestamp},
		})
	if err != nil {
		return fmt.Errorf("update file %s/%s locator: %w", emailID, fileID, err)
	}
	return nil
}

// SaveEmailSummary writes the legacy summary record, keyed by email ID so
// reruns overwrite deterministically.
func (c *Client) SaveEmailSummary(ctx context.Context, s *models.EmailSummary) error {
	_, err := c.fs.Collection(ResultsCollection).Doc(s.EmailID).Set(ctx, s)
	if err != nil {
		return fmt.Errorf("save extraction result for email %s: %w", s.EmailID, err)
	}
	return nil
}

// SaveFileResults writes flattened file results as one logical batch using
// a BulkWriter. Document IDs are deterministic, so the write is idempotent.
func (c *Client) SaveFileResults(ctx context.Context, results []models.FileResult) error {
	if len(results) == 0 {
		return nil
	}
	bw := c.fs.BulkWriter(ctx)
	jobs := make([]*firestore.BulkWriterJob, 0, len(results))
	for i := range results {
		r := &results[i]
		job, err := bw.Set(c.fs.Collection(FileResultsCollection).Doc(r.DocID()), r)
		if err != nil {
			bw.End()
			return fmt.Errorf("enqueue file result %s: %w", r.DocID(), err)
		}
		jobs = append(jobs, job)
	}
	bw.End()
	return firstJobError(jobs, "file result")
}

// SaveCalendarEvents writes calendar events as one logical batch.
func (c *Client) SaveCalendarEvents(ctx context.Context, events []models.CalendarEvent) error {
	if len(events) == 0 {
		return nil
	}
	bw := c.fs.BulkWriter(ctx)
	jobs := make([]*firestore.BulkWriterJob, 0, len(events))
	for i := range events {
		e := &events[i]
		job, err := bw.Set(c.fs.Collection(CalendarEventsCollection).Doc(e.DocID()), e)
		if err != nil {
			bw.End()
			return fmt.Errorf("enqueue calendar event: %w", err)
		}
		jobs = append(jobs, job)
	}
	bw.End()
	return firstJobError(jobs, "calendar event")
}

// SaveFinanceEvents writes finance events as one logical batch.
func (c *Client) SaveFinanceEvents(ctx context.Context, events []models.FinanceEvent) error {
	if len(events) == 0 {
		return nil
	}
	bw := c.fs.BulkWriter(ctx)
	jobs := make([]*firestore.BulkWriterJob, 0, len(events))
	for i := range events {
		e := &events[i]
		job, err := bw.Set(c.fs.Collection(FinanceEventsCollection).Doc(e.DocID()), e)
		if err != nil {
			bw.End()
			return fmt.Errorf("enqueue finance event: %w", err)
		}
		jobs = append(jobs, job)
	}
	bw.End()
	return firstJobError(jobs, "finance event")
}

func firstJobError(jobs []*firestore.BulkWriterJob, kind string) error {
	for _, job := range jobs {
		if _, err := job.Results(); err != nil {
			return fmt.Errorf("write %s: %w", kind, err)
		}
	}
	return nil
}

// IsMissingIndex reports whether err is Firestore's rejection of a query
// that needs a composite index. Callers use this to degrade gracefully
// instead of surfacing a generic failure.
func IsMissingIndex(err error) bool {
	s, ok := status.FromError(err)
	if !ok {
		return false
	}
	return s.Code() == codes.FailedPrecondition &&
		strings.Contains(strings.ToLower(s.Message()), "index")
}
