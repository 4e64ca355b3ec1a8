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

// Package query is the read-only facade over the canonical collections,
// used by downstream services (expense tracking, briefings, reminders).
// Every operation is a filtered scan with a result ceiling. Queries that
// need a missing composite index surface ErrMissingIndex so callers can
// degrade to an empty result with guidance instead of crashing.
package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	"github.com/rhea-ops/fps/internal/models"
	"github.com/rhea-ops/fps/internal/store"
)

// DefaultLimit caps result counts when the caller does not supply one.
const DefaultLimit = 50

// ErrMissingIndex marks a query rejected for lack of a composite index.
// Create the index printed in the underlying error, or accept the empty
// result.
var ErrMissingIndex = errors.New("query requires a composite index")

// DefaultUrgencies is the urgency set for UrgentItems when none is given.
var DefaultUrgencies = []string{models.UrgencyHigh, models.UrgencyCritical}

// Facade provides the read operations.
type Facade struct {
	fs *firestore.Client
}

// New creates a facade over the store's Firestore handle.
func New(c *store.Client) *Facade {
	return &Facade{fs: c.Firestore()}
}

// UnpaidInvoices returns file results flagged as invoices with an Unpaid
// payment status, capped at limit (DefaultLimit when <= 0).
func (f *Facade) UnpaidInvoices(ctx context.Context, limit int) ([]models.FileResult, error) {
	q := f.fileResults().
		Where("is_invoice", "==", true).
		Where("payment_status", "==", models.PaymentUnpaid).
		Limit(normalizeLimit(limit))
	return f.collectFileResults(ctx, q, "unpaid invoices")
}

// MonthlyExpenses returns file results received within the given month.
func (f *Facade) MonthlyExpenses(ctx context.Context, year int, month time.Month) ([]models.FileResult, error) {
	first, last := MonthBounds(year, month)
	q := f.fileResults().
		Where("received_date", ">=", first).
		Where("received_date", "<=", last)
	return f.collectFileResults(ctx, q, "monthly expenses")
}

// UrgentItems returns file results whose urgency is in the given set
// (DefaultUrgencies when empty), capped at limit.
func (f *Facade) UrgentItems(ctx context.Context, urgencies []string, limit int) ([]models.FileResult, error) {
	if len(urgencies) == 0 {
		urgencies = DefaultUrgencies
	}
	q := f.fileResults().
		Where("urgency", "in", urgencies).
		Limit(normalizeLimit(limit))
	return f.collectFileResults(ctx, q, "urgent items")
}

// ByDocumentType returns file results with the given document type.
func (f *Facade) ByDocumentType(ctx context.Context, docType string, limit int) ([]models.FileResult, error) {
	q := f.fileResults().
		Where("document_type", "==", docType).
		Limit(normalizeLimit(limit))
	return f.collectFileResults(ctx, q, "by document type")
}

// PaymentDueSoon returns unpaid file results whose payment due date falls
// within [today, today+daysAhead].
func (f *Facade) PaymentDueSoon(ctx context.Context, daysAhead int) ([]models.FileResult, error) {
	from, to := DueWindow(time.Now(), daysAhead)
	q := f.fileResults().
		Where("payment_status", "==", models.PaymentUnpaid).
		Where("payment_due_date", ">=", from).
		Where("payment_due_date", "<=", to)
	return f.collectFileResults(ctx, q, "payment due soon")
}

// UpcomingCalendarEvents returns calendar events dated today or later.
func (f *Facade) UpcomingCalendarEvents(ctx context.Context, limit int) ([]models.CalendarEvent, error) {
	today := time.Now().Format("2006-01-02")
	iter := f.fs.Collection(store.CalendarEventsCollection).
		Where("date", ">=", today).
		OrderBy("date", firestore.Asc).
		Limit(normalizeLimit(limit)).
		Documents(ctx)
	defer iter.Stop()

	var events []models.CalendarEvent
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, classify(err, "upcoming calendar events")
		}
		var e models.CalendarEvent
		if err := doc.DataTo(&e); err != nil {
			return nil, fmt.Errorf("decode calendar event %s: %w", doc.Ref.ID, err)
		}
		events = append(events, e)
	}
	return events, nil
}

// FinanceEventsForMonth returns finance events dated within the given
// month. Finance dates are DDMMYYYY, which does not sort lexically, so
// the month filter matches on the MMYYYY suffix client-side.
func (f *Facade) FinanceEventsForMonth(ctx context.Context, year int, month time.Month) ([]models.FinanceEvent, error) {
	suffix := fmt.Sprintf("%02d%04d", month, year)
	iter := f.fs.Collection(store.FinanceEventsCollection).Documents(ctx)
	defer iter.Stop()

	var events []models.FinanceEvent
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, classify(err, "finance events for month")
		}
		var e models.FinanceEvent
		if err := doc.DataTo(&e); err != nil {
			return nil, fmt.Errorf("decode finance event %s: %w", doc.Ref.ID, err)
		}
		if len(e.Date) == 8 && e.Date[2:] == suffix {
			events = append(events, e)
		}
	}
	return events, nil
}

func (f *Facade) fileResults() *firestore.CollectionRef {
	return f.fs.Collection(store.FileResultsCollection)
}

func (f *Facade) collectFileResults(ctx context.Context, q firestore.Query, op string) ([]models.FileResult, error) {
	iter := q.Documents(ctx)
	defer iter.Stop()

	var results []models.FileResult
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, classify(err, op)
		}
		var r models.FileResult
		if err := doc.DataTo(&r); err != nil {
			return nil, fmt.Errorf("decode file result %s: %w", doc.Ref.ID, err)
		}
		results = append(results, r)
	}
	return results, nil
}

func classify(err error, op string) error {
	if store.IsMissingIndex(err) {
		return fmt.Errorf("%s: %w: %v", op, ErrMissingIndex, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	return limit
}

// MonthBounds returns the first and last day of a month in the ISO form
// used by received_date.
func MonthBounds(year int, month time.Month) (first, last string) {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, -1)
	return start.Format("2006-01-02"), end.Format("2006-01-02")
}

// DueWindow returns the inclusive [today, today+daysAhead] window in ISO
// form used by payment_due_date.
func DueWindow(today time.Time, daysAhead int) (from, to string) {
	if daysAhead < 0 {
		daysAhead = 0
	}
	return today.Format("2006-01-02"), today.AddDate(0, 0, daysAhead).Format("2006-01-02")
}
