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

// Package normalize validates and flattens adapter extraction responses
// into the canonical persisted shapes. It is a pure transformation: a
// failing unit is recorded and skipped, never aborts its siblings, and
// nothing here touches the store.
package normalize

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/rhea-ops/fps/internal/models"
)

// ReservedCalendarKey is the results key that holds batch-level calendar
// proposals instead of a per-email result.
const ReservedCalendarKey = "calendar_add_details"

// wrapperKeys are envelope keys some adapter model versions wrap the email
// result in. Tried in order before assuming a direct shape.
var wrapperKeys = []string{"MAIL_1", "MAIL_0", "EMAIL_1", "EMAIL_0", "data", "content"}

// EmailOutcome is the normalized output for one email key in the response.
type EmailOutcome struct {
	EmailID       string
	Summary       *models.EmailSummary
	FileResults   []models.FileResult
	FinanceEvents []models.FinanceEvent

	// InvalidFiles lists attachment IDs whose file results failed
	// validation. Their siblings above are still persisted, but the
	// owning email is marked Failed so the batch is retried.
	InvalidFiles []string

	// Err is set when the email-level result itself failed validation.
	Err error
}

// Valid reports whether the email-level result passed validation.
func (o *EmailOutcome) Valid() bool { return o.Err == nil }

// Clean reports whether the email and every one of its file results
// passed validation.
func (o *EmailOutcome) Clean() bool { return o.Err == nil && len(o.InvalidFiles) == 0 }

// BatchResult is the normalized output for one /extract response.
type BatchResult struct {
	Emails         []EmailOutcome
	CalendarEvents []models.CalendarEvent
}

// Normalize transforms a successful response's results map into canonical
// records. Callers only reach here when the adapter reported status
// "success"; per-unit validation failures are partial, not fatal.
func Normalize(results map[string]json.RawMessage, now time.Time) *BatchResult {
	batch := &BatchResult{}

	for key, raw := range results {
		if key == ReservedCalendarKey {
			batch.CalendarEvents = normalizeCalendar(raw, now)
			continue
		}
		batch.Emails = append(batch.Emails, normalizeEmail(key, raw, now))
	}

	return batch
}

func normalizeEmail(emailID string, raw json.RawMessage, now time.Time) EmailOutcome {
	oc := EmailOutcome{EmailID: emailID}

	payload, err := unwrapEmailPayload(raw)
	if err != nil {
		oc.Err = err
		slog.Warn("rejecting email result", "email_id", emailID, "error", err)
		return oc
	}

	summary, ok := payload["Summary"].(string)
	if !ok {
		oc.Err = fmt.Errorf("missing required field Summary")
	}
	rawItems, ok := payload["ActionItems"].([]any)
	if !ok && oc.Err == nil {
		oc.Err = fmt.Errorf("ActionItems missing or not a list")
	}
	urgency, _ := payload["Urgency"].(string)
	if oc.Err == nil && !models.ValidUrgency(urgency) {
		oc.Err = fmt.Errorf("invalid Urgency value %q", urgency)
	}
	if oc.Err != nil {
		slog.Warn("rejecting email result", "email_id", emailID, "error", oc.Err)
		return oc
	}

	actionItems := make([]string, 0, len(rawItems))
	for _, item := range rawItems {
		actionItems = append(actionItems, fmt.Sprint(item))
	}

	files, _ := payload["files"].(map[string]any)

	oc.Summary = &models.EmailSummary{
		EmailID:     emailID,
		Summary:     summary,
		ActionItems: actionItems,
		Urgency:     urgency,
		FileCount:   len(files),
		Files:       files,
		ExtractedAt: now,
		CreatedAt:   now,
	}

	for fileID, v := range files {
		fm, ok := v.(map[string]any)
		if !ok {
			slog.Warn("rejecting file result",
				"email_id", emailID, "file_id", fileID, "error", "not an object")
			oc.InvalidFiles = append(oc.InvalidFiles, fileID)
			continue
		}
		fr, err := buildFileResult(emailID, fileID, fm, now)
		if err != nil {
			slog.Warn("rejecting file result",
				"email_id", emailID, "file_id", fileID, "error", err)
			oc.InvalidFiles = append(oc.InvalidFiles, fileID)
			continue
		}
		oc.FileResults = append(oc.FileResults, fr)

		if fe, ok := financeEvent(&fr, now); ok {
			oc.FinanceEvents = append(oc.FinanceEvents, fe)
		}
	}

	return oc
}

// unwrapEmailPayload peels the envelope formats the adapter has been seen
// to emit: a wrapper object keyed MAIL_1 (and variants), a single-element
// list, or the expected direct shape. Unknown shapes pass through as-is
// and fail field validation instead.
func unwrapEmailPayload(raw json.RawMessage) (map[string]any, error) {
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("email result did not parse: %w", err)
	}

	if list, ok := decoded.([]any); ok {
		if len(list) == 0 {
			return nil, fmt.Errorf("email result is an empty list")
		}
		decoded = list[0]
	}

	m, ok := decoded.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("email result is not an object")
	}

	for _, key := range wrapperKeys {
		if inner, ok := m[key].(map[string]any); ok {
			return inner, nil
		}
	}
	return m, nil
}

func buildFileResult(emailID, fileID string, fm map[string]any, now time.Time) (models.FileResult, error) {
	var fr models.FileResult

	docType, ok := fm["Type"].(string)
	if !ok {
		return fr, fmt.Errorf("missing required field Type")
	}
	sender, ok := fm["sender"].(string)
	if !ok {
		return fr, fmt.Errorf("missing required field sender")
	}
	receivedDate, ok := fm["received_date"].(string)
	if !ok {
		return fr, fmt.Errorf("missing required field received_date")
	}
	summary, ok := fm["Summary"].(string)
	if !ok {
		return fr, fmt.Errorf("missing required field Summary")
	}
	details, ok := fm["Details"].(string)
	if !ok {
		return fr, fmt.Errorf("missing required field Details")
	}
	rawTags, ok := fm["tags"].([]any)
	if !ok {
		return fr, fmt.Errorf("tags missing or not a list")
	}
	urgency, _ := fm["Urgency"].(string)
	if !models.ValidUrgency(urgency) {
		return fr, fmt.Errorf("invalid Urgency value %q", urgency)
	}

	paymentStatus, _ := fm["Status"].(string)
	if paymentStatus != "" && !models.ValidPaymentStatus(paymentStatus) {
		return fr, fmt.Errorf("invalid Status value %q", paymentStatus)
	}

	tags := make([]string, 0, len(rawTags))
	for _, t := range rawTags {
		tags = append(tags, fmt.Sprint(t))
	}

	fr = models.FileResult{
		EmailID:       emailID,
		FileID:        fileID,
		DocumentType:  docType,
		Sender:        sender,
		ReceivedDate:  receivedDate,
		Summary:       summary,
		Details:       details,
		Tags:          tags,
		Urgency:       urgency,
		PaymentStatus: paymentStatus,
		OriginalData:  fm,
		ExtractedAt:   now,
		CreatedAt:     now,
	}

	if s, ok := fm["ActionRequired"].(string); ok {
		fr.ActionRequired = s
	}
	if s, ok := fm["Amount"].(string); ok {
		fr.Amount = s
	}

	fr.IsInvoice, fr.IsReceipt, fr.IsContract, fr.IsBill = deriveTypeFlags(docType)

	// Flatten PaymentDetails; when absent, the payment_* fields stay
	// unset so they never pollute downstream range queries.
	if pd, ok := fm["PaymentDetails"].(map[string]any); ok {
		fr.PaymentDueDate, _ = pd["due_date"].(string)
		fr.PaymentMethod, _ = pd["method"].(string)
		fr.PaymentReference, _ = pd["reference"].(string)
		fr.PaymentRecipient, _ = pd["recipient"].(string)
	}

	return fr, nil
}
