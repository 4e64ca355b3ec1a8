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

// Package models defines the data structures shared across the extraction
// pipeline: source emails and their attachments as stored in Firestore, and
// the canonical flattened records derived from adapter responses.
package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Email lifecycle statuses. The batch job only ever moves an email from
// StatusScheduled to StatusExtracted or StatusFailed; StatusDataExported
// is set by a downstream export process.
const (
	StatusScheduled    = "Scheduled for Extraction"
	StatusExtracted    = "Extracted"
	StatusDataExported = "Data Exported"
	StatusFailed       = "Failed"
)

// Urgency levels emitted by the adapter service.
const (
	UrgencyLow      = "Low"
	UrgencyMedium   = "Medium"
	UrgencyHigh     = "High"
	UrgencyCritical = "Critical"
)

// ValidUrgency reports whether s is one of the four accepted urgency levels.
func ValidUrgency(s string) bool {
	switch s {
	case UrgencyLow, UrgencyMedium, UrgencyHigh, UrgencyCritical:
		return true
	}
	return false
}

// Payment statuses accepted on file extraction results.
const (
	PaymentPaid    = "Paid"
	PaymentUnpaid  = "Unpaid"
	PaymentUnknown = "Unknown"
)

// ValidPaymentStatus reports whether s is an accepted payment status.
func ValidPaymentStatus(s string) bool {
	switch s {
	case PaymentPaid, PaymentUnpaid, PaymentUnknown:
		return true
	}
	return false
}

// Email is a source record in the emails collection, owned by the upstream
// ingestion process. This service reads it, appends blob locators to its
// attachments, and flips its status.
type Email struct {
	ID        string     `firestore:"-"`
	Subject   string     `firestore:"subject"`
	Sender    string     `firestore:"sender_email_id"`
	Body      string     `firestore:"body"`
	Status    string     `firestore:"status"`
	UpdatedAt *time.Time `firestore:"updated_at"`

	// Files is the email's files subcollection, loaded separately.
	Files []EmailFile `firestore:"-"`
}

// EmailFile is an attachment record in an email's files subcollection.
// StagingPath and Content are where the ingestion process left the bytes;
// CloudStorageURL is set by the stager once the bytes reach the bucket.
type EmailFile struct {
	ID               string `firestore:"-"`
	FileName         string `firestore:"file_name"`
	CloudStorageURL  string `firestore:"cloud_storage_url"`
	ExtractionStatus string `firestore:"extraction_status"`
	StagingPath      string `firestore:"file_path"`
	Content          []byte `firestore:"file_content"`
}

// EmailSummary is the legacy per-email record in extraction_results. It
// embeds the untransformed per-file results so existing consumers keep
// working alongside the flattened file_extraction_results collection.
type EmailSummary struct {
	EmailID     string         `firestore:"email_id"`
	Summary     string         `firestore:"summary"`
	ActionItems []string       `firestore:"action_items"`
	Urgency     string         `firestore:"urgency"`
	FileCount   int            `firestore:"file_count"`
	Files       map[string]any `firestore:"files"`
	ExtractedAt time.Time      `firestore:"extracted_at"`
	CreatedAt   time.Time      `firestore:"created_at"`
}

// FileResult is the canonical flattened record in file_extraction_results,
// one document per attachment. The payment_* fields are flattened from the
// adapter's nested PaymentDetails and carry omitempty so that absent
// payment data stays out of range-query space entirely instead of
// appearing as empty strings.
type FileResult struct {
	EmailID      string   `firestore:"email_id"`
	FileID       string   `firestore:"file_id"`
	DocumentType string   `firestore:"document_type"`
	Sender       string   `firestore:"sender"`
	ReceivedDate string   `firestore:"received_date"`
	Summary      string   `firestore:"summary"`
	Details      string   `firestore:"details"`
	Tags         []string `firestore:"tags"`
	Urgency      string   `firestore:"urgency"`

	PaymentStatus  string `firestore:"payment_status,omitempty"`
	ActionRequired string `firestore:"action_required,omitempty"`
	Amount         string `firestore:"amount,omitempty"`

	PaymentDueDate   string `firestore:"payment_due_date,omitempty"`
	PaymentMethod    string `firestore:"payment_method,omitempty"`
	PaymentReference string `firestore:"payment_reference,omitempty"`
	PaymentRecipient string `firestore:"payment_recipient,omitempty"`

	// Category flags derived from DocumentType. Deliberately independent
	// booleans rather than an enum: downstream consumers filter on each
	// flag on its own, and future document types may overlap categories.
	IsInvoice  bool `firestore:"is_invoice"`
	IsReceipt  bool `firestore:"is_receipt"`
	IsContract bool `firestore:"is_contract"`
	IsBill     bool `firestore:"is_bill"`

	// OriginalData is the adapter's file result verbatim, including any
	// dynamic fields outside the canonical schema.
	OriginalData map[string]any `firestore:"original_data"`

	ExtractedAt time.Time `firestore:"extracted_at"`
	CreatedAt   time.Time `firestore:"created_at"`
}

// DocID returns the deterministic document ID for a file result, so that
// re-persisting the same response overwrites instead of duplicating.
func (r *FileResult) DocID() string {
	return r.EmailID + "_" + r.FileID
}

// CalendarEvent is a canonical record in calendar_events derived from the
// adapter's calendar_add_details proposals. SourceFileID may be empty: the
// adapter sends an explicit null when a proposal has no backing file.
type CalendarEvent struct {
	Date             string         `firestore:"date"`
	Time             string         `firestore:"time"`
	Action           string         `firestore:"action"`
	SourceMailID     string         `firestore:"source_mail_id"`
	SourceFileID     string         `firestore:"source_file_id"`
	ExecutionDetails map[string]any `firestore:"execution_details,omitempty"`
	CreatedAt        time.Time      `firestore:"created_at"`
}

// DocID derives a stable UUID from the event's identifying fields so that
// re-running a batch rewrites the same documents.
func (e *CalendarEvent) DocID() string {
	seed := fmt.Sprintf("calendar|%s|%s|%s|%s|%s",
		e.SourceMailID, e.SourceFileID, e.Date, e.Time, e.Action)
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(seed)).String()
}

// Finance event types.
const (
	FinanceExpense  = "expense"
	FinanceIncome   = "income"
	FinanceTransfer = "transfer"
	FinanceRefund   = "refund"
)

// FinanceEvent is a canonical record in finance_events, one per detected
// transaction. Date uses the fixed-width DDMMYYYY form expected by the
// expense-tracking consumer, not ISO.
type FinanceEvent struct {
	Type      string    `firestore:"type"`
	Amount    string    `firestore:"amount"`
	Currency  string    `firestore:"currency"`
	Date      string    `firestore:"date"`
	Category  string    `firestore:"category"`
	Payee     string    `firestore:"payee"`
	EmailID   string    `firestore:"email_id"`
	FileID    string    `firestore:"file_id"`
	CreatedAt time.Time `firestore:"created_at"`
}

// DocID derives a stable UUID from the event's identifying fields.
func (e *FinanceEvent) DocID() string {
	seed := fmt.Sprintf("finance|%s|%s|%s|%s|%s",
		e.EmailID, e.FileID, e.Amount, e.Currency, e.Date)
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(seed)).String()
}
