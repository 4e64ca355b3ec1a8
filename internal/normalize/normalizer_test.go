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

package normalize

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rhea-ops/fps/internal/models"
)

var testNow = time.Date(2025, 6, 23, 12, 0, 0, 0, time.UTC)

// results builds a Results map from a JSON document.
func results(t *testing.T, doc string) map[string]json.RawMessage {
	t.Helper()
	var m map[string]json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(doc), &m))
	return m
}

func validEmailResult() string {
	return `{
		"Summary": "Invoice from Company XYZ",
		"ActionItems": ["Pay by 2025-01-30"],
		"Urgency": "High",
		"files": {
			"file_001": {
				"Type": "Invoice",
				"sender": "Company XYZ",
				"received_date": "2025-01-15",
				"Summary": "Consulting invoice",
				"Details": "Total €1,200.00 due by January 30, 2025.",
				"tags": ["Invoice", "Payment Due"],
				"Urgency": "High",
				"Status": "Unpaid",
				"Amount": "€1,200.00",
				"PaymentDetails": {
					"due_date": "2025-01-30",
					"method": "Bank transfer",
					"reference": "INV-2025-001",
					"recipient": "Company XYZ"
				}
			}
		}
	}`
}

func findEmail(t *testing.T, batch *BatchResult, emailID string) *EmailOutcome {
	t.Helper()
	for i := range batch.Emails {
		if batch.Emails[i].EmailID == emailID {
			return &batch.Emails[i]
		}
	}
	t.Fatalf("no outcome for email %s", emailID)
	return nil
}

func TestNormalize_ValidEmail(t *testing.T) {
	batch := Normalize(results(t, `{"email_001": `+validEmailResult()+`}`), testNow)

	require.Len(t, batch.Emails, 1)
	oc := findEmail(t, batch, "email_001")
	require.True(t, oc.Clean())

	require.NotNil(t, oc.Summary)
	assert.Equal(t, "email_001", oc.Summary.EmailID)
	assert.Equal(t, "Invoice from Company XYZ", oc.Summary.Summary)
	assert.Equal(t, []string{"Pay by 2025-01-30"}, oc.Summary.ActionItems)
	assert.Equal(t, models.UrgencyHigh, oc.Summary.Urgency)
	assert.Equal(t, 1, oc.Summary.FileCount)
	assert.Contains(t, oc.Summary.Files, "file_001")

	require.Len(t, oc.FileResults, 1)
	fr := oc.FileResults[0]
	assert.Equal(t, "email_001", fr.EmailID)
	assert.Equal(t, "file_001", fr.FileID)
	assert.Equal(t, "Invoice", fr.DocumentType)
	assert.Equal(t, []string{"Invoice", "Payment Due"}, fr.Tags)
	assert.Equal(t, models.PaymentUnpaid, fr.PaymentStatus)
}

func TestNormalize_InvoiceFlagDerivation(t *testing.T) {
	cases := []struct {
		docType                          string
		invoice, receipt, contract, bill bool
	}{
		{"Invoice", true, false, false, false},
		{"invoice", true, false, false, false},
		{"INVOICE", true, false, false, false},
		{"Receipt", false, true, false, false},
		{"Contract", false, false, true, false},
		{"Utility Bill", false, false, false, true},
		{"Payment Confirmation", false, false, false, false},
		{"Letter", false, false, false, false},
	}

	for _, tc := range cases {
		inv, rcpt, con, bill := deriveTypeFlags(tc.docType)
		assert.Equal(t, tc.invoice, inv, "is_invoice for %q", tc.docType)
		assert.Equal(t, tc.receipt, rcpt, "is_receipt for %q", tc.docType)
		assert.Equal(t, tc.contract, con, "is_contract for %q", tc.docType)
		assert.Equal(t, tc.bill, bill, "is_bill for %q", tc.docType)
	}
}

func TestNormalize_PaymentDetailsFlattening(t *testing.T) {
	batch := Normalize(results(t, `{"email_001": `+validEmailResult()+`}`), testNow)
	fr := findEmail(t, batch, "email_001").FileResults[0]

	assert.Equal(t, "2025-01-30", fr.PaymentDueDate)
	assert.Equal(t, "Bank transfer", fr.PaymentMethod)
	assert.Equal(t, "INV-2025-001", fr.PaymentReference)
	assert.Equal(t, "Company XYZ", fr.PaymentRecipient)
}

func TestNormalize_AbsentPaymentDetailsLeavesFieldsUnset(t *testing.T) {
	batch := Normalize(results(t, `{"email_002": {
		"Summary": "s", "ActionItems": [], "Urgency": "Low",
		"files": {"file_002": {
			"Type": "Letter", "sender": "A", "received_date": "2025-02-01",
			"Summary": "s", "Details": "d", "tags": [], "Urgency": "Low"
		}}
	}}`), testNow)

	fr := findEmail(t, batch, "email_002").FileResults[0]
	assert.Empty(t, fr.PaymentDueDate)
	assert.Empty(t, fr.PaymentMethod)
	assert.Empty(t, fr.PaymentReference)
	assert.Empty(t, fr.PaymentRecipient)
}

func TestNormalize_DynamicFieldsPreservedInOriginalData(t *testing.T) {
	batch := Normalize(results(t, `{"email_003": {
		"Summary": "s", "ActionItems": [], "Urgency": "Low",
		"files": {"file_003": {
			"Type": "Notice", "sender": "City", "received_date": "2025-03-01",
			"Summary": "s", "Details": "d", "tags": [], "Urgency": "Low",
			"Authority": "City of Berlin",
			"Reference": "ABC-123",
			"custom_field": "kept verbatim"
		}}
	}}`), testNow)

	fr := findEmail(t, batch, "email_003").FileResults[0]
	assert.Equal(t, "City of Berlin", fr.OriginalData["Authority"])
	assert.Equal(t, "ABC-123", fr.OriginalData["Reference"])
	assert.Equal(t, "kept verbatim", fr.OriginalData["custom_field"])
}

func TestNormalize_RejectsInvalidUrgency(t *testing.T) {
	batch := Normalize(results(t, `{"email_004": {
		"Summary": "s", "ActionItems": [], "Urgency": "Severe"
	}}`), testNow)

	oc := findEmail(t, batch, "email_004")
	assert.False(t, oc.Valid())
	assert.Nil(t, oc.Summary)
}

func TestNormalize_RejectsMissingSummary(t *testing.T) {
	batch := Normalize(results(t, `{"email_005": {
		"ActionItems": [], "Urgency": "Low"
	}}`), testNow)

	assert.False(t, findEmail(t, batch, "email_005").Valid())
}

func TestNormalize_PartialSuccessOnInvalidFileResult(t *testing.T) {
	// One file missing Urgency, sibling file valid: the valid file is
	// kept and the invalid one recorded.
	batch := Normalize(results(t, `{"email_006": {
		"Summary": "s", "ActionItems": [], "Urgency": "Medium",
		"files": {
			"good": {
				"Type": "Receipt", "sender": "Shop", "received_date": "2025-04-01",
				"Summary": "s", "Details": "d", "tags": [], "Urgency": "Low"
			},
			"bad": {
				"Type": "Receipt", "sender": "Shop", "received_date": "2025-04-01",
				"Summary": "s", "Details": "d", "tags": []
			}
		}
	}}`), testNow)

	oc := findEmail(t, batch, "email_006")
	assert.True(t, oc.Valid())
	assert.False(t, oc.Clean())
	require.Len(t, oc.FileResults, 1)
	assert.Equal(t, "good", oc.FileResults[0].FileID)
	assert.Equal(t, []string{"bad"}, oc.InvalidFiles)
}

func TestNormalize_WrapperFormats(t *testing.T) {
	wrapped := `{
		"MAIL_1": {"Summary": "wrapped", "ActionItems": [], "Urgency": "Low"}
	}`
	listForm := `[{"Summary": "listed", "ActionItems": [], "Urgency": "Low"}]`

	batch := Normalize(results(t, `{"e1": `+wrapped+`, "e2": `+listForm+`}`), testNow)

	assert.Equal(t, "wrapped", findEmail(t, batch, "e1").Summary.Summary)
	assert.Equal(t, "listed", findEmail(t, batch, "e2").Summary.Summary)
}

func TestNormalize_CalendarEvents(t *testing.T) {
	batch := Normalize(results(t, `{"calendar_add_details": [
		{
			"date": "2025-01-30", "time": "09:00", "action": "Pay invoice",
			"source_mail_id": "email_001", "source_file_id": "file_001",
			"execution_details": {"amount": "€1,200.00"}
		},
		{
			"date": "2025-02-01", "time": "10:00", "action": "Renew ID",
			"source_mail_id": "email_002", "source_file_id": null
		},
		{
			"date": "2025-02-02", "time": "11:00", "action": "No file key",
			"source_mail_id": "email_003"
		},
		{
			"date": "", "time": "12:00", "action": "Empty date",
			"source_mail_id": "email_004", "source_file_id": null
		}
	]}`), testNow)

	// Entry without the source_file_id key and entry with an empty
	// required field are both rejected; explicit null is accepted.
	require.Len(t, batch.CalendarEvents, 2)
	assert.Equal(t, "file_001", batch.CalendarEvents[0].SourceFileID)
	assert.Equal(t, "€1,200.00", batch.CalendarEvents[0].ExecutionDetails["amount"])
	assert.Empty(t, batch.CalendarEvents[1].SourceFileID)
}

func TestNormalize_FinanceEventFromReceipt(t *testing.T) {
	batch := Normalize(results(t, `{"email_007": {
		"Summary": "s", "ActionItems": [], "Urgency": "Low",
		"files": {"file_007": {
			"Type": "Receipt", "sender": "Amazon.de", "received_date": "2025-06-20",
			"Summary": "s", "Details": "d", "tags": [], "Urgency": "Low",
			"Amount": "€41.45"
		}}
	}}`), testNow)

	oc := findEmail(t, batch, "email_007")
	require.Len(t, oc.FinanceEvents, 1)
	fe := oc.FinanceEvents[0]
	assert.Equal(t, models.FinanceExpense, fe.Type)
	assert.Equal(t, "41.45", fe.Amount)
	assert.Equal(t, "EUR", fe.Currency)
	assert.Equal(t, "20062025", fe.Date)
	assert.Equal(t, "Amazon.de", fe.Payee)
	assert.Equal(t, "receipt", fe.Category)
}

func TestNormalize_NoFinanceEventForContract(t *testing.T) {
	batch := Normalize(results(t, `{"email_008": {
		"Summary": "s", "ActionItems": [], "Urgency": "Low",
		"files": {"file_008": {
			"Type": "Contract", "sender": "Landlord", "received_date": "2025-06-01",
			"Summary": "s", "Details": "d", "tags": [], "Urgency": "Low",
			"Amount": "€950.00"
		}}
	}}`), testNow)

	assert.Empty(t, findEmail(t, batch, "email_008").FinanceEvents)
}

func TestNormalize_NoFinanceEventWithoutAmount(t *testing.T) {
	batch := Normalize(results(t, `{"email_009": {
		"Summary": "s", "ActionItems": [], "Urgency": "Low",
		"files": {"file_009": {
			"Type": "Receipt", "sender": "Shop", "received_date": "2025-06-01",
			"Summary": "s", "Details": "d", "tags": [], "Urgency": "Low"
		}}
	}}`), testNow)

	assert.Empty(t, findEmail(t, batch, "email_009").FinanceEvents)
}

func TestNormalize_RejectsInvalidPaymentStatus(t *testing.T) {
	batch := Normalize(results(t, `{"email_010": {
		"Summary": "s", "ActionItems": [], "Urgency": "Low",
		"files": {"file_010": {
			"Type": "Invoice", "sender": "X", "received_date": "2025-06-01",
			"Summary": "s", "Details": "d", "tags": [], "Urgency": "Low",
			"Status": "Overdue"
		}}
	}}`), testNow)

	oc := findEmail(t, batch, "email_010")
	assert.Empty(t, oc.FileResults)
	assert.Equal(t, []string{"file_010"}, oc.InvalidFiles)
}
