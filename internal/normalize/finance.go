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
	"strconv"
	"strings"
	"time"

	"github.com/rhea-ops/fps/internal/models"
)

// Finance-event trigger: a file result produces exactly one finance event
// when it carries a parseable non-empty Amount and is not a contract.
// Contracts mention sums without representing a transaction. The event is
// a refund when the type or tags say so, otherwise an expense — incoming
// payments are not distinguishable from the response schema.
func financeEvent(fr *models.FileResult, now time.Time) (models.FinanceEvent, bool) {
	if fr.Amount == "" || fr.IsContract {
		return models.FinanceEvent{}, false
	}

	amount, currency, ok := ParseAmount(fr.Amount)
	if !ok {
		return models.FinanceEvent{}, false
	}

	eventType := models.FinanceExpense
	if isRefund(fr) {
		eventType = models.FinanceRefund
	}

	return models.FinanceEvent{
		Type:      eventType,
		Amount:    amount,
		Currency:  currency,
		Date:      financeDate(fr.ReceivedDate),
		Category:  strings.ToLower(fr.DocumentType),
		Payee:     fr.Sender,
		EmailID:   fr.EmailID,
		FileID:    fr.FileID,
		CreatedAt: now,
	}, true
}

func isRefund(fr *models.FileResult) bool {
	if strings.Contains(strings.ToLower(fr.DocumentType), "refund") {
		return true
	}
	for _, tag := range fr.Tags {
		if strings.EqualFold(tag, "refund") {
			return true
		}
	}
	return false
}

// financeDate re-encodes an ISO received_date as the fixed-width DDMMYYYY
// form the expense consumer expects. An unparseable date yields "".
func financeDate(isoDate string) string {
	t, err := time.Parse("2006-01-02", isoDate)
	if err != nil {
		return ""
	}
	return t.Format("02012006")
}

// currencySymbols maps amount markers to ISO currency codes, checked in
// order. Unmarked amounts default to EUR, the dominant currency in the
// processed mail.
var currencySymbols = []struct {
	marker string
	code   string
}{
	{"€", "EUR"},
	{"EUR", "EUR"},
	{"$", "USD"},
	{"USD", "USD"},
	{"£", "GBP"},
	{"GBP", "GBP"},
	{"CHF", "CHF"},
}

// ParseAmount normalizes a free-text amount like "€1.200,00" or "$41.45"
// into a plain decimal string and an ISO currency code. Returns false when
// no numeric value can be recovered.
func ParseAmount(raw string) (amount, currency string, ok bool) {
	currency = "EUR"
	for _, cs := range currencySymbols {
		if strings.Contains(raw, cs.marker) {
			currency = cs.code
			break
		}
	}

	var b strings.Builder
	for _, r := range raw {
		if (r >= '0' && r <= '9') || r == '.' || r == ',' {
			b.WriteRune(r)
		}
	}
	cleaned := b.String()
	if cleaned == "" {
		return "", "", false
	}

	cleaned = normalizeSeparators(cleaned)

	if _, err := strconv.ParseFloat(cleaned, 64); err != nil {
		return "", "", false
	}
	return cleaned, currency, true
}

// normalizeSeparators resolves thousands vs decimal separators: when both
// appear, the later one is the decimal mark; a lone comma is a decimal
// mark only when followed by exactly two digits.
func normalizeSeparators(s string) string {
	hasComma := strings.Contains(s, ",")
	hasDot := strings.Contains(s, ".")

	switch {
	case hasComma && hasDot:
		if strings.LastIndex(s, ".") > strings.LastIndex(s, ",") {
			return strings.ReplaceAll(s, ",", "")
		}
		s = strings.ReplaceAll(s, ".", "")
		return strings.Replace(s, ",", ".", 1)
	case hasComma:
		if strings.Count(s, ",") == 1 && len(s)-strings.Index(s, ",")-1 == 2 {
			return strings.Replace(s, ",", ".", 1)
		}
		return strings.ReplaceAll(s, ",", "")
	default:
		return s
	}
}
