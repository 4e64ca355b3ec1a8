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
	"fmt"
	"log/slog"
	"time"

	"github.com/rhea-ops/fps/internal/models"
)

// normalizeCalendar validates the batch-level calendar proposals. Invalid
// entries are logged and dropped; valid ones proceed.
func normalizeCalendar(raw json.RawMessage, now time.Time) []models.CalendarEvent {
	var entries []map[string]any
	if err := json.Unmarshal(raw, &entries); err != nil {
		slog.Warn("calendar_add_details did not parse as a list", "error", err)
		return nil
	}

	var events []models.CalendarEvent
	for i, entry := range entries {
		event, err := buildCalendarEvent(entry, now)
		if err != nil {
			slog.Warn("rejecting calendar event", "index", i, "error", err)
			continue
		}
		events = append(events, event)
	}
	return events
}

func buildCalendarEvent(entry map[string]any, now time.Time) (models.CalendarEvent, error) {
	var event models.CalendarEvent

	for _, field := range []string{"date", "time", "action", "source_mail_id"} {
		s, ok := entry[field].(string)
		if !ok || s == "" {
			return event, fmt.Errorf("field %q missing or empty", field)
		}
	}

	// source_file_id must be present as a key; an explicit null is the
	// adapter's way of saying "no backing file" and is accepted.
	sourceFileRaw, present := entry["source_file_id"]
	if !present {
		return event, fmt.Errorf("field source_file_id absent (null is accepted, absence is not)")
	}
	sourceFileID, _ := sourceFileRaw.(string)

	details, _ := entry["execution_details"].(map[string]any)

	event = models.CalendarEvent{
		Date:             entry["date"].(string),
		Time:             entry["time"].(string),
		Action:           entry["action"].(string),
		SourceMailID:     entry["source_mail_id"].(string),
		SourceFileID:     sourceFileID,
		ExecutionDetails: details,
		CreatedAt:        now,
	}
	return event, nil
}
