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

// Package extraction builds /extract request payloads and performs the
// adapter service call, classifying outcomes into transport, remote, and
// decode failures so the batch runner can apply the right recovery policy.
package extraction

import (
	"time"

	"github.com/rhea-ops/fps/internal/models"
)

// FilePayload is one attachment in the /extract request.
type FilePayload struct {
	ID              string `json:"id"`
	FileName        string `json:"file_name"`
	CloudStorageURL string `json:"cloud_storage_url"`
}

// EmailPayload is one email in the /extract request.
type EmailPayload struct {
	ID             string        `json:"id"`
	Subject        string        `json:"subject"`
	SenderEmailID  string        `json:"sender_email_id"`
	Body           string        `json:"body"`
	HasAttachments bool          `json:"has_attachments"`
	UpdatedAt      string        `json:"updated_at,omitempty"`
	Files          []FilePayload `json:"files"`
}

// Request is the /extract request body.
type Request struct {
	ExtractionTimestamp string         `json:"extraction_timestamp"`
	TotalEmails         int            `json:"total_emails"`
	Emails              []EmailPayload `json:"emails"`
}

// BuildRequest assembles the batch payload from staged emails. Attachments
// that never received a locator are excluded: the adapter must not be sent
// a reference it cannot dereference. updated_at is included only when the
// source record carries one.
func BuildRequest(emails []models.Email, now time.Time) *Request {
	payloads := make([]EmailPayload, 0, len(emails))
	for i := range emails {
		e := &emails[i]

		p := EmailPayload{
			ID:             e.ID,
			Subject:        e.Subject,
			SenderEmailID:  e.Sender,
			Body:           e.Body,
			HasAttachments: len(e.Files) > 0,
			Files:          make([]FilePayload, 0, len(e.Files)),
		}
		if e.UpdatedAt != nil && !e.UpdatedAt.IsZero() {
			p.UpdatedAt = e.UpdatedAt.UTC().Format(time.RFC3339)
		}

		for _, f := range e.Files {
			if f.CloudStorageURL == "" {
				continue
			}
			p.Files = append(p.Files, FilePayload{
				ID:              f.ID,
				FileName:        f.FileName,
				CloudStorageURL: f.CloudStorageURL,
			})
		}

		payloads = append(payloads, p)
	}

	return &Request{
		ExtractionTimestamp: now.UTC().Format(time.RFC3339),
		TotalEmails:         len(payloads),
		Emails:              payloads,
	}
}
