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

package blob

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/rhea-ops/fps/internal/models"
)

// LocatorStore records staging outcomes on source records. Implemented by
// the Firestore store client.
type LocatorStore interface {
	UpdateFileLocator(ctx context.Context, emailID, fileID, locator string) error
	UpdateEmailStatus(ctx context.Context, emailID, status string) error
}

// Stager moves attachment bytes into the bucket and records the resulting
// locator on each attachment record.
type Stager struct {
	writer ObjectWriter
	store  LocatorStore
}

// NewStager creates a stager over the given object writer and store.
func NewStager(writer ObjectWriter, store LocatorStore) *Stager {
	return &Stager{writer: writer, store: store}
}

// Stage uploads every unstaged attachment of the given emails. Attachments
// that already carry a locator are left alone, which makes re-staging after
// an interrupted run a no-op.
//
// An upload failure skips that attachment, marks the owning email Failed so
// the scheduler retries it once the fault is resolved, and continues with
// the remaining emails. Stage returns the emails that staged cleanly and
// the IDs of the emails it marked failed.
func (s *Stager) Stage(ctx context.Context, emails []models.Email) (staged []models.Email, failed []string) {
	for i := range emails {
		email := &emails[i]
		if err := s.stageEmail(ctx, email); err != nil {
			slog.Error("attachment staging failed",
				"email_id", email.ID,
				"error", err,
			)
			if err := s.store.UpdateEmailStatus(ctx, email.ID, models.StatusFailed); err != nil {
				slog.Error("failed to mark email failed", "email_id", email.ID, "error", err)
			}
			failed = append(failed, email.ID)
			continue
		}
		staged = append(staged, *email)
	}
	return staged, failed
}

func (s *Stager) stageEmail(ctx context.Context, email *models.Email) error {
	for i := range email.Files {
		f := &email.Files[i]
		if f.CloudStorageURL != "" {
			continue
		}

		data, err := s.attachmentBytes(f)
		if err != nil {
			return fmt.Errorf("read attachment %s: %w", f.ID, err)
		}
		if data == nil {
			// Nothing to stage: the ingestion process left no bytes and no
			// locator. The request builder will exclude this attachment.
			slog.Warn("attachment has no content to stage",
				"email_id", email.ID,
				"file_id", f.ID,
			)
			continue
		}

		path := ObjectPath(email.ID, f.ID, f.FileName)
		if err := s.writer.Put(ctx, path, data); err != nil {
			return fmt.Errorf("upload attachment %s: %w", f.ID, err)
		}

		locator := s.writer.Locator(path)
		if err := s.store.UpdateFileLocator(ctx, email.ID, f.ID, locator); err != nil {
			return fmt.Errorf("record locator for attachment %s: %w", f.ID, err)
		}
		f.CloudStorageURL = locator

		slog.Info("staged attachment",
			"email_id", email.ID,
			"file_id", f.ID,
			"locator", locator,
		)
	}
	return nil
}

// attachmentBytes resolves the attachment content from wherever the
// ingestion process left it: inline on the file document, or at a local
// staging path.
func (s *Stager) attachmentBytes(f *models.EmailFile) ([]byte, error) {
	if len(f.Content) > 0 {
		return f.Content, nil
	}
	if f.StagingPath != "" {
		data, err := os.ReadFile(f.StagingPath)
		if err != nil {
			return nil, fmt.Errorf("staging path %s: %w", f.StagingPath, err)
		}
		return data, nil
	}
	return nil, nil
}
