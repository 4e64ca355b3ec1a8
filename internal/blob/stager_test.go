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
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rhea-ops/fps/internal/models"
)

type fakeWriter struct {
	objects map[string][]byte
	failOn  string
}

func newFakeWriter() *fakeWriter {
	return &fakeWriter{objects: make(map[string][]byte)}
}

func (w *fakeWriter) Put(_ context.Context, objectPath string, data []byte) error {
	if objectPath == w.failOn {
		return errors.New("upload rejected")
	}
	w.objects[objectPath] = data
	return nil
}

func (w *fakeWriter) Locator(objectPath string) string {
	return "gs://test-bucket/" + objectPath
}

type fakeLocatorStore struct {
	locators map[string]string // "emailID/fileID" -> locator
	statuses map[string]string
}

func newFakeLocatorStore() *fakeLocatorStore {
	return &fakeLocatorStore{
		locators: make(map[string]string),
		statuses: make(map[string]string),
	}
}

func (s *fakeLocatorStore) UpdateFileLocator(_ context.Context, emailID, fileID, locator string) error {
	s.locators[emailID+"/"+fileID] = locator
	return nil
}

func (s *fakeLocatorStore) UpdateEmailStatus(_ context.Context, emailID, status string) error {
	s.statuses[emailID] = status
	return nil
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "invoice.pdf", SanitizeFilename("invoice.pdf"))
	assert.Equal(t, "a_b_c_d_e_f_g_h_i_.pdf", SanitizeFilename(`a<b>c:d"e/f\g|h?i*.pdf`))
	assert.Equal(t, "Rechnung März.pdf", SanitizeFilename("Rechnung März.pdf"))
}

func TestObjectPath(t *testing.T) {
	got := ObjectPath("email_001", "file_001", "my/invoice.pdf")
	assert.Equal(t, "attachments/email_001/file_001_my_invoice.pdf", got)
}

func TestStage_UploadsAndRecordsLocator(t *testing.T) {
	w := newFakeWriter()
	st := newFakeLocatorStore()
	stager := NewStager(w, st)

	emails := []models.Email{{
		ID: "email_001",
		Files: []models.EmailFile{
			{ID: "file_001", FileName: "invoice.pdf", Content: []byte("pdf bytes")},
		},
	}}

	staged, failed := stager.Stage(context.Background(), emails)
	require.Empty(t, failed)
	require.Len(t, staged, 1)

	wantPath := "attachments/email_001/file_001_invoice.pdf"
	assert.Equal(t, []byte("pdf bytes"), w.objects[wantPath])
	assert.Equal(t, "gs://test-bucket/"+wantPath, st.locators["email_001/file_001"])
	assert.Equal(t, "gs://test-bucket/"+wantPath, staged[0].Files[0].CloudStorageURL)
}

func TestStage_SkipsAlreadyStagedAttachments(t *testing.T) {
	w := newFakeWriter()
	st := newFakeLocatorStore()
	stager := NewStager(w, st)

	emails := []models.Email{{
		ID: "email_001",
		Files: []models.EmailFile{
			{ID: "file_001", FileName: "a.pdf", CloudStorageURL: "gs://test-bucket/existing", Content: []byte("x")},
		},
	}}

	staged, failed := stager.Stage(context.Background(), emails)
	require.Empty(t, failed)
	require.Len(t, staged, 1)
	assert.Empty(t, w.objects)
	assert.Empty(t, st.locators)
	assert.Equal(t, "gs://test-bucket/existing", staged[0].Files[0].CloudStorageURL)
}

func TestStage_UploadFailureMarksEmailFailed(t *testing.T) {
	w := newFakeWriter()
	w.failOn = "attachments/email_bad/file_001_a.pdf"
	st := newFakeLocatorStore()
	stager := NewStager(w, st)

	emails := []models.Email{
		{
			ID:    "email_bad",
			Files: []models.EmailFile{{ID: "file_001", FileName: "a.pdf", Content: []byte("x")}},
		},
		{
			ID:    "email_good",
			Files: []models.EmailFile{{ID: "file_001", FileName: "b.pdf", Content: []byte("y")}},
		},
	}

	staged, failed := stager.Stage(context.Background(), emails)

	// The failing email is excluded and marked Failed; the sibling proceeds.
	assert.Equal(t, []string{"email_bad"}, failed)
	require.Len(t, staged, 1)
	assert.Equal(t, "email_good", staged[0].ID)
	assert.Equal(t, models.StatusFailed, st.statuses["email_bad"])
	assert.NotContains(t, st.statuses, "email_good")
}

func TestStage_ContentlessAttachmentIsLeftUnstaged(t *testing.T) {
	w := newFakeWriter()
	st := newFakeLocatorStore()
	stager := NewStager(w, st)

	emails := []models.Email{{
		ID:    "email_001",
		Files: []models.EmailFile{{ID: "file_001", FileName: "ghost.pdf"}},
	}}

	staged, failed := stager.Stage(context.Background(), emails)
	require.Empty(t, failed)
	require.Len(t, staged, 1)
	assert.Empty(t, staged[0].Files[0].CloudStorageURL)
	assert.Empty(t, w.objects)
}

func TestStage_ReadsFromStagingPath(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/att.pdf"
	require.NoError(t, os.WriteFile(path, []byte("from disk"), 0o600))

	w := newFakeWriter()
	st := newFakeLocatorStore()
	stager := NewStager(w, st)

	emails := []models.Email{{
		ID:    "email_001",
		Files: []models.EmailFile{{ID: "file_001", FileName: "att.pdf", StagingPath: path}},
	}}

	staged, failed := stager.Stage(context.Background(), emails)
	require.Empty(t, failed)
	require.Len(t, staged, 1)
	assert.Equal(t, []byte("from disk"), w.objects["attachments/email_001/file_001_att.pdf"])
}
