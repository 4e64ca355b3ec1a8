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

// Package blob stages email attachments into Cloud Storage and produces
// the gs:// locators the adapter service dereferences. The locator scheme
// prefix is a contract other services depend on.
package blob

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/storage"
)

// ObjectWriter stores attachment bytes under an object path. Satisfied by
// Uploader; tests substitute an in-memory implementation.
type ObjectWriter interface {
	Put(ctx context.Context, objectPath string, data []byte) error
	Locator(objectPath string) string
}

// Uploader writes attachment objects into a GCS bucket.
type Uploader struct {
	client *storage.Client
	bucket string
}

// NewUploader creates an Uploader targeting the given bucket.
func NewUploader(client *storage.Client, bucket string) *Uploader {
	return &Uploader{client: client, bucket: bucket}
}

// Put writes data to the object path, overwriting any existing object.
func (u *Uploader) Put(ctx context.Context, objectPath string, data []byte) error {
	w := u.client.Bucket(u.bucket).Object(objectPath).NewWriter(ctx)
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("write object %s: %w", objectPath, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize object %s: %w", objectPath, err)
	}
	return nil
}

// Locator returns the gs:// URI for an object path.
func (u *Uploader) Locator(objectPath string) string {
	return fmt.Sprintf("gs://%s/%s", u.bucket, objectPath)
}

// CheckBucket verifies the bucket is reachable with the current credentials.
func (u *Uploader) CheckBucket(ctx context.Context) error {
	if _, err := u.client.Bucket(u.bucket).Attrs(ctx); err != nil {
		return fmt.Errorf("bucket %s: %w", u.bucket, err)
	}
	return nil
}

// ObjectPath builds the attachment object path:
// attachments/<email-id>/<file-id>_<sanitized-filename>.
func ObjectPath(emailID, fileID, fileName string) string {
	return fmt.Sprintf("attachments/%s/%s_%s", emailID, fileID, SanitizeFilename(fileName))
}

// SanitizeFilename replaces characters unsafe for storage paths.
func SanitizeFilename(name string) string {
	const unsafe = `<>:"/\|?*`
	return strings.Map(func(r rune) rune {
		if strings.ContainsRune(unsafe, r) {
			return '_'
		}
		return r
	}, name)
}
