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

package extraction

import (
	"errors"
	"fmt"
)

// TransportError means the adapter endpoint was unreachable or the call
// timed out. Affected source records are left untouched for retry.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("adapter transport failure: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// RemoteError means the adapter reported a structured failure: a non-2xx
// response with a detail message, or a 2xx body with status "error". The
// whole batch is marked Failed.
type RemoteError struct {
	StatusCode int
	Detail     string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("adapter reported error (HTTP %d): %s", e.StatusCode, e.Detail)
}

// DecodeError means the adapter response body did not parse. Treated like
// a transport failure: nothing is persisted and statuses stay untouched.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("adapter response did not parse: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// IsTransport reports whether err classifies as a transport failure.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// IsRemote reports whether err classifies as a remote structured error.
func IsRemote(err error) bool {
	var re *RemoteError
	return errors.As(err, &re)
}

// IsDecode reports whether err classifies as a response-parse failure.
func IsDecode(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}
