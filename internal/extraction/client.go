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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Response is the decoded /extract response. Results values stay raw: per
// key they are either an email result object or, under the reserved
// calendar_add_details key, a list of calendar proposals. The normalizer
// decodes each according to its key.
type Response struct {
	Status       string                     `json:"status"`
	Results      map[string]json.RawMessage `json:"results"`
	ErrorMessage string                     `json:"error_message,omitempty"`
}

// HealthStatus is the /health response body.
type HealthStatus struct {
	Status           string `json:"status"`
	Service          string `json:"service"`
	Version          string `json:"version"`
	OpenAIConfigured bool   `json:"openai_configured"`
}

// errorBody is the adapter's non-2xx response shape.
type errorBody struct {
	Detail string `json:"detail"`
}

// Client calls the adapter service. It performs no retries; retry policy
// belongs to the scheduler that invokes the batch.
type Client struct {
	httpClient *http.Client
	baseURL    string
	timeout    time.Duration
}

// NewClient creates an adapter client. A nil httpClient falls back to a
// plain http.Client; callers that need authenticated calls pass an OAuth2
// client-credentials client instead.
func NewClient(baseURL string, timeout time.Duration, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if timeout <= 0 {
		timeout = 300 * time.Second
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		timeout:    timeout,
	}
}

// Extract POSTs the batch request to /extract with the configured bound on
// the wait. The returned error, when non-nil, is always one of
// *TransportError, *RemoteError, or *DecodeError.
func (c *Client) Extract(ctx context.Context, req *Request) (*Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, &DecodeError{Err: fmt.Errorf("marshal request: %w", err)}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/extract", bytes.NewReader(body))
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		var eb errorBody
		raw, _ := io.ReadAll(io.LimitReader(httpResp.Body, 1<<20))
		if err := json.Unmarshal(raw, &eb); err != nil || eb.Detail == "" {
			eb.Detail = string(raw)
		}
		return nil, &RemoteError{StatusCode: httpResp.StatusCode, Detail: eb.Detail}
	}

	var resp Response
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, &DecodeError{Err: err}
	}

	if resp.Status != "success" {
		return nil, &RemoteError{StatusCode: httpResp.StatusCode, Detail: resp.ErrorMessage}
	}

	return &resp, nil
}

// Health checks the adapter's /health endpoint. Used as a pre-flight so a
// dead adapter aborts the run before any attachment uploads.
func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return nil, &TransportError{Err: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &RemoteError{StatusCode: resp.StatusCode, Detail: "health check failed"}
	}

	var hs HealthStatus
	if err := json.NewDecoder(resp.Body).Decode(&hs); err != nil {
		return nil, &DecodeError{Err: err}
	}
	return &hs, nil
}
