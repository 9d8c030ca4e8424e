// Copyright 2026 Province of British Columbia
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

package engagement

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// TenantHeader carries the active tenant on every upstream request.
const TenantHeader = "X-Tenant-Id"

// Client fetches engagements from the upstream engagement REST API.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates an engagement API client against the configured base
// URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
	}
}

// Get fetches one engagement. The bearer token and tenant id are carried
// per request; the upstream never sees gateway session state.
func (c *Client) Get(ctx context.Context, id int, token, tenantID string) (*Engagement, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/api/engagements/%d", c.baseURL, id), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build engagement request: %w", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set(TenantHeader, tenantID)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("engagement request failed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, ErrEngagementNotFound
	default:
		return nil, fmt.Errorf("engagement API returned status %d", resp.StatusCode)
	}

	var e Engagement
	if err := json.NewDecoder(resp.Body).Decode(&e); err != nil {
		return nil, fmt.Errorf("failed to decode engagement: %w", err)
	}
	return &e, nil
}
