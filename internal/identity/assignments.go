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

package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// APIAssignmentFetcher loads a user's explicit engagement assignments
// from the upstream engagement API.
type APIAssignmentFetcher struct {
	baseURL string
	http    *http.Client
}

// NewAPIAssignmentFetcher creates a fetcher against the configured API
// base URL.
func NewAPIAssignmentFetcher(baseURL string) *APIAssignmentFetcher {
	return &APIAssignmentFetcher{
		baseURL: baseURL,
		http:    &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
	}
}

func (f *APIAssignmentFetcher) FetchAssignments(ctx context.Context, token, tenantID, userID string) ([]int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/api/users/%s/engagements", f.baseURL, userID), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build assignments request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-Tenant-Id", tenantID)

	resp, err := f.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("assignments request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("assignments endpoint returned status %d", resp.StatusCode)
	}

	var payload struct {
		EngagementIDs []int `json:"engagement_ids"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode assignments: %w", err)
	}
	return payload.EngagementIDs, nil
}
