/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package tracker syncs reading progress with a hosted GraphQL tracking
// service (AniList-compatible API shape).
package tracker

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Client is a minimal GraphQL client for the tracking service. It supports
// the search and progress operations used by the desktop app.
type Client struct {
	BaseURL string
	Token   string // bearer token
	client  *http.Client
}

// NewClient creates a tracker client. baseURL may include a trailing slash;
// it will be normalized.
func NewClient(baseURL, token string, timeout time.Duration, tlsInsecure bool) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	transport := http.DefaultTransport
	if tlsInsecure {
		transport = &http.Transport{TLSClientConfig: &tls.Config{InsecureSkipVerify: true}}
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		client:  &http.Client{Timeout: timeout, Transport: transport},
	}
}

type gqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type gqlError struct {
	Message string `json:"message"`
}

type gqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []gqlError      `json:"errors"`
}

// do posts one GraphQL operation and decodes the data envelope into dest.
func (c *Client) do(ctx context.Context, query string, vars map[string]any, dest any) error {
	body, err := json.Marshal(gqlRequest{Query: query, Variables: vars})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("tracker: %s", resp.Status)
	}

	var env gqlResponse
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(&env); err != nil {
		return fmt.Errorf("tracker: decode response: %w", err)
	}
	if len(env.Errors) > 0 {
		msgs := make([]string, 0, len(env.Errors))
		for _, e := range env.Errors {
			msgs = append(msgs, e.Message)
		}
		return fmt.Errorf("tracker: %s", strings.Join(msgs, "; "))
	}
	if dest == nil {
		return nil
	}
	return json.Unmarshal(env.Data, dest)
}

// Media is one manga entry on the tracking service.
type Media struct {
	ID       int64  `json:"id"`
	Romaji   string `json:"-"`
	English  string `json:"-"`
	Chapters int    `json:"chapters"`
}

func (m *Media) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID    int64 `json:"id"`
		Title struct {
			Romaji  string `json:"romaji"`
			English string `json:"english"`
		} `json:"title"`
		Chapters int `json:"chapters"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	m.ID = raw.ID
	m.Romaji = raw.Title.Romaji
	m.English = raw.Title.English
	m.Chapters = raw.Chapters
	return nil
}

const searchQuery = `query ($search: String) {
  Page(perPage: 10) {
    media(search: $search, type: MANGA) {
      id
      title { romaji english }
      chapters
    }
  }
}`

// SearchManga looks a series up by title.
func (c *Client) SearchManga(ctx context.Context, title string) ([]Media, error) {
	var data struct {
		Page struct {
			Media []Media `json:"media"`
		} `json:"Page"`
	}
	if err := c.do(ctx, searchQuery, map[string]any{"search": title}, &data); err != nil {
		return nil, err
	}
	return data.Page.Media, nil
}

const viewerQuery = `query { Viewer { id name } }`

// Viewer identifies the authenticated account; used to verify the token.
type Viewer struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Viewer returns the account behind the configured token.
func (c *Client) Viewer(ctx context.Context) (*Viewer, error) {
	var data struct {
		Viewer Viewer `json:"Viewer"`
	}
	if err := c.do(ctx, viewerQuery, nil, &data); err != nil {
		return nil, err
	}
	return &data.Viewer, nil
}

const saveProgressMutation = `mutation ($mediaId: Int, $progress: Int) {
  SaveMediaListEntry(mediaId: $mediaId, progress: $progress) {
    id
    progress
  }
}`

// SaveProgress pushes the chapters-read count for a series.
func (c *Client) SaveProgress(ctx context.Context, mediaID int64, chaptersRead int) error {
	var data struct {
		SaveMediaListEntry struct {
			ID       int64 `json:"id"`
			Progress int   `json:"progress"`
		} `json:"SaveMediaListEntry"`
	}
	return c.do(ctx, saveProgressMutation, map[string]any{
		"mediaId":  mediaID,
		"progress": chaptersRead,
	}, &data)
}
