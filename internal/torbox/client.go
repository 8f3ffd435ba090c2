// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package torbox is a minimal client for the TorBox download service, covering
// the read and control endpoints the automation engine consumes.
package torbox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/boxarr/boxarr/internal/buildinfo"
)

const maxResponseBytes int64 = 32 << 20

const (
	DefaultAPIVersion = "v1"
	DefaultTimeout    = 30 * time.Second
)

// APIError represents a non-success response from the TorBox API. It preserves
// the status code so callers can distinguish auth failures from outages.
type APIError struct {
	StatusCode int
	Endpoint   string
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("torbox %s returned status %d: %s", e.Endpoint, e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("torbox %s returned status %d", e.Endpoint, e.StatusCode)
}

func (e *APIError) Is(target error) bool {
	_, ok := target.(*APIError)
	return ok
}

// Client calls the TorBox API with one user's bearer credential. Every call is
// a single round trip bounded by the configured timeout; retrying is left to
// the next scheduler pass.
type Client struct {
	baseURL    string
	apiVersion string
	apiKey     string
	httpClient *http.Client
}

// Config controls client construction.
type Config struct {
	BaseURL    string
	APIVersion string
	APIKey     string
	Timeout    time.Duration
	HTTPClient *http.Client
}

func NewClient(cfg Config) *Client {
	if cfg.APIVersion == "" {
		cfg.APIVersion = DefaultAPIVersion
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiVersion: cfg.APIVersion,
		apiKey:     cfg.APIKey,
		httpClient: httpClient,
	}
}

// MyList returns the user's active items, bypassing the server-side cache so
// rule evaluation sees live state.
func (c *Client) MyList(ctx context.Context) ([]Item, error) {
	items, err := c.list(ctx, "torrents/mylist", url.Values{"bypass_cache": {"true"}})
	if err != nil {
		return nil, err
	}
	return items, nil
}

// QueuedList returns the user's queued torrent downloads.
func (c *Client) QueuedList(ctx context.Context) ([]Item, error) {
	items, err := c.list(ctx, "queued/list", url.Values{
		"type":         {"torrent"},
		"bypass_cache": {"true"},
	})
	if err != nil {
		return nil, err
	}
	for i := range items {
		items[i].Queued = true
		items[i].DownloadState = ""
	}
	return items, nil
}

// ControlTorrent issues a control operation against an active torrent.
func (c *Client) ControlTorrent(ctx context.Context, itemID int64, op TorrentOperation) error {
	return c.control(ctx, "torrents/control", map[string]any{
		"id":        itemID,
		"operation": string(op),
	})
}

// ControlQueued issues a control operation against a queued download.
func (c *Client) ControlQueued(ctx context.Context, itemID int64, op QueuedOperation) error {
	return c.control(ctx, "queued/control", map[string]any{
		"id":        itemID,
		"operation": string(op),
		"type":      "torrent",
	})
}

func (c *Client) list(ctx context.Context, endpoint string, params url.Values) ([]Item, error) {
	body, err := c.do(ctx, http.MethodGet, endpoint, params, nil)
	if err != nil {
		return nil, err
	}

	var resp listResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode %s response: %w", endpoint, err)
	}
	if !resp.Success {
		return nil, fmt.Errorf("torbox %s failed: %s", endpoint, firstNonEmpty(resp.Detail, resp.Error, "unknown error"))
	}

	items := make([]Item, 0, len(resp.Data))
	for _, raw := range resp.Data {
		var item Item
		if err := json.Unmarshal(raw, &item); err != nil {
			return nil, fmt.Errorf("failed to decode %s item: %w", endpoint, err)
		}
		item.Raw = raw
		items = append(items, item)
	}

	return items, nil
}

func (c *Client) control(ctx context.Context, endpoint string, payload map[string]any) error {
	body, err := c.do(ctx, http.MethodPost, endpoint, nil, payload)
	if err != nil {
		return err
	}

	var resp controlResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", endpoint, err)
	}
	if !resp.Success {
		return fmt.Errorf("torbox %s failed: %s", endpoint, firstNonEmpty(resp.Detail, resp.Error, "unknown error"))
	}

	return nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, params url.Values, payload any) ([]byte, error) {
	requestURL := fmt.Sprintf("%s/%s/api/%s", c.baseURL, c.apiVersion, endpoint)
	if len(params) > 0 {
		requestURL += "?" + params.Encode()
	}

	var reqBody io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s payload: %w", endpoint, err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, requestURL, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s request: %w", endpoint, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("User-Agent", buildinfo.UserAgent)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("torbox %s request failed: %w", endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s response: %w", endpoint, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Endpoint: endpoint}
		var errResp controlResponse
		if json.Unmarshal(body, &errResp) == nil {
			apiErr.Detail = firstNonEmpty(errResp.Detail, errResp.Error, "")
		}
		return nil, apiErr
	}

	return body, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
