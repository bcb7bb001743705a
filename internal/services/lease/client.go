// Package lease checks how long the account's game servers have left and
// renews them with check-in points.
package lease

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// APIError is a non-success answer from the provider API.
type APIError struct {
	Status  int
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error (http %d, code %d): %s", e.Status, e.Code, e.Message)
}

// Detail is the part of a server detail the renewal logic needs.
type Detail struct {
	ExpDate int64 // unix seconds, 0 when unknown
	Title   string
}

// envelope wraps every API answer.
type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Client talks to the provider's HTTP API with an API key.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		if resp.StatusCode != http.StatusOK {
			return &APIError{Status: resp.StatusCode, Message: resp.Status}
		}
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	if resp.StatusCode != http.StatusOK || env.Code != http.StatusOK {
		return &APIError{Status: resp.StatusCode, Code: env.Code, Message: env.Message}
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("failed to decode %s data: %w", path, err)
		}
	}
	return nil
}

// Balance returns the account's point balance.
func (c *Client) Balance(ctx context.Context) (int, error) {
	var data struct {
		Points int `json:"Points"`
	}
	if err := c.do(ctx, http.MethodGet, "/user/", nil, &data); err != nil {
		return 0, err
	}
	return data.Points, nil
}

// ListLeases returns the ids of the account's game servers.
func (c *Client) ListLeases(ctx context.Context) ([]int64, error) {
	var data struct {
		Records []struct {
			ID int64 `json:"ID"`
		} `json:"Records"`
	}
	if err := c.do(ctx, http.MethodGet, "/product/rgs/", nil, &data); err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(data.Records))
	for _, r := range data.Records {
		ids = append(ids, r.ID)
	}
	return ids, nil
}

// LeaseDetail returns the expiry and display name of server id.
func (c *Client) LeaseDetail(ctx context.Context, id int64) (Detail, error) {
	var data struct {
		Data struct {
			ExpDate int64 `json:"ExpDate"`
			EggType struct {
				Egg struct {
					Title string `json:"title"`
				} `json:"egg"`
			} `json:"EggType"`
		} `json:"Data"`
	}
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/product/rgs/%d/", id), nil, &data); err != nil {
		return Detail{}, err
	}
	return Detail{ExpDate: data.Data.ExpDate, Title: data.Data.EggType.Egg.Title}, nil
}

// Renew extends server id by days, paid with points.
func (c *Client) Renew(ctx context.Context, id int64, days int) error {
	body := map[string]any{"duration_day": days}
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/product/rgs/%d/renew", id), body, nil)
}
