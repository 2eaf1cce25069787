package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	appLog "schedwidget/internal/log"
	"schedwidget/internal/model"
)

// StatusError is returned when the backend answers with a non-2xx status.
type StatusError struct {
	Op   string
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("%s: backend returned %d: %s", e.Op, e.Code, e.Body)
	}
	return fmt.Sprintf("%s: backend returned %d", e.Op, e.Code)
}

// ErrEmptyID is returned by Remove for a blank id.
var ErrEmptyID = errors.New("item id is empty")

// Client talks to the schedule backend.
type Client struct {
	base   *url.URL
	client *http.Client
}

// NewClient creates a Client for the backend rooted at baseURL,
// e.g. "http://127.0.0.1:5000".
func NewClient(baseURL string, timeout time.Duration) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("backend URL is empty")
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse backend URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("backend URL %q must be absolute", baseURL)
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		base:   u,
		client: &http.Client{Timeout: timeout},
	}, nil
}

// List fetches every item (GET /get_schedule).
func (c *Client) List(ctx context.Context) ([]model.Item, error) {
	var items []model.Item
	if err := c.do(ctx, "list", http.MethodGet, c.endpoint("get_schedule"), nil, &items); err != nil {
		return nil, err
	}
	if items == nil {
		items = []model.Item{}
	}
	return items, nil
}

// Add creates an item (POST /add_schedule). Fields are sent as given.
func (c *Client) Add(ctx context.Context, f model.Fields) error {
	body, err := json.Marshal(f)
	if err != nil {
		return err
	}
	return c.do(ctx, "add", http.MethodPost, c.endpoint("add_schedule"), body, nil)
}

// Remove deletes an item (DELETE /delete_schedule/{id}).
func (c *Client) Remove(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return ErrEmptyID
	}
	return c.do(ctx, "remove", http.MethodDelete, c.endpoint("delete_schedule", id), nil, nil)
}

// Legacy fetches the alternate, password-protected view
// (GET /schedule?password=...).
func (c *Client) Legacy(ctx context.Context, password string) (model.LegacyResponse, error) {
	u := c.endpoint("schedule")
	q := u.Query()
	q.Set("password", password)
	u.RawQuery = q.Encode()

	var out model.LegacyResponse
	if err := c.do(ctx, "legacy", http.MethodGet, u, nil, &out); err != nil {
		return model.LegacyResponse{}, err
	}
	if out.Items == nil {
		out.Items = []model.LegacyItem{}
	}
	return out, nil
}

func (c *Client) endpoint(parts ...string) *url.URL {
	u := *c.base
	path := strings.TrimRight(u.Path, "/")
	raw := strings.TrimRight(u.EscapedPath(), "/")
	for _, p := range parts {
		path += "/" + p
		raw += "/" + url.PathEscape(p)
	}
	u.Path = path
	u.RawPath = raw
	u.RawQuery = ""
	return &u
}

func (c *Client) do(ctx context.Context, op, method string, u *url.URL, body []byte, out any) error {
	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), rdr)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		appLog.Error("backend request failed", err, "op", op, "url", redactURL(u))
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		serr := &StatusError{Op: op, Code: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
		appLog.Error("backend non-2xx", serr, "op", op, "url", redactURL(u), "status", resp.StatusCode)
		return serr
	}

	appLog.Debug("backend request done", "op", op, "status", resp.StatusCode, "took", time.Since(start).String())

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		appLog.Error("backend response decode failed", err, "op", op, "url", redactURL(u))
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

// redactURL hides the password query value for logging purposes.
func redactURL(u *url.URL) string {
	cp := *u
	q := cp.Query()
	if q.Has("password") {
		q.Set("password", "redacted")
		cp.RawQuery = q.Encode()
	}
	return cp.String()
}
