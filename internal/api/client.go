package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"archivist/internal/bookmarks"
)

// ErrDaemonUnavailable indicates the daemon could not be reached at all.
var ErrDaemonUnavailable = errors.New("daemon is not reachable")

// Client talks to a running daemon's HTTP API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient builds a client for the given bind address or URL.
func NewClient(address, token string) *Client {
	base := strings.TrimSpace(address)
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	return &Client{
		baseURL:    strings.TrimRight(base, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDaemonUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr ErrorResponse
		if decodeErr := json.NewDecoder(resp.Body).Decode(&apiErr); decodeErr == nil && apiErr.Error != "" {
			return fmt.Errorf("%s", apiErr.Error)
		}
		return fmt.Errorf("request failed with status %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Status fetches daemon runtime information.
func (c *Client) Status(ctx context.Context) (*DaemonStatus, error) {
	var status DaemonStatus
	if err := c.do(ctx, http.MethodGet, "/api/status", nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// CreateJob queues a new transfer.
func (c *Client) CreateJob(ctx context.Context, req CreateJobRequest) (*JobView, error) {
	var resp JobResponse
	if err := c.do(ctx, http.MethodPost, "/api/jobs", req, &resp); err != nil {
		return nil, err
	}
	return &resp.Job, nil
}

// Job fetches one job by id.
func (c *Client) Job(ctx context.Context, id string) (*JobView, error) {
	var resp JobResponse
	if err := c.do(ctx, http.MethodGet, "/api/jobs/"+url.PathEscape(id), nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Job, nil
}

// ActiveJobs lists non-terminal jobs.
func (c *Client) ActiveJobs(ctx context.Context) ([]JobView, error) {
	var resp JobListResponse
	if err := c.do(ctx, http.MethodGet, "/api/jobs", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Jobs, nil
}

// History lists terminal jobs, newest first.
func (c *Client) History(ctx context.Context, limit int) ([]JobView, error) {
	path := "/api/jobs/history"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var resp JobListResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Jobs, nil
}

// CancelJob requests cancellation and reports whether it took effect.
func (c *Client) CancelJob(ctx context.Context, id string) (bool, error) {
	var resp CancelResponse
	if err := c.do(ctx, http.MethodPost, "/api/jobs/"+url.PathEscape(id)+"/cancel", nil, &resp); err != nil {
		return false, err
	}
	return resp.Cancelled, nil
}

// ClearHistory removes all terminal jobs.
func (c *Client) ClearHistory(ctx context.Context) (int64, error) {
	var resp ClearHistoryResponse
	if err := c.do(ctx, http.MethodDelete, "/api/jobs/history", nil, &resp); err != nil {
		return 0, err
	}
	return resp.Removed, nil
}

// Search queries the content archive through the daemon.
func (c *Client) Search(ctx context.Context, query string, page, rows int, sort string) (*SearchResponse, error) {
	params := url.Values{}
	params.Set("q", query)
	if page > 0 {
		params.Set("page", strconv.Itoa(page))
	}
	if rows > 0 {
		params.Set("rows", strconv.Itoa(rows))
	}
	if sort != "" {
		params.Set("sort", sort)
	}
	var resp SearchResponse
	if err := c.do(ctx, http.MethodGet, "/api/search?"+params.Encode(), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Item fetches one item's metadata record.
func (c *Client) Item(ctx context.Context, identifier string) (*ItemResponse, error) {
	var resp ItemResponse
	if err := c.do(ctx, http.MethodGet, "/api/items/"+url.PathEscape(identifier), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Settings fetches the persisted settings map.
func (c *Client) Settings(ctx context.Context) (*SettingsResponse, error) {
	var resp SettingsResponse
	if err := c.do(ctx, http.MethodGet, "/api/settings", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// UpdateSettings persists the given key/value pairs.
func (c *Client) UpdateSettings(ctx context.Context, values map[string]json.RawMessage) (*SettingsResponse, error) {
	var resp SettingsResponse
	err := c.do(ctx, http.MethodPut, "/api/settings", UpdateSettingsRequest{Settings: values}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// Bookmarks lists saved items.
func (c *Client) Bookmarks(ctx context.Context) ([]bookmarks.Bookmark, error) {
	var resp BookmarkListResponse
	if err := c.do(ctx, http.MethodGet, "/api/bookmarks", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Bookmarks, nil
}

// AddBookmark saves an item.
func (c *Client) AddBookmark(ctx context.Context, req BookmarkRequest) error {
	return c.do(ctx, http.MethodPost, "/api/bookmarks", req, nil)
}

// RemoveBookmark deletes a saved item.
func (c *Client) RemoveBookmark(ctx context.Context, identifier string) error {
	return c.do(ctx, http.MethodDelete, "/api/bookmarks/"+url.PathEscape(identifier), nil, nil)
}

// RecentSearches lists recent search queries.
func (c *Client) RecentSearches(ctx context.Context) ([]string, error) {
	var resp SearchHistoryResponse
	if err := c.do(ctx, http.MethodGet, "/api/searches", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Queries, nil
}

// Watch opens the live event stream over a websocket and invokes onEvent
// for every update until the context ends or the stream closes.
func (c *Client) Watch(ctx context.Context, onEvent func(Event)) error {
	wsURL := strings.Replace(c.baseURL, "http", "ws", 1) + "/api/jobs/ws"
	header := http.Header{}
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, header)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDaemonUnavailable, err)
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		_ = conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		_ = conn.Close()
	}()

	for {
		var event Event
		if err := conn.ReadJSON(&event); err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}
		if onEvent != nil {
			onEvent(event)
		}
	}
}
