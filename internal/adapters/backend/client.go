// Package backend fetches authoritative history snapshots from the push
// platform's REST API.
package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/bnema/pttsync/internal/adapters/auth"
	"github.com/bnema/pttsync/internal/domain"
	"github.com/bnema/pttsync/internal/ports"
)

const (
	HistoryPath = "/api/mobile/history"

	defaultTimeout  = 30 * time.Second
	maxResponseSize = 1 << 20
	userAgent       = "pttsync/history"
)

var ErrUnauthorized = errors.New("backend rejected credentials")

type Client struct {
	endpoint   string
	creds      auth.Credentials
	httpClient *http.Client
	clock      ports.Clock
	logger     *slog.Logger
}

type Option func(*Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) { c.httpClient = client }
}

func WithClock(clock ports.Clock) Option {
	return func(c *Client) { c.clock = clock }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

func NewClient(baseURL string, creds auth.Credentials, opts ...Option) (*Client, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}
	endpoint, err := auth.BuildAPIURL(baseURL, HistoryPath)
	if err != nil {
		return nil, err
	}

	c := &Client{
		endpoint:   endpoint,
		creds:      creds,
		httpClient: &http.Client{Timeout: defaultTimeout},
		clock:      ports.SystemClock{},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "backend")
	return c, nil
}

// FetchHistory returns the backend's current history list, newest first as
// the server orders it. Entries without an ID are dropped.
func (c *Client) FetchHistory(ctx context.Context) ([]domain.HistoryItem, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	request.Header.Set("Accept", "application/json")
	request.Header.Set("User-Agent", userAgent)
	auth.SignRequest(request, c.creds, c.clock.Now())

	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("perform request: %w", err)
	}
	defer response.Body.Close()

	body, err := io.ReadAll(io.LimitReader(response.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if response.StatusCode < 200 || response.StatusCode > 299 {
		if response.StatusCode == http.StatusUnauthorized || response.StatusCode == http.StatusForbidden {
			return nil, fmt.Errorf("%w: status %d", ErrUnauthorized, response.StatusCode)
		}
		return nil, fmt.Errorf("status %d: %s", response.StatusCode, strings.TrimSpace(string(body)))
	}

	var items []domain.HistoryItem
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, fmt.Errorf("decode history response: %w", err)
	}

	valid := make([]domain.HistoryItem, 0, len(items))
	for _, item := range items {
		if strings.TrimSpace(item.ID) == "" || !item.Status.Valid() {
			c.logger.Warn("dropping malformed history entry", "id", item.ID, "status", item.Status)
			continue
		}
		valid = append(valid, item)
	}

	c.logger.Debug("fetched history snapshot", "items", len(valid))
	return valid, nil
}
