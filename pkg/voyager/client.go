// Package voyager is a Go client for the Voyager recommendation service.
package voyager

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/goccy/go-json"
)

// Client is the Voyager API client. Safe for concurrent use.
type Client struct {
	http   *resty.Client
	userID string
}

// New creates a new Voyager client
func New(config Config) (*Client, error) {
	if config.BaseURL == "" {
		return nil, errors.New("BaseURL is required")
	}
	if config.Timeout == 0 {
		config.Timeout = 90 * time.Second
	}

	c := resty.New().
		SetBaseURL(strings.TrimRight(config.BaseURL, "/")).
		SetHeader("Accept", "application/json").
		SetTimeout(config.Timeout)
	if config.APIKey != "" {
		c.SetAuthToken(config.APIKey)
	}
	return &Client{http: c, userID: config.UserID}, nil
}

// WithUser returns a client that acts as a different user.
func (c *Client) WithUser(userID string) *Client {
	return &Client{http: c.http, userID: userID}
}

// Health reports service status. It needs no credentials.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var out HealthResponse
	if err := c.do(ctx, http.MethodGet, "/api/health", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Recommend asks for one recommendation. providerTag may be empty to use the
// service's current provider. A nil result means none was available.
func (c *Client) Recommend(ctx context.Context, kind MediaKind, providerTag string) (*Recommendation, error) {
	path := "/recommendation/movie"
	if kind == KindTV {
		path = "/recommendation/tvshow"
	}
	query := url.Values{}
	if providerTag != "" {
		query.Set("provider", providerTag)
	}

	var out Recommendation
	err := c.do(ctx, http.MethodGet, path, query, nil, &out)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Search runs a catalog search. No matches is an empty slice.
func (c *Client) Search(ctx context.Context, kind MediaKind, keyword string) ([]CatalogResult, error) {
	path := "/api/search/movies"
	if kind == KindTV {
		path = "/api/search/tvShows"
	}

	var out []CatalogResult
	err := c.do(ctx, http.MethodGet, path, url.Values{"keyword": {keyword}}, nil, &out)
	if errors.Is(err, ErrNotFound) {
		return []CatalogResult{}, nil
	}
	return out, err
}

// Profile returns the user's taste profile for kind.
func (c *Client) Profile(ctx context.Context, kind MediaKind) (*TasteProfile, error) {
	var out TasteProfile
	if err := c.do(ctx, http.MethodGet, "/api/user/"+string(kind), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AddFavourites adds items to favourites and watch history.
func (c *Client) AddFavourites(ctx context.Context, kind MediaKind, items ...MediaItem) (*TasteProfile, error) {
	return c.addItems(ctx, kind, "favourites", items)
}

// AddToHistory adds items to watch history.
func (c *Client) AddToHistory(ctx context.Context, kind MediaKind, items ...MediaItem) (*TasteProfile, error) {
	return c.addItems(ctx, kind, "history", items)
}

func (c *Client) addItems(ctx context.Context, kind MediaKind, list string, items []MediaItem) (*TasteProfile, error) {
	body := struct {
		Items []MediaItem `json:"items"`
	}{Items: items}

	var out TasteProfile
	if err := c.do(ctx, http.MethodPost, "/api/user/"+string(kind)+"/"+list, nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Activity returns the user's recent activity, newest first. limit 0 uses the
// service default.
func (c *Client) Activity(ctx context.Context, limit int) ([]UserActivity, error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	var out []UserActivity
	if err := c.do(ctx, http.MethodGet, "/api/user/activity", query, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Provider returns the active provider.
func (c *Client) Provider(ctx context.Context) (string, error) {
	var out ProviderResponse
	if err := c.do(ctx, http.MethodGet, "/api/provider", nil, nil, &out); err != nil {
		return "", err
	}
	return out.Provider, nil
}

// SetProvider switches the active provider.
func (c *Client) SetProvider(ctx context.Context, name string) (*ProviderResponse, error) {
	var out ProviderResponse
	if err := c.do(ctx, http.MethodPost, "/api/provider/"+url.PathEscape(name), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	req := c.http.R().SetContext(ctx)
	if c.userID != "" {
		req.SetHeader("x-uid", c.userID)
	}
	if query != nil {
		req.SetQueryParamsFromValues(query)
	}
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		req.SetHeader("Content-Type", "application/json").SetBody(data)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	if resp.IsError() {
		return decodeProblem(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func decodeProblem(resp *resty.Response) error {
	apiErr := &APIError{}
	if err := json.Unmarshal(resp.Body(), apiErr); err != nil || apiErr.Status == 0 {
		apiErr = &APIError{Detail: strings.TrimSpace(string(resp.Body()))}
	}
	apiErr.Status = resp.StatusCode()
	return apiErr
}
