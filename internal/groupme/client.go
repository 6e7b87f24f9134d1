// Package groupme is a small client for the parts of the GroupMe v3 REST API
// that groupstats needs: listing groups and paging through a group's
// messages. Every request goes through a retry loop and a circuit breaker.
package groupme

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"

	"github.com/Adithya-Monish-Kumar-K/groupstats/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/groupstats/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/groupstats/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/groupstats/pkg/resilience"
)

const groupsPerPage = 100

// Client talks to the GroupMe API with a single access token.
type Client struct {
	baseURL  *url.URL
	token    string
	pageSize int
	http     *http.Client
	retry    resilience.RetryConfig
	breaker  *resilience.CircuitBreaker
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// New creates a Client. m may be nil.
func New(cfg config.GroupMeConfig, token string, m *metrics.Metrics) (*Client, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing groupme base url %q: %w", cfg.BaseURL, err)
	}
	if token == "" {
		return nil, apperrors.New(apperrors.ErrUnauthorized, http.StatusUnauthorized, "empty groupme token")
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = 100
	}
	c := &Client{
		baseURL:  base,
		token:    token,
		pageSize: pageSize,
		http:     &http.Client{Timeout: cfg.Timeout},
		retry: resilience.RetryConfig{
			MaxAttempts:  cfg.Retry.MaxAttempts,
			InitialDelay: cfg.Retry.InitialDelay,
			MaxDelay:     cfg.Retry.MaxDelay,
			Retryable:    retryable,
		},
		metrics: m,
		logger:  slog.Default().With("component", "groupme-client"),
	}
	c.breaker = resilience.NewCircuitBreaker("groupme", resilience.CircuitBreakerConfig{
		IsFailure: retryable,
		OnStateChange: func(name string, to resilience.State) {
			if m != nil {
				m.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
			}
		},
	})
	return c, nil
}

// Groups returns the directory of the caller's groups, name to id. It pages
// through /groups until a page comes back empty.
func (c *Client) Groups(ctx context.Context) (map[string]string, error) {
	dir := make(map[string]string)
	for page := 1; ; page++ {
		q := url.Values{}
		q.Set("page", strconv.Itoa(page))
		q.Set("per_page", strconv.Itoa(groupsPerPage))
		q.Set("omit", "memberships")
		var env envelope[[]Group]
		if _, err := c.getJSON(ctx, "groups", "groups", q, &env); err != nil {
			return nil, fmt.Errorf("listing groups page %d: %w", page, err)
		}
		if len(env.Response) == 0 {
			break
		}
		for _, g := range env.Response {
			dir[g.Name] = g.ID
		}
	}
	c.logger.Info("fetched group directory", "groups", len(dir))
	return dir, nil
}

// Messages fetches a single page of a group's messages, newest first.
// An exhausted history yields an empty page and no error.
func (c *Client) Messages(ctx context.Context, groupID string, pq PageQuery) ([]Message, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(c.pageSize))
	if pq.BeforeID != "" {
		q.Set("before_id", pq.BeforeID)
	}
	if pq.AfterID != "" {
		q.Set("after_id", pq.AfterID)
	}
	var env envelope[messagesPage]
	status, err := c.getJSON(ctx, "messages", "groups/"+url.PathEscape(groupID)+"/messages", q, &env)
	if err != nil {
		return nil, fmt.Errorf("fetching messages for group %s: %w", groupID, err)
	}
	if status == http.StatusNotModified {
		return nil, nil
	}
	if c.metrics != nil {
		c.metrics.MessagesFetchedTotal.Add(float64(len(env.Response.Messages)))
	}
	return env.Response.Messages, nil
}

// AllMessages pages backwards through a group's whole history and returns
// it newest first.
func (c *Client) AllMessages(ctx context.Context, groupID string) ([]Message, error) {
	var all []Message
	var before string
	for {
		page, err := c.Messages(ctx, groupID, PageQuery{BeforeID: before})
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			break
		}
		all = append(all, page...)
		before = page[len(page)-1].ID
		c.logger.Debug("fetched page", "group_id", groupID, "page_size", len(page), "total", len(all))
	}
	c.logger.Info("fetched group history", "group_id", groupID, "messages", len(all))
	return all, nil
}

// MessagesSince returns every message newer than afterID, newest first.
func (c *Client) MessagesSince(ctx context.Context, groupID, afterID string) ([]Message, error) {
	var fresh []Message
	cursor := afterID
	for {
		page, err := c.Messages(ctx, groupID, PageQuery{AfterID: cursor})
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			break
		}
		fresh = append(fresh, page...)
		cursor = newest(page).ID
	}
	SortNewestFirst(fresh)
	return fresh, nil
}

// SortNewestFirst orders messages by creation time, newest first. Ties keep
// their relative order.
func SortNewestFirst(msgs []Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].CreatedAt > msgs[j].CreatedAt
	})
}

func newest(page []Message) Message {
	best := page[0]
	for _, m := range page[1:] {
		if m.CreatedAt > best.CreatedAt {
			best = m
		}
	}
	return best
}

// getJSON performs a GET against the API and decodes the body into out. A
// 304 or an empty body leaves out untouched and is not an error.
func (c *Client) getJSON(ctx context.Context, endpoint, path string, q url.Values, out any) (int, error) {
	ref := &url.URL{Path: path}
	q.Set("token", c.token)
	ref.RawQuery = q.Encode()
	target := c.baseURL.ResolveReference(ref)

	var status int
	err := resilience.Retry(ctx, "groupme "+endpoint, c.retry, func() error {
		return c.breaker.Execute(func() error {
			var err error
			status, err = c.fetch(ctx, endpoint, target.String(), out)
			return err
		})
	})
	return status, err
}

func (c *Client) fetch(ctx context.Context, endpoint, target string, out any) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return 0, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.observe(endpoint, "error")
		return 0, &statusError{err: fmt.Errorf("%w: %v", apperrors.ErrUpstream, err), retry: true}
	}
	defer resp.Body.Close()
	c.observe(endpoint, strconv.Itoa(resp.StatusCode))

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, &statusError{err: fmt.Errorf("%w: reading body: %v", apperrors.ErrUpstream, err), retry: true}
	}

	switch {
	case resp.StatusCode == http.StatusNotModified:
		return resp.StatusCode, nil
	case resp.StatusCode == http.StatusUnauthorized:
		return resp.StatusCode, &statusError{err: apperrors.ErrUnauthorized}
	case resp.StatusCode == http.StatusNotFound:
		return resp.StatusCode, &statusError{err: apperrors.ErrGroupNotFound}
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return resp.StatusCode, &statusError{err: fmt.Errorf("%w: status %d", apperrors.ErrUpstream, resp.StatusCode), retry: true}
	case resp.StatusCode >= 300:
		return resp.StatusCode, &statusError{err: fmt.Errorf("%w: status %d", apperrors.ErrUpstream, resp.StatusCode)}
	}

	if len(body) == 0 {
		return http.StatusNotModified, nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return resp.StatusCode, fmt.Errorf("decoding %s response: %w", endpoint, err)
	}
	return resp.StatusCode, nil
}

func (c *Client) observe(endpoint, status string) {
	if c.metrics != nil {
		c.metrics.GroupMeRequestsTotal.WithLabelValues(endpoint, status).Inc()
	}
}

// statusError marks whether a failed request is worth retrying.
type statusError struct {
	err   error
	retry bool
}

func (e *statusError) Error() string { return e.err.Error() }

func (e *statusError) Unwrap() error { return e.err }

func retryable(err error) bool {
	var se *statusError
	if apperrors.As(err, &se) {
		return se.retry
	}
	return false
}
