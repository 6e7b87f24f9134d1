package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/groupstats/internal/analysis"
	"github.com/Adithya-Monish-Kumar-K/groupstats/internal/groupme"
	"github.com/Adithya-Monish-Kumar-K/groupstats/internal/reconstruct"
	"github.com/Adithya-Monish-Kumar-K/groupstats/internal/service"
	"github.com/Adithya-Monish-Kumar-K/groupstats/internal/trie"
	apperrors "github.com/Adithya-Monish-Kumar-K/groupstats/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/groupstats/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/groupstats/pkg/middleware"
)

type groups map[string]string

func (g groups) Lookup(name string) (string, error) {
	if id, ok := g[name]; ok {
		return id, nil
	}
	return "", apperrors.Newf(apperrors.ErrGroupNotFound, http.StatusNotFound, "no group named %q", name)
}

type messages map[string][]groupme.Message

func (m messages) Sync(_ context.Context, id string, _ bool) ([]groupme.Message, error) {
	return m[id], nil
}

func newTestServer(t *testing.T) (http.Handler, *metrics.Metrics) {
	t.Helper()
	return newTestServerWith(t, Options{RequestTimeout: 5 * time.Second, DefaultTop: 5})
}

func newTestServerWith(t *testing.T, opts Options) (http.Handler, *metrics.Metrics) {
	t.Helper()
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	svc := service.New(service.Config{
		Engine: reconstruct.NewEngine(trie.New("hi", "ho"), "fp", reconstruct.DefaultOptions(), nil),
		Messages: messages{"42": {
			{ID: "2", Name: "ann", Text: "h", CreatedAt: 20, FavoritedBy: []string{"bob"}},
			{ID: "1", Name: "ann", Text: "io", CreatedAt: 10},
		}},
		Groups:   groups{"family": "42"},
		Location: time.UTC,
	})
	h := New(svc, nil, opts)
	return h.Router(m), m
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, &buf))
	return rec
}

func TestStats(t *testing.T) {
	h, m := newTestServer(t)

	rec := do(t, h, http.MethodGet, "/api/v1/groups/family/stats?top=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(middleware.RequestIDHeader))

	var report analysis.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, "42", report.GroupID)
	assert.Equal(t, 2, report.Messages)
	assert.Equal(t, []analysis.Ranked[int]{{Key: "ann", Value: 2}}, report.TopPosters)
	assert.Len(t, report.Hourly, 24)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/api/v1/groups/{name}/stats", "200")))
}

func TestStatsUnknownGroup(t *testing.T) {
	h, _ := newTestServer(t)

	rec := do(t, h, http.MethodGet, "/api/v1/groups/work/stats", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "no group named")
}

func TestStatsBadTop(t *testing.T) {
	h, _ := newTestServer(t)
	rec := do(t, h, http.MethodGet, "/api/v1/groups/family/stats?top=-3", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReconstructWithConstraints(t *testing.T) {
	h, _ := newTestServer(t)

	rec := do(t, h, http.MethodPost, "/api/v1/reconstruct", map[string]any{
		"constraints": []string{"h", "io"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp service.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.ElementsMatch(t, []string{"hi", "hi ", "ho", "ho "}, resp.Candidates)
	assert.Equal(t, 2, resp.Positions)
	assert.NotEmpty(t, resp.RunID)
}

func TestReconstructFromUser(t *testing.T) {
	h, _ := newTestServer(t)

	rec := do(t, h, http.MethodPost, "/api/v1/reconstruct", map[string]any{
		"group":        "family",
		"user":         "ann",
		"max_frontier": 1,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp service.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Truncated)
	assert.Equal(t, []string{"hi"}, resp.Candidates)
}

func TestReconstructRejectsBadBodies(t *testing.T) {
	h, _ := newTestServer(t)

	rec := do(t, h, http.MethodPost, "/api/v1/reconstruct", map[string]any{"bogus": 1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/v1/reconstruct", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/v1/reconstruct", map[string]any{"group": "family", "user": "zed"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestVerify(t *testing.T) {
	h, _ := newTestServer(t)

	rec := do(t, h, http.MethodPost, "/api/v1/verify", map[string]any{
		"constraints": []string{"h", "io", "x"},
		"text":        "H?Q",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var v reconstruct.Verification
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	assert.False(t, v.Valid)
	assert.Equal(t, 2, v.FirstMismatch)
	assert.Equal(t, []int{2}, v.Mismatches)
	assert.Equal(t, 3, v.Checked)
}

func TestCacheEndpointsWhenDisabled(t *testing.T) {
	h, _ := newTestServer(t)

	rec := do(t, h, http.MethodGet, "/api/v1/cache/stats", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"disabled"}`, rec.Body.String())

	rec = do(t, h, http.MethodDelete, "/api/v1/cache", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/v1/groups/family/snapshots", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHealth(t *testing.T) {
	h, _ := newTestServer(t)

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/health/live", nil).Code)
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/health/ready", nil).Code)
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/metrics", nil).Code)
}

func TestRateLimitedRoutes(t *testing.T) {
	h, _ := newTestServerWith(t, Options{RateLimit: 1})
	body := map[string]any{"constraints": []string{"h", "i"}, "text": "hi"}

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/api/v1/verify", body).Code)
	assert.Equal(t, http.StatusTooManyRequests, do(t, h, http.MethodPost, "/api/v1/verify", body).Code)
	// stats are not limited
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/api/v1/groups/family/stats", nil).Code)
}

func TestCORSPreflight(t *testing.T) {
	h, _ := newTestServerWith(t, Options{CORSOrigins: []string{"*"}})

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/reconstruct", nil)
	req.Header.Set("Origin", "https://stats.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://stats.example", rec.Header().Get("Access-Control-Allow-Origin"))
}
