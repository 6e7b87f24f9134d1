package groupme

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/groupstats/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/groupstats/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/groupstats/pkg/metrics"
)

func msg(id string, createdAt int64) Message {
	return Message{ID: id, GroupID: "42", Name: "ann", Text: "hi " + id, CreatedAt: createdAt}
}

func writePage(w http.ResponseWriter, msgs []Message) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"response": map[string]any{"count": 5, "messages": msgs},
		"meta":     map[string]any{"code": 200},
	})
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *metrics.Metrics) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := config.Default().GroupMe
	cfg.BaseURL = srv.URL + "/v3/"
	cfg.Timeout = 2 * time.Second
	cfg.Retry = config.RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	c, err := New(cfg, "secret", m)
	require.NoError(t, err)
	return c, m
}

func TestGroupsPagesUntilEmpty(t *testing.T) {
	var pages atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v3/groups", r.URL.Path)
		assert.Equal(t, "secret", r.URL.Query().Get("token"))
		assert.Equal(t, "100", r.URL.Query().Get("per_page"))
		pages.Add(1)
		var groups []Group
		switch r.URL.Query().Get("page") {
		case "1":
			groups = []Group{{ID: "1", Name: "family"}, {ID: "2", Name: "work"}}
		case "2":
			groups = []Group{{ID: "3", Name: "club"}}
		}
		json.NewEncoder(w).Encode(map[string]any{"response": groups})
	})

	dir, err := c.Groups(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"family": "1", "work": "2", "club": "3"}, dir)
	assert.Equal(t, int32(3), pages.Load())
}

func TestAllMessagesPagesUntilEmpty(t *testing.T) {
	var mu sync.Mutex
	var befores []string
	c, m := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v3/groups/42/messages", r.URL.Path)
		before := r.URL.Query().Get("before_id")
		mu.Lock()
		befores = append(befores, before)
		mu.Unlock()
		switch before {
		case "":
			writePage(w, []Message{msg("5", 50), msg("4", 40), msg("3", 30)})
		case "3":
			writePage(w, []Message{msg("2", 20), msg("1", 10)})
		default:
			w.WriteHeader(http.StatusNotModified)
		}
	})

	all, err := c.AllMessages(context.Background(), "42")
	require.NoError(t, err)

	ids := make([]string, len(all))
	for i, message := range all {
		ids[i] = message.ID
	}
	assert.Equal(t, []string{"5", "4", "3", "2", "1"}, ids)
	mu.Lock()
	assert.Equal(t, []string{"", "3", "1"}, befores)
	mu.Unlock()
	assert.Equal(t, 5.0, testutil.ToFloat64(m.MessagesFetchedTotal))
}

func TestMessagesSince(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("after_id") {
		case "5":
			writePage(w, []Message{msg("6", 60), msg("7", 70)})
		default:
			writePage(w, nil)
		}
	})

	fresh, err := c.MessagesSince(context.Background(), "42", "5")
	require.NoError(t, err)
	require.Len(t, fresh, 2)
	assert.Equal(t, "7", fresh[0].ID)
	assert.Equal(t, "6", fresh[1].ID)
}

func TestUnauthorizedIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := c.Groups(context.Background())
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
	assert.Equal(t, int32(1), calls.Load())
}

func TestUnknownGroup(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := c.AllMessages(context.Background(), "404")
	assert.ErrorIs(t, err, apperrors.ErrGroupNotFound)
}

func TestServerErrorsAreRetried(t *testing.T) {
	var calls atomic.Int32
	c, m := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		writePage(w, []Message{msg("1", 10)})
	})

	page, err := c.Messages(context.Background(), "42", PageQuery{})
	require.NoError(t, err)
	assert.Len(t, page, 1)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, 2.0, testutil.ToFloat64(m.GroupMeRequestsTotal.WithLabelValues("messages", "502")))
}

func TestNewRejectsEmptyToken(t *testing.T) {
	_, err := New(config.Default().GroupMe, "", nil)
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestSortNewestFirst(t *testing.T) {
	msgs := []Message{msg("a", 1), msg("c", 3), msg("b", 2)}
	SortNewestFirst(msgs)
	assert.Equal(t, "c", msgs[0].ID)
	assert.Equal(t, "a", msgs[2].ID)
}
