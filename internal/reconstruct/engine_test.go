package reconstruct

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/groupstats/internal/trie"
	"github.com/Adithya-Monish-Kumar-K/groupstats/pkg/metrics"
)

func TestEngineRecordsRuns(t *testing.T) {
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	e := NewEngine(trie.New("ab", "cd"), "v1", DefaultOptions(), m)

	res, err := e.Run(context.Background(), sets("a", "b", "c", "d"))
	require.NoError(t, err)
	assert.Contains(t, res.Candidates, "ab cd")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ReconstructRunsTotal.WithLabelValues("complete")))

	opts := DefaultOptions()
	opts.MaxFrontier = 1
	res, err = e.RunWith(context.Background(), sets("a", "b", "c", "d"), opts)
	require.NoError(t, err)
	assert.True(t, res.Truncated)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ReconstructRunsTotal.WithLabelValues("truncated")))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = e.Run(ctx, sets("a"))
	assert.Error(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ReconstructRunsTotal.WithLabelValues("cancelled")))
}

func TestEngineWithoutMetrics(t *testing.T) {
	e := NewEngine(trie.New("ab"), "", DefaultOptions(), nil)

	res, err := e.Run(context.Background(), sets("a", "b"))
	require.NoError(t, err)
	assert.Equal(t, []string{"ab", "ab "}, res.Candidates)

	assert.True(t, e.Verify(sets("a", "b"), "A_", "").Valid)
	assert.False(t, e.Verify(sets("a", "b"), "A_", "#").Valid)
}

func TestEngineSwapTrie(t *testing.T) {
	e := NewEngine(trie.New("ab"), "v1", DefaultOptions(), nil)
	assert.Equal(t, "v1", e.Fingerprint())

	e.SwapTrie(trie.New("ba"), "v2")
	assert.Equal(t, "v2", e.Fingerprint())
	assert.True(t, e.Trie().Contains("ba"))

	res, err := e.Run(context.Background(), sets("b", "a"))
	require.NoError(t, err)
	assert.Equal(t, []string{"ba", "ba "}, res.Candidates)
}
