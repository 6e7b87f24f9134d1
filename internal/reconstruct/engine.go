package reconstruct

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/groupstats/internal/trie"
	"github.com/Adithya-Monish-Kumar-K/groupstats/pkg/metrics"
)

// Engine binds a dictionary trie to search options and records every run
// in logs and, when configured, Prometheus. The dictionary can be swapped
// while searches are running; each run sees one dictionary throughout.
type Engine struct {
	dict    atomic.Pointer[dictionary]
	opts    Options
	metrics *metrics.Metrics
	logger  *slog.Logger
}

type dictionary struct {
	trie        *trie.Trie
	fingerprint string
}

// NewEngine creates an Engine over t, identified by fingerprint in cache
// keys. m may be nil.
func NewEngine(t *trie.Trie, fingerprint string, opts Options, m *metrics.Metrics) *Engine {
	e := &Engine{
		opts:    opts,
		metrics: m,
		logger:  slog.Default().With("component", "reconstruct"),
	}
	e.dict.Store(&dictionary{trie: t, fingerprint: fingerprint})
	return e
}

// Trie returns the dictionary the engine currently searches.
func (e *Engine) Trie() *trie.Trie { return e.dict.Load().trie }

// Fingerprint identifies the current dictionary.
func (e *Engine) Fingerprint() string { return e.dict.Load().fingerprint }

// SwapTrie replaces the dictionary for subsequent runs.
func (e *Engine) SwapTrie(t *trie.Trie, fingerprint string) {
	e.dict.Store(&dictionary{trie: t, fingerprint: fingerprint})
	e.logger.Info("dictionary replaced", "words", t.Len(), "fingerprint", fingerprint)
}

// Options returns the options used by Run.
func (e *Engine) Options() Options { return e.opts }

// Run executes one search over constraints with the engine's options.
func (e *Engine) Run(ctx context.Context, constraints Constraints) (Result, error) {
	return e.RunWith(ctx, constraints, e.opts)
}

// RunWith executes one search with per-call options.
func (e *Engine) RunWith(ctx context.Context, constraints Constraints, opts Options) (Result, error) {
	start := time.Now()
	res, err := ReconstructContext(ctx, e.Trie(), constraints, opts)
	elapsed := time.Since(start)

	outcome := "complete"
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		outcome = "cancelled"
	case res.Truncated:
		outcome = "truncated"
	}
	if e.metrics != nil {
		e.metrics.ReconstructRunsTotal.WithLabelValues(outcome).Inc()
		e.metrics.ReconstructCandidates.Observe(float64(len(res.Candidates)))
		e.metrics.ReconstructPeakFrontier.Observe(float64(res.PeakFrontier))
		e.metrics.ReconstructDuration.Observe(elapsed.Seconds())
	}
	e.logger.Info("reconstruction finished",
		"positions", len(constraints),
		"consumed", res.Positions,
		"candidates", len(res.Candidates),
		"peak_frontier", res.PeakFrontier,
		"truncated", res.Truncated,
		"outcome", outcome,
		"duration", elapsed,
	)
	return res, err
}

// Verify checks text against constraints with the given wildcard set; an
// empty set means DefaultWildcards.
func (e *Engine) Verify(constraints Constraints, text string, wildcards string) Verification {
	if wildcards == "" {
		wildcards = DefaultWildcards
	}
	v := VerifyWith(constraints, text, wildcards)
	e.logger.Debug("verification finished",
		"valid", v.Valid,
		"first_mismatch", v.FirstMismatch,
		"checked", v.Checked,
	)
	return v
}
