// Package reconstruct recovers candidate phrases from an ordered sequence of
// per-position letter sets, keeping only those that segment into words of a
// dictionary trie, and verifies explicit phrases against the same sets.
package reconstruct

import (
	"context"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/groupstats/internal/trie"
)

// Options tunes a search. The zero value disables early emission and all
// bounds; use DefaultOptions for the usual behaviour.
type Options struct {
	// EarlyEmitThreshold: a hypothesis that dies while fewer than this many
	// positions remain (counting the current one) is still emitted.
	EarlyEmitThreshold int
	// MaxFrontier caps the number of live hypotheses after each position.
	// Zero means unbounded.
	MaxFrontier int
	// DedupeStates merges hypotheses that sit on the same trie node at the
	// same position, keeping at most MaxPathsPerState texts for each.
	DedupeStates     bool
	MaxPathsPerState int
}

// DefaultOptions returns the unbounded search with an early-emission
// threshold of 3.
func DefaultOptions() Options {
	return Options{
		EarlyEmitThreshold: 3,
		MaxPathsPerState:   4,
	}
}

// Result is the output of one search.
type Result struct {
	// Candidates holds every emitted text in emission order: early
	// emissions first, as they happen, then the survivors of the last
	// position. Duplicates are kept.
	Candidates []string `json:"candidates"`
	// PeakFrontier is the largest frontier observed.
	PeakFrontier int `json:"peak_frontier"`
	// Positions is the number of positions consumed before the search
	// finished or the frontier emptied.
	Positions int `json:"positions"`
	// Truncated is set when MaxFrontier or DedupeStates dropped hypotheses.
	Truncated bool `json:"truncated"`
}

// path is a persistent reversed list of runes; hypotheses that share a
// history share its cells.
type path struct {
	prev *path
	r    rune
	n    int
}

func (p *path) extend(r rune) *path {
	n := 1
	if p != nil {
		n = p.n + 1
	}
	return &path{prev: p, r: r, n: n}
}

func (p *path) String() string {
	if p == nil {
		return ""
	}
	buf := make([]rune, p.n)
	for cur := p; cur != nil; cur = cur.prev {
		buf[cur.n-1] = cur.r
	}
	return string(buf)
}

type state struct {
	text *path
	node *trie.Node
}

// Reconstruct runs the search to completion.
func Reconstruct(t *trie.Trie, constraints Constraints, opts Options) Result {
	res, _ := ReconstructContext(context.Background(), t, constraints, opts)
	return res
}

// ReconstructContext runs the search, checking ctx between positions. On
// cancellation it returns the candidates emitted so far with ctx's error.
//
// For each position every letter of its set is tried against every live
// hypothesis. A letter with no matching trie child kills the branch; one
// that matches extends it, and one that completes a word additionally forks
// a hypothesis with a boundary space that restarts at the root. The space
// does not consume a position.
func ReconstructContext(ctx context.Context, t *trie.Trie, constraints Constraints, opts Options) (Result, error) {
	root := t.Root()
	frontier := []state{{text: nil, node: root}}
	var res Result
	res.PeakFrontier = len(frontier)
	n := len(constraints)

	for i, set := range constraints {
		if err := ctx.Err(); err != nil {
			return res, fmt.Errorf("reconstruction cancelled at position %d: %w", i, err)
		}
		emitDying := n-i < opts.EarlyEmitThreshold
		next := make([]state, 0, len(frontier))
		for _, c := range set {
			for _, st := range frontier {
				outcome, child := trie.Step(st.node, c)
				if outcome == trie.NoMatch {
					if emitDying {
						res.Candidates = append(res.Candidates, st.text.String())
					}
					continue
				}
				extended := st.text.extend(c)
				next = append(next, state{text: extended, node: child})
				if outcome == trie.WordEnd {
					next = append(next, state{text: extended.extend(' '), node: root})
				}
			}
		}

		if opts.DedupeStates {
			var dropped bool
			next, dropped = dedupe(next, opts.MaxPathsPerState)
			res.Truncated = res.Truncated || dropped
		}
		if opts.MaxFrontier > 0 && len(next) > opts.MaxFrontier {
			next = next[:opts.MaxFrontier]
			res.Truncated = true
		}
		if len(next) > res.PeakFrontier {
			res.PeakFrontier = len(next)
		}
		frontier = next
		res.Positions = i + 1
		if len(frontier) == 0 {
			break
		}
	}

	for _, st := range frontier {
		res.Candidates = append(res.Candidates, st.text.String())
	}
	return res, nil
}

// dedupe keeps, for every trie node, the first limit states that reached it.
// States on the same node at the same position have identical futures, so
// the rest only add copies of the same continuations.
func dedupe(states []state, limit int) ([]state, bool) {
	if limit <= 0 {
		limit = 1
	}
	seen := make(map[*trie.Node]int, len(states))
	out := states[:0]
	dropped := false
	for _, st := range states {
		if seen[st.node] >= limit {
			dropped = true
			continue
		}
		seen[st.node]++
		out = append(out, st)
	}
	return out, dropped
}
