// Package service combines the message cache, analysis, reconstruction and
// its optional Redis, Kafka and Postgres backends into the operations the
// CLI and the HTTP server expose.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/Adithya-Monish-Kumar-K/groupstats/internal/analysis"
	"github.com/Adithya-Monish-Kumar-K/groupstats/internal/analysis/snapshot"
	"github.com/Adithya-Monish-Kumar-K/groupstats/internal/candidates"
	"github.com/Adithya-Monish-Kumar-K/groupstats/internal/groupme"
	"github.com/Adithya-Monish-Kumar-K/groupstats/internal/reconstruct"
	"github.com/Adithya-Monish-Kumar-K/groupstats/internal/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/groupstats/internal/trie"
	apperrors "github.com/Adithya-Monish-Kumar-K/groupstats/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/groupstats/pkg/tracing"
)

// MaxPositions bounds the constraint sequences accepted from callers.
const MaxPositions = 10000

// Order values for deriving constraints from cached messages.
const (
	OrderRecentFirst = "recent-first"
	OrderOldestFirst = "oldest-first"
)

// MessageSource returns a group's messages, newest first.
type MessageSource interface {
	Sync(ctx context.Context, groupID string, reload bool) ([]groupme.Message, error)
}

// GroupResolver maps a group name to its id.
type GroupResolver interface {
	Lookup(name string) (string, error)
}

// SnapshotStore persists reports.
type SnapshotStore interface {
	Save(ctx context.Context, report analysis.Report) (int64, error)
	Latest(ctx context.Context, groupID string) (*snapshot.Snapshot, error)
	List(ctx context.Context, groupID string, limit int) ([]snapshot.Snapshot, error)
}

// Config holds the collaborators of a Service. Messages and Groups are
// required; the rest are optional. Options are the search settings used
// when there is no Engine to take them from. WordFilter applies to the word
// statistics of reports.
type Config struct {
	Engine     *reconstruct.Engine
	Options    *reconstruct.Options
	Messages   MessageSource
	Groups     GroupResolver
	Cache      *candidates.Cache
	Publisher  *candidates.Publisher
	Snapshots  SnapshotStore
	Location   *time.Location
	Order      string
	Wildcards  string
	WordFilter tokenizer.Options
}

// Service implements the groupstats operations.
type Service struct {
	cfg    Config
	logger *slog.Logger
}

// New creates a Service.
func New(cfg Config) *Service {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Order == "" {
		cfg.Order = OrderRecentFirst
	}
	if cfg.Wildcards == "" {
		cfg.Wildcards = reconstruct.DefaultWildcards
	}
	return &Service{
		cfg:    cfg,
		logger: slog.Default().With("component", "service"),
	}
}

// Engine returns the reconstruction engine.
func (s *Service) Engine() *reconstruct.Engine { return s.cfg.Engine }

// Cache returns the candidate cache, or nil when caching is off.
func (s *Service) Cache() *candidates.Cache { return s.cfg.Cache }

// Snapshots lists up to limit stored reports of the named group, newest
// first.
func (s *Service) Snapshots(ctx context.Context, name string, limit int) ([]snapshot.Snapshot, error) {
	if s.cfg.Snapshots == nil {
		return nil, apperrors.New(apperrors.ErrInvalidInput, http.StatusServiceUnavailable, "snapshots are disabled")
	}
	id, err := s.cfg.Groups.Lookup(name)
	if err != nil {
		return nil, err
	}
	return s.cfg.Snapshots.List(ctx, id, limit)
}

// Messages resolves name and returns its messages.
func (s *Service) Messages(ctx context.Context, name string, reload bool) (string, []groupme.Message, error) {
	id, err := s.cfg.Groups.Lookup(name)
	if err != nil {
		return "", nil, err
	}
	msgs, err := s.cfg.Messages.Sync(ctx, id, reload)
	if err != nil {
		return "", nil, err
	}
	return id, msgs, nil
}

// Report builds the statistics report of a group and, when save is set and
// a snapshot store is configured, persists it.
func (s *Service) Report(ctx context.Context, name string, top int, reload, save bool) (analysis.Report, error) {
	id, msgs, err := s.Messages(ctx, name, reload)
	if err != nil {
		return analysis.Report{}, err
	}
	report := analysis.BuildReport(id, msgs, s.cfg.Location, top, s.cfg.WordFilter)
	if save && s.cfg.Snapshots != nil {
		if _, err := s.cfg.Snapshots.Save(ctx, report); err != nil {
			return report, err
		}
	}
	return report, nil
}

// Location returns the zone used for hourly statistics.
func (s *Service) Location() *time.Location { return s.cfg.Location }

// WordFilter returns the filter applied to word statistics.
func (s *Service) WordFilter() tokenizer.Options { return s.cfg.WordFilter }

// UserConstraints derives one letter set per message of user in group,
// ordered by the configured order.
func (s *Service) UserConstraints(ctx context.Context, group, user string, reload bool) (reconstruct.Constraints, error) {
	_, msgs, err := s.Messages(ctx, group, reload)
	if err != nil {
		return nil, err
	}
	texts, err := analysis.UserTexts(msgs, user)
	if err != nil {
		return nil, err
	}
	c := reconstruct.FromMessages(texts)
	if s.cfg.Order == OrderOldestFirst {
		c = c.Reversed()
	}
	return c, nil
}

// Request describes one reconstruction. Exactly one of Constraints or
// Group and User must be given. A non-nil Words, even an empty one,
// replaces the engine's dictionary for this run. Nil option fields keep the
// configured defaults.
type Request struct {
	Constraints        reconstruct.Constraints
	Group              string
	User               string
	Reload             bool
	Words              []string
	EarlyEmitThreshold *int
	MaxFrontier        *int
	DedupeStates       *bool
	Publish            bool
}

// Response is the outcome of Reconstruct.
type Response struct {
	RunID string `json:"run_id"`
	reconstruct.Result
	CacheHit  bool `json:"cache_hit"`
	Published bool `json:"published"`
}

// Reconstruct runs a search, going through the candidate cache when one is
// configured and publishing the candidates when asked.
func (s *Service) Reconstruct(ctx context.Context, req Request) (Response, error) {
	resp := Response{RunID: uuid.NewString()}
	ctx, span := tracing.Start(ctx, "reconstruct")
	span.SetAttr("run_id", resp.RunID)
	defer span.End()

	_, resolveSpan := tracing.Start(ctx, "resolve-constraints")
	constraints, err := s.resolveConstraints(ctx, req.Constraints, req.Group, req.User, req.Reload)
	resolveSpan.SetAttr("positions", len(constraints))
	resolveSpan.End()
	if err != nil {
		return Response{}, err
	}
	opts, err := s.options(req)
	if err != nil {
		return Response{}, err
	}

	engine := s.cfg.Engine
	if req.Words != nil {
		engine = reconstruct.NewEngine(trie.New(req.Words...), trie.Fingerprint(req.Words), opts, nil)
	}
	if engine == nil {
		return Response{}, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "no word list loaded; pass words")
	}

	compute := func() (reconstruct.Result, error) {
		_, searchSpan := tracing.Start(ctx, "search")
		defer searchSpan.End()
		res, err := engine.RunWith(ctx, constraints, opts)
		searchSpan.SetAttr("candidates", len(res.Candidates))
		if err != nil {
			return res, timeoutError(err)
		}
		return res, nil
	}

	if s.cfg.Cache != nil {
		key := candidates.Key(engine.Fingerprint(), constraints, opts)
		resp.Result, resp.CacheHit, err = s.cfg.Cache.GetOrCompute(ctx, key, compute)
	} else {
		resp.Result, err = compute()
	}
	span.SetAttr("cache_hit", resp.CacheHit)
	if err != nil {
		return Response{}, err
	}

	if req.Publish {
		if s.cfg.Publisher == nil {
			return resp, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "candidate publishing is not configured")
		}
		_, publishSpan := tracing.Start(ctx, "publish")
		err = s.cfg.Publisher.Publish(ctx, resp.RunID, constraints, resp.Candidates)
		publishSpan.End()
		if err != nil {
			return resp, fmt.Errorf("%w: %v", apperrors.ErrUpstream, err)
		}
		resp.Published = true
	}
	return resp, nil
}

// Verify checks text against constraints, or against the letter sets of a
// user's messages when constraints is empty and group and user are set.
func (s *Service) Verify(ctx context.Context, constraints reconstruct.Constraints, group, user, text, wildcards string) (reconstruct.Verification, error) {
	c, err := s.resolveConstraints(ctx, constraints, group, user, false)
	if err != nil {
		return reconstruct.Verification{}, err
	}
	if wildcards == "" {
		wildcards = s.cfg.Wildcards
	}
	if s.cfg.Engine == nil {
		return reconstruct.VerifyWith(c, text, wildcards), nil
	}
	return s.cfg.Engine.Verify(c, text, wildcards), nil
}

func (s *Service) resolveConstraints(ctx context.Context, c reconstruct.Constraints, group, user string, reload bool) (reconstruct.Constraints, error) {
	switch {
	case len(c) > 0 && (group != "" || user != ""):
		return nil, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "give either constraints or group and user, not both")
	case len(c) > 0:
	case group != "" && user != "":
		var err error
		if c, err = s.UserConstraints(ctx, group, user, reload); err != nil {
			return nil, err
		}
	default:
		return nil, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "constraints or group and user are required")
	}
	if len(c) > MaxPositions {
		return nil, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "at most %d positions are accepted, got %d", MaxPositions, len(c))
	}
	return c, nil
}

func (s *Service) options(req Request) (reconstruct.Options, error) {
	opts := reconstruct.DefaultOptions()
	switch {
	case s.cfg.Engine != nil:
		opts = s.cfg.Engine.Options()
	case s.cfg.Options != nil:
		opts = *s.cfg.Options
	}
	if req.EarlyEmitThreshold != nil {
		if *req.EarlyEmitThreshold < 0 {
			return opts, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "early_emit_threshold must not be negative")
		}
		opts.EarlyEmitThreshold = *req.EarlyEmitThreshold
	}
	if req.MaxFrontier != nil {
		if *req.MaxFrontier < 0 {
			return opts, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "max_frontier must not be negative")
		}
		opts.MaxFrontier = *req.MaxFrontier
	}
	if req.DedupeStates != nil {
		opts.DedupeStates = *req.DedupeStates
	}
	return opts, nil
}

func timeoutError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", apperrors.ErrTimeout, err)
	}
	return err
}
