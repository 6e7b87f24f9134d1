package store

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/groupstats/internal/groupme"
	apperrors "github.com/Adithya-Monish-Kumar-K/groupstats/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/groupstats/pkg/metrics"
)

// Fetcher is the slice of the GroupMe client the syncer needs.
type Fetcher interface {
	AllMessages(ctx context.Context, groupID string) ([]groupme.Message, error)
	MessagesSince(ctx context.Context, groupID, afterID string) ([]groupme.Message, error)
}

// Syncer keeps the file cache in step with the API.
type Syncer struct {
	fetcher Fetcher
	store   *FileStore
	dir     *Directory
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewSyncer creates a Syncer. fetcher may be nil when only cached data is
// wanted; m may be nil.
func NewSyncer(fetcher Fetcher, fs *FileStore, dir *Directory, m *metrics.Metrics) *Syncer {
	return &Syncer{
		fetcher: fetcher,
		store:   fs,
		dir:     dir,
		metrics: m,
		logger:  slog.Default().With("component", "message-sync"),
	}
}

// Sync returns the messages of groupID, newest first. Without reload the
// cache is used as is; with reload messages newer than the cached ones are
// fetched and prepended. A group with no cache is fetched in full.
func (s *Syncer) Sync(ctx context.Context, groupID string, reload bool) ([]groupme.Message, error) {
	if groupID == AllGroups {
		if reload || !s.store.Exists(AllGroups) {
			return s.SyncAll(ctx, reload)
		}
		return s.store.Load(AllGroups)
	}

	if !s.store.Exists(groupID) {
		return s.Refresh(ctx, groupID)
	}
	cached, err := s.store.Load(groupID)
	if err != nil {
		return nil, err
	}
	if !reload || len(cached) == 0 {
		return cached, nil
	}

	f, err := s.requireFetcher()
	if err != nil {
		return nil, err
	}
	fresh, err := f.MessagesSince(ctx, groupID, cached[0].ID)
	if err != nil {
		return nil, err
	}
	if len(fresh) == 0 {
		s.logger.Info("no new messages", "group_id", groupID)
		return cached, nil
	}
	merged := Dedupe(append(fresh, cached...))
	if err := s.store.Save(groupID, merged); err != nil {
		return nil, err
	}
	s.observe(groupID, len(merged))
	s.logger.Info("new messages for group", "group_id", groupID, "new", len(fresh), "total", len(merged))
	return merged, nil
}

// Refresh refetches the whole history of groupID and overwrites its cache.
func (s *Syncer) Refresh(ctx context.Context, groupID string) ([]groupme.Message, error) {
	f, err := s.requireFetcher()
	if err != nil {
		return nil, err
	}
	msgs, err := f.AllMessages(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if err := s.store.Save(groupID, msgs); err != nil {
		return nil, err
	}
	s.observe(groupID, len(msgs))
	return msgs, nil
}

// SyncAll loads every directory group (refreshing each when reload is set)
// and caches their union under AllGroups.
func (s *Syncer) SyncAll(ctx context.Context, reload bool) ([]groupme.Message, error) {
	groups, err := s.dir.Load()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)

	var all []groupme.Message
	for _, name := range names {
		msgs, err := s.Sync(ctx, groups[name], reload)
		if err != nil {
			return nil, fmt.Errorf("syncing group %q: %w", name, err)
		}
		all = append(all, msgs...)
	}
	groupme.SortNewestFirst(all)
	if err := s.store.Save(AllGroups, all); err != nil {
		return nil, err
	}
	s.observe(AllGroups, len(all))
	return all, nil
}

func (s *Syncer) requireFetcher() (Fetcher, error) {
	if s.fetcher == nil {
		return nil, apperrors.New(apperrors.ErrUnauthorized, http.StatusUnauthorized, "no groupme client configured")
	}
	return s.fetcher, nil
}

func (s *Syncer) observe(groupID string, n int) {
	if s.metrics != nil {
		s.metrics.MessagesCached.WithLabelValues(groupID).Set(float64(n))
	}
}
