// Package store keeps fetched messages on disk so statistics can be
// recomputed without hitting the GroupMe API, and holds the cached
// directory of group names.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/Adithya-Monish-Kumar-K/groupstats/internal/groupme"
	apperrors "github.com/Adithya-Monish-Kumar-K/groupstats/pkg/errors"
)

// AllGroups is the pseudo group id under which the union of every group's
// messages is cached.
const AllGroups = "all"

// FileStore caches one JSON file of messages per group, newest first.
type FileStore struct {
	dataDir string
	logger  *slog.Logger
}

// NewFileStore creates a store rooted at dataDir. The directory is created
// on first write.
func NewFileStore(dataDir string) *FileStore {
	return &FileStore{
		dataDir: dataDir,
		logger:  slog.Default().With("component", "message-store"),
	}
}

func (s *FileStore) path(groupID string) string {
	return filepath.Join(s.dataDir, fmt.Sprintf("all_messages_for_%s.json", groupID))
}

// Exists reports whether groupID has a cache file.
func (s *FileStore) Exists(groupID string) bool {
	_, err := os.Stat(s.path(groupID))
	return err == nil
}

// Save atomically replaces the cache for groupID. It writes to a .tmp file
// first and renames on success.
func (s *FileStore) Save(groupID string, msgs []groupme.Message) error {
	if err := os.MkdirAll(s.dataDir, 0o755); err != nil {
		return fmt.Errorf("creating message directory: %w", err)
	}
	finalPath := s.path(groupID)
	if err := writeJSONAtomic(finalPath, msgs); err != nil {
		return fmt.Errorf("saving messages for group %s: %w", groupID, err)
	}
	s.logger.Info("messages cached", "group_id", groupID, "messages", len(msgs), "path", finalPath)
	return nil
}

// Load reads the cache for groupID, dropping duplicate message ids (the
// first occurrence wins). A missing cache is ErrCacheMiss.
func (s *FileStore) Load(groupID string) ([]groupme.Message, error) {
	data, err := os.ReadFile(s.path(groupID))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, apperrors.Newf(apperrors.ErrCacheMiss, http.StatusNotFound, "no cached messages for group %s", groupID)
		}
		return nil, fmt.Errorf("reading messages for group %s: %w", groupID, err)
	}
	var msgs []groupme.Message
	if err := json.Unmarshal(data, &msgs); err != nil {
		return nil, fmt.Errorf("parsing messages for group %s: %w", groupID, err)
	}
	deduped := Dedupe(msgs)
	if dropped := len(msgs) - len(deduped); dropped > 0 {
		s.logger.Warn("dropped duplicate cached messages", "group_id", groupID, "dropped", dropped)
	}
	return deduped, nil
}

// Dedupe removes messages whose id was already seen, keeping order.
func Dedupe(msgs []groupme.Message) []groupme.Message {
	seen := make(map[string]struct{}, len(msgs))
	out := make([]groupme.Message, 0, len(msgs))
	for _, m := range msgs {
		if _, ok := seen[m.ID]; ok {
			continue
		}
		seen[m.ID] = struct{}{}
		out = append(out, m)
	}
	return out
}

func writeJSONAtomic(finalPath string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling: %w", err)
	}
	tmpPath := finalPath + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("syncing temp file: %w", err)
	}
	f.Close()
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
