package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"sort"

	apperrors "github.com/Adithya-Monish-Kumar-K/groupstats/pkg/errors"
)

// Directory is the cached map of group name to group id.
type Directory struct {
	path string
}

// NewDirectory creates a directory backed by the JSON file at path.
func NewDirectory(path string) *Directory {
	return &Directory{path: path}
}

// Save replaces the cached directory.
func (d *Directory) Save(groups map[string]string) error {
	if dir := filepath.Dir(d.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating directory folder: %w", err)
		}
	}
	if err := writeJSONAtomic(d.path, groups); err != nil {
		return fmt.Errorf("saving group directory: %w", err)
	}
	return nil
}

// Load returns the cached directory. A missing file is ErrCacheMiss so the
// caller can suggest running bootstrap.
func (d *Directory) Load() (map[string]string, error) {
	data, err := os.ReadFile(d.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, apperrors.New(apperrors.ErrCacheMiss, http.StatusNotFound, "group directory not bootstrapped")
		}
		return nil, fmt.Errorf("reading group directory: %w", err)
	}
	groups := make(map[string]string)
	if err := json.Unmarshal(data, &groups); err != nil {
		return nil, fmt.Errorf("parsing group directory: %w", err)
	}
	return groups, nil
}

// Lookup resolves a group name to its id. The pseudo group "all" and raw
// ids present in the directory resolve to themselves.
func (d *Directory) Lookup(name string) (string, error) {
	if name == AllGroups {
		return AllGroups, nil
	}
	groups, err := d.Load()
	if err != nil {
		return "", err
	}
	if id, ok := groups[name]; ok {
		return id, nil
	}
	for _, id := range groups {
		if id == name {
			return id, nil
		}
	}
	return "", apperrors.Newf(apperrors.ErrGroupNotFound, http.StatusNotFound, "no group named %q", name)
}

// Names returns the cached group names in sorted order.
func (d *Directory) Names() ([]string, error) {
	groups, err := d.Load()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}
