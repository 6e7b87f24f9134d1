package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/groupstats/internal/groupme"
	apperrors "github.com/Adithya-Monish-Kumar-K/groupstats/pkg/errors"
)

func msg(id string, createdAt int64) groupme.Message {
	return groupme.Message{ID: id, Name: "ann", Text: "m" + id, CreatedAt: createdAt}
}

func ids(msgs []groupme.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.ID
	}
	return out
}

type fakeFetcher struct {
	history map[string][]groupme.Message
	since   map[string][]groupme.Message
	calls   int
}

func (f *fakeFetcher) AllMessages(_ context.Context, groupID string) ([]groupme.Message, error) {
	f.calls++
	msgs, ok := f.history[groupID]
	if !ok {
		return nil, apperrors.ErrGroupNotFound
	}
	return msgs, nil
}

func (f *fakeFetcher) MessagesSince(_ context.Context, groupID, afterID string) ([]groupme.Message, error) {
	f.calls++
	return f.since[groupID+"/"+afterID], nil
}

func TestFileStoreRoundTrip(t *testing.T) {
	fs := NewFileStore(filepath.Join(t.TempDir(), "messages"))
	assert.False(t, fs.Exists("1"))

	require.NoError(t, fs.Save("1", []groupme.Message{msg("2", 20), msg("1", 10)}))
	assert.True(t, fs.Exists("1"))

	got, err := fs.Load("1")
	require.NoError(t, err)
	assert.Equal(t, []string{"2", "1"}, ids(got))
}

func TestFileStoreDropsDuplicates(t *testing.T) {
	fs := NewFileStore(t.TempDir())
	require.NoError(t, fs.Save("1", []groupme.Message{msg("2", 20), msg("1", 10), msg("2", 20)}))

	got, err := fs.Load("1")
	require.NoError(t, err)
	assert.Equal(t, []string{"2", "1"}, ids(got))
}

func TestFileStoreMissingIsCacheMiss(t *testing.T) {
	_, err := NewFileStore(t.TempDir()).Load("nope")
	assert.ErrorIs(t, err, apperrors.ErrCacheMiss)
}

func TestFileStoreCorruptFile(t *testing.T) {
	dir := t.TempDir()
	fs := NewFileStore(dir)
	require.NoError(t, os.WriteFile(fs.path("1"), []byte("{not json"), 0o644))

	_, err := fs.Load("1")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, apperrors.ErrCacheMiss)
}

func TestDirectory(t *testing.T) {
	d := NewDirectory(filepath.Join(t.TempDir(), "cfg", "dir.json"))

	_, err := d.Lookup("family")
	assert.ErrorIs(t, err, apperrors.ErrCacheMiss)

	require.NoError(t, d.Save(map[string]string{"family": "11", "work": "22"}))

	id, err := d.Lookup("family")
	require.NoError(t, err)
	assert.Equal(t, "11", id)

	id, err = d.Lookup("22")
	require.NoError(t, err)
	assert.Equal(t, "22", id)

	id, err = d.Lookup(AllGroups)
	require.NoError(t, err)
	assert.Equal(t, AllGroups, id)

	_, err = d.Lookup("book club")
	assert.ErrorIs(t, err, apperrors.ErrGroupNotFound)

	names, err := d.Names()
	require.NoError(t, err)
	assert.Equal(t, []string{"family", "work"}, names)
}

func newSyncer(t *testing.T, f Fetcher) (*Syncer, *FileStore, *Directory) {
	t.Helper()
	root := t.TempDir()
	fs := NewFileStore(filepath.Join(root, "messages"))
	dir := NewDirectory(filepath.Join(root, "dir.json"))
	return NewSyncer(f, fs, dir, nil), fs, dir
}

func TestSyncerFetchesUncachedGroup(t *testing.T) {
	f := &fakeFetcher{history: map[string][]groupme.Message{"1": {msg("2", 20), msg("1", 10)}}}
	s, fs, _ := newSyncer(t, f)

	got, err := s.Sync(context.Background(), "1", false)
	require.NoError(t, err)
	assert.Equal(t, []string{"2", "1"}, ids(got))
	assert.True(t, fs.Exists("1"))

	// cached now; no further fetches without reload
	_, err = s.Sync(context.Background(), "1", false)
	require.NoError(t, err)
	assert.Equal(t, 1, f.calls)
}

func TestSyncerReloadPrependsNewMessages(t *testing.T) {
	f := &fakeFetcher{since: map[string][]groupme.Message{"1/2": {msg("4", 40), msg("3", 30)}}}
	s, fs, _ := newSyncer(t, f)
	require.NoError(t, fs.Save("1", []groupme.Message{msg("2", 20), msg("1", 10)}))

	got, err := s.Sync(context.Background(), "1", true)
	require.NoError(t, err)
	assert.Equal(t, []string{"4", "3", "2", "1"}, ids(got))

	onDisk, err := fs.Load("1")
	require.NoError(t, err)
	assert.Equal(t, []string{"4", "3", "2", "1"}, ids(onDisk))
}

func TestSyncerReloadWithoutNewMessages(t *testing.T) {
	s, fs, _ := newSyncer(t, &fakeFetcher{})
	require.NoError(t, fs.Save("1", []groupme.Message{msg("1", 10)}))

	got, err := s.Sync(context.Background(), "1", true)
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, ids(got))
}

func TestSyncerUnknownGroupSurfaces(t *testing.T) {
	s, _, _ := newSyncer(t, &fakeFetcher{})

	_, err := s.Sync(context.Background(), "99", false)
	assert.ErrorIs(t, err, apperrors.ErrGroupNotFound)
}

func TestSyncerWithoutFetcher(t *testing.T) {
	s, _, _ := newSyncer(t, nil)

	_, err := s.Sync(context.Background(), "1", false)
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestSyncAll(t *testing.T) {
	f := &fakeFetcher{history: map[string][]groupme.Message{
		"1": {msg("b", 30), msg("a", 10)},
		"2": {msg("c", 20)},
	}}
	s, fs, dir := newSyncer(t, f)
	require.NoError(t, dir.Save(map[string]string{"family": "1", "work": "2"}))

	got, err := s.Sync(context.Background(), AllGroups, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c", "a"}, ids(got))
	assert.True(t, fs.Exists(AllGroups))

	cached, err := s.Sync(context.Background(), AllGroups, false)
	require.NoError(t, err)
	assert.Equal(t, ids(got), ids(cached))
}
