package config

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Reconstruct.EarlyEmitThreshold)
	assert.Equal(t, 0, cfg.Reconstruct.MaxFrontier)
	assert.Equal(t, "recent-first", cfg.Reconstruct.Order)
	assert.Equal(t, 100, cfg.GroupMe.PageSize)
	assert.Equal(t, "messages", cfg.Cache.DataDir)
	assert.Equal(t, 60, cfg.Server.RateLimit)
	assert.Empty(t, cfg.Server.CORSOrigins)
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "groupstats.yaml")
	yamlDoc := `
groupme:
  pageSize: 50
  timeout: 3s
reconstruct:
  earlyEmitThreshold: 5
  dedupeStates: true
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(yamlDoc), 0o644))
	t.Setenv("GS_MAX_FRONTIER", "250")
	t.Setenv("GS_REDIS_ADDR", "cache:6380")
	t.Setenv("GS_CORS_ORIGINS", "https://a.example,https://b.example")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 50, cfg.GroupMe.PageSize)
	assert.Equal(t, 3*time.Second, cfg.GroupMe.Timeout)
	assert.Equal(t, 5, cfg.Reconstruct.EarlyEmitThreshold)
	assert.True(t, cfg.Reconstruct.DedupeStates)
	assert.Equal(t, 250, cfg.Reconstruct.MaxFrontier)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "cache:6380", cfg.Redis.Addr)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
	// untouched defaults survive a partial file
	assert.Equal(t, "https://api.groupme.com/v3/", cfg.GroupMe.BaseURL)
}

func TestLoadRejectsBadOrder(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("reconstruct:\n  order: sideways\n"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadStatsWordFilter(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stats.yaml")
	require.NoError(t, os.WriteFile(path, []byte("stats:\n  minWordLength: 3\n"), 0o644))
	t.Setenv("GS_SKIP_STOP_WORDS", "true")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.True(t, cfg.Stats.SkipStopWords)
	assert.Equal(t, 3, cfg.Stats.MinWordLength)

	require.NoError(t, os.WriteFile(path, []byte("stats:\n  minWordLength: -1\n"), 0o644))
	_, err = Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsUnknownTimezone(t *testing.T) {
	t.Setenv("GS_TIMEZONE", "Mars/Olympus_Mons")

	_, err := Load("")
	assert.Error(t, err)
}

func TestStatsLocation(t *testing.T) {
	loc, err := StatsConfig{Timezone: "UTC"}.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)

	loc, err = StatsConfig{}.Location()
	require.NoError(t, err)
	assert.Equal(t, time.Local, loc)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestDecodeToken(t *testing.T) {
	encoded := base64.StdEncoding.EncodeToString([]byte("abc123XYZ"))
	assert.Equal(t, "abc123XYZ", DecodeToken(encoded))

	// not valid base64: used verbatim
	assert.Equal(t, "raw-token!", DecodeToken("raw-token!"))

	// decodes, but to something non-alphanumeric: used verbatim
	weird := base64.StdEncoding.EncodeToString([]byte("a b"))
	assert.Equal(t, weird, DecodeToken(weird))
}

func TestResolveTokenFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".groupme.env")
	require.NoError(t, os.WriteFile(path, []byte("plaintoken\nignored\n"), 0o600))

	token, err := GroupMeConfig{TokenFile: path}.ResolveToken()
	require.NoError(t, err)
	assert.Equal(t, "plaintoken", token)

	token, err = GroupMeConfig{Token: "explicit", TokenFile: path}.ResolveToken()
	require.NoError(t, err)
	assert.Equal(t, "explicit", token)

	_, err = GroupMeConfig{}.ResolveToken()
	assert.Error(t, err)
}
