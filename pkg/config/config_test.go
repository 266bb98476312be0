package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, StateBackendMemory, cfg.State.Backend)
	assert.True(t, cfg.State.SeedOnCreate)
	assert.Equal(t, 30*time.Minute, cfg.State.IdleTimeout)
	assert.Equal(t, 7*24*time.Hour, cfg.External.WindowPadding)
	assert.Equal(t, "primary", cfg.Google.CalendarID)
	assert.Empty(t, cfg.ICS.Feeds)
	assert.Equal(t, cfg.JWT.Secret, cfg.Exports.SigningSecret)
}

func TestLoadFromEnvironment(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("STATE_BACKEND", "Redis")
	t.Setenv("STATE_IDLE_TIMEOUT", "not-a-duration")
	t.Setenv("ICS_FEEDS", "work=https://example.com/work.ics, https://example.com/home.ics")
	t.Setenv("ALLOWED_ORIGINS", "http://a.test, ,http://b.test")
	t.Setenv("EXPORT_SIGNING_SECRET", "exports")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StateBackendRedis, cfg.State.Backend)
	assert.Equal(t, 30*time.Minute, cfg.State.IdleTimeout)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, "exports", cfg.Exports.SigningSecret)
	require.Len(t, cfg.ICS.Feeds, 2)
	assert.Equal(t, ICSFeedConfig{Name: "work", URL: "https://example.com/work.ics"}, cfg.ICS.Feeds[0])
	assert.Equal(t, "feed2", cfg.ICS.Feeds[1].Name)
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	chdir(t, t.TempDir())

	t.Setenv("STATE_BACKEND", "etcd")
	_, err := Load()
	assert.ErrorContains(t, err, "STATE_BACKEND")

	t.Setenv("STATE_BACKEND", StateBackendMemory)
	t.Setenv("ENV", EnvProduction)
	_, err = Load()
	assert.ErrorContains(t, err, "JWT_SECRET")
}

func TestValidateRequiresSQLitePath(t *testing.T) {
	cfg := &Config{State: StateConfig{Backend: StateBackendSQLite}}
	assert.ErrorContains(t, cfg.validate(), "SQLITE_PATH")

	cfg.SQLite.Path = "state.db"
	assert.NoError(t, cfg.validate())
}

func TestParseFeeds(t *testing.T) {
	feeds, err := parseFeeds("https://example.com/cal.ics?token=abc")
	require.NoError(t, err)
	require.Len(t, feeds, 1)
	assert.Equal(t, "feed1", feeds[0].Name)
	assert.Equal(t, "https://example.com/cal.ics?token=abc", feeds[0].URL)

	_, err = parseFeeds("team=")
	assert.Error(t, err)
}

// chdir mirrors testing.T.Chdir (Go 1.24+): it changes the working directory
// for the duration of the test and restores it on cleanup.
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}
