package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)

	assert.Equal(t, defaultPort, cfg.Port)
	assert.True(t, cfg.IsDev())
	assert.False(t, cfg.Comments.AutoApprove)
	assert.True(t, cfg.Comments.RequireSimpleSpamFilter)
	assert.Equal(t, defaultProviderTimeout, cfg.Comments.ProviderTimeout)
	assert.Equal(t, defaultAkismetURL, cfg.Comments.AkismetURL)
	assert.Equal(t, "root:password@tcp(127.0.0.1:3306)/mx_space?charset=utf8mb4&loc=Local&parseTime=true", cfg.DSN)
	assert.Equal(t, "redis://localhost:6379/0", cfg.RedisURL)
}

func TestParseCommentSection(t *testing.T) {
	cfg, err := Parse([]byte(`
env: production
comments:
  notification: true
  notify_unapproved: false
  akismet_key: " abc123 "
  akismet_url: https://rest.akismet.com/1.1/
  mollom_privatekey: priv
  mollom_publickey: pub
  filters_enabled: true
  require_simple_spam_filter: false
  auto_approve: true
  provider_timeout: 2s
  spam_keywords: ["casino", " ", "lottery"]
`))
	require.NoError(t, err)

	c := cfg.Comments
	assert.False(t, cfg.IsDev())
	assert.Equal(t, "abc123", c.AkismetKey)
	assert.Equal(t, "https://rest.akismet.com/1.1", c.AkismetURL)
	assert.True(t, c.AkismetConfigured())
	assert.True(t, c.MollomConfigured())
	assert.True(t, c.FiltersEnabled)
	assert.False(t, c.RequireSimpleSpamFilter)
	assert.True(t, c.AutoApprove)
	assert.Equal(t, 2*time.Second, c.ProviderTimeout)
	assert.Equal(t, []string{"casino", "lottery"}, c.SpamKeywords)
}

func TestShouldNotify(t *testing.T) {
	c := CommentConfig{Notification: true}
	assert.True(t, c.ShouldNotify(true))
	assert.False(t, c.ShouldNotify(false))

	c.NotifyUnapproved = true
	assert.True(t, c.ShouldNotify(false))

	c.Notification = false
	assert.False(t, c.ShouldNotify(true))
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	_, err := Parse([]byte("comments:\n  akismet: nope\n"))
	assert.Error(t, err)
}

func TestParseRejectsInvalidPort(t *testing.T) {
	_, err := Parse([]byte("port: 70000\n"))
	assert.Error(t, err)
}

func TestLoadReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte("port: 8080\nredis:\n  enable: true\n  url: 127.0.0.1:6380/2\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
	assert.True(t, cfg.Redis.Enable)
	assert.Equal(t, "redis://127.0.0.1:6380/2", cfg.RedisURL)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err)
}

func TestParseDatabaseAndRedis(t *testing.T) {
	cfg, err := Parse([]byte(`
database:
  host: " db.internal "
  user: app
  password: pw
  name: blog
  params:
    timeout: 3s
    " ": dropped
redis:
  enable: true
  host: cache.internal
  password: secret
  db: 2
  tls: true
bark:
  key: dev
`))
	require.NoError(t, err)

	assert.Equal(t, "app:pw@tcp(db.internal:3306)/blog?charset=utf8mb4&loc=Local&parseTime=true&timeout=3s", cfg.DSN)
	assert.Equal(t, "rediss://:secret@cache.internal:6379/2", cfg.RedisURL)
	assert.Equal(t, "dev", cfg.Bark.Key)

	cfg, err = Parse([]byte("database:\n  dsn: u:p@tcp(h:1)/x\n"))
	require.NoError(t, err)
	assert.Equal(t, "u:p@tcp(h:1)/x", cfg.DSN)
}
