package app

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mx-space/moderation/internal/config"
	"github.com/mx-space/moderation/internal/database"
	"github.com/mx-space/moderation/internal/models"
	pkgredis "github.com/mx-space/moderation/internal/pkg/redis"
)

const adminToken = "s3cret"

type testApp struct {
	*App
	db *gorm.DB
	mr *miniredis.Miniredis
}

func newTestApp(t *testing.T, withRedis bool) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg, err := config.Parse([]byte("env: production\nadmin_token: " + adminToken + "\n"))
	require.NoError(t, err)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.Migrate(db))

	ta := &testApp{db: db}
	var rc *pkgredis.Client
	if withRedis {
		ta.mr = miniredis.RunT(t)
		rc, err = pkgredis.Connect("redis://" + ta.mr.Addr())
		require.NoError(t, err)
	}
	ta.App = build(nil, cfg, db, rc)
	t.Cleanup(ta.Shutdown)
	return ta
}

func (ta *testApp) page(t *testing.T) *models.PageModel {
	t.Helper()
	p := &models.PageModel{Title: "Hello", Slug: "hello", URL: "https://example.com/hello", AllowComment: true}
	require.NoError(t, ta.db.Create(p).Error)
	return p
}

func (ta *testApp) do(method, path string, body any, admin bool) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if admin {
		req.Header.Set("Authorization", "Bearer "+adminToken)
	}
	w := httptest.NewRecorder()
	ta.Router().ServeHTTP(w, req)
	return w
}

func submission(author string) map[string]any {
	return map[string]any{
		"author": author, "author_email": author + "@example.com", "content": "hello from " + author,
		"spam_answer": "blue", "valid_spam_answer": "blue",
	}
}

func TestHealth(t *testing.T) {
	ta := newTestApp(t, true)

	w := ta.do(http.MethodGet, "/health", nil, false)
	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, true, body["redis"])

	ta.mr.Close()
	w = ta.do(http.MethodGet, "/health", nil, false)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestMetricsAndNotFound(t *testing.T) {
	ta := newTestApp(t, false)

	w := ta.do(http.MethodGet, "/metrics", nil, false)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "moderation_pending_comments")

	w = ta.do(http.MethodGet, "/nope", nil, false)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSubmitAndModerateWithoutRedis(t *testing.T) {
	ta := newTestApp(t, false)
	p := ta.page(t)

	w := ta.do(http.MethodPost, "/api/pages/"+p.ID+"/comments", submission("ann"), false)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	id := created["id"].(string)

	w = ta.do(http.MethodPatch, "/api/comments/"+id+"/unapprove", nil, false)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = ta.do(http.MethodPatch, "/api/comments/"+id+"/unapprove", nil, true)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = ta.do(http.MethodGet, "/api/pages/"+p.ID+"/comments/count", nil, false)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"count":0`)
}

func TestListingIsCachedUntilCommentChanges(t *testing.T) {
	ta := newTestApp(t, true)
	p := ta.page(t)
	list := "/api/pages/" + p.ID + "/comments"

	w := ta.do(http.MethodPost, list, submission("ann"), false)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	ta.pageCache.Wait()

	first := ta.do(http.MethodGet, list, nil, false)
	require.Equal(t, http.StatusOK, first.Code)
	assert.Empty(t, first.Header().Get("x-mx-cache"))

	second := ta.do(http.MethodGet, list, nil, false)
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "hit", second.Header().Get("x-mx-cache"))
	assert.Equal(t, first.Body.String(), second.Body.String())

	w = ta.do(http.MethodPost, list, submission("bo"), false)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	ta.pageCache.Wait()

	third := ta.do(http.MethodGet, list, nil, false)
	assert.Empty(t, third.Header().Get("x-mx-cache"))
	assert.Contains(t, third.Body.String(), "hello from bo")
}

func TestSubmitRepeatIsRejected(t *testing.T) {
	ta := newTestApp(t, true)
	p := ta.page(t)

	w := ta.do(http.MethodPost, "/api/pages/"+p.ID+"/comments", submission("ann"), false)
	require.Equal(t, http.StatusCreated, w.Code)
	w = ta.do(http.MethodPost, "/api/pages/"+p.ID+"/comments", submission("ann"), false)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestCronRoutes(t *testing.T) {
	ta := newTestApp(t, false)

	w := ta.do(http.MethodGet, "/health/cron", nil, false)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = ta.do(http.MethodPost, "/health/cron/"+jobPendingComments, nil, true)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = ta.do(http.MethodPost, "/health/cron/missing", nil, true)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ta.do(http.MethodGet, "/health/cron", nil, true)
	require.Equal(t, http.StatusOK, w.Code)
	raw, _ := io.ReadAll(w.Body)
	assert.Contains(t, string(raw), jobRefreshMollomServers)
	assert.Contains(t, string(raw), jobPendingComments)
}

func TestPurgeCacheRequiresAdmin(t *testing.T) {
	ta := newTestApp(t, true)
	require.NoError(t, ta.mr.Set("mx-api-cache:page:x:/api/pages/x/comments", "{}"))

	w := ta.do(http.MethodDelete, "/api/cache", nil, false)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = ta.do(http.MethodDelete, "/api/cache", nil, true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, ta.mr.Exists("mx-api-cache:page:x:/api/pages/x/comments"))
}

func TestMatchOrigin(t *testing.T) {
	cases := []struct {
		pattern, host string
		want          bool
	}{
		{"example.com", "example.com", true},
		{"*.example.com", "blog.example.com", true},
		{"*.example.com", "example.org", false},
		{"localhost:*", "localhost:3000", true},
		{"localhost:*", "otherhost:3000", false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, matchOrigin(tc.pattern, tc.host), tc.pattern+" "+tc.host)
	}
	assert.Equal(t, "example.com:8080", originHost("https://Example.com:8080"))
}

func TestCORSAllowedOrigins(t *testing.T) {
	cfg, err := config.Parse([]byte("env: production\nallowed_origins: [\"*.example.com\"]\n"))
	require.NoError(t, err)
	allow := corsConfig(cfg).AllowOriginFunc
	assert.True(t, allow("https://blog.example.com"))
	assert.False(t, allow("https://evil.test"))

	dev, err := config.Parse([]byte("allowed_origins: [\"*.example.com\"]\n"))
	require.NoError(t, err)
	assert.True(t, corsConfig(dev).AllowOriginFunc("https://evil.test"))
}
