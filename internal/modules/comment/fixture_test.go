package comment

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mx-space/moderation/internal/config"
	"github.com/mx-space/moderation/internal/database"
	"github.com/mx-space/moderation/internal/models"
	"github.com/mx-space/moderation/internal/modules/spam"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// every connection to :memory: is a separate database
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, database.Migrate(db))
	return db
}

type fakeChecker struct {
	decision spam.Decision
	calls    int
	last     spam.Evidence
}

func (f *fakeChecker) Evaluate(_ context.Context, ev spam.Evidence) spam.Decision {
	f.calls++
	f.last = ev
	return f.decision
}

type fakeFeedback struct {
	sessions []string
	err      error
}

func (f *fakeFeedback) SendFeedback(_ context.Context, sessionID, feedback string) error {
	f.sessions = append(f.sessions, sessionID+":"+feedback)
	return f.err
}

type recordingPageCache struct {
	mu    sync.Mutex
	pages []string
}

func (r *recordingPageCache) InvalidatePage(_ context.Context, pageID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pages = append(r.pages, pageID)
}

type fixture struct {
	db       *gorm.DB
	repo     *GormRepository
	checker  *fakeChecker
	feedback *fakeFeedback
	cache    *recordingPageCache
	mod      *Moderator
	svc      *Service
	cfg      config.CommentConfig
	seq      int
}

func newFixture(t *testing.T, mutate ...func(*config.CommentConfig)) *fixture {
	t.Helper()
	cfg := config.DefaultCommentConfig()
	for _, m := range mutate {
		m(&cfg)
	}
	f := &fixture{
		db:       newTestDB(t),
		checker:  &fakeChecker{},
		feedback: &fakeFeedback{},
		cache:    &recordingPageCache{},
		cfg:      cfg,
	}
	f.repo = NewGormRepository(f.db)
	f.mod = NewModerator(f.repo, f.checker, f.feedback, cfg, nil)
	f.svc = NewService(f.repo, f.mod, cfg, nil, WithPageCache(f.cache))
	return f
}

func (f *fixture) page(t *testing.T, slug string) *models.PageModel {
	t.Helper()
	p := &models.PageModel{Title: slug, Slug: slug, URL: "https://example.com/" + slug, AllowComment: true}
	require.NoError(t, f.db.Create(p).Error)
	return p
}

// add stores an unapproved comment and optionally approves it through the
// moderator.
func (f *fixture) add(t *testing.T, page *models.PageModel, approved bool) *models.CommentModel {
	t.Helper()
	f.seq++
	c := &models.CommentModel{
		PageID:      page.ID,
		Author:      fmt.Sprintf("visitor-%d", f.seq),
		AuthorEmail: fmt.Sprintf("visitor-%d@example.com", f.seq),
		Content:     fmt.Sprintf("comment number %d", f.seq),
	}
	require.NoError(t, f.repo.Save(context.Background(), c))
	if approved {
		out, err := f.mod.Approve(context.Background(), c.ID)
		require.NoError(t, err)
		return out
	}
	return c
}

func (f *fixture) reload(t *testing.T, id string) *models.CommentModel {
	t.Helper()
	c, err := f.repo.FindByID(context.Background(), id)
	require.NoError(t, err)
	return c
}

// approvedIDs returns the approved comment ids of a page in position order.
func (f *fixture) approvedIDs(t *testing.T, pageID string) []string {
	t.Helper()
	list, err := f.repo.FindApprovedOrderedByPosition(context.Background(), pageID)
	require.NoError(t, err)
	ids := make([]string, len(list))
	for i, c := range list {
		ids[i] = c.ID
	}
	return ids
}

// requireDense checks that the page's approved comments hold exactly 1..N
// and unapproved ones hold no position.
func (f *fixture) requireDense(t *testing.T, pageID string) {
	t.Helper()
	var all []models.CommentModel
	require.NoError(t, f.db.Where("page_id = ?", pageID).Find(&all).Error)

	seen := map[int]bool{}
	approved := 0
	for _, c := range all {
		if !c.Approved {
			require.Nil(t, c.Position, "unapproved comment %s holds a position", c.ID)
			require.Nil(t, c.ApprovedAt, "unapproved comment %s has approved_at", c.ID)
			continue
		}
		approved++
		require.NotNil(t, c.Position, "approved comment %s has no position", c.ID)
		require.NotNil(t, c.ApprovedAt, "approved comment %s has no approved_at", c.ID)
		require.False(t, seen[*c.Position], "duplicate position %d", *c.Position)
		seen[*c.Position] = true
	}
	for p := 1; p <= approved; p++ {
		require.True(t, seen[p], "missing position %d of %d", p, approved)
	}
}

func pos(c *models.CommentModel) int {
	if c.Position == nil {
		return 0
	}
	return *c.Position
}

func correctAnswerDTO(author string) *CreateCommentDTO {
	return &CreateCommentDTO{
		Author:          author,
		AuthorEmail:     author + "@example.com",
		Content:         "Nice post, " + author + " here.",
		SpamAnswer:      "Tuesday",
		ValidSpamAnswer: "tuesday",
	}
}
