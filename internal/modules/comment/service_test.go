package comment

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/mx-space/moderation/internal/config"
	"github.com/mx-space/moderation/internal/models"
	"github.com/mx-space/moderation/internal/pkg/pagination"
)

type recordingNotifier struct {
	db       *gorm.DB
	approved []bool
	stored   []bool
	err      error
}

func (n *recordingNotifier) NotifyComment(_ context.Context, c *models.CommentModel, page *models.PageModel) error {
	if n.db != nil {
		var count int64
		_ = n.db.Model(&models.CommentModel{}).Where("id = ?", c.ID).Count(&count).Error
		n.stored = append(n.stored, count == 1)
	}
	n.approved = append(n.approved, c.Approved)
	return n.err
}

func withNotifier(f *fixture, n *recordingNotifier) {
	f.svc = NewService(f.repo, f.mod, f.cfg, nil, WithPageCache(f.cache), WithNotifier(n))
}

func TestNotificationRules(t *testing.T) {
	cases := []struct {
		name             string
		notification     bool
		notifyUnapproved bool
		answerCorrect    bool
		want             []bool
	}{
		{"off", false, true, true, nil},
		{"approved notifies", true, false, true, []bool{true}},
		{"unapproved suppressed", true, false, false, nil},
		{"unapproved when configured", true, true, false, []bool{false}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, func(c *config.CommentConfig) {
				c.Notification = tc.notification
				c.NotifyUnapproved = tc.notifyUnapproved
			})
			n := &recordingNotifier{db: f.db}
			withNotifier(f, n)
			p := f.page(t, "hello")

			dto := correctAnswerDTO("ann")
			if !tc.answerCorrect {
				dto.SpamAnswer = "wrong"
			}
			_, err := f.svc.Submit(context.Background(), p.ID, dto, Provenance{})
			require.NoError(t, err)
			assert.Equal(t, tc.want, n.approved)
			for _, stored := range n.stored {
				assert.True(t, stored, "notified before commit")
			}
		})
	}
}

func TestNotifierFailureDoesNotFailSubmission(t *testing.T) {
	f := newFixture(t, func(c *config.CommentConfig) { c.Notification = true })
	withNotifier(f, &recordingNotifier{db: f.db, err: errors.New("smtp down")})
	p := f.page(t, "hello")

	c, err := f.svc.Submit(context.Background(), p.ID, correctAnswerDTO("ann"), Provenance{})
	require.NoError(t, err)
	assert.True(t, f.reload(t, c.ID).Approved)
}

func TestSubmitPageErrors(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Submit(context.Background(), "nope", correctAnswerDTO("ann"), Provenance{})
	assert.ErrorIs(t, err, errPageNotFound)

	closed := &models.PageModel{Title: "closed", Slug: "closed"}
	require.NoError(t, f.db.Create(closed).Error)
	_, err = f.svc.Submit(context.Background(), closed.ID, correctAnswerDTO("ann"), Provenance{})
	assert.ErrorIs(t, err, errCommentsDisabled)
}

func TestWritesInvalidatePageCache(t *testing.T) {
	f := newFixture(t)
	p := f.page(t, "hello")
	ctx := context.Background()

	c, err := f.svc.Submit(ctx, p.ID, correctAnswerDTO("ann"), Provenance{})
	require.NoError(t, err)
	_, err = f.svc.Unapprove(ctx, c.ID)
	require.NoError(t, err)
	_, err = f.svc.Approve(ctx, c.ID)
	require.NoError(t, err)

	assert.Equal(t, []string{p.ID, p.ID, p.ID}, f.cache.pages)
}

func TestSubmitRendersContent(t *testing.T) {
	f := newFixture(t, func(c *config.CommentConfig) { c.FiltersEnabled = true })
	p := f.page(t, "hello")

	dto := correctAnswerDTO("ann")
	dto.Content = "*hi* <img src=x>"
	dto.FilterID = "markdown"
	c, err := f.svc.Submit(context.Background(), p.ID, dto, Provenance{})
	require.NoError(t, err)
	assert.Contains(t, c.ContentHTML, "<em>hi</em>")
	assert.NotContains(t, c.ContentHTML, "<img")
	assert.Equal(t, "markdown", f.reload(t, c.ID).FilterID)
}

func TestTemplatingQueries(t *testing.T) {
	f := newFixture(t)
	p := f.page(t, "hello")
	other := f.page(t, "other")
	ctx := context.Background()

	a := f.add(t, p, true)
	b := f.add(t, p, true)
	mine := f.add(t, p, false)
	foreign := f.add(t, other, false)

	list, err := f.svc.ApprovedComments(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, a.ID, list[0].ID)
	assert.Equal(t, b.ID, list[1].ID)

	n, err := f.svc.CountApproved(ctx, p.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	visible, err := f.svc.VisibleTo(ctx, p.ID, mine.ID)
	require.NoError(t, err)
	require.NotNil(t, visible.Selected)
	assert.Equal(t, mine.ID, visible.Selected.ID)
	assert.Len(t, visible.Approved, 2)

	for _, id := range []string{"", "missing", foreign.ID, a.ID} {
		visible, err = f.svc.VisibleTo(ctx, p.ID, id)
		require.NoError(t, err)
		assert.Nil(t, visible.Selected, "selected %q", id)
	}
}

func TestPendingQueue(t *testing.T) {
	f := newFixture(t)
	p := f.page(t, "hello")
	f.add(t, p, true)
	for i := 0; i < 3; i++ {
		f.add(t, p, false)
	}

	list, pag, err := f.svc.Pending(context.Background(), pagination.Query{Page: 1, Size: 2})
	require.NoError(t, err)
	assert.Len(t, list, 2)
	assert.EqualValues(t, 3, pag.Total)
	assert.True(t, pag.HasNextPage)
	for _, c := range list {
		assert.False(t, c.Approved)
	}

	n, err := f.svc.RefreshPendingGauge(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
	assert.InDelta(t, 3, testutil.ToFloat64(pendingGauge), 0)
}
