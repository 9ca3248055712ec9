package comment

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mx-space/moderation/internal/models"
)

func TestApproveAppendsToBottom(t *testing.T) {
	f := newFixture(t)
	p := f.page(t, "hello")

	a := f.add(t, p, true)
	b := f.add(t, p, true)
	c := f.add(t, p, true)

	assert.Equal(t, 1, pos(a))
	assert.Equal(t, 2, pos(b))
	assert.Equal(t, 3, pos(c))
	assert.Equal(t, []string{a.ID, b.ID, c.ID}, f.approvedIDs(t, p.ID))
	f.requireDense(t, p.ID)
}

func TestUnapproveFirstClosesGap(t *testing.T) {
	f := newFixture(t)
	p := f.page(t, "hello")
	a := f.add(t, p, true)
	b := f.add(t, p, true)
	c := f.add(t, p, true)

	out, err := f.svc.Unapprove(context.Background(), a.ID)
	require.NoError(t, err)
	assert.False(t, out.Approved)
	assert.Nil(t, out.Position)
	assert.Nil(t, out.ApprovedAt)

	assert.Equal(t, 1, pos(f.reload(t, b.ID)))
	assert.Equal(t, 2, pos(f.reload(t, c.ID)))
	assert.Equal(t, []string{b.ID, c.ID}, f.approvedIDs(t, p.ID))
	f.requireDense(t, p.ID)
}

func TestUnapproveShiftsOnlyItsPage(t *testing.T) {
	f := newFixture(t)
	p1 := f.page(t, "one")
	p2 := f.page(t, "two")

	var first []*models.CommentModel
	var second []*models.CommentModel
	for i := 0; i < 4; i++ {
		first = append(first, f.add(t, p1, true))
		second = append(second, f.add(t, p2, true))
	}

	// unapprove position 2 of page one
	_, err := f.svc.Unapprove(context.Background(), first[1].ID)
	require.NoError(t, err)

	assert.Equal(t, 1, pos(f.reload(t, first[0].ID)))
	assert.Equal(t, 2, pos(f.reload(t, first[2].ID)))
	assert.Equal(t, 3, pos(f.reload(t, first[3].ID)))
	for i, c := range second {
		assert.Equal(t, i+1, pos(f.reload(t, c.ID)), "page two comment %d moved", i)
	}
	f.requireDense(t, p1.ID)
	f.requireDense(t, p2.ID)
}

func TestReapproveGoesToNewBottom(t *testing.T) {
	f := newFixture(t)
	p := f.page(t, "hello")
	a := f.add(t, p, true)
	b := f.add(t, p, true)
	c := f.add(t, p, true)

	_, err := f.svc.Unapprove(context.Background(), a.ID)
	require.NoError(t, err)
	out, err := f.svc.Approve(context.Background(), a.ID)
	require.NoError(t, err)

	assert.Equal(t, 3, pos(out))
	assert.NotNil(t, out.ApprovedAt)
	assert.Equal(t, []string{b.ID, c.ID, a.ID}, f.approvedIDs(t, p.ID))
	f.requireDense(t, p.ID)
}

func TestApproveAlreadyApprovedMovesToBottom(t *testing.T) {
	f := newFixture(t)
	p := f.page(t, "hello")
	a := f.add(t, p, true)
	b := f.add(t, p, true)
	c := f.add(t, p, true)

	out, err := f.svc.Approve(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, pos(out))
	assert.Equal(t, []string{b.ID, c.ID, a.ID}, f.approvedIDs(t, p.ID))

	// approving the last one again keeps it last
	out, err = f.svc.Approve(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, pos(out))
	f.requireDense(t, p.ID)
}

func TestUnapproveUnapprovedIsNoop(t *testing.T) {
	f := newFixture(t)
	p := f.page(t, "hello")
	a := f.add(t, p, true)
	b := f.add(t, p, false)

	out, err := f.svc.Unapprove(context.Background(), b.ID)
	require.NoError(t, err)
	assert.False(t, out.Approved)
	assert.Equal(t, 1, pos(f.reload(t, a.ID)))
	f.requireDense(t, p.ID)
}

func TestPositionsStayDenseUnderRandomTransitions(t *testing.T) {
	f := newFixture(t)
	pages := []*models.PageModel{f.page(t, "a"), f.page(t, "b"), f.page(t, "c")}

	var all []*models.CommentModel
	for i := 0; i < 18; i++ {
		all = append(all, f.add(t, pages[i%len(pages)], i%2 == 0))
	}

	rng := rand.New(rand.NewSource(7))
	ctx := context.Background()
	for step := 0; step < 120; step++ {
		c := all[rng.Intn(len(all))]
		var err error
		if rng.Intn(2) == 0 {
			_, err = f.svc.Approve(ctx, c.ID)
		} else {
			_, err = f.svc.Unapprove(ctx, c.ID)
		}
		require.NoError(t, err)
		for _, p := range pages {
			f.requireDense(t, p.ID)
		}
	}
}

func TestOrderedListTieBreakIsInsertionOrder(t *testing.T) {
	f := newFixture(t)
	p := f.page(t, "hello")
	ctx := context.Background()

	var batch []*models.CommentModel
	for i := 0; i < 3; i++ {
		batch = append(batch, f.add(t, p, false))
	}
	err := f.repo.InPageTx(ctx, p.ID, func(tx Repository) error {
		for _, c := range batch {
			if err := f.mod.approve(ctx, tx, c); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{batch[0].ID, batch[1].ID, batch[2].ID}, f.approvedIDs(t, p.ID))
}

func TestApproveUnknownComment(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Approve(context.Background(), "missing")
	assert.ErrorIs(t, err, errCommentNotFound)
}
