package comment

import (
	"context"

	"github.com/mx-space/moderation/internal/models"
)

// OrderedList keeps the approved comments of each page at the dense
// positions 1..N. Positions of different pages never interact. Callers run
// it inside Repository.InPageTx and save the comment afterwards.
type OrderedList struct{}

// InsertAtBottom gives c the position after the page's last approved
// comment. A comment already in the list is moved: its slot is closed first.
func (l OrderedList) InsertAtBottom(ctx context.Context, repo Repository, c *models.CommentModel) error {
	if err := l.detach(ctx, repo, c); err != nil {
		return err
	}
	next, err := repo.NextPosition(ctx, c.PageID)
	if err != nil {
		return err
	}
	c.Position = &next
	return nil
}

// Remove takes c out of the list and shifts every later comment up by one.
func (l OrderedList) Remove(ctx context.Context, repo Repository, c *models.CommentModel) error {
	return l.detach(ctx, repo, c)
}

// detach must run before c.Approved changes: only a comment that is approved
// holds a slot whose gap needs closing.
func (OrderedList) detach(ctx context.Context, repo Repository, c *models.CommentModel) error {
	if c.Position == nil {
		return nil
	}
	old := *c.Position
	inList := c.Approved
	c.Position = nil
	if err := repo.Save(ctx, c); err != nil {
		return err
	}
	if !inList {
		return nil
	}
	return repo.CloseGap(ctx, c.PageID, old, c.ID)
}
