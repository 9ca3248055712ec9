package comment

import (
	"context"
	"time"

	"github.com/mx-space/moderation/internal/config"
	"github.com/mx-space/moderation/internal/models"
	"github.com/mx-space/moderation/internal/modules/spam"
	"go.uber.org/zap"
)

// SpamChecker decides whether a submission is spam. *spam.Chain implements it.
type SpamChecker interface {
	Evaluate(ctx context.Context, ev spam.Evidence) spam.Decision
}

// Answer is a visitor's reply to the simple challenge and the expected reply.
type Answer struct {
	Given    string
	Expected string
}

// Moderator owns the approval state of comments. A comment is either
// unapproved (no ApprovedAt, no Position) or approved (both set); every
// transition runs inside the page transaction together with the position
// bookkeeping.
type Moderator struct {
	repo     Repository
	list     OrderedList
	checker  SpamChecker
	feedback spam.FeedbackSender
	cfg      config.CommentConfig
	log      *zap.Logger
	now      func() time.Time
}

// NewModerator builds a Moderator. feedback may be nil.
func NewModerator(repo Repository, checker SpamChecker, feedback spam.FeedbackSender, cfg config.CommentConfig, log *zap.Logger) *Moderator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Moderator{
		repo:     repo,
		checker:  checker,
		feedback: feedback,
		cfg:      cfg,
		log:      log,
		now:      time.Now,
	}
}

// Submit stores c as a new unapproved comment and approves it in the same
// transaction when ShouldAutoApprove says so. The spam decision is taken
// before the page lock is acquired.
func (m *Moderator) Submit(ctx context.Context, c *models.CommentModel, page *models.PageModel, answer Answer) error {
	approve := m.ShouldAutoApprove(ctx, c, page, answer)

	err := m.repo.InPageTx(ctx, c.PageID, func(tx Repository) error {
		c.Approved = false
		c.ApprovedAt = nil
		c.Position = nil
		if err := tx.Save(ctx, c); err != nil {
			return err
		}
		if !approve {
			return nil
		}
		return m.approve(ctx, tx, c)
	})
	if err != nil {
		return err
	}

	transitions.WithLabelValues("submitted").Inc()
	if approve {
		transitions.WithLabelValues("auto_approved").Inc()
	}
	return nil
}

// ShouldAutoApprove never fails. A correct simple challenge answer approves
// without consulting any provider. Otherwise auto-approval must be enabled
// and the provider chain must positively call the comment ham; a chain that
// stays indecisive is not spam but still leaves the comment for a moderator.
// A reputation session id from the decision is recorded on c.
func (m *Moderator) ShouldAutoApprove(ctx context.Context, c *models.CommentModel, page *models.PageModel, answer Answer) bool {
	if m.cfg.RequireSimpleSpamFilter && spam.PassesChallenge(answer.Given, answer.Expected) {
		return true
	}
	if !m.cfg.AutoApprove || m.checker == nil {
		return false
	}

	ev := spam.Evidence{
		IP:             c.AuthorIP,
		UserAgent:      c.UserAgent,
		Referrer:       c.Referrer,
		CommentType:    "comment",
		Author:         c.Author,
		AuthorEmail:    c.AuthorEmail,
		AuthorURL:      c.AuthorURL,
		Content:        c.Content,
		Answer:         answer.Given,
		ExpectedAnswer: answer.Expected,
	}
	if page != nil {
		ev.Permalink = page.URL
	}

	d := m.checker.Evaluate(ctx, ev)
	if d.SessionID != "" {
		c.MollomID = d.SessionID
	}
	m.log.Debug("auto-approval decided",
		zap.String("page_id", c.PageID),
		zap.Stringer("verdict", d.Verdict),
		zap.Stringer("provider", d.Provider),
	)
	return d.IsHam()
}

// Approve moves the comment to the bottom of its page's list. Approving an
// approved comment is allowed and moves it as well.
func (m *Moderator) Approve(ctx context.Context, id string) (*models.CommentModel, error) {
	c, _, err := m.transition(ctx, id, m.approve)
	if err != nil {
		return nil, err
	}
	transitions.WithLabelValues("approved").Inc()
	return c, nil
}

// Unapprove takes the comment out of its page's list. When enabled, the
// reputation service that issued the comment's session id is told it was
// spam; that report is best effort.
func (m *Moderator) Unapprove(ctx context.Context, id string) (*models.CommentModel, error) {
	c, wasApproved, err := m.transition(ctx, id, m.unapprove)
	if err != nil {
		return nil, err
	}
	transitions.WithLabelValues("unapproved").Inc()

	if wasApproved && m.cfg.MollomFeedbackOnUnapprove && m.feedback != nil && c.MollomID != "" {
		if err := m.feedback.SendFeedback(ctx, c.MollomID, "spam"); err != nil {
			m.log.Warn("reputation feedback failed", zap.String("comment_id", c.ID), zap.Error(err))
		}
	}
	return c, nil
}

// transition reloads the comment under its page lock before applying fn.
func (m *Moderator) transition(ctx context.Context, id string, fn func(context.Context, Repository, *models.CommentModel) error) (*models.CommentModel, bool, error) {
	current, err := m.repo.FindByID(ctx, id)
	if err != nil {
		return nil, false, err
	}

	var (
		out         *models.CommentModel
		wasApproved bool
	)
	err = m.repo.InPageTx(ctx, current.PageID, func(tx Repository) error {
		c, err := tx.FindByID(ctx, id)
		if err != nil {
			return err
		}
		wasApproved = c.Approved
		if err := fn(ctx, tx, c); err != nil {
			return err
		}
		out = c
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return out, wasApproved, nil
}

func (m *Moderator) approve(ctx context.Context, tx Repository, c *models.CommentModel) error {
	if err := m.list.InsertAtBottom(ctx, tx, c); err != nil {
		return err
	}
	now := m.now()
	c.Approved = true
	c.ApprovedAt = &now
	return tx.Save(ctx, c)
}

func (m *Moderator) unapprove(ctx context.Context, tx Repository, c *models.CommentModel) error {
	if err := m.list.Remove(ctx, tx, c); err != nil {
		return err
	}
	c.Approved = false
	c.ApprovedAt = nil
	return tx.Save(ctx, c)
}
