package comment

import (
	"context"
	"errors"
	"strings"

	"github.com/mx-space/moderation/internal/config"
	"github.com/mx-space/moderation/internal/models"
	"github.com/mx-space/moderation/internal/pkg/pagination"
	"github.com/mx-space/moderation/internal/pkg/response"
	"go.uber.org/zap"
)

// Service is the entry point for submissions, moderation actions and the
// read-only queries page rendering uses.
type Service struct {
	repo      Repository
	moderator *Moderator
	filters   *Filters
	notifier  Notifier
	pageCache PageCacheInvalidator
	cfg       config.CommentConfig
	log       *zap.Logger
}

type Option func(*Service)

func WithFilters(f *Filters) Option { return func(s *Service) { s.filters = f } }

func WithNotifier(n Notifier) Option { return func(s *Service) { s.notifier = n } }

func WithPageCache(p PageCacheInvalidator) Option { return func(s *Service) { s.pageCache = p } }

func NewService(repo Repository, moderator *Moderator, cfg config.CommentConfig, log *zap.Logger, opts ...Option) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Service{
		repo:      repo,
		moderator: moderator,
		filters:   DefaultFilters(),
		pageCache: NoopPageCache{},
		cfg:       cfg,
		log:       log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PageComments is what a visitor sees on a page: the approved comments in
// order plus, if any, their own comment still waiting for approval.
type PageComments struct {
	Approved []models.CommentModel
	Selected *models.CommentModel
}

// Submit validates and stores a visitor's comment. The comment is committed
// before the page cache is cleared and the owner notified; neither of those
// can fail the submission.
func (s *Service) Submit(ctx context.Context, pageID string, dto *CreateCommentDTO, prov Provenance) (*models.CommentModel, error) {
	c, err := buildComment(pageID, dto, prov)
	if err != nil {
		return nil, err
	}

	page, err := s.repo.FindPage(ctx, c.PageID)
	if err != nil {
		return nil, err
	}
	if !page.AllowComment {
		return nil, errCommentsDisabled
	}

	c.ContentHTML = s.filters.Render(s.cfg.FiltersEnabled, c.FilterID, c.Content)
	answer := Answer{Given: dto.SpamAnswer, Expected: dto.ValidSpamAnswer}
	if err := s.moderator.Submit(ctx, c, page, answer); err != nil {
		return nil, err
	}

	s.log.Info("comment submitted",
		zap.String("comment_id", c.ID),
		zap.String("page_id", c.PageID),
		zap.Bool("approved", c.Approved),
	)
	s.pageCache.InvalidatePage(ctx, c.PageID)
	s.notify(ctx, c, page)
	return c, nil
}

func (s *Service) notify(ctx context.Context, c *models.CommentModel, page *models.PageModel) {
	if s.notifier == nil || !s.cfg.ShouldNotify(c.Approved) {
		return
	}
	if err := s.notifier.NotifyComment(ctx, c, page); err != nil {
		s.log.Warn("comment notification failed", zap.String("comment_id", c.ID), zap.Error(err))
	}
}

func (s *Service) Approve(ctx context.Context, id string) (*models.CommentModel, error) {
	c, err := s.moderator.Approve(ctx, id)
	if err != nil {
		return nil, err
	}
	s.pageCache.InvalidatePage(ctx, c.PageID)
	return c, nil
}

func (s *Service) Unapprove(ctx context.Context, id string) (*models.CommentModel, error) {
	c, err := s.moderator.Unapprove(ctx, id)
	if err != nil {
		return nil, err
	}
	s.pageCache.InvalidatePage(ctx, c.PageID)
	return c, nil
}

// ApprovedComments returns the page's approved comments by position.
func (s *Service) ApprovedComments(ctx context.Context, pageID string) ([]models.CommentModel, error) {
	return s.repo.FindApprovedOrderedByPosition(ctx, pageID)
}

func (s *Service) CountApproved(ctx context.Context, pageID string) (int64, error) {
	return s.repo.CountApproved(ctx, pageID)
}

// VisibleTo returns the page's comments as seen by a visitor whose own
// comment id is selectedID (may be empty). An unknown, foreign or already
// approved selected comment is ignored.
func (s *Service) VisibleTo(ctx context.Context, pageID, selectedID string) (PageComments, error) {
	approved, err := s.repo.FindApprovedOrderedByPosition(ctx, pageID)
	if err != nil {
		return PageComments{}, err
	}
	out := PageComments{Approved: approved}

	selectedID = strings.TrimSpace(selectedID)
	if selectedID == "" {
		return out, nil
	}
	c, err := s.repo.FindByID(ctx, selectedID)
	if err != nil {
		if errors.Is(err, errCommentNotFound) {
			return out, nil
		}
		return PageComments{}, err
	}
	if c.PageID == pageID && !c.Approved {
		out.Selected = c
	}
	return out, nil
}

// Pending lists unapproved comments, newest first.
func (s *Service) Pending(ctx context.Context, q pagination.Query) ([]models.CommentModel, response.Pagination, error) {
	return s.repo.ListPending(ctx, q)
}

func (s *Service) Get(ctx context.Context, id string) (*models.CommentModel, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *Service) Page(ctx context.Context, pageID string) (*models.PageModel, error) {
	return s.repo.FindPage(ctx, pageID)
}

// RefreshPendingGauge publishes the size of the moderation queue.
func (s *Service) RefreshPendingGauge(ctx context.Context) (int64, error) {
	_, pag, err := s.repo.ListPending(ctx, pagination.Query{Page: 1, Size: 1})
	if err != nil {
		return 0, err
	}
	pendingGauge.Set(float64(pag.Total))
	return pag.Total, nil
}
