package comment

import (
	"context"
	"errors"
	"fmt"

	"github.com/mx-space/moderation/internal/models"
	"github.com/mx-space/moderation/internal/pkg/pagination"
	"github.com/mx-space/moderation/internal/pkg/response"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository persists comments and their ordering metadata. Writes made
// through the Repository handed to InPageTx's callback are visible to reads
// through the same value and commit together.
type Repository interface {
	FindByID(ctx context.Context, id string) (*models.CommentModel, error)
	FindApprovedOrderedByPosition(ctx context.Context, pageID string) ([]models.CommentModel, error)
	Save(ctx context.Context, c *models.CommentModel) error
	// NextPosition is max(position)+1 over the page's approved comments.
	NextPosition(ctx context.Context, pageID string) (int, error)
	// CloseGap decrements every approved position above after, skipping excludeID.
	CloseGap(ctx context.Context, pageID string, after int, excludeID string) error
	CountApproved(ctx context.Context, pageID string) (int64, error)
	ListPending(ctx context.Context, q pagination.Query) ([]models.CommentModel, response.Pagination, error)
	FindPage(ctx context.Context, pageID string) (*models.PageModel, error)
	// InPageTx runs fn in one transaction holding the page row lock, which
	// serializes position changes per page.
	InPageTx(ctx context.Context, pageID string, fn func(tx Repository) error) error
}

type GormRepository struct {
	db   *gorm.DB
	inTx bool
}

func NewGormRepository(db *gorm.DB) *GormRepository { return &GormRepository{db: db} }

func (r *GormRepository) approvedScope(ctx context.Context, pageID string) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.CommentModel{}).
		Where("page_id = ? AND approved = ? AND position IS NOT NULL", pageID, true)
}

func (r *GormRepository) FindByID(ctx context.Context, id string) (*models.CommentModel, error) {
	var c models.CommentModel
	if err := r.db.WithContext(ctx).First(&c, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errCommentNotFound
		}
		return nil, fmt.Errorf("find comment %s: %w", id, err)
	}
	return &c, nil
}

func (r *GormRepository) FindApprovedOrderedByPosition(ctx context.Context, pageID string) ([]models.CommentModel, error) {
	var list []models.CommentModel
	if err := r.approvedScope(ctx, pageID).Order("position ASC").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list approved comments: %w", err)
	}
	return list, nil
}

func (r *GormRepository) Save(ctx context.Context, c *models.CommentModel) error {
	if err := r.db.WithContext(ctx).Save(c).Error; err != nil {
		return fmt.Errorf("save comment: %w", err)
	}
	return nil
}

func (r *GormRepository) NextPosition(ctx context.Context, pageID string) (int, error) {
	var max int
	row := r.approvedScope(ctx, pageID).Select("COALESCE(MAX(position), 0)").Row()
	if err := row.Scan(&max); err != nil {
		return 0, fmt.Errorf("next position: %w", err)
	}
	return max + 1, nil
}

func (r *GormRepository) CloseGap(ctx context.Context, pageID string, after int, excludeID string) error {
	err := r.approvedScope(ctx, pageID).
		Where("position > ? AND id <> ?", after, excludeID).
		UpdateColumn("position", gorm.Expr("position - 1")).Error
	if err != nil {
		return fmt.Errorf("close position gap: %w", err)
	}
	return nil
}

func (r *GormRepository) CountApproved(ctx context.Context, pageID string) (int64, error) {
	var n int64
	if err := r.approvedScope(ctx, pageID).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count approved comments: %w", err)
	}
	return n, nil
}

func (r *GormRepository) ListPending(ctx context.Context, q pagination.Query) ([]models.CommentModel, response.Pagination, error) {
	tx := r.db.WithContext(ctx).Model(&models.CommentModel{}).
		Where("approved = ?", false).
		Order("created_at DESC")

	var list []models.CommentModel
	pag, err := pagination.Paginate(tx, q, &list)
	if err != nil {
		return nil, response.Pagination{}, fmt.Errorf("list pending comments: %w", err)
	}
	return list, pag, nil
}

func (r *GormRepository) FindPage(ctx context.Context, pageID string) (*models.PageModel, error) {
	var p models.PageModel
	if err := r.db.WithContext(ctx).First(&p, "id = ?", pageID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errPageNotFound
		}
		return nil, fmt.Errorf("find page %s: %w", pageID, err)
	}
	return &p, nil
}

func (r *GormRepository) InPageTx(ctx context.Context, pageID string, fn func(tx Repository) error) error {
	if r.inTx {
		return fn(r)
	}

	tx := r.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return fmt.Errorf("begin: %w", tx.Error)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := lockPage(tx, pageID); err != nil {
		tx.Rollback()
		return err
	}
	if err := fn(&GormRepository{db: tx, inTx: true}); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit().Error; err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// lockPage takes the page row lock. SQLite serializes writers on its own and
// has no FOR UPDATE, so the clause is only added for MySQL.
func lockPage(tx *gorm.DB, pageID string) error {
	q := tx.Model(&models.PageModel{}).Select("id").Where("id = ?", pageID)
	if tx.Dialector.Name() == "mysql" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var page models.PageModel
	if err := q.Take(&page).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errPageNotFound
		}
		return fmt.Errorf("lock page %s: %w", pageID, err)
	}
	return nil
}
