package pagination

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/mx-space/moderation/internal/pkg/response"
	"gorm.io/gorm"
)

const (
	DefaultPage = 1
	DefaultSize = 10
	MaxSize     = 100
)

// Query is a 1-based page request.
type Query struct {
	Page int
	Size int
}

// FromContext reads ?page= and ?size=, clamping both into range.
func FromContext(c *gin.Context) Query {
	return Query{
		Page: atoiOr(c.Query("page"), DefaultPage),
		Size: atoiOr(c.Query("size"), DefaultSize),
	}.Clamp()
}

// Clamp replaces out-of-range values with the defaults and caps Size.
func (q Query) Clamp() Query {
	if q.Page < 1 {
		q.Page = DefaultPage
	}
	if q.Size < 1 {
		q.Size = DefaultSize
	}
	if q.Size > MaxSize {
		q.Size = MaxSize
	}
	return q
}

func (q Query) Offset() int { return (q.Page - 1) * q.Size }

// Paginate counts the rows matched by db, then loads the requested page
// into dest.
func Paginate[T any](db *gorm.DB, q Query, dest *[]T) (response.Pagination, error) {
	q = q.Clamp()
	var total int64
	if err := db.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return response.Pagination{}, err
	}
	if err := db.Offset(q.Offset()).Limit(q.Size).Find(dest).Error; err != nil {
		return response.Pagination{}, err
	}

	totalPage := int((total + int64(q.Size) - 1) / int64(q.Size))
	return response.Pagination{
		Total:       total,
		CurrentPage: q.Page,
		TotalPage:   totalPage,
		Size:        q.Size,
		HasNextPage: q.Page < totalPage,
	}, nil
}

func atoiOr(s string, def int) int {
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	return def
}
