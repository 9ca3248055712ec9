package comment

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/mx-space/moderation/internal/models"
	pkgredis "github.com/mx-space/moderation/internal/pkg/redis"
	"go.uber.org/zap"
)

const (
	pageCachePrefix       = "mx-api-cache:page:"
	pageCacheClearTimeout = 3 * time.Second
)

// Notifier tells the site owner about a stored comment. *mail.CommentNotifier
// and *bark.Service implement it.
type Notifier interface {
	NotifyComment(ctx context.Context, c *models.CommentModel, page *models.PageModel) error
}

// Notifiers fans a notification out to every channel. One failing channel
// does not stop the others.
type Notifiers []Notifier

func (ns Notifiers) NotifyComment(ctx context.Context, c *models.CommentModel, page *models.PageModel) error {
	var errs []error
	for _, n := range ns {
		if err := n.NotifyComment(ctx, c, page); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// PageCacheInvalidator drops cached renderings of a page. It must not block
// and has no failure mode visible to the caller.
type PageCacheInvalidator interface {
	InvalidatePage(ctx context.Context, pageID string)
}

type NoopPageCache struct{}

func (NoopPageCache) InvalidatePage(context.Context, string) {}

// RedisPageCache deletes the page's response cache keys in the background.
type RedisPageCache struct {
	client *pkgredis.Client
	log    *zap.Logger
	wg     sync.WaitGroup
}

func NewRedisPageCache(client *pkgredis.Client, log *zap.Logger) *RedisPageCache {
	if log == nil {
		log = zap.NewNop()
	}
	return &RedisPageCache{client: client, log: log}
}

// PageCacheKey is the prefix of every cached response of a page; entries
// append ":" and the request URI.
func PageCacheKey(pageID string) string { return pageCachePrefix + pageID }

func (p *RedisPageCache) InvalidatePage(ctx context.Context, pageID string) {
	ctx = context.WithoutCancel(ctx)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ctx, cancel := context.WithTimeout(ctx, pageCacheClearTimeout)
		defer cancel()

		n, err := p.client.DeleteByPrefix(ctx, PageCacheKey(pageID)+":")
		if err != nil {
			p.log.Warn("page cache invalidation failed", zap.String("page_id", pageID), zap.Error(err))
			return
		}
		p.log.Debug("page cache invalidated", zap.String("page_id", pageID), zap.Int("keys", n))
	}()
}

// Wait blocks until in-flight invalidations finish.
func (p *RedisPageCache) Wait() { p.wg.Wait() }
