package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/mx-space/moderation/internal/config"
	"github.com/mx-space/moderation/internal/database"
	"github.com/mx-space/moderation/internal/middleware"
	"github.com/mx-space/moderation/internal/modules/comment"
	"github.com/mx-space/moderation/internal/modules/spam"
	"github.com/mx-space/moderation/internal/pkg/bark"
	pkgcron "github.com/mx-space/moderation/internal/pkg/cron"
	"github.com/mx-space/moderation/internal/pkg/mail"
	pkgredis "github.com/mx-space/moderation/internal/pkg/redis"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// serverListTTL bounds how long a shared Mollom server list lives in Redis.
const serverListTTL = 24 * time.Hour

// App holds all application dependencies.
type App struct {
	cfg       *config.AppConfig
	router    *gin.Engine
	db        *gorm.DB
	redis     *pkgredis.Client
	logger    *zap.Logger
	cancel    context.CancelFunc
	sched     *pkgcron.Scheduler
	comments  *comment.Service
	bark      *bark.Service
	pageCache *comment.RedisPageCache
	startedAt time.Time
}

// New initializes the application: config → DB → Redis → moderation → routes.
func New(logger *zap.Logger, cfg *config.AppConfig) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}

	db, err := database.Connect(cfg, true)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}

	var rc *pkgredis.Client
	if cfg.Redis.Enable {
		rc, err = pkgredis.Connect(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
	} else {
		logger.Info("redis disabled, rate limiting and response cache are off")
	}

	if cfg.IsDev() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	return build(logger, cfg, db, rc), nil
}

// build wires the moderation engine and the HTTP surface over already open
// stores. rc may be nil.
func build(logger *zap.Logger, cfg *config.AppConfig, db *gorm.DB, rc *pkgredis.Client) *App {
	if logger == nil {
		logger = zap.NewNop()
	}

	var store spam.Store = spam.NewMemoryStore()
	if rc != nil {
		store = spam.NewRedisStore(rc, serverListTTL)
	}
	registry := spam.Build(cfg.Comments, store, logger.Named("SpamProvider"))
	chain := spam.NewChain(registry.Ordered(), cfg.Comments.ProviderTimeout, logger.Named("SpamChain"))

	var feedback spam.FeedbackSender
	if p, ok := registry.Lookup(spam.KindMollom); ok {
		feedback, _ = p.(spam.FeedbackSender)
	}

	repo := comment.NewGormRepository(db)
	moderator := comment.NewModerator(repo, chain, feedback, cfg.Comments, logger.Named("Moderator"))

	push := bark.New(cfg.Bark)
	opts := []comment.Option{
		comment.WithNotifier(comment.Notifiers{
			mail.NewCommentNotifier(mail.New(mail.BuildMailConfig(cfg.Mail)), cfg.Comments.NotifyTo),
			push,
		}),
	}
	var pageCache *comment.RedisPageCache
	if rc != nil {
		pageCache = comment.NewRedisPageCache(rc, logger.Named("PageCache"))
		opts = append(opts, comment.WithPageCache(pageCache))
	}
	svc := comment.NewService(repo, moderator, cfg.Comments, logger.Named("CommentService"), opts...)

	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(logger))
	router.Use(cors.New(corsConfig(cfg)))

	ctx, cancel := context.WithCancel(context.Background())
	sched := pkgcron.New(logger.Named("CronService"))
	registerCronJobs(sched, registry, svc, logger)
	go sched.Start(ctx)

	a := &App{
		cfg:       cfg,
		router:    router,
		db:        db,
		redis:     rc,
		logger:    logger,
		cancel:    cancel,
		sched:     sched,
		comments:  svc,
		bark:      push,
		pageCache: pageCache,
		startedAt: time.Now(),
	}
	a.registerRoutes(comment.NewHandler(svc))
	return a
}

// Addr returns the listen address.
func (a *App) Addr() string { return fmt.Sprintf(":%d", a.cfg.Port) }

// Router returns the HTTP handler.
func (a *App) Router() http.Handler { return a.router }

// Shutdown stops background jobs, waits for pending cache invalidations and
// closes the stores.
func (a *App) Shutdown() {
	a.cancel()
	if a.pageCache != nil {
		a.pageCache.Wait()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("close redis", zap.Error(err))
		}
	}
	if sqlDB, err := a.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
