package app

import (
	"context"
	"time"

	"github.com/mx-space/moderation/internal/modules/comment"
	"github.com/mx-space/moderation/internal/modules/spam"
	pkgcron "github.com/mx-space/moderation/internal/pkg/cron"
	"go.uber.org/zap"
)

const (
	jobRefreshMollomServers = "refresh_mollom_servers"
	jobPendingComments      = "pending_comments"
)

// registerCronJobs registers the scheduled background jobs.
func registerCronJobs(sched *pkgcron.Scheduler, registry *spam.Registry, svc *comment.Service, logger *zap.Logger) {
	cronLogger := logger.Named("CronService")

	if p, ok := registry.Lookup(spam.KindMollom); ok {
		if mollom, ok := p.(*spam.Mollom); ok {
			sched.Register(pkgcron.Job{
				Name:        jobRefreshMollomServers,
				Description: "Rediscover the Mollom server list",
				Interval:    24 * time.Hour,
				Fn: func(ctx context.Context) error {
					if ok, err := mollom.Available(ctx); err != nil || !ok {
						return err
					}
					mollom.Servers().Invalidate(ctx)
					servers, err := mollom.Servers().ServerList(ctx)
					if err != nil {
						return err
					}
					cronLogger.Info("mollom servers refreshed", zap.Int("count", len(servers)))
					return nil
				},
			})
		}
	}

	sched.Register(pkgcron.Job{
		Name:        jobPendingComments,
		Description: "Publish the moderation queue size",
		Interval:    time.Minute,
		RunAtStart:  true,
		Fn: func(ctx context.Context) error {
			_, err := svc.RefreshPendingGauge(ctx)
			return err
		},
	})
}
