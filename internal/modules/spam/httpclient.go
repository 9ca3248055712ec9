package spam

import (
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
)

const userAgent = "mx-space-moderation/1.0"

// leveledZap adapts zap to retryablehttp. Intermediate failures are retried,
// so they are logged as warnings rather than errors.
type leveledZap struct {
	inner *zap.SugaredLogger
}

func (l leveledZap) Error(msg string, keysAndValues ...interface{}) {
	l.inner.Warnw(msg, keysAndValues...)
}

func (l leveledZap) Warn(msg string, keysAndValues ...interface{}) {
	l.inner.Warnw(msg, keysAndValues...)
}

func (l leveledZap) Info(msg string, keysAndValues ...interface{}) {
	l.inner.Debugw(msg, keysAndValues...)
}

func (l leveledZap) Debug(msg string, keysAndValues ...interface{}) {
	l.inner.Debugw(msg, keysAndValues...)
}

// NewHTTPClient returns the client reputation providers talk through. It
// retries once on connection errors and 5xx, and the whole exchange
// (retries included) is bounded by timeout.
func NewHTTPClient(timeout time.Duration, log *zap.Logger) *http.Client {
	if log == nil {
		log = zap.NewNop()
	}
	rc := retryablehttp.NewClient()
	rc.RetryMax = 1
	rc.RetryWaitMin = 100 * time.Millisecond
	rc.RetryWaitMax = 500 * time.Millisecond
	rc.Logger = retryablehttp.LeveledLogger(leveledZap{log.Named("spam-http").Sugar()})

	client := rc.StandardClient()
	client.Timeout = timeout
	return client
}
