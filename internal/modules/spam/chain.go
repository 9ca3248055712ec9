package spam

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const defaultCheckTimeout = 5 * time.Second

// Decision is the chain outcome. Provider is only set when a provider was
// decisive. SessionID is the decisive provider's session, or on an
// indecisive outcome the last session a provider reported, e.g. a Mollom
// "unsure" answer.
type Decision struct {
	Verdict   Verdict
	Provider  Kind
	SessionID string
}

func (d Decision) Decisive() bool { return d.Verdict != Indecisive }

// IsSpam is false unless a provider positively said spam: an all-indecisive
// chain fails open.
func (d Decision) IsSpam() bool { return d.Verdict == Spam }

func (d Decision) IsHam() bool { return d.Verdict == Ham }

// Chain evaluates providers in order and stops at the first decisive verdict.
// A provider that errors, panics, times out or fails its gate counts as
// Indecisive; nothing a provider does can abort the chain.
type Chain struct {
	providers []Provider
	timeout   time.Duration
	log       *zap.Logger
}

// NewChain keeps the given order. timeout bounds each provider call.
func NewChain(providers []Provider, timeout time.Duration, log *zap.Logger) *Chain {
	if timeout <= 0 {
		timeout = defaultCheckTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Chain{providers: providers, timeout: timeout, log: log}
}

// Providers returns the evaluation order.
func (c *Chain) Providers() []Provider {
	out := make([]Provider, len(c.providers))
	copy(out, c.providers)
	return out
}

func (c *Chain) Evaluate(ctx context.Context, ev Evidence) Decision {
	var sessionID string
	for _, p := range c.providers {
		if ctx.Err() != nil {
			c.log.Warn("spam check abandoned", zap.Error(ctx.Err()))
			break
		}
		res := c.consult(ctx, p, ev)
		if res.Verdict != Indecisive {
			c.log.Debug("spam check decided",
				zap.Stringer("provider", p.Kind()),
				zap.Stringer("verdict", res.Verdict),
			)
			return Decision{Verdict: res.Verdict, Provider: p.Kind(), SessionID: res.SessionID}
		}
		if res.SessionID != "" {
			sessionID = res.SessionID
		}
	}
	return Decision{Verdict: Indecisive, SessionID: sessionID}
}

func (c *Chain) consult(ctx context.Context, p Provider, ev Evidence) (res Result) {
	name := p.Kind().String()
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	defer func() {
		spamCheckDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
		if r := recover(); r != nil {
			c.log.Error("spam check provider panicked", zap.String("provider", name), zap.Any("panic", r))
			spamChecks.WithLabelValues(name, "error").Inc()
			res = Result{Verdict: Indecisive}
		}
	}()

	ok, err := p.Available(ctx)
	if err != nil {
		c.fail(name, fmt.Errorf("gate: %w", err))
		return Result{Verdict: Indecisive}
	}
	if !ok {
		spamChecks.WithLabelValues(name, "skipped").Inc()
		return Result{Verdict: Indecisive}
	}

	res, err = p.Check(ctx, ev)
	if err != nil {
		c.fail(name, err)
		return Result{Verdict: Indecisive}
	}
	spamChecks.WithLabelValues(name, res.Verdict.String()).Inc()
	return res
}

func (c *Chain) fail(provider string, err error) {
	spamChecks.WithLabelValues(provider, "error").Inc()
	c.log.Warn("spam check provider failed", zap.String("provider", provider), zap.Error(err))
}
