package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/smallbiznis/estately/internal/config"
	"github.com/smallbiznis/estately/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const keyPublicTool = "estately:public:%s"

type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

type PublicParams struct {
	fx.In

	Bucket  Bucket                    `optional:"true"`
	Query   *config.QueryConfigHolder `optional:"true"`
	Metrics *metrics.Metrics          `optional:"true"`
	Log     *zap.Logger
}

// PublicToolLimiter throttles anonymous tool calls per client address.
// Without a bucket every call is allowed.
type PublicToolLimiter struct {
	bucket  Bucket
	query   *config.QueryConfigHolder
	metrics *metrics.Metrics
	log     *zap.Logger
}

func NewPublicToolLimiter(p PublicParams) *PublicToolLimiter {
	log := p.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &PublicToolLimiter{
		bucket:  p.Bucket,
		query:   p.Query,
		metrics: p.Metrics,
		log:     log.Named("ratelimit.public"),
	}
}

func (l *PublicToolLimiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

// Allow takes a token for client. Store errors fail open so an unavailable
// redis never takes the public catalog down with it.
func (l *PublicToolLimiter) Allow(ctx context.Context, client, tool string) Decision {
	if !l.Enabled() {
		return Decision{Allowed: true}
	}
	cfg := l.query.Get()
	if cfg.PublicRate <= 0 || cfg.PublicBurst <= 0 {
		return Decision{Allowed: true}
	}

	client = strings.TrimSpace(client)
	if client == "" {
		client = "unknown"
	}
	res, err := l.bucket.Allow(ctx, fmt.Sprintf(keyPublicTool, client), cfg.PublicRate, cfg.PublicBurst)
	if err != nil {
		l.log.Warn("rate limit check failed, allowing call",
			zap.String("tool", tool),
			zap.Error(err),
		)
		l.metrics.RecordRateLimitAllowed(ctx, tool)
		return Decision{Allowed: true, Limit: cfg.PublicBurst}
	}

	decision := Decision{
		Allowed:    res.Allowed,
		Limit:      res.Limit,
		Remaining:  res.Remaining,
		RetryAfter: res.RetryAfter,
	}
	if decision.Allowed {
		l.metrics.RecordRateLimitAllowed(ctx, tool)
	} else {
		l.metrics.RecordRateLimitDenied(ctx, tool, "public_bucket_empty")
	}
	return decision
}
