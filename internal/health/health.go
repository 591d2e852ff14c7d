// Package health tracks whether the store is reachable.
package health

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/smallbiznis/estately/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Status string

const (
	StatusStarting  Status = "starting"
	StatusHealthy   Status = "ok"
	StatusUnhealthy Status = "unhealthy"
)

const (
	defaultInterval = 15 * time.Second
	pingTimeout     = 3 * time.Second
)

type Params struct {
	fx.In

	DB  *gorm.DB
	Log *zap.Logger
}

// Checker pings the pool on an interval and keeps the last outcome.
type Checker struct {
	db       *gorm.DB
	log      *zap.Logger
	interval time.Duration
	status   atomic.Value
	lastErr  atomic.Value
}

func New(p Params) *Checker {
	c := &Checker{
		db:       p.DB,
		log:      p.Log.Named("health"),
		interval: defaultInterval,
	}
	c.status.Store(StatusStarting)
	return c
}

func (c *Checker) Status() Status {
	return c.status.Load().(Status)
}

// LastError is the message of the most recent failed ping, empty when healthy.
func (c *Checker) LastError() string {
	msg, _ := c.lastErr.Load().(string)
	return msg
}

// Check pings once and records the result.
func (c *Checker) Check(ctx context.Context) Status {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	previous := c.Status()
	if err := db.Ping(ctx, c.db); err != nil {
		c.status.Store(StatusUnhealthy)
		c.lastErr.Store(err.Error())
		if previous != StatusUnhealthy {
			c.log.Warn("database unreachable", zap.Error(err))
		}
		return StatusUnhealthy
	}
	c.status.Store(StatusHealthy)
	c.lastErr.Store("")
	if previous == StatusUnhealthy {
		c.log.Info("database reachable again")
	}
	return StatusHealthy
}

// RunForever re-checks until ctx is cancelled.
func (c *Checker) RunForever(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		if ctx.Err() != nil {
			return
		}
		c.Check(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
