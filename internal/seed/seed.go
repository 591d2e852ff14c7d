// Package seed loads the static lookup catalog into the registry.
package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	lookupdomain "github.com/smallbiznis/estately/internal/lookup/domain"
	"github.com/smallbiznis/estately/internal/ratelimit"
	tenantdomain "github.com/smallbiznis/estately/internal/tenant/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	lockKey = "estately:seed"
	lockTTL = 5 * time.Minute
)

type Params struct {
	fx.In

	Lookups lookupdomain.Service
	Tenants tenantdomain.Service
	Locker  *ratelimit.Locker `optional:"true"`
	Log     *zap.Logger
}

type Seeder struct {
	lookups lookupdomain.Service
	tenants tenantdomain.Service
	locker  *ratelimit.Locker
	log     *zap.Logger
}

func New(p Params) *Seeder {
	return &Seeder{
		lookups: p.Lookups,
		tenants: p.Tenants,
		locker:  p.Locker,
		log:     p.Log.Named("seed"),
	}
}

// Run applies the shared catalog and then the tenant catalog for every active
// tenant. Replicas racing on startup serialize on a redis lock; the loser
// skips the run.
func (s *Seeder) Run(ctx context.Context) error {
	err := s.locker.WithLock(ctx, lockKey, lockTTL, func(ctx context.Context) error {
		if err := s.Shared(ctx); err != nil {
			return err
		}
		tenants, err := s.tenants.ListActiveTenants(ctx)
		if err != nil {
			return err
		}
		for _, t := range tenants {
			if err := s.Tenant(ctx, t.ID); err != nil {
				return err
			}
		}
		s.log.Info("lookup catalog seeded", zap.Int("tenants", len(tenants)))
		return nil
	})
	if errors.Is(err, ratelimit.ErrLocked) {
		s.log.Info("seed already running elsewhere, skipping")
		return nil
	}
	return err
}

func (s *Seeder) Shared(ctx context.Context) error {
	return s.apply(ctx, 0, sharedCatalog)
}

// Tenant copies the per-tenant catalog into tenantID. Existing rows keep their
// id and are refreshed in place.
func (s *Seeder) Tenant(ctx context.Context, tenantID snowflake.ID) error {
	return s.apply(ctx, tenantID, tenantCatalog)
}

func (s *Seeder) apply(ctx context.Context, tenantID snowflake.ID, groups []group) error {
	for _, g := range groups {
		for i, e := range g.Entries {
			_, err := s.lookups.Upsert(ctx, lookupdomain.UpsertRequest{
				Kind:      g.Kind,
				TenantID:  tenantID,
				Name:      e.Name,
				Color:     e.Color,
				Code:      e.Code,
				Symbol:    e.Symbol,
				SortOrder: i + 1,
			})
			if err != nil {
				s.log.Error("seed lookup failed",
					zap.String("kind", string(g.Kind)),
					zap.String("name", e.Name),
					zap.String("tenant_id", tenantID.String()),
					zap.Error(err),
				)
				return err
			}
		}
	}
	return nil
}
