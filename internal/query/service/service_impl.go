package service

import (
	"context"
	"math"
	"sort"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/estately/internal/apperr"
	"github.com/smallbiznis/estately/internal/clock"
	"github.com/smallbiznis/estately/internal/config"
	leaddomain "github.com/smallbiznis/estately/internal/lead/domain"
	lookupdomain "github.com/smallbiznis/estately/internal/lookup/domain"
	propertydomain "github.com/smallbiznis/estately/internal/property/domain"
	"github.com/smallbiznis/estately/internal/query/domain"
	tenantdomain "github.com/smallbiznis/estately/internal/tenant/domain"
	"github.com/smallbiznis/estately/pkg/rls"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	entityStatistics = "statistics"
	entityProperty   = "property"

	recentLimit   = 5
	kmPerDegree   = 111.0
	earthRadiusKm = 6371.0
	maxRadiusKm   = 500.0

	// rows fetched per requested result before exact-distance refinement
	nearbyOversample = 4
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Repo    domain.Repository
	Lookups lookupdomain.Service
	Query   *config.QueryConfigHolder `optional:"true"`
	Clock   clock.Clock               `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	repo    domain.Repository
	lookups lookupdomain.Service
	query   *config.QueryConfigHolder
	clock   clock.Clock
}

func New(p Params) domain.Service {
	c := p.Clock
	if c == nil {
		c = clock.New()
	}
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("query.service"),
		repo:    p.Repo,
		lookups: p.Lookups,
		query:   p.Query,
		clock:   c,
	}
}

// Statistics runs every aggregate in one transaction so the rollup is a
// consistent snapshot.
func (s *Service) Statistics(ctx context.Context, tenantID snowflake.ID) (*domain.Statistics, error) {
	if tenantID == 0 {
		return nil, apperr.Validation(entityStatistics, "tenant_id", domain.ErrInvalidTenant)
	}

	var stats domain.Statistics
	err := rls.Transaction(ctx, s.db, tenantID, func(tx *gorm.DB) error {
		totals, err := s.repo.PropertyTotals(ctx, tx, tenantID)
		if err != nil {
			return err
		}
		stats.Properties.Total = totals.Total
		stats.Properties.Public = totals.Public
		stats.Properties.Private = totals.Total - totals.Public

		groups := map[string][]domain.GroupCount{}
		var ids []snowflake.ID
		for _, column := range []string{"status_id", "category_id", "type_id", "region_id"} {
			rows, err := s.repo.GroupProperties(ctx, tx, tenantID, column)
			if err != nil {
				return err
			}
			groups[column] = rows
			for _, row := range rows {
				if row.Key != nil {
					ids = append(ids, *row.Key)
				}
			}
		}
		names, err := s.lookups.Hydrate(ctx, tx, ids)
		if err != nil {
			return err
		}
		stats.Properties.ByStatus = buckets(groups["status_id"], names)
		stats.Properties.ByCategory = buckets(groups["category_id"], names)
		stats.Properties.ByType = buckets(groups["type_id"], names)
		stats.Properties.ByRegion = buckets(groups["region_id"], names)

		if stats.Properties.Value, err = s.repo.PropertyValue(ctx, tx, tenantID); err != nil {
			return err
		}

		if stats.Leads.ByStatus, stats.Leads.Total, err = s.labels(ctx, tx, s.repo.GroupLeads, tenantID, "status"); err != nil {
			return err
		}
		if stats.Leads.BySource, _, err = s.labels(ctx, tx, s.repo.GroupLeads, tenantID, "source"); err != nil {
			return err
		}

		if stats.Team.ByRole, stats.Team.Total, err = s.labels(ctx, tx, s.repo.GroupUsers, tenantID, "role"); err != nil {
			return err
		}
		byStatus, _, err := s.labels(ctx, tx, s.repo.GroupUsers, tenantID, "status")
		if err != nil {
			return err
		}
		stats.Team.Active = byStatus[string(tenantdomain.UserActive)]
		return nil
	})
	if err != nil {
		return nil, apperr.Classify(err, entityStatistics)
	}
	return &stats, nil
}

// DashboardStats is the home screen summary. userID 0 leaves the personal
// counters at zero.
func (s *Service) DashboardStats(ctx context.Context, tenantID, userID snowflake.ID) (*domain.Dashboard, error) {
	if tenantID == 0 {
		return nil, apperr.Validation(entityStatistics, "tenant_id", domain.ErrInvalidTenant)
	}

	now := s.clock.Now()
	dashboard := domain.Dashboard{}
	err := rls.Transaction(ctx, s.db, tenantID, func(tx *gorm.DB) error {
		totals, err := s.repo.PropertyTotals(ctx, tx, tenantID)
		if err != nil {
			return err
		}
		dashboard.Properties = totals.Total
		dashboard.PublicProperties = totals.Public

		leads, total, err := s.labels(ctx, tx, s.repo.GroupLeads, tenantID, "status")
		if err != nil {
			return err
		}
		dashboard.Leads = total
		dashboard.NewLeads = leads[string(leaddomain.StatusNew)]

		if _, dashboard.TeamMembers, err = s.labels(ctx, tx, s.repo.GroupUsers, tenantID, "role"); err != nil {
			return err
		}

		if userID != 0 {
			if dashboard.MyOpenLeads, err = s.repo.CountOpenLeads(ctx, tx, tenantID, userID); err != nil {
				return err
			}
			if dashboard.MyPendingActivities, err = s.repo.CountPendingActivities(ctx, tx, tenantID, userID, nil); err != nil {
				return err
			}
			if dashboard.MyOverdueActivities, err = s.repo.CountPendingActivities(ctx, tx, tenantID, userID, &now); err != nil {
				return err
			}
		}

		if dashboard.RecentProperties, err = s.repo.RecentProperties(ctx, tx, tenantID, recentLimit); err != nil {
			return err
		}
		if err := s.hydrate(ctx, tx, dashboard.RecentProperties); err != nil {
			return err
		}
		dashboard.RecentActivities, err = s.repo.RecentActivities(ctx, tx, tenantID, recentLimit)
		return err
	})
	if err != nil {
		return nil, apperr.Classify(err, entityStatistics)
	}
	return &dashboard, nil
}

// Nearby prefilters with a degree box around the point and keeps listings
// whose great-circle distance is within the radius. The box widens with
// latitude and is clamped at the poles and the antimeridian, so it is only an
// approximation of the circle.
func (s *Service) Nearby(ctx context.Context, req domain.NearbyRequest) ([]domain.NearbyResult, error) {
	if req.Lat < -90 || req.Lat > 90 || math.IsNaN(req.Lat) {
		return nil, apperr.Validation(entityProperty, "lat", domain.ErrInvalidCoordinate)
	}
	if req.Lon < -180 || req.Lon > 180 || math.IsNaN(req.Lon) {
		return nil, apperr.Validation(entityProperty, "lon", domain.ErrInvalidCoordinate)
	}
	cfg := s.query.Get()
	radius := req.RadiusKm
	if radius == 0 {
		radius = cfg.NearbyRadiusKm
	}
	if radius < 0 || radius > maxRadiusKm || math.IsNaN(radius) {
		return nil, apperr.Validation(entityProperty, "radius_km", domain.ErrInvalidRadius)
	}
	limit := req.Limit
	if limit <= 0 || limit > cfg.NearbyLimit {
		limit = cfg.NearbyLimit
	}

	scope := req.TenantID
	if req.PublicOnly {
		scope = 0
	}
	candidates, err := s.repo.WithinBox(ctx, s.db, boundingBox(req.Lat, req.Lon, radius), scope, limit*nearbyOversample)
	if err != nil {
		return nil, apperr.Classify(err, entityProperty)
	}

	results := make([]domain.NearbyResult, 0, len(candidates))
	for _, candidate := range candidates {
		if candidate.Latitude == nil || candidate.Longitude == nil {
			continue
		}
		distance := haversineKm(req.Lat, req.Lon, *candidate.Latitude, *candidate.Longitude)
		if distance > radius {
			continue
		}
		results = append(results, domain.NearbyResult{Property: candidate, DistanceKm: math.Round(distance*1000) / 1000})
	}
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].DistanceKm != results[j].DistanceKm {
			return results[i].DistanceKm < results[j].DistanceKm
		}
		return results[i].Property.ID < results[j].Property.ID
	})
	if len(results) > limit {
		results = results[:limit]
	}

	properties := make([]propertydomain.Property, len(results))
	for i := range results {
		properties[i] = results[i].Property
	}
	if err := s.hydrate(ctx, s.db, properties); err != nil {
		return nil, apperr.Classify(err, entityProperty)
	}
	for i := range results {
		results[i].Property = properties[i]
	}
	return results, nil
}

type groupFunc func(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, column string) ([]domain.LabelCount, error)

// labels folds group rows into a map and returns their total.
func (s *Service) labels(ctx context.Context, tx *gorm.DB, group groupFunc, tenantID snowflake.ID, column string) (map[string]int64, int64, error) {
	rows, err := group(ctx, tx, tenantID, column)
	if err != nil {
		return nil, 0, err
	}
	out := make(map[string]int64, len(rows))
	var total int64
	for _, row := range rows {
		out[row.Key] += row.Count
		total += row.Count
	}
	return out, total, nil
}

func (s *Service) hydrate(ctx context.Context, tx *gorm.DB, properties []propertydomain.Property) error {
	var ids []snowflake.ID
	for _, property := range properties {
		ids = append(ids, property.IDs()...)
	}
	if len(ids) == 0 {
		return nil
	}
	rows, err := s.lookups.Hydrate(ctx, tx, ids)
	if err != nil {
		return err
	}
	for i := range properties {
		properties[i].AttachLookups(rows)
	}
	return nil
}

// buckets names each group after its lookup row. Rows without a value, or
// pointing at a row that no longer resolves, land in Unassigned.
func buckets(rows []domain.GroupCount, names map[snowflake.ID]lookupdomain.LookupValue) []domain.Bucket {
	out := make([]domain.Bucket, 0, len(rows))
	var unassigned int64
	for _, row := range rows {
		if row.Key == nil {
			unassigned += row.Count
			continue
		}
		value, ok := names[*row.Key]
		if !ok {
			unassigned += row.Count
			continue
		}
		id := *row.Key
		out = append(out, domain.Bucket{ID: &id, Name: value.Name, Count: row.Count})
	}
	if unassigned > 0 {
		out = append(out, domain.Bucket{Name: domain.Unassigned, Count: unassigned})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func boundingBox(lat, lon, radiusKm float64) domain.Box {
	dLat := radiusKm / kmPerDegree
	cos := math.Cos(lat * math.Pi / 180)
	box := domain.Box{
		Lat:      lat,
		Lon:      lon,
		LonScale: cos,
		MinLat:   math.Max(lat-dLat, -90),
		MaxLat:   math.Min(lat+dLat, 90),
		MinLon:   -180,
		MaxLon:   180,
	}
	if cos > 1e-6 {
		dLon := radiusKm / (kmPerDegree * cos)
		box.MinLon = math.Max(lon-dLon, -180)
		box.MaxLon = math.Min(lon+dLon, 180)
	}
	return box
}

func haversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	toRad := func(deg float64) float64 { return deg * math.Pi / 180 }
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Min(1, math.Sqrt(a)))
}
