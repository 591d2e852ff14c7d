package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/estately/internal/apperr"
	"github.com/smallbiznis/estately/internal/authorization"
	"github.com/smallbiznis/estately/internal/clock"
	"github.com/smallbiznis/estately/internal/config"
	lookupdomain "github.com/smallbiznis/estately/internal/lookup/domain"
	"github.com/smallbiznis/estately/internal/observability/metrics"
	"github.com/smallbiznis/estately/internal/property/domain"
	"github.com/smallbiznis/estately/pkg/db"
	"github.com/smallbiznis/estately/pkg/rls"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	entityProperty = "property"

	referencePrefix = "PROP-"
	maxTitleLength  = 255
	maxBulkSize     = 500
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Repo    domain.Repository
	Lookups lookupdomain.Service
	Authz   authorization.Service
	Query   *config.QueryConfigHolder `optional:"true"`
	Metrics *metrics.Metrics          `optional:"true"`
	Clock   clock.Clock               `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	repo    domain.Repository
	lookups lookupdomain.Service
	authz   authorization.Service
	query   *config.QueryConfigHolder
	metrics *metrics.Metrics
	clock   clock.Clock
}

func New(p Params) domain.Service {
	c := p.Clock
	if c == nil {
		c = clock.New()
	}
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("property.service"),
		genID:   p.GenID,
		repo:    p.Repo,
		lookups: p.Lookups,
		authz:   p.Authz,
		query:   p.Query,
		metrics: p.Metrics,
		clock:   c,
	}
}

func (s *Service) Create(ctx context.Context, tenantID, createdByID snowflake.ID, fields domain.Fields) (*domain.Property, error) {
	if tenantID == 0 {
		return nil, apperr.Validation(entityProperty, "tenant_id", domain.ErrInvalidTenant)
	}
	property, err := s.build(tenantID, createdByID, fields)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, tenantID, createdByID, authorization.ActionPropertyCreate); err != nil {
		return nil, err
	}

	err = rls.Transaction(ctx, s.db, tenantID, func(tx *gorm.DB) error {
		rows, err := s.lookups.Resolve(ctx, tx, entityProperty, tenantID, property.References())
		if err != nil {
			return err
		}
		if err := s.repo.Insert(ctx, tx, property); err != nil {
			return err
		}
		property.AttachLookups(rows)
		return nil
	})
	if err != nil {
		return nil, apperr.Classify(err, entityProperty)
	}

	s.metrics.RecordPropertyCreated(ctx, "single", 1)
	s.log.Debug("property created",
		zap.String("tenant_id", tenantID.String()),
		zap.String("property_id", property.ID.String()),
	)
	return property, nil
}

// BulkCreate inserts every listing or none.
func (s *Service) BulkCreate(ctx context.Context, tenantID, createdByID snowflake.ID, items []domain.Fields) ([]domain.Property, error) {
	if tenantID == 0 {
		return nil, apperr.Validation(entityProperty, "tenant_id", domain.ErrInvalidTenant)
	}
	if len(items) == 0 {
		return nil, apperr.Validation(entityProperty, "items", domain.ErrEmptyBatch)
	}
	if len(items) > maxBulkSize {
		return nil, apperr.Validation(entityProperty, "items", domain.ErrBatchTooLarge)
	}

	properties := make([]*domain.Property, 0, len(items))
	for i, fields := range items {
		property, err := s.build(tenantID, createdByID, fields)
		if err != nil {
			return nil, atIndex(err, i)
		}
		properties = append(properties, property)
	}
	if err := s.authorize(ctx, tenantID, createdByID, authorization.ActionPropertyImport); err != nil {
		return nil, err
	}

	err := rls.Transaction(ctx, s.db, tenantID, func(tx *gorm.DB) error {
		rows := map[snowflake.ID]lookupdomain.LookupValue{}
		for i, property := range properties {
			resolved, err := s.lookups.Resolve(ctx, tx, entityProperty, tenantID, property.References())
			if err != nil {
				return atIndex(err, i)
			}
			for id, row := range resolved {
				rows[id] = row
			}
		}
		if err := s.repo.InsertBatch(ctx, tx, properties); err != nil {
			return err
		}
		for _, property := range properties {
			property.AttachLookups(rows)
		}
		return nil
	})
	if err != nil {
		return nil, apperr.Classify(err, entityProperty)
	}

	s.metrics.RecordPropertyCreated(ctx, "bulk", len(properties))
	out := make([]domain.Property, 0, len(properties))
	for _, property := range properties {
		out = append(out, *property)
	}
	return out, nil
}

func (s *Service) Update(ctx context.Context, propertyID, tenantID, actorID snowflake.ID, patch domain.Patch) (*domain.Property, error) {
	if tenantID == 0 {
		return nil, apperr.Validation(entityProperty, "tenant_id", domain.ErrInvalidTenant)
	}
	if _, err := s.loadForWrite(ctx, propertyID, tenantID); err != nil {
		return nil, err
	}
	values, err := s.patchValues(patch)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, tenantID, actorID, authorization.ActionPropertyUpdate); err != nil {
		return nil, err
	}

	var result *domain.Property
	err = rls.Transaction(ctx, s.db, tenantID, func(tx *gorm.DB) error {
		var changed []lookupdomain.Reference
		for _, ref := range patch.Refs.References() {
			if ref.ID != nil {
				changed = append(changed, ref)
			}
		}
		if _, err := s.lookups.Resolve(ctx, tx, entityProperty, tenantID, changed); err != nil {
			return err
		}

		values["updated_by"] = actorID
		values["updated_at"] = s.clock.Now()
		affected, err := s.repo.Update(ctx, tx, tenantID, propertyID, values)
		if err != nil {
			return err
		}
		if affected == 0 {
			return apperr.NotFound(entityProperty)
		}

		result, err = s.reload(ctx, tx, propertyID)
		return err
	})
	if err != nil {
		return nil, apperr.Classify(err, entityProperty)
	}
	return result, nil
}

func (s *Service) Get(ctx context.Context, propertyID, callerTenantID snowflake.ID) (*domain.Property, error) {
	property, err := s.repo.FindByID(ctx, s.db, propertyID)
	if err != nil {
		return nil, apperr.Classify(err, entityProperty)
	}
	if property == nil || !property.VisibleTo(callerTenantID) {
		return nil, apperr.NotFound(entityProperty)
	}

	rows, err := s.lookups.Hydrate(ctx, s.db, property.IDs())
	if err != nil {
		return nil, err
	}
	property.AttachLookups(rows)

	if property.TenantID != callerTenantID {
		if err := s.repo.IncrementViews(ctx, s.db, property.ID); err != nil {
			s.log.Warn("failed to count property view",
				zap.String("property_id", property.ID.String()),
				zap.Error(err),
			)
		}
	}
	return property, nil
}

// Search lists listings visible to callerTenantID. Authenticated callers see
// their own rows, plus other tenants' public rows when IncludePublic is set.
// Anonymous callers see public rows only.
func (s *Service) Search(ctx context.Context, filter domain.SearchFilter, callerTenantID snowflake.ID) (*domain.SearchResult, error) {
	if err := validateFilter(filter); err != nil {
		return nil, err
	}
	filter.Limit = s.query.Get().PageSize(filter.Limit)

	q := domain.SearchQuery{
		SearchFilter:     filter,
		OwnerTenantID:    callerTenantID,
		PublicFromOthers: callerTenantID != 0 && filter.IncludePublic,
	}

	total, err := s.repo.Count(ctx, s.db, q)
	if err != nil {
		return nil, apperr.Classify(err, entityProperty)
	}
	items, err := s.repo.Search(ctx, s.db, q)
	if err != nil {
		return nil, apperr.Classify(err, entityProperty)
	}

	var ids []snowflake.ID
	for _, item := range items {
		ids = append(ids, item.IDs()...)
	}
	rows, err := s.lookups.Hydrate(ctx, s.db, ids)
	if err != nil {
		return nil, err
	}

	result := &domain.SearchResult{
		Items:  make([]domain.Property, 0, len(items)),
		Total:  total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}
	for _, item := range items {
		item.AttachLookups(rows)
		result.Items = append(result.Items, *item)
	}
	return result, nil
}

func (s *Service) SetVisibility(ctx context.Context, propertyID, tenantID, actorID snowflake.ID, public bool) (*domain.Property, error) {
	if tenantID == 0 {
		return nil, apperr.Validation(entityProperty, "tenant_id", domain.ErrInvalidTenant)
	}
	if _, err := s.loadForWrite(ctx, propertyID, tenantID); err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, tenantID, actorID, authorization.ActionPropertyPublish); err != nil {
		return nil, err
	}

	var result *domain.Property
	err := rls.Transaction(ctx, s.db, tenantID, func(tx *gorm.DB) error {
		affected, err := s.repo.Update(ctx, tx, tenantID, propertyID, map[string]any{
			"is_public":  public,
			"updated_by": actorID,
			"updated_at": s.clock.Now(),
		})
		if err != nil {
			return err
		}
		if affected == 0 {
			return apperr.NotFound(entityProperty)
		}
		result, err = s.reload(ctx, tx, propertyID)
		return err
	})
	if err != nil {
		return nil, apperr.Classify(err, entityProperty)
	}
	return result, nil
}

// Delete deactivates the listing. Rows are never purged.
func (s *Service) Delete(ctx context.Context, propertyID, tenantID, actorID snowflake.ID) error {
	if tenantID == 0 {
		return apperr.Validation(entityProperty, "tenant_id", domain.ErrInvalidTenant)
	}
	if _, err := s.loadForWrite(ctx, propertyID, tenantID); err != nil {
		return err
	}
	if err := s.authorize(ctx, tenantID, actorID, authorization.ActionPropertyDelete); err != nil {
		return err
	}

	err := rls.Transaction(ctx, s.db, tenantID, func(tx *gorm.DB) error {
		affected, err := s.repo.Update(ctx, tx, tenantID, propertyID, map[string]any{
			"is_active":  false,
			"updated_by": actorID,
			"updated_at": s.clock.Now(),
		})
		if err != nil {
			return err
		}
		if affected == 0 {
			return apperr.NotFound(entityProperty)
		}
		return nil
	})
	return apperr.Classify(err, entityProperty)
}

func (s *Service) RecordInquiry(ctx context.Context, tx *gorm.DB, tenantID, propertyID snowflake.ID) error {
	if tx == nil {
		tx = s.db
	}
	affected, err := s.repo.IncrementInquiries(ctx, tx, tenantID, propertyID)
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrUnknownProperty
	}
	return nil
}

// loadForWrite reports Forbidden for another tenant's public listing and
// NotFound for anything the tenant cannot see.
func (s *Service) loadForWrite(ctx context.Context, propertyID, tenantID snowflake.ID) (*domain.Property, error) {
	property, err := s.repo.FindByID(ctx, s.db, propertyID)
	if err != nil {
		return nil, apperr.Classify(err, entityProperty)
	}
	if property == nil || !property.VisibleTo(tenantID) {
		return nil, apperr.NotFound(entityProperty)
	}
	if property.TenantID != tenantID {
		return nil, apperr.Forbidden(entityProperty, errors.New("owned by another tenant"))
	}
	return property, nil
}

func (s *Service) reload(ctx context.Context, tx *gorm.DB, propertyID snowflake.ID) (*domain.Property, error) {
	property, err := s.repo.FindByID(ctx, tx, propertyID)
	if err != nil {
		return nil, err
	}
	if property == nil {
		return nil, apperr.NotFound(entityProperty)
	}
	rows, err := s.lookups.Hydrate(ctx, tx, property.IDs())
	if err != nil {
		return nil, err
	}
	property.AttachLookups(rows)
	return property, nil
}

func (s *Service) build(tenantID, createdByID snowflake.ID, fields domain.Fields) (*domain.Property, error) {
	title := strings.TrimSpace(fields.Title)
	if title == "" || len(title) > maxTitleLength {
		return nil, apperr.Validation(entityProperty, "title", domain.ErrInvalidTitle)
	}
	if err := validateCoordinates(fields.Latitude, fields.Longitude); err != nil {
		return nil, err
	}
	if err := validateMeasures(fields.Area, fields.LandArea, fields.Bedrooms, fields.Bathrooms, fields.TotalFloors); err != nil {
		return nil, err
	}
	prices := map[string]*decimal.Decimal{
		"sale_price":     fields.SalePrice,
		"rental_monthly": fields.RentalMonthly,
		"rental_yearly":  fields.RentalYearly,
	}
	for field, price := range prices {
		if err := validatePrice(field, price); err != nil {
			return nil, err
		}
	}

	now := s.clock.Now()
	reference := referencePrefix + ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String()

	return &domain.Property{
		ID:              s.genID.Generate(),
		TenantID:        tenantID,
		ReferenceNumber: reference,
		Title:           title,
		Description:     strings.TrimSpace(fields.Description),
		LookupRefs:      fields.LookupRefs,
		Location:        strings.TrimSpace(fields.Location),
		Latitude:        fields.Latitude,
		Longitude:       fields.Longitude,
		Area:            fields.Area,
		LandArea:        fields.LandArea,
		Bedrooms:        fields.Bedrooms,
		Bathrooms:       fields.Bathrooms,
		Floor:           fields.Floor,
		TotalFloors:     fields.TotalFloors,
		HasGarden:       fields.HasGarden,
		HasPool:         fields.HasPool,
		HasParking:      fields.HasParking,
		HasElevator:     fields.HasElevator,
		IsFurnished:     fields.IsFurnished,
		SalePrice:       db.NewMoney(fields.SalePrice),
		RentalMonthly:   db.NewMoney(fields.RentalMonthly),
		RentalYearly:    db.NewMoney(fields.RentalYearly),
		IsPublic:        fields.IsPublic,
		IsActive:        true,
		IsFeatured:      fields.IsFeatured,
		CreatedBy:       createdByID,
		UpdatedBy:       createdByID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

func (s *Service) patchValues(patch domain.Patch) (map[string]any, error) {
	values := map[string]any{}

	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" || len(title) > maxTitleLength {
			return nil, apperr.Validation(entityProperty, "title", domain.ErrInvalidTitle)
		}
		values["title"] = title
	}
	if patch.Description != nil {
		values["description"] = strings.TrimSpace(*patch.Description)
	}
	if patch.Location != nil {
		values["location"] = strings.TrimSpace(*patch.Location)
	}

	var cleared domain.LookupRefs
	if field, ok := cleared.Clear(patch.ClearRefs); !ok {
		return nil, apperr.Validation(entityProperty, field, domain.ErrInvalidField)
	}
	for _, field := range patch.ClearRefs {
		values[field] = nil
	}
	for field, id := range patch.Refs.Changes() {
		values[field] = id
	}

	if patch.Latitude != nil || patch.Longitude != nil {
		if err := validateCoordinates(patch.Latitude, patch.Longitude); err != nil {
			return nil, err
		}
		values["latitude"] = *patch.Latitude
		values["longitude"] = *patch.Longitude
	}
	if err := validateMeasures(patch.Area, patch.LandArea, patch.Bedrooms, patch.Bathrooms, patch.TotalFloors); err != nil {
		return nil, err
	}
	setIf(values, "area", patch.Area)
	setIf(values, "land_area", patch.LandArea)
	setIf(values, "bedrooms", patch.Bedrooms)
	setIf(values, "bathrooms", patch.Bathrooms)
	setIf(values, "floor", patch.Floor)
	setIf(values, "total_floors", patch.TotalFloors)
	setIf(values, "has_garden", patch.HasGarden)
	setIf(values, "has_pool", patch.HasPool)
	setIf(values, "has_parking", patch.HasParking)
	setIf(values, "has_elevator", patch.HasElevator)
	setIf(values, "is_furnished", patch.IsFurnished)
	setIf(values, "is_featured", patch.IsFeatured)

	prices := map[string]*decimal.Decimal{
		"sale_price":     patch.SalePrice,
		"rental_monthly": patch.RentalMonthly,
		"rental_yearly":  patch.RentalYearly,
	}
	for field, price := range prices {
		if price == nil {
			continue
		}
		if err := validatePrice(field, price); err != nil {
			return nil, err
		}
		values[field] = db.NewMoney(price)
	}

	return values, nil
}

// authorize skips the policy check for internal callers (actorID 0).
func (s *Service) authorize(ctx context.Context, tenantID, actorID snowflake.ID, action string) error {
	if actorID == 0 {
		return nil
	}
	if err := s.authz.Authorize(ctx, tenantID, actorID, authorization.ObjectProperty, action); err != nil {
		if errors.Is(err, authorization.ErrForbidden) || errors.Is(err, authorization.ErrInactiveUser) {
			return apperr.Forbidden(entityProperty, err)
		}
		return apperr.Classify(err, entityProperty)
	}
	return nil
}

func validateFilter(filter domain.SearchFilter) error {
	if filter.Offset < 0 {
		return apperr.Validation(entityProperty, "offset", domain.ErrInvalidRange)
	}
	if filter.MinPrice != nil && filter.MinPrice.IsNegative() {
		return apperr.Validation(entityProperty, "min_price", domain.ErrInvalidPrice)
	}
	if filter.MinPrice != nil && filter.MaxPrice != nil && filter.MinPrice.GreaterThan(*filter.MaxPrice) {
		return apperr.Validation(entityProperty, "max_price", domain.ErrInvalidRange)
	}
	if filter.MinArea != nil && filter.MaxArea != nil && *filter.MinArea > *filter.MaxArea {
		return apperr.Validation(entityProperty, "max_area", domain.ErrInvalidRange)
	}
	if b := filter.Bounds; b != nil {
		if b.MinLat > b.MaxLat || b.MinLon > b.MaxLon {
			return apperr.Validation(entityProperty, "bounds", domain.ErrInvalidRange)
		}
	}
	return nil
}

func validateCoordinates(lat, lon *float64) error {
	if lat == nil && lon == nil {
		return nil
	}
	if lat == nil || lon == nil {
		return apperr.Validation(entityProperty, "latitude", domain.ErrInvalidCoordinate)
	}
	if *lat < -90 || *lat > 90 {
		return apperr.Validation(entityProperty, "latitude", domain.ErrInvalidCoordinate)
	}
	if *lon < -180 || *lon > 180 {
		return apperr.Validation(entityProperty, "longitude", domain.ErrInvalidCoordinate)
	}
	return nil
}

func validateMeasures(area, landArea *float64, bedrooms, bathrooms, totalFloors *int) error {
	if area != nil && *area < 0 {
		return apperr.Validation(entityProperty, "area", domain.ErrInvalidArea)
	}
	if landArea != nil && *landArea < 0 {
		return apperr.Validation(entityProperty, "land_area", domain.ErrInvalidArea)
	}
	counts := []struct {
		field string
		value *int
	}{
		{"bedrooms", bedrooms},
		{"bathrooms", bathrooms},
		{"total_floors", totalFloors},
	}
	for _, c := range counts {
		if c.value != nil && *c.value < 0 {
			return apperr.Validation(entityProperty, c.field, domain.ErrInvalidCount)
		}
	}
	return nil
}

func validatePrice(field string, price *decimal.Decimal) error {
	if price == nil {
		return nil
	}
	if price.IsNegative() {
		return apperr.Validation(entityProperty, field, domain.ErrInvalidPrice)
	}
	return nil
}

func setIf[T any](values map[string]any, column string, value *T) {
	if value != nil {
		values[column] = *value
	}
}

// atIndex prefixes the failing field with the batch position.
func atIndex(err error, index int) error {
	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		return err
	}
	tagged := *appErr
	if tagged.Field != "" {
		tagged.Field = fmt.Sprintf("items[%d].%s", index, tagged.Field)
	} else {
		tagged.Field = fmt.Sprintf("items[%d]", index)
	}
	return &tagged
}
