package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/estately/internal/property/domain"
	"gorm.io/gorm"
)

const insertBatchSize = 100

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, property *domain.Property) error {
	return db.WithContext(ctx).Create(property).Error
}

func (r *repo) InsertBatch(ctx context.Context, db *gorm.DB, properties []*domain.Property) error {
	if len(properties) == 0 {
		return nil
	}
	return db.WithContext(ctx).CreateInBatches(properties, insertBatchSize).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Property, error) {
	var property domain.Property
	err := db.WithContext(ctx).
		Where("id = ?", id).
		Take(&property).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &property, nil
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID, values map[string]any) (int64, error) {
	result := db.WithContext(ctx).
		Model(&domain.Property{}).
		Where("tenant_id = ? AND id = ? AND is_active = ?", tenantID, id, true).
		Updates(values)
	return result.RowsAffected, result.Error
}

func (r *repo) IncrementInquiries(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID) (int64, error) {
	result := db.WithContext(ctx).
		Model(&domain.Property{}).
		Where("tenant_id = ? AND id = ? AND is_active = ?", tenantID, id, true).
		UpdateColumn("inquiries_count", gorm.Expr("inquiries_count + 1"))
	return result.RowsAffected, result.Error
}

func (r *repo) IncrementViews(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	return db.WithContext(ctx).
		Model(&domain.Property{}).
		Where("id = ?", id).
		UpdateColumn("views_count", gorm.Expr("views_count + 1")).Error
}

func (r *repo) Search(ctx context.Context, db *gorm.DB, q domain.SearchQuery) ([]*domain.Property, error) {
	var properties []*domain.Property
	stmt := applyFilter(db.WithContext(ctx).Model(&domain.Property{}), q).
		Order("created_at desc").
		Order("id asc")
	if q.Limit > 0 {
		stmt = stmt.Limit(q.Limit)
	}
	if q.Offset > 0 {
		stmt = stmt.Offset(q.Offset)
	}
	if err := stmt.Find(&properties).Error; err != nil {
		return nil, err
	}
	return properties, nil
}

func (r *repo) Count(ctx context.Context, db *gorm.DB, q domain.SearchQuery) (int64, error) {
	var count int64
	err := applyFilter(db.WithContext(ctx).Model(&domain.Property{}), q).Count(&count).Error
	return count, err
}

func applyFilter(stmt *gorm.DB, q domain.SearchQuery) *gorm.DB {
	stmt = stmt.Where("is_active = ?", true)

	switch {
	case q.OwnerTenantID == 0:
		stmt = stmt.Where("is_public = ?", true)
	case q.PublicFromOthers:
		stmt = stmt.Where("(tenant_id = ? OR is_public = ?)", q.OwnerTenantID, true)
	default:
		stmt = stmt.Where("tenant_id = ?", q.OwnerTenantID)
	}

	if q.IsPublic != nil {
		stmt = stmt.Where("is_public = ?", *q.IsPublic)
	}
	if q.IsFeatured != nil {
		stmt = stmt.Where("is_featured = ?", *q.IsFeatured)
	}

	if q.MinPrice != nil || q.MaxPrice != nil {
		sale, rent := priceRange("sale_price", q), priceRange("rental_monthly", q)
		stmt = stmt.Where("(("+sale.clause+") OR ("+rent.clause+"))", append(sale.args, rent.args...)...)
	}
	if q.MinArea != nil {
		stmt = stmt.Where("area >= ?", *q.MinArea)
	}
	if q.MaxArea != nil {
		stmt = stmt.Where("area <= ?", *q.MaxArea)
	}
	if q.Bedrooms != nil {
		stmt = stmt.Where("bedrooms >= ?", *q.Bedrooms)
	}
	if q.Bathrooms != nil {
		stmt = stmt.Where("bathrooms >= ?", *q.Bathrooms)
	}

	if q.CategoryID != nil {
		stmt = stmt.Where("category_id = ?", *q.CategoryID)
	}
	if q.TypeID != nil {
		stmt = stmt.Where("type_id = ?", *q.TypeID)
	}
	if q.RegionID != nil {
		stmt = stmt.Where("region_id = ?", *q.RegionID)
	}
	if q.StatusID != nil {
		stmt = stmt.Where("status_id = ?", *q.StatusID)
	}
	if q.ListingPurposeID != nil {
		stmt = stmt.Where("listing_purpose_id = ?", *q.ListingPurposeID)
	}

	if text := strings.ToLower(strings.TrimSpace(q.Query)); text != "" {
		pattern := "%" + escapeLike(text) + "%"
		stmt = stmt.Where("(LOWER(title) LIKE ? ESCAPE '!' OR LOWER(description) LIKE ? ESCAPE '!')", pattern, pattern)
	}

	if b := q.Bounds; b != nil {
		stmt = stmt.
			Where("latitude BETWEEN ? AND ?", b.MinLat, b.MaxLat).
			Where("longitude BETWEEN ? AND ?", b.MinLon, b.MaxLon)
	}
	return stmt
}

type condition struct {
	clause string
	args   []any
}

// priceRange bounds one price column. Decimal bounds are passed as floats so
// sqlite compares them numerically.
func priceRange(column string, q domain.SearchQuery) condition {
	var parts []string
	var args []any
	if q.MinPrice != nil {
		parts = append(parts, column+" >= ?")
		args = append(args, q.MinPrice.InexactFloat64())
	}
	if q.MaxPrice != nil {
		parts = append(parts, column+" <= ?")
		args = append(args, q.MaxPrice.InexactFloat64())
	}
	return condition{clause: strings.Join(parts, " AND "), args: args}
}

func escapeLike(value string) string {
	return strings.NewReplacer(`!`, `!!`, `%`, `!%`, `_`, `!_`).Replace(value)
}
