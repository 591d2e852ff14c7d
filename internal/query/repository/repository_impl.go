package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	activitydomain "github.com/smallbiznis/estately/internal/activity/domain"
	leaddomain "github.com/smallbiznis/estately/internal/lead/domain"
	propertydomain "github.com/smallbiznis/estately/internal/property/domain"
	"github.com/smallbiznis/estately/internal/query/domain"
	tenantdomain "github.com/smallbiznis/estately/internal/tenant/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Columns a caller may group by. Anything else is rejected before it reaches SQL.
var (
	propertyGroups = map[string]bool{"status_id": true, "category_id": true, "type_id": true, "region_id": true}
	leadGroups     = map[string]bool{"status": true, "source": true}
	userGroups     = map[string]bool{"role": true, "status": true}
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) PropertyTotals(ctx context.Context, db *gorm.DB, tenantID snowflake.ID) (domain.PropertyTotals, error) {
	var totals domain.PropertyTotals
	err := activeProperties(ctx, db, tenantID).
		Select("COUNT(*) AS total_count, COALESCE(SUM(CASE WHEN is_public = ? THEN 1 ELSE 0 END), 0) AS public_count", true).
		Scan(&totals).Error
	return totals, err
}

func (r *repo) GroupProperties(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, column string) ([]domain.GroupCount, error) {
	if !propertyGroups[column] {
		return nil, fmt.Errorf("unsupported property grouping %q", column)
	}
	var rows []domain.GroupCount
	err := activeProperties(ctx, db, tenantID).
		Select(column + " AS group_key, COUNT(*) AS group_count").
		Group(column).
		Scan(&rows).Error
	return rows, err
}

type valueRow struct {
	TotalValue decimal.NullDecimal
	AvgValue   decimal.NullDecimal
	MinValue   decimal.NullDecimal
	MaxValue   decimal.NullDecimal
}

// PropertyValue values a listing at its sale price, falling back to a year of
// rent and then to zero.
func (r *repo) PropertyValue(ctx context.Context, db *gorm.DB, tenantID snowflake.ID) (domain.ValueStats, error) {
	values := activeProperties(ctx, db, tenantID).
		Select("COALESCE(sale_price, rental_monthly * 12, 0) AS listing_value")

	var row valueRow
	err := db.WithContext(ctx).
		Table("(?) AS valued", values).
		Select("SUM(listing_value) AS total_value, AVG(listing_value) AS avg_value, MIN(listing_value) AS min_value, MAX(listing_value) AS max_value").
		Scan(&row).Error
	if err != nil {
		return domain.ValueStats{}, err
	}
	return domain.ValueStats{
		Sum: row.TotalValue.Decimal.Round(2),
		Avg: row.AvgValue.Decimal.Round(2),
		Min: row.MinValue.Decimal.Round(2),
		Max: row.MaxValue.Decimal.Round(2),
	}, nil
}

func (r *repo) GroupLeads(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, column string) ([]domain.LabelCount, error) {
	if !leadGroups[column] {
		return nil, fmt.Errorf("unsupported lead grouping %q", column)
	}
	var rows []domain.LabelCount
	err := db.WithContext(ctx).
		Model(&leaddomain.Lead{}).
		Where("tenant_id = ?", tenantID).
		Select(column + " AS group_key, COUNT(*) AS group_count").
		Group(column).
		Scan(&rows).Error
	return rows, err
}

func (r *repo) GroupUsers(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, column string) ([]domain.LabelCount, error) {
	if !userGroups[column] {
		return nil, fmt.Errorf("unsupported user grouping %q", column)
	}
	var rows []domain.LabelCount
	err := db.WithContext(ctx).
		Model(&tenantdomain.User{}).
		Where("tenant_id = ?", tenantID).
		Select(column + " AS group_key, COUNT(*) AS group_count").
		Group(column).
		Scan(&rows).Error
	return rows, err
}

func (r *repo) CountOpenLeads(ctx context.Context, db *gorm.DB, tenantID, assigneeID snowflake.ID) (int64, error) {
	var count int64
	err := db.WithContext(ctx).
		Model(&leaddomain.Lead{}).
		Where("tenant_id = ? AND assigned_to_id = ?", tenantID, assigneeID).
		Where("status NOT IN ?", []leaddomain.Status{leaddomain.StatusWon, leaddomain.StatusLost}).
		Count(&count).Error
	return count, err
}

func (r *repo) CountPendingActivities(ctx context.Context, db *gorm.DB, tenantID, assigneeID snowflake.ID, dueBefore *time.Time) (int64, error) {
	stmt := db.WithContext(ctx).
		Model(&activitydomain.Activity{}).
		Where("tenant_id = ? AND assigned_to_id = ? AND status = ?", tenantID, assigneeID, activitydomain.StatusPending)
	if dueBefore != nil {
		stmt = stmt.Where("due_at < ?", *dueBefore)
	}
	var count int64
	err := stmt.Count(&count).Error
	return count, err
}

func (r *repo) RecentProperties(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, limit int) ([]propertydomain.Property, error) {
	var rows []propertydomain.Property
	err := activeProperties(ctx, db, tenantID).
		Order("created_at desc").
		Order("id asc").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *repo) RecentActivities(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, limit int) ([]activitydomain.Activity, error) {
	var rows []activitydomain.Activity
	err := db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("created_at desc").
		Order("id asc").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *repo) WithinBox(ctx context.Context, db *gorm.DB, box domain.Box, tenantID snowflake.ID, limit int) ([]propertydomain.Property, error) {
	stmt := db.WithContext(ctx).
		Model(&propertydomain.Property{}).
		Where("is_active = ?", true).
		Where("latitude BETWEEN ? AND ?", box.MinLat, box.MaxLat).
		Where("longitude BETWEEN ? AND ?", box.MinLon, box.MaxLon)
	if tenantID == 0 {
		stmt = stmt.Where("is_public = ?", true)
	} else {
		stmt = stmt.Where("tenant_id = ?", tenantID)
	}
	scale := box.LonScale * box.LonScale

	var rows []propertydomain.Property
	err := stmt.
		Order(clause.OrderBy{Expression: clause.Expr{
			SQL:                "(latitude - ?) * (latitude - ?) + (longitude - ?) * (longitude - ?) * ?, id",
			Vars:               []any{box.Lat, box.Lat, box.Lon, box.Lon, scale},
			WithoutParentheses: true,
		}}).
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func activeProperties(ctx context.Context, db *gorm.DB, tenantID snowflake.ID) *gorm.DB {
	return db.WithContext(ctx).
		Model(&propertydomain.Property{}).
		Where("tenant_id = ? AND is_active = ?", tenantID, true)
}
