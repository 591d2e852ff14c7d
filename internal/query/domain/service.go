package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	activitydomain "github.com/smallbiznis/estately/internal/activity/domain"
	propertydomain "github.com/smallbiznis/estately/internal/property/domain"
	"gorm.io/gorm"
)

// GroupCount is one row of a GROUP BY over a lookup id column.
type GroupCount struct {
	Key   *snowflake.ID `gorm:"column:group_key"`
	Count int64         `gorm:"column:group_count"`
}

// LabelCount is one row of a GROUP BY over an enum column.
type LabelCount struct {
	Key   string `gorm:"column:group_key"`
	Count int64  `gorm:"column:group_count"`
}

type PropertyTotals struct {
	Total  int64 `gorm:"column:total_count"`
	Public int64 `gorm:"column:public_count"`
}

type Repository interface {
	PropertyTotals(ctx context.Context, db *gorm.DB, tenantID snowflake.ID) (PropertyTotals, error)
	GroupProperties(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, column string) ([]GroupCount, error)
	PropertyValue(ctx context.Context, db *gorm.DB, tenantID snowflake.ID) (ValueStats, error)
	GroupLeads(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, column string) ([]LabelCount, error)
	GroupUsers(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, column string) ([]LabelCount, error)
	CountOpenLeads(ctx context.Context, db *gorm.DB, tenantID, assigneeID snowflake.ID) (int64, error)
	CountPendingActivities(ctx context.Context, db *gorm.DB, tenantID, assigneeID snowflake.ID, dueBefore *time.Time) (int64, error)
	RecentProperties(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, limit int) ([]propertydomain.Property, error)
	RecentActivities(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, limit int) ([]activitydomain.Activity, error)
	// WithinBox returns at most limit active listings inside box, nearest to
	// its centre first. tenantID 0 means public listings of every tenant;
	// otherwise only that tenant's listings.
	WithinBox(ctx context.Context, db *gorm.DB, box Box, tenantID snowflake.ID, limit int) ([]propertydomain.Property, error)
}

type Service interface {
	Statistics(ctx context.Context, tenantID snowflake.ID) (*Statistics, error)
	DashboardStats(ctx context.Context, tenantID, userID snowflake.ID) (*Dashboard, error)
	Nearby(ctx context.Context, req NearbyRequest) ([]NearbyResult, error)
}

var (
	ErrInvalidTenant     = errors.New("invalid_tenant")
	ErrInvalidCoordinate = errors.New("invalid_coordinate")
	ErrInvalidRadius     = errors.New("invalid_radius")
)
