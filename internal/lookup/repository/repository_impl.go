package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/estately/internal/lookup/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, value *domain.LookupValue) error {
	return db.WithContext(ctx).Create(value).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, id snowflake.ID, values map[string]any) (int64, error) {
	result := db.WithContext(ctx).
		Model(&domain.LookupValue{}).
		Where("id = ?", id).
		Updates(values)
	return result.RowsAffected, result.Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.LookupValue, error) {
	var value domain.LookupValue
	err := db.WithContext(ctx).
		Where("id = ?", id).
		Take(&value).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &value, nil
}

func (r *repo) FindByIDs(ctx context.Context, db *gorm.DB, ids []snowflake.ID) ([]*domain.LookupValue, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var values []*domain.LookupValue
	if err := db.WithContext(ctx).
		Where("id IN ?", ids).
		Find(&values).Error; err != nil {
		return nil, err
	}
	return values, nil
}

func (r *repo) FindByKey(ctx context.Context, db *gorm.DB, kind domain.Kind, tenantID snowflake.ID, key string) (*domain.LookupValue, error) {
	var value domain.LookupValue
	err := db.WithContext(ctx).
		Where("kind = ? AND tenant_id = ? AND normalized_key = ?", kind, tenantID, key).
		Take(&value).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &value, nil
}

func (r *repo) ListActive(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]*domain.LookupValue, error) {
	var values []*domain.LookupValue
	stmt := db.WithContext(ctx).
		Model(&domain.LookupValue{}).
		Where("is_active = ?", true).
		Where("(tenant_id = ? OR tenant_id = 0)", filter.TenantID)
	if filter.Kind != "" {
		stmt = stmt.Where("kind = ?", filter.Kind)
	}
	if filter.ParentID != nil {
		stmt = stmt.Where("parent_id = ?", *filter.ParentID)
	}
	if err := stmt.
		Order("kind asc, sort_order asc, name asc, id asc").
		Find(&values).Error; err != nil {
		return nil, err
	}
	return values, nil
}
