package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/estately/internal/lead/domain"
	"github.com/smallbiznis/estately/pkg/db/option"
	"gorm.io/gorm"
)

const insertBatchSize = 100

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, lead *domain.Lead) error {
	return db.WithContext(ctx).Create(lead).Error
}

func (r *repo) InsertBatch(ctx context.Context, db *gorm.DB, leads []*domain.Lead) error {
	if len(leads) == 0 {
		return nil
	}
	return db.WithContext(ctx).CreateInBatches(leads, insertBatchSize).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID) (*domain.Lead, error) {
	var lead domain.Lead
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Take(&lead).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &lead, nil
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID, values map[string]any) (int64, error) {
	result := db.WithContext(ctx).
		Model(&domain.Lead{}).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Updates(values)
	return result.RowsAffected, result.Error
}

// List orders by (created_at desc, id asc), the order the cursor predicate in
// option.ApplyPagination assumes.
func (r *repo) List(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, filter domain.ListFilter, opts ...option.QueryOption) ([]*domain.Lead, error) {
	stmt := db.WithContext(ctx).
		Model(&domain.Lead{}).
		Where("tenant_id = ?", tenantID)
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	if filter.Source != "" {
		stmt = stmt.Where("source = ?", filter.Source)
	}
	if filter.AssignedToID != nil {
		stmt = stmt.Where("assigned_to_id = ?", *filter.AssignedToID)
	}
	if filter.PropertyID != nil {
		stmt = stmt.Where("property_id = ?", *filter.PropertyID)
	}
	for _, opt := range opts {
		stmt = opt.Apply(stmt)
	}

	var leads []*domain.Lead
	if err := stmt.
		Order("created_at desc").
		Order("id asc").
		Find(&leads).Error; err != nil {
		return nil, err
	}
	return leads, nil
}
