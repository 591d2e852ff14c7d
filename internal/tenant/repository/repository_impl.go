package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/estately/internal/tenant/domain"
	"gorm.io/gorm"
)

const (
	tenantColumns = `id, name, slug, type, mobile, email, address, subscription_status,
		subscription_start, subscription_end, is_active, created_at, updated_at`
	userColumns = `id, tenant_id, name, mobile, email, role, status, pin_hash, pin_reset_required, created_at, updated_at`
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertTenant(ctx context.Context, db *gorm.DB, tenant *domain.Tenant) error {
	return db.WithContext(ctx).Create(tenant).Error
}

func (r *repo) FindTenantByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Tenant, error) {
	var tenant domain.Tenant
	err := db.WithContext(ctx).Raw(
		`SELECT `+tenantColumns+` FROM tenants WHERE id = ?`,
		id,
	).Scan(&tenant).Error
	if err != nil {
		return nil, err
	}
	if tenant.ID == 0 {
		return nil, nil
	}
	return &tenant, nil
}

func (r *repo) FindTenantByMobile(ctx context.Context, db *gorm.DB, mobile string) (*domain.Tenant, error) {
	var tenant domain.Tenant
	err := db.WithContext(ctx).Raw(
		`SELECT `+tenantColumns+` FROM tenants WHERE mobile = ?`,
		mobile,
	).Scan(&tenant).Error
	if err != nil {
		return nil, err
	}
	if tenant.ID == 0 {
		return nil, nil
	}
	return &tenant, nil
}

func (r *repo) SlugExists(ctx context.Context, db *gorm.DB, slug string) (bool, error) {
	var count int64
	err := db.WithContext(ctx).
		Model(&domain.Tenant{}).
		Where("slug = ?", slug).
		Count(&count).Error
	return count > 0, err
}

func (r *repo) ListActiveTenants(ctx context.Context, db *gorm.DB) ([]*domain.Tenant, error) {
	var tenants []*domain.Tenant
	err := db.WithContext(ctx).Raw(
		`SELECT `+tenantColumns+` FROM tenants WHERE is_active = ? ORDER BY id ASC`,
		true,
	).Scan(&tenants).Error
	if err != nil {
		return nil, err
	}
	return tenants, nil
}

func (r *repo) UpdateTenant(ctx context.Context, db *gorm.DB, id snowflake.ID, values map[string]any) (int64, error) {
	result := db.WithContext(ctx).
		Model(&domain.Tenant{}).
		Where("id = ?", id).
		Updates(values)
	return result.RowsAffected, result.Error
}

func (r *repo) InsertUser(ctx context.Context, db *gorm.DB, user *domain.User) error {
	return db.WithContext(ctx).Create(user).Error
}

func (r *repo) FindUserByID(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID) (*domain.User, error) {
	var user domain.User
	err := db.WithContext(ctx).Raw(
		`SELECT `+userColumns+` FROM users WHERE tenant_id = ? AND id = ?`,
		tenantID,
		id,
	).Scan(&user).Error
	if err != nil {
		return nil, err
	}
	if user.ID == 0 {
		return nil, nil
	}
	return &user, nil
}

func (r *repo) FindUserByMobile(ctx context.Context, db *gorm.DB, mobile string) (*domain.User, error) {
	var user domain.User
	err := db.WithContext(ctx).Raw(
		`SELECT `+userColumns+` FROM users WHERE mobile = ?`,
		mobile,
	).Scan(&user).Error
	if err != nil {
		return nil, err
	}
	if user.ID == 0 {
		return nil, nil
	}
	return &user, nil
}

func (r *repo) ListUsers(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, filter domain.UserFilter) ([]*domain.User, error) {
	var users []*domain.User
	stmt := db.WithContext(ctx).
		Model(&domain.User{}).
		Where("tenant_id = ?", tenantID)
	if filter.Role != "" {
		stmt = stmt.Where("role = ?", filter.Role)
	}
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	if err := stmt.Order("created_at asc, id asc").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (r *repo) UpdateUser(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID, values map[string]any) (int64, error) {
	result := db.WithContext(ctx).
		Model(&domain.User{}).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Updates(values)
	return result.RowsAffected, result.Error
}
