package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type TenantType string

const (
	TenantTypeFreelancer TenantType = "freelancer"
	TenantTypeCompany    TenantType = "company"
)

type SubscriptionStatus string

const (
	SubscriptionTrial     SubscriptionStatus = "trial"
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionExpired   SubscriptionStatus = "expired"
	SubscriptionCancelled SubscriptionStatus = "cancelled"
)

type Role string

const (
	RoleOwner          Role = "owner"
	RoleManager        Role = "manager"
	RoleSalesAgent     Role = "sales_agent"
	RoleMarketer       Role = "marketer"
	RoleAdminAssistant Role = "admin_assistant"
	RoleEmployee       Role = "employee"
)

func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleManager, RoleSalesAgent, RoleMarketer, RoleAdminAssistant, RoleEmployee:
		return true
	}
	return false
}

type UserStatus string

const (
	UserActive    UserStatus = "active"
	UserInactive  UserStatus = "inactive"
	UserSuspended UserStatus = "suspended"
)

func (s UserStatus) Valid() bool {
	switch s {
	case UserActive, UserInactive, UserSuspended:
		return true
	}
	return false
}

func (t TenantType) Valid() bool {
	return t == TenantTypeFreelancer || t == TenantTypeCompany
}

type Tenant struct {
	ID                 snowflake.ID       `gorm:"primaryKey" json:"id"`
	Name               string             `gorm:"not null" json:"name"`
	Slug               string             `gorm:"not null;uniqueIndex" json:"slug"`
	Type               TenantType         `gorm:"type:varchar(20);not null" json:"type"`
	Mobile             string             `gorm:"not null;uniqueIndex" json:"mobile"`
	Email              string             `json:"email,omitempty"`
	Address            string             `json:"address,omitempty"`
	SubscriptionStatus SubscriptionStatus `gorm:"type:varchar(20);not null" json:"subscription_status"`
	SubscriptionStart  *time.Time         `json:"subscription_start,omitempty"`
	SubscriptionEnd    *time.Time         `json:"subscription_end,omitempty"`
	IsActive           bool               `gorm:"not null" json:"is_active"`
	CreatedAt          time.Time          `gorm:"not null" json:"created_at"`
	UpdatedAt          time.Time          `gorm:"not null" json:"updated_at"`
}

// User belongs to exactly one tenant for its whole lifetime. PinResetRequired
// stays set while the user still holds an issued temporary PIN.
type User struct {
	ID               snowflake.ID `gorm:"primaryKey" json:"id"`
	TenantID         snowflake.ID `gorm:"not null;index:idx_users_tenant_created,priority:1" json:"tenant_id"`
	Name             string       `gorm:"not null" json:"name"`
	Mobile           string       `gorm:"not null;uniqueIndex" json:"mobile"`
	Email            string       `json:"email,omitempty"`
	Role             Role         `gorm:"type:varchar(32);not null" json:"role"`
	Status           UserStatus   `gorm:"type:varchar(20);not null" json:"status"`
	PinHash          string       `gorm:"column:pin_hash" json:"-"`
	PinResetRequired bool         `gorm:"not null;default:false" json:"pin_reset_required"`
	CreatedAt        time.Time    `gorm:"not null;index:idx_users_tenant_created,priority:2" json:"created_at"`
	UpdatedAt        time.Time    `gorm:"not null" json:"updated_at"`
}
