package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type Kind string

const (
	KindCategory           Kind = "category"
	KindSubCategory        Kind = "sub_category"
	KindType               Kind = "type"
	KindStatus             Kind = "status"
	KindRegion             Kind = "region"
	KindDistrict           Kind = "district"
	KindNeighborhood       Kind = "neighborhood"
	KindCompound           Kind = "compound"
	KindCurrency           Kind = "currency"
	KindFinishingStatus    Kind = "finishing_status"
	KindConstructionStatus Kind = "construction_status"
	KindOwnershipStatus    Kind = "ownership_status"
	KindViewType           Kind = "view_type"
	KindOrientation        Kind = "orientation"
	KindListingPurpose     Kind = "listing_purpose"
	KindPriorityLevel      Kind = "priority_level"
)

// Kinds lists every lookup kind in catalog order.
var Kinds = []Kind{
	KindCategory,
	KindSubCategory,
	KindType,
	KindStatus,
	KindRegion,
	KindDistrict,
	KindNeighborhood,
	KindCompound,
	KindCurrency,
	KindFinishingStatus,
	KindConstructionStatus,
	KindOwnershipStatus,
	KindViewType,
	KindOrientation,
	KindListingPurpose,
	KindPriorityLevel,
}

func (k Kind) Valid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// Shareable reports whether rows of this kind may be owned by no tenant.
func (k Kind) Shareable() bool {
	return k == KindCurrency
}

// ParentKind is the kind a row of k may hang under, empty when k is top level.
func (k Kind) ParentKind() Kind {
	switch k {
	case KindSubCategory:
		return KindCategory
	case KindDistrict:
		return KindRegion
	case KindNeighborhood, KindCompound:
		return KindDistrict
	}
	return ""
}

// LookupValue is one reference row. TenantID 0 marks a globally shared row.
type LookupValue struct {
	ID            snowflake.ID      `gorm:"primaryKey" json:"id"`
	Kind          Kind              `gorm:"type:varchar(32);not null;uniqueIndex:idx_lookup_kind_tenant_key,priority:1" json:"kind"`
	TenantID      snowflake.ID      `gorm:"not null;uniqueIndex:idx_lookup_kind_tenant_key,priority:2" json:"tenant_id"`
	Key           string            `gorm:"column:normalized_key;type:varchar(191);not null;uniqueIndex:idx_lookup_kind_tenant_key,priority:3" json:"key"`
	ParentID      *snowflake.ID     `gorm:"index" json:"parent_id,omitempty"`
	Name          string            `gorm:"not null" json:"name"`
	NameLocalized string            `json:"name_localized,omitempty"`
	Color         string            `gorm:"type:varchar(16)" json:"color,omitempty"`
	Code          string            `gorm:"type:varchar(16)" json:"code,omitempty"`
	Symbol        string            `gorm:"type:varchar(16)" json:"symbol,omitempty"`
	Attributes    datatypes.JSONMap `json:"attributes,omitempty"`
	IsActive      bool              `gorm:"not null" json:"is_active"`
	SortOrder     int               `gorm:"not null" json:"sort_order"`
	CreatedAt     time.Time         `gorm:"not null" json:"created_at"`
	UpdatedAt     time.Time         `gorm:"not null" json:"updated_at"`
}

// NormalizeKey lowercases name and collapses whitespace runs into single hyphens.
func NormalizeKey(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), "-")
}

// VisibleTo reports whether tenantID may reference the row.
func (v LookupValue) VisibleTo(tenantID snowflake.ID) bool {
	return v.TenantID == tenantID || (v.TenantID == 0 && v.Kind.Shareable())
}
