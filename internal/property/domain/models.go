package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	lookupdomain "github.com/smallbiznis/estately/internal/lookup/domain"
	"github.com/smallbiznis/estately/pkg/db"
)

// LookupRefs holds the optional lookup row per kind a listing may reference.
type LookupRefs struct {
	CategoryID           *snowflake.ID `gorm:"index" json:"category_id,omitempty"`
	SubCategoryID        *snowflake.ID `json:"sub_category_id,omitempty"`
	TypeID               *snowflake.ID `gorm:"index" json:"type_id,omitempty"`
	StatusID             *snowflake.ID `gorm:"index" json:"status_id,omitempty"`
	RegionID             *snowflake.ID `gorm:"index" json:"region_id,omitempty"`
	DistrictID           *snowflake.ID `json:"district_id,omitempty"`
	NeighborhoodID       *snowflake.ID `json:"neighborhood_id,omitempty"`
	CompoundID           *snowflake.ID `json:"compound_id,omitempty"`
	CurrencyID           *snowflake.ID `json:"currency_id,omitempty"`
	FinishingStatusID    *snowflake.ID `json:"finishing_status_id,omitempty"`
	ConstructionStatusID *snowflake.ID `json:"construction_status_id,omitempty"`
	OwnershipStatusID    *snowflake.ID `json:"ownership_status_id,omitempty"`
	ViewTypeID           *snowflake.ID `json:"view_type_id,omitempty"`
	OrientationID        *snowflake.ID `json:"orientation_id,omitempty"`
	ListingPurposeID     *snowflake.ID `json:"listing_purpose_id,omitempty"`
	PriorityLevelID      *snowflake.ID `json:"priority_level_id,omitempty"`
}

type refSlot struct {
	field string
	kind  lookupdomain.Kind
	ptr   **snowflake.ID
}

func (r *LookupRefs) slots() []refSlot {
	return []refSlot{
		{"category_id", lookupdomain.KindCategory, &r.CategoryID},
		{"sub_category_id", lookupdomain.KindSubCategory, &r.SubCategoryID},
		{"type_id", lookupdomain.KindType, &r.TypeID},
		{"status_id", lookupdomain.KindStatus, &r.StatusID},
		{"region_id", lookupdomain.KindRegion, &r.RegionID},
		{"district_id", lookupdomain.KindDistrict, &r.DistrictID},
		{"neighborhood_id", lookupdomain.KindNeighborhood, &r.NeighborhoodID},
		{"compound_id", lookupdomain.KindCompound, &r.CompoundID},
		{"currency_id", lookupdomain.KindCurrency, &r.CurrencyID},
		{"finishing_status_id", lookupdomain.KindFinishingStatus, &r.FinishingStatusID},
		{"construction_status_id", lookupdomain.KindConstructionStatus, &r.ConstructionStatusID},
		{"ownership_status_id", lookupdomain.KindOwnershipStatus, &r.OwnershipStatusID},
		{"view_type_id", lookupdomain.KindViewType, &r.ViewTypeID},
		{"orientation_id", lookupdomain.KindOrientation, &r.OrientationID},
		{"listing_purpose_id", lookupdomain.KindListingPurpose, &r.ListingPurposeID},
		{"priority_level_id", lookupdomain.KindPriorityLevel, &r.PriorityLevelID},
	}
}

// References lists every slot, set or not, for lookup validation.
func (r *LookupRefs) References() []lookupdomain.Reference {
	slots := r.slots()
	refs := make([]lookupdomain.Reference, 0, len(slots))
	for _, slot := range slots {
		refs = append(refs, lookupdomain.Reference{Field: slot.field, Kind: slot.kind, ID: *slot.ptr})
	}
	return refs
}

// IDs returns the referenced lookup ids that are set.
func (r *LookupRefs) IDs() []snowflake.ID {
	var ids []snowflake.ID
	for _, slot := range r.slots() {
		if id := *slot.ptr; id != nil && *id != 0 {
			ids = append(ids, *id)
		}
	}
	return ids
}

// Changes reports the columns set in r, for use in a partial update.
func (r *LookupRefs) Changes() map[string]any {
	values := map[string]any{}
	for _, slot := range r.slots() {
		if id := *slot.ptr; id != nil {
			values[slot.field] = *id
		}
	}
	return values
}

// Apply copies the set slots of patch onto r.
func (r *LookupRefs) Apply(patch LookupRefs) {
	mine := r.slots()
	for i, slot := range patch.slots() {
		if id := *slot.ptr; id != nil {
			v := *id
			*mine[i].ptr = &v
		}
	}
}

// Clear nils the named slots and reports the first unknown field name.
func (r *LookupRefs) Clear(fields []string) (string, bool) {
	slots := r.slots()
	for _, field := range fields {
		found := false
		for _, slot := range slots {
			if slot.field == field {
				*slot.ptr = nil
				found = true
				break
			}
		}
		if !found {
			return field, false
		}
	}
	return "", true
}

// Property is a listing owned by exactly one tenant. IsActive false marks a
// soft-deleted row.
type Property struct {
	ID              snowflake.ID `gorm:"primaryKey" json:"id"`
	TenantID        snowflake.ID `gorm:"not null;index:idx_properties_tenant_created,priority:1" json:"tenant_id"`
	ReferenceNumber string       `gorm:"type:varchar(40);not null;uniqueIndex" json:"reference_number"`
	Title           string       `gorm:"not null" json:"title"`
	Description     string       `json:"description,omitempty"`

	LookupRefs

	Location    string   `json:"location,omitempty"`
	Latitude    *float64 `gorm:"index:idx_properties_geo,priority:1" json:"latitude,omitempty"`
	Longitude   *float64 `gorm:"index:idx_properties_geo,priority:2" json:"longitude,omitempty"`
	Area        *float64 `json:"area,omitempty"`
	LandArea    *float64 `json:"land_area,omitempty"`
	Bedrooms    *int     `json:"bedrooms,omitempty"`
	Bathrooms   *int     `json:"bathrooms,omitempty"`
	Floor       *int     `json:"floor,omitempty"`
	TotalFloors *int     `json:"total_floors,omitempty"`

	HasGarden   bool `gorm:"not null;default:false" json:"has_garden"`
	HasPool     bool `gorm:"not null;default:false" json:"has_pool"`
	HasParking  bool `gorm:"not null;default:false" json:"has_parking"`
	HasElevator bool `gorm:"not null;default:false" json:"has_elevator"`
	IsFurnished bool `gorm:"not null;default:false" json:"is_furnished"`

	SalePrice     db.Money `gorm:"precision:14;scale:2" json:"sale_price"`
	RentalMonthly db.Money `gorm:"precision:14;scale:2" json:"rental_monthly"`
	RentalYearly  db.Money `gorm:"precision:14;scale:2" json:"rental_yearly"`

	IsPublic       bool         `gorm:"not null;default:false;index" json:"is_public"`
	IsActive       bool         `gorm:"not null;default:true" json:"is_active"`
	IsFeatured     bool         `gorm:"not null;default:false" json:"is_featured"`
	ViewsCount     int64        `gorm:"not null;default:0" json:"views_count"`
	InquiriesCount int64        `gorm:"not null;default:0" json:"inquiries_count"`
	CreatedBy      snowflake.ID `json:"created_by"`
	UpdatedBy      snowflake.ID `json:"updated_by"`
	CreatedAt      time.Time    `gorm:"not null;index:idx_properties_tenant_created,priority:2" json:"created_at"`
	UpdatedAt      time.Time    `gorm:"not null" json:"updated_at"`

	Lookups map[string]lookupdomain.LookupValue `gorm:"-" json:"lookups,omitempty"`
}

// AttachLookups fills Lookups from rows keyed by lookup id. Missing rows are skipped.
func (p *Property) AttachLookups(rows map[snowflake.ID]lookupdomain.LookupValue) {
	p.Lookups = nil
	for _, slot := range p.slots() {
		id := *slot.ptr
		if id == nil {
			continue
		}
		row, ok := rows[*id]
		if !ok {
			continue
		}
		if p.Lookups == nil {
			p.Lookups = make(map[string]lookupdomain.LookupValue)
		}
		p.Lookups[slot.field] = row
	}
}

// VisibleTo reports whether tenantID (0 for anonymous) may read the row.
func (p Property) VisibleTo(tenantID snowflake.ID) bool {
	if !p.IsActive {
		return false
	}
	return p.IsPublic || (tenantID != 0 && p.TenantID == tenantID)
}
