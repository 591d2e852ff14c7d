package tool

import (
	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/estately/pkg/db/pagination"
)

// getPropertiesArgs searches listings. IncludePublic adds other tenants'
// public listings to an authenticated search.
type getPropertiesArgs struct {
	Query            string           `json:"query" validate:"omitempty,max=200"`
	MinPrice         *decimal.Decimal `json:"min_price"`
	MaxPrice         *decimal.Decimal `json:"max_price"`
	MinArea          *float64         `json:"min_area" validate:"omitempty,gte=0"`
	MaxArea          *float64         `json:"max_area" validate:"omitempty,gte=0"`
	Bedrooms         *int             `json:"bedrooms" validate:"omitempty,gte=0,lte=100"`
	Bathrooms        *int             `json:"bathrooms" validate:"omitempty,gte=0,lte=100"`
	CategoryID       *snowflake.ID    `json:"category_id"`
	TypeID           *snowflake.ID    `json:"type_id"`
	RegionID         *snowflake.ID    `json:"region_id"`
	StatusID         *snowflake.ID    `json:"status_id"`
	ListingPurposeID *snowflake.ID    `json:"listing_purpose_id"`
	IsFeatured       *bool            `json:"is_featured"`
	IsPublic         *bool            `json:"is_public"`
	IncludePublic    bool             `json:"include_public"`
	Limit            int              `json:"limit" validate:"gte=0"`
	Offset           int              `json:"offset" validate:"gte=0"`
}

type getPropertyArgs struct {
	ID snowflake.ID `json:"id" validate:"required"`
}

type searchNearbyArgs struct {
	Lat        *float64 `json:"lat" validate:"required,gte=-90,lte=90"`
	Lon        *float64 `json:"lon" validate:"required,gte=-180,lte=180"`
	RadiusKm   float64  `json:"radius_km" validate:"gte=0,lte=500"`
	Limit      int      `json:"limit" validate:"gte=0"`
	PublicOnly bool     `json:"public_only"`
}

type emptyArgs struct{}

type getLeadsArgs struct {
	Status       string        `json:"status" validate:"omitempty,oneof=new contacted qualified negotiating won lost"`
	Source       string        `json:"source" validate:"omitempty,oneof=website referral social_media walk_in phone other"`
	AssignedToID *snowflake.ID `json:"assigned_to_id"`
	PropertyID   *snowflake.ID `json:"property_id"`
	PageToken    string        `json:"page_token" validate:"omitempty,max=512"`
	PageSize     int           `json:"page_size" validate:"gte=0"`
}

func (a getLeadsArgs) page() pagination.Pagination {
	return pagination.Pagination{PageToken: a.PageToken, PageSize: a.PageSize}
}

type getMyLeadsArgs struct {
	PageToken string `json:"page_token" validate:"omitempty,max=512"`
	PageSize  int    `json:"page_size" validate:"gte=0"`
}

func (a getMyLeadsArgs) page() pagination.Pagination {
	return pagination.Pagination{PageToken: a.PageToken, PageSize: a.PageSize}
}

type getUsersArgs struct {
	Role   string `json:"role" validate:"omitempty,oneof=owner manager sales_agent marketer admin_assistant employee"`
	Status string `json:"status" validate:"omitempty,oneof=active inactive suspended"`
}

type getActivitiesArgs struct {
	View         string        `json:"view" validate:"omitempty,oneof=all upcoming overdue"`
	Days         int           `json:"days" validate:"gte=0,lte=90"`
	Mine         bool          `json:"mine"`
	Type         string        `json:"type" validate:"omitempty,oneof=task note meeting call"`
	Status       string        `json:"status" validate:"omitempty,oneof=pending completed cancelled"`
	RelatedType  string        `json:"related_type" validate:"omitempty,oneof=lead property"`
	RelatedID    *snowflake.ID `json:"related_id"`
	AssignedToID *snowflake.ID `json:"assigned_to_id"`
	PageToken    string        `json:"page_token" validate:"omitempty,max=512"`
	PageSize     int           `json:"page_size" validate:"gte=0"`
}

func (a getActivitiesArgs) page() pagination.Pagination {
	return pagination.Pagination{PageToken: a.PageToken, PageSize: a.PageSize}
}

type getStatsArgs struct {
	IncludeRecent bool `json:"include_recent"`
}

type getStaticDataArgs struct {
	Kind string `json:"kind" validate:"omitempty,max=64"`
}

type upsertLookupArgs struct {
	Kind          string         `json:"kind" validate:"required,max=64"`
	ParentID      *snowflake.ID  `json:"parent_id"`
	Name          string         `json:"name" validate:"required,max=255"`
	NameLocalized string         `json:"name_localized" validate:"omitempty,max=255"`
	Color         string         `json:"color" validate:"omitempty,hexcolor"`
	Code          string         `json:"code" validate:"omitempty,max=32"`
	Symbol        string         `json:"symbol" validate:"omitempty,max=16"`
	SortOrder     int            `json:"sort_order"`
	Attributes    map[string]any `json:"attributes"`
}

type assignLeadArgs struct {
	LeadID snowflake.ID `json:"lead_id" validate:"required"`
	UserID snowflake.ID `json:"user_id" validate:"required"`
}

type setPropertyVisibilityArgs struct {
	PropertyID snowflake.ID `json:"property_id" validate:"required"`
	IsPublic   *bool        `json:"is_public" validate:"required"`
}
