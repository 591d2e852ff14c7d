package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Fields are the writable attributes of a new listing.
type Fields struct {
	Title       string
	Description string
	LookupRefs
	Location      string
	Latitude      *float64
	Longitude     *float64
	Area          *float64
	LandArea      *float64
	Bedrooms      *int
	Bathrooms     *int
	Floor         *int
	TotalFloors   *int
	HasGarden     bool
	HasPool       bool
	HasParking    bool
	HasElevator   bool
	IsFurnished   bool
	SalePrice     *decimal.Decimal
	RentalMonthly *decimal.Decimal
	RentalYearly  *decimal.Decimal
	IsPublic      bool
	IsFeatured    bool
}

// Patch changes only the non-nil fields. Refs sets lookup slots, ClearRefs
// names slots (by column, e.g. "category_id") to reset to null.
type Patch struct {
	Title         *string
	Description   *string
	Refs          LookupRefs
	ClearRefs     []string
	Location      *string
	Latitude      *float64
	Longitude     *float64
	Area          *float64
	LandArea      *float64
	Bedrooms      *int
	Bathrooms     *int
	Floor         *int
	TotalFloors   *int
	HasGarden     *bool
	HasPool       *bool
	HasParking    *bool
	HasElevator   *bool
	IsFurnished   *bool
	SalePrice     *decimal.Decimal
	RentalMonthly *decimal.Decimal
	RentalYearly  *decimal.Decimal
	IsFeatured    *bool
}

type BoundingBox struct {
	MinLat float64
	MaxLat float64
	MinLon float64
	MaxLon float64
}

// SearchFilter narrows a listing search. Price bounds match either the sale
// price or the monthly rent.
type SearchFilter struct {
	MinPrice         *decimal.Decimal
	MaxPrice         *decimal.Decimal
	MinArea          *float64
	MaxArea          *float64
	Bedrooms         *int
	Bathrooms        *int
	CategoryID       *snowflake.ID
	TypeID           *snowflake.ID
	RegionID         *snowflake.ID
	StatusID         *snowflake.ID
	ListingPurposeID *snowflake.ID
	Query            string
	Bounds           *BoundingBox
	IsPublic         *bool
	IsFeatured       *bool
	IncludePublic    bool
	Limit            int
	Offset           int
}

type SearchResult struct {
	Items  []Property `json:"items"`
	Total  int64      `json:"total"`
	Limit  int        `json:"limit"`
	Offset int        `json:"offset"`
}

type Service interface {
	Create(ctx context.Context, tenantID, createdByID snowflake.ID, fields Fields) (*Property, error)
	BulkCreate(ctx context.Context, tenantID, createdByID snowflake.ID, fields []Fields) ([]Property, error)
	Update(ctx context.Context, propertyID, tenantID, actorID snowflake.ID, patch Patch) (*Property, error)
	Get(ctx context.Context, propertyID, callerTenantID snowflake.ID) (*Property, error)
	Search(ctx context.Context, filter SearchFilter, callerTenantID snowflake.ID) (*SearchResult, error)
	SetVisibility(ctx context.Context, propertyID, tenantID, actorID snowflake.ID, public bool) (*Property, error)
	Delete(ctx context.Context, propertyID, tenantID, actorID snowflake.ID) error
	// RecordInquiry bumps the inquiry counter of an active listing owned by
	// tenantID inside tx. It returns ErrUnknownProperty when no such listing exists.
	RecordInquiry(ctx context.Context, tx *gorm.DB, tenantID, propertyID snowflake.ID) error
}

var (
	ErrInvalidTenant     = errors.New("invalid_tenant")
	ErrInvalidTitle      = errors.New("invalid_title")
	ErrInvalidPrice      = errors.New("invalid_price")
	ErrInvalidArea       = errors.New("invalid_area")
	ErrInvalidCount      = errors.New("invalid_count")
	ErrInvalidCoordinate = errors.New("invalid_coordinate")
	ErrInvalidRange      = errors.New("invalid_range")
	ErrInvalidField      = errors.New("invalid_field")
	ErrEmptyBatch        = errors.New("empty_batch")
	ErrBatchTooLarge     = errors.New("batch_too_large")
	ErrUnknownProperty   = errors.New("unknown_property")
)
