package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// UpsertRequest creates or refreshes the row identified by (Kind, TenantID,
// NormalizeKey(Name)). ActorID zero marks an internal caller such as the seeder.
type UpsertRequest struct {
	Kind          Kind
	TenantID      snowflake.ID
	ActorID       snowflake.ID
	ParentID      *snowflake.ID
	Name          string
	NameLocalized string
	Color         string
	Code          string
	Symbol        string
	SortOrder     int
	Attributes    map[string]any
}

// Reference is a lookup id carried in Field of some entity.
type Reference struct {
	Field string
	Kind  Kind
	ID    *snowflake.ID
}

type Service interface {
	Upsert(ctx context.Context, req UpsertRequest) (*LookupValue, error)
	ListActive(ctx context.Context, kind Kind, tenantID snowflake.ID) ([]LookupValue, error)
	ListChildren(ctx context.Context, kind Kind, tenantID, parentID snowflake.ID) ([]LookupValue, error)
	Catalog(ctx context.Context, tenantID snowflake.ID) (map[Kind][]LookupValue, error)
	Get(ctx context.Context, tenantID, id snowflake.ID) (*LookupValue, error)
	SetActive(ctx context.Context, tenantID, actorID, id snowflake.ID, active bool) (*LookupValue, error)

	// Resolve validates refs for tenantID inside tx and returns the rows keyed by id.
	Resolve(ctx context.Context, tx *gorm.DB, entity string, tenantID snowflake.ID, refs []Reference) (map[snowflake.ID]LookupValue, error)
	// Hydrate loads rows by id in a single query.
	Hydrate(ctx context.Context, tx *gorm.DB, ids []snowflake.ID) (map[snowflake.ID]LookupValue, error)
}

var (
	ErrInvalidKind      = errors.New("invalid_kind")
	ErrInvalidName      = errors.New("invalid_name")
	ErrInvalidTenant    = errors.New("invalid_tenant")
	ErrInvalidParent    = errors.New("invalid_parent")
	ErrNotShareable     = errors.New("kind_not_shareable")
	ErrInvalidReference = errors.New("invalid_reference")
	ErrInactiveLookup   = errors.New("inactive_lookup")
)
