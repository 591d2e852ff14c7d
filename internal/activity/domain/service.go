package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/estately/pkg/db/pagination"
	"github.com/smallbiznis/estately/pkg/repository"
)

type Repository = repository.Repository[Activity]

type Draft struct {
	Type         Type
	Title        string
	Description  string
	Priority     Priority
	DueAt        *time.Time
	RelatedType  RelatedType
	RelatedID    *snowflake.ID
	AssignedToID *snowflake.ID
}

// Patch changes the set fields only. ClearDueAt and Unassign win over DueAt
// and AssignedToID.
type Patch struct {
	Title        *string
	Description  *string
	Priority     *Priority
	Status       *Status
	DueAt        *time.Time
	ClearDueAt   bool
	AssignedToID *snowflake.ID
	Unassign     bool
}

type ListFilter struct {
	Status       Status
	Type         Type
	RelatedType  RelatedType
	RelatedID    *snowflake.ID
	AssignedToID *snowflake.ID
	pagination.Pagination
}

type ListResult struct {
	Items    []Activity          `json:"items"`
	PageInfo pagination.PageInfo `json:"page_info"`
}

type Service interface {
	Create(ctx context.Context, tenantID, actorID snowflake.ID, draft Draft) (*Activity, error)
	Get(ctx context.Context, tenantID, id snowflake.ID) (*Activity, error)
	List(ctx context.Context, tenantID snowflake.ID, filter ListFilter) (*ListResult, error)
	Update(ctx context.Context, tenantID, actorID, id snowflake.ID, patch Patch) (*Activity, error)
	Complete(ctx context.Context, tenantID, actorID, id snowflake.ID) (*Activity, error)
	Delete(ctx context.Context, tenantID, actorID, id snowflake.ID) error
	// Upcoming lists pending activities due within the window from now.
	// assigneeID 0 matches every assignee.
	Upcoming(ctx context.Context, tenantID, assigneeID snowflake.ID, window time.Duration) ([]Activity, error)
	Overdue(ctx context.Context, tenantID, assigneeID snowflake.ID) ([]Activity, error)
}

var (
	ErrInvalidTenant   = errors.New("invalid_tenant")
	ErrInvalidType     = errors.New("invalid_type")
	ErrInvalidTitle    = errors.New("invalid_title")
	ErrInvalidStatus   = errors.New("invalid_status")
	ErrInvalidPriority = errors.New("invalid_priority")
	ErrInvalidRelated  = errors.New("invalid_related")
	ErrInvalidAssignee = errors.New("invalid_assignee")
	ErrInvalidWindow   = errors.New("invalid_window")
	ErrInvalidCursor   = errors.New("invalid_cursor")
	ErrNotPending      = errors.New("not_pending")
)
