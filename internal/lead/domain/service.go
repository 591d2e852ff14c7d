package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/estately/pkg/db/pagination"
)

// Contact is the inquirer and what they asked about.
type Contact struct {
	Name       string
	Mobile     string
	Email      string
	Notes      string
	BudgetMin  *decimal.Decimal
	BudgetMax  *decimal.Decimal
	PropertyID *snowflake.ID
}

type ListFilter struct {
	Status       Status
	Source       Source
	AssignedToID *snowflake.ID
	PropertyID   *snowflake.ID
	pagination.Pagination
}

type ListResult struct {
	Items    []Lead              `json:"items"`
	PageInfo pagination.PageInfo `json:"page_info"`
}

type Service interface {
	Create(ctx context.Context, tenantID, actorID snowflake.ID, contact Contact, source Source) (*Lead, error)
	BulkCreate(ctx context.Context, tenantID, actorID snowflake.ID, contacts []Contact, source Source) ([]Lead, error)
	Assign(ctx context.Context, leadID, tenantID, actorID, userID snowflake.ID) (*Lead, error)
	ListByAssignee(ctx context.Context, userID, tenantID snowflake.ID, page pagination.Pagination) (*ListResult, error)
	List(ctx context.Context, tenantID snowflake.ID, filter ListFilter) (*ListResult, error)
	UpdateStatus(ctx context.Context, leadID, tenantID, actorID snowflake.ID, status Status) (*Lead, error)
	Get(ctx context.Context, leadID, tenantID snowflake.ID) (*Lead, error)
}

var (
	ErrInvalidTenant   = errors.New("invalid_tenant")
	ErrInvalidName     = errors.New("invalid_name")
	ErrInvalidMobile   = errors.New("invalid_mobile")
	ErrInvalidEmail    = errors.New("invalid_email")
	ErrInvalidSource   = errors.New("invalid_source")
	ErrInvalidStatus   = errors.New("invalid_status")
	ErrInvalidBudget   = errors.New("invalid_budget")
	ErrInvalidProperty = errors.New("invalid_property")
	ErrInvalidAssignee = errors.New("invalid_assignee")
	ErrInvalidCursor   = errors.New("invalid_cursor")
	ErrEmptyBatch      = errors.New("empty_batch")
	ErrBatchTooLarge   = errors.New("batch_too_large")
)
