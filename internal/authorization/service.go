package authorization

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

const (
	ObjectProperty = "property"
	ObjectLead     = "lead"
	ObjectActivity = "activity"
	ObjectUser     = "user"
	ObjectLookup   = "lookup"
	ObjectTenant   = "tenant"
)

const (
	ActionPropertyCreate  = "property.create"
	ActionPropertyUpdate  = "property.update"
	ActionPropertyPublish = "property.publish"
	ActionPropertyDelete  = "property.delete"
	ActionPropertyImport  = "property.import"

	ActionLeadCreate = "lead.create"
	ActionLeadUpdate = "lead.update"
	ActionLeadAssign = "lead.assign"
	ActionLeadImport = "lead.import"

	ActionActivityCreate = "activity.create"
	ActionActivityUpdate = "activity.update"
	ActionActivityDelete = "activity.delete"

	ActionUserManage = "user.manage"

	ActionLookupManage = "lookup.manage"

	ActionTenantUpdate = "tenant.update"
)

// Service decides whether a tenant user may perform action on object.
type Service interface {
	Authorize(ctx context.Context, tenantID, userID snowflake.ID, object, action string) error
}

var (
	ErrForbidden     = errors.New("forbidden")
	ErrInvalidActor  = errors.New("invalid_actor")
	ErrInvalidTenant = errors.New("invalid_tenant")
	ErrInvalidObject = errors.New("invalid_object")
	ErrInvalidAction = errors.New("invalid_action")
	ErrInactiveUser  = errors.New("inactive_user")
)
