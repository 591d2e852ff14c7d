package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

type CreateTenantRequest struct {
	Name    string
	Type    TenantType
	Mobile  string
	Email   string
	Address string
}

type OnboardRequest struct {
	CreateTenantRequest
	OwnerName  string
	OwnerEmail string
}

type OnboardResult struct {
	Tenant       Tenant `json:"tenant"`
	Owner        User   `json:"owner"`
	TemporaryPIN string `json:"temporary_pin"`
}

type ProfilePatch struct {
	Name    *string
	Email   *string
	Address *string
}

// CreateUserRequest adds a user to TenantID. ActorID is the user performing the
// change; zero marks an internal caller such as onboarding or seeding.
type CreateUserRequest struct {
	TenantID snowflake.ID
	ActorID  snowflake.ID
	Name     string
	Mobile   string
	Email    string
	Role     Role
}

type CreatedUser struct {
	User         User   `json:"user"`
	TemporaryPIN string `json:"temporary_pin"`
}

type UserFilter struct {
	Role   Role
	Status UserStatus
}

type Service interface {
	CreateTenant(ctx context.Context, req CreateTenantRequest) (*Tenant, error)
	Onboard(ctx context.Context, req OnboardRequest) (*OnboardResult, error)
	GetTenant(ctx context.Context, id snowflake.ID) (*Tenant, error)
	ListActiveTenants(ctx context.Context) ([]Tenant, error)
	UpdateProfile(ctx context.Context, tenantID, actorID snowflake.ID, patch ProfilePatch) (*Tenant, error)
	Deactivate(ctx context.Context, tenantID snowflake.ID) error

	CreateUser(ctx context.Context, req CreateUserRequest) (*CreatedUser, error)
	GetUser(ctx context.Context, tenantID, userID snowflake.ID) (*User, error)
	ListUsers(ctx context.Context, tenantID snowflake.ID, filter UserFilter) ([]User, error)
	SetUserStatus(ctx context.Context, tenantID, actorID, userID snowflake.ID, status UserStatus) (*User, error)
	SetUserRole(ctx context.Context, tenantID, actorID, userID snowflake.ID, role Role) (*User, error)
	ResetPIN(ctx context.Context, tenantID, actorID, userID snowflake.ID) (string, error)
	Authenticate(ctx context.Context, mobile, pin string) (*User, error)
	ChangePIN(ctx context.Context, tenantID, userID snowflake.ID, current, next string) error
}

var (
	ErrInvalidTenant      = errors.New("invalid_tenant")
	ErrInvalidName        = errors.New("invalid_name")
	ErrInvalidType        = errors.New("invalid_type")
	ErrInvalidMobile      = errors.New("invalid_mobile")
	ErrInvalidEmail       = errors.New("invalid_email")
	ErrInvalidRole        = errors.New("invalid_role")
	ErrInvalidStatus      = errors.New("invalid_status")
	ErrMobileTaken        = errors.New("mobile_taken")
	ErrTenantInactive     = errors.New("tenant_inactive")
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrInvalidPIN         = errors.New("invalid_pin")
)
