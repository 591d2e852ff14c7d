package service

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/estately/internal/apperr"
	"github.com/smallbiznis/estately/internal/authorization"
	"github.com/smallbiznis/estately/internal/tenant/domain"
	"github.com/smallbiznis/estately/internal/tenant/pin"
	"github.com/smallbiznis/estately/internal/tenant/repository"
	"github.com/smallbiznis/estately/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (domain.Service, *gorm.DB) {
	t.Helper()

	conn, err := db.NewTest()
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	if err := conn.AutoMigrate(&domain.Tenant{}, &domain.User{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	enforcer, err := authorization.NewEnforcer(conn)
	if err != nil {
		t.Fatalf("failed to build enforcer: %v", err)
	}
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("failed to create snowflake node: %v", err)
	}

	authz := authorization.NewService(authorization.Params{DB: conn, Log: zap.NewNop(), Enforcer: enforcer})
	return New(Params{
		DB:    conn,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  repository.Provide(),
		Authz: authz,
	}), conn
}

func onboard(t *testing.T, svc domain.Service, name, mobile string) *domain.OnboardResult {
	t.Helper()
	result, err := svc.Onboard(context.Background(), domain.OnboardRequest{
		CreateTenantRequest: domain.CreateTenantRequest{
			Name:   name,
			Type:   domain.TenantTypeCompany,
			Mobile: mobile,
		},
		OwnerName: name + " Owner",
	})
	if err != nil {
		t.Fatalf("onboard %s: %v", name, err)
	}
	return result
}

func TestCreateTenantDuplicateMobileConflict(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.CreateTenant(ctx, domain.CreateTenantRequest{Name: "Nile Homes", Type: domain.TenantTypeCompany, Mobile: "+201000000001"})
	require.NoError(t, err)
	assert.Equal(t, "nile-homes", first.Slug)
	assert.Equal(t, domain.SubscriptionTrial, first.SubscriptionStatus)
	assert.True(t, first.IsActive)

	_, err = svc.CreateTenant(ctx, domain.CreateTenantRequest{Name: "Other", Type: domain.TenantTypeFreelancer, Mobile: "+20 100 000 0001"})
	if !apperr.IsKind(err, apperr.KindConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestCreateTenantSlugCollision(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.CreateTenant(ctx, domain.CreateTenantRequest{Name: "Cairo Realty", Mobile: "+201000000002"})
	require.NoError(t, err)
	second, err := svc.CreateTenant(ctx, domain.CreateTenantRequest{Name: "Cairo  Realty", Mobile: "+201000000003"})
	require.NoError(t, err)

	assert.Equal(t, "cairo-realty", first.Slug)
	assert.Equal(t, "cairo-realty-2", second.Slug)
	assert.Equal(t, domain.TenantTypeFreelancer, first.Type)
}

func TestCreateTenantValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	cases := []struct {
		name  string
		req   domain.CreateTenantRequest
		field string
	}{
		{name: "blank name", req: domain.CreateTenantRequest{Name: " ", Mobile: "+201000000004"}, field: "name"},
		{name: "bad type", req: domain.CreateTenantRequest{Name: "x", Type: "agency", Mobile: "+201000000004"}, field: "type"},
		{name: "bad mobile", req: domain.CreateTenantRequest{Name: "x", Mobile: "12ab"}, field: "mobile"},
		{name: "bad email", req: domain.CreateTenantRequest{Name: "x", Mobile: "+201000000004", Email: "nope"}, field: "email"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateTenant(ctx, tc.req)
			var appErr *apperr.Error
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, apperr.KindValidation, appErr.Kind)
			assert.Equal(t, tc.field, appErr.Field)
		})
	}
}

func TestOnboardCreatesOwnerWithTemporaryPIN(t *testing.T) {
	svc, _ := newTestService(t)

	result := onboard(t, svc, "Delta", "+201000000010")
	assert.Equal(t, domain.RoleOwner, result.Owner.Role)
	assert.Equal(t, result.Tenant.ID, result.Owner.TenantID)
	assert.True(t, pin.Valid(result.TemporaryPIN))
	assert.True(t, result.Owner.PinResetRequired)
	assert.NotEqual(t, result.TemporaryPIN, result.Owner.PinHash)

	user, err := svc.Authenticate(context.Background(), "+201000000010", result.TemporaryPIN)
	require.NoError(t, err)
	assert.Equal(t, result.Owner.ID, user.ID)

	_, err = svc.Authenticate(context.Background(), "+201000000010", "000000x")
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestCreateUserUnknownTenant(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.CreateUser(context.Background(), domain.CreateUserRequest{
		TenantID: snowflake.ID(42),
		Name:     "Ghost",
		Mobile:   "+201000000020",
		Role:     domain.RoleEmployee,
	})
	if !apperr.IsKind(err, apperr.KindNotFound) {
		t.Fatalf("expected not_found, got %v", err)
	}
}

func TestCreateUserMobileUniqueAcrossTenants(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	t1 := onboard(t, svc, "T1", "+201000000030")
	t2 := onboard(t, svc, "T2", "+201000000031")

	_, err := svc.CreateUser(ctx, domain.CreateUserRequest{
		TenantID: t1.Tenant.ID,
		ActorID:  t1.Owner.ID,
		Name:     "Agent",
		Mobile:   "+201000000032",
		Role:     domain.RoleSalesAgent,
	})
	require.NoError(t, err)

	_, err = svc.CreateUser(ctx, domain.CreateUserRequest{
		TenantID: t2.Tenant.ID,
		ActorID:  t2.Owner.ID,
		Name:     "Agent Copy",
		Mobile:   "+201000000032",
		Role:     domain.RoleSalesAgent,
	})
	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperr.KindValidation, appErr.Kind)
	assert.Equal(t, "mobile", appErr.Field)
}

func TestUserManagementRequiresOwnerOrManager(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	t1 := onboard(t, svc, "Acme", "+201000000040")
	agent, err := svc.CreateUser(ctx, domain.CreateUserRequest{
		TenantID: t1.Tenant.ID,
		ActorID:  t1.Owner.ID,
		Name:     "Agent",
		Mobile:   "+201000000041",
		Role:     domain.RoleSalesAgent,
	})
	require.NoError(t, err)

	_, err = svc.CreateUser(ctx, domain.CreateUserRequest{
		TenantID: t1.Tenant.ID,
		ActorID:  agent.User.ID,
		Name:     "Helper",
		Mobile:   "+201000000042",
		Role:     domain.RoleEmployee,
	})
	assert.True(t, apperr.IsKind(err, apperr.KindForbidden), "agent must not create users, got %v", err)

	_, err = svc.SetUserRole(ctx, t1.Tenant.ID, t1.Owner.ID, agent.User.ID, domain.RoleManager)
	require.NoError(t, err)

	manager, err := svc.GetUser(ctx, t1.Tenant.ID, agent.User.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleManager, manager.Role)

	_, err = svc.CreateUser(ctx, domain.CreateUserRequest{
		TenantID: t1.Tenant.ID,
		ActorID:  manager.ID,
		Name:     "Helper",
		Mobile:   "+201000000042",
		Role:     domain.RoleEmployee,
	})
	require.NoError(t, err)
}

func TestInactiveActorIsForbidden(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	t1 := onboard(t, svc, "Acme", "+201000000050")
	created, err := svc.CreateUser(ctx, domain.CreateUserRequest{
		TenantID: t1.Tenant.ID,
		Name:     "Manager",
		Mobile:   "+201000000051",
		Role:     domain.RoleManager,
	})
	require.NoError(t, err)

	updated, err := svc.SetUserStatus(ctx, t1.Tenant.ID, t1.Owner.ID, created.User.ID, domain.UserInactive)
	require.NoError(t, err)
	assert.Equal(t, domain.UserInactive, updated.Status)

	_, err = svc.ResetPIN(ctx, t1.Tenant.ID, created.User.ID, t1.Owner.ID)
	assert.True(t, apperr.IsKind(err, apperr.KindForbidden), "inactive manager must be rejected, got %v", err)
}

func TestCrossTenantActorIsForbidden(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	t1 := onboard(t, svc, "One", "+201000000060")
	t2 := onboard(t, svc, "Two", "+201000000061")

	_, err := svc.SetUserStatus(ctx, t1.Tenant.ID, t2.Owner.ID, t1.Owner.ID, domain.UserSuspended)
	assert.True(t, apperr.IsKind(err, apperr.KindForbidden), "got %v", err)

	_, err = svc.GetUser(ctx, t2.Tenant.ID, t1.Owner.ID)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound), "got %v", err)
}

func TestResetAndChangePIN(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	t1 := onboard(t, svc, "Pins", "+201000000070")
	plain, err := svc.ResetPIN(ctx, t1.Tenant.ID, t1.Owner.ID, t1.Owner.ID)
	require.NoError(t, err)
	require.True(t, pin.Valid(plain))

	_, err = svc.Authenticate(ctx, t1.Owner.Mobile, plain)
	require.NoError(t, err)

	err = svc.ChangePIN(ctx, t1.Tenant.ID, t1.Owner.ID, plain, "12345")
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	require.NoError(t, svc.ChangePIN(ctx, t1.Tenant.ID, t1.Owner.ID, plain, "246810"))
	user, err := svc.Authenticate(ctx, t1.Owner.Mobile, "246810")
	require.NoError(t, err)
	assert.False(t, user.PinResetRequired)
}

func TestUpdateProfileAndDeactivate(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	t1 := onboard(t, svc, "Profile", "+201000000080")
	name := "Profile Estates"
	email := "Info@Profile.example"
	tenant, err := svc.UpdateProfile(ctx, t1.Tenant.ID, t1.Owner.ID, domain.ProfilePatch{Name: &name, Email: &email})
	require.NoError(t, err)
	assert.Equal(t, name, tenant.Name)
	assert.Equal(t, "info@profile.example", tenant.Email)
	assert.Equal(t, t1.Tenant.Slug, tenant.Slug)

	t2 := onboard(t, svc, "Still Active", "+201000000082")
	require.NoError(t, svc.Deactivate(ctx, t1.Tenant.ID))
	active, err := svc.ListActiveTenants(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, t2.Tenant.ID, active[0].ID)

	tenant, err = svc.GetTenant(ctx, t1.Tenant.ID)
	require.NoError(t, err)
	assert.False(t, tenant.IsActive)

	_, err = svc.CreateUser(ctx, domain.CreateUserRequest{
		TenantID: t1.Tenant.ID,
		Name:     "Late",
		Mobile:   "+201000000081",
		Role:     domain.RoleEmployee,
	})
	assert.True(t, apperr.IsKind(err, apperr.KindForbidden), "got %v", err)
}

func TestListUsersFilters(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	t1 := onboard(t, svc, "Team", "+201000000090")
	for i, role := range []domain.Role{domain.RoleSalesAgent, domain.RoleSalesAgent, domain.RoleMarketer} {
		_, err := svc.CreateUser(ctx, domain.CreateUserRequest{
			TenantID: t1.Tenant.ID,
			ActorID:  t1.Owner.ID,
			Name:     "Member",
			Mobile:   "+20100000009" + string(rune('1'+i)),
			Role:     role,
		})
		require.NoError(t, err)
	}

	all, err := svc.ListUsers(ctx, t1.Tenant.ID, domain.UserFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 4)

	agents, err := svc.ListUsers(ctx, t1.Tenant.ID, domain.UserFilter{Role: domain.RoleSalesAgent})
	require.NoError(t, err)
	assert.Len(t, agents, 2)

	_, err = svc.ListUsers(ctx, t1.Tenant.ID, domain.UserFilter{Role: "boss"})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}
