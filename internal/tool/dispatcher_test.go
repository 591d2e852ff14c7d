package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	activitydomain "github.com/smallbiznis/estately/internal/activity/domain"
	activityrepository "github.com/smallbiznis/estately/internal/activity/repository"
	activityservice "github.com/smallbiznis/estately/internal/activity/service"
	"github.com/smallbiznis/estately/internal/apperr"
	"github.com/smallbiznis/estately/internal/authorization"
	"github.com/smallbiznis/estately/internal/clock"
	leaddomain "github.com/smallbiznis/estately/internal/lead/domain"
	leadrepository "github.com/smallbiznis/estately/internal/lead/repository"
	leadservice "github.com/smallbiznis/estately/internal/lead/service"
	lookupdomain "github.com/smallbiznis/estately/internal/lookup/domain"
	lookuprepository "github.com/smallbiznis/estately/internal/lookup/repository"
	lookupservice "github.com/smallbiznis/estately/internal/lookup/service"
	propertydomain "github.com/smallbiznis/estately/internal/property/domain"
	propertyrepository "github.com/smallbiznis/estately/internal/property/repository"
	propertyservice "github.com/smallbiznis/estately/internal/property/service"
	querydomain "github.com/smallbiznis/estately/internal/query/domain"
	queryrepository "github.com/smallbiznis/estately/internal/query/repository"
	queryservice "github.com/smallbiznis/estately/internal/query/service"
	tenantdomain "github.com/smallbiznis/estately/internal/tenant/domain"
	tenantrepository "github.com/smallbiznis/estately/internal/tenant/repository"
	tenantservice "github.com/smallbiznis/estately/internal/tenant/service"
	"github.com/smallbiznis/estately/pkg/db"
	"github.com/smallbiznis/estately/pkg/tenantctx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fixture struct {
	dispatcher *Dispatcher
	tenants    tenantdomain.Service
	properties propertydomain.Service
	leads      leaddomain.Service
	activities activitydomain.Service
	clock      *clock.FakeClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	conn, err := db.NewTest()
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	if err := conn.AutoMigrate(
		&tenantdomain.Tenant{},
		&tenantdomain.User{},
		&lookupdomain.LookupValue{},
		&propertydomain.Property{},
		&leaddomain.Lead{},
		&activitydomain.Activity{},
	); err != nil {
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

	log := zap.NewNop()
	fake := clock.NewFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	authz := authorization.NewService(authorization.Params{DB: conn, Log: log, Enforcer: enforcer})
	tenants := tenantservice.New(tenantservice.Params{
		DB: conn, Log: log, GenID: node, Repo: tenantrepository.Provide(), Authz: authz, Clock: fake,
	})
	lookups := lookupservice.New(lookupservice.Params{
		DB: conn, Log: log, GenID: node, Repo: lookuprepository.Provide(), Authz: authz, Clock: fake,
	})
	properties := propertyservice.New(propertyservice.Params{
		DB: conn, Log: log, GenID: node, Repo: propertyrepository.Provide(), Lookups: lookups, Authz: authz, Clock: fake,
	})
	leads := leadservice.New(leadservice.Params{
		DB: conn, Log: log, GenID: node, Repo: leadrepository.Provide(), Properties: properties, Users: tenants, Authz: authz, Clock: fake,
	})
	activities := activityservice.New(activityservice.Params{
		DB: conn, Log: log, GenID: node, Repo: activityrepository.Provide(conn), Users: tenants, Authz: authz, Clock: fake,
	})
	queries := queryservice.New(queryservice.Params{
		DB: conn, Log: log, Repo: queryrepository.Provide(), Lookups: lookups, Clock: fake,
	})

	dispatcher := New(Params{
		Log:        log,
		Properties: properties,
		Leads:      leads,
		Tenants:    tenants,
		Lookups:    lookups,
		Activities: activities,
		Queries:    queries,
	})
	return &fixture{
		dispatcher: dispatcher,
		tenants:    tenants,
		properties: properties,
		leads:      leads,
		activities: activities,
		clock:      fake,
	}
}

func (f *fixture) onboard(t *testing.T, name, mobile string) *tenantdomain.OnboardResult {
	t.Helper()
	result, err := f.tenants.Onboard(context.Background(), tenantdomain.OnboardRequest{
		CreateTenantRequest: tenantdomain.CreateTenantRequest{Name: name, Type: tenantdomain.TenantTypeCompany, Mobile: mobile},
		OwnerName:           name + " Owner",
	})
	require.NoError(t, err)
	return result
}

func (f *fixture) listing(t *testing.T, tenantID snowflake.ID, title string, public bool) *propertydomain.Property {
	t.Helper()
	property, err := f.properties.Create(context.Background(), tenantID, 0, propertydomain.Fields{Title: title, IsPublic: public})
	require.NoError(t, err)
	f.clock.Advance(time.Second)
	return property
}

func as(owner *tenantdomain.OnboardResult) context.Context {
	return tenantctx.WithCaller(context.Background(), tenantctx.Caller{TenantID: owner.Tenant.ID, UserID: owner.Owner.ID})
}

func requireFailure(t *testing.T, result Result, kind apperr.Kind, field string) {
	t.Helper()
	require.False(t, result.Success)
	require.NotNil(t, result.Error)
	assert.Equal(t, kind, result.Error.Kind)
	assert.Equal(t, field, result.Error.Field)
}

func TestToolsAreListedByName(t *testing.T) {
	f := newFixture(t)

	tools := f.dispatcher.Tools()
	require.Len(t, tools, 14)
	public := map[string]bool{}
	for i, tool := range tools {
		if i > 0 {
			assert.Less(t, tools[i-1].Name, tool.Name)
		}
		assert.NotEmpty(t, tool.Description)
		if tool.Public {
			public[tool.Name] = true
		}
	}
	assert.Equal(t, map[string]bool{
		"get_properties":  true,
		"get_property":    true,
		"search_nearby":   true,
		"get_static_data": true,
	}, public)
}

func TestCallerChecks(t *testing.T) {
	f := newFixture(t)
	t1 := f.onboard(t, "Nile", "+201000000001")

	result := f.dispatcher.Call(context.Background(), "drop_tables", nil)
	requireFailure(t, result, apperr.KindNotFound, "")
	assert.Equal(t, "tool", result.Error.Entity)

	result = f.dispatcher.Call(context.Background(), "get_leads", nil)
	requireFailure(t, result, apperr.KindForbidden, "")

	tenantOnly := tenantctx.WithCaller(context.Background(), tenantctx.Caller{TenantID: t1.Tenant.ID})
	result = f.dispatcher.Call(tenantOnly, "get_leads", nil)
	requireFailure(t, result, apperr.KindForbidden, "")

	result = f.dispatcher.Call(as(t1), "get_leads", json.RawMessage("null"))
	require.True(t, result.Success, "%+v", result.Error)
}

func TestArgumentsAreValidated(t *testing.T) {
	f := newFixture(t)
	t1 := f.onboard(t, "Nile", "+201000000001")

	cases := []struct {
		name  string
		tool  string
		args  string
		field string
	}{
		{name: "unknown argument", tool: "get_properties", args: `{"bogus": 1}`, field: "bogus"},
		{name: "wrong type", tool: "get_properties", args: `{"limit": "ten"}`, field: "limit"},
		{name: "negative offset", tool: "get_properties", args: `{"offset": -1}`, field: "offset"},
		{name: "missing latitude", tool: "search_nearby", args: `{"lon": 31.2}`, field: "lat"},
		{name: "latitude out of range", tool: "search_nearby", args: `{"lat": 91, "lon": 31.2}`, field: "lat"},
		{name: "unknown lead status", tool: "get_leads", args: `{"status": "open"}`, field: "status"},
		{name: "window too wide", tool: "get_activities", args: `{"view": "upcoming", "days": 120}`, field: "days"},
		{name: "missing lead id", tool: "assign_lead", args: `{"user_id": "1"}`, field: "lead_id"},
		{name: "missing visibility", tool: "set_property_visibility", args: `{"property_id": "1"}`, field: "is_public"},
		{name: "bad color", tool: "upsert_lookup", args: `{"kind": "status", "name": "Hot", "color": "red"}`, field: "color"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result := f.dispatcher.Call(as(t1), tc.tool, json.RawMessage(tc.args))
			requireFailure(t, result, apperr.KindValidation, tc.field)
			assert.Equal(t, "tool", result.Error.Entity)
		})
	}

	result := f.dispatcher.Call(as(t1), "get_properties", json.RawMessage(`{"limit": 1} {}`))
	requireFailure(t, result, apperr.KindValidation, "")
}

func TestGetPropertiesVisibility(t *testing.T) {
	f := newFixture(t)
	t1 := f.onboard(t, "Nile", "+201000000001")
	t2 := f.onboard(t, "Delta", "+201000000002")
	f.listing(t, t1.Tenant.ID, "T1 public", true)
	f.listing(t, t1.Tenant.ID, "T1 private", false)
	f.listing(t, t2.Tenant.ID, "T2 public", true)

	total := func(ctx context.Context, args string) int64 {
		t.Helper()
		result := f.dispatcher.Call(ctx, "get_properties", json.RawMessage(args))
		require.True(t, result.Success, "%+v", result.Error)
		return result.Data.(*propertydomain.SearchResult).Total
	}

	assert.EqualValues(t, 2, total(context.Background(), `{}`))
	assert.EqualValues(t, 2, total(as(t1), `{}`))
	assert.EqualValues(t, 1, total(as(t2), `{}`))
	assert.EqualValues(t, 2, total(as(t2), `{"include_public": true}`))
}

func TestGetPropertyHidesPrivateListings(t *testing.T) {
	f := newFixture(t)
	t1 := f.onboard(t, "Nile", "+201000000001")
	private := f.listing(t, t1.Tenant.ID, "T1 private", false)
	args := json.RawMessage(fmt.Sprintf(`{"id": "%d"}`, private.ID))

	requireFailure(t, f.dispatcher.Call(context.Background(), "get_property", args), apperr.KindNotFound, "")

	result := f.dispatcher.Call(as(t1), "get_property", args)
	require.True(t, result.Success, "%+v", result.Error)
	assert.Equal(t, private.ID, result.Data.(*propertydomain.Property).ID)
}

func TestAssignLeadAndListMine(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	t1 := f.onboard(t, "Nile", "+201000000001")
	agent, err := f.tenants.CreateUser(ctx, tenantdomain.CreateUserRequest{
		TenantID: t1.Tenant.ID,
		Name:     "Agent",
		Mobile:   "+201000000010",
		Role:     tenantdomain.RoleSalesAgent,
	})
	require.NoError(t, err)
	lead, err := f.leads.Create(ctx, t1.Tenant.ID, 0, leaddomain.Contact{Name: "Mona", Mobile: "+201001112233"}, leaddomain.SourceWebsite)
	require.NoError(t, err)

	result := f.dispatcher.Call(as(t1), "assign_lead",
		json.RawMessage(fmt.Sprintf(`{"lead_id": "%d", "user_id": "%d"}`, lead.ID, agent.User.ID)))
	require.True(t, result.Success, "%+v", result.Error)
	assigned := result.Data.(*leaddomain.Lead)
	require.NotNil(t, assigned.AssignedToID)
	assert.Equal(t, agent.User.ID, *assigned.AssignedToID)

	agentCtx := tenantctx.WithCaller(ctx, tenantctx.Caller{TenantID: t1.Tenant.ID, UserID: agent.User.ID})
	result = f.dispatcher.Call(agentCtx, "get_my_leads", nil)
	require.True(t, result.Success, "%+v", result.Error)
	mine := result.Data.(*leaddomain.ListResult)
	require.Len(t, mine.Items, 1)
	assert.Equal(t, lead.ID, mine.Items[0].ID)

	result = f.dispatcher.Call(agentCtx, "get_dashboard_stats", nil)
	require.True(t, result.Success, "%+v", result.Error)
}

func TestSetPropertyVisibility(t *testing.T) {
	f := newFixture(t)
	t1 := f.onboard(t, "Nile", "+201000000001")
	property := f.listing(t, t1.Tenant.ID, "Villa", false)

	result := f.dispatcher.Call(as(t1), "set_property_visibility",
		json.RawMessage(fmt.Sprintf(`{"property_id": "%d", "is_public": true}`, property.ID)))
	require.True(t, result.Success, "%+v", result.Error)
	assert.True(t, result.Data.(*propertydomain.Property).IsPublic)

	result = f.dispatcher.Call(context.Background(), "get_properties", nil)
	require.True(t, result.Success, "%+v", result.Error)
	assert.EqualValues(t, 1, result.Data.(*propertydomain.SearchResult).Total)
}

func TestUpsertLookupAndStaticData(t *testing.T) {
	f := newFixture(t)
	t1 := f.onboard(t, "Nile", "+201000000001")

	args := json.RawMessage(`{"kind": "status", "name": "Hot", "color": "#ff0000"}`)
	first := f.dispatcher.Call(as(t1), "upsert_lookup", args)
	require.True(t, first.Success, "%+v", first.Error)
	second := f.dispatcher.Call(as(t1), "upsert_lookup", args)
	require.True(t, second.Success, "%+v", second.Error)
	assert.Equal(t, first.Data.(*lookupdomain.LookupValue).ID, second.Data.(*lookupdomain.LookupValue).ID)

	result := f.dispatcher.Call(as(t1), "get_static_data", json.RawMessage(`{"kind": "status"}`))
	require.True(t, result.Success, "%+v", result.Error)
	items := result.Data.(map[string]any)["items"].([]lookupdomain.LookupValue)
	require.Len(t, items, 1)
	assert.Equal(t, "Hot", items[0].Name)

	result = f.dispatcher.Call(as(t1), "get_static_data", nil)
	require.True(t, result.Success, "%+v", result.Error)
	catalog := result.Data.(map[lookupdomain.Kind][]lookupdomain.LookupValue)
	assert.Len(t, catalog[lookupdomain.KindStatus], 1)

	requireFailure(t, f.dispatcher.Call(as(t1), "get_static_data", json.RawMessage(`{"kind": "planet"}`)), apperr.KindValidation, "kind")
}

func TestGetActivitiesViews(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	t1 := f.onboard(t, "Nile", "+201000000001")
	owner := t1.Owner.ID

	soon := f.clock.Now().Add(2 * time.Hour)
	late := f.clock.Now().Add(-2 * time.Hour)
	_, err := f.activities.Create(ctx, t1.Tenant.ID, owner, activitydomain.Draft{
		Type: activitydomain.TypeCall, Title: "Call back", DueAt: &soon, AssignedToID: &owner,
	})
	require.NoError(t, err)
	_, err = f.activities.Create(ctx, t1.Tenant.ID, owner, activitydomain.Draft{
		Type: activitydomain.TypeTask, Title: "Send contract", DueAt: &late, AssignedToID: &owner,
	})
	require.NoError(t, err)

	count := func(args string) int {
		t.Helper()
		result := f.dispatcher.Call(as(t1), "get_activities", json.RawMessage(args))
		require.True(t, result.Success, "%+v", result.Error)
		switch data := result.Data.(type) {
		case map[string]any:
			return len(data["items"].([]activitydomain.Activity))
		case *activitydomain.ListResult:
			return len(data.Items)
		}
		t.Fatalf("unexpected data %T", result.Data)
		return 0
	}

	assert.Equal(t, 2, count(`{}`))
	assert.Equal(t, 1, count(`{"view": "upcoming", "days": 1, "mine": true}`))
	assert.Equal(t, 1, count(`{"view": "overdue"}`))
	assert.Equal(t, 1, count(`{"type": "call"}`))
}

func TestGetStats(t *testing.T) {
	f := newFixture(t)
	t1 := f.onboard(t, "Nile", "+201000000001")
	f.listing(t, t1.Tenant.ID, "Villa", true)
	f.listing(t, t1.Tenant.ID, "Flat", false)

	result := f.dispatcher.Call(as(t1), "get_stats", json.RawMessage(`{"include_recent": true}`))
	require.True(t, result.Success, "%+v", result.Error)
	stats := result.Data.(statsResponse)
	assert.EqualValues(t, 2, stats.Properties.Total)
	assert.EqualValues(t, 1, stats.Properties.Public)
	assert.Len(t, stats.RecentProperties, 2)

	result = f.dispatcher.Call(as(t1), "get_property_statistics", json.RawMessage(`{}`))
	require.True(t, result.Success, "%+v", result.Error)
	assert.EqualValues(t, 2, result.Data.(querydomain.PropertyStats).Total)
}
