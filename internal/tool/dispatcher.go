package tool

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/bwmarrin/snowflake"
	activitydomain "github.com/smallbiznis/estately/internal/activity/domain"
	"github.com/smallbiznis/estately/internal/apperr"
	leaddomain "github.com/smallbiznis/estately/internal/lead/domain"
	lookupdomain "github.com/smallbiznis/estately/internal/lookup/domain"
	obscontext "github.com/smallbiznis/estately/internal/observability/context"
	"github.com/smallbiznis/estately/internal/observability/logger"
	"github.com/smallbiznis/estately/internal/observability/metrics"
	propertydomain "github.com/smallbiznis/estately/internal/property/domain"
	querydomain "github.com/smallbiznis/estately/internal/query/domain"
	tenantdomain "github.com/smallbiznis/estately/internal/tenant/domain"
	"github.com/smallbiznis/estately/pkg/tenantctx"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type handler func(ctx context.Context, caller tenantctx.Caller, raw json.RawMessage) (any, error)

type entry struct {
	Descriptor
	run handler
}

// typed binds the raw arguments into A before calling fn.
func typed[A any](fn func(ctx context.Context, caller tenantctx.Caller, args A) (any, error)) handler {
	return func(ctx context.Context, caller tenantctx.Caller, raw json.RawMessage) (any, error) {
		var args A
		if err := bind(raw, &args); err != nil {
			return nil, err
		}
		return fn(ctx, caller, args)
	}
}

type Params struct {
	fx.In

	Log         *zap.Logger
	Properties  propertydomain.Service
	Leads       leaddomain.Service
	Tenants     tenantdomain.Service
	Lookups     lookupdomain.Service
	Activities  activitydomain.Service
	Queries     querydomain.Service
	Metrics     *metrics.Metrics     `optional:"true"`
	ToolMetrics *metrics.ToolMetrics `optional:"true"`
}

// Dispatcher routes named tool calls to the services. The caller identity is
// read from the context; tools that are not public need a tenant user.
type Dispatcher struct {
	log         *zap.Logger
	properties  propertydomain.Service
	leads       leaddomain.Service
	tenants     tenantdomain.Service
	lookups     lookupdomain.Service
	activities  activitydomain.Service
	queries     querydomain.Service
	metrics     *metrics.Metrics
	toolMetrics *metrics.ToolMetrics
	tools       map[string]entry
}

func New(p Params) *Dispatcher {
	d := &Dispatcher{
		log:         p.Log.Named("tool.dispatcher"),
		properties:  p.Properties,
		leads:       p.Leads,
		tenants:     p.Tenants,
		lookups:     p.Lookups,
		activities:  p.Activities,
		queries:     p.Queries,
		metrics:     p.Metrics,
		toolMetrics: p.ToolMetrics,
	}
	d.tools = map[string]entry{}
	d.register("get_properties", "Search listings with filters and offset paging.", true, typed(d.getProperties))
	d.register("get_property", "Fetch one listing by id.", true, typed(d.getProperty))
	d.register("search_nearby", "Listings within a radius of a point, nearest first.", true, typed(d.searchNearby))
	d.register("get_property_statistics", "Listing counts and value rollup for the caller's tenant.", false, typed(d.getPropertyStatistics))
	d.register("get_leads", "Tenant leads with filters and cursor paging.", false, typed(d.getLeads))
	d.register("get_my_leads", "Leads assigned to the caller.", false, typed(d.getMyLeads))
	d.register("get_users", "Team members of the caller's tenant.", false, typed(d.getUsers))
	d.register("get_activities", "Activities as a filtered list, or the upcoming and overdue views.", false, typed(d.getActivities))
	d.register("get_stats", "Full tenant statistics.", false, typed(d.getStats))
	d.register("get_dashboard_stats", "Dashboard counters for the caller.", false, typed(d.getDashboardStats))
	d.register("get_static_data", "Active lookup values, one kind or the whole catalog.", true, typed(d.getStaticData))
	d.register("upsert_lookup", "Create or update a lookup value.", false, typed(d.upsertLookup))
	d.register("assign_lead", "Assign a lead to a team member.", false, typed(d.assignLead))
	d.register("set_property_visibility", "Publish or unpublish a listing.", false, typed(d.setPropertyVisibility))
	return d
}

func (d *Dispatcher) register(name, description string, public bool, run handler) {
	d.tools[name] = entry{Descriptor: Descriptor{Name: name, Description: description, Public: public}, run: run}
}

// Tools lists the registered tools by name.
func (d *Dispatcher) Tools() []Descriptor {
	out := make([]Descriptor, 0, len(d.tools))
	for _, e := range d.tools {
		out = append(out, e.Descriptor)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Call runs one tool. Failures are reported in the Result, never as a Go error.
func (d *Dispatcher) Call(ctx context.Context, name string, raw json.RawMessage) Result {
	start := time.Now()
	caller := tenantctx.FromContext(ctx)
	ctx = obscontext.WithTool(ctx, name)

	data, err := d.call(ctx, caller, name, raw)
	kind := apperr.KindOf(err)
	outcome := string(kind)
	if outcome == "" {
		outcome = "ok"
	}
	d.toolMetrics.Observe(name, outcome, time.Since(start))
	d.metrics.RecordToolCall(ctx, name, outcome, caller.Anonymous())

	if err != nil {
		log := logger.WithContext(ctx, d.log)
		if kind == apperr.KindInternal || kind == apperr.KindConnection {
			log.Error("tool call failed", zap.String("kind", outcome), zap.Error(err))
		} else {
			log.Debug("tool call rejected", zap.String("kind", outcome), zap.Error(err))
		}
		return failure(err)
	}
	return success(data)
}

func (d *Dispatcher) call(ctx context.Context, caller tenantctx.Caller, name string, raw json.RawMessage) (any, error) {
	e, ok := d.tools[name]
	if !ok {
		return nil, apperr.NotFound(entityTool)
	}
	if !e.Public {
		if caller.Anonymous() {
			return nil, apperr.Forbidden(entityTool, ErrAuthRequired)
		}
		if caller.UserID == 0 {
			return nil, apperr.Forbidden(entityTool, ErrUserRequired)
		}
	}
	return e.run(ctx, caller, raw)
}

func (d *Dispatcher) getProperties(ctx context.Context, caller tenantctx.Caller, a getPropertiesArgs) (any, error) {
	return d.properties.Search(ctx, propertydomain.SearchFilter{
		MinPrice:         a.MinPrice,
		MaxPrice:         a.MaxPrice,
		MinArea:          a.MinArea,
		MaxArea:          a.MaxArea,
		Bedrooms:         a.Bedrooms,
		Bathrooms:        a.Bathrooms,
		CategoryID:       a.CategoryID,
		TypeID:           a.TypeID,
		RegionID:         a.RegionID,
		StatusID:         a.StatusID,
		ListingPurposeID: a.ListingPurposeID,
		Query:            a.Query,
		IsPublic:         a.IsPublic,
		IsFeatured:       a.IsFeatured,
		IncludePublic:    a.IncludePublic,
		Limit:            a.Limit,
		Offset:           a.Offset,
	}, caller.TenantID)
}

func (d *Dispatcher) getProperty(ctx context.Context, caller tenantctx.Caller, a getPropertyArgs) (any, error) {
	return d.properties.Get(ctx, a.ID, caller.TenantID)
}

func (d *Dispatcher) searchNearby(ctx context.Context, caller tenantctx.Caller, a searchNearbyArgs) (any, error) {
	results, err := d.queries.Nearby(ctx, querydomain.NearbyRequest{
		Lat:        *a.Lat,
		Lon:        *a.Lon,
		RadiusKm:   a.RadiusKm,
		Limit:      a.Limit,
		PublicOnly: a.PublicOnly || caller.Anonymous(),
		TenantID:   caller.TenantID,
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{"items": results}, nil
}

func (d *Dispatcher) getPropertyStatistics(ctx context.Context, caller tenantctx.Caller, _ emptyArgs) (any, error) {
	stats, err := d.queries.Statistics(ctx, caller.TenantID)
	if err != nil {
		return nil, err
	}
	return stats.Properties, nil
}

func (d *Dispatcher) getLeads(ctx context.Context, caller tenantctx.Caller, a getLeadsArgs) (any, error) {
	return d.leads.List(ctx, caller.TenantID, leaddomain.ListFilter{
		Status:       leaddomain.Status(a.Status),
		Source:       leaddomain.Source(a.Source),
		AssignedToID: a.AssignedToID,
		PropertyID:   a.PropertyID,
		Pagination:   a.page(),
	})
}

func (d *Dispatcher) getMyLeads(ctx context.Context, caller tenantctx.Caller, a getMyLeadsArgs) (any, error) {
	return d.leads.ListByAssignee(ctx, caller.UserID, caller.TenantID, a.page())
}

func (d *Dispatcher) getUsers(ctx context.Context, caller tenantctx.Caller, a getUsersArgs) (any, error) {
	users, err := d.tenants.ListUsers(ctx, caller.TenantID, tenantdomain.UserFilter{
		Role:   tenantdomain.Role(a.Role),
		Status: tenantdomain.UserStatus(a.Status),
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{"items": users}, nil
}

func (d *Dispatcher) getActivities(ctx context.Context, caller tenantctx.Caller, a getActivitiesArgs) (any, error) {
	var assignee snowflake.ID
	switch {
	case a.Mine:
		assignee = caller.UserID
	case a.AssignedToID != nil:
		assignee = *a.AssignedToID
	}

	switch a.View {
	case "upcoming":
		items, err := d.activities.Upcoming(ctx, caller.TenantID, assignee, time.Duration(a.Days)*24*time.Hour)
		if err != nil {
			return nil, err
		}
		return map[string]any{"items": items}, nil
	case "overdue":
		items, err := d.activities.Overdue(ctx, caller.TenantID, assignee)
		if err != nil {
			return nil, err
		}
		return map[string]any{"items": items}, nil
	}

	filter := activitydomain.ListFilter{
		Status:      activitydomain.Status(a.Status),
		Type:        activitydomain.Type(a.Type),
		RelatedType: activitydomain.RelatedType(a.RelatedType),
		RelatedID:   a.RelatedID,
		Pagination:  a.page(),
	}
	if assignee != 0 {
		filter.AssignedToID = &assignee
	}
	return d.activities.List(ctx, caller.TenantID, filter)
}

type statsResponse struct {
	*querydomain.Statistics
	RecentProperties []propertydomain.Property `json:"recent_properties,omitempty"`
	RecentActivities []activitydomain.Activity `json:"recent_activities,omitempty"`
}

func (d *Dispatcher) getStats(ctx context.Context, caller tenantctx.Caller, a getStatsArgs) (any, error) {
	stats, err := d.queries.Statistics(ctx, caller.TenantID)
	if err != nil {
		return nil, err
	}
	resp := statsResponse{Statistics: stats}
	if a.IncludeRecent {
		dashboard, err := d.queries.DashboardStats(ctx, caller.TenantID, 0)
		if err != nil {
			return nil, err
		}
		resp.RecentProperties = dashboard.RecentProperties
		resp.RecentActivities = dashboard.RecentActivities
	}
	return resp, nil
}

func (d *Dispatcher) getDashboardStats(ctx context.Context, caller tenantctx.Caller, _ emptyArgs) (any, error) {
	return d.queries.DashboardStats(ctx, caller.TenantID, caller.UserID)
}

func (d *Dispatcher) getStaticData(ctx context.Context, caller tenantctx.Caller, a getStaticDataArgs) (any, error) {
	if a.Kind == "" {
		return d.lookups.Catalog(ctx, caller.TenantID)
	}
	kind := lookupdomain.Kind(a.Kind)
	if !kind.Valid() {
		return nil, apperr.Validation(entityTool, "kind", lookupdomain.ErrInvalidKind)
	}
	items, err := d.lookups.ListActive(ctx, kind, caller.TenantID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"kind": kind, "items": items}, nil
}

func (d *Dispatcher) upsertLookup(ctx context.Context, caller tenantctx.Caller, a upsertLookupArgs) (any, error) {
	return d.lookups.Upsert(ctx, lookupdomain.UpsertRequest{
		Kind:          lookupdomain.Kind(a.Kind),
		TenantID:      caller.TenantID,
		ActorID:       caller.UserID,
		ParentID:      a.ParentID,
		Name:          a.Name,
		NameLocalized: a.NameLocalized,
		Color:         a.Color,
		Code:          a.Code,
		Symbol:        a.Symbol,
		SortOrder:     a.SortOrder,
		Attributes:    a.Attributes,
	})
}

func (d *Dispatcher) assignLead(ctx context.Context, caller tenantctx.Caller, a assignLeadArgs) (any, error) {
	return d.leads.Assign(ctx, a.LeadID, caller.TenantID, caller.UserID, a.UserID)
}

func (d *Dispatcher) setPropertyVisibility(ctx context.Context, caller tenantctx.Caller, a setPropertyVisibilityArgs) (any, error) {
	return d.properties.SetVisibility(ctx, a.PropertyID, caller.TenantID, caller.UserID, *a.IsPublic)
}
