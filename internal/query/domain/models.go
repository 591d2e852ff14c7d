package domain

import (
	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	activitydomain "github.com/smallbiznis/estately/internal/activity/domain"
	propertydomain "github.com/smallbiznis/estately/internal/property/domain"
)

// Unassigned names the bucket of rows with no lookup value set.
const Unassigned = "unassigned"

// Bucket counts rows sharing one lookup value. ID is nil for Unassigned.
type Bucket struct {
	ID    *snowflake.ID `json:"id,omitempty"`
	Name  string        `json:"name"`
	Count int64         `json:"count"`
}

type ValueStats struct {
	Sum decimal.Decimal `json:"sum"`
	Avg decimal.Decimal `json:"avg"`
	Min decimal.Decimal `json:"min"`
	Max decimal.Decimal `json:"max"`
}

type PropertyStats struct {
	Total      int64      `json:"total"`
	Public     int64      `json:"public"`
	Private    int64      `json:"private"`
	ByStatus   []Bucket   `json:"by_status"`
	ByCategory []Bucket   `json:"by_category"`
	ByType     []Bucket   `json:"by_type"`
	ByRegion   []Bucket   `json:"by_region"`
	Value      ValueStats `json:"value"`
}

type LeadStats struct {
	Total    int64            `json:"total"`
	ByStatus map[string]int64 `json:"by_status"`
	BySource map[string]int64 `json:"by_source"`
}

type TeamStats struct {
	Total  int64            `json:"total"`
	Active int64            `json:"active"`
	ByRole map[string]int64 `json:"by_role"`
}

// Statistics is a tenant rollup computed from aggregate queries only.
type Statistics struct {
	Properties PropertyStats `json:"properties"`
	Leads      LeadStats     `json:"leads"`
	Team       TeamStats     `json:"team"`
}

type Dashboard struct {
	Properties          int64                     `json:"properties"`
	PublicProperties    int64                     `json:"public_properties"`
	Leads               int64                     `json:"leads"`
	NewLeads            int64                     `json:"new_leads"`
	TeamMembers         int64                     `json:"team_members"`
	MyOpenLeads         int64                     `json:"my_open_leads"`
	MyPendingActivities int64                     `json:"my_pending_activities"`
	MyOverdueActivities int64                     `json:"my_overdue_activities"`
	RecentProperties    []propertydomain.Property `json:"recent_properties"`
	RecentActivities    []activitydomain.Activity `json:"recent_activities"`
}

// NearbyRequest centers a radius search on Lat/Lon. PublicOnly restricts
// results to public listings; otherwise TenantID's own listings are included.
type NearbyRequest struct {
	Lat        float64
	Lon        float64
	RadiusKm   float64
	Limit      int
	PublicOnly bool
	TenantID   snowflake.ID
}

type NearbyResult struct {
	Property   propertydomain.Property `json:"property"`
	DistanceKm float64                 `json:"distance_km"`
}

// Box is a latitude/longitude rectangle, inclusive on every edge, around
// the point Lat/Lon. LonScale is cos(Lat), used to order rows by planar
// distance from the point.
type Box struct {
	Lat, Lon       float64
	LonScale       float64
	MinLat, MaxLat float64
	MinLon, MaxLon float64
}
