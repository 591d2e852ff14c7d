package seed

import lookupdomain "github.com/smallbiznis/estately/internal/lookup/domain"

type entry struct {
	Name   string
	Color  string
	Code   string
	Symbol string
}

type group struct {
	Kind    lookupdomain.Kind
	Entries []entry
}

func names(values ...string) []entry {
	out := make([]entry, 0, len(values))
	for _, v := range values {
		out = append(out, entry{Name: v})
	}
	return out
}

// sharedCatalog is owned by no tenant and visible to all of them.
var sharedCatalog = []group{
	{Kind: lookupdomain.KindCurrency, Entries: []entry{
		{Name: "Egyptian Pound", Code: "EGP", Symbol: "E£"},
		{Name: "US Dollar", Code: "USD", Symbol: "$"},
		{Name: "Euro", Code: "EUR", Symbol: "€"},
	}},
}

// tenantCatalog is copied into every tenant.
var tenantCatalog = []group{
	{Kind: lookupdomain.KindCategory, Entries: names(
		"Residential", "Administrative", "Commercial", "Clinics",
		"Residential + Office", "Mixed Use",
	)},
	{Kind: lookupdomain.KindType, Entries: names(
		"Apartment Compound", "Apartment Out", "Standalone Compound", "Villa Out",
		"Townhouse", "Townhouse Corner", "Twin House", "Duplex Gb", "Duplex Gf",
		"Duplex Roof", "Roof", "Studio", "Office Space", "Clinic", "Admin Building",
		"Admin Retail Building", "Retail", "Retail Building", "Basement", "Factory",
		"Pharmacy", "Chalet", "I Villa G", "I Villa R", "Land", "Gas Station",
		"Building", "Hospital",
	)},
	{Kind: lookupdomain.KindStatus, Entries: []entry{
		{Name: "For Sale", Color: "#3b82f6"},
		{Name: "For Rent", Color: "#10b981"},
		{Name: "Sold Out", Color: "#ef4444"},
		{Name: "Now Rented", Color: "#8b5cf6"},
		{Name: "Hold", Color: "#f59e0b"},
		{Name: "Recycle", Color: "#6b7280"},
		{Name: "Unknown", Color: "#9ca3af"},
	}},
	{Kind: lookupdomain.KindFinishingStatus, Entries: names(
		"Fully Finished", "Semi Finished", "Fully Furnished", "Skeleton", "Semi Furnished",
	)},
	{Kind: lookupdomain.KindRegion, Entries: names(
		"New Cairo", "Katameya", "5th Settlement", "West Golf", "Hyde Park",
		"Mivida", "Uptown Cairo", "Stella Heights", "Marassi", "North Coast",
		"Ain Sokhna", "6th of October", "Maadi", "Heliopolis", "Zamalek",
		"Nasr City", "Rehab City", "Shorouk", "Helwan", "Tagamoa",
		"Mountain View", "Palm Hills", "Sodic", "Emaar", "Compound 90",
		"Eastown", "Cairo Festival City", "Allegria", "Sheikh Zayed",
		"Downtown", "Garden City", "Mohandessin", "Dokki", "Agouza",
		"Giza", "Smart Village", "New Zayed",
	)},
	{Kind: lookupdomain.KindListingPurpose, Entries: names("Sale", "Rent", "Resale")},
	{Kind: lookupdomain.KindPriorityLevel, Entries: []entry{
		{Name: "Low", Color: "#6b7280"},
		{Name: "Medium", Color: "#3b82f6"},
		{Name: "High", Color: "#f59e0b"},
		{Name: "Urgent", Color: "#ef4444"},
	}},
}
