package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/estately/pkg/db"
)

type Source string

const (
	SourceWebsite     Source = "website"
	SourceReferral    Source = "referral"
	SourceSocialMedia Source = "social_media"
	SourceWalkIn      Source = "walk_in"
	SourcePhone       Source = "phone"
	SourceOther       Source = "other"
)

func (s Source) Valid() bool {
	switch s {
	case SourceWebsite, SourceReferral, SourceSocialMedia, SourceWalkIn, SourcePhone, SourceOther:
		return true
	}
	return false
}

type Status string

const (
	StatusNew         Status = "new"
	StatusContacted   Status = "contacted"
	StatusQualified   Status = "qualified"
	StatusNegotiating Status = "negotiating"
	StatusWon         Status = "won"
	StatusLost        Status = "lost"
)

func (s Status) Valid() bool {
	switch s {
	case StatusNew, StatusContacted, StatusQualified, StatusNegotiating, StatusWon, StatusLost:
		return true
	}
	return false
}

// Lead is an inbound inquiry. PropertyID and AssignedToID, when set, always
// point at rows of the same tenant.
type Lead struct {
	ID           snowflake.ID        `gorm:"primaryKey" json:"id"`
	TenantID     snowflake.ID        `gorm:"not null;index:idx_leads_tenant_created,priority:1" json:"tenant_id"`
	Name         string              `gorm:"not null" json:"name"`
	Mobile       string              `gorm:"type:varchar(32);not null" json:"mobile"`
	Email        string              `json:"email,omitempty"`
	Source       Source              `gorm:"type:varchar(20);not null" json:"source"`
	Status       Status              `gorm:"type:varchar(20);not null;index" json:"status"`
	Notes        string              `json:"notes,omitempty"`
	BudgetMin    db.Money            `gorm:"precision:14;scale:2" json:"budget_min"`
	BudgetMax    db.Money            `gorm:"precision:14;scale:2" json:"budget_max"`
	PropertyID   *snowflake.ID       `gorm:"index" json:"property_id,omitempty"`
	AssignedToID *snowflake.ID       `gorm:"index" json:"assigned_to_id,omitempty"`
	CreatedBy    snowflake.ID        `json:"created_by"`
	CreatedAt    time.Time           `gorm:"not null;index:idx_leads_tenant_created,priority:2" json:"created_at"`
	UpdatedAt    time.Time           `gorm:"not null" json:"updated_at"`
}
