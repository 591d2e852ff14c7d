package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Type string

const (
	TypeTask    Type = "task"
	TypeNote    Type = "note"
	TypeMeeting Type = "meeting"
	TypeCall    Type = "call"
)

func (t Type) Valid() bool {
	switch t {
	case TypeTask, TypeNote, TypeMeeting, TypeCall:
		return true
	}
	return false
}

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// RelatedType names the record an activity hangs off.
type RelatedType string

const (
	RelatedLead     RelatedType = "lead"
	RelatedProperty RelatedType = "property"
)

func (r RelatedType) Valid() bool {
	return r == RelatedLead || r == RelatedProperty
}

type Activity struct {
	ID           snowflake.ID  `gorm:"primaryKey" json:"id"`
	TenantID     snowflake.ID  `gorm:"not null;index:idx_activities_tenant_created,priority:1" json:"tenant_id"`
	Type         Type          `gorm:"type:varchar(20);not null" json:"type"`
	Title        string        `gorm:"not null" json:"title"`
	Description  string        `json:"description,omitempty"`
	Status       Status        `gorm:"type:varchar(20);not null;index" json:"status"`
	Priority     Priority      `gorm:"type:varchar(20);not null" json:"priority"`
	DueAt        *time.Time    `gorm:"index" json:"due_at,omitempty"`
	CompletedAt  *time.Time    `json:"completed_at,omitempty"`
	RelatedType  RelatedType   `gorm:"type:varchar(20)" json:"related_type,omitempty"`
	RelatedID    *snowflake.ID `gorm:"index" json:"related_id,omitempty"`
	AssignedToID *snowflake.ID `gorm:"index" json:"assigned_to_id,omitempty"`
	CreatedBy    snowflake.ID  `json:"created_by"`
	CreatedAt    time.Time     `gorm:"not null;index:idx_activities_tenant_created,priority:2" json:"created_at"`
	UpdatedAt    time.Time     `gorm:"not null" json:"updated_at"`
}
