package models

import "time"

type ActivityType string

const (
	ActivityCall    ActivityType = "call"
	ActivityEmail   ActivityType = "email"
	ActivityMeeting ActivityType = "meeting"
	ActivityNote    ActivityType = "note"
)

// Activities share the pending/completed statuses of tasks.
type Activity struct {
	ID              string       `json:"id"`
	Type            ActivityType `json:"type"`
	Subject         string       `json:"subject"`
	Description     *string      `json:"description"`
	Status          TaskStatus   `json:"status"`
	DueDate         *time.Time   `json:"due_date"`
	CompletedAt     *time.Time   `json:"completed_at"`
	DurationMinutes *int         `json:"duration_minutes"`
	Outcome         *string      `json:"outcome"`
	ContactID       *string      `json:"contact_id"`
	CompanyID       *string      `json:"company_id"`
	DealID          *string      `json:"deal_id"`
	LeadID          *string      `json:"lead_id"`
	AssignedTo      *string      `json:"assigned_to"`
	CreatedBy       *string      `json:"created_by"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

type ActivityFilter struct {
	Query  string
	Type   ActivityType
	Status TaskStatus
	DealID string
	Limit  int
}

func (t ActivityType) Valid() bool {
	switch t {
	case ActivityCall, ActivityEmail, ActivityMeeting, ActivityNote:
		return true
	}
	return false
}
