package models

import "time"

type LeadStatus string

const (
	LeadNew         LeadStatus = "new"
	LeadContacted   LeadStatus = "contacted"
	LeadQualified   LeadStatus = "qualified"
	LeadUnqualified LeadStatus = "unqualified"
	LeadConverted   LeadStatus = "converted"
)

// LeadStatuses lists every status in funnel order.
var LeadStatuses = []LeadStatus{LeadNew, LeadContacted, LeadQualified, LeadUnqualified, LeadConverted}

type Lead struct {
	ID                 string     `json:"id"`
	FirstName          string     `json:"first_name"`
	LastName           *string    `json:"last_name"`
	Email              *string    `json:"email"`
	Phone              *string    `json:"phone"`
	CompanyName        *string    `json:"company_name"`
	JobTitle           *string    `json:"job_title"`
	LeadSource         *string    `json:"lead_source"`
	Status             LeadStatus `json:"status"`
	Score              int        `json:"score"`
	Description        *string    `json:"description"`
	Website            *string    `json:"website"`
	Tags               []string   `json:"tags"`
	ConvertedContactID *string    `json:"converted_contact_id"`
	ConvertedDealID    *string    `json:"converted_deal_id"`
	ConvertedAt        *time.Time `json:"converted_at"`
	OwnerID            *string    `json:"owner_id"`
	CreatedBy          *string    `json:"created_by"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

type LeadFilter struct {
	Query  string
	Status LeadStatus
}
