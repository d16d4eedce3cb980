package models

import "time"

type Contact struct {
	ID              string     `json:"id"`
	FirstName       string     `json:"first_name"`
	LastName        *string    `json:"last_name"`
	Email           *string    `json:"email"`
	Phone           *string    `json:"phone"`
	Mobile          *string    `json:"mobile"`
	JobTitle        *string    `json:"job_title"`
	Department      *string    `json:"department"`
	CompanyID       *string    `json:"company_id"`
	LeadSource      *string    `json:"lead_source"`
	Status          string     `json:"status"`
	Description     *string    `json:"description"`
	Tags            []string   `json:"tags"`
	LastContactedAt *time.Time `json:"last_contacted_at"`
	OwnerID         *string    `json:"owner_id"`
	CreatedBy       *string    `json:"created_by"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`

	Company *CompanyRef `json:"company,omitempty"`
}

type ContactRef struct {
	ID        string  `json:"id"`
	FirstName string  `json:"first_name"`
	LastName  *string `json:"last_name"`
	Email     *string `json:"email"`
}

type ContactFilter struct {
	Query     string
	Status    string
	CompanyID string
}
