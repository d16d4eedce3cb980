package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Company represents a counterparty organisation.
type Company struct {
	ID            string               `json:"id"`
	Name          string               `json:"name"`
	Domain        *string              `json:"domain"`
	Industry      *string              `json:"industry"`
	Size          *string              `json:"size"`
	Website       *string              `json:"website"`
	Phone         *string              `json:"phone"`
	Email         *string              `json:"email"`
	Description   *string              `json:"description"`
	AnnualRevenue decimal.NullDecimal  `json:"annual_revenue"`
	FoundedYear   *int                 `json:"founded_year"`
	Tags          []string             `json:"tags"`
	OwnerID       *string              `json:"owner_id"`
	CreatedBy     *string              `json:"created_by"`
	CreatedAt     time.Time            `json:"created_at"`
	UpdatedAt     time.Time            `json:"updated_at"`
}

// CompanyRef is the slice of a company embedded into joined rows.
type CompanyRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type CompanyFilter struct {
	Query    string
	Industry string
}
