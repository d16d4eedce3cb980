package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DealStatus is derived from the stage a deal was last moved into.
type DealStatus string

const (
	DealOpen DealStatus = "open"
	DealWon  DealStatus = "won"
	DealLost DealStatus = "lost"
)

type Deal struct {
	ID                string          `json:"id"`
	Name              string          `json:"name"`
	Value             decimal.Decimal `json:"value"`
	Currency          string          `json:"currency"`
	PipelineID        string          `json:"pipeline_id"`
	StageID           *string         `json:"stage_id"`
	ContactID         *string         `json:"contact_id"`
	CompanyID         *string         `json:"company_id"`
	ExpectedCloseDate *time.Time      `json:"expected_close_date"`
	ActualCloseDate   *time.Time      `json:"actual_close_date"`
	Probability       int             `json:"probability"`
	Status            DealStatus      `json:"status"`
	LossReason        *string         `json:"loss_reason"`
	Description       *string         `json:"description"`
	Tags              []string        `json:"tags"`
	OwnerID           *string         `json:"owner_id"`
	CreatedBy         *string         `json:"created_by"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`

	// joined on read
	Contact *ContactRef `json:"contact,omitempty"`
	Company *CompanyRef `json:"company,omitempty"`
	Stage   *Stage      `json:"stage,omitempty"`
}

// DealFilter narrows a deal listing. Zero values mean "no filter".
type DealFilter struct {
	PipelineID string
	StageID    string
	Status     DealStatus
	Query      string
	Limit      int
}
