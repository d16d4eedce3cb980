package models

import "time"

type Pipeline struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	IsDefault   bool      `json:"is_default"`
	CreatedBy   *string   `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Stage is one column of a pipeline board. Position orders the board left
// to right and is unique within a pipeline.
type Stage struct {
	ID          string    `json:"id"`
	PipelineID  string    `json:"pipeline_id"`
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	Color       string    `json:"color"`
	Probability int       `json:"probability"`
	Position    int       `json:"position"`
	IsWon       bool      `json:"is_won"`
	IsLost      bool      `json:"is_lost"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
