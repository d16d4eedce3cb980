// Package pipeline holds the deal stage state machine and the board
// aggregations. Everything here is pure: no I/O, no clocks, no caching.
package pipeline

import (
	"sort"
	"time"

	"crmhub/internal/models"
)

// Transition returns a copy of deal moved into stage.
//
// A won stage closes the deal as won and a lost stage closes it as lost,
// both stamping actual_close_date with now. Any other stage only changes
// stage_id: a closed deal moved back to a neutral stage keeps its status
// and close date. No move is ever rejected.
func Transition(deal models.Deal, stage models.Stage, now time.Time) models.Deal {
	next := deal
	stageID := stage.ID
	next.StageID = &stageID
	next.Stage = nil

	switch {
	case stage.IsWon:
		next.Status = models.DealWon
		closed := now
		next.ActualCloseDate = &closed
	case stage.IsLost:
		next.Status = models.DealLost
		closed := now
		next.ActualCloseDate = &closed
	}
	return next
}

// SortStages orders stages by position, keeping input order for ties.
// The input slice is not modified.
func SortStages(stages []models.Stage) []models.Stage {
	out := make([]models.Stage, len(stages))
	copy(out, stages)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out
}

// FirstStage returns the stage with the lowest position.
func FirstStage(stages []models.Stage) (models.Stage, bool) {
	if len(stages) == 0 {
		return models.Stage{}, false
	}
	return SortStages(stages)[0], true
}

// FindStage looks a stage up by id.
func FindStage(stages []models.Stage, id string) (models.Stage, bool) {
	for _, s := range stages {
		if s.ID == id {
			return s, true
		}
	}
	return models.Stage{}, false
}
