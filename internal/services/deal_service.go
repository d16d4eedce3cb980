package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"crmhub/internal/models"
	"crmhub/internal/pipeline"
	"crmhub/internal/realtime"
	"crmhub/internal/repositories"
)

// BoardPublisher receives a hint whenever a deal on a board changes.
type BoardPublisher interface {
	Publish(ev realtime.DealEvent)
}

// DealInput is the editable part of a deal. Nil fields are left as they
// are; an empty string clears a nullable field. Status and
// actual_close_date are not editable: they follow the stage.
type DealInput struct {
	Name              *string          `json:"name"`
	Value             *decimal.Decimal `json:"value"`
	Currency          *string          `json:"currency"`
	PipelineID        *string          `json:"pipeline_id"`
	StageID           *string          `json:"stage_id"`
	ContactID         *string          `json:"contact_id"`
	CompanyID         *string          `json:"company_id"`
	ExpectedCloseDate *string          `json:"expected_close_date"`
	Probability       *int             `json:"probability"`
	LossReason        *string          `json:"loss_reason"`
	Description       *string          `json:"description"`
	Tags              []string         `json:"tags"`
	OwnerID           *string          `json:"owner_id"`
}

// Board is the deals page: stage columns plus pipeline-wide metrics.
type Board struct {
	Pipeline models.Pipeline        `json:"pipeline"`
	Columns  []pipeline.StageColumn `json:"columns"`
	Metrics  pipeline.Metrics       `json:"metrics"`
}

type DealService struct {
	deals     repositories.DealRepository
	pipelines *PipelineService
	stages    repositories.PipelineRepository
	notifier  DealNotifier
	events    BoardPublisher
	log       *zap.Logger
	now       func() time.Time
}

func NewDealService(deals repositories.DealRepository, stages repositories.PipelineRepository, notifier DealNotifier, log *zap.Logger) *DealService {
	return &DealService{
		deals:     deals,
		pipelines: NewPipelineService(stages),
		stages:    stages,
		notifier:  notifier,
		log:       log,
		now:       time.Now,
	}
}

// WithEvents makes the service publish board events to p.
func (s *DealService) WithEvents(p BoardPublisher) *DealService {
	s.events = p
	return s
}

func (s *DealService) publish(t realtime.EventType, d models.Deal) {
	if s.events == nil {
		return
	}
	s.events.Publish(realtime.DealEvent{
		Type:       t,
		PipelineID: d.PipelineID,
		DealID:     d.ID,
		StageID:    d.StageID,
		Status:     d.Status,
	})
}

// ResolvePipeline returns pipelineID with its stages, or the default
// pipeline when pipelineID is empty.
func (s *DealService) ResolvePipeline(ctx context.Context, pipelineID string) (*PipelineWithStages, error) {
	return s.pipelines.Resolve(ctx, pipelineID)
}

func (s *DealService) Get(ctx context.Context, id string) (*models.Deal, error) {
	return s.deals.GetByID(ctx, id)
}

// List returns deals newest first, narrowed by the free-text query the
// way the board search does it.
func (s *DealService) List(ctx context.Context, f models.DealFilter) ([]models.Deal, error) {
	deals, err := s.deals.List(ctx, f)
	if err != nil {
		return nil, err
	}
	return pipeline.Search(deals, f.Query), nil
}

// Board groups the (searched) deals into the pipeline's columns. Metrics
// are computed over every deal, regardless of the search.
func (s *DealService) Board(ctx context.Context, pipelineID, q string) (*Board, error) {
	p, err := s.pipelines.Resolve(ctx, pipelineID)
	if err != nil {
		return nil, err
	}
	all, err := s.deals.List(ctx, models.DealFilter{})
	if err != nil {
		return nil, err
	}
	return &Board{
		Pipeline: p.Pipeline,
		Columns:  pipeline.GroupByStage(p.Stages, pipeline.Search(all, q)),
		Metrics:  pipeline.Summarize(all),
	}, nil
}

func (s *DealService) Metrics(ctx context.Context) (pipeline.Metrics, error) {
	all, err := s.deals.List(ctx, models.DealFilter{})
	if err != nil {
		return pipeline.Metrics{}, err
	}
	return pipeline.Summarize(all), nil
}

// stageIn resolves stageID inside p, telling an unknown stage apart from
// one that belongs to a different pipeline.
func (s *DealService) stageIn(ctx context.Context, p *PipelineWithStages, stageID string) (models.Stage, error) {
	if st, ok := pipeline.FindStage(p.Stages, stageID); ok {
		return st, nil
	}
	if _, err := s.stages.GetStage(ctx, stageID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return models.Stage{}, invalid("unknown stage %q", stageID)
		}
		return models.Stage{}, err
	}
	return models.Stage{}, ErrStageNotInPipeline
}

func (s *DealService) Create(ctx context.Context, in DealInput, createdBy string) (*models.Deal, error) {
	d, closed, err := s.prepare(ctx, in, createdBy)
	if err != nil {
		return nil, err
	}
	if err := s.deals.Create(ctx, d); err != nil {
		return nil, err
	}
	s.log.Info("[deal][create] ok", zap.String("id", d.ID), zap.String("status", string(d.Status)))
	s.publish(realtime.DealCreated, *d)
	if closed {
		s.notifyClosed(ctx, *d)
	}
	return s.deals.GetByID(ctx, d.ID)
}

// prepare builds a new, unsaved deal: default pipeline when none is given,
// the pipeline's first stage when no stage is given, and the stage's
// probability when none is given. closed reports whether the initial
// stage already closes the deal.
func (s *DealService) prepare(ctx context.Context, in DealInput, createdBy string) (d *models.Deal, closed bool, err error) {
	pipelineID := ""
	if in.PipelineID != nil {
		pipelineID = strings.TrimSpace(*in.PipelineID)
	}
	p, err := s.pipelines.Resolve(ctx, pipelineID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) && pipelineID != "" {
			return nil, false, invalid("unknown pipeline %q", pipelineID)
		}
		return nil, false, err
	}

	deal := models.Deal{
		ID:         uuid.NewString(),
		PipelineID: p.ID,
		Currency:   "USD",
		Status:     models.DealOpen,
		Value:      decimal.Zero,
		Tags:       []string{},
	}
	if createdBy != "" {
		deal.CreatedBy = &createdBy
		deal.OwnerID = &createdBy
	}

	var stage *models.Stage
	if id := optional(in.StageID); id != nil {
		st, err := s.stageIn(ctx, p, *id)
		if err != nil {
			return nil, false, err
		}
		stage = &st
	} else if st, ok := pipeline.FirstStage(p.Stages); ok {
		stage = &st
	}
	if in.Probability == nil && stage != nil {
		deal.Probability = stage.Probability
	}

	in.StageID, in.PipelineID = nil, nil
	if err := applyDealInput(&deal, in); err != nil {
		return nil, false, err
	}
	if deal.Name == "" {
		return nil, false, invalid("name is required")
	}

	// the initial placement is a stage move like any other
	if stage != nil {
		deal = pipeline.Transition(deal, *stage, s.now())
		closed = stage.IsWon || stage.IsLost
	}
	return &deal, closed, nil
}

// Update edits a deal. A stage change goes through the transition rule and
// lands in the same single write as the other fields.
func (s *DealService) Update(ctx context.Context, id string, in DealInput) (*models.Deal, error) {
	d, err := s.deals.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	prevPipeline := d.PipelineID
	targetPipeline := d.PipelineID
	if pid := optional(in.PipelineID); pid != nil {
		targetPipeline = *pid
	}
	var (
		target     *models.Stage
		clearStage bool
	)
	if sid := optional(in.StageID); sid != nil && (d.StageID == nil || *sid != *d.StageID || targetPipeline != d.PipelineID) {
		p, err := s.resolveTarget(ctx, targetPipeline)
		if err != nil {
			return nil, err
		}
		st, err := s.stageIn(ctx, p, *sid)
		if err != nil {
			return nil, err
		}
		target = &st
	} else if targetPipeline != d.PipelineID {
		p, err := s.resolveTarget(ctx, targetPipeline)
		if err != nil {
			return nil, err
		}
		if st, ok := pipeline.FirstStage(p.Stages); ok {
			target = &st
		} else {
			// в пустой воронке сделка остаётся без этапа
			clearStage = true
		}
	}

	in.StageID, in.PipelineID = nil, nil
	if err := applyDealInput(d, in); err != nil {
		return nil, err
	}
	d.PipelineID = targetPipeline
	switch {
	case target != nil:
		*d = pipeline.Transition(*d, *target, s.now())
	case clearStage:
		d.StageID = nil
		d.Stage = nil
	}

	if err := s.deals.Update(ctx, d); err != nil {
		return nil, err
	}
	if d.PipelineID != prevPipeline {
		// the old board loses the card
		s.publish(realtime.DealDeleted, models.Deal{ID: d.ID, PipelineID: prevPipeline})
	}
	s.publish(realtime.DealUpdated, *d)
	if target != nil && (target.IsWon || target.IsLost) {
		s.notifyClosed(ctx, *d)
	}
	return s.deals.GetByID(ctx, id)
}

// resolveTarget resolves the pipeline a deal is being moved into. An
// unknown id is bad input, not a missing deal.
func (s *DealService) resolveTarget(ctx context.Context, pipelineID string) (*PipelineWithStages, error) {
	p, err := s.pipelines.Resolve(ctx, pipelineID)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, invalid("unknown pipeline %q", pipelineID)
	}
	return p, err
}

// Move drops a deal onto another stage of its pipeline.
func (s *DealService) Move(ctx context.Context, id, stageID string) (*models.Deal, error) {
	d, err := s.deals.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	stage, err := s.stages.GetStage(ctx, stageID)
	if err != nil {
		return nil, err
	}
	if stage.PipelineID != d.PipelineID {
		return nil, ErrStageNotInPipeline
	}

	next := pipeline.Transition(*d, *stage, s.now())
	if err := s.deals.ApplyTransition(ctx, id, stage.ID, next.Status, next.ActualCloseDate); err != nil {
		s.log.Error("[deal][move] write failed", zap.String("id", id), zap.String("stage_id", stageID), zap.Error(err))
		return nil, err
	}
	next.Stage = stage
	s.log.Info("[deal][move] ok", zap.String("id", id), zap.String("stage_id", stage.ID), zap.String("status", string(next.Status)))
	s.publish(realtime.DealMoved, next)

	if stage.IsWon || stage.IsLost {
		s.notifyClosed(ctx, next)
	}
	return &next, nil
}

func (s *DealService) notifyClosed(ctx context.Context, d models.Deal) {
	if s.notifier != nil {
		s.notifier.DealClosed(ctx, d)
	}
}

func (s *DealService) Delete(ctx context.Context, id string) error {
	d, err := s.deals.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.deals.Delete(ctx, id); err != nil {
		return err
	}
	s.publish(realtime.DealDeleted, *d)
	return nil
}

func applyDealInput(d *models.Deal, in DealInput) error {
	if in.Name != nil {
		d.Name = strings.TrimSpace(*in.Name)
	}
	if in.Value != nil {
		if in.Value.IsNegative() {
			return invalid("value must not be negative")
		}
		d.Value = *in.Value
	}
	if in.Currency != nil {
		if c := strings.ToUpper(strings.TrimSpace(*in.Currency)); c != "" {
			d.Currency = c
		}
	}
	if in.ContactID != nil {
		d.ContactID = optional(in.ContactID)
	}
	if in.CompanyID != nil {
		d.CompanyID = optional(in.CompanyID)
	}
	if in.ExpectedCloseDate != nil {
		t, err := parseDate(*in.ExpectedCloseDate)
		if err != nil {
			return err
		}
		d.ExpectedCloseDate = t
	}
	if in.Probability != nil {
		if *in.Probability < 0 || *in.Probability > 100 {
			return invalid("probability must be between 0 and 100")
		}
		d.Probability = *in.Probability
	}
	if in.LossReason != nil {
		d.LossReason = optional(in.LossReason)
	}
	if in.Description != nil {
		d.Description = optional(in.Description)
	}
	if in.Tags != nil {
		d.Tags = in.Tags
	}
	if in.OwnerID != nil {
		d.OwnerID = optional(in.OwnerID)
	}
	return nil
}
