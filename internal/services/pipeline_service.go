package services

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"crmhub/internal/models"
	"crmhub/internal/repositories"
)

type PipelineService struct {
	repo repositories.PipelineRepository
}

func NewPipelineService(repo repositories.PipelineRepository) *PipelineService {
	return &PipelineService{repo: repo}
}

// PipelineWithStages is a pipeline and its stages ordered by position.
type PipelineWithStages struct {
	models.Pipeline
	Stages []models.Stage `json:"stages"`
}

func (s *PipelineService) List(ctx context.Context) ([]models.Pipeline, error) {
	return s.repo.List(ctx)
}

// Resolve returns the pipeline with the given id, or the default one when id is empty.
func (s *PipelineService) Resolve(ctx context.Context, id string) (*PipelineWithStages, error) {
	var (
		p   *models.Pipeline
		err error
	)
	if id == "" {
		p, err = s.repo.Default(ctx)
	} else {
		p, err = s.repo.GetByID(ctx, id)
	}
	if err != nil {
		return nil, err
	}
	stages, err := s.repo.ListStages(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	return &PipelineWithStages{Pipeline: *p, Stages: stages}, nil
}

type StageInput struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Color       *string `json:"color"`
	Probability *int    `json:"probability"`
	Position    *int    `json:"position"`
	IsWon       *bool   `json:"is_won"`
	IsLost      *bool   `json:"is_lost"`
}

func (in StageInput) apply(st *models.Stage) error {
	if in.Name != nil {
		st.Name = strings.TrimSpace(*in.Name)
	}
	if in.Description != nil {
		st.Description = in.Description
	}
	if in.Color != nil {
		st.Color = *in.Color
	}
	if in.Probability != nil {
		st.Probability = *in.Probability
	}
	if in.Position != nil {
		st.Position = *in.Position
	}
	if in.IsWon != nil {
		st.IsWon = *in.IsWon
	}
	if in.IsLost != nil {
		st.IsLost = *in.IsLost
	}

	if st.Name == "" {
		return invalid("stage name is required")
	}
	if st.Probability < 0 || st.Probability > 100 {
		return invalid("probability must be between 0 and 100")
	}
	if st.IsWon && st.IsLost {
		return invalid("a stage cannot be both won and lost")
	}
	return nil
}

// CreateStage appends a stage; without an explicit position it goes last.
func (s *PipelineService) CreateStage(ctx context.Context, pipelineID string, in StageInput) (*models.Stage, error) {
	p, err := s.Resolve(ctx, pipelineID)
	if err != nil {
		return nil, err
	}
	st := &models.Stage{
		ID:         uuid.NewString(),
		PipelineID: p.ID,
		Color:      "#6366f1",
	}
	if in.Position == nil {
		next := 0
		for _, existing := range p.Stages {
			if existing.Position >= next {
				next = existing.Position + 1
			}
		}
		st.Position = next
	}
	if err := in.apply(st); err != nil {
		return nil, err
	}
	if err := s.repo.CreateStage(ctx, st); err != nil {
		return nil, err
	}
	return st, nil
}

// stageOf loads a stage and checks it belongs to pipelineID ("" is the
// default pipeline).
func (s *PipelineService) stageOf(ctx context.Context, pipelineID, id string) (*models.Stage, error) {
	p, err := s.Resolve(ctx, pipelineID)
	if err != nil {
		return nil, err
	}
	st, err := s.repo.GetStage(ctx, id)
	if err != nil {
		return nil, err
	}
	if st.PipelineID != p.ID {
		return nil, ErrStageNotInPipeline
	}
	return st, nil
}

func (s *PipelineService) UpdateStage(ctx context.Context, pipelineID, id string, in StageInput) (*models.Stage, error) {
	st, err := s.stageOf(ctx, pipelineID, id)
	if err != nil {
		return nil, err
	}
	if err := in.apply(st); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateStage(ctx, st); err != nil {
		return nil, err
	}
	return st, nil
}

func (s *PipelineService) DeleteStage(ctx context.Context, pipelineID, id string) error {
	if _, err := s.stageOf(ctx, pipelineID, id); err != nil {
		return err
	}
	return s.repo.DeleteStage(ctx, id)
}
