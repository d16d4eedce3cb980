package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crmhub/internal/repositories"
)

func TestResolveDefaultPipeline(t *testing.T) {
	f := newFixture(t)
	s := NewPipelineService(f.db.Pipelines())

	p, err := s.Resolve(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, repositories.DefaultPipelineID, p.ID)
	require.Len(t, p.Stages, 4)
	assert.Equal(t, stLead, p.Stages[0].ID)
	assert.Equal(t, stLost, p.Stages[3].ID)

	_, err = s.Resolve(context.Background(), "missing")
	assert.ErrorIs(t, err, repositories.ErrNotFound)
}

func TestCreateStageAppendsLast(t *testing.T) {
	f := newFixture(t)
	s := NewPipelineService(f.db.Pipelines())
	ctx := context.Background()

	st, err := s.CreateStage(ctx, "", StageInput{Name: ptr("Negotiation"), Probability: ptr(70)})
	require.NoError(t, err)
	assert.Equal(t, 6, st.Position)
	assert.Equal(t, repositories.DefaultPipelineID, st.PipelineID)

	_, err = s.CreateStage(ctx, "", StageInput{Name: ptr("Both"), IsWon: ptr(true), IsLost: ptr(true)})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = s.CreateStage(ctx, "", StageInput{Name: ptr("Odd"), Probability: ptr(120)})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = s.CreateStage(ctx, "", StageInput{})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestDeleteStageDetachesDeals(t *testing.T) {
	f := newFixture(t)
	s := NewPipelineService(f.db.Pipelines())
	ctx := context.Background()

	d, err := f.deals.Create(ctx, DealInput{Name: ptr("Orphan"), StageID: ptr(stProposal)}, "")
	require.NoError(t, err)

	updated, err := s.UpdateStage(ctx, "", stProposal, StageInput{Color: ptr("#ff0000")})
	require.NoError(t, err)
	assert.Equal(t, "#ff0000", updated.Color)

	require.NoError(t, s.DeleteStage(ctx, repositories.DefaultPipelineID, stProposal))
	got, err := f.deals.Get(ctx, d.ID)
	require.NoError(t, err)
	assert.Nil(t, got.StageID)

	b, err := f.deals.Board(ctx, "", "")
	require.NoError(t, err)
	total := 0
	for _, col := range b.Columns {
		total += col.Count
	}
	assert.Zero(t, total, "stageless deals are on no column")
	assert.Equal(t, 1, b.Metrics.TotalCount)
}

func TestStageEditsStayInsideTheirPipeline(t *testing.T) {
	f := newFixture(t)
	s := NewPipelineService(f.db.Pipelines())
	ctx := context.Background()

	_, err := s.UpdateStage(ctx, otherPipe, stProposal, StageInput{Name: ptr("Hijacked")})
	assert.ErrorIs(t, err, ErrStageNotInPipeline)
	assert.ErrorIs(t, s.DeleteStage(ctx, otherPipe, stProposal), ErrStageNotInPipeline)

	p, err := s.Resolve(ctx, "")
	require.NoError(t, err)
	require.Len(t, p.Stages, 4)
	assert.Equal(t, "Proposal", p.Stages[1].Name)

	_, err = s.UpdateStage(ctx, "missing", stProposal, StageInput{Name: ptr("X")})
	assert.ErrorIs(t, err, repositories.ErrNotFound)
	assert.ErrorIs(t, s.DeleteStage(ctx, otherPipe, "missing-stage"), repositories.ErrNotFound)
}
