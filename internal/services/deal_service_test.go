package services

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crmhub/internal/models"
	"crmhub/internal/realtime"
	"crmhub/internal/repositories"
)

func TestCreateDealDefaults(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	d, err := f.deals.Create(ctx, DealInput{Name: ptr("Acme renewal"), Value: ptr(decimal.NewFromInt(1200))}, "user-1")
	require.NoError(t, err)

	assert.Equal(t, repositories.DefaultPipelineID, d.PipelineID)
	require.NotNil(t, d.StageID)
	assert.Equal(t, stLead, *d.StageID, "lowest position stage")
	assert.Equal(t, 10, d.Probability, "probability taken from the stage")
	assert.Equal(t, models.DealOpen, d.Status)
	assert.Nil(t, d.ActualCloseDate)
	assert.Equal(t, "USD", d.Currency)
	require.NotNil(t, d.Stage)
	assert.Equal(t, "Lead", d.Stage.Name)
	assert.Empty(t, f.notifier.closed)
}

func TestCreateDealKeepsExplicitProbabilityAndCurrency(t *testing.T) {
	f := newFixture(t)

	d, err := f.deals.Create(context.Background(), DealInput{
		Name:        ptr("Widgets"),
		StageID:     ptr(stProposal),
		Probability: ptr(35),
		Currency:    ptr(" eur "),
	}, "")
	require.NoError(t, err)
	assert.Equal(t, 35, d.Probability)
	assert.Equal(t, "EUR", d.Currency)
	assert.Equal(t, stProposal, *d.StageID)
}

func TestCreateDealInWonStageIsClosed(t *testing.T) {
	f := newFixture(t)

	d, err := f.deals.Create(context.Background(), DealInput{Name: ptr("Signed"), StageID: ptr(stWon)}, "user-1")
	require.NoError(t, err)
	assert.Equal(t, models.DealWon, d.Status)
	require.NotNil(t, d.ActualCloseDate)
	assert.True(t, d.ActualCloseDate.Equal(fixedNow))
	require.Len(t, f.notifier.closed, 1)
	assert.Equal(t, d.ID, f.notifier.closed[0].ID)
}

func TestCreateDealValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cases := map[string]DealInput{
		"missing name":      {Value: ptr(decimal.NewFromInt(1))},
		"negative value":    {Name: ptr("x"), Value: ptr(decimal.NewFromInt(-1))},
		"probability > 100": {Name: ptr("x"), Probability: ptr(101)},
		"bad date":          {Name: ptr("x"), ExpectedCloseDate: ptr("next week")},
		"unknown stage":     {Name: ptr("x"), StageID: ptr("nope")},
		"unknown pipeline":  {Name: ptr("x"), PipelineID: ptr("nope")},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.deals.Create(ctx, in, "")
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}

	_, err := f.deals.Create(ctx, DealInput{Name: ptr("x"), StageID: ptr(stOther)}, "")
	assert.ErrorIs(t, err, ErrStageNotInPipeline)
	assert.Zero(t, f.db.Writes["deals"])
}

func TestDealRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	value := decimal.RequireFromString("12345.67")
	created, err := f.deals.Create(ctx, DealInput{
		Name:              ptr("Round trip"),
		Value:             &value,
		StageID:           ptr(stProposal),
		ExpectedCloseDate: ptr("2024-07-01"),
		Tags:              []string{"q3", "upsell"},
		Description:       ptr("  notes "),
	}, "user-1")
	require.NoError(t, err)

	got, err := f.deals.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Round trip", got.Name)
	assert.True(t, got.Value.Equal(value))
	assert.Equal(t, stProposal, *got.StageID)
	assert.Equal(t, models.DealOpen, got.Status)
	assert.Equal(t, []string{"q3", "upsell"}, got.Tags)
	assert.Equal(t, "notes", *got.Description)
	assert.Equal(t, "2024-07-01", got.ExpectedCloseDate.Format("2006-01-02"))
	assert.Equal(t, "user-1", *got.OwnerID)
}

func TestMoveToWonStage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	d, err := f.deals.Create(ctx, DealInput{Name: ptr("Deal"), Value: ptr(decimal.NewFromInt(500))}, "")
	require.NoError(t, err)
	writes := f.db.Writes["deals"]

	moved, err := f.deals.Move(ctx, d.ID, stWon)
	require.NoError(t, err)
	assert.Equal(t, models.DealWon, moved.Status)
	require.NotNil(t, moved.ActualCloseDate)
	assert.True(t, moved.ActualCloseDate.Equal(fixedNow))
	assert.Equal(t, writes+1, f.db.Writes["deals"], "one combined write")

	stored, err := f.deals.Get(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, stWon, *stored.StageID)
	assert.Equal(t, models.DealWon, stored.Status)
	require.Len(t, f.notifier.closed, 1)
}

func TestMoveToLostThenNeutralKeepsStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	d, err := f.deals.Create(ctx, DealInput{Name: ptr("Deal")}, "")
	require.NoError(t, err)

	lost, err := f.deals.Move(ctx, d.ID, stLost)
	require.NoError(t, err)
	assert.Equal(t, models.DealLost, lost.Status)

	back, err := f.deals.Move(ctx, d.ID, stProposal)
	require.NoError(t, err)
	assert.Equal(t, stProposal, *back.StageID)
	assert.Equal(t, models.DealLost, back.Status)
	require.NotNil(t, back.ActualCloseDate)
	assert.Len(t, f.notifier.closed, 1)
}

func TestMoveRejectsForeignStage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	d, err := f.deals.Create(ctx, DealInput{Name: ptr("Deal")}, "")
	require.NoError(t, err)
	writes := f.db.Writes["deals"]

	_, err = f.deals.Move(ctx, d.ID, stOther)
	assert.ErrorIs(t, err, ErrStageNotInPipeline)

	_, err = f.deals.Move(ctx, d.ID, "missing")
	assert.ErrorIs(t, err, repositories.ErrNotFound)

	_, err = f.deals.Move(ctx, "missing", stWon)
	assert.ErrorIs(t, err, repositories.ErrNotFound)
	assert.Equal(t, writes, f.db.Writes["deals"])
}

func TestMoveFailureLeavesDealUnchanged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	d, err := f.deals.Create(ctx, DealInput{Name: ptr("Deal")}, "")
	require.NoError(t, err)

	f.db.FailWith(errors.New("connection reset"))
	_, err = f.deals.Move(ctx, d.ID, stWon)
	require.Error(t, err)
	f.db.FailWith(nil)

	got, err := f.deals.Get(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, stLead, *got.StageID)
	assert.Equal(t, models.DealOpen, got.Status)
	assert.Empty(t, f.notifier.closed)
}

func TestUpdateStageChangeIsSingleWrite(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	d, err := f.deals.Create(ctx, DealInput{Name: ptr("Deal")}, "")
	require.NoError(t, err)
	writes := f.db.Writes["deals"]

	got, err := f.deals.Update(ctx, d.ID, DealInput{Name: ptr("Renamed"), StageID: ptr(stWon)})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Name)
	assert.Equal(t, models.DealWon, got.Status)
	require.NotNil(t, got.ActualCloseDate)
	assert.Equal(t, writes+1, f.db.Writes["deals"])
	assert.Len(t, f.notifier.closed, 1)
}

func TestUpdateSameStageKeepsStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	d, err := f.deals.Create(ctx, DealInput{Name: ptr("Deal"), StageID: ptr(stWon)}, "")
	require.NoError(t, err)

	got, err := f.deals.Update(ctx, d.ID, DealInput{Value: ptr(decimal.NewFromInt(10)), StageID: ptr(stWon)})
	require.NoError(t, err)
	assert.Equal(t, models.DealWon, got.Status)
	assert.True(t, got.Value.Equal(decimal.NewFromInt(10)))
	assert.Len(t, f.notifier.closed, 1, "same stage is not a move")
}

func TestUpdatePipelineChangePlacesOnFirstStage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	d, err := f.deals.Create(ctx, DealInput{Name: ptr("Deal")}, "")
	require.NoError(t, err)

	got, err := f.deals.Update(ctx, d.ID, DealInput{PipelineID: ptr(otherPipe)})
	require.NoError(t, err)
	assert.Equal(t, otherPipe, got.PipelineID)
	assert.Equal(t, stOther, *got.StageID)
}

func TestUpdateIntoEmptyPipelineClearsStage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.db.SeedPipeline(models.Pipeline{ID: "pipe-empty", Name: "Empty"})

	d, err := f.deals.Create(ctx, DealInput{Name: ptr("Drifter")}, "")
	require.NoError(t, err)
	require.NotNil(t, d.StageID)

	got, err := f.deals.Update(ctx, d.ID, DealInput{PipelineID: ptr("pipe-empty")})
	require.NoError(t, err)
	assert.Equal(t, "pipe-empty", got.PipelineID)
	assert.Nil(t, got.StageID, "no stage from the old pipeline")
	assert.Nil(t, got.Stage)

	b, err := f.deals.Board(ctx, "", "")
	require.NoError(t, err)
	for _, col := range b.Columns {
		assert.Zero(t, col.Count, "column %s", col.Stage.Name)
	}
}

func TestUpdateUnknownPipelineIsInvalid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	d, err := f.deals.Create(ctx, DealInput{Name: ptr("Deal")}, "")
	require.NoError(t, err)

	_, err = f.deals.Update(ctx, d.ID, DealInput{PipelineID: ptr("nope")})
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.NotErrorIs(t, err, repositories.ErrNotFound)

	_, err = f.deals.Update(ctx, d.ID, DealInput{PipelineID: ptr("nope"), StageID: ptr(stOther)})
	assert.ErrorIs(t, err, ErrInvalidInput)

	got, err := f.deals.Get(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, repositories.DefaultPipelineID, got.PipelineID)
}

func TestBoardGroupsSearchedDealsButMetricsCoverAll(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.deals.Create(ctx, DealInput{Name: ptr("Alpha"), Value: ptr(decimal.NewFromInt(100)), Probability: ptr(50)}, "")
	require.NoError(t, err)
	_, err = f.deals.Create(ctx, DealInput{Name: ptr("Beta"), Value: ptr(decimal.NewFromInt(300)), StageID: ptr(stWon)}, "")
	require.NoError(t, err)
	_, err = f.deals.Create(ctx, DealInput{Name: ptr("Gamma"), Value: ptr(decimal.NewFromInt(200)), StageID: ptr(stLost)}, "")
	require.NoError(t, err)

	b, err := f.deals.Board(ctx, "", "alp")
	require.NoError(t, err)
	assert.Equal(t, "Sales Pipeline", b.Pipeline.Name)
	require.Len(t, b.Columns, 4)
	assert.Equal(t, []string{"Lead", "Proposal", "Closed Won", "Closed Lost"},
		[]string{b.Columns[0].Stage.Name, b.Columns[1].Stage.Name, b.Columns[2].Stage.Name, b.Columns[3].Stage.Name})
	assert.Equal(t, 1, b.Columns[0].Count)
	assert.Zero(t, b.Columns[2].Count)

	m := b.Metrics
	assert.Equal(t, 3, m.TotalCount)
	assert.Equal(t, 1, m.OpenCount)
	assert.True(t, m.WeightedValue.Equal(decimal.NewFromInt(50)))
	assert.True(t, m.WonValue.Equal(decimal.NewFromInt(300)))
	assert.InDelta(t, 50.0, m.WinRate, 1e-9)
}

func TestListSearchesByName(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.deals.Create(ctx, DealInput{Name: ptr("Alpha")}, "")
	require.NoError(t, err)
	_, err = f.deals.Create(ctx, DealInput{Name: ptr("Beta")}, "")
	require.NoError(t, err)

	all, err := f.deals.List(ctx, models.DealFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Beta", all[0].Name, "newest first")

	hits, err := f.deals.List(ctx, models.DealFilter{Query: "ALP"})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "Alpha", hits[0].Name)
}

func TestDeleteDeal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	d, err := f.deals.Create(ctx, DealInput{Name: ptr("Gone")}, "")
	require.NoError(t, err)
	require.NoError(t, f.deals.Delete(ctx, d.ID))
	_, err = f.deals.Get(ctx, d.ID)
	assert.ErrorIs(t, err, repositories.ErrNotFound)
	assert.ErrorIs(t, f.deals.Delete(ctx, d.ID), repositories.ErrNotFound)
}

func TestDealChangesReachTheBoard(t *testing.T) {
	f := newFixture(t)
	hub := realtime.NewBoardHub()
	f.deals.WithEvents(hub)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sales := hub.Subscribe(ctx, repositories.DefaultPipelineID)
	partners := hub.Subscribe(ctx, otherPipe)

	d, err := f.deals.Create(ctx, DealInput{Name: ptr("Live")}, "")
	require.NoError(t, err)
	_, err = f.deals.Move(ctx, d.ID, stWon)
	require.NoError(t, err)
	_, err = f.deals.Update(ctx, d.ID, DealInput{PipelineID: ptr(otherPipe)})
	require.NoError(t, err)
	require.NoError(t, f.deals.Delete(ctx, d.ID))

	var got []realtime.EventType
	for len(sales) > 0 {
		got = append(got, (<-sales).Type)
	}
	assert.Equal(t, []realtime.EventType{realtime.DealCreated, realtime.DealMoved, realtime.DealDeleted}, got)

	require.Len(t, partners, 2)
	ev := <-partners
	assert.Equal(t, realtime.DealUpdated, ev.Type)
	assert.Equal(t, stOther, *ev.StageID)
	assert.Equal(t, models.DealWon, ev.Status, "neutral stage keeps the outcome")
	assert.Equal(t, realtime.DealDeleted, (<-partners).Type)
}
