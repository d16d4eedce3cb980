package repositories_test

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"crmhub/internal/models"
	"crmhub/internal/repositories"
	"crmhub/migrations"
)

const (
	seedLeadStage = "00000000-0000-0000-0000-000000000011"
	seedWonStage  = "00000000-0000-0000-0000-000000000015"
)

// openTestDB connects to CRMHUB_TEST_DATABASE_URL and applies migrations.
// Tests are skipped when the variable is unset.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("CRMHUB_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("CRMHUB_TEST_DATABASE_URL not set")
	}
	db, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	_, err = migrations.Run(ctx, db, zap.NewNop())
	require.NoError(t, err)
	return db
}

func TestPostgresDealRoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	deals := repositories.NewDealRepository(db)

	stage := seedLeadStage
	d := &models.Deal{
		ID:          uuid.NewString(),
		Name:        "Round trip",
		Value:       decimal.RequireFromString("1234.56"),
		Currency:    "EUR",
		PipelineID:  repositories.DefaultPipelineID,
		StageID:     &stage,
		Probability: 10,
		Status:      models.DealOpen,
		Tags:        []string{"a", "b"},
	}
	require.NoError(t, deals.Create(ctx, d))
	t.Cleanup(func() { _ = deals.Delete(context.Background(), d.ID) })

	list, err := deals.List(ctx, models.DealFilter{Query: "Round trip"})
	require.NoError(t, err)

	var got *models.Deal
	for i := range list {
		if list[i].ID == d.ID {
			got = &list[i]
		}
	}
	require.NotNil(t, got)
	assert.True(t, d.Value.Equal(got.Value), "value %s", got.Value)
	require.NotNil(t, got.StageID)
	assert.Equal(t, stage, *got.StageID)
	assert.Equal(t, models.DealOpen, got.Status)
	assert.Equal(t, []string{"a", "b"}, got.Tags)
	require.NotNil(t, got.Stage)
	assert.Equal(t, "Lead", got.Stage.Name)
}

func TestPostgresApplyTransitionSingleWrite(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	deals := repositories.NewDealRepository(db)

	stage := seedLeadStage
	d := &models.Deal{
		ID:         uuid.NewString(),
		Name:       "Closing",
		Value:      decimal.NewFromInt(10),
		Currency:   "USD",
		PipelineID: repositories.DefaultPipelineID,
		StageID:    &stage,
		Status:     models.DealOpen,
	}
	require.NoError(t, deals.Create(ctx, d))
	t.Cleanup(func() { _ = deals.Delete(context.Background(), d.ID) })

	closed := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, deals.ApplyTransition(ctx, d.ID, seedWonStage, models.DealWon, &closed))

	got, err := deals.GetByID(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DealWon, got.Status)
	require.NotNil(t, got.ActualCloseDate)
	assert.Equal(t, "2024-03-01", got.ActualCloseDate.UTC().Format("2006-01-02"))

	err = deals.ApplyTransition(ctx, uuid.NewString(), seedWonStage, models.DealWon, &closed)
	assert.True(t, errors.Is(err, repositories.ErrNotFound))
}

func TestPostgresLeadConvertIsAtomic(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	leads := repositories.NewLeadRepository(db)
	contacts := repositories.NewContactRepository(db)

	lead := &models.Lead{ID: uuid.NewString(), FirstName: "Ann", Status: models.LeadQualified, Tags: []string{}}
	require.NoError(t, leads.Create(ctx, lead))
	t.Cleanup(func() { _ = leads.Delete(context.Background(), lead.ID) })

	contact := &models.Contact{ID: uuid.NewString(), FirstName: "Ann", Status: "active", Tags: []string{}}
	require.NoError(t, leads.Convert(ctx, lead.ID, contact, nil, time.Now()))
	t.Cleanup(func() { _ = contacts.Delete(context.Background(), contact.ID) })

	got, err := leads.GetByID(ctx, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LeadConverted, got.Status)
	require.NotNil(t, got.ConvertedContactID)
	assert.Equal(t, contact.ID, *got.ConvertedContactID)

	// second conversion finds no convertible lead and writes nothing
	again := &models.Contact{ID: uuid.NewString(), FirstName: "Ann", Status: "active", Tags: []string{}}
	err = leads.Convert(ctx, lead.ID, again, nil, time.Now())
	assert.True(t, errors.Is(err, repositories.ErrNotFound))
	_, err = contacts.GetByID(ctx, again.ID)
	assert.True(t, errors.Is(err, repositories.ErrNotFound))
}
