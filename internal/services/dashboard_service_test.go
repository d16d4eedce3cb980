package services

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crmhub/internal/models"
	"crmhub/internal/pdf"
)

func TestDashboard(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 12; i++ {
		_, err := f.deals.Create(ctx, DealInput{Name: ptr(fmt.Sprintf("deal-%02d", i)), Value: ptr(decimal.NewFromInt(100))}, "")
		require.NoError(t, err)
	}
	createLead(t, f)
	_, err := NewCompanyService(f.db.Companies()).Create(ctx, CompanyInput{Name: ptr("Acme")}, "")
	require.NoError(t, err)
	_, err = NewContactService(f.db.Contacts()).Create(ctx, ContactInput{FirstName: ptr("Ann")}, "")
	require.NoError(t, err)

	tasks := newTaskService(f.db)
	for i := 0; i < 6; i++ {
		_, err := tasks.Create(ctx, TaskInput{Title: ptr(fmt.Sprintf("t%d", i)), DueDate: ptr(fmt.Sprintf("2024-06-%02d", 10-i))}, "")
		require.NoError(t, err)
	}
	done, err := tasks.Create(ctx, TaskInput{Title: ptr("done"), DueDate: ptr("2024-01-01")}, "")
	require.NoError(t, err)
	_, err = tasks.UpdateStatus(ctx, done.ID, models.StatusCompleted)
	require.NoError(t, err)

	dash, err := NewDashboardService(f.db.Contacts(), f.db.Companies(), f.db.Leads(), f.db.Deals(), f.db.Tasks(), f.db.Activities()).Get(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, dash.Contacts)
	assert.Equal(t, 1, dash.Companies)
	assert.Equal(t, 1, dash.Leads)
	require.Len(t, dash.RecentDeals, 10)
	assert.Equal(t, "deal-11", dash.RecentDeals[0].Name)
	require.Len(t, dash.PendingTasks, 5)
	assert.Equal(t, "t5", dash.PendingTasks[0].Title, "earliest due first, completed excluded")
	assert.Empty(t, dash.RecentActivities)
	assert.Equal(t, 12, dash.Pipeline.OpenCount)
	assert.True(t, dash.Pipeline.OpenValue.Equal(decimal.NewFromInt(1200)))
}

func TestPipelineReport(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.deals.Create(ctx, DealInput{Name: ptr("One"), Value: ptr(decimal.NewFromInt(10))}, "")
	require.NoError(t, err)

	s := NewReportService(f.deals, pdf.NewReportGenerator(t.TempDir(), ""))
	var buf bytes.Buffer
	require.NoError(t, s.WritePipeline(ctx, &buf, ""))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))

	path, err := s.SavePipeline(ctx, "")
	require.NoError(t, err)
	assert.FileExists(t, path)
}

func TestBoardCurrency(t *testing.T) {
	b := &Board{Columns: nil}
	assert.Equal(t, "", boardCurrency(b))

	f := newFixture(t)
	ctx := context.Background()
	_, err := f.deals.Create(ctx, DealInput{Name: ptr("a"), Currency: ptr("eur")}, "")
	require.NoError(t, err)
	board, err := f.deals.Board(ctx, "", "")
	require.NoError(t, err)
	assert.Equal(t, "EUR", boardCurrency(board))

	_, err = f.deals.Create(ctx, DealInput{Name: ptr("b")}, "")
	require.NoError(t, err)
	board, err = f.deals.Board(ctx, "", "")
	require.NoError(t, err)
	assert.Equal(t, "", boardCurrency(board))
}
