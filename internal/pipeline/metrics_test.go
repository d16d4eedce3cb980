package pipeline

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crmhub/internal/models"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestGroupByStage_OrdersColumnsByPosition(t *testing.T) {
	stages := []models.Stage{{ID: "c", Position: 2}, {ID: "a", Position: 0}, {ID: "b", Position: 1}}
	cols := GroupByStage(stages, nil)

	require.Len(t, cols, 3)
	assert.Equal(t, "a", cols[0].Stage.ID)
	assert.Equal(t, "b", cols[1].Stage.ID)
	assert.Equal(t, "c", cols[2].Stage.ID)
	for _, c := range cols {
		assert.Empty(t, c.Deals)
		assert.True(t, c.TotalValue.IsZero())
	}
}

func TestGroupByStage_DropsUnmatchedDeals(t *testing.T) {
	deals := []models.Deal{
		{ID: "1", StageID: strPtr("s1"), Value: dec("10")},
		{ID: "2", StageID: nil, Value: dec("20")},
		{ID: "3", StageID: strPtr("ghost"), Value: dec("30")},
		{ID: "4", StageID: strPtr("s1"), Value: dec("40.50")},
		{ID: "5", StageID: strPtr("s3"), Value: dec("5")},
	}
	cols := GroupByStage(boardStages(), deals)

	require.Len(t, cols, 3)
	assert.Equal(t, 2, cols[0].Count)
	assert.Equal(t, []string{"1", "4"}, ids(cols[0].Deals))
	assert.True(t, dec("50.50").Equal(cols[0].TotalValue))
	assert.Equal(t, 0, cols[1].Count)
	assert.Equal(t, 1, cols[2].Count)

	total := 0
	seen := map[string]int{}
	for _, c := range cols {
		total += c.Count
		for _, d := range c.Deals {
			seen[d.ID]++
		}
	}
	assert.LessOrEqual(t, total, len(deals))
	assert.Equal(t, 3, total)
	for id, n := range seen {
		assert.Equal(t, 1, n, "deal %s in more than one column", id)
	}
	assert.NotContains(t, seen, "2")
	assert.NotContains(t, seen, "3")
}

func TestGroupByStage_SumsAcrossCurrenciesNominally(t *testing.T) {
	deals := []models.Deal{
		{ID: "1", StageID: strPtr("s1"), Value: dec("100"), Currency: "USD"},
		{ID: "2", StageID: strPtr("s1"), Value: dec("100"), Currency: "EUR"},
	}
	cols := GroupByStage(boardStages(), deals)
	assert.True(t, dec("200").Equal(cols[0].TotalValue))
}

func TestSummarize_Scenario(t *testing.T) {
	deals := []models.Deal{
		{Value: dec("100"), Status: models.DealWon},
		{Value: dec("200"), Status: models.DealLost},
		{Value: dec("300"), Status: models.DealOpen, Probability: 50},
	}
	m := Summarize(deals)

	assert.True(t, dec("300").Equal(m.OpenValue), m.OpenValue.String())
	assert.True(t, dec("100").Equal(m.WonValue), m.WonValue.String())
	assert.True(t, dec("150").Equal(m.WeightedValue), m.WeightedValue.String())
	assert.True(t, dec("600").Equal(m.TotalValue))
	assert.InDelta(t, 50.0, m.WinRate, 1e-9)
	assert.Equal(t, 1, m.OpenCount)
	assert.Equal(t, 1, m.WonCount)
	assert.Equal(t, 1, m.LostCount)
	assert.Equal(t, 3, m.TotalCount)
}

func TestSummarize_WinRateZeroWithoutClosedDeals(t *testing.T) {
	assert.Equal(t, 0.0, Summarize(nil).WinRate)

	allOpen := []models.Deal{
		{Value: dec("1"), Status: models.DealOpen},
		{Value: dec("2"), Status: models.DealOpen},
	}
	assert.Equal(t, 0.0, Summarize(allOpen).WinRate)
}

func TestSummarize_WeightedIgnoresClosedDeals(t *testing.T) {
	base := []models.Deal{
		{Value: dec("300"), Status: models.DealOpen, Probability: 50},
		{Value: dec("100"), Status: models.DealWon, Probability: 10},
		{Value: dec("200"), Status: models.DealLost, Probability: 90},
	}
	before := Summarize(base).WeightedValue

	changed := append([]models.Deal(nil), base...)
	changed[1].Value = dec("99999")
	changed[1].Probability = 100
	changed[2].Value = dec("12345.67")
	changed[2].Probability = 0

	assert.True(t, before.Equal(Summarize(changed).WeightedValue))
}

func TestSummarize_WeightedKeepsFractions(t *testing.T) {
	deals := []models.Deal{{Value: dec("0.10"), Status: models.DealOpen, Probability: 33}}
	assert.True(t, dec("0.033").Equal(Summarize(deals).WeightedValue))
}

func TestSearch(t *testing.T) {
	deals := []models.Deal{
		{ID: "1", Name: "Website redesign"},
		{ID: "2", Name: "Renewal", Contact: &models.ContactRef{FirstName: "Alice"}},
		{ID: "3", Name: "Upsell", Company: &models.CompanyRef{Name: "Acme Corp"}},
	}

	assert.Equal(t, []string{"1", "2", "3"}, ids(Search(deals, "  ")))
	assert.Equal(t, []string{"1"}, ids(Search(deals, "WEBSITE")))
	assert.Equal(t, []string{"2"}, ids(Search(deals, "ali")))
	assert.Equal(t, []string{"3"}, ids(Search(deals, "acme")))
	assert.Empty(t, Search(deals, "zzz"))
}

func ids(deals []models.Deal) []string {
	out := make([]string, 0, len(deals))
	for _, d := range deals {
		out = append(out, d.ID)
	}
	return out
}
