package pipeline

import (
	"strings"

	"github.com/shopspring/decimal"

	"crmhub/internal/models"
)

var hundred = decimal.NewFromInt(100)

// StageColumn is one column of the deals board.
type StageColumn struct {
	Stage      models.Stage    `json:"stage"`
	Deals      []models.Deal   `json:"deals"`
	Count      int             `json:"count"`
	TotalValue decimal.Decimal `json:"total_value"`
}

// Metrics are the pipeline-wide figures shown above the board.
type Metrics struct {
	OpenValue     decimal.Decimal `json:"open_value"`
	WonValue      decimal.Decimal `json:"won_value"`
	WeightedValue decimal.Decimal `json:"weighted_value"`
	TotalValue    decimal.Decimal `json:"total_value"`
	WinRate       float64         `json:"win_rate"`
	OpenCount     int             `json:"open_count"`
	WonCount      int             `json:"won_count"`
	LostCount     int             `json:"lost_count"`
	TotalCount    int             `json:"total_count"`
}

// GroupByStage partitions deals into the stages' columns ordered by
// position. Deals keep their input order inside a column. A deal whose
// stage_id is nil or names no stage in stages lands in no column.
// Values are summed nominally regardless of currency.
func GroupByStage(stages []models.Stage, deals []models.Deal) []StageColumn {
	ordered := SortStages(stages)
	cols := make([]StageColumn, len(ordered))
	index := make(map[string]int, len(ordered))
	for i, s := range ordered {
		cols[i] = StageColumn{Stage: s, Deals: []models.Deal{}, TotalValue: decimal.Zero}
		if _, dup := index[s.ID]; !dup {
			index[s.ID] = i
		}
	}

	for _, d := range deals {
		if d.StageID == nil {
			continue
		}
		i, ok := index[*d.StageID]
		if !ok {
			continue
		}
		cols[i].Deals = append(cols[i].Deals, d)
		cols[i].Count++
		cols[i].TotalValue = cols[i].TotalValue.Add(d.Value)
	}
	return cols
}

// Summarize computes the pipeline metrics over every deal given.
// WinRate is won / closed * 100 and is 0 when nothing is closed.
func Summarize(deals []models.Deal) Metrics {
	m := Metrics{
		OpenValue:     decimal.Zero,
		WonValue:      decimal.Zero,
		WeightedValue: decimal.Zero,
		TotalValue:    decimal.Zero,
		TotalCount:    len(deals),
	}
	for _, d := range deals {
		m.TotalValue = m.TotalValue.Add(d.Value)
		switch d.Status {
		case models.DealOpen:
			m.OpenCount++
			m.OpenValue = m.OpenValue.Add(d.Value)
			weighted := d.Value.Mul(decimal.NewFromInt(int64(d.Probability))).Div(hundred)
			m.WeightedValue = m.WeightedValue.Add(weighted)
		case models.DealWon:
			m.WonCount++
			m.WonValue = m.WonValue.Add(d.Value)
		default:
			m.LostCount++
		}
	}

	closed := m.TotalCount - m.OpenCount
	if closed > 0 {
		m.WinRate = float64(m.WonCount) / float64(closed) * 100
	}
	return m
}

// Search keeps the deals whose name, contact first name or company name
// contains q, case-insensitively. An empty q keeps everything.
func Search(deals []models.Deal, q string) []models.Deal {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return deals
	}
	out := make([]models.Deal, 0, len(deals))
	for _, d := range deals {
		if matches(d, q) {
			out = append(out, d)
		}
	}
	return out
}

func matches(d models.Deal, q string) bool {
	if strings.Contains(strings.ToLower(d.Name), q) {
		return true
	}
	if d.Contact != nil && strings.Contains(strings.ToLower(d.Contact.FirstName), q) {
		return true
	}
	if d.Company != nil && strings.Contains(strings.ToLower(d.Company.Name), q) {
		return true
	}
	return false
}
