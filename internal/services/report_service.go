package services

import (
	"context"
	"io"
	"time"

	"crmhub/internal/pdf"
)

type ReportService struct {
	deals *DealService
	gen   pdf.Generator
	now   func() time.Time
}

func NewReportService(deals *DealService, gen pdf.Generator) *ReportService {
	return &ReportService{deals: deals, gen: gen, now: time.Now}
}

func (s *ReportService) build(ctx context.Context, pipelineID string) (pdf.Report, error) {
	board, err := s.deals.Board(ctx, pipelineID, "")
	if err != nil {
		return pdf.Report{}, err
	}
	return pdf.Report{
		PipelineName: board.Pipeline.Name,
		Columns:      board.Columns,
		Metrics:      board.Metrics,
		Currency:     boardCurrency(board),
		GeneratedAt:  s.now(),
	}, nil
}

// WritePipeline renders the board of the pipeline (default when empty) as PDF.
func (s *ReportService) WritePipeline(ctx context.Context, w io.Writer, pipelineID string) error {
	r, err := s.build(ctx, pipelineID)
	if err != nil {
		return err
	}
	return s.gen.Write(w, r)
}

// SavePipeline is WritePipeline into the configured files directory.
func (s *ReportService) SavePipeline(ctx context.Context, pipelineID string) (string, error) {
	r, err := s.build(ctx, pipelineID)
	if err != nil {
		return "", err
	}
	return s.gen.Save(r)
}

// boardCurrency returns the currency shared by every deal on the board,
// or "" when they are mixed.
func boardCurrency(b *Board) string {
	cur := ""
	for _, col := range b.Columns {
		for _, d := range col.Deals {
			switch {
			case cur == "":
				cur = d.Currency
			case cur != d.Currency:
				return ""
			}
		}
	}
	return cur
}
