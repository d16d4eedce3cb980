package pdf

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/jung-kurt/gofpdf"

	"crmhub/internal/pipeline"
)

// Generator: интерфейс (удобно мокать в тестах)
type Generator interface {
	Write(w io.Writer, r Report) error
	Save(r Report) (string, error)
}

// Report is one pipeline board frozen at GeneratedAt.
type Report struct {
	PipelineName string
	Columns      []pipeline.StageColumn
	Metrics      pipeline.Metrics
	Currency     string
	GeneratedAt  time.Time
	Filename     string // имя файла без путей; если пусто, сгенерируем
}

type ReportGenerator struct {
	RootDir  string // куда Save складывает файлы, например "./files"
	FontPath string // TTF с кириллицей; пусто: встроенный Helvetica
	fontName string
}

func NewReportGenerator(rootDir, fontPath string) *ReportGenerator {
	g := &ReportGenerator{RootDir: filepath.Clean(rootDir), FontPath: fontPath, fontName: "Helvetica"}
	if fontPath != "" {
		if _, err := os.Stat(fontPath); err == nil {
			g.fontName = "DejaVu"
		}
	}
	return g
}

func (g *ReportGenerator) Write(w io.Writer, r Report) error {
	return g.render(r).Output(w)
}

// Save writes the report under RootDir and returns the file path.
func (g *ReportGenerator) Save(r Report) (string, error) {
	filename := r.Filename
	if filename == "" {
		filename = fmt.Sprintf("pipeline_%s.pdf", r.GeneratedAt.Format("20060102_150405"))
	}
	absPath, err := g.ensureTarget(filename)
	if err != nil {
		return "", err
	}
	if err := g.render(r).OutputFileAndClose(absPath); err != nil {
		return "", err
	}
	return absPath, nil
}

func (g *ReportGenerator) render(r Report) *gofpdf.Fpdf {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Pipeline report: "+r.PipelineName, true)
	pdf.SetAuthor("crmhub", false)
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(true, 20)
	g.addUTF8Font(pdf)

	pdf.AliasNbPages("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont(g.fontName, "", 9)
		pdf.CellFormat(0, 10, fmt.Sprintf("Page %d/{nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	pdf.SetFont(g.fontName, "B", 18)
	pdf.CellFormat(0, 10, r.PipelineName, "", 1, "C", false, 0, "")
	pdf.SetFont(g.fontName, "", 11)
	pdf.CellFormat(0, 7, "Generated "+r.GeneratedAt.Format("02.01.2006 15:04"), "", 1, "C", false, 0, "")
	g.hr(pdf)

	m := r.Metrics
	g.sectionTitle(pdf, "Summary")
	g.kvLine(pdf, "Deals", fmt.Sprintf("%d (%d open, %d won, %d lost)", m.TotalCount, m.OpenCount, m.WonCount, m.LostCount))
	g.kvLine(pdf, "Open value", g.money(r, m.OpenValue.StringFixed(2)))
	g.kvLine(pdf, "Weighted", g.money(r, m.WeightedValue.StringFixed(2)))
	g.kvLine(pdf, "Won value", g.money(r, m.WonValue.StringFixed(2)))
	g.kvLine(pdf, "Win rate", fmt.Sprintf("%.1f%%", m.WinRate))
	pdf.Ln(2)
	g.hr(pdf)

	g.sectionTitle(pdf, "Stages")
	widths := []float64{90, 30, 50}
	pdf.SetFont(g.fontName, "B", 11)
	pdf.SetFillColor(235, 235, 245)
	for i, h := range []string{"Stage", "Deals", "Total"} {
		align := "R"
		if i == 0 {
			align = "L"
		}
		pdf.CellFormat(widths[i], 8, h, "1", 0, align, true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont(g.fontName, "", 11)
	for _, col := range r.Columns {
		name := col.Stage.Name
		switch {
		case col.Stage.IsWon:
			name += " (won)"
		case col.Stage.IsLost:
			name += " (lost)"
		}
		pdf.CellFormat(widths[0], 7, name, "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[1], 7, fmt.Sprintf("%d", col.Count), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[2], 7, g.money(r, col.TotalValue.StringFixed(2)), "1", 1, "R", false, 0, "")
	}
	return pdf
}

// === helpers ===

func (g *ReportGenerator) money(r Report, amount string) string {
	if r.Currency == "" {
		return amount
	}
	return amount + " " + r.Currency
}

func (g *ReportGenerator) sectionTitle(pdf *gofpdf.Fpdf, s string) {
	pdf.SetFont(g.fontName, "B", 12)
	pdf.CellFormat(0, 7, s, "", 1, "L", false, 0, "")
	pdf.SetFont(g.fontName, "", 11)
}

func (g *ReportGenerator) kvLine(pdf *gofpdf.Fpdf, key, val string) {
	pdf.SetFont(g.fontName, "B", 11)
	pdf.CellFormat(45, 6, key+":", "", 0, "L", false, 0, "")
	pdf.SetFont(g.fontName, "", 11)
	pdf.CellFormat(0, 6, val, "", 1, "L", false, 0, "")
}

func (g *ReportGenerator) hr(pdf *gofpdf.Fpdf) {
	y := pdf.GetY() + 1.5
	pdf.SetLineWidth(0.2)
	pdf.Line(20, y, 190, y)
	pdf.SetY(y + 2)
}

func (g *ReportGenerator) ensureTarget(filename string) (string, error) {
	if err := os.MkdirAll(g.RootDir, 0o755); err != nil {
		return "", fmt.Errorf("create files dir: %w", err)
	}
	filename = filepath.Base(filename) // безопасность
	return filepath.Join(g.RootDir, filename), nil
}

func (g *ReportGenerator) addUTF8Font(pdf *gofpdf.Fpdf) {
	if g.fontName == "Helvetica" {
		return
	}
	pdf.AddUTF8Font(g.fontName, "", g.FontPath)
	pdf.AddUTF8Font(g.fontName, "B", g.FontPath)
}
