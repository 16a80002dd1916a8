// Package pdf renders one feedback document per student row.
package pdf

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-pdf/fpdf"

	"markmailer/config"
	"markmailer/core/sheet"
)

// Renderer writes feedback PDFs into outDir. Filenames are
// "<assignment> - <studentNumber>.pdf", so reruns overwrite in place.
type Renderer struct {
	cfg    *config.Config
	cols   sheet.ColumnMap
	outDir string
}

// New returns a Renderer for the given configuration and resolved columns.
func New(cfg *config.Config, cols sheet.ColumnMap, outDir string) *Renderer {
	return &Renderer{cfg: cfg, cols: cols, outDir: outDir}
}

// Render produces the document for one student row and returns its path.
func (r *Renderer) Render(row, maxMarks sheet.Row) (string, error) {
	number := strings.TrimSpace(row.Cell(r.cols.StudentNumber))
	name := strings.TrimSpace(row.Cell(r.cols.FirstName) + " " + row.Cell(r.cols.LastName))

	doc := fpdf.New("P", "mm", "A4", "")
	doc.SetTitle(fmt.Sprintf("%s - %s", r.cfg.Assignment, number), true)
	doc.AddPage()

	doc.SetFont("Helvetica", "B", 12)
	for _, line := range r.cfg.Header {
		doc.CellFormat(0, 6, line, "", 1, "C", false, 0, "")
	}
	doc.Ln(4)

	doc.SetFont("Helvetica", "B", 16)
	doc.CellFormat(0, 10, r.cfg.Assignment, "", 1, "C", false, 0, "")
	doc.Ln(2)

	doc.SetFont("Helvetica", "", 11)
	doc.CellFormat(0, 6, fmt.Sprintf("Student: %s (%s)", name, number), "", 1, "L", false, 0, "")
	doc.Ln(4)

	doc.SetFont("Helvetica", "B", 11)
	doc.CellFormat(130, 7, "Criterion", "1", 0, "L", false, 0, "")
	doc.CellFormat(40, 7, "Mark", "1", 1, "C", false, 0, "")
	doc.SetFont("Helvetica", "", 11)
	for i, crit := range r.cfg.Columns.Criteria {
		mark := strings.TrimSpace(row.Cell(r.cols.Criteria[i]))
		max := strings.TrimSpace(maxMarks.Cell(r.cols.Criteria[i]))
		doc.CellFormat(130, 7, crit.Name, "1", 0, "L", false, 0, "")
		doc.CellFormat(40, 7, fmt.Sprintf("%s / %s", mark, max), "1", 1, "C", false, 0, "")
	}
	doc.SetFont("Helvetica", "B", 11)
	doc.CellFormat(130, 7, "Total", "1", 0, "L", false, 0, "")
	total := strings.TrimSpace(row.Cell(r.cols.Total))
	maxTotal := strings.TrimSpace(maxMarks.Cell(r.cols.Total))
	doc.CellFormat(40, 7, fmt.Sprintf("%s / %s", total, maxTotal), "1", 1, "C", false, 0, "")
	doc.Ln(6)

	feedback := strings.TrimSpace(row.Cell(r.cols.Feedback))
	if feedback != "" {
		doc.SetFont("Helvetica", "B", 11)
		doc.CellFormat(0, 6, "Feedback", "", 1, "L", false, 0, "")
		doc.SetFont("Helvetica", "", 11)
		doc.MultiCell(0, 5.5, feedback, "", "L", false)
		doc.Ln(4)
	}

	doc.SetFont("Helvetica", "", 11)
	doc.CellFormat(0, 6, r.cfg.Coordinator.Name, "", 1, "L", false, 0, "")
	doc.Ln(4)
	doc.SetFont("Helvetica", "I", 9)
	for _, line := range r.cfg.Footer {
		doc.CellFormat(0, 5, line, "", 1, "C", false, 0, "")
	}

	path := filepath.Join(r.outDir, fmt.Sprintf("%s - %s.pdf", r.cfg.Assignment, number))
	if err := doc.OutputFileAndClose(path); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}
