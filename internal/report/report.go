// Package report lays out the scan report as a paginated PDF. Layout is a
// fixed-size page with a top-down cursor; pagination is part of the contract
// (wall details always open a new page, object rows break only on overflow)
// so downstream page-count expectations stay stable.
package report

import (
	"bytes"
	"fmt"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/roomscan/roomscan/internal/measure"
)

const (
	pageWidth  = 612.0 // US Letter, points
	pageHeight = 792.0
	margin     = 50.0

	sectionAdvance = 25.0
	rowAdvance     = 20.0

	// Object rows start a fresh page once the cursor passes this line.
	overflowLimit = pageHeight - 100
)

type doc struct {
	pdf *fpdf.Fpdf
	// tr maps UTF-8 to the core fonts' cp1252, needed for the ²/³ glyphs.
	tr func(string) string
	y  float64
}

// Generate renders the report for one scan. Output is deterministic for fixed
// inputs: the PDF creation date is pinned to the scan timestamp.
func Generate(name string, m measure.Measurements, scannedAt time.Time) ([]byte, error) {
	pdf := fpdf.New("P", "pt", "Letter", "")
	pdf.SetTitle("Room Scan Report - "+name, false)
	pdf.SetAuthor("roomscan", false)
	pdf.SetCreator("roomscan", false)
	pdf.SetCreationDate(scannedAt.UTC())
	pdf.SetAutoPageBreak(false, 0)

	d := &doc{pdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor("")}
	pdf.AddPage()
	d.y = margin

	d.title("Room Scan Report")
	d.subtitle(fmt.Sprintf("%s - %s", name, scannedAt.Format("2 January 2006 at 15:04")))
	d.qualityLine(m.Score)
	d.separator()

	d.section("Room Dimensions")
	d.row("Width", fmt.Sprintf("%.2f m", m.Width))
	d.row("Length", fmt.Sprintf("%.2f m", m.Length))
	d.row("Height", fmt.Sprintf("%.2f m", m.Height))
	d.row("Floor Area", fmt.Sprintf("%.2f m²", m.FloorArea))
	d.row("Total Volume", fmt.Sprintf("%.2f m³", m.Volume))
	d.row("Wall Area", fmt.Sprintf("%.2f m²", m.WallArea))
	d.y += rowAdvance

	d.section("Room Elements")
	d.row("Walls", fmt.Sprintf("%d", m.WallCount))
	d.row("Doors", fmt.Sprintf("%d", m.DoorCount))
	d.row("Windows", fmt.Sprintf("%d", m.WindowCount))
	d.row("Openings", fmt.Sprintf("%d", m.OpeningCount))
	d.row("Objects/Furniture", fmt.Sprintf("%d", m.ObjectCount))

	// Wall details always move to a fresh page, regardless of remaining
	// space; object rows then continue in place and only break on overflow.
	if len(m.Walls) > 0 {
		pdf.AddPage()
		d.y = margin
		d.section("Wall Details")
		for _, w := range m.Walls {
			d.fullRow(fmt.Sprintf("Wall %d: %.2fm x %.2fm (Area: %.2f m²)",
				w.Index+1, w.Width, w.Height, w.Area))
		}
	}

	if len(m.Objects) > 0 {
		d.y += rowAdvance
		d.section("Detected Objects")
		for _, obj := range m.Objects {
			if d.y > overflowLimit {
				pdf.AddPage()
				d.y = margin
			}
			d.fullRow(fmt.Sprintf("%s - %s [%s]", obj.Category, obj.Dimensions, obj.Confidence))
		}
	}

	d.footer("Generated by roomscan")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render report: %w", err)
	}
	return buf.Bytes(), nil
}

func (d *doc) title(s string) {
	d.pdf.SetFont("Helvetica", "B", 24)
	d.pdf.SetTextColor(0, 0, 0)
	d.pdf.Text(margin, d.y+24, d.tr(s))
	d.y += 40
}

func (d *doc) subtitle(s string) {
	d.pdf.SetFont("Helvetica", "", 14)
	d.pdf.SetTextColor(90, 90, 90)
	d.pdf.Text(margin, d.y+14, d.tr(s))
	d.y += 30
}

func (d *doc) qualityLine(score int) {
	_, sev := measure.Feedback(score)
	r, g, b := severityColor(sev)
	d.pdf.SetFont("Helvetica", "B", 16)
	d.pdf.SetTextColor(r, g, b)
	d.pdf.Text(margin, d.y+16, fmt.Sprintf("Quality Score: %d/100", score))
	d.y += 40
}

func (d *doc) separator() {
	d.pdf.SetDrawColor(200, 200, 200)
	d.pdf.SetLineWidth(1)
	d.pdf.Line(margin, d.y, pageWidth-margin, d.y)
	d.y += rowAdvance
}

func (d *doc) section(title string) {
	d.pdf.SetFont("Helvetica", "B", 16)
	d.pdf.SetTextColor(0, 90, 200)
	d.pdf.Text(margin, d.y+16, title)
	d.y += sectionAdvance
}

func (d *doc) row(label, value string) {
	d.pdf.SetTextColor(90, 90, 90)
	d.pdf.SetFont("Helvetica", "", 12)
	d.pdf.Text(margin+20, d.y+12, label)
	d.pdf.SetTextColor(0, 0, 0)
	d.pdf.SetFont("Helvetica", "B", 12)
	d.pdf.Text(margin+200, d.y+12, d.tr(value))
	d.y += rowAdvance
}

func (d *doc) fullRow(value string) {
	d.pdf.SetTextColor(0, 0, 0)
	d.pdf.SetFont("Helvetica", "B", 12)
	d.pdf.Text(margin+20, d.y+12, d.tr(value))
	d.y += rowAdvance
}

// footer is centred at the bottom margin of the page the cursor ended on.
func (d *doc) footer(s string) {
	d.pdf.SetFont("Helvetica", "", 10)
	d.pdf.SetTextColor(130, 130, 130)
	w := d.pdf.GetStringWidth(s)
	d.pdf.Text((pageWidth-w)/2, pageHeight-margin, s)
}

func severityColor(sev measure.Severity) (int, int, int) {
	switch sev {
	case measure.SeverityExcellent:
		return 40, 160, 70
	case measure.SeverityGood:
		return 0, 110, 220
	case measure.SeverityFair:
		return 230, 140, 0
	default:
		return 210, 50, 50
	}
}
