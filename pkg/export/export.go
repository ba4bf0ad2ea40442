// Package export renders assessment listings into downloadable CSV and
// PDF documents.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// Row is one assessment line in an exported report.
type Row struct {
	Date        time.Time
	StudentName string
	TeacherName string
	Surah       string
	Jilid       string
	FinalScore  float64
	Notes       string
}

// File is a rendered document ready to stream to the client.
type File struct {
	Name        string
	ContentType string
	Content     []byte
}

var headers = []string{"Date", "Student", "Teacher", "Surah", "Jilid", "Final Score", "Notes"}

func (r Row) record() []string {
	return []string{
		r.Date.Format("2006-01-02"),
		r.StudentName,
		r.TeacherName,
		r.Surah,
		r.Jilid,
		fmt.Sprintf("%.2f", r.FinalScore),
		r.Notes,
	}
}

func fileName(title, ext string) string {
	slug := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(title), " ", "-"))
	if slug == "" {
		slug = "report"
	}
	return slug + "." + ext
}

// WriteCSV renders the rows as a CSV document with a header line.
func WriteCSV(title string, rows []Row) (*File, error) {
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)

	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("write csv headers: %w", err)
	}
	for _, row := range rows {
		if err := writer.Write(row.record()); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}

	return &File{
		Name:        fileName(title, "csv"),
		ContentType: "text/csv",
		Content:     buf.Bytes(),
	}, nil
}

// Column widths sum to the printable width of an A4 portrait page with
// 10mm margins.
var pdfWidths = []float64{22, 36, 36, 26, 18, 22, 30}

// WritePDF renders the rows as a simple tabular PDF.
func WritePDF(title string, rows []Row) (*File, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 15, 10)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(0, 10, strings.ToUpper(title), "", 1, "C", false, 0, "")
	pdf.Ln(5)

	pdf.SetFont("Arial", "B", 9)
	for i, header := range headers {
		pdf.CellFormat(pdfWidths[i], 8, header, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 8)
	for _, row := range rows {
		for i, value := range row.record() {
			pdf.CellFormat(pdfWidths[i], 7, value, "1", 0, "", false, 0, "")
		}
		pdf.Ln(-1)
	}

	if len(rows) == 0 {
		pdf.SetFont("Arial", "I", 9)
		pdf.CellFormat(0, 10, "No assessments recorded.", "", 1, "C", false, 0, "")
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}

	return &File{
		Name:        fileName(title, "pdf"),
		ContentType: "application/pdf",
		Content:     buf.Bytes(),
	}, nil
}
