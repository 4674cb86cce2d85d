// Package export renders schedule tables for download: CSV, XLSX, PDF and
// MessagePack.
package export

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/jung-kurt/gofpdf"
	"github.com/vmihailenco/msgpack/v5"
	"github.com/xuri/excelize/v2"

	"github.com/aristath/marketcal/internal/modules/market_hours"
)

// Format names an export encoding.
type Format string

const (
	FormatJSON    Format = "json"
	FormatCSV     Format = "csv"
	FormatXLSX    Format = "xlsx"
	FormatPDF     Format = "pdf"
	FormatMsgpack Format = "msgpack"
)

// ParseFormat validates a format name. Empty means JSON.
func ParseFormat(name string) (Format, error) {
	switch f := Format(name); f {
	case "":
		return FormatJSON, nil
	case FormatJSON, FormatCSV, FormatXLSX, FormatPDF, FormatMsgpack:
		return f, nil
	}
	return "", fmt.Errorf("unknown export format %q", name)
}

// ContentType returns the MIME type of the format.
func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatPDF:
		return "application/pdf"
	case FormatMsgpack:
		return "application/msgpack"
	}
	return "application/json"
}

// Document is a schedule with the context needed to render it.
type Document struct {
	Calendar string
	Location *time.Location // local columns are rendered in this zone
	Start    market_hours.Date
	End      market_hours.Date
	Table    market_hours.ScheduleTable
}

// Row is the flat, string-typed rendering of a schedule row shared by the
// tabular formats.
type Row struct {
	Date        string `csv:"date" msgpack:"date"`
	MarketOpen  string `csv:"market_open" msgpack:"market_open"`
	MarketClose string `csv:"market_close" msgpack:"market_close"`
	LocalOpen   string `csv:"local_open" msgpack:"local_open"`
	LocalClose  string `csv:"local_close" msgpack:"local_close"`
}

// Rows flattens the document's table. Instants are RFC 3339 in UTC; the local
// columns are wall-clock times in the document's location.
func (d Document) Rows() []Row {
	loc := d.Location
	if loc == nil {
		loc = time.UTC
	}
	out := make([]Row, len(d.Table.Rows))
	for i, r := range d.Table.Rows {
		out[i] = Row{
			Date:        r.Date.String(),
			MarketOpen:  r.MarketOpen.UTC().Format(time.RFC3339),
			MarketClose: r.MarketClose.UTC().Format(time.RFC3339),
			LocalOpen:   r.MarketOpen.In(loc).Format("2006-01-02 15:04 MST"),
			LocalClose:  r.MarketClose.In(loc).Format("2006-01-02 15:04 MST"),
		}
	}
	return out
}

// WriteCSV writes the document as CSV with a header row.
func WriteCSV(w io.Writer, doc Document) error {
	rows := doc.Rows()
	if len(rows) == 0 {
		_, err := io.WriteString(w, "date,market_open,market_close,local_open,local_close\n")
		return err
	}
	return gocsv.Marshal(rows, w)
}

// BuildXLSX renders the document as a workbook with a summary sheet and a
// schedule sheet.
func BuildXLSX(doc Document) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	summarySheet := "summary"
	scheduleSheet := "schedule"
	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(scheduleSheet); err != nil {
		return nil, err
	}

	_ = f.SetCellValue(summarySheet, "A1", "Trading Schedule")
	_ = f.SetCellValue(summarySheet, "A3", "Calendar")
	_ = f.SetCellValue(summarySheet, "B3", doc.Calendar)
	_ = f.SetCellValue(summarySheet, "A4", "From")
	_ = f.SetCellValue(summarySheet, "B4", doc.Start.String())
	_ = f.SetCellValue(summarySheet, "A5", "To")
	_ = f.SetCellValue(summarySheet, "B5", doc.End.String())
	_ = f.SetCellValue(summarySheet, "A6", "Trading days")
	_ = f.SetCellValue(summarySheet, "B6", doc.Table.Len())

	headers := []string{"Date", "Open (UTC)", "Close (UTC)", "Open (local)", "Close (local)"}
	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		_ = f.SetCellValue(scheduleSheet, cell, h)
	}
	for i, r := range doc.Rows() {
		row := i + 2
		_ = f.SetCellValue(scheduleSheet, fmt.Sprintf("A%d", row), r.Date)
		_ = f.SetCellValue(scheduleSheet, fmt.Sprintf("B%d", row), r.MarketOpen)
		_ = f.SetCellValue(scheduleSheet, fmt.Sprintf("C%d", row), r.MarketClose)
		_ = f.SetCellValue(scheduleSheet, fmt.Sprintf("D%d", row), r.LocalOpen)
		_ = f.SetCellValue(scheduleSheet, fmt.Sprintf("E%d", row), r.LocalClose)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildPDF renders the document as a single table.
func BuildPDF(doc Document) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, fmt.Sprintf("Trading Schedule: %s", doc.Calendar))
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Period: %s to %s", doc.Start, doc.End))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Trading days: %d", doc.Table.Len()))
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(30, 6, "Date", "1", 0, "C", false, 0, "")
	pdf.CellFormat(40, 6, "Open (UTC)", "1", 0, "C", false, 0, "")
	pdf.CellFormat(40, 6, "Close (UTC)", "1", 0, "C", false, 0, "")
	pdf.CellFormat(40, 6, "Open (local)", "1", 0, "C", false, 0, "")
	pdf.CellFormat(40, 6, "Close (local)", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 9)
	for _, r := range doc.Rows() {
		pdf.CellFormat(30, 6, r.Date, "1", 0, "C", false, 0, "")
		pdf.CellFormat(40, 6, r.MarketOpen, "1", 0, "C", false, 0, "")
		pdf.CellFormat(40, 6, r.MarketClose, "1", 0, "C", false, 0, "")
		pdf.CellFormat(40, 6, r.LocalOpen, "1", 0, "C", false, 0, "")
		pdf.CellFormat(40, 6, r.LocalClose, "1", 0, "C", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// msgpackDocument is the MessagePack wire shape of a document.
type msgpackDocument struct {
	Calendar string `msgpack:"calendar"`
	Start    string `msgpack:"start"`
	End      string `msgpack:"end"`
	Rows     []Row  `msgpack:"rows"`
}

// EncodeMsgpack encodes the document as MessagePack.
func EncodeMsgpack(doc Document) ([]byte, error) {
	return msgpack.Marshal(msgpackDocument{
		Calendar: doc.Calendar,
		Start:    doc.Start.String(),
		End:      doc.End.String(),
		Rows:     doc.Rows(),
	})
}

// Render encodes doc in one of the binary or tabular formats. JSON is left to
// the HTTP layer's envelope.
func Render(format Format, doc Document) ([]byte, error) {
	switch format {
	case FormatCSV:
		var buf bytes.Buffer
		if err := WriteCSV(&buf, doc); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case FormatXLSX:
		return BuildXLSX(doc)
	case FormatPDF:
		return BuildPDF(doc)
	case FormatMsgpack:
		return EncodeMsgpack(doc)
	}
	return nil, fmt.Errorf("format %q is not rendered by export", format)
}
