package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/jung-kurt/gofpdf"
	"github.com/shopspring/decimal"
	"github.com/tealeg/xlsx"

	"scrooge-bank/database"
	"scrooge-bank/models"
)

const (
	formatPDF  = "pdf"
	formatXLSX = "xlsx"
	formatJSON = "json"
)

type statement struct {
	Owner        *models.User
	Filter       database.TransactionFilter
	Transactions []models.Transaction
}

type exporter struct {
	contentType string
	render      func(statement) ([]byte, error)
}

var exporters = map[string]exporter{
	formatPDF:  {contentType: "application/pdf", render: renderPDF},
	formatXLSX: {contentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", render: renderXLSX},
	formatJSON: {contentType: "application/json", render: renderJSON},
}

var statementColumns = []string{"ID", "Type", "Account", "Loan", "Amount", "Balance After", "Description", "Date"}

// formatMinor renders minor units as a two-place major amount.
func formatMinor(v int64) string {
	return decimal.New(v, -2).StringFixed(2)
}

func optionalID(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}

func optionalMinor(v *int64) string {
	if v == nil {
		return ""
	}
	return formatMinor(*v)
}

func statementRow(t models.Transaction) []string {
	return []string{
		strconv.FormatInt(t.ID, 10),
		string(t.Type),
		optionalID(t.AccountID),
		optionalID(t.LoanID),
		formatMinor(t.Amount),
		optionalMinor(t.BalanceAfter),
		t.Description,
		t.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
	}
}

func periodLabel(f database.TransactionFilter) string {
	from, to := "beginning", "now"
	if !f.From.IsZero() {
		from = f.From.Format(dateLayout)
	}
	if !f.To.IsZero() {
		to = f.To.Format(dateLayout)
	}
	return fmt.Sprintf("%s to %s", from, to)
}

func renderPDF(s statement) ([]byte, error) {
	widths := []float64{14, 34, 20, 16, 26, 28, 58, 42}

	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(40, 10, "Transactions Report")
	pdf.Ln(10)

	pdf.SetFont("Arial", "", 11)
	pdf.Cell(40, 7, fmt.Sprintf("%s <%s>", s.Owner.Name, s.Owner.Email))
	pdf.Ln(7)
	pdf.Cell(40, 7, periodLabel(s.Filter))
	pdf.Ln(10)

	pdf.SetFont("Arial", "B", 11)
	for i, col := range statementColumns {
		pdf.CellFormat(widths[i], 7, col, "1", 0, "", false, 0, "")
	}
	pdf.Ln(7)

	pdf.SetFont("Arial", "", 10)
	for _, t := range s.Transactions {
		for i, v := range statementRow(t) {
			pdf.CellFormat(widths[i], 7, v, "1", 0, "", false, 0, "")
		}
		pdf.Ln(7)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func renderXLSX(s statement) ([]byte, error) {
	file := xlsx.NewFile()
	sheet, err := file.AddSheet("Transactions")
	if err != nil {
		return nil, err
	}

	row := sheet.AddRow()
	for _, col := range statementColumns {
		row.AddCell().SetString(col)
	}
	for _, t := range s.Transactions {
		row = sheet.AddRow()
		for _, v := range statementRow(t) {
			row.AddCell().SetString(v)
		}
	}

	var buf bytes.Buffer
	if err := file.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func renderJSON(s statement) ([]byte, error) {
	return json.Marshal(s.Transactions)
}
