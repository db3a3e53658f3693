// Package report renders the settlement ledger for back-office
// reconciliation.
package report

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	"github.com/okassov/paygate/internal/domain"
)

// BuildSettlementsXLSX renders the records as a spreadsheet.
func BuildSettlementsXLSX(records []domain.SettlementRecord) ([]byte, error) {
	f := excelize.NewFile()
	sheet := "settlements"
	f.SetSheetName("Sheet1", sheet)

	_ = f.SetCellValue(sheet, "A1", "Reference")
	_ = f.SetCellValue(sheet, "B1", "Payer ID")
	_ = f.SetCellValue(sheet, "C1", "Recorded At")
	_ = f.SetCellValue(sheet, "D1", "Invite Delivered At")

	for i, rec := range records {
		row := i + 2
		_ = f.SetCellValue(sheet, fmt.Sprintf("A%d", row), rec.Reference)
		_ = f.SetCellValue(sheet, fmt.Sprintf("B%d", row), rec.PayerID)
		_ = f.SetCellValue(sheet, fmt.Sprintf("C%d", row), rec.RecordedAt.Format(time.RFC3339))
		_ = f.SetCellValue(sheet, fmt.Sprintf("D%d", row), deliveredLabel(rec))
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildSettlementsPDF renders the records as a printable table.
func BuildSettlementsPDF(records []domain.SettlementRecord) ([]byte, error) {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Settlement Ledger")
	pdf.Ln(6)
	pdf.SetFont("Arial", "", 9)
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", time.Now().UTC().Format(time.RFC3339)))
	pdf.Ln(10)

	pdf.SetFont("Arial", "B", 9)
	pdf.CellFormat(120, 6, "Reference", "1", 0, "L", false, 0, "")
	pdf.CellFormat(40, 6, "Payer ID", "1", 0, "L", false, 0, "")
	pdf.CellFormat(55, 6, "Recorded", "1", 0, "C", false, 0, "")
	pdf.CellFormat(55, 6, "Invite Delivered", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 8)
	for _, rec := range records {
		pdf.CellFormat(120, 6, rec.Reference, "1", 0, "L", false, 0, "")
		pdf.CellFormat(40, 6, rec.PayerID, "1", 0, "L", false, 0, "")
		pdf.CellFormat(55, 6, rec.RecordedAt.Format("2006-01-02 15:04:05"), "1", 0, "C", false, 0, "")
		pdf.CellFormat(55, 6, deliveredLabel(rec), "1", 0, "C", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func deliveredLabel(rec domain.SettlementRecord) string {
	if rec.InviteDeliveredAt == nil {
		return "UNDELIVERED"
	}
	return rec.InviteDeliveredAt.Format(time.RFC3339)
}
