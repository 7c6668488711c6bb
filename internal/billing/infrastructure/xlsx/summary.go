package xlsx

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	billing "billing-relay/internal/billing/domain"
)

const (
	summarySheet = "summary"
	recordsSheet = "records"
)

// SummaryRenderer renders a spreadsheet describing one destination group.
type SummaryRenderer struct{}

// NewSummaryRenderer constructs a SummaryRenderer.
func NewSummaryRenderer() *SummaryRenderer {
	return &SummaryRenderer{}
}

// RenderGroup lists every composite and the records merged into it.
func (r *SummaryRenderer) RenderGroup(group billing.DestinationGroup, period billing.Period) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	f.SetSheetName("Sheet1", summarySheet)
	f.NewSheet(recordsSheet)

	_ = f.SetCellValue(summarySheet, "A1", "Billing Summary")
	_ = f.SetCellValue(summarySheet, "A2", "Period")
	_ = f.SetCellValue(summarySheet, "B2", period.Title())
	_ = f.SetCellValue(summarySheet, "A3", "Destination")
	_ = f.SetCellValue(summarySheet, "B3", group.Destination)

	_ = f.SetCellValue(summarySheet, "A5", "File")
	_ = f.SetCellValue(summarySheet, "B5", "Account")
	_ = f.SetCellValue(summarySheet, "C5", "Category")
	_ = f.SetCellValue(summarySheet, "D5", "Records")
	_ = f.SetCellValue(summarySheet, "E5", "Placeholder")
	for i, doc := range group.Documents {
		row := i + 6
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("A%d", row), doc.Filename)
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("B%d", row), doc.SourceKey)
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("C%d", row), doc.Category.String())
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("D%d", row), len(doc.Records))
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("E%d", row), doc.Placeholder)
	}

	_ = f.SetCellValue(recordsSheet, "A1", "Account")
	_ = f.SetCellValue(recordsSheet, "B1", "Category")
	_ = f.SetCellValue(recordsSheet, "C1", "Number")
	_ = f.SetCellValue(recordsSheet, "D1", "Status")
	_ = f.SetCellValue(recordsSheet, "E1", "Amount Paid")
	_ = f.SetCellValue(recordsSheet, "F1", "Amount Due")
	_ = f.SetCellValue(recordsSheet, "G1", "Currency")
	row := 2
	for _, doc := range group.Documents {
		for _, rec := range doc.Records {
			_ = f.SetCellValue(recordsSheet, fmt.Sprintf("A%d", row), doc.SourceKey)
			_ = f.SetCellValue(recordsSheet, fmt.Sprintf("B%d", row), doc.Category.String())
			_ = f.SetCellValue(recordsSheet, fmt.Sprintf("C%d", row), rec.Label())
			_ = f.SetCellValue(recordsSheet, fmt.Sprintf("D%d", row), rec.Status)
			_ = f.SetCellValue(recordsSheet, fmt.Sprintf("E%d", row), minorToMajor(rec.AmountPaid))
			_ = f.SetCellValue(recordsSheet, fmt.Sprintf("F%d", row), minorToMajor(rec.AmountDue))
			_ = f.SetCellValue(recordsSheet, fmt.Sprintf("G%d", row), rec.Currency)
			row++
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// minorToMajor converts minor currency units (cents) to a decimal amount.
func minorToMajor(amount int64) float64 {
	return float64(amount) / 100
}
