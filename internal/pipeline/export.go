package pipeline

import (
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"pccmo/internal"
	"pccmo/internal/sheets"
	"pccmo/internal/util"
)

const summarySheet = "สรุป"

// ExportOrdersToXLSX writes orders in the spreadsheet column layout. When
// summary is non-empty a second sheet lists it.
func ExportOrdersToXLSX(orders []internal.StoredOrder, summary []internal.SummaryRow, outputPath string) error {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	for i, h := range sheets.Headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	for i, order := range orders {
		r := i + 2
		for c, value := range sheets.BuildRow(order) {
			cell, _ := excelize.CoordinatesToCellName(c+1, r)
			_ = f.SetCellValue(sheet, cell, value)
		}
	}

	if len(summary) > 0 {
		if _, err := f.NewSheet(summarySheet); err != nil {
			return err
		}
		_ = f.SetSheetRow(summarySheet, "A1", &[]any{"กลุ่ม", "จำนวนรายการ", "ปูนรวม (คิว)"})
		for i, row := range summary {
			cell, _ := excelize.CoordinatesToCellName(1, i+2)
			_ = f.SetSheetRow(summarySheet, cell, &[]any{
				util.Deref(row.GroupKey),
				row.OrderCount,
				row.TotalCement.InexactFloat64(),
			})
		}
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	return f.SaveAs(outputPath)
}
