// Package export renders the expense list as a spreadsheet or a text table.
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"expenses/internal/core"
)

const (
	SheetExpenses   = "Expenses"
	SheetByCategory = "By Category"
)

// WriteXLSX writes a workbook with the full list and the per-category totals.
func WriteXLSX(w io.Writer, items []core.Expense) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetExpenses); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(SheetByCategory); err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4A6FA5"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}
	amountStyle, err := f.NewStyle(&excelize.Style{
		NumFmt:    4, // #,##0.00
		Alignment: &excelize.Alignment{Horizontal: "right"},
	})
	if err != nil {
		return fmt.Errorf("amount style: %w", err)
	}
	totalStyle, err := f.NewStyle(&excelize.Style{
		Font:   &excelize.Font{Bold: true},
		NumFmt: 4,
	})
	if err != nil {
		return fmt.Errorf("total style: %w", err)
	}

	// Expenses
	for i, h := range []string{"#", "Title", "Amount", "Category"} {
		f.SetCellValue(SheetExpenses, cell(rune('A'+i), 1), h)
	}
	f.SetCellStyle(SheetExpenses, "A1", "D1", headerStyle)

	row := 2
	for i, e := range items {
		f.SetCellValue(SheetExpenses, cell('A', row), i+1)
		f.SetCellValue(SheetExpenses, cell('B', row), e.Title)
		f.SetCellValue(SheetExpenses, cell('C', row), e.Amount.InexactFloat64())
		f.SetCellValue(SheetExpenses, cell('D', row), e.Category)
		f.SetCellStyle(SheetExpenses, cell('C', row), cell('C', row), amountStyle)
		row++
	}
	if len(items) > 0 {
		f.SetCellValue(SheetExpenses, cell('B', row), "Total")
		f.SetCellValue(SheetExpenses, cell('C', row), core.Total(items).InexactFloat64())
		f.SetCellStyle(SheetExpenses, cell('B', row), cell('C', row), totalStyle)
	}
	f.SetColWidth(SheetExpenses, "A", "A", 6)
	f.SetColWidth(SheetExpenses, "B", "B", 32)
	f.SetColWidth(SheetExpenses, "C", "C", 14)
	f.SetColWidth(SheetExpenses, "D", "D", 20)

	// By Category
	f.SetCellValue(SheetByCategory, "A1", "Category")
	f.SetCellValue(SheetByCategory, "B1", "Amount")
	f.SetCellStyle(SheetByCategory, "A1", "B1", headerStyle)
	row = 2
	for _, c := range core.ByCategory(items) {
		f.SetCellValue(SheetByCategory, cell('A', row), c.Name)
		f.SetCellValue(SheetByCategory, cell('B', row), c.Amount.InexactFloat64())
		f.SetCellStyle(SheetByCategory, cell('B', row), cell('B', row), amountStyle)
		row++
	}
	f.SetColWidth(SheetByCategory, "A", "A", 24)
	f.SetColWidth(SheetByCategory, "B", "B", 14)

	f.SetActiveSheet(0)
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func cell(col rune, row int) string {
	return fmt.Sprintf("%c%d", col, row)
}
