// Package excel exports cutoff tables as spreadsheets for researchers who
// carry results into their manuscripts.
package excel

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"godfi/domain/cutoff"
)

const sheetName = "DFI Cutoffs"

// WriteTable writes one workbook with the cutoff table, two rows per level
// (cutoffs, then power), mirroring the text rendering.
func WriteTable(table cutoff.Table, path string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}

	headers := []string{"Level", "Row", "Magnitude", "SRMR", "RMSEA", "CFI"}
	for col, h := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheetName, cell, h); err != nil {
			return err
		}
	}

	rowNum := 2
	for _, row := range table.Rows {
		cutoffCells := []interface{}{
			fmt.Sprintf("Level-%d", row.Level), "Cutoff", magnitude(row),
			indexValue(row.SRMR), indexValue(row.RMSEA), indexValue(row.CFI),
		}
		powerCells := []interface{}{
			"", powerLabel(row.Level), "",
			indexPower(row.SRMR), indexPower(row.RMSEA), indexPower(row.CFI),
		}
		for _, cells := range [][]interface{}{cutoffCells, powerCells} {
			for col, v := range cells {
				cell, err := excelize.CoordinatesToCellName(col+1, rowNum)
				if err != nil {
					return err
				}
				if err := f.SetCellValue(sheetName, cell, v); err != nil {
					return err
				}
			}
			rowNum++
		}
	}

	metaCell, err := excelize.CoordinatesToCellName(1, rowNum+1)
	if err != nil {
		return err
	}
	meta := fmt.Sprintf("N = %d, replications = %d, estimator = %s", table.SampleSize, table.Reps, table.Estimator)
	if err := f.SetCellValue(sheetName, metaCell, meta); err != nil {
		return err
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}

func magnitude(row cutoff.Row) interface{} {
	if row.Level == 0 {
		return ""
	}
	return row.Magnitude
}

func indexValue(ic cutoff.IndexCutoff) interface{} {
	if ic.None {
		return "NONE"
	}
	return ic.Value
}

func indexPower(ic cutoff.IndexCutoff) interface{} {
	if ic.None {
		return "--"
	}
	return fmt.Sprintf("%.0f%%", ic.Power*100)
}

func powerLabel(level int) string {
	if level == 0 {
		return "Specificity"
	}
	return "Sensitivity"
}
