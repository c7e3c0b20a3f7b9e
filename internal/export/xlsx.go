package export

import (
	"fmt"

	"github.com/newthinker/trailsim/internal/backtest"
	"github.com/xuri/excelize/v2"
)

// SheetName is the worksheet holding the trade log.
const SheetName = "Trades"

// Number format 10 is the built-in "0.00%".
const percentFmt = 10

// percentColumns hold fractional returns.
var percentColumns = []string{"C", "F"}

// XLSX renders the trade log as a workbook with one header row
func XLSX(res *backtest.Result) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return nil, fmt.Errorf("naming sheet: %w", err)
	}

	header := make([]any, len(Columns))
	for i, c := range Columns {
		header[i] = c
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return nil, fmt.Errorf("writing header: %w", err)
	}

	for i, rec := range res.Records {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		row := cells(rec)
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return nil, fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}

	if err := styleSheet(f, len(res.Records)); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("encoding workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func styleSheet(f *excelize.File, rows int) error {
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	if err := f.SetRowStyle(SheetName, 1, 1, bold); err != nil {
		return err
	}

	if rows > 0 {
		pct, err := f.NewStyle(&excelize.Style{NumFmt: percentFmt})
		if err != nil {
			return err
		}
		for _, col := range percentColumns {
			if err := f.SetCellStyle(SheetName, col+"2", fmt.Sprintf("%s%d", col, rows+1), pct); err != nil {
				return err
			}
		}
	}

	last, _ := excelize.ColumnNumberToName(len(Columns))
	if err := f.SetColWidth(SheetName, "A", last, 14); err != nil {
		return err
	}

	return f.SetPanes(SheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}
