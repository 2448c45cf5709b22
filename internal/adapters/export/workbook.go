package export

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"github.com/okian/earnsignal/internal/domain/model"
	"github.com/okian/earnsignal/internal/domain/ranking"
)

// Sheet names.
const (
	LatestSheet  = "Latest Data"
	HistorySheet = "Full Data"
)

const snapshotColumn = "snapshot"

// ColumnLetter converts a 1-based column index to its spreadsheet letters:
// 1 is A, 27 is AA, 16384 is XFD.
func ColumnLetter(n int) (string, error) {
	if n <= 0 {
		return "", ErrInvalidColumn
	}
	var buf []byte
	for n > 0 {
		n--
		buf = append([]byte{byte('A' + n%26)}, buf...)
		n /= 26
	}
	return string(buf), nil
}

// ReturnFormula builds the return formula for one row: blank when either
// price is missing, otherwise (end-start)/start.
func ReturnFormula(startCol, endCol string, row int) string {
	s := fmt.Sprintf("%s%d", startCol, row)
	e := fmt.Sprintf("%s%d", endCol, row)
	return fmt.Sprintf(`=IF(OR(ISBLANK(%s),ISBLANK(%s)),"",(%s-%s)/%s)`, e, s, e, s, s)
}

// WriteLatestWorkbook writes the last snapshot, one row per ticker.
func WriteLatestWorkbook(path string, snapshots []ranking.Snapshot) error {
	if len(snapshots) == 0 {
		return ErrNoSnapshots
	}
	latest := &snapshots[len(snapshots)-1]

	f, err := newSheet(LatestSheet, Names(LatestFields))
	if err != nil {
		return err
	}
	defer f.Close()

	for i := range latest.Events {
		row := i + 2
		if err := writeFields(f, LatestSheet, row, 1, LatestFields, &latest.Events[i]); err != nil {
			return err
		}
	}
	return finish(f, LatestSheet, len(LatestFields), len(latest.Events)+1, path)
}

// WriteHistoryWorkbook writes every snapshot member as a row tagged with its
// snapshot date, followed by the return formula columns.
func WriteHistoryWorkbook(path string, snapshots []ranking.Snapshot) error {
	if len(snapshots) == 0 {
		return ErrNoSnapshots
	}
	headers := make([]string, 0, 1+len(HistoryFields)+len(HistoryReturns))
	headers = append(headers, snapshotColumn)
	headers = append(headers, Names(HistoryFields)...)
	for _, r := range HistoryReturns {
		headers = append(headers, r.Name)
	}
	index := make(map[string]int, len(headers))
	for i, h := range headers {
		index[h] = i + 1
	}

	f, err := newSheet(HistorySheet, headers)
	if err != nil {
		return err
	}
	defer f.Close()

	row := 2
	for i := range snapshots {
		s := &snapshots[i]
		for j := range s.Events {
			if err := setCell(f, HistorySheet, 1, row, model.FormatDate(s.Date)); err != nil {
				return err
			}
			if err := writeFields(f, HistorySheet, row, 2, HistoryFields, &s.Events[j]); err != nil {
				return err
			}
			for _, r := range HistoryReturns {
				if err := setReturn(f, index, r, row); err != nil {
					return err
				}
			}
			row++
		}
	}
	return finish(f, HistorySheet, len(headers), row-1, path)
}

func newSheet(sheet string, headers []string) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("name sheet: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("create header style: %w", err)
	}
	for i, h := range headers {
		if err := setCell(f, sheet, i+1, 1, h); err != nil {
			_ = f.Close()
			return nil, err
		}
	}
	first, _ := excelize.CoordinatesToCellName(1, 1)
	last, _ := excelize.CoordinatesToCellName(len(headers), 1)
	if err := f.SetCellStyle(sheet, first, last, bold); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("style header: %w", err)
	}
	return f, nil
}

func writeFields(f *excelize.File, sheet string, row, col int, fields []Field, e *model.EarningsEvent) error {
	for i, field := range fields {
		v := field.Value(e)
		if v == nil {
			// left empty so the return formulas see a blank cell
			continue
		}
		if err := setCell(f, sheet, col+i, row, v); err != nil {
			return err
		}
	}
	return nil
}

func setCell(f *excelize.File, sheet string, col, row int, v any) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	if err := f.SetCellValue(sheet, cell, v); err != nil {
		return fmt.Errorf("set %s: %w", cell, err)
	}
	return nil
}

func setReturn(f *excelize.File, index map[string]int, r ReturnColumn, row int) error {
	start, err := ColumnLetter(index[r.Start])
	if err != nil {
		return fmt.Errorf("%s start column %s: %w", r.Name, r.Start, err)
	}
	end, err := ColumnLetter(index[r.End])
	if err != nil {
		return fmt.Errorf("%s end column %s: %w", r.Name, r.End, err)
	}
	target, err := excelize.CoordinatesToCellName(index[r.Name], row)
	if err != nil {
		return err
	}
	if err := f.SetCellFormula(HistorySheet, target, ReturnFormula(start, end, row)); err != nil {
		return fmt.Errorf("set formula %s: %w", target, err)
	}
	return nil
}

// finish freezes the header row, filters the used range and saves.
func finish(f *excelize.File, sheet string, cols, rows int, path string) error {
	if err := f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("freeze header: %w", err)
	}
	last, err := excelize.CoordinatesToCellName(cols, rows)
	if err != nil {
		return err
	}
	if err := f.AutoFilter(sheet, "A1:"+last, nil); err != nil {
		return fmt.Errorf("autofilter: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}
