package export

import "errors"

var (
	// ErrInvalidColumn is returned by ColumnLetter for indexes below 1.
	ErrInvalidColumn = errors.New("column index must be positive")
	// ErrNoSnapshots is returned when a workbook needs at least one snapshot.
	ErrNoSnapshots = errors.New("no snapshots to export")
)
