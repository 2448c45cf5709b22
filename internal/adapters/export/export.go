// Package export serializes ranked snapshots into the snapshot JSON file and
// the spreadsheet reports.
package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/okian/earnsignal/internal/domain/model"
	"github.com/okian/earnsignal/internal/domain/ranking"
)

// File names written under the output directory.
const (
	SnapshotFile        = "snapshots.json"
	LatestWorkbookFile  = "earnings-data-latest.xlsx"
	HistoryWorkbookFile = "earnings-data-history.xlsx"
)

// record is a JSON object whose keys keep field order.
type record struct {
	fields []Field
	event  *model.EarningsEvent
}

func (r record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range r.fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.Name)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(f.Value(r.event))
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", f.Name, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MarshalSnapshots renders snapshots as an indented JSON object keyed by
// snapshot date. Dates ascend, events within a date are ordered by ticker, and
// absent values are written as null.
func MarshalSnapshots(snapshots []ranking.Snapshot) ([]byte, error) {
	// YYYY-MM-DD keys sort chronologically, and encoding/json sorts map keys.
	out := make(map[string][]record, len(snapshots))
	for i := range snapshots {
		s := &snapshots[i]
		rows := make([]record, len(s.Events))
		for j := range s.Events {
			rows[j] = record{fields: SnapshotFields, event: &s.Events[j]}
		}
		out[model.FormatDate(s.Date)] = rows
	}
	return json.MarshalIndent(out, "", "  ")
}

// WriteSnapshots writes MarshalSnapshots output to path.
func WriteSnapshots(path string, snapshots []ranking.Snapshot) error {
	data, err := MarshalSnapshots(snapshots)
	if err != nil {
		return fmt.Errorf("encode snapshots: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
