package export

import (
	"time"

	"github.com/okian/earnsignal/internal/domain/model"
)

// Field is one named output column and how to read it from an event.
// Value returns nil for absent data.
type Field struct {
	Name  string
	Value func(e *model.EarningsEvent) any
}

// ReturnColumn is a computed return between two price columns of the history
// workbook.
type ReturnColumn struct {
	Name  string
	Start string
	End   string
}

func float(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

func date(t *time.Time) any {
	if t == nil {
		return nil
	}
	return model.FormatDate(*t)
}

var (
	fDate     = Field{"date", func(e *model.EarningsEvent) any { return model.FormatDate(e.Date) }}
	fSymbol   = Field{"symbol", func(e *model.EarningsEvent) any { return e.Ticker }}
	fYear     = Field{"year", func(e *model.EarningsEvent) any { return e.Year }}
	fQuarter  = Field{"quarter", func(e *model.EarningsEvent) any { return e.Quarter }}
	fEstimate = Field{"estimatedEarning", func(e *model.EarningsEvent) any { return float(e.EstimatedEPS) }}
	fActual   = Field{"actualEarningResult", func(e *model.EarningsEvent) any { return float(e.ActualEPS) }}
	fAIS      = Field{"ais", func(e *model.EarningsEvent) any { return float(e.AIS) }}
	fDelta    = Field{"ais_delta", func(e *model.EarningsEvent) any { return float(e.AISDelta) }}
	fNaive    = Field{"ais_naive", func(e *model.EarningsEvent) any { return float(e.NaiveAIS) }}
	fSUE      = Field{"sue", func(e *model.EarningsEvent) any { return float(e.SUE) }}
	fAISPct   = Field{"ais%", func(e *model.EarningsEvent) any { return float(e.Ranks.AIS) }}
	fDeltaPct = Field{"ais_delta%", func(e *model.EarningsEvent) any { return float(e.Ranks.AISDelta) }}
	fNaivePct = Field{"ais_naive%", func(e *model.EarningsEvent) any { return float(e.Ranks.NaiveAIS) }}
	fSUEPct   = Field{"sue%", func(e *model.EarningsEvent) any { return float(e.Ranks.SUE) }}
	fScore    = Field{"score", func(e *model.EarningsEvent) any { return float(e.Ranks.Score) }}
)

func priceFields() []Field {
	labels := []struct {
		name string
		get  func(p *model.PriceTrail) *model.Observation
	}{
		{"day0", func(p *model.PriceTrail) *model.Observation { return &p.Day0 }},
		{"day1", func(p *model.PriceTrail) *model.Observation { return &p.Day1 }},
		{"day2", func(p *model.PriceTrail) *model.Observation { return &p.Day2 }},
		{"day7", func(p *model.PriceTrail) *model.Observation { return &p.Day7 }},
		{"day30", func(p *model.PriceTrail) *model.Observation { return &p.Day30 }},
	}
	out := make([]Field, 0, 3*len(labels))
	for _, l := range labels {
		get := l.get
		out = append(out, Field{l.name + "_date", func(e *model.EarningsEvent) any { return date(get(&e.Prices).Date) }})
	}
	for _, l := range labels {
		get := l.get
		out = append(out, Field{l.name + "_price", func(e *model.EarningsEvent) any { return float(get(&e.Prices).Close) }})
	}
	for _, l := range labels {
		get := l.get
		out = append(out, Field{l.name + "_sp500_price", func(e *model.EarningsEvent) any { return float(get(&e.Prices).BenchmarkClose) }})
	}
	return out
}

// LatestFields are the columns of the latest-snapshot workbook.
var LatestFields = []Field{
	fDate, fSymbol, fYear, fQuarter,
	fEstimate, fActual, fAIS, fDelta, fNaive, fSUE,
	fAISPct, fDeltaPct, fNaivePct, fSUEPct,
	fScore,
}

// SnapshotFields are the keys written for every event of the snapshot file.
var SnapshotFields = append(append([]Field(nil), LatestFields...), priceFields()...)

// HistoryFields are the data columns of the history workbook. The workbook
// prefixes them with the snapshot date and appends HistoryReturns.
var HistoryFields = SnapshotFields

// HistoryReturns are the return formulas of the history workbook, each
// measured from the day1 close.
var HistoryReturns = []ReturnColumn{
	{Name: "day2_return", Start: "day1_price", End: "day2_price"},
	{Name: "day7_return", Start: "day1_price", End: "day7_price"},
	{Name: "day30_return", Start: "day1_price", End: "day30_price"},
	{Name: "day2_sp500_return", Start: "day1_sp500_price", End: "day2_sp500_price"},
	{Name: "day7_sp500_return", Start: "day1_sp500_price", End: "day7_sp500_price"},
	{Name: "day30_sp500_return", Start: "day1_sp500_price", End: "day30_sp500_price"},
}

// Names lists the field names in order.
func Names(fields []Field) []string {
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = f.Name
	}
	return out
}
