package ranking_test

import (
	"testing"
	"time"

	"github.com/okian/earnsignal/internal/domain/model"
	"github.com/okian/earnsignal/internal/domain/ranking"
	. "github.com/smartystreets/goconvey/convey"
)

func d(s string) time.Time {
	t, _ := time.Parse(model.DateLayout, s)
	return t
}

func ev(ticker, date string, ais, delta, sue float64) model.EarningsEvent {
	return model.EarningsEvent{
		Ticker:   ticker,
		Date:     d(date),
		AIS:      model.Float(ais),
		NaiveAIS: model.Float(ais),
		AISDelta: model.Float(delta),
		SUE:      model.Float(sue),
	}
}

func TestAssemble(t *testing.T) {
	Convey("Given scored events from several tickers, unordered", t, func() {
		events := []model.EarningsEvent{
			ev("MSFT", "2024-01-25", 7, 1, 0.5),
			ev("AAPL", "2024-02-01", 6, 0, 1.0),
			ev("AAPL", "2024-05-02", 8, 2, 2.0),
			ev("NVDA", "2024-02-01", 9, 3, -1.0),
			ev("MSFT", "2024-04-25", 5, -2, 0.1),
		}

		snapshots := ranking.Assemble(events)

		Convey("Then there is one snapshot per distinct date, ascending", func() {
			So(len(snapshots), ShouldEqual, 4)
			So(model.FormatDate(snapshots[0].Date), ShouldEqual, "2024-01-25")
			So(model.FormatDate(snapshots[1].Date), ShouldEqual, "2024-02-01")
			So(model.FormatDate(snapshots[3].Date), ShouldEqual, "2024-05-02")
		})

		Convey("Then every event on a shared date contributes to that date's snapshot", func() {
			So(snapshots[1].Tickers(), ShouldResemble, []string{"AAPL", "MSFT", "NVDA"})
		})

		Convey("Then ticker coverage never shrinks", func() {
			for i := 1; i < len(snapshots); i++ {
				later := snapshots[i].Tickers()
				for _, ticker := range snapshots[i-1].Tickers() {
					So(later, ShouldContain, ticker)
				}
			}
		})

		Convey("Then each snapshot holds the latest event per ticker", func() {
			msft, ok := snapshots[2].Find("MSFT")
			So(ok, ShouldBeTrue)
			So(model.FormatDate(msft.Date), ShouldEqual, "2024-04-25")
			aapl, _ := snapshots[2].Find("AAPL")
			So(model.FormatDate(aapl.Date), ShouldEqual, "2024-02-01")
			_, ok = snapshots[0].Find("AAPL")
			So(ok, ShouldBeFalse)
		})
	})

	Convey("Given no events", t, func() {
		So(ranking.Assemble(nil), ShouldBeEmpty)
	})
}

func TestRank(t *testing.T) {
	Convey("Given assembled snapshots", t, func() {
		events := []model.EarningsEvent{
			ev("AAA", "2024-01-10", 1, 1, 1),
			ev("BBB", "2024-01-20", 2, 2, 2),
			ev("CCC", "2024-01-30", 3, 3, 3),
		}
		snapshots := ranking.Build(events)

		Convey("Then percentiles use only the snapshot's own cohort", func() {
			first, _ := snapshots[0].Find("AAA")
			So(*first.Ranks.AIS, ShouldEqual, 0.5)

			last, _ := snapshots[2].Find("AAA")
			So(*last.Ranks.AIS, ShouldAlmostEqual, 1.0/6, 1e-12)
		})

		Convey("Then ranks in one snapshot do not leak into another", func() {
			a0, _ := snapshots[0].Find("AAA")
			a1, _ := snapshots[1].Find("AAA")
			So(*a0.Ranks.AIS, ShouldEqual, 0.5)
			So(*a1.Ranks.AIS, ShouldEqual, 0.25)
		})

		Convey("Then the combined score averages AIS, delta and SUE ranks", func() {
			c, _ := snapshots[2].Find("CCC")
			So(*c.Ranks.Score, ShouldAlmostEqual, 5.0/6, 1e-12)
		})
	})

	Convey("Given an event without SUE", t, func() {
		noSUE := ev("DDD", "2024-03-01", 4, 1, 0)
		noSUE.SUE = nil
		snapshots := ranking.Build([]model.EarningsEvent{noSUE, ev("EEE", "2024-03-01", 5, 2, 1)})

		Convey("Then it has AIS ranks but no SUE rank and no combined score", func() {
			e, _ := snapshots[0].Find("DDD")
			So(e.Ranks.AIS, ShouldNotBeNil)
			So(e.Ranks.SUE, ShouldBeNil)
			So(e.Ranks.Score, ShouldBeNil)
			other, _ := snapshots[0].Find("EEE")
			So(*other.Ranks.SUE, ShouldEqual, 0.5)
		})
	})
}
