package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/okian/earnsignal/internal/adapters/http/api"
	"github.com/okian/earnsignal/internal/adapters/repository"
	"github.com/okian/earnsignal/internal/domain/model"
	"github.com/okian/earnsignal/internal/domain/ranking"
	"github.com/okian/earnsignal/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	_ = logger.Init()
}

type mockStatsProvider struct {
	stats map[string]interface{}
}

func (m *mockStatsProvider) GetStats() map[string]interface{} {
	return m.stats
}

type failingStore struct{ err error }

func (f failingStore) TopN(context.Context, int) ([]repository.Entry, error) { return nil, f.err }
func (f failingStore) Rank(context.Context, string) (repository.Entry, error) {
	return repository.Entry{}, f.err
}

func loadedStore() *repository.SnapshotStore {
	d := time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)
	store := repository.NewSnapshotStore()
	store.Replace([]ranking.Snapshot{{
		Date: d,
		Events: []model.EarningsEvent{
			{Ticker: "AAPL", Date: d, AIS: model.Float(6), Ranks: model.Ranks{Score: model.Float(0.4)}},
			{Ticker: "MSFT", Date: d, AIS: model.Float(8), Ranks: model.Ranks{Score: model.Float(0.9)}},
			{Ticker: "NVDA", Date: d, AIS: model.Float(7)},
		},
	}})
	return store
}

func get(h http.Handler, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestServer_Routes(t *testing.T) {
	Convey("Given a status server over a loaded store", t, func() {
		stats := &mockStatsProvider{stats: map[string]interface{}{"running": false, "tickersTotal": 3}}
		h := api.NewServer(loadedStore(), stats, api.WithMaxLimit(50)).Handler()

		Convey("When requesting /healthz", func() {
			w := get(h, "/healthz")

			Convey("Then the Prometheus exposition is served", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, "# TYPE")
			})
		})

		Convey("When requesting /stats", func() {
			w := get(h, "/stats")

			Convey("Then the provider's stats are returned as JSON", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var body map[string]interface{}
				So(json.Unmarshal(w.Body.Bytes(), &body), ShouldBeNil)
				So(body["tickersTotal"], ShouldEqual, 3)
			})
		})

		Convey("When requesting /leaderboard", func() {
			w := get(h, "/leaderboard?limit=2")

			Convey("Then rows come ordered by combined score", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var rows []map[string]interface{}
				So(json.Unmarshal(w.Body.Bytes(), &rows), ShouldBeNil)
				So(len(rows), ShouldEqual, 2)
				So(rows[0]["ticker"], ShouldEqual, "MSFT")
				So(rows[0]["rank"], ShouldEqual, 1)
				So(rows[0]["date"], ShouldEqual, "2024-05-02")
				So(rows[1]["ticker"], ShouldEqual, "AAPL")
			})

			Convey("Then a missing limit uses the default", func() {
				w := get(h, "/leaderboard")
				So(w.Code, ShouldEqual, http.StatusOK)
			})

			Convey("Then invalid limits are rejected", func() {
				So(get(h, "/leaderboard?limit=0").Code, ShouldEqual, http.StatusBadRequest)
				So(get(h, "/leaderboard?limit=abc").Code, ShouldEqual, http.StatusBadRequest)
				So(get(h, "/leaderboard?limit=51").Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When requesting /rank/{ticker}", func() {
			Convey("Then a known ticker returns its row", func() {
				w := get(h, "/rank/aapl")
				So(w.Code, ShouldEqual, http.StatusOK)
				var row map[string]interface{}
				So(json.Unmarshal(w.Body.Bytes(), &row), ShouldBeNil)
				So(row["ticker"], ShouldEqual, "AAPL")
				So(row["rank"], ShouldEqual, 2)
			})

			Convey("Then an unscored ticker is ranked last with a null score", func() {
				w := get(h, "/rank/NVDA")
				So(w.Code, ShouldEqual, http.StatusOK)
				var row map[string]interface{}
				So(json.Unmarshal(w.Body.Bytes(), &row), ShouldBeNil)
				So(row["score"], ShouldBeNil)
				So(row["rank"], ShouldEqual, 3)
			})

			Convey("Then an unknown ticker is 404", func() {
				So(get(h, "/rank/ZZZZ").Code, ShouldEqual, http.StatusNotFound)
			})
		})

		Convey("When requesting an unknown route", func() {
			So(get(h, "/events").Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("When posting to a read-only route", func() {
			req := httptest.NewRequest(http.MethodPost, "/leaderboard", nil)
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
		})
	})
}

func TestServer_NotReady(t *testing.T) {
	Convey("Given a store without a completed run", t, func() {
		h := api.NewServer(repository.NewSnapshotStore(), &mockStatsProvider{}).Handler()

		Convey("Then the leaderboard reports not ready", func() {
			w := get(h, "/leaderboard?limit=5")
			So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
			var body map[string]string
			So(json.Unmarshal(w.Body.Bytes(), &body), ShouldBeNil)
			So(body["code"], ShouldEqual, "not_ready")
		})
	})

	Convey("Given a store that fails", t, func() {
		h := api.NewServer(failingStore{err: errors.New("boom")}, &mockStatsProvider{}).Handler()

		Convey("Then handlers answer 500", func() {
			So(get(h, "/leaderboard").Code, ShouldEqual, http.StatusInternalServerError)
			So(get(h, "/rank/AAPL").Code, ShouldEqual, http.StatusInternalServerError)
		})
	})
}

func TestMetricsMiddleware(t *testing.T) {
	Convey("Given a handler that writes a status", t, func() {
		handler := api.MetricsMiddleware(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		}, "test")

		Convey("Then the status passes through", func() {
			w := httptest.NewRecorder()
			handler(w, httptest.NewRequest(http.MethodGet, "/x", nil))
			So(w.Code, ShouldEqual, http.StatusTeapot)
		})
	})
}

func TestErrors(t *testing.T) {
	Convey("Given operation-tagged errors", t, func() {
		err := api.NewKind("api.op", api.ErrBadRequest)
		So(errors.Is(err, api.ErrBadRequest), ShouldBeTrue)
		So(err.Error(), ShouldEqual, "api.op: bad request")
		So(api.Wrap("api.op", nil), ShouldBeNil)
	})
}
