package fetcher_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/okian/earnsignal/internal/adapters/cache"
	"github.com/okian/earnsignal/internal/adapters/fetcher"
	"github.com/okian/earnsignal/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	_ = logger.Init()
}

type recordingSleeper struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (s *recordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.waits = append(s.waits, d)
	return ctx.Err()
}

type memStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemStore() *memStore { return &memStore{data: map[string][]byte{}} }

func (m *memStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memStore) Put(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), value...)
	return nil
}

func (m *memStore) Close() error { return nil }

// scripted replies with the given statuses in order, then 200.
func scripted(calls *int32, statuses ...int) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		n := int(atomic.AddInt32(calls, 1)) - 1
		if n < len(statuses) {
			w.WriteHeader(statuses[n])
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}
}

func TestFetch(t *testing.T) {
	Convey("Given a fetcher against a test server", t, func() {
		ctx := context.Background()
		var calls int32
		sleeper := &recordingSleeper{}
		store := newMemStore()

		newFetcher := func(h http.Handler, opts ...fetcher.Option) (*fetcher.Fetcher, string) {
			srv := httptest.NewServer(h)
			Reset(srv.Close)
			base := []fetcher.Option{
				fetcher.WithCache(store),
				fetcher.WithSleeper(sleeper.Sleep),
				fetcher.WithBackoffUnit(time.Second),
			}
			return fetcher.New(append(base, opts...)...), srv.URL + "/v3/x?apikey=secret"
		}

		Convey("When the first response is 200", func() {
			f, url := newFetcher(scripted(&calls))
			body, err := f.Fetch(ctx, url)

			Convey("Then the body is returned and cached", func() {
				So(err, ShouldBeNil)
				So(string(body), ShouldEqual, `{"ok":true}`)
				cached, ok, _ := store.Get(ctx, cache.URLKey(url))
				So(ok, ShouldBeTrue)
				So(cached, ShouldResemble, body)
			})

			Convey("Then a second fetch is served from cache without network calls", func() {
				again, err := f.Fetch(ctx, url)
				So(err, ShouldBeNil)
				So(again, ShouldResemble, body)
				So(atomic.LoadInt32(&calls), ShouldEqual, 1)
			})
		})

		Convey("When the server throttles twice", func() {
			f, url := newFetcher(scripted(&calls, http.StatusTooManyRequests, http.StatusTooManyRequests))
			body, err := f.Fetch(ctx, url)

			Convey("Then it backs off exponentially and succeeds", func() {
				So(err, ShouldBeNil)
				So(string(body), ShouldEqual, `{"ok":true}`)
				So(sleeper.waits, ShouldResemble, []time.Duration{time.Second, 2 * time.Second})
			})
		})

		Convey("When every attempt is throttled", func() {
			f, url := newFetcher(scripted(&calls, 429, 429, 429, 429))
			_, err := f.Fetch(ctx, url)

			Convey("Then retries are exhausted", func() {
				So(errors.Is(err, fetcher.ErrRetriesExceeded), ShouldBeTrue)
				So(atomic.LoadInt32(&calls), ShouldEqual, 3)
			})
		})

		Convey("When the server returns 404", func() {
			f, url := newFetcher(scripted(&calls, http.StatusNotFound))
			_, err := f.Fetch(ctx, url)

			Convey("Then it fails at once with the status", func() {
				var se *fetcher.StatusError
				So(errors.As(err, &se), ShouldBeTrue)
				So(se.StatusCode, ShouldEqual, http.StatusNotFound)
				So(se.URL, ShouldNotContainSubstring, "secret")
				So(atomic.LoadInt32(&calls), ShouldEqual, 1)
				So(sleeper.waits, ShouldBeEmpty)
			})

			Convey("Then nothing is cached", func() {
				_, ok, _ := store.Get(ctx, cache.URLKey(url))
				So(ok, ShouldBeFalse)
			})
		})

		Convey("When the transport fails on every attempt", func() {
			srv := httptest.NewServer(http.NotFoundHandler())
			url := srv.URL + "/gone"
			srv.Close()
			f := fetcher.New(fetcher.WithSleeper(sleeper.Sleep), fetcher.WithMaxRetries(2))
			_, err := f.Fetch(ctx, url)

			Convey("Then it sleeps between attempts and propagates the last error", func() {
				So(err, ShouldNotBeNil)
				So(errors.Is(err, fetcher.ErrRetriesExceeded), ShouldBeFalse)
				So(sleeper.waits, ShouldResemble, []time.Duration{time.Second})
			})
		})

		Convey("When the context is cancelled during backoff", func() {
			f, url := newFetcher(scripted(&calls, 429, 429, 429))
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			_, err := f.Fetch(cctx, url)
			So(errors.Is(err, context.Canceled), ShouldBeTrue)
		})
	})
}

func TestRedact(t *testing.T) {
	Convey("Given a URL with an api key", t, func() {
		So(fetcher.Redact("https://h/v3/a?symbol=X&apikey=abc123&x=1"), ShouldEqual, "https://h/v3/a?symbol=X&apikey=***&x=1")
		So(fetcher.Redact("https://h/v3/a"), ShouldEqual, "https://h/v3/a")
	})
}
