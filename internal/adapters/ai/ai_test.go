package ai_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/okian/earnsignal/internal/adapters/ai"
	"github.com/okian/earnsignal/internal/adapters/cache"
	"github.com/okian/earnsignal/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	_ = logger.Init()
}

// scriptedCompleter fails with the queued errors, then answers with reply.
type scriptedCompleter struct {
	mu    sync.Mutex
	errs  []error
	calls []ai.Request
	reply string
}

func (s *scriptedCompleter) Complete(_ context.Context, req ai.Request) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, req)
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		return "", err
	}
	return s.reply, nil
}

type sleeps struct {
	mu sync.Mutex
	d  []time.Duration
}

func (s *sleeps) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.d = append(s.d, d)
	return ctx.Err()
}

func TestGateway(t *testing.T) {
	Convey("Given a gateway over a scripted completer", t, func() {
		ctx := context.Background()
		store, err := cache.NewFileStore(t.TempDir(), cache.WithNamespace(cache.NamespaceAI))
		So(err, ShouldBeNil)
		slept := &sleeps{}
		comp := &scriptedCompleter{reply: "summary text"}
		newGateway := func(opts ...ai.Option) *ai.Gateway {
			base := []ai.Option{
				ai.WithCache(store),
				ai.WithSleeper(slept.Sleep),
				ai.WithJitter(func() float64 { return 0.25 }),
			}
			return ai.NewGateway(comp, append(base, opts...)...)
		}
		req := ai.Request{System: "sys", User: "transcript"}

		Convey("When the service answers", func() {
			g := newGateway()
			out, err := g.Complete(ctx, ai.KindSummary, req)

			Convey("Then the answer is returned and cached", func() {
				So(err, ShouldBeNil)
				So(out, ShouldEqual, "summary text")
				cached, ok, _ := store.Get(ctx, cache.PromptKey("sys", "transcript"))
				So(ok, ShouldBeTrue)
				So(string(cached), ShouldEqual, "summary text")
			})

			Convey("Then a repeat request does not reach the service", func() {
				again, err := g.Complete(ctx, ai.KindSummary, req)
				So(err, ShouldBeNil)
				So(again, ShouldEqual, out)
				So(len(comp.calls), ShouldEqual, 1)
			})
		})

		Convey("When the service rate limits twice", func() {
			comp.errs = []error{ai.ErrRateLimited, fmt.Errorf("wrapped: %w", ai.ErrRateLimited)}
			out, err := newGateway().Complete(ctx, ai.KindSummary, req)

			Convey("Then it backs off 2^i seconds plus jitter and succeeds", func() {
				So(err, ShouldBeNil)
				So(out, ShouldEqual, "summary text")
				So(slept.d, ShouldResemble, []time.Duration{1250 * time.Millisecond, 2250 * time.Millisecond})
			})
		})

		Convey("When the service always rate limits", func() {
			comp.errs = []error{ai.ErrRateLimited, ai.ErrRateLimited, ai.ErrRateLimited}
			_, err := newGateway(ai.WithMaxRetries(3)).Complete(ctx, ai.KindNaive, req)

			Convey("Then retries are exhausted and nothing is cached", func() {
				So(errors.Is(err, ai.ErrRetriesExceeded), ShouldBeTrue)
				So(len(comp.calls), ShouldEqual, 3)
				_, ok, _ := store.Get(ctx, cache.PromptKey("sys", "transcript"))
				So(ok, ShouldBeFalse)
			})
		})

		Convey("When the service fails otherwise", func() {
			boom := errors.New("bad request")
			comp.errs = []error{boom}
			_, err := newGateway().Complete(ctx, ai.KindScores, req)

			Convey("Then the error propagates without retry", func() {
				So(err, ShouldEqual, boom)
				So(len(comp.calls), ShouldEqual, 1)
				So(slept.d, ShouldBeEmpty)
			})
		})
	})
}

func TestAnalyst(t *testing.T) {
	Convey("Given an analyst with a transcript limit", t, func() {
		ctx := context.Background()
		comp := &scriptedCompleter{reply: `{"score": 7}`}
		prompts := ai.Prompts{Summary: "S", Scores: "D", Naive: "N"}
		a := ai.NewAnalyst(ai.NewGateway(comp, ai.WithSleeper((&sleeps{}).Sleep)), prompts, ai.WithTranscriptLimit(5))

		Convey("When summarizing a long transcript", func() {
			_, err := a.Summarize(ctx, "héllo world")

			Convey("Then only the first characters are sent", func() {
				So(err, ShouldBeNil)
				So(comp.calls[0].User, ShouldEqual, "héllo")
				So(comp.calls[0].System, ShouldEqual, "S")
				So(comp.calls[0].JSON, ShouldBeFalse)
			})
		})

		Convey("When the transcript is blank", func() {
			out, err := a.Summarize(ctx, "  \n")
			So(err, ShouldBeNil)
			So(out, ShouldBeEmpty)
			So(comp.calls, ShouldBeEmpty)
		})

		Convey("When scoring", func() {
			_, err := a.DetailedScores(ctx, "sum")
			So(err, ShouldBeNil)
			_, err = a.NaiveScore(ctx, "sum")
			So(err, ShouldBeNil)

			Convey("Then structured output is requested with each prompt", func() {
				So(comp.calls[0].System, ShouldEqual, "D")
				So(comp.calls[0].JSON, ShouldBeTrue)
				So(comp.calls[1].System, ShouldEqual, "N")
			})
		})
	})
}

func TestPrompts(t *testing.T) {
	Convey("Given the built-in prompts", t, func() {
		p, err := ai.LoadPrompts("")
		So(err, ShouldBeNil)
		So(p.Summary, ShouldNotBeEmpty)
		So(p.Scores, ShouldContainSubstring, `"Score"`)
		So(p.Naive, ShouldContainSubstring, `"score"`)

		Convey("When an override directory has one file", func() {
			dir := t.TempDir()
			So(os.WriteFile(filepath.Join(dir, ai.NaivePromptFile), []byte("custom"), 0o600), ShouldBeNil)
			q, err := ai.LoadPrompts(dir)

			Convey("Then that file wins and the rest fall back", func() {
				So(err, ShouldBeNil)
				So(q.Naive, ShouldEqual, "custom")
				So(q.Summary, ShouldEqual, p.Summary)
			})
		})
	})
}

func TestOpenAIClient(t *testing.T) {
	Convey("Given an OpenAI-compatible test server", t, func() {
		ctx := context.Background()
		var status int32 = http.StatusOK
		var got struct {
			Model          string `json:"model"`
			MaxTokens      int    `json:"max_tokens"`
			ResponseFormat *struct {
				Type string `json:"type"`
			} `json:"response_format"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewDecoder(r.Body).Decode(&got)
			w.Header().Set("Content-Type", "application/json")
			if s := atomic.LoadInt32(&status); s != http.StatusOK {
				w.WriteHeader(int(s))
				_, _ = w.Write([]byte(`{"error":{"message":"slow down","type":"rate_limit_exceeded"}}`))
				return
			}
			_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","created":1,"model":"gpt-4o",
				"choices":[{"index":0,"message":{"role":"assistant","content":"{\"score\": 6}"},"finish_reason":"stop"}],
				"usage":{"prompt_tokens":10,"completion_tokens":5,"total_tokens":15}}`))
		}))
		Reset(srv.Close)

		c, err := ai.NewOpenAIClient(ai.ClientConfig{
			Provider:    ai.ProviderOpenAI,
			Endpoint:    srv.URL + "/v1",
			Key:         "k",
			Model:       "gpt-4o",
			MaxTokens:   4096,
			Temperature: 0.2,
			TopP:        0.95,
		}, nil)
		So(err, ShouldBeNil)

		Convey("When a structured completion succeeds", func() {
			out, err := c.Complete(ctx, ai.Request{System: "sys", User: "usr", JSON: true})

			Convey("Then the content and request shape are as expected", func() {
				So(err, ShouldBeNil)
				So(out, ShouldEqual, `{"score": 6}`)
				So(got.Model, ShouldEqual, "gpt-4o")
				So(got.MaxTokens, ShouldEqual, 4096)
				So(got.ResponseFormat, ShouldNotBeNil)
				So(got.ResponseFormat.Type, ShouldEqual, "json_object")
				So(len(got.Messages), ShouldEqual, 2)
				So(got.Messages[0].Role, ShouldEqual, "system")
				So(got.Messages[1].Content, ShouldEqual, "usr")
			})
		})

		Convey("When the service answers 429", func() {
			atomic.StoreInt32(&status, http.StatusTooManyRequests)
			_, err := c.Complete(ctx, ai.Request{System: "s", User: "u"})

			Convey("Then the error is a rate limit", func() {
				So(errors.Is(err, ai.ErrRateLimited), ShouldBeTrue)
			})
		})

		Convey("When the service answers 400", func() {
			atomic.StoreInt32(&status, http.StatusBadRequest)
			_, err := c.Complete(ctx, ai.Request{System: "s", User: "u"})
			So(err, ShouldNotBeNil)
			So(errors.Is(err, ai.ErrRateLimited), ShouldBeFalse)
		})
	})

	Convey("Given the Azure provider without an endpoint", t, func() {
		_, err := ai.NewOpenAIClient(ai.ClientConfig{Provider: ai.ProviderAzure, Key: "k"}, nil)
		So(err, ShouldNotBeNil)
		_, err = ai.NewOpenAIClient(ai.ClientConfig{Provider: "other"}, nil)
		So(strings.Contains(err.Error(), "unknown"), ShouldBeTrue)
	})
}
