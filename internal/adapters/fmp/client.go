// Package fmp reads index membership, earnings and price data from the
// Financial Modeling Prep HTTP API.
package fmp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/okian/earnsignal/internal/domain/model"
	"github.com/okian/earnsignal/pkg/logger"
)

// DefaultBaseURL is the public API root.
const DefaultBaseURL = "https://financialmodelingprep.com/api"

// Getter returns the body of a GET request. *fetcher.Fetcher satisfies it.
type Getter interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API root.
func WithBaseURL(base string) Option {
	return func(c *Client) {
		if base != "" {
			c.base = strings.TrimRight(base, "/")
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// Client maps endpoints to domain records.
type Client struct {
	get    Getter
	apiKey string
	base   string
	logger logger.Logger
}

// New returns a Client issuing requests through get.
func New(get Getter, apiKey string, opts ...Option) *Client {
	c := &Client{get: get, apiKey: apiKey, base: DefaultBaseURL}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = logger.Get().Named("fmp")
	}
	return c
}

func (c *Client) url(path string, query url.Values) string {
	if query == nil {
		query = url.Values{}
	}
	query.Set("apikey", c.apiKey)
	return c.base + "/" + path + "?" + query.Encode()
}

func (c *Client) fetchJSON(ctx context.Context, path string, query url.Values, out any) error {
	body, err := c.get.Fetch(ctx, c.url(path, query))
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrDecode, path, err)
	}
	return nil
}

type constituentDTO struct {
	Symbol         string `json:"symbol"`
	DateFirstAdded string `json:"dateFirstAdded"`
}

// Constituents returns the current index membership.
func (c *Client) Constituents(ctx context.Context) ([]model.Constituent, error) {
	var rows []constituentDTO
	if err := c.fetchJSON(ctx, "v3/sp500_constituent", nil, &rows); err != nil {
		return nil, err
	}
	out := make([]model.Constituent, len(rows))
	for i, r := range rows {
		out[i] = model.Constituent{Symbol: r.Symbol, DateFirstAdded: r.DateFirstAdded}
	}
	return out, nil
}

type changeDTO struct {
	Date          string `json:"date"`
	SymbolAdded   string `json:"symbol"`
	RemovedTicker string `json:"removedTicker"`
}

// ConstituentChanges returns the membership change log in source order.
func (c *Client) ConstituentChanges(ctx context.Context) ([]model.ConstituentChange, error) {
	var rows []changeDTO
	if err := c.fetchJSON(ctx, "v3/historical/sp500_constituent", nil, &rows); err != nil {
		return nil, err
	}
	out := make([]model.ConstituentChange, len(rows))
	for i, r := range rows {
		out[i] = model.ConstituentChange{Date: r.Date, Added: r.SymbolAdded, Removed: r.RemovedTicker}
	}
	return out, nil
}

// TranscriptRefs lists the earnings calls with transcripts. Each source row
// is [quarter, year, "YYYY-MM-DD HH:MM:SS"]; malformed rows are skipped.
func (c *Client) TranscriptRefs(ctx context.Context, ticker string) ([]model.TranscriptRef, error) {
	var rows [][]json.RawMessage
	q := url.Values{"symbol": {ticker}}
	if err := c.fetchJSON(ctx, "v4/earning_call_transcript", q, &rows); err != nil {
		return nil, err
	}
	out := make([]model.TranscriptRef, 0, len(rows))
	for _, row := range rows {
		ref, err := transcriptRef(row)
		if err != nil {
			c.logger.Warn(ctx, "skipping transcript metadata row",
				logger.String("ticker", ticker), logger.Error(err))
			continue
		}
		out = append(out, ref)
	}
	return out, nil
}

func transcriptRef(row []json.RawMessage) (model.TranscriptRef, error) {
	if len(row) < 3 {
		return model.TranscriptRef{}, fmt.Errorf("expected 3 fields, got %d", len(row))
	}
	var ref model.TranscriptRef
	if err := json.Unmarshal(row[0], &ref.Quarter); err != nil {
		return ref, fmt.Errorf("quarter: %w", err)
	}
	if err := json.Unmarshal(row[1], &ref.Year); err != nil {
		return ref, fmt.Errorf("year: %w", err)
	}
	if err := json.Unmarshal(row[2], &ref.Timestamp); err != nil {
		return ref, fmt.Errorf("timestamp: %w", err)
	}
	return ref, nil
}

type surpriseDTO struct {
	Date      string          `json:"date"`
	Actual    json.RawMessage `json:"actualEarningResult"`
	Estimated json.RawMessage `json:"estimatedEarning"`
}

// Surprises returns the EPS surprise history in source order. Rows with an
// unreadable date are skipped; non-numeric EPS values come back nil.
func (c *Client) Surprises(ctx context.Context, ticker string) ([]model.Surprise, error) {
	var rows []surpriseDTO
	if err := c.fetchJSON(ctx, "v3/earnings-surprises/"+url.PathEscape(ticker), nil, &rows); err != nil {
		return nil, err
	}
	out := make([]model.Surprise, 0, len(rows))
	for _, r := range rows {
		d, err := model.ParseDate(r.Date)
		if err != nil {
			c.logger.Warn(ctx, "skipping surprise row", logger.String("ticker", ticker), logger.Error(err))
			continue
		}
		out = append(out, model.Surprise{Date: d, Actual: number(r.Actual), Estimated: number(r.Estimated)})
	}
	return out, nil
}

// number reads a JSON number or numeric string; null and anything else is nil.
func number(raw json.RawMessage) *float64 {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return &f
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return &f
		}
	}
	return nil
}

type transcriptDTO struct {
	Content string `json:"content"`
}

// Transcript returns the call transcript text for year and quarter, or ""
// when the service has none.
func (c *Client) Transcript(ctx context.Context, ticker string, year, quarter int) (string, error) {
	var rows []transcriptDTO
	q := url.Values{"year": {strconv.Itoa(year)}, "quarter": {strconv.Itoa(quarter)}}
	if err := c.fetchJSON(ctx, "v3/earning_call_transcript/"+url.PathEscape(ticker), q, &rows); err != nil {
		return "", err
	}
	if len(rows) == 0 {
		return "", nil
	}
	return rows[0].Content, nil
}

type priceDTO struct {
	Date  string   `json:"date"`
	Close *float64 `json:"close"`
}

type historyDTO struct {
	Historical *[]priceDTO `json:"historical"`
}

// Prices returns daily closes for symbol in [from, to], ascending by date.
// found is false when the response carries no history at all.
func (c *Client) Prices(ctx context.Context, symbol string, from, to time.Time) (points []model.PricePoint, found bool, err error) {
	var resp historyDTO
	q := url.Values{"from": {model.FormatDate(from)}, "to": {model.FormatDate(to)}}
	if err := c.fetchJSON(ctx, "v3/historical-price-full/"+url.PathEscape(symbol), q, &resp); err != nil {
		return nil, false, err
	}
	if resp.Historical == nil {
		return nil, false, nil
	}
	points = make([]model.PricePoint, 0, len(*resp.Historical))
	for _, p := range *resp.Historical {
		d, err := model.ParseDate(p.Date)
		if err != nil {
			c.logger.Warn(ctx, "skipping price row", logger.String("symbol", symbol), logger.Error(err))
			continue
		}
		if p.Close == nil {
			c.logger.Warn(ctx, "skipping price row without close",
				logger.String("symbol", symbol), logger.String("date", p.Date))
			continue
		}
		points = append(points, model.PricePoint{Date: d, Close: *p.Close})
	}
	sort.SliceStable(points, func(i, j int) bool { return points[i].Date.Before(points[j].Date) })
	return points, true, nil
}
