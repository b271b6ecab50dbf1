package market

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// ErrNoData signals that a source answered successfully but holds nothing for
// the requested symbol or range. Tools recover from it locally with an
// explicit "no data" observation instead of failing the call.
var ErrNoData = errors.New("no data for symbol")

// Bar is one day of OHLCV data.
type Bar struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// NewsItem is one headline with the provider's own sentiment score attached.
type NewsItem struct {
	Title     string    `json:"title"`
	Source    string    `json:"source"`
	URL       string    `json:"url"`
	Published time.Time `json:"published"`
	Summary   string    `json:"summary"`
	Sentiment float64   `json:"sentiment"`
}

// Source fetches externally hosted market data. Implementations must honor
// context cancellation and deadlines; callers bound every fetch with a timeout.
type Source interface {
	Daily(ctx context.Context, symbol string, start, end time.Time) ([]Bar, error)
}

// NewsSource fetches recent headlines for a symbol.
type NewsSource interface {
	News(ctx context.Context, symbol string) ([]NewsItem, error)
}

// MoversSource fetches the day's top gainers or losers.
type MoversSource interface {
	Movers(ctx context.Context, direction string) ([]Mover, error)
}

// Mover is one entry in a gainers/losers listing.
type Mover struct {
	Symbol        string  `json:"symbol"`
	Price         float64 `json:"price"`
	ChangePercent float64 `json:"change_percent"`
	Volume        float64 `json:"volume"`
}

// HTTPSource talks to a JSON market-data API. The provider behind the base
// URL is opaque; only the response shapes below matter.
type HTTPSource struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPSource creates a source for the given API endpoint. A nil client
// falls back to http.DefaultClient; per-request deadlines come from the
// caller's context either way.
func NewHTTPSource(baseURL, apiKey string, client *http.Client) *HTTPSource {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPSource{baseURL: baseURL, apiKey: apiKey, client: client}
}

const dateLayout = "2006-01-02"

type dailyResponse struct {
	Bars []struct {
		Date   string  `json:"date"`
		Open   float64 `json:"open"`
		High   float64 `json:"high"`
		Low    float64 `json:"low"`
		Close  float64 `json:"close"`
		Volume float64 `json:"volume"`
	} `json:"bars"`
}

// Daily fetches the daily price series for a symbol between start and end.
func (s *HTTPSource) Daily(ctx context.Context, symbol string, start, end time.Time) ([]Bar, error) {
	q := url.Values{
		"symbol": {symbol},
		"start":  {start.Format(dateLayout)},
		"end":    {end.Format(dateLayout)},
	}
	var resp dailyResponse
	if err := s.getJSON(ctx, "/v1/daily", q, &resp); err != nil {
		return nil, err
	}
	if len(resp.Bars) == 0 {
		return nil, ErrNoData
	}
	bars := make([]Bar, 0, len(resp.Bars))
	for _, b := range resp.Bars {
		date, err := time.Parse(dateLayout, b.Date)
		if err != nil {
			return nil, fmt.Errorf("bad date %q in daily response: %w", b.Date, err)
		}
		bars = append(bars, Bar{Date: date, Open: b.Open, High: b.High, Low: b.Low, Close: b.Close, Volume: b.Volume})
	}
	return bars, nil
}

type newsResponse struct {
	Feed []struct {
		Title     string  `json:"title"`
		Source    string  `json:"source"`
		URL       string  `json:"url"`
		Published string  `json:"time_published"`
		Summary   string  `json:"summary"`
		Sentiment float64 `json:"overall_sentiment_score"`
	} `json:"feed"`
}

// News fetches recent headlines for a symbol.
func (s *HTTPSource) News(ctx context.Context, symbol string) ([]NewsItem, error) {
	var resp newsResponse
	if err := s.getJSON(ctx, "/v1/news", url.Values{"symbol": {symbol}}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Feed) == 0 {
		return nil, ErrNoData
	}
	items := make([]NewsItem, 0, len(resp.Feed))
	for _, it := range resp.Feed {
		published, _ := time.Parse(time.RFC3339, it.Published)
		items = append(items, NewsItem{
			Title:     it.Title,
			Source:    it.Source,
			URL:       it.URL,
			Published: published,
			Summary:   it.Summary,
			Sentiment: it.Sentiment,
		})
	}
	return items, nil
}

type moversResponse struct {
	Movers []Mover `json:"movers"`
}

// Movers fetches the day's top gainers ("gainers") or losers ("losers").
func (s *HTTPSource) Movers(ctx context.Context, direction string) ([]Mover, error) {
	if direction != "gainers" && direction != "losers" {
		return nil, fmt.Errorf("direction must be gainers or losers, got %q", direction)
	}
	var resp moversResponse
	if err := s.getJSON(ctx, "/v1/movers", url.Values{"direction": {direction}}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Movers) == 0 {
		return nil, ErrNoData
	}
	return resp.Movers, nil
}

func (s *HTTPSource) getJSON(ctx context.Context, path string, q url.Values, out any) error {
	if s.apiKey != "" {
		q.Set("apikey", s.apiKey)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("market data request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNoData
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("market data request failed: %s", resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("bad market data response: %w", err)
	}
	return nil
}
