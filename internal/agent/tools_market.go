package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/yashward001/finchat/internal/chart"
	"github.com/yashward001/finchat/internal/market"
	"github.com/yashward001/finchat/internal/obs"
)

const (
	historyYears     = 2
	defaultTableRows = 30
	maxNewsItems     = 10
	directionGainers = "gainers"
	directionLosers  = "losers"
)

func cellOrNull(v float64) obs.Cell {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return obs.Null()
	}
	return obs.Number(v)
}

// fetchTechnicals loads two years of daily bars ending today and enriches
// them with indicator columns.
func fetchTechnicals(ctx context.Context, cache *market.SeriesCache, symbol string) ([]market.TechBar, error) {
	end := time.Now().UTC().Truncate(24 * time.Hour)
	start := end.AddDate(-historyYears, 0, 0)
	bars, err := cache.Daily(ctx, symbol, start, end)
	if err != nil {
		return nil, err
	}
	return market.AddTechnicals(bars), nil
}

// PriceHistoryTool returns recent daily bars with indicator columns as an
// embedded table, newest rows first.
type PriceHistoryTool struct {
	Cache *market.SeriesCache
}

type priceHistoryInput struct {
	Symbol string `json:"symbol"`
	Days   int    `json:"days"`
}

func (t *PriceHistoryTool) Name() string { return "price_history" }

func (t *PriceHistoryTool) Description() string {
	return "Get recent daily price history for a stock symbol, including 50/200-day moving averages, RSI and ATR. Use this whenever the user asks about a stock's price, trend or volatility."
}

func (t *PriceHistoryTool) InputSchema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"symbol": {"type": "string", "description": "Ticker symbol, e.g. AAPL"},
			"days": {"type": "integer", "description": "Number of most recent trading days to return (default 30)"}
		},
		"required": ["symbol"]
	}`)
}

func (t *PriceHistoryTool) Invoke(ctx context.Context, input json.RawMessage) (string, error) {
	var params priceHistoryInput
	if err := json.Unmarshal(input, &params); err != nil {
		return "", fmt.Errorf("invalid input: %w", err)
	}
	symbol := strings.ToUpper(strings.TrimSpace(params.Symbol))
	if symbol == "" {
		return "", fmt.Errorf("symbol is required")
	}
	days := params.Days
	if days <= 0 {
		days = defaultTableRows
	}

	bars, err := fetchTechnicals(ctx, t.Cache, symbol)
	if err != nil {
		if errors.Is(err, market.ErrNoData) {
			return obs.Observationf("No data found for symbol %s", symbol), nil
		}
		return "", err
	}

	table := &obs.TablePayload{
		Columns: []string{"date", "open", "high", "low", "close", "volume", "sma_50", "sma_200", "rsi_14", "atr_14"},
	}
	if days > len(bars) {
		days = len(bars)
	}
	// Newest first.
	for i := len(bars) - 1; i >= len(bars)-days; i-- {
		b := bars[i]
		if err := table.AddRow(
			obs.Timestamp(b.Date),
			cellOrNull(b.Open),
			cellOrNull(b.High),
			cellOrNull(b.Low),
			cellOrNull(b.Close),
			cellOrNull(b.Volume),
			cellOrNull(b.SMA50),
			cellOrNull(b.SMA200),
			cellOrNull(b.RSI),
			cellOrNull(b.ATR),
		); err != nil {
			return "", err
		}
	}

	marker, err := obs.EmbedTable(table)
	if err != nil {
		return "", err
	}
	return obs.WrapObservation(marker), nil
}

// ChartAnalysisTool builds a price chart for a symbol and returns it both as
// a rendered image and as an interactive figure description. When an upload
// succeeds, the hosted URL rides with the chart payload and is also mentioned
// in the surrounding prose.
type ChartAnalysisTool struct {
	Cache    *market.SeriesCache
	Renderer chart.Renderer
	Uploader chart.Uploader
}

type chartAnalysisInput struct {
	Symbol string `json:"symbol"`
}

func (t *ChartAnalysisTool) Name() string { return "chart_analysis" }

func (t *ChartAnalysisTool) Description() string {
	return "Generate a technical analysis chart for a stock symbol with price, moving averages, RSI and ATR panels. Use this when the user asks to see or chart a stock."
}

func (t *ChartAnalysisTool) InputSchema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"symbol": {"type": "string", "description": "Ticker symbol, e.g. AAPL"}
		},
		"required": ["symbol"]
	}`)
}

func (t *ChartAnalysisTool) Invoke(ctx context.Context, input json.RawMessage) (string, error) {
	var params chartAnalysisInput
	if err := json.Unmarshal(input, &params); err != nil {
		return "", fmt.Errorf("invalid input: %w", err)
	}
	symbol := strings.ToUpper(strings.TrimSpace(params.Symbol))
	if symbol == "" {
		return "", fmt.Errorf("symbol is required")
	}

	bars, err := fetchTechnicals(ctx, t.Cache, symbol)
	if err != nil {
		if errors.Is(err, market.ErrNoData) {
			return obs.Observationf("No data found for symbol %s", symbol), nil
		}
		return "", err
	}

	fig, err := chart.BuildFigure(bars, symbol)
	if err != nil {
		return "", err
	}

	png, err := t.Renderer.Render(fig)
	if err != nil {
		return "", fmt.Errorf("failed to render chart: %w", err)
	}

	var parts []string
	chartPayload := &obs.ChartPayload{PNG: png}
	if t.Uploader != nil {
		// Upload failures degrade to a local-only chart.
		if url, err := t.Uploader.Upload(ctx, png, fig.Title); err == nil {
			chartPayload.URL = url
			parts = append(parts, fmt.Sprintf("Chart for %s uploaded: %s", symbol, url))
		}
	}

	parts = append(parts, obs.EmbedChart(chartPayload))

	figMarker, err := obs.EmbedFigure(fig)
	if err != nil {
		return "", err
	}
	parts = append(parts, figMarker)

	return obs.WrapObservation(strings.Join(parts, "\n")), nil
}

// NewsSentimentTool returns recent headlines for a symbol with a sentiment
// score per headline, as an embedded table.
type NewsSentimentTool struct {
	News market.NewsSource
}

type newsSentimentInput struct {
	Symbol string `json:"symbol"`
}

func (t *NewsSentimentTool) Name() string { return "news_sentiment" }

func (t *NewsSentimentTool) Description() string {
	return "Get recent news headlines for a stock symbol with a sentiment score per headline (-1 bearish to +1 bullish). Use this when the user asks about news, sentiment or why a stock moved."
}

func (t *NewsSentimentTool) InputSchema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"symbol": {"type": "string", "description": "Ticker symbol, e.g. AAPL"}
		},
		"required": ["symbol"]
	}`)
}

func (t *NewsSentimentTool) Invoke(ctx context.Context, input json.RawMessage) (string, error) {
	var params newsSentimentInput
	if err := json.Unmarshal(input, &params); err != nil {
		return "", fmt.Errorf("invalid input: %w", err)
	}
	symbol := strings.ToUpper(strings.TrimSpace(params.Symbol))
	if symbol == "" {
		return "", fmt.Errorf("symbol is required")
	}

	items, err := t.News.News(ctx, symbol)
	if err != nil {
		if errors.Is(err, market.ErrNoData) {
			return obs.Observationf("No data found for symbol %s", symbol), nil
		}
		return "", err
	}
	if len(items) == 0 {
		return obs.Observationf("No recent news for symbol %s", symbol), nil
	}
	if len(items) > maxNewsItems {
		items = items[:maxNewsItems]
	}

	table := &obs.TablePayload{
		Columns: []string{"published", "title", "source", "sentiment"},
	}
	for _, item := range items {
		score := item.Sentiment
		if score == 0 {
			score = market.ScoreSentiment(item.Title + " " + item.Summary)
		}
		if err := table.AddRow(
			obs.Timestamp(item.Published),
			obs.String(item.Title),
			obs.String(item.Source),
			obs.Number(score),
		); err != nil {
			return "", err
		}
	}

	marker, err := obs.EmbedTable(table)
	if err != nil {
		return "", err
	}
	return obs.WrapObservation(marker), nil
}

// MarketMoversTool returns the day's top gainers or losers as an embedded
// table.
type MarketMoversTool struct {
	Movers market.MoversSource
}

type marketMoversInput struct {
	Direction string `json:"direction"`
}

func (t *MarketMoversTool) Name() string { return "market_movers" }

func (t *MarketMoversTool) Description() string {
	return "Get today's top gaining or losing stocks. Use this when the user asks what is moving in the market."
}

func (t *MarketMoversTool) InputSchema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"direction": {"type": "string", "enum": ["gainers", "losers"], "description": "Which side of the market to list"}
		},
		"required": ["direction"]
	}`)
}

func (t *MarketMoversTool) Invoke(ctx context.Context, input json.RawMessage) (string, error) {
	var params marketMoversInput
	if err := json.Unmarshal(input, &params); err != nil {
		return "", fmt.Errorf("invalid input: %w", err)
	}
	direction := strings.ToLower(strings.TrimSpace(params.Direction))
	if direction != directionGainers && direction != directionLosers {
		return "", fmt.Errorf("direction must be %q or %q", directionGainers, directionLosers)
	}

	movers, err := t.Movers.Movers(ctx, direction)
	if err != nil {
		if errors.Is(err, market.ErrNoData) {
			return obs.Observationf("No %s available right now", direction), nil
		}
		return "", err
	}
	if len(movers) == 0 {
		return obs.Observationf("No %s available right now", direction), nil
	}

	table := &obs.TablePayload{
		Columns: []string{"symbol", "price", "change_percent", "volume"},
	}
	for _, m := range movers {
		if err := table.AddRow(
			obs.String(m.Symbol),
			obs.Number(m.Price),
			obs.Number(m.ChangePercent),
			obs.Number(m.Volume),
		); err != nil {
			return "", err
		}
	}

	marker, err := obs.EmbedTable(table)
	if err != nil {
		return "", err
	}
	return obs.WrapObservation(marker), nil
}
