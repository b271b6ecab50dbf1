// Package chart turns daily price series into renderable artifacts: a
// declarative figure for interactive clients, a raster image for inline
// transport, and a hosted URL for clients that prefer a link.
package chart

import (
	"fmt"
	"math"
	"time"

	"github.com/yashward001/finchat/internal/market"
	"github.com/yashward001/finchat/internal/obs"
)

const dateLayout = "2006-01-02"

// BuildFigure assembles the standard technical-analysis figure for a symbol:
// candlesticks with both moving averages on the price axis, RSI and ATR on
// their own axes below. Indicator points still in their warm-up window are
// omitted rather than plotted as gaps.
func BuildFigure(bars []market.TechBar, symbol string) (*obs.FigurePayload, error) {
	if len(bars) == 0 {
		return nil, fmt.Errorf("no bars for %s", symbol)
	}

	x := make([]string, len(bars))
	open := make([]float64, len(bars))
	high := make([]float64, len(bars))
	low := make([]float64, len(bars))
	closeP := make([]float64, len(bars))
	for i, b := range bars {
		x[i] = b.Date.Format(dateLayout)
		open[i], high[i], low[i], closeP[i] = b.Open, b.High, b.Low, b.Close
	}

	fig := &obs.FigurePayload{
		Title:  fmt.Sprintf("%s | %s", symbol, time.Now().Format("01/02/2006")),
		Width:  800,
		Height: 600,
		Axes: []obs.Axis{
			{ID: "price", Title: "Price"},
			{ID: "rsi", Title: "RSI"},
			{ID: "atr", Title: "ATR"},
		},
		Series: []obs.Series{
			{Name: "Price", Type: "candlestick", Axis: "price", X: x, Open: open, High: high, Low: low, Close: closeP},
		},
	}

	appendLine(fig, "50-day SMA", "price", "blue", bars, func(b market.TechBar) float64 { return b.SMA50 })
	appendLine(fig, "200-day SMA", "price", "red", bars, func(b market.TechBar) float64 { return b.SMA200 })
	appendLine(fig, "RSI", "rsi", "orange", bars, func(b market.TechBar) float64 { return b.RSI })
	appendLine(fig, "ATR", "atr", "orange", bars, func(b market.TechBar) float64 { return b.ATR })

	return fig, nil
}

// appendLine adds a line series for one indicator, dropping NaN warm-up
// points. A series with no defined points is left out entirely.
func appendLine(fig *obs.FigurePayload, name, axis, color string, bars []market.TechBar, value func(market.TechBar) float64) {
	var x []string
	var y []float64
	for _, b := range bars {
		v := value(b)
		if math.IsNaN(v) {
			continue
		}
		x = append(x, b.Date.Format(dateLayout))
		y = append(y, v)
	}
	if len(y) == 0 {
		return
	}
	fig.Series = append(fig.Series, obs.Series{Name: name, Type: "line", Axis: axis, Color: color, X: x, Y: y})
}
