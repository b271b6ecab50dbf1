package market

import "math"

// Warm-up periods for the standard indicator set.
const (
	smaShortWindow = 50
	smaLongWindow  = 200
	rsiWindow      = 14
	atrWindow      = 14
)

// TechBar is a daily bar with the standard indicator set appended. Indicator
// fields are NaN until enough history has accumulated for their window.
type TechBar struct {
	Bar
	SMA50  float64
	SMA200 float64
	RSI    float64
	ATR    float64
}

// AddTechnicals computes 50/200-day simple moving averages, 14-day RSI and
// 14-day ATR over a daily series. Bars must be in ascending date order.
func AddTechnicals(bars []Bar) []TechBar {
	out := make([]TechBar, len(bars))
	for i, b := range bars {
		out[i] = TechBar{Bar: b, SMA50: math.NaN(), SMA200: math.NaN(), RSI: math.NaN(), ATR: math.NaN()}
	}
	sma(out, smaShortWindow, func(t *TechBar, v float64) { t.SMA50 = v })
	sma(out, smaLongWindow, func(t *TechBar, v float64) { t.SMA200 = v })
	rsi(out)
	atr(out)
	return out
}

func sma(bars []TechBar, window int, set func(*TechBar, float64)) {
	if len(bars) < window {
		return
	}
	var sum float64
	for i := range bars {
		sum += bars[i].Close
		if i >= window {
			sum -= bars[i-window].Close
		}
		if i >= window-1 {
			set(&bars[i], sum/float64(window))
		}
	}
}

// rsi computes the relative strength index with Wilder's smoothing.
func rsi(bars []TechBar) {
	if len(bars) <= rsiWindow {
		return
	}
	var avgGain, avgLoss float64
	for i := 1; i <= rsiWindow; i++ {
		change := bars[i].Close - bars[i-1].Close
		if change > 0 {
			avgGain += change
		} else {
			avgLoss -= change
		}
	}
	avgGain /= rsiWindow
	avgLoss /= rsiWindow
	bars[rsiWindow].RSI = rsiValue(avgGain, avgLoss)

	for i := rsiWindow + 1; i < len(bars); i++ {
		change := bars[i].Close - bars[i-1].Close
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*(rsiWindow-1) + gain) / rsiWindow
		avgLoss = (avgLoss*(rsiWindow-1) + loss) / rsiWindow
		bars[i].RSI = rsiValue(avgGain, avgLoss)
	}
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	return 100 - 100/(1+avgGain/avgLoss)
}

// atr computes the average true range with Wilder's smoothing.
func atr(bars []TechBar) {
	if len(bars) <= atrWindow {
		return
	}
	trueRange := func(i int) float64 {
		hl := bars[i].High - bars[i].Low
		hc := math.Abs(bars[i].High - bars[i-1].Close)
		lc := math.Abs(bars[i].Low - bars[i-1].Close)
		return math.Max(hl, math.Max(hc, lc))
	}
	var sum float64
	for i := 1; i <= atrWindow; i++ {
		sum += trueRange(i)
	}
	prev := sum / atrWindow
	bars[atrWindow].ATR = prev
	for i := atrWindow + 1; i < len(bars); i++ {
		prev = (prev*(atrWindow-1) + trueRange(i)) / atrWindow
		bars[i].ATR = prev
	}
}
