package market

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func flatBars(n int, price float64) []Bar {
	bars := make([]Bar, n)
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	for i := range bars {
		bars[i] = Bar{
			Date: start.AddDate(0, 0, i),
			Open: price, High: price + 1, Low: price - 1, Close: price,
		}
	}
	return bars
}

func TestAddTechnicals(t *testing.T) {
	t.Run("indicators are NaN during warm-up", func(t *testing.T) {
		out := AddTechnicals(flatBars(60, 100))
		assert.True(t, math.IsNaN(out[48].SMA50))
		assert.False(t, math.IsNaN(out[49].SMA50))
		assert.True(t, math.IsNaN(out[59].SMA200), "not enough history for SMA200")
		assert.True(t, math.IsNaN(out[13].RSI))
		assert.False(t, math.IsNaN(out[14].RSI))
		assert.False(t, math.IsNaN(out[14].ATR))
	})

	t.Run("flat series has flat indicators", func(t *testing.T) {
		out := AddTechnicals(flatBars(220, 100))
		last := out[len(out)-1]
		assert.InDelta(t, 100, last.SMA50, 1e-9)
		assert.InDelta(t, 100, last.SMA200, 1e-9)
		// No losses at all pins RSI at 100 by convention.
		assert.Equal(t, 100.0, last.RSI)
		// True range of a flat series is the constant high-low spread.
		assert.InDelta(t, 2, last.ATR, 1e-9)
	})

	t.Run("sma follows a rising series", func(t *testing.T) {
		bars := flatBars(60, 0)
		for i := range bars {
			bars[i].Close = float64(i + 1)
		}
		out := AddTechnicals(bars)
		// Mean of 1..50 is 25.5.
		assert.InDelta(t, 25.5, out[49].SMA50, 1e-9)
		assert.InDelta(t, 35.5, out[59].SMA50, 1e-9)
	})

	t.Run("rsi reacts to direction", func(t *testing.T) {
		up := flatBars(40, 0)
		down := flatBars(40, 0)
		for i := range up {
			up[i].Close = 100 + float64(i)
			down[i].Close = 100 - float64(i)
		}
		upOut := AddTechnicals(up)
		downOut := AddTechnicals(down)
		assert.Greater(t, upOut[39].RSI, 70.0)
		assert.Less(t, downOut[39].RSI, 30.0)
	})

	t.Run("short series stays NaN throughout", func(t *testing.T) {
		out := AddTechnicals(flatBars(5, 100))
		require.Len(t, out, 5)
		for _, tb := range out {
			assert.True(t, math.IsNaN(tb.SMA50))
			assert.True(t, math.IsNaN(tb.RSI))
			assert.True(t, math.IsNaN(tb.ATR))
		}
	})

	t.Run("empty input yields empty output", func(t *testing.T) {
		assert.Empty(t, AddTechnicals(nil))
	})
}

func TestScoreSentiment(t *testing.T) {
	t.Run("positive headline scores positive", func(t *testing.T) {
		assert.Greater(t, ScoreSentiment("Apple beats estimates on strong iPhone growth"), 0.0)
	})

	t.Run("negative headline scores negative", func(t *testing.T) {
		assert.Less(t, ScoreSentiment("Shares plunge after downgrade and weak guidance"), 0.0)
	})

	t.Run("negation flips polarity", func(t *testing.T) {
		assert.Less(t, ScoreSentiment("results not strong"), 0.0)
	})

	t.Run("neutral or empty text scores zero", func(t *testing.T) {
		assert.Equal(t, 0.0, ScoreSentiment("quarterly report published on schedule"))
		assert.Equal(t, 0.0, ScoreSentiment(""))
	})

	t.Run("punctuation does not hide lexicon words", func(t *testing.T) {
		assert.Greater(t, ScoreSentiment("Record profits!"), 0.0)
	})
}
