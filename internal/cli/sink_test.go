package cli

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yashward001/finchat/internal/obs"
)

func testPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.White)
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestRenderObservation(t *testing.T) {
	t.Run("table becomes aligned grid", func(t *testing.T) {
		table := &obs.TablePayload{Columns: []string{"symbol", "close"}}
		require.NoError(t, table.AddRow(obs.String("AAPL"), obs.Number(232.1)))
		require.NoError(t, table.AddRow(obs.String("MSFT"), obs.Number(421.55)))
		marker, err := obs.EmbedTable(table)
		require.NoError(t, err)

		got := RenderObservation(80, obs.WrapObservation(marker))
		lines := strings.Split(got, "\n")
		require.Len(t, lines, 4)
		assert.Contains(t, lines[0], "symbol")
		assert.Contains(t, lines[0], "close")
		assert.Contains(t, lines[1], "---")
		assert.Contains(t, lines[2], "AAPL")
		assert.Contains(t, lines[3], "421.55")
	})

	t.Run("chart saved to temp file", func(t *testing.T) {
		payload := &obs.ChartPayload{PNG: testPNG(t), URL: "https://img.example/x.png"}
		got := RenderObservation(80, obs.WrapObservation(obs.EmbedChart(payload)))
		assert.Contains(t, got, "chart saved to")
		assert.Contains(t, got, "hosted at https://img.example/x.png")

		start := strings.Index(got, "saved to ") + len("saved to ")
		end := strings.IndexAny(got[start:], ",]")
		require.Positive(t, end)
		path := got[start : start+end]
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Positive(t, info.Size())
	})

	t.Run("figure summarized", func(t *testing.T) {
		fig := &obs.FigurePayload{
			Title: "AAPL | 06/03/2024",
			Series: []obs.Series{
				{Name: "Price", Type: "candlestick", X: []string{"2024-06-03"}, Open: []float64{1}, High: []float64{2}, Low: []float64{0.5}, Close: []float64{1.5}},
				{Name: "RSI", Type: "line", X: []string{"2024-06-03"}, Y: []float64{55}},
			},
		}
		marker, err := obs.EmbedFigure(fig)
		require.NoError(t, err)

		got := RenderObservation(80, obs.WrapObservation(marker))
		assert.Contains(t, got, "figure AAPL | 06/03/2024")
		assert.Contains(t, got, "Price, RSI")
	})

	t.Run("malformed marker yields diagnostic text", func(t *testing.T) {
		got := RenderObservation(80, obs.WrapObservation(`[TABLE:{not json}]`))
		assert.Contains(t, got, "could not render TABLE payload")
	})

	t.Run("plain text passes through", func(t *testing.T) {
		got := RenderObservation(80, obs.Observationf("No data found for symbol %s", "ZZZZ"))
		assert.Equal(t, "No data found for symbol ZZZZ", got)
	})
}

func TestFormatCell(t *testing.T) {
	assert.Equal(t, "", formatCell(obs.Null()))
	assert.Equal(t, "1.5", formatCell(obs.Number(1.5)))
	assert.Equal(t, "hello", formatCell(obs.String("hello")))
	assert.Equal(t, "2024-06-03", formatCell(obs.Timestamp(time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC))))
	assert.Equal(t, "2024-06-03 14:30", formatCell(obs.Timestamp(time.Date(2024, 6, 3, 14, 30, 0, 0, time.UTC))))
}

func TestRenderTableClampsWidth(t *testing.T) {
	table := &obs.TablePayload{Columns: []string{"title", "source"}}
	require.NoError(t, table.AddRow(
		obs.String(strings.Repeat("very long headline ", 10)),
		obs.String("wire"),
	))

	got := renderTable(40, table)
	for _, line := range strings.Split(got, "\n") {
		assert.LessOrEqual(t, len(line), 45)
	}
	assert.Contains(t, got, "...")
}
