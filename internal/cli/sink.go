package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/yashward001/finchat/internal/obs"
)

// termSink renders observation payloads into plain terminal text. Tables
// become aligned grids, charts are written to disk and referenced by path,
// figures collapse to a one-line summary.
type termSink struct {
	width    int
	chartDir string
	b        strings.Builder
}

func newTermSink(width int) *termSink {
	return &termSink{width: width, chartDir: os.TempDir()}
}

// RenderObservation converts a tool observation into terminal text.
func RenderObservation(width int, observation string) string {
	sink := newTermSink(width)
	if err := obs.Render(observation, sink); err != nil {
		sink.line(fmt.Sprintf("[render error: %v]", err))
	}
	return strings.TrimRight(sink.b.String(), "\n")
}

func (s *termSink) line(text string) {
	if text == "" {
		return
	}
	s.b.WriteString(text)
	s.b.WriteString("\n")
}

func (s *termSink) OnText(text string) error {
	s.line(text)
	return nil
}

func (s *termSink) OnTable(t *obs.TablePayload) error {
	s.line(renderTable(s.width, t))
	return nil
}

func (s *termSink) OnChart(c *obs.ChartPayload) error {
	f, err := os.CreateTemp(s.chartDir, "finchat-chart-*.png")
	if err != nil {
		return fmt.Errorf("failed to save chart: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(c.PNG); err != nil {
		return fmt.Errorf("failed to save chart: %w", err)
	}

	note := fmt.Sprintf("[chart saved to %s]", filepath.Clean(f.Name()))
	if c.URL != "" {
		note = fmt.Sprintf("[chart saved to %s, hosted at %s]", filepath.Clean(f.Name()), c.URL)
	}
	s.line(note)
	return nil
}

func (s *termSink) OnFigure(f *obs.FigurePayload) error {
	names := make([]string, 0, len(f.Series))
	for _, series := range f.Series {
		names = append(names, series.Name)
	}
	title := f.Title
	if title == "" {
		title = "untitled"
	}
	s.line(fmt.Sprintf("[figure %s: %s]", title, strings.Join(names, ", ")))
	return nil
}

func formatCell(c obs.Cell) string {
	switch c.Kind {
	case obs.CellNull:
		return ""
	case obs.CellNumber:
		return strconv.FormatFloat(c.Num, 'g', -1, 64)
	case obs.CellString:
		return c.Str
	case obs.CellTime:
		if c.Time.Hour() == 0 && c.Time.Minute() == 0 && c.Time.Second() == 0 {
			return c.Time.Format("2006-01-02")
		}
		return c.Time.Format("2006-01-02 15:04")
	default:
		return ""
	}
}

func renderTable(width int, t *obs.TablePayload) string {
	cols := len(t.Columns)
	if cols == 0 {
		return ""
	}

	rows := make([][]string, len(t.Rows))
	for i, row := range t.Rows {
		cells := make([]string, len(row))
		for c, cell := range row {
			cells[c] = formatCell(cell)
		}
		rows[i] = cells
	}

	colW := make([]int, cols)
	for c := 0; c < cols; c++ {
		colW[c] = len(t.Columns[c])
	}
	for _, row := range rows {
		for c := 0; c < cols && c < len(row); c++ {
			if l := len(row[c]); l > colW[c] {
				colW[c] = l
			}
		}
	}

	// Clamp to keep within width (best effort; shrink last columns first).
	sep := 3 // " | "
	avail := width
	if avail < 20 {
		avail = 20
	}
	for totalWidth(colW, sep) > avail {
		shrunk := false
		for c := cols - 1; c >= 0; c-- {
			if colW[c] > 6 {
				colW[c]--
				shrunk = true
				break
			}
		}
		if !shrunk {
			break
		}
	}

	var b strings.Builder
	b.WriteString(renderTableRow(t.Columns, colW))
	b.WriteString("\n")
	b.WriteString(renderTableSep(colW, sep))
	for _, row := range rows {
		b.WriteString("\n")
		b.WriteString(renderTableRow(row, colW))
	}
	return b.String()
}

func totalWidth(colW []int, sep int) int {
	total := 0
	for _, w := range colW {
		total += w
	}
	total += sep * (len(colW) - 1)
	return total
}

func renderTableSep(colW []int, sep int) string {
	var b strings.Builder
	for c, w := range colW {
		if c > 0 {
			b.WriteString(strings.Repeat("-", sep))
		}
		b.WriteString(strings.Repeat("-", w))
	}
	return b.String()
}

func renderTableRow(cells []string, colW []int) string {
	var b strings.Builder
	for c, w := range colW {
		if c > 0 {
			b.WriteString(" | ")
		}
		val := ""
		if c < len(cells) {
			val = cells[c]
		}
		b.WriteString(padRight(truncate(val, w), w))
	}
	return strings.TrimRight(b.String(), " ")
}

func padRight(s string, w int) string {
	if len(s) >= w {
		return s
	}
	return s + strings.Repeat(" ", w-len(s))
}

func truncate(s string, w int) string {
	if w <= 0 || len(s) <= w {
		return s
	}
	if w <= 3 {
		return s[:w]
	}
	return s[:w-3] + "..."
}
