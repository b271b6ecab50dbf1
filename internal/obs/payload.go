package obs

import (
	"fmt"
	"time"
)

// Kind identifies the payload type carried by a marker.
type Kind string

const (
	KindChart  Kind = "CHART"
	KindFigure Kind = "PLOTLY"
	KindTable  Kind = "TABLE"
)

// kindPriority is the fixed order markers are extracted and dispatched in,
// regardless of where they appear in the observation text.
var kindPriority = []Kind{KindChart, KindFigure, KindTable}

// CellKind discriminates the scalar types a table cell may hold.
type CellKind int

const (
	CellNull CellKind = iota
	CellNumber
	CellString
	CellTime
)

// Cell is a single scalar value in a table.
type Cell struct {
	Kind CellKind
	Num  float64
	Str  string
	Time time.Time
}

func Null() Cell                  { return Cell{Kind: CellNull} }
func Number(v float64) Cell       { return Cell{Kind: CellNumber, Num: v} }
func String(s string) Cell        { return Cell{Kind: CellString, Str: s} }
func Timestamp(t time.Time) Cell  { return Cell{Kind: CellTime, Time: t.UTC()} }

// TablePayload is a row-oriented, column-labeled data grid. Column order is
// significant and survives the wire round trip.
type TablePayload struct {
	Columns []string
	Rows    [][]Cell
}

// AddRow appends a row. The number of cells must match the column count.
func (t *TablePayload) AddRow(cells ...Cell) error {
	if len(cells) != len(t.Columns) {
		return fmt.Errorf("row has %d cells, table has %d columns", len(cells), len(t.Columns))
	}
	t.Rows = append(t.Rows, cells)
	return nil
}

// ChartPayload is a rendered raster image. The URL points at an externally
// hosted copy of the same image; it travels beside the marker as prose, not
// inside it, so the inline encoding stays independent of the upload side
// channel.
type ChartPayload struct {
	PNG []byte
	URL string
}

// FigurePayload is a declarative description of an interactive chart. It is
// plain data: the dispatcher deserializes it against this fixed schema and
// never evaluates any part of it.
type FigurePayload struct {
	Title  string   `json:"title,omitempty"`
	Width  int      `json:"width,omitempty"`
	Height int      `json:"height,omitempty"`
	Series []Series `json:"series"`
	Axes   []Axis   `json:"axes,omitempty"`
}

// Series is one plotted trace within a figure.
type Series struct {
	Name  string    `json:"name"`
	Type  string    `json:"type"` // "line" or "candlestick"
	Axis  string    `json:"axis,omitempty"`
	Color string    `json:"color,omitempty"`
	X     []string  `json:"x"`
	Y     []float64 `json:"y,omitempty"`
	Open  []float64 `json:"open,omitempty"`
	High  []float64 `json:"high,omitempty"`
	Low   []float64 `json:"low,omitempty"`
	Close []float64 `json:"close,omitempty"`
}

// Axis names a value axis a series can target.
type Axis struct {
	ID    string   `json:"id"`
	Title string   `json:"title,omitempty"`
	Min   *float64 `json:"min,omitempty"`
	Max   *float64 `json:"max,omitempty"`
}

func (f *FigurePayload) validate() error {
	if len(f.Series) == 0 {
		return fmt.Errorf("figure has no series")
	}
	axisIDs := make(map[string]bool, len(f.Axes))
	for _, ax := range f.Axes {
		if ax.ID == "" {
			return fmt.Errorf("axis missing id")
		}
		if axisIDs[ax.ID] {
			return fmt.Errorf("duplicate axis id %q", ax.ID)
		}
		axisIDs[ax.ID] = true
	}
	for i, s := range f.Series {
		if s.Name == "" {
			return fmt.Errorf("series %d missing name", i)
		}
		if s.Axis != "" && !axisIDs[s.Axis] {
			return fmt.Errorf("series %q targets unknown axis %q", s.Name, s.Axis)
		}
		switch s.Type {
		case "line":
			if len(s.Y) != len(s.X) {
				return fmt.Errorf("series %q: %d y values for %d x values", s.Name, len(s.Y), len(s.X))
			}
		case "candlestick":
			n := len(s.X)
			if len(s.Open) != n || len(s.High) != n || len(s.Low) != n || len(s.Close) != n {
				return fmt.Errorf("series %q: ohlc lengths do not match %d x values", s.Name, n)
			}
		default:
			return fmt.Errorf("series %q: unknown type %q", s.Name, s.Type)
		}
	}
	return nil
}
