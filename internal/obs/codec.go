package obs

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// DecodeError reports a payload that is not well-formed for its kind.
type DecodeError struct {
	Kind   Kind
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode %s payload: %s: %v", e.Kind, e.Reason, e.Err)
	}
	return fmt.Sprintf("decode %s payload: %s", e.Kind, e.Reason)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func decodeErrf(kind Kind, err error, format string, args ...any) error {
	return &DecodeError{Kind: kind, Reason: fmt.Sprintf(format, args...), Err: err}
}

// Tables travel as row-index-keyed JSON, the shape pandas emits for
// orient="index": {"0":{"open":1.5,"close":2.5},"1":{...}}. Cell timestamps
// are written as RFC 3339 strings in UTC; on decode any string that parses
// as strict RFC 3339 is treated as a timestamp, which makes that form the
// canonical one for time cells.
const timeLayout = time.RFC3339Nano

// EncodeTable serializes a table deterministically. Column order is written
// as-is for every row, so it survives the round trip.
func EncodeTable(t *TablePayload) ([]byte, error) {
	if len(t.Columns) == 0 {
		return nil, fmt.Errorf("table has no columns")
	}
	var b strings.Builder
	b.WriteByte('{')
	for i, row := range t.Rows {
		if len(row) != len(t.Columns) {
			return nil, fmt.Errorf("row %d has %d cells, table has %d columns", i, len(row), len(t.Columns))
		}
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%q:{", strconv.Itoa(i))
		for c, cell := range row {
			if c > 0 {
				b.WriteByte(',')
			}
			key, err := json.Marshal(t.Columns[c])
			if err != nil {
				return nil, err
			}
			b.Write(key)
			b.WriteByte(':')
			val, err := encodeCell(cell)
			if err != nil {
				return nil, fmt.Errorf("row %d column %q: %w", i, t.Columns[c], err)
			}
			b.WriteString(val)
		}
		b.WriteByte('}')
	}
	b.WriteByte('}')
	return []byte(b.String()), nil
}

func encodeCell(c Cell) (string, error) {
	switch c.Kind {
	case CellNull:
		return "null", nil
	case CellNumber:
		if math.IsNaN(c.Num) || math.IsInf(c.Num, 0) {
			return "", fmt.Errorf("number %v not representable in JSON", c.Num)
		}
		return strconv.FormatFloat(c.Num, 'g', -1, 64), nil
	case CellString:
		b, err := json.Marshal(c.Str)
		return string(b), err
	case CellTime:
		b, err := json.Marshal(c.Time.UTC().Format(timeLayout))
		return string(b), err
	default:
		return "", fmt.Errorf("unknown cell kind %d", c.Kind)
	}
}

// DecodeTable parses a row-index-keyed JSON object back into a table. Row
// keys must be decimal indexes forming a contiguous 0..n-1 range; the column
// order of the first row becomes the table's column order.
func DecodeTable(data []byte) (*TablePayload, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	if err := expectDelim(dec, '{'); err != nil {
		return nil, decodeErrf(KindTable, err, "not a JSON object")
	}

	t := &TablePayload{}
	rows := make(map[int][]Cell)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, decodeErrf(KindTable, err, "reading row key")
		}
		key, _ := keyTok.(string)
		idx, err := strconv.Atoi(key)
		if err != nil || idx < 0 {
			return nil, decodeErrf(KindTable, nil, "row key %q is not a row index", key)
		}
		if _, dup := rows[idx]; dup {
			return nil, decodeErrf(KindTable, nil, "duplicate row index %d", idx)
		}
		row, err := decodeRow(dec, t, len(t.Columns) == 0)
		if err != nil {
			return nil, err
		}
		rows[idx] = row
	}
	if err := expectDelim(dec, '}'); err != nil {
		return nil, decodeErrf(KindTable, err, "unterminated object")
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, decodeErrf(KindTable, nil, "trailing data after table object")
	}

	indexes := make([]int, 0, len(rows))
	for idx := range rows {
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)
	for i, idx := range indexes {
		if i != idx {
			return nil, decodeErrf(KindTable, nil, "row indexes are not contiguous from 0")
		}
		t.Rows = append(t.Rows, rows[idx])
	}
	return t, nil
}

// decodeRow reads one {"col":val,...} object. The first row fixes the column
// order; later rows may list columns in any order but must cover the same set.
func decodeRow(dec *json.Decoder, t *TablePayload, first bool) ([]Cell, error) {
	if err := expectDelim(dec, '{'); err != nil {
		return nil, decodeErrf(KindTable, err, "row is not an object")
	}
	byCol := make(map[string]Cell)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, decodeErrf(KindTable, err, "reading column name")
		}
		col, _ := keyTok.(string)
		if _, dup := byCol[col]; dup {
			return nil, decodeErrf(KindTable, nil, "duplicate column %q in row", col)
		}
		cell, err := decodeCell(dec)
		if err != nil {
			return nil, err
		}
		byCol[col] = cell
		if first {
			t.Columns = append(t.Columns, col)
		}
	}
	if err := expectDelim(dec, '}'); err != nil {
		return nil, decodeErrf(KindTable, err, "unterminated row object")
	}

	if len(byCol) != len(t.Columns) {
		return nil, decodeErrf(KindTable, nil, "row has %d columns, table has %d", len(byCol), len(t.Columns))
	}
	row := make([]Cell, len(t.Columns))
	for i, col := range t.Columns {
		cell, ok := byCol[col]
		if !ok {
			return nil, decodeErrf(KindTable, nil, "row missing column %q", col)
		}
		row[i] = cell
	}
	return row, nil
}

func decodeCell(dec *json.Decoder) (Cell, error) {
	tok, err := dec.Token()
	if err != nil {
		return Cell{}, decodeErrf(KindTable, err, "reading cell value")
	}
	switch v := tok.(type) {
	case nil:
		return Null(), nil
	case json.Number:
		f, err := strconv.ParseFloat(v.String(), 64)
		if err != nil {
			return Cell{}, decodeErrf(KindTable, err, "bad number %q", v.String())
		}
		return Number(f), nil
	case string:
		if ts, err := time.Parse(timeLayout, v); err == nil {
			return Timestamp(ts), nil
		}
		return String(v), nil
	default:
		return Cell{}, decodeErrf(KindTable, nil, "cell is not a scalar (got %T)", tok)
	}
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("expected %q, got %v", want, tok)
	}
	return nil
}

var pngSignature = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

// EncodeChart serializes the inline image bytes as standard base64, followed
// by "|<url>" when a reference URL is set. '|' is outside the base64 alphabet,
// so a URL-less chart keeps the plain base64 wire form.
func EncodeChart(c *ChartPayload) []byte {
	n := base64.StdEncoding.EncodedLen(len(c.PNG))
	out := make([]byte, n, n+len(c.URL)+1)
	base64.StdEncoding.Encode(out, c.PNG)
	if c.URL != "" {
		out = append(out, '|')
		out = append(out, c.URL...)
	}
	return out
}

// DecodeChart base64-decodes the payload, verifies it carries a PNG image and
// picks up the reference URL when one is appended.
func DecodeChart(data []byte) (*ChartPayload, error) {
	b64, url := data, ""
	if i := bytes.IndexByte(data, '|'); i >= 0 {
		b64, url = data[:i], string(data[i+1:])
	}
	raw := make([]byte, base64.StdEncoding.DecodedLen(len(b64)))
	n, err := base64.StdEncoding.Decode(raw, b64)
	if err != nil {
		return nil, decodeErrf(KindChart, err, "not valid base64")
	}
	raw = raw[:n]
	if !bytes.HasPrefix(raw, pngSignature) {
		return nil, decodeErrf(KindChart, nil, "decoded bytes are not a PNG image")
	}
	return &ChartPayload{PNG: raw, URL: url}, nil
}

// EncodeFigure serializes a figure description as JSON.
func EncodeFigure(f *FigurePayload) ([]byte, error) {
	if err := f.validate(); err != nil {
		return nil, fmt.Errorf("invalid figure: %w", err)
	}
	return json.Marshal(f)
}

// DecodeFigure deserializes a figure against the fixed schema. Unknown fields
// are rejected; the payload is data only and is never evaluated.
func DecodeFigure(data []byte) (*FigurePayload, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var f FigurePayload
	if err := dec.Decode(&f); err != nil {
		return nil, decodeErrf(KindFigure, err, "not a valid figure object")
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, decodeErrf(KindFigure, nil, "trailing data after figure object")
	}
	if err := f.validate(); err != nil {
		return nil, decodeErrf(KindFigure, err, "schema violation")
	}
	return &f, nil
}
