package obs

import (
	"fmt"
	"strings"
)

// Markers look like [KIND:payload]. Payload bytes that would collide with the
// marker framing are backslash-escaped, so a JSON payload containing "]" can
// no longer truncate extraction at the wrong bracket, and a string cell that
// happens to contain marker-like text cannot be mistaken for a real marker.
const (
	markerOpen   = '['
	markerClose  = ']'
	markerEscape = '\\'
)

// observation boundary framing at the tool-output edge, distinct from the
// marker framing inside it.
const (
	observationOpen  = "<observation>"
	observationClose = "</observation>"
)

// Embed wraps an already-encoded payload in a marker. Base64 payloads contain
// nothing to escape, so a plain chart's wire form stays [CHART:<base64>].
func Embed(kind Kind, encoded []byte) string {
	var b strings.Builder
	b.Grow(len(encoded) + len(kind) + 3)
	b.WriteByte(markerOpen)
	b.WriteString(string(kind))
	b.WriteByte(':')
	for _, c := range encoded {
		if c == markerOpen || c == markerClose || c == markerEscape {
			b.WriteByte(markerEscape)
		}
		b.WriteByte(c)
	}
	b.WriteByte(markerClose)
	return b.String()
}

// unescapePayload reverses Embed's escaping. A payload without escape bytes
// (the common case, and anything the original wire format produced) passes
// through unchanged.
func unescapePayload(s string) ([]byte, error) {
	if !strings.ContainsRune(s, markerEscape) {
		return []byte(s), nil
	}
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == markerEscape {
			i++
			if i >= len(s) {
				return nil, fmt.Errorf("dangling escape at end of payload")
			}
		}
		out = append(out, s[i])
	}
	return out, nil
}

// EmbedTable encodes and embeds a table in one step.
func EmbedTable(t *TablePayload) (string, error) {
	data, err := EncodeTable(t)
	if err != nil {
		return "", err
	}
	return Embed(KindTable, data), nil
}

// EmbedChart encodes and embeds a chart image in one step.
func EmbedChart(c *ChartPayload) string {
	return Embed(KindChart, EncodeChart(c))
}

// EmbedFigure encodes and embeds an interactive figure in one step.
func EmbedFigure(f *FigurePayload) (string, error) {
	data, err := EncodeFigure(f)
	if err != nil {
		return "", err
	}
	return Embed(KindFigure, data), nil
}

// WrapObservation frames tool output as an observation block.
func WrapObservation(content string) string {
	return "\n" + observationOpen + "\n" + content + "\n" + observationClose + "\n"
}

// Observationf is WrapObservation over a formatted message, for tools that
// report plain text such as "no data" notices.
func Observationf(format string, args ...any) string {
	return WrapObservation(fmt.Sprintf(format, args...))
}
