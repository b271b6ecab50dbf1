package obs

import (
	"errors"
	"fmt"
	"strings"
)

// Sink receives decoded payloads and residual text from Render. Handlers
// correspond to marker kinds; OnText also carries decode diagnostics.
type Sink interface {
	OnChart(c *ChartPayload) error
	OnFigure(f *FigurePayload) error
	OnTable(t *TablePayload) error
	OnText(text string) error
}

// Render scans an observation string for embedded markers and dispatches each
// decoded payload to the sink. Markers are processed by kind in the fixed
// priority Chart, Figure, Table, not in document order; within one kind,
// markers dispatch left to right. Whatever non-whitespace text remains after
// all markers are stripped goes to OnText last.
//
// Failures are contained: a malformed payload turns into a short OnText
// diagnostic, and an error (or panic) inside one sink handler does not stop
// the remaining markers from being processed. Render returns the collected
// sink errors, if any.
func Render(observation string, sink Sink) error {
	residual := observation
	var sinkErrs []error

	for _, kind := range kindPriority {
		open := "[" + string(kind) + ":"
		for {
			start := findOpen(residual, open)
			if start < 0 {
				break
			}
			rel := findClose(residual[start+len(open):])
			if rel < 0 {
				// Opening token without a closing bracket: not a marker,
				// leave it for the text pass.
				break
			}
			end := start + len(open) + rel // index of the closing bracket

			payload, err := decodeMarker(kind, residual[start+len(open):end])
			if err != nil {
				err = sink.OnText(fmt.Sprintf("[could not render %s payload: %v]", kind, err))
			} else {
				err = dispatch(sink, kind, payload)
			}
			if err != nil {
				sinkErrs = append(sinkErrs, err)
			}

			// A space instead of plain removal, so text on either side of
			// the stripped span cannot fuse into a marker of a kind this
			// pass has already finished with.
			residual = residual[:start] + " " + residual[end+1:]
		}
	}

	residual = stripObservationTags(residual)
	if strings.TrimSpace(residual) != "" {
		if err := sink.OnText(strings.TrimSpace(residual)); err != nil {
			sinkErrs = append(sinkErrs, err)
		}
	}
	return errors.Join(sinkErrs...)
}

// findOpen returns the index of the first occurrence of the opening token
// whose bracket is not itself escaped, or -1. Embed escapes brackets inside
// payloads, so marker-like text in a string cell never matches here.
func findOpen(s, open string) int {
	from := 0
	for {
		i := strings.Index(s[from:], open)
		if i < 0 {
			return -1
		}
		i += from
		if !escapedAt(s, i) {
			return i
		}
		from = i + 1
	}
}

// escapedAt reports whether the byte at index i sits behind an odd run of
// escape bytes.
func escapedAt(s string, i int) bool {
	n := 0
	for j := i - 1; j >= 0 && s[j] == markerEscape; j-- {
		n++
	}
	return n%2 == 1
}

// findClose returns the offset of the first unescaped closing bracket, or -1.
func findClose(s string) int {
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case markerEscape:
			i++
		case markerClose:
			return i
		}
	}
	return -1
}

func decodeMarker(kind Kind, raw string) (any, error) {
	data, err := unescapePayload(raw)
	if err != nil {
		return nil, &DecodeError{Kind: kind, Reason: "bad escaping", Err: err}
	}
	switch kind {
	case KindChart:
		return DecodeChart(data)
	case KindFigure:
		return DecodeFigure(data)
	case KindTable:
		return DecodeTable(data)
	default:
		return nil, &DecodeError{Kind: kind, Reason: "unknown marker kind"}
	}
}

// dispatch invokes the handler for one decoded payload. A panicking handler is
// converted to an error so a broken widget cannot abort the render pass.
func dispatch(sink Sink, kind Kind, payload any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s sink handler panicked: %v", kind, r)
		}
	}()
	switch p := payload.(type) {
	case *ChartPayload:
		return sink.OnChart(p)
	case *FigurePayload:
		return sink.OnFigure(p)
	case *TablePayload:
		return sink.OnTable(p)
	default:
		return fmt.Errorf("no handler for payload type %T", payload)
	}
}

func stripObservationTags(s string) string {
	s = strings.ReplaceAll(s, observationOpen, "")
	return strings.ReplaceAll(s, observationClose, "")
}
