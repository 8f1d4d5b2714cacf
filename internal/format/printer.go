// Package format renders decoded records for humans and tools.
package format

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"mtevent/internal/event"
	"mtevent/internal/protocol"
)

// Output formats
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Printer consumes records in stream order
type Printer interface {
	Print(rec event.Record) error
	Flush() error
}

// New creates a printer for the named format
func New(format string, w io.Writer) (Printer, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", FormatText:
		return NewTextPrinter(w), nil
	case FormatJSON:
		return NewJSONPrinter(w), nil
	default:
		return nil, fmt.Errorf("unsupported output format %q", format)
	}
}

// TextPrinter writes one padded column line per record: time, type, code, value
type TextPrinter struct {
	w *bufio.Writer
}

// NewTextPrinter creates a text printer
func NewTextPrinter(w io.Writer) *TextPrinter {
	return &TextPrinter{w: bufio.NewWriter(w)}
}

// Print writes one line
func (p *TextPrinter) Print(rec event.Record) error {
	j := protocol.NewRecordJSON(rec)
	_, err := fmt.Fprintf(p.w, "%-15d %-15s %-30s %d\n", j.Time, j.Type, j.Code, j.Value)
	return err
}

// Flush flushes buffered lines
func (p *TextPrinter) Flush() error {
	return p.w.Flush()
}

// JSONPrinter writes one JSON object per line
type JSONPrinter struct {
	w   *bufio.Writer
	enc *json.Encoder
}

// NewJSONPrinter creates a JSON-lines printer
func NewJSONPrinter(w io.Writer) *JSONPrinter {
	bw := bufio.NewWriter(w)
	return &JSONPrinter{w: bw, enc: json.NewEncoder(bw)}
}

// Print writes one JSON line
func (p *JSONPrinter) Print(rec event.Record) error {
	return p.enc.Encode(protocol.NewRecordJSON(rec))
}

// Flush flushes buffered lines
func (p *JSONPrinter) Flush() error {
	return p.w.Flush()
}
