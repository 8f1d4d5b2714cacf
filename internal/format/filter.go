package format

import (
	"strings"

	"mtevent/internal/event"
)

// Filter keeps records whose code is in a fixed set. An empty filter keeps everything.
type Filter struct {
	codes map[event.Code]bool
}

// ParseFilter builds a filter from code names such as "MT_POSITION_X"
func ParseFilter(names []string) (*Filter, error) {
	f := &Filter{}
	for _, name := range names {
		if strings.TrimSpace(name) == "" {
			continue
		}
		code, err := event.CodeByName(name)
		if err != nil {
			return nil, err
		}
		if f.codes == nil {
			f.codes = make(map[event.Code]bool)
		}
		f.codes[code] = true
	}
	return f, nil
}

// Keep reports whether rec passes the filter
func (f *Filter) Keep(rec event.Record) bool {
	if f == nil || len(f.codes) == 0 {
		return true
	}
	code := event.Code(event.SynReport)
	if rec.Code != nil {
		code = rec.Code
	}
	return f.codes[code]
}

// Filtered wraps a printer so only records kept by f reach it
func Filtered(p Printer, f *Filter) Printer {
	return &filteredPrinter{Printer: p, filter: f}
}

type filteredPrinter struct {
	Printer
	filter *Filter
}

func (p *filteredPrinter) Print(rec event.Record) error {
	if !p.filter.Keep(rec) {
		return nil
	}
	return p.Printer.Print(rec)
}
