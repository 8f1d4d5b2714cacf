// Package stream reads and writes sequences of input-event records.
package stream

import (
	"errors"
	"fmt"
	"io"
	"iter"

	"mtevent/internal/event"
	"mtevent/internal/protocol"
)

// TruncatedError reports a trailing chunk shorter than one record
type TruncatedError struct {
	Offset int64 // Byte offset where the partial record starts
	Got    int   // Bytes available, 1..RecordSize-1
}

func (e *TruncatedError) Error() string {
	return fmt.Sprintf("%v: %d of %d bytes at offset %d", protocol.ErrTruncatedRecord, e.Got, protocol.RecordSize, e.Offset)
}

func (e *TruncatedError) Unwrap() error {
	return protocol.ErrTruncatedRecord
}

// DecoderOption configures a Decoder
type DecoderOption func(*Decoder)

// WithLenientTail makes the decoder drop a partial trailing record silently
// instead of failing with a TruncatedError.
func WithLenientTail() DecoderOption {
	return func(d *Decoder) {
		d.lenient = true
	}
}

// Decoder reads records from a byte stream one 16-byte window at a time.
// It is single-use: after io.EOF or an error every call returns the same result.
type Decoder struct {
	r       io.Reader
	buf     [protocol.RecordSize]byte
	lenient bool
	count   int
	err     error
}

// NewDecoder creates a decoder reading from r
func NewDecoder(r io.Reader, opts ...DecoderOption) *Decoder {
	d := &Decoder{r: r}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Count returns the number of records decoded so far
func (d *Decoder) Count() int {
	return d.count
}

// Next decodes the next record. It returns io.EOF when the stream ends cleanly on a
// record boundary.
func (d *Decoder) Next() (event.Record, error) {
	if d.err != nil {
		return event.Record{}, d.err
	}

	offset := int64(d.count) * protocol.RecordSize
	n, err := io.ReadFull(d.r, d.buf[:])
	switch {
	case err == nil:
	case errors.Is(err, io.EOF):
		d.err = io.EOF
		return event.Record{}, d.err
	case errors.Is(err, io.ErrUnexpectedEOF):
		if d.lenient {
			d.err = io.EOF
		} else {
			d.err = &TruncatedError{Offset: offset, Got: n}
		}
		return event.Record{}, d.err
	default:
		d.err = fmt.Errorf("read record %d: %w", d.count, err)
		return event.Record{}, d.err
	}

	rec, err := protocol.DecodeRecord(d.buf[:])
	if err != nil {
		d.err = fmt.Errorf("record %d at offset %d: %w", d.count, offset, err)
		return event.Record{}, d.err
	}

	d.count++
	return rec, nil
}

// Records returns the remaining records as a sequence. A clean end stops the sequence
// without yielding an error; any other failure is yielded once as the last element.
func (d *Decoder) Records() iter.Seq2[event.Record, error] {
	return func(yield func(event.Record, error) bool) {
		for {
			rec, err := d.Next()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(event.Record{}, err)
				return
			}
			if !yield(rec, nil) {
				return
			}
		}
	}
}

// DecodeAll reads every record from r
func DecodeAll(r io.Reader, opts ...DecoderOption) ([]event.Record, error) {
	var out []event.Record
	for rec, err := range NewDecoder(r, opts...).Records() {
		if err != nil {
			return out, err
		}
		out = append(out, rec)
	}
	return out, nil
}
