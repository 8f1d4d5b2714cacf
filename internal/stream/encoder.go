package stream

import (
	"bufio"
	"fmt"
	"io"

	"mtevent/internal/event"
	"mtevent/internal/protocol"
)

// Encoder appends wire records to a buffered sink
type Encoder struct {
	w     *bufio.Writer
	buf   [protocol.RecordSize]byte
	count int
}

// NewEncoder creates an encoder writing to w
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: bufio.NewWriter(w)}
}

// Count returns the number of records written so far
func (e *Encoder) Count() int {
	return e.count
}

// Encode appends one record. Output may stay buffered until Flush.
func (e *Encoder) Encode(rec event.Record) error {
	protocol.PutRecord(e.buf[:], rec)
	if _, err := e.w.Write(e.buf[:]); err != nil {
		return fmt.Errorf("write record %d: %w", e.count, err)
	}
	e.count++
	return nil
}

// EncodeAll appends every record in order, then flushes
func (e *Encoder) EncodeAll(recs []event.Record) error {
	for _, rec := range recs {
		if err := e.Encode(rec); err != nil {
			return err
		}
	}
	return e.Flush()
}

// Flush writes any buffered records to the sink
func (e *Encoder) Flush() error {
	if err := e.w.Flush(); err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	return nil
}
