package protocol

import (
	"encoding/binary"
	"errors"

	"mtevent/internal/event"
)

// RecordSize is the size of one input-event record on the wire
const RecordSize = 16

// ErrTruncatedRecord is returned when fewer than RecordSize bytes remain for a record
var ErrTruncatedRecord = errors.New("input: truncated record")

// Wire format, all fields little-endian:
//
//	time  (uint64) [0:8]
//	type  (uint16) [8:10]
//	code  (uint16) [10:12]
//	value (uint32) [12:16]                                                   = 16 bytes

// PutRecord serializes rec into buf, which must hold at least RecordSize bytes.
func PutRecord(buf []byte, rec event.Record) {
	_ = buf[RecordSize-1]

	var typ, code uint16
	if rec.Code != nil {
		typ = rec.Code.Type().Wire()
		code = rec.Code.Wire()
	}

	binary.LittleEndian.PutUint64(buf[0:8], rec.Time)
	binary.LittleEndian.PutUint16(buf[8:10], typ)
	binary.LittleEndian.PutUint16(buf[10:12], code)
	binary.LittleEndian.PutUint32(buf[12:16], rec.Value)
}

// EncodeRecord serializes a record to wire format.
func EncodeRecord(rec event.Record) []byte {
	buf := make([]byte, RecordSize)
	PutRecord(buf, rec)
	return buf
}

// DecodeRecord deserializes one wire record. Type and code are resolved through the
// event schema; an unknown value is returned as an error, never as a partial record.
func DecodeRecord(data []byte) (event.Record, error) {
	if len(data) < RecordSize {
		return event.Record{}, ErrTruncatedRecord
	}

	typ, err := event.TypeFromWire(binary.LittleEndian.Uint16(data[8:10]))
	if err != nil {
		return event.Record{}, err
	}
	code, err := event.CodeFromWire(typ, binary.LittleEndian.Uint16(data[10:12]))
	if err != nil {
		return event.Record{}, err
	}

	return event.Record{
		Time:  binary.LittleEndian.Uint64(data[0:8]),
		Code:  code,
		Value: binary.LittleEndian.Uint32(data[12:16]),
	}, nil
}
