// Package protocol implements the input-event wire format and the websocket messages
// used to stream records between instances.
package protocol

import (
	"mtevent/internal/event"
)

// MessageType defines the type of WebSocket message
type MessageType string

const (
	// TypeRecord carries one decoded or synthesized record
	TypeRecord MessageType = "record"

	// TypeError reports a decode failure on the server side
	TypeError MessageType = "error"

	// TypeEnd marks the end of one decoded stream
	TypeEnd MessageType = "end"
)

// Message is the generic container for all WebSocket messages
type Message struct {
	Type    MessageType `json:"type"`
	Source  string      `json:"source,omitempty"` // "decode", "tap"
	Record  *RecordJSON `json:"record,omitempty"`
	Error   string      `json:"error,omitempty"`
	Records int         `json:"records,omitempty"` // record count for TypeEnd
}

// RecordJSON is the JSON form of a record. Raw wire values travel alongside the
// symbolic names so receivers can resolve them through the schema again.
type RecordJSON struct {
	Time     uint64 `json:"time" yaml:"time"`
	Type     string `json:"type" yaml:"type"`
	Code     string `json:"code" yaml:"code"`
	TypeWire uint16 `json:"type_wire" yaml:"type_wire"`
	CodeWire uint16 `json:"code_wire" yaml:"code_wire"`
	Value    uint32 `json:"value" yaml:"value"`
}

// NewRecordJSON converts a record to its JSON form
func NewRecordJSON(rec event.Record) RecordJSON {
	code := event.Code(event.SynReport)
	if rec.Code != nil {
		code = rec.Code
	}
	return RecordJSON{
		Time:     rec.Time,
		Type:     code.Type().String(),
		Code:     code.String(),
		TypeWire: code.Type().Wire(),
		CodeWire: code.Wire(),
		Value:    rec.Value,
	}
}

// Record resolves the wire values back into a typed record
func (r RecordJSON) Record() (event.Record, error) {
	typ, err := event.TypeFromWire(r.TypeWire)
	if err != nil {
		return event.Record{}, err
	}
	code, err := event.CodeFromWire(typ, r.CodeWire)
	if err != nil {
		return event.Record{}, err
	}
	return event.Record{Time: r.Time, Code: code, Value: r.Value}, nil
}
