// Package event defines the input-event schema shared by the decoder and the encoder.
package event

import "fmt"

// Type is the outer event type tag of a record
type Type uint16

const (
	TypeSyn Type = 0x00 // Synchronization markers
	TypeAbs Type = 0x03 // Absolute axis updates
)

// TrackingIDRelease is the MT_TRACKING_ID value that ends a contact
const TrackingIDRelease uint32 = 0xFFFFFFFF

// Wire returns the on-the-wire value of the type
func (t Type) Wire() uint16 {
	return uint16(t)
}

func (t Type) String() string {
	switch t {
	case TypeSyn:
		return "SYN"
	case TypeAbs:
		return "ABS"
	default:
		return fmt.Sprintf("Type(0x%02x)", uint16(t))
	}
}

// Code is an event code scoped by its type. Only SynCode and AbsCode implement it,
// so a Code always carries a valid type/code pairing.
type Code interface {
	Type() Type
	Wire() uint16
	String() string

	sealed()
}

// SynCode is a code valid for TypeSyn
type SynCode uint16

const (
	SynReport SynCode = 0x00
)

func (c SynCode) Type() Type   { return TypeSyn }
func (c SynCode) Wire() uint16 { return uint16(c) }
func (c SynCode) sealed()      {}

func (c SynCode) String() string {
	switch c {
	case SynReport:
		return "SYN_REPORT"
	default:
		return fmt.Sprintf("SynCode(0x%02x)", uint16(c))
	}
}

// AbsCode is a code valid for TypeAbs
type AbsCode uint16

const (
	AbsMTSlot        AbsCode = 0x2f
	AbsMTTouchMajor  AbsCode = 0x30
	AbsMTTouchMinor  AbsCode = 0x31
	AbsMTOrientation AbsCode = 0x34
	AbsMTPositionX   AbsCode = 0x35
	AbsMTPositionY   AbsCode = 0x36
	AbsMTTrackingID  AbsCode = 0x39
	AbsMTPressure    AbsCode = 0x3a
)

func (c AbsCode) Type() Type   { return TypeAbs }
func (c AbsCode) Wire() uint16 { return uint16(c) }
func (c AbsCode) sealed()      {}

func (c AbsCode) String() string {
	switch c {
	case AbsMTSlot:
		return "MT_SLOT"
	case AbsMTTouchMajor:
		return "MT_TOUCH_MAJOR"
	case AbsMTTouchMinor:
		return "MT_TOUCH_MINOR"
	case AbsMTOrientation:
		return "MT_ORIENTATION"
	case AbsMTPositionX:
		return "MT_POSITION_X"
	case AbsMTPositionY:
		return "MT_POSITION_Y"
	case AbsMTTrackingID:
		return "MT_TRACKING_ID"
	case AbsMTPressure:
		return "MT_PRESSURE"
	default:
		return fmt.Sprintf("AbsCode(0x%02x)", uint16(c))
	}
}

// Record is one decoded or synthesized input event
type Record struct {
	Time  uint64 // Opaque timestamp, passed through
	Code  Code   // Type and code; nil encodes as SYN/SYN_REPORT
	Value uint32 // Raw data, interpretation depends on Code
}

// Type returns the record's event type
func (r Record) Type() Type {
	if r.Code == nil {
		return TypeSyn
	}
	return r.Code.Type()
}

// IsRelease reports whether the record ends a multi-touch contact
func (r Record) IsRelease() bool {
	return r.Code == AbsMTTrackingID && r.Value == TrackingIDRelease
}

func (r Record) String() string {
	code := "SYN_REPORT"
	if r.Code != nil {
		code = r.Code.String()
	}
	return fmt.Sprintf("%d %s %s %d", r.Time, r.Type(), code, r.Value)
}
