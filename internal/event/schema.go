package event

import (
	"fmt"
	"strings"
)

var synCodes = map[uint16]SynCode{
	uint16(SynReport): SynReport,
}

var absCodes = map[uint16]AbsCode{
	uint16(AbsMTSlot):        AbsMTSlot,
	uint16(AbsMTTouchMajor):  AbsMTTouchMajor,
	uint16(AbsMTTouchMinor):  AbsMTTouchMinor,
	uint16(AbsMTOrientation): AbsMTOrientation,
	uint16(AbsMTPositionX):   AbsMTPositionX,
	uint16(AbsMTPositionY):   AbsMTPositionY,
	uint16(AbsMTTrackingID):  AbsMTTrackingID,
	uint16(AbsMTPressure):    AbsMTPressure,
}

// TypeFromWire resolves a raw type field
func TypeFromWire(v uint16) (Type, error) {
	switch t := Type(v); t {
	case TypeSyn, TypeAbs:
		return t, nil
	default:
		return 0, &TypeError{Value: v}
	}
}

// CodeFromWire resolves a raw code field against the code set of t
func CodeFromWire(t Type, v uint16) (Code, error) {
	switch t {
	case TypeSyn:
		if c, ok := synCodes[v]; ok {
			return c, nil
		}
	case TypeAbs:
		if c, ok := absCodes[v]; ok {
			return c, nil
		}
	default:
		return nil, &TypeError{Value: uint16(t)}
	}
	return nil, &CodeError{Type: t, Value: v}
}

// Codes returns every known code, SYN codes first, each group in wire order
func Codes() []Code {
	return []Code{
		SynReport,
		AbsMTSlot,
		AbsMTTouchMajor,
		AbsMTTouchMinor,
		AbsMTOrientation,
		AbsMTPositionX,
		AbsMTPositionY,
		AbsMTTrackingID,
		AbsMTPressure,
	}
}

// CodeByName looks up a code by its symbolic name. Matching ignores case and the
// kernel's "ABS_" prefix, so "mt_slot" and "ABS_MT_SLOT" both resolve.
func CodeByName(name string) (Code, error) {
	want := strings.ToUpper(strings.TrimSpace(name))
	want = strings.TrimPrefix(want, "ABS_")
	for _, c := range Codes() {
		if c.String() == want {
			return c, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownCodeName, name)
}
