package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"mtevent/internal/event"
)

var timeBytes = []byte{0x69, 0xAC, 0x3A, 0x63, 0xD8, 0x58, 0x05, 0x00}

const capturedTime uint64 = 0x000558D8633AAC69

// TestEncodeRecordLayout checks field offsets against a hand-built record
func TestEncodeRecordLayout(t *testing.T) {
	rec := event.Record{Time: capturedTime, Code: event.AbsMTPositionY, Value: 1800}

	want := append([]byte{}, timeBytes...)
	want = append(want, 0x03, 0x00) // ABS
	want = append(want, 0x36, 0x00) // MT_POSITION_Y
	want = append(want, 0x08, 0x07, 0x00, 0x00)

	got := EncodeRecord(rec)
	if len(got) != RecordSize {
		t.Fatalf("Expected %d bytes, got %d", RecordSize, len(got))
	}
	if !bytes.Equal(got, want) {
		t.Errorf("Expected % x, got % x", want, got)
	}
}

func TestDecodeRecordReleaseSentinel(t *testing.T) {
	data := append([]byte{}, timeBytes...)
	data = append(data, 0x03, 0x00, 0x39, 0x00, 0xFF, 0xFF, 0xFF, 0xFF)

	rec, err := DecodeRecord(data)
	if err != nil {
		t.Fatalf("DecodeRecord returned error: %v", err)
	}
	if rec.Code != event.AbsMTTrackingID {
		t.Errorf("Expected MT_TRACKING_ID, got %v", rec.Code)
	}
	if rec.Value != 4294967295 {
		t.Errorf("Expected value 4294967295, got %d", rec.Value)
	}
	if rec.Time != capturedTime {
		t.Errorf("Expected time %d, got %d", capturedTime, rec.Time)
	}
}

func TestDecodeRecordErrors(t *testing.T) {
	if _, err := DecodeRecord(make([]byte, 5)); !errors.Is(err, ErrTruncatedRecord) {
		t.Errorf("Expected ErrTruncatedRecord, got %v", err)
	}

	badType := make([]byte, RecordSize)
	badType[8] = 0x01
	if _, err := DecodeRecord(badType); !errors.Is(err, event.ErrUnrecognizedType) {
		t.Errorf("Expected ErrUnrecognizedType, got %v", err)
	}

	badCode := make([]byte, RecordSize)
	badCode[10] = 0x01
	if _, err := DecodeRecord(badCode); !errors.Is(err, event.ErrUnrecognizedCode) {
		t.Errorf("Expected ErrUnrecognizedCode, got %v", err)
	}
}

func TestRecordRoundTrip(t *testing.T) {
	for i, code := range event.Codes() {
		rec := event.Record{Time: uint64(i) << 40, Code: code, Value: uint32(i) * 0x01010101}
		got, err := DecodeRecord(EncodeRecord(rec))
		if err != nil {
			t.Fatalf("DecodeRecord(%s) returned error: %v", code, err)
		}
		if got != rec {
			t.Errorf("Expected %v, got %v", rec, got)
		}
	}
}

func TestNilCodeEncodesAsSynReport(t *testing.T) {
	got, err := DecodeRecord(EncodeRecord(event.Record{Time: 7}))
	if err != nil {
		t.Fatalf("DecodeRecord returned error: %v", err)
	}
	if got.Code != event.SynReport {
		t.Errorf("Expected SYN_REPORT, got %v", got.Code)
	}
}

func TestRecordJSON(t *testing.T) {
	rec := event.Record{Time: capturedTime, Code: event.AbsMTTrackingID, Value: event.TrackingIDRelease}

	data, err := json.Marshal(NewRecordJSON(rec))
	if err != nil {
		t.Fatalf("Failed to marshal record: %v", err)
	}

	var decoded RecordJSON
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Failed to unmarshal record: %v", err)
	}
	if decoded.Type != "ABS" || decoded.Code != "MT_TRACKING_ID" {
		t.Errorf("Expected ABS/MT_TRACKING_ID, got %s/%s", decoded.Type, decoded.Code)
	}

	back, err := decoded.Record()
	if err != nil {
		t.Fatalf("Record() returned error: %v", err)
	}
	if back != rec {
		t.Errorf("Expected %v, got %v", rec, back)
	}

	decoded.CodeWire = 0x01
	if _, err := decoded.Record(); !errors.Is(err, event.ErrUnrecognizedCode) {
		t.Errorf("Expected ErrUnrecognizedCode, got %v", err)
	}
}
