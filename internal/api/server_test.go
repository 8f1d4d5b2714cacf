package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"mtevent/internal/config"
	"mtevent/internal/event"
	"mtevent/internal/protocol"
	"mtevent/internal/stream"
)

func newTestServer(t *testing.T, mutate func(*config.Config)) (*Server, *httptest.Server) {
	t.Helper()
	return newTestServerAt(t, filepath.Join(t.TempDir(), "config.json"), mutate)
}

func newTestServerAt(t *testing.T, path string, mutate func(*config.Config)) (*Server, *httptest.Server) {
	t.Helper()

	mgr := config.NewManagerAt(path)
	cfg := mgr.Get()
	cfg.Gesture.TrackingID = config.TrackingIDCounter
	cfg.Gesture.Timestamp = 0x000558D8633AAC69
	if mutate != nil {
		mutate(&cfg)
	}
	if err := mgr.Set(cfg); err != nil {
		t.Fatalf("Failed to set config: %v", err)
	}

	s := NewServer(mgr)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		ts.Close()
		s.Shutdown(context.Background())
	})
	return s, ts
}

func encodeRecords(t *testing.T, recs []event.Record) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := stream.NewEncoder(&buf).EncodeAll(recs); err != nil {
		t.Fatalf("EncodeAll returned error: %v", err)
	}
	return buf.Bytes()
}

func TestHealth(t *testing.T) {
	_, ts := newTestServer(t, func(c *config.Config) { c.Server.Token = "secret" })

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200 without token, got %d", resp.StatusCode)
	}
}

func TestAuthRequired(t *testing.T) {
	_, ts := newTestServer(t, func(c *config.Config) { c.Server.Token = "secret" })

	resp, err := http.Get(ts.URL + "/api/status")
	if err != nil {
		t.Fatalf("GET /api/status failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("Expected 401, got %d", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/api/status", nil)
	req.Header.Set("Authorization", "Bearer secret")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /api/status failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200 with token, got %d", resp.StatusCode)
	}
}

func TestDecodeEndpoint(t *testing.T) {
	_, ts := newTestServer(t, nil)

	recs := []event.Record{
		{Time: 1, Code: event.AbsMTTrackingID, Value: event.TrackingIDRelease},
		{Time: 1, Code: event.SynReport},
	}
	resp, err := http.Post(ts.URL+"/api/decode", "application/octet-stream", bytes.NewReader(encodeRecords(t, recs)))
	if err != nil {
		t.Fatalf("POST /api/decode failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}

	var body DecodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if body.Count != 2 || len(body.Records) != 2 {
		t.Fatalf("Expected 2 records, got %+v", body)
	}
	if body.Records[0].Code != "MT_TRACKING_ID" || body.Records[0].Value != 4294967295 {
		t.Errorf("Unexpected first record %+v", body.Records[0])
	}
}

func TestDecodeEndpointTruncated(t *testing.T) {
	_, ts := newTestServer(t, nil)

	resp, err := http.Post(ts.URL+"/api/decode", "application/octet-stream", bytes.NewReader(make([]byte, 5)))
	if err != nil {
		t.Fatalf("POST /api/decode failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("Expected 422, got %d", resp.StatusCode)
	}

	var body DecodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if !strings.Contains(body.Error, "truncated") {
		t.Errorf("Expected truncation error, got %q", body.Error)
	}

	resp, err = http.Post(ts.URL+"/api/decode?lenient=true", "application/octet-stream", bytes.NewReader(make([]byte, 5)))
	if err != nil {
		t.Fatalf("POST /api/decode failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200 in lenient mode, got %d", resp.StatusCode)
	}
}

func TestDecodeEndpointMethod(t *testing.T) {
	_, ts := newTestServer(t, nil)

	resp, err := http.Get(ts.URL + "/api/decode")
	if err != nil {
		t.Fatalf("GET /api/decode failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("Expected 405, got %d", resp.StatusCode)
	}
}

func TestTapEndpoint(t *testing.T) {
	s, ts := newTestServer(t, nil)

	resp, err := http.Get(ts.URL + "/api/tap?x=10&y=20&count=2")
	if err != nil {
		t.Fatalf("GET /api/tap failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/octet-stream" {
		t.Errorf("Expected octet-stream, got %s", ct)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read body: %v", err)
	}
	if len(data) != 16*protocol.RecordSize {
		t.Fatalf("Expected %d bytes, got %d", 16*protocol.RecordSize, len(data))
	}

	recs, err := stream.DecodeAll(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("DecodeAll returned error: %v", err)
	}
	if recs[1].Value != 6426 || recs[9].Value != 6427 {
		t.Errorf("Expected tracking ids 6426 and 6427, got %d and %d", recs[1].Value, recs[9].Value)
	}
	if recs[2].Value != 10 || recs[3].Value != 20 || recs[4].Value != 90 {
		t.Errorf("Unexpected tap values x=%d y=%d p=%d", recs[2].Value, recs[3].Value, recs[4].Value)
	}
	if s.synthesized.Load() != 16 {
		t.Errorf("Expected 16 synthesized records, got %d", s.synthesized.Load())
	}
}

func TestTapEndpointErrors(t *testing.T) {
	_, ts := newTestServer(t, nil)

	tests := map[string]int{
		"/api/tap?x=abc":      http.StatusBadRequest,
		"/api/tap?count=0":    http.StatusBadRequest,
		"/api/tap?count=5000": http.StatusBadRequest,
		"/api/tap?x=9999":     http.StatusUnprocessableEntity,
	}
	for path, want := range tests {
		resp, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatalf("GET %s failed: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != want {
			t.Errorf("%s: expected %d, got %d", path, want, resp.StatusCode)
		}
	}
}

func TestConfigEndpoint(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	_, ts := newTestServerAt(t, path, func(c *config.Config) { c.Server.Token = "secret" })

	do := func(method, body string) *http.Response {
		req, _ := http.NewRequest(method, ts.URL+"/api/config", strings.NewReader(body))
		req.Header.Set("Authorization", "Bearer secret")
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("%s /api/config failed: %v", method, err)
		}
		return resp
	}

	resp := do(http.MethodGet, "")
	var cfg config.Config
	if err := json.NewDecoder(resp.Body).Decode(&cfg); err != nil {
		t.Fatalf("Failed to decode config: %v", err)
	}
	resp.Body.Close()
	if cfg.Server.Token != "" {
		t.Error("Expected token to be hidden")
	}

	resp = do(http.MethodPost, `{"gesture": {"x": 100, "tracking_id": "counter", "tracking_id_start": 7}}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/api/tap", nil)
	req.Header.Set("Authorization", "Bearer secret")
	tapResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /api/tap failed: %v", err)
	}
	defer tapResp.Body.Close()
	recs, err := stream.DecodeAll(tapResp.Body)
	if err != nil {
		t.Fatalf("DecodeAll returned error: %v", err)
	}
	if recs[1].Value != 7 || recs[2].Value != 100 {
		t.Errorf("Expected updated defaults, got id=%d x=%d", recs[1].Value, recs[2].Value)
	}

	saved := config.NewManagerAt(path)
	if err := saved.Load(); err != nil {
		t.Fatalf("Failed to reload saved config: %v", err)
	}
	if got := saved.Get().Gesture; got.X != 100 || got.TrackingIDStart != 7 {
		t.Errorf("Expected update to be persisted, got x=%d start=%d", got.X, got.TrackingIDStart)
	}

	resp = do(http.MethodPost, `{"decode": {"format": "xml"}}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for invalid config, got %d", resp.StatusCode)
	}
}

func TestWebSocketBroadcast(t *testing.T) {
	s, ts := newTestServer(t, nil)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for s.wsMgr.clientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("Client never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	resp, err := http.Get(ts.URL + "/api/tap")
	if err != nil {
		t.Fatalf("GET /api/tap failed: %v", err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got []event.Record
	for {
		var msg protocol.Message
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("ReadJSON failed: %v", err)
		}
		if msg.Type == protocol.TypeEnd {
			if msg.Records != 8 {
				t.Errorf("Expected end message with 8 records, got %d", msg.Records)
			}
			break
		}
		if msg.Type != protocol.TypeRecord || msg.Source != "tap" {
			t.Fatalf("Unexpected message %+v", msg)
		}
		rec, err := msg.Record.Record()
		if err != nil {
			t.Fatalf("Record() returned error: %v", err)
		}
		got = append(got, rec)
	}

	if len(got) != 8 {
		t.Fatalf("Expected 8 records, got %d", len(got))
	}
	if !got[6].IsRelease() {
		t.Errorf("Expected release record, got %v", got[6])
	}
}

func TestStartShutdown(t *testing.T) {
	s := NewServer(config.NewManagerAt(filepath.Join(t.TempDir(), "config.json")))

	done := make(chan error, 1)
	go func() { done <- s.Start(0) }()
	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown returned error: %v", err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Expected Start to return nil after Shutdown, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after Shutdown")
	}
}

func TestShutdownBeforeStart(t *testing.T) {
	s := NewServer(config.NewManagerAt(filepath.Join(t.TempDir(), "config.json")))
	if err := s.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown returned error: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- s.Start(0) }()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Expected Start to return nil after Shutdown, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Start kept serving after Shutdown")
	}
}
