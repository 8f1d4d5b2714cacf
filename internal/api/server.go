// Package api provides the HTTP API server for decoding and synthesizing record streams.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"

	"mtevent/internal/config"
	"mtevent/internal/gesture"
	"mtevent/internal/protocol"
	"mtevent/internal/stream"
)

// maxCount caps the taps synthesized by one request
const maxCount = 1000

// Server provides the HTTP API and the record broadcast hub
type Server struct {
	configMgr *config.Manager
	wsMgr     *WSManager

	genMu sync.Mutex
	gen   *gesture.Generator

	decoded     atomic.Int64
	synthesized atomic.Int64

	startOnce  sync.Once
	httpServer *http.Server // built once in NewServer, never reassigned
}

// NewServer creates a new API server
func NewServer(configMgr *config.Manager) *Server {
	s := &Server{
		configMgr: configMgr,
		gen:       configMgr.Get().Gesture.NewGenerator(),
	}
	s.wsMgr = newWSManager()
	s.httpServer = &http.Server{Handler: s.Handler()}
	return s
}

// Handler returns the API routes, starting the WebSocket hub on first use
func (s *Server) Handler() http.Handler {
	s.startOnce.Do(func() {
		go s.wsMgr.start()
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/api/decode", s.handleDecode)
	mux.HandleFunc("/api/tap", s.handleTap)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/config", s.handleConfig)
	mux.HandleFunc("/ws", s.wsMgr.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)

	return s.authMiddleware(s.recoverMiddleware(mux))
}

// Start starts the API server on the specified port. It blocks until the server stops
// and returns nil after Shutdown, even when Shutdown ran first.
func (s *Server) Start(port int) error {
	addr := fmt.Sprintf("0.0.0.0:%d", port)
	log.Printf("Starting API server on %s", addr)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		log.Printf("ERROR: API server failed to listen on %s: %v", addr, err)
		return err
	}

	// This is blocking
	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Printf("ERROR: API server stopped: %v", err)
		return err
	}
	return nil
}

// Shutdown stops the HTTP server and the WebSocket hub
func (s *Server) Shutdown(ctx context.Context) error {
	s.wsMgr.close()
	return s.httpServer.Shutdown(ctx)
}

// recoverMiddleware prevents panics from crashing the whole server
func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				log.Printf("PANIC RECOV: %v", err)
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// authMiddleware checks API token if configured
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Printf("API: %s %s from %s", r.Method, r.URL.Path, r.RemoteAddr)

		// Skip auth for health check
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		if token := s.configMgr.Get().Server.Token; token != "" {
			if r.Header.Get("Authorization") != "Bearer "+token {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

// DecodeResponse is the body returned by POST /api/decode
type DecodeResponse struct {
	Count   int                   `json:"count"`
	Records []protocol.RecordJSON `json:"records"`
	Error   string                `json:"error,omitempty"`
}

// handleDecode handles POST /api/decode with a raw record stream as the body.
// Add ?lenient=true to drop a partial trailing record.
func (s *Server) handleDecode(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	lenient := s.configMgr.Get().Decode.Lenient
	if v := r.URL.Query().Get("lenient"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			http.Error(w, "Invalid lenient parameter", http.StatusBadRequest)
			return
		}
		lenient = b
	}

	var opts []stream.DecoderOption
	if lenient {
		opts = append(opts, stream.WithLenientTail())
	}

	resp := DecodeResponse{Records: []protocol.RecordJSON{}}
	status := http.StatusOK
	for rec, err := range stream.NewDecoder(r.Body, opts...).Records() {
		if err != nil {
			log.Printf("API: Decode failed after %d records: %v", resp.Count, err)
			resp.Error = err.Error()
			status = http.StatusUnprocessableEntity
			s.wsMgr.broadcastError("decode", err)
			break
		}
		resp.Records = append(resp.Records, protocol.NewRecordJSON(rec))
		resp.Count++
		s.decoded.Add(1)
		s.wsMgr.broadcastRecord("decode", rec)
	}
	if status == http.StatusOK {
		s.wsMgr.broadcastEnd("decode", resp.Count)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}

// handleTap handles GET|POST /api/tap?x=<x>&y=<y>&pressure=<p>&count=<n>. Missing
// parameters fall back to the configured defaults. The response is the raw stream.
func (s *Server) handleTap(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	tap := s.configMgr.Get().Gesture.DefaultTap()
	count := uint32(1)
	q := r.URL.Query()
	for name, dst := range map[string]*uint32{"x": &tap.X, "y": &tap.Y, "pressure": &tap.Pressure, "count": &count} {
		v := q.Get(name)
		if v == "" {
			continue
		}
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			http.Error(w, fmt.Sprintf("Invalid %s parameter", name), http.StatusBadRequest)
			return
		}
		*dst = uint32(n)
	}
	if count == 0 || count > maxCount {
		http.Error(w, fmt.Sprintf("count must be between 1 and %d", maxCount), http.StatusBadRequest)
		return
	}

	taps := make([]gesture.Tap, count)
	for i := range taps {
		taps[i] = tap
	}

	s.genMu.Lock()
	recs, err := s.gen.Taps(taps...)
	s.genMu.Unlock()
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	log.Printf("API: Synthesized %d tap(s) at (%d, %d) for %s", count, tap.X, tap.Y, r.RemoteAddr)

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.Itoa(len(recs)*protocol.RecordSize))
	if err := stream.NewEncoder(w).EncodeAll(recs); err != nil {
		log.Printf("API: Failed to write tap stream: %v", err)
		return
	}

	s.synthesized.Add(int64(len(recs)))
	for _, rec := range recs {
		s.wsMgr.broadcastRecord("tap", rec)
	}
	s.wsMgr.broadcastEnd("tap", len(recs))
}

// StatusResponse is the body returned by GET /api/status
type StatusResponse struct {
	Clients     int   `json:"clients"`
	Decoded     int64 `json:"decoded"`
	Synthesized int64 `json:"synthesized"`
}

// handleStatus handles GET /api/status
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(StatusResponse{
		Clients:     s.wsMgr.clientCount(),
		Decoded:     s.decoded.Load(),
		Synthesized: s.synthesized.Load(),
	})
}

// handleConfig handles GET (read) and POST (update) for configuration
func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		cfg := s.configMgr.Get()
		cfg.Server.Token = ""
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(cfg)

	case http.MethodPost:
		newCfg := s.configMgr.Get()
		if err := json.NewDecoder(r.Body).Decode(&newCfg); err != nil {
			http.Error(w, "Invalid configuration data", http.StatusBadRequest)
			return
		}

		log.Printf("API: Receiving configuration update from %s", r.RemoteAddr)

		// Update in-memory config and save to disk
		if err := s.configMgr.Set(newCfg); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := s.configMgr.Save(); err != nil {
			log.Printf("API: Failed to save received config: %v", err)
			http.Error(w, "Failed to save configuration", http.StatusInternalServerError)
			return
		}

		s.genMu.Lock()
		s.gen = newCfg.Gesture.NewGenerator()
		s.genMu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleHealth handles GET /health (for monitoring)
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
