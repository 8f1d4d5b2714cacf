// Package network provides the WebSocket client that follows a serving instance.
package network

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/url"
	"sync"
	"time"

	"mtevent/internal/event"
	"mtevent/internal/protocol"

	"github.com/gorilla/websocket"
)

// WSClient handles the WebSocket connection to a serving instance
type WSClient struct {
	hostAddr  string
	token     string
	retry     time.Duration
	done      chan struct{}
	stopped   chan struct{}
	startOnce sync.Once
	closeOnce sync.Once

	// Callbacks, all invoked from the single read goroutine
	OnRecord func(source string, rec event.Record)
	OnError  func(source string, msg string)
	OnEnd    func(source string, count int)

	mu          sync.Mutex
	conn        *websocket.Conn
	isConnected bool
}

// NewWSClient creates a new WebSocket client
func NewWSClient(hostAddr, token string) *WSClient {
	return &WSClient{
		hostAddr: hostAddr,
		token:    token,
		retry:    5 * time.Second,
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
}

// Start begins the client loop (connect & process)
func (c *WSClient) Start() {
	c.startOnce.Do(func() {
		go c.loop()
	})
}

func (c *WSClient) loop() {
	defer close(c.stopped)

	for {
		select {
		case <-c.done:
			return
		default:
		}

		c.connect()

		// If connect returns, it means we disconnected. Wait a bit and retry.
		select {
		case <-c.done:
			return
		case <-time.After(c.retry):
			log.Println("WS Client: Attempting reconnection...")
		}
	}
}

func (c *WSClient) connect() {
	u := url.URL{Scheme: "ws", Host: c.hostAddr, Path: "/ws"}
	log.Printf("WS Client: Connecting to %s", u.String())

	header := http.Header{}
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), header)
	if err != nil {
		log.Printf("WS Client: Connection failed: %v", err)
		return
	}
	defer conn.Close()

	c.mu.Lock()
	c.conn = conn
	c.isConnected = true
	c.mu.Unlock()

	log.Println("WS Client: Connected")

	connDone := make(chan struct{})
	go func() {
		defer close(connDone)
		c.pingPump(conn)
	}()

	c.readPump(conn)

	c.mu.Lock()
	c.isConnected = false
	c.conn = nil
	c.mu.Unlock()

	conn.Close()
	<-connDone
}

func (c *WSClient) readPump(conn *websocket.Conn) {
	conn.SetReadLimit(4096)
	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error { conn.SetReadDeadline(time.Now().Add(60 * time.Second)); return nil })
	conn.SetPingHandler(func(data string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(10*time.Second))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WS Client: Read error: %v", err)
			}
			return
		}

		var msg protocol.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Printf("WS Client: Invalid message: %v", err)
			continue
		}

		c.handleMessage(msg)
	}
}

// pingPump keeps the connection alive until it fails or the client closes
func (c *WSClient) pingPump(conn *websocket.Conn) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second)); err != nil {
				return
			}
		case <-c.done:
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			conn.Close()
			return
		}
	}
}

func (c *WSClient) handleMessage(msg protocol.Message) {
	switch msg.Type {
	case protocol.TypeRecord:
		if msg.Record == nil {
			log.Printf("WS Client: Record message without record")
			return
		}
		rec, err := msg.Record.Record()
		if err != nil {
			log.Printf("WS Client: Dropping record: %v", err)
			return
		}
		if c.OnRecord != nil {
			c.OnRecord(msg.Source, rec)
		}

	case protocol.TypeError:
		log.Printf("WS Client: Server reported %s error: %s", msg.Source, msg.Error)
		if c.OnError != nil {
			c.OnError(msg.Source, msg.Error)
		}

	case protocol.TypeEnd:
		if c.OnEnd != nil {
			c.OnEnd(msg.Source, msg.Records)
		}

	default:
		log.Printf("WS Client: Ignoring message type %q", msg.Type)
	}
}

// IsConnected returns true if the client is connected
func (c *WSClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isConnected
}

// ErrClosed is returned by Wait after Close
var ErrClosed = errors.New("ws client closed")

// Wait blocks until Close is called and, if the client was started, until its last
// callback has returned
func (c *WSClient) Wait() error {
	<-c.done

	started := true
	c.startOnce.Do(func() { started = false })
	if started {
		<-c.stopped
	}
	return ErrClosed
}

// Close stops the client
func (c *WSClient) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}
