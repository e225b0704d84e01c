package api

import (
	"encoding/json"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	"github.com/wavestack/automod/internal/metrics"
	"github.com/wavestack/automod/internal/moderation"
)

// streamWriteTimeout bounds each broadcast write so one stalled dashboard
// cannot hold up the rest.
const streamWriteTimeout = 5 * time.Second

// StreamEvent is the JSON payload broadcast for each flagged decision.
type StreamEvent struct {
	UserID     string             `json:"user_id"`
	Username   string             `json:"username"`
	Platform   string             `json:"platform"`
	ChannelID  string             `json:"channel_id"`
	Violations []string           `json:"violations"`
	Scores     map[string]float64 `json:"scores"`
	Actions    []string           `json:"actions"`
	Ts         int64              `json:"ts"`
}

// NewStreamEvent builds the broadcast payload for a flagged decision.
func NewStreamEvent(req moderation.Request, decision moderation.Decision) StreamEvent {
	return StreamEvent{
		UserID:     req.UserID,
		Username:   req.Username,
		Platform:   req.Platform,
		ChannelID:  req.ChannelID,
		Violations: decision.Violations,
		Scores:     decision.Scores,
		Actions:    decision.Actions,
		Ts:         time.Now().Unix(),
	}
}

// StreamHub fans flagged-decision events out to WebSocket dashboard clients.
// This is a low-fanout feed (moderator dashboards, not end users), so each
// connection gets a plain reader goroutine; connections that fail a write
// are dropped.
type StreamHub struct {
	mu    sync.Mutex
	conns map[net.Conn]*streamConn
}

// streamConn pairs a connection with its write mutex. Broadcasts can run
// concurrently (one per flagged decision) and a WebSocket frame is emitted in
// multiple writes, so frame writes to one connection must be serialized.
type streamConn struct {
	conn net.Conn
	mu   sync.Mutex
}

// NewStreamHub returns an empty hub.
func NewStreamHub() *StreamHub {
	return &StreamHub{conns: make(map[net.Conn]*streamConn)}
}

// HandleUpgrade upgrades an HTTP request to a WebSocket connection and
// registers it with the hub. The client is not expected to send data; the
// reader goroutine only exists to notice disconnects.
func (h *StreamHub) HandleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		log.Printf("[stream] upgrade failed: %v", err)
		return
	}

	h.mu.Lock()
	h.conns[conn] = &streamConn{conn: conn}
	n := len(h.conns)
	h.mu.Unlock()
	metrics.StreamClients.Set(float64(n))

	log.Printf("[stream] client connected remote=%s total=%d", conn.RemoteAddr(), n)

	go func() {
		for {
			if _, _, err := wsutil.ReadClientData(conn); err != nil {
				h.remove(conn)
				return
			}
		}
	}()
}

// Broadcast sends event to every connected client. Writes that fail remove
// the client.
func (h *StreamHub) Broadcast(event StreamEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("[stream] marshal event: %v", err)
		return
	}

	h.mu.Lock()
	clients := make([]*streamConn, 0, len(h.conns))
	for _, sc := range h.conns {
		clients = append(clients, sc)
	}
	h.mu.Unlock()

	for _, sc := range clients {
		sc.mu.Lock()
		sc.conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
		err := wsutil.WriteServerMessage(sc.conn, ws.OpText, data)
		sc.mu.Unlock()
		if err != nil {
			h.remove(sc.conn)
		}
	}
}

// Close disconnects every client.
func (h *StreamHub) Close() {
	h.mu.Lock()
	for conn := range h.conns {
		conn.Close()
	}
	h.conns = make(map[net.Conn]*streamConn)
	h.mu.Unlock()
	metrics.StreamClients.Set(0)
}

func (h *StreamHub) remove(conn net.Conn) {
	h.mu.Lock()
	if _, ok := h.conns[conn]; ok {
		delete(h.conns, conn)
		conn.Close()
	}
	n := len(h.conns)
	h.mu.Unlock()
	metrics.StreamClients.Set(float64(n))
}
