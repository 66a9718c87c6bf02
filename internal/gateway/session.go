// Package gateway is the websocket edge. A session decodes client envelopes
// into conn.* publishes for the relay and pipes the connection's
// deliver.{connId} subject back down the socket. The relay core never
// imports this package.
package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nuid"

	"github.com/amnnrajbhar/chat-room/internal/event"
	"github.com/amnnrajbhar/chat-room/pkg/otelhelper"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4096

	// Outbound buffer per session; overflow drops the event.
	sendBuffer = 256
)

// Session is one websocket connection bridged onto NATS.
type Session struct {
	connID string
	ws     *websocket.Conn
	nc     *nats.Conn
	send   chan []byte
	sub    *nats.Subscription
}

// NewSession assigns a connection id and subscribes the session to its
// delivery subject. Run must be called to start the pumps.
func NewSession(ws *websocket.Conn, nc *nats.Conn) (*Session, error) {
	s := &Session{
		connID: nuid.Next(),
		ws:     ws,
		nc:     nc,
		send:   make(chan []byte, sendBuffer),
	}

	sub, err := nc.Subscribe("deliver."+s.connID, func(msg *nats.Msg) {
		select {
		case s.send <- msg.Data:
		default:
			// Slow consumer: dropping is the contract, never block delivery.
			slog.Warn("Session send buffer full, dropping event", "conn", s.connID)
		}
	})
	if err != nil {
		return nil, err
	}
	s.sub = sub
	return s, nil
}

// ConnID returns the opaque connection handle.
func (s *Session) ConnID() string {
	return s.connID
}

// Run starts the write pump and blocks in the read pump until the socket
// drops, then announces the disconnect to the relay.
func (s *Session) Run() {
	go s.writePump()
	s.readPump()
}

func (s *Session) readPump() {
	defer func() {
		s.sub.Unsubscribe()
		s.ws.Close()

		data, err := json.Marshal(event.ConnClose{ConnID: s.connID})
		if err == nil {
			s.nc.Publish("conn.close", data)
		}
		slog.Info("Session closed", "conn", s.connID)
	}()

	s.ws.SetReadLimit(maxMessageSize)
	s.ws.SetReadDeadline(time.Now().Add(pongWait))
	s.ws.SetPongHandler(func(string) error {
		s.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := s.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Warn("Websocket read error", "conn", s.connID, "error", err)
			}
			return
		}
		s.handleClientEvent(raw)
	}
}

// handleClientEvent maps one client envelope to its conn.* subject. Malformed
// input earns the client an error event, nothing reaches the relay.
func (s *Session) handleClientEvent(raw []byte) {
	env, err := event.Decode(raw)
	if err != nil {
		s.sendError("malformed event")
		return
	}

	switch env.Event {
	case event.TypeJoinRoom:
		var req event.JoinRoom
		if err := json.Unmarshal(env.Data, &req); err != nil {
			s.sendError("malformed join-room payload")
			return
		}
		data, err := json.Marshal(event.ConnJoin{
			ConnID:   s.connID,
			RoomID:   req.RoomID,
			Username: req.Username,
		})
		if err != nil {
			return
		}
		otelhelper.TracedPublish(context.Background(), s.nc, "conn.join", data)

	case event.TypeSendMessage:
		var req event.SendMessage
		if err := json.Unmarshal(env.Data, &req); err != nil {
			s.sendError("malformed send-message payload")
			return
		}
		data, err := json.Marshal(event.ConnSend{
			ConnID:   s.connID,
			RoomID:   req.RoomID,
			Username: req.Username,
			Message:  req.Message,
		})
		if err != nil {
			return
		}
		otelhelper.TracedPublish(context.Background(), s.nc, "conn.send", data)

	default:
		s.sendError("unknown event: " + env.Event)
	}
}

func (s *Session) sendError(message string) {
	data, err := event.Encode(event.TypeError, event.Error{Message: message})
	if err != nil {
		return
	}
	select {
	case s.send <- data:
	default:
	}
}

func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.ws.Close()
	}()

	for {
		select {
		case data, ok := <-s.send:
			s.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				s.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			s.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
