package gateway

import (
	"bytes"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/nats-io/nats.go"

	"github.com/amnnrajbhar/chat-room/pkg/otelhelper"
)

const requestTimeout = 5 * time.Second

// Handler serves the websocket upgrade and the REST read surface, both
// backed by the relay over NATS.
type Handler struct {
	nc       *nats.Conn
	upgrader websocket.Upgrader
}

// NewHandler builds the edge handler.
func NewHandler(nc *nats.Conn) *Handler {
	return &Handler{
		nc: nc,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Origin checking is the deployment proxy's job.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// ServeWS upgrades the request and runs the session until the socket drops.
func (h *Handler) ServeWS(c *gin.Context) {
	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Warn("Websocket upgrade failed", "error", err)
		return
	}

	session, err := NewSession(ws, h.nc)
	if err != nil {
		slog.Error("Failed to start session", "error", err)
		ws.Close()
		return
	}
	slog.Info("Session opened", "conn", session.ConnID(), "remote", c.Request.RemoteAddr)
	session.Run()
}

// RoomMessages proxies GET /api/chat/room/:roomId/messages to the relay.
func (h *Handler) RoomMessages(c *gin.Context) {
	h.proxyRequest(c, "history.messages."+c.Param("roomId"), nil)
}

// RoomUsers proxies GET /api/chat/room/:roomId/users to the relay.
func (h *Handler) RoomUsers(c *gin.Context) {
	h.proxyRequest(c, "history.users."+c.Param("roomId"), nil)
}

// CreateRoom proxies POST /api/chat/room to the relay's get-or-create.
func (h *Handler) CreateRoom(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	h.proxyRequest(c, "room.get", body)
}

// proxyRequest performs a NATS request/reply and relays the JSON answer. The
// relay signals failure with an {"error": ...} body; that maps to a 500 here
// so REST clients see a generic failure response.
func (h *Handler) proxyRequest(c *gin.Context, subject string, body []byte) {
	msg := &nats.Msg{
		Subject: subject,
		Data:    body,
		Header:  otelhelper.InjectContext(c.Request.Context()),
	}
	reply, err := h.nc.RequestMsg(msg, requestTimeout)
	if err != nil {
		slog.Error("Relay request failed", "subject", subject, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "relay unavailable"})
		return
	}

	status := http.StatusOK
	if bytes.HasPrefix(reply.Data, []byte(`{"error"`)) {
		status = http.StatusInternalServerError
	}
	c.Data(status, "application/json", reply.Data)
}
