package event

// Payloads for the conn.* subjects between the edge gateway and the relay.
// The gateway decodes client envelopes, stamps the connection id, and
// publishes these; the relay never sees the transport itself.

// ConnJoin is published to conn.join when a connection joins a room.
type ConnJoin struct {
	ConnID   string `json:"connId"`
	RoomID   string `json:"roomId"`
	Username string `json:"username"`
}

// ConnSend is published to conn.send for each outbound chat message.
type ConnSend struct {
	ConnID   string `json:"connId"`
	RoomID   string `json:"roomId"`
	Username string `json:"username"`
	Message  string `json:"message"`
}

// ConnClose is published to conn.close when the transport drops.
type ConnClose struct {
	ConnID string `json:"connId"`
}
