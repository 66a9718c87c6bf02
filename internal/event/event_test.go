package event

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestEncode_WireShape(t *testing.T) {
	raw, err := Encode(TypeError, Error{Message: "message is empty"})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	var wire map[string]json.RawMessage
	if err := json.Unmarshal(raw, &wire); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if string(wire["event"]) != `"error"` {
		t.Errorf("Expected event field %q, got %s", TypeError, wire["event"])
	}
	if !strings.Contains(string(wire["data"]), "message is empty") {
		t.Errorf("Payload missing from data field: %s", wire["data"])
	}
}

func TestDecode_RoundTrip(t *testing.T) {
	raw, err := Encode(TypeSendMessage, SendMessage{RoomID: "general", Username: "alice", Message: "hello"})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	env, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if env.Event != TypeSendMessage {
		t.Fatalf("Expected event %q, got %q", TypeSendMessage, env.Event)
	}
	var payload SendMessage
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		t.Fatalf("Unmarshal payload: %v", err)
	}
	if payload.RoomID != "general" || payload.Username != "alice" || payload.Message != "hello" {
		t.Errorf("Unexpected payload: %+v", payload)
	}
}

func TestDecode_Malformed(t *testing.T) {
	if _, err := Decode([]byte(`{"event": `)); err == nil {
		t.Error("Expected error for truncated envelope")
	}
	if _, err := Decode([]byte(`"just a string"`)); err == nil {
		t.Error("Expected error for non-object envelope")
	}
}
