// Package hub provides a thread-safe websocket broadcast hub
// using the idiomatic Go channel-based fan-out pattern.
package hub

import "encoding/json"

// Message is one JSON frame broadcast to every client.
type Message struct {
	Data []byte
}

// NewJSONMessage creates a message from pre-encoded bytes
func NewJSONMessage(data []byte) Message {
	return Message{Data: data}
}

// Envelope tags a payload with its event type, e.g. {"type":"gaze","data":{...}}.
type Envelope struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Encode marshals an envelope.
func Encode(kind string, v any) ([]byte, error) {
	return json.Marshal(Envelope{Type: kind, Data: v})
}
