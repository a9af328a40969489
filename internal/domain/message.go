package domain

import (
	"encoding/json"
	"time"
)

// RoomMessage is a text message received from a conversation transport.
// Only plain text room messages reach this type: channels filter out
// every other event kind before dispatch.
type RoomMessage struct {
	ID        string          `json:"id"`            // transport event id, unique per message
	RoomID    string          `json:"roomId"`        // transport-native conversation id
	RoomName  string          `json:"roomName"`      // current display name of the conversation
	Sender    string          `json:"sender"`        // compound address, e.g. "@alice:example.org:1"
	Body      string          `json:"body"`          // message text
	Timestamp time.Time       `json:"timestamp"`     // origination time reported by the server
	Raw       json.RawMessage `json:"raw,omitempty"` // full original event, retained verbatim
}
