package matrix

import "encoding/json"

// syncResponse is the subset of the /sync response the recorder uses.
type syncResponse struct {
	NextBatch string `json:"next_batch"`
	Rooms     struct {
		Join map[string]joinedRoom `json:"join"`
	} `json:"rooms"`
}

// joinedRoom carries the state and timeline sections for one room.
type joinedRoom struct {
	State struct {
		Events []json.RawMessage `json:"events"`
	} `json:"state"`
	Timeline struct {
		Events    []json.RawMessage `json:"events"`
		Limited   bool              `json:"limited"`
		PrevBatch string            `json:"prev_batch"`
	} `json:"timeline"`
}

// roomEvent is the subset of a Matrix event the recorder reads. The full
// raw JSON travels alongside so nothing is lost downstream.
type roomEvent struct {
	Type           string `json:"type"`
	EventID        string `json:"event_id"`
	Sender         string `json:"sender"`
	OriginServerTS int64  `json:"origin_server_ts"`
	Content        struct {
		MsgType string `json:"msgtype"`
		Body    string `json:"body"`
		Name    string `json:"name"` // m.room.name state content
	} `json:"content"`
}
