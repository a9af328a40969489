// Package record implements the conversation record engine: merging
// inbound room messages into vCon records and the ingestion loop that
// drives it.
package record

import (
	"encoding/json"
	"time"

	"github.com/soyeahso/vconscribe/internal/domain"
	"github.com/soyeahso/vconscribe/internal/identity"
	"github.com/soyeahso/vconscribe/internal/vcon"
)

// Outcome reports what Merge did with an inbound message.
type Outcome int

const (
	// Appended means a new dialog entry was added to the record.
	Appended Outcome = iota
	// SkippedDuplicate means the message's event id was already recorded.
	SkippedDuplicate
)

func (o Outcome) String() string {
	if o == SkippedDuplicate {
		return "skipped_duplicate"
	}
	return "appended"
}

// Merge folds one inbound message into a record. The sender's party is
// resolved (and created on first sight) before the duplicate check, and
// the new dialog entry references that party's index as both sole party
// and sole originator. Merge never reorders or removes existing entries.
//
// The caller must hold the record's path lock: the party index captured
// here is only valid against the parties list as it stands within this
// call.
func Merge(rec *vcon.Record, msg domain.RoomMessage, defaultRole string) (Outcome, *vcon.Dialog, error) {
	sender, err := identity.ParseSender(msg.Sender)
	if err != nil {
		return 0, nil, err
	}

	idx := rec.PartyIndex(sender.CanonicalID)
	if idx == -1 {
		rec.Parties = append(rec.Parties, vcon.Party{
			Tel:    sender.CanonicalID,
			Name:   sender.CanonicalID,
			Mailto: sender.Address,
			Meta: vcon.PartyMeta{
				Role:      defaultRole,
				Extension: sender.Extension,
			},
		})
		idx = len(rec.Parties) - 1
	}

	if rec.HasEvent(msg.ID) {
		return SkippedDuplicate, nil, nil
	}

	raw := msg.Raw
	if raw == nil {
		raw = minimalEvent(msg)
	}

	turn := vcon.Dialog{
		Body:       msg.Body,
		Meta:       vcon.DialogMeta{MatrixEvent: raw},
		Type:       "text",
		Start:      msg.Timestamp.UTC().Format(time.RFC3339),
		Parties:    []int{idx},
		Originator: []int{idx},
		Encoding:   "text/plain",
	}
	rec.Dialog = append(rec.Dialog, turn)

	return Appended, &rec.Dialog[len(rec.Dialog)-1], nil
}

// minimalEvent reconstructs an event blob from the message fields when
// the transport did not retain the original JSON.
func minimalEvent(msg domain.RoomMessage) json.RawMessage {
	raw, _ := json.Marshal(map[string]any{
		"type":             "m.room.message",
		"event_id":         msg.ID,
		"room_id":          msg.RoomID,
		"sender":           msg.Sender,
		"origin_server_ts": msg.Timestamp.UnixMilli(),
		"content":          map[string]any{"msgtype": "m.text", "body": msg.Body},
	})
	return raw
}
