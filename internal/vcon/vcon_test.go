package vcon

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Initialized(t *testing.T) {
	created := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	rec := New("uuid-1", "Recording of Test Room", created)

	assert.Equal(t, "uuid-1", rec.UUID)
	assert.Equal(t, SchemaVersion, rec.Vcon)
	assert.Equal(t, "2026-08-30T12:00:00Z", rec.CreatedAt)
	assert.Equal(t, "Recording of Test Room", rec.Subject)
	assert.Empty(t, rec.Parties)
	assert.Empty(t, rec.Dialog)
}

func TestNew_EmptyContainersMarshalAsArrays(t *testing.T) {
	rec := New("uuid-1", "subject", time.Now())

	data, err := json.Marshal(rec)
	require.NoError(t, err)

	body := string(data)
	assert.Contains(t, body, `"parties":[]`)
	assert.Contains(t, body, `"dialog":[]`)
	assert.Contains(t, body, `"analysis":[]`)
	assert.Contains(t, body, `"attachments":[]`)
}

func TestCreatedTime_RoundTrip(t *testing.T) {
	created := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	rec := New("uuid-1", "subject", created)

	parsed, err := rec.CreatedTime()
	require.NoError(t, err)
	assert.True(t, parsed.Equal(created))
}

func TestPartyIndex(t *testing.T) {
	rec := New("uuid-1", "subject", time.Now())
	rec.Parties = append(rec.Parties,
		Party{Tel: "alice"},
		Party{Tel: "bob"},
	)

	assert.Equal(t, 0, rec.PartyIndex("alice"))
	assert.Equal(t, 1, rec.PartyIndex("bob"))
	assert.Equal(t, -1, rec.PartyIndex("carol"))
}

func TestHasEvent(t *testing.T) {
	rec := New("uuid-1", "subject", time.Now())
	rec.Dialog = append(rec.Dialog, Dialog{
		Body: "hi",
		Meta: DialogMeta{MatrixEvent: json.RawMessage(`{"event_id":"e1"}`)},
	})

	assert.True(t, rec.HasEvent("e1"))
	assert.False(t, rec.HasEvent("e2"))
}

func TestHasEvent_IgnoresUnparseableMeta(t *testing.T) {
	rec := New("uuid-1", "subject", time.Now())
	rec.Dialog = append(rec.Dialog, Dialog{
		Meta: DialogMeta{MatrixEvent: json.RawMessage(`not json`)},
	})

	assert.False(t, rec.HasEvent("e1"))
}
