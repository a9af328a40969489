package matrix

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/vconscribe/internal/config"
	"github.com/soyeahso/vconscribe/internal/domain"
	"github.com/soyeahso/vconscribe/internal/logging"
)

func testChannel(homeserver string) *Channel {
	return New(config.MatrixConfig{
		HomeserverURL:    homeserver,
		AccessToken:      "token",
		UserID:           "@recorder:localhost",
		InitialSyncLimit: 10,
	}, logging.New(nil, "silent"))
}

const syncFixture = `{
	"next_batch": "s1",
	"rooms": {
		"join": {
			"!r1:example.org": {
				"state": {
					"events": [
						{"type": "m.room.name", "event_id": "n1", "sender": "@admin:example.org:0",
						 "content": {"name": "Support Room"}}
					]
				},
				"timeline": {
					"events": [
						{"type": "m.room.message", "event_id": "e1", "sender": "@alice:example.org:1",
						 "origin_server_ts": 1000, "content": {"msgtype": "m.text", "body": "hi"}},
						{"type": "m.room.topic", "event_id": "e2", "sender": "@alice:example.org:1",
						 "origin_server_ts": 1001, "content": {}},
						{"type": "m.room.message", "event_id": "e3", "sender": "@bob:example.org:2",
						 "origin_server_ts": 1002, "content": {"msgtype": "m.text", "body": "hello"}}
					]
				}
			}
		}
	}
}`

func TestDispatch_RoomMessages(t *testing.T) {
	c := testChannel("http://localhost:8008")

	var got []domain.RoomMessage
	c.OnMessage(func(msg domain.RoomMessage) {
		got = append(got, msg)
	})

	var resp syncResponse
	require.NoError(t, json.Unmarshal([]byte(syncFixture), &resp))
	c.dispatch(&resp)

	require.Len(t, got, 2, "non-message events must be filtered out")

	assert.Equal(t, "e1", got[0].ID)
	assert.Equal(t, "!r1:example.org", got[0].RoomID)
	assert.Equal(t, "Support Room", got[0].RoomName)
	assert.Equal(t, "@alice:example.org:1", got[0].Sender)
	assert.Equal(t, "hi", got[0].Body)
	assert.Equal(t, time.UnixMilli(1000).UTC(), got[0].Timestamp)
	assert.NotEmpty(t, got[0].Raw)

	assert.Equal(t, "e3", got[1].ID)
	assert.Equal(t, "hello", got[1].Body)
}

func TestDispatch_RoomNameFallsBackToID(t *testing.T) {
	c := testChannel("http://localhost:8008")

	var got []domain.RoomMessage
	c.OnMessage(func(msg domain.RoomMessage) {
		got = append(got, msg)
	})

	fixture := `{"next_batch":"s1","rooms":{"join":{"!r9:example.org":{
		"timeline":{"events":[
			{"type":"m.room.message","event_id":"e1","sender":"@a:x:1",
			 "origin_server_ts":1,"content":{"body":"m"}}]}}}}}`
	var resp syncResponse
	require.NoError(t, json.Unmarshal([]byte(fixture), &resp))
	c.dispatch(&resp)

	require.Len(t, got, 1)
	assert.Equal(t, "!r9:example.org", got[0].RoomName)
}

func TestSyncFilter(t *testing.T) {
	c := testChannel("http://localhost:8008")

	var initial map[string]any
	require.NoError(t, json.Unmarshal([]byte(c.syncFilter(true)), &initial))
	room := initial["room"].(map[string]any)
	timeline := room["timeline"].(map[string]any)
	assert.Equal(t, []any{"m.room.message"}, timeline["types"])
	assert.Equal(t, float64(10), timeline["limit"])

	var incremental map[string]any
	require.NoError(t, json.Unmarshal([]byte(c.syncFilter(false)), &incremental))
	timeline = incremental["room"].(map[string]any)["timeline"].(map[string]any)
	_, hasLimit := timeline["limit"]
	assert.False(t, hasLimit, "only the initial sync caps the timeline")
}

func TestStart_SyncLoop(t *testing.T) {
	messages := make(chan domain.RoomMessage, 8)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/_matrix/client/v3/sync", r.URL.Path)
		require.Equal(t, "Bearer token", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("since") == "" {
			w.Write([]byte(syncFixture))
			return
		}
		// Incremental syncs: nothing new.
		w.Write([]byte(`{"next_batch":"s2","rooms":{"join":{}}}`))
	}))
	defer server.Close()

	c := testChannel(server.URL)
	c.OnMessage(func(msg domain.RoomMessage) {
		messages <- msg
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		c.Start(ctx)
		close(done)
	}()

	var got []domain.RoomMessage
	for len(got) < 2 {
		select {
		case msg := <-messages:
			got = append(got, msg)
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for messages")
		}
	}
	assert.Equal(t, "e1", got[0].ID)
	assert.Equal(t, "e3", got[1].ID)

	status := c.Status()
	assert.True(t, status.Running)

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("sync loop did not stop on cancel")
	}
	assert.False(t, c.Status().Running)
}

func TestStart_RetriesAfterServerError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"next_batch":"s1","rooms":{"join":{}}}`))
	}))
	defer server.Close()

	c := testChannel(server.URL)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Start(ctx)

	require.Eventually(t, func() bool {
		return c.Status().Connected
	}, 30*time.Second, 50*time.Millisecond)
	assert.GreaterOrEqual(t, calls.Load(), int32(2))
}
