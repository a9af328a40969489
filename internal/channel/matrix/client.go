// Package matrix implements the Matrix transport channel over the
// client-server API's /sync long-poll.
package matrix

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/soyeahso/vconscribe/internal/config"
	"github.com/soyeahso/vconscribe/internal/domain"
	"github.com/soyeahso/vconscribe/internal/logging"
)

const (
	// eventTypeMessage is the only timeline event kind the recorder
	// accepts. Everything else is filtered out server-side.
	eventTypeMessage = "m.room.message"
	// eventTypeRoomName tracks room display names via state events.
	eventTypeRoomName = "m.room.name"

	// longPollTimeout is how long the homeserver holds an idle /sync.
	longPollTimeout = 30 * time.Second
	// retryDelay spaces out reconnect attempts after a sync failure.
	retryDelay = 5 * time.Second
)

// Channel implements domain.Channel for Matrix.
type Channel struct {
	cfg  config.MatrixConfig
	base string
	http *http.Client
	log  *logging.Logger

	mu      sync.RWMutex
	handler func(msg domain.RoomMessage)
	running bool
	synced  bool
	lastErr string

	// roomNames maps room id to its last known display name.
	roomNames map[string]string
}

// New creates a Matrix channel from configuration.
func New(cfg config.MatrixConfig, log *logging.Logger) *Channel {
	return &Channel{
		cfg:  cfg,
		base: strings.TrimRight(cfg.HomeserverURL, "/"),
		http: &http.Client{
			// Longer than the server-side long-poll hold.
			Timeout: longPollTimeout + 15*time.Second,
		},
		log:       log.Sub("matrix"),
		roomNames: make(map[string]string),
	}
}

func (c *Channel) ID() string { return "matrix" }

func (c *Channel) OnMessage(handler func(msg domain.RoomMessage)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler = handler
}

// Status returns the current runtime status.
func (c *Channel) Status() domain.ChannelStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return domain.ChannelStatus{
		ChannelID: "matrix",
		Connected: c.synced,
		Running:   c.running,
		LastError: c.lastErr,
	}
}

// Start runs the /sync loop until the context is cancelled. The first
// sync uses the configured initial timeline limit; subsequent syncs
// long-poll from the returned batch token.
func (c *Channel) Start(ctx context.Context) error {
	c.mu.Lock()
	c.running = true
	c.lastErr = ""
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.running = false
		c.mu.Unlock()
	}()

	c.log.Info().
		Str("homeserver", c.base).
		Str("userId", c.cfg.UserID).
		Msg("starting Matrix sync loop")

	since := ""
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		resp, err := c.sync(ctx, since)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.mu.Lock()
			c.synced = false
			c.lastErr = err.Error()
			c.mu.Unlock()

			c.log.Warn().Err(err).Msg("sync failed, retrying")
			// Drop pooled connections so the retry dials fresh.
			c.http.CloseIdleConnections()

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(retryDelay):
			}
			continue
		}

		c.mu.Lock()
		c.synced = true
		c.lastErr = ""
		c.mu.Unlock()

		// The initial sync establishes the position; its backlog is
		// dispatched like any other batch so restarts re-observe recent
		// messages (dedup happens downstream on event id).
		c.dispatch(resp)
		since = resp.NextBatch
	}
}

// Stop marks the channel stopped. The sync loop itself is driven by the
// Start context.
func (c *Channel) Stop(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		c.log.Info().Msg("stopping Matrix channel")
	}
	c.running = false
	return nil
}

// sync performs one /sync call. An empty since token requests the
// initial snapshot.
func (c *Channel) sync(ctx context.Context, since string) (*syncResponse, error) {
	q := url.Values{}
	q.Set("filter", c.syncFilter(since == ""))
	if since != "" {
		q.Set("since", since)
		q.Set("timeout", fmt.Sprintf("%d", longPollTimeout.Milliseconds()))
	}

	reqURL := c.base + "/_matrix/client/v3/sync?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("matrix: building sync request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.AccessToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("matrix: sync request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("matrix: reading sync response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("matrix: sync returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed syncResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("matrix: parsing sync response: %w", err)
	}
	return &parsed, nil
}

// syncFilter builds the inline JSON /sync filter: timeline restricted to
// room messages, state restricted to room name changes, presence and
// account data suppressed.
func (c *Channel) syncFilter(initial bool) string {
	timeline := map[string]any{"types": []string{eventTypeMessage}}
	if initial && c.cfg.InitialSyncLimit > 0 {
		timeline["limit"] = c.cfg.InitialSyncLimit
	}
	top := map[string]any{
		"room": map[string]any{
			"timeline": timeline,
			"state":    map[string]any{"types": []string{eventTypeRoomName}},
		},
		"presence":     map[string]any{"types": []string{}},
		"account_data": map[string]any{"types": []string{}},
	}
	data, _ := json.Marshal(top)
	return string(data)
}

// dispatch walks a sync response, refreshes room names from state, and
// hands each room message to the registered handler.
func (c *Channel) dispatch(resp *syncResponse) {
	c.mu.RLock()
	handler := c.handler
	c.mu.RUnlock()

	for roomID, room := range resp.Rooms.Join {
		for _, raw := range room.State.Events {
			c.observeName(roomID, raw)
		}
		// Name changes can also ride the timeline on the initial sync.
		for _, raw := range room.Timeline.Events {
			c.observeName(roomID, raw)
		}

		if handler == nil {
			continue
		}

		for _, raw := range room.Timeline.Events {
			var ev roomEvent
			if err := json.Unmarshal(raw, &ev); err != nil {
				c.log.Warn().Err(err).Str("roomId", roomID).Msg("unparseable timeline event")
				continue
			}
			if ev.Type != eventTypeMessage {
				continue
			}

			handler(domain.RoomMessage{
				ID:        ev.EventID,
				RoomID:    roomID,
				RoomName:  c.roomName(roomID),
				Sender:    ev.Sender,
				Body:      ev.Content.Body,
				Timestamp: time.UnixMilli(ev.OriginServerTS).UTC(),
				Raw:       raw,
			})
		}
	}
}

// observeName records the room's display name if raw is a name event.
func (c *Channel) observeName(roomID string, raw json.RawMessage) {
	var ev roomEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return
	}
	if ev.Type != eventTypeRoomName || ev.Content.Name == "" {
		return
	}
	c.mu.Lock()
	c.roomNames[roomID] = ev.Content.Name
	c.mu.Unlock()
}

// roomName returns the last known display name, falling back to the id.
func (c *Channel) roomName(roomID string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if name, ok := c.roomNames[roomID]; ok {
		return name
	}
	return roomID
}
